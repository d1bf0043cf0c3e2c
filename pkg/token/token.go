package token

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Transferor is the external fungible-asset capability consumed by the
// distributor. The claim engine never reads balances or holds funds; it
// only asks the collaborator to move the exact claimed amount. A nil
// return means the transfer is final; any error means no funds moved
// and the claim must roll back.
type Transferor interface {
	Transfer(ctx context.Context, to common.Address, amount *big.Int) error
}
