package distributor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/merkledrop-labs/merkledrop-go/pkg/eip712"
	"github.com/merkledrop-labs/merkledrop-go/pkg/leaf"
	"github.com/merkledrop-labs/merkledrop-go/pkg/ledger"
	"github.com/merkledrop-labs/merkledrop-go/pkg/logger"
	"github.com/merkledrop-labs/merkledrop-go/pkg/merkle"
	"github.com/merkledrop-labs/merkledrop-go/pkg/sigverify"
	"github.com/merkledrop-labs/merkledrop-go/pkg/token"
)

// Claim failure taxonomy. Every failure is terminal for the single
// operation; the engine never retries. Matched with errors.Is.
var (
	// ErrAlreadyClaimed means the account already has a recorded claim.
	ErrAlreadyClaimed = errors.New("distributor: already claimed")

	// ErrInvalidSignature means the signature is malformed, recovery
	// failed, or the recovered signer is not the claiming account.
	ErrInvalidSignature = errors.New("distributor: invalid signature")

	// ErrInvalidProof means the recomputed root does not match the
	// committed root.
	ErrInvalidProof = errors.New("distributor: invalid proof")

	// ErrTransferFailed means the external transfer declined; the claim
	// record was rolled back.
	ErrTransferFailed = errors.New("distributor: transfer failed")
)

// ClaimEvent is the observable record of a completed claim, intended
// for external indexers and auditors, never for internal control flow.
type ClaimEvent struct {
	ID        string
	Account   common.Address
	Amount    *big.Int
	ClaimedAt time.Time
}

// ClaimListener receives completed-claim events.
type ClaimListener interface {
	ClaimCompleted(ev ClaimEvent)
}

// Config holds distributor construction parameters. Root and Domain are
// immutable for the campaign's lifetime once the distributor is built.
type Config struct {
	// Root is the merkle root committing to the full entitlement set.
	Root [32]byte

	// Domain is the EIP-712 instance-binding context.
	Domain *eip712.Domain

	// Ledger records which accounts have claimed.
	Ledger ledger.ClaimLedger

	// Token is the external transfer capability.
	Token token.Transferor

	// Listener optionally receives completed-claim events.
	Listener ClaimListener

	// Logger is optional; a default is created if nil.
	Logger *zap.Logger
}

// Distributor is the claim authority: it composes leaf hashing, merkle
// verification, EIP-712 signature authorization and the claim ledger
// into the single Claim operation, and invokes the external transfer on
// success.
//
// The root is fixed at construction and never mutated. The only shared
// mutable state is the claim ledger; the check, verify and mark steps
// run under one mutex so no partially updated state is ever observable
// from a concurrent claim.
type Distributor struct {
	root     [32]byte
	domain   *eip712.Domain
	ledger   ledger.ClaimLedger
	token    token.Transferor
	listener ClaimListener
	logger   *zap.Logger

	mu sync.Mutex
}

// New creates a Distributor. Domain, Ledger and Token are required.
func New(cfg Config) (*Distributor, error) {
	if cfg.Domain == nil {
		return nil, fmt.Errorf("domain is required")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if cfg.Token == nil {
		return nil, fmt.Errorf("token transferor is required")
	}

	log := cfg.Logger
	if log == nil {
		var err error
		log, err = logger.NewLogger(&logger.LoggerConfig{Debug: false})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	return &Distributor{
		root:     cfg.Root,
		domain:   cfg.Domain,
		ledger:   cfg.Ledger,
		token:    cfg.Token,
		listener: cfg.Listener,
		logger:   log,
	}, nil
}

// Root returns the committed merkle root.
func (d *Distributor) Root() [32]byte {
	return d.root
}

// HasClaimed reports whether the account has a recorded claim.
func (d *Distributor) HasClaimed(account common.Address) (bool, error) {
	return d.ledger.HasClaimed(account)
}

// HealthCheck verifies the claim ledger is operational.
func (d *Distributor) HealthCheck() error {
	return d.ledger.HealthCheck()
}

// Claim releases the entitlement for (account, amount) exactly once.
//
// Check order is part of the contract and pinned by tests:
//  1. claimed-set check (cheapest), failing with ErrAlreadyClaimed
//  2. EIP-712 digest and signature recovery, failing with ErrInvalidSignature
//  3. leaf and merkle proof verification, failing with ErrInvalidProof
//  4. mark claimed, BEFORE the transfer, so anything the external
//     transfer re-enters sees the account as claimed
//  5. external transfer; on failure the mark from step 4 is undone and
//     ErrTransferFailed is returned, so the ledger never records a
//     claim for which funds were not delivered
//
// The signature must recover to the claiming account itself, not the
// submitter: anyone may submit (and pay for) the claim, but only the
// entitlement holder's key can authorize it.
func (d *Distributor) Claim(ctx context.Context, account common.Address, amount *big.Int, proof [][32]byte, signature []byte) (*ClaimEvent, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must be a non-negative integer")
	}
	// The leaf encoding and the EIP-712 struct hash both take the amount
	// mod 2^256, so an oversized amount would reuse the digest and proof
	// of its reduced value while the transfer paid the oversized one.
	if amount.BitLen() > 256 {
		return nil, fmt.Errorf("amount %s exceeds uint256 range", amount)
	}

	if err := d.authorizeAndMark(account, amount, proof, signature); err != nil {
		return nil, err
	}

	// State is committed; the external transfer happens outside the
	// lock. A concurrent claim for the same account now fails at step 1.
	if err := d.token.Transfer(ctx, account, amount); err != nil {
		if uerr := d.ledger.Unmark(account); uerr != nil {
			// Funds did not move, so the stuck flag fails safe (no
			// double release) but blocks a legitimate retry.
			d.logger.Sugar().Errorw("Claim rollback failed; account stuck in claimed state",
				"account", account.Hex(),
				"unmarkError", uerr,
				"transferError", err,
			)
		}
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	ev := ClaimEvent{
		ID:        uuid.New().String(),
		Account:   account,
		Amount:    new(big.Int).Set(amount),
		ClaimedAt: time.Now().UTC(),
	}

	d.logger.Sugar().Infow("Claim completed",
		"claimID", ev.ID,
		"account", ev.Account.Hex(),
		"amount", ev.Amount.String(),
	)
	if d.listener != nil {
		d.listener.ClaimCompleted(ev)
	}
	return &ev, nil
}

// authorizeAndMark runs steps 1 through 4 atomically with respect to other
// claims.
func (d *Distributor) authorizeAndMark(account common.Address, amount *big.Int, proof [][32]byte, signature []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	claimed, err := d.ledger.HasClaimed(account)
	if err != nil {
		return fmt.Errorf("failed to read claim ledger: %w", err)
	}
	if claimed {
		return ErrAlreadyClaimed
	}

	digest := d.domain.ClaimDigest(account, amount)
	signer, err := sigverify.RecoverBytes(digest, signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if signer != account {
		return fmt.Errorf("%w: recovered signer %s is not the claiming account", ErrInvalidSignature, signer.Hex())
	}

	leafHash := leaf.Hash(account, amount)
	if !merkle.VerifyProof(proof, d.root, leafHash) {
		return ErrInvalidProof
	}

	if err := d.ledger.MarkClaimed(account); err != nil {
		return fmt.Errorf("failed to record claim: %w", err)
	}
	return nil
}
