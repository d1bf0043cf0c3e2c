package ledger

import "github.com/ethereum/go-ethereum/common"

// ClaimLedger is the one piece of mutable state in the claim engine:
// the set of accounts whose entitlement has already been released.
// All implementations must be thread-safe; the distributor serializes
// check-then-mark itself but status reads happen concurrently.
//
// Per-account state machine: Unclaimed to Claimed, one-way. Unmark
// exists solely as the rollback hook for failed transfers and must
// never be reachable from any other path.
type ClaimLedger interface {
	// HasClaimed reports whether the account's claim has been recorded.
	// Returns error only on storage failure.
	HasClaimed(account common.Address) (bool, error)

	// MarkClaimed records the account's claim. The caller must have
	// checked HasClaimed first; marking an already-claimed account is a
	// logic error and returns an error rather than silently no-oping.
	MarkClaimed(account common.Address) error

	// Unmark erases the account's claim record. Rollback hook for the
	// transfer-failed path only. Idempotent: unmarking an unclaimed
	// account returns nil.
	Unmark(account common.Address) error

	// Close cleanly shuts down the ledger. Idempotent.
	// After Close(), all other operations return errors.
	Close() error

	// HealthCheck verifies the backing store is operational.
	// Called during startup to fail fast.
	HealthCheck() error
}
