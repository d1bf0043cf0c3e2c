package types

// HTTP message types for the distributor claim API.
// Versioned with a V1 suffix so the wire format can evolve without
// breaking deployed clients.

// ClaimRequestV1 is the body of POST /claim.
type ClaimRequestV1 struct {
	// Account is the entitled account (0x-prefixed 20-byte hex).
	// The signature must be produced by this account's key; the HTTP
	// submitter can be anyone (gas-sponsorship pattern).
	Account string `json:"account"`

	// Amount is the entitled amount as a decimal string.
	Amount string `json:"amount"`

	// Proof is the ordered sibling path from leaf to root.
	Proof []string `json:"proof"`

	// Signature is the 65-byte (r || s || v) EIP-712 authorization
	// signature, 0x-prefixed hex.
	Signature string `json:"signature"`
}

// ClaimResponseV1 is returned on a successful claim.
type ClaimResponseV1 struct {
	ClaimID string `json:"claim_id"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// ClaimStatusResponseV1 is returned by GET /claimed/{address}.
type ClaimStatusResponseV1 struct {
	Account string `json:"account"`
	Claimed bool   `json:"claimed"`
}

// RootResponseV1 is returned by GET /root.
type RootResponseV1 struct {
	Root string `json:"root"`
}

// ErrorResponseV1 carries a machine-matchable error code plus a
// human-readable message.
type ErrorResponseV1 struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}
