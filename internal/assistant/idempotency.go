package assistant

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// keyPrefix versions the key derivation scheme; bumping it invalidates all
// outstanding deduplication without touching stored records.
const keyPrefix = "assistant:propose:v1:"

// DeriveKey computes the deterministic idempotency key for a proposal.
// Any change to any input changes the key. The raw text is hashed verbatim
// (after trimming), so cosmetic differences bypass deduplication even when
// the parsed intent is identical.
func DeriveKey(tenantID, userID, toolID string, input json.RawMessage, rawText string) string {
	payload := strings.Join([]string{
		tenantID,
		userID,
		toolID,
		string(input),
		strings.TrimSpace(rawText),
	}, "|")

	sum := sha256.Sum256([]byte(payload))
	return keyPrefix + hex.EncodeToString(sum[:])
}
