package admission

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// fingerprintLen is the number of hex digits kept from the content hash.
// 12 digits (48 bits) keeps collisions negligible at the store's scale.
const fingerprintLen = 12

// Fingerprint returns a deterministic short hash of an event payload. Used
// for content-based dedup when the platform supplies no reliable event id,
// or to catch semantically identical retries under distinct event ids.
func Fingerprint(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// ContentKey builds the chat-namespaced dedup key for an event payload.
func ContentKey(chatID int64, payload string) string {
	return "fp:" + strconv.FormatInt(chatID, 10) + ":" + Fingerprint(payload)
}

// IDKey builds the dedup key for a platform-assigned event id.
func IDKey(chatID int64, eventID string) string {
	return "id:" + strconv.FormatInt(chatID, 10) + ":" + eventID
}
