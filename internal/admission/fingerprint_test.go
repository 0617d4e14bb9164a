package admission

import "testing"

// TestFingerprint_Deterministic verifies that identical payloads always hash
// to the same fingerprint and distinct payloads to different ones.
func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("menu_subscriptions")
	b := Fingerprint("menu_subscriptions")
	c := Fingerprint("menu_settings")

	if a != b {
		t.Fatalf("same payload, different fingerprints: %q vs %q", a, b)
	}
	if a == c {
		t.Fatalf("different payloads collided on %q", a)
	}
	if len(a) != fingerprintLen {
		t.Fatalf("expected %d hex digits, got %d (%q)", fingerprintLen, len(a), a)
	}
}

// TestFingerprint_EmptyPayload verifies empty input yields a stable,
// well-formed fingerprint rather than an empty string.
func TestFingerprint_EmptyPayload(t *testing.T) {
	fp := Fingerprint("")
	if len(fp) != fingerprintLen {
		t.Fatalf("expected %d hex digits for empty payload, got %q", fingerprintLen, fp)
	}
}

// TestKeys_ChatNamespacing verifies that the same payload or event id in
// different chats produces distinct keys.
func TestKeys_ChatNamespacing(t *testing.T) {
	if ContentKey(1, "back") == ContentKey(2, "back") {
		t.Fatal("content keys for different chats must differ")
	}
	if IDKey(1, "m42") == IDKey(2, "m42") {
		t.Fatal("id keys for different chats must differ")
	}
	if ContentKey(1, "back") == IDKey(1, "back") {
		t.Fatal("content and id key spaces must not overlap")
	}
}
