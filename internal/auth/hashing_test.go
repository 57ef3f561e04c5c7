package auth

import "testing"

func TestHashSecretRoundTrip(t *testing.T) {
	hash, err := HashSecret("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("HashSecret returned error: %v", err)
	}
	if !VerifySecret("correct-horse-battery-staple", hash) {
		t.Fatal("VerifySecret must accept the secret it was hashed from")
	}
	if VerifySecret("wrong-secret", hash) {
		t.Fatal("VerifySecret must reject a non-matching secret")
	}
}

func TestHashSecretIsSalted(t *testing.T) {
	h1, err := HashSecret("same-secret")
	if err != nil {
		t.Fatalf("HashSecret returned error: %v", err)
	}
	h2, err := HashSecret("same-secret")
	if err != nil {
		t.Fatalf("HashSecret returned error: %v", err)
	}
	if h1 == h2 {
		t.Fatal("two hashes of the same secret must differ due to random salt")
	}
	if !VerifySecret("same-secret", h1) || !VerifySecret("same-secret", h2) {
		t.Fatal("both independently salted hashes must verify")
	}
}

func TestVerifySecretRejectsMalformedHash(t *testing.T) {
	if VerifySecret("anything", "not-a-valid-encoded-hash") {
		t.Fatal("VerifySecret must reject a malformed encoded hash")
	}
	if VerifySecret("anything", "") {
		t.Fatal("VerifySecret must reject the empty string")
	}
}

// TestRotationInvalidatesOldSecret exercises the rotation contract:
// rehashing a fresh secret in place must make the old secret stop
// verifying against the stored hash.
func TestRotationInvalidatesOldSecret(t *testing.T) {
	oldSecret, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	oldHash, err := HashSecret(oldSecret)
	if err != nil {
		t.Fatalf("HashSecret: %v", err)
	}
	if !VerifySecret(oldSecret, oldHash) {
		t.Fatal("old secret must verify against its own hash before rotation")
	}

	newSecret, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	newHash, err := HashSecret(newSecret)
	if err != nil {
		t.Fatalf("HashSecret: %v", err)
	}

	if VerifySecret(oldSecret, newHash) {
		t.Fatal("old secret must not verify against the rotated hash")
	}
	if !VerifySecret(newSecret, newHash) {
		t.Fatal("new secret must verify against the rotated hash")
	}
}
