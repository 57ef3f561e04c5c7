package auth

import "testing"

func TestFormatAndParseBearerRoundTrip(t *testing.T) {
	bearer := FormatBearer("tok-1", "s3cret")
	id, secret, err := ParseBearer(bearer)
	if err != nil {
		t.Fatalf("ParseBearer returned error: %v", err)
	}
	if id != "tok-1" || secret != "s3cret" {
		t.Fatalf("ParseBearer(%q) = (%q, %q), want (tok-1, s3cret)", bearer, id, secret)
	}
}

func TestParseBearerAcceptsBearerPrefix(t *testing.T) {
	id, secret, err := ParseBearer("Bearer " + FormatBearer("tok-2", "abc"))
	if err != nil {
		t.Fatalf("ParseBearer returned error: %v", err)
	}
	if id != "tok-2" || secret != "abc" {
		t.Fatalf("got (%q, %q)", id, secret)
	}
}

func TestParseBearerRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"not-a-bearer-token",
		"fp_pat_",
		"fp_pat_onlyid",
		"fp_pat_.no-id",
		"fp_pat_id.",
	}
	for _, c := range cases {
		if _, _, err := ParseBearer(c); err == nil {
			t.Errorf("ParseBearer(%q) should have failed", c)
		}
	}
}

func TestGenerateSecretIsUnique(t *testing.T) {
	a, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret returned error: %v", err)
	}
	b, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret returned error: %v", err)
	}
	if a == b {
		t.Fatal("two generated secrets must not collide")
	}
	if len(a) == 0 {
		t.Fatal("generated secret must not be empty")
	}
}
