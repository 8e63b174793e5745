package security

import (
	"fmt"
	"testing"
)

func buildDigestHeader(proof DigestProof) string {
	return fmt.Sprintf(
		`Digest username="%s", realm="%s", nonce="%s", uri="%s", response="%s", qop=%s, nc=%s, cnonce="%s"`,
		proof.Username, proof.Realm, proof.Nonce, proof.URI, proof.Response, proof.Qop, proof.NC, proof.Cnonce,
	)
}

func TestParseDigestAuthorization(t *testing.T) {
	header := `Digest username="alice", realm="auth-gateway", nonce="abc123", uri="/api/v1/auth/login", response="deadbeef", qop=auth, nc=00000001, cnonce="xyz"`

	proof, err := ParseDigestAuthorization(header, "POST")
	if err != nil {
		t.Fatalf("ParseDigestAuthorization returned error: %v", err)
	}

	if proof.Username != "alice" {
		t.Fatalf("expected username alice, got %s", proof.Username)
	}
	if proof.Realm != "auth-gateway" {
		t.Fatalf("expected realm auth-gateway, got %s", proof.Realm)
	}
	if proof.Qop != "auth" || proof.NC != "00000001" || proof.Cnonce != "xyz" {
		t.Fatalf("unexpected qop fields: %+v", proof)
	}
	if proof.Method != "POST" {
		t.Fatalf("expected method POST, got %s", proof.Method)
	}
}

func TestParseDigestAuthorizationRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"Basic YWxpY2U6cGFzcw==",
		`Digest username="alice"`,
		`Digest garbage`,
	}

	for _, header := range cases {
		if _, err := ParseDigestAuthorization(header, "GET"); err == nil {
			t.Fatalf("expected error for header %q", header)
		}
	}
}

func TestVerifyDigestQopAuth(t *testing.T) {
	ha1 := ComputeHA1("alice", "auth-gateway", "s3cret-pass")

	proof := DigestProof{
		Username: "alice",
		Realm:    "auth-gateway",
		Nonce:    "servernonce",
		URI:      "/api/v1/auth/login",
		Qop:      "auth",
		NC:       "00000001",
		Cnonce:   "clientnonce",
		Method:   "POST",
	}

	ha2 := md5Hex("POST:/api/v1/auth/login")
	proof.Response = md5Hex(ha1 + ":servernonce:00000001:clientnonce:auth:" + ha2)

	if !VerifyDigest(ha1, proof) {
		t.Fatalf("expected valid digest proof to verify")
	}

	proof.Response = md5Hex("tampered")
	if VerifyDigest(ha1, proof) {
		t.Fatalf("expected tampered proof to fail")
	}
}

func TestVerifyDigestLegacyNoQop(t *testing.T) {
	ha1 := ComputeHA1("bob", "auth-gateway", "hunter2hunter2")

	proof := DigestProof{
		Username: "bob",
		Realm:    "auth-gateway",
		Nonce:    "n1",
		URI:      "/hello/bob",
		Method:   "GET",
	}
	ha2 := md5Hex("GET:/hello/bob")
	proof.Response = md5Hex(ha1 + ":n1:" + ha2)

	if !VerifyDigest(ha1, proof) {
		t.Fatalf("expected legacy digest proof to verify")
	}
}

func TestVerifyDigestEmptyInputs(t *testing.T) {
	if VerifyDigest("", DigestProof{Response: "abc"}) {
		t.Fatalf("expected empty HA1 to fail")
	}
	if VerifyDigest("abc", DigestProof{}) {
		t.Fatalf("expected empty response to fail")
	}
}
