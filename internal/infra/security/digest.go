package security

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedDigest indicates the Authorization header could not be parsed
// as an RFC 7616 digest challenge response.
var ErrMalformedDigest = errors.New("digest: malformed authorization header")

// DigestProof carries the fields of a parsed Digest Authorization header plus
// the HTTP method the proof was computed over.
type DigestProof struct {
	Username string
	Realm    string
	Nonce    string
	URI      string
	Response string
	Qop      string
	NC       string
	Cnonce   string
	Method   string
}

// ParseDigestAuthorization parses a `Digest k=v, ...` Authorization header.
func ParseDigestAuthorization(header, method string) (DigestProof, error) {
	const prefix = "Digest "
	if !strings.HasPrefix(header, prefix) {
		return DigestProof{}, ErrMalformedDigest
	}

	proof := DigestProof{Method: method}
	for _, part := range splitDigestParams(header[len(prefix):]) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return DigestProof{}, ErrMalformedDigest
		}

		key := strings.TrimSpace(kv[0])
		value := strings.Trim(strings.TrimSpace(kv[1]), `"`)

		switch key {
		case "username":
			proof.Username = value
		case "realm":
			proof.Realm = value
		case "nonce":
			proof.Nonce = value
		case "uri":
			proof.URI = value
		case "response":
			proof.Response = value
		case "qop":
			proof.Qop = value
		case "nc":
			proof.NC = value
		case "cnonce":
			proof.Cnonce = value
		}
	}

	if proof.Username == "" || proof.Nonce == "" || proof.Response == "" || proof.URI == "" {
		return DigestProof{}, ErrMalformedDigest
	}

	return proof, nil
}

// splitDigestParams splits on commas outside quoted strings.
func splitDigestParams(s string) []string {
	var (
		parts    []string
		start    int
		inQuotes bool
	)
	for i, r := range s {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])

	trimmed := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			trimmed = append(trimmed, v)
		}
	}
	return trimmed
}

// ComputeHA1 derives the digest secret stored at registration time:
// MD5(username:realm:password), hex encoded.
func ComputeHA1(username, realm, password string) string {
	return md5Hex(fmt.Sprintf("%s:%s:%s", username, realm, password))
}

// DigestResponse computes the response value for the proof fields given the
// HA1 secret. Supports qop=auth and the legacy no-qop form.
func DigestResponse(ha1 string, proof DigestProof) string {
	ha2 := md5Hex(fmt.Sprintf("%s:%s", proof.Method, proof.URI))
	if proof.Qop == "auth" {
		return md5Hex(strings.Join([]string{ha1, proof.Nonce, proof.NC, proof.Cnonce, proof.Qop, ha2}, ":"))
	}
	return md5Hex(strings.Join([]string{ha1, proof.Nonce, ha2}, ":"))
}

// VerifyDigest recomputes the expected digest response from the stored HA1
// and compares it in constant time against the presented proof.
func VerifyDigest(ha1 string, proof DigestProof) bool {
	if ha1 == "" || proof.Response == "" {
		return false
	}
	expected := DigestResponse(ha1, proof)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(proof.Response)) == 1
}

func md5Hex(value string) string {
	sum := md5.Sum([]byte(value))
	return hex.EncodeToString(sum[:])
}
