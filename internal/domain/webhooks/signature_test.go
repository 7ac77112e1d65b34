package webhooks

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSecret = "It's a Secret to Everybody"

func TestSignatureVerifierAcceptsMatchingDigest(t *testing.T) {
	body := []byte("Hello, World!")
	verifier := NewSignatureVerifier(testSecret)

	// Published sample digest for this secret and body.
	header := "sha256=757107ea0eb2509fc211221cce984b8a37570b6d7586c22c46f4379c8b043e17"

	require.Equal(t, header, Sign(testSecret, body))
	require.Equal(t, Authentic, verifier.Verify(body, header))
}

func TestSignatureVerifierRejectsBodyMutations(t *testing.T) {
	body := []byte(`{"ref":"refs/heads/main","commits":[]}`)
	verifier := NewSignatureVerifier(testSecret)
	header := Sign(testSecret, body)

	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x01
		require.Equal(t, Rejected, verifier.Verify(mutated, header), "byte %d", i)
	}
}

func TestSignatureVerifierRejectsSecretMutations(t *testing.T) {
	body := []byte(`{"pull_request":{"number":1}}`)

	for i := range testSecret {
		mutated := []byte(testSecret)
		mutated[i] ^= 0x01
		header := Sign(string(mutated), body)
		require.Equal(t, Rejected, NewSignatureVerifier(testSecret).Verify(body, header), "byte %d", i)
	}
}

func TestSignatureVerifierRejectsMalformedHeaders(t *testing.T) {
	body := []byte(`{}`)
	verifier := NewSignatureVerifier(testSecret)
	valid := Sign(testSecret, body)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing", header: ""},
		{name: "no prefix", header: strings.TrimPrefix(valid, "sha256=")},
		{name: "sha1 prefix", header: "sha1=" + strings.TrimPrefix(valid, "sha256=")},
		{name: "empty digest", header: "sha256="},
		{name: "not hex", header: "sha256=zzzz"},
		{name: "truncated digest", header: valid[:len(valid)-2]},
		{name: "odd length hex", header: valid[:len(valid)-1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, Rejected, verifier.Verify(body, tt.header))
		})
	}
}

func TestSignatureVerifierTrimsHeaderWhitespace(t *testing.T) {
	body := []byte(`{"commits":[]}`)
	verifier := NewSignatureVerifier(testSecret)

	require.Equal(t, Authentic, verifier.Verify(body, "  "+Sign(testSecret, body)+" "))
}

func TestSignatureVerifierDisabledWithoutSecret(t *testing.T) {
	verifier := NewSignatureVerifier("")

	require.False(t, verifier.Enabled())
	require.Equal(t, Authentic, verifier.Verify([]byte("anything"), ""))
	require.Equal(t, Authentic, verifier.Verify([]byte("anything"), "sha256=deadbeef"))
}

func TestVerdictString(t *testing.T) {
	require.Equal(t, "authentic", Authentic.String())
	require.Equal(t, "rejected", Rejected.String())
}
