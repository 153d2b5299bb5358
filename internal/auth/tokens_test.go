package auth

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashToken(t *testing.T) {
	token := "s3cr3t-token"

	hash, err := HashToken(token)
	require.NoError(t, err)
	assert.NotEqual(t, token, hash)
	assert.Equal(t, "$2a$", hash[:4])
}

func TestCheckToken(t *testing.T) {
	hash, err := HashToken("correct-token")
	require.NoError(t, err)

	assert.True(t, CheckToken("correct-token", hash))
	assert.False(t, CheckToken("wrong-token", hash))
	assert.False(t, CheckToken("", hash))
	assert.False(t, CheckToken("correct-token", "not-a-hash"))
}

func TestCheckTokenWithKnownHash(t *testing.T) {
	// bcrypt of "changeme"
	known := "$2a$10$uejoNCSLZ9YkKOZriLlSGeg0pm/nuGVS3nRuSPyYuk/Z7HJHKBhGO"

	assert.True(t, CheckToken("changeme", known))
	assert.False(t, CheckToken("admin", known))
}

func TestParseToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{name: "plain", header: "abc123", want: "abc123"},
		{name: "bearer", header: "Bearer abc123", want: "abc123"},
		{name: "lowercase bearer", header: "bearer abc123", want: "abc123"},
		{name: "surrounding space", header: "  abc123 ", want: "abc123"},
		{name: "empty", header: "", wantErr: ErrMissingToken},
		{name: "bearer only", header: "Bearer ", wantErr: ErrMissingToken},
		{name: "inner space", header: "abc 123", wantErr: ErrMalformedToken},
		{name: "non ascii", header: "tökén", wantErr: ErrMalformedToken},
		{name: "control char", header: "abc\x01", wantErr: ErrMalformedToken},
		{name: "long", header: strings.Repeat("a", 73), want: strings.Repeat("a", 73)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseToken(tt.header)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenVerifier(t *testing.T) {
	hashes, err := HashTokens([]string{"first", "", "  second  "})
	require.NoError(t, err)
	require.Len(t, hashes, 2)

	v := NewTokenVerifier(append(hashes, "", "  "))
	assert.Equal(t, 2, v.Len())

	assert.True(t, v.Verify("first"))
	assert.True(t, v.Verify("second"))
	assert.False(t, v.Verify("third"))
	assert.False(t, v.Verify(""))
}

func TestTokenVerifier_CachesVerdicts(t *testing.T) {
	hash, err := HashToken("good")
	require.NoError(t, err)

	v := NewTokenVerifier([]string{hash, hash, hash})
	calls := 0
	v.compare = func(token, hash string) bool {
		calls++
		return CheckToken(token, hash)
	}

	assert.False(t, v.Verify("wrong"))
	assert.Equal(t, 3, calls)
	assert.False(t, v.Verify("wrong"))
	assert.Equal(t, 3, calls)

	assert.True(t, v.Verify("good"))
	assert.Equal(t, 4, calls)
	assert.True(t, v.Verify("good"))
	assert.Equal(t, 4, calls)
}

func TestTokenVerifier_CacheIsBounded(t *testing.T) {
	v := NewTokenVerifier([]string{"unused"})
	v.compare = func(string, string) bool { return false }

	for i := 0; i < maxCachedTokens+10; i++ {
		v.Verify(fmt.Sprintf("token-%d", i))
	}
	assert.LessOrEqual(t, len(v.verdicts), maxCachedTokens)
}

func TestTokenVerifier_RejectsOverLongWithoutHashing(t *testing.T) {
	v := NewTokenVerifier([]string{"unused"})
	v.compare = func(string, string) bool {
		t.Fatal("over-long token reached bcrypt")
		return true
	}

	assert.False(t, v.Verify(strings.Repeat("a", maxTokenLength+1)))
}

func TestHashTokens_RejectsOverLong(t *testing.T) {
	_, err := HashTokens([]string{strings.Repeat("a", maxTokenLength+1)})
	assert.ErrorIs(t, err, ErrMalformedToken)
	assert.ErrorContains(t, err, "token 1")
}

func TestHashTokens_RejectsMalformed(t *testing.T) {
	_, err := HashTokens([]string{"good", "has space"})
	assert.ErrorIs(t, err, ErrMalformedToken)
	assert.ErrorContains(t, err, "token 2")
}
