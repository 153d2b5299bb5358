package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt cost factor used for token hashing
const DefaultCost = bcrypt.DefaultCost

// maxTokenLength is the longest input bcrypt accepts.
const maxTokenLength = 72

// maxCachedTokens bounds the verdict cache. It is reset when full.
const maxCachedTokens = 1024

var (
	ErrMissingToken   = errors.New("missing token")
	ErrMalformedToken = errors.New("malformed token")
)

// HashToken generates a bcrypt hash from a plaintext caller token
func HashToken(token string) (string, error) {
	if len(token) > maxTokenLength {
		return "", fmt.Errorf("%w: longer than %d bytes", ErrMalformedToken, maxTokenLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(hash), nil
}

// CheckToken compares a plaintext token with a bcrypt hash
func CheckToken(token, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
	return err == nil
}

// ParseToken extracts the token from an Authorization header value. The
// "Bearer " scheme is optional. Tokens must be printable ASCII without
// spaces. Length is not checked here; over-long tokens never verify.
func ParseToken(header string) (string, error) {
	token := strings.TrimSpace(header)
	if scheme, rest, ok := strings.Cut(token, " "); ok && strings.EqualFold(scheme, "bearer") {
		token = strings.TrimSpace(rest)
	} else if strings.EqualFold(token, "bearer") {
		token = ""
	}
	if token == "" {
		return "", ErrMissingToken
	}
	for i := 0; i < len(token); i++ {
		if token[i] <= ' ' || token[i] > '~' {
			return "", ErrMalformedToken
		}
	}
	return token, nil
}

// TokenVerifier checks caller tokens against an allow-list of bcrypt hashes.
// Verdicts are cached by the SHA-256 of the presented token.
type TokenVerifier struct {
	hashes  []string
	compare func(token, hash string) bool

	mu       sync.Mutex
	verdicts map[[sha256.Size]byte]bool
}

func NewTokenVerifier(hashes []string) *TokenVerifier {
	kept := make([]string, 0, len(hashes))
	for _, h := range hashes {
		if h = strings.TrimSpace(h); h != "" {
			kept = append(kept, h)
		}
	}
	return &TokenVerifier{
		hashes:   kept,
		compare:  CheckToken,
		verdicts: make(map[[sha256.Size]byte]bool),
	}
}

// Verify reports whether token matches any allowed hash.
func (v *TokenVerifier) Verify(token string) bool {
	if token == "" || len(token) > maxTokenLength {
		return false
	}

	key := sha256.Sum256([]byte(token))
	v.mu.Lock()
	ok, cached := v.verdicts[key]
	v.mu.Unlock()
	if cached {
		return ok
	}

	ok = v.match(token)

	v.mu.Lock()
	if len(v.verdicts) >= maxCachedTokens {
		clear(v.verdicts)
	}
	v.verdicts[key] = ok
	v.mu.Unlock()

	return ok
}

func (v *TokenVerifier) match(token string) bool {
	for _, h := range v.hashes {
		if v.compare(token, h) {
			return true
		}
	}
	return false
}

func (v *TokenVerifier) Len() int {
	return len(v.hashes)
}

// HashTokens hashes each plaintext token, skipping blank entries.
func HashTokens(tokens []string) ([]string, error) {
	hashes := make([]string, 0, len(tokens))
	for i, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, err := ParseToken(t); err != nil {
			return nil, fmt.Errorf("token %d: %w", i+1, err)
		}
		h, err := HashToken(t)
		if err != nil {
			return nil, fmt.Errorf("token %d: %w", i+1, err)
		}
		hashes = append(hashes, h)
	}
	return hashes, nil
}
