package odin

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	"pet-rehoming/internal/ports/auth"
)

const (
	defaultClaimsTTL = 30 * time.Second
	maxCachedTokens  = 10_000
)

type cachedClaims struct {
	claims  auth.Claims
	expires time.Time
}

// Verifier implementa auth.AuthVerifier contra Odin. Los tokens ya verificados
// se recuerdan un rato (por hash, nunca el token crudo) para no llamar a Odin
// en cada request de un mismo flujo.
type Verifier struct {
	client *Client
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[[sha256.Size]byte]cachedClaims
}

func NewVerifier(client *Client) *Verifier {
	return &Verifier{
		client: client,
		ttl:    defaultClaimsTTL,
		now:    time.Now,
		cache:  make(map[[sha256.Size]byte]cachedClaims),
	}
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	if v == nil || v.client == nil {
		return auth.Claims{}, ErrOdinNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrOdinUnauthorized
	}

	key := sha256.Sum256([]byte(token))
	if c, ok := v.lookup(key); ok {
		return c, nil
	}

	claims, err := v.client.VerifyToken(ctx, token)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("odin verify failed: %w", err)
	}
	v.remember(key, claims)
	return claims, nil
}

func (v *Verifier) lookup(key [sha256.Size]byte) (auth.Claims, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.cache[key]
	if !ok {
		return auth.Claims{}, false
	}
	if !v.now().Before(e.expires) {
		delete(v.cache, key)
		return auth.Claims{}, false
	}
	return e.claims, true
}

func (v *Verifier) remember(key [sha256.Size]byte, c auth.Claims) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.cache) >= maxCachedTokens {
		clear(v.cache)
	}
	v.cache[key] = cachedClaims{claims: c, expires: v.now().Add(v.ttl)}
}
