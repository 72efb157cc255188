package transport

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultJWKSTTL       = time.Hour
	jwksMinRefresh       = 5 * time.Minute
	jwksFetchTimeout     = 10 * time.Second
	jwksMaxBody          = 1 << 20
	jwksRefreshFlightKey = "jwks"
)

// errKeyTypeIgnored marks keys that cannot verify signatures here, such as
// symmetric "oct" keys.
var errKeyTypeIgnored = errors.New("key type not used for signatures")

// JWKSClient keeps the identity provider's signing keys. Keys are refetched
// when the set is older than the TTL or an unknown kid shows up, but never
// more often than minRefresh; concurrent refetches share one request.
type JWKSClient struct {
	url    string
	http   *http.Client
	logger *zap.Logger
	flight singleflight.Group

	ttl        time.Duration
	minRefresh time.Duration

	mu        sync.RWMutex
	keys      map[string]crypto.PublicKey
	fetchedAt time.Time
}

// NewJWKSClient returns a client for the key set at url. A non-positive ttl
// selects one hour.
func NewJWKSClient(url string, ttl time.Duration, logger *zap.Logger) *JWKSClient {
	if ttl <= 0 {
		ttl = defaultJWKSTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JWKSClient{
		url:        url,
		http:       &http.Client{Timeout: jwksFetchTimeout},
		logger:     logger.Named("jwks"),
		ttl:        ttl,
		minRefresh: jwksMinRefresh,
		keys:       map[string]crypto.PublicKey{},
	}
}

func (c *JWKSClient) cached(kid string) (key crypto.PublicKey, ok, stale bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok = c.keys[kid]
	return key, ok, time.Since(c.fetchedAt) > c.ttl
}

// GetKey returns the verification key for kid. If a refetch fails but the
// key was already known, the known key is used and the failure is logged.
func (c *JWKSClient) GetKey(ctx context.Context, kid string) (crypto.PublicKey, error) {
	if key, ok, stale := c.cached(kid); ok && !stale {
		return key, nil
	}

	_, err, _ := c.flight.Do(jwksRefreshFlightKey, func() (any, error) {
		return nil, c.refresh(ctx)
	})

	key, ok, _ := c.cached(kid)
	if ok {
		if err != nil {
			c.logger.Warn("key set refresh failed, using cached key", zap.String("kid", kid), zap.Error(err))
		}
		return key, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jwks: fetch failed: %w", err)
	}
	return nil, fmt.Errorf("jwks: unknown signing key %q", kid)
}

func (c *JWKSClient) refresh(ctx context.Context) error {
	c.mu.RLock()
	recent := len(c.keys) > 0 && time.Since(c.fetchedAt) < c.minRefresh
	c.mu.RUnlock()
	if recent {
		return nil
	}

	set, err := c.fetch(ctx)
	if err != nil {
		return err
	}

	keys := make(map[string]crypto.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.Kid == "" {
			continue
		}
		key, err := jwk.publicKey()
		switch {
		case errors.Is(err, errKeyTypeIgnored):
		case err != nil:
			c.logger.Warn("skipping key", zap.String("kid", jwk.Kid), zap.Error(err))
		default:
			keys[jwk.Kid] = key
		}
	}

	c.mu.Lock()
	c.keys, c.fetchedAt = keys, time.Now()
	c.mu.Unlock()
	c.logger.Debug("key set refreshed", zap.Int("keys", len(keys)))
	return nil
}

func (c *JWKSClient) fetch(ctx context.Context) (*jwkSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks: unexpected status %d", resp.StatusCode)
	}

	var set jwkSet
	if err := json.NewDecoder(io.LimitReader(resp.Body, jwksMaxBody)).Decode(&set); err != nil {
		return nil, fmt.Errorf("jwks: parse error: %w", err)
	}
	return &set, nil
}

type jwkSet struct {
	Keys []jsonWebKey `json:"keys"`
}

// jsonWebKey holds the RFC 7517 members needed for RSA and EC public keys.
type jsonWebKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	N   string `json:"n"`
	E   string `json:"e"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

var namedCurves = map[string]elliptic.Curve{
	"P-256": elliptic.P256(),
	"P-384": elliptic.P384(),
	"P-521": elliptic.P521(),
}

func (k jsonWebKey) publicKey() (crypto.PublicKey, error) {
	switch k.Kty {
	case "RSA":
		n, err := b64Int("n", k.N)
		if err != nil {
			return nil, err
		}
		e, err := b64Int("e", k.E)
		if err != nil {
			return nil, err
		}
		return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
	case "EC":
		curve, ok := namedCurves[k.Crv]
		if !ok {
			return nil, fmt.Errorf("unsupported curve %q", k.Crv)
		}
		x, err := b64Int("x", k.X)
		if err != nil {
			return nil, err
		}
		y, err := b64Int("y", k.Y)
		if err != nil {
			return nil, err
		}
		return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
	}
	return nil, errKeyTypeIgnored
}

func b64Int(member, s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("missing %s", member)
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", member, err)
	}
	return new(big.Int).SetBytes(b), nil
}
