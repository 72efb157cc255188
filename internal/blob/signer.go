package blob

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pitabwire/cmsadmin/model"
)

const urlIssuer = "cmsadmin"

// urlClaims are the claims of a signed download link.
type urlClaims struct {
	Path string `json:"path"`
	jwt.RegisteredClaims
}

// URLSigner issues and verifies HS256 tokens that grant read access to one
// stored file until they expire.
type URLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewURLSigner creates a signer. The secret must not be empty.
func NewURLSigner(secret string, ttl time.Duration) (*URLSigner, error) {
	if secret == "" {
		return nil, errors.New("blob: url signing secret is empty")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &URLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Sign returns a token for path and the time it expires.
func (s *URLSigner) Sign(path string) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := &urlClaims{
		Path: path,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    urlIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("blob: sign url: %w", err)
	}
	return signed, expires, nil
}

// Verify checks the token signature, issuer and expiry and returns the path
// it grants. Any failure is FORBIDDEN.
func (s *URLSigner) Verify(token string) (string, error) {
	claims := &urlClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(urlIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", model.NewForbiddenError("download link has expired")
		}
		return "", model.NewForbiddenError("download link is invalid")
	}
	return claims.Path, nil
}
