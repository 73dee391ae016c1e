package session

import (
	"crypto/ed25519"
	"encoding/hex"
	"strings"
	"time"

	"portal/cmd/security/token"

	"github.com/golang-jwt/jwt/v5"
)

// jwtClaims is the JWT payload. "tu" (token use) binds the purpose; iat_ms
// keeps millisecond issue time, which the registered "iat" truncates.
type jwtClaims struct {
	Use        string   `json:"tu"`
	Roles      []string `json:"roles,omitempty"`
	SiteID     string   `json:"site,omitempty"`
	IssuedAtMs int64    `json:"iat_ms"`
	jwt.RegisteredClaims
}

type jwtKeyPair struct {
	sign   any
	verify any
}

type jwtFormat struct {
	method jwt.SigningMethod
	keys   map[purpose]jwtKeyPair
}

func newJWTFormat(cfg Config) (*jwtFormat, error) {
	f := &jwtFormat{keys: make(map[purpose]jwtKeyPair, 2)}

	switch cfg.SigningMethod {
	case MethodHS256:
		f.method = jwt.SigningMethodHS256
		for _, p := range []purpose{purposeAccess, purposeRefresh} {
			k, err := token.DeriveKey(cfg.Secret, string(p))
			if err != nil {
				return nil, ErrConfig
			}
			f.keys[p] = jwtKeyPair{sign: k, verify: k}
		}
	case MethodEdDSA:
		priv, err := parseEd25519PrivateKey(cfg.Ed25519PrivateKeyHex)
		if err != nil {
			return nil, ErrConfig
		}
		pub, ok := priv.Public().(ed25519.PublicKey)
		if !ok {
			return nil, ErrConfig
		}
		f.method = jwt.SigningMethodEdDSA
		// One keypair; the "tu" claim carries the purpose binding.
		f.keys[purposeAccess] = jwtKeyPair{sign: priv, verify: pub}
		f.keys[purposeRefresh] = jwtKeyPair{sign: priv, verify: pub}
	default:
		return nil, ErrConfig
	}

	return f, nil
}

func (f *jwtFormat) sign(c claimSet) (string, error) {
	k, ok := f.keys[c.Purpose]
	if !ok {
		return "", ErrInvalidClaims
	}

	claims := jwtClaims{
		Use:        string(c.Purpose),
		Roles:      rolesToStrings(c.Roles),
		SiteID:     c.SiteID,
		IssuedAtMs: c.IssuedAt.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        c.ID,
			Subject:   c.Subject,
			Issuer:    c.Issuer,
			IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
		},
	}
	return jwt.NewWithClaims(f.method, claims).SignedString(k.sign)
}

func (f *jwtFormat) parse(raw string, p purpose) (claimSet, error) {
	k, ok := f.keys[p]
	if !ok {
		return claimSet{}, ErrInvalidToken
	}

	var claims jwtClaims
	// Time-based claims are checked by the codec against its own clock once the
	// signature has been accepted here.
	tok, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return k.verify, nil
	},
		jwt.WithValidMethods([]string{f.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || tok == nil || !tok.Valid {
		return claimSet{}, ErrInvalidToken
	}
	if claims.ExpiresAt == nil {
		return claimSet{}, ErrInvalidToken
	}

	roles, err := rolesFromStrings(claims.Roles)
	if err != nil {
		return claimSet{}, ErrInvalidToken
	}

	var iat time.Time
	switch {
	case claims.IssuedAtMs > 0:
		iat = time.UnixMilli(claims.IssuedAtMs).UTC()
	case claims.IssuedAt != nil:
		iat = claims.IssuedAt.UTC()
	}

	return claimSet{
		ID:        claims.ID,
		Purpose:   purpose(claims.Use),
		Subject:   claims.Subject,
		Roles:     roles,
		SiteID:    claims.SiteID,
		Issuer:    claims.Issuer,
		IssuedAt:  iat,
		ExpiresAt: claims.ExpiresAt.UTC(),
	}, nil
}

func parseEd25519PrivateKey(hexKey string) (ed25519.PrivateKey, error) {
	b, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, err
	}
	switch len(b) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(b), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(b), nil
	default:
		return nil, ErrConfig
	}
}
