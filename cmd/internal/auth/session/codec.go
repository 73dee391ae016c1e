package session

import (
	"errors"
	"strings"
	"time"
)

// Codec issues and verifies access and refresh tokens. It performs no I/O and
// is safe for concurrent use.
type Codec interface {
	IssueAccessToken(subjectID string, roles []Role, siteID string, now time.Time) (string, AccessClaims, error)
	IssueRefreshToken(subjectID string, roles []Role, siteID string, now time.Time) (string, RefreshClaims, error)

	// VerifyAccessToken returns ErrInvalidToken or ErrTokenExpired on failure.
	// On ErrTokenExpired the returned claims are populated.
	VerifyAccessToken(token string, now time.Time) (AccessClaims, error)
	// VerifyRefreshToken follows the same contract as VerifyAccessToken.
	VerifyRefreshToken(token string, now time.Time) (RefreshClaims, error)
}

// tokenFormat is a wire encoding. parse must authenticate the token (and its
// purpose binding) before returning any claims.
type tokenFormat interface {
	sign(c claimSet) (string, error)
	parse(token string, p purpose) (claimSet, error)
}

type codec struct {
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	clockSkew  time.Duration

	format tokenFormat
}

// NewCodec builds the Codec selected by cfg.Format.
func NewCodec(cfg Config) (Codec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		f   tokenFormat
		err error
	)
	switch cfg.Format {
	case FormatJWT:
		f, err = newJWTFormat(cfg)
	case FormatPaseto:
		f, err = newPasetoV4PublicFormat(cfg)
	default:
		err = ErrConfig
	}
	if err != nil {
		return nil, err
	}

	return &codec{
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		clockSkew:  cfg.ClockSkew,
		format:     f,
	}, nil
}

func (c *codec) IssueAccessToken(subjectID string, roles []Role, siteID string, now time.Time) (string, AccessClaims, error) {
	cs, err := newClaimSet(purposeAccess, c.issuer, subjectID, roles, siteID, now, c.accessTTL)
	if err != nil {
		return "", AccessClaims{}, err
	}
	tok, err := c.format.sign(cs)
	if err != nil {
		return "", AccessClaims{}, err
	}
	return tok, cs.access(), nil
}

func (c *codec) IssueRefreshToken(subjectID string, roles []Role, siteID string, now time.Time) (string, RefreshClaims, error) {
	cs, err := newClaimSet(purposeRefresh, c.issuer, subjectID, roles, siteID, now, c.refreshTTL)
	if err != nil {
		return "", RefreshClaims{}, err
	}
	tok, err := c.format.sign(cs)
	if err != nil {
		return "", RefreshClaims{}, err
	}
	return tok, cs.refresh(), nil
}

func (c *codec) VerifyAccessToken(token string, now time.Time) (AccessClaims, error) {
	cs, err := c.verify(token, purposeAccess, now)
	if err != nil && !errors.Is(err, ErrTokenExpired) {
		return AccessClaims{}, err
	}
	return cs.access(), err
}

func (c *codec) VerifyRefreshToken(token string, now time.Time) (RefreshClaims, error) {
	cs, err := c.verify(token, purposeRefresh, now)
	if err != nil && !errors.Is(err, ErrTokenExpired) {
		return RefreshClaims{}, err
	}
	return cs.refresh(), err
}

func (c *codec) verify(token string, p purpose, now time.Time) (claimSet, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return claimSet{}, ErrInvalidToken
	}
	if now.IsZero() {
		now = time.Now()
	}

	// Signature first: nothing about a forged token, expiry included, is looked at.
	cs, err := c.format.parse(token, p)
	if err != nil {
		return claimSet{}, ErrInvalidToken
	}
	if cs.Purpose != p || cs.Subject == "" || cs.Issuer != c.issuer || cs.ExpiresAt.IsZero() || cs.IssuedAt.IsZero() {
		return claimSet{}, ErrInvalidToken
	}
	if err := cs.checkTimes(now, c.clockSkew); err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return cs, err
		}
		return claimSet{}, err
	}
	return cs, nil
}
