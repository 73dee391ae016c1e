package session

import (
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

type pasetoV4PublicFormat struct {
	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
	issuer string
}

// newPasetoV4PublicFormat builds a PASETO v4.public encoding from an Ed25519 secret key.
//
// The token purpose is bound as the implicit assertion, so an access token
// fails signature verification when presented as a refresh token.
func newPasetoV4PublicFormat(cfg Config) (*pasetoV4PublicFormat, error) {
	secret, err := paseto.NewV4AsymmetricSecretKeyFromHex(cfg.PasetoV4SecretKeyHex)
	if err != nil {
		return nil, ErrConfig
	}
	return &pasetoV4PublicFormat{
		secret: secret,
		public: secret.Public(),
		issuer: cfg.Issuer,
	}, nil
}

func (f *pasetoV4PublicFormat) sign(c claimSet) (string, error) {
	tok := paseto.NewToken()
	tok.SetJti(c.ID)
	tok.SetIssuer(c.Issuer)
	tok.SetSubject(c.Subject)
	tok.SetIssuedAt(c.IssuedAt)
	tok.SetNotBefore(c.IssuedAt)
	tok.SetExpiration(c.ExpiresAt)
	tok.SetString("tu", string(c.Purpose))
	if c.SiteID != "" {
		tok.SetString("site", c.SiteID)
	}
	if err := tok.Set("roles", rolesToStrings(c.Roles)); err != nil {
		return "", err
	}
	if err := tok.Set("iat_ms", c.IssuedAt.UnixMilli()); err != nil {
		return "", err
	}

	return tok.V4Sign(f.secret, []byte(c.Purpose)), nil
}

func (f *pasetoV4PublicFormat) parse(raw string, p purpose) (claimSet, error) {
	// Expiry is evaluated by the codec after this returns, so the parser must not reject on it.
	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.IssuedBy(f.issuer))

	parsed, err := parser.ParseV4Public(f.public, raw, []byte(p))
	if err != nil {
		return claimSet{}, ErrInvalidToken
	}

	exp, err := parsed.GetExpiration()
	if err != nil {
		return claimSet{}, ErrInvalidToken
	}
	sub, err := parsed.GetSubject()
	if err != nil {
		return claimSet{}, ErrInvalidToken
	}
	use, err := parsed.GetString("tu")
	if err != nil {
		return claimSet{}, ErrInvalidToken
	}

	var iatMs int64
	if err := parsed.Get("iat_ms", &iatMs); err != nil || iatMs <= 0 {
		return claimSet{}, ErrInvalidToken
	}

	var rawRoles []string
	if err := parsed.Get("roles", &rawRoles); err != nil {
		return claimSet{}, ErrInvalidToken
	}
	roles, err := rolesFromStrings(rawRoles)
	if err != nil {
		return claimSet{}, ErrInvalidToken
	}

	iss, _ := parsed.GetIssuer()
	jti, _ := parsed.GetJti()
	site, _ := parsed.GetString("site")

	return claimSet{
		ID:        jti,
		Purpose:   purpose(use),
		Subject:   sub,
		Roles:     roles,
		SiteID:    site,
		Issuer:    iss,
		IssuedAt:  time.UnixMilli(iatMs).UTC(),
		ExpiresAt: exp.UTC(),
	}, nil
}
