package session

import (
	"crypto/ed25519"

	"portal/cmd/security/token"

	paseto "aidanwoods.dev/go-paseto"
)

const fingerprintPurpose = "fingerprint"

// KeyFingerprint identifies the signing key so operators can confirm two
// instances share it. Asymmetric keys are identified by their public half;
// HS256 by a subkey derived for this purpose only, never by the secret itself.
// It returns "" when the key material does not parse.
func KeyFingerprint(cfg Config) string {
	switch {
	case cfg.Format == FormatPaseto:
		sk, err := paseto.NewV4AsymmetricSecretKeyFromHex(cfg.PasetoV4SecretKeyHex)
		if err != nil {
			return ""
		}
		return token.Fingerprint(sk.Public().ExportBytes())
	case cfg.SigningMethod == MethodEdDSA:
		priv, err := parseEd25519PrivateKey(cfg.Ed25519PrivateKeyHex)
		if err != nil {
			return ""
		}
		pub, ok := priv.Public().(ed25519.PublicKey)
		if !ok {
			return ""
		}
		return token.Fingerprint(pub)
	default:
		k, err := token.DeriveKey(cfg.Secret, fingerprintPurpose)
		if err != nil {
			return ""
		}
		return token.Fingerprint(k)
	}
}
