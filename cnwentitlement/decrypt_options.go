package cnwentitlement

// SignedOption configures a SignedDecrypter.
type SignedOption func(*SignedDecrypter)

// WithTrustedPublicKey sets a trusted Ed25519 public key (base64-encoded).
// When set, the decrypter uses this key instead of the one embedded in the envelope.
// This is recommended for production to prevent key substitution attacks.
func WithTrustedPublicKey(base64PubKey string) SignedOption {
	return func(d *SignedDecrypter) {
		d.trustedPublicKey = base64PubKey
	}
}

// JWTOption configures a JWTDecrypter.
type JWTOption func(*JWTDecrypter)

// WithSigningMethods restricts the accepted "alg" header values.
// Default is RS256 and EdDSA.
func WithSigningMethods(algs ...string) JWTOption {
	return func(d *JWTDecrypter) {
		d.methods = algs
	}
}

// WithIssuer requires the token's "iss" claim to equal issuer.
func WithIssuer(issuer string) JWTOption {
	return func(d *JWTDecrypter) {
		d.issuer = issuer
	}
}
