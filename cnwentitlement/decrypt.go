package cnwentitlement

import (
	"bytes"
	"context"
	"crypto"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Decrypter turns a license token into the plaintext license JSON. The
// schema prefix has already been stripped from token.
type Decrypter interface {
	Decrypt(ctx context.Context, token string) ([]byte, error)
}

// DecrypterFunc adapts a function to the Decrypter interface.
type DecrypterFunc func(ctx context.Context, token string) ([]byte, error)

func (f DecrypterFunc) Decrypt(ctx context.Context, token string) ([]byte, error) {
	return f(ctx, token)
}

// SignedEnvelope is the decoded form of a token accepted by SignedDecrypter.
type SignedEnvelope struct {
	License   json.RawMessage `json:"license"`
	Signature string          `json:"signature"`
	PublicKey string          `json:"public_key,omitempty"`
}

// SignedDecrypter verifies Ed25519-signed license envelopes. A token is the
// standard base64 encoding of a SignedEnvelope.
type SignedDecrypter struct {
	trustedPublicKey string // base64-encoded Ed25519 public key
}

// NewSignedDecrypter creates a decrypter for Ed25519-signed envelopes.
func NewSignedDecrypter(opts ...SignedOption) *SignedDecrypter {
	d := &SignedDecrypter{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decrypt verifies the envelope and returns the raw license JSON.
//
// The verification process:
//  1. Decode the base64 token and parse the envelope
//  2. Decode the public key and signature from base64
//  3. Verify ed25519.Verify(pubKey, rawLicenseBytes, signature)
func (d *SignedDecrypter) Decrypt(_ context.Context, token string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: base64 decode: %v", ErrDecryption, err)
	}

	var env SignedEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	if !isJSONObject(env.License) || env.Signature == "" {
		return nil, ErrDecryption
	}

	// Determine which public key to use
	pubKeyBase64 := env.PublicKey
	if d.trustedPublicKey != "" {
		pubKeyBase64 = d.trustedPublicKey
	}
	if pubKeyBase64 == "" {
		return nil, ErrPublicKeyInvalid
	}

	pubKeyBytes, err := base64.StdEncoding.DecodeString(pubKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: base64 decode: %v", ErrPublicKeyInvalid, err)
	}
	if len(pubKeyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: key length %d, expected %d", ErrPublicKeyInvalid, len(pubKeyBytes), ed25519.PublicKeySize)
	}

	sigBytes, err := base64.StdEncoding.DecodeString(env.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: signature decode: %v", ErrSignatureInvalid, err)
	}

	// The issuer signs the exact bytes of the "license" field.
	if !ed25519.Verify(ed25519.PublicKey(pubKeyBytes), env.License, sigBytes) {
		return nil, ErrSignatureInvalid
	}
	return env.License, nil
}

// SealEnvelope signs license with priv and encodes it as a token accepted by
// SignedDecrypter. It is used by issuers and tests.
func SealEnvelope(priv ed25519.PrivateKey, license []byte, embedKey bool) (string, error) {
	env := SignedEnvelope{
		License:   json.RawMessage(license),
		Signature: base64.StdEncoding.EncodeToString(ed25519.Sign(priv, license)),
	}
	if embedKey {
		pub, ok := priv.Public().(ed25519.PublicKey)
		if !ok {
			return "", ErrPublicKeyInvalid
		}
		env.PublicKey = base64.StdEncoding.EncodeToString(pub)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// licenseClaims carries the license document in the "license" claim.
type licenseClaims struct {
	jwt.RegisteredClaims
	License json.RawMessage `json:"license"`
}

// JWTDecrypter verifies license tokens issued as signed JWTs.
type JWTDecrypter struct {
	key     crypto.PublicKey
	methods []string
	issuer  string
}

// NewJWTDecrypter creates a decrypter that verifies tokens with key. key is
// an *rsa.PublicKey for RS256 or an ed25519.PublicKey for EdDSA.
func NewJWTDecrypter(key crypto.PublicKey, opts ...JWTOption) *JWTDecrypter {
	d := &JWTDecrypter{
		key:     key,
		methods: []string{jwt.SigningMethodRS256.Alg(), jwt.SigningMethodEdDSA.Alg()},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decrypt verifies the JWT and returns its license claim.
func (d *JWTDecrypter) Decrypt(_ context.Context, token string) ([]byte, error) {
	var parserOpts []jwt.ParserOption
	if d.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(d.issuer))
	}

	var claims licenseClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		// Checked here rather than with jwt.WithValidMethods, which reports a
		// disallowed alg as an invalid signature.
		if !slices.Contains(d.methods, t.Method.Alg()) {
			return nil, fmt.Errorf("%w %q", errMethodNotAllowed, t.Method.Alg())
		}
		return d.key, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) && !errors.Is(err, errMethodNotAllowed) {
			return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	if !isJSONObject(claims.License) {
		return nil, fmt.Errorf("%w: missing license claim", ErrDecryption)
	}
	return claims.License, nil
}

var errMethodNotAllowed = errors.New("signing method not allowed")

// isJSONObject reports whether raw holds a JSON object, as opposed to
// nothing, null or a scalar.
func isJSONObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
