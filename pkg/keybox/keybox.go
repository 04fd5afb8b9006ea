package keybox

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const defaultIssuer = "studio"

// Keyfob signs session tokens with an ECDSA private key.
type Keyfob struct {
	issuer     string
	publicKey  crypto.PublicKey
	privateKey crypto.PrivateKey
}

// Validator verifies tokens signed by a matching Keyfob.
type Validator struct {
	issuer    string
	publicKey crypto.PublicKey
}

// NewKeyfob creates a new Keyfob from an existing private key.
func NewKeyfob(privateKey crypto.PrivateKey) (*Keyfob, error) {
	if privateKey == nil {
		return nil, errors.New("empty private key supplied")
	}
	edpk, ok := privateKey.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not an ecdsa private key")
	}
	kf := &Keyfob{
		issuer:     defaultIssuer,
		privateKey: edpk,
		publicKey:  edpk.Public(),
	}
	return kf, nil
}

// GenerateKeyfob generates a new Keyfob containing a public and a private key.
func GenerateKeyfob() (*Keyfob, error) {
	pvk, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("unable to generate private key: %w", err)
	}
	return NewKeyfob(pvk)
}

// KeyfobFromString creates a Keyfob from an existing private key supplied as a base64 string.
func KeyfobFromString(privateKey string) (*Keyfob, error) {
	pvk, err := privateKeyFromString(privateKey)
	if err != nil {
		return nil, fmt.Errorf("unable to load private key from string: %w", err)
	}
	return NewKeyfob(pvk)
}

// WithIssuer returns a copy of the Keyfob that stamps tokens with issuer.
func (kf Keyfob) WithIssuer(issuer string) *Keyfob {
	kf.issuer = issuer
	return &kf
}

// GenerateToken builds a token for subject expiring at expiry, carrying extra string claims
// given as key/value pairs.
func (kf Keyfob) GenerateToken(subject string, expiry time.Time, fields ...string) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is required")
	}
	b := jwt.NewBuilder().
		Issuer(kf.issuer).
		Subject(subject).
		IssuedAt(time.Now()).
		Expiration(expiry)
	for i := 0; i+1 < len(fields); i += 2 {
		b = b.Claim(fields[i], fields[i+1])
	}
	t, err := b.Build()
	if err != nil {
		return "", fmt.Errorf("unable to build token: %w", err)
	}

	bt, err := jwt.Sign(t, jwt.WithKey(jwa.ES256, kf.privateKey))
	if err != nil {
		return "", fmt.Errorf("unable to sign token: %w", err)
	}

	return string(bt), nil
}

func (kf Keyfob) PublicKey() crypto.PublicKey {
	return kf.publicKey
}

// Validator returns a Validator for tokens issued by this Keyfob.
func (kf Keyfob) Validator() *Validator {
	return &Validator{publicKey: kf.publicKey, issuer: kf.issuer}
}

// ParseToken verifies signature, expiry and issuer of token.
func (v Validator) ParseToken(token string) (jwt.Token, error) {
	t, err := jwt.Parse(
		[]byte(token),
		jwt.WithKey(jwa.ES256, v.publicKey),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to parse token: %w", err)
	}
	if t.Subject() == "" {
		return nil, errors.New("token has no subject")
	}
	return t, nil
}

// StringClaim returns a private string claim of t or an empty string.
func StringClaim(t jwt.Token, name string) string {
	v, ok := t.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// privateKeyFromString decodes a base64-encoded PEM private key.
func privateKeyFromString(key string) (any, error) {
	privateKeyBytes, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, err
	}

	privateKeyBlock, _ := pem.Decode(privateKeyBytes)
	if privateKeyBlock == nil {
		return nil, errors.New("no PEM block found")
	}
	return x509.ParseECPrivateKey(privateKeyBlock.Bytes)
}
