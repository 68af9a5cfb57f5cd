package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Signer is our interface for anything that can sign JWTs with an asymmetric
// key. The service itself never issues IdP tokens; signers back the stub
// identity providers used in tests and local development.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	PublicJWK() JWK
}

type keySigner struct {
	kid    string
	method jwt.SigningMethod
	key    crypto.Signer
	jwk    JWK
}

// NewSigner loads a private key from PEM and picks the algorithm from the key
// type: RSA -> RS256, P-256 -> ES256, Ed25519 -> EdDSA. Both PKCS1 and PKCS8
// RSA keys are accepted; EC and Ed25519 keys must be PKCS8.
func NewSigner(kid string, pemKey []byte) (Signer, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM")
	}

	var priv any
	var err error
	switch block.Type {
	case "RSA PRIVATE KEY":
		priv, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		priv, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("jwtx: unsupported PEM type %q", block.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse private key: %w", err)
	}

	return newKeySigner(kid, priv)
}

// GenerateSigner creates a signer with a fresh in-memory key.
func GenerateSigner(kid, alg string) (Signer, error) {
	var priv any
	var err error
	switch alg {
	case AlgorithmRS256:
		priv, err = rsa.GenerateKey(rand.Reader, 2048)
	case AlgorithmES256:
		priv, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case AlgorithmEdDSA:
		_, priv, err = ed25519.GenerateKey(rand.Reader)
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q", alg)
	}
	if err != nil {
		return nil, fmt.Errorf("jwtx: generate %s key: %w", alg, err)
	}
	return newKeySigner(kid, priv)
}

func newKeySigner(kid string, priv any) (Signer, error) {
	switch k := priv.(type) {
	case *rsa.PrivateKey:
		return &keySigner{
			kid:    kid,
			method: jwt.SigningMethodRS256,
			key:    k,
			jwk:    NewRSAJWK(kid, "sig", AlgorithmRS256, &k.PublicKey),
		}, nil
	case *ecdsa.PrivateKey:
		if k.Curve != elliptic.P256() {
			return nil, errors.New("jwtx: only P-256 EC keys are supported")
		}
		return &keySigner{
			kid:    kid,
			method: jwt.SigningMethodES256,
			key:    k,
			jwk:    NewES256JWK(kid, "sig", AlgorithmES256, &k.PublicKey),
		}, nil
	case ed25519.PrivateKey:
		return &keySigner{
			kid:    kid,
			method: jwt.SigningMethodEdDSA,
			key:    k,
			jwk:    NewEd25519JWK(kid, "sig", AlgorithmEdDSA, k.Public().(ed25519.PublicKey)),
		}, nil
	default:
		return nil, fmt.Errorf("jwtx: unsupported private key type %T", priv)
	}
}

func (s *keySigner) Alg() string    { return s.method.Alg() }
func (s *keySigner) KID() string    { return s.kid }
func (s *keySigner) PublicJWK() JWK { return s.jwk }

// Sign takes your claims and turns them into a signed JWT string.
func (s *keySigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}
