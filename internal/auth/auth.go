// Package auth supplies the access tokens presented when a transport
// connects, and renews them when the service rejects one.
package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Errors
var (
	ErrInvalidKey  = errors.New("invalid API key")
	ErrNoToken     = errors.New("no token available")
	ErrCannotRenew = errors.New("token cannot be renewed: no means to mint a new token")
)

// Claim names understood by the realtime service.
const (
	ClaimClientID   = "x-ably-clientId"
	ClaimCapability = "x-ably-capability"
)

// DefaultTokenTTL is the lifetime of minted tokens.
const DefaultTokenTTL = time.Hour

// refreshMargin is how long before expiry a cached token is replaced.
const refreshMargin = 30 * time.Second

// TokenProvider supplies access tokens for connection attempts.
type TokenProvider interface {
	// Token returns a usable token, minting one if needed.
	Token(ctx context.Context) (string, error)

	// RenewToken discards any cached token and returns a new one.
	RenewToken(ctx context.Context) (string, error)
}

// Key is a parsed "appId.keyId:secret" API key.
type Key struct {
	AppID  string
	KeyID  string
	Secret string
}

// ParseKey parses an API key string.
func ParseKey(s string) (Key, error) {
	name, secret, ok := strings.Cut(s, ":")
	if !ok || secret == "" {
		return Key{}, fmt.Errorf("%w: missing secret", ErrInvalidKey)
	}
	appID, keyID, ok := strings.Cut(name, ".")
	if !ok || appID == "" || keyID == "" {
		return Key{}, fmt.Errorf("%w: key name must be appId.keyId", ErrInvalidKey)
	}
	return Key{AppID: appID, KeyID: keyID, Secret: secret}, nil
}

// Name returns "appId.keyId".
func (k Key) Name() string {
	return k.AppID + "." + k.KeyID
}

// TokenParams shape minted tokens.
type TokenParams struct {
	ClientID   string
	Capability string // JSON capability, e.g. {"*":["*"]}
	TTL        time.Duration
}

// KeyTokenProvider mints signed JWTs locally from key material.
type KeyTokenProvider struct {
	keyName string
	method  jwt.SigningMethod
	signKey any
	params  TokenParams
	now     func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewKeyTokenProvider mints HS256 tokens from an "appId.keyId:secret" key.
func NewKeyTokenProvider(apiKey string, params TokenParams) (*KeyTokenProvider, error) {
	key, err := ParseKey(apiKey)
	if err != nil {
		return nil, err
	}
	return newKeyTokenProvider(key.Name(), jwt.SigningMethodHS256, []byte(key.Secret), params), nil
}

// NewRSATokenProvider mints PS256 tokens signed with the RSA private key at
// privateKeyPath.
func NewRSATokenProvider(keyName, privateKeyPath string, params TokenParams) (*KeyTokenProvider, error) {
	if keyName == "" {
		return nil, fmt.Errorf("key name is required")
	}
	if privateKeyPath == "" {
		return nil, fmt.Errorf("private key path is required")
	}

	privateKey, err := LoadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}

	return newKeyTokenProvider(keyName, jwt.SigningMethodPS256, privateKey, params), nil
}

func newKeyTokenProvider(keyName string, method jwt.SigningMethod, signKey any, params TokenParams) *KeyTokenProvider {
	if params.TTL <= 0 {
		params.TTL = DefaultTokenTTL
	}
	return &KeyTokenProvider{
		keyName: keyName,
		method:  method,
		signKey: signKey,
		params:  params,
		now:     time.Now,
	}
}

// Token returns the cached token while it is comfortably valid.
func (p *KeyTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.now().Add(refreshMargin).Before(p.expires) {
		return p.token, nil
	}
	return p.mint(ctx)
}

// RenewToken always mints a fresh token.
func (p *KeyTokenProvider) RenewToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mint(ctx)
}

func (p *KeyTokenProvider) mint(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	issued := p.now()
	expires := issued.Add(p.params.TTL)

	claims := jwt.MapClaims{
		"iat": issued.Unix(),
		"exp": expires.Unix(),
	}
	if p.params.ClientID != "" {
		claims[ClaimClientID] = p.params.ClientID
	}
	if p.params.Capability != "" {
		claims[ClaimCapability] = p.params.Capability
	}

	token := jwt.NewWithClaims(p.method, claims)
	token.Header["kid"] = p.keyName

	signed, err := token.SignedString(p.signKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	p.token = signed
	p.expires = expires
	return signed, nil
}

// StaticTokenProvider hands out a fixed token and cannot renew it.
type StaticTokenProvider struct {
	token string
}

// NewStaticTokenProvider wraps a pre-issued token.
func NewStaticTokenProvider(token string) *StaticTokenProvider {
	return &StaticTokenProvider{token: token}
}

func (p *StaticTokenProvider) Token(ctx context.Context) (string, error) {
	if p.token == "" {
		return "", ErrNoToken
	}
	return p.token, nil
}

func (p *StaticTokenProvider) RenewToken(ctx context.Context) (string, error) {
	return "", ErrCannotRenew
}

// LoadPrivateKey loads an RSA private key from a PEM file.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	// Try PKCS#8 first (newer format)
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("key is not an RSA private key")
		}
		return rsaKey, nil
	}

	// Fall back to PKCS#1 (older format)
	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return rsaKey, nil
}
