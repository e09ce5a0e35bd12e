package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func writeRSAKey(t *testing.T, pkcs8 bool) (*rsa.PrivateKey, string) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	var block *pem.Block
	if pkcs8 {
		der, err := x509.MarshalPKCS8PrivateKey(privateKey)
		if err != nil {
			t.Fatalf("failed to marshal PKCS#8: %v", err)
		}
		block = &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	} else {
		block = &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)}
	}

	path := filepath.Join(t.TempDir(), "test-key.pem")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return privateKey, path
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Key
		wantErr bool
	}{
		{"valid", "app.key:secret", Key{AppID: "app", KeyID: "key", Secret: "secret"}, false},
		{"secret with colon", "app.key:se:cret", Key{AppID: "app", KeyID: "key", Secret: "se:cret"}, false},
		{"missing secret", "app.key", Key{}, true},
		{"empty secret", "app.key:", Key{}, true},
		{"missing key id", "app:secret", Key{}, true},
		{"empty app id", ".key:secret", Key{}, true},
		{"empty", "", Key{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKey(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidKey) {
					t.Errorf("ParseKey(%q) error = %v, want ErrInvalidKey", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKey(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseKey(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestKeyTokenProvider_Claims(t *testing.T) {
	p, err := NewKeyTokenProvider("app.key:secret", TokenParams{
		ClientID:   "client-1",
		Capability: `{"*":["*"]}`,
		TTL:        10 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewKeyTokenProvider failed: %v", err)
	}

	signed, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}

	parsed, err := jwt.Parse(signed, func(tok *jwt.Token) (any, error) {
		return []byte("secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		t.Fatalf("token does not verify: %v", err)
	}

	if kid := parsed.Header["kid"]; kid != "app.key" {
		t.Errorf("kid = %v, want app.key", kid)
	}

	claims := parsed.Claims.(jwt.MapClaims)
	if got := claims[ClaimClientID]; got != "client-1" {
		t.Errorf("%s = %v, want client-1", ClaimClientID, got)
	}
	if got := claims[ClaimCapability]; got != `{"*":["*"]}` {
		t.Errorf("%s = %v", ClaimCapability, got)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		t.Fatalf("missing exp: %v", err)
	}
	if ttl := time.Until(exp.Time); ttl < 9*time.Minute || ttl > 11*time.Minute {
		t.Errorf("token ttl = %v, want ~10m", ttl)
	}
}

func TestKeyTokenProvider_CachesUntilRenew(t *testing.T) {
	p, err := NewKeyTokenProvider("app.key:secret", TokenParams{})
	if err != nil {
		t.Fatalf("NewKeyTokenProvider failed: %v", err)
	}

	now := time.Unix(1700000000, 0)
	p.now = func() time.Time { return now }

	first, _ := p.Token(context.Background())
	second, _ := p.Token(context.Background())
	if first != second {
		t.Error("expected cached token on second call")
	}

	now = now.Add(time.Second)
	renewed, err := p.RenewToken(context.Background())
	if err != nil {
		t.Fatalf("RenewToken failed: %v", err)
	}
	if renewed == first {
		t.Error("RenewToken returned the cached token")
	}

	// Near expiry the cache is bypassed.
	now = now.Add(DefaultTokenTTL - 10*time.Second)
	late, _ := p.Token(context.Background())
	if late == renewed {
		t.Error("expected a fresh token close to expiry")
	}
}

func TestKeyTokenProvider_CanceledContext(t *testing.T) {
	p, _ := NewKeyTokenProvider("app.key:secret", TokenParams{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.RenewToken(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("RenewToken error = %v, want context.Canceled", err)
	}
}

func TestNewKeyTokenProvider_InvalidKey(t *testing.T) {
	if _, err := NewKeyTokenProvider("not-a-key", TokenParams{}); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("error = %v, want ErrInvalidKey", err)
	}
}

func TestRSATokenProvider(t *testing.T) {
	privateKey, path := writeRSAKey(t, true)

	p, err := NewRSATokenProvider("app.rsa", path, TokenParams{ClientID: "c"})
	if err != nil {
		t.Fatalf("NewRSATokenProvider failed: %v", err)
	}

	signed, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}

	_, err = jwt.Parse(signed, func(tok *jwt.Token) (any, error) {
		return &privateKey.PublicKey, nil
	}, jwt.WithValidMethods([]string{"PS256"}))
	if err != nil {
		t.Errorf("token does not verify with public key: %v", err)
	}
}

func TestNewRSATokenProvider_MissingArgs(t *testing.T) {
	if _, err := NewRSATokenProvider("", "/some/path", TokenParams{}); err == nil {
		t.Error("expected error for missing key name")
	}
	if _, err := NewRSATokenProvider("app.rsa", "", TokenParams{}); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestStaticTokenProvider(t *testing.T) {
	p := NewStaticTokenProvider("fixed")

	got, err := p.Token(context.Background())
	if err != nil || got != "fixed" {
		t.Errorf("Token() = %q, %v; want fixed, nil", got, err)
	}

	if _, err := p.RenewToken(context.Background()); !errors.Is(err, ErrCannotRenew) {
		t.Errorf("RenewToken error = %v, want ErrCannotRenew", err)
	}

	if _, err := NewStaticTokenProvider("").Token(context.Background()); !errors.Is(err, ErrNoToken) {
		t.Errorf("empty Token error = %v, want ErrNoToken", err)
	}
}

func TestLoadPrivateKey_PKCS8(t *testing.T) {
	privateKey, path := writeRSAKey(t, true)

	loadedKey, err := LoadPrivateKey(path)
	if err != nil {
		t.Fatalf("LoadPrivateKey failed: %v", err)
	}

	if loadedKey.N.Cmp(privateKey.N) != 0 {
		t.Error("loaded key does not match original")
	}
}

func TestLoadPrivateKey_PKCS1(t *testing.T) {
	privateKey, path := writeRSAKey(t, false)

	loadedKey, err := LoadPrivateKey(path)
	if err != nil {
		t.Fatalf("LoadPrivateKey failed: %v", err)
	}

	if loadedKey.N.Cmp(privateKey.N) != 0 {
		t.Error("loaded key does not match original")
	}
}

func TestLoadPrivateKey_FileNotFound(t *testing.T) {
	_, err := LoadPrivateKey("/nonexistent/path/to/key.pem")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadPrivateKey_InvalidPEM(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "invalid.pem")
	if err := os.WriteFile(tmpFile, []byte("not a pem file"), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	_, err := LoadPrivateKey(tmpFile)
	if err == nil {
		t.Error("expected error for invalid PEM")
	}
}
