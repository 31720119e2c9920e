// Package auth resolves connection credentials into the fields the CONNECT
// frame needs (spec.md §6) and signs the server-issued nonce when an nkey
// seed is configured.
package auth

import (
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nats-io/nkeys"
)

// Credentials holds the resolved auth fields for one CONNECT frame.
type Credentials struct {
	Token string
	User  string
	Pass  string
	JWT   string

	// seed is kept only long enough to sign a nonce; it never leaves this
	// package.
	seed []byte
}

// Config mirrors the "auth.*" fields of spec.md §6's connection options.
type Config struct {
	Token          string
	User           string
	Pass           string
	JWT            string
	NKeySeed       string
	CredentialsFile string
}

// Resolve produces Credentials from Config, decoding a .creds file if one
// is configured. The JWT's claims are decoded (not cryptographically
// verified -- the broker does that) purely to surface an expired-credential
// error locally before attempting a handshake that would otherwise fail
// with Auth.
func Resolve(cfg Config) (Credentials, error) {
	creds := Credentials{Token: cfg.Token, User: cfg.User, Pass: cfg.Pass, JWT: cfg.JWT}

	if cfg.NKeySeed != "" {
		creds.seed = []byte(cfg.NKeySeed)
	}

	if cfg.CredentialsFile != "" {
		jwtStr, seed, err := parseCredsFile(cfg.CredentialsFile)
		if err != nil {
			return Credentials{}, fmt.Errorf("auth: %w", err)
		}
		creds.JWT = jwtStr
		creds.seed = seed
	}

	if creds.JWT != "" {
		if err := checkExpiry(creds.JWT); err != nil {
			return Credentials{}, err
		}
	}

	return creds, nil
}

// SignNonce signs serverNonce with the configured nkey seed, returning the
// base64url-encoded signature the CONNECT frame's "sig" field carries. It
// returns ("", nil) when no seed is configured (nothing to sign).
func (c Credentials) SignNonce(serverNonce []byte) (string, error) {
	if len(c.seed) == 0 {
		return "", nil
	}
	kp, err := nkeys.FromSeed(c.seed)
	if err != nil {
		return "", fmt.Errorf("auth: invalid nkey seed: %w", err)
	}
	sig, err := kp.Sign(serverNonce)
	if err != nil {
		return "", fmt.Errorf("auth: sign nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(sig), nil
}

// PublicKey returns the nkey's public identity, used for the CONNECT
// frame's "nkey" field.
func (c Credentials) PublicKey() (string, error) {
	if len(c.seed) == 0 {
		return "", nil
	}
	kp, err := nkeys.FromSeed(c.seed)
	if err != nil {
		return "", fmt.Errorf("auth: invalid nkey seed: %w", err)
	}
	return kp.PublicKey()
}

var credsBlock = regexp.MustCompile(`(?s)-----BEGIN (NATS USER JWT|USER NKEY SEED)-----\r?\n(.+?)\r?\n------END \S+ \S+ \S+------`)

// parseCredsFile extracts the JWT and nkey seed from a standard NATS
// ".creds" file: two PEM-like blocks, one holding the user JWT and one the
// nkey seed.
func parseCredsFile(path string) (jwtStr string, seed []byte, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read credentials file: %w", err)
	}

	matches := credsBlock.FindAllStringSubmatch(string(data), -1)
	for _, m := range matches {
		switch m[1] {
		case "NATS USER JWT":
			jwtStr = strings.TrimSpace(m[2])
		case "USER NKEY SEED":
			seed = []byte(strings.TrimSpace(m[2]))
		}
	}
	if jwtStr == "" || len(seed) == 0 {
		return "", nil, fmt.Errorf("credentials file missing JWT or nkey seed block")
	}
	return jwtStr, seed, nil
}

// checkExpiry decodes the JWT's claims without verifying its signature --
// the server is the signature's verifier, not this client -- solely to
// reject an obviously-expired credential before spending a handshake
// round-trip on it.
func checkExpiry(jwtStr string) error {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(jwtStr, claims); err != nil {
		return fmt.Errorf("auth: malformed user jwt: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if time.Now().After(exp.Time) {
		return fmt.Errorf("auth: user jwt expired at %s", exp.Time)
	}
	return nil
}
