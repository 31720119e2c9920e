package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nats-io/nkeys"
)

func TestSignNonceWithSeed(t *testing.T) {
	kp, err := nkeys.CreateUser()
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	seed, err := kp.Seed()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	creds, err := Resolve(Config{NKeySeed: string(seed)})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	sig, err := creds.SignNonce([]byte("nonce-123"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if sig == "" {
		t.Fatal("expected non-empty signature")
	}
}

func TestResolveWithoutSeedSignsNothing(t *testing.T) {
	creds, err := Resolve(Config{User: "alice", Pass: "secret"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	sig, err := creds.SignNonce([]byte("nonce"))
	if err != nil || sig != "" {
		t.Fatalf("expected empty signature with no seed, got %q err=%v", sig, err)
	}
}

func TestParseCredsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "user.creds")
	contents := "-----BEGIN NATS USER JWT-----\n" +
		"eyJhbGciOiJub25lIn0.eyJzdWIiOiJ1c2VyIn0.\n" +
		"------END NATS USER JWT------\n\n" +
		"-----BEGIN USER NKEY SEED-----\n" +
		"SUAEXAMPLESEEDVALUE\n" +
		"------END USER NKEY SEED------\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write creds: %v", err)
	}

	jwtStr, seed, err := parseCredsFile(path)
	if err != nil {
		t.Fatalf("parseCredsFile: %v", err)
	}
	if jwtStr == "" || len(seed) == 0 {
		t.Fatalf("expected non-empty jwt and seed, got jwt=%q seed=%q", jwtStr, seed)
	}
}
