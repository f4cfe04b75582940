package executor

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"golang.org/x/crypto/ssh"
)

func TestParsePrivateKey_RSA(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	pemBytes := pem.EncodeToMemory(block)

	signer, err := parsePrivateKey(pemBytes)
	if err != nil {
		t.Fatalf("parsePrivateKey() error = %v", err)
	}
	if signer.PublicKey().Type() != ssh.KeyAlgoRSA {
		t.Errorf("got key type %s, want rsa", signer.PublicKey().Type())
	}
}

func TestParsePrivateKey_Ed25519(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}

	signer, err := ssh.NewSignerFromSigner(priv)
	if err != nil {
		t.Fatalf("build reference signer: %v", err)
	}

	marshaled, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("marshal pkcs8: %v", err)
	}
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: marshaled}
	pemBytes := pem.EncodeToMemory(block)

	parsed, err := parsePrivateKey(pemBytes)
	if err != nil {
		t.Fatalf("parsePrivateKey() error = %v", err)
	}
	if parsed.PublicKey().Type() != signer.PublicKey().Type() {
		t.Errorf("got key type %s, want %s", parsed.PublicKey().Type(), signer.PublicKey().Type())
	}
}

func TestParsePrivateKey_Garbage(t *testing.T) {
	_, err := parsePrivateKey([]byte("not a key"))
	if err != errUnparseableKey {
		t.Errorf("got err %v, want errUnparseableKey", err)
	}
}
