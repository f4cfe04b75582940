package executor

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// errUnparseableKey is returned when none of the supported key formats
// parse a private key.
var errUnparseableKey = errors.New("unable to parse private key")

// parsePrivateKey probes PEM-encoded RSA, OpenSSH Ed25519, and
// PEM-encoded ECDSA in that fixed order, returning the first successful
// parse. RSA and ECDSA are decoded with crypto/x509 (PKCS#1 or PKCS#8
// for RSA, SEC 1 or PKCS#8 for ECDSA); Ed25519 goes through
// ssh.ParsePrivateKey and is accepted only if the parsed key is Ed25519.
func parsePrivateKey(pemBytes []byte) (ssh.Signer, error) {
	if signer, err := tryParseRSA(pemBytes); err == nil {
		return signer, nil
	}
	if signer, err := tryParseEd25519(pemBytes); err == nil {
		return signer, nil
	}
	if signer, err := tryParseECDSA(pemBytes); err == nil {
		return signer, nil
	}
	return nil, errUnparseableKey
}

func tryParseRSA(pemBytes []byte) (ssh.Signer, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errUnparseableKey
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		if k, err2 := x509.ParsePKCS8PrivateKey(block.Bytes); err2 == nil {
			rsaKey, ok := k.(*rsa.PrivateKey)
			if !ok {
				return nil, errUnparseableKey
			}
			return ssh.NewSignerFromKey(rsaKey)
		}
		return nil, fmt.Errorf("parse rsa key: %w", err)
	}
	return ssh.NewSignerFromKey(key)
}

func tryParseEd25519(pemBytes []byte) (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parse ed25519 key: %w", err)
	}
	if signer.PublicKey().Type() != ssh.KeyAlgoED25519 {
		return nil, errUnparseableKey
	}
	return signer, nil
}

func tryParseECDSA(pemBytes []byte) (ssh.Signer, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errUnparseableKey
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		if k, err2 := x509.ParsePKCS8PrivateKey(block.Bytes); err2 == nil {
			ecKey, ok := k.(*ecdsa.PrivateKey)
			if !ok {
				return nil, errUnparseableKey
			}
			return ssh.NewSignerFromKey(ecKey)
		}
		return nil, fmt.Errorf("parse ecdsa key: %w", err)
	}
	return ssh.NewSignerFromKey(key)
}
