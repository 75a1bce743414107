// Package keystore loads key material from PEM files on disk.
//
// Key files are expected at {dir}/{alias}.key, certificates at
// {dir}/{alias}.crt. Loaded key pairs are cached per alias; the alias
// and optional key password form the crypto properties supplied once at
// startup and reused for every security operation.
package keystore

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrKeyNotFound is returned when no key file exists for an alias
var ErrKeyNotFound = errors.New("key not found")

// KeyPair is one alias's private key and certificate
type KeyPair struct {
	Alias       string
	PrivateKey  *rsa.PrivateKey
	Certificate *x509.Certificate
}

// FileProvider resolves aliases against PEM files in a directory.
// Intended for development and single-node deployments; production
// setups would put an HSM-backed provider behind the same lookup.
type FileProvider struct {
	dir      string
	password string

	mu    sync.RWMutex
	pairs map[string]*KeyPair
}

// NewFileProvider creates a provider rooted at dir. The password, when
// set, decrypts legacy RFC 1423 PEM-encrypted private keys; new
// deployments should store unencrypted PKCS#8 keys and rely on file
// permissions instead.
func NewFileProvider(dir, password string) (*FileProvider, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("checking key directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("key directory is not a directory: %s", dir)
	}
	return &FileProvider{
		dir:      dir,
		password: password,
		pairs:    make(map[string]*KeyPair),
	}, nil
}

// KeyPair returns the key pair for an alias, loading and caching it on
// first use
func (p *FileProvider) KeyPair(alias string) (*KeyPair, error) {
	p.mu.RLock()
	if pair, ok := p.pairs[alias]; ok {
		p.mu.RUnlock()
		return pair, nil
	}
	p.mu.RUnlock()

	pair, err := p.load(alias)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.pairs[alias] = pair
	p.mu.Unlock()
	return pair, nil
}

// Certificate returns the certificate for an alias without requiring a
// private key, used for partner trust anchors
func (p *FileProvider) Certificate(alias string) (*x509.Certificate, error) {
	return loadCertificate(filepath.Join(p.dir, alias+".crt"))
}

// Close drops the cache
func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pairs = make(map[string]*KeyPair)
	return nil
}

func (p *FileProvider) load(alias string) (*KeyPair, error) {
	keyPEM, err := os.ReadFile(filepath.Join(p.dir, alias+".key"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	key, err := parsePrivateKey(keyPEM, p.password)
	if err != nil {
		return nil, fmt.Errorf("parsing private key for %s: %w", alias, err)
	}

	cert, err := loadCertificate(filepath.Join(p.dir, alias+".crt"))
	if err != nil {
		return nil, fmt.Errorf("loading certificate for %s: %w", alias, err)
	}

	return &KeyPair{Alias: alias, PrivateKey: key, Certificate: cert}, nil
}

func parsePrivateKey(pemData []byte, password string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	der := block.Bytes
	// Legacy RFC 1423 PEM encryption, kept for existing key files.
	// The scheme is insecure and the stdlib functions are frozen, so
	// this path accepts only what older deployments already have.
	if x509.IsEncryptedPEMBlock(block) {
		decrypted, err := x509.DecryptPEMBlock(block, []byte(password))
		if err != nil {
			return nil, fmt.Errorf("decrypting key: %w", err)
		}
		der = decrypted
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(der)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(der)
		if err != nil {
			return nil, err
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("key is not RSA")
		}
		return rsaKey, nil
	default:
		return nil, fmt.Errorf("unsupported key type: %s", block.Type)
	}
}

func loadCertificate(path string) (*x509.Certificate, error) {
	certPEM, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading certificate file: %w", err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	return x509.ParseCertificate(block.Bytes)
}
