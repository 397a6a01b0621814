// Package ca is the self-managed certificate authority. Credentials are
// plain RSA/X.509 material persisted as PEM files under a single
// directory, with filenames derived from the device id.
package ca

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
)

const (
	caKeyBits      = 2048
	caValidity     = 10 * 365 * 24 * time.Hour
	DefaultLeafTTL = 365 * 24 * time.Hour
)

// Authority implements ports.CertificateAuthority on the filesystem.
type Authority struct {
	dir    string
	mu     sync.Mutex
	caCert *x509.Certificate
	caKey  *rsa.PrivateKey
	pool   *x509.CertPool
}

var _ ports.CertificateAuthority = (*Authority)(nil)

// New loads the CA from dir, creating a fresh self-signed root when
// none exists yet.
func New(dir string) (*Authority, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create cert dir: %v", domain.ErrStorage, err)
	}
	a := &Authority{dir: dir}

	certPath, keyPath := a.CACertPath(), filepath.Join(dir, "ca_key.pem")
	if _, err := os.Stat(certPath); os.IsNotExist(err) {
		if err := a.createRoot(certPath, keyPath); err != nil {
			return nil, err
		}
		slog.Info("created new certificate authority", "dir", dir)
	}
	if err := a.loadRoot(certPath, keyPath); err != nil {
		return nil, err
	}
	return a, nil
}

// CACertPath returns the root certificate location.
func (a *Authority) CACertPath() string {
	return filepath.Join(a.dir, "ca_cert.pem")
}

func (a *Authority) createRoot(certPath, keyPath string) error {
	key, err := rsa.GenerateKey(rand.Reader, caKeyBits)
	if err != nil {
		return fmt.Errorf("generate CA key: %w", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName:   "Warden Root CA",
			Organization: []string{"warden"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(caValidity),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("self-sign CA: %w", err)
	}
	if err := writePEM(certPath, "CERTIFICATE", der, 0o644); err != nil {
		return err
	}
	return writePEM(keyPath, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key), 0o600)
}

func (a *Authority) loadRoot(certPath, keyPath string) error {
	cert, err := readCert(certPath)
	if err != nil {
		return fmt.Errorf("load CA cert: %w", err)
	}
	keyDER, err := readPEM(keyPath, "RSA PRIVATE KEY")
	if err != nil {
		return fmt.Errorf("load CA key: %w", err)
	}
	key, err := x509.ParsePKCS1PrivateKey(keyDER)
	if err != nil {
		return fmt.Errorf("parse CA key: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(cert)
	a.caCert, a.caKey, a.pool = cert, key, pool
	return nil
}

// Issue signs a fresh credential for the device and persists both
// halves under stable filenames. The MAC rides in the OU attribute.
func (a *Authority) Issue(ctx context.Context, deviceID, mac string, validity time.Duration) (string, string, error) {
	if deviceID == "" {
		return "", "", domain.Validationf("device_id is required")
	}
	norm := domain.NormalizeMAC(mac)
	if norm == "" {
		return "", "", domain.Validationf("malformed MAC %q", mac)
	}
	if validity <= 0 {
		validity = DefaultLeafTTL
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key, err := rsa.GenerateKey(rand.Reader, caKeyBits)
	if err != nil {
		return "", "", fmt.Errorf("generate device key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return "", "", fmt.Errorf("generate serial: %w", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:         deviceID,
			OrganizationalUnit: []string{norm},
		},
		NotBefore:   time.Now().Add(-5 * time.Minute),
		NotAfter:    time.Now().Add(validity),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		DNSNames:    []string{deviceID},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, a.caCert, &key.PublicKey, a.caKey)
	if err != nil {
		return "", "", fmt.Errorf("sign device cert: %w", err)
	}

	certPath := filepath.Join(a.dir, deviceID+"_cert.pem")
	keyPath := filepath.Join(a.dir, deviceID+"_key.pem")
	if err := writePEM(certPath, "CERTIFICATE", der, 0o644); err != nil {
		return "", "", err
	}
	if err := writePEM(keyPath, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key), 0o600); err != nil {
		return "", "", err
	}
	slog.Info("issued device credential", "device_id", deviceID, "mac", norm, "not_after", tmpl.NotAfter)
	return certPath, keyPath, nil
}

// Verify reports whether the certificate chains to this CA and is
// inside its validity window. A missing file is a clean false.
func (a *Authority) Verify(ctx context.Context, certPath string) (bool, error) {
	cert, err := readCert(certPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	_, err = cert.Verify(x509.VerifyOptions{
		Roots:     a.pool,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	})
	return err == nil, nil
}

// Revoke deletes the device credential files. Revoking an already
// revoked device is a no-op.
func (a *Authority) Revoke(ctx context.Context, deviceID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, suffix := range []string{"_cert.pem", "_key.pem"} {
		p := filepath.Join(a.dir, deviceID+suffix)
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: remove %s: %v", domain.ErrStorage, p, err)
		}
	}
	slog.Info("revoked device credential", "device_id", deviceID)
	return nil
}

func writePEM(path, blockType string, der []byte, mode os.FileMode) error {
	buf := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, buf, mode); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrStorage, path, err)
	}
	return nil
}

func readPEM(path, blockType string) ([]byte, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(buf)
	if block == nil || block.Type != blockType {
		return nil, fmt.Errorf("no %s block in %s", blockType, path)
	}
	return block.Bytes, nil
}

func readCert(path string) (*x509.Certificate, error) {
	der, err := readPEM(path, "CERTIFICATE")
	if err != nil {
		return nil, err
	}
	return x509.ParseCertificate(der)
}
