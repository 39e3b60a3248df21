package mtls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNothingConfiguredReturnsNil(t *testing.T) {
	cfg, err := ClientConfig("", "", "")
	if err != nil {
		t.Fatalf("ClientConfig: %v", err)
	}
	if cfg != nil {
		t.Fatal("expected nil config when nothing is configured")
	}
}

func TestCertWithoutKeyRejected(t *testing.T) {
	certFile, _ := writeTestPair(t)
	if _, err := ClientConfig(certFile, "", ""); err == nil {
		t.Fatal("expected error for cert without key")
	}
	if _, err := ClientConfig("", "somewhere.key", ""); err == nil {
		t.Fatal("expected error for key without cert")
	}
}

func TestValidPairLoads(t *testing.T) {
	certFile, keyFile := writeTestPair(t)
	cfg, err := ClientConfig(certFile, keyFile, "")
	if err != nil {
		t.Fatalf("ClientConfig: %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Fatalf("expected 1 certificate, got %d", len(cfg.Certificates))
	}
	if cfg.RootCAs != nil {
		t.Fatal("RootCAs set without a ca bundle")
	}
}

func TestCABundlePinsRoots(t *testing.T) {
	certFile, _ := writeTestPair(t)
	cfg, err := ClientConfig("", "", certFile)
	if err != nil {
		t.Fatalf("ClientConfig: %v", err)
	}
	if cfg.RootCAs == nil {
		t.Fatal("RootCAs is nil with a ca bundle configured")
	}
	if len(cfg.Certificates) != 0 {
		t.Fatal("client certificates set without a pair configured")
	}
}

func TestGarbageCABundleRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(path, []byte("not a certificate"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ClientConfig("", "", path); err == nil {
		t.Fatal("expected error for unparseable ca bundle")
	}
}

func TestMissingCertFileRejected(t *testing.T) {
	dir := t.TempDir()
	if _, err := ClientConfig(filepath.Join(dir, "no.crt"), filepath.Join(dir, "no.key"), ""); err == nil {
		t.Fatal("expected error for missing files")
	}
}

// writeTestPair generates a self-signed certificate and key on disk.
func writeTestPair(t *testing.T) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	tmpl := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "gale-agent-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	dir := t.TempDir()
	certFile = filepath.Join(dir, "client.crt")
	keyFile = filepath.Join(dir, "client.key")

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	if err := os.WriteFile(certFile, certPEM, 0600); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return certFile, keyFile
}
