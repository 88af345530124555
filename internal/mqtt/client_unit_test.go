package mqtt

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

	"github.com/ibs-source/serial-broker/internal/config"
)

type testPKI struct {
	caPath   string
	certPath string
	keyPath  string
	dir      string
}

// newTestPKI writes a CA and a client certificate signed by it
func newTestPKI(t *testing.T) testPKI {
	t.Helper()
	dir := t.TempDir()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() = %v", err)
	}
	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	if err != nil {
		t.Fatalf("CreateCertificate(ca) = %v", err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() = %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "node-1"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, caTmpl, &key.PublicKey, caKey)
	if err != nil {
		t.Fatalf("CreateCertificate(client) = %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey() = %v", err)
	}

	p := testPKI{
		caPath:   filepath.Join(dir, "authority.pem"),
		certPath: filepath.Join(dir, "certificate.pem"),
		keyPath:  filepath.Join(dir, "key.pem"),
		dir:      dir,
	}
	writePEM(t, p.caPath, "CERTIFICATE", caDER)
	writePEM(t, p.certPath, "CERTIFICATE", der)
	writePEM(t, p.keyPath, "EC PRIVATE KEY", keyDER)
	return p
}

func writePEM(t *testing.T, path, kind string, der []byte) {
	t.Helper()
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: kind, Bytes: der}), 0o600); err != nil {
		t.Fatalf("WriteFile(%s) = %v", path, err)
	}
}

// TestNewTLSConfig_Unit tests TLS configuration without a broker
func TestNewTLSConfig_Unit(t *testing.T) {
	pki := newTestPKI(t)

	t.Run("ValidTLSWithCA", func(t *testing.T) { testValidTLSWithCA(t, pki) })
	t.Run("ValidTLSWithClientCert", func(t *testing.T) { testValidTLSWithClientCert(t, pki) })
	t.Run("InsecureSkipVerify", testInsecureSkipVerify)
	t.Run("InvalidCACert", testInvalidCACert)
	t.Run("InvalidClientCert", testInvalidClientCert)
	t.Run("MismatchedClientCertKey", func(t *testing.T) { testMismatchedClientCertKey(t, pki) })
	t.Run("EmptyCACert", testEmptyCACert)
	t.Run("CorruptedCACert", func(t *testing.T) { testCorruptedCACert(t, pki) })
}

func testValidTLSWithCA(t *testing.T, pki testPKI) {
	t.Helper()
	cfg := &config.MQTTConfig{TLSEnabled: true, CACert: pki.caPath}

	tlsConfig, err := newTLSConfig(cfg)
	if err != nil {
		t.Fatalf("Failed to create TLS config: %v", err)
	}
	if tlsConfig.RootCAs == nil {
		t.Error("RootCAs not set")
	}
	if tlsConfig.InsecureSkipVerify {
		t.Error("InsecureSkipVerify should be false by default")
	}
}

func testValidTLSWithClientCert(t *testing.T, pki testPKI) {
	t.Helper()
	cfg := &config.MQTTConfig{
		TLSEnabled: true,
		CACert:     pki.caPath,
		ClientCert: pki.certPath,
		ClientKey:  pki.keyPath,
	}

	tlsConfig, err := newTLSConfig(cfg)
	if err != nil {
		t.Fatalf("Failed to create TLS config: %v", err)
	}
	if len(tlsConfig.Certificates) == 0 {
		t.Error("Client certificates not loaded")
	}
}

func testInsecureSkipVerify(t *testing.T) {
	t.Helper()
	cfg := &config.MQTTConfig{TLSEnabled: true, InsecureSkip: true}

	tlsConfig, err := newTLSConfig(cfg)
	if err != nil {
		t.Fatalf("Failed to create TLS config: %v", err)
	}
	if !tlsConfig.InsecureSkipVerify {
		t.Error("InsecureSkipVerify should be true")
	}
}

func testInvalidCACert(t *testing.T) {
	t.Helper()
	cfg := &config.MQTTConfig{TLSEnabled: true, CACert: "/nonexistent/ca.crt"}

	if _, err := newTLSConfig(cfg); err == nil {
		t.Error("Expected error for invalid CA cert, got nil")
	}
}

func testInvalidClientCert(t *testing.T) {
	t.Helper()
	cfg := &config.MQTTConfig{
		TLSEnabled: true,
		ClientCert: "/nonexistent/client.crt",
		ClientKey:  "/nonexistent/client.key",
	}

	if _, err := newTLSConfig(cfg); err == nil {
		t.Error("Expected error for invalid client cert, got nil")
	}
}

func testMismatchedClientCertKey(t *testing.T, pki testPKI) {
	t.Helper()
	other := newTestPKI(t)
	cfg := &config.MQTTConfig{
		TLSEnabled: true,
		ClientCert: pki.certPath,
		ClientKey:  other.keyPath,
	}

	if _, err := newTLSConfig(cfg); err == nil {
		t.Error("Expected error for mismatched cert/key, got nil")
	}
}

func testEmptyCACert(t *testing.T) {
	t.Helper()
	tlsConfig, err := newTLSConfig(&config.MQTTConfig{TLSEnabled: true})
	if err != nil {
		t.Fatalf("Failed to create TLS config with empty CA: %v", err)
	}
	// RootCAs stays nil so the system pool is used
	if tlsConfig.RootCAs != nil {
		t.Error("RootCAs should be nil without a CA file")
	}
	if tlsConfig.MinVersion == 0 {
		t.Error("MinVersion should be set")
	}
}

func testCorruptedCACert(t *testing.T, pki testPKI) {
	t.Helper()
	path := filepath.Join(pki.dir, "README.md")
	if err := os.WriteFile(path, []byte("not a certificate"), 0o600); err != nil {
		t.Fatalf("WriteFile() = %v", err)
	}

	if _, err := newTLSConfig(&config.MQTTConfig{TLSEnabled: true, CACert: path}); err == nil {
		t.Error("Expected error for corrupted CA cert, got nil")
	}
}

// TestClientStructure checks fields copied from config
func TestClientStructure(t *testing.T) {
	client := &Client{qos: 1, disconnectTimeout: 1000}

	if client.qos != 1 {
		t.Errorf("Expected qos 1, got %d", client.qos)
	}
	if err := (&Client{}).Close(); err != nil {
		t.Errorf("Close() on unconnected client = %v; want nil", err)
	}
}
