package certgen

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGenerateServerCertificate(t *testing.T) {
	certPEM, keyPEM, err := GenerateServerCertificate([]string{"localhost", "127.0.0.1", "boxes.internal"}, 24*time.Hour)
	if err != nil {
		t.Fatalf("GenerateServerCertificate error: %v", err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		t.Fatalf("cert PEM block = %v; want CERTIFICATE", block)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parse cert: %v", err)
	}

	if cert.Subject.CommonName != "localhost" {
		t.Errorf("CN = %q; want localhost", cert.Subject.CommonName)
	}
	if got := strings.Join(cert.DNSNames, ","); got != "localhost,boxes.internal" {
		t.Errorf("DNSNames = %q; want localhost,boxes.internal", got)
	}
	if len(cert.IPAddresses) != 1 || cert.IPAddresses[0].String() != "127.0.0.1" {
		t.Errorf("IPAddresses = %v; want [127.0.0.1]", cert.IPAddresses)
	}
	if err := cert.VerifyHostname("boxes.internal"); err != nil {
		t.Errorf("VerifyHostname: %v", err)
	}
	if time.Until(cert.NotAfter) > 25*time.Hour {
		t.Errorf("NotAfter = %v; want about a day from now", cert.NotAfter)
	}
	if len(cert.ExtKeyUsage) != 1 || cert.ExtKeyUsage[0] != x509.ExtKeyUsageServerAuth {
		t.Errorf("ExtKeyUsage = %v; want [ServerAuth]", cert.ExtKeyUsage)
	}

	// The pair must be usable by crypto/tls as is.
	if _, err := tls.X509KeyPair(certPEM, keyPEM); err != nil {
		t.Errorf("X509KeyPair: %v", err)
	}
}

func TestGenerateServerCertificate_InvalidInput(t *testing.T) {
	cases := []struct {
		name     string
		hosts    []string
		validFor time.Duration
	}{
		{"no hosts", nil, time.Hour},
		{"zero validity", []string{"localhost"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := GenerateServerCertificate(tc.hosts, tc.validFor); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestWriteKeyPairAndLoad(t *testing.T) {
	certPEM, keyPEM, err := GenerateServerCertificate([]string{"localhost"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(t.TempDir(), "certs")
	certPath, keyPath, err := WriteKeyPair(dir, certPEM, keyPEM)
	if err != nil {
		t.Fatalf("WriteKeyPair error: %v", err)
	}
	if filepath.Base(certPath) != CertFile || filepath.Base(keyPath) != KeyFile {
		t.Errorf("paths = %s, %s", certPath, keyPath)
	}

	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("key mode = %o; want 600", perm)
	}

	cert, err := LoadCertificate(certPath)
	if err != nil {
		t.Fatalf("LoadCertificate error: %v", err)
	}
	if cert.Subject.CommonName != "localhost" {
		t.Errorf("loaded CN = %q; want localhost", cert.Subject.CommonName)
	}

	if _, err := tls.LoadX509KeyPair(certPath, keyPath); err != nil {
		t.Errorf("LoadX509KeyPair: %v", err)
	}
}

func TestLoadCertificate_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadCertificate(filepath.Join(dir, "missing.crt")); err == nil || !strings.Contains(err.Error(), "read cert") {
		t.Errorf("missing file error = %v; want read cert", err)
	}

	bad := filepath.Join(dir, "bad.crt")
	if err := os.WriteFile(bad, []byte("not a pem"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCertificate(bad); err == nil || !strings.Contains(err.Error(), "invalid cert PEM") {
		t.Errorf("bad PEM error = %v; want invalid cert PEM", err)
	}

	wrongType := filepath.Join(dir, "key.pem")
	if err := os.WriteFile(wrongType, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: []byte{1}}), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCertificate(wrongType); err == nil {
		t.Error("expected error for non-certificate PEM")
	}
}
