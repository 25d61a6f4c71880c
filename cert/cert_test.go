package cert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type keyPair struct {
	key     *rsa.PrivateKey
	cert    *x509.Certificate
	certPEM []byte
	keyPEM  []byte
}

func newRoot(t *testing.T, cn string) *keyPair {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn, Organization: []string{cn}},
		NotBefore:             testNow.AddDate(0, -1, 0),
		NotAfter:              testNow.AddDate(10, 0, 0),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	c, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	return &keyPair{
		key:     key,
		cert:    c,
		certPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		keyPEM:  pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}),
	}
}

func newLeaf(t *testing.T, root *keyPair, dnsName string, notAfter time.Time, usage []x509.ExtKeyUsage) *x509.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: dnsName},
		DNSNames:     []string{dnsName},
		NotBefore:    testNow.AddDate(0, 0, -1),
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  usage,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, root.cert, &key.PublicKey, root.key)
	require.NoError(t, err)
	c, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return c
}

func TestCheckKeyPair(t *testing.T) {
	root := newRoot(t, "example")
	other := newRoot(t, "other")

	tests := map[string]struct {
		cert    []byte
		key     []byte
		wantErr bool
	}{
		"matching PKCS#8 key": {cert: root.certPEM, key: root.keyPEM},
		"matching PKCS#1 key": {
			cert: root.certPEM,
			key: pem.EncodeToMemory(&pem.Block{
				Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(root.key),
			}),
		},
		"foreign key": {cert: root.certPEM, key: other.keyPEM, wantErr: true},
		"no key":      {cert: root.certPEM, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			ca := NewCA()
			require.NoError(t, ca.SetCACert(&Certificate{Cert: tc.cert, Key: tc.key}))
			assert.Equal(t, root.cert.Subject.CommonName, ca.Cert().Subject.CommonName)

			err := ca.CheckKeyPair()
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCheckKeyPairNotSelfSigned(t *testing.T) {
	root := newRoot(t, "example")
	leaf := newLeaf(t, root, "a.example.com", testNow.AddDate(1, 0, 0), nil)

	ca := &CA{cert: leaf, key: root.key}
	assert.Error(t, ca.CheckKeyPair())
}

func TestSetCACertInvalidKey(t *testing.T) {
	root := newRoot(t, "example")

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	ecDER, err := x509.MarshalECPrivateKey(ecKey)
	require.NoError(t, err)

	ca := NewCA()
	// an EC key parses but does not belong to the certificate
	require.NoError(t, ca.SetCACert(&Certificate{
		Cert: root.certPEM,
		Key:  pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: ecDER}),
	}))
	assert.Error(t, ca.CheckKeyPair())

	assert.Error(t, NewCA().SetCACert(&Certificate{Cert: root.certPEM, Key: []byte("garbage")}))
	assert.Error(t, NewCA().SetCACert(&Certificate{Cert: []byte("garbage")}))
}

func TestVerifyLeaf(t *testing.T) {
	root := newRoot(t, "example")
	other := newRoot(t, "other")
	serverAuth := []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}

	tests := map[string]struct {
		leaf    *x509.Certificate
		dnsName string
		wantErr bool
	}{
		"valid": {
			leaf:    newLeaf(t, root, "svc.example.com", testNow.AddDate(1, 0, 0), serverAuth),
			dnsName: "svc.example.com",
		},
		"wrong name": {
			leaf:    newLeaf(t, root, "svc.example.com", testNow.AddDate(1, 0, 0), serverAuth),
			dnsName: "api.example.com",
			wantErr: true,
		},
		"expired": {
			leaf:    newLeaf(t, root, "svc.example.com", testNow.AddDate(0, 0, -1).Add(time.Hour), serverAuth),
			dnsName: "svc.example.com",
			wantErr: true,
		},
		"foreign issuer": {
			leaf:    newLeaf(t, other, "svc.example.com", testNow.AddDate(1, 0, 0), serverAuth),
			dnsName: "svc.example.com",
			wantErr: true,
		},
		"client auth only": {
			leaf:    newLeaf(t, root, "svc.example.com", testNow.AddDate(1, 0, 0), []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}),
			dnsName: "svc.example.com",
			wantErr: true,
		},
	}

	ca := NewCA()
	require.NoError(t, ca.SetCACert(&Certificate{Cert: root.certPEM}))

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := ca.VerifyLeaf(tc.leaf, tc.dnsName, testNow)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewCertificateFromFile(t *testing.T) {
	root := newRoot(t, "example")
	dir := t.TempDir()

	certPath := filepath.Join(dir, "example.crt")
	keyPath := filepath.Join(dir, "example.key")
	require.NoError(t, os.WriteFile(certPath, root.certPEM, 0o644))
	require.NoError(t, os.WriteFile(keyPath, root.keyPEM, 0o600))

	c, err := NewCertificateFromFile(certPath, keyPath, filepath.Join(dir, "absent.csr"))
	require.NoError(t, err)
	assert.Equal(t, root.certPEM, c.Cert)
	assert.Equal(t, root.keyPEM, c.Key)
	assert.Empty(t, c.Csr)

	parsed, err := c.X509()
	require.NoError(t, err)
	assert.True(t, parsed.Equal(root.cert))

	c, err = NewCertificateFromFile(certPath, "", "")
	require.NoError(t, err)
	assert.Empty(t, c.Key)

	_, err = NewCertificateFromFile(filepath.Join(dir, "absent.crt"), "", "")
	assert.Error(t, err)

	_, err = NewCertificateFromFile(certPath, filepath.Join(dir, "absent.key"), "")
	assert.Error(t, err)
}

func TestParseCertificatePEMSkipsOtherBlocks(t *testing.T) {
	root := newRoot(t, "example")

	data := append(append([]byte{}, root.keyPEM...), root.certPEM...)
	c, err := ParseCertificatePEM(data)
	require.NoError(t, err)
	assert.Equal(t, "example", c.Subject.CommonName)

	_, err = ParseCertificatePEM(root.keyPEM)
	assert.Error(t, err)
}

func TestParseCSRPEM(t *testing.T) {
	root := newRoot(t, "example")

	der, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{
		Subject:  pkix.Name{CommonName: "example.com"},
		DNSNames: []string{"example.com"},
	}, root.key)
	require.NoError(t, err)

	csr, err := ParseCSRPEM(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: der}))
	require.NoError(t, err)
	assert.Equal(t, "example.com", csr.Subject.CommonName)

	_, err = ParseCSRPEM([]byte("not pem"))
	assert.Error(t, err)
}
