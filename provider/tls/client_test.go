package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
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
	"go.step.sm/crypto/pemutil"
)

type certFiles struct {
	cert         string
	key          string
	encryptedKey string
}

const keyPassword = "correct horse"

// writeCertFiles creates a self-signed certificate, its key, and the same key encrypted with keyPassword
func writeCertFiles(t *testing.T) certFiles {
	dir := t.TempDir()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "redis.test"},
		DNSNames:              []string{"redis.test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tpl, tpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDer, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	encrypted, err := pemutil.EncryptPKCS8PrivateKey(rand.Reader, keyDer, []byte(keyPassword), x509.PEMCipherAES256)
	require.NoError(t, err)

	files := certFiles{
		cert:         filepath.Join(dir, "cert.pem"),
		key:          filepath.Join(dir, "key.pem"),
		encryptedKey: filepath.Join(dir, "key.enc.pem"),
	}
	require.NoError(t, os.WriteFile(files.cert, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0600))
	require.NoError(t, os.WriteFile(files.key, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDer}), 0600))
	require.NoError(t, os.WriteFile(files.encryptedKey, pem.EncodeToMemory(encrypted), 0600))
	return files
}

func TestClientConfig_TLSConfig_Disabled(t *testing.T) {
	cfg := &ClientConfig{TLSCert: "missing.pem"}
	tlsConfig, err := cfg.TLSConfig()
	require.NoError(t, err)
	assert.Nil(t, tlsConfig)
	assert.NoError(t, cfg.Validate())
}

func TestClientConfig_TLSConfig_Empty(t *testing.T) {
	cfg := &ClientConfig{TLSEnable: true, TLSServerName: "redis.test"}
	tlsConfig, err := cfg.TLSConfig()
	require.NoError(t, err)
	require.NotNil(t, tlsConfig)
	assert.Equal(t, "redis.test", tlsConfig.ServerName)
	assert.Equal(t, uint16(tls.VersionTLS12), tlsConfig.MinVersion)
	assert.Nil(t, tlsConfig.RootCAs)
	assert.Empty(t, tlsConfig.Certificates)
}

func TestClientConfig_TLSConfig_Complete(t *testing.T) {
	files := writeCertFiles(t)
	cfg := &ClientConfig{
		TLSEnable:     true,
		TLSCA:         files.cert,
		TLSCert:       files.cert,
		TLSKey:        files.key,
		TLSMinVersion: "TLS13",
	}
	tlsConfig, err := cfg.TLSConfig()
	require.NoError(t, err)
	assert.NotNil(t, tlsConfig.RootCAs)
	assert.Len(t, tlsConfig.Certificates, 1)
	assert.Equal(t, uint16(tls.VersionTLS13), tlsConfig.MinVersion)
}

func TestClientConfig_EncryptedKey(t *testing.T) {
	files := writeCertFiles(t)
	cfg := &ClientConfig{
		TLSEnable:     true,
		TLSCert:       files.cert,
		TLSKey:        files.encryptedKey,
		KeyCredential: KeyCredential{Password: keyPassword},
	}
	tlsConfig, err := cfg.TLSConfig()
	require.NoError(t, err)
	assert.Len(t, tlsConfig.Certificates, 1)

	t.Setenv("FORETELL_TEST_TLS_KEY_PASSWORD", keyPassword)
	cfg.KeyCredential = KeyCredential{PasswordEnvVar: "FORETELL_TEST_TLS_KEY_PASSWORD"}
	tlsConfig, err = cfg.TLSConfig()
	require.NoError(t, err)
	assert.Len(t, tlsConfig.Certificates, 1)
	// read once
	assert.Empty(t, os.Getenv("FORETELL_TEST_TLS_KEY_PASSWORD"))

	cfg.KeyCredential = KeyCredential{}
	_, err = cfg.TLSConfig()
	assert.ErrorIs(t, err, ErrMissingPassword)

	cfg.KeyCredential = KeyCredential{Password: "wrong"}
	_, err = cfg.TLSConfig()
	assert.ErrorIs(t, err, ErrDecryptError)
}

func TestClientConfig_Errors(t *testing.T) {
	files := writeCertFiles(t)

	cfg := &ClientConfig{TLSEnable: true, TLSCert: files.cert}
	assert.ErrorIs(t, cfg.Validate(), ErrIncompleteKeyPair)

	cfg = &ClientConfig{TLSEnable: true, TLSMinVersion: "TLS10"}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidTlsVersion)

	cfg = &ClientConfig{TLSEnable: true, TLSCA: filepath.Join(t.TempDir(), "missing.pem")}
	_, err := cfg.TLSConfig()
	assert.ErrorIs(t, err, ErrCertNotFound)

	cfg = &ClientConfig{TLSEnable: true, TLSCA: files.key}
	_, err = cfg.TLSConfig()
	assert.ErrorIs(t, err, ErrInvalidPEM)

	cfg = &ClientConfig{TLSEnable: true, TLSCert: files.key, TLSKey: files.cert}
	_, err = cfg.TLSConfig()
	assert.ErrorIs(t, err, ErrInvalidCert)

	notPEM := filepath.Join(t.TempDir(), "key.txt")
	require.NoError(t, os.WriteFile(notPEM, []byte("not a key"), 0600))
	cfg = &ClientConfig{TLSEnable: true, TLSCert: files.cert, TLSKey: notPEM}
	_, err = cfg.TLSConfig()
	assert.ErrorIs(t, err, ErrKeyError)
}

func TestParseTLSVersion(t *testing.T) {
	v, err := ParseTLSVersion("tls12")
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS12), v)
	_, err = ParseTLSVersion("SSL3")
	assert.ErrorIs(t, err, ErrInvalidTlsVersion)
}
