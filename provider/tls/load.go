/*
 TLS Certificate Loader

  Adapted from https://github.com/influxdata/telegraf/tree/master/plugins/common/tls
  All changes are made available under the original MIT License:

	The MIT License (MIT)

	Copyright (c) 2015-2020 InfluxData Inc.

	Permission is hereby granted, free of charge, to any person obtaining a copy
	of this software and associated documentation files (the "Software"), to deal
	in the Software without restriction, including without limitation the rights
	to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
	copies of the Software, and to permit persons to whom the Software is
	furnished to do so, subject to the following conditions:

	The above copyright notice and this permission notice shall be included in all
	copies or substantial portions of the Software.

	THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
	IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
	FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
	AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
	LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
	OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
	SOFTWARE.
*/

package tls

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/foretell-app/foretell/log"
	"github.com/foretell-app/foretell/utils"
	"go.step.sm/crypto/pemutil"
)

const (
	ErrCertNotFound    = utils.Error("could not load certificate file")
	ErrInvalidPEM      = utils.Error("could not parse PEM certificate")
	ErrKeyNotFound     = utils.Error("could not load private key file")
	ErrKeyError        = utils.Error("failed to decode private key")
	ErrCredentialError = utils.Error("failed to load tls key password")
	ErrMissingPassword = utils.Error("missing password for encrypted private key")
	ErrDecryptError    = utils.Error("private key decryption error")
	ErrInvalidCert     = utils.Error("failed to load cert/key pair")

	encryptedKeyType = "ENCRYPTED PRIVATE KEY"
	pkcs8KeyType     = "PRIVATE KEY"
)

// LoadTLSCertPool loads a certificate pool with the PEM certificates of certFiles
func LoadTLSCertPool(certFiles []string) (*x509.CertPool, error) {
	logger := log.New("tls")
	pool := x509.NewCertPool()
	for _, certFile := range certFiles {
		cert, err := os.ReadFile(certFile)
		if err != nil {
			logger.Error(err, "failed to read CA file", log.KV{"file": certFile})
			return nil, ErrCertNotFound
		}
		if !pool.AppendCertsFromPEM(cert) {
			logger.Error(ErrInvalidPEM, "could not parse PEM certificate", log.KV{"file": certFile})
			return nil, ErrInvalidPEM
		}
	}
	return pool, nil
}

// LoadTLSCertificate loads a certificate and its private key into config.
// A PKCS#8 "ENCRYPTED PRIVATE KEY" is decrypted with the password fetched from pwdSrc
func LoadTLSCertificate(config *tls.Config, certFile, keyFile string, pwdSrc KeyCredential) error {
	logger := log.New("tls")
	certBytes, err := os.ReadFile(certFile)
	if err != nil {
		logger.Error(err, "failed to read certificate file", log.KV{"file": certFile})
		return ErrCertNotFound
	}
	keyBytes, err := os.ReadFile(keyFile)
	if err != nil {
		logger.Error(err, "failed to read key file", log.KV{"file": keyFile})
		return ErrKeyNotFound
	}

	keyPEMBlock, _ := pem.Decode(keyBytes)
	if keyPEMBlock == nil {
		logger.Error(ErrKeyError, "no PEM data found", log.KV{"file": keyFile})
		return ErrKeyError
	}
	if keyPEMBlock.Type == encryptedKeyType {
		if keyBytes, err = decryptKey(keyPEMBlock, pwdSrc); err != nil {
			logger.Error(err, "cannot decrypt private key", log.KV{"file": keyFile})
			return err
		}
		defer clear(keyBytes)
	}

	cert, err := tls.X509KeyPair(certBytes, keyBytes)
	if err != nil {
		logger.Error(err, "failed to load cert/key pair", log.KV{"cert": certFile, "key": keyFile})
		return ErrInvalidCert
	}
	config.Certificates = []tls.Certificate{cert}
	return nil
}

// decryptKey returns the PEM encoded PKCS#8 key of an encrypted block; any key type is accepted
func decryptKey(block *pem.Block, pwdSrc KeyCredential) ([]byte, error) {
	password, err := pwdSrc.Fetch()
	if err != nil {
		return nil, ErrCredentialError
	}
	if password == "" {
		return nil, ErrMissingPassword
	}
	passwordBytes := []byte(password)
	defer clear(passwordBytes)

	der, err := pemutil.DecryptPKCS8PrivateKey(block.Bytes, passwordBytes)
	if err != nil {
		return nil, ErrDecryptError
	}
	defer clear(der)
	if _, err = x509.ParsePKCS8PrivateKey(der); err != nil {
		return nil, ErrDecryptError
	}
	return pem.EncodeToMemory(&pem.Block{Type: pkcs8KeyType, Bytes: der}), nil
}
