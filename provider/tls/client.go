/*
 TLS Client Provider

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
	"strings"

	"github.com/foretell-app/foretell/crypt/secure"
	"github.com/foretell-app/foretell/utils"
)

const (
	ErrIncompleteKeyPair = utils.Error("tls certificate and key must be set together")
	ErrInvalidTlsVersion = utils.Error("invalid TLS version")
)

// TLS 1.0 and 1.1 are not accepted
var tlsVersionMap = map[string]uint16{
	"TLS12": tls.VersionTLS12,
	"TLS13": tls.VersionTLS13,
}

// KeyCredential is the password source of an encrypted private key
type KeyCredential struct {
	Password       string `json:"tlsKeyPassword"`
	PasswordEnvVar string `json:"tlsKeyPasswordEnvVar"`
	PasswordFile   string `json:"tlsKeyPasswordFile"`
}

func (c KeyCredential) IsEmpty() bool {
	return c.credential().IsEmpty()
}

// Fetch retrieve the password; an env var is cleared after reading
func (c KeyCredential) Fetch() (string, error) {
	return c.credential().Fetch()
}

func (c KeyCredential) credential() secure.DefaultCredentialConfig {
	return secure.DefaultCredentialConfig{
		Password:       c.Password,
		PasswordEnvVar: c.PasswordEnvVar,
		PasswordFile:   c.PasswordFile,
	}
}

// ClientConfig represents the configuration for a tls client configuration
type ClientConfig struct {
	TLSCA   string `json:"tlsCa"`
	TLSCert string `json:"tlsCert"`
	TLSKey  string `json:"tlsKey"`
	KeyCredential
	TLSServerName         string `json:"tlsServerName"`
	TLSMinVersion         string `json:"tlsMinVersion"`
	TLSEnable             bool   `json:"tlsEnable"`
	TLSInsecureSkipVerify bool   `json:"tlsInsecureSkipVerify"`
}

// Validate checks the static settings; files are only read by TLSConfig
func (c *ClientConfig) Validate() error {
	if !c.TLSEnable {
		return nil
	}
	if (strings.TrimSpace(c.TLSCert) == "") != (strings.TrimSpace(c.TLSKey) == "") {
		return ErrIncompleteKeyPair
	}
	if c.TLSMinVersion != "" {
		if _, err := ParseTLSVersion(c.TLSMinVersion); err != nil {
			return err
		}
	}
	return nil
}

// ParseTLSVersion returns the crypto/tls constant of version ("TLS12" or "TLS13")
func ParseTLSVersion(version string) (uint16, error) {
	if v, ok := tlsVersionMap[strings.ToUpper(strings.TrimSpace(version))]; ok {
		return v, nil
	}
	return 0, ErrInvalidTlsVersion
}

// TLSConfig returns a tls.Config{} struct from the ClientConfig; nil if tls is disabled
func (c *ClientConfig) TLSConfig() (*tls.Config, error) {
	if !c.TLSEnable {
		return nil, nil
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         c.TLSServerName,
		InsecureSkipVerify: c.TLSInsecureSkipVerify,
	}
	if c.TLSMinVersion != "" {
		// already validated
		tlsConfig.MinVersion, _ = ParseTLSVersion(c.TLSMinVersion)
	}

	var err error
	if c.TLSCA != "" {
		if tlsConfig.RootCAs, err = LoadTLSCertPool([]string{c.TLSCA}); err != nil {
			return nil, err
		}
	}
	if c.TLSCert != "" && c.TLSKey != "" {
		if err = LoadTLSCertificate(tlsConfig, c.TLSCert, c.TLSKey, c.KeyCredential); err != nil {
			return nil, err
		}
	}
	return tlsConfig, nil
}
