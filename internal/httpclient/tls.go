// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
)

// TLSConfig configures custom certificate trust for an upstream connection,
// used for self-hosted model endpoints and MCP servers behind a corporate CA.
type TLSConfig struct {
	InsecureSkipVerify bool
	CACertificate      string
}

// ConfigureTLS builds an http.Transport honoring config, or nil if config is
// nil.
func ConfigureTLS(config *TLSConfig) (*http.Transport, error) {
	if config == nil {
		return nil, nil
	}

	tlsConfig := &tls.Config{InsecureSkipVerify: config.InsecureSkipVerify}

	if config.CACertificate != "" {
		pool, err := systemCertPoolOrNew()
		if err != nil {
			return nil, fmt.Errorf("loading system cert pool: %w", err)
		}
		pem, err := os.ReadFile(config.CACertificate)
		if err != nil {
			return nil, fmt.Errorf("reading CA certificate %q: %w", config.CACertificate, err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %q", config.CACertificate)
		}
		tlsConfig.RootCAs = pool
	}

	return &http.Transport{TLSClientConfig: tlsConfig}, nil
}

func systemCertPoolOrNew() (*x509.CertPool, error) {
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		return x509.NewCertPool(), nil
	}
	return pool, nil
}

// WithTLSConfig wires a custom TLS transport into a Client's underlying
// http.Client.
func WithTLSConfig(config *TLSConfig) Option {
	return func(c *Client) {
		transport, err := ConfigureTLS(config)
		if err != nil || transport == nil {
			return
		}
		c.client.Transport = transport
	}
}
