package interbank

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

// NewHTTPClient builds the client used for counterparty calls. When a
// certificate pair is configured it is presented for mutual TLS.
func NewHTTPClient(certFile, keyFile string, timeout time.Duration) (*http.Client, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	if certFile == "" && keyFile == "" {
		return client, nil
	}
	if certFile == "" || keyFile == "" {
		return nil, fmt.Errorf("NewHTTPClient: both certificate and key are required for mutual TLS")
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("NewHTTPClient: load client certificate: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	client.Transport = transport
	return client, nil
}
