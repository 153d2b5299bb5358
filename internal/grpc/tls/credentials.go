package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/EternisAI/botping/internal/cert"
	"google.golang.org/grpc/credentials"
)

// Config describes TLS for the liveness gRPC surface.
type Config struct {
	Enabled    bool   `mapstructure:"enabled"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
	CAFile     string `mapstructure:"ca_file"`
	ClientAuth string `mapstructure:"client_auth"`

	// AutoGenerate issues a development CA and server pair into the files
	// above when they are missing. Hosts is a comma separated list of DNS
	// names and IPs for the server certificate.
	AutoGenerate bool   `mapstructure:"auto_generate"`
	CAKeyFile    string `mapstructure:"ca_key_file"`
	Hosts        string `mapstructure:"hosts"`
}

// ServerCredentials builds server transport credentials from cfg. The CA file
// is only read when client certificates are requested.
func ServerCredentials(cfg Config) (credentials.TransportCredentials, error) {
	clientAuth, err := ParseClientAuthType(cfg.ClientAuth)
	if err != nil {
		return nil, err
	}

	if cfg.AutoGenerate {
		files := cert.Files{
			CACert:     cfg.CAFile,
			CAKey:      cfg.CAKeyFile,
			ServerCert: cfg.CertFile,
			ServerKey:  cfg.KeyFile,
		}
		if err := cert.Ensure(files, cert.SplitList(cfg.Hosts)); err != nil {
			return nil, fmt.Errorf("failed to generate certificates: %w", err)
		}
	}

	pair, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}

	config := &tls.Config{
		Certificates: []tls.Certificate{pair},
		ClientAuth:   clientAuth,
		MinVersion:   tls.VersionTLS12,
	}

	if clientAuth != tls.NoClientCert {
		pool, err := loadCAPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		config.ClientCAs = pool
	}

	return credentials.NewTLS(config), nil
}

// ClientCredentials builds client transport credentials trusting caFile. The
// client certificate is optional and only needed against servers requiring
// mutual TLS.
func ClientCredentials(caFile, certFile, keyFile, serverName string) (credentials.TransportCredentials, error) {
	pool, err := loadCAPool(caFile)
	if err != nil {
		return nil, err
	}

	config := &tls.Config{
		RootCAs:    pool,
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}

	if certFile != "" || keyFile != "" {
		pair, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		config.Certificates = []tls.Certificate{pair}
	}

	return credentials.NewTLS(config), nil
}

func loadCAPool(caFile string) (*x509.CertPool, error) {
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("failed to append CA certificate from %s", caFile)
	}
	return pool, nil
}

func ParseClientAuthType(authType string) (tls.ClientAuthType, error) {
	switch authType {
	case "", "none":
		return tls.NoClientCert, nil
	case "request":
		return tls.RequestClientCert, nil
	case "require":
		return tls.RequireAndVerifyClientCert, nil
	default:
		return tls.NoClientCert, fmt.Errorf("invalid client auth type: %s (valid: none, request, require)", authType)
	}
}
