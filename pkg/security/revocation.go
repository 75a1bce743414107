package security

import (
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/crypto/ocsp"
)

// ErrCertificateRevoked is returned when the issuer reports the
// certificate as revoked
var ErrCertificateRevoked = errors.New("certificate is revoked")

// RevocationChecker checks whether a partner certificate has been
// revoked before it is trusted for signature verification or key
// transport
type RevocationChecker interface {
	CheckRevocation(ctx context.Context, cert, issuer *x509.Certificate) error
}

// OCSPConfig configures the OCSP checker
type OCSPConfig struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	// StrictMode fails the check when no responder can be reached;
	// otherwise an unreachable responder is treated as not revoked
	StrictMode bool
}

// DefaultOCSPConfig returns the default checker configuration
func DefaultOCSPConfig() *OCSPConfig {
	return &OCSPConfig{Timeout: 10 * time.Second}
}

// OCSPChecker implements RevocationChecker against the certificate's
// OCSP responders
type OCSPChecker struct {
	config     *OCSPConfig
	httpClient *http.Client
}

// NewOCSPChecker creates an OCSP revocation checker
func NewOCSPChecker(config *OCSPConfig) *OCSPChecker {
	if config == nil {
		config = DefaultOCSPConfig()
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	return &OCSPChecker{config: config, httpClient: client}
}

// CheckRevocation queries each OCSP responder named in the certificate
// until one answers
func (c *OCSPChecker) CheckRevocation(ctx context.Context, cert, issuer *x509.Certificate) error {
	if cert == nil || issuer == nil {
		return secErrf("ocsp", "certificate and issuer are required")
	}
	if len(cert.OCSPServer) == 0 {
		if c.config.StrictMode {
			return secErrf("ocsp", "certificate names no OCSP responder")
		}
		return nil
	}

	req, err := ocsp.CreateRequest(cert, issuer, nil)
	if err != nil {
		return secErr("ocsp", fmt.Errorf("creating request: %w", err))
	}

	var lastErr error
	for _, server := range cert.OCSPServer {
		status, err := c.query(ctx, server, req, issuer)
		if err != nil {
			lastErr = err
			continue
		}
		switch status {
		case ocsp.Good:
			return nil
		case ocsp.Revoked:
			return ErrCertificateRevoked
		default:
			lastErr = fmt.Errorf("responder %s returned unknown status", server)
		}
	}

	if c.config.StrictMode {
		return secErr("ocsp", fmt.Errorf("revocation status undetermined: %w", lastErr))
	}
	return nil
}

func (c *OCSPChecker) query(ctx context.Context, server string, req []byte, issuer *x509.Certificate) (int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, server, bytes.NewReader(req))
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Content-Type", "application/ocsp-request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, err
	}
	parsed, err := ocsp.ParseResponse(body, issuer)
	if err != nil {
		return 0, fmt.Errorf("parsing response from %s: %w", server, err)
	}
	return parsed.Status, nil
}
