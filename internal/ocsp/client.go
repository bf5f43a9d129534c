package ocsp

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseBytes caps the size of an OCSP response read from a server.
const maxResponseBytes = 1 << 20

// Client queries OCSP responders over HTTP. Each call is a single
// request/response exchange: no caching, no retries.
type Client struct {
	// HTTPClient is the underlying transport. Defaults to a client with
	// a 30 second timeout.
	HTTPClient *http.Client

	// Hash selects the CertID digest for outgoing requests. Zero selects
	// the default digest.
	Hash crypto.Hash
}

// NewClient creates an OCSP client with default settings.
func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ServerFromCert returns the first OCSP responder URL from the
// certificate's Authority Information Access extension.
func ServerFromCert(cert *x509.Certificate) (string, error) {
	if len(cert.OCSPServer) == 0 {
		return "", fmt.Errorf("certificate carries no OCSP responder URL")
	}
	return cert.OCSPServer[0], nil
}

// Query asks the responder at serverURL for the status of cert, issued by
// issuer, using an HTTP POST exchange.
func (c *Client) Query(ctx context.Context, cert, issuer *x509.Certificate, serverURL string) (*Response, error) {
	reqDER, err := c.buildRequest(cert, issuer)
	if err != nil {
		return nil, err
	}

	data, err := c.QueryRaw(ctx, reqDER, serverURL)
	if err != nil {
		return nil, err
	}
	return ParseResponse(data)
}

// QueryGet asks the responder using the GET form of the protocol: the
// DER request is base64-encoded and appended to the URL path (RFC 6960
// appendix A.1). Large requests should use Query instead.
func (c *Client) QueryGet(ctx context.Context, cert, issuer *x509.Certificate, serverURL string) (*Response, error) {
	reqDER, err := c.buildRequest(cert, issuer)
	if err != nil {
		return nil, err
	}

	encoded := base64.StdEncoding.EncodeToString(reqDER)
	fullURL := strings.TrimSuffix(serverURL, "/") + "/" + url.PathEscape(encoded)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, NewOCSPError("query", err)
	}

	data, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	return ParseResponse(data)
}

// QueryRaw sends a pre-built DER request via POST and returns the raw DER
// response without decoding it.
func (c *Client) QueryRaw(ctx context.Context, reqDER []byte, serverURL string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL, bytes.NewReader(reqDER))
	if err != nil {
		return nil, NewOCSPError("query", err)
	}
	httpReq.Header.Set("Content-Type", "application/ocsp-request")

	return c.do(httpReq)
}

func (c *Client) buildRequest(cert, issuer *x509.Certificate) ([]byte, error) {
	req, err := CreateRequest(issuer, []*x509.Certificate{cert}, c.Hash)
	if err != nil {
		return nil, err
	}
	return req.Marshal()
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, NewOCSPError("query", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, NewOCSPError("query", fmt.Errorf("server returned HTTP %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, NewOCSPError("query", fmt.Errorf("failed to read response: %w", err))
	}
	if len(data) > maxResponseBytes {
		return nil, NewOCSPError("query", fmt.Errorf("response exceeds %d bytes", maxResponseBytes))
	}
	return data, nil
}
