// Package httpclient provides the single outbound fetch path for the
// application: a pooled HTTP client with one process-wide timeout, plus a
// pool-free variant with a browser TLS fingerprint for origins that reset
// reused connections.
package httpclient

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"iptv-bridge-go/pkg/config"
	"iptv-bridge-go/pkg/logging"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// Stable error codes surfaced to diagnostics and HTTP error bodies.
const (
	CodeTimeout  = "ETIMEDOUT"
	CodeNotFound = "ENOTFOUND"
	CodeUnknown  = "UNKNOWN"
)

// Client wraps outbound HTTP access. Every request carries the same fixed
// timeout; retries are a caller policy, never added here.
type Client struct {
	pooled  *http.Client
	bare    *http.Client
	timeout time.Duration
	log     *logging.Logger
}

// New creates the outbound client from configuration. When cfg.TLSInsecure is
// set, certificate verification is skipped on every TLS connection the
// process makes.
func New(cfg *config.Config, log *logging.Logger) *Client {
	c := &Client{
		timeout: cfg.FetchTimeout,
		log:     log.WithComponent("httpclient"),
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 60 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if cfg.TLSInsecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	c.pooled = &http.Client{
		Transport: transport,
		Timeout:   cfg.FetchTimeout,
	}

	c.bare = &http.Client{
		Transport: newBareRoundTripper(cfg.TLSInsecure),
		Timeout:   cfg.FetchTimeout,
	}

	return c
}

// Do executes a request on the shared connection pool.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.pooled.Do(req)
}

// DoBare executes a request on a fresh connection with a Chrome TLS
// fingerprint and no keep-alive. Used as the one-shot fallback path when an
// origin resets pooled connections.
func (c *Client) DoBare(req *http.Request) (*http.Response, error) {
	return c.bare.Do(req)
}

// Timeout reports the fixed per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// ClassifyError maps a transport failure to a stable code.
func ClassifyError(err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CodeNotFound
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	return CodeUnknown
}

// bareRoundTripper dials a new connection per request and speaks TLS with a
// Chrome hello. HTTP/2 is used when the origin negotiates it.
type bareRoundTripper struct {
	dialer      *net.Dialer
	h2Transport *http2.Transport
	insecure    bool
}

func newBareRoundTripper(insecure bool) *bareRoundTripper {
	return &bareRoundTripper{
		dialer: &net.Dialer{
			Timeout: 10 * time.Second,
		},
		h2Transport: &http2.Transport{},
		insecure:    insecure,
	}
}

func (t *bareRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		// Plain HTTP still avoids the shared pool
		plain := &http.Transport{
			DialContext:       t.dialer.DialContext,
			DisableKeepAlives: true,
		}
		return plain.RoundTrip(req)
	}

	addr := req.URL.Host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "443")
	}

	conn, err := t.dialer.DialContext(req.Context(), "tcp", addr)
	if err != nil {
		return nil, err
	}

	tlsConfig := &utls.Config{
		ServerName:         req.URL.Hostname(),
		InsecureSkipVerify: t.insecure,
	}
	utlsConn := utls.UClient(conn, tlsConfig, utls.HelloChrome_120)
	if err := utlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, err
	}

	if utlsConn.ConnectionState().NegotiatedProtocol == "h2" {
		h2Conn, err := t.h2Transport.NewClientConn(utlsConn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return h2Conn.RoundTrip(req)
	}

	return t.doHTTP1Request(utlsConn, req)
}

func (t *bareRoundTripper) doHTTP1Request(conn net.Conn, req *http.Request) (*http.Response, error) {
	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, err
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		conn.Close()
		return nil, err
	}

	// Connection closes with the body; nothing is pooled
	resp.Body = &connCloser{resp.Body, conn}
	return resp, nil
}

type connCloser struct {
	io.ReadCloser
	conn net.Conn
}

func (c *connCloser) Close() error {
	c.ReadCloser.Close()
	return c.conn.Close()
}
