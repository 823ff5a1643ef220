package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	// DefaultAPIBaseURL is the persistence API root.
	DefaultAPIBaseURL = "http://localhost:8000/api"
	// DefaultInferenceBaseURL is the inference process root.
	DefaultInferenceBaseURL = "http://127.0.0.1:5000"
	// DefaultTimeout bounds non-streaming calls.
	DefaultTimeout = 30 * time.Second

	// maxResponseSize caps non-streaming response bodies.
	maxResponseSize = 10 * 1024 * 1024

	csrfCookieName = "csrftoken"
	csrfHeaderName = "X-CSRFToken"
)

// ClientOptions configures a Client. Zero values fall back to the defaults.
type ClientOptions struct {
	APIBaseURL       string
	InferenceBaseURL string
	Timeout          time.Duration
	Jar              http.CookieJar
	Transport        http.RoundTripper
}

// Client talks to the persistence API and the inference process. The
// persistence API authenticates with session cookies and requires a CSRF
// token on unsafe methods.
type Client struct {
	apiBase       *url.URL
	inferenceBase *url.URL
	jar           http.CookieJar
	http          *http.Client
	stream        *http.Client

	csrfMu    sync.Mutex
	csrfToken string
}

// NewClient builds a Client. Base URLs must be absolute.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.APIBaseURL == "" {
		opts.APIBaseURL = DefaultAPIBaseURL
	}
	if opts.InferenceBaseURL == "" {
		opts.InferenceBaseURL = DefaultInferenceBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	apiBase, err := parseBaseURL(opts.APIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("api base url: %w", err)
	}
	inferenceBase, err := parseBaseURL(opts.InferenceBaseURL)
	if err != nil {
		return nil, fmt.Errorf("inference base url: %w", err)
	}

	jar := opts.Jar
	if jar == nil {
		jar, err = cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
	}

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		apiBase:       apiBase,
		inferenceBase: inferenceBase,
		jar:           jar,
		http:          &http.Client{Jar: jar, Timeout: opts.Timeout, Transport: transport},
		// streaming requests are bounded by their context only
		stream: &http.Client{Jar: jar, Transport: transport},
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(raw, "/") + "/")
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute URL", raw)
	}
	return u, nil
}

// APIBaseURL returns the persistence API root.
func (c *Client) APIBaseURL() string {
	return c.apiBase.String()
}

// InferenceBaseURL returns the inference process root.
func (c *Client) InferenceBaseURL() string {
	return c.inferenceBase.String()
}

// Cookies returns the session cookies held for the persistence API.
func (c *Client) Cookies() []*http.Cookie {
	return c.jar.Cookies(c.apiBase)
}

// SetCookies restores previously saved session cookies.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	c.jar.SetCookies(c.apiBase, cookies)
}

type backend int

const (
	backendAPI backend = iota
	backendInference
)

func (c *Client) resolve(b backend, path string) string {
	base := c.apiBase
	if b == backendInference {
		base = c.inferenceBase
	}
	// path arrives already escaped
	ref, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		ref = &url.URL{Path: strings.TrimLeft(path, "/")}
	}
	return base.ResolveReference(ref).String()
}

// request describes one JSON call
type request struct {
	op      string
	backend backend
	method  string
	path    string
	body    interface{}
}

func (c *Client) newRequest(ctx context.Context, r request) (*http.Request, error) {
	target := c.resolve(r.backend, r.path)

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, &TransportError{Op: r.op, URL: target, Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, &TransportError{Op: r.op, URL: target, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if r.backend == backendAPI && unsafeMethod(r.method) {
		token, err := c.csrf(ctx)
		if err != nil {
			LogDebug("No CSRF token available for %s: %v", r.op, err)
		} else if token != "" {
			req.Header.Set(csrfHeaderName, token)
		}
	}
	return req, nil
}

func unsafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, r request, out interface{}) error {
	req, err := c.newRequest(ctx, r)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: r.op, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()
	LogDebug("%s %s -> %d (%s)", r.method, req.URL, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	data, err := readResponse(resp)
	if err != nil {
		return &TransportError{Op: r.op, URL: req.URL.String(), Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(r.op, req.URL.String(), resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Op: r.op, URL: req.URL.String(), Status: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// openStream sends a request whose body is read incrementally by the caller.
func (c *Client) openStream(ctx context.Context, r request) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, &TransportError{Op: r.op, URL: req.URL.String(), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := readResponse(resp)
		return nil, statusError(r.op, req.URL.String(), resp.StatusCode, data)
	}
	return resp.Body, nil
}

func readResponse(resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) > maxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", maxResponseSize)
	}
	return data, nil
}

func statusError(op, target string, status int, body []byte) error {
	msg := errorMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	err := errors.New(msg)
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		err = fmt.Errorf("%w: %s", ErrNotAuthenticated, msg)
	}
	return &TransportError{Op: op, URL: target, Status: status, Err: err}
}

// errorMessage extracts {"error": ...} or {"detail": ...} from a failed response.
func errorMessage(body []byte) string {
	var e struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Detail != "" {
			return e.Detail
		}
	}
	return truncate(strings.TrimSpace(string(body)), 200)
}

// csrf returns the token from the csrftoken cookie, fetching one from the
// API the first time none is present.
func (c *Client) csrf(ctx context.Context) (string, error) {
	for _, ck := range c.jar.Cookies(c.apiBase) {
		if ck.Name == csrfCookieName && ck.Value != "" {
			return ck.Value, nil
		}
	}

	c.csrfMu.Lock()
	defer c.csrfMu.Unlock()
	if c.csrfToken != "" {
		return c.csrfToken, nil
	}
	token, err := c.FetchCSRF(ctx)
	if err != nil {
		return "", err
	}
	c.csrfToken = token
	return token, nil
}

// Probe reports whether each backend answers HTTP at all. Any status code
// counts as reachable.
func (c *Client) Probe(ctx context.Context) (apiErr, inferenceErr error) {
	return c.probe(ctx, backendAPI, "users/session-check/"), c.probe(ctx, backendInference, "")
}

func (c *Client) probe(ctx context.Context, b backend, path string) error {
	target := c.resolve(b, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &TransportError{Op: "probe", URL: target, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: "probe", URL: target, Err: err}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
	resp.Body.Close()
	LogDebug("Probe %s -> %d", target, resp.StatusCode)
	return nil
}
