// Package client talks to the riderpoint JSON API. It is the fetch and
// persistence collaborator used by the engine when it runs outside the API
// process.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"golang.org/x/net/html"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/sw33tLie/riderpoint/pkg/catalog"
)

const UserAgent = "riderpoint-client/1.0"

type Header struct {
	Name  string
	Value string
}

type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers []Header
	Body    interface{}
}

type Response struct {
	StatusCode int
	Body       []byte
	// HTMLTitle is set when the body is an HTML page, e.g. a proxy error.
	HTMLTitle string
}

// Client is safe for concurrent use.
type Client struct {
	base    *url.URL
	http    *retryablehttp.Client
	limiter *rate.Limiter
}

// Option customizes a Client.
type Option func(*Client)

// WithRetries sets how often a failed request is retried.
func WithRetries(n int) Option {
	return func(c *Client) { c.http.RetryMax = n }
}

// WithRateLimit caps requests per second; 0 disables the limit.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.HTTPClient.Timeout = d }
}

// WithHTTPClient replaces the underlying transport client, e.g. for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http.HTTPClient = hc }
}

// WithProxy routes requests through an HTTP proxy. Empty or unparsable
// values are ignored.
func WithProxy(proxyURL string) Option {
	return func(c *Client) {
		if proxyURL == "" {
			return
		}
		u, err := url.Parse(proxyURL)
		if err != nil || u.Host == "" {
			return
		}
		if tr, ok := c.http.HTTPClient.Transport.(*http.Transport); ok {
			tr.Proxy = http.ProxyURL(u)
		}
	}
}

// New creates a client for the API under baseURL (e.g. http://localhost:7071/api).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q", baseURL)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = log.New(io.Discard, "", 0)
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.HTTPClient.Jar = jar
	retryClient.HTTPClient.Timeout = 15 * time.Second

	c := &Client{
		base:    u,
		http:    retryClient,
		limiter: rate.NewLimiter(rate.Limit(10), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Send performs one API request. Non-2xx answers become errors wrapping the
// catalog sentinel matching the status code.
func (c *Client) Send(ctx context.Context, r *Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(r.Path, "/")
	if len(r.Query) > 0 {
		u.RawQuery = r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		raw, err := json.Marshal(r.Body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range r.Headers {
		req.Header.Add(h.Name, h.Value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	res := &Response{StatusCode: resp.StatusCode, Body: raw}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		if title, ok := getHTMLTitle(raw); ok {
			res.HTMLTitle = strings.ToValidUTF8(strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(title, "\n", ""), "\r", "")), "")
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return res, statusError(method, r.Path, res)
	}
	return res, nil
}

// StatusError is a non-2xx API answer.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

func (e *StatusError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return catalog.ErrValidation
	case http.StatusNotFound:
		return catalog.ErrNotFound
	case http.StatusConflict:
		return catalog.ErrConflict
	}
	return nil
}

func statusError(method, path string, res *Response) error {
	msg := gjson.GetBytes(res.Body, "error").String()
	if msg == "" {
		msg = res.HTMLTitle
	}
	if msg == "" {
		msg = strings.TrimSpace(string(res.Body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
	}
	return &StatusError{Method: method, Path: path, Status: res.StatusCode, Message: msg}
}

// IsStatus reports whether err is an API answer with the given status.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

func isTitleElement(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "title"
}

func traverse(n *html.Node) (string, bool) {
	if isTitleElement(n) {
		if n.FirstChild != nil {
			return n.FirstChild.Data, true
		}
		return "", true
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		result, ok := traverse(c)
		if ok {
			return result, ok
		}
	}

	return "", false
}

func getHTMLTitle(body []byte) (string, bool) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	return traverse(doc)
}
