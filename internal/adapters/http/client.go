package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ohmynofan/questline-bot/internal/domain/model"
	"github.com/ohmynofan/questline-bot/internal/platform/logger"
	"github.com/ohmynofan/questline-bot/pkg/utils"
	"golang.org/x/net/proxy"
)

type HTTPError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP Error %d: %s", e.StatusCode, e.Status)
}

type FetchOptions struct {
	Method            string
	Body              interface{}
	Form              url.Values
	RawBody           []byte
	AdditionalHeaders map[string]string
}

// Response is a successful (2xx) answer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) Decode(out interface{}) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return fmt.Errorf("empty response body")
	}
	return json.Unmarshal(r.Body, out)
}

type APIClient struct {
	BaseURL        string
	Proxy          string
	UserAgent      string
	DefaultHeaders map[string]string
	HTTPClient     *http.Client
	Log            *logger.ClassLogger
}

// NewAPIClient builds a client bound to one proxy and one cookie jar.
// An empty cookieFile keeps cookies in memory only.
func NewAPIClient(baseURL, proxyURL, cookieFile string, state *model.AccountState) (*APIClient, error) {
	transport, err := newTransport(proxyURL)
	if err != nil {
		return nil, err
	}

	jar, err := newCookieJar(cookieFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cookie jar: %w", err)
	}

	base := strings.TrimRight(baseURL, "/")
	apiClient := &APIClient{
		BaseURL:   base,
		Proxy:     proxyURL,
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		DefaultHeaders: map[string]string{
			"Origin":  base,
			"Referer": base + "/",
		},
		HTTPClient: &http.Client{
			Transport: transport,
			Timeout:   120 * time.Second,
			Jar:       jar,
		},
	}
	apiClient.Log = logger.NewLogger(apiClient, state)

	return apiClient, nil
}

func newTransport(proxyURL string) (*http.Transport, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if strings.TrimSpace(proxyURL) == "" {
		return transport, nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if u.User != nil {
			pass, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: pass}
		}
		dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("invalid socks5 proxy: %w", err)
		}
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported proxy scheme: %s", u.Scheme)
	}
	return transport, nil
}

func (c *APIClient) HasCookies() bool {
	if jar, ok := c.HTTPClient.Jar.(*cookieJar); ok {
		return jar.HasCookies()
	}
	return false
}

func (c *APIClient) ClearCookies() error {
	if jar, ok := c.HTTPClient.Jar.(*cookieJar); ok {
		return jar.Clear()
	}
	return nil
}

func (c *APIClient) generateHeaders() map[string]string {
	headers := map[string]string{
		"Accept":             "application/json, text/plain, */*",
		"Accept-Language":    "en-US,en;q=0.9",
		"Content-Type":       "application/json",
		"User-Agent":         c.UserAgent,
		"Cache-Control":      "no-cache",
		"Pragma":             "no-cache",
		"Sec-Ch-Ua":          "\"Google Chrome\";v=\"131\", \"Chromium\";v=\"131\", \"Not_A Brand\";v=\"24\"",
		"Sec-Ch-Ua-Mobile":   "?0",
		"Sec-Ch-Ua-Platform": "\"macOS\"",
		"Sec-Fetch-Dest":     "empty",
		"Sec-Fetch-Mode":     "cors",
		"Sec-Fetch-Site":     "same-origin",
	}
	for k, v := range c.DefaultHeaders {
		headers[k] = v
	}
	return headers
}

// Fetch performs one request. Relative endpoints are resolved against
// BaseURL. Non-2xx answers come back as *HTTPError.
func (c *APIClient) Fetch(ctx context.Context, endpoint string, opts *FetchOptions) (*Response, error) {
	if opts == nil {
		opts = &FetchOptions{}
	}
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	if strings.HasPrefix(endpoint, "/") {
		endpoint = c.BaseURL + endpoint
	}

	set := 0
	for _, present := range []bool{opts.Body != nil, opts.Form != nil, opts.RawBody != nil} {
		if present {
			set++
		}
	}
	if set > 1 {
		return nil, fmt.Errorf("only one of Body, Form and RawBody may be set")
	}

	var (
		payload     []byte
		contentType = "application/json"
	)
	switch {
	case opts.RawBody != nil:
		payload = opts.RawBody
	case opts.Form != nil:
		payload = []byte(opts.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case opts.Body != nil && method != http.MethodGet:
		b, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = b
	}
	hasBody := payload != nil

	var reqBody io.Reader
	if hasBody {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.generateHeaders() {
		req.Header.Set(key, value)
	}
	if hasBody {
		req.Header.Set("Content-Type", contentType)
	} else {
		req.Header.Del("Content-Type")
	}
	for key, value := range opts.AdditionalHeaders {
		req.Header.Set(key, value)
	}

	if hasBody {
		c.Log.Debugf("%s %s\nBody:\n%s", method, endpoint, utils.BeautifyJSON(payload))
	} else {
		c.Log.Debugf("%s %s", method, endpoint)
	}

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.Log.Debugf("Response %d Body:\n%s", res.StatusCode, utils.BeautifyJSON(resBody))

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return &Response{StatusCode: res.StatusCode, Header: res.Header, Body: resBody}, nil
	}

	return nil, &HTTPError{
		StatusCode: res.StatusCode,
		Status:     res.Status,
		Body:       resBody,
	}
}
