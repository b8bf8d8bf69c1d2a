package reqconf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/relayforge/destinations/internal/domain"
	"github.com/relayforge/destinations/internal/pkg/safehttp"
)

const defaultTimeout = 10 * time.Second

// Request is the composed, extension-decorated request object handed to
// action perform functions. It carries the folded configuration and the
// outbound HTTP client.
type Request struct {
	cfg    Config
	client *http.Client
}

// New builds a Request from a composed configuration. A nil client
// selects the SSRF-guarded default.
func New(cfg Config, client *http.Client) *Request {
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		client = safehttp.Client(timeout)
	}
	return &Request{cfg: cfg, client: client}
}

// Config returns the composed configuration.
func (r *Request) Config() Config { return r.cfg }

// Response is the outcome of one partner call.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// JSON decodes the response body into v.
func (resp *Response) JSON(v any) error {
	return json.Unmarshal(resp.Body, v)
}

// Value decodes the response body into a generic JSON value, or returns
// the raw body as a string when it is not JSON.
func (resp *Response) Value() any {
	var v any
	if err := json.Unmarshal(resp.Body, &v); err != nil {
		return string(resp.Body)
	}
	return v
}

// Do performs one HTTP call. A relative path is joined onto the
// configured base URL; an absolute URL is used as-is. A non-nil body is
// JSON-encoded. Transport failures and non-2xx statuses surface as
// request errors with the underlying cause unmodified; no retries
// happen here.
func (r *Request) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	url := path
	if !strings.Contains(path, "://") {
		url = strings.TrimSuffix(r.cfg.BaseURL, "/") + path
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, domain.NewError(domain.ErrorKindRequest, "encode request body").WithCause(err)
		}
		reader = bytes.NewReader(encoded)
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, domain.NewError(domain.ErrorKindRequest, "build request").WithCause(err)
	}
	for key, values := range r.cfg.Headers {
		req.Header[key] = values
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, domain.NewError(domain.ErrorKindRequest, fmt.Sprintf("%s %s", method, url)).WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewError(domain.ErrorKindRequest, "read response body").WithCause(err)
	}

	out := &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, domain.NewError(domain.ErrorKindRequest,
			fmt.Sprintf("%s %s returned %d", method, url, resp.StatusCode))
	}
	return out, nil
}

// Get performs a GET request.
func (r *Request) Get(ctx context.Context, path string) (*Response, error) {
	return r.Do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with a JSON body.
func (r *Request) Post(ctx context.Context, path string, body any) (*Response, error) {
	return r.Do(ctx, http.MethodPost, path, body)
}
