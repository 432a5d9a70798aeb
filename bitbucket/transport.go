package bitbucket

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Transport issues raw REST requests. Implementations
// return an error only when no response was obtained;
// any status code is a valid Response.
type Transport interface {
	Get(
		ctx context.Context,
		url string,
		header http.Header,
	) (*Response, error)
	Post(
		ctx context.Context,
		url string,
		header http.Header,
		body []byte,
	) (*Response, error)
}

// Response is a fully read REST response.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Status is the status text (e.g. "Not Found").
	Status string
	// Body holds the raw response body. It is nil
	// when the body could not be read.
	Body []byte
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// HTTPTransport implements Transport on top of an
// *http.Client.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport returns a transport using client.
// A nil client means http.DefaultClient. Timeouts are
// whatever the client is configured with.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPTransport{client: client}
}

// Get issues a GET request.
func (t *HTTPTransport) Get(
	ctx context.Context,
	url string,
	header http.Header,
) (*Response, error) {
	return t.do(ctx, http.MethodGet, url, header, nil)
}

// Post issues a POST request carrying body.
func (t *HTTPTransport) Post(
	ctx context.Context,
	url string,
	header http.Header,
	body []byte,
) (*Response, error) {
	return t.do(ctx, http.MethodPost, url, header, body)
}

func (t *HTTPTransport) do(
	ctx context.Context,
	method string,
	url string,
	header http.Header,
	body []byte,
) (*Response, error) {
	const errCtx = "sending request"

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(
		ctx, method, url, rd,
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: build request: %w", errCtx, err,
		)
	}

	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %s %s: %w", errCtx, method, url, err,
		)
	}

	defer resp.Body.Close() //nolint:errcheck

	out := &Response{
		StatusCode: resp.StatusCode,
		Status:     reasonPhrase(resp),
	}

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Warn(
			"cannot read response body",
			"error", err,
		)

		return out, nil
	}

	out.Body = rb

	return out, nil
}

// reasonPhrase is the status line without its code, as
// sent by the server. The standard text is used when the
// server sent none.
func reasonPhrase(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)

	if p, ok := strings.CutPrefix(resp.Status, code); ok {
		if p = strings.TrimSpace(p); p != "" {
			return p
		}
	}

	return http.StatusText(resp.StatusCode)
}
