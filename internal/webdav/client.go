// Package webdav is a minimal WebDAV client: authenticated PUT for uploads
// and a Depth 0 PROPFIND to read back the stored size of a resource.
package webdav

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	MethodPropfind = "PROPFIND"

	maxErrorBody = 4 << 10
)

const propfindBody = `<?xml version="1.0" encoding="utf-8"?>
<d:propfind xmlns:d="DAV:">
  <d:prop>
    <d:getcontentlength/>
  </d:prop>
</d:propfind>`

var ErrBadSize = errors.New("invalid getcontentlength")

// StatusError is returned when the server answers with a status outside the
// success set of the request.
type StatusError struct {
	Method string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: %d %s", e.Method, e.Status, strings.TrimSpace(e.Body))
}

// Options configures a Client.
type Options struct {
	BaseURL  string
	Username string
	Password string

	// Timeout bounds each request; zero waits forever.
	Timeout time.Duration

	// HTTPClient overrides the transport; nil uses a client with default transport.
	HTTPClient *http.Client
}

// Client talks to one WebDAV collection. Credentials are sent as HTTP Basic
// on every request and never logged.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		baseURL:  opts.BaseURL,
		username: opts.Username,
		password: opts.Password,
		http:     httpClient,
	}
}

// URL returns the absolute URL of remoteName inside the collection.
func (c *Client) URL(remoteName string) string {
	return c.baseURL + remoteName
}

// Upload streams the local file as the body of a PUT to URL(remoteName).
// 200, 201 and 204 are success; anything else is a *StatusError carrying the
// response body.
func (c *Client) Upload(ctx context.Context, localPath, remoteName string) (int, error) {
	f, err := os.Open(localPath) //nolint:gosec // artifact path built by the orchestrator
	if err != nil {
		return 0, fmt.Errorf("open upload source: %w", err)
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat upload source: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.URL(remoteName), f)
	if err != nil {
		return 0, fmt.Errorf("build PUT request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	return resp.StatusCode, statusError(http.MethodPut, resp)
}

// RemoteSize asks the server for the getcontentlength property of remoteURL.
// A nil size with a nil error means the property was absent.
func (c *Client) RemoteSize(ctx context.Context, remoteURL string) (*int64, error) {
	req, err := http.NewRequestWithContext(ctx, MethodPropfind, remoteURL, strings.NewReader(propfindBody))
	if err != nil {
		return nil, fmt.Errorf("build PROPFIND request: %w", err)
	}
	req.Header.Set("Depth", "0")
	req.Header.Set("Content-Type", `application/xml; charset="utf-8"`)

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusMultiStatus && resp.StatusCode != http.StatusOK {
		return nil, statusError(MethodPropfind, resp)
	}
	return parseContentLength(resp.Body)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(c.username, c.password)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	return resp, nil
}

func statusError(method string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Method: method, Status: resp.StatusCode, Body: string(body)}
}

// multistatus covers the parts of a DAV: multistatus response we read.
type multistatus struct {
	XMLName   xml.Name   `xml:"DAV: multistatus"`
	Responses []response `xml:"response"`
}

type response struct {
	Href      string     `xml:"href"`
	Propstats []propstat `xml:"propstat"`
}

type propstat struct {
	Prop struct {
		ContentLength *string `xml:"getcontentlength"`
	} `xml:"prop"`
	Status string `xml:"status"`
}

// parseContentLength returns the first getcontentlength found in a
// multistatus document.
func parseContentLength(r io.Reader) (*int64, error) {
	var ms multistatus
	if err := xml.NewDecoder(r).Decode(&ms); err != nil {
		return nil, fmt.Errorf("parse PROPFIND response: %w", err)
	}
	for _, resp := range ms.Responses {
		for _, ps := range resp.Propstats {
			// servers report unknown properties in a 404 propstat
			if ps.Prop.ContentLength == nil || (ps.Status != "" && !strings.Contains(ps.Status, " 200")) {
				continue
			}
			raw := strings.TrimSpace(*ps.Prop.ContentLength)
			size, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || size < 0 {
				return nil, fmt.Errorf("%w: %q", ErrBadSize, raw)
			}
			return &size, nil
		}
	}
	return nil, nil
}
