// Package remote is the HTTP client for the marker API. It implements
// markersync.Source and reports every transport or server failure as a
// *domain.SyncFailedError.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/markerwatch/internal/domain"
	"github.com/pkordes/markerwatch/internal/wire"
)

// maxPages bounds a single fetch so a misbehaving server cannot keep the
// client paging forever.
const maxPages = 1000

// Client talks to one marker API base URL.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient returns a Client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("remote.NewClient: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote.NewClient: unsupported scheme %q", u.Scheme)
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchActiveMarkers pages through GET /markers and returns every active
// marker. Pages after the first are requested with the previous page's
// next_cursor, so markers expiring mid-walk do not shift later rows out
// of view. Markers seen twice are returned once.
func (c *Client) FetchActiveMarkers(ctx context.Context) ([]domain.Marker, error) {
	var (
		out   []domain.Marker
		seen  = make(map[uuid.UUID]bool)
		after string
	)
	for page := 1; page <= maxPages; page++ {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(domain.MaxPageLimit))
		if after != "" {
			q.Set("after", after)
		}

		var list wire.MarkerList
		if err := c.do(ctx, http.MethodGet, "/markers?"+q.Encode(), nil, &list); err != nil {
			return nil, fmt.Errorf("remote.Client.FetchActiveMarkers: %w", err)
		}
		for _, m := range list.Data {
			if seen[m.Id] {
				continue
			}
			seen[m.Id] = true
			out = append(out, m.ToDomain())
		}
		if len(list.Data) < domain.MaxPageLimit || list.Pagination.NextCursor == nil {
			break
		}
		after = *list.Pagination.NextCursor
	}
	if out == nil {
		out = []domain.Marker{}
	}
	return out, nil
}

// SubmitMarker posts d to POST /markers and returns the canonical marker.
// A 422 response is returned as an error wrapping domain.ErrValidation.
func (c *Client) SubmitMarker(ctx context.Context, d domain.Draft) (domain.Marker, error) {
	var created wire.Marker
	if err := c.do(ctx, http.MethodPost, "/markers", wire.NewCreateMarkerRequest(d), &created); err != nil {
		return domain.Marker{}, fmt.Errorf("remote.Client.SubmitMarker: %w", err)
	}
	return created.ToDomain(), nil
}

// Confirm posts one corroboration for the marker with the given id.
func (c *Client) Confirm(ctx context.Context, id uuid.UUID) (domain.Marker, error) {
	var m wire.Marker
	if err := c.do(ctx, http.MethodPost, "/markers/"+id.String()+"/confirmations", nil, &m); err != nil {
		return domain.Marker{}, fmt.Errorf("remote.Client.Confirm: %w", err)
	}
	return m.ToDomain(), nil
}

// do sends one request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewSyncFailed(domain.SyncServer, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// statusError maps a non-2xx response onto the domain error taxonomy.
func statusError(resp *http.Response) error {
	var apiErr wire.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}
	cause := fmt.Errorf("%s: %s", resp.Status, msg)

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", domain.ErrValidation, msg)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return domain.NewSyncFailed(domain.SyncTimeout, cause)
	default:
		return domain.NewSyncFailed(domain.SyncServer, cause)
	}
}

// classifyTransport separates timeouts from other network failures.
func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewSyncFailed(domain.SyncTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return domain.NewSyncFailed(domain.SyncTimeout, err)
	}
	return domain.NewSyncFailed(domain.SyncNetwork, err)
}
