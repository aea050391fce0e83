// Package caas implements the HTTP client for the upstream content store.
// The mapping engine depends on it only through the FetchClient capability:
// "fetch items matching a filter" (fetch-by-id is a single-element filter).
//
// The upstream exposes one collection per project and content mode:
//
//	GET {base}/{project}/{mode}.content?locale=..&page=..&pagesize=..&filter={json}
//
// where filter may repeat, each occurrence carrying one wire filter object.
// Responses use the envelope {"items": [...], "totalCount": n}.
package caas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/veldt-cms/veldt/query"
)

// Content modes supported by the upstream store.
const (
	ModePreview = "preview"
	ModeRelease = "release"
)

// DefaultPagesize is used when a fetch request does not specify a page size.
const DefaultPagesize = 30

// ErrNotFound is returned when a requested element does not exist upstream.
var ErrNotFound = errors.New("element not found")

// RemoteProject describes a separately-configured content namespace whose
// items may be referenced from the current project.
type RemoteProject struct {
	// ID is the upstream project identifier.
	ID string `yaml:"id" json:"id"`

	// Locale overrides the client locale when fetching from this project.
	Locale string `yaml:"locale" json:"locale"`

	// APIKey overrides the client API key, for remotes with separate auth.
	APIKey string `yaml:"apikey,omitempty" json:"apikey,omitempty"`
}

// Params describes one filtered fetch against the store.
type Params struct {
	// Filters are combined conjunctively by the upstream store.
	Filters []query.Filter

	// Locale selects the language variant of the fetched items.
	Locale string

	// Page is the 1-based result page. Zero means page 1.
	Page int

	// Pagesize bounds the number of returned items. Zero means DefaultPagesize.
	Pagesize int

	// ProjectID addresses a configured remote project; empty means the
	// client's own project.
	ProjectID string
}

// Page is one page of fetch results.
type Page struct {
	Items      []map[string]any `json:"items"`
	TotalCount int              `json:"totalCount"`
}

// FetchClient is the capability the mapping engine consumes.
type FetchClient interface {
	FetchByFilter(ctx context.Context, p Params) (*Page, error)
}

// ClientConfig holds the settings needed to construct a Client.
type ClientConfig struct {
	BaseURL     string
	APIKey      string
	ProjectID   string
	ContentMode string
	// Remotes is keyed by remote project ID.
	Remotes map[string]RemoteProject
	// HTTPClient is optional; a 30s-timeout client is used when nil.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client fetches raw items from the upstream content store.
type Client struct {
	baseURL     string
	apiKey      string
	projectID   string
	contentMode string
	remotes     map[string]RemoteProject
	hc          *http.Client
	log         *slog.Logger
}

// NewClient creates a Client from the given configuration.
func NewClient(cfg ClientConfig) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	mode := cfg.ContentMode
	if mode == "" {
		mode = ModePreview
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		projectID:   cfg.ProjectID,
		contentMode: mode,
		remotes:     cfg.Remotes,
		hc:          hc,
		log:         log,
	}
}

// FetchByFilter fetches the page of items matching the given filters. When
// p.ProjectID names a configured remote project, the fetch addresses that
// project with its own API key.
func (c *Client) FetchByFilter(ctx context.Context, p Params) (*Page, error) {
	project := c.projectID
	apiKey := c.apiKey
	if p.ProjectID != "" {
		remote, ok := c.remotes[p.ProjectID]
		if !ok {
			return nil, fmt.Errorf("unknown remote project %q", p.ProjectID)
		}
		project = remote.ID
		if remote.APIKey != "" {
			apiKey = remote.APIKey
		}
	}

	page := p.Page
	if page < 1 {
		page = 1
	}
	pagesize := p.Pagesize
	if pagesize < 1 {
		pagesize = DefaultPagesize
	}

	wire, err := query.Build(p.Filters)
	if err != nil {
		return nil, fmt.Errorf("building filter query: %w", err)
	}

	values := url.Values{}
	values.Set("locale", p.Locale)
	values.Set("page", strconv.Itoa(page))
	values.Set("pagesize", strconv.Itoa(pagesize))
	for _, w := range wire {
		encoded, err := json.Marshal(w)
		if err != nil {
			return nil, fmt.Errorf("encoding filter: %w", err)
		}
		values.Add("filter", string(encoded))
	}

	endpoint := fmt.Sprintf("%s/%s/%s.content?%s",
		c.baseURL, url.PathEscape(project), c.contentMode, values.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building fetch request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("X-Request-ID", uuid.NewString())

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching from content store: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug("content store fetch",
		"project", project,
		"locale", p.Locale,
		"page", page,
		"pagesize", pagesize,
		"status", resp.StatusCode,
		"duration", time.Since(start).String(),
	)

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("content store returned %d: %s", resp.StatusCode, string(body))
	}

	var result Page
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding content store response: %w", err)
	}
	return &result, nil
}

// FetchElement fetches a single item by its stable identifier, implemented as
// a single-element filter. Returns ErrNotFound when the identifier does not
// exist in the given locale.
func (c *Client) FetchElement(ctx context.Context, id, locale string) (map[string]any, error) {
	page, err := c.FetchByFilter(ctx, Params{
		Filters:  []query.Filter{query.Eq("identifier", id)},
		Locale:   locale,
		Page:     1,
		Pagesize: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, fmt.Errorf("element %q: %w", id, ErrNotFound)
	}
	return page.Items[0], nil
}

// FetchProjectProperties fetches the project-properties item of the client's
// project in the given locale.
func (c *Client) FetchProjectProperties(ctx context.Context, locale string) (map[string]any, error) {
	page, err := c.FetchByFilter(ctx, Params{
		Filters:  []query.Filter{query.Eq("fsType", "ProjectProperties")},
		Locale:   locale,
		Page:     1,
		Pagesize: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, fmt.Errorf("project properties: %w", ErrNotFound)
	}
	return page.Items[0], nil
}
