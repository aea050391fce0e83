// Package navigation implements the client for the navigation service: a
// locale-scoped fetch of the navigation tree plus a recursive walk over its
// structure. It is a collaborator of the content mapping engine, not part of
// the reference-resolution core.
package navigation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no navigation exists for the requested locale
// or initial path.
var ErrNotFound = errors.New("navigation not found")

// Item is one node of the navigation tree, keyed by ID in the IDMap.
type Item struct {
	ID               string              `json:"id"`
	ParentIDs        []string            `json:"parentIds"`
	Label            string              `json:"label"`
	ContentReference string              `json:"contentReference"`
	CaasDocumentID   string              `json:"caasDocumentId"`
	SeoRoute         string              `json:"seoRoute"`
	CustomData       map[string]any      `json:"customData,omitempty"`
	SeoRouteRegex    string              `json:"seoRouteRegex,omitempty"`
	Permissions      map[string][]string `json:"permissions,omitempty"`
}

// StructureNode mirrors the nesting of the navigation tree; nodes carry only
// IDs, resolved against the IDMap.
type StructureNode struct {
	ID       string          `json:"id"`
	Children []StructureNode `json:"children"`
}

// Tree is the navigation data for one locale.
type Tree struct {
	IDMap       map[string]Item   `json:"idMap"`
	SeoRouteMap map[string]string `json:"seoRouteMap"`
	Structure   []StructureNode   `json:"structure"`
	Pages       map[string]string `json:"pages,omitempty"`
	Meta        map[string]any    `json:"meta,omitempty"`
}

// Walk visits every navigation item in structure order, depth first. The
// callback receives the item and its depth; returning false prunes the
// subtree below the item.
func (t *Tree) Walk(fn func(item Item, depth int) bool) {
	t.walkNodes(t.Structure, 0, fn)
}

func (t *Tree) walkNodes(nodes []StructureNode, depth int, fn func(Item, int) bool) {
	for _, node := range nodes {
		item, ok := t.IDMap[node.ID]
		if !ok {
			continue
		}
		if !fn(item, depth) {
			continue
		}
		t.walkNodes(node.Children, depth+1, fn)
	}
}

// FindByRoute returns the navigation item whose SEO route matches route.
func (t *Tree) FindByRoute(route string) (Item, bool) {
	id, ok := t.SeoRouteMap[route]
	if !ok {
		return Item{}, false
	}
	item, ok := t.IDMap[id]
	return item, ok
}

// Client fetches navigation trees from the navigation service.
type Client struct {
	baseURL   string
	projectID string
	apiKey    string
	hc        *http.Client
	log       *slog.Logger
}

// ClientConfig holds the settings needed to construct a navigation Client.
type ClientConfig struct {
	BaseURL    string
	ProjectID  string
	APIKey     string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewClient creates a navigation Client.
func NewClient(cfg ClientConfig) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		projectID: cfg.ProjectID,
		apiKey:    cfg.APIKey,
		hc:        hc,
		log:       log,
	}
}

// FetchTree fetches the navigation tree for a locale. A non-empty
// initialPath scopes the tree to the subtree owning that SEO route.
func (c *Client) FetchTree(ctx context.Context, locale, initialPath string) (*Tree, error) {
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(c.projectID))
	if initialPath != "" {
		endpoint += "/by-seo-route/" + url.PathEscape(initialPath)
	}

	values := url.Values{}
	values.Set("language", locale)
	values.Set("depth", "99")
	endpoint += "?" + values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building navigation request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching navigation: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug("navigation fetch",
		"locale", locale,
		"initial_path", initialPath,
		"status", resp.StatusCode,
		"duration", time.Since(start).String(),
	)

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("navigation for locale %q: %w", locale, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("navigation service returned %d: %s", resp.StatusCode, string(body))
	}

	var tree Tree
	if err := json.NewDecoder(resp.Body).Decode(&tree); err != nil {
		return nil, fmt.Errorf("decoding navigation response: %w", err)
	}
	return &tree, nil
}
