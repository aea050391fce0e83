package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veldt-cms/veldt/caas"
	"github.com/veldt-cms/veldt/internal/config"
	"github.com/veldt-cms/veldt/mapper"
	"github.com/veldt-cms/veldt/navigation"
	"github.com/veldt-cms/veldt/query"
	"github.com/veldt-cms/veldt/richtext"
)

// maxBodySize is the maximum allowed request body size (1 MiB).
const maxBodySize = 1 << 20

// ContentFetcher is the upstream capability the proxy handlers consume.
type ContentFetcher interface {
	caas.FetchClient
	FetchElement(ctx context.Context, id, locale string) (map[string]any, error)
	FetchProjectProperties(ctx context.Context, locale string) (map[string]any, error)
}

// NavigationFetcher fetches navigation trees; nil when no navigation service
// is configured.
type NavigationFetcher interface {
	FetchTree(ctx context.Context, locale, initialPath string) (*navigation.Tree, error)
}

// Handler provides the proxy HTTP handlers. Each request builds a fresh
// Mapper so no mapping state is shared across requests.
type Handler struct {
	api ContentFetcher
	nav NavigationFetcher
	cfg *config.Config
	rt  *richtext.Parser
}

// NewHandler creates a proxy Handler.
func NewHandler(api ContentFetcher, nav NavigationFetcher, cfg *config.Config) *Handler {
	return &Handler{
		api: api,
		nav: nav,
		cfg: cfg,
		rt:  richtext.NewParser(),
	}
}

// newMapper builds the request-scoped mapping engine.
func (h *Handler) newMapper(locale string) *mapper.Mapper {
	return mapper.New(
		mapper.Deps{API: h.api, RichText: h.rt},
		mapper.Options{
			Locale:            locale,
			ContentMode:       h.cfg.ContentMode,
			MaxReferenceDepth: h.cfg.MaxReferenceDepth,
			Remotes:           h.cfg.Remotes,
		},
	)
}

// locale picks the request locale, falling back to the configured default.
func (h *Handler) locale(requested string) string {
	if requested != "" {
		return requested
	}
	return h.cfg.Locale
}

// elementRequest is the body of POST /api/elements/{id}.
type elementRequest struct {
	Locale string `json:"locale"`
}

// Element fetches one element by identifier, maps it, and resolves its
// references. Unresolvable references appear as placeholder tokens; a
// per-project resolution failure is logged and the partial tree returned.
func (h *Handler) Element(w http.ResponseWriter, r *http.Request) {
	var req elementRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	locale := h.locale(req.Locale)

	raw, err := h.api.FetchElement(r.Context(), id, locale)
	if err != nil {
		if errors.Is(err, caas.ErrNotFound) {
			Error(w, http.StatusNotFound, "NOT_FOUND", "element not found")
			return
		}
		slog.Error("element fetch failed", "id", id, "error", err)
		Error(w, http.StatusBadGateway, "UPSTREAM_ERROR", "failed to fetch element")
		return
	}

	mapped, err := h.newMapper(locale).MapElement(r.Context(), raw)
	if err != nil {
		if mapped == nil {
			slog.Error("element mapping failed", "id", id, "error", err)
			Error(w, http.StatusBadGateway, "MAPPING_ERROR", "failed to map element")
			return
		}
		// Per-project resolution failures leave placeholder tokens behind;
		// the tree is still served.
		slog.Warn("partial reference resolution", "id", id, "error", err)
	}

	JSON(w, http.StatusOK, mapped)
}

// filterRequest is the body of POST /api/filter.
type filterRequest struct {
	Filters  []map[string]any `json:"filters"`
	Locale   string           `json:"locale"`
	Page     int              `json:"page"`
	Pagesize int              `json:"pagesize"`
}

// Filter fetches a filtered page of elements, maps the whole batch with a
// shared registry, and runs one shared resolution pass.
func (h *Handler) Filter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	filters, err := query.Decode(req.Filters)
	if err != nil {
		Error(w, http.StatusBadRequest, "INVALID_FILTER", err.Error())
		return
	}

	locale := h.locale(req.Locale)
	page, err := h.api.FetchByFilter(r.Context(), caas.Params{
		Filters:  filters,
		Locale:   locale,
		Page:     req.Page,
		Pagesize: req.Pagesize,
	})
	if err != nil {
		slog.Error("filter fetch failed", "error", err)
		Error(w, http.StatusBadGateway, "UPSTREAM_ERROR", "failed to fetch filter results")
		return
	}

	mapped, err := h.newMapper(locale).MapFilterResults(r.Context(), page.Items)
	if err != nil {
		if mapped == nil {
			slog.Error("filter mapping failed", "error", err)
			Error(w, http.StatusBadGateway, "MAPPING_ERROR", "failed to map filter results")
			return
		}
		slog.Warn("partial reference resolution", "error", err)
	}

	pagesize := req.Pagesize
	if pagesize < 1 {
		pagesize = caas.DefaultPagesize
	}
	reqPage := req.Page
	if reqPage < 1 {
		reqPage = 1
	}
	Paginated(w, mapped, PaginationMeta{
		Page:       reqPage,
		Pagesize:   pagesize,
		TotalCount: page.TotalCount,
	})
}

// navigationRequest is the body of POST /api/navigation.
type navigationRequest struct {
	Locale      string `json:"locale"`
	InitialPath string `json:"initialPath"`
}

// Navigation fetches the navigation tree for a locale.
func (h *Handler) Navigation(w http.ResponseWriter, r *http.Request) {
	if h.nav == nil {
		Error(w, http.StatusServiceUnavailable, "NAVIGATION_UNAVAILABLE",
			"no navigation service configured")
		return
	}

	var req navigationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tree, err := h.nav.FetchTree(r.Context(), h.locale(req.Locale), req.InitialPath)
	if err != nil {
		if errors.Is(err, navigation.ErrNotFound) {
			Error(w, http.StatusNotFound, "NOT_FOUND", "navigation not found")
			return
		}
		slog.Error("navigation fetch failed", "error", err)
		Error(w, http.StatusBadGateway, "UPSTREAM_ERROR", "failed to fetch navigation")
		return
	}

	JSON(w, http.StatusOK, tree)
}

// Properties fetches and maps the project-properties item.
func (h *Handler) Properties(w http.ResponseWriter, r *http.Request) {
	locale := h.locale(r.URL.Query().Get("locale"))

	raw, err := h.api.FetchProjectProperties(r.Context(), locale)
	if err != nil {
		if errors.Is(err, caas.ErrNotFound) {
			Error(w, http.StatusNotFound, "NOT_FOUND", "project properties not found")
			return
		}
		slog.Error("project properties fetch failed", "error", err)
		Error(w, http.StatusBadGateway, "UPSTREAM_ERROR", "failed to fetch project properties")
		return
	}

	mapped, err := h.newMapper(locale).MapElement(r.Context(), raw)
	if err != nil {
		if mapped == nil {
			slog.Error("project properties mapping failed", "error", err)
			Error(w, http.StatusBadGateway, "MAPPING_ERROR", "failed to map project properties")
			return
		}
		slog.Warn("partial reference resolution", "error", err)
	}

	JSON(w, http.StatusOK, mapped)
}

// decodeBody reads and decodes a JSON request body into dst. An empty body
// is tolerated and leaves dst zero-valued.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.ContentLength == 0 {
		return true
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		Error(w, http.StatusBadRequest, "INVALID_JSON", "invalid or too-large JSON body")
		return false
	}
	return true
}
