package mapper

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/veldt-cms/veldt/caas"
	"github.com/veldt-cms/veldt/richtext"
)

// DefaultMaxReferenceDepth bounds how many resolution hops across references
// may execute before remaining references are left as placeholder tokens.
const DefaultMaxReferenceDepth = 3

// RichTextParser is the collaborator invoked for dom and domtable fields.
type RichTextParser interface {
	Parse(markup string) ([]richtext.Node, error)
}

// Utils is the narrow utility bundle handed to a custom mapping function.
type Utils struct {
	// RegisterReference defers a cross-document reference and returns its
	// placeholder token.
	RegisterReference func(identifier string, path Path, remoteProjectID string) string

	// PreviewID builds the stable preview identifier for an item identifier.
	PreviewID func(identifier string) string

	// MediaURL rewrites a media URL for the active content mode.
	MediaURL func(url string, revision int) string

	// MapChildren recursively maps a form-data dictionary rooted at path.
	MapChildren func(ctx context.Context, entries map[string]any, path Path) (map[string]any, error)
}

// CustomMapper is a caller-supplied hook tried before the built-in field
// table. Returning handled=true uses value verbatim and skips the built-in
// mapping for that entry only.
type CustomMapper func(ctx context.Context, entry map[string]any, path Path, utils Utils) (value any, handled bool)

// Deps are the collaborators a Mapper fetches and parses through.
type Deps struct {
	API      caas.FetchClient
	RichText RichTextParser
	Logger   *slog.Logger
}

// Options configure one Mapper instance.
type Options struct {
	// Locale is the active locale, joined into preview IDs and passed to
	// every resolution fetch against the local project.
	Locale string

	// ContentMode is "preview" or "release"; it only affects media URL
	// construction.
	ContentMode string

	// MaxReferenceDepth caps resolution hops. Zero means
	// DefaultMaxReferenceDepth.
	MaxReferenceDepth int

	// Remotes maps configured remote project names to their projects.
	Remotes map[string]caas.RemoteProject

	// Custom is the optional custom mapping hook.
	Custom CustomMapper
}

// Mapper transforms one raw item (or batch of items) into the mapped output
// tree and resolves the references it encounters. Create one per request via
// New; a Mapper is not reusable across requests.
type Mapper struct {
	api    caas.FetchClient
	rt     RichTextParser
	log    *slog.Logger
	custom CustomMapper

	locale      string
	contentMode string
	maxDepth    int
	remoteByID  map[string]caas.RemoteProject

	registry *Registry

	// depth counts resolution hops from the originating request; ancestors
	// holds the identifiers of items strictly above the tree this mapper is
	// producing, and selfIDs the identifiers of the tree's own top-level
	// items. Both drive cycle handling during resolution.
	depth     int
	ancestors []string

	mu      sync.Mutex
	selfIDs []string
}

// New creates a request-scoped Mapper with a fresh reference registry.
func New(deps Deps, opts Options) *Mapper {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	maxDepth := opts.MaxReferenceDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxReferenceDepth
	}

	remoteByID := make(map[string]caas.RemoteProject, len(opts.Remotes))
	remoteIDs := make([]string, 0, len(opts.Remotes))
	for _, remote := range opts.Remotes {
		remoteByID[remote.ID] = remote
		remoteIDs = append(remoteIDs, remote.ID)
	}

	return &Mapper{
		api:         deps.API,
		rt:          deps.RichText,
		log:         log,
		custom:      opts.Custom,
		locale:      opts.Locale,
		contentMode: opts.ContentMode,
		maxDepth:    maxDepth,
		remoteByID:  remoteByID,
		registry:    NewRegistry(remoteIDs),
	}
}

// child creates the mapper for one item fetched during resolution. It shares
// the collaborators and configuration but owns a fresh registry, sits one
// hop deeper, and inherits the ancestor chain extended by the parent tree's
// own identifiers.
func (m *Mapper) child(ancestors []string) *Mapper {
	c := &Mapper{
		api:         m.api,
		rt:          m.rt,
		log:         m.log,
		custom:      m.custom,
		locale:      m.locale,
		contentMode: m.contentMode,
		maxDepth:    m.maxDepth,
		remoteByID:  m.remoteByID,
		registry:    NewRegistry(nil),
		depth:       m.depth + 1,
		ancestors:   ancestors,
	}
	for id := range m.remoteByID {
		c.registry.knownRemotes[id] = true
	}
	return c
}

// MapElement maps one raw item and resolves all references it registered.
// The returned tree is best-effort complete: cyclic, out-of-depth and
// unresolvable references appear as placeholder tokens. A non-nil error
// reports per-project resolution failures; the tree is still returned.
func (m *Mapper) MapElement(ctx context.Context, raw map[string]any) (any, error) {
	tree, err := m.mapItem(ctx, raw, Path{})
	if err != nil {
		return nil, err
	}
	return m.Resolve(ctx, tree)
}

// MapFilterResults maps a batch of raw items into one slice. All items are
// mapped first, sharing a single registry, then one shared resolution pass
// runs over the whole batch.
func (m *Mapper) MapFilterResults(ctx context.Context, raws []map[string]any) ([]any, error) {
	trees := make([]any, len(raws))
	for i, raw := range raws {
		tree, err := m.mapItem(ctx, raw, Path{i})
		if err != nil {
			return nil, err
		}
		trees[i] = tree
	}
	resolved, err := m.Resolve(ctx, trees)
	out, _ := resolved.([]any)
	return out, err
}

// PreviewID joins an item identifier and the active locale into the stable
// preview identifier carried by every mapped item.
func (m *Mapper) PreviewID(identifier string) string {
	return identifier + "." + m.locale
}

// MediaURL rewrites a media URL for the active content mode. In preview mode
// the upstream revision is pinned so editors see the unreleased state.
func (m *Mapper) MediaURL(url string, revision int) string {
	if m.contentMode == caas.ModePreview && revision > 0 && url != "" {
		sep := "?"
		for _, r := range url {
			if r == '?' {
				sep = "&"
				break
			}
		}
		return url + sep + "rev=" + strconv.Itoa(revision)
	}
	return url
}

// utils builds the utility bundle exposed to custom mapping functions.
func (m *Mapper) utils() Utils {
	return Utils{
		RegisterReference: m.registry.Register,
		PreviewID:         m.PreviewID,
		MediaURL:          m.MediaURL,
		MapChildren:       m.mapEntries,
	}
}

// mapEntries maps every entry of a form-data dictionary, appending the entry
// key to path. Sibling entries map concurrently; the fan-out is bounded at
// the dictionary level and joined before returning, so side-effect order in
// the registry never matters (registry writes are keyed, path lists are
// per-identifier).
func (m *Mapper) mapEntries(ctx context.Context, entries map[string]any, path Path) (map[string]any, error) {
	out := make(map[string]any, len(entries))
	if len(entries) == 0 {
		return out, nil
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for key, entry := range entries {
		key, entry := key, entry
		g.Go(func() error {
			mapped, err := m.mapDataEntry(ctx, entry, path.With(key))
			if err != nil {
				return err
			}
			mu.Lock()
			out[key] = mapped
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// mapDataEntry transforms one field entry into its mapped output node. The
// dispatch is exhaustive over the known field tags; unrecognized or untagged
// entries pass through unchanged. Reference-typed entries are never expanded
// inline — they register with the registry and yield a placeholder token.
func (m *Mapper) mapDataEntry(ctx context.Context, entry any, path Path) (any, error) {
	e, ok := asMap(entry)
	if !ok {
		return entry, nil
	}

	if m.custom != nil {
		if v, handled := m.custom(ctx, e, path, m.utils()); handled {
			return v, nil
		}
	}

	fsType := str(e, "fsType")
	value := e["value"]

	switch fsType {
	case FieldText, FieldTextarea, FieldNumber, FieldRadioButton:
		return value, nil

	case FieldToggle:
		// Falsy values default to false; any truthy non-boolean value is
		// passed through unmodified. Intentional behavior, do not "fix".
		if isFalsy(value) {
			return false, nil
		}
		return value, nil

	case FieldDate:
		return m.mapDate(value), nil

	case FieldCombobox:
		option, ok := asMap(value)
		if !ok {
			return nil, nil
		}
		return map[string]any{
			"type":  TypeOption,
			"key":   str(option, "identifier"),
			"value": str(option, "label"),
		}, nil

	case FieldDOM, FieldDOMTable:
		markup, _ := value.(string)
		if markup == "" {
			// The parser must not run on empty input.
			return []richtext.Node{}, nil
		}
		nodes, err := m.rt.Parse(markup)
		if err != nil {
			m.log.Warn("failed to parse rich-text value", "path", path, "error", err)
			return []richtext.Node{}, nil
		}
		return nodes, nil

	case FieldLink:
		link, ok := asMap(value)
		if !ok {
			return nil, nil
		}
		return m.mapLink(ctx, link, path)

	case FieldList, FieldCheckbox:
		items, ok := asSlice(value)
		if !ok {
			return []any{}, nil
		}
		return m.mapEntryList(ctx, items, path)

	case FieldDataset:
		if items, ok := asSlice(value); ok {
			return m.mapEntryList(ctx, items, path)
		}
		return m.mapDatasetReference(value, path), nil

	case FieldCatalog:
		return m.mapCatalog(ctx, value, path)

	case FieldReference:
		return m.mapReference(e, value, path)

	case FieldIndex:
		return m.mapIndex(e, value, path)

	case FieldPermission:
		return m.mapPermission(e, value), nil

	case FieldImageMap:
		return m.mapImageMap(ctx, value, path)

	case "":
		return entry, nil

	default:
		m.log.Debug("unknown field entry type, passing through", "fsType", fsType)
		return entry, nil
	}
}

// mapDate parses an ISO-8601 date value. Null stays null and the parser is
// never invoked on falsy input; unparsable values are dropped with a warning.
func (m *Mapper) mapDate(value any) any {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		m.log.Warn("invalid date value", "value", s, "error", err)
		return nil
	}
	return t
}

// mapLink maps a nested-form link, recursing into its form and meta data.
func (m *Mapper) mapLink(ctx context.Context, link map[string]any, path Path) (any, error) {
	data, err := m.mapEntries(ctx, childMap(link, "formData"), path.With("data"))
	if err != nil {
		return nil, err
	}
	meta, err := m.mapEntries(ctx, childMap(link, "metaFormData"), path.With("meta"))
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"type":     TypeLink,
		"template": str(link, "template"),
		"data":     data,
		"meta":     meta,
	}, nil
}

// mapEntryList maps every element of a repeatable list, appending the element
// index to path.
func (m *Mapper) mapEntryList(ctx context.Context, items []any, path Path) ([]any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		mapped, err := m.mapDataEntry(ctx, item, path.With(i))
		if err != nil {
			return nil, err
		}
		out[i] = mapped
	}
	return out, nil
}

// mapDatasetReference registers a single dataset reference and returns its
// placeholder token. Malformed values map to null.
func (m *Mapper) mapDatasetReference(value any, path Path) any {
	v, ok := asMap(value)
	if !ok {
		return nil
	}
	target := childMap(v, "target")
	identifier := str(target, "identifier")
	if identifier == "" {
		identifier = str(v, "identifier")
	}
	if identifier == "" {
		return nil
	}
	remote := str(v, "remoteProject")
	if remote == "" {
		remote = str(target, "remoteProject")
	}
	return m.registry.Register(identifier, path, remote)
}

// mapCatalog maps a catalog of typed cards. Section- and link-templated
// cards are reshaped into sections; page-templated cards map their form
// data; anything else passes through unchanged.
func (m *Mapper) mapCatalog(ctx context.Context, value any, path Path) (any, error) {
	cards, ok := asSlice(value)
	if !ok {
		return []any{}, nil
	}
	out := make([]any, len(cards))
	for i, c := range cards {
		card, ok := asMap(c)
		if !ok {
			out[i] = c
			continue
		}
		template := childMap(card, "template")
		cardPath := path.With(i)

		switch str(template, "fsType") {
		case TemplateSection, TemplateLink:
			section := map[string]any{
				"fsType":     StructureSection,
				"identifier": str(card, "identifier"),
				"template":   template,
				"formData":   childMap(card, "formData"),
			}
			mapped, err := m.mapSection(ctx, section, cardPath)
			if err != nil {
				return nil, err
			}
			out[i] = mapped

		case TemplatePage:
			data, err := m.mapEntries(ctx, childMap(card, "formData"), cardPath.With("data"))
			if err != nil {
				return nil, err
			}
			id := str(card, "identifier")
			out[i] = map[string]any{
				"id":        id,
				"previewId": m.PreviewID(id),
				"template":  str(template, "uid"),
				"data":      data,
			}

		default:
			out[i] = card
		}
	}
	return out, nil
}

// mapReference maps a media/page/global-page reference entry. Media targets
// are deferred through the registry; page targets map to a reference
// descriptor; malformed values pass through unchanged.
func (m *Mapper) mapReference(entry map[string]any, value any, path Path) (any, error) {
	if value == nil {
		return nil, nil
	}
	v, ok := asMap(value)
	if !ok {
		return entry, nil
	}

	switch str(v, "fsType") {
	case ItemMedia:
		identifier := str(v, "identifier")
		if identifier == "" {
			return entry, nil
		}
		return m.registry.Register(identifier, path, str(v, "remoteProject")), nil

	case ItemPageRef, ItemGCAPage:
		ref := map[string]any{
			"referenceId":   str(v, "identifier"),
			"referenceType": str(v, "fsType"),
		}
		if remote := str(v, "remoteProject"); remote != "" {
			ref["remoteProject"] = remote
		}
		if section := str(v, "section"); section != "" {
			ref["section"] = section
		}
		return ref, nil

	default:
		// Missing or unknown discriminator on the reference value.
		return entry, nil
	}
}

// mapIndex maps an indexed-records field. Only dataset-backed indexes defer
// their record targets through the registry; other index kinds pass through
// unchanged. Records without a target are skipped.
func (m *Mapper) mapIndex(entry map[string]any, value any, path Path) (any, error) {
	if str(entry, "dapType") != datasetDataAccessPlugin {
		return entry, nil
	}
	records, ok := asSlice(value)
	if !ok {
		return []any{}, nil
	}
	out := []any{}
	for _, r := range records {
		record, ok := asMap(r)
		if !ok {
			continue
		}
		target := childMap(childMap(record, "value"), "target")
		if target == nil {
			target = childMap(record, "target")
		}
		identifier := str(target, "identifier")
		if identifier == "" {
			continue
		}
		token := m.registry.Register(identifier, path.With(len(out)), str(target, "remoteProject"))
		out = append(out, token)
	}
	return out, nil
}

// mapPermission maps a permission matrix: per activity, the allowed and
// forbidden group lists, each group's ID derived from the last segment of
// its hierarchical path.
func (m *Mapper) mapPermission(entry map[string]any, value any) any {
	activities, ok := asSlice(value)
	if !ok {
		return map[string]any{"type": TypePermission, "value": []any{}}
	}
	mapped := make([]any, 0, len(activities))
	for _, a := range activities {
		activity, ok := asMap(a)
		if !ok {
			continue
		}
		mapped = append(mapped, map[string]any{
			"activity":  str(activity, "activity"),
			"allowed":   mapPermissionGroups(activity["allowedGroups"]),
			"forbidden": mapPermissionGroups(activity["forbiddenGroups"]),
		})
	}
	return map[string]any{
		"type":  TypePermission,
		"name":  str(entry, "name"),
		"value": mapped,
	}
}

// mapPermissionGroups maps one activity's group list, deriving groupId from
// the last path segment of the hierarchical group path.
func mapPermissionGroups(value any) []any {
	groups, ok := asSlice(value)
	if !ok {
		return []any{}
	}
	out := make([]any, 0, len(groups))
	for _, g := range groups {
		group, ok := asMap(g)
		if !ok {
			continue
		}
		groupPath := str(group, "groupPath")
		groupID := groupPath
		for i := len(groupPath) - 1; i >= 0; i-- {
			if groupPath[i] == '/' {
				groupID = groupPath[i+1:]
				break
			}
		}
		out = append(out, map[string]any{
			"groupId":   groupID,
			"groupName": str(group, "groupName"),
			"groupPath": groupPath,
		})
	}
	return out
}

// mapImageMap maps an image map: the backing media is deferred as a
// reference, every area's linked form data is mapped recursively, and the
// click geometry is carried over verbatim. The resolution object may be
// shared between entries and is copied, never mutated.
func (m *Mapper) mapImageMap(ctx context.Context, value any, path Path) (any, error) {
	v, ok := asMap(value)
	if !ok {
		return nil, nil
	}

	out := map[string]any{"type": TypeImageMap}

	if media := childMap(v, "media"); media != nil {
		if identifier := str(media, "identifier"); identifier != "" {
			out["media"] = m.registry.Register(identifier, path.With("media"), str(media, "remoteProject"))
		}
	}

	if resolution := childMap(v, "resolution"); resolution != nil {
		copied := make(map[string]any, len(resolution))
		for k, rv := range resolution {
			copied[k] = rv
		}
		out["resolution"] = copied
	}

	areas, _ := asSlice(v["areas"])
	mappedAreas := make([]any, len(areas))
	for i, a := range areas {
		area, ok := asMap(a)
		if !ok {
			mappedAreas[i] = a
			continue
		}
		mappedArea := make(map[string]any, len(area))
		for k, av := range area {
			if k != "link" {
				mappedArea[k] = av
			}
		}
		if link := childMap(area, "link"); link != nil {
			data, err := m.mapEntries(ctx, childMap(link, "formData"),
				path.With("areas").With(i).With("link").With("data"))
			if err != nil {
				return nil, err
			}
			mappedArea["link"] = map[string]any{
				"template": templateUID(link),
				"data":     data,
			}
		}
		mappedAreas[i] = mappedArea
	}
	out["areas"] = mappedAreas

	return out, nil
}
