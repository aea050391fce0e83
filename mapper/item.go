package mapper

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownBodyContent reports a structural body child whose content tag is
// not in the closed, known set. Unlike an unknown field-entry tag this is a
// schema mismatch the caller must know about.
var ErrUnknownBodyContent = errors.New("unknown body content type")

// mapItem dispatches one raw item to its per-tag entry point. path is the
// prefix at which the item is embedded in the output (empty for a top-level
// request). Unknown item tags pass through unchanged with a warning.
func (m *Mapper) mapItem(ctx context.Context, raw map[string]any, path Path) (any, error) {
	if id := str(raw, "identifier"); id != "" {
		m.mu.Lock()
		m.selfIDs = append(m.selfIDs, id)
		m.mu.Unlock()
	}

	switch str(raw, "fsType") {
	case ItemPageRef:
		return m.mapPageRef(ctx, raw, path)
	case ItemPage:
		return m.mapPage(ctx, raw, path)
	case ItemDataset:
		return m.mapDataset(ctx, raw, path)
	case ItemMedia:
		return m.mapMedia(ctx, raw, path)
	case ItemGCAPage:
		return m.mapGCAPage(ctx, raw, path)
	case ItemProjectProperties:
		return m.mapProjectProperties(ctx, raw, path)
	default:
		m.log.Warn("unknown item type, passing through", "fsType", str(raw, "fsType"))
		return raw, nil
	}
}

// mapPageRef maps a page reference: the embedded page carries the content,
// the reference itself contributes the route and the stable reference ID.
func (m *Mapper) mapPageRef(ctx context.Context, pageRef map[string]any, path Path) (any, error) {
	page := childMap(pageRef, "page")
	if page == nil {
		return nil, fmt.Errorf("page reference %q without embedded page", str(pageRef, "identifier"))
	}
	mapped, err := m.mapPage(ctx, page, path)
	if err != nil {
		return nil, err
	}
	refID := str(pageRef, "identifier")
	mapped["refId"] = refID
	mapped["previewId"] = m.PreviewID(refID)
	if route := str(pageRef, "url"); route != "" {
		mapped["route"] = route
	}
	return mapped, nil
}

// mapPage maps a page item: ordered bodies plus recursively mapped data and
// meta dictionaries.
func (m *Mapper) mapPage(ctx context.Context, page map[string]any, path Path) (map[string]any, error) {
	id := str(page, "identifier")

	data, err := m.mapEntries(ctx, childMap(page, "formData"), path.With("data"))
	if err != nil {
		return nil, err
	}
	meta, err := m.mapEntries(ctx, childMap(page, "metaFormData"), path.With("meta"))
	if err != nil {
		return nil, err
	}
	children, err := m.mapBodies(ctx, page, path)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"type":      TypePage,
		"id":        id,
		"previewId": m.PreviewID(id),
		"name":      str(page, "name"),
		"layout":    templateUID(page),
		"children":  children,
		"data":      data,
		"meta":      meta,
	}, nil
}

// mapBodies maps the ordered body list of a page-like item.
func (m *Mapper) mapBodies(ctx context.Context, item map[string]any, path Path) ([]any, error) {
	raw, _ := asSlice(item["children"])
	children := make([]any, len(raw))
	for i, c := range raw {
		body, ok := asMap(c)
		if !ok {
			return nil, fmt.Errorf("%w: body at index %d is not an object", ErrUnknownBodyContent, i)
		}
		mapped, err := m.mapBody(ctx, body, path.With("children").With(i))
		if err != nil {
			return nil, err
		}
		children[i] = mapped
	}
	return children, nil
}

// mapBody maps one body and its ordered section children. Body content tags
// are a closed set; an unrecognized tag fails the mapping.
func (m *Mapper) mapBody(ctx context.Context, body map[string]any, path Path) (any, error) {
	raw, _ := asSlice(body["children"])
	children := make([]any, len(raw))
	for i, c := range raw {
		child, ok := asMap(c)
		if !ok {
			return nil, fmt.Errorf("%w: section at index %d is not an object", ErrUnknownBodyContent, i)
		}
		childPath := path.With("children").With(i)

		var mapped any
		var err error
		switch fsType := str(child, "fsType"); fsType {
		case StructureSection, StructureGCASection:
			mapped, err = m.mapSection(ctx, child, childPath)
		case StructureContent2Section:
			mapped, err = m.mapContent2Section(child)
		case StructureSectionReference:
			mapped, err = m.mapSectionReference(ctx, child, childPath)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownBodyContent, fsType)
		}
		if err != nil {
			return nil, err
		}
		children[i] = mapped
	}

	return map[string]any{
		"type":      TypeBody,
		"name":      str(body, "name"),
		"previewId": m.PreviewID(str(body, "identifier")),
		"children":  children,
	}, nil
}

// mapSection maps a section and its form data.
func (m *Mapper) mapSection(ctx context.Context, section map[string]any, path Path) (any, error) {
	data, err := m.mapEntries(ctx, childMap(section, "formData"), path.With("data"))
	if err != nil {
		return nil, err
	}
	id := str(section, "identifier")
	out := map[string]any{
		"type":        TypeSection,
		"id":          id,
		"previewId":   m.PreviewID(id),
		"sectionType": templateUID(section),
		"data":        data,
		"children":    []any{},
	}
	if displayed, ok := section["displayed"].(bool); ok {
		out["displayed"] = displayed
	}
	return out, nil
}

// mapContent2Section maps a dynamic dataset-query slot to a placeholder
// carrying its query, filter and paging parameters. Its children stay empty:
// live dataset queries are not part of the reference-resolution pass.
func (m *Mapper) mapContent2Section(section map[string]any) (any, error) {
	id := str(section, "identifier")
	return map[string]any{
		"type":        TypeSection,
		"id":          id,
		"previewId":   m.PreviewID(id),
		"sectionType": str(section, "entityType"),
		"data": map[string]any{
			"entityType":         str(section, "entityType"),
			"query":              section["query"],
			"recordCountPerPage": section["recordCountPerPage"],
			"maxPageCount":       section["maxPageCount"],
			"filterValues":       section["filterValues"],
			"ordering":           section["ordering"],
			"schema":             str(section, "schema"),
		},
		"children": []any{},
	}, nil
}

// mapSectionReference maps a reused section. The referenced section data is
// embedded inline by the store, so it maps like a regular section.
func (m *Mapper) mapSectionReference(ctx context.Context, ref map[string]any, path Path) (any, error) {
	if section := childMap(ref, "section"); section != nil {
		return m.mapSection(ctx, section, path)
	}
	return m.mapSection(ctx, ref, path)
}

// mapDataset maps a dataset item and its form data.
func (m *Mapper) mapDataset(ctx context.Context, dataset map[string]any, path Path) (any, error) {
	data, err := m.mapEntries(ctx, childMap(dataset, "formData"), path.With("data"))
	if err != nil {
		return nil, err
	}
	id := str(dataset, "identifier")
	out := map[string]any{
		"type":       TypeDataset,
		"id":         id,
		"previewId":  m.PreviewID(id),
		"schema":     str(dataset, "schema"),
		"entityType": str(dataset, "entityType"),
		"template":   templateUID(dataset),
		"data":       data,
	}
	if route := str(dataset, "route"); route != "" {
		out["route"] = route
	}
	return out, nil
}

// mapMedia dispatches a media item on its subtype. Unknown subtypes pass
// through unchanged with a warning.
func (m *Mapper) mapMedia(ctx context.Context, media map[string]any, path Path) (any, error) {
	switch str(media, "mediaType") {
	case MediaPicture:
		return m.mapPicture(ctx, media, path)
	case MediaFile:
		return m.mapFile(ctx, media, path)
	default:
		m.log.Warn("unknown media type, passing through", "mediaType", str(media, "mediaType"))
		return media, nil
	}
}

// mapPicture maps a picture: meta data, description and per-resolution URLs
// rewritten for the active content mode. Resolution entries may be shared
// between items and are copied, never mutated.
func (m *Mapper) mapPicture(ctx context.Context, media map[string]any, path Path) (any, error) {
	meta, err := m.mapEntries(ctx, childMap(media, "metaFormData"), path.With("meta"))
	if err != nil {
		return nil, err
	}

	revision := intAt(media, "revision")
	resolutions := map[string]any{}
	for name, r := range childMap(media, "resolutionsMetaData") {
		resolution, ok := asMap(r)
		if !ok {
			resolutions[name] = r
			continue
		}
		copied := make(map[string]any, len(resolution))
		for k, v := range resolution {
			copied[k] = v
		}
		copied["url"] = m.MediaURL(str(resolution, "url"), revision)
		resolutions[name] = copied
	}

	id := str(media, "identifier")
	return map[string]any{
		"type":        TypeImage,
		"id":          id,
		"previewId":   m.PreviewID(id),
		"name":        str(media, "name"),
		"description": media["description"],
		"resolutions": resolutions,
		"meta":        meta,
	}, nil
}

// mapFile maps a file media item.
func (m *Mapper) mapFile(ctx context.Context, media map[string]any, path Path) (any, error) {
	meta, err := m.mapEntries(ctx, childMap(media, "metaFormData"), path.With("meta"))
	if err != nil {
		return nil, err
	}
	id := str(media, "identifier")
	return map[string]any{
		"type":         TypeFile,
		"id":           id,
		"previewId":    m.PreviewID(id),
		"name":         str(media, "name"),
		"fileName":     str(media, "fileName"),
		"url":          m.MediaURL(str(media, "url"), intAt(media, "revision")),
		"fileMetaData": media["fileMetaData"],
		"meta":         meta,
	}, nil
}

// mapGCAPage maps a global-content-area page.
func (m *Mapper) mapGCAPage(ctx context.Context, page map[string]any, path Path) (any, error) {
	data, err := m.mapEntries(ctx, childMap(page, "formData"), path.With("data"))
	if err != nil {
		return nil, err
	}
	meta, err := m.mapEntries(ctx, childMap(page, "metaFormData"), path.With("meta"))
	if err != nil {
		return nil, err
	}
	children, err := m.mapBodies(ctx, page, path)
	if err != nil {
		return nil, err
	}
	id := str(page, "identifier")
	return map[string]any{
		"type":      TypeGCAPage,
		"id":        id,
		"previewId": m.PreviewID(id),
		"name":      str(page, "name"),
		"layout":    templateUID(page),
		"children":  children,
		"data":      data,
		"meta":      meta,
	}, nil
}

// mapProjectProperties maps the project-properties item.
func (m *Mapper) mapProjectProperties(ctx context.Context, props map[string]any, path Path) (any, error) {
	data, err := m.mapEntries(ctx, childMap(props, "formData"), path.With("data"))
	if err != nil {
		return nil, err
	}
	meta, err := m.mapEntries(ctx, childMap(props, "metaFormData"), path.With("meta"))
	if err != nil {
		return nil, err
	}
	id := str(props, "identifier")
	return map[string]any{
		"type":      TypeProjectProperties,
		"id":        id,
		"previewId": m.PreviewID(id),
		"name":      str(props, "name"),
		"layout":    templateUID(props),
		"data":      data,
		"meta":      meta,
	}, nil
}

// intAt returns the integer at key, tolerating the float64 representation
// JSON decoding produces.
func intAt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
