package mapper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldt-cms/veldt/caas"
	"github.com/veldt-cms/veldt/richtext"
)

// fakeRichText counts invocations so tests can assert the parser is never
// called for empty markup.
type fakeRichText struct {
	calls atomic.Int32
	err   error
}

func (f *fakeRichText) Parse(markup string) ([]richtext.Node, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return []richtext.Node{{Type: "paragraph", Content: markup}}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMapper(rt RichTextParser, opts Options) *Mapper {
	if opts.Locale == "" {
		opts.Locale = "en_GB"
	}
	if opts.ContentMode == "" {
		opts.ContentMode = caas.ModePreview
	}
	return New(Deps{RichText: rt, Logger: discardLogger()}, opts)
}

func entry(fsType string, value any) map[string]any {
	return map[string]any{"fsType": fsType, "value": value}
}

func TestMapDataEntry_Scalars(t *testing.T) {
	m := newTestMapper(&fakeRichText{}, Options{})
	ctx := context.Background()

	tests := []struct {
		name  string
		entry any
		want  any
	}{
		{"text", entry(FieldText, "headline"), "headline"},
		{"textarea", entry(FieldTextarea, "long copy"), "long copy"},
		{"number", entry(FieldNumber, float64(42)), float64(42)},
		{"radiobutton", entry(FieldRadioButton, "variant-b"), "variant-b"},
		{"null text", entry(FieldText, nil), nil},
		{"non-object entry", "just a string", "just a string"},
		{"nil entry", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.mapDataEntry(ctx, tt.entry, Path{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMapDataEntry_Toggle(t *testing.T) {
	m := newTestMapper(&fakeRichText{}, Options{})
	ctx := context.Background()

	tests := []struct {
		name  string
		value any
		want  any
	}{
		{"nil defaults to false", nil, false},
		{"false stays false", false, false},
		{"empty string is falsy", "", false},
		{"zero is falsy", float64(0), false},
		{"true stays true", true, true},
		// Truthy non-boolean values pass through unchanged.
		{"truthy string passes through", "enabled", "enabled"},
		{"truthy number passes through", float64(2), float64(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.mapDataEntry(ctx, entry(FieldToggle, tt.value), Path{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMapDataEntry_Date(t *testing.T) {
	m := newTestMapper(&fakeRichText{}, Options{})
	ctx := context.Background()

	got, err := m.mapDataEntry(ctx, entry(FieldDate, "2024-03-01T10:30:00Z"), Path{})
	require.NoError(t, err)
	want := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, want, got)

	for name, value := range map[string]any{
		"nil":        nil,
		"empty":      "",
		"unparsable": "yesterday-ish",
	} {
		t.Run(name, func(t *testing.T) {
			got, err := m.mapDataEntry(ctx, entry(FieldDate, value), Path{})
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestMapDataEntry_Combobox(t *testing.T) {
	m := newTestMapper(&fakeRichText{}, Options{})
	ctx := context.Background()

	got, err := m.mapDataEntry(ctx, entry(FieldCombobox, map[string]any{
		"identifier": "opt-1",
		"label":      "Option One",
	}), Path{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"type": TypeOption, "key": "opt-1", "value": "Option One"}, got)

	got, err = m.mapDataEntry(ctx, entry(FieldCombobox, nil), Path{})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMapDataEntry_RichText(t *testing.T) {
	ctx := context.Background()

	t.Run("empty markup skips the parser", func(t *testing.T) {
		rt := &fakeRichText{}
		m := newTestMapper(rt, Options{})

		for _, fsType := range []string{FieldDOM, FieldDOMTable} {
			got, err := m.mapDataEntry(ctx, entry(fsType, ""), Path{})
			require.NoError(t, err)
			assert.Equal(t, []richtext.Node{}, got)
		}
		assert.Equal(t, int32(0), rt.calls.Load())
	})

	t.Run("markup is parsed once", func(t *testing.T) {
		rt := &fakeRichText{}
		m := newTestMapper(rt, Options{})

		got, err := m.mapDataEntry(ctx, entry(FieldDOM, "<p>hi</p>"), Path{})
		require.NoError(t, err)
		assert.Equal(t, []richtext.Node{{Type: "paragraph", Content: "<p>hi</p>"}}, got)
		assert.Equal(t, int32(1), rt.calls.Load())
	})

	t.Run("parse failure degrades to empty content", func(t *testing.T) {
		rt := &fakeRichText{err: errors.New("bad markup")}
		m := newTestMapper(rt, Options{})

		got, err := m.mapDataEntry(ctx, entry(FieldDOM, "<p>broken"), Path{})
		require.NoError(t, err)
		assert.Equal(t, []richtext.Node{}, got)
	})
}

func TestMapDataEntry_UnknownTagPassesThrough(t *testing.T) {
	m := newTestMapper(&fakeRichText{}, Options{})

	raw := map[string]any{"fsType": "CMS_CUSTOM_WIDGET", "value": map[string]any{"x": 1}}
	got, err := m.mapDataEntry(context.Background(), raw, Path{})
	require.NoError(t, err)

	// Pass-through returns the same object, not a copy.
	gotMap, ok := got.(map[string]any)
	require.True(t, ok)
	gotMap["probe"] = true
	assert.Equal(t, true, raw["probe"])
}

func TestMapDataEntry_ListAndCheckbox(t *testing.T) {
	m := newTestMapper(&fakeRichText{}, Options{})
	ctx := context.Background()

	for _, fsType := range []string{FieldList, FieldCheckbox} {
		got, err := m.mapDataEntry(ctx, entry(fsType, []any{
			entry(FieldText, "first"),
			entry(FieldToggle, nil),
		}), Path{"data", "items"})
		require.NoError(t, err)
		assert.Equal(t, []any{"first", false}, got)
	}

	// A missing or malformed value maps to an empty list.
	got, err := m.mapDataEntry(ctx, entry(FieldList, nil), Path{})
	require.NoError(t, err)
	assert.Equal(t, []any{}, got)
}

func TestMapDataEntry_Link(t *testing.T) {
	m := newTestMapper(&fakeRichText{}, Options{})

	got, err := m.mapDataEntry(context.Background(), entry(FieldLink, map[string]any{
		"template": "internal_link",
		"formData": map[string]any{
			"text": entry(FieldText, "Read more"),
		},
		"metaFormData": map[string]any{
			"newTab": entry(FieldToggle, true),
		},
	}), Path{"data", "cta"})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"type":     TypeLink,
		"template": "internal_link",
		"data":     map[string]any{"text": "Read more"},
		"meta":     map[string]any{"newTab": true},
	}, got)
}

func TestMapDataEntry_DatasetReference(t *testing.T) {
	m := newTestMapper(&fakeRichText{}, Options{})
	ctx := context.Background()

	got, err := m.mapDataEntry(ctx, entry(FieldDataset, map[string]any{
		"target": map[string]any{"fsType": ItemDataset, "identifier": "ds-1"},
	}), Path{"data", "related"})
	require.NoError(t, err)
	assert.Equal(t, "[REFERENCED-ITEM-ds-1]", got)

	buckets := m.registry.Drain()
	assert.Equal(t, []Path{{"data", "related"}}, buckets[localProject]["ds-1"])

	// An array value behaves like a list.
	got, err = m.mapDataEntry(ctx, entry(FieldDataset, []any{
		entry(FieldText, "inline"),
	}), Path{})
	require.NoError(t, err)
	assert.Equal(t, []any{"inline"}, got)

	// Malformed values map to null without registering anything.
	got, err = m.mapDataEntry(ctx, entry(FieldDataset, map[string]any{"target": map[string]any{}}), Path{})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, m.registry.Drain())
}

func TestMapDataEntry_Reference(t *testing.T) {
	m := newTestMapper(&fakeRichText{}, Options{
		Remotes: map[string]caas.RemoteProject{
			"media-remote": {ID: "media-remote", Locale: "de_DE"},
		},
	})
	ctx := context.Background()

	t.Run("media defers through the registry", func(t *testing.T) {
		got, err := m.mapDataEntry(ctx, entry(FieldReference, map[string]any{
			"fsType":     ItemMedia,
			"identifier": "pic-1",
		}), Path{"data", "image"})
		require.NoError(t, err)
		assert.Equal(t, "[REFERENCED-ITEM-pic-1]", got)
	})

	t.Run("remote media gets a remote token", func(t *testing.T) {
		got, err := m.mapDataEntry(ctx, entry(FieldReference, map[string]any{
			"fsType":        ItemMedia,
			"identifier":    "pic-2",
			"remoteProject": "media-remote",
		}), Path{"data", "image"})
		require.NoError(t, err)
		assert.Equal(t, "[REFERENCED-REMOTE-ITEM-pic-2]", got)
	})

	t.Run("page reference maps to a descriptor", func(t *testing.T) {
		got, err := m.mapDataEntry(ctx, entry(FieldReference, map[string]any{
			"fsType":        ItemPageRef,
			"identifier":    "page-1",
			"remoteProject": "media-remote",
			"section":       "teaser",
		}), Path{})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"referenceId":   "page-1",
			"referenceType": ItemPageRef,
			"remoteProject": "media-remote",
			"section":       "teaser",
		}, got)
	})

	t.Run("nil value maps to null", func(t *testing.T) {
		got, err := m.mapDataEntry(ctx, entry(FieldReference, nil), Path{})
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("malformed value passes through", func(t *testing.T) {
		raw := entry(FieldReference, map[string]any{"fsType": "Widget"})
		got, err := m.mapDataEntry(ctx, raw, Path{})
		require.NoError(t, err)
		assert.Equal(t, raw, got)
	})
}

func TestMapDataEntry_Index(t *testing.T) {
	m := newTestMapper(&fakeRichText{}, Options{})
	ctx := context.Background()

	raw := map[string]any{
		"fsType":  FieldIndex,
		"dapType": datasetDataAccessPlugin,
		"value": []any{
			map[string]any{"value": map[string]any{"target": map[string]any{"identifier": "ds-9"}}},
			map[string]any{"note": "record without target"},
			map[string]any{"target": map[string]any{"identifier": "ds-10"}},
		},
	}
	got, err := m.mapDataEntry(ctx, raw, Path{"data", "index"})
	require.NoError(t, err)
	assert.Equal(t, []any{"[REFERENCED-ITEM-ds-9]", "[REFERENCED-ITEM-ds-10]"}, got)

	refs := m.registry.Drain()[localProject]
	assert.Equal(t, []Path{{"data", "index", 0}}, refs["ds-9"])
	assert.Equal(t, []Path{{"data", "index", 1}}, refs["ds-10"])

	// Non-dataset index kinds pass through unchanged.
	other := map[string]any{"fsType": FieldIndex, "dapType": "NewsTickerPlugin", "value": []any{}}
	got, err = m.mapDataEntry(ctx, other, Path{})
	require.NoError(t, err)
	assert.Equal(t, other, got)
}

func TestMapDataEntry_Permission(t *testing.T) {
	m := newTestMapper(&fakeRichText{}, Options{})

	raw := map[string]any{
		"fsType": FieldPermission,
		"name":   "pagePermissions",
		"value": []any{
			map[string]any{
				"activity": "read",
				"allowedGroups": []any{
					map[string]any{"groupPath": "/root/staff/editors", "groupName": "Editors"},
				},
			},
		},
	}
	got, err := m.mapDataEntry(context.Background(), raw, Path{})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"type": TypePermission,
		"name": "pagePermissions",
		"value": []any{
			map[string]any{
				"activity": "read",
				"allowed": []any{
					map[string]any{
						"groupId":   "editors",
						"groupName": "Editors",
						"groupPath": "/root/staff/editors",
					},
				},
				"forbidden": []any{},
			},
		},
	}, got)
}

func TestMapDataEntry_ImageMap(t *testing.T) {
	m := newTestMapper(&fakeRichText{}, Options{})

	resolution := map[string]any{"width": float64(800), "height": float64(600)}
	raw := entry(FieldImageMap, map[string]any{
		"media":      map[string]any{"fsType": ItemMedia, "identifier": "pic-1"},
		"resolution": resolution,
		"areas": []any{
			map[string]any{
				"shape":   "rect",
				"leftTop": map[string]any{"x": float64(0), "y": float64(0)},
				"link": map[string]any{
					"template": map[string]any{"uid": "cta"},
					"formData": map[string]any{"label": entry(FieldText, "Go")},
				},
			},
		},
	})

	got, err := m.mapDataEntry(context.Background(), raw, Path{"data", "map"})
	require.NoError(t, err)
	out, ok := got.(map[string]any)
	require.True(t, ok)

	assert.Equal(t, TypeImageMap, out["type"])
	assert.Equal(t, "[REFERENCED-ITEM-pic-1]", out["media"])

	// The resolution is copied, never mutated in place.
	copied, ok := out["resolution"].(map[string]any)
	require.True(t, ok)
	copied["width"] = float64(1)
	assert.Equal(t, float64(800), resolution["width"])

	areas, ok := out["areas"].([]any)
	require.True(t, ok)
	require.Len(t, areas, 1)
	area := areas[0].(map[string]any)
	assert.Equal(t, "rect", area["shape"])
	assert.Equal(t, map[string]any{"x": float64(0), "y": float64(0)}, area["leftTop"])
	assert.Equal(t, map[string]any{
		"template": "cta",
		"data":     map[string]any{"label": "Go"},
	}, area["link"])

	// The media path includes the image-map's media slot.
	refs := m.registry.Drain()[localProject]
	assert.Equal(t, []Path{{"data", "map", "media"}}, refs["pic-1"])
}

func TestMapDataEntry_Catalog(t *testing.T) {
	m := newTestMapper(&fakeRichText{}, Options{})

	unknownCard := map[string]any{
		"identifier": "c3",
		"template":   map[string]any{"fsType": "WidgetTemplate"},
	}
	raw := entry(FieldCatalog, []any{
		map[string]any{
			"identifier": "c1",
			"template":   map[string]any{"fsType": TemplateSection, "uid": "teaser"},
			"formData":   map[string]any{"headline": entry(FieldText, "Hi")},
		},
		map[string]any{
			"identifier": "c2",
			"template":   map[string]any{"fsType": TemplatePage, "uid": "landing"},
			"formData":   map[string]any{"title": entry(FieldText, "Landing")},
		},
		unknownCard,
	})

	got, err := m.mapDataEntry(context.Background(), raw, Path{"data", "cards"})
	require.NoError(t, err)
	cards, ok := got.([]any)
	require.True(t, ok)
	require.Len(t, cards, 3)

	section := cards[0].(map[string]any)
	assert.Equal(t, TypeSection, section["type"])
	assert.Equal(t, "c1", section["id"])
	assert.Equal(t, "teaser", section["sectionType"])
	assert.Equal(t, map[string]any{"headline": "Hi"}, section["data"])

	page := cards[1].(map[string]any)
	assert.Equal(t, map[string]any{
		"id":        "c2",
		"previewId": "c2.en_GB",
		"template":  "landing",
		"data":      map[string]any{"title": "Landing"},
	}, page)

	assert.Equal(t, unknownCard, cards[2])
}

func TestCustomMapper(t *testing.T) {
	custom := func(ctx context.Context, e map[string]any, path Path, utils Utils) (any, bool) {
		if str(e, "fsType") == FieldText && str(e, "name") == "special" {
			return "CUSTOM", true
		}
		return nil, false
	}
	m := newTestMapper(&fakeRichText{}, Options{Custom: custom})
	ctx := context.Background()

	special := map[string]any{"fsType": FieldText, "name": "special", "value": "original"}
	got, err := m.mapDataEntry(ctx, special, Path{})
	require.NoError(t, err)
	assert.Equal(t, "CUSTOM", got)

	// Unhandled entries fall through to the built-in table.
	got, err = m.mapDataEntry(ctx, entry(FieldText, "plain"), Path{})
	require.NoError(t, err)
	assert.Equal(t, "plain", got)
}

func TestMapPage(t *testing.T) {
	m := newTestMapper(&fakeRichText{}, Options{})

	raw := map[string]any{
		"fsType":     ItemPage,
		"identifier": "page-1",
		"name":       "Homepage",
		"template":   map[string]any{"uid": "layout.home"},
		"formData": map[string]any{
			"headline": entry(FieldText, "Welcome"),
		},
		"metaFormData": map[string]any{
			"robots": entry(FieldText, "index"),
		},
		"children": []any{
			map[string]any{
				"fsType":     StructureBody,
				"name":       "content",
				"identifier": "body-1",
				"children": []any{
					map[string]any{
						"fsType":     StructureSection,
						"identifier": "sec-1",
						"template":   map[string]any{"uid": "text_block"},
						"displayed":  true,
						"formData": map[string]any{
							"copy": entry(FieldTextarea, "Lorem"),
						},
					},
				},
			},
		},
	}

	got, err := m.mapItem(context.Background(), raw, Path{})
	require.NoError(t, err)
	page, ok := got.(map[string]any)
	require.True(t, ok)

	assert.Equal(t, TypePage, page["type"])
	assert.Equal(t, "page-1", page["id"])
	assert.Equal(t, "page-1.en_GB", page["previewId"])
	assert.Equal(t, "Homepage", page["name"])
	assert.Equal(t, "layout.home", page["layout"])
	assert.Equal(t, map[string]any{"headline": "Welcome"}, page["data"])
	assert.Equal(t, map[string]any{"robots": "index"}, page["meta"])

	bodies := page["children"].([]any)
	require.Len(t, bodies, 1)
	body := bodies[0].(map[string]any)
	assert.Equal(t, TypeBody, body["type"])
	assert.Equal(t, "content", body["name"])
	assert.Equal(t, "body-1.en_GB", body["previewId"])

	sections := body["children"].([]any)
	require.Len(t, sections, 1)
	section := sections[0].(map[string]any)
	assert.Equal(t, TypeSection, section["type"])
	assert.Equal(t, "sec-1", section["id"])
	assert.Equal(t, "text_block", section["sectionType"])
	assert.Equal(t, true, section["displayed"])
	assert.Equal(t, map[string]any{"copy": "Lorem"}, section["data"])
	assert.Equal(t, []any{}, section["children"])
}

func TestMapPageRef(t *testing.T) {
	m := newTestMapper(&fakeRichText{}, Options{})

	raw := map[string]any{
		"fsType":     ItemPageRef,
		"identifier": "ref-1",
		"url":        "/company/about",
		"page": map[string]any{
			"fsType":     ItemPage,
			"identifier": "page-1",
			"name":       "About",
			"template":   map[string]any{"uid": "layout.default"},
		},
	}

	got, err := m.mapItem(context.Background(), raw, Path{})
	require.NoError(t, err)
	page := got.(map[string]any)

	// The reference contributes route and stable IDs; the page the content.
	assert.Equal(t, "page-1", page["id"])
	assert.Equal(t, "ref-1", page["refId"])
	assert.Equal(t, "ref-1.en_GB", page["previewId"])
	assert.Equal(t, "/company/about", page["route"])

	// A page reference without its embedded page cannot be mapped.
	_, err = m.mapItem(context.Background(), map[string]any{
		"fsType":     ItemPageRef,
		"identifier": "ref-2",
	}, Path{})
	assert.Error(t, err)
}

func TestMapBody_UnknownContentFails(t *testing.T) {
	m := newTestMapper(&fakeRichText{}, Options{})

	raw := map[string]any{
		"fsType":     ItemPage,
		"identifier": "page-1",
		"children": []any{
			map[string]any{
				"fsType": StructureBody,
				"children": []any{
					map[string]any{"fsType": "MysterySection"},
				},
			},
		},
	}

	_, err := m.mapItem(context.Background(), raw, Path{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownBodyContent))
}

func TestMapContent2Section(t *testing.T) {
	m := newTestMapper(&fakeRichText{}, Options{})

	raw := map[string]any{
		"fsType":     ItemPage,
		"identifier": "page-1",
		"children": []any{
			map[string]any{
				"fsType": StructureBody,
				"children": []any{
					map[string]any{
						"fsType":             StructureContent2Section,
						"identifier":         "sec-dyn",
						"entityType":         "product",
						"schema":             "catalog",
						"query":              "category = shoes",
						"recordCountPerPage": float64(12),
					},
				},
			},
		},
	}

	got, err := m.mapItem(context.Background(), raw, Path{})
	require.NoError(t, err)

	body := got.(map[string]any)["children"].([]any)[0].(map[string]any)
	section := body["children"].([]any)[0].(map[string]any)
	assert.Equal(t, TypeSection, section["type"])
	assert.Equal(t, "product", section["sectionType"])
	assert.Equal(t, []any{}, section["children"])

	data := section["data"].(map[string]any)
	assert.Equal(t, "product", data["entityType"])
	assert.Equal(t, "category = shoes", data["query"])
	assert.Equal(t, float64(12), data["recordCountPerPage"])
	assert.Equal(t, "catalog", data["schema"])
}

func TestMapMedia(t *testing.T) {
	m := newTestMapper(&fakeRichText{}, Options{ContentMode: caas.ModePreview})

	original := map[string]any{"url": "https://media.example/pic.png", "width": float64(800)}
	raw := map[string]any{
		"fsType":     ItemMedia,
		"identifier": "pic-1",
		"mediaType":  MediaPicture,
		"name":       "hero",
		"revision":   float64(7),
		"resolutionsMetaData": map[string]any{
			"ORIGINAL": original,
		},
	}

	got, err := m.mapItem(context.Background(), raw, Path{})
	require.NoError(t, err)
	image := got.(map[string]any)

	assert.Equal(t, TypeImage, image["type"])
	assert.Equal(t, "pic-1", image["id"])
	assert.Equal(t, "pic-1.en_GB", image["previewId"])

	res := image["resolutions"].(map[string]any)["ORIGINAL"].(map[string]any)
	assert.Equal(t, "https://media.example/pic.png?rev=7", res["url"])
	assert.Equal(t, float64(800), res["width"])

	// The raw resolution object is copied, not rewritten in place.
	assert.Equal(t, "https://media.example/pic.png", original["url"])
}

func TestMapFile(t *testing.T) {
	m := newTestMapper(&fakeRichText{}, Options{ContentMode: caas.ModeRelease})

	raw := map[string]any{
		"fsType":     ItemMedia,
		"identifier": "doc-1",
		"mediaType":  MediaFile,
		"name":       "terms",
		"fileName":   "terms.pdf",
		"url":        "https://media.example/terms.pdf",
		"revision":   float64(3),
	}

	got, err := m.mapItem(context.Background(), raw, Path{})
	require.NoError(t, err)
	file := got.(map[string]any)

	assert.Equal(t, TypeFile, file["type"])
	assert.Equal(t, "terms.pdf", file["fileName"])
	// Release mode never pins revisions.
	assert.Equal(t, "https://media.example/terms.pdf", file["url"])
}

func TestPreviewID(t *testing.T) {
	m := newTestMapper(&fakeRichText{}, Options{Locale: "de_DE"})
	if got := m.PreviewID("item-1"); got != "item-1.de_DE" {
		t.Errorf("PreviewID() = %q", got)
	}
}

func TestMediaURL(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		url      string
		revision int
		want     string
	}{
		{"preview pins revision", caas.ModePreview, "https://m.example/a.png", 4, "https://m.example/a.png?rev=4"},
		{"preview with existing query", caas.ModePreview, "https://m.example/a.png?w=100", 4, "https://m.example/a.png?w=100&rev=4"},
		{"preview without revision", caas.ModePreview, "https://m.example/a.png", 0, "https://m.example/a.png"},
		{"release never pins", caas.ModeRelease, "https://m.example/a.png", 4, "https://m.example/a.png"},
		{"empty url stays empty", caas.ModePreview, "", 4, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMapper(&fakeRichText{}, Options{ContentMode: tt.mode})
			if got := m.MediaURL(tt.url, tt.revision); got != tt.want {
				t.Errorf("MediaURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMapEntries_Concurrent(t *testing.T) {
	m := newTestMapper(&fakeRichText{}, Options{})

	entries := make(map[string]any, 40)
	want := make(map[string]any, 40)
	for i := 0; i < 40; i++ {
		key := "field" + string(rune('A'+i%26)) + string(rune('0'+i/26))
		entries[key] = entry(FieldText, key)
		want[key] = key
	}

	got, err := m.mapEntries(context.Background(), entries, Path{"data"})
	require.NoError(t, err)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mapEntries() mismatch: got %d entries", len(got))
	}
}
