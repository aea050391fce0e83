// Package mapper implements the content mapping and reference-resolution
// engine: a recursive, type-tag-driven transformer that converts raw content
// store items into a normalized, locale-resolved output tree, defers
// cross-document references during the descent, and splices batch-fetched
// reference targets back into the tree in a second pass.
//
// A Mapper (and its reference registry) is created fresh per request and must
// not be reused across requests.
package mapper

// Raw items and field entries are tagged unions discriminated by the fsType
// key. Item-level tags identify top-level content objects.
const (
	ItemPageRef           = "PageRef"
	ItemPage              = "Page"
	ItemDataset           = "Dataset"
	ItemMedia             = "Media"
	ItemGCAPage           = "GCAPage"
	ItemProjectProperties = "ProjectProperties"
)

// Structural body-content tags. Unlike field-entry tags this set is closed:
// an unknown body content tag is a schema mismatch and fails the mapping.
const (
	StructureBody             = "Body"
	StructureSection          = "Section"
	StructureGCASection       = "GCASection"
	StructureContent2Section  = "Content2Section"
	StructureSectionReference = "Section_reference"
)

// Media subtypes, discriminated by the mediaType key on Media items.
const (
	MediaPicture = "PICTURE"
	MediaFile    = "FILE"
)

// Field-entry tags. This union is open: unrecognized tags pass through
// unchanged rather than failing.
const (
	FieldText        = "CMS_INPUT_TEXT"
	FieldTextarea    = "CMS_INPUT_TEXTAREA"
	FieldNumber      = "CMS_INPUT_NUMBER"
	FieldRadioButton = "CMS_INPUT_RADIOBUTTON"
	FieldToggle      = "CMS_INPUT_TOGGLE"
	FieldDate        = "CMS_INPUT_DATE"
	FieldCombobox    = "CMS_INPUT_COMBOBOX"
	FieldDOM         = "CMS_INPUT_DOM"
	FieldDOMTable    = "CMS_INPUT_DOMTABLE"
	FieldLink        = "CMS_INPUT_LINK"
	FieldList        = "CMS_INPUT_LIST"
	FieldCheckbox    = "CMS_INPUT_CHECKBOX"
	FieldPermission  = "CMS_INPUT_PERMISSION"
	FieldImageMap    = "CMS_INPUT_IMAGEMAP"
	FieldDataset     = "FS_DATASET"
	FieldCatalog     = "FS_CATALOG"
	FieldIndex       = "FS_INDEX"
	FieldReference   = "FS_REFERENCE"
)

// Template kinds routing catalog cards.
const (
	TemplateSection = "SectionTemplate"
	TemplateLink    = "LinkTemplate"
	TemplatePage    = "PageTemplate"
)

// datasetDataAccessPlugin marks an index field as dataset-backed; only such
// indexes register their record targets as references.
const datasetDataAccessPlugin = "DatasetDataAccessPlugin"

// Output type discriminators written to the "type" key of mapped nodes.
const (
	TypePage              = "Page"
	TypeBody              = "Body"
	TypeSection           = "Section"
	TypeDataset           = "Dataset"
	TypeImage             = "Image"
	TypeFile              = "File"
	TypeGCAPage           = "GCAPage"
	TypeProjectProperties = "ProjectProperties"
	TypeLink              = "Link"
	TypeOption            = "Option"
	TypePermission        = "Permission"
	TypeImageMap          = "ImageMap"
)

// asMap returns v as a JSON object, or (nil, false).
func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// asSlice returns v as a JSON array, or (nil, false).
func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

// str returns the string at key, or "" when absent or not a string.
func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// childMap returns the object at key, or nil when absent or not an object.
func childMap(m map[string]any, key string) map[string]any {
	c, _ := m[key].(map[string]any)
	return c
}

// templateUID returns the uid of an item's template reference.
func templateUID(m map[string]any) string {
	return str(childMap(m, "template"), "uid")
}

// isFalsy reports whether a decoded JSON value is absent or empty in the
// loose sense the toggle mapping rule uses: nil, false, empty string, or
// numeric zero.
func isFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == ""
	case float64:
		return t == 0
	}
	return false
}
