package catalog

import "strings"

// FieldResolver maps the many spellings a field arrives under
// ("family", "Family", "product_family", "productFamily", ...) onto one
// canonical name. It is built once from the detected schema and consulted
// by every component, replacing per-call-site fallback chains.
type FieldResolver struct {
	aliases map[string]string // normalized alias -> canonical
}

// defaultAliases seeds the resolver with the spellings seen in source
// workbooks and API payloads.
var defaultAliases = map[string][]string{
	FieldSKU:         {"sku", "sku_code", "code", "product_code", "item_code", "part_number"},
	FieldFamily:      {"family", "product_family", "productfamily", "series", "product_line", "brand"},
	FieldType:        {"type", "product_type", "producttype", "category"},
	FieldModel:       {"model", "product_model", "productmodel", "model_number"},
	FieldName:        {"name", "product_name", "productname", "title"},
	FieldDescription: {"description", "product_description", "desc", "details", "summary"},
	FieldApplication: {"application", "applications", "use", "uses", "usage", "recommended_use"},
}

// NewFieldResolver builds a resolver from the default alias table plus any
// extra columns detected in the live schema. Detected columns that match no
// alias resolve to themselves, so open-ended attributes stay addressable.
func NewFieldResolver(detectedColumns []string) *FieldResolver {
	r := &FieldResolver{aliases: make(map[string]string)}
	for canonical, names := range defaultAliases {
		for _, n := range names {
			r.aliases[normalizeFieldName(n)] = canonical
		}
	}
	for _, col := range detectedColumns {
		key := normalizeFieldName(col)
		if _, ok := r.aliases[key]; !ok {
			r.aliases[key] = key
		}
	}
	return r
}

// Resolve returns the canonical name for a field spelling. Unknown names
// resolve to their normalized form so arbitrary attributes pass through.
func (r *FieldResolver) Resolve(name string) string {
	key := normalizeFieldName(name)
	if canonical, ok := r.aliases[key]; ok {
		return canonical
	}
	return key
}

// IsWellKnown reports whether the name resolves to one of the fixed
// product columns (as opposed to an open-ended attribute).
func (r *FieldResolver) IsWellKnown(name string) bool {
	switch r.Resolve(name) {
	case FieldSKU, FieldFamily, FieldType, FieldModel, FieldName, FieldDescription, FieldApplication:
		return true
	}
	return false
}

// normalizeFieldName lower-cases and strips spaces so "Product Family",
// "product_family" and "productFamily" collide.
func normalizeFieldName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}
