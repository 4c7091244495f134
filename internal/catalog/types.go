// Package catalog models the product catalog: loosely-structured records
// with a small set of well-known fields plus open-ended attributes, and the
// tabular store they live in (SQLite).
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// Well-known canonical field names. All components address product fields
// through these names; the alias table maps them onto whatever the source
// data actually called them.
const (
	FieldSKU         = "sku"
	FieldFamily      = "family"
	FieldType        = "type"
	FieldModel       = "model"
	FieldName        = "name"
	FieldDescription = "description"
	FieldApplication = "application"
)

// KeywordFieldPriority is the fixed field order for keyword retrieval,
// most identifying first.
var KeywordFieldPriority = []string{
	FieldType,
	FieldModel,
	FieldName,
	FieldFamily,
	FieldSKU,
	FieldDescription,
	FieldApplication,
}

// CodeFields are the code-bearing fields consulted by exact-code lookup.
var CodeFields = []string{FieldSKU, FieldModel}

// Product is one catalog record. Records are immutable per fetch: the
// pipeline never mutates a Product, only the Candidate wrapping it.
type Product struct {
	SKU         string            `json:"sku"`
	Family      string            `json:"family,omitempty"`
	Type        string            `json:"type,omitempty"`
	Model       string            `json:"model,omitempty"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Application string            `json:"application,omitempty"`
	Attrs       map[string]string `json:"attrs,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at,omitempty"`
}

// IdentityKey returns the deduplication key for this record: the SKU when
// present and non-empty, otherwise a content hash of the full record.
func (p *Product) IdentityKey() string {
	if sku := strings.TrimSpace(p.SKU); sku != "" {
		return sku
	}
	return p.contentHash()
}

// contentHash hashes all fields in a stable order.
func (p *Product) contentHash() string {
	h := sha256.New()
	write := func(k, v string) {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(v))
		h.Write([]byte{0})
	}
	write(FieldSKU, p.SKU)
	write(FieldFamily, p.Family)
	write(FieldType, p.Type)
	write(FieldModel, p.Model)
	write(FieldName, p.Name)
	write(FieldDescription, p.Description)
	write(FieldApplication, p.Application)

	keys := make([]string, 0, len(p.Attrs))
	for k := range p.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		write(k, p.Attrs[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Field returns the value of a canonical field, or an attribute by name.
// The bool reports whether the field is present and non-empty. All scorer
// and diversifier access goes through here, never direct map indexing.
func (p *Product) Field(name string) (string, bool) {
	var v string
	switch name {
	case FieldSKU:
		v = p.SKU
	case FieldFamily:
		v = p.Family
	case FieldType:
		v = p.Type
	case FieldModel:
		v = p.Model
	case FieldName:
		v = p.Name
	case FieldDescription:
		v = p.Description
	case FieldApplication:
		v = p.Application
	default:
		v = p.Attrs[name]
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// SearchText concatenates the record's text fields for embedding.
// Field order mirrors the offline embedding batch job so query and
// document vectors stay comparable.
func (p *Product) SearchText() string {
	parts := make([]string, 0, 8)
	for _, f := range []string{FieldSKU, FieldName, FieldFamily, FieldType, FieldModel, FieldDescription, FieldApplication} {
		if v, ok := p.Field(f); ok {
			parts = append(parts, v)
		}
	}
	keys := make([]string, 0, len(p.Attrs))
	for k := range p.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := strings.TrimSpace(p.Attrs[k]); v != "" {
			parts = append(parts, k+": "+v)
		}
	}
	return strings.Join(parts, "\n")
}

// NormalizeCodeValue canonicalizes a code-bearing value for comparison:
// upper-case with whitespace, hyphens, and underscores stripped.
func NormalizeCodeValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToUpper(s) {
		switch r {
		case ' ', '\t', '-', '_', '/', '.':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
