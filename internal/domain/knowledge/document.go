// Package knowledge holds the agricultural knowledge base aggregates.
package knowledge

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DocType classifies a knowledge document.
type DocType string

// Document type constants.
const (
	TypePesticide      DocType = "pesticide"
	TypeCropProtection DocType = "crop_protection"
	TypeFIS            DocType = "fis"
	TypeRegulation     DocType = "regulation"
	TypeGeneral        DocType = "general"
)

// IsValid checks if the type is one of the supported values.
func (t DocType) IsValid() bool {
	switch t {
	case TypePesticide, TypeCropProtection, TypeFIS, TypeRegulation, TypeGeneral:
		return true
	}
	return false
}

// ProtectionType classifies a crop protection measure.
type ProtectionType string

// Protection type constants.
const (
	ProtectionFungicide   ProtectionType = "fungicide"
	ProtectionInsecticide ProtectionType = "insecticide"
	ProtectionHerbicide   ProtectionType = "herbicide"
	ProtectionGeneral     ProtectionType = "general"
)

// IsValid checks if the protection type is one of the supported values.
func (p ProtectionType) IsValid() bool {
	switch p {
	case ProtectionFungicide, ProtectionInsecticide, ProtectionHerbicide, ProtectionGeneral:
		return true
	}
	return false
}

// Relevance is the information hierarchy tier a document belongs to.
type Relevance string

// Relevance tier constants, highest priority first.
const (
	RelevanceFarmer  Relevance = "farmer"
	RelevanceCountry Relevance = "country"
	RelevanceGlobal  Relevance = "global"
)

// IsValid checks if the relevance tier is one of the supported values.
func (r Relevance) IsValid() bool {
	return r == RelevanceFarmer || r == RelevanceCountry || r == RelevanceGlobal
}

var (
	idRegex     = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	idSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)
)

// MaxTextSize is the maximum document text size in bytes.
const MaxTextSize = 65536 // 64KB

// Attributes holds the optional agronomic metadata of a document.
type Attributes struct {
	Source            string
	Type              DocType
	Language          string
	Crop              string
	Chemical          string
	PHIDays           *int
	ProtectionType    ProtectionType
	TargetPest        string
	Dosage            string
	ApplicationTiming string
	CountryCode       string
	Relevance         Relevance
}

// Document is the knowledge document aggregate (immutable value object).
type Document struct {
	id        string
	text      string
	attrs     Attributes
	indexedAt time.Time
	vector    []float32
}

// New validates and creates a Document.
// An empty id is derived from (source, text) so re-indexing the same text is
// idempotent. Crop and chemical are normalized to lower case.
func New(id, text string, attrs Attributes) (Document, error) {
	if text == "" {
		return Document{}, fmt.Errorf("text is required")
	}
	if len(text) > MaxTextSize {
		return Document{}, fmt.Errorf("text too large (max %d bytes)", MaxTextSize)
	}

	if attrs.Type == "" {
		attrs.Type = TypeGeneral
	}
	if !attrs.Type.IsValid() {
		return Document{}, fmt.Errorf("invalid document type: %q", attrs.Type)
	}
	if attrs.ProtectionType != "" && !attrs.ProtectionType.IsValid() {
		return Document{}, fmt.Errorf("invalid protection type: %q", attrs.ProtectionType)
	}
	if attrs.Relevance == "" {
		attrs.Relevance = RelevanceGlobal
	}
	if !attrs.Relevance.IsValid() {
		return Document{}, fmt.Errorf("invalid relevance tier: %q", attrs.Relevance)
	}
	if attrs.PHIDays != nil && *attrs.PHIDays < 0 {
		return Document{}, fmt.Errorf("phi_days must not be negative")
	}

	attrs.Crop = strings.ToLower(strings.TrimSpace(attrs.Crop))
	attrs.Chemical = strings.ToLower(strings.TrimSpace(attrs.Chemical))
	attrs.CountryCode = strings.ToUpper(strings.TrimSpace(attrs.CountryCode))

	if id == "" {
		id = DeriveID(attrs.Source, text)
	}
	if len(id) > 256 {
		return Document{}, fmt.Errorf("document ID too long (max 256)")
	}
	if !idRegex.MatchString(id) {
		return Document{}, fmt.Errorf("document ID must be alphanumeric with underscores and hyphens")
	}

	return Document{id: id, text: text, attrs: attrs}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(id, text string, attrs Attributes, indexedAt time.Time, vector []float32) Document {
	return Document{id: id, text: text, attrs: attrs, indexedAt: indexedAt, vector: vector}
}

// DeriveID builds a deterministic document ID from source and text.
func DeriveID(source, text string) string {
	src := strings.ToLower(strings.TrimSpace(source))
	src = idSanitizer.ReplaceAllString(src, "_")
	src = strings.Trim(src, "_")
	if src == "" {
		src = "doc"
	}
	sum := sha1.Sum([]byte(text))
	return src + "_" + hex.EncodeToString(sum[:])[:12]
}

// ID returns the document identifier.
func (d Document) ID() string { return d.id }

// Text returns the document text.
func (d Document) Text() string { return d.text }

// Source returns the originating source name.
func (d Document) Source() string { return d.attrs.Source }

// Type returns the document classification.
func (d Document) Type() DocType { return d.attrs.Type }

// Language returns the ISO 639-1 language code.
func (d Document) Language() string { return d.attrs.Language }

// Crop returns the crop name, lowercased.
func (d Document) Crop() string { return d.attrs.Crop }

// Chemical returns the active chemical name, lowercased.
func (d Document) Chemical() string { return d.attrs.Chemical }

// PHIDays returns the pre-harvest interval in days, nil when unknown.
func (d Document) PHIDays() *int { return d.attrs.PHIDays }

// ProtectionType returns the crop protection classification.
func (d Document) ProtectionType() ProtectionType { return d.attrs.ProtectionType }

// TargetPest returns the pest or disease this measure targets.
func (d Document) TargetPest() string { return d.attrs.TargetPest }

// Dosage returns the recommended dosage text.
func (d Document) Dosage() string { return d.attrs.Dosage }

// ApplicationTiming returns the recommended application timing text.
func (d Document) ApplicationTiming() string { return d.attrs.ApplicationTiming }

// CountryCode returns the ISO 3166-1 alpha-2 country code, uppercased.
func (d Document) CountryCode() string { return d.attrs.CountryCode }

// Relevance returns the information hierarchy tier.
func (d Document) Relevance() Relevance { return d.attrs.Relevance }

// IndexedAt returns the indexing timestamp (zero until indexed).
func (d Document) IndexedAt() time.Time { return d.indexedAt }

// Vector returns the embedding vector.
func (d Document) Vector() []float32 { return d.vector }

// Attributes returns a copy of the metadata attributes.
func (d Document) Attributes() Attributes { return d.attrs }

// WithVector returns a copy with the given vector set.
func (d Document) WithVector(v []float32) Document {
	d.vector = v
	return d
}

// WithIndexedAt returns a copy stamped with the indexing time.
func (d Document) WithIndexedAt(t time.Time) Document {
	d.indexedAt = t
	return d
}
