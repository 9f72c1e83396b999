package knowledge

import (
	"encoding/binary"
	"math"
	"strconv"
	"time"

	"github.com/avaolo/agknow/internal/domain"
	domknow "github.com/avaolo/agknow/internal/domain/knowledge"
)

// Hash field names, shared between storage and the FT index schema.
const (
	fieldText        = "text"
	fieldVector      = "vector"
	fieldSource      = "source"
	fieldDocType     = "doc_type"
	fieldLanguage    = "language"
	fieldCrop        = "crop"
	fieldChemical    = "chemical"
	fieldPHIDays     = "phi_days"
	fieldProtection  = "protection_type"
	fieldTargetPest  = "target_pest"
	fieldDosage      = "dosage"
	fieldTiming      = "application_timing"
	fieldCountry     = "country"
	fieldRelevance   = "relevance"
	fieldIndexedAt   = "indexed_at"
	fieldVectorScore = "__vector_score"
)

// docKey builds the Redis key for a document ID.
func docKey(id string) string {
	return domain.KeyPrefix + "doc:" + id
}

// IndexName is the FT index over document hashes.
const IndexName = domain.KeyPrefix + "doc:idx"

const keyPrefix = domain.KeyPrefix + "doc:"

func extractDocID(key string) string {
	if len(key) > len(keyPrefix) && key[:len(keyPrefix)] == keyPrefix {
		return key[len(keyPrefix):]
	}
	return key
}

// buildHashFields converts a domain Document into a flat map[string]string for HSET.
// Empty optional attributes are omitted so TAG filters on them stay selective.
func buildHashFields(doc *domknow.Document) map[string]string {
	m := map[string]string{
		fieldText:      doc.Text(),
		fieldDocType:   string(doc.Type()),
		fieldRelevance: string(doc.Relevance()),
	}
	if v := doc.Vector(); len(v) > 0 {
		m[fieldVector] = vectorToBytes(v)
	}
	if doc.Source() != "" {
		m[fieldSource] = doc.Source()
	}
	if doc.Language() != "" {
		m[fieldLanguage] = doc.Language()
	}
	if doc.Crop() != "" {
		m[fieldCrop] = doc.Crop()
	}
	if doc.Chemical() != "" {
		m[fieldChemical] = doc.Chemical()
	}
	if phi := doc.PHIDays(); phi != nil {
		m[fieldPHIDays] = strconv.Itoa(*phi)
	}
	if doc.ProtectionType() != "" {
		m[fieldProtection] = string(doc.ProtectionType())
	}
	if doc.TargetPest() != "" {
		m[fieldTargetPest] = doc.TargetPest()
	}
	if doc.Dosage() != "" {
		m[fieldDosage] = doc.Dosage()
	}
	if doc.ApplicationTiming() != "" {
		m[fieldTiming] = doc.ApplicationTiming()
	}
	if doc.CountryCode() != "" {
		m[fieldCountry] = doc.CountryCode()
	}
	if !doc.IndexedAt().IsZero() {
		m[fieldIndexedAt] = strconv.FormatInt(doc.IndexedAt().Unix(), 10)
	}
	return m
}

// parseHashFields converts a flat hash map back into a domain Document.
func parseHashFields(id string, m map[string]string, includeVector bool) domknow.Document {
	attrs := domknow.Attributes{
		Source:            m[fieldSource],
		Type:              domknow.DocType(m[fieldDocType]),
		Language:          m[fieldLanguage],
		Crop:              m[fieldCrop],
		Chemical:          m[fieldChemical],
		ProtectionType:    domknow.ProtectionType(m[fieldProtection]),
		TargetPest:        m[fieldTargetPest],
		Dosage:            m[fieldDosage],
		ApplicationTiming: m[fieldTiming],
		CountryCode:       m[fieldCountry],
		Relevance:         domknow.Relevance(m[fieldRelevance]),
	}

	if s, ok := m[fieldPHIDays]; ok {
		if n, err := strconv.Atoi(s); err == nil {
			attrs.PHIDays = &n
		}
	}

	var indexedAt time.Time
	if s, ok := m[fieldIndexedAt]; ok {
		if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
			indexedAt = time.Unix(sec, 0).UTC()
		}
	}

	var vector []float32
	if includeVector {
		vector = bytesToVector(m[fieldVector])
	}

	return domknow.Reconstruct(id, m[fieldText], attrs, indexedAt, vector)
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
