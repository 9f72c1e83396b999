// Package hierarchy models the three-tier information relevance hierarchy:
// farmer-specific data outranks country-level data, which outranks global
// knowledge. Privacy rules bind sources to the tiers they may serve.
package hierarchy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Tier is an information relevance level, lower value means higher priority.
type Tier int

// Relevance tiers.
const (
	TierFarmer  Tier = 1
	TierCountry Tier = 2
	TierGlobal  Tier = 3
)

// String returns the wire name of the tier.
func (t Tier) String() string {
	switch t {
	case TierFarmer:
		return "farmer"
	case TierCountry:
		return "country"
	case TierGlobal:
		return "global"
	}
	return "unknown"
}

// IsValid checks if the tier is one of the supported values.
func (t Tier) IsValid() bool {
	return t == TierFarmer || t == TierCountry || t == TierGlobal
}

// ParseTier converts a wire name into a Tier.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "farmer":
		return TierFarmer, nil
	case "country":
		return TierCountry, nil
	case "global":
		return TierGlobal, nil
	}
	return 0, fmt.Errorf("unknown tier: %q", s)
}

// AllTiers returns the tiers in priority order.
func AllTiers() []Tier {
	return []Tier{TierFarmer, TierCountry, TierGlobal}
}

// Capabilities declares which tiers a data source is authorized to serve.
type Capabilities struct {
	Farmer  bool
	Country bool
	Global  bool
}

// Source describes a registered data source and its tier authorization.
type Source struct {
	name string
	caps Capabilities
}

// NewSource creates a source descriptor.
func NewSource(name string, caps Capabilities) (Source, error) {
	if name == "" {
		return Source{}, fmt.Errorf("source name is required")
	}
	return Source{name: name, caps: caps}, nil
}

// Name returns the source identifier.
func (s *Source) Name() string { return s.name }

// Capabilities returns the tier authorization flags.
func (s *Source) Capabilities() Capabilities { return s.caps }

// Allows reports whether the source may serve items at the given tier.
func (s *Source) Allows(t Tier) bool {
	switch t {
	case TierFarmer:
		return s.caps.Farmer
	case TierCountry:
		return s.caps.Country
	case TierGlobal:
		return s.caps.Global
	}
	return false
}

// Context identifies whose data a hierarchy query concerns.
type Context struct {
	FarmerID    string
	CountryCode string
	Language    string
}

// Normalize uppercases the country code and lowercases the language.
func (c Context) Normalize() Context {
	c.CountryCode = strings.ToUpper(strings.TrimSpace(c.CountryCode))
	c.Language = strings.ToLower(strings.TrimSpace(c.Language))
	c.FarmerID = strings.TrimSpace(c.FarmerID)
	return c
}

// Hash returns a 16-hex-char digest of the context for audit logs,
// so farmer identifiers never appear in log output verbatim.
func (c Context) Hash() string {
	sum := sha256.Sum256([]byte(c.FarmerID + ":" + c.CountryCode + ":" + c.Language))
	return hex.EncodeToString(sum[:])[:16]
}

// Item is a single piece of information returned at some tier.
type Item struct {
	source  string
	tier    Tier
	content string
	score   float64
	meta    map[string]string
}

// NewItem creates a hierarchy result item.
func NewItem(source string, tier Tier, content string, score float64, meta map[string]string) Item {
	return Item{source: source, tier: tier, content: content, score: score, meta: meta}
}

// Source returns the originating source name.
func (i *Item) Source() string { return i.source }

// Tier returns the relevance tier of the item.
func (i *Item) Tier() Tier { return i.tier }

// Content returns the item text.
func (i *Item) Content() string { return i.content }

// Score returns the retrieval score.
func (i *Item) Score() float64 { return i.score }

// Meta returns the item metadata.
func (i *Item) Meta() map[string]string { return i.meta }

// Result is a tiered hierarchy query outcome with audit metadata.
type Result struct {
	Timestamp   time.Time
	ContextHash string
	SourcesUsed []string
	Tiers       map[Tier][]Item
}

// TotalItems returns the number of items across all tiers.
func (r *Result) TotalItems() int {
	n := 0
	for _, items := range r.Tiers {
		n += len(items)
	}
	return n
}
