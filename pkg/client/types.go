package client

import "time"

// Document is a knowledge document as accepted and returned by the API.
// On writes, ID may be left empty to derive it from (source, text).
type Document struct {
	ID                string     `json:"id,omitempty"`
	Text              string     `json:"text"`
	Source            string     `json:"source,omitempty"`
	DocType           string     `json:"doc_type,omitempty"`
	Language          string     `json:"language,omitempty"`
	Crop              string     `json:"crop,omitempty"`
	Chemical          string     `json:"chemical,omitempty"`
	PHIDays           *int       `json:"phi_days,omitempty"`
	ProtectionType    string     `json:"protection_type,omitempty"`
	TargetPest        string     `json:"target_pest,omitempty"`
	Dosage            string     `json:"dosage,omitempty"`
	ApplicationTiming string     `json:"application_timing,omitempty"`
	Country           string     `json:"country,omitempty"`
	Relevance         string     `json:"relevance,omitempty"`
	IndexedAt         *time.Time `json:"indexed_at,omitempty"`
}

// Filter narrows a search by document metadata.
type Filter struct {
	DocType        string   `json:"doc_type,omitempty"`
	Crop           string   `json:"crop,omitempty"`
	Chemical       string   `json:"chemical,omitempty"`
	Language       string   `json:"language,omitempty"`
	Country        string   `json:"country,omitempty"`
	ProtectionType string   `json:"protection_type,omitempty"`
	MaxPHIDays     *float64 `json:"max_phi_days,omitempty"`
	Relevance      string   `json:"relevance,omitempty"`
}

// SearchRequest is a knowledge base query.
type SearchRequest struct {
	Query    string  `json:"query"`
	Mode     string  `json:"mode,omitempty"` // hybrid (default), semantic, keyword
	TopK     int     `json:"top_k,omitempty"`
	MinScore float64 `json:"min_score,omitempty"`
	Filter   *Filter `json:"filter,omitempty"`
}

// SearchHit is one scored search result.
type SearchHit struct {
	Score    float64  `json:"score"`
	Document Document `json:"document"`
}

// SearchResponse holds search results.
type SearchResponse struct {
	Items []SearchHit `json:"items"`
	Total int         `json:"total"`
}

// PHIInfo is an extracted pre-harvest interval answer.
type PHIInfo struct {
	Chemical       string `json:"chemical"`
	Crop           string `json:"crop,omitempty"`
	PHIDays        int    `json:"phi_days"`
	Source         string `json:"source,omitempty"`
	AdditionalInfo string `json:"additional_info,omitempty"`
}

// PesticideResponse is the outcome of a pesticide lookup. Found=false with
// a message is a normal answer, not an error.
type PesticideResponse struct {
	Found     bool        `json:"found"`
	Message   string      `json:"message,omitempty"`
	PHI       *PHIInfo    `json:"phi,omitempty"`
	Documents []SearchHit `json:"documents,omitempty"`
}

// Measure is one recommended crop protection measure.
type Measure struct {
	Chemical string `json:"chemical,omitempty"`
	Target   string `json:"target,omitempty"`
	Dosage   string `json:"dosage,omitempty"`
	Timing   string `json:"timing,omitempty"`
	Text     string `json:"text"`
}

// ProtectionResponse groups recommended measures by protection type.
type ProtectionResponse struct {
	Fungicides   []Measure `json:"fungicides"`
	Insecticides []Measure `json:"insecticides"`
	Herbicides   []Measure `json:"herbicides"`
	General      []Measure `json:"general"`
}

// HierarchyContext identifies who is asking a hierarchy query.
type HierarchyContext struct {
	FarmerID string `json:"farmer_id,omitempty"`
	Country  string `json:"country,omitempty"`
	Language string `json:"language,omitempty"`
}

// HierarchyRequest is a tiered context query.
type HierarchyRequest struct {
	Query      string           `json:"query"`
	Context    HierarchyContext `json:"context"`
	Tiers      []string         `json:"tiers,omitempty"` // farmer, country, global
	MaxPerTier int              `json:"max_per_tier,omitempty"`
}

// HierarchyItem is one piece of tiered context.
type HierarchyItem struct {
	Source  string            `json:"source"`
	Content string            `json:"content"`
	Score   float64           `json:"score"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// HierarchyResponse is a tier-grouped context answer.
type HierarchyResponse struct {
	Timestamp   time.Time                  `json:"timestamp"`
	ContextHash string                     `json:"context_hash"`
	SourcesUsed []string                   `json:"sources_used"`
	TotalItems  int                        `json:"total_items"`
	Tiers       map[string][]HierarchyItem `json:"tiers"`
}

// BulkItem is the per-document outcome of a bulk index.
type BulkItem struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

// BulkResponse summarizes a bulk index run.
type BulkResponse struct {
	Total     int        `json:"total"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Items     []BulkItem `json:"items"`
}

// DocumentList is one page of stored documents.
type DocumentList struct {
	Items      []Document `json:"items"`
	HasMore    bool       `json:"has_more"`
	NextCursor string     `json:"next_cursor,omitempty"`
	Total      int        `json:"total"`
}

// Budget is the embedding token budget state.
type Budget struct {
	TokensLimit     int64      `json:"tokens_limit"`
	TokensRemaining int64      `json:"tokens_remaining"` // -1 means unlimited
	IsExhausted     bool       `json:"is_exhausted"`
	ResetsAt        *time.Time `json:"resets_at,omitempty"`
}

// UsageReport is an embedding API usage report.
type UsageReport struct {
	Period        string     `json:"period"`
	PeriodStartAt *time.Time `json:"period_start_at,omitempty"`
	PeriodEndAt   *time.Time `json:"period_end_at,omitempty"`
	TokensUsed    int64      `json:"tokens_used"`
	EstimatedCost float64    `json:"estimated_cost_usd"`
	Budget        Budget     `json:"budget"`
}

// HealthReport is the service health summary.
type HealthReport struct {
	Status string            `json:"status"` // ok or degraded
	Checks map[string]string `json:"checks"`
}
