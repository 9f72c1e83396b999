package chi

import (
	"time"

	domhier "github.com/avaolo/agknow/internal/domain/hierarchy"
	"github.com/avaolo/agknow/internal/domain/knowledge"
	domsearch "github.com/avaolo/agknow/internal/domain/search"
	pesticideuc "github.com/avaolo/agknow/internal/usecase/pesticide"
	protectionuc "github.com/avaolo/agknow/internal/usecase/protection"
)

// Error codes returned in the error response body.
type errorCode string

const (
	codeBadRequest        errorCode = "bad_request"
	codeValidationFailed  errorCode = "validation_failed"
	codeUnauthorized      errorCode = "unauthorized"
	codeDocumentNotFound  errorCode = "document_not_found"
	codeBatchTooLarge     errorCode = "batch_too_large"
	codeVectorDimMismatch errorCode = "vector_dim_mismatch"
	codeEmbeddingQuota    errorCode = "embedding_quota_exceeded"
	codeEmbeddingProvider errorCode = "embedding_provider_error"
	codePrivacyViolation  errorCode = "privacy_violation"
	codeInternalError     errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// documentPayload is the wire form of a document write.
type documentPayload struct {
	ID                string `json:"id,omitempty"`
	Text              string `json:"text"`
	Source            string `json:"source,omitempty"`
	DocType           string `json:"doc_type,omitempty"`
	Language          string `json:"language,omitempty"`
	Crop              string `json:"crop,omitempty"`
	Chemical          string `json:"chemical,omitempty"`
	PHIDays           *int   `json:"phi_days,omitempty"`
	ProtectionType    string `json:"protection_type,omitempty"`
	TargetPest        string `json:"target_pest,omitempty"`
	Dosage            string `json:"dosage,omitempty"`
	ApplicationTiming string `json:"application_timing,omitempty"`
	Country           string `json:"country,omitempty"`
	Relevance         string `json:"relevance,omitempty"`
}

func (p documentPayload) attributes() knowledge.Attributes {
	return knowledge.Attributes{
		Source:            p.Source,
		Type:              knowledge.DocType(p.DocType),
		Language:          p.Language,
		Crop:              p.Crop,
		Chemical:          p.Chemical,
		PHIDays:           p.PHIDays,
		ProtectionType:    knowledge.ProtectionType(p.ProtectionType),
		TargetPest:        p.TargetPest,
		Dosage:            p.Dosage,
		ApplicationTiming: p.ApplicationTiming,
		CountryCode:       p.Country,
		Relevance:         knowledge.Relevance(p.Relevance),
	}
}

// documentResponse is the wire form of a stored document.
type documentResponse struct {
	ID                string     `json:"id"`
	Text              string     `json:"text"`
	Source            string     `json:"source,omitempty"`
	DocType           string     `json:"doc_type"`
	Language          string     `json:"language,omitempty"`
	Crop              string     `json:"crop,omitempty"`
	Chemical          string     `json:"chemical,omitempty"`
	PHIDays           *int       `json:"phi_days,omitempty"`
	ProtectionType    string     `json:"protection_type,omitempty"`
	TargetPest        string     `json:"target_pest,omitempty"`
	Dosage            string     `json:"dosage,omitempty"`
	ApplicationTiming string     `json:"application_timing,omitempty"`
	Country           string     `json:"country,omitempty"`
	Relevance         string     `json:"relevance"`
	IndexedAt         *time.Time `json:"indexed_at,omitempty"`
}

func documentToDTO(doc knowledge.Document) documentResponse {
	resp := documentResponse{
		ID:                doc.ID(),
		Text:              doc.Text(),
		Source:            doc.Source(),
		DocType:           string(doc.Type()),
		Language:          doc.Language(),
		Crop:              doc.Crop(),
		Chemical:          doc.Chemical(),
		PHIDays:           doc.PHIDays(),
		ProtectionType:    string(doc.ProtectionType()),
		TargetPest:        doc.TargetPest(),
		Dosage:            doc.Dosage(),
		ApplicationTiming: doc.ApplicationTiming(),
		Country:           doc.CountryCode(),
		Relevance:         string(doc.Relevance()),
	}
	if !doc.IndexedAt().IsZero() {
		t := doc.IndexedAt().UTC()
		resp.IndexedAt = &t
	}
	return resp
}

// filterDTO is the wire form of a metadata pre-filter.
type filterDTO struct {
	DocType        string   `json:"doc_type,omitempty"`
	Crop           string   `json:"crop,omitempty"`
	Chemical       string   `json:"chemical,omitempty"`
	Language       string   `json:"language,omitempty"`
	Country        string   `json:"country,omitempty"`
	ProtectionType string   `json:"protection_type,omitempty"`
	MaxPHIDays     *float64 `json:"max_phi_days,omitempty"`
	Relevance      string   `json:"relevance,omitempty"`
}

func (f *filterDTO) toDomain() knowledge.Filter {
	if f == nil {
		return knowledge.Filter{}
	}
	return knowledge.Filter{
		Type:           knowledge.DocType(f.DocType),
		Crop:           f.Crop,
		Chemical:       f.Chemical,
		Language:       f.Language,
		CountryCode:    f.Country,
		ProtectionType: knowledge.ProtectionType(f.ProtectionType),
		MaxPHIDays:     f.MaxPHIDays,
		Relevance:      knowledge.Relevance(f.Relevance),
	}
}

type searchRequest struct {
	Query    string     `json:"query"`
	Mode     string     `json:"mode,omitempty"`
	TopK     int        `json:"top_k,omitempty"`
	MinScore float64    `json:"min_score,omitempty"`
	Filter   *filterDTO `json:"filter,omitempty"`
}

type searchHitDTO struct {
	Score    float64          `json:"score"`
	Document documentResponse `json:"document"`
}

func hitToDTO(h *domsearch.Hit) searchHitDTO {
	return searchHitDTO{Score: h.Score(), Document: documentToDTO(h.Document())}
}

func hitsToDTO(hits []domsearch.Hit) []searchHitDTO {
	out := make([]searchHitDTO, len(hits))
	for i := range hits {
		out[i] = hitToDTO(&hits[i])
	}
	return out
}

type searchResponse struct {
	Items []searchHitDTO `json:"items"`
	Total int            `json:"total"`
}

type pesticideRequest struct {
	Chemical string `json:"chemical"`
	Crop     string `json:"crop,omitempty"`
}

type phiDTO struct {
	Chemical       string `json:"chemical"`
	Crop           string `json:"crop,omitempty"`
	PHIDays        int    `json:"phi_days"`
	Source         string `json:"source,omitempty"`
	AdditionalInfo string `json:"additional_info,omitempty"`
}

type pesticideResponse struct {
	Found     bool           `json:"found"`
	Message   string         `json:"message,omitempty"`
	PHI       *phiDTO        `json:"phi,omitempty"`
	Documents []searchHitDTO `json:"documents,omitempty"`
}

func pesticideToDTO(res pesticideuc.Result) pesticideResponse {
	resp := pesticideResponse{
		Found:     res.Found,
		Message:   res.Message,
		Documents: hitsToDTO(res.Documents),
	}
	if res.Info != nil {
		resp.PHI = &phiDTO{
			Chemical:       res.Info.Chemical,
			Crop:           res.Info.Crop,
			PHIDays:        res.Info.PHIDays,
			Source:         res.Info.Source,
			AdditionalInfo: res.Info.AdditionalInfo,
		}
	}
	return resp
}

type protectionRequest struct {
	Crop    string `json:"crop"`
	Problem string `json:"problem,omitempty"`
}

type measureDTO struct {
	Chemical string `json:"chemical,omitempty"`
	Target   string `json:"target,omitempty"`
	Dosage   string `json:"dosage,omitempty"`
	Timing   string `json:"timing,omitempty"`
	Text     string `json:"text"`
}

type protectionResponse struct {
	Fungicides   []measureDTO `json:"fungicides"`
	Insecticides []measureDTO `json:"insecticides"`
	Herbicides   []measureDTO `json:"herbicides"`
	General      []measureDTO `json:"general"`
}

func measuresToDTO(ms []protectionuc.Measure) []measureDTO {
	out := make([]measureDTO, len(ms))
	for i, m := range ms {
		out[i] = measureDTO{
			Chemical: m.Chemical,
			Target:   m.Target,
			Dosage:   m.Dosage,
			Timing:   m.Timing,
			Text:     m.Text,
		}
	}
	return out
}

func protectionToDTO(rec protectionuc.Recommendation) protectionResponse {
	return protectionResponse{
		Fungicides:   measuresToDTO(rec.Fungicides),
		Insecticides: measuresToDTO(rec.Insecticides),
		Herbicides:   measuresToDTO(rec.Herbicides),
		General:      measuresToDTO(rec.General),
	}
}

type hierarchyContextDTO struct {
	FarmerID string `json:"farmer_id,omitempty"`
	Country  string `json:"country,omitempty"`
	Language string `json:"language,omitempty"`
}

type hierarchyRequest struct {
	Query      string              `json:"query"`
	Context    hierarchyContextDTO `json:"context"`
	Tiers      []string            `json:"tiers,omitempty"`
	MaxPerTier int                 `json:"max_per_tier,omitempty"`
}

type hierarchyItemDTO struct {
	Source  string            `json:"source"`
	Content string            `json:"content"`
	Score   float64           `json:"score"`
	Meta    map[string]string `json:"meta,omitempty"`
}

type hierarchyResponse struct {
	Timestamp   time.Time                     `json:"timestamp"`
	ContextHash string                        `json:"context_hash"`
	SourcesUsed []string                      `json:"sources_used"`
	TotalItems  int                           `json:"total_items"`
	Tiers       map[string][]hierarchyItemDTO `json:"tiers"`
}

func hierarchyToDTO(res domhier.Result) hierarchyResponse {
	tiers := make(map[string][]hierarchyItemDTO, len(res.Tiers))
	for tier, items := range res.Tiers {
		dtos := make([]hierarchyItemDTO, len(items))
		for i := range items {
			dtos[i] = hierarchyItemDTO{
				Source:  items[i].Source(),
				Content: items[i].Content(),
				Score:   items[i].Score(),
				Meta:    items[i].Meta(),
			}
		}
		tiers[tier.String()] = dtos
	}
	return hierarchyResponse{
		Timestamp:   res.Timestamp,
		ContextHash: res.ContextHash,
		SourcesUsed: res.SourcesUsed,
		TotalItems:  res.TotalItems(),
		Tiers:       tiers,
	}
}

type bulkRequest struct {
	Documents []documentPayload `json:"documents"`
}

type bulkItemDTO struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

type bulkResponse struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Items     []bulkItemDTO `json:"items"`
}

type documentListResponse struct {
	Items      []documentResponse `json:"items"`
	HasMore    bool               `json:"has_more"`
	NextCursor string             `json:"next_cursor,omitempty"`
	Total      int                `json:"total"`
}

type budgetDTO struct {
	TokensLimit     int64      `json:"tokens_limit"`
	TokensRemaining int64      `json:"tokens_remaining"`
	IsExhausted     bool       `json:"is_exhausted"`
	ResetsAt        *time.Time `json:"resets_at,omitempty"`
}

type usageResponse struct {
	Period        string     `json:"period"`
	PeriodStartAt *time.Time `json:"period_start_at,omitempty"`
	PeriodEndAt   *time.Time `json:"period_end_at,omitempty"`
	TokensUsed    int64      `json:"tokens_used"`
	EstimatedCost float64    `json:"estimated_cost_usd"`
	Budget        budgetDTO  `json:"budget"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
