// Package mcp exposes the knowledge base to MCP clients over stdio,
// so agent frameworks can call search and indexing as tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	domhier "github.com/avaolo/agknow/internal/domain/hierarchy"
	"github.com/avaolo/agknow/internal/domain/knowledge"
	domsearch "github.com/avaolo/agknow/internal/domain/search"
	documentuc "github.com/avaolo/agknow/internal/usecase/document"
	hierarchyuc "github.com/avaolo/agknow/internal/usecase/hierarchy"
	pesticideuc "github.com/avaolo/agknow/internal/usecase/pesticide"
	protectionuc "github.com/avaolo/agknow/internal/usecase/protection"
)

const defaultTopK = 5

// Searcher runs knowledge base queries.
type Searcher interface {
	Search(ctx context.Context, req *domsearch.Request) ([]domsearch.Hit, error)
}

// PesticideLookup answers pre-harvest interval questions.
type PesticideLookup interface {
	Lookup(ctx context.Context, chemical, crop string) (pesticideuc.Result, error)
}

// ProtectionAdvisor recommends crop protection measures.
type ProtectionAdvisor interface {
	Recommend(ctx context.Context, crop, problem string) (protectionuc.Recommendation, error)
}

// DocumentIndexer stores documents into the knowledge base.
type DocumentIndexer interface {
	Add(ctx context.Context, in documentuc.Input) (knowledge.Document, bool, error)
}

// HierarchyQuerier runs tiered context queries.
type HierarchyQuerier interface {
	Query(ctx context.Context, q hierarchyuc.Query) (domhier.Result, error)
	Sources() map[string]domhier.Capabilities
}

// Deps holds dependencies for the MCP server.
type Deps struct {
	Search     Searcher
	Pesticide  PesticideLookup
	Protection ProtectionAdvisor
	Documents  DocumentIndexer
	Hierarchy  HierarchyQuerier // optional; sources resource reports empty without it
}

// NewServer creates an MCP server with all agknow tools registered.
func NewServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"agknow",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("agknow: agricultural knowledge base with pesticide withholding periods (karenca), crop protection advice, and regulation documents."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_knowledge",
			mcp.WithDescription("Search the agricultural knowledge base. Returns scored document matches."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithString("mode", mcp.Description("Search mode: hybrid (default), semantic, or keyword")),
			mcp.WithNumber("top_k", mcp.Description("Maximum number of results (default 5)")),
			mcp.WithString("doc_type", mcp.Description("Filter by document type (pesticide, crop_protection, fis, regulation, general)")),
			mcp.WithString("crop", mcp.Description("Filter by crop name")),
			mcp.WithString("chemical", mcp.Description("Filter by active chemical")),
			mcp.WithString("country", mcp.Description("Filter by ISO country code")),
			mcp.WithString("language", mcp.Description("Filter by document language")),
		),
		mcpSearchKnowledge(deps),
	)

	s.AddTool(
		mcp.NewTool("pesticide_info",
			mcp.WithDescription("Look up the pre-harvest interval (karenca) for a pesticide, optionally narrowed to a crop."),
			mcp.WithString("chemical", mcp.Description("Active chemical or product name"), mcp.Required()),
			mcp.WithString("crop", mcp.Description("Crop name")),
		),
		mcpPesticideInfo(deps),
	)

	s.AddTool(
		mcp.NewTool("crop_protection",
			mcp.WithDescription("Recommend protection measures for a crop, grouped by fungicides, insecticides, herbicides and general advice."),
			mcp.WithString("crop", mcp.Description("Crop name"), mcp.Required()),
			mcp.WithString("problem", mcp.Description("Observed problem, pest or disease")),
		),
		mcpCropProtection(deps),
	)

	s.AddTool(
		mcp.NewTool("add_document",
			mcp.WithDescription("Store a document in the knowledge base for later retrieval."),
			mcp.WithString("text", mcp.Description("Document text"), mcp.Required()),
			mcp.WithString("id", mcp.Description("Document ID; derived from content when omitted")),
			mcp.WithString("doc_type", mcp.Description("Document type (pesticide, crop_protection, fis, regulation, general)")),
			mcp.WithString("source", mcp.Description("Origin of the document, e.g. fis_portal")),
			mcp.WithString("crop", mcp.Description("Crop the document applies to")),
			mcp.WithString("chemical", mcp.Description("Active chemical the document describes")),
			mcp.WithNumber("phi_days", mcp.Description("Pre-harvest interval in days")),
			mcp.WithString("country", mcp.Description("ISO country code")),
			mcp.WithString("language", mcp.Description("Document language code")),
		),
		mcpAddDocument(deps),
	)

	s.AddTool(
		mcp.NewTool("hierarchy_query",
			mcp.WithDescription("Query the tiered knowledge hierarchy (farmer > country > global) respecting source privacy rules."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithString("farmer_id", mcp.Description("Farmer identifier; unlocks the farmer tier")),
			mcp.WithString("country", mcp.Description("ISO country code; unlocks the country tier")),
			mcp.WithString("language", mcp.Description("Preferred language code")),
			mcp.WithNumber("max_per_tier", mcp.Description("Maximum items per tier (default 5)")),
		),
		mcpHierarchyQuery(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"agknow://sources",
			"Hierarchy Sources",
			mcp.WithResourceDescription("Registered hierarchy sources and the tiers each may serve"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSources(deps),
	)

	return s
}

func mcpSearchKnowledge(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		mode := domsearch.Mode(req.GetString("mode", string(domsearch.Hybrid)))
		if !mode.IsValid() {
			return mcpError(fmt.Sprintf("unknown mode %q", mode)), nil
		}

		topK := req.GetInt("top_k", defaultTopK)

		filter := knowledge.Filter{
			Type:        knowledge.DocType(req.GetString("doc_type", "")),
			Crop:        req.GetString("crop", ""),
			Chemical:    req.GetString("chemical", ""),
			CountryCode: req.GetString("country", ""),
			Language:    req.GetString("language", ""),
		}

		sreq, err := domsearch.New(query, mode, filter, topK, 0)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		hits, err := deps.Search.Search(ctx, &sreq)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		return mcpJSON(hitResults(hits))
	}
}

func mcpPesticideInfo(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		chemical, err := req.RequireString("chemical")
		if err != nil {
			return mcpError("chemical is required"), nil
		}
		crop := req.GetString("crop", "")

		res, err := deps.Pesticide.Lookup(ctx, chemical, crop)
		if err != nil {
			return mcpError(fmt.Sprintf("lookup failed: %v", err)), nil
		}

		type phiResult struct {
			Chemical       string `json:"chemical"`
			Crop           string `json:"crop,omitempty"`
			PHIDays        int    `json:"phi_days"`
			Source         string `json:"source,omitempty"`
			AdditionalInfo string `json:"additional_info,omitempty"`
		}
		out := struct {
			Found     bool        `json:"found"`
			Message   string      `json:"message,omitempty"`
			PHI       *phiResult  `json:"phi,omitempty"`
			Documents []hitResult `json:"documents,omitempty"`
		}{
			Found:     res.Found,
			Message:   res.Message,
			Documents: hitResults(res.Documents),
		}
		if res.Info != nil {
			out.PHI = &phiResult{
				Chemical:       res.Info.Chemical,
				Crop:           res.Info.Crop,
				PHIDays:        res.Info.PHIDays,
				Source:         res.Info.Source,
				AdditionalInfo: res.Info.AdditionalInfo,
			}
		}

		return mcpJSON(out)
	}
}

func mcpCropProtection(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		crop, err := req.RequireString("crop")
		if err != nil {
			return mcpError("crop is required"), nil
		}
		problem := req.GetString("problem", "")

		rec, err := deps.Protection.Recommend(ctx, crop, problem)
		if err != nil {
			return mcpError(fmt.Sprintf("recommendation failed: %v", err)), nil
		}

		out := struct {
			Fungicides   []measureResult `json:"fungicides"`
			Insecticides []measureResult `json:"insecticides"`
			Herbicides   []measureResult `json:"herbicides"`
			General      []measureResult `json:"general"`
		}{
			Fungicides:   measureResults(rec.Fungicides),
			Insecticides: measureResults(rec.Insecticides),
			Herbicides:   measureResults(rec.Herbicides),
			General:      measureResults(rec.General),
		}

		return mcpJSON(out)
	}
}

func mcpAddDocument(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		attrs := knowledge.Attributes{
			Type:        knowledge.DocType(req.GetString("doc_type", "")),
			Source:      req.GetString("source", ""),
			Crop:        req.GetString("crop", ""),
			Chemical:    req.GetString("chemical", ""),
			CountryCode: req.GetString("country", ""),
			Language:    req.GetString("language", ""),
		}
		if phi := req.GetInt("phi_days", -1); phi >= 0 {
			attrs.PHIDays = &phi
		}

		doc, created, err := deps.Documents.Add(ctx, documentuc.Input{
			ID:         req.GetString("id", ""),
			Text:       text,
			Attributes: attrs,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to index: %v", err)), nil
		}

		verb := "Updated"
		if created {
			verb = "Stored"
		}
		return mcpText(fmt.Sprintf("%s document %s", verb, doc.ID())), nil
	}
}

func mcpHierarchyQuery(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Hierarchy == nil {
			return mcpError("hierarchy queries not available"), nil
		}

		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		res, err := deps.Hierarchy.Query(ctx, hierarchyuc.Query{
			Text: query,
			Context: domhier.Context{
				FarmerID:    req.GetString("farmer_id", ""),
				CountryCode: req.GetString("country", ""),
				Language:    req.GetString("language", ""),
			},
			MaxPerTier: req.GetInt("max_per_tier", 0),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("hierarchy query failed: %v", err)), nil
		}

		type itemResult struct {
			Source  string            `json:"source"`
			Content string            `json:"content"`
			Score   float64           `json:"score"`
			Meta    map[string]string `json:"meta,omitempty"`
		}
		tiers := make(map[string][]itemResult, len(res.Tiers))
		for tier, items := range res.Tiers {
			entries := make([]itemResult, len(items))
			for i := range items {
				entries[i] = itemResult{
					Source:  items[i].Source(),
					Content: items[i].Content(),
					Score:   items[i].Score(),
					Meta:    items[i].Meta(),
				}
			}
			tiers[tier.String()] = entries
		}

		out := struct {
			ContextHash string                  `json:"context_hash"`
			SourcesUsed []string                `json:"sources_used"`
			TotalItems  int                     `json:"total_items"`
			Tiers       map[string][]itemResult `json:"tiers"`
		}{
			ContextHash: res.ContextHash,
			SourcesUsed: res.SourcesUsed,
			TotalItems:  res.TotalItems(),
			Tiers:       tiers,
		}

		return mcpJSON(out)
	}
}

func mcpResourceSources(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		type sourceInfo struct {
			Farmer  bool `json:"farmer"`
			Country bool `json:"country"`
			Global  bool `json:"global"`
		}
		sources := make(map[string]sourceInfo)
		if deps.Hierarchy != nil {
			for name, caps := range deps.Hierarchy.Sources() {
				sources[name] = sourceInfo{
					Farmer:  caps.Farmer,
					Country: caps.Country,
					Global:  caps.Global,
				}
			}
		}

		b, err := json.Marshal(sources)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal sources: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

type hitResult struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
	DocType  string  `json:"doc_type,omitempty"`
	Crop     string  `json:"crop,omitempty"`
	Chemical string  `json:"chemical,omitempty"`
	PHIDays  *int    `json:"phi_days,omitempty"`
	Source   string  `json:"source,omitempty"`
}

func hitResults(hits []domsearch.Hit) []hitResult {
	results := make([]hitResult, len(hits))
	for i := range hits {
		doc := hits[i].Document()
		results[i] = hitResult{
			ID:       doc.ID(),
			Text:     doc.Text(),
			Score:    hits[i].Score(),
			DocType:  string(doc.Type()),
			Crop:     doc.Crop(),
			Chemical: doc.Chemical(),
			PHIDays:  doc.PHIDays(),
			Source:   doc.Source(),
		}
	}
	return results
}

type measureResult struct {
	Chemical string `json:"chemical,omitempty"`
	Target   string `json:"target,omitempty"`
	Dosage   string `json:"dosage,omitempty"`
	Timing   string `json:"timing,omitempty"`
	Text     string `json:"text"`
}

func measureResults(measures []protectionuc.Measure) []measureResult {
	results := make([]measureResult, len(measures))
	for i, m := range measures {
		results[i] = measureResult{
			Chemical: m.Chemical,
			Target:   m.Target,
			Dosage:   m.Dosage,
			Timing:   m.Timing,
			Text:     m.Text,
		}
	}
	return results
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
