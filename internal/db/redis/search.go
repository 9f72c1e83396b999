package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/avaolo/agknow/internal/db"
)

// SearchKNN runs a vector similarity query via FT.SEARCH. Tag and range
// clauses become a pre-filter so the KNN only scores matching documents.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	switch {
	case q.IndexName == "":
		return nil, fmt.Errorf("index name is required")
	case len(q.Vector) == 0:
		return nil, fmt.Errorf("vector is required")
	case q.K <= 0:
		return nil, fmt.Errorf("k must be positive")
	}

	knn := fmt.Sprintf("[KNN %d @vector $BLOB]", q.K)
	expr := "*"
	if f := filterExpr(q.Tags, q.Ranges); f != "" {
		expr = "(" + f + ")"
	}

	args := []string{q.IndexName, expr + "=>" + knn}
	args = appendReturn(args, q.ReturnFields)
	// Without an explicit LIMIT RediSearch returns at most 10 rows
	// regardless of the KNN K.
	args = append(args, "LIMIT", "0", strconv.Itoa(q.K))
	args = append(args, "PARAMS", "2", "BLOB", encodeVector(q.Vector), "DIALECT", "2")

	raw, err := s.ftSearch(ctx, args)
	if err != nil {
		return nil, err
	}

	res, err := parseReply(raw, strideKeyFields)
	if err != nil {
		return nil, err
	}
	for i := range res.Entries {
		e := &res.Entries[i]
		if d, ok := e.Fields["__vector_score"]; ok {
			if dist, perr := strconv.ParseFloat(d, 64); perr == nil {
				// Cosine distance to similarity, clamped to [0,1].
				e.Score = max(0, 1.0-dist)
			}
			delete(e.Fields, "__vector_score")
		}
	}
	return res, nil
}

// SearchBM25 runs a full-text query via FT.SEARCH with BM25 scoring.
func (s *Store) SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	switch {
	case q.IndexName == "":
		return nil, fmt.Errorf("index name is required")
	case q.Query == "":
		return nil, fmt.Errorf("query is required")
	case q.TopK <= 0:
		return nil, fmt.Errorf("topK must be positive")
	}

	field := q.TextField
	if field == "" {
		field = "text"
	}

	expr := fmt.Sprintf("@%s:(%s)", field, escapeQuery(q.Query))
	if f := filterExpr(q.Tags, q.Ranges); f != "" {
		expr = f + " " + expr
	}

	args := []string{q.IndexName, expr}
	args = appendReturn(args, q.ReturnFields)
	args = append(args, "WITHSCORES", "LIMIT", "0", strconv.Itoa(q.TopK), "DIALECT", "2")

	raw, err := s.ftSearch(ctx, args)
	if err != nil {
		return nil, err
	}
	return parseReply(raw, strideKeyScoreFields)
}

// SearchList pages through index entries ordered by internal doc order.
func (s *Store) SearchList(
	ctx context.Context, index, query string, offset, limit int, fields []string,
) (*db.SearchResult, error) {
	args := []string{index, query, "LIMIT", strconv.Itoa(offset), strconv.Itoa(limit)}
	args = appendReturn(args, fields)

	raw, err := s.ftSearch(ctx, args)
	if err != nil {
		return nil, err
	}
	return parseReply(raw, strideKeyFields)
}

// SearchCount returns the number of matching documents without fetching any.
func (s *Store) SearchCount(ctx context.Context, index, query string) (int, error) {
	raw, err := s.ftSearch(ctx, []string{index, query, "LIMIT", "0", "0"})
	if err != nil {
		return 0, err
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

func (s *Store) ftSearch(ctx context.Context, args []string) ([]rueidis.RedisMessage, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return raw, nil
}

func appendReturn(args, fields []string) []string {
	if len(fields) == 0 {
		return args
	}
	args = append(args, "RETURN", strconv.Itoa(len(fields)))
	return append(args, fields...)
}

// --- Reply parsing ---

// Reply layouts for FT.SEARCH under RESP2. The first element is always
// the total match count; the remainder repeats per hit.
const (
	strideKeyFields      = 2 // key, field array
	strideKeyScoreFields = 3 // key, score, field array (WITHSCORES)
)

func parseReply(raw []rueidis.RedisMessage, stride int) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, total)
	for i := 1; i+stride-1 < len(raw); i += stride {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		var entry db.SearchEntry
		entry.Key = key

		fieldsIdx := i + 1
		if stride == strideKeyScoreFields {
			scoreStr, err := raw[i+1].ToString()
			if err != nil {
				continue
			}
			score, err := strconv.ParseFloat(scoreStr, 64)
			if err != nil {
				continue
			}
			entry.Score = score
			fieldsIdx = i + 2
		}

		pairs, err := raw[fieldsIdx].ToArray()
		if err != nil {
			continue
		}
		entry.Fields = fieldMap(pairs)

		entries = append(entries, entry)
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func fieldMap(pairs []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(pairs)/2)
	for j := 0; j+1 < len(pairs); j += 2 {
		name, err := pairs[j].ToString()
		if err != nil {
			continue
		}
		value, err := pairs[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Filter and query text ---

// filterExpr renders tag and numeric range clauses as an FT.SEARCH
// filter expression, joined with implicit AND.
func filterExpr(tags []db.TagClause, ranges []db.RangeClause) string {
	parts := make([]string, 0, len(tags)+len(ranges))

	for _, t := range tags {
		parts = append(parts, fmt.Sprintf("@%s:{%s}", t.Field, tagEscaper.Replace(t.Value)))
	}

	for _, r := range ranges {
		lo, hi := "-inf", "+inf"
		if r.Min != nil {
			lo = fmt.Sprintf("%g", *r.Min)
		}
		if r.Max != nil {
			hi = fmt.Sprintf("%g", *r.Max)
		}
		parts = append(parts, fmt.Sprintf("@%s:[%s %s]", r.Field, lo, hi))
	}

	return strings.Join(parts, " ")
}

// escapeQuery neutralizes RediSearch query syntax in user text so a
// search for "2,4-D" does not parse as operators.
func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
)

func encodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
