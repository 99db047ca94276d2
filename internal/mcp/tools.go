package mcp

import "time"

// SearchInput defines the input schema for the kb_search tool.
type SearchInput struct {
	Query       string   `json:"query,omitempty" jsonschema:"keyword query; omit for filter-only search"`
	Tags        []string `json:"tags,omitempty" jsonschema:"require these tags"`
	MatchAny    bool     `json:"match_any,omitempty" jsonschema:"match any listed tag instead of all"`
	ExcludeTags []string `json:"exclude_tags,omitempty" jsonschema:"drop documents carrying any of these tags"`
	PathGlob    string   `json:"path_glob,omitempty" jsonschema:"filter by document path glob, * crosses separators"`
	After       string   `json:"after,omitempty" jsonschema:"only documents modified at or after this RFC3339 time"`
	Before      string   `json:"before,omitempty" jsonschema:"only documents modified at or before this RFC3339 time"`
	Limit       int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	OrderBy     string   `json:"order_by,omitempty" jsonschema:"result order: relevance, date, or path"`
	MaxTokens   int      `json:"max_tokens,omitempty" jsonschema:"cap summed token count of returned documents"`
}

// SearchHit is one result row of kb_search.
type SearchHit struct {
	Path       string    `json:"path"`
	Score      float64   `json:"score"`
	Snippet    string    `json:"snippet"`
	Tags       []string  `json:"tags,omitempty"`
	TokenCount int       `json:"token_count"`
	ModifiedAt time.Time `json:"modified_at"`
}

// SearchOutput defines the output schema for the kb_search tool.
type SearchOutput struct {
	Hits  []SearchHit `json:"hits"`
	Total int         `json:"total"`
}

// GetInput defines the input schema for the kb_get tool.
type GetInput struct {
	Path string `json:"path" jsonschema:"document path to fetch"`
}

// GetOutput defines the output schema for the kb_get tool.
type GetOutput struct {
	Path       string            `json:"path"`
	Content    string            `json:"content"`
	Tags       []string          `json:"tags,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	ModifiedAt time.Time         `json:"modified_at"`
	TokenCount int               `json:"token_count"`
}

// AddInput defines the input schema for the kb_add tool.
type AddInput struct {
	Path       string   `json:"path" jsonschema:"document path, used as the stable identifier"`
	Content    string   `json:"content" jsonschema:"document text content"`
	Tags       []string `json:"tags,omitempty" jsonschema:"tags to attach"`
	CreateOnly bool     `json:"create_only,omitempty" jsonschema:"fail instead of overwriting an existing document"`
}

// AddOutput defines the output schema for the kb_add tool.
type AddOutput struct {
	Path       string `json:"path"`
	TokenCount int    `json:"token_count"`
	Created    bool   `json:"created"`
}

// StatusInput defines the input schema for the kb_status tool (no parameters).
type StatusInput struct{}

// StatusOutput defines the output schema for the kb_status tool.
type StatusOutput struct {
	StorePath    string `json:"store_path,omitempty"`
	Documents    int64  `json:"documents"`
	Chunks       int64  `json:"chunks"`
	Tokens       int64  `json:"tokens"`
	DistinctTags int    `json:"distinct_tags"`
	StorageBytes int64  `json:"storage_bytes"`
}
