// Package mcp exposes the knowledge base to MCP clients over stdio.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	kberrors "github.com/locchh/dkb/internal/errors"
	"github.com/locchh/dkb/internal/index"
	"github.com/locchh/dkb/internal/kb"
	"github.com/locchh/dkb/internal/output"
)

const serverName = "dkb"

const snippetWidth = 160

// Server wires the engine's operations into MCP tools.
type Server struct {
	engine  *kb.Engine
	version string
	logger  *slog.Logger
	mcp     *mcp.Server
}

// NewServer creates an MCP server over an open engine.
func NewServer(engine *kb.Engine, version string) (*Server, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}

	s := &Server{
		engine:  engine,
		version: version,
		logger:  slog.Default(),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "kb_search",
		Description: "Search the knowledge base by keywords with optional tag, path, and date filters. Results are ranked; documents matching more distinct query terms rank above those repeating one term.",
	}, s.searchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "kb_get",
		Description: "Fetch one document by its exact path, including full content, tags, and metadata.",
	}, s.getHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "kb_add",
		Description: "Store or overwrite a document at a path. The path is the stable identifier; re-adding the same path replaces content and reindexes it.",
	}, s.addHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "kb_status",
		Description: "Report knowledge-base totals: documents, chunks, tokens, distinct tags, and storage size.",
	}, s.statusHandler)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", 4))
}

func (s *Server) searchHandler(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	q := kb.Query{
		Text:        input.Query,
		Tags:        input.Tags,
		ExcludeTags: input.ExcludeTags,
		PathGlob:    input.PathGlob,
		Limit:       input.Limit,
		OrderBy:     kb.OrderBy(input.OrderBy),
		MaxTokens:   input.MaxTokens,
	}
	if input.MatchAny {
		q.TagMode = index.MatchAny
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}

	var err error
	if q.After, err = parseTime(input.After); err != nil {
		return nil, SearchOutput{}, err
	}
	if q.Before, err = parseTime(input.Before); err != nil {
		return nil, SearchOutput{}, err
	}

	results, err := s.engine.Search(ctx, q)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	out := SearchOutput{Hits: make([]SearchHit, 0, len(results)), Total: len(results)}
	for _, r := range results {
		out.Hits = append(out.Hits, SearchHit{
			Path:       r.Document.Path,
			Score:      r.Score,
			Snippet:    output.Snippet(r.Document.Content, snippetWidth),
			Tags:       r.Document.Tags,
			TokenCount: r.Document.TokenCount,
			ModifiedAt: r.Document.ModifiedAt,
		})
	}
	return nil, out, nil
}

func (s *Server) getHandler(ctx context.Context, req *mcp.CallToolRequest, input GetInput) (
	*mcp.CallToolResult,
	GetOutput,
	error,
) {
	if input.Path == "" {
		return nil, GetOutput{}, kberrors.New(kberrors.ErrCodeInvalidInput, "path is required", nil)
	}

	doc, err := s.engine.Get(ctx, input.Path)
	if err != nil {
		return nil, GetOutput{}, err
	}

	out := GetOutput{
		Path:       doc.Path,
		Content:    doc.Content,
		Tags:       doc.Tags,
		CreatedAt:  doc.CreatedAt,
		ModifiedAt: doc.ModifiedAt,
		TokenCount: doc.TokenCount,
	}
	if len(doc.Metadata) > 0 {
		out.Metadata = make(map[string]string, len(doc.Metadata))
		for k, v := range doc.Metadata {
			out.Metadata[k] = v.Display()
		}
	}
	return nil, out, nil
}

func (s *Server) addHandler(ctx context.Context, req *mcp.CallToolRequest, input AddInput) (
	*mcp.CallToolResult,
	AddOutput,
	error,
) {
	if input.Path == "" {
		return nil, AddOutput{}, kberrors.New(kberrors.ErrCodeInvalidInput, "path is required", nil)
	}

	existed := false
	if _, err := s.engine.Get(ctx, input.Path); err == nil {
		existed = true
	}

	doc, err := s.engine.Add(ctx, input.Path, input.Content, kb.AddOptions{
		Tags:       input.Tags,
		CreateOnly: input.CreateOnly,
	})
	if err != nil {
		return nil, AddOutput{}, err
	}
	return nil, AddOutput{
		Path:       doc.Path,
		TokenCount: doc.TokenCount,
		Created:    !existed,
	}, nil
}

func (s *Server) statusHandler(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
	*mcp.CallToolResult,
	StatusOutput,
	error,
) {
	stats, err := s.engine.Stats(ctx)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, StatusOutput{
		StorePath:    s.engine.Path(),
		Documents:    stats.Documents,
		Chunks:       stats.Chunks,
		Tokens:       stats.Tokens,
		DistinctTags: stats.DistinctTags,
		StorageBytes: stats.StorageBytes,
	}, nil
}

// Serve runs the server over stdio until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", "stdio"))

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, kberrors.New(kberrors.ErrCodeInvalidQuery,
			"timestamps must be RFC3339, got "+s, err)
	}
	return t, nil
}
