package kb

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	kberrors "github.com/locchh/dkb/internal/errors"
	"github.com/locchh/dkb/internal/store"
)

// ExportFormat selects the export rendering.
type ExportFormat string

const (
	// FormatMarkdown writes one file per document under the target
	// directory, mirroring document paths, with YAML frontmatter carrying
	// tags and metadata on every file that has them.
	FormatMarkdown ExportFormat = "markdown"

	// FormatJSON writes a single kb-export.json with every document.
	FormatJSON ExportFormat = "json"
)

const jsonExportName = "kb-export.json"

// ExportOptions configures Export. The embedded query selects which
// documents are written; a zero query exports everything.
type ExportOptions struct {
	Format ExportFormat
	Query  Query
}

// Export writes the selected documents under dir and returns how many were
// written. Markdown exports round-trip through ImportFolder: tags and
// metadata are restored from the frontmatter.
func (e *Engine) Export(ctx context.Context, dir string, opts ExportOptions) (int, error) {
	format := opts.Format
	if format == "" {
		format = FormatMarkdown
	}

	q := opts.Query
	q.Text = ""
	q.OrderBy = OrderPath
	results, err := e.Search(ctx, q)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, kberrors.IOFailure("create export dir", err)
	}

	switch format {
	case FormatMarkdown:
		return exportMarkdown(dir, results)
	case FormatJSON:
		return exportJSON(dir, results)
	default:
		return 0, kberrors.New(kberrors.ErrCodeInvalidInput,
			"unknown export format "+string(format), nil)
	}
}

func exportMarkdown(dir string, results []Result) (int, error) {
	for _, r := range results {
		doc := r.Document
		target := filepath.Join(dir, filepath.FromSlash(doc.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return 0, kberrors.IOFailure("create export dir", err)
		}

		rendered, err := renderFrontmatter(doc)
		if err != nil {
			return 0, err
		}
		content := rendered + doc.Content
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			return 0, kberrors.IOFailure("write "+target, err)
		}
	}
	return len(results), nil
}

// exportDoc is the JSON export shape of one document.
type exportDoc struct {
	Path       string                     `json:"path"`
	Content    string                     `json:"content"`
	CreatedAt  time.Time                  `json:"created_at"`
	ModifiedAt time.Time                  `json:"modified_at"`
	Tags       []string                   `json:"tags,omitempty"`
	Metadata   map[string]store.MetaValue `json:"metadata,omitempty"`
	TokenCount int                        `json:"token_count"`
}

func exportJSON(dir string, results []Result) (int, error) {
	type envelope struct {
		Version    int         `json:"version"`
		ExportedAt time.Time   `json:"exported_at"`
		Documents  []exportDoc `json:"documents"`
	}

	env := envelope{
		Version:    store.FormatVersion,
		ExportedAt: time.Now().UTC(),
		Documents:  make([]exportDoc, 0, len(results)),
	}
	for _, r := range results {
		doc := r.Document
		env.Documents = append(env.Documents, exportDoc{
			Path:       doc.Path,
			Content:    doc.Content,
			CreatedAt:  doc.CreatedAt,
			ModifiedAt: doc.ModifiedAt,
			Tags:       doc.Tags,
			Metadata:   doc.Metadata,
			TokenCount: doc.TokenCount,
		})
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return 0, kberrors.Internal("encode export", err)
	}
	target := filepath.Join(dir, jsonExportName)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return 0, kberrors.IOFailure("write "+target, err)
	}
	return len(env.Documents), nil
}

// frontmatter is the YAML block carried at the top of exported markdown.
type frontmatter struct {
	Tags     []string       `yaml:"tags,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

// metaValues converts parsed YAML metadata back into typed values.
func (f *frontmatter) metaValues() map[string]store.MetaValue {
	if len(f.Metadata) == 0 {
		return nil
	}
	out := make(map[string]store.MetaValue, len(f.Metadata))
	for k, v := range f.Metadata {
		switch val := v.(type) {
		case string:
			out[k] = store.String(val)
		case int:
			out[k] = store.Number(float64(val))
		case int64:
			out[k] = store.Number(float64(val))
		case float64:
			out[k] = store.Number(val)
		case bool:
			out[k] = store.Bool(val)
		case time.Time:
			out[k] = store.Timestamp(val)
		default:
			// Unknown YAML shapes (lists, maps) degrade to their string form.
			b, err := yaml.Marshal(val)
			if err != nil {
				continue
			}
			out[k] = store.String(strings.TrimRight(string(b), "\n"))
		}
	}
	return out
}

// renderFrontmatter produces the "---" delimited YAML header for a
// document, or the empty string when there is nothing to carry.
func renderFrontmatter(doc *store.Document) (string, error) {
	fm := frontmatter{Tags: doc.Tags}
	if len(doc.Metadata) > 0 {
		fm.Metadata = make(map[string]any, len(doc.Metadata))
		for k, v := range doc.Metadata {
			switch v.Kind {
			case store.MetaString:
				fm.Metadata[k] = v.Str
			case store.MetaNumber:
				fm.Metadata[k] = v.Num
			case store.MetaBool:
				fm.Metadata[k] = v.Bool
			case store.MetaTime:
				fm.Metadata[k] = v.Time
			}
		}
	}
	if len(fm.Tags) == 0 && len(fm.Metadata) == 0 {
		return "", nil
	}

	body, err := yaml.Marshal(fm)
	if err != nil {
		return "", kberrors.Internal("encode frontmatter", err)
	}
	return "---\n" + string(body) + "---\n", nil
}

// parseFrontmatter splits a "---" delimited YAML header off content.
// Content without a header is returned unchanged with a nil frontmatter.
func parseFrontmatter(content string) (string, *frontmatter, error) {
	rest, ok := strings.CutPrefix(content, "---\n")
	if !ok {
		return content, nil, nil
	}
	idx := strings.Index(rest, "\n---\n")
	var block, body string
	switch {
	case idx >= 0:
		block = rest[:idx+1]
		body = rest[idx+len("\n---\n"):]
	case strings.HasSuffix(rest, "\n---"):
		block = rest[:len(rest)-len("---")]
		body = ""
	default:
		return content, nil, nil
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return "", nil, err
	}
	return body, &fm, nil
}
