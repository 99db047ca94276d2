package index

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	kberrors "github.com/locchh/dkb/internal/errors"
)

// Paths indexes document ids by their logical path and answers glob
// queries. Glob semantics apply over the full path string: `*` matches any
// run of characters including `/`, so `docs/api/*` covers the whole
// subtree. `?` matches one character and `[...]` a character class.
type Paths struct {
	mu    sync.RWMutex
	byID  map[string]string // id -> path
	paths map[string]string // path -> id
}

// NewPaths creates an empty path index.
func NewPaths() *Paths {
	return &Paths{
		byID:  make(map[string]string),
		paths: make(map[string]string),
	}
}

// Add registers a document path.
func (p *Paths) Add(id, path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if old, ok := p.byID[id]; ok {
		delete(p.paths, old)
	}
	p.byID[id] = path
	p.paths[path] = id
}

// Remove drops a document id.
func (p *Paths) Remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if path, ok := p.byID[id]; ok {
		delete(p.paths, path)
		delete(p.byID, id)
	}
}

// Clear drops all entries.
func (p *Paths) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byID = make(map[string]string)
	p.paths = make(map[string]string)
}

// PathOf returns the path for a document id.
func (p *Paths) PathOf(id string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	path, ok := p.byID[id]
	return path, ok
}

// Find returns the ids whose path matches the glob pattern.
func (p *Paths) Find(pattern string) (map[string]struct{}, error) {
	re, err := CompileGlob(pattern)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make(map[string]struct{})
	for path, id := range p.paths {
		if re.MatchString(path) {
			result[id] = struct{}{}
		}
	}
	return result, nil
}

// CompileGlob translates a glob pattern into an anchored regular expression.
func CompileGlob(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")

	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		case '[':
			end := strings.IndexByte(pattern[i:], ']')
			if end < 0 {
				return nil, kberrors.New(kberrors.ErrCodeInvalidQuery,
					fmt.Sprintf("unterminated character class in pattern %q", pattern), nil)
			}
			sb.WriteString(pattern[i : i+end+1])
			i += end
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, kberrors.New(kberrors.ErrCodeInvalidQuery,
			fmt.Sprintf("invalid glob pattern %q", pattern), err)
	}
	return re, nil
}
