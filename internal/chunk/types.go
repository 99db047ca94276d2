// Package chunk splits document text into ordered, addressable pieces.
// Each piece carries byte offsets into the source text so that chunk
// boundaries are stable and reproducible across runs.
package chunk

import (
	"fmt"

	kberrors "github.com/locchh/dkb/internal/errors"
)

// Strategy selects how text is split into pieces.
type Strategy string

const (
	// StrategyHeadings splits at markdown-style heading lines.
	StrategyHeadings Strategy = "headings"
	// StrategyParagraphs splits on blank-line-delimited blocks.
	StrategyParagraphs Strategy = "paragraphs"
	// StrategyTokens uses a fixed-size sliding window over the token stream.
	StrategyTokens Strategy = "tokens"
	// StrategySeparator splits on a literal delimiter string.
	StrategySeparator Strategy = "separator"
)

// Default window parameters for the tokens strategy.
const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 64
)

// Options configures a Split call.
type Options struct {
	Strategy Strategy

	// Size and Overlap configure the tokens strategy window, in tokens.
	// Overlap must be strictly less than Size.
	Size    int
	Overlap int

	// Separator is the literal delimiter for the separator strategy.
	Separator string

	// MinSize merges undersized adjacent pieces (tokens). Zero disables.
	MinSize int
	// MaxSize subdivides oversized pieces using token windows. Zero disables.
	MaxSize int
}

// Piece is one chunk of the source text. Start and End are byte offsets
// into the input; pieces are ordered with strictly increasing starts.
type Piece struct {
	Start      int
	End        int
	Heading    string
	TokenCount int
}

// Validate checks option consistency. Returns an InvalidConfig error on
// violation so callers can reject the parameters before touching any state.
func (o Options) Validate() error {
	switch o.Strategy {
	case StrategyHeadings, StrategyParagraphs:
	case StrategyTokens:
		size := o.Size
		if size == 0 {
			size = DefaultChunkSize
		}
		if size < 1 {
			return kberrors.InvalidConfig(fmt.Sprintf("chunk_size must be positive, got %d", o.Size))
		}
		if o.Overlap < 0 {
			return kberrors.InvalidConfig(fmt.Sprintf("chunk_overlap must not be negative, got %d", o.Overlap))
		}
		if o.Overlap >= size {
			return kberrors.InvalidConfig(fmt.Sprintf("chunk_overlap (%d) must be less than chunk_size (%d)", o.Overlap, size))
		}
	case StrategySeparator:
		if o.Separator == "" {
			return kberrors.InvalidConfig("separator strategy requires a non-empty separator")
		}
	case "":
		return kberrors.InvalidConfig("chunk strategy is required")
	default:
		return kberrors.InvalidConfig(fmt.Sprintf("unknown chunk strategy: %s", o.Strategy))
	}

	if o.MinSize < 0 || o.MaxSize < 0 {
		return kberrors.InvalidConfig("min_chunk_size and max_chunk_size must not be negative")
	}
	if o.MinSize > 0 && o.MaxSize > 0 && o.MinSize > o.MaxSize {
		return kberrors.InvalidConfig(fmt.Sprintf("min_chunk_size (%d) must not exceed max_chunk_size (%d)", o.MinSize, o.MaxSize))
	}
	return nil
}
