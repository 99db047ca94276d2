package chunk

import (
	"regexp"
	"strings"

	"github.com/locchh/dkb/internal/token"
)

// headingPattern matches markdown headers: # Title through ###### Title.
var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*$`)

// Split chunks text according to opts. The returned pieces have strictly
// increasing start offsets; with the tokens strategy, ranges may overlap by
// the configured overlap, all other strategies produce disjoint ranges.
// Splitting identical text with identical options yields identical pieces.
func Split(text string, opts Options) ([]Piece, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var pieces []Piece
	switch opts.Strategy {
	case StrategyHeadings:
		pieces = splitHeadings(text)
	case StrategyParagraphs:
		pieces = splitParagraphs(text)
	case StrategyTokens:
		size := opts.Size
		if size == 0 {
			size = DefaultChunkSize
		}
		pieces = splitTokens(text, size, opts.Overlap)
	case StrategySeparator:
		pieces = splitSeparator(text, opts.Separator)
	}

	pieces = applyConstraints(text, pieces, opts)

	for i := range pieces {
		if pieces[i].TokenCount == 0 {
			pieces[i].TokenCount = token.Count(text[pieces[i].Start:pieces[i].End])
		}
	}
	return pieces, nil
}

// splitHeadings splits at heading lines. Each section runs from its heading
// line up to the next heading. Content before the first heading becomes an
// unlabeled preamble piece.
func splitHeadings(text string) []Piece {
	var pieces []Piece

	sectionStart := 0
	sectionHeading := ""
	haveSection := false

	flush := func(end int) {
		body := text[sectionStart:end]
		if sectionHeading == "" && strings.TrimSpace(body) == "" {
			return
		}
		pieces = append(pieces, Piece{
			Start:   sectionStart,
			End:     trimmedEnd(text, sectionStart, end),
			Heading: sectionHeading,
		})
	}

	offset := 0
	for _, line := range splitLinesKeepOffsets(text) {
		if m := headingPattern.FindStringSubmatch(line.text); m != nil {
			if haveSection || line.start > 0 {
				flush(line.start)
			}
			sectionStart = line.start
			sectionHeading = m[2]
			haveSection = true
		}
		offset = line.end
	}
	flush(offset)

	return pieces
}

// splitParagraphs splits on blank-line-delimited blocks.
func splitParagraphs(text string) []Piece {
	var pieces []Piece

	blockStart := -1
	blockEnd := 0
	for _, line := range splitLinesKeepOffsets(text) {
		if strings.TrimSpace(line.text) == "" {
			if blockStart >= 0 {
				pieces = append(pieces, Piece{Start: blockStart, End: blockEnd})
				blockStart = -1
			}
			continue
		}
		if blockStart < 0 {
			blockStart = line.start
		}
		blockEnd = line.start + len(line.text)
	}
	if blockStart >= 0 {
		pieces = append(pieces, Piece{Start: blockStart, End: blockEnd})
	}

	return pieces
}

// splitTokens produces fixed-size windows over the token stream, advancing
// by size-overlap tokens. The final partial window is kept if non-empty.
func splitTokens(text string, size, overlap int) []Piece {
	toks := token.Tokenize(text)
	if len(toks) == 0 {
		return nil
	}

	step := size - overlap
	var pieces []Piece
	for start := 0; start < len(toks); start += step {
		end := start + size
		if end > len(toks) {
			end = len(toks)
		}
		pieces = append(pieces, Piece{
			Start:      toks[start].Start,
			End:        toks[end-1].End,
			TokenCount: end - start,
		})
		if end == len(toks) {
			break
		}
	}
	return pieces
}

// splitSeparator splits on a literal delimiter. Empty segments are dropped,
// which collapses runs of consecutive separators.
func splitSeparator(text, sep string) []Piece {
	var pieces []Piece

	pos := 0
	for {
		idx := strings.Index(text[pos:], sep)
		segEnd := len(text)
		if idx >= 0 {
			segEnd = pos + idx
		}
		if strings.TrimSpace(text[pos:segEnd]) != "" {
			pieces = append(pieces, Piece{Start: pos, End: trimmedEnd(text, pos, segEnd)})
		}
		if idx < 0 {
			break
		}
		pos = segEnd + len(sep)
	}
	return pieces
}

// lineSpan is a single line plus its byte offsets (excluding the newline).
type lineSpan struct {
	text  string
	start int
	end   int // offset past the newline, i.e. start of the next line
}

func splitLinesKeepOffsets(text string) []lineSpan {
	var lines []lineSpan
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, lineSpan{text: text[start:i], start: start, end: i + 1})
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, lineSpan{text: text[start:], start: start, end: len(text)})
	}
	return lines
}

// trimmedEnd shrinks end past trailing whitespace so that piece offsets do
// not cover the blank padding between sections.
func trimmedEnd(text string, start, end int) int {
	for end > start {
		c := text[end-1]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			end--
			continue
		}
		break
	}
	return end
}
