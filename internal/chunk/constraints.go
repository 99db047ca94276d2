package chunk

import (
	"github.com/locchh/dkb/internal/token"
)

// applyConstraints post-processes pieces against MinSize/MaxSize limits.
// Undersized adjacent pieces are merged first, then oversized pieces are
// subdivided with non-overlapping token windows. The heading split (or any
// primary strategy) stays authoritative; size limits only refine its output.
func applyConstraints(text string, pieces []Piece, opts Options) []Piece {
	if opts.MinSize == 0 && opts.MaxSize == 0 {
		return pieces
	}

	for i := range pieces {
		pieces[i].TokenCount = token.Count(text[pieces[i].Start:pieces[i].End])
	}

	if opts.MinSize > 0 {
		pieces = mergeUndersized(pieces, opts.MinSize, func(a, b Piece) int {
			return token.Count(text[a.Start:b.End])
		})
	}
	if opts.MaxSize > 0 {
		pieces = splitOversized(text, pieces, opts.MaxSize)
	}
	return pieces
}

// mergeUndersized merges a piece smaller than minSize into its successor.
// The trailing piece has no successor and may stay undersized.
func mergeUndersized(pieces []Piece, minSize int, mergedCount func(a, b Piece) int) []Piece {
	if len(pieces) < 2 {
		return pieces
	}

	out := make([]Piece, 0, len(pieces))
	cur := pieces[0]
	for _, next := range pieces[1:] {
		if cur.TokenCount < minSize {
			heading := cur.Heading
			if heading == "" {
				heading = next.Heading
			}
			cur = Piece{
				Start:      cur.Start,
				End:        next.End,
				Heading:    heading,
				TokenCount: mergedCount(cur, next),
			}
			continue
		}
		out = append(out, cur)
		cur = next
	}
	out = append(out, cur)
	return out
}

// splitOversized subdivides pieces above maxSize using the tokens strategy
// with no overlap. Child pieces inherit the parent heading.
func splitOversized(text string, pieces []Piece, maxSize int) []Piece {
	out := make([]Piece, 0, len(pieces))
	for _, p := range pieces {
		if p.TokenCount <= maxSize {
			out = append(out, p)
			continue
		}

		sub := splitTokens(text[p.Start:p.End], maxSize, 0)
		for _, s := range sub {
			out = append(out, Piece{
				Start:      p.Start + s.Start,
				End:        p.Start + s.End,
				Heading:    p.Heading,
				TokenCount: s.TokenCount,
			})
		}
	}
	return out
}
