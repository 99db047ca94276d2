// Package store provides the durable record store for documents and chunks.
// One knowledge base is one SQLite file (or a memory-backed image sharing
// the same layout); secondary indexes are rebuilt from these tables on open.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// FormatVersion is the persisted layout version recorded in kb_info.
// Opening a file with a newer version than we understand is refused.
const FormatVersion = 1

// DocumentID identifies a document. It is derived deterministically from
// the document path so that reindexing produces stable identifiers.
type DocumentID = string

// DocID computes the identifier for a document path.
func DocID(path string) DocumentID {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:8])
}

// ChunkID computes the identifier for a chunk of a document.
func ChunkID(docID DocumentID, seq int) string {
	return fmt.Sprintf("%s#%d", docID, seq)
}

// Document is a named, taggable unit of stored text content.
type Document struct {
	ID         DocumentID
	Path       string
	Content    string
	CreatedAt  time.Time
	ModifiedAt time.Time
	Tags       []string // sorted, unique
	Metadata   map[string]MetaValue
	TokenCount int
	Size       int64 // content length in bytes
}

// Summary is a document without its content body, for listings and filtering.
type Summary struct {
	ID         DocumentID
	Path       string
	CreatedAt  time.Time
	ModifiedAt time.Time
	Tags       []string
	TokenCount int
	Size       int64
}

// Summary returns the document's summary view.
func (d *Document) Summary() Summary {
	return Summary{
		ID:         d.ID,
		Path:       d.Path,
		CreatedAt:  d.CreatedAt,
		ModifiedAt: d.ModifiedAt,
		Tags:       d.Tags,
		TokenCount: d.TokenCount,
		Size:       d.Size,
	}
}

// Chunk is an ordered sub-span of a document's content. Offsets index into
// the parent content; chunks of one document never overlap out of sequence
// order and are destroyed with the parent.
type Chunk struct {
	DocID      DocumentID
	Seq        int
	Start      int
	End        int
	Heading    string
	TokenCount int
}

// ID returns the chunk's identifier.
func (c *Chunk) ID() string {
	return ChunkID(c.DocID, c.Seq)
}

// MetaKind enumerates the closed set of metadata scalar kinds.
type MetaKind string

const (
	MetaString MetaKind = "s"
	MetaNumber MetaKind = "n"
	MetaBool   MetaKind = "b"
	MetaTime   MetaKind = "ts"
)

// MetaValue is one metadata scalar. The kind tag keeps the persisted
// format self-describing without allowing open-ended nested values.
type MetaValue struct {
	Kind MetaKind
	Str  string
	Num  float64
	Bool bool
	Time time.Time
}

// String creates a string metadata value.
func String(v string) MetaValue { return MetaValue{Kind: MetaString, Str: v} }

// Number creates a numeric metadata value.
func Number(v float64) MetaValue { return MetaValue{Kind: MetaNumber, Num: v} }

// Bool creates a boolean metadata value.
func Bool(v bool) MetaValue { return MetaValue{Kind: MetaBool, Bool: v} }

// Timestamp creates a time metadata value.
func Timestamp(v time.Time) MetaValue { return MetaValue{Kind: MetaTime, Time: v} }

// Display renders the value for user-facing output.
func (v MetaValue) Display() string {
	switch v.Kind {
	case MetaString:
		return v.Str
	case MetaNumber:
		return fmt.Sprintf("%g", v.Num)
	case MetaBool:
		return fmt.Sprintf("%t", v.Bool)
	case MetaTime:
		return v.Time.UTC().Format(time.RFC3339)
	}
	return ""
}

// metaEnvelope is the persisted JSON form of a MetaValue.
type metaEnvelope struct {
	T MetaKind        `json:"t"`
	V json.RawMessage `json:"v"`
}

// MarshalJSON implements json.Marshaler.
func (v MetaValue) MarshalJSON() ([]byte, error) {
	var inner any
	switch v.Kind {
	case MetaString:
		inner = v.Str
	case MetaNumber:
		inner = v.Num
	case MetaBool:
		inner = v.Bool
	case MetaTime:
		inner = v.Time.UTC().Format(time.RFC3339Nano)
	default:
		return nil, fmt.Errorf("unknown metadata kind: %q", v.Kind)
	}
	raw, err := json.Marshal(inner)
	if err != nil {
		return nil, err
	}
	return json.Marshal(metaEnvelope{T: v.Kind, V: raw})
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *MetaValue) UnmarshalJSON(data []byte) error {
	var env metaEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	v.Kind = env.T
	switch env.T {
	case MetaString:
		return json.Unmarshal(env.V, &v.Str)
	case MetaNumber:
		return json.Unmarshal(env.V, &v.Num)
	case MetaBool:
		return json.Unmarshal(env.V, &v.Bool)
	case MetaTime:
		var s string
		if err := json.Unmarshal(env.V, &s); err != nil {
			return err
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		v.Time = ts
		return nil
	}
	return fmt.Errorf("unknown metadata kind: %q", env.T)
}
