// Package validation carries validation results addressed by their location in the
// config document, so that an editor form can pick the messages of the node it shows.
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/antonholmquist/jason"

	"github.com/pipeconf/pipeconf/internal/errors"
	"github.com/pipeconf/pipeconf/internal/logger"
)

// Path locates a node in the config tree. Elements are object keys (string) or
// array indices (int).
type Path []any

// NewPath builds a path, normalizing numeric elements to int.
func NewPath(elems ...any) Path {
	p := make(Path, len(elems))
	for i, e := range elems {
		p[i] = normalizeElement(e)
	}
	return p
}

// ParsePath splits a slash separated path. Segments made of digits become indices.
func ParsePath(s string) Path {
	s = strings.Trim(s, "/")
	if s == "" {
		return Path{}
	}
	parts := strings.Split(s, "/")
	p := make(Path, len(parts))
	for i, part := range parts {
		if n, err := strconv.Atoi(part); err == nil && n >= 0 {
			p[i] = n
		} else {
			p[i] = part
		}
	}
	return p
}

func normalizeElement(e any) any {
	switch v := e.(type) {
	case string:
		return v
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == math.Trunc(v) {
			return int(v)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
		if f, err := v.Float64(); err == nil {
			return normalizeElement(f)
		}
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// HasPrefix reports whether p starts with prefix.
func (p Path) HasPrefix(prefix Path) bool {
	return len(prefix) <= len(p) && slices.Equal(p[:len(prefix)], prefix)
}

// Equal reports whether both paths address the same node.
func (p Path) Equal(other Path) bool {
	return slices.Equal(p, other)
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, e := range p {
		parts[i] = fmt.Sprint(e)
	}
	return strings.Join(parts, "|")
}

// Entry is one message attached to a path.
type Entry struct {
	Path    Path
	Message string
}

// MarshalJSON encodes the entry as a [path, message] pair.
func (e Entry) MarshalJSON() ([]byte, error) {
	path := e.Path
	if path == nil {
		path = Path{}
	}
	return json.Marshal([]any{path, e.Message})
}

// UnmarshalJSON decodes a [path, message] pair.
func (e *Entry) UnmarshalJSON(data []byte) error {
	v, err := jason.NewValueFromBytes(data)
	if err != nil {
		return err
	}
	entry, err := entryFromValue(v)
	if err != nil {
		return err
	}
	*e = entry
	return nil
}

// entryFromValue reads one [path, message] pair. Path elements are strings or numbers.
func entryFromValue(v *jason.Value) (Entry, error) {
	pair, err := v.Array()
	if err != nil || len(pair) != 2 {
		return Entry{}, fmt.Errorf("validation entry must be a [path, message] pair")
	}
	segments, err := pair[0].Array()
	if err != nil {
		return Entry{}, fmt.Errorf("validation entry path: %w", err)
	}
	msg, err := pair[1].String()
	if err != nil {
		return Entry{}, fmt.Errorf("validation entry message: %w", err)
	}

	elems := make([]any, 0, len(segments))
	for _, seg := range segments {
		if key, err := seg.String(); err == nil {
			elems = append(elems, key)
			continue
		}
		n, err := seg.Number()
		if err != nil {
			return Entry{}, fmt.Errorf("validation entry path element must be a string or number")
		}
		elems = append(elems, n)
	}
	return Entry{Path: NewPath(elems...), Message: msg}, nil
}

func entriesFromValues(items []*jason.Value) ([]Entry, error) {
	entries := make([]Entry, 0, len(items))
	for i, item := range items {
		entry, err := entryFromValue(item)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// decodeEntries reads a [[path, message], ...] document. null decodes as no entries.
func decodeEntries(data []byte) ([]Entry, error) {
	v, err := jason.NewValueFromBytes(data)
	if err != nil {
		return nil, err
	}
	if v.Null() == nil {
		return nil, nil
	}
	items, err := v.Array()
	if err != nil {
		return nil, fmt.Errorf("validation result must be a list: %w", err)
	}
	return entriesFromValues(items)
}

// Errors is an immutable list of path addressed messages.
type Errors struct {
	entries []Entry
}

// NewErrors wraps entries. The slice is copied.
func NewErrors(entries ...Entry) Errors {
	return Errors{entries: slices.Clone(entries)}
}

// Parse decodes the [[path, message], ...] document returned by the engine's validator.
func Parse(data []byte) (Errors, error) {
	entries, err := decodeEntries(data)
	if err != nil {
		GetLogger().Warn("malformed validation result", logger.Error(err), logger.Int("size", len(data)))
		return Errors{}, errors.New(err).
			Category(errors.CategoryValidation).
			Context("operation", "parse_validation_errors").
			Build()
	}
	return Errors{entries: entries}, nil
}

// FromValues builds Errors from [path, message] pairs already decoded by jason.
func FromValues(items []*jason.Value) (Errors, error) {
	entries, err := entriesFromValues(items)
	if err != nil {
		return Errors{}, err
	}
	return Errors{entries: entries}, nil
}

// MarshalJSON encodes the list in the same pair format Parse accepts.
func (e Errors) MarshalJSON() ([]byte, error) {
	if e.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(e.entries)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *Errors) UnmarshalJSON(data []byte) error {
	entries, err := decodeEntries(data)
	if err != nil {
		return err
	}
	e.entries = entries
	return nil
}

// Entries returns a copy of the entries.
func (e Errors) Entries() []Entry {
	return slices.Clone(e.entries)
}

// Len returns the number of entries.
func (e Errors) Len() int {
	return len(e.entries)
}

// Empty reports whether there are no entries.
func (e Errors) Empty() bool {
	return len(e.entries) == 0
}

// ForSubpath keeps the entries below prefix and strips the prefix from their paths.
func (e Errors) ForSubpath(prefix ...any) Errors {
	p := NewPath(prefix...)
	var out []Entry
	for _, entry := range e.entries {
		if entry.Path.HasPrefix(p) {
			out = append(out, Entry{Path: slices.Clone(entry.Path[len(p):]), Message: entry.Message})
		}
	}
	return Errors{entries: out}
}

// RootMessage joins the messages attached to the empty path with newlines.
func (e Errors) RootMessage() string {
	var msgs []string
	for _, entry := range e.entries {
		if len(entry.Path) == 0 {
			msgs = append(msgs, entry.Message)
		}
	}
	return strings.Join(msgs, "\n")
}

// MessageFor returns the messages attached exactly to path.
func (e Errors) MessageFor(path ...any) string {
	return e.ForSubpath(path...).RootMessage()
}

// HasErrorsUnder reports whether path or any node below it has a message.
func (e Errors) HasErrorsUnder(path ...any) bool {
	return !e.ForSubpath(path...).Empty()
}

// AsText renders every entry on its own line. Root entries have no path prefix.
func (e Errors) AsText() string {
	lines := make([]string, len(e.entries))
	for i, entry := range e.entries {
		if len(entry.Path) == 0 {
			lines[i] = entry.Message
			continue
		}
		lines[i] = entry.Path.String() + ": " + entry.Message
	}
	return strings.Join(lines, "\n")
}

// ErrorsForPath returns the messages attached to path, joined with newlines. With
// includeChildren the messages of every node below path are included too.
func ErrorsForPath(entries []Entry, path Path, includeChildren bool) string {
	path = NewPath(path...)
	var msgs []string
	for _, entry := range entries {
		if entry.Path.Equal(path) || (includeChildren && entry.Path.HasPrefix(path)) {
			msgs = append(msgs, entry.Message)
		}
	}
	return strings.Join(msgs, "\n")
}
