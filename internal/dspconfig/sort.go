package dspconfig

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortKey selects the primary comparison of an entity list.
type SortKey string

const (
	SortByName      SortKey = "name"
	SortByType      SortKey = "type"
	SortBySubtype   SortKey = "subtype"
	SortByFrequency SortKey = "freq"
	SortByQ         SortKey = "q"
	SortByGain      SortKey = "gain"
)

// FilterSortKeys lists the keys accepted for filters.
var FilterSortKeys = []SortKey{SortByName, SortByType, SortBySubtype, SortByFrequency, SortByQ, SortByGain}

// ProcessorSortKeys lists the keys accepted for processors.
var ProcessorSortKeys = []SortKey{SortByName, SortByType}

// ParseSortKey validates key against the keys accepted for kind. An empty key means SortByName.
func ParseSortKey(kind EntityKind, key string) (SortKey, error) {
	if key == "" {
		return SortByName, nil
	}
	allowed := FilterSortKeys
	if kind == KindProcessor || kind == KindMixer {
		allowed = ProcessorSortKeys
	}
	if !slices.Contains(allowed, SortKey(key)) {
		return "", &OutOfRangeError{Message: fmt.Sprintf("unsupported sort key %q for %s", key, strings.ToLower(kind.String()))}
	}
	return SortKey(key), nil
}

type sortEntry struct {
	name       string
	typ        string
	parameters Parameters
}

// FiltersSortedOnKey returns the filter names ordered for list display.
func FiltersSortedOnKey(filters map[string]Filter, key SortKey, reverse bool) []string {
	entries := make([]sortEntry, 0, len(filters))
	for _, name := range slices.Sorted(maps.Keys(filters)) {
		f := filters[name]
		entries = append(entries, sortEntry{name: name, typ: f.Type, parameters: f.Parameters})
	}
	return sortEntries(entries, key, reverse)
}

// ProcessorsSortedOnKey returns the processor names ordered for list display.
// Keys other than name and type fall back to name.
func ProcessorsSortedOnKey(processors map[string]Processor, key SortKey, reverse bool) []string {
	if key != SortByType {
		key = SortByName
	}
	entries := make([]sortEntry, 0, len(processors))
	for _, name := range slices.Sorted(maps.Keys(processors)) {
		p := processors[name]
		entries = append(entries, sortEntry{name: name, typ: p.Type, parameters: p.Parameters})
	}
	return sortEntries(entries, key, reverse)
}

// MixersSortedOnKey orders mixer names; mixers only support the name key.
func MixersSortedOnKey(mixers map[string]Mixer, reverse bool) []string {
	entries := make([]sortEntry, 0, len(mixers))
	for _, name := range slices.Sorted(maps.Keys(mixers)) {
		entries = append(entries, sortEntry{name: name})
	}
	return sortEntries(entries, SortByName, reverse)
}

// SortedFilterNames returns the filter names in display order.
func (c *Config) SortedFilterNames() []string {
	return FiltersSortedOnKey(c.Filters, SortByName, false)
}

// SortedMixerNames returns the mixer names in display order.
func (c *Config) SortedMixerNames() []string {
	return MixersSortedOnKey(c.Mixers, false)
}

// SortedProcessorNames returns the processor names in display order.
func (c *Config) SortedProcessorNames() []string {
	return ProcessorsSortedOnKey(c.Processors, SortByName, false)
}

// SortedNames orders the names of kind on key.
func (c *Config) SortedNames(kind EntityKind, key SortKey, reverse bool) []string {
	switch kind {
	case KindMixer:
		return MixersSortedOnKey(c.Mixers, reverse)
	case KindProcessor:
		return ProcessorsSortedOnKey(c.Processors, key, reverse)
	default:
		return FiltersSortedOnKey(c.Filters, key, reverse)
	}
}

func sortEntries(entries []sortEntry, key SortKey, reverse bool) []string {
	// Collators are not safe for concurrent use.
	coll := collate.New(language.Und)
	slices.SortStableFunc(entries, func(a, b sortEntry) int {
		return compareEntries(coll, a, b, key, reverse)
	})
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names
}

func compareEntries(coll *collate.Collator, a, b sortEntry, key SortKey, reverse bool) int {
	aUnnamed := strings.HasPrefix(a.name, UnnamedPrefix)
	bUnnamed := strings.HasPrefix(b.name, UnnamedPrefix)
	if aUnnamed != bUnnamed {
		if aUnnamed {
			return 1
		}
		return -1
	}
	c := comparePrimary(coll, a, b, key)
	if c == 0 {
		c = coll.CompareString(a.name, b.name)
	}
	if reverse {
		return -c
	}
	return c
}

func comparePrimary(coll *collate.Collator, a, b sortEntry, key SortKey) int {
	switch key {
	case SortByType:
		return coll.CompareString(a.typ, b.typ)
	case SortBySubtype:
		if c := coll.CompareString(a.typ, b.typ); c != 0 {
			return c
		}
		return coll.CompareString(a.parameters.Subtype(), b.parameters.Subtype())
	case SortByFrequency, SortByQ, SortByGain:
		av, aok := a.parameters.Number(string(key))
		bv, bok := b.parameters.Number(string(key))
		switch {
		case !aok && !bok:
			return 0
		case !aok:
			return 1
		case !bok:
			return -1
		}
		return cmp.Compare(av, bv)
	default:
		return 0
	}
}
