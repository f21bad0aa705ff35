package dictionary

import (
	"strings"
)

// SearchLimit caps the number of records returned by Search.
const SearchLimit = 8

// Dictionary is a read-only lookup built once per refresh. It is never
// mutated after Build returns, so it is safe to share between goroutines.
type Dictionary struct {
	byID    map[string]*Record
	records []*Record
}

// Build normalizes raw entries and indexes them by lowercased identifier.
// Entries that fail normalization are dropped silently. When two entries
// share an identifier the later one wins the lookup, while both remain in
// the ordered list used for search.
func Build(entries []RawEntry) *Dictionary {
	d := &Dictionary{
		byID:    make(map[string]*Record, len(entries)),
		records: make([]*Record, 0, len(entries)),
	}
	for _, e := range entries {
		rec, ok := e.Normalize()
		if !ok {
			continue
		}
		r := &rec
		d.byID[strings.ToLower(rec.Identifier)] = r
		d.records = append(d.records, r)
	}
	return d
}

// Empty returns a dictionary with no records.
func Empty() *Dictionary {
	return Build(nil)
}

// Len returns the number of records in source order.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.records)
}

// Size returns the number of distinct identifiers.
func (d *Dictionary) Size() int {
	if d == nil {
		return 0
	}
	return len(d.byID)
}

// Resolve looks up an identifier case-insensitively.
func (d *Dictionary) Resolve(candidate string) (Record, bool) {
	if d == nil || candidate == "" {
		return Record{}, false
	}
	r, ok := d.byID[strings.ToLower(candidate)]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Search returns up to SearchLimit records whose search text contains the
// lowercased query, in source order. An empty query returns the first
// SearchLimit records.
func (d *Dictionary) Search(query string) []Record {
	if d == nil {
		return nil
	}
	q := strings.ToLower(query)
	out := make([]Record, 0, SearchLimit)
	for _, r := range d.records {
		if len(out) == SearchLimit {
			break
		}
		if q == "" || strings.Contains(r.SearchText, q) {
			out = append(out, *r)
		}
	}
	return out
}

// Records returns a copy of all records in source order.
func (d *Dictionary) Records() []Record {
	if d == nil {
		return nil
	}
	out := make([]Record, len(d.records))
	for i, r := range d.records {
		out[i] = *r
	}
	return out
}
