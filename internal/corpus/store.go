// Package corpus loads and holds the layout records searched against.
// The store is immutable after load; records are handed out by reference.
package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/kailas-cloud/layoutdex/internal/domain"
	"github.com/kailas-cloud/layoutdex/internal/domain/layout"
)

// recordWire mirrors the persisted corpus record format.
type recordWire struct {
	ID           string   `json:"id"`
	Query        string   `json:"query"`
	ObjectType   string   `json:"object_type"`
	LayoutType   string   `json:"layout_type"`
	PatternsUsed []string `json:"patterns_used"`
	Layout       struct {
		Rows []layout.Row `json:"rows"`
	} `json:"layout"`
	Metadata struct {
		NumRows       int `json:"num_rows"`
		NumComponents int `json:"num_components"`
	} `json:"metadata"`
}

// Store is the immutable corpus of layout records in load order.
type Store struct {
	records []layout.Record
	byID    map[string]int
}

// Load reads, schema-validates and parses a corpus file.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates raw corpus JSON and builds the store.
func Parse(data []byte) (*Store, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(recordsSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorpusInvalid, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrCorpusInvalid, strings.Join(msgs, "; "))
	}

	var wires []recordWire
	if err := json.Unmarshal(data, &wires); err != nil {
		return nil, fmt.Errorf("%w: parse: %v", domain.ErrCorpusInvalid, err)
	}

	records := make([]layout.Record, 0, len(wires))
	for _, w := range wires {
		rec, err := layout.NewRecord(
			w.ID, w.Query, w.ObjectType, w.LayoutType,
			w.PatternsUsed, w.Layout.Rows,
			layout.Metadata{NumRows: w.Metadata.NumRows, NumComponents: w.Metadata.NumComponents},
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCorpusInvalid, err)
		}
		records = append(records, rec)
	}

	return FromRecords(records)
}

// FromRecords builds a store from in-memory records, enforcing unique ids.
func FromRecords(records []layout.Record) (*Store, error) {
	byID := make(map[string]int, len(records))
	for i := range records {
		id := records[i].ID()
		if _, dup := byID[id]; dup {
			return nil, fmt.Errorf("%w: duplicate record id %q", domain.ErrCorpusInvalid, id)
		}
		byID[id] = i
	}
	return &Store{records: records, byID: byID}, nil
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (layout.Record, bool) {
	i, ok := s.byID[id]
	if !ok {
		return layout.Record{}, false
	}
	return s.records[i], true
}

// All returns the records in load order. Callers must not mutate the slice.
func (s *Store) All() []layout.Record { return s.records }

// Len returns the corpus size.
func (s *Store) Len() int { return len(s.records) }
