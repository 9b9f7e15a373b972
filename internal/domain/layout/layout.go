// Package layout holds the immutable layout record model: rows of typed UI
// components loaded from the corpus and referenced by id everywhere else.
package layout

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind identifies one UI component kind from the closed catalog.
type Kind string

// The closed set of component kinds a corpus layout may contain.
const (
	KindTable      Kind = "Table"
	KindList       Kind = "List"
	KindListCard   Kind = "ListCard"
	KindCard       Kind = "Card"
	KindMetric     Kind = "Metric"
	KindDashlet    Kind = "Dashlet"
	KindChart      Kind = "Chart"
	KindHeader     Kind = "Header"
	KindText       Kind = "Text"
	KindButton     Kind = "Button"
	KindFilter     Kind = "Filter"
	KindSearchBar  Kind = "SearchBar"
	KindPagination Kind = "Pagination"
	KindTab        Kind = "Tab"
	KindForm       Kind = "Form"
	KindInput      Kind = "Input"
	KindDropdown   Kind = "Dropdown"
	KindBadge      Kind = "Badge"
	KindAvatar     Kind = "Avatar"
	KindTimeline   Kind = "Timeline"
)

var allKinds = map[Kind]struct{}{
	KindTable: {}, KindList: {}, KindListCard: {}, KindCard: {},
	KindMetric: {}, KindDashlet: {}, KindChart: {}, KindHeader: {},
	KindText: {}, KindButton: {}, KindFilter: {}, KindSearchBar: {},
	KindPagination: {}, KindTab: {}, KindForm: {}, KindInput: {},
	KindDropdown: {}, KindBadge: {}, KindAvatar: {}, KindTimeline: {},
}

// IsValid reports whether the kind belongs to the catalog.
func (k Kind) IsValid() bool {
	_, ok := allKinds[k]
	return ok
}

// Component is the tagged variant carried inside a row. Props configures
// rendering, Value carries data to display; the two are never merged.
// Both maps are always present (possibly empty).
type Component struct {
	Kind  Kind
	Props map[string]any
	Value map[string]any
}

// componentWire is the persisted shape: exactly the keys type/props/value.
type componentWire struct {
	Type  string         `json:"type"`
	Props map[string]any `json:"props"`
	Value map[string]any `json:"value"`
}

// MarshalJSON always emits all three keys, with empty objects for nil maps.
func (c Component) MarshalJSON() ([]byte, error) {
	w := componentWire{Type: string(c.Kind), Props: c.Props, Value: c.Value}
	if w.Props == nil {
		w.Props = map[string]any{}
	}
	if w.Value == nil {
		w.Value = map[string]any{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON rejects components without a type; absent props/value become
// empty maps so the invariant "both always present" holds in memory.
func (c *Component) UnmarshalJSON(data []byte) error {
	var w componentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Type == "" {
		return fmt.Errorf("component missing type")
	}
	c.Kind = Kind(w.Type)
	c.Props = w.Props
	c.Value = w.Value
	if c.Props == nil {
		c.Props = map[string]any{}
	}
	if c.Value == nil {
		c.Value = map[string]any{}
	}
	return nil
}

// Validate checks the structural invariants of a single component.
func (c Component) Validate() error {
	if c.Kind == "" {
		return fmt.Errorf("component missing kind")
	}
	if c.Props == nil || c.Value == nil {
		return fmt.Errorf("component %q missing props or value", c.Kind)
	}
	return nil
}

// Clone deep-copies the component (one level of props/value, which is all
// the corpus format nests for scalar configuration).
func (c Component) Clone() Component {
	out := Component{Kind: c.Kind, Props: make(map[string]any, len(c.Props)), Value: make(map[string]any, len(c.Value))}
	for k, v := range c.Props {
		out.Props[k] = v
	}
	for k, v := range c.Value {
		out.Value[k] = v
	}
	return out
}

// Row groups the components rendered together on one line of a layout.
type Row struct {
	PatternType string      `json:"pattern_type"`
	Components  []Component `json:"pattern_info"`
}

// Clone deep-copies the row.
func (r Row) Clone() Row {
	out := Row{PatternType: r.PatternType, Components: make([]Component, len(r.Components))}
	for i, c := range r.Components {
		out.Components[i] = c.Clone()
	}
	return out
}

// CloneRows deep-copies a row list; used when a selection leaves the corpus.
func CloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// ValidateRows checks structural completeness: at least one row, every
// component carrying kind, props and value.
func ValidateRows(rows []Row) error {
	if len(rows) == 0 {
		return fmt.Errorf("layout has no rows")
	}
	for i, row := range rows {
		for j, c := range row.Components {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("row %d component %d: %w", i, j, err)
			}
		}
	}
	return nil
}

// Metadata summarizes a record for stats and diagnostics.
type Metadata struct {
	NumRows       int
	NumComponents int
}

// Record is one corpus layout. Immutable after load; owned by the corpus
// store and referenced by id until final selection copies its rows.
type Record struct {
	id           string
	queryText    string
	objectType   string
	layoutType   string
	patternsUsed []string
	rows         []Row
	metadata     Metadata
}

// NewRecord validates and builds a record.
func NewRecord(
	id, queryText, objectType, layoutType string,
	patternsUsed []string, rows []Row, metadata Metadata,
) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("record id is required")
	}
	for i, row := range rows {
		for j, c := range row.Components {
			if c.Kind == "" {
				return Record{}, fmt.Errorf("record %q row %d component %d: empty type", id, i, j)
			}
		}
	}
	return Record{
		id:           id,
		queryText:    queryText,
		objectType:   objectType,
		layoutType:   layoutType,
		patternsUsed: patternsUsed,
		rows:         rows,
		metadata:     metadata,
	}, nil
}

// ID returns the unique record identifier.
func (r *Record) ID() string { return r.id }

// QueryText returns the natural-language query this layout was built for.
func (r *Record) QueryText() string { return r.queryText }

// ObjectType returns the business object the layout renders.
func (r *Record) ObjectType() string { return r.objectType }

// LayoutType returns the coarse layout type label.
func (r *Record) LayoutType() string { return r.layoutType }

// PatternsUsed returns the ordered pattern names.
func (r *Record) PatternsUsed() []string { return r.patternsUsed }

// Rows returns the layout rows. Callers must not mutate them; use CloneRows.
func (r *Record) Rows() []Row { return r.rows }

// Metadata returns the row/component counts.
func (r *Record) Metadata() Metadata { return r.metadata }

// ComponentKinds returns the set of distinct component kinds present,
// collected in a single scan.
func (r *Record) ComponentKinds() map[Kind]struct{} {
	present := make(map[Kind]struct{})
	for _, row := range r.rows {
		for _, c := range row.Components {
			present[c.Kind] = struct{}{}
		}
	}
	return present
}

// DocumentText builds the composite text embedded for this record:
// query + object type + layout type + pattern names + component kinds.
func (r *Record) DocumentText() string {
	var b strings.Builder
	b.WriteString(r.queryText)
	b.WriteString(" | object: ")
	b.WriteString(r.objectType)
	b.WriteString(" | layout: ")
	b.WriteString(r.layoutType)
	if len(r.patternsUsed) > 0 {
		b.WriteString(" | patterns: ")
		b.WriteString(strings.Join(r.patternsUsed, " "))
	}
	kinds := make([]string, 0, 8)
	seen := make(map[Kind]struct{})
	for _, row := range r.rows {
		for _, c := range row.Components {
			if _, ok := seen[c.Kind]; ok {
				continue
			}
			seen[c.Kind] = struct{}{}
			kinds = append(kinds, string(c.Kind))
		}
	}
	if len(kinds) > 0 {
		b.WriteString(" | components: ")
		b.WriteString(strings.Join(kinds, " "))
	}
	return b.String()
}
