// Package viewtype maps the coarse UI shape a query asks for (table, list,
// card) to the component kinds that shape requires.
package viewtype

import (
	"strings"

	"github.com/kailas-cloud/layoutdex/internal/domain/layout"
)

// ViewType is the coarse UI shape requested by a query.
type ViewType string

const (
	None  ViewType = ""
	Table ViewType = "table"
	List  ViewType = "list"
	Card  ViewType = "card"
)

// IsValid reports whether v names a known view type (None is valid: no
// component requirement).
func (v ViewType) IsValid() bool {
	switch v {
	case None, Table, List, Card:
		return true
	}
	return false
}

// requiredComponents is the static view-type catalog.
var requiredComponents = map[ViewType][]layout.Kind{
	Table: {layout.KindTable},
	List:  {layout.KindList, layout.KindListCard},
	Card:  {layout.KindCard, layout.KindMetric, layout.KindDashlet},
}

// RequiredComponents returns the component kinds the view type needs, in
// catalog order. Nil for None or unknown view types.
func (v ViewType) RequiredComponents() []layout.Kind {
	return requiredComponents[v]
}

// keyword → view type, checked in declaration order so the more specific
// card/dashboard vocabulary wins over the generic "show".
var keywordRules = []struct {
	keyword string
	view    ViewType
}{
	{"card", Card},
	{"dashboard", Card},
	{"metric", Card},
	{"kpi", Card},
	{"summary", Card},
	{"table", Table},
	{"grid", Table},
	{"list", List},
	{"show all", Table},
	{"all ", Table},
}

// Detect scans query text for view-type keywords.
func Detect(text string) ViewType {
	lower := strings.ToLower(text)
	for _, rule := range keywordRules {
		if strings.Contains(lower, rule.keyword) {
			return rule.view
		}
	}
	return None
}

// patternViews maps analyzer pattern types to view types.
var patternViews = map[string]ViewType{
	"LIST_SIMPLE":   Table,
	"LIST_DETAILED": Table,
	"LIST_CARDS":    List,
	"DASHBOARD":     Card,
	"SUMMARY":       Card,
	"DETAIL":        None,
}

// FromPattern resolves the view type for an analyzer pattern type,
// falling back to keyword detection over the query text.
func FromPattern(patternType, queryText string) ViewType {
	if v, ok := patternViews[strings.ToUpper(patternType)]; ok && v != None {
		return v
	}
	return Detect(queryText)
}
