// Package catalog holds the ranked selector candidates for each control role
// the portal's CMS family is known to emit. The tables are static: they are
// compiled once at init and never mutated.
package catalog

import (
	"strings"

	"github.com/andybalholm/cascadia"
)

// Role is the functional purpose an element serves on the page.
type Role string

const (
	DateInput       Role = "date_input"
	SearchButton    Role = "search_button"
	ResultContainer Role = "result_container"
	NextButton      Role = "next_button"
	QuickLink       Role = "quick_link"
	CardItem        Role = "card_item"
	SearchFrame     Role = "search_frame"
)

// Candidate is one ranked query for a role. CSS selects elements; Text, when
// non-empty, further requires the element's visible text to contain it
// (case-insensitive).
type Candidate struct {
	Role Role
	CSS  string
	Text string
}

// String renders the candidate the way it appears in logs.
func (c Candidate) String() string {
	if c.Text == "" {
		return c.CSS
	}
	return c.CSS + `:has-text("` + c.Text + `")`
}

// MatchesText applies the Text filter to an element's visible text.
func (c Candidate) MatchesText(text string) bool {
	if c.Text == "" {
		return true
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(c.Text))
}

var table = map[Role][]Candidate{
	DateInput: {
		{CSS: `input[type="date"]`},
		{CSS: `input[name*="date" i]`},
		{CSS: `input[id*="date" i]`},
		{CSS: `input[aria-label*="date" i]`},
		{CSS: `input[placeholder*="date" i]`},
	},
	SearchButton: {
		{CSS: "button", Text: "Search"},
		{CSS: "button", Text: "Submit"},
		{CSS: "button", Text: "Go"},
		{CSS: `input[type="submit"]`},
		{CSS: "a", Text: "Search"},
	},
	ResultContainer: {
		{CSS: "table"},
		{CSS: ".results"},
		{CSS: ".list"},
		{CSS: ".cards"},
		{CSS: ".card-list"},
		{CSS: `[role="table"]`},
		{CSS: `[data-component*="arrest" i]`},
	},
	NextButton: {
		{CSS: "a", Text: "Next"},
		{CSS: "button", Text: "Next"},
		{CSS: `a[rel="next"]`},
		{CSS: "button", Text: "Load More"},
		{CSS: "a", Text: "Load More"},
	},
	QuickLink: {
		{CSS: "a", Text: "Arrests & Inmates"},
		{CSS: "a", Text: "Arrests & Inmates Search"},
		{CSS: "a", Text: "Arrest Inquiry"},
	},
	CardItem: {
		{CSS: ".card"},
		{CSS: ".result"},
		{CSS: ".list-item"},
		{CSS: "li"},
		{CSS: ".row"},
	},
	SearchFrame: {
		{CSS: "iframe"},
	},
}

// compiled caches cascadia matchers keyed by CSS text.
var compiled = map[string]cascadia.Selector{}

func init() {
	for role, cands := range table {
		for i := range cands {
			cands[i].Role = role
			if _, ok := compiled[cands[i].CSS]; ok {
				continue
			}
			compiled[cands[i].CSS] = cascadia.MustCompile(cands[i].CSS)
		}
	}
}

// For returns the candidates for role in rank order. The slice is a copy.
func For(role Role) []Candidate {
	src := table[role]
	out := make([]Candidate, len(src))
	copy(out, src)
	return out
}

// Matcher returns the compiled selector for a candidate's CSS.
func Matcher(c Candidate) cascadia.Selector {
	if m, ok := compiled[c.CSS]; ok {
		return m
	}
	return cascadia.MustCompile(c.CSS)
}

// WithText builds ad-hoc candidates for role from labels, used when the
// quick-link labels come from configuration.
func WithText(role Role, css string, labels []string) []Candidate {
	out := make([]Candidate, 0, len(labels))
	for _, l := range labels {
		out = append(out, Candidate{Role: role, CSS: css, Text: l})
	}
	return out
}

// Roles lists every role in the catalog.
func Roles() []Role {
	return []Role{DateInput, SearchButton, ResultContainer, NextButton, QuickLink, CardItem, SearchFrame}
}

// CardItemSelector joins the card item patterns into a single selector list.
func CardItemSelector() string {
	parts := make([]string, 0, len(table[CardItem]))
	for _, c := range table[CardItem] {
		parts = append(parts, c.CSS)
	}
	return strings.Join(parts, ", ")
}
