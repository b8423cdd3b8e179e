// Package extractor turns a settled results page into ArrestRecords. It is a
// pure function of an HTML snapshot and the latest intercepted JSON payload:
// strategies run in a fixed order and the first one producing records wins.
package extractor

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/blotter/catalog"
	"github.com/use-agent/blotter/models"
)

// Input is everything the strategy chain looks at.
type Input struct {
	// HTML is the serialized document of the page (or frame) holding results.
	HTML string

	// URL is stamped into every record's source_url.
	URL string

	// Payload is the most recent JSON response body matching the arrest URL
	// heuristic, or nil.
	Payload []byte
}

// Result is the outcome of Extract.
type Result struct {
	Records  []models.ArrestRecord
	Strategy string
}

// Extract runs the table, card, JSON and last-resort table strategies in
// that order. Malformed rows never abort extraction; zero records is
// reported as StrategyNone.
func Extract(in Input) Result {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(in.HTML))
	if err != nil {
		slog.Warn("results snapshot could not be parsed", "error", err)
		doc = nil
	}

	if doc != nil {
		if res, ok := fromContainers(doc, in.URL); ok {
			return res
		}
	}

	if len(in.Payload) > 0 {
		if recs := FromJSON(in.Payload, in.URL); len(recs) > 0 {
			return Result{Records: recs, Strategy: models.StrategyJSON}
		}
	}

	if doc != nil {
		if first := doc.Find("table").First(); first.Length() > 0 {
			if recs := FromTable(first, in.URL); len(recs) > 0 {
				return Result{Records: recs, Strategy: models.StrategyTableFallback}
			}
		}
	}

	return Result{Strategy: models.StrategyNone}
}

// fromContainers walks result containers in catalog rank order. A table
// with a header row and body rows is parsed by the table strategy; other
// tables are taken to be layout and skipped. Any other
// container is parsed as a card list.
func fromContainers(doc *goquery.Document, sourceURL string) (Result, bool) {
	for _, c := range catalog.For(catalog.ResultContainer) {
		var (
			res   Result
			found bool
		)
		doc.FindMatcher(catalog.Matcher(c)).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if goquery.NodeName(s) == "table" {
				if !isResultTable(s) {
					return true
				}
				res = Result{Records: FromTable(s, sourceURL), Strategy: models.StrategyTable}
				found = true
				return false
			}
			if recs := FromCards(s, sourceURL); len(recs) > 0 {
				res = Result{Records: recs, Strategy: models.StrategyCards}
				found = true
				return false
			}
			return true
		})
		if found {
			slog.Debug("records extracted", "container", c.String(),
				"strategy", res.Strategy, "records", len(res.Records))
			return res, true
		}
	}
	return Result{}, false
}

func newRecord(sourceURL string) models.ArrestRecord {
	var r models.ArrestRecord
	r.Set(models.FieldSourceURL, sourceURL)
	return r
}
