package extractor

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/blotter/catalog"
	"github.com/use-agent/blotter/models"
)

// cardPatterns are "Label: value" extractors over an item's text. The value
// is the last capture group.
var cardPatterns = []struct {
	field string
	re    *regexp.Regexp
}{
	{models.FieldName, regexp.MustCompile(`(?i)\bName:\s*(.+)`)},
	{models.FieldArrestDate, regexp.MustCompile(`(?i)\bArrest\s*Date:\s*([0-9/\-: ]+)`)},
	{models.FieldDateOfBirth, regexp.MustCompile(`(?i)\b(?:DOB|Date of Birth):\s*([0-9/\-]+)`)},
	{models.FieldAge, regexp.MustCompile(`(?i)\bAge:\s*(\d{1,3})`)},
	{models.FieldBookingNumber, regexp.MustCompile(`(?i)\bBooking\s*(?:No\.?|#|Number)\s*:\s*([A-Za-z0-9\-]+)`)},
	{models.FieldAgency, regexp.MustCompile(`(?i)\b(?:Arresting Agency|Agency):\s*(.+)`)},
	{models.FieldBond, regexp.MustCompile(`(?i)\bBond:\s*(.+)`)},
	{models.FieldCharges, regexp.MustCompile(`(?i)\bCharges?:\s*(.+)`)},
	{models.FieldArrestTime, regexp.MustCompile(`(?i)\bArrest\s*Time:\s*(\d{1,2}:\d{2}(?:\s*[AP]M)?)`)},
}

// ParseCardText applies the labeled-field patterns to one item's text.
// It reports whether any label matched.
func ParseCardText(text, sourceURL string) (models.ArrestRecord, bool) {
	rec := newRecord(sourceURL)
	matched := false
	for _, p := range cardPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if rec.Set(p.field, m[len(m)-1]) {
			matched = true
		}
	}
	return rec, matched
}

// FromCards parses the items of a non-table container. Items with empty
// text are skipped. If no item carries any recognised label the container
// is treated as not holding results and nil is returned; otherwise every
// item yields a record, matched or not.
func FromCards(container *goquery.Selection, sourceURL string) []models.ArrestRecord {
	var (
		out     []models.ArrestRecord
		matched bool
	)
	container.FindMatcher(itemMatcher).Each(func(_ int, item *goquery.Selection) {
		text := innerText(item.Nodes[0])
		if text == "" {
			return
		}
		rec, ok := ParseCardText(text, sourceURL)
		matched = matched || ok
		out = append(out, rec)
	})
	if !matched {
		return nil
	}
	return out
}

var itemMatcher = catalog.Matcher(catalog.Candidate{CSS: catalog.CardItemSelector()})
