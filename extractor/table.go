package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/blotter/models"
)

// headerSynonyms collapses header labels (lower-cased, whitespace folded,
// trailing colon dropped) onto record fields.
var headerSynonyms = map[string]string{
	"date":             models.FieldArrestDate,
	"arrest date":      models.FieldArrestDate,
	"arrested":         models.FieldArrestDate,
	"booking date":     models.FieldArrestDate,
	"name":             models.FieldName,
	"inmate":           models.FieldName,
	"inmate name":      models.FieldName,
	"full name":        models.FieldName,
	"dob":              models.FieldDateOfBirth,
	"date of birth":    models.FieldDateOfBirth,
	"birth date":       models.FieldDateOfBirth,
	"age":              models.FieldAge,
	"charge":           models.FieldCharges,
	"charges":          models.FieldCharges,
	"offense":          models.FieldCharges,
	"agency":           models.FieldAgency,
	"arresting agency": models.FieldAgency,
	"booking #":        models.FieldBookingNumber,
	"booking number":   models.FieldBookingNumber,
	"booking no":       models.FieldBookingNumber,
	"booking no.":      models.FieldBookingNumber,
	"booking":          models.FieldBookingNumber,
	"bond":             models.FieldBond,
	"bond amount":      models.FieldBond,
	"arrest time":      models.FieldArrestTime,
	"time":             models.FieldArrestTime,
}

// canonicalHeader maps a raw header cell to a field name, or "".
func canonicalHeader(label string) string {
	key := strings.ToLower(strings.Join(strings.Fields(label), " "))
	key = strings.TrimSuffix(key, ":")
	return headerSynonyms[strings.TrimSpace(key)]
}

// tableRows returns the rows that belong to table t itself, skipping rows of
// nested tables.
func tableRows(t *goquery.Selection) *goquery.Selection {
	return t.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.ParentsFiltered("table").First().IsSelection(t)
	})
}

// headerCells returns the header labels of t and whether they came from the
// first body row (which must then be skipped).
func headerCells(t *goquery.Selection) ([]string, bool) {
	var headers []string
	t.ChildrenFiltered("thead").Find("th, td").Each(func(_ int, c *goquery.Selection) {
		headers = append(headers, cellText(c))
	})
	if len(headers) > 0 {
		return headers, false
	}

	first := tableRows(t).First()
	if first.ChildrenFiltered("td").Length() > 0 {
		return nil, false
	}
	first.ChildrenFiltered("th").Each(func(_ int, c *goquery.Selection) {
		headers = append(headers, cellText(c))
	})
	return headers, len(headers) > 0
}

// isResultTable reports whether t has data rows under a header row. Header
// labels need not be recognised: unmapped columns just stay null. Tables
// without any header cell are treated as layout.
func isResultTable(t *goquery.Selection) bool {
	headers, _ := headerCells(t)
	return len(headers) > 0 && len(bodyRows(t)) > 0
}

// bodyRows returns the data rows of t.
func bodyRows(t *goquery.Selection) []*goquery.Selection {
	_, skipFirst := headerCells(t)
	var rows []*goquery.Selection
	tableRows(t).Each(func(i int, tr *goquery.Selection) {
		if tr.Parent().Is("thead") {
			return
		}
		if skipFirst && i == 0 {
			return
		}
		if tr.ChildrenFiltered("td, th").Length() == 0 {
			return
		}
		rows = append(rows, tr)
	})
	return rows
}

// FromTable maps each body row of t to a record by header position. Cells
// under unknown headers are ignored; a row with no usable cell still yields
// a record.
func FromTable(t *goquery.Selection, sourceURL string) []models.ArrestRecord {
	headers, _ := headerCells(t)
	fields := make([]string, len(headers))
	for i, h := range headers {
		fields[i] = canonicalHeader(h)
	}

	rows := bodyRows(t)
	out := make([]models.ArrestRecord, 0, len(rows))
	for _, tr := range rows {
		rec := newRecord(sourceURL)
		tr.ChildrenFiltered("td, th").Each(func(i int, c *goquery.Selection) {
			if i >= len(fields) || fields[i] == "" {
				return
			}
			// First cell wins when two headers collapse to one field.
			if _, ok := rec.Get(fields[i]); ok {
				return
			}
			rec.Set(fields[i], cellText(c))
		})
		out = append(out, rec)
	}
	return out
}
