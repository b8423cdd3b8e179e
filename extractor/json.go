package extractor

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/use-agent/blotter/models"
	"github.com/ysmood/gson"
)

// jsonAliases lists the accepted item keys per field, first non-empty wins.
var jsonAliases = []struct {
	field string
	keys  []string
}{
	{models.FieldArrestDate, []string{"arrest_date", "arrestDate", "date"}},
	{models.FieldName, []string{"name", "fullName", "full_name"}},
	{models.FieldDateOfBirth, []string{"dob", "date_of_birth", "dateOfBirth"}},
	{models.FieldAge, []string{"age"}},
	{models.FieldCharges, []string{"charges", "charge_summary", "charge"}},
	{models.FieldAgency, []string{"agency", "arresting_agency", "arrestingAgency"}},
	{models.FieldBookingNumber, []string{"booking_number", "bookingNo", "bookingNumber", "booking"}},
	{models.FieldBond, []string{"bond", "bond_amount", "bondAmount"}},
	{models.FieldArrestTime, []string{"arrest_time", "arrestTime", "time"}},
}

// FromJSON maps an intercepted payload to records. The payload is either a
// list of items or an object with a "results" list; anything else yields
// nil. Non-object items are skipped; unknown keys are ignored.
func FromJSON(payload []byte, sourceURL string) []models.ArrestRecord {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		slog.Debug("intercepted payload is not JSON", "error", err)
		return nil
	}

	var items []gson.JSON
	switch v := raw.(type) {
	case []any:
		items = gson.New(v).Arr()
	case map[string]any:
		if _, ok := v["results"].([]any); !ok {
			return nil
		}
		items = gson.New(v["results"]).Arr()
	default:
		return nil
	}

	out := make([]models.ArrestRecord, 0, len(items))
	for _, item := range items {
		fields, ok := item.Val().(map[string]any)
		if !ok {
			continue
		}
		out = append(out, fromJSONItem(gson.New(fields).Map(), sourceURL))
	}
	return out
}

func fromJSONItem(item map[string]gson.JSON, sourceURL string) models.ArrestRecord {
	rec := newRecord(sourceURL)
	for _, a := range jsonAliases {
		for _, k := range a.keys {
			if rec.Set(a.field, lookup(item, k)) {
				break
			}
		}
	}
	if _, ok := rec.Get(models.FieldName); !ok {
		last, first := lookup(item, "last_name"), lookup(item, "first_name")
		rec.Set(models.FieldName, strings.TrimSpace(last+" "+first))
	}
	return rec
}

func lookup(item map[string]gson.JSON, key string) string {
	v, ok := item[key]
	if !ok {
		return ""
	}
	return scalar(v)
}

// scalar renders a JSON value as record text. Numbers keep their shortest
// decimal form; null and containers render as "".
func scalar(j gson.JSON) string {
	switch v := j.Val().(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}
