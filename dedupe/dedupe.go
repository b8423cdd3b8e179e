// Package dedupe removes exact duplicate arrest records.
package dedupe

import "github.com/use-agent/blotter/models"

// Records returns records with later duplicates removed. Two records are
// duplicates when their (name, arrest_date, booking_number, charges) keys
// are equal, null fields included. Order is preserved and the first
// occurrence wins. The input slice is not modified.
func Records(records []models.ArrestRecord) []models.ArrestRecord {
	if len(records) == 0 {
		return records
	}
	seen := make(map[models.RecordKey]struct{}, len(records))
	out := make([]models.ArrestRecord, 0, len(records))
	for _, r := range records {
		k := r.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}
