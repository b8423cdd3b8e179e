package models

import "strings"

// Field names shared by the JSON dump, the sink header and the extractor's
// header synonym table.
const (
	FieldArrestDate    = "arrest_date"
	FieldName          = "name"
	FieldDateOfBirth   = "date_of_birth"
	FieldAge           = "age"
	FieldCharges       = "charges"
	FieldAgency        = "agency"
	FieldBookingNumber = "booking_number"
	FieldBond          = "bond"
	FieldArrestTime    = "arrest_time"
	FieldSourceURL     = "source_url"
)

// Fields lists every ArrestRecord field in declaration order.
var Fields = []string{
	FieldArrestDate, FieldName, FieldDateOfBirth, FieldAge, FieldCharges,
	FieldAgency, FieldBookingNumber, FieldBond, FieldArrestTime, FieldSourceURL,
}

// ArrestRecord is one arrest row as published by the portal. Every field is
// optional; absent values are nil and serialise as JSON null.
//
// A record is built from exactly one table row, card item or JSON item and
// is not modified once the extractor returns it.
type ArrestRecord struct {
	ArrestDate    *string `json:"arrest_date"`
	Name          *string `json:"name"`
	DateOfBirth   *string `json:"date_of_birth"`
	Age           *string `json:"age"`
	Charges       *string `json:"charges"`
	Agency        *string `json:"agency"`
	BookingNumber *string `json:"booking_number"`
	Bond          *string `json:"bond"`
	ArrestTime    *string `json:"arrest_time"`
	SourceURL     *string `json:"source_url"`
}

// RecordKey is the identity used for deduplication. Set distinguishes a nil
// field from an empty one.
type RecordKey struct {
	Name, ArrestDate, BookingNumber, Charges keyPart
}

type keyPart struct {
	Set   bool
	Value string
}

func part(s *string) keyPart {
	if s == nil {
		return keyPart{}
	}
	return keyPart{Set: true, Value: *s}
}

// Key returns the (name, arrest_date, booking_number, charges) identity.
func (r *ArrestRecord) Key() RecordKey {
	return RecordKey{
		Name:          part(r.Name),
		ArrestDate:    part(r.ArrestDate),
		BookingNumber: part(r.BookingNumber),
		Charges:       part(r.Charges),
	}
}

// field returns a pointer to the slot for the named field, or nil.
func (r *ArrestRecord) field(name string) **string {
	switch name {
	case FieldArrestDate:
		return &r.ArrestDate
	case FieldName:
		return &r.Name
	case FieldDateOfBirth:
		return &r.DateOfBirth
	case FieldAge:
		return &r.Age
	case FieldCharges:
		return &r.Charges
	case FieldAgency:
		return &r.Agency
	case FieldBookingNumber:
		return &r.BookingNumber
	case FieldBond:
		return &r.Bond
	case FieldArrestTime:
		return &r.ArrestTime
	case FieldSourceURL:
		return &r.SourceURL
	}
	return nil
}

// Set assigns value to the named field after trimming. Empty values and
// unknown names are ignored. It reports whether a field was assigned.
func (r *ArrestRecord) Set(name, value string) bool {
	slot := r.field(name)
	if slot == nil {
		return false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	*slot = &value
	return true
}

// Get returns the named field's value and whether it is present.
func (r *ArrestRecord) Get(name string) (string, bool) {
	slot := r.field(name)
	if slot == nil || *slot == nil {
		return "", false
	}
	return **slot, true
}

// Empty reports whether no field other than source_url is set.
func (r *ArrestRecord) Empty() bool {
	for _, f := range Fields {
		if f == FieldSourceURL {
			continue
		}
		if _, ok := r.Get(f); ok {
			return false
		}
	}
	return true
}

// String is a convenience for building literal records in tests and code.
func String(s string) *string { return &s }
