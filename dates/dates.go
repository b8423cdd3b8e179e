// Package dates parses, validates and iterates the two date shapes the
// portal and the CLI accept: YYYY-MM-DD and M/D/YYYY.
package dates

import (
	"iter"
	"regexp"
	"strings"
	"time"

	"github.com/use-agent/blotter/models"
)

const (
	isoLayout = "2006-01-02"
	usLayout  = "01/02/2006"
)

var (
	reISO = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	reUS  = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)
)

// Date is a calendar day at UTC midnight.
type Date struct {
	t time.Time
}

// String returns the canonical YYYY-MM-DD form.
func (d Date) String() string { return d.t.Format(isoLayout) }

// US returns the MM/DD/YYYY form many portal widgets expect.
func (d Date) US() string { return d.t.Format(usLayout) }

// After reports whether d is strictly later than o.
func (d Date) After(o Date) bool { return d.t.After(o.t) }

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Normalize parses input in either accepted shape and returns the validated
// date. Anything else fails with INVALID_DATE_FORMAT.
func Normalize(input string) (Date, error) {
	s := strings.TrimSpace(input)
	var (
		t   time.Time
		err error
	)
	switch {
	case reISO.MatchString(s):
		t, err = time.Parse(isoLayout, s)
	case reUS.MatchString(s):
		t, err = time.Parse("1/2/2006", s)
	default:
		return Date{}, invalid(input, nil)
	}
	if err != nil {
		return Date{}, invalid(input, err)
	}
	return Date{t: t}, nil
}

// MustNormalize is Normalize for literals known to be valid.
func MustNormalize(input string) Date {
	d, err := Normalize(input)
	if err != nil {
		panic(err)
	}
	return d
}

// Range yields every date from start to end inclusive, ascending. It yields
// nothing when start is after end; callers treat that as an input error.
func Range(start, end string) (iter.Seq[Date], error) {
	s, err := Normalize(start)
	if err != nil {
		return nil, err
	}
	e, err := Normalize(end)
	if err != nil {
		return nil, err
	}
	return func(yield func(Date) bool) {
		for d := s; !d.After(e); d = d.AddDays(1) {
			if !yield(d) {
				return
			}
		}
	}, nil
}

// Yesterday returns the calendar day before now in now's location.
func Yesterday(now time.Time) Date {
	y := now.AddDate(0, 0, -1)
	return Date{t: time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, time.UTC)}
}

func invalid(input string, err error) error {
	return models.NewScrapeError(models.ErrCodeInvalidDate,
		"unrecognized date format: "+input, err)
}
