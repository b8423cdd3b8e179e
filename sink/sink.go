// Package sink writes arrest records to a named tabular destination: a
// header row followed by one row per record.
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/use-agent/blotter/config"
	"github.com/use-agent/blotter/models"
)

// Table is a store of named destinations holding rows of cells. Row 0 of a
// non-empty destination is its header.
type Table interface {
	// Ensure creates the destination if it does not exist.
	Ensure(ctx context.Context, name string) error

	// Clear removes every row, header included.
	Clear(ctx context.Context, name string) error

	// Append adds rows after the existing ones.
	Append(ctx context.Context, name string, rows [][]string) error

	// Rows returns every row in insertion order.
	Rows(ctx context.Context, name string) ([][]string, error)

	Close() error
}

// Mode selects how Upload treats existing rows.
type Mode string

const (
	Replace Mode = "replace"
	Append  Mode = "append"
)

// ParseMode validates a configured mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case Replace, Append:
		return m, nil
	}
	return "", models.NewScrapeError(models.ErrCodeInvalidInput,
		fmt.Sprintf("unknown sink mode %q", s), nil)
}

// Columns is the preferred column order of the header.
var Columns = []string{
	models.FieldArrestDate,
	models.FieldName,
	models.FieldDateOfBirth,
	models.FieldAge,
	models.FieldBookingNumber,
	models.FieldAgency,
	models.FieldBond,
	models.FieldArrestTime,
	models.FieldCharges,
	models.FieldSourceURL,
}

// Header returns the preferred columns that at least one record sets.
func Header(records []models.ArrestRecord) []string {
	var header []string
	for _, col := range Columns {
		for i := range records {
			if _, ok := records[i].Get(col); ok {
				header = append(header, col)
				break
			}
		}
	}
	return header
}

// project renders records under header; absent values become "".
func project(header []string, records []models.ArrestRecord) [][]string {
	rows := make([][]string, len(records))
	for i := range records {
		row := make([]string, len(header))
		for j, col := range header {
			row[j], _ = records[i].Get(col)
		}
		rows[i] = row
	}
	return rows
}

// missingColumns returns the columns of header absent from existing.
func missingColumns(existing, header []string) []string {
	var out []string
	for _, col := range header {
		if !slices.Contains(existing, col) {
			out = append(out, col)
		}
	}
	return out
}

// Upload writes records to the destination name. An empty record list is
// a no-op. In Replace mode the destination is cleared and rewritten with a
// fresh header; in Append mode the header is written only when the
// destination is empty, and rows follow the existing header's columns.
// Values in columns the existing header lacks are not written; they are
// logged as a warning so a later Replace can pick them up.
// Failures are reported as SINK_FAILURE. It returns the data rows written.
func Upload(ctx context.Context, t Table, name string, records []models.ArrestRecord, mode Mode) (int, error) {
	if len(records) == 0 {
		slog.Info("nothing to upload", "destination", name)
		return 0, nil
	}
	fail := func(msg string, err error) error {
		return models.NewScrapeError(models.ErrCodeSinkFailure, msg+" "+name, err)
	}

	if err := t.Ensure(ctx, name); err != nil {
		return 0, fail("failed to create destination", err)
	}

	header := Header(records)
	var out [][]string
	switch mode {
	case Replace:
		if err := t.Clear(ctx, name); err != nil {
			return 0, fail("failed to clear destination", err)
		}
		out = append([][]string{header}, project(header, records)...)
	case Append:
		existing, err := t.Rows(ctx, name)
		if err != nil {
			return 0, fail("failed to read destination", err)
		}
		if len(existing) == 0 {
			out = append([][]string{header}, project(header, records)...)
		} else {
			if dropped := missingColumns(existing[0], header); len(dropped) > 0 {
				slog.Warn("destination header lacks columns, their values are not appended",
					"destination", name,
					"columns", dropped,
				)
			}
			out = project(existing[0], records)
		}
	default:
		return 0, fail(fmt.Sprintf("unknown mode %q for", mode), nil)
	}

	if err := t.Append(ctx, name, out); err != nil {
		return 0, fail("failed to write rows to", err)
	}
	slog.Info("uploaded records",
		"destination", name,
		"mode", string(mode),
		"rows", len(records),
		"columns", len(header),
	)
	return len(records), nil
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg config.SinkConfig) (Table, error) {
	var (
		t   Table
		err error
	)
	switch cfg.Backend {
	case "sqlite", "":
		t, err = OpenSQLite(ctx, cfg.SQLitePath)
	case "mongo", "mongodb":
		t, err = OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("unknown sink backend %q", cfg.Backend), nil)
	}
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeSinkFailure, "failed to open sink", err)
	}
	return t, nil
}

// Publish opens the configured backend, uploads records to the configured
// destination and closes the backend.
func Publish(ctx context.Context, cfg config.SinkConfig, records []models.ArrestRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	mode, err := ParseMode(cfg.Mode)
	if err != nil {
		return 0, err
	}
	t, err := Open(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := t.Close(); cerr != nil {
			slog.Warn("closing sink failed", "backend", cfg.Backend, "error", cerr)
		}
	}()
	return Upload(ctx, t, cfg.Destination, records, mode)
}
