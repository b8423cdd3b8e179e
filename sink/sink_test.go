package sink

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/blotter/config"
	"github.com/use-agent/blotter/models"
)

var s = models.String

func memTable(t *testing.T) *SQLite {
	t.Helper()
	db, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sample() []models.ArrestRecord {
	return []models.ArrestRecord{
		{Name: s("Jane Doe"), ArrestDate: s("01/02/2025"), Charges: s("DUI"), SourceURL: s("https://portal.test")},
		{Name: s("John Roe"), BookingNumber: s("B2"), SourceURL: s("https://portal.test")},
	}
}

func TestHeader_PreferredOrderPresentOnly(t *testing.T) {
	assert.Equal(t,
		[]string{"arrest_date", "name", "booking_number", "charges", "source_url"},
		Header(sample()))
	assert.Empty(t, Header([]models.ArrestRecord{{}}))
}

func TestUpload_Replace(t *testing.T) {
	ctx := context.Background()
	tbl := memTable(t)

	n, err := Upload(ctx, tbl, "Sarasota County", sample(), Replace)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = Upload(ctx, tbl, "Sarasota County", sample()[:1], Replace)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err := tbl.Rows(ctx, "Sarasota County")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"arrest_date", "name", "charges", "source_url"},
		{"01/02/2025", "Jane Doe", "DUI", "https://portal.test"},
	}, rows)
}

func TestUpload_AppendWritesHeaderOnce(t *testing.T) {
	ctx := context.Background()
	tbl := memTable(t)

	_, err := Upload(ctx, tbl, "arrests", sample(), Append)
	require.NoError(t, err)
	_, err = Upload(ctx, tbl, "arrests", []models.ArrestRecord{
		{Name: s("Ann Lee"), Age: s("40")},
	}, Append)
	require.NoError(t, err)

	rows, err := tbl.Rows(ctx, "arrests")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	header := []string{"arrest_date", "name", "booking_number", "charges", "source_url"}
	assert.Equal(t, header, rows[0])
	assert.Equal(t, []string{"", "John Roe", "B2", "", "https://portal.test"}, rows[2])
	assert.Equal(t, []string{"", "Ann Lee", "", "", ""}, rows[3], "rows follow the existing header")
}

func TestMissingColumns(t *testing.T) {
	existing := []string{"arrest_date", "name", "source_url"}
	assert.Equal(t, []string{"age", "bond"},
		missingColumns(existing, []string{"name", "age", "bond", "source_url"}))
	assert.Empty(t, missingColumns(existing, []string{"name"}))
}

func TestUpload_AppendKeepsExistingHeader(t *testing.T) {
	ctx := context.Background()
	tbl := memTable(t)

	_, err := Upload(ctx, tbl, "arrests", sample()[:1], Append)
	require.NoError(t, err)
	n, err := Upload(ctx, tbl, "arrests", []models.ArrestRecord{
		{Name: s("Ann Lee"), Bond: s("$500")},
	}, Append)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err := tbl.Rows(ctx, "arrests")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.NotContains(t, rows[0], "bond", "the header is never rewritten in append mode")
	assert.Equal(t, []string{"", "Ann Lee", "", ""}, rows[2])
}

func TestUpload_EmptyIsNoop(t *testing.T) {
	ctx := context.Background()
	tbl := memTable(t)

	n, err := Upload(ctx, tbl, "arrests", nil, Replace)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = tbl.Rows(ctx, "arrests")
	assert.Error(t, err, "destination is not created for an empty upload")
}

func TestUpload_QuotedDestination(t *testing.T) {
	ctx := context.Background()
	tbl := memTable(t)

	_, err := Upload(ctx, tbl, `weird "name"; DROP`, sample(), Replace)
	require.NoError(t, err)
	rows, err := tbl.Rows(ctx, `weird "name"; DROP`)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

type failingTable struct {
	SQLite
	err error
}

func (f *failingTable) Ensure(context.Context, string) error { return f.err }

func TestUpload_FailureIsSinkError(t *testing.T) {
	boom := errors.New("disk full")
	_, err := Upload(context.Background(), &failingTable{err: boom}, "arrests", sample(), Replace)
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.ErrCodeSinkFailure))
	assert.ErrorIs(t, err, boom)
}

func TestUpload_UnknownMode(t *testing.T) {
	_, err := Upload(context.Background(), memTable(t), "arrests", sample(), Mode("merge"))
	assert.True(t, models.HasCode(err, models.ErrCodeSinkFailure))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("append")
	require.NoError(t, err)
	assert.Equal(t, Append, m)

	_, err = ParseMode("upsert")
	assert.True(t, models.HasCode(err, models.ErrCodeInvalidInput))
}

func TestOpen(t *testing.T) {
	tbl, err := Open(context.Background(), config.SinkConfig{Backend: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, tbl.Close())

	_, err = Open(context.Background(), config.SinkConfig{Backend: "sheets"})
	assert.True(t, models.HasCode(err, models.ErrCodeInvalidInput))
}

// TestMongo runs against a live server when BLOTTER_TEST_MONGO_URI is set.
func TestMongo(t *testing.T) {
	uri := os.Getenv("BLOTTER_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("BLOTTER_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	m, err := OpenMongo(ctx, uri, "blotter_test")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.database.Drop(context.Background())
		m.Close()
	})

	_, err = Upload(ctx, m, "arrests", sample(), Append)
	require.NoError(t, err)
	_, err = Upload(ctx, m, "arrests", sample()[:1], Append)
	require.NoError(t, err)

	rows, err := m.Rows(ctx, "arrests")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "name", rows[0][1])
	assert.Equal(t, "Jane Doe", rows[3][1])
}

func TestPublish(t *testing.T) {
	path := t.TempDir() + "/blotter.db"
	cfg := config.SinkConfig{Backend: "sqlite", SQLitePath: path, Destination: "Sarasota County", Mode: "append"}

	n, err := Publish(context.Background(), cfg, sample())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	db, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()
	rows, err := db.Rows(context.Background(), "Sarasota County")
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	_, err = Publish(context.Background(), config.SinkConfig{Backend: "sqlite", SQLitePath: path, Mode: "merge"}, sample())
	assert.True(t, models.HasCode(err, models.ErrCodeInvalidInput))
}
