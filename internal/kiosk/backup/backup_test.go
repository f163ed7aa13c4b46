package backup

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/models"
	"github.com/jcastellanos/comedor-kiosk/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sample() []models.TicketWithUser {
	return []models.TicketWithUser{
		{
			Ticket:   models.Ticket{CreatedAt: "2024-03-15T12:30:05.000Z"},
			Code:     "1234",
			MealName: "Almuerzo",
		},
		{
			Ticket:   models.Ticket{CreatedAt: "2024-03-15T12:31:40.000Z"},
			Code:     "5678",
			MealName: "Almuerzo",
		},
	}
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, t.TempDir(), testLogger())

	now := time.Date(2024, 3, 15, 14, 5, 9, 0, time.UTC)
	path, err := w.Export(context.Background(), sample(), now)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "backup_sincronizacion_2024-03-15_14-05-09.csv"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	want := `"Codigo","Comida","Fecha"
"1234","Almuerzo","2024-03-15 12:30:05"
"5678","Almuerzo","2024-03-15 12:31:40"
`
	assert.Equal(t, want, string(got))
}

func TestExport_EmptyStillWritesHeader(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, t.TempDir(), testLogger())

	path, err := w.Export(context.Background(), nil, time.Now())
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "\"Codigo\",\"Comida\",\"Fecha\"\n", string(got))
}

func TestExport_FallbackDir(t *testing.T) {
	fallback := t.TempDir()
	// a file where the export directory should be forces the fallback
	broken := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(broken, nil, 0o644))

	w := NewWriter(filepath.Join(broken, "exports"), fallback, testLogger())
	path, err := w.Export(context.Background(), sample(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, fallback, filepath.Dir(path))
}

func TestExport_BothDirsFail(t *testing.T) {
	broken := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(broken, nil, 0o644))

	w := NewWriter(filepath.Join(broken, "a"), filepath.Join(broken, "b"), testLogger())
	_, err := w.Export(context.Background(), sample(), time.Now())
	require.Error(t, err)
}

func TestRowDate_UnparseablePassedThrough(t *testing.T) {
	assert.Equal(t, "garbage", rowDate("garbage"))
}

func TestQuote_EscapesEmbeddedQuotes(t *testing.T) {
	assert.Equal(t, `"a""b"`, quote(`a"b`))
}
