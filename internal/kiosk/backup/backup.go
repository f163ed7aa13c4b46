// Package backup writes CSV copies of tickets before sync discards
// their local rows. The files are meant for manual recovery, so the
// format stays import-friendly: quoted fields, spreadsheet-safe dates.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/models"
	"github.com/jcastellanos/comedor-kiosk/internal/logging"
)

const header = `"Codigo","Comida","Fecha"`

// Writer exports ticket snapshots as CSV files. It tries the configured
// export directory first and falls back to the application data
// directory when that fails (removable media gone, permissions).
type Writer struct {
	exportDir   string
	fallbackDir string
	log         logging.Logger
}

func NewWriter(exportDir, fallbackDir string, log logging.Logger) *Writer {
	return &Writer{exportDir: exportDir, fallbackDir: fallbackDir, log: log}
}

// Export writes one CSV file with the given tickets and returns the
// path it ended up at. An empty ticket list still produces a file with
// just the header, so the operator can tell the export ran.
func (w *Writer) Export(ctx context.Context, tickets []models.TicketWithUser, now time.Time) (string, error) {
	name := fmt.Sprintf("backup_sincronizacion_%s.csv", now.Format("2006-01-02_15-04-05"))
	content := render(tickets)

	path := filepath.Join(w.exportDir, name)
	if err := write(path, content); err != nil {
		w.log.Warn(ctx, "backup export dir failed, using fallback",
			"dir", w.exportDir, "error", err)
		path = filepath.Join(w.fallbackDir, name)
		if err := write(path, content); err != nil {
			return "", fmt.Errorf("failed to write backup %s: %w", name, err)
		}
	}

	w.log.Info(ctx, "backup written", "path", path, "tickets", len(tickets))
	return path, nil
}

func render(tickets []models.TicketWithUser) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')
	for _, t := range tickets {
		b.WriteString(quote(t.Code))
		b.WriteByte(',')
		b.WriteString(quote(t.MealName))
		b.WriteByte(',')
		b.WriteString(quote(rowDate(t.CreatedAt)))
		b.WriteByte('\n')
	}
	return b.String()
}

// rowDate rewrites the stored timestamp into the spreadsheet format.
// A timestamp that does not parse is passed through untouched rather
// than dropped.
func rowDate(createdAt string) string {
	t, err := time.Parse(models.TicketTimeFormat, createdAt)
	if err != nil {
		return createdAt
	}
	return t.Format("2006-01-02 15:04:05")
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func write(path string, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
