package importitems

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"reddot-watch/feedapi/internal/database"
)

// Result summarizes an import run.
type Result struct {
	Total    int
	Imported int
	Problems []string
}

// Importer seeds feed items from a CSV file with caption and url columns.
type Importer struct {
	db     *database.DB
	client *http.Client
}

// NewImporter creates a new feed item importer
func NewImporter(db *database.DB) *Importer {
	return &Importer{db: db, client: http.DefaultClient}
}

// ImportItems reads source, a local path or an http(s) URL, and inserts one
// feed item per valid row in a single transaction.
func (i *Importer) ImportItems(ctx context.Context, source string) (*Result, error) {
	log.Info().Str("source", source).Msg("Starting feed item import")

	rc, err := i.open(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV source: %w", err)
	}
	defer rc.Close()

	res, err := i.parseAndImport(ctx, rc)
	if err != nil {
		return nil, fmt.Errorf("failed to import feed items: %w", err)
	}

	log.Info().
		Int("total", res.Total).
		Int("imported", res.Imported).
		Int("problems", len(res.Problems)).
		Msg("Import summary")
	return res, nil
}

func (i *Importer) open(ctx context.Context, source string) (io.ReadCloser, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		log.Debug().Str("path", source).Msg("Using local CSV file")
		return os.Open(source)
	}

	log.Debug().Str("url", source).Msg("Downloading CSV file")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download file: HTTP status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (i *Importer) parseAndImport(ctx context.Context, r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	captionIdx := findColumnIndex(header, "caption")
	urlIdx := findColumnIndex(header, "url")
	if captionIdx < 0 || urlIdx < 0 {
		return nil, errors.New("CSV header must contain 'caption' and 'url' columns")
	}

	tx, err := i.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO feed_items (caption, url) VALUES (?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	res := &Result{}
	line := 1 // header

	for {
		line++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn().Err(err).Int("line", line).Msg("Error reading CSV line")
			res.Problems = append(res.Problems, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		if len(record) == 0 || (len(record) == 1 && record[0] == "") {
			continue
		}
		res.Total++

		caption := field(record, captionIdx)
		key := field(record, urlIdx)
		if caption == "" || key == "" {
			log.Warn().Int("line", line).Msg("Skipping row without caption or url")
			res.Problems = append(res.Problems, fmt.Sprintf("line %d: caption and url are required", line))
			continue
		}

		if _, err := stmt.ExecContext(ctx, caption, key); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		res.Imported++
		log.Debug().Int("line", line).Str("url", key).Msg("Feed item inserted")
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}
	return res, nil
}

func findColumnIndex(header []string, columnName string) int {
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), columnName) {
			return i
		}
	}
	return -1
}

// field returns the trimmed value at index, or "" when the row is too short.
func field(record []string, index int) string {
	if index >= 0 && index < len(record) {
		return strings.TrimSpace(record[index])
	}
	return ""
}
