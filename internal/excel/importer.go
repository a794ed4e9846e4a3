// Package excel imports vocabulary decks from Excel or CSV files,
// creating entries and unseen cards for a learner.
package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/lexibot/internal/database"
	"github.com/example/lexibot/pkg/models"
)

// ImportConfig defines the import configuration. Columns are fixed:
// front, back, deck, notes.
type ImportConfig struct {
	FilePath  string // Path to the Excel or CSV file
	SheetName string // Name of the sheet to import (Excel only)
	StartRow  int    // The row to start importing from (1-based)
	Deck      string // Fallback deck when the row has none
	LearnerID int64  // Learner to create cards for; zero skips card creation
}

// DefaultImportConfig returns the default import configuration.
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		SheetName: "Sheet1",
		StartRow:  2, // skip the header row
		Deck:      "default",
	}
}

// ImportResult holds the result of an import operation.
type ImportResult struct {
	TotalProcessed int
	Created        int
	Updated        int
	Skipped        int
	CardsCreated   int
	Errors         []string
}

// Importer loads rows into the entry and card stores.
type Importer struct {
	store *database.SQLStore
}

// New creates an Importer over the given store.
func New(store *database.SQLStore) *Importer {
	return &Importer{store: store}
}

// Import reads the file (Excel or CSV by extension) and loads its rows.
func (imp *Importer) Import(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		return imp.importFromCSV(ctx, config)
	}
	return imp.importFromExcel(ctx, config)
}

func (imp *Importer) importFromExcel(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("excel: open file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(config.SheetName)
	if err != nil {
		return nil, fmt.Errorf("excel: get rows: %w", err)
	}

	result := &ImportResult{Errors: make([]string, 0)}
	for i, row := range rows {
		if i < config.StartRow-1 {
			continue
		}
		result.TotalProcessed++
		if err := imp.processRow(ctx, row, config, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
		}
	}
	return result, nil
}

func (imp *Importer) importFromCSV(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("excel: open csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // rows may have fewer columns
	reader.LazyQuotes = true

	result := &ImportResult{Errors: make([]string, 0)}
	rowNum := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("excel: read csv: %w", err)
		}
		rowNum++
		if rowNum < config.StartRow {
			continue
		}
		result.TotalProcessed++
		if err := imp.processRow(ctx, row, config, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
		}
	}
	return result, nil
}

// processRow upserts one entry and, when a learner is set, ensures an
// unseen card exists for it.
func (imp *Importer) processRow(ctx context.Context, row []string, config ImportConfig, result *ImportResult) error {
	front := cell(row, 0)
	back := cell(row, 1)
	if front == "" || back == "" {
		result.Skipped++
		return nil
	}
	deck := cell(row, 2)
	if deck == "" {
		deck = config.Deck
	}
	notes := cell(row, 3)

	entry, err := imp.store.FindEntry(ctx, front, deck)
	switch {
	case errors.Is(err, database.ErrNotFound):
		entry = models.Entry{Front: front, Back: back, Deck: deck, Notes: notes}
		if err := imp.store.CreateEntry(ctx, &entry); err != nil {
			return err
		}
		result.Created++
	case err != nil:
		return err
	default:
		if entry.Back != back || entry.Notes != notes {
			entry.Back = back
			entry.Notes = notes
			if err := imp.store.UpdateEntry(ctx, &entry); err != nil {
				return err
			}
			result.Updated++
		} else {
			result.Skipped++
		}
	}

	if config.LearnerID != 0 {
		created, err := imp.ensureCard(ctx, config.LearnerID, entry.ID)
		if err != nil {
			return err
		}
		if created {
			result.CardsCreated++
		}
	}
	return nil
}

// ensureCard creates an unseen card for the learner unless one already
// exists for the entry.
func (imp *Importer) ensureCard(ctx context.Context, learnerID, entryID int64) (bool, error) {
	cards, err := imp.store.LoadCards(ctx, learnerID)
	if err != nil {
		return false, err
	}
	for _, c := range cards {
		if c.EntryID == entryID {
			return false, nil
		}
	}
	card := models.NewCard(learnerID, entryID, imp.store.Now())
	if err := imp.store.SaveCard(ctx, &card); err != nil {
		return false, err
	}
	return true, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
