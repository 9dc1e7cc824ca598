package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/news-retriever/internal/core/domain"
)

const sheetName = "articles"

// RequiredColumns must be present in every corpus table. The id column is optional.
var RequiredColumns = []string{"text", "category", "date", "link"}

var tableHeader = []string{"id", "text", "category", "date", "link"}

// LoadTable reads a corpus table, picking the format from the file extension.
func LoadTable(path string) ([]domain.Article, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open table: %w", err)
		}
		defer f.Close()
		return ReadCSV(f)
	case ".xlsx":
		return ReadXLSX(path)
	case ".jsonl", ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open dataset: %w", err)
		}
		defer f.Close()
		records, err := ReadNewsCategory(f)
		if err != nil {
			return nil, err
		}
		return ConvertNewsCategory(records, ConvertOptions{}), nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "load table", fmt.Errorf("unsupported table format %q", filepath.Ext(path)))
	}
}

// SaveTable writes a corpus table, picking the format from the file extension.
func SaveTable(path string, articles []domain.Article) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create table: %w", err)
		}
		if err := WriteCSV(f, articles); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	case ".xlsx":
		return WriteXLSX(path, articles)
	default:
		return domain.WrapError(domain.ErrInvalidInput, "save table", fmt.Errorf("unsupported table format %q", filepath.Ext(path)))
	}
}

func ReadCSV(r io.Reader) ([]domain.Article, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return articlesFromRows(rows)
}

func WriteCSV(w io.Writer, articles []domain.Article) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(tableHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, a := range articles {
		if err := writer.Write(articleRow(a)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func ReadXLSX(path string) ([]domain.Article, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read xlsx", fmt.Errorf("workbook has no sheets"))
	}
	sheet := sheets[0]
	if idx, err := f.GetSheetIndex(sheetName); err == nil && idx >= 0 {
		sheet = sheetName
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read xlsx rows: %w", err)
	}
	return articlesFromRows(rows)
}

func WriteXLSX(path string, articles []domain.Article) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", toAny(tableHeader)); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	for i, a := range articles {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, toAny(articleRow(a))); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i+2, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}

// articlesFromRows maps a header row plus data rows onto articles.
func articlesFromRows(rows [][]string) ([]domain.Article, error) {
	if len(rows) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read table", fmt.Errorf("table is empty"))
	}

	columns := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	var missing []string
	for _, name := range RequiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read table",
			fmt.Errorf("missing required columns: %s", strings.Join(missing, ", ")))
	}

	cell := func(row []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]domain.Article, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		out = append(out, domain.Article{
			ID:       cell(row, "id"),
			Text:     cell(row, "text"),
			Category: cell(row, "category"),
			Date:     cell(row, "date"),
			Link:     cell(row, "link"),
		})
	}
	return out, nil
}

func articleRow(a domain.Article) []string {
	return []string{a.ID, a.Text, a.Category, a.Date, a.Link}
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func toAny(values []string) *[]any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return &out
}
