// Package report writes the accumulated article store to a tabular file.
// The format is picked by file extension: xlsx, csv or markdown.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/xuri/excelize/v2"

	"github.com/umputun/newsclass/pkg/domain"
)

// Format of the report file
type Format string

// supported report formats
const (
	FormatXLSX     Format = "xlsx"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
)

// SheetName is the worksheet holding articles in xlsx reports
const SheetName = "Articles"

const (
	maxCellChars     = 32767 // excel limit per cell
	mdContentWidth   = 120
	minMarkdownWidth = 3
)

// Header is the column header row of every report
var Header = []string{"Title", "Content", "Pub Date", "Source URL", "Category"}

// Exporter writes articles to a report file
type Exporter struct {
	path   string
	format Format
}

// FormatFromPath returns report format for the file extension, case-insensitive
func FormatFromPath(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	case ".md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported report extension %q", ext)
	}
}

// NewExporter makes an exporter for the given path, the format is picked by extension
func NewExporter(path string) (*Exporter, error) {
	if path == "" {
		return nil, fmt.Errorf("empty report path")
	}
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	return &Exporter{path: path, format: format}, nil
}

// Path returns the report file path
func (e *Exporter) Path() string { return e.path }

// Format returns the report file format
func (e *Exporter) Format() Format { return e.format }

// Export writes all articles to the report file, replacing an existing one
func (e *Exporter) Export(ctx context.Context, articles []domain.Article) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if dir := filepath.Dir(e.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}

	rows := make([][]string, 0, len(articles))
	for i := range articles {
		rows = append(rows, Row(&articles[i]))
	}

	var err error
	switch e.format {
	case FormatXLSX:
		err = e.writeXLSX(rows)
	case FormatCSV:
		err = e.writeFile(func(w io.Writer) error { return writeCSV(w, rows) })
	case FormatMarkdown:
		err = e.writeFile(func(w io.Writer) error { return writeMarkdown(w, rows) })
	default:
		err = fmt.Errorf("unsupported report format %q", e.format)
	}
	if err != nil {
		return fmt.Errorf("export %s report to %s: %w", e.format, e.path, err)
	}
	return nil
}

// Row converts an article to report columns
func Row(a *domain.Article) []string {
	return []string{
		a.Title,
		a.Content,
		a.PublishedAt.UTC().Format(time.RFC3339),
		a.SourceURL,
		a.Category.Name(),
	}
}

func (e *Exporter) writeFile(write func(w io.Writer) error) error {
	fh, err := os.Create(e.path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if err := write(fh); err != nil {
		_ = fh.Close()
		return err
	}
	return fh.Close()
}

func (e *Exporter) writeXLSX(rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	writeRow := func(idx int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, idx)
		if err != nil {
			return err
		}
		vals := make([]interface{}, len(values))
		for i, v := range values {
			if r := []rune(v); len(r) > maxCellChars {
				v = string(r[:maxCellChars])
			}
			vals[i] = v
		}
		return f.SetSheetRow(SheetName, cell, &vals)
	}

	if err := writeRow(1, Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	lastCol, err := excelize.CoordinatesToCellName(len(Header), 1)
	if err != nil {
		return fmt.Errorf("header range: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, row := range rows {
		if err := writeRow(i+2, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SaveAs(e.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

func writeMarkdown(w io.Writer, rows [][]string) error {
	table := make([][]string, 0, len(rows)+1)
	table = append(table, Header)
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = markdownCell(v)
		}
		// long article bodies would make the table unreadable
		cells[1] = runewidth.Truncate(cells[1], mdContentWidth, "...")
		table = append(table, cells)
	}

	for _, line := range alignTable(table) {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// markdownCell flattens a value to a single table cell
func markdownCell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

// alignTable renders rows as a markdown table, the first row is the header.
// Columns are padded by display width so wide runes line up.
func alignTable(table [][]string) []string {
	if len(table) == 0 {
		return nil
	}

	colWidths := make([]int, len(table[0]))
	for _, row := range table {
		for i := 0; i < len(row) && i < len(colWidths); i++ {
			if w := runewidth.StringWidth(row[i]); w > colWidths[i] {
				colWidths[i] = w
			}
		}
	}
	for i := range colWidths {
		if colWidths[i] < minMarkdownWidth {
			colWidths[i] = minMarkdownWidth
		}
	}

	line := func(cells []string) string {
		var sb strings.Builder
		sb.WriteString("|")
		for j := range colWidths {
			content := ""
			if j < len(cells) {
				content = cells[j]
			}
			sb.WriteString(" ")
			sb.WriteString(runewidth.FillRight(content, colWidths[j]))
			sb.WriteString(" |")
		}
		return sb.String()
	}

	sep := make([]string, len(colWidths))
	for i, w := range colWidths {
		sep[i] = strings.Repeat("-", w)
	}

	res := make([]string, 0, len(table)+1)
	res = append(res, line(table[0]), line(sep))
	for _, row := range table[1:] {
		res = append(res, line(row))
	}
	return res
}

// Summary prints number of articles per category as an aligned table.
// All known categories are listed, followed by unknown ones sorted by name.
func Summary(w io.Writer, counts map[domain.Category]int) error {
	cats := domain.AllCategories()
	known := make(map[domain.Category]bool, len(cats))
	for _, c := range cats {
		known[c] = true
	}
	var extra []domain.Category
	for c := range counts {
		if !known[c] {
			extra = append(extra, c)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	cats = append(cats, extra...)

	table := [][]string{{"Category", "Articles"}}
	total := 0
	for _, c := range cats {
		table = append(table, []string{c.Name(), strconv.Itoa(counts[c])})
		total += counts[c]
	}
	table = append(table, []string{"Total", strconv.Itoa(total)})

	for _, line := range alignTable(table) {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	return nil
}
