package mailmerge

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/matbaogit/WFAHub-sub000/models"
	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptyTable        = errors.New("uploaded file has no header row")
	ErrNoDataRows        = errors.New("uploaded file has no data rows")
	ErrTooManyRows       = errors.New("uploaded file exceeds the row limit")
	ErrUnsupportedFormat = errors.New("unsupported file format, expected .csv or .xlsx")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// sniffWindow bounds the look-ahead used to pick the CSV delimiter
const sniffWindow = 4096

// Table is parsed tabular data: a header and rows keyed by header cell
type Table struct {
	Columns []string            `json:"columns"`
	Rows    []models.CustomData `json:"rows"`
}

// ParseUpload dispatches on the file extension. maxRows <= 0 means unlimited.
func ParseUpload(filename string, r io.Reader, maxRows int) (*Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return ParseCSV(r, maxRows)
	case ".xlsx", ".xlsm":
		return ParseXLSX(r, maxRows)
	default:
		return nil, ErrUnsupportedFormat
	}
}

// ParseCSV reads comma or semicolon separated text with a header row
func ParseCSV(r io.Reader, maxRows int) (*Table, error) {
	br := bufio.NewReaderSize(r, sniffWindow)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	// A short file returns io.EOF with whatever was read
	head, _ := br.Peek(sniffWindow)
	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(head)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		records = append(records, rec)
	}

	return buildTable(records, maxRows)
}

// ParseXLSX reads the first non-empty worksheet of a workbook
func ParseXLSX(r io.Reader, maxRows int) (*Table, error) {
	xl, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = xl.Close() }()

	for _, sheet := range xl.GetSheetList() {
		records, err := xl.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
		}
		if len(records) == 0 {
			continue
		}
		return buildTable(records, maxRows)
	}

	return nil, ErrEmptyTable
}

func buildTable(records [][]string, maxRows int) (*Table, error) {
	if len(records) == 0 {
		return nil, ErrEmptyTable
	}

	header := records[0]
	columns := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		columns[i] = h
	}
	if len(columns) == 0 {
		return nil, ErrEmptyTable
	}

	rows := make([]models.CustomData, 0, len(records)-1)
	for _, rec := range records[1:] {
		if isBlankRecord(rec) {
			continue
		}
		row := models.NewCustomData()
		for i, col := range columns {
			value := ""
			if i < len(rec) {
				value = strings.TrimSpace(rec[i])
			}
			row.Set(col, value)
		}
		rows = append(rows, row)
		if maxRows > 0 && len(rows) > maxRows {
			return nil, ErrTooManyRows
		}
	}

	if len(rows) == 0 {
		return nil, ErrNoDataRows
	}

	return &Table{Columns: columns, Rows: rows}, nil
}

func isBlankRecord(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// sniffDelimiter picks ';' when the header line has more semicolons than commas
func sniffDelimiter(buf []byte) rune {
	line := buf
	if i := bytes.IndexByte(buf, '\n'); i >= 0 {
		line = buf[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}
