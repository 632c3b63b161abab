package ingest

import (
	"bytes"
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

var ErrInvalidFormat = errors.New("Invalid file format. Please upload a CSV or Excel file.")

// MissingColumnsError is returned when the header lacks required columns.
type MissingColumnsError struct {
	Columns []string
}

func (err *MissingColumnsError) Error() string {
	return "Missing required columns: " + strings.Join(err.Columns, ", ")
}

type (
	// Table is an uploaded file flattened into a header and data rows.
	Table struct {
		Header []string
		Rows   []Row
	}

	Row struct {
		Num    int // 1-based, counted from the record after the header, blank records included
		Values map[string]string
	}
)

// Get returns the trimmed cell value of `col`.
func (r Row) Get(col string) string {
	return strings.TrimSpace(r.Values[col])
}

// Require checks that all `cols` are present in the header.
func (t *Table) Require(cols ...string) error {
	present := make(map[string]bool, len(t.Header))
	for _, h := range t.Header {
		present[h] = true
	}
	var missing []string
	for _, col := range cols {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if missing != nil {
		return &MissingColumnsError{Columns: missing}
	}
	return nil
}

// ReadTable parses a .csv, .xlsx or .xls upload. Only the first sheet of a workbook is read.
func ReadTable(filename string, r io.Reader) (*Table, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		records, err = readCSV(r)
	case ".xlsx":
		records, err = readXLSX(r)
	case ".xls":
		records, err = readXLS(r)
	default:
		return nil, ErrInvalidFormat
	}
	if err != nil {
		return nil, err
	}
	return newTable(records), nil
}

// newTable takes the first non-blank record as the header. Blank records after
// it are dropped but still counted, so Row.Num matches the position in the file.
func newTable(records [][]string) *Table {
	t := new(Table)
	num := 0
	for _, rec := range records {
		if t.Header == nil {
			if isBlank(rec) {
				continue
			}
			t.Header = make([]string, len(rec))
			for i, h := range rec {
				t.Header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
			}
			continue
		}
		num++
		if isBlank(rec) {
			continue
		}

		row := Row{Num: num, Values: make(map[string]string, len(t.Header))}
		for i, h := range t.Header {
			if h == "" {
				continue
			}
			if i < len(rec) {
				row.Values[h] = rec[i]
			} else {
				row.Values[h] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(ErrInvalidFormat, err.Error())
	}
	return records, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidFormat, err.Error())
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(ErrInvalidFormat, err.Error())
	}
	return rows, nil
}

func readXLS(r io.Reader) ([][]string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading xls")
	}
	wb, err := xls.OpenReader(bytes.NewReader(content), "utf-8")
	if err != nil {
		return nil, errors.Wrap(ErrInvalidFormat, err.Error())
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, nil
	}
	records := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			records = append(records, nil)
			continue
		}
		rec := make([]string, 0, row.LastCol())
		for j := 0; j < row.LastCol(); j++ {
			rec = append(rec, row.Col(j))
		}
		records = append(records, rec)
	}
	return records, nil
}
