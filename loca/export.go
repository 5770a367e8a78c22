package loca

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Format selects a delimited export/import shape.
type Format int

const (
	FormatCSV Format = iota
	FormatTSV
)

func (f Format) delimiter() rune {
	if f == FormatTSV {
		return '\t'
	}
	return ','
}

// Export writes every entry as key,version,text rows and returns the
// row count.
func (r *Resource) Export(w io.Writer, format Format) (int, error) {
	cw := csv.NewWriter(w)
	cw.Comma = format.delimiter()
	if err := cw.Write([]string{"key", "version", "text"}); err != nil {
		return 0, err
	}
	for _, e := range r.entries {
		row := []string{e.Key, strconv.FormatUint(uint64(e.Version), 10), e.Text}
		if err := cw.Write(row); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}
	return len(r.entries), nil
}

// ImportReport summarizes an Import call.
type ImportReport struct {
	Added   int
	Updated int
	Errors  []error
}

// Import reads key,version,text rows (header row optional) and applies
// them via Add, so existing keys are updated rather than duplicated.
func (r *Resource) Import(rd io.Reader, format Format) (ImportReport, error) {
	cr := csv.NewReader(rd)
	cr.Comma = format.delimiter()
	cr.FieldsPerRecord = -1

	var report ImportReport
	first := true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return report, fmt.Errorf("loca: import: %w", err)
		}
		if first {
			first = false
			if len(row) > 0 && row[0] == "key" {
				continue
			}
		}
		if len(row) < 3 {
			report.Errors = append(report.Errors, fmt.Errorf("loca: import: short row %v", row))
			continue
		}
		isNew := r.Add(row[0], row[2])
		if isNew {
			report.Added++
		} else {
			report.Updated++
		}
	}
	return report, nil
}
