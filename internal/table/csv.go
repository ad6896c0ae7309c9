package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// ReadRecords reads delimited data into a header row and records
// without building a table.
func ReadRecords(r io.Reader) (header []string, records [][]string, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows are padded by FromRecords

	header, err = reader.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("table: no header row")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("table: read header: %w", err)
	}

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("table: read row %d: %w", len(records)+2, err)
		}
		records = append(records, rec)
	}
	return header, records, nil
}

// LoadRecords reads a CSV file from disk into header and records.
func LoadRecords(path string) (header []string, records [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("table: open %s: %w", path, err)
	}
	defer f.Close()

	header, records, err = ReadRecords(f)
	if err != nil {
		return nil, nil, fmt.Errorf("table: load %s: %w", path, err)
	}
	return header, records, nil
}

// ReadCSV builds a table from delimited data with a header row.
func ReadCSV(r io.Reader) (*Table, error) {
	header, records, err := ReadRecords(r)
	if err != nil {
		return nil, err
	}
	return FromRecords(header, records)
}

// LoadCSV reads a CSV file from disk and builds a table from it.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("table: open %s: %w", path, err)
	}
	defer f.Close()

	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("table: load %s: %w", path, err)
	}
	return t, nil
}

// WriteCSV writes a header and records to path as CSV.
func WriteCSV(path string, header []string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("table: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("table: write header: %w", err)
	}
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("table: write records: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("table: flush %s: %w", path, err)
	}
	return f.Close()
}
