package routes

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Column identifies one of the four columns the table must provide.
type Column string

const (
	ColumnNumber      Column = "number"
	ColumnName        Column = "name"
	ColumnOrigin      Column = "origin"
	ColumnDestination Column = "destination"
)

// columnSpec lists the header substrings accepted for a column, in priority
// order, and the header assumed when none of them appears.
type columnSpec struct {
	column   Column
	synonyms []string
	fallback string
}

var columnSpecs = []columnSpec{
	{ColumnNumber, []string{"number", "no."}, "train number"},
	{ColumnName, []string{"name"}, "train name"},
	{ColumnOrigin, []string{"starting", "source", "starts"}, "starting station"},
	{ColumnDestination, []string{"ending", "destination", "ends", "end"}, "ending station"},
}

// ColumnError is returned when a header row provides no column for one of
// the required fields.
type ColumnError struct {
	Column  Column
	Headers []string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("no header matches the %s column (headers: %s)", e.Column, strings.Join(e.Headers, ", "))
}

// RowError describes a single rejected data row. Row is 1-based and does not
// count the header.
type RowError struct {
	Row    int
	Column Column
	Reason string
}

func (e RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
	}
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Column, e.Reason)
}

// RowErrors collects every rejected row of a table.
type RowErrors []RowError

func (e RowErrors) Error() string {
	switch len(e) {
	case 0:
		return "no row errors"
	case 1:
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, re := range e {
		msgs[i] = re.Error()
	}
	return fmt.Sprintf("%d rows rejected: %s", len(e), strings.Join(msgs, "; "))
}

// ColumnMapping records which header was chosen for each column.
type ColumnMapping map[Column]string

// Table is the result of parsing a train table.
type Table struct {
	Mapping ColumnMapping
	Records []TrainRecord
	Errors  RowErrors
}

// TableOptions tunes ParseTable. The zero value reads comma separated input.
type TableOptions struct {
	Comma rune
}

// ParseTable reads a header row followed by train rows. Rows that cannot be
// turned into a TrainRecord are collected in Table.Errors; only a broken
// header or an unreadable stream aborts parsing.
func ParseTable(r io.Reader, opts TableOptions) (*Table, error) {
	reader := csv.NewReader(r)
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	// Train names such as `Mumbai "Rajdhani" Exp` carry bare quotes.
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("table is empty: missing header row")
		}
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	mapping, indexes, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	table := &Table{Mapping: mapping}
	for row := 1; ; row++ {
		fields, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				table.Errors = append(table.Errors, RowError{Row: row, Reason: parseErr.Err.Error()})
				continue
			}
			return nil, fmt.Errorf("failed to read row %d: %w", row, err)
		}

		record, rowErr := buildRecord(row, fields, indexes)
		if rowErr != nil {
			table.Errors = append(table.Errors, *rowErr)
			continue
		}
		table.Records = append(table.Records, record)
	}
	return table, nil
}

// mapColumns resolves every column to a header index. For each column the
// first header containing one of its synonyms wins.
func mapColumns(header []string) (ColumnMapping, map[Column]int, error) {
	mapping := make(ColumnMapping, len(columnSpecs))
	indexes := make(map[Column]int, len(columnSpecs))

	for _, spec := range columnSpecs {
		idx := -1
		for i, h := range header {
			lower := strings.ToLower(h)
			for _, syn := range spec.synonyms {
				if strings.Contains(lower, syn) {
					idx = i
					break
				}
			}
			if idx >= 0 {
				break
			}
		}
		if idx < 0 {
			for i, h := range header {
				if strings.EqualFold(strings.TrimSpace(h), spec.fallback) {
					idx = i
					break
				}
			}
		}
		if idx < 0 {
			return nil, nil, &ColumnError{Column: spec.column, Headers: header}
		}
		mapping[spec.column] = header[idx]
		indexes[spec.column] = idx
	}
	return mapping, indexes, nil
}

func buildRecord(row int, fields []string, indexes map[Column]int) (TrainRecord, *RowError) {
	values := make(map[Column]string, len(indexes))
	for _, spec := range columnSpecs {
		idx := indexes[spec.column]
		if idx >= len(fields) {
			return TrainRecord{}, &RowError{Row: row, Column: spec.column, Reason: "missing value"}
		}
		values[spec.column] = strings.TrimSpace(fields[idx])
	}

	record := TrainRecord{
		Row:         row,
		Number:      values[ColumnNumber],
		Name:        values[ColumnName],
		Origin:      strings.ToUpper(values[ColumnOrigin]),
		Destination: strings.ToUpper(values[ColumnDestination]),
	}

	switch {
	case record.Number == "":
		return TrainRecord{}, &RowError{Row: row, Column: ColumnNumber, Reason: "empty value"}
	case record.Origin == "":
		return TrainRecord{}, &RowError{Row: row, Column: ColumnOrigin, Reason: "empty value"}
	case record.Destination == "":
		return TrainRecord{}, &RowError{Row: row, Column: ColumnDestination, Reason: "empty value"}
	}
	return record, nil
}
