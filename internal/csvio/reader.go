// Package csvio reads transaction records from CSV and writes account
// snapshots back out as CSV.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/devrev/toypay/internal/amount"
	ledgererrors "github.com/devrev/toypay/internal/errors"
	"github.com/devrev/toypay/internal/model"
)

// Input columns
const (
	ColumnType   = "type"
	ColumnClient = "client"
	ColumnTx     = "tx"
	ColumnAmount = "amount"
)

// Reader decodes transaction records from CSV. The first row is a header
// naming the columns; their order is free and amount may be absent.
type Reader struct {
	csv     *csv.Reader
	columns map[string]int
}

// NewReader reads and validates the header row
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("input is empty")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{ColumnType, ColumnClient, ColumnTx} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("header is missing column %q", required)
		}
	}

	return &Reader{csv: cr, columns: columns}, nil
}

// Next returns the next record, io.EOF at the end of input, or an error
// matching ledgererrors.ErrInvalidRecord for a row that cannot be decoded.
func (r *Reader) Next() (model.InputRecord, error) {
	row, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return model.InputRecord{}, io.EOF
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return model.InputRecord{}, ledgererrors.InvalidRecord(perr.Line, "malformed csv", err)
		}
		return model.InputRecord{}, fmt.Errorf("failed to read input: %w", err)
	}

	line, _ := r.csv.FieldPos(0)
	return r.decode(row, line)
}

func (r *Reader) decode(row []string, line int) (model.InputRecord, error) {
	var rec model.InputRecord

	rec.Type = r.field(row, ColumnType)
	if rec.Type == "" {
		return rec, ledgererrors.InvalidRecord(line, "missing type", nil)
	}

	client, err := strconv.ParseUint(r.field(row, ColumnClient), 10, 16)
	if err != nil {
		return rec, ledgererrors.InvalidRecord(line, "invalid client id", err)
	}
	rec.ClientID = uint16(client)

	tx, err := strconv.ParseUint(r.field(row, ColumnTx), 10, 32)
	if err != nil {
		return rec, ledgererrors.InvalidRecord(line, "invalid transaction id", err)
	}
	rec.TxID = uint32(tx)

	if raw := r.field(row, ColumnAmount); raw != "" {
		d, err := amount.Parse(raw)
		if err != nil {
			return rec, ledgererrors.InvalidRecord(line, "invalid amount", err)
		}
		rec.Amount = &d
	}

	return rec, nil
}

// field returns the trimmed value of a column, or "" when the row is short
func (r *Reader) field(row []string, column string) string {
	i, ok := r.columns[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
