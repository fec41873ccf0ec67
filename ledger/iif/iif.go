// Package iif decodes QuickBooks IIF files: tab separated blocks of
// "!TYPE" header rows followed by groups of data rows.
package iif

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

var (
	ErrMismatchedRecords = errors.New("iif: row does not match expected header")
	ErrEmptyHeader       = errors.New("iif: data row before any header")
)

type RecordType string

// Header names the columns of one record type.
type Header struct {
	Type   RecordType
	Fields []string
}

// Record is a data row keyed by its header's column names.
type Record struct {
	Type   RecordType
	Fields map[string]string
}

// Block is a run of headers and the record groups that follow them. Each
// group holds one or more rows per header, in header order.
type Block struct {
	Headers []Header
	Records [][]Record
}

type File struct {
	Blocks []Block
}

// Decoder reads rows one at a time; the current row is always buffered.
type Decoder struct {
	r        *csv.Reader
	err      error
	IsHeader bool
	Type     RecordType
	Fields   []string
}

func NewDecoder(r io.Reader) *Decoder {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	d := &Decoder{r: reader}
	d.Next()
	return d
}

// Next advances to the following row.
func (d *Decoder) Next() {
	line, err := d.r.Read()
	d.err = err
	if err != nil {
		return
	}
	d.IsHeader = strings.HasPrefix(line[0], "!")
	d.Type = RecordType(strings.TrimPrefix(line[0], "!"))
	d.Fields = line[1:]
}

// Error returns the read error, ignoring io.EOF.
func (d *Decoder) Error() error {
	if d.err != io.EOF {
		return d.err
	}
	return nil
}

func (d *Decoder) Done() bool {
	return d.err != nil
}

// Decode reads the whole input.
func (d *Decoder) Decode() (*File, error) {
	f := &File{}
	for !d.Done() {
		var b Block
		if err := b.load(d); err != nil {
			return nil, err
		}
		f.Blocks = append(f.Blocks, b)
	}
	if err := d.Error(); err != nil {
		return nil, err
	}
	return f, nil
}

// MapFields pairs header columns with row values; missing trailing values
// are left out.
func (h Header) MapFields(fields []string) map[string]string {
	m := make(map[string]string, len(fields))
	for i, f := range h.Fields {
		if i >= len(fields) {
			break
		}
		m[f] = fields[i]
	}
	return m
}

func (b *Block) load(d *Decoder) error {
	for !d.Done() && d.IsHeader {
		b.Headers = append(b.Headers, Header{Type: d.Type, Fields: trimLine(d.Fields)})
		d.Next()
	}
	if err := d.Error(); err != nil {
		return err
	}

	for !d.Done() && !d.IsHeader {
		if len(b.Headers) == 0 {
			return ErrEmptyHeader
		}
		var group []Record
		for _, h := range b.Headers {
			if d.Done() || d.IsHeader || d.Type != h.Type {
				return ErrMismatchedRecords
			}
			for !d.Done() && !d.IsHeader && d.Type == h.Type {
				group = append(group, Record{Type: d.Type, Fields: h.MapFields(d.Fields)})
				d.Next()
			}
		}
		b.Records = append(b.Records, group)
	}
	return d.Error()
}

// trimLine drops the trailing empty columns spreadsheets leave behind.
func trimLine(fields []string) []string {
	for i, f := range fields {
		if f == "" {
			return fields[:i]
		}
	}
	return fields
}

// Parse decodes r and returns every TRNS/SPL transaction in it.
func Parse(r io.Reader) ([]Transaction, error) {
	f, err := NewDecoder(r).Decode()
	if err != nil {
		return nil, err
	}
	var out []Transaction
	for _, b := range f.Blocks {
		if len(b.Headers) == 0 || b.Headers[0].Type != "TRNS" {
			continue
		}
		trns, err := DeserializeTransactions(b)
		if err != nil {
			return nil, err
		}
		out = append(out, trns...)
	}
	return out, nil
}
