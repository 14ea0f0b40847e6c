package record

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/refgraph/refgraph/internal/category"
)

const peekWindow = 64 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader streams RawRecords from one export file. The sequence is
// lazy, finite, and restartable: Reset rewinds to the first data row
// of the same file.
type Reader struct {
	path string
	cat  category.Category
	f    *os.File
	cr   *csv.Reader

	delim rune
	// positions maps each physical column index to its header name;
	// "" marks columns with empty or duplicate headers, which are
	// carried in the file but ignored here.
	positions []string
	columns   []string
}

// Open opens an export file and reads its header. A file that cannot
// be opened fails with a plain wrapped error; a present-but-headerless
// file fails with MalformedInputError.
func Open(path string, cat category.Category) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	r := &Reader{path: path, cat: cat, f: f}
	if err := r.init(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// init positions the reader at the first data row: rewind, strip the
// BOM, sniff the delimiter, parse and validate the header.
func (r *Reader) init() error {
	if _, err := r.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding %s: %w", r.path, err)
	}
	br := bufio.NewReaderSize(r.f, peekWindow)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}
	r.delim = sniffDelimiter(peekLine(br))

	cr := csv.NewReader(br)
	cr.Comma = r.delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	r.cr = cr

	header, err := cr.Read()
	if err == io.EOF {
		return &MalformedInputError{Path: r.path, Reason: "missing header row"}
	}
	if err != nil {
		return &MalformedInputError{Path: r.path, Reason: "unreadable header row", Err: err}
	}

	r.positions = make([]string, len(header))
	r.columns = r.columns[:0]
	seen := map[string]bool{}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		r.positions[i] = h
		r.columns = append(r.columns, h)
	}
	if len(r.columns) == 0 {
		return &MalformedInputError{Path: r.path, Reason: "header row has no column names"}
	}
	return nil
}

// Header returns the recognized column names in file order.
func (r *Reader) Header() []string {
	return r.columns
}

// Delimiter returns the detected field delimiter.
func (r *Reader) Delimiter() rune {
	return r.delim
}

// Next returns the next data row, padding short rows with empty cells
// and skipping rows that are entirely blank. It returns io.EOF at the
// end of the file and MalformedInputError when the CSV layer rejects
// a row.
func (r *Reader) Next() (*RawRecord, error) {
	for {
		rec, err := r.cr.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			row := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				row = pe.Line
			}
			return nil, &MalformedInputError{Path: r.path, Row: row, Reason: "unparseable row", Err: err}
		}
		if allBlank(rec) {
			continue
		}
		line, _ := r.cr.FieldPos(0)

		vals := make(map[string]string, len(r.columns))
		for i, name := range r.positions {
			if name == "" {
				continue
			}
			if i < len(rec) {
				vals[name] = rec[i]
			} else {
				vals[name] = ""
			}
		}
		return &RawRecord{
			Path:     r.path,
			Category: r.cat,
			Row:      line,
			Columns:  r.columns,
			Values:   vals,
		}, nil
	}
}

// Reset rewinds the reader to the first data row.
func (r *Reader) Reset() error {
	return r.init()
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// peekLine returns the first line of buffered input without consuming
// it, for delimiter sniffing.
func peekLine(br *bufio.Reader) []byte {
	peek, _ := br.Peek(peekWindow)
	if i := bytes.IndexByte(peek, '\n'); i >= 0 {
		return peek[:i]
	}
	return peek
}

// sniffDelimiter picks between comma and semicolon by counting
// occurrences outside quoted regions of the header line. Comma wins
// ties, matching the dominant export format.
func sniffDelimiter(line []byte) rune {
	commas, semis := 0, 0
	inQuotes := false
	for _, b := range line {
		switch b {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				commas++
			}
		case ';':
			if !inQuotes {
				semis++
			}
		}
	}
	if semis > commas {
		return ';'
	}
	return ','
}

func allBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
