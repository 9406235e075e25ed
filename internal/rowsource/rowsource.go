// Package rowsource turns a delimited text file into a lazy sequence of rows.
//
// Two parsing modes are supported. The default literal mode splits each line
// on the delimiter with no quote handling, which is how IMDb dataset files are
// written. Quoting mode uses encoding/csv and honours RFC 4180 quotes.
package rowsource

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"unicode/utf8"
)

// ErrMalformedRow marks a row that could not be parsed. Iteration continues
// past it.
var ErrMalformedRow = errors.New("malformed row")

// OpenError reports an input file that could not be opened.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("opening %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// RowError describes a single unparseable row. Header is set when the row
// was in header position; it is consumed as the header and is not data.
type RowError struct {
	Path   string
	Line   int
	Header bool
	Cause  error
}

func (e *RowError) Error() string {
	where := e.Path
	if where == "" {
		where = "input"
	}
	if e.Header {
		where += " header"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s:%d: %v: %v", where, e.Line, ErrMalformedRow, e.Cause)
	}
	return fmt.Sprintf("%s:%d: %v", where, e.Line, ErrMalformedRow)
}

func (e *RowError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrMalformedRow}
	}
	return []error{ErrMalformedRow, e.Cause}
}

// Row is one data record. Line is 1-based and counts physical lines.
type Row struct {
	Line   int
	Fields []string
}

// Field returns field i, or false when the row is too short.
func (r Row) Field(i int) (string, bool) {
	if i < 0 || i >= len(r.Fields) {
		return "", false
	}
	return r.Fields[i], true
}

// Options controls parsing.
type Options struct {
	Delimiter  rune
	HasHeader  bool
	Quoting    bool
	LazyQuotes bool
}

// DefaultOptions matches the IMDb TSV layout.
func DefaultOptions() Options {
	return Options{
		Delimiter:  '\t',
		HasHeader:  true,
		LazyQuotes: true,
	}
}

// Reader yields rows from a single source.
type Reader struct {
	path   string
	src    io.Reader
	closer io.Closer
	opts   Options
	header []string
}

// Open opens path for reading. The file is held until Close.
func Open(path string, opts Options) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	r := NewReader(f, opts)
	r.path = path
	r.closer = f
	return r, nil
}

// NewReader wraps an in-memory or already open source.
func NewReader(src io.Reader, opts Options) *Reader {
	if opts.Delimiter == 0 {
		opts.Delimiter = '\t'
	}
	return &Reader{src: src, opts: opts}
}

// Path returns the file path, or "" for readers built with NewReader.
func (r *Reader) Path() string { return r.path }

// Header returns the header fields once iteration has passed them.
func (r *Reader) Header() []string { return r.header }

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// Rows returns the data rows in source order. A malformed row is yielded as a
// *RowError and iteration continues; any other error ends the sequence.
// The sequence is single-use.
func (r *Reader) Rows() iter.Seq2[Row, error] {
	if r.opts.Quoting {
		return r.csvRows()
	}
	return r.literalRows()
}

func (r *Reader) literalRows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		br := bufio.NewReader(r.src)
		sep := string(r.opts.Delimiter)
		needHeader := r.opts.HasHeader
		line := 0
		for {
			text, err := br.ReadString('\n')
			if len(text) > 0 {
				line++
				text = strings.TrimSuffix(text, "\n")
				text = strings.TrimSuffix(text, "\r")
				if text != "" {
					if !utf8.ValidString(text) {
						rerr := &RowError{Path: r.path, Line: line, Header: needHeader, Cause: errors.New("invalid UTF-8")}
						needHeader = false
						if !yield(Row{Line: line}, rerr) {
							return
						}
					} else if needHeader {
						needHeader = false
						r.header = strings.Split(text, sep)
					} else if !yield(Row{Line: line, Fields: strings.Split(text, sep)}, nil) {
						return
					}
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Row{Line: line}, fmt.Errorf("reading %s: %w", r.describe(), err))
				return
			}
		}
	}
}

func (r *Reader) csvRows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		cr := csv.NewReader(r.src)
		cr.Comma = r.opts.Delimiter
		cr.FieldsPerRecord = -1
		cr.LazyQuotes = r.opts.LazyQuotes
		cr.ReuseRecord = false
		needHeader := r.opts.HasHeader
		for {
			record, err := cr.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				var perr *csv.ParseError
				if errors.As(err, &perr) {
					rerr := &RowError{Path: r.path, Line: perr.StartLine, Header: needHeader, Cause: perr.Err}
					needHeader = false
					if !yield(Row{Line: perr.StartLine}, rerr) {
						return
					}
					continue
				}
				yield(Row{}, fmt.Errorf("reading %s: %w", r.describe(), err))
				return
			}
			line, _ := cr.FieldPos(0)
			if needHeader {
				needHeader = false
				r.header = record
				continue
			}
			if !yield(Row{Line: line, Fields: record}, nil) {
				return
			}
		}
	}
}

func (r *Reader) describe() string {
	if r.path == "" {
		return "input"
	}
	return r.path
}
