// Package workload reads the process list a simulation is driven by.
//
// A workload is text with one process per line:
//
//	processID:arrivalTime:serviceTime:priority
//
// Blank lines and lines starting with '#' are ignored.
package workload

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// MaxPriority is the lowest priority level (highest number) a record may carry.
const MaxPriority = 7

// Entry is one validated workload record.
type Entry struct {
	ID       int
	Arrival  int64
	Service  int64
	Priority int
}

func (e Entry) String() string {
	return fmt.Sprintf("%d:%d:%d:%d", e.ID, e.Arrival, e.Service, e.Priority)
}

// ParseError reports a malformed or invalid workload record.
type ParseError struct {
	Line  int    // 1-based; 0 when the record did not come from a file
	Field string // empty when the record as a whole is wrong
	Err   error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	if e.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", e.Line)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, "%s: ", e.Field)
	}
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

var fieldNames = [4]string{"id", "arrival", "service", "priority"}

// ParseRecord parses a single colon-separated record.
func ParseRecord(line string) (Entry, error) {
	fields := strings.Split(strings.TrimSpace(line), ":")
	if len(fields) != len(fieldNames) {
		return Entry{}, &ParseError{Err: fmt.Errorf("expected %d fields, got %d", len(fieldNames), len(fields))}
	}
	return parseFields(fields, 0)
}

func parseFields(fields []string, line int) (Entry, error) {
	var vals [4]int64
	for i, f := range fields {
		v, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil {
			return Entry{}, &ParseError{Line: line, Field: fieldNames[i], Err: fmt.Errorf("not an integer: %q", f)}
		}
		vals[i] = v
	}

	e := Entry{ID: int(vals[0]), Arrival: vals[1], Service: vals[2], Priority: int(vals[3])}
	switch {
	case vals[0] < 0:
		return Entry{}, &ParseError{Line: line, Field: "id", Err: errors.New("must not be negative")}
	case e.Arrival < 0:
		return Entry{}, &ParseError{Line: line, Field: "arrival", Err: errors.New("must not be negative")}
	case e.Service < 1:
		return Entry{}, &ParseError{Line: line, Field: "service", Err: errors.New("must be at least 1")}
	case vals[3] < 0 || vals[3] > MaxPriority:
		return Entry{}, &ParseError{Line: line, Field: "priority", Err: fmt.Errorf("must be in [0,%d]", MaxPriority)}
	}
	return e, nil
}

// Parse reads every record from r. Process IDs must be unique.
func Parse(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.Comma = ':'
	cr.Comment = '#'
	cr.FieldsPerRecord = len(fieldNames)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var entries []Entry
	seen := make(map[int]int)
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				return nil, &ParseError{Line: csvErr.Line, Err: csvErr.Err}
			}
			return nil, fmt.Errorf("read workload: %w", err)
		}
		line, _ := cr.FieldPos(0)

		e, err := parseFields(fields, line)
		if err != nil {
			return nil, err
		}
		if first, dup := seen[e.ID]; dup {
			return nil, &ParseError{Line: line, Field: "id", Err: fmt.Errorf("duplicate process %d (first on line %d)", e.ID, first)}
		}
		seen[e.ID] = line
		entries = append(entries, e)
	}
	return entries, nil
}

// ParseString is Parse over an in-memory workload.
func ParseString(s string) ([]Entry, error) {
	return Parse(strings.NewReader(s))
}

// Load reads and validates the workload file at path.
func Load(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workload: %w", err)
	}
	defer f.Close()

	entries, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}
