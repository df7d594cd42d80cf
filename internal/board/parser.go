package board

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var headerRe = regexp.MustCompile(`^(\d+)x(\d+)$`)

// ParseError describes why a board file was rejected. Line numbers are
// 1-based.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("board file line %d: %s", e.Line, e.Msg)
}

// Parse reads a board file: a ROWSxCOLS header line followed by exactly
// rows*cols card labels, one per line. CRLF line endings are accepted; a
// trailing newline after the last label is allowed. All cards start face
// down.
func Parse(r io.Reader) (*Board, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")

	m := headerRe.FindStringSubmatch(lines[0])
	if m == nil {
		return nil, &ParseError{Line: 1, Msg: fmt.Sprintf("malformed dimension header %q", lines[0])}
	}
	rows, err := strconv.Atoi(m[1])
	if err != nil || rows < 1 {
		return nil, &ParseError{Line: 1, Msg: fmt.Sprintf("invalid row count %q", m[1])}
	}
	cols, err := strconv.Atoi(m[2])
	if err != nil || cols < 1 {
		return nil, &ParseError{Line: 1, Msg: fmt.Sprintf("invalid column count %q", m[2])}
	}

	labels := lines[1:]
	if len(labels) != rows*cols {
		return nil, &ParseError{
			Line: len(lines),
			Msg:  fmt.Sprintf("got %d cards for a %dx%d board, want %d", len(labels), rows, cols, rows*cols),
		}
	}
	for i, label := range labels {
		if !ValidLabel(label) {
			return nil, &ParseError{Line: i + 2, Msg: fmt.Sprintf("invalid card label %q", label)}
		}
	}

	b, err := New(rows, cols, labels)
	if err != nil {
		return nil, &ParseError{Line: 1, Msg: err.Error()}
	}
	return b, nil
}
