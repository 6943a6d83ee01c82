package schema

import (
	"fmt"
	"strings"
)

// Contract describes the columns a table must carry on input and the columns the
// pipeline appends on output.
type Contract struct {
	Required []string
	Appended []string
}

// MissingColumnError reports a required column absent from a header.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required column %q", e.Column)
}

// Index returns the position of name in header. Matching ignores surrounding
// whitespace and case. It returns -1 when the column is absent.
func Index(header []string, name string) int {
	want := strings.TrimSpace(name)
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), want) {
			return i
		}
	}
	return -1
}

// Validate checks that every required column is present.
func (c Contract) Validate(header []string) error {
	for _, col := range c.Required {
		if Index(header, col) < 0 {
			return &MissingColumnError{Column: col}
		}
	}
	return nil
}

// OutputColumns returns the output header and the position of each appended column
// in it. An appended column already present in header is reused in place, so
// re-processing an output file does not duplicate columns.
func (c Contract) OutputColumns(header []string) ([]string, []int) {
	out := make([]string, 0, len(header)+len(c.Appended))
	out = append(out, header...)
	idx := make([]int, len(c.Appended))
	for i, col := range c.Appended {
		if j := Index(header, col); j >= 0 {
			idx[i] = j
			continue
		}
		idx[i] = len(out)
		out = append(out, col)
	}
	return out, idx
}
