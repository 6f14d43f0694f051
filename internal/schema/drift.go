package schema

import (
	"fmt"
	"strings"

	apperrors "github.com/aicare/casemgr/pkg/errors"
)

// CheckHeader compares a stored header row with the registered columns.
// A header that is a prefix of the schema is repairable: the missing tail is
// returned so it can be appended. Any other difference would misdirect
// field-targeted writes and is reported as a conflict.
func (t *Table) CheckHeader(header []string) ([]string, error) {
	header = trimTrailingBlank(header)
	if len(header) > len(t.Columns) {
		return nil, apperrors.NewConflict(
			fmt.Sprintf("table %s: header has %d columns, schema has %d", t.Name, len(header), len(t.Columns)),
			nil,
		)
	}
	for i, col := range header {
		if strings.TrimSpace(col) != t.Columns[i] {
			return nil, apperrors.NewConflict(
				fmt.Sprintf("table %s: column %d is %q, expected %q", t.Name, i+1, col, t.Columns[i]),
				nil,
			)
		}
	}
	return t.Columns[len(header):], nil
}

func trimTrailingBlank(header []string) []string {
	end := len(header)
	for end > 0 && strings.TrimSpace(header[end-1]) == "" {
		end--
	}
	return header[:end]
}
