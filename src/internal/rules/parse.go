package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/maksimkurb/keen-dnsset/src/internal/nft"
	"github.com/maksimkurb/keen-dnsset/src/internal/utils"
)

const (
	minColumns = 5
	maxColumns = 6
)

var (
	ErrMissingColumn = errors.New("missing column")
	ErrEmptyColumn   = errors.New("empty column")
	ErrExtraColumn   = errors.New("too many columns")
)

// LineError reports a malformed rule together with its 1-based line number.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// parseRule splits a rule line into its normalised domain pattern and target.
func parseRule(line string) (string, *nft.Target, error) {
	cols := strings.Split(line, ",")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}

	if len(cols) < minColumns {
		names := []string{"domain", "family", "table", "set", "element type"}
		return "", nil, fmt.Errorf("%w: %s", ErrMissingColumn, names[len(cols)])
	}
	if len(cols) > maxColumns {
		return "", nil, fmt.Errorf("%w: got %d, want at most %d", ErrExtraColumn, len(cols), maxColumns)
	}

	family, err := nft.ParseFamily(cols[1])
	if err != nil {
		return "", nil, err
	}

	if cols[2] == "" {
		return "", nil, fmt.Errorf("%w: table", ErrEmptyColumn)
	}
	if cols[3] == "" {
		return "", nil, fmt.Errorf("%w: set", ErrEmptyColumn)
	}

	elemType, err := nft.ParseSetElemType(cols[4])
	if err != nil {
		return "", nil, err
	}

	var timeout string
	if len(cols) > minColumns {
		timeout = cols[5]
	}

	target := &nft.Target{
		Family:   family,
		Table:    cols[2],
		Set:      cols[3],
		ElemType: elemType,
		Timeout:  timeout,
	}
	return utils.NormalizeDomain(cols[0]), target, nil
}
