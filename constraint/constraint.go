// Package constraint parses the resource-type filters used to narrow a
// bulk download, e.g. "T1,T2" for two scan types.
package constraint

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// All is the sentinel token meaning unconstrained. It must be used alone.
const All = "ALL"

// ErrInvalidCombination is returned when All is combined with other tokens.
var ErrInvalidCombination = errors.New("invalid constraint combination")

// List is an ordered set of distinct, non-empty constraint tokens.
type List []string

// Parse splits raw on commas, trims each token, drops empty ones and
// removes duplicates keeping the first occurrence.
func Parse(raw string) (List, error) {
	var list List
	for tok := range strings.SplitSeq(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" || slices.Contains(list, tok) {
			continue
		}
		list = append(list, tok)
	}

	if len(list) > 1 && slices.Contains(list, All) {
		return nil, fmt.Errorf("%w: %q must be used alone, got %q", ErrInvalidCombination, All, list.String())
	}

	return list, nil
}

// String joins the tokens with commas, the form Parse accepts.
func (l List) String() string {
	return strings.Join(l, ",")
}

// IsAll reports whether the list is the unconstrained sentinel.
func (l List) IsAll() bool {
	return len(l) == 1 && l[0] == All
}

// Descriptor pairs a data format (e.g. DICOM, NIFTI) with the
// constraints selecting which resources to bundle.
type Descriptor struct {
	Format      string
	Constraints List
}

// NewDescriptor parses raw into a Descriptor. An empty format means All.
func NewDescriptor(raw, format string) (Descriptor, error) {
	list, err := Parse(raw)
	if err != nil {
		return Descriptor{}, err
	}

	format = strings.TrimSpace(format)
	if format == "" {
		format = All
	}

	return Descriptor{Format: format, Constraints: list}, nil
}
