package archive

import (
	"fmt"
	"strings"

	"github.com/adamwoolhether/xnatzip/constraint"
)

// Name derives the default archive base name (no extension) for a
// bundle of kind drawn from basePath and narrowed by constraints.
//
// basePath alternates category labels and identifiers, and only the
// identifiers are kept. For "/projects/p/subjects/s/experiments/e/scans",
// kind "Scans" and constraints [T1 T2] the name is "p_s_e_Scans_T1_T2".
func Name(basePath string, constraints constraint.List, kind string) (string, error) {
	if hasWildcard(basePath) {
		return "", &Error{
			Err:    ErrWildcardPath,
			Detail: basePath,
		}
	}

	segments := strings.Split(strings.TrimPrefix(basePath, "/"), "/")

	parts := make([]string, 0, len(segments)/2+1+len(constraints))
	for i := 1; i < len(segments); i += 2 {
		parts = append(parts, segments[i])
	}
	parts = append(parts, kind)
	parts = append(parts, constraints...)

	return strings.Join(parts, "_"), nil
}

func hasWildcard(path string) bool {
	return strings.Contains(strings.ToUpper(path), "%2A") || strings.Contains(path, "*")
}

// Error wraps an archive sentinel error with detail.
type Error struct {
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}
