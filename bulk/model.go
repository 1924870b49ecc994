package bulk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/adamwoolhether/xnatzip/internal/validate"
)

var (
	ErrConfiguration     = errors.New("configuration error")
	ErrDestinationExists = errors.New("destination exists")
	ErrEmptyCollection   = errors.New("nothing to download")
)

// Collection is the remote resource collection a bulk download is made
// on behalf of. The downloader only reads its identity and invokes its
// fetch; it never mutates it.
type Collection interface {
	// BasePath is the hierarchical path identifying the collection,
	// e.g. /projects/p/subjects/s/experiments/e/scans.
	BasePath() string

	// Available lists the IDs of the items at this level.
	Available(ctx context.Context) ([]string, error)

	// FetchToFile retrieves uri and writes the response to destPath.
	FetchToFile(ctx context.Context, uri, destPath string) error
}

// Request describes one bulk download.
type Request struct {
	Owner   Collection `json:"owner" validate:"required"`
	DestDir string     `json:"dest_dir" validate:"required"`
	// Name is the archive base name; ".zip" is appended.
	Name string `json:"name" validate:"required"`
	URI  string `json:"uri"`

	Extract   bool `json:"extract"`
	Overwrite bool `json:"overwrite"`
	// RemoveArchive deletes the zip once it has been extracted.
	RemoveArchive bool `json:"remove_archive"`
}

func (r Request) validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var fields validate.FieldErrors
	if !errors.As(err, &fields) {
		return fmt.Errorf("validating request: %w", err)
	}

	msgs := make([]string, len(fields))
	for i, f := range fields {
		switch f.Field {
		case "owner":
			msgs[i] = "must be invoked through a resource-collection object"
		default:
			msgs[i] = f.Field + " " + f.Err
		}
	}

	return &Error{
		Err:    ErrConfiguration,
		Detail: strings.Join(msgs, "; "),
	}
}

// Result reports what a successful download left on disk. Extracted is
// nil unless the archive was extracted; ZipPath is empty once the
// archive has been removed.
type Result struct {
	ZipPath   string
	Extracted []string
}

// Error wraps a bulk sentinel error with detail and, when relevant,
// the path it concerns.
type Error struct {
	Path   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}
