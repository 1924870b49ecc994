package archive

import (
	"errors"
	"fmt"
)

var (
	ErrWildcardPath      = errors.New("path contains wildcards")
	ErrExtractionBlocked = errors.New("extraction blocked")
	ErrUnsafeMember      = errors.New("archive member escapes destination")
)

// BlockedError names the first archive member that failed a Check.
type BlockedError struct {
	Archive string
	Member  string
	Desc    string
	Err     error
}

func (e *BlockedError) Error() string {
	if e.Archive == "" {
		return fmt.Sprintf("%v: file %s failed the following test: %s", e.Err, e.Member, e.Desc)
	}
	return fmt.Sprintf("%v: unable to extract %s because file %s failed the following test: %s", e.Err, e.Archive, e.Member, e.Desc)
}

func (e *BlockedError) Unwrap() error {
	return e.Err
}
