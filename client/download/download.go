package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Handle streams body to destPath.
//
// contentLength is the size announced by the server, or -1 when it is
// unknown. Archives that XNAT zips on request are sent chunked, so for
// those the size is normally -1: the only completeness signal is a
// clean EOF, and progress is reported as a running byte count. When the
// size is known, a body of any other length is rejected.
//
// The body lands in a hidden temp file in destPath's directory, which
// is renamed over destPath once it is complete and synced. An existing
// destPath is replaced only at that point, so callers that refuse to
// overwrite must check before calling. On error the temp file is
// removed and destPath is unchanged.
func Handle(ctx context.Context, body io.Reader, contentLength int64, destPath string, logger *slog.Logger, optFns ...Option) error {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return fmt.Errorf("applying option: %w", err)
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".xnatzip-dl-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	committed := false
	defer func() {
		if err := tmp.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Error("defer closing temp file", "error", err)
		}
		if committed {
			return
		}
		if err := os.Remove(tmp.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Error("failed to remove temp file", "path", tmp.Name(), "error", err)
		}
	}()

	var dst io.Writer = tmp
	if opts.progress {
		dst = &progressWriter{
			w:         tmp,
			logger:    logger.With("path", destPath),
			total:     contentLength,
			startTime: time.Now(),
		}
	}

	if err := copyBody(ctx, dst, body, contentLength); err != nil {
		return err
	}

	if err := commit(tmp, destPath); err != nil {
		return err
	}
	committed = true

	return nil
}

// copyBody copies body into dst until EOF or until ctx is done, then
// checks the byte count against contentLength when one was announced.
func copyBody(ctx context.Context, dst io.Writer, body io.Reader, contentLength int64) error {
	n, err := io.Copy(dst, &contextReader{ctx: ctx, r: body})
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrDownloadCancelled, err)
	case err != nil:
		return fmt.Errorf("copying file body: %w", err)
	case contentLength >= 0 && n != contentLength:
		return &Error{
			Err:    ErrContentLengthMismatch,
			Detail: fmt.Sprintf("expected %d bytes, got %d", contentLength, n),
		}
	}

	return nil
}

// commit flushes tmp and moves it to destPath.
func commit(tmp *os.File, destPath string) error {
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}

// contextReader stops a copy once ctx is done, even if the underlying
// reader would keep producing data.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
