// Package bulk downloads a server-side zip bundle for a resource
// collection and optionally extracts it, refusing to clobber files that
// already exist locally.
package bulk

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adamwoolhether/xnatzip/archive"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Downloader runs bulk downloads. It holds no per-download state and
// may be reused for any number of sequential calls.
type Downloader struct {
	logger       *slog.Logger
	tracer       trace.Tracer
	requireItems bool
}

// New creates a Downloader. Without options it logs to slog.Default()
// and traces with a no-op tracer.
func New(optFns ...Option) (*Downloader, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying bulk option: %w", err)
		}
	}

	d := &Downloader{
		logger:       slog.Default(),
		tracer:       noop.NewTracerProvider().Tracer("no-op tracer"),
		requireItems: opts.requireItems,
	}
	if opts.logger != nil {
		d.logger = opts.logger
	}
	if opts.tracer != nil {
		d.tracer = opts.tracer
	}

	return d, nil
}

// Download fetches owner's bundle at uri into destDir/name.zip using a
// default Downloader. See [Downloader.Download].
func Download(ctx context.Context, destDir, name, uri string, owner Collection, extract, overwrite bool) (*Result, error) {
	d, err := New()
	if err != nil {
		return nil, err
	}

	return d.Download(ctx, Request{
		Owner:     owner,
		DestDir:   destDir,
		Name:      name,
		URI:       uri,
		Extract:   extract,
		Overwrite: overwrite,
	})
}

// Download fetches req.URI through req.Owner into DestDir/Name.zip.
//
// Unless Overwrite is set an existing zip fails the call with
// ErrDestinationExists before anything is fetched, and extraction is
// refused with archive.ErrExtractionBlocked if any member would replace
// an existing file. A blocked extraction writes nothing and leaves the
// zip in place. Errors from FetchToFile are returned unchanged.
func (d *Downloader) Download(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	zipPath := filepath.Join(req.DestDir, req.Name+".zip")
	logger := d.logger.With("download_id", id, "path", zipPath)

	ctx, span := d.tracer.Start(ctx, "bulk.download", trace.WithAttributes(
		attribute.String("download.id", id),
		attribute.String("download.path", zipPath),
		attribute.String("download.collection", req.Owner.BasePath()),
		attribute.Bool("download.extract", req.Extract),
		attribute.Bool("download.overwrite", req.Overwrite),
	))
	defer span.End()

	res, err := d.download(ctx, req, zipPath, logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("download.extracted", len(res.Extracted)))

	return res, nil
}

func (d *Downloader) download(ctx context.Context, req Request, zipPath string, logger *slog.Logger) (*Result, error) {
	if !req.Overwrite {
		_, err := os.Stat(zipPath)
		switch {
		case err == nil:
			return nil, &Error{
				Path:   zipPath,
				Detail: fmt.Sprintf("unable to download to %s because this file already exists", zipPath),
				Err:    ErrDestinationExists,
			}
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("checking destination: %w", err)
		}
	}

	items, err := req.Owner.Available(ctx)
	if err != nil {
		logger.Error("listing available resources", "error", err)
		return nil, fmt.Errorf("listing available resources: %w", err)
	}
	if len(items) == 0 {
		if d.requireItems {
			return nil, &Error{
				Path:   req.Owner.BasePath(),
				Detail: fmt.Sprintf("no resources at %s", req.Owner.BasePath()),
				Err:    ErrEmptyCollection,
			}
		}
		logger.Warn("collection reports no resources", "collection", req.Owner.BasePath())
	}

	logger.Info("fetching archive", "uri", req.URI, "items", len(items))
	if err := req.Owner.FetchToFile(ctx, req.URI, zipPath); err != nil {
		logger.Error("fetching archive", "uri", req.URI, "error", err)
		return nil, err
	}

	var paths []string
	err = withArchive(zipPath, logger, func(zr *zip.Reader) error {
		if !req.Extract {
			return nil
		}

		check := archive.NotExist()
		if req.Overwrite {
			check = archive.Unchecked()
		}

		var err error
		paths, err = archive.Extract(zr, req.DestDir, check)
		return err
	})
	if err != nil {
		var blocked *archive.BlockedError
		if errors.As(err, &blocked) {
			blocked.Archive = zipPath
		}
		logger.Error("extracting archive", "error", err)
		return nil, err
	}

	res := &Result{ZipPath: zipPath, Extracted: paths}
	if req.Extract {
		logger.Info("archive extracted", "files", len(paths))

		if req.RemoveArchive {
			if err := os.Remove(zipPath); err != nil {
				return nil, fmt.Errorf("removing archive: %w", err)
			}
			res.ZipPath = ""
		}
	}

	return res, nil
}

// withArchive opens the zip at path for the duration of fn.
func withArchive(path string, logger *slog.Logger, fn func(*zip.Reader) error) error {
	rc, err := zip.OpenReader(path)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return fmt.Errorf("opening archive %s: %w", path, err)
	}
	defer func() {
		if err := rc.Close(); err != nil {
			logger.Error("failed to close archive", "error", err)
		}
	}()

	return fn(&rc.Reader)
}
