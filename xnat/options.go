package xnat

import (
	"errors"

	"github.com/adamwoolhether/xnatzip/bulk"
	"github.com/adamwoolhether/xnatzip/client"
)

// Option is a functional option for configuring an [Interface] via [New].
type Option func(*options) error

type options struct {
	client     *client.Client
	downloader *bulk.Downloader
}

// WithClient sets the transport used for listings and archive fetches.
func WithClient(c *client.Client) Option {
	return func(opts *options) error {
		if c == nil {
			return errors.New("client must not be nil")
		}
		opts.client = c
		return nil
	}
}

// WithDownloader sets the downloader used by [Collection.Download].
func WithDownloader(d *bulk.Downloader) Option {
	return func(opts *options) error {
		if d == nil {
			return errors.New("downloader must not be nil")
		}
		opts.downloader = d
		return nil
	}
}

// DownloadOption is a functional option for [Collection.Download].
type DownloadOption func(*downloadOpts)

type downloadOpts struct {
	types         string
	format        string
	name          string
	extract       bool
	overwrite     bool
	removeArchive bool
}

// WithTypes restricts the bundle to the comma separated resource types,
// e.g. "T1,T2". The default is "ALL".
func WithTypes(raw string) DownloadOption {
	return func(opts *downloadOpts) {
		opts.types = raw
	}
}

// WithFormat restricts the bundle to one resource format such as
// DICOM or NIFTI. The default is "ALL".
func WithFormat(format string) DownloadOption {
	return func(opts *downloadOpts) {
		opts.format = format
	}
}

// WithName overrides the archive base name derived from the
// collection path, kind and types.
func WithName(name string) DownloadOption {
	return func(opts *downloadOpts) {
		opts.name = name
	}
}

// WithExtract unpacks the archive into the destination directory.
func WithExtract() DownloadOption {
	return func(opts *downloadOpts) {
		opts.extract = true
	}
}

// WithOverwrite replaces an existing archive and existing extracted files.
func WithOverwrite() DownloadOption {
	return func(opts *downloadOpts) {
		opts.overwrite = true
	}
}

// WithRemoveArchive deletes the zip after a successful extraction.
func WithRemoveArchive() DownloadOption {
	return func(opts *downloadOpts) {
		opts.removeArchive = true
	}
}
