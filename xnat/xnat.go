// Package xnat exposes the resource collections of an XNAT server that
// support bulk download: the scans, assessors and reconstructions of
// an experiment.
package xnat

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/adamwoolhether/xnatzip/archive"
	"github.com/adamwoolhether/xnatzip/bulk"
	"github.com/adamwoolhether/xnatzip/client"
	"github.com/adamwoolhether/xnatzip/constraint"
)

// restPrefix is where the REST API is rooted on the server.
const restPrefix = "/data"

// Interface is a connection to one XNAT server.
type Interface struct {
	server     *url.URL
	client     *client.Client
	downloader *bulk.Downloader
}

// New creates an Interface for serverURL, e.g. https://central.xnat.org.
func New(serverURL string, optFns ...Option) (*Interface, error) {
	server, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parsing server url: %w", err)
	}
	if server.Scheme == "" || server.Host == "" {
		return nil, fmt.Errorf("server url %q must include scheme and host", serverURL)
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying xnat option: %w", err)
		}
	}

	intf := &Interface{
		server:     server,
		client:     opts.client,
		downloader: opts.downloader,
	}

	if intf.client == nil {
		if intf.client, err = client.Build(); err != nil {
			return nil, fmt.Errorf("building client: %w", err)
		}
	}

	if intf.downloader == nil {
		if intf.downloader, err = bulk.New(bulk.WithLogger(intf.client.Logger())); err != nil {
			return nil, fmt.Errorf("building downloader: %w", err)
		}
	}

	return intf, nil
}

// Collection returns the collection of kind rooted at basePath.
func (i *Interface) Collection(basePath string, kind Kind) *Collection {
	return &Collection{
		intf: i,
		base: "/" + strings.Trim(basePath, "/"),
		kind: kind,
	}
}

// Scans returns the scans of an experiment.
func (i *Interface) Scans(project, subject, experiment string) *Collection {
	return i.Collection(experimentPath(project, subject, experiment, "scans"), KindScans)
}

// Assessors returns the assessors of an experiment.
func (i *Interface) Assessors(project, subject, experiment string) *Collection {
	return i.Collection(experimentPath(project, subject, experiment, "assessors"), KindAssessors)
}

// Reconstructions returns the reconstructions of an experiment.
func (i *Interface) Reconstructions(project, subject, experiment string) *Collection {
	return i.Collection(experimentPath(project, subject, experiment, "reconstructions"), KindReconstructions)
}

func experimentPath(project, subject, experiment, level string) string {
	return path.Join("/projects", project, "subjects", subject, "experiments", experiment, level)
}

// resolve maps a collection-relative uri, which may carry a query,
// onto the server's REST root.
func (i *Interface) resolve(uri string) (*url.URL, error) {
	ref, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parsing uri %q: %w", uri, err)
	}

	u := *i.server
	u.Path = path.Join(i.server.Path, restPrefix, ref.Path)
	u.RawPath = ""
	u.RawQuery = ref.RawQuery

	return &u, nil
}

// Collection is one level of the resource hierarchy that the server can
// bundle into a single zip.
type Collection struct {
	intf *Interface
	base string
	kind Kind
}

// BasePath returns the collection's path below the REST root.
func (c *Collection) BasePath() string {
	return c.base
}

// Kind returns the sort of collection.
func (c *Collection) Kind() Kind {
	return c.kind
}

// Available lists the IDs of the items in the collection.
func (c *Collection) Available(ctx context.Context) ([]string, error) {
	u, err := c.intf.resolve(c.base + "?format=json")
	if err != nil {
		return nil, err
	}

	var rs ResultSet
	if err := c.intf.client.GetJSON(ctx, u, &rs); err != nil {
		return nil, fmt.Errorf("listing %s: %w", c.base, err)
	}

	return rs.IDs(), nil
}

// FetchToFile streams uri, relative to the REST root, to destPath.
func (c *Collection) FetchToFile(ctx context.Context, uri, destPath string) error {
	u, err := c.intf.resolve(uri)
	if err != nil {
		return err
	}

	return c.intf.client.Download(ctx, u, destPath)
}

// Download bundles the collection on the server and saves it as a zip
// in destDir, optionally extracting it. See [bulk.Downloader.Download]
// for the overwrite rules.
func (c *Collection) Download(ctx context.Context, destDir string, optFns ...DownloadOption) (*bulk.Result, error) {
	opts := downloadOpts{types: constraint.All, format: constraint.All}
	for _, opt := range optFns {
		opt(&opts)
	}

	desc, err := constraint.NewDescriptor(opts.types, opts.format)
	if err != nil {
		return nil, err
	}
	if len(desc.Constraints) == 0 {
		desc.Constraints = constraint.List{constraint.All}
	}

	uri, err := c.archiveURI(desc)
	if err != nil {
		return nil, err
	}

	name := opts.name
	if name == "" {
		if name, err = archive.Name(c.base, desc.Constraints, string(c.kind)); err != nil {
			return nil, err
		}
	}

	return c.intf.downloader.Download(ctx, bulk.Request{
		Owner:         c,
		DestDir:       destDir,
		Name:          name,
		URI:           uri,
		Extract:       opts.extract,
		Overwrite:     opts.overwrite,
		RemoveArchive: opts.removeArchive,
	})
}

// archiveURI is the request that makes the server zip every file of
// the selected types and format. Each type and the format are escaped
// so that resolve decodes them back to the same segments.
func (c *Collection) archiveURI(desc constraint.Descriptor) (string, error) {
	types := make([]string, len(desc.Constraints))
	for i, t := range desc.Constraints {
		seg, err := escapeSegment(t)
		if err != nil {
			return "", err
		}
		types[i] = seg
	}

	format, err := escapeSegment(desc.Format)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/%s/resources/%s/files?format=zip", c.base, strings.Join(types, ","), format), nil
}

// escapeSegment rejects values that path cleaning would collapse or
// split, and escapes the rest.
func escapeSegment(s string) (string, error) {
	if s == "" || s == "." || s == ".." || strings.Contains(s, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidSegment, s)
	}
	return url.PathEscape(s), nil
}
