package xnat_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/adamwoolhether/xnatzip/archive"
	"github.com/adamwoolhether/xnatzip/bulk"
	"github.com/adamwoolhether/xnatzip/client"
	"github.com/adamwoolhether/xnatzip/constraint"
	"github.com/adamwoolhether/xnatzip/xnat"
	"github.com/google/go-cmp/cmp"
)

const scansPath = "/data/projects/p/subjects/s/experiments/e/scans"

type fakeServer struct {
	*httptest.Server

	zips      atomic.Int32
	lastQuery atomic.Value // string
}

func newFakeServer(t *testing.T, rows string, members map[string]string) *fakeServer {
	t.Helper()

	bundle := zipBytes(t, members)
	fs := &fakeServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+scansPath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") != "json" {
			http.Error(w, "bad format", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ResultSet":{"totalRecords":"2","Result":`+rows+`}}`)
	})
	mux.HandleFunc("GET "+scansPath+"/{types}/resources/{format}/files", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") != "zip" {
			http.Error(w, "bad format", http.StatusBadRequest)
			return
		}
		fs.zips.Add(1)
		fs.lastQuery.Store(r.PathValue("types") + "|" + r.PathValue("format"))
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(bundle)
	})

	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)

	return fs
}

func zipBytes(t *testing.T, members map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	slices.Sort(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating member %s: %v", name, err)
		}
		if _, err := io.WriteString(w, members[name]); err != nil {
			t.Fatalf("writing member %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip writer: %v", err)
	}

	return buf.Bytes()
}

func newInterface(t *testing.T, serverURL string) *xnat.Interface {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	c, err := client.Build(client.WithLogger(logger))
	if err != nil {
		t.Fatalf("building client: %v", err)
	}

	intf, err := xnat.New(serverURL, xnat.WithClient(c))
	if err != nil {
		t.Fatalf("creating interface: %v", err)
	}
	return intf
}

func TestNew_Validation(t *testing.T) {
	for _, raw := range []string{"", "central.xnat.org", "://bad"} {
		if _, err := xnat.New(raw); err == nil {
			t.Errorf("%q: expected error", raw)
		}
	}

	if _, err := xnat.New("https://central.xnat.org", xnat.WithClient(nil)); err == nil {
		t.Error("expected error for nil client")
	}
	if _, err := xnat.New("https://central.xnat.org", xnat.WithDownloader(nil)); err == nil {
		t.Error("expected error for nil downloader")
	}
}

func TestInterface_Collections(t *testing.T) {
	intf := newInterface(t, "https://xnat.test")

	tests := []struct {
		coll     *xnat.Collection
		wantPath string
		wantKind xnat.Kind
	}{
		{intf.Scans("p", "s", "e"), "/projects/p/subjects/s/experiments/e/scans", xnat.KindScans},
		{intf.Assessors("p", "s", "e"), "/projects/p/subjects/s/experiments/e/assessors", xnat.KindAssessors},
		{intf.Reconstructions("p", "s", "e"), "/projects/p/subjects/s/experiments/e/reconstructions", xnat.KindReconstructions},
		{intf.Collection("projects/p/resources/", "Resources"), "/projects/p/resources", xnat.Kind("Resources")},
	}

	for _, tt := range tests {
		if got := tt.coll.BasePath(); got != tt.wantPath {
			t.Errorf("BasePath() = %q, want %q", got, tt.wantPath)
		}
		if got := tt.coll.Kind(); got != tt.wantKind {
			t.Errorf("Kind() = %q, want %q", got, tt.wantKind)
		}
	}
}

func TestCollection_Available(t *testing.T) {
	srv := newFakeServer(t, `[{"ID":"1","type":"T1"},{"ID":"2","type":"T2"},{"type":"orphan"}]`, nil)
	scans := newInterface(t, srv.URL).Scans("p", "s", "e")

	got, err := scans.Available(t.Context())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"1", "2"}, got); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestCollection_Available_NotFound(t *testing.T) {
	srv := newFakeServer(t, `[]`, nil)
	missing := newInterface(t, srv.URL).Scans("p", "s", "missing")

	_, err := missing.Available(t.Context())
	if !errors.Is(err, client.ErrUnexpectedStatusCode) {
		t.Fatalf("expected ErrUnexpectedStatusCode, got %v", err)
	}
}

func TestCollection_Download(t *testing.T) {
	members := map[string]string{
		"e/scans/1/resources/DICOM/files/a.dcm": "a",
		"e/scans/2/resources/DICOM/files/b.dcm": "b",
	}
	srv := newFakeServer(t, `[{"ID":"1"},{"ID":"2"}]`, members)
	scans := newInterface(t, srv.URL).Scans("p", "s", "e")
	dir := t.TempDir()

	res, err := scans.Download(t.Context(), dir,
		xnat.WithTypes("T1, T2,T1"),
		xnat.WithFormat("DICOM"),
		xnat.WithExtract(),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := srv.lastQuery.Load(); got != "T1,T2|DICOM" {
		t.Errorf("server saw %v, want %q", got, "T1,T2|DICOM")
	}

	if want := filepath.Join(dir, "p_s_e_Scans_T1_T2.zip"); res.ZipPath != want {
		t.Errorf("ZipPath = %q, want %q", res.ZipPath, want)
	}

	want := []string{
		filepath.Join(dir, "e", "scans", "1", "resources", "DICOM", "files", "a.dcm"),
		filepath.Join(dir, "e", "scans", "2", "resources", "DICOM", "files", "b.dcm"),
	}
	if diff := cmp.Diff(want, res.Extracted); diff != "" {
		t.Errorf("extracted paths mismatch (-want +got):\n%s", diff)
	}
}

func TestCollection_Download_Defaults(t *testing.T) {
	srv := newFakeServer(t, `[{"ID":"1"}]`, map[string]string{"a.dcm": "a"})
	scans := newInterface(t, srv.URL).Scans("p", "s", "e")
	dir := t.TempDir()

	res, err := scans.Download(t.Context(), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := srv.lastQuery.Load(); got != "ALL|ALL" {
		t.Errorf("server saw %v, want %q", got, "ALL|ALL")
	}

	want := &bulk.Result{ZipPath: filepath.Join(dir, "p_s_e_Scans_ALL.zip")}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestCollection_Download_SecondCallRefused(t *testing.T) {
	srv := newFakeServer(t, `[{"ID":"1"}]`, map[string]string{"a.dcm": "a"})
	scans := newInterface(t, srv.URL).Scans("p", "s", "e")
	dir := t.TempDir()

	if _, err := scans.Download(t.Context(), dir, xnat.WithName("bundle")); err != nil {
		t.Fatalf("first download: %v", err)
	}

	_, err := scans.Download(t.Context(), dir, xnat.WithName("bundle"))
	if !errors.Is(err, bulk.ErrDestinationExists) {
		t.Fatalf("expected ErrDestinationExists, got %v", err)
	}
	if got := srv.zips.Load(); got != 1 {
		t.Errorf("server built %d archives, want 1", got)
	}

	if _, err := scans.Download(t.Context(), dir, xnat.WithName("bundle"), xnat.WithOverwrite()); err != nil {
		t.Fatalf("overwrite download: %v", err)
	}
	if got := srv.zips.Load(); got != 2 {
		t.Errorf("server built %d archives, want 2", got)
	}
}

func TestCollection_Download_ExtractBlocked(t *testing.T) {
	srv := newFakeServer(t, `[{"ID":"1"}]`, map[string]string{"a.dcm": "server"})
	scans := newInterface(t, srv.URL).Scans("p", "s", "e")
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "a.dcm"), []byte("local"), 0o644); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	_, err := scans.Download(t.Context(), dir, xnat.WithExtract(), xnat.WithRemoveArchive())
	if !errors.Is(err, archive.ErrExtractionBlocked) {
		t.Fatalf("expected ErrExtractionBlocked, got %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "p_s_e_Scans_ALL.zip")); err != nil {
		t.Errorf("expected archive to remain after blocked extraction: %v", err)
	}
}

func TestCollection_Download_RemoveArchive(t *testing.T) {
	srv := newFakeServer(t, `[{"ID":"1"}]`, map[string]string{"a.dcm": "a"})
	scans := newInterface(t, srv.URL).Scans("p", "s", "e")
	dir := t.TempDir()

	res, err := scans.Download(t.Context(), dir, xnat.WithExtract(), xnat.WithRemoveArchive())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.ZipPath != "" {
		t.Errorf("ZipPath = %q, want empty", res.ZipPath)
	}
	if _, err := os.Stat(filepath.Join(dir, "p_s_e_Scans_ALL.zip")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected archive to be removed, stat err: %v", err)
	}
}

func TestCollection_Download_InvalidTypes(t *testing.T) {
	scans := newInterface(t, "https://xnat.test").Scans("p", "s", "e")

	_, err := scans.Download(t.Context(), t.TempDir(), xnat.WithTypes("ALL,T1"))
	if !errors.Is(err, constraint.ErrInvalidCombination) {
		t.Fatalf("expected ErrInvalidCombination, got %v", err)
	}
}

func TestCollection_Download_EscapesSegments(t *testing.T) {
	srv := newFakeServer(t, `[{"ID":"1"}]`, map[string]string{"a.dcm": "a"})
	scans := newInterface(t, srv.URL).Scans("p", "s", "e")

	_, err := scans.Download(t.Context(), t.TempDir(),
		xnat.WithTypes("SAG#1, T?2,%41"),
		xnat.WithFormat("NIFTI 50%"),
		xnat.WithName("bundle"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := srv.lastQuery.Load(); got != "SAG#1,T?2,%41|NIFTI 50%" {
		t.Errorf("server saw %v, want %q", got, "SAG#1,T?2,%41|NIFTI 50%")
	}
}

func TestCollection_Download_InvalidSegment(t *testing.T) {
	tests := []struct {
		name   string
		types  string
		format string
	}{
		{"parent types", "..", "DICOM"},
		{"current types", "T1,.", "DICOM"},
		{"slash in types", "T1,a/b", "DICOM"},
		{"parent format", "T1", ".."},
		{"slash in format", "T1", "DICOM/../x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeServer(t, `[{"ID":"1"}]`, map[string]string{"a.dcm": "a"})
			scans := newInterface(t, srv.URL).Scans("p", "s", "e")
			dir := t.TempDir()

			_, err := scans.Download(t.Context(), dir, xnat.WithTypes(tt.types), xnat.WithFormat(tt.format))
			if !errors.Is(err, xnat.ErrInvalidSegment) {
				t.Fatalf("expected ErrInvalidSegment, got %v", err)
			}
			if got := srv.zips.Load(); got != 0 {
				t.Errorf("server built %d archives, want 0", got)
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatalf("reading dir: %v", err)
			}
			if len(entries) != 0 {
				t.Errorf("expected empty destination, found %d entries", len(entries))
			}
		})
	}
}

func TestCollection_Download_WildcardPath(t *testing.T) {
	coll := newInterface(t, "https://xnat.test").Collection("/projects/p/subjects/%2A/experiments/e/scans", xnat.KindScans)

	_, err := coll.Download(t.Context(), t.TempDir())
	if !errors.Is(err, archive.ErrWildcardPath) {
		t.Fatalf("expected ErrWildcardPath, got %v", err)
	}
}

func TestCollection_Download_TransportError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+scansPath, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ResultSet":{"Result":[{"ID":"1"}]}}`)
	})
	mux.HandleFunc("GET "+scansPath+"/{types}/resources/{format}/files", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "archive service unavailable", http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	scans := newInterface(t, srv.URL).Scans("p", "s", "e")
	dir := t.TempDir()

	_, err := scans.Download(t.Context(), dir, xnat.WithExtract())

	var statusErr *client.UnexpectedStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *client.UnexpectedStatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, http.StatusServiceUnavailable)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty destination, found %d entries", len(entries))
	}
}
