// Package archive names downloaded bundles and extracts them without
// clobbering what is already on disk.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

// Check gates extraction of a single archive member into destDir.
// Desc is reported when Run rejects a member.
type Check struct {
	Run  func(member, destDir string) bool
	Desc string
}

// Unchecked accepts every member.
func Unchecked() Check {
	return Check{
		Run: func(string, string) bool { return true },
	}
}

// NotExist rejects members that would replace an existing path.
func NotExist() Check {
	return Check{
		Run: func(member, destDir string) bool {
			_, err := os.Lstat(filepath.Join(destDir, filepath.FromSlash(member)))
			return errors.Is(err, fs.ErrNotExist)
		},
		Desc: "file does not exist in the destination directory",
	}
}

// Extract writes every member of zr under destDir, but only once all
// of them have passed check. It returns the extracted paths in archive
// order. When any member fails nothing is written. A file member named
// twice is blocked whatever the check.
//
// If writing fails partway, the files already written are removed.
// Directories created on the way are left in place.
func Extract(zr *zip.Reader, destDir string, check Check) ([]string, error) {
	if check.Run == nil {
		check = Unchecked()
	}

	seen := make(map[string]struct{}, len(zr.File))
	for _, f := range zr.File {
		if !filepath.IsLocal(filepath.FromSlash(f.Name)) {
			return nil, &Error{Err: ErrUnsafeMember, Detail: f.Name}
		}
		if !check.Run(f.Name, destDir) {
			return nil, &BlockedError{Member: f.Name, Desc: check.Desc, Err: ErrExtractionBlocked}
		}

		if f.FileInfo().IsDir() {
			continue
		}
		target := filepath.Join(destDir, filepath.FromSlash(f.Name))
		if _, ok := seen[target]; ok {
			return nil, &BlockedError{Member: f.Name, Desc: uniqueDesc, Err: ErrExtractionBlocked}
		}
		seen[target] = struct{}{}
	}

	paths := make([]string, 0, len(zr.File))
	var written []string
	for _, f := range zr.File {
		target := filepath.Join(destDir, filepath.FromSlash(f.Name))
		if err := extractFile(f, target); err != nil {
			removeAll(written)
			return nil, fmt.Errorf("extracting %s: %w", f.Name, err)
		}
		paths = append(paths, target)
		if !f.FileInfo().IsDir() {
			written = append(written, target)
		}
	}

	return paths, nil
}

// uniqueDesc describes the implicit check that no file member repeats.
const uniqueDesc = "file appears only once in the archive"

// removeAll deletes the files of an extraction that failed partway.
func removeAll(files []string) {
	for _, f := range slices.Backward(files) {
		_ = os.Remove(f)
	}
}

func extractFile(f *zip.File, target string) error {
	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening member: %w", err)
	}
	defer src.Close()

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(target)
		return fmt.Errorf("copying member body: %w", err)
	}

	if err := dst.Close(); err != nil {
		return fmt.Errorf("closing file: %w", err)
	}

	return nil
}
