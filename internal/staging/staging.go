// Package staging handles per-job working directories: copying inputs to a
// location the backend can see, verifying output artifacts, and cleaning up.
//
// Staging directories are never shared between concurrently running jobs,
// even on the same worker; every job gets its own scoped directory.
package staging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"simdispatch/internal/apperrors"
)

// ScopedDir creates a unique staging directory for one job under root.
// The job ID is kept in the name so a directory left behind by autoclean=false
// is attributable.
func ScopedDir(root, jobID string) (string, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", apperrors.Internal("staging.mkdir", err)
	}
	dir := filepath.Join(root, fmt.Sprintf("job-%s-%s", jobID, uuid.NewString()[:8]))
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", apperrors.Internal("staging.mkdir", err)
	}
	return dir, nil
}

// CopyDir recursively copies the contents of src into dst. dst must exist.
// Symlinks are not followed; only regular files and directories are staged.
func CopyDir(dst, src string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return apperrors.Internal("staging.copy", err)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			if err := os.MkdirAll(dstPath, 0o755); err != nil {
				return apperrors.Internal("staging.copy", err)
			}
			if err := CopyDir(dstPath, srcPath); err != nil {
				return err
			}
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}
		if err := copyFile(dstPath, srcPath); err != nil {
			return apperrors.Internal("staging.copy", err)
		}
	}
	return nil
}

// CopyFile copies a single file, creating parent directories as needed.
func CopyFile(dst, src string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return apperrors.Internal("staging.copy", err)
	}
	if err := copyFile(dst, src); err != nil {
		return apperrors.Internal("staging.copy", err)
	}
	return nil
}

func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// VerifyArtifact checks that the expected output artifact exists in dir and
// is a non-empty regular file. Returns its absolute path, or a silent-failure
// error when absent. This is the mandatory post-condition for reporting
// success: a zero exit status alone proves nothing.
func VerifyArtifact(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return "", apperrors.NoArtifact(name)
	}
	if info.IsDir() || info.Size() == 0 {
		return "", apperrors.NoArtifact(name)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", apperrors.Internal("staging.verify", err)
	}
	return abs, nil
}

// Cleanup removes a staging directory. Best effort; a directory that cannot
// be removed is logged by the caller, never turned into a job failure.
func Cleanup(dir string) error {
	if dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}
