package staging

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"simdispatch/internal/apperrors"
)

func TestScopedDirUniquePerJob(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	a, err := ScopedDir(root, "1043")
	if err != nil {
		t.Fatalf("ScopedDir() error: %v", err)
	}
	b, err := ScopedDir(root, "1043")
	if err != nil {
		t.Fatalf("ScopedDir() error: %v", err)
	}

	if a == b {
		t.Error("two scoped dirs for the same job ID must not collide")
	}
	if !strings.Contains(filepath.Base(a), "1043") {
		t.Errorf("scoped dir %q should embed the job ID", a)
	}
}

func TestCopyDirRecursive(t *testing.T) {
	t.Parallel()
	src := t.TempDir()
	dst := t.TempDir()

	if err := os.MkdirAll(filepath.Join(src, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "plan.inp"), []byte("deck"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "sub", "mesh.dat"), []byte("mesh"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyDir(dst, src); err != nil {
		t.Fatalf("CopyDir() error: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dst, "sub", "mesh.dat"))
	if err != nil {
		t.Fatalf("nested file not copied: %v", err)
	}
	if string(got) != "mesh" {
		t.Errorf("copied content = %q, want %q", got, "mesh")
	}
}

func TestVerifyArtifact(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	// Absent artifact is a silent failure, not a generic error.
	if _, err := VerifyArtifact(dir, "results.out"); !errors.Is(err, apperrors.ErrNoArtifact) {
		t.Errorf("missing artifact: got %v, want ErrNoArtifact", err)
	}

	// Empty artifact still counts as absent output.
	if err := os.WriteFile(filepath.Join(dir, "empty.out"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := VerifyArtifact(dir, "empty.out"); !errors.Is(err, apperrors.ErrNoArtifact) {
		t.Errorf("empty artifact: got %v, want ErrNoArtifact", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "results.out"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	path, err := VerifyArtifact(dir, "results.out")
	if err != nil {
		t.Fatalf("VerifyArtifact() error: %v", err)
	}
	if !filepath.IsAbs(path) {
		t.Errorf("expected absolute path, got %q", path)
	}
}

func TestPathMapRebase(t *testing.T) {
	t.Parallel()

	m := PathMap{LocalRoot: "/mnt/simshare", RemoteRoot: `D:\simshare`, RemoteSep: `\`}

	tests := []struct {
		name    string
		local   string
		want    string
		wantErr bool
	}{
		{"nested", "/mnt/simshare/job-1043-abc/plan.inp", `D:\simshare\job-1043-abc\plan.inp`, false},
		{"root itself", "/mnt/simshare", `D:\simshare`, false},
		{"outside root", "/tmp/elsewhere", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := m.Rebase(tt.local)
			if tt.wantErr {
				if !errors.Is(err, apperrors.ErrConfig) {
					t.Errorf("got %v, want config error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Rebase() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Rebase() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPathMapValidate(t *testing.T) {
	t.Parallel()

	if err := (PathMap{RemoteRoot: "D:"}).Validate(); !errors.Is(err, apperrors.ErrConfig) {
		t.Error("missing local root should be a config error")
	}
	if err := (PathMap{LocalRoot: "/mnt"}).Validate(); !errors.Is(err, apperrors.ErrConfig) {
		t.Error("missing remote root should be a config error")
	}
	if err := (PathMap{LocalRoot: "/mnt", RemoteRoot: "/mnt"}).Validate(); err != nil {
		t.Errorf("valid mapping rejected: %v", err)
	}
}
