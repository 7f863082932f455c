package staging

import (
	"path/filepath"
	"strings"

	"simdispatch/internal/apperrors"
)

// PathMap translates between the coordinator-visible root of a shared
// staging location and the path under which the backend sees the same
// content. The mapping is configuration, never inferred.
//
// Example: the coordinator mounts a share at /mnt/simshare while the remote
// Windows host sees it as D:\simshare; LocalRoot=/mnt/simshare,
// RemoteRoot=D:\simshare, RemoteSep=`\`.
type PathMap struct {
	LocalRoot  string `yaml:"localRoot"`  // coordinator-visible root
	RemoteRoot string `yaml:"remoteRoot"` // same root as the backend sees it
	RemoteSep  string `yaml:"remoteSep"`  // backend path separator, default "/"
}

// Validate checks the mapping is usable.
func (m PathMap) Validate() error {
	if m.LocalRoot == "" {
		return apperrors.Config("share.localRoot", "coordinator-visible staging root is required")
	}
	if m.RemoteRoot == "" {
		return apperrors.Config("share.remoteRoot", "backend-visible staging root is required")
	}
	return nil
}

// Rebase converts a coordinator-visible path under LocalRoot into the
// backend's view of the same path.
func (m PathMap) Rebase(local string) (string, error) {
	rel, err := filepath.Rel(m.LocalRoot, local)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", apperrors.Config("share", "path "+local+" is outside the staging root "+m.LocalRoot)
	}

	sep := m.RemoteSep
	if sep == "" {
		sep = "/"
	}
	if rel == "." {
		return m.RemoteRoot, nil
	}
	parts := strings.Split(rel, string(filepath.Separator))
	return m.RemoteRoot + sep + strings.Join(parts, sep), nil
}
