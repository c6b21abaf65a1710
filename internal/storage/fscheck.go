package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrNetworkFilesystem is returned by OpenSQLite for a database path on a
// network mount. SQLite's file locks are not reliable there, and both the
// snapshot store and the journal depend on them.
var ErrNetworkFilesystem = errors.New("sqlite database on network filesystem")

// errFSUnknown means the platform cannot name the filesystem; the check passes.
var errFSUnknown = errors.New("filesystem type unknown on this platform")

// fsTypeFunc names the filesystem holding an existing path.
type fsTypeFunc func(path string) (string, error)

var remoteFSTypes = []string{"afpfs", "cifs", "nfs", "smb2", "smbfs", "webdav"}

func checkLocalDisk(path string) error {
	return checkLocalDiskWith(path, detectFilesystemType)
}

func checkLocalDiskWith(path string, fsType fsTypeFunc) error {
	dir, err := existingAncestor(path)
	if err != nil {
		return err
	}
	name, err := fsType(dir)
	switch {
	case errors.Is(err, errFSUnknown):
		return nil
	case err != nil:
		return fmt.Errorf("detect filesystem of %s: %w", dir, err)
	case isRemoteFS(name):
		return fmt.Errorf("%w: %s is on %s, move the state or journal database to local disk",
			ErrNetworkFilesystem, path, name)
	}
	return nil
}

// existingAncestor returns path itself or its closest parent that exists, so
// a database about to be created is judged by the directory it lands in.
func existingAncestor(path string) (string, error) {
	p, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	for {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", p, err)
		}
		up := filepath.Dir(p)
		if up == p {
			return "", fmt.Errorf("no existing directory above %s", path)
		}
		p = up
	}
}

func isRemoteFS(name string) bool {
	return slices.Contains(remoteFSTypes, strings.ToLower(strings.TrimSpace(name)))
}
