//go:build darwin

package storage

import (
	"bytes"
	"fmt"
	"syscall"
)

func detectFilesystemType(path string) (string, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return "", fmt.Errorf("statfs: %w", err)
	}
	raw := make([]byte, len(st.Fstypename))
	for i, c := range st.Fstypename {
		raw[i] = byte(c)
	}
	name, _, _ := bytes.Cut(raw, []byte{0})
	return string(name), nil
}
