//go:build linux

package storage

import (
	"fmt"
	"syscall"
)

// statfs(2) f_type values of the remote filesystems in remoteFSTypes.
var remoteMagic = map[int64]string{
	0x6969:     "nfs",
	0x517B:     "smbfs",
	0xFF534D42: "cifs",
	0xFE534D42: "smb2",
}

func detectFilesystemType(path string) (string, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return "", fmt.Errorf("statfs: %w", err)
	}
	magic := int64(st.Type)
	if name, ok := remoteMagic[magic]; ok {
		return name, nil
	}
	return fmt.Sprintf("magic:%#x", magic), nil
}
