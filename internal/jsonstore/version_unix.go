//go:build unix

package jsonstore

import (
	"os"
	"syscall"
)

func fileVersion(fi os.FileInfo) version {
	v := version{mtime: fi.ModTime().UnixNano(), size: fi.Size()}
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		v.inode = uint64(st.Ino) //nolint:unconvert // Ino is uint32 on some platforms
	}
	return v
}
