//go:build !unix

package jsonstore

import "os"

func fileVersion(fi os.FileInfo) version {
	return version{mtime: fi.ModTime().UnixNano(), size: fi.Size()}
}
