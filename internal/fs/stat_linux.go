//go:build linux

package fs

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"golang.org/x/sys/unix"

	"havit-go/internal/catalog"
)

// statTimes reads the access and birth times of path with statx(2).
// Filesystems that do not record a birth time, and kernels without statx,
// report ErrMetadataUnavailable.
func statTimes(path string, _ fs.FileInfo) (atime, btime time.Time, err error) {
	var stx unix.Statx_t
	err = unix.Statx(unix.AT_FDCWD, path, unix.AT_STATX_SYNC_AS_STAT, unix.STATX_ATIME|unix.STATX_BTIME, &stx)
	if errors.Is(err, unix.ENOSYS) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: statx not supported by this kernel", catalog.ErrMetadataUnavailable)
	}
	if err != nil {
		return time.Time{}, time.Time{}, &fs.PathError{Op: "statx", Path: path, Err: err}
	}
	if stx.Mask&unix.STATX_BTIME == 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: filesystem does not record a creation time", catalog.ErrMetadataUnavailable)
	}
	if stx.Mask&unix.STATX_ATIME == 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: no access time", catalog.ErrMetadataUnavailable)
	}
	atime = time.Unix(stx.Atime.Sec, int64(stx.Atime.Nsec))
	btime = time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec))
	return atime, btime, nil
}
