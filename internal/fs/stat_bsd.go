//go:build darwin || freebsd || netbsd

package fs

import (
	"fmt"
	"io/fs"
	"syscall"
	"time"

	"havit-go/internal/catalog"
)

// statTimes reads the access and birth times from the walked FileInfo.
// A birth time of zero (or -1 on FreeBSD) means the filesystem does not
// record one.
func statTimes(_ string, info fs.FileInfo) (atime, btime time.Time, err error) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: expected *syscall.Stat_t, got %T", catalog.ErrMetadataUnavailable, info.Sys())
	}
	birth := st.Birthtimespec
	if birth.Sec < 0 || (birth.Sec == 0 && birth.Nsec == 0) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: filesystem does not record a creation time", catalog.ErrMetadataUnavailable)
	}
	atime = time.Unix(int64(st.Atimespec.Sec), int64(st.Atimespec.Nsec))
	btime = time.Unix(int64(birth.Sec), int64(birth.Nsec))
	return atime, btime, nil
}
