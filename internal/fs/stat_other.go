//go:build !linux && !darwin && !freebsd && !netbsd

package fs

import (
	"fmt"
	"io/fs"
	"runtime"
	"time"

	"havit-go/internal/catalog"
)

func statTimes(string, fs.FileInfo) (time.Time, time.Time, error) {
	return time.Time{}, time.Time{}, fmt.Errorf("%w: access and creation times not supported on %s", catalog.ErrMetadataUnavailable, runtime.GOOS)
}
