package preflight

import (
	"fmt"
	"math"
	"syscall"

	"github.com/Aman-CERP/reposcout/internal/ui"
)

// MinDiskSpaceBytes covers a full repository cache, the documentation
// index and the telemetry database for a mid-sized GitLab instance.
const MinDiskSpaceBytes int64 = 100 << 20

// CheckDiskSpace reports the space left on the filesystem holding cacheDir.
func (c *Checker) CheckDiskSpace(cacheDir string) CheckResult {
	res := CheckResult{Name: "disk_space", Required: true}

	free, err := freeBytes(cacheDir)
	if err != nil {
		res.Status = StatusFail
		res.Message = fmt.Sprintf("cannot stat %s: %v", cacheDir, err)
		return res
	}

	res.Message = fmt.Sprintf("%s free on cache volume (need %s)",
		ui.FormatBytes(free), ui.FormatBytes(MinDiskSpaceBytes))
	if free < MinDiskSpaceBytes {
		res.Status = StatusFail
		res.Details = "Point cache.dir at a larger volume or run 'reposcout cache clear'"
		return res
	}
	res.Status = StatusPass
	return res
}

func freeBytes(dir string) (int64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(dir, &st); err != nil {
		return 0, err
	}
	free := st.Bavail * uint64(st.Bsize) //nolint:gosec // Bsize is positive
	if free > math.MaxInt64 {
		return math.MaxInt64, nil
	}
	return int64(free), nil
}
