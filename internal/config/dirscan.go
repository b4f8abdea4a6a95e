package config

import (
	"time"

	"github.com/spf13/viper"
)

// Directory scanner defaults.
const (
	DefaultDirScanWorkers     = 2
	DefaultDirScanTimeout     = 30 * time.Second
	DefaultDirPathDelay       = time.Second
	DefaultDirBodyCap         = 4 << 10 // 4 KB
	DefaultDirMaxConsecFail   = 3
	DefaultDirLockExtendEvery = 20
)

// DirScanConfig holds directory-scan worker settings.
type DirScanConfig struct {
	Workers         int
	RequestTimeout  time.Duration
	PathDelay       time.Duration
	BodyCap         int64
	MaxConsecFail   int
	LockExtendEvery int
}

// LoadDirScan loads directory scanner configuration from viper and environment variables.
func LoadDirScan(v *viper.Viper) DirScanConfig {
	return DirScanConfig{
		Workers:         getInt("DIRSCAN_WORKERS", "dirscan.workers", DefaultDirScanWorkers, v),
		RequestTimeout:  getDuration("DIRSCAN_TIMEOUT", "dirscan.timeout", DefaultDirScanTimeout, v),
		PathDelay:       getDuration("DIRSCAN_PATH_DELAY", "dirscan.path_delay", DefaultDirPathDelay, v),
		BodyCap:         int64(getInt("DIRSCAN_BODY_CAP", "dirscan.body_cap", DefaultDirBodyCap, v)),
		MaxConsecFail:   getInt("DIRSCAN_MAX_CONSEC_FAIL", "dirscan.max_consecutive_failures", DefaultDirMaxConsecFail, v),
		LockExtendEvery: getInt("DIRSCAN_LOCK_EXTEND_EVERY", "dirscan.lock_extend_every", DefaultDirLockExtendEvery, v),
	}
}
