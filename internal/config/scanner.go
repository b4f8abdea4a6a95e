package config

import (
	"time"

	"github.com/spf13/viper"
)

// Port scanner defaults.
const (
	DefaultScanWorkers       = 2
	DefaultScanTimeout       = 10 * time.Second
	DefaultScanMaxConcurrent = 5
	DefaultScanProbeDelay    = 200 * time.Millisecond
	DefaultBannerTimeout     = 5 * time.Second
	DefaultBannerCap         = 4 << 10 // 4 KB
)

// ScannerConfig holds port-scan worker settings.
type ScannerConfig struct {
	Workers       int
	ConnTimeout   time.Duration
	MaxConcurrent int
	ProbeDelay    time.Duration
	BannerTimeout time.Duration
	BannerCap     int64
}

// LoadScanner loads port scanner configuration from viper and environment variables.
func LoadScanner(v *viper.Viper) ScannerConfig {
	return ScannerConfig{
		Workers:       getInt("SCANNER_WORKERS", "scanner.workers", DefaultScanWorkers, v),
		ConnTimeout:   getDuration("SCANNER_TIMEOUT", "scanner.timeout", DefaultScanTimeout, v),
		MaxConcurrent: getInt("SCANNER_MAX_CONCURRENT", "scanner.max_concurrent", DefaultScanMaxConcurrent, v),
		ProbeDelay:    getDuration("SCANNER_PROBE_DELAY", "scanner.probe_delay", DefaultScanProbeDelay, v),
		BannerTimeout: getDuration("SCANNER_BANNER_TIMEOUT", "scanner.banner_timeout", DefaultBannerTimeout, v),
		BannerCap:     int64(getInt("SCANNER_BANNER_CAP", "scanner.banner_cap", DefaultBannerCap, v)),
	}
}
