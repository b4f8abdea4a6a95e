package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load(viper.New())
	require.NotNil(t, cfg)

	assert.Equal(t, DefaultCrawlWorkers, cfg.Crawler.Workers)
	assert.Equal(t, DefaultCrawlDelay, cfg.Crawler.CrawlDelay)
	assert.Equal(t, DefaultLockLease, cfg.Crawler.LockLease)
	assert.Equal(t, int64(DefaultHTMLStoreCap), cfg.Crawler.HTMLStoreCap)
	assert.Equal(t, DefaultPrefetchBatch, cfg.Crawler.PrefetchBatch)
	assert.Equal(t, DefaultPrefetchLow, cfg.Crawler.PrefetchLow)
}

func TestGetString_Precedence(t *testing.T) {
	v := viper.New()
	v.Set("test.key", "from-viper")

	assert.Equal(t, "from-viper", getString("CONFIG_TEST_UNSET", "test.key", "fallback", v))

	t.Setenv("CONFIG_TEST_SET", "from-env")
	assert.Equal(t, "from-env", getString("CONFIG_TEST_SET", "test.key", "fallback", v))

	assert.Equal(t, "fallback", getString("CONFIG_TEST_UNSET", "test.missing", "fallback", v))
}

func TestGetInt_IgnoresMalformedEnv(t *testing.T) {
	v := viper.New()
	t.Setenv("CONFIG_TEST_INT", "not-a-number")

	assert.Equal(t, 7, getInt("CONFIG_TEST_INT", "test.missing", 7, v))
}

func TestGetInt_ViperZeroIsExplicit(t *testing.T) {
	v := viper.New()
	v.Set("test.zero", 0)

	assert.Equal(t, 0, getInt("CONFIG_TEST_UNSET", "test.zero", 7, v))
}

func TestGetDuration_EnvForms(t *testing.T) {
	v := viper.New()

	t.Setenv("CONFIG_TEST_DUR", "90s")
	assert.Equal(t, 90*time.Second, getDuration("CONFIG_TEST_DUR", "test.missing", time.Minute, v))

	t.Setenv("CONFIG_TEST_DUR", "45")
	assert.Equal(t, 45*time.Second, getDuration("CONFIG_TEST_DUR", "test.missing", time.Minute, v))

	t.Setenv("CONFIG_TEST_DUR", "garbage")
	assert.Equal(t, time.Minute, getDuration("CONFIG_TEST_DUR", "test.missing", time.Minute, v))
}

func TestLoadCrawler_EnvOverrides(t *testing.T) {
	t.Setenv("CRAWLER_WORKERS", "8")
	t.Setenv("CRAWLER_LOCK_LEASE", "5m")

	cfg := LoadCrawler(viper.New())

	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 5*time.Minute, cfg.LockLease)
}
