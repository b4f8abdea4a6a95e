package config

import (
	"net"
	"time"

	"github.com/spf13/viper"
)

// Proxy defaults.
const (
	DefaultTorHost        = "127.0.0.1"
	DefaultTorPort        = "9050"
	DefaultRequestTimeout = 45 * time.Second
	DefaultMaxRetries     = 2
	DefaultMaxContentLen  = 1 << 20 // 1 MB
)

// ProxyConfig holds SOCKS5 proxy settings. All outbound traffic goes
// through this endpoint.
type ProxyConfig struct {
	Host             string
	Port             string
	RequestTimeout   time.Duration
	MaxRetries       int
	MaxContentLength int64
}

// Addr returns the host:port of the SOCKS5 endpoint.
func (c ProxyConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// LoadProxy loads proxy configuration from viper and environment variables.
func LoadProxy(v *viper.Viper) ProxyConfig {
	return ProxyConfig{
		Host:             getString("TOR_HOST", "proxy.host", DefaultTorHost, v),
		Port:             getString("TOR_PORT", "proxy.port", DefaultTorPort, v),
		RequestTimeout:   getDuration("PROXY_TIMEOUT", "proxy.timeout", DefaultRequestTimeout, v),
		MaxRetries:       getInt("PROXY_MAX_RETRIES", "proxy.max_retries", DefaultMaxRetries, v),
		MaxContentLength: int64(getInt("PROXY_MAX_CONTENT", "proxy.max_content_length", DefaultMaxContentLen, v)),
	}
}
