package cache

import "time"

// Config contains cache configuration
type Config struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL     string        `yaml:"redis_url" mapstructure:"redis_url"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DefaultTTL   time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	KeyPrefix    string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// CacheStats represents cache performance statistics
type CacheStats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hit_rate"`
	TotalKeys int64   `json:"total_keys"`
}

// cachedReference is the stored form of one country's category map.
type cachedReference struct {
	Country    string            `json:"country"`
	Categories map[string]string `json:"categories"`
	CachedAt   time.Time         `json:"cached_at"`
}
