// Package config loads marketwatch's configuration. Grounded on the
// teacher's internal/config package — same library (spf13/viper), same
// "one flat Config struct built by Load" shape — generalized from the
// teacher's flag+env-bound singleton (global package-level viper.Get*
// calls read anywhere) to a properties-file loader that returns an
// explicit struct passed as a constructor argument everywhere (spec.md
// §9's "Global mutable state" design note: no package-level viper.Get*
// calls outside this package).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Cookie holds the session-token tunables (spec.md §6).
type Cookie struct {
	AutoUpdate           bool
	UpdateIntervalMin    int
	DynamicEnabled       bool
	CacheTTLMin          int
}

// HTTP holds the outbound request tunables.
type HTTP struct {
	ConnectTimeoutMS int
	ReadTimeoutMS    int
	UserAgent        string
	MaxRetries       int
	RetryDelayMS     int
}

// ThreadPool holds the Scheduler's bounded-pool tunables.
type ThreadPool struct {
	CoreSize          int
	MaxSize           int
	QueueCapacity     int
	KeepaliveSeconds  int
}

// ParserDefault holds the fallback per-user settings used when a user has
// no settings file of their own.
type ParserDefault struct {
	CheckIntervalS  int
	MaxAgeMinutes   int
	MaxPages        int
	RowsPerPage     int
	NotifyNewOnly   bool
}

// API holds the marketplace adapter's endpoint configuration.
type API struct {
	BaseURL               string
	SearchEndpoint        string
	DelayBetweenRequestsMS int
	MaxProductsPerPage    int
	AppKey                string
}

// Storage holds the persisted-state layout configuration.
type Storage struct {
	DataDir             string
	BackupEnabled       bool
	BackupIntervalHours int
}

// Telegram is kept as a passthrough block: out of scope for this
// service's own logic, but read by the external chat front-end that
// shares this config file.
type Telegram struct {
	BotToken string
	AdminIDs string
}

// Config is the fully-resolved, immutable-after-load configuration every
// component is constructed with.
type Config struct {
	Cookie        Cookie
	HTTP          HTTP
	ThreadPool    ThreadPool
	ParserDefault ParserDefault
	API           API
	Storage       Storage
	Telegram      Telegram

	AppriseURLs   []string
	DashboardPort int
	ShutdownGraceS int
	ProactiveIntervalS int
	StatsDigestIntervalMin int
	LogLevel      string
}

// Load reads config.properties from path via viper's properties codec
// (spf13/viper with SetConfigType("properties")) and builds a Config.
// Defaults match spec.md §5/§6 exactly; every recognized key from §6 is
// bound here, nowhere else.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("properties")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	return Config{
		Cookie: Cookie{
			AutoUpdate:        v.GetBool("cookie.auto.update"),
			UpdateIntervalMin: v.GetInt("cookie.update.interval.minutes"),
			DynamicEnabled:    v.GetBool("cookie.dynamic.enabled"),
			CacheTTLMin:       v.GetInt("cookie.cache.ttl.minutes"),
		},
		HTTP: HTTP{
			ConnectTimeoutMS: v.GetInt("http.connect.timeout"),
			ReadTimeoutMS:    v.GetInt("http.read.timeout"),
			UserAgent:        v.GetString("http.user.agent"),
			MaxRetries:       v.GetInt("http.max.retries"),
			RetryDelayMS:     v.GetInt("http.retry.delay"),
		},
		ThreadPool: ThreadPool{
			CoreSize:         v.GetInt("thread.pool.core.size"),
			MaxSize:          v.GetInt("thread.pool.max.size"),
			QueueCapacity:    v.GetInt("thread.pool.queue.capacity"),
			KeepaliveSeconds: v.GetInt("thread.pool.keepalive.seconds"),
		},
		ParserDefault: ParserDefault{
			CheckIntervalS: v.GetInt("parser.default.check_interval"),
			MaxAgeMinutes:  v.GetInt("parser.default.max_age_minutes"),
			MaxPages:       v.GetInt("parser.default.max_pages"),
			RowsPerPage:    v.GetInt("parser.default.rows_per_page"),
			NotifyNewOnly:  v.GetBool("parser.default.notify_new_only"),
		},
		API: API{
			BaseURL:                v.GetString("api.xianyu.base_url"),
			SearchEndpoint:         v.GetString("api.xianyu.search.endpoint"),
			DelayBetweenRequestsMS: v.GetInt("api.xianyu.delay.between.requests"),
			MaxProductsPerPage:     v.GetInt("api.xianyu.max.products.per.page"),
			AppKey:                 v.GetString("api.xianyu.app_key"),
		},
		Storage: Storage{
			DataDir:             v.GetString("storage.data.dir"),
			BackupEnabled:       v.GetBool("storage.backup.enabled"),
			BackupIntervalHours: v.GetInt("storage.backup.interval.hours"),
		},
		Telegram: Telegram{
			BotToken: v.GetString("telegram.bot_token"),
			AdminIDs: v.GetString("telegram.admin_ids"),
		},
		AppriseURLs:            splitCommaList(v.GetString("apprise_urls")),
		DashboardPort:          v.GetInt("dashboard.port"),
		ShutdownGraceS:         v.GetInt("shutdown.grace_seconds"),
		ProactiveIntervalS:     v.GetInt("cookie.update.interval.minutes") * 60,
		StatsDigestIntervalMin: v.GetInt("stats.digest.interval.minutes"),
		LogLevel:               v.GetString("log.level"),
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cookie.auto.update", true)
	v.SetDefault("cookie.update.interval.minutes", 60)
	v.SetDefault("cookie.dynamic.enabled", true)
	v.SetDefault("cookie.cache.ttl.minutes", 5) // min_refresh_interval_s default 300s = 5min

	v.SetDefault("http.connect.timeout", 10000)
	v.SetDefault("http.read.timeout", 15000)
	v.SetDefault("http.user.agent", "Mozilla/5.0 marketwatch/1.0")
	v.SetDefault("http.max.retries", 3)
	v.SetDefault("http.retry.delay", 1000)

	v.SetDefault("thread.pool.core.size", 4)
	v.SetDefault("thread.pool.max.size", 16)
	v.SetDefault("thread.pool.queue.capacity", 100)
	v.SetDefault("thread.pool.keepalive.seconds", 60)

	v.SetDefault("parser.default.check_interval", 60)
	v.SetDefault("parser.default.max_age_minutes", 1440)
	v.SetDefault("parser.default.max_pages", 1)
	v.SetDefault("parser.default.rows_per_page", 30)
	v.SetDefault("parser.default.notify_new_only", true)

	v.SetDefault("api.xianyu.base_url", "https://h5api.m.goofish.com")
	v.SetDefault("api.xianyu.search.endpoint", "mtop.taobao.idlemessage.pc.search.number")
	v.SetDefault("api.xianyu.delay.between.requests", 800)
	v.SetDefault("api.xianyu.max.products.per.page", 30)

	v.SetDefault("storage.data.dir", "./data")
	v.SetDefault("storage.backup.enabled", true)
	v.SetDefault("storage.backup.interval.hours", 24)

	v.SetDefault("dashboard.port", 8080)
	v.SetDefault("shutdown.grace_seconds", 30)
	v.SetDefault("stats.digest.interval.minutes", 60)
	v.SetDefault("log.level", "info")
}

// HTTPConnectTimeout returns the configured connect timeout as a
// time.Duration.
func (c Config) HTTPConnectTimeout() time.Duration {
	return time.Duration(c.HTTP.ConnectTimeoutMS) * time.Millisecond
}

// HTTPReadTimeout returns the configured read timeout as a
// time.Duration.
func (c Config) HTTPReadTimeout() time.Duration {
	return time.Duration(c.HTTP.ReadTimeoutMS) * time.Millisecond
}

// splitCommaList parses a properties-file comma-separated value (viper's
// properties codec yields a plain string, not a list, so this is done by
// hand rather than via GetStringSlice).
func splitCommaList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
