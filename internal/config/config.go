package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	SendBuffer int           `mapstructure:"send_buffer"`
	// Backpressure is drop or kick.
	Backpressure string `mapstructure:"backpressure"`
	Secret       string `mapstructure:"secret"`

	Log       LogConfig       `mapstructure:"log"`
	Room      RoomConfig      `mapstructure:"room"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	YouTube   YouTubeConfig   `mapstructure:"youtube"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Search    SearchConfig    `mapstructure:"search"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type RoomConfig struct {
	CodeLength    int           `mapstructure:"code_length"`
	PinnedCode    string        `mapstructure:"pinned_code"`
	PinnedTitle   string        `mapstructure:"pinned_title"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	JoinGrace     time.Duration `mapstructure:"join_grace"`
}

type RateLimitConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

type YouTubeConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Endpoint   string `mapstructure:"endpoint"`
	MaxResults int    `mapstructure:"max_results"`
}

type RedisConfig struct {
	URL           string `mapstructure:"url"`
	EventsChannel string `mapstructure:"events_channel"`
}

type SearchConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type SnapshotConfig struct {
	Driver   string        `mapstructure:"driver"`
	Path     string        `mapstructure:"path"`
	Interval time.Duration `mapstructure:"interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("backpressure", "drop")
	v.SetDefault("secret", "syncroom-dev-secret")
	v.SetDefault("log.level", "info")

	v.SetDefault("room.code_length", 6)
	v.SetDefault("room.pinned_code", "")
	v.SetDefault("room.pinned_title", "Lobby")
	v.SetDefault("room.sweep_interval", "1m")
	v.SetDefault("room.join_grace", "30s")

	v.SetDefault("ratelimit.limit", 50)
	v.SetDefault("ratelimit.interval", "1s")

	v.SetDefault("youtube.api_key", "")
	v.SetDefault("youtube.endpoint", "")
	v.SetDefault("youtube.max_results", 10)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.events_channel", "syncroom:events")

	v.SetDefault("search.cache_ttl", "10m")

	v.SetDefault("snapshot.driver", "none")
	v.SetDefault("snapshot.path", "data/rooms.json")
	v.SetDefault("snapshot.interval", "30s")
}

// Load reads config/config.<CONFIG_ENV>.yaml over the defaults. Environment
// variables win: SYNCROOM_ROOM_CODE_LENGTH overrides room.code_length, and the
// bare PORT and YOUTUBE_API_KEY used by hosting platforms are honored too.
func Load() (*Config, *viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		fileName = p
	}

	v.SetConfigFile(fileName)
	setDefaults(v)

	v.SetEnvPrefix("SYNCROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("port", "SYNCROOM_PORT", "PORT")
	_ = v.BindEnv("youtube.api_key", "SYNCROOM_YOUTUBE_API_KEY", "YOUTUBE_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("snapshot", cfg.Snapshot.Driver).Msg("config ready")
	return cfg, v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// ApplyLogLevel sets the zerolog global level; unknown names mean info.
func ApplyLogLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return lvl
}

// Watch re-reads the config file on change. Only the log level is applied
// live; onChange receives the new config for anything else the caller wants.
func Watch(v *viper.Viper, onChange func(*Config)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			log.Error().Err(err).Str("module", "config").Str("file", e.Name).Msg("reload failed")
			return
		}
		lvl := ApplyLogLevel(cfg.Log.Level)
		log.Info().Str("module", "config").Str("file", e.Name).Str("op", e.Op.String()).Str("level", lvl.String()).Msg("config reloaded")
		if onChange != nil {
			onChange(cfg)
		}
	})
	v.WatchConfig()
}
