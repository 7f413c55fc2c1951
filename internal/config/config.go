package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`
	SendBuffer int           `mapstructure:"send_buffer"`

	Rooms      RoomsConfig        `mapstructure:"rooms"`
	Signal     SignalConfig       `mapstructure:"signal"`
	ICEServers []webrtc.ICEServer `mapstructure:"ice_servers"`
}

type RoomsConfig struct {
	WarningLead time.Duration `mapstructure:"warning_lead"`
	// GuestDuration is applied to rooms created without an identity in
	// the HTTP session and without an explicit duration. Zero disables it.
	GuestDuration   time.Duration `mapstructure:"guest_duration"`
	MaxUsersLimit   int           `mapstructure:"max_users_limit"`
	DefaultMaxUsers int           `mapstructure:"default_max_users"`
}

type SignalConfig struct {
	RequireSameRoom bool    `mapstructure:"require_same_room"`
	Rate            float64 `mapstructure:"rate"`
	Burst           int     `mapstructure:"burst"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("log_level", "info")
	v.SetDefault("send_buffer", 64)

	v.SetDefault("rooms.warning_lead", "60s")
	v.SetDefault("rooms.guest_duration", "30m")
	v.SetDefault("rooms.max_users_limit", 50)
	v.SetDefault("rooms.default_max_users", 8)

	v.SetDefault("signal.require_same_room", false)
	v.SetDefault("signal.rate", 50)
	v.SetDefault("signal.burst", 100)

	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})
}

// Load reads config/config.<CONFIG_ENV>.yaml, then VOICEHUB_* environment
// variables, then command line flags.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("voicehub", pflag.ContinueOnError)
	file := fs.String("config", "", "path to the config file")
	fs.Int("port", 8080, "HTTP listen port")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("VOICEHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlag("port", fs.Lookup("port")); err != nil {
		return nil, err
	}
	if err := v.BindPFlag("log_level", fs.Lookup("log-level")); err != nil {
		return nil, err
	}

	fileName := *file
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("static", cfg.StaticPath).
		Msg("config ready")
	return &cfg, nil
}
