package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// DefaultMaxFileBytes is the delivery ceiling used when the config does not
// set one. 8 MiB matches the Discord webhook attachment limit for
// non-boosted servers.
const DefaultMaxFileBytes = 8 * 1024 * 1024

type Config struct {
	LogJSON       bool           `mapstructure:"log_json"`
	NoColor       bool           `mapstructure:"no_color"`
	Webhook       WebhookConfig  `mapstructure:"webhook"`
	Notifications Notifications  `mapstructure:"notifications"`
	Archive       ArchiveConfig  `mapstructure:"archive"`
	Targets       []TargetConfig `mapstructure:"targets"`
}

// WebhookConfig describes the chat-webhook endpoint that receives the
// backup artifact itself.
type WebhookConfig struct {
	Provider     string `mapstructure:"provider"` // discord
	URL          string `mapstructure:"url"`
	MaxFileBytes int64  `mapstructure:"max_file_bytes"`
	Username     string `mapstructure:"username"`
}

type Notifications struct {
	Slack   SlackConfig      `mapstructure:"slack"`
	Webhook HTTPNotifyConfig `mapstructure:"webhook"`
}

type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

type HTTPNotifyConfig struct {
	URL      string            `mapstructure:"url"`
	Method   string            `mapstructure:"method"`
	Template string            `mapstructure:"template"`
	Headers  map[string]string `mapstructure:"headers"`
}

// ArchiveConfig optionally keeps a retention copy of every artifact in a
// storage backend (local dir, s3://, sftp://, ftp://) in addition to the
// webhook delivery.
type ArchiveConfig struct {
	URI           string `mapstructure:"uri"`
	AllowInsecure bool   `mapstructure:"allow_insecure"`
}

type TargetConfig struct {
	ID     string `mapstructure:"id"`
	Engine string `mapstructure:"engine"`
	URI    string `mapstructure:"uri"`
	DB     string `mapstructure:"db"`
	Host   string `mapstructure:"host"`
	User   string `mapstructure:"user"`
	Pass   string `mapstructure:"pass"`
	Port   int    `mapstructure:"port"`

	TLS TLSConfig `mapstructure:"tls"`

	// Redis targets only.
	RDBPath      string `mapstructure:"rdb_path"`
	PollInterval string `mapstructure:"poll_interval"`
	SaveTimeout  string `mapstructure:"save_timeout"`

	Compress  bool   `mapstructure:"compress"`
	Algorithm string `mapstructure:"algorithm"`
	KeepLocal bool   `mapstructure:"keep_local"`
	FileName  string `mapstructure:"file_name"`
	Schedule  string `mapstructure:"schedule"`
}

type TLSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Mode       string `mapstructure:"mode"`
	CACert     string `mapstructure:"ca_cert"`
	ClientCert string `mapstructure:"client_cert"`
	ClientKey  string `mapstructure:"client_key"`
}

var globalConfig *Config

func Initialize(configPath string) error {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("hookdump")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".hookdump"))
		}
	}

	v.SetEnvPrefix("HOOKDUMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults also register the keys so env-only overrides are seen by
	// Unmarshal.
	v.SetDefault("log_json", false)
	v.SetDefault("no_color", false)
	v.SetDefault("webhook.provider", "discord")
	v.SetDefault("webhook.max_file_bytes", DefaultMaxFileBytes)
	v.SetDefault("webhook.url", "")
	v.SetDefault("archive.uri", "")
	v.SetDefault("archive.allow_insecure", false)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&globalConfig); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		_ = v.Unmarshal(&globalConfig)
	})

	return nil
}

func GetConfig() *Config {
	if globalConfig == nil {
		return &Config{
			Webhook: WebhookConfig{Provider: "discord", MaxFileBytes: DefaultMaxFileBytes},
		}
	}
	return globalConfig
}
