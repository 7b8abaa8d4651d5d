package cmn

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the union of every knob listed in spec.md §6.5. Each process
// only reads the fields it needs; unused fields are harmless zero values.
type Config struct {
	APIBaseURL string `mapstructure:"api_base_url"`

	Scanner struct {
		Extensions      []string `mapstructure:"extensions"`
		ExcludedDirs    []string `mapstructure:"excluded_dirs"`
		SkipHidden      bool     `mapstructure:"skip_hidden"`
		FollowSymlinks  bool     `mapstructure:"follow_symlinks"`
		MaxDepth        int      `mapstructure:"max_depth"`
	} `mapstructure:"scanner"`

	Indexing struct {
		BatchSize   int  `mapstructure:"batch_size"`
		Parallelism int  `mapstructure:"parallelism"`
		LegacyLocal bool `mapstructure:"legacy_local_processing"`
	} `mapstructure:"indexing"`

	Minio struct {
		Endpoint  string `mapstructure:"endpoint"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
		UseSSL    bool   `mapstructure:"use_ssl"`
	} `mapstructure:"minio"`

	RabbitMQ struct {
		Host     string `mapstructure:"host"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
	} `mapstructure:"rabbitmq"`

	DryRunEnabled bool `mapstructure:"dry_run_enabled"`

	Thumbnail struct {
		MaxWidth        int  `mapstructure:"max_width"`
		MaxHeight       int  `mapstructure:"max_height"`
		JPEGQuality     int  `mapstructure:"jpeg_quality"`
		PreserveAspect  bool `mapstructure:"preserve_aspect"`
	} `mapstructure:"thumbnail"`

	ConnectionStrings struct {
		DefaultConnection string `mapstructure:"default_connection"`
	} `mapstructure:"connection_strings"`

	LogLevel string `mapstructure:"log_level"`

	Hostname string `mapstructure:"hostname"`

	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`

	Hub struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"hub"`

	Archive struct {
		TrashRoot string `mapstructure:"trash_root"`
	} `mapstructure:"archive"`

	Duplicate struct {
		ConflictThreshold int `mapstructure:"conflict_threshold"`
	} `mapstructure:"duplicate"`
}

// Load layers defaults, an optional YAML file, and environment variables
// (PHOTOINDEX_ prefixed, nested keys joined with "__") into a Config.
// configPath may be empty, in which case only defaults and env vars apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("photoindex")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, NewIO("config_read_failed", "failed to read config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, NewValidation("config_unmarshal_failed", err.Error())
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_base_url", "http://localhost:8080")
	v.SetDefault("scanner.extensions", []string{".jpg", ".jpeg", ".png", ".heic", ".heif", ".gif", ".bmp", ".tiff"})
	v.SetDefault("scanner.excluded_dirs", []string{"@eaDir", "#recycle", ".Trash-1000", "$RECYCLE.BIN"})
	v.SetDefault("scanner.skip_hidden", true)
	v.SetDefault("scanner.follow_symlinks", false)
	v.SetDefault("scanner.max_depth", 64)
	v.SetDefault("indexing.batch_size", 250)
	v.SetDefault("indexing.parallelism", 8)
	v.SetDefault("indexing.legacy_local_processing", false)
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("dry_run_enabled", false)
	v.SetDefault("thumbnail.max_width", 300)
	v.SetDefault("thumbnail.max_height", 300)
	v.SetDefault("thumbnail.jpeg_quality", 85)
	v.SetDefault("thumbnail.preserve_aspect", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("heartbeat_interval", 30*time.Second)
	v.SetDefault("hub.url", "ws://localhost:8080")
	v.SetDefault("archive.trash_root", "/var/lib/photoindex/trash")
	v.SetDefault("duplicate.conflict_threshold", 5)
}
