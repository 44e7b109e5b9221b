package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix  = "HOSTWATCH"
	DefaultConfigName = "hostwatch"
	DefaultConfigDir  = "/etc"
	DefaultLogLevel   = "warning"
	DefaultMode       = "collect"
	DefaultOutputDir  = "."
	DefaultPIDFile    = "/run/hostwatch.pid"
)

type Config struct {
	Mode      string `mapstructure:"mode"`
	Interval  int    `mapstructure:"interval"`
	OutputDir string `mapstructure:"output_dir"`
	LogLevel  string `mapstructure:"log_level"`
	PIDFile   string `mapstructure:"pid_file"`

	CPU       CPUConfig       `mapstructure:"cpu"`
	Sampling  SamplingConfig  `mapstructure:"sampling"`
	WebServer WebServerConfig `mapstructure:"web"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Services  []ServiceConfig `mapstructure:"services"`
	Metadata  MetadataConfig  `mapstructure:"metadata"`
	Instances InstancesConfig `mapstructure:"instances"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type CPUConfig struct {
	Mode          string        `mapstructure:"mode"`
	WindowSize    int           `mapstructure:"window_size"`
	SampleSpacing time.Duration `mapstructure:"sample_spacing"`
}

type SamplingConfig struct {
	WarmupDelay time.Duration `mapstructure:"warmup_delay"`
	PortTimeout time.Duration `mapstructure:"port_timeout"`
}

type WebServerConfig struct {
	Service      string        `mapstructure:"service"`
	Host         string        `mapstructure:"host"`
	HealthURL    string        `mapstructure:"health_url"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

type DatabaseConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Driver  string        `mapstructure:"driver"`
	DSN     string        `mapstructure:"dsn"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	DisplayName string `mapstructure:"display_name"`
	Port        int    `mapstructure:"port"`
}

type MetadataConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type InstancesConfig struct {
	Regions         []string `mapstructure:"regions"`
	LookupIP        string   `mapstructure:"lookup_ip"`
	AccessKeyID     string   `mapstructure:"access_key_id"`
	SecretAccessKey string   `mapstructure:"secret_access_key"`
}

type MetricsConfig struct {
	Enabled     bool              `mapstructure:"enabled"`
	Exporter    string            `mapstructure:"exporter"`
	Endpoint    string            `mapstructure:"endpoint"`
	Insecure    bool              `mapstructure:"insecure"`
	ServiceName string            `mapstructure:"service_name"`
	Interval    time.Duration     `mapstructure:"interval"`
	Attributes  map[string]string `mapstructure:"attributes"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", DefaultMode)
	v.SetDefault("interval", 0)
	v.SetDefault("output_dir", DefaultOutputDir)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("pid_file", DefaultPIDFile)

	v.SetDefault("cpu.mode", "rolling")
	v.SetDefault("cpu.window_size", 30)
	v.SetDefault("cpu.sample_spacing", 10*time.Second)

	v.SetDefault("sampling.warmup_delay", 100*time.Millisecond)
	v.SetDefault("sampling.port_timeout", time.Second)

	v.SetDefault("web.service", "nginx")
	v.SetDefault("web.host", "localhost")
	v.SetDefault("web.health_url", "http://localhost/health")
	v.SetDefault("web.probe_timeout", 5*time.Second)

	v.SetDefault("database.enabled", true)
	v.SetDefault("database.driver", "sqlserver")
	v.SetDefault("database.dsn", "sqlserver://localhost?database=master&connection+timeout=5")
	v.SetDefault("database.timeout", 5*time.Second)

	v.SetDefault("metadata.endpoint", "http://169.254.169.254")
	v.SetDefault("metadata.timeout", 10*time.Second)
	v.SetDefault("metadata.token_ttl", 6*time.Hour)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.exporter", "stdout")
	v.SetDefault("metrics.service_name", "hostwatch")
	v.SetDefault("metrics.interval", time.Minute)
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("hostwatch", pflag.ContinueOnError)
	fs.String("config", "", "Path to the configuration file")
	fs.String("mode", DefaultMode, "Run mode: collect, metadata or instances")
	fs.Int("interval", 0, "Seconds between collection cycles, 0 runs once")
	fs.String("output-dir", DefaultOutputDir, "Directory for the timestamped JSON files")
	fs.String("log-level", DefaultLogLevel, "Log level: debug, info, warning or error")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.Bool("verbose", false, "Enable verbose logging")
	fs.String("cpu-mode", "rolling", "CPU sampling mode: rolling or instant")
	fs.StringSlice("region", nil, "Regions to enumerate in instances mode")
	fs.String("lookup-ip", "", "Private or public IP to resolve in instances mode")
	fs.Bool("metrics", false, "Publish readings through OpenTelemetry")

	return fs
}

// Load reads configuration from defaults, the config file, environment
// variables and command line flags, in increasing order of precedence.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{
		envPrefix: DefaultEnvPrefix,
		args:      os.Args[1:],
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	fs := newFlagSet()
	if err := fs.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		"mode":                "mode",
		"interval":            "interval",
		"output_dir":          "output-dir",
		"log_level":           "log-level",
		"cpu.mode":            "cpu-mode",
		"instances.regions":   "region",
		"instances.lookup_ip": "lookup-ip",
		"metrics.enabled":     "metrics",
	}
	for key, flagName := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flagName)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	if err := readConfigFile(v, fs, o); err != nil {
		return nil, err
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	// --debug and --verbose are shorthands for a log level
	if debug, _ := fs.GetBool("debug"); debug {
		config.LogLevel = string(LogLevelDebug)
	} else if verbose, _ := fs.GetBool("verbose"); verbose && !fs.Changed("log-level") {
		config.LogLevel = string(LogLevelInfo)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func readConfigFile(v *viper.Viper, fs *pflag.FlagSet, o *options) error {
	errFactory := errors.New()

	path := o.configPath
	if flagPath, _ := fs.GetString("config"); flagPath != "" {
		path = flagPath
	}
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(DefaultConfigDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errFactory.Wrap(errors.ErrReadConfig, err)
	}

	return nil
}

// Validate checks the values that would otherwise fail late at runtime
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if !Mode(c.Mode).IsValid() {
		return errFactory.WithData(errors.ErrInvalidMode, c.Mode)
	}

	if c.Interval < 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}

	if c.CPU.Mode != "rolling" && c.CPU.Mode != "instant" {
		return errFactory.WithData(errors.ErrInvalidConfig, "cpu.mode="+c.CPU.Mode)
	}

	if c.CPU.WindowSize <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "cpu.window_size must be positive")
	}

	return nil
}

// IntervalDuration returns the loop interval, zero meaning a single run
func (c *Config) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}
