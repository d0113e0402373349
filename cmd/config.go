package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/inference-sim/pagesim/sim"
	"github.com/inference-sim/pagesim/sim/fleet"
	"github.com/inference-sim/pagesim/sim/trace"
)

// envPrefix namespaces environment overrides, e.g. PAGESIM_FRAME_COUNT=8.
const envPrefix = "PAGESIM"

// ServiceConfig is the configuration of `pagesim serve`.
// Precedence: flags > PAGESIM_* environment > config file > defaults.
type ServiceConfig struct {
	Addr            string   `mapstructure:"addr"`
	LogLevel        string   `mapstructure:"log_level"`
	FrameCount      int      `mapstructure:"frame_count"`
	Families        []string `mapstructure:"families"`
	MaxAccumulated  int      `mapstructure:"max_accumulated"`
	HistoryLimit    int      `mapstructure:"history_limit"`
	Seed            int64    `mapstructure:"seed"`
	Codec           string   `mapstructure:"codec"`
	TraceLevel      string   `mapstructure:"trace_level"`
	TraceMaxRecords int      `mapstructure:"trace_max_records"`
}

// flagKeys maps config keys to the flags that override them.
var flagKeys = map[string]string{
	"addr":        "addr",
	"log_level":   "log",
	"frame_count": "frames",
	"families":    "models",
	"codec":       "codec",
	"trace_level": "trace",
}

func setConfigDefaults(v *viper.Viper) {
	pc := sim.DefaultPredictorConfig()
	v.SetDefault("addr", ":8000")
	v.SetDefault("log_level", "info")
	v.SetDefault("frame_count", sim.DefaultFrameCount)
	v.SetDefault("families", []string{})
	v.SetDefault("max_accumulated", sim.MaxAccumulated)
	v.SetDefault("history_limit", sim.DefaultHistoryLimit)
	v.SetDefault("seed", pc.Seed)
	v.SetDefault("codec", string(pc.Codec))
	v.SetDefault("trace_level", string(trace.TraceLevelNone))
	v.SetDefault("trace_max_records", 10000)
}

// loadServiceConfig layers defaults, the optional config file, environment
// and any flags in flags that were set explicitly. Unknown keys in the config
// file are rejected.
func loadServiceConfig(path string, flags *pflag.FlagSet) (ServiceConfig, error) {
	v := viper.New()
	setConfigDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return ServiceConfig{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return ServiceConfig{}, fmt.Errorf("binding flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg ServiceConfig
	if err := v.UnmarshalExact(&cfg); err != nil {
		return ServiceConfig{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that all fields are usable.
func (c ServiceConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.FrameCount <= 0 {
		return fmt.Errorf("frame_count must be positive, got %d", c.FrameCount)
	}
	if c.MaxAccumulated <= 0 {
		return fmt.Errorf("max_accumulated must be positive, got %d", c.MaxAccumulated)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history_limit must be positive, got %d", c.HistoryLimit)
	}
	for _, name := range c.Families {
		if !sim.IsValidFamily(name) {
			return fmt.Errorf("unknown model %q; valid: %v", name, sim.Families())
		}
	}
	if !sim.IsValidCodec(c.Codec) {
		return fmt.Errorf("unknown codec %q; valid: none, snappy, lz4", c.Codec)
	}
	if !trace.IsValidTraceLevel(c.TraceLevel) {
		return fmt.Errorf("unknown trace_level %q; valid: none, decisions", c.TraceLevel)
	}
	if c.TraceMaxRecords < 0 {
		return fmt.Errorf("trace_max_records must be non-negative, got %d", c.TraceMaxRecords)
	}
	return nil
}

// FleetConfig converts the service config into a fleet configuration.
func (c ServiceConfig) FleetConfig() fleet.Config {
	cfg := fleet.DefaultConfig()
	cfg.Families = append([]string(nil), c.Families...)
	cfg.FrameCount = c.FrameCount
	cfg.MaxAccumulated = c.MaxAccumulated
	cfg.Predictor = sim.PredictorConfig{Seed: c.Seed, Codec: sim.Codec(c.Codec)}
	cfg.Engine.HistoryLimit = c.HistoryLimit
	cfg.Engine.Trace = trace.TraceConfig{Level: trace.TraceLevel(c.TraceLevel), MaxRecords: c.TraceMaxRecords}
	return cfg
}
