package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	consts "github.com/khanhnv2901/nginx-audit/internal/shared/constants"
)

const (
	defaultFormat          = "text"
	defaultFileConcurrency = 4
)

// CLIConfig captures runtime configuration shared across commands.
type CLIConfig struct {
	Defaults DefaultValues
	Analyze  AnalyzeRuntimeConfig
}

// DefaultValues represent user-level defaults, typically derived from env/config.
type DefaultValues struct {
	TelemetryEnabled bool
}

// AnalyzeRuntimeConfig consolidates flag-driven settings for analyze and watch.
type AnalyzeRuntimeConfig struct {
	Format string
	// MinSeverity hides findings below this level.
	MinSeverity string
	// FailOn makes the command fail when a finding at or above it exists.
	FailOn string
	// Concurrency is the number of rule workers per configuration.
	Concurrency int
	// FileConcurrency is the number of configuration files analyzed at once.
	FileConcurrency  int
	RateLimit        int
	Enable           []string
	Disable          []string
	Save             bool
	TelemetryEnabled bool
	ProgressEnabled  bool
	MetricsFile      string
}

type defaultOverrides struct {
	Format           string
	MinSeverity      string
	FailOn           string
	Concurrency      *int
	Disable          []string
	TelemetryEnabled *bool
}

var cliConfig = newCLIConfig()

func newCLIConfig() *CLIConfig {
	return &CLIConfig{
		Defaults: DefaultValues{
			TelemetryEnabled: false,
		},
		Analyze: AnalyzeRuntimeConfig{
			Format:          defaultFormat,
			Concurrency:     consts.DefaultConcurrency,
			FileConcurrency: defaultFileConcurrency,
		},
	}
}

func loadDefaultOverrides() defaultOverrides {
	overrides := defaultOverrides{}

	if viper.IsSet("analyze.format") {
		overrides.Format = viper.GetString("analyze.format")
	}

	if viper.IsSet("analyze.severity") {
		overrides.MinSeverity = viper.GetString("analyze.severity")
	}

	if viper.IsSet("analyze.fail_on") {
		overrides.FailOn = viper.GetString("analyze.fail_on")
	}

	if viper.IsSet("analyze.concurrency") {
		val := viper.GetInt("analyze.concurrency")
		overrides.Concurrency = &val
	}

	if viper.IsSet("analyze.disable") {
		overrides.Disable = viper.GetStringSlice("analyze.disable")
	}

	if viper.IsSet("telemetry") {
		val := viper.GetBool("telemetry")
		overrides.TelemetryEnabled = &val
	}

	return overrides
}

// applyConfigDefaults merges config file defaults into the runtime config when the user
// did not explicitly override the corresponding flag.
func applyConfigDefaults(cmd *cobra.Command) {
	overrides := loadDefaultOverrides()
	flags := cmd.Flags()

	if overrides.Format != "" {
		applyStringDefault(flags, "format", overrides.Format, func(v string) {
			cliConfig.Analyze.Format = v
		})
	}

	if overrides.MinSeverity != "" {
		applyStringDefault(flags, "severity", overrides.MinSeverity, func(v string) {
			cliConfig.Analyze.MinSeverity = v
		})
	}

	if overrides.FailOn != "" {
		applyStringDefault(flags, "fail-on", overrides.FailOn, func(v string) {
			cliConfig.Analyze.FailOn = v
		})
	}

	if overrides.Concurrency != nil {
		applyIntDefault(flags, "concurrency", *overrides.Concurrency, func(v int) {
			cliConfig.Analyze.Concurrency = v
		})
	}

	if len(overrides.Disable) > 0 {
		applyStringSliceDefault(flags, "disable", overrides.Disable, func(v []string) {
			cliConfig.Analyze.Disable = v
		})
	}

	if overrides.TelemetryEnabled != nil {
		applyBoolDefault(flags, "telemetry", *overrides.TelemetryEnabled, func(v bool) {
			cliConfig.Defaults.TelemetryEnabled = v
			cliConfig.Analyze.TelemetryEnabled = v
		})
	}
}

func applyIntDefault(flags *pflag.FlagSet, name string, value int, setter func(int)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func applyBoolDefault(flags *pflag.FlagSet, name string, value bool, setter func(bool)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func applyStringDefault(flags *pflag.FlagSet, name, value string, setter func(string)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func applyStringSliceDefault(flags *pflag.FlagSet, name string, value []string, setter func([]string)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}
