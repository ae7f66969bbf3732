package app

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/seawatch-io/seawatch/pkg/log"
)

const configFlagName = "config"

var cfgFile string

func addConfigFlag(fs *pflag.FlagSet) {
	fs.StringVarP(&cfgFile, configFlagName, "c", cfgFile,
		"Read configuration from the specified `FILE` (YAML, JSON or TOML). Flags override file values.")
}

// loadConfig layers the config file and environment under the flags and
// decodes the result into opts. Explicitly set flags win over environment
// variables, which win over the file.
func loadConfig(fs *pflag.FlagSet, envPrefix string, opts any) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read configuration file %q: %w", cfgFile, err)
		}
	}

	if envPrefix != "" {
		viper.SetEnvPrefix(envPrefix)
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		viper.AutomaticEnv()
	}

	if err := viper.BindPFlags(fs); err != nil {
		return err
	}
	if err := viper.Unmarshal(opts); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	return nil
}

// ConfigFile returns the configuration file in use, if any.
func ConfigFile() string {
	return viper.ConfigFileUsed()
}

// WatchConfig calls fn with the re-read configuration whenever the config
// file is written. It does nothing when no config file is in use.
func WatchConfig(fn func(v *viper.Viper)) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		log.Info("Configuration file changed", "file", e.Name, "op", e.Op.String())
		fn(viper.GetViper())
	})
	viper.WatchConfig()
}
