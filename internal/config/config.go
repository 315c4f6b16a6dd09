package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads the config file into config, which must be a pointer to a
// struct. Values already set on the struct act as defaults, and every key
// can be overridden from the environment (dots replaced by underscores).
func Load(file string, config any) error {
	v := viper.New()

	defaults := make(map[string]any)
	if err := mapstructure.Decode(config, &defaults); err != nil {
		return fmt.Errorf("mapstructure: %w", err)
	}

	if err := v.MergeConfigMap(defaults); err != nil {
		return fmt.Errorf("merge defaults: %w", err)
	}

	v.SetConfigFile(file)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config from file %s: %w", file, err)
	}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	return nil
}
