package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "WAVE"

// LoadConfig reads config.yaml from defaultPath, merges every file in overrideConfigs on top of it
// and unmarshals the result into config using CustomHooks. Keys can also be overridden with
// environment variables, e.g. WAVE_BROKER_MAXGROUPJOBS.
func LoadConfig(config interface{}, defaultPath string, overrideConfigs []string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(defaultPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "error reading base config from %s", defaultPath)
	}
	log.Infof("read base config from %s", v.ConfigFileUsed())

	for _, overrideConfig := range overrideConfigs {
		if strings.TrimSpace(overrideConfig) == "" {
			continue
		}
		v.SetConfigFile(overrideConfig)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "error reading config from %s", overrideConfig)
		}
		log.Infof("read config from %s", v.ConfigFileUsed())
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if flags := boundFlags; flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	if err := v.Unmarshal(config, CustomHooks...); err != nil {
		return nil, errors.Wrap(err, "error unmarshalling config")
	}
	return v, nil
}

// MustLoadConfig is LoadConfig for use from main; it exits the process on failure.
func MustLoadConfig(config interface{}, defaultPath string, overrideConfigs []string) *viper.Viper {
	v, err := LoadConfig(config, defaultPath, overrideConfigs)
	if err != nil {
		log.Error(err)
		os.Exit(-1)
	}
	return v
}

var boundFlags *pflag.FlagSet

// BindCommandlineArguments makes the flags of a command take precedence over config files
// in subsequent calls to LoadConfig.
func BindCommandlineArguments(flags *pflag.FlagSet) {
	boundFlags = flags
}
