package config

import (
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// TextUnmarshaler decode hooks let any config type parse itself from a string,
// e.g. session.TestType.
var CustomHooks = []viper.DecoderConfigOption{
	viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		CommaSeparatedStringSliceHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	)),
}

// CommaSeparatedStringSliceHookFunc turns "a, b" into []string{"a", "b"}, so list settings
// can be given through a single environment variable.
func CommaSeparatedStringSliceHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Slice {
			return data, nil
		}
		raw := data.(string)
		if raw == "" {
			return []string{}, nil
		}
		parts := strings.Split(raw, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
}
