package runtimeconfig

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix scopes environment overrides, e.g. PUBLISHER_PLATFORM_APP_ID
// sets platform.app_id.
const EnvPrefix = "PUBLISHER_"

// LoadOptions tunes Load. Overrides are applied last, keyed by koanf path.
type LoadOptions struct {
	Prefix    string
	Overrides map[string]any
	// Environ replaces os.Environ; tests use it to stay hermetic.
	Environ func() []string
}

// Load layers defaults, environment variables and explicit overrides, then
// decodes and validates the result.
func Load(opts LoadOptions) (Config, error) {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = EnvPrefix
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("runtimeconfig: load defaults: %w", err)
	}

	envOpt := env.Opt{
		Prefix: prefix,
		TransformFunc: func(key, value string) (string, any) {
			return envKeyToPath(strings.TrimPrefix(key, prefix)), value
		},
	}
	if opts.Environ != nil {
		envOpt.EnvironFunc = opts.Environ
	} else {
		envOpt.EnvironFunc = os.Environ
	}
	if err := k.Load(env.Provider(".", envOpt), nil); err != nil {
		return Config{}, fmt.Errorf("runtimeconfig: load environment: %w", err)
	}

	for key, value := range opts.Overrides {
		if err := k.Set(key, value); err != nil {
			return Config{}, fmt.Errorf("runtimeconfig: override %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return Config{}, fmt.Errorf("runtimeconfig: decode: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKeyToPath maps PLATFORM_APP_ID to platform.app_id: the first segment
// names the section, the rest is the field.
func envKeyToPath(key string) string {
	parts := strings.FieldsFunc(strings.ToLower(key), func(r rune) bool { return r == '_' })
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return parts[0] + "." + strings.Join(parts[1:], "_")
	}
}
