package common

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnv points at a user config file and overrides the default
// lookup under ~/.docsift.
const ConfigPathEnv = "DOCSIFT_CONFIG"

// Baked-in defaults, overridden field by field by the user config.
//
//go:embed config.default.yaml
var defaultConfig []byte

// ConfigManager loads layered configuration into a typed struct.
type ConfigManager[T any] struct {
	k      *koanf.Koanf
	config T
}

// NewConfigManager loads defaults, then the user config file if one exists,
// unmarshals the result and validates it once.
func NewConfigManager[T any]() (*ConfigManager[T], error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultConfig), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	configPath, explicit := userConfigPath()
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), parserFor(configPath)); err != nil {
				return nil, fmt.Errorf("failed to load config %s: %w", configPath, err)
			}
		} else if explicit {
			return nil, fmt.Errorf("config file %s: %w", configPath, err)
		}
	}

	cm := &ConfigManager[T]{k: k}
	if err := cm.unmarshal(&cm.config); err != nil {
		return nil, err
	}
	if v, ok := any(&cm.config).(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}

	return cm, nil
}

// GetConfig returns the loaded, validated configuration.
func (cm *ConfigManager[T]) GetConfig() T {
	return cm.config
}

// Raw returns the merged configuration as a nested key map, for rendering
// back to the user.
func (cm *ConfigManager[T]) Raw() map[string]any {
	return cm.k.Raw()
}

func (cm *ConfigManager[T]) unmarshal(out *T) error {
	return cm.k.UnmarshalWithConf("", out, koanf.UnmarshalConf{
		Tag: "key",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           out,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	})
}

// userConfigPath resolves the config file location. The second return is
// true when the path was set explicitly and must therefore exist.
func userConfigPath() (string, bool) {
	if path := os.Getenv(ConfigPathEnv); path != "" {
		return path, true
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	return filepath.Join(home, ".docsift", "config.yaml"), false
}

func parserFor(path string) koanf.Parser {
	if strings.HasSuffix(path, ".json") {
		return json.Parser()
	}
	return yaml.Parser()
}
