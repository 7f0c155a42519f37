package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// EnvPrefix marks the environment variables read by ApplyEnv
const EnvPrefix = "FASTRY_"

// EnvConfigPath names the config file; ApplyEnv ignores it
const EnvConfigPath = EnvPrefix + "CONFIG"

// nested sections, addressed as FASTRY_<SECTION>_<KEY>
var sections = []string{"log", "store"}

// ApplyEnv overrides fields from FASTRY_* entries of environ, given in
// os.Environ form. FASTRY_MAX_POOL_SIZE sets max_pool_size and
// FASTRY_STORE_REDIS_ADDR sets store.redis_addr. Values are converted to the
// field type; unknown keys are an error.
func (c *Config) ApplyEnv(environ []string) error {
	values := make(map[string]any)
	for _, env := range environ {
		key, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) || key == EnvConfigPath {
			continue
		}
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if key == "" {
			continue
		}
		setEnvValue(values, key, value)
	}
	if len(values) == 0 {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(values); err != nil {
		return fmt.Errorf("%w: environment: %v", ErrInvalidConfig, err)
	}
	return nil
}

func setEnvValue(values map[string]any, key, value string) {
	for _, section := range sections {
		rest, ok := strings.CutPrefix(key, section+"_")
		if !ok {
			continue
		}
		sub, _ := values[section].(map[string]any)
		if sub == nil {
			sub = make(map[string]any)
			values[section] = sub
		}
		sub[rest] = value
		return
	}
	values[key] = value
}
