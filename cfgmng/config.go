package cfgmng

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

type loadOptions struct {
	envPrefix string
	defaults  map[string]any
	optional  bool
}

// Option configures LoadConfig.
type Option func(*loadOptions)

// WithEnvPrefix makes environment variables PREFIX_SECTION_KEY override
// section.key.
func WithEnvPrefix(prefix string) Option {
	return func(o *loadOptions) { o.envPrefix = prefix }
}

// WithDefaults sets values used when neither the file nor the environment
// provides them. Keys are dotted paths.
func WithDefaults(defaults map[string]any) Option {
	return func(o *loadOptions) { o.defaults = defaults }
}

// Optional tolerates a missing config file.
func Optional() Option {
	return func(o *loadOptions) { o.optional = true }
}

// LoadConfig reads <path>/<filename>.yaml into a T, letting environment
// variables override file values. Each call uses its own viper instance.
func LoadConfig[T any](path string, filename string, opts ...Option) (*T, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(filename)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if o.envPrefix != "" {
		v.SetEnvPrefix(o.envPrefix)
	}
	v.AutomaticEnv()

	for key, value := range o.defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !o.optional || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg T
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
