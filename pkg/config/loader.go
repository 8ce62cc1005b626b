package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Option configures a single Load call.
type Option func(*loadOptions)

type loadOptions struct {
	prefix   string
	envFiles []string
	env      map[string]string
}

// WithPrefix prepends prefix to every env tag of the struct.
func WithPrefix(prefix string) Option {
	return func(o *loadOptions) { o.prefix = prefix }
}

// WithEnvFiles loads the given dotenv files instead of the default ".env".
// Missing files are ignored.
func WithEnvFiles(files ...string) Option {
	return func(o *loadOptions) { o.envFiles = files }
}

// WithEnvironment parses from the given map instead of the process
// environment. Dotenv files are not read in this mode.
func WithEnvironment(vars map[string]string) Option {
	return func(o *loadOptions) { o.env = vars }
}

var cache = struct {
	mu     sync.Mutex
	values map[reflect.Type]any
}{values: make(map[reflect.Type]any)}

// Load parses the environment into v. The first successful result for a
// type is cached and copied into v on subsequent calls.
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}

	o := loadOptions{envFiles: []string{".env"}}
	for _, opt := range opts {
		opt(&o)
	}

	key := reflect.TypeFor[T]()

	cache.mu.Lock()
	defer cache.mu.Unlock()

	if cached, ok := cache.values[key]; ok {
		*v = cached.(T)
		return nil
	}

	if o.env == nil {
		for _, f := range o.envFiles {
			// The file is optional; godotenv never overrides set variables.
			_ = godotenv.Load(f)
		}
	}

	parsed := *v
	if err := env.ParseWithOptions(&parsed, env.Options{
		Prefix:      o.prefix,
		Environment: o.env,
	}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	cache.values[key] = parsed
	*v = parsed
	return nil
}

// MustLoad works like Load but panics on failure.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// Reset drops every cached configuration.
func Reset() {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	clear(cache.values)
}
