package grayscale

import "time"

// DefaultTimeout bounds how long a conversion waits for the device.
const DefaultTimeout = 30 * time.Second

// Option configures a converter.
//
// Example:
//
//	// GPU conversion with a tighter wait bound
//	res, err := grayscale.Convert(ctx, buf, grayscale.WithTimeout(5*time.Second))
//
//	// CPU reference conversion on 8 workers
//	res, err := grayscale.Convert(ctx, buf, grayscale.WithBackend("cpu"), grayscale.WithWorkers(8))
type Option func(*Config)

// Config is the resolved option set handed to a backend factory.
type Config struct {
	// Backend is the registered backend name. Default "gpu".
	Backend string

	// Timeout bounds each blocking device wait. Zero means DefaultTimeout.
	Timeout time.Duration

	// Workers is the CPU worker count. Zero or negative means GOMAXPROCS.
	Workers int

	// AllowSoftware lets CPU-class adapters satisfy device selection.
	AllowSoftware bool

	// Platforms restricts and orders the compute platforms that are searched
	// ("vulkan", "metal", "dx12", "gl"). Empty means all of them.
	Platforms []string

	// DeviceProvider is an external device to share instead of selecting
	// one. It must expose HalDevice() any and HalQueue() any.
	DeviceProvider any
}

func defaultConfig() Config {
	return Config{
		Backend: "gpu",
		Timeout: DefaultTimeout,
	}
}

// NewConfig applies opts over the defaults.
func NewConfig(opts ...Option) Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return cfg
}

// WithBackend selects a registered backend by name.
func WithBackend(name string) Option {
	return func(c *Config) {
		c.Backend = name
	}
}

// WithTimeout bounds each blocking device wait.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithWorkers sets the CPU worker count.
func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

// WithSoftwareAdapters lets CPU-class adapters satisfy device selection.
// Off by default: the conversion requires a GPU-class compute unit. A CPU
// adapter is only used if it converts a known pixel correctly.
func WithSoftwareAdapters(allow bool) Option {
	return func(c *Config) {
		c.AllowSoftware = allow
	}
}

// WithPlatforms restricts and orders the searched compute platforms.
func WithPlatforms(names ...string) Option {
	return func(c *Config) {
		c.Platforms = append([]string(nil), names...)
	}
}

// WithDeviceProvider shares an external GPU device, typically a
// gpucontext.DeviceProvider from a gogpu application.
func WithDeviceProvider(provider any) Option {
	return func(c *Config) {
		c.DeviceProvider = provider
	}
}
