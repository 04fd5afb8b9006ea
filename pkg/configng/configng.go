package configng

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const envPrefix = "STUDIO"

// IdentityConfig describes the external identity provider whose ID tokens open sessions.
type IdentityConfig struct {
	IssuerURL string
	ClientID  string
}

// SessionConfig controls the signed session cookie.
type SessionConfig struct {
	CookieName string
	// PrivateKey is a base64-encoded PEM EC private key used to sign session tokens.
	PrivateKey string
	Issuer     string
	TTL        time.Duration
	Secure     bool
}

// ServiceConfig points at an upstream HTTP service.
type ServiceConfig struct {
	URL          string
	Timeout      time.Duration
	RetryMax     int
	ServiceToken string
}

type RedisConfig struct {
	URL string
}

// LimitsConfig holds workflow constants that operators may need to tune.
type LimitsConfig struct {
	MaxVideoSize       int64
	MaxImageSize       int64
	MintTimeout        time.Duration
	SettleDelay        time.Duration
	MaxWriteAttempts   int
	WriteRetryInterval time.Duration
	SignInRate         float64
	SignInBurst        int
}

type Config struct {
	V *viper.Viper
}

// Read loads config file `name` of `format` from path, with STUDIO_* environment overrides.
func Read(path, name, format string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType(format)
	v.AddConfigPath(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	err := v.ReadInConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return &Config{V: v}, nil
}

// New returns a config populated only with defaults. Useful in tests.
func New() *Config {
	v := viper.New()
	setDefaults(v)
	return &Config{V: v}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Address", ":8080")
	v.SetDefault("Debug", false)
	v.SetDefault("GracefulShutdown", 5*time.Second)
	v.SetDefault("ShutdownTimeout", 30*time.Second)
	v.SetDefault("CORSDomains", []string{"http://localhost:3000"})
	v.SetDefault("Redis", "redis://localhost:6379/0")
	v.SetDefault("RedisBus", "redis://localhost:6379/1")
	v.SetDefault("WorkerConcurrency", 3)
	v.SetDefault("Environment", "development")

	v.SetDefault("Session.CookieName", "studio_session")
	v.SetDefault("Session.Issuer", "studio")
	v.SetDefault("Session.TTL", 14*24*time.Hour)
	v.SetDefault("Session.Secure", true)

	for _, svc := range []string{"ContentAPI", "ChainAPI", "Ingest", "WalletBridge"} {
		v.SetDefault(svc+".Timeout", 20*time.Second)
		v.SetDefault(svc+".RetryMax", 3)
	}

	v.SetDefault("Limits.MaxVideoSize", int64(100<<20))
	v.SetDefault("Limits.MaxImageSize", int64(10<<20))
	v.SetDefault("Limits.MintTimeout", 15*time.Minute)
	v.SetDefault("Limits.SettleDelay", time.Second)
	v.SetDefault("Limits.MaxWriteAttempts", 11)
	v.SetDefault("Limits.WriteRetryInterval", 500*time.Millisecond)
	v.SetDefault("Limits.SignInRate", 0.2)
	v.SetDefault("Limits.SignInBurst", 5)
}

func (c *Config) ReadIdentityConfig(name string) (IdentityConfig, error) {
	var icfg IdentityConfig
	if err := c.unmarshalSection(name, &icfg); err != nil {
		return icfg, err
	}
	if icfg.IssuerURL == "" || icfg.ClientID == "" {
		return icfg, fmt.Errorf("%s: issuer url and client id are required", name)
	}
	return icfg, nil
}

func (c *Config) ReadSessionConfig(name string) (SessionConfig, error) {
	var scfg SessionConfig
	if err := c.unmarshalSection(name, &scfg); err != nil {
		return scfg, err
	}
	if scfg.PrivateKey == "" {
		return scfg, fmt.Errorf("%s: private key is required", name)
	}
	return scfg, nil
}

func (c *Config) ReadServiceConfig(name string) (ServiceConfig, error) {
	var scfg ServiceConfig
	if err := c.unmarshalSection(name, &scfg); err != nil {
		return scfg, err
	}
	if scfg.URL == "" {
		return scfg, fmt.Errorf("%s: url is required", name)
	}
	return scfg, nil
}

func (c *Config) ReadRedisConfig(name string) RedisConfig {
	return RedisConfig{URL: c.V.GetString(name)}
}

func (c *Config) ReadLimitsConfig(name string) LimitsConfig {
	var lcfg LimitsConfig
	c.unmarshalSection(name, &lcfg)
	return lcfg
}

// unmarshalSection decodes a top-level section with defaults merged in.
// viper's UnmarshalKey returns only the file values when a section is present in the file.
func (c *Config) unmarshalSection(name string, target any) error {
	section, ok := c.V.AllSettings()[strings.ToLower(name)]
	if !ok {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(section)
}

// Override sets a key in place. Intended for tests.
func (c *Config) Override(key string, value any) {
	c.V.Set(key, value)
}
