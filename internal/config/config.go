// Package config loads the daemon configuration. Every value has a built-in
// default so the daemon runs with no file and no environment.
package config

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/sweeney/spot-outlet/internal/logging"
)

// EnvPrefix prefixes environment overrides, e.g. SPOTOUTLET_PRICES_AREA.
const EnvPrefix = "SPOTOUTLET"

// Config materialises application configuration.
type Config struct {
	// Threshold is the highest price per kWh at which AUTO powers the load.
	Threshold decimal.Decimal `mapstructure:"threshold"`

	Logging  logging.Config `mapstructure:"logging"`
	Prices   PricesConfig   `mapstructure:"prices"`
	Clock    ClockConfig    `mapstructure:"clock"`
	GPIO     GPIOConfig     `mapstructure:"gpio"`
	Button   ButtonConfig   `mapstructure:"button"`
	Actuator ActuatorConfig `mapstructure:"actuator"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	HTTP     HTTPConfig     `mapstructure:"http"`
}

// PricesConfig covers the remote price service and the fetch loop.
type PricesConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Area     string        `mapstructure:"area"`
	Currency string        `mapstructure:"currency"`
	Timezone string        `mapstructure:"timezone"`
	CAFile   string        `mapstructure:"ca_file"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MinSleep time.Duration `mapstructure:"min_sleep"`
	MaxSleep time.Duration `mapstructure:"max_sleep"`
}

// ClockConfig covers network time synchronisation.
type ClockConfig struct {
	NTPHost     string `mapstructure:"ntp_host"`
	ResyncEvery int    `mapstructure:"resync_every"`
}

// GPIOConfig holds BCM line offsets on the chip.
type GPIOConfig struct {
	Chip   string `mapstructure:"chip"`
	Outlet int    `mapstructure:"outlet"`
	Button int    `mapstructure:"button"`
	Red    int    `mapstructure:"red"`
	Green  int    `mapstructure:"green"`
	Blue   int    `mapstructure:"blue"`
	PWMHz  int    `mapstructure:"pwm_hz"`
}

// ButtonConfig governs button sampling.
type ButtonConfig struct {
	Poll     time.Duration `mapstructure:"poll"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// ActuatorConfig governs how often the store is checked for changes.
type ActuatorConfig struct {
	Poll time.Duration `mapstructure:"poll"`
}

// MQTTConfig configures event reporting. An empty broker disables it.
type MQTTConfig struct {
	Broker    string        `mapstructure:"broker"`
	ClientID  string        `mapstructure:"client_id"`
	Heartbeat time.Duration `mapstructure:"heartbeat"`
}

// HTTPConfig configures the status server. An empty address disables it.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds configuration from defaults, an optional file and environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("spot-outlet")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/spot-outlet")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}
	return decode(v)
}

// Default returns the built-in configuration. It reads no file and no
// environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		panic(fmt.Errorf("built-in config: %w", err))
	}
	return cfg
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("threshold", "0.61")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("prices.base_url", "https://www.elprisetjustnu.se")
	v.SetDefault("prices.area", "SE3")
	v.SetDefault("prices.currency", "SEK")
	v.SetDefault("prices.timezone", "Europe/Stockholm")
	v.SetDefault("prices.ca_file", "")
	v.SetDefault("prices.timeout", "30s")
	v.SetDefault("prices.min_sleep", "100s")
	v.SetDefault("prices.max_sleep", "200s")

	v.SetDefault("clock.ntp_host", "pool.ntp.org")
	v.SetDefault("clock.resync_every", 100)

	v.SetDefault("gpio.chip", "gpiochip0")
	v.SetDefault("gpio.outlet", 18)
	v.SetDefault("gpio.button", 23)
	v.SetDefault("gpio.red", 17)
	v.SetDefault("gpio.green", 27)
	v.SetDefault("gpio.blue", 22)
	v.SetDefault("gpio.pwm_hz", 200)

	v.SetDefault("button.poll", "20ms")
	v.SetDefault("button.debounce", "0s")
	v.SetDefault("actuator.poll", "50ms")

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "spot-outlet")
	v.SetDefault("mqtt.heartbeat", "15m")

	v.SetDefault("http.addr", ":8080")
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// stringToDecimalHookFunc decodes strings and numbers into decimal.Decimal.
func stringToDecimalHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != decimalType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return decimal.NewFromString(strings.TrimSpace(v))
		case float64:
			return decimal.NewFromFloat(v), nil
		case int:
			return decimal.NewFromInt(int64(v)), nil
		}
		return data, nil
	}
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			stringToDecimalHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if !c.Threshold.IsPositive() {
		return fmt.Errorf("threshold must be greater than zero")
	}
	if _, err := url.Parse(c.Prices.BaseURL); err != nil || c.Prices.BaseURL == "" {
		return fmt.Errorf("prices.base_url is invalid: %q", c.Prices.BaseURL)
	}
	if c.Prices.Area == "" {
		return fmt.Errorf("prices.area is required")
	}
	if c.Prices.Currency == "" {
		return fmt.Errorf("prices.currency is required")
	}
	if _, err := time.LoadLocation(c.Prices.Timezone); err != nil {
		return fmt.Errorf("prices.timezone: %w", err)
	}
	if c.Prices.MinSleep <= 0 || c.Prices.MaxSleep <= c.Prices.MinSleep {
		return fmt.Errorf("prices.min_sleep must be positive and below prices.max_sleep")
	}
	if c.Clock.ResyncEvery <= 0 {
		return fmt.Errorf("clock.resync_every must be greater than zero")
	}
	if c.GPIO.PWMHz <= 0 {
		return fmt.Errorf("gpio.pwm_hz must be greater than zero")
	}
	if c.Button.Poll <= 0 || c.Actuator.Poll <= 0 {
		return fmt.Errorf("button.poll and actuator.poll must be greater than zero")
	}
	if c.Button.Debounce < 0 {
		return fmt.Errorf("button.debounce must not be negative")
	}
	return nil
}

// Location returns the time zone that defines a price day.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Prices.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
