// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kkyr/fig"
)

const (
	configEnv = "WEATHERMONITOR"

	// checkTag is the struct tag used for location validation, fig owns the "validate" tag.
	checkTag = "check"

	SourceOpenMeteo = "open-meteo"
	SourceBMKG      = "bmkg"
)

// regionPattern matches an ADM4 administrative region code, e.g. 31.71.01.1001.
var regionPattern = regexp.MustCompile(`^\d{2}\.\d{2}\.\d{2}\.\d{4}$`)

// ErrNoLocations is returned when the location list is empty after defaults have been applied.
var ErrNoLocations = errors.New("no locations configured")

// Config represents the application's configuration structure.
//
// fig applies defaults to zero values, so durations and counts that should be disabled are set to a
// negative value instead of zero.
type Config struct {
	Locale   string     `fig:"locale"`
	LogLevel slog.Level `fig:"loglevel" default:"0"`

	Report struct {
		File        string `fig:"file" default:"reports/weather_report.txt"`
		MetricsFile string `fig:"metrics_file"`
		// HeaderTimezone is the zone of the run timestamp in the console header
		HeaderTimezone string `fig:"header_timezone" default:"Asia/Jakarta"`
	} `fig:"report"`

	Fetch struct {
		// Pause between two location fetches. A negative value disables it.
		Pause time.Duration `fig:"pause" default:"1s"`
		// Allowed values: 1 to 32
		Workers int `fig:"workers" default:"1"`
	} `fig:"fetch"`

	HTTP struct {
		ConnectTimeout  time.Duration `fig:"connect_timeout" default:"5s"`
		ReadTimeout     time.Duration `fig:"read_timeout" default:"20s"`
		MaxRetries      int           `fig:"max_retries" default:"3"`
		BackoffFactor   time.Duration `fig:"backoff_factor" default:"1500ms"`
		MaxBackoff      time.Duration `fig:"max_backoff" default:"10s"`
		BreakerFailures uint32        `fig:"breaker_failures" default:"5"`
		BreakerTimeout  time.Duration `fig:"breaker_timeout" default:"1m"`
		APIKey          string        `fig:"api_key"`
		APIKeyHeader    string        `fig:"api_key_header" default:"X-API-Key"`
	} `fig:"http"`

	Sources struct {
		OpenMeteo struct {
			Endpoint string `fig:"endpoint"`
			// Allowed value: 1 to 24
			ForecastHours uint `fig:"forecast_hours" default:"2"`
		} `fig:"open_meteo"`
		BMKG struct {
			Endpoint        string `fig:"endpoint"`
			DefaultTimezone string `fig:"default_timezone" default:"Asia/Jakarta"`
		} `fig:"bmkg"`
	} `fig:"sources"`

	Locations []Location `fig:"locations"`
}

// Location is a single monitored place. Coordinate based sources use latitude, longitude and
// timezone, region based sources use the ADM4 region code.
type Location struct {
	Name      string  `fig:"name" check:"required"`
	Source    string  `fig:"source" check:"oneof=open-meteo bmkg"`
	Latitude  float64 `fig:"latitude" check:"latitude"`
	Longitude float64 `fig:"longitude" check:"longitude"`
	Timezone  string  `fig:"timezone" check:"omitempty,timezone"`
	Region    string  `fig:"region" check:"required_if=Source bmkg,adm4"`
}

// DefaultLocations are monitored when the configuration does not name any location.
var DefaultLocations = []Location{
	{Name: "Jakarta, ID", Source: SourceOpenMeteo, Latitude: -6.2, Longitude: 106.816, Timezone: "Asia/Jakarta"},
	{Name: "Tokyo, JP", Source: SourceOpenMeteo, Latitude: 35.68, Longitude: 139.69, Timezone: "Asia/Tokyo"},
	{Name: "London, UK", Source: SourceOpenMeteo, Latitude: 51.50, Longitude: -0.12, Timezone: "Europe/London"},
	{Name: "Sydney, AU", Source: SourceOpenMeteo, Latitude: -33.86, Longitude: 151.21, Timezone: "Australia/Sydney"},
	{
		Name: "San Francisco, US", Source: SourceOpenMeteo, Latitude: 37.77, Longitude: -122.42,
		Timezone: "America/Los_Angeles",
	},
}

func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read Config: %w", err)
	}
	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func (c *Config) Validate() error {
	if c.Locale == "" {
		c.Locale = getLocale()
	}
	if c.Report.File == "" {
		return fmt.Errorf("report file must not be empty")
	}
	if _, err := time.LoadLocation(c.Report.HeaderTimezone); err != nil {
		return fmt.Errorf("invalid header timezone %q: %w", c.Report.HeaderTimezone, err)
	}
	if c.Fetch.Workers < 1 || c.Fetch.Workers > 32 {
		return fmt.Errorf("invalid number of fetch workers: %d", c.Fetch.Workers)
	}
	if c.HTTP.ConnectTimeout <= 0 || c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("invalid HTTP timeouts: connect %s, read %s", c.HTTP.ConnectTimeout,
			c.HTTP.ReadTimeout)
	}
	if c.HTTP.BackoffFactor < 0 || c.HTTP.MaxBackoff < 0 {
		return fmt.Errorf("invalid HTTP backoff: factor %s, max %s", c.HTTP.BackoffFactor, c.HTTP.MaxBackoff)
	}
	if c.Sources.OpenMeteo.ForecastHours < 1 || c.Sources.OpenMeteo.ForecastHours > 24 {
		return fmt.Errorf("invalid forcast hours: %d", c.Sources.OpenMeteo.ForecastHours)
	}
	if _, err := time.LoadLocation(c.Sources.BMKG.DefaultTimezone); err != nil {
		return fmt.Errorf("invalid BMKG default timezone %q: %w", c.Sources.BMKG.DefaultTimezone, err)
	}

	if len(c.Locations) == 0 {
		c.Locations = append([]Location(nil), DefaultLocations...)
	}
	for i := range c.Locations {
		if c.Locations[i].Source == "" {
			c.Locations[i].Source = SourceOpenMeteo
		}
	}
	return validateLocations(c.Locations)
}

func validateLocations(locations []Location) error {
	if len(locations) == 0 {
		return ErrNoLocations
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.SetTagName(checkTag)
	if err := validate.RegisterValidation("adm4", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return value == "" || regionPattern.MatchString(value)
	}); err != nil {
		return fmt.Errorf("failed to register region validation: %w", err)
	}

	holder := struct {
		Locations []Location `check:"unique=Name,dive"`
	}{Locations: locations}
	if err := validate.Struct(holder); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, verr := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %q", verr.Namespace(), verr.Tag()))
			}
			return fmt.Errorf("invalid locations: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("failed to validate locations: %w", err)
	}
	return nil
}

func getLocale() string {
	locale := os.Getenv("LC_MESSAGES")
	if idx := strings.Index(locale, "."); idx != -1 {
		lang := locale[:idx]
		return strings.ReplaceAll(lang, "_", "-")
	}
	return locale
}
