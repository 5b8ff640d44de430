// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"fmt"
	"time"

	"github.com/wneessen/weather-monitor/internal/condition"
	"github.com/wneessen/weather-monitor/internal/config"
	"github.com/wneessen/weather-monitor/internal/http"
	"github.com/wneessen/weather-monitor/internal/weather"
	"github.com/wneessen/weather-monitor/internal/weather/provider/bmkg"
	openmeteo "github.com/wneessen/weather-monitor/internal/weather/provider/open-meteo"
)

// httpConfig maps the HTTP section of the configuration to the retrieval client settings.
func httpConfig(conf *config.Config) http.Config {
	return http.Config{
		ConnectTimeout:  conf.HTTP.ConnectTimeout,
		ReadTimeout:     conf.HTTP.ReadTimeout,
		MaxRetries:      conf.HTTP.MaxRetries,
		BackoffFactor:   conf.HTTP.BackoffFactor,
		MaxBackoff:      conf.HTTP.MaxBackoff,
		BreakerFailures: conf.HTTP.BreakerFailures,
		BreakerTimeout:  conf.HTTP.BreakerTimeout,
		APIKey:          conf.HTTP.APIKey,
		APIKeyHeader:    conf.HTTP.APIKeyHeader,
	}
}

// selectWeatherProviders creates one provider per supported source. All providers share the given
// HTTP client and with it the connection pool.
func (s *Service) selectWeatherProviders(client *http.Client, translator *condition.Translator,
) (map[string]weather.Provider, error) {
	providers := make(map[string]weather.Provider)

	om, err := openmeteo.New(client, s.logger, translator, s.config.Sources.OpenMeteo.Endpoint,
		s.config.Sources.OpenMeteo.ForecastHours)
	if err != nil {
		return nil, fmt.Errorf("failed to create Open-Meteo weather provider: %w", err)
	}
	providers[weather.SourceOpenMeteo] = om

	bm, err := bmkg.New(client, s.logger, translator, s.config.Sources.BMKG.Endpoint,
		s.config.Sources.BMKG.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("failed to create BMKG weather provider: %w", err)
	}
	// Slot selection follows the run clock, not the wall clock.
	providers[weather.SourceBMKG] = bm.WithClock(func() time.Time { return s.now() })

	return providers, nil
}

// locations converts the configured locations into their domain representation.
func locations(conf *config.Config) []weather.Location {
	locs := make([]weather.Location, 0, len(conf.Locations))
	for _, loc := range conf.Locations {
		locs = append(locs, weather.Location{
			Name:      loc.Name,
			Source:    loc.Source,
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
			Timezone:  loc.Timezone,
			Region:    loc.Region,
		})
	}
	return locs
}
