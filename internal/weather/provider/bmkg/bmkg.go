// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package bmkg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/wneessen/weather-monitor/internal/condition"
	"github.com/wneessen/weather-monitor/internal/http"
	"github.com/wneessen/weather-monitor/internal/logger"
	"github.com/wneessen/weather-monitor/internal/vartype"
	"github.com/wneessen/weather-monitor/internal/weather"
)

const (
	name            = "bmkg"
	DefaultEndpoint = "https://api.bmkg.go.id/publik/prakiraan-cuaca"
	DefaultTimezone = "Asia/Jakarta"

	windSpeedUnit = "km/h"
)

// ErrMissingRegion is returned when a location has no ADM4 region code.
var ErrMissingRegion = errors.New("region code is required")

type BMKG struct {
	endpoint    string
	defaultZone *time.Location
	http        *http.Client
	log         *logger.Logger
	translator  *condition.Translator
	now         func() time.Time
}

type lokasi struct {
	Desa      string             `json:"desa"`
	Kecamatan string             `json:"kecamatan"`
	Latitude  vartype.VarFloat64 `json:"lat"`
	Longitude vartype.VarFloat64 `json:"lon"`
	Timezone  string             `json:"timezone"`
}

type response struct {
	Lokasi *lokasi `json:"lokasi"`
	Data   []struct {
		Lokasi *lokasi  `json:"lokasi"`
		Cuaca  [][]slot `json:"cuaca"`
	} `json:"data"`
}

type slot struct {
	LocalDateTime string             `json:"local_datetime"`
	WeatherDesc   string             `json:"weather_desc"`
	Weather       vartype.VarFloat64 `json:"weather"`
	Temperature   vartype.VarFloat64 `json:"t"`
	Humidity      vartype.VarFloat64 `json:"hu"`
	WindSpeed     vartype.VarFloat64 `json:"ws"`
	WindDirection vartype.VarString  `json:"wd"`
	CloudCover    vartype.VarFloat64 `json:"tcc"`
	Precipitation vartype.VarFloat64 `json:"tp"`
	Visibility    vartype.VarString  `json:"vs_text"`
}

// New returns the region based BMKG provider. An empty endpoint selects the public API, an empty
// defaultTZ selects Asia/Jakarta.
func New(http *http.Client, log *logger.Logger, translator *condition.Translator, endpoint, defaultTZ string,
) (*BMKG, error) {
	if http == nil {
		return nil, fmt.Errorf("http client is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if translator == nil {
		translator = condition.New(nil)
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if defaultTZ == "" {
		defaultTZ = DefaultTimezone
	}
	zone, err := time.LoadLocation(defaultTZ)
	if err != nil {
		return nil, fmt.Errorf("failed to load default timezone %q: %w", defaultTZ, err)
	}

	return &BMKG{
		endpoint:    endpoint,
		defaultZone: zone,
		http:        http,
		log:         log,
		translator:  translator,
		now:         time.Now,
	}, nil
}

// WithClock replaces the clock the nearest forecast slot is selected against. A nil clock is ignored.
func (b *BMKG) WithClock(now func() time.Time) *BMKG {
	if now != nil {
		b.now = now
	}
	return b
}

func (b *BMKG) Name() string {
	return name
}

// Fetch satisfies the weather.Provider interface.
func (b *BMKG) Fetch(ctx context.Context, loc weather.Location) weather.Outcome {
	if loc.Region == "" {
		return weather.RequestFailed(ErrMissingRegion)
	}
	return b.FetchRegion(ctx, loc.Region)
}

// FetchRegion retrieves the 3-hourly forecast of the given ADM4 region and returns the slot that is
// nearest to the current time in the region's timezone.
func (b *BMKG) FetchRegion(ctx context.Context, regionCode string) weather.Outcome {
	res := new(response)
	query := url.Values{}
	query.Set("adm4", regionCode)
	if _, err := b.http.Get(ctx, b.endpoint, res, query, nil); err != nil {
		return weather.RequestFailed(fmt.Errorf("failed to retrieve forecast from BMKG API: %w", err))
	}

	if len(res.Data) == 0 || len(res.Data[0].Cuaca) == 0 {
		return weather.EmptyData("no forecast data in BMKG response")
	}
	meta := res.Lokasi
	if meta == nil {
		meta = res.Data[0].Lokasi
	}
	if meta == nil {
		meta = new(lokasi)
	}

	zone := b.zone(meta.Timezone, regionCode)
	buckets := make([][]weather.Slot, 0, len(res.Data[0].Cuaca))
	for _, day := range res.Data[0].Cuaca {
		bucket := make([]weather.Slot, 0, len(day))
		for _, s := range day {
			bucket = append(bucket, b.normalize(s, zone, meta))
		}
		buckets = append(buckets, bucket)
	}
	if len(weather.Flatten(buckets)) == 0 {
		return weather.EmptyData("no forecast data in BMKG response")
	}
	b.logMalformed(buckets, zone, regionCode)

	selected, ok := weather.SelectNearest(buckets, b.now().In(zone))
	if !ok {
		return weather.EmptyData("no forecast slot with a valid datetime in BMKG response")
	}
	return weather.Success(selected.Conditions)
}

// zone resolves the reported timezone name, falling back to the default zone.
func (b *BMKG) zone(tz, regionCode string) *time.Location {
	if tz != "" {
		zone, err := time.LoadLocation(tz)
		if err == nil {
			return zone
		}
		b.log.Warn("falling back to default timezone", slog.String("region", regionCode),
			slog.String("default", b.defaultZone.String()),
			logger.Err(fmt.Errorf("%w: %q: %w", weather.ErrUnknownTimezone, tz, err)))
		return b.defaultZone
	}
	b.log.Warn("falling back to default timezone", slog.String("region", regionCode),
		slog.String("default", b.defaultZone.String()),
		logger.Err(fmt.Errorf("%w: no timezone reported", weather.ErrUnknownTimezone)))
	return b.defaultZone
}

func (b *BMKG) normalize(s slot, zone *time.Location, meta *lokasi) weather.Slot {
	conditions := weather.Conditions{
		Time:          s.LocalDateTime,
		Timezone:      zone.String(),
		Condition:     strings.TrimSpace(s.WeatherDesc),
		Temperature:   s.Temperature,
		Humidity:      s.Humidity,
		WindSpeed:     s.WindSpeed,
		WindSpeedUnit: windSpeedUnit,
		WindDirection: s.WindDirection,
		CloudCover:    s.CloudCover,
		Precipitation: s.Precipitation,
		Visibility:    s.Visibility,
		Place:         place(meta),
		Latitude:      meta.Latitude,
		Longitude:     meta.Longitude,
	}
	if s.Weather.IsSet() {
		conditions.WeatherCode.Set(int(math.Round(s.Weather.Value())))
	}
	if conditions.Condition == "" {
		conditions.Condition = b.translator.Translate(conditions.WeatherCode)
	}
	return weather.Slot{LocalDateTime: s.LocalDateTime, Conditions: conditions}
}

func (b *BMKG) logMalformed(buckets [][]weather.Slot, zone *time.Location, regionCode string) {
	for _, s := range weather.Flatten(buckets) {
		if _, err := weather.ParseSlotTime(s.LocalDateTime, zone); err != nil {
			b.log.Debug("skipping forecast slot", slog.String("region", regionCode), logger.Err(err))
		}
	}
}

func place(meta *lokasi) string {
	parts := make([]string, 0, 2)
	for _, part := range []string{meta.Desa, meta.Kecamatan} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}
