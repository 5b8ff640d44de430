// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package openmeteo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wneessen/weather-monitor/internal/condition"
	"github.com/wneessen/weather-monitor/internal/http"
	"github.com/wneessen/weather-monitor/internal/logger"
	"github.com/wneessen/weather-monitor/internal/vartype"
	"github.com/wneessen/weather-monitor/internal/weather"
)

const (
	name                 = "open-meteo"
	DefaultEndpoint      = "https://api.open-meteo.com/v1/forecast"
	DefaultForecastHours = 2

	// previewLen is the number of hourly entries shown in the short range preview.
	previewLen = 2
	// fallbackTimeLayout is used when the upstream omits the current time.
	fallbackTimeLayout = "2006-01-02T15:04"
)

var (
	currentFields = []string{
		"temperature_2m", "relative_humidity_2m", "wind_speed_10m", "wind_direction_10m",
		"precipitation", "weather_code", "cloud_cover",
	}
	hourlyFields = []string{"precipitation", "precipitation_probability"}
)

type OpenMeteo struct {
	endpoint      string
	forecastHours uint
	http          *http.Client
	log           *logger.Logger
	translator    *condition.Translator
	now           func() time.Time
}

type response struct {
	Latitude     vartype.VarFloat64 `json:"latitude"`
	Longitude    vartype.VarFloat64 `json:"longitude"`
	Timezone     string             `json:"timezone"`
	CurrentUnits struct {
		WindSpeed10M string `json:"wind_speed_10m"`
	} `json:"current_units"`
	Current json.RawMessage `json:"current"`
	Hourly  struct {
		Time                     []string             `json:"time"`
		Precipitation            []vartype.VarFloat64 `json:"precipitation"`
		PrecipitationProbability []vartype.VarFloat64 `json:"precipitation_probability"`
	} `json:"hourly"`
}

type current struct {
	Time             string             `json:"time"`
	Temperature      vartype.VarFloat64 `json:"temperature_2m"`
	RelativeHumidity vartype.VarFloat64 `json:"relative_humidity_2m"`
	WindSpeed        vartype.VarFloat64 `json:"wind_speed_10m"`
	WindDirection    vartype.VarFloat64 `json:"wind_direction_10m"`
	Precipitation    vartype.VarFloat64 `json:"precipitation"`
	WeatherCode      vartype.VarFloat64 `json:"weather_code"`
	CloudCover       vartype.VarFloat64 `json:"cloud_cover"`
}

// New returns the coordinate based Open-Meteo provider. An empty endpoint selects the public API.
func New(http *http.Client, log *logger.Logger, translator *condition.Translator, endpoint string,
	forecastHours uint,
) (*OpenMeteo, error) {
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
	if forecastHours == 0 {
		forecastHours = DefaultForecastHours
	}

	return &OpenMeteo{
		endpoint:      endpoint,
		forecastHours: forecastHours,
		http:          http,
		log:           log,
		translator:    translator,
		now:           time.Now,
	}, nil
}

func (o *OpenMeteo) Name() string {
	return name
}

// Fetch satisfies the weather.Provider interface.
func (o *OpenMeteo) Fetch(ctx context.Context, loc weather.Location) weather.Outcome {
	return o.FetchCoordinates(ctx, loc.Latitude, loc.Longitude, loc.Timezone)
}

// FetchCoordinates retrieves the current conditions and the hourly precipitation preview for the
// given coordinates. Timestamps are returned in the given timezone.
func (o *OpenMeteo) FetchCoordinates(ctx context.Context, lat, lon float64, tz string) weather.Outcome {
	if tz == "" {
		tz = "auto"
	}
	res := new(response)

	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	query.Set("current", strings.Join(currentFields, ","))
	query.Set("hourly", strings.Join(hourlyFields, ","))
	query.Set("forecast_hours", strconv.FormatUint(uint64(o.forecastHours), 10))
	query.Set("timezone", tz)
	query.Set("wind_speed_unit", "ms")

	if _, err := o.http.Get(ctx, o.endpoint, res, query, nil); err != nil {
		return weather.RequestFailed(fmt.Errorf("failed to retrieve weather data from Open-Meteo API: %w", err))
	}

	raw := bytes.TrimSpace(res.Current)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return weather.EmptyData("no current data in Open-Meteo response")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return weather.RequestFailed(fmt.Errorf("failed to decode Open-Meteo current block: %w", err))
	}
	if len(fields) == 0 {
		return weather.EmptyData("no current data in Open-Meteo response")
	}
	cur := new(current)
	if err := json.Unmarshal(raw, cur); err != nil {
		return weather.RequestFailed(fmt.Errorf("failed to decode Open-Meteo current block: %w", err))
	}

	zone := res.Timezone
	if zone == "" {
		zone = tz
	}
	conditions := weather.Conditions{
		Time:          cur.Time,
		Timezone:      zone,
		Temperature:   cur.Temperature,
		Humidity:      cur.RelativeHumidity,
		WindSpeed:     cur.WindSpeed,
		WindSpeedUnit: res.CurrentUnits.WindSpeed10M,
		Precipitation: cur.Precipitation,
		CloudCover:    cur.CloudCover,
		Latitude:      res.Latitude,
		Longitude:     res.Longitude,
		Preview:       preview(res),
	}
	if conditions.Time == "" {
		conditions.Time = o.localNow(zone).Format(fallbackTimeLayout)
	}
	if conditions.WindSpeedUnit == "" {
		conditions.WindSpeedUnit = "m/s"
	}
	if cur.WindDirection.IsSet() {
		conditions.WindDirection.Set(strconv.FormatFloat(cur.WindDirection.Value(), 'f', -1, 64) + "°")
	}
	if cur.WeatherCode.IsSet() {
		conditions.WeatherCode.Set(int(math.Round(cur.WeatherCode.Value())))
	}
	conditions.Condition = o.translator.Translate(conditions.WeatherCode)

	return weather.Success(conditions)
}

// preview extracts the first hourly entries. A precipitation amount beyond the end of its array
// counts as zero, a missing probability stays unavailable.
func preview(res *response) []weather.HourlyPreview {
	hourly := res.Hourly
	if len(hourly.Time) == 0 || len(hourly.PrecipitationProbability) == 0 {
		return nil
	}
	size := min(previewLen, len(hourly.Time))
	entries := make([]weather.HourlyPreview, 0, size)
	for i := 0; i < size; i++ {
		entry := weather.HourlyPreview{Time: hourly.Time[i]}
		if i < len(hourly.PrecipitationProbability) {
			entry.PrecipitationProbability = hourly.PrecipitationProbability[i]
		}
		entry.Precipitation = vartype.NewVariable(0.0)
		if i < len(hourly.Precipitation) {
			entry.Precipitation = hourly.Precipitation[i]
		}
		entries = append(entries, entry)
	}
	return entries
}

func (o *OpenMeteo) localNow(zone string) time.Time {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		o.log.Debug("unable to resolve timezone for fallback time", slog.String("timezone", zone),
			logger.Err(err))
		return o.now()
	}
	return o.now().In(loc)
}
