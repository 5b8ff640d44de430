// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package weather

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/weather-monitor/internal/vartype"
)

const (
	SourceOpenMeteo = "open-meteo"
	SourceBMKG      = "bmkg"
)

var (
	// ErrEmptyData is returned when a response parsed fine but the expected data block is missing.
	ErrEmptyData = errors.New("empty data")
	// ErrMalformedTimestamp is returned when a forecast slot's datetime cannot be parsed.
	ErrMalformedTimestamp = errors.New("malformed timestamp")
	// ErrUnknownTimezone is returned when a reported timezone name cannot be resolved.
	ErrUnknownTimezone = errors.New("unknown timezone")
)

// Provider is implemented by each weather API backend. Fetch never returns an error; every
// failure mode is converted into an Outcome.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, loc Location) Outcome
}

// Location identifies one monitored place. Coordinate based sources use Latitude, Longitude and
// Timezone, region based sources use Region.
type Location struct {
	Name      string
	Source    string
	Latitude  float64
	Longitude float64
	Timezone  string
	Region    string
}

// Conditions is the normalized weather snapshot for one location at one instant.
type Conditions struct {
	// Time is the local timestamp as reported by the upstream API.
	Time      string
	Timezone  string
	Condition string

	WeatherCode   vartype.VarInt
	Temperature   vartype.VarFloat64
	Humidity      vartype.VarFloat64
	WindSpeed     vartype.VarFloat64
	WindSpeedUnit string
	// WindDirection is either degrees (e.g. "270°") or compass text (e.g. "NE").
	WindDirection vartype.VarString
	Precipitation vartype.VarFloat64
	CloudCover    vartype.VarFloat64
	Visibility    vartype.VarString

	// Place, Latitude and Longitude describe where the upstream located the reading.
	Place     string
	Latitude  vartype.VarFloat64
	Longitude vartype.VarFloat64

	Preview []HourlyPreview
}

// HourlyPreview is one entry of the short range precipitation preview.
type HourlyPreview struct {
	Time                     string
	PrecipitationProbability vartype.VarFloat64
	Precipitation            vartype.VarFloat64
}

// OutcomeKind discriminates the result of a single location fetch.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeEmptyData
	OutcomeRequestFailed
)

// String satisfies the fmt.Stringer interface for the OutcomeKind type.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeEmptyData:
		return "empty_data"
	case OutcomeRequestFailed:
		return "request_failed"
	}
	return "unknown"
}

// Outcome is the result of fetching one location. Conditions is only valid for OutcomeSuccess.
type Outcome struct {
	Kind       OutcomeKind
	Conditions Conditions
	Reason     string
	Err        error
}

// Success returns a successful Outcome for the given conditions.
func Success(conditions Conditions) Outcome {
	return Outcome{Kind: OutcomeSuccess, Conditions: conditions}
}

// EmptyData returns an Outcome for a response without the expected data block.
func EmptyData(reason string) Outcome {
	return Outcome{Kind: OutcomeEmptyData, Reason: reason, Err: fmt.Errorf("%w: %s", ErrEmptyData, reason)}
}

// RequestFailed returns an Outcome for a failed request.
func RequestFailed(err error) Outcome {
	if err == nil {
		err = errors.New("request failed")
	}
	return Outcome{Kind: OutcomeRequestFailed, Reason: err.Error(), Err: err}
}

// OK reports whether the Outcome carries conditions.
func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}
