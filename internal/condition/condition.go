// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package condition translates numeric WMO weather codes into human-readable labels.
package condition

import (
	"fmt"
	"strconv"

	"github.com/vorlif/spreak"
	"github.com/vorlif/spreak/localize"

	"github.com/wneessen/weather-monitor/internal/vartype"
)

// UnknownCode is the sentinel used for an absent weather code. It is not a valid WMO code and
// therefore always resolves to the fallback label.
const UnknownCode = -1

// fallbackLabel embeds the numeric code so that unknown codes are never lost. The code is passed
// preformatted, the message printer would otherwise apply locale digit grouping.
const fallbackLabel localize.MsgID = "Code %s"

// WMOWeatherCodes maps WMO weather code integers to their descriptions
var WMOWeatherCodes = map[int]localize.MsgID{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snow fall",
	73: "Moderate snow fall",
	75: "Heavy snow fall",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

// Translator resolves weather codes into localized labels. A nil localizer yields the English labels.
type Translator struct {
	localizer *spreak.Localizer
}

// New returns a Translator using the given localizer.
func New(localizer *spreak.Localizer) *Translator {
	return &Translator{localizer: localizer}
}

// Translate returns the label for the given code. Unset codes are treated as UnknownCode.
func (t *Translator) Translate(code vartype.VarInt) string {
	if !code.IsSet() {
		return t.Label(UnknownCode)
	}
	return t.Label(code.Value())
}

// Label returns the label for a known code or the "Code {code}" fallback.
func (t *Translator) Label(code int) string {
	label, ok := WMOWeatherCodes[code]
	if !ok {
		if t.localizer == nil {
			return fmt.Sprintf(string(fallbackLabel), strconv.Itoa(code))
		}
		return t.localizer.Getf(fallbackLabel, strconv.Itoa(code))
	}
	if t.localizer == nil {
		return label
	}
	return t.localizer.Get(label)
}
