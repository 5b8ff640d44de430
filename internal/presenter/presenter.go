// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package presenter renders fetch outcomes into the console display blocks and the fixed-position
// summary lines of the report artifact.
package presenter

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/nathan-osman/go-sunrise"
	"github.com/vorlif/humanize"
	humanizeid "github.com/vorlif/humanize/locale/id"
	"github.com/vorlif/spreak"
	"github.com/vorlif/spreak/localize"
	"github.com/wneessen/go-moonphase"
	"golang.org/x/text/language"

	"github.com/wneessen/weather-monitor/internal/vartype"
	"github.com/wneessen/weather-monitor/internal/weather"
)

const (
	// HeaderTimeLayout is the layout of the run timestamp in the report header.
	HeaderTimeLayout = "2006-01-02 15:04:05 MST"

	headerTitle   localize.MsgID = "WEATHER MONITORING REPORT (generated %s)"
	previewTitle  localize.MsgID = "Next hours:"
	previewEntry  localize.MsgID = "%s → rain chance %s%%, amount %s mm"
	footerMessage localize.MsgID = "Summary report saved: %s"
	relativeNow   localize.MsgID = "now"
	relativeAhead localize.MsgID = "in %s"
	relativeAgo   localize.MsgID = "%s ago"
)

// slotTimeLayouts are the local datetime layouts delivered by the weather sources.
var slotTimeLayouts = []string{weather.SlotTimeLayout, "2006-01-02T15:04", "2006-01-02T15:04:05"}

type Presenter struct {
	localizer *spreak.Localizer
	humanizer *humanize.Humanizer
	now       func() time.Time
}

type row struct {
	label string
	value string
}

// New returns a Presenter. A nil localizer renders the English labels. Times are humanized in
// the language of the localizer.
func New(localizer *spreak.Localizer) *Presenter {
	lang := language.English
	if localizer != nil {
		lang = localizer.Language()
	}
	collection := humanize.MustNew(humanize.WithLocale(humanizeid.New()))
	return &Presenter{
		localizer: localizer,
		humanizer: collection.CreateHumanizer(lang),
		now:       time.Now,
	}
}

// Header returns the report header section for the given run time.
func (p *Presenter) Header(runTime time.Time) string {
	return section(p.getf(headerTitle, runTime.Format(HeaderTimeLayout)))
}

// Footer returns the closing line naming the artifact path.
func (p *Presenter) Footer(path string) string {
	return "\n" + p.getf(footerMessage, path)
}

// DisplayBlock renders the human-readable, multi-line block for one location. Failed outcomes are
// rendered as their error line.
func (p *Presenter) DisplayBlock(loc weather.Location, outcome weather.Outcome) string {
	lines := []string{section(loc.Name)}
	if !outcome.OK() {
		return strings.Join(append(lines, ErrorLine(loc.Name, Detail(outcome))), "\n")
	}

	cond := outcome.Conditions
	now := p.now().In(zone(cond.Timezone))
	localTime := placeholder(cond.Time)
	if cond.Timezone != "" {
		localTime += " (" + cond.Timezone + ")"
	}

	rows := []row{{p.loc("localtime"), localTime}}
	if relative, ok := p.relative(cond.Time, now); ok {
		rows = append(rows, row{p.loc("relative"), relative})
	}
	if cond.Place != "" {
		rows = append(rows, row{p.loc("place"), cond.Place})
	}

	isDay := true
	var sunRows []row
	if lat, lon, ok := coordinates(loc, cond); ok {
		rise, set := sunrise.SunriseSunset(lat, lon, now.Year(), now.Month(), now.Day())
		if !rise.IsZero() && !set.IsZero() {
			isDay = now.After(rise) && now.Before(set)
			sunRows = append(sunRows,
				row{p.loc("sunrise"), p.humanizer.FormatTime(rise.In(now.Location()), humanize.TimeFormat)},
				row{p.loc("sunset"), p.humanizer.FormatTime(set.In(now.Location()), humanize.TimeFormat)},
			)
		}
	}

	rows = append(rows,
		row{p.loc("condition"), withIcon(placeholder(cond.Condition), conditionIcon(cond.WeatherCode, isDay))},
		row{p.loc("temp"), cond.Temperature.String() + " °C"},
		row{p.loc("humidity"), cond.Humidity.String() + "%"},
		row{p.loc("wind"), fmt.Sprintf("%s %s | %s", cond.WindSpeed, placeholder(cond.WindSpeedUnit),
			withIcon(cond.WindDirection.String(), windDirIcons[strings.ToUpper(cond.WindDirection.Value())]))},
		row{p.loc("precipitation"), cond.Precipitation.String() + " mm"},
		row{p.loc("cloudcover"), cond.CloudCover.String() + "%"},
		row{p.loc("visibility"), cond.Visibility.String()},
	)
	rows = append(rows, sunRows...)
	phase := moonphase.New(now).PhaseName()
	rows = append(rows, row{p.loc("moonphase"), withIcon(p.loc(phase), MoonPhaseIcon[phase])})
	lines = append(lines, align(rows)...)

	if len(cond.Preview) > 0 {
		lines = append(lines, p.get(previewTitle))
		for _, entry := range cond.Preview {
			lines = append(lines, "  • "+p.getf(previewEntry, placeholder(entry.Time),
				entry.PrecipitationProbability.String(), entry.Precipitation.String()))
		}
	}
	return strings.Join(lines, "\n")
}

// SummaryLine renders the single, fixed-position summary line of a location. Every field is always
// present; unavailable values are rendered as vartype.Placeholder.
func SummaryLine(loc weather.Location, outcome weather.Outcome) string {
	if !outcome.OK() {
		return ErrorLine(loc.Name, Detail(outcome))
	}
	cond := outcome.Conditions
	return fmt.Sprintf("[%s] %s | %s | %s°C | RH %s%% | Wind %s %s (%s) | Precip %s mm | Cloud %s%% | Vis %s",
		loc.Name, placeholder(cond.Time), placeholder(cond.Condition), cond.Temperature, cond.Humidity,
		cond.WindSpeed, placeholder(cond.WindSpeedUnit), cond.WindDirection, cond.Precipitation, cond.CloudCover,
		cond.Visibility)
}

// ErrorLine renders the line of a location that could not be fetched.
func ErrorLine(name, detail string) string {
	return fmt.Sprintf("[%s] ERROR: %s", name, detail)
}

// Detail returns the human readable failure detail of an outcome.
func Detail(outcome weather.Outcome) string {
	if outcome.Reason != "" {
		return outcome.Reason
	}
	if outcome.Err != nil {
		return outcome.Err.Error()
	}
	return outcome.Kind.String()
}

// relative returns the distance between the reading time and now, e.g. "in 1 hour, 15 minutes".
func (p *Presenter) relative(value string, now time.Time) (string, bool) {
	var readAt time.Time
	parsed := false
	for _, layout := range slotTimeLayouts {
		t, err := time.ParseInLocation(layout, value, now.Location())
		if err == nil {
			readAt, parsed = t, true
			break
		}
	}
	if !parsed {
		return "", false
	}

	delta := readAt.Sub(now)
	switch {
	case delta.Abs() < time.Minute:
		return p.get(relativeNow), true
	case delta > 0:
		return p.getf(relativeAhead, p.humanizer.TimeUntilFrom(readAt, now)), true
	default:
		return p.getf(relativeAgo, p.humanizer.TimeSinceFrom(readAt, now)), true
	}
}

func (p *Presenter) loc(val string) string {
	if raw, ok := i18nVars[strings.ToLower(val)]; ok {
		return p.get(raw)
	}
	return val
}

func (p *Presenter) get(id localize.MsgID) string {
	if p.localizer == nil {
		return string(id)
	}
	return p.localizer.Get(id)
}

func (p *Presenter) getf(id localize.MsgID, vars ...any) string {
	if p.localizer == nil {
		return fmt.Sprintf(string(id), vars...)
	}
	return p.localizer.Getf(id, vars...)
}

// section underlines a title to the display width of the title.
func section(title string) string {
	return title + "\n" + strings.Repeat("=", runewidth.StringWidth(title))
}

// align pads all labels to the display width of the widest one.
func align(rows []row) []string {
	width := 0
	for _, r := range rows {
		width = max(width, runewidth.StringWidth(r.label))
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, runewidth.FillRight(r.label, width)+" : "+r.value)
	}
	return lines
}

func coordinates(loc weather.Location, cond weather.Conditions) (float64, float64, bool) {
	if cond.Latitude.IsSet() && cond.Longitude.IsSet() {
		return cond.Latitude.Value(), cond.Longitude.Value(), true
	}
	if loc.Region == "" {
		return loc.Latitude, loc.Longitude, true
	}
	return 0, 0, false
}

func conditionIcon(code vartype.VarInt, isDay bool) string {
	if !code.IsSet() {
		return ""
	}
	return WMOWeatherIcons[code.Value()][isDay]
}

func withIcon(value, icon string) string {
	if icon == "" {
		return value
	}
	return value + " " + icon
}

func placeholder(val string) string {
	if val == "" {
		return vartype.Placeholder
	}
	return val
}

func zone(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
