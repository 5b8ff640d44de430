// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package i18n provides the localizer for the console report and the weather condition labels.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/Xuanwo/go-locale"
	"github.com/vorlif/spreak"
	"golang.org/x/text/language"
)

//go:embed locale/*
var locales embed.FS

// Supported lists the languages a catalog is embedded for. The first one is the source language.
var Supported = []language.Tag{language.English, language.Indonesian}

var matcher = language.NewMatcher(Supported)

// New returns a localizer for the given locale. An empty locale is detected from the environment.
// Locales without a catalog fall back to English.
func New(loc string) (*spreak.Localizer, error) {
	tag, err := Resolve(loc)
	if err != nil {
		return nil, err
	}

	localeFS, err := fs.Sub(locales, "locale")
	if err != nil {
		return nil, fmt.Errorf("failed to load locales: %w", err)
	}

	bundle, err := spreak.NewBundle(
		spreak.WithSourceLanguage(language.English),
		spreak.WithFallbackLanguage(language.English),
		spreak.WithDomainFs("", localeFS),
		spreak.WithLanguage(language.Indonesian),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create i18n bundle: %w", err)
	}
	return spreak.NewLocalizer(bundle, tag), nil
}

// Resolve maps a locale string to the best matching supported language.
func Resolve(loc string) (language.Tag, error) {
	var tag language.Tag
	if loc == "" {
		detected, err := locale.Detect()
		if err != nil {
			return language.English, nil // Unable to detect locale, fallback to English
		}
		tag = detected
	} else {
		parsed, err := language.Parse(loc)
		if err != nil {
			return language.Und, fmt.Errorf("invalid locale %q: %w", loc, err)
		}
		tag = parsed
	}

	_, idx, _ := matcher.Match(tag)
	return Supported[idx], nil
}
