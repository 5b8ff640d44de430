// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package i18n

import (
	"testing"

	"golang.org/x/text/language"
)

func TestNew(t *testing.T) {
	t.Run("new i18n provider with empty locale string succeeds", func(t *testing.T) {
		provider, err := New("")
		if err != nil {
			t.Fatalf("failed to create i18n provider: %s", err)
		}
		if provider == nil {
			t.Fatal("expected i18n provider to be non-nil")
		}
	})
	t.Run("english source language returns the message ids", func(t *testing.T) {
		provider, err := New("en")
		if err != nil {
			t.Fatalf("failed to create i18n provider: %s", err)
		}
		if got := provider.Get("Clear sky"); got != "Clear sky" {
			t.Errorf("expected %q, got %q", "Clear sky", got)
		}
	})
	t.Run("indonesian catalog translates condition labels", func(t *testing.T) {
		provider, err := New("id")
		if err != nil {
			t.Fatalf("failed to create i18n provider: %s", err)
		}
		if got := provider.Get("Clear sky"); got != "Cerah" {
			t.Errorf("expected %q, got %q", "Cerah", got)
		}
		if got := provider.Getf("Code %s", "9999"); got != "Kode 9999" {
			t.Errorf("expected %q, got %q", "Kode 9999", got)
		}
	})
	t.Run("invalid locale fails", func(t *testing.T) {
		if _, err := New("not a locale!"); err == nil {
			t.Error("expected i18n provider creation to fail")
		}
	})
}

func TestResolve(t *testing.T) {
	tests := []struct {
		loc  string
		want language.Tag
	}{
		{"en", language.English},
		{"en-US", language.English},
		{"id", language.Indonesian},
		{"id-ID", language.Indonesian},
		{"de", language.English},
	}
	for _, tc := range tests {
		t.Run(tc.loc, func(t *testing.T) {
			got, err := Resolve(tc.loc)
			if err != nil {
				t.Fatalf("failed to resolve locale: %s", err)
			}
			if got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
