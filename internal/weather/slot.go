// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package weather

import (
	"fmt"
	"time"
)

// SlotTimeLayout is the layout of the local datetime of a forecast slot.
const SlotTimeLayout = "2006-01-02 15:04:05"

// Slot is one entry of a time-bucketed forecast series.
type Slot struct {
	LocalDateTime string
	Conditions
}

// ParseSlotTime parses the local datetime of a slot in the given location.
func ParseSlotTime(value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(SlotTimeLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %w", ErrMalformedTimestamp, value, err)
	}
	return t, nil
}

// Flatten concatenates day buckets into one sequence, preserving relative order.
func Flatten(buckets [][]Slot) []Slot {
	var size int
	for _, bucket := range buckets {
		size += len(bucket)
	}
	flat := make([]Slot, 0, size)
	for _, bucket := range buckets {
		flat = append(flat, bucket...)
	}
	return flat
}

// SelectNearest picks the forecast slot that is closest to now. Among slots at or after now, the
// earliest wins (the first one in flattened order on ties). If every slot lies in the past, the last
// parseable slot of the flattened sequence is returned instead. Slots with unparsable datetimes are
// skipped. Datetimes are interpreted in now's location. The boolean is false if no slot parses.
func SelectNearest(buckets [][]Slot, now time.Time) (Slot, bool) {
	flat := Flatten(buckets)
	times := make([]time.Time, len(flat))
	parsed := make([]bool, len(flat))

	best := -1
	for i, slot := range flat {
		t, err := ParseSlotTime(slot.LocalDateTime, now.Location())
		if err != nil {
			continue
		}
		times[i], parsed[i] = t, true
		if t.Before(now) {
			continue
		}
		if best == -1 || t.Before(times[best]) {
			best = i
		}
	}
	if best != -1 {
		return flat[best], true
	}

	// All parseable slots are in the past: fall back to the most recent one in sequence order.
	for i := len(flat) - 1; i >= 0; i-- {
		if parsed[i] {
			return flat[i], true
		}
	}
	return Slot{}, false
}
