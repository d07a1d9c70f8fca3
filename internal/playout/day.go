// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playout

import (
	"fmt"
	"time"
)

// ParseDayStart reads "HH:MM" into an offset from midnight.
func ParseDayStart(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("day start %q: want HH:MM", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// BroadcastDay returns the start of the broadcast day containing t. A day
// begins at dayStart past local midnight, so 03:00 with a 06:00 day start
// still belongs to the previous day.
func BroadcastDay(t time.Time, dayStart time.Duration, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	lt := t.In(loc)
	midnight := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	start := midnight.Add(dayStart)
	if lt.Before(start) {
		start = time.Date(lt.Year(), lt.Month(), lt.Day()-1, 0, 0, 0, 0, loc).Add(dayStart)
	}
	return start
}
