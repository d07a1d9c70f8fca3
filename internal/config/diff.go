// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"reflect"
	"sort"
)

// ChannelDiff lists channel ids by what a reload did to them.
type ChannelDiff struct {
	Added   []int
	Removed []int
	Changed []int
}

// Empty reports whether no channel changed.
func (d ChannelDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// DiffChannels compares the channel sets of two configs. Every field of a
// channel counts; any difference makes it Changed.
func DiffChannels(prev, next AppConfig) ChannelDiff {
	var d ChannelDiff
	old := make(map[int]ChannelConfig, len(prev.Channels))
	for _, ch := range prev.Channels {
		old[ch.ID] = ch
	}
	seen := make(map[int]struct{}, len(next.Channels))
	for _, ch := range next.Channels {
		seen[ch.ID] = struct{}{}
		was, ok := old[ch.ID]
		switch {
		case !ok:
			d.Added = append(d.Added, ch.ID)
		case !reflect.DeepEqual(was, ch):
			d.Changed = append(d.Changed, ch.ID)
		}
	}
	for id := range old {
		if _, ok := seen[id]; !ok {
			d.Removed = append(d.Removed, id)
		}
	}
	sort.Ints(d.Added)
	sort.Ints(d.Removed)
	sort.Ints(d.Changed)
	return d
}
