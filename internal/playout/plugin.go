// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playout

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	nlog "github.com/ManuGH/nebula/internal/log"
	"github.com/ManuGH/nebula/internal/metrics"
	"github.com/ManuGH/nebula/internal/rundown"
)

// PluginAPI is what an extension may do with its channel.
type PluginAPI interface {
	Stat() Stat
	Cue(ctx context.Context, itemID int64, opts CueOptions) Result
	Take(ctx context.Context) Result
	CueForward(ctx context.Context) Result
	CueBackward(ctx context.Context) Result
	Freeze(ctx context.Context) Result
	Retake(ctx context.Context) Result
	Abort(ctx context.Context) Result
	RecentAsRun(ctx context.Context, limit int) ([]rundown.AsRunEntry, error)
	CurrentBin(ctx context.Context) (rundown.Bin, error)
}

// Plugin is a channel extension addressed by id.
type Plugin interface {
	ID() string
	Exec(ctx context.Context, api PluginAPI, action string, data map[string]any) Result
}

var _ PluginAPI = (*Service)(nil)

// pluginRegistry maps an id to its constructor.
var pluginRegistry = map[string]func() Plugin{
	"asrun":    func() Plugin { return asRunPlugin{} },
	"cuefirst": func() Plugin { return cueFirstPlugin{} },
}

// KnownPlugins lists the ids that can be enabled on a channel.
func KnownPlugins() []string {
	ids := make([]string, 0, len(pluginRegistry))
	for id := range pluginRegistry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func buildPlugins(ids []string) (map[string]Plugin, error) {
	out := make(map[string]Plugin, len(ids))
	for _, id := range ids {
		ctor, ok := pluginRegistry[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPlugin, id)
		}
		out[id] = ctor()
	}
	return out, nil
}

// PluginExec dispatches to an enabled plugin. No channel lock is held while
// the plugin runs, so it may call back into the command API.
func (s *Service) PluginExec(ctx context.Context, id, action string, data map[string]any) Result {
	p, ok := s.plugins[id]
	if !ok {
		r := errorResult(fmt.Errorf("%w: %q", ErrUnknownPlugin, id))
		metrics.IncCommand(s.cfg.ChannelID, "plugin", outcome(r))
		return r
	}
	r := p.Exec(ctx, s, action, data)
	metrics.IncCommand(s.cfg.ChannelID, "plugin", outcome(r))
	s.logger.Info().Str(nlog.FieldPluginID, id).Str("action", action).Str("result", r.String()).Msg("plugin executed")
	return r
}

// CurrentBin returns the bin of the on-air item.
func (s *Service) CurrentBin(ctx context.Context) (rundown.Bin, error) {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()
	if cur == nil {
		return rundown.Bin{}, fmt.Errorf("%w: nothing on air", ErrNothingCued)
	}
	bin, err := s.store.GetBin(ctx, cur.item.BinID)
	if err != nil {
		return rundown.Bin{}, s.res.storeErr(err)
	}
	return bin, nil
}

func unknownAction(plugin, action string) Result {
	return failResult(http.StatusBadRequest, fmt.Errorf("plugin %s: unknown action %q", plugin, action))
}

// asRunPlugin lists recent as-run entries.
type asRunPlugin struct{}

func (asRunPlugin) ID() string { return "asrun" }

func (p asRunPlugin) Exec(ctx context.Context, api PluginAPI, action string, data map[string]any) Result {
	if action != "" && action != "list" {
		return unknownAction(p.ID(), action)
	}
	limit := 10
	if v, ok := data["limit"]; ok {
		n, ok := asInt(v)
		if !ok || n <= 0 {
			return failResult(http.StatusBadRequest, fmt.Errorf("plugin asrun: bad limit %v", v))
		}
		limit = n
	}
	entries, err := api.RecentAsRun(ctx, limit)
	if err != nil {
		return errorResult(err)
	}
	return okResult(fmt.Sprintf("%d entries", len(entries)), entries)
}

// cueFirstPlugin cues the first selectable item of the on-air bin.
type cueFirstPlugin struct{}

func (cueFirstPlugin) ID() string { return "cuefirst" }

func (p cueFirstPlugin) Exec(ctx context.Context, api PluginAPI, action string, _ map[string]any) Result {
	if action != "" && action != "cue" {
		return unknownAction(p.ID(), action)
	}
	bin, err := api.CurrentBin(ctx)
	if err != nil {
		return errorResult(err)
	}
	for _, it := range bin.Items {
		if it.RunMode == rundown.RunSkip || (it.Role.Virtual() && it.Role != rundown.RoleLive) {
			continue
		}
		return api.Cue(ctx, it.ID, CueOptions{})
	}
	return errorResult(fmt.Errorf("%w: bin %d has no cueable item", ErrResolutionExhausted, bin.ID))
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}
