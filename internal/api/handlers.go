// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/nebula/internal/log"
	"github.com/ManuGH/nebula/internal/playout"
)

const (
	defaultAsRunLimit = 20
	maxAsRunLimit     = 500
)

type channelListResponse struct {
	Channels []playout.Stat `json:"channels"`
}

type asRunEntry struct {
	ID     int64      `json:"id"`
	ItemID int64      `json:"item_id"`
	Start  time.Time  `json:"start"`
	Stop   *time.Time `json:"stop,omitempty"`
}

type asRunResponse struct {
	ChannelID int          `json:"channel_id"`
	Entries   []asRunEntry `json:"entries"`
}

func (s *Server) handleListChannels(w http.ResponseWriter, _ *http.Request) {
	ids := s.registry.Channels()
	resp := channelListResponse{Channels: make([]playout.Stat, 0, len(ids))}
	for _, id := range ids {
		if ch, ok := s.registry.Lookup(id); ok {
			resp.Channels = append(resp.Channels, ch.Stat())
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (ChannelView, int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeBadRequest(w, "channel id must be a positive integer")
		return nil, 0, false
	}
	ch, ok := s.registry.Lookup(id)
	if !ok {
		writeNotFound(w)
		return nil, id, false
	}
	return ch, id, true
}

func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	ch, _, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ch.Stat())
}

func (s *Server) handleAsRun(w http.ResponseWriter, r *http.Request) {
	ch, id, ok := s.lookup(w, r)
	if !ok {
		return
	}
	limit := defaultAsRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxAsRunLimit)
	}

	entries, err := ch.RecentAsRun(r.Context(), limit)
	if err != nil {
		logger := log.WithComponentFromContext(log.ContextWithChannelID(r.Context(), id), "api")
		logger.Error().Err(err).Msg("as-run query failed")
		writeServiceUnavailable(w, err)
		return
	}
	resp := asRunResponse{ChannelID: id, Entries: make([]asRunEntry, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, asRunEntry{ID: e.ID, ItemID: e.ItemID, Start: e.Start, Stop: e.Stop})
	}
	writeJSON(w, http.StatusOK, resp)
}
