// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playout

import (
	"context"
	"errors"
	"time"

	nlog "github.com/ManuGH/nebula/internal/log"
	"github.com/ManuGH/nebula/internal/metrics"
	"github.com/ManuGH/nebula/internal/rundown"
)

// logAsRunLocked closes the running entry and opens one for next. It runs
// under mu so an advance and its log rows cannot interleave with another
// advance. Store failures are logged and counted, never returned.
func (s *Service) logAsRunLocked(ctx context.Context, now time.Time, next *slot) {
	if s.asRunID != 0 {
		err := s.store.CloseAsRun(ctx, s.asRunID, now)
		metrics.IncAsRunWrite(s.cfg.ChannelID, "close", err)
		if err != nil && !errors.Is(err, rundown.ErrNotFound) {
			s.logger.Error().Err(err).Int64(nlog.FieldAsRunID, s.asRunID).Msg("closing as-run entry failed")
		}
		s.asRunID = 0
	}
	if next == nil {
		return
	}
	id, err := s.store.AppendAsRun(ctx, s.cfg.ChannelID, next.item.ID, now)
	metrics.IncAsRunWrite(s.cfg.ChannelID, "open", err)
	if err != nil {
		s.logger.Error().Err(err).Int64(nlog.FieldItemID, next.item.ID).Msg("opening as-run entry failed")
		return
	}
	s.asRunID = id
}

// RecentAsRun lists the latest as-run entries of the channel.
func (s *Service) RecentAsRun(ctx context.Context, limit int) ([]rundown.AsRunEntry, error) {
	return s.store.RecentAsRun(ctx, s.cfg.ChannelID, limit)
}
