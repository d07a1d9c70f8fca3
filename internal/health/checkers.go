// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/nebula/internal/playout"
)

// StatSource is what a channel checker reads; *playout.Service satisfies it.
type StatSource interface {
	Stat() playout.Stat
}

// ChannelChecker reports one channel: unhealthy while its device is
// unreachable, degraded while telemetry is stale or nothing is on air.
type ChannelChecker struct {
	name       string
	src        StatSource
	lastUpdate func() time.Time
	staleAfter time.Duration
	now        func() time.Time
}

// NewChannelChecker creates a checker named "channel-<id>". lastUpdate
// may be nil for backends without a telemetry feed.
func NewChannelChecker(channelID int, src StatSource, lastUpdate func() time.Time, staleAfter time.Duration) *ChannelChecker {
	return &ChannelChecker{
		name:       ChannelCheckName(channelID),
		src:        src,
		lastUpdate: lastUpdate,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// ChannelCheckName is the checker name used for a channel.
func ChannelCheckName(channelID int) string { return fmt.Sprintf("channel-%d", channelID) }

func (c *ChannelChecker) Name() string { return c.name }

func (c *ChannelChecker) Check(_ context.Context) CheckResult {
	st := c.src.Stat()
	if !st.Connected {
		return CheckResult{Status: StatusUnhealthy, Error: "device unreachable"}
	}
	if c.lastUpdate != nil && c.staleAfter > 0 {
		last := c.lastUpdate()
		if last.IsZero() {
			return CheckResult{Status: StatusDegraded, Message: "no telemetry received yet"}
		}
		if age := c.now().Sub(last); age > c.staleAfter {
			return CheckResult{Status: StatusDegraded, Message: fmt.Sprintf("telemetry stale for %s", age.Round(time.Millisecond))}
		}
	}
	if st.CurrentItem == 0 {
		return CheckResult{Status: StatusDegraded, Message: "nothing on air"}
	}
	return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("on air item %d", st.CurrentItem)}
}

// PingChecker wraps a connectivity probe such as a store or cache ping.
type PingChecker struct {
	name    string
	ping    func(ctx context.Context) error
	timeout time.Duration
	// degrade reports failures as degraded instead of unhealthy.
	degrade bool
}

// NewPingChecker creates a checker that is unhealthy when ping fails.
func NewPingChecker(name string, ping func(ctx context.Context) error, timeout time.Duration) *PingChecker {
	return &PingChecker{name: name, ping: ping, timeout: timeout}
}

// NewOptionalPingChecker creates a checker that is only degraded when ping
// fails, for dependencies the channels can run without.
func NewOptionalPingChecker(name string, ping func(ctx context.Context) error, timeout time.Duration) *PingChecker {
	return &PingChecker{name: name, ping: ping, timeout: timeout, degrade: true}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.ping(ctx); err != nil {
		status := StatusUnhealthy
		if c.degrade {
			status = StatusDegraded
		}
		return CheckResult{Status: status, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}
