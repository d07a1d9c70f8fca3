// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package amcp implements the line based text command protocol of
// CasparCG-class playout servers.
package amcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	nlog "github.com/ManuGH/nebula/internal/log"
	"github.com/ManuGH/nebula/internal/metrics"
	"github.com/ManuGH/nebula/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Options configures the client behaviour.
type Options struct {
	Timeout        time.Duration
	DialTimeout    time.Duration
	RateLimit      rate.Limit
	RateLimitBurst int
	Logger         *zerolog.Logger
}

const (
	defaultTimeout        = 3 * time.Second
	defaultDialTimeout    = 2 * time.Second
	defaultRateLimit      = 50
	defaultRateLimitBurst = 20
)

func normalizeOptions(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(defaultRateLimit)
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = defaultRateLimitBurst
	}
	return opts
}

// Client talks to one device over a single TCP connection. Calls are
// serialised; one command is in flight at a time.
type Client struct {
	addr    string
	timeout time.Duration
	dialer  net.Dialer
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu   sync.Mutex
	conn net.Conn
	rd   *bufio.Reader
}

// NewClient returns an unconnected client for addr (host:port).
func NewClient(addr string, opts Options) *Client {
	nopts := normalizeOptions(opts)
	logger := nlog.WithComponent("amcp")
	if nopts.Logger != nil {
		logger = *nopts.Logger
	}
	return &Client{
		addr:    addr,
		timeout: nopts.Timeout,
		dialer:  net.Dialer{Timeout: nopts.DialTimeout},
		limiter: rate.NewLimiter(nopts.RateLimit, nopts.RateLimitBurst),
		logger:  logger.With().Str(nlog.FieldAddr, addr).Logger(),
	}
}

// Addr returns the device address.
func (c *Client) Addr() string { return c.addr }

// Connect dials the device, replacing any existing connection.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	_ = c.closeLocked()
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrUnreachable, c.addr, err)
	}
	c.conn = conn
	c.rd = bufio.NewReader(conn)
	c.logger.Debug().Msg("connected")
	return nil
}

// Connected reports whether a connection is held.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close drops the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.rd = nil
	return err
}

// Query sends cmd and waits for its reply, bounded by the command timeout.
// A non-2xx reply returns the parsed Response together with an *Error.
// Transport failures drop the connection; the next call redials.
func (c *Client) Query(ctx context.Context, cmd Command) (Response, error) {
	line := cmd.String()
	tracer := telemetry.Tracer(telemetry.TracerAMCP)
	ctx, span := tracer.Start(ctx, telemetry.SpanAMCPQuery, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Response{}, err
	}

	start := time.Now()
	resp, err := c.roundTrip(ctx, line)
	metrics.ObserveAMCP(cmd.Verb, resp.Code, err, time.Since(start))
	span.SetAttributes(telemetry.AMCPAttributes(c.addr, cmd.Verb, line, resp.Code)...)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, err
	}
	if !resp.IsSuccess() {
		aerr := &Error{Code: resp.Code, Command: line, Message: resp.Message()}
		span.SetStatus(codes.Error, aerr.Error())
		return resp, aerr
	}
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, line string) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.connectLocked(ctx); err != nil {
			return Response{}, err
		}
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		_ = c.closeLocked()
		return Response{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	// Stray bytes from an earlier, timed out reply would be read as ours.
	if n := c.rd.Buffered(); n > 0 {
		_, _ = c.rd.Discard(n)
	}

	if _, err := c.conn.Write([]byte(line + "\r\n")); err != nil {
		_ = c.closeLocked()
		return Response{}, fmt.Errorf("%w: write: %v", ErrUnreachable, err)
	}

	resp, err := ReadResponse(c.rd)
	if err != nil {
		if errors.Is(err, ErrProtocol) {
			c.logger.Warn().Err(err).Str(nlog.FieldCommand, line).Msg("unparsable reply")
			_ = c.closeLocked()
			return resp, err
		}
		_ = c.closeLocked()
		return resp, fmt.Errorf("%w: read: %v", ErrUnreachable, err)
	}
	c.logger.Trace().Str(nlog.FieldCommand, line).Int(nlog.FieldStatusCode, resp.Code).Msg("reply")
	return resp, nil
}
