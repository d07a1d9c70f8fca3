// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package osc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	nlog "github.com/ManuGH/nebula/internal/log"
	"github.com/ManuGH/nebula/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	maxDatagram  = 65536
	readDeadline = 500 * time.Millisecond
)

// Server receives telemetry datagrams on one UDP port and dispatches every
// decoded message to a Handler. Malformed datagrams are counted and dropped.
type Server struct {
	conn    *net.UDPConn
	port    int
	handler Handler
	logger  zerolog.Logger
	now     func() time.Time

	closeOnce sync.Once
	done      chan struct{}
}

// Listen binds addr (host:port, host optional) for telemetry.
func Listen(addr string, h Handler) (*Server, error) {
	if h == nil {
		return nil, errors.New("osc: nil handler")
	}
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("osc: resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("osc: listen %s: %w", addr, err)
	}
	port := conn.LocalAddr().(*net.UDPAddr).Port
	return &Server{
		conn:    conn,
		port:    port,
		handler: h,
		logger:  nlog.WithComponent("osc").With().Int(nlog.FieldOSCPort, port).Logger(),
		now:     time.Now,
		done:    make(chan struct{}),
	}, nil
}

// Addr returns the bound local address.
func (s *Server) Addr() net.Addr { return s.conn.LocalAddr() }

// Port returns the bound UDP port.
func (s *Server) Port() int { return s.port }

// Serve reads datagrams until ctx is cancelled or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info().Str(nlog.FieldAddr, s.conn.LocalAddr().String()).Msg("telemetry listener started")
	defer s.logger.Info().Msg("telemetry listener stopped")

	buf := make([]byte, maxDatagram)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		default:
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			if s.closed() {
				return nil
			}
			return fmt.Errorf("osc: set deadline: %w", err)
		}
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if s.closed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("osc: read: %w", err)
		}
		s.handle(buf[:n], from)
	}
}

func (s *Server) handle(datagram []byte, from *net.UDPAddr) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncOSCPacket(s.port, "panic")
			s.logger.Error().Interface("panic", r).Msg("telemetry handler panicked")
		}
	}()

	p, err := ParsePacket(datagram)
	if err != nil {
		metrics.IncOSCPacket(s.port, "dropped")
		s.logger.Debug().Err(err).Str("from", from.String()).Int("size", len(datagram)).Msg("dropping malformed datagram")
		return
	}
	Dispatch(p, s.now(), s.handler)
	metrics.IncOSCPacket(s.port, "ok")
}

func (s *Server) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Close stops Serve and releases the socket. Safe to call more than once.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}
