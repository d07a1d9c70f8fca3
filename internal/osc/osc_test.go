// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package osc

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRoundTrip(t *testing.T) {
	msg := &Message{
		Address: "/channel/1/stage/layer/10/file/time",
		Args:    []any{int32(-7), float32(1.5), "clip", 2.25, []byte{1, 2, 3}, int64(1 << 40), true, false, nil},
	}
	data, err := msg.MarshalBinary()
	require.NoError(t, err)
	assert.Zero(t, len(data)%4, "encoded message must be 4-byte aligned")

	p, err := ParsePacket(data)
	require.NoError(t, err)
	got, ok := p.(*Message)
	require.True(t, ok)
	if diff := cmp.Diff(msg, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestReadStringPadding(t *testing.T) {
	tests := []struct {
		name    string
		in      []byte
		want    string
		next    int
		wantErr bool
	}{
		{name: "three chars one pad", in: []byte("abc\x00"), want: "abc", next: 4},
		{name: "four chars full pad", in: []byte("abcd\x00\x00\x00\x00"), want: "abcd", next: 8},
		{name: "empty string", in: []byte("\x00\x00\x00\x00"), want: "", next: 4},
		{name: "unterminated", in: []byte("abcd"), wantErr: true},
		{name: "short padding", in: []byte("abcd\x00"), wantErr: true},
		{name: "dirty padding", in: []byte("ab\x00x"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, next, err := readString(tt.in, 0, 0)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.next, next)
		})
	}
}

func TestParsePacketRejectsMalformed(t *testing.T) {
	valid, err := (&Message{Address: "/a", Args: []any{int32(1)}}).MarshalBinary()
	require.NoError(t, err)

	tests := map[string][]byte{
		"empty":            {},
		"bad first byte":   []byte("xyz\x00"),
		"truncated int":    valid[:len(valid)-2],
		"trailing bytes":   append(append([]byte(nil), valid...), 0, 0, 0, 0),
		"unknown tag":      append([]byte("/a\x00\x00,q\x00\x00"), 0, 0, 0, 0),
		"bundle no tag":    []byte("#bundle\x00\x00\x00"),
		"bundle bad size":  append(bundleHeader(Immediate), 0, 0, 0, 3),
		"bundle truncated": append(bundleHeader(Immediate), 0, 0, 0, 16, '/', 'a', 0, 0),
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePacket(in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.GreaterOrEqual(t, de.Offset, 0)
		})
	}
}

func TestParsePacketRejectsDeepNesting(t *testing.T) {
	var p Packet = &Message{Address: "/x"}
	for i := 0; i < maxBundleDepth+1; i++ {
		p = &Bundle{Timetag: Immediate, Elements: []Packet{p}}
	}
	data, err := marshalPacket(p)
	require.NoError(t, err)
	_, err = ParsePacket(data)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestTimetagConversion(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 500_000_000, time.UTC)
	assert.Equal(t, now, Immediate.At(now))

	tt := TimetagFromTime(now)
	assert.Equal(t, uint64(now.Unix()+ntpEpochOffset), uint64(tt>>32))
	back := tt.At(time.Time{})
	assert.WithinDuration(t, now, back, time.Microsecond)
}

func TestFlattenOrdersByTimetag(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	later := &Bundle{
		Timetag:  TimetagFromTime(now.Add(2 * time.Second)),
		Elements: []Packet{&Message{Address: "/late"}},
	}
	earlier := &Bundle{
		Timetag:  TimetagFromTime(now.Add(time.Second)),
		Elements: []Packet{&Message{Address: "/early"}},
	}
	root := &Bundle{
		Timetag:  Immediate,
		Elements: []Packet{later, &Message{Address: "/now-1"}, earlier, &Message{Address: "/now-2"}},
	}
	data, err := root.MarshalBinary()
	require.NoError(t, err)
	p, err := ParsePacket(data)
	require.NoError(t, err)

	var order []string
	n := Dispatch(p, now, HandlerFunc(func(msg *Message, _ time.Time) {
		order = append(order, msg.Address)
	}))
	assert.Equal(t, 4, n)
	assert.Equal(t, []string{"/now-1", "/now-2", "/early", "/late"}, order)
}

func TestStateFoldsLayerMessages(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewState(0)

	apply := func(addr string, args ...any) bool {
		return s.Apply(&Message{Address: addr, Args: args}, now)
	}
	assert.True(t, apply("/channel/1/stage/layer/10/foreground/file/name", "AMB"))
	assert.True(t, apply("/channel/1/stage/layer/10/foreground/file/time", float32(3.5), float32(60)))
	assert.True(t, apply("/channel/1/stage/layer/10/foreground/paused", false))
	assert.True(t, apply("/channel/1/stage/layer/10/foreground/file/fps", float32(29.97)))
	assert.True(t, apply("/channel/1/stage/layer/10/background/file/path", "media/NEXT.mov"))
	assert.False(t, apply("/channel/1/mixer/audio/volume", float32(1)))
	assert.False(t, apply("/channel/1/stage/layer/10/foreground/unknown", int32(1)))

	l, ok := s.Layer(1, 10, now)
	require.True(t, ok)
	assert.Equal(t, "AMB", l.Foreground.Clip())
	assert.InDelta(t, 3.5, l.Foreground.Position, 0.001)
	assert.InDelta(t, 60, l.Foreground.Duration, 0.001)
	assert.Equal(t, Rational{Num: 30000, Den: 1001}, l.Foreground.FPS)
	assert.Equal(t, "NEXT", l.Background.Clip())
	assert.Equal(t, now, s.LastUpdate(1))

	_, ok = s.Layer(2, 10, now)
	assert.False(t, ok)
}

func TestStateEmptyProducerResetsSlot(t *testing.T) {
	now := time.Now()
	s := NewState(0)
	s.Apply(&Message{Address: "/channel/1/stage/layer/10/background/file/name", Args: []any{"X"}}, now)
	s.Apply(&Message{Address: "/channel/1/stage/layer/10/background/producer", Args: []any{"empty"}}, now)

	l, ok := s.Layer(1, 10, now)
	require.True(t, ok)
	assert.True(t, l.Background.Empty())
}

func TestStateSlotTTL(t *testing.T) {
	now := time.Now()
	s := NewState(time.Second)
	s.Apply(&Message{Address: "/channel/1/stage/layer/10/file/name", Args: []any{"A"}}, now)

	l, _ := s.Layer(1, 10, now.Add(500*time.Millisecond))
	assert.Equal(t, "A", l.Foreground.Clip())

	l, _ = s.Layer(1, 10, now.Add(2*time.Second))
	assert.True(t, l.Foreground.Empty())
}

func TestStateChannelMessagesRefreshLastUpdate(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewState(0)
	assert.True(t, s.LastUpdate(3).IsZero())

	assert.False(t, s.Apply(&Message{Address: "/channel/3/framerate", Args: []any{int32(25), int32(1)}}, t0))
	assert.Equal(t, t0, s.LastUpdate(3))
	_, ok := s.Layer(3, 10, t0)
	assert.False(t, ok, "channel level messages create no layers")

	assert.False(t, s.Apply(&Message{Address: "/diag/ping"}, t0.Add(time.Second)))
	assert.Equal(t, t0, s.LastUpdate(3))
}

func bundleHeader(tt Timetag) []byte {
	out := append([]byte(nil), bundlePrefix...)
	return binary.BigEndian.AppendUint64(out, uint64(tt))
}
