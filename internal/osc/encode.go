// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package osc

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MarshalBinary encodes the message in OSC wire format.
func (m *Message) MarshalBinary() ([]byte, error) {
	if len(m.Address) == 0 || m.Address[0] != '/' {
		return nil, fmt.Errorf("osc: address %q must start with '/'", m.Address)
	}
	tags := []byte{','}
	var payload []byte
	for i, arg := range m.Args {
		tag, data, err := encodeArg(arg)
		if err != nil {
			return nil, fmt.Errorf("osc: argument %d: %w", i, err)
		}
		tags = append(tags, tag)
		payload = append(payload, data...)
	}
	out := appendString(nil, m.Address)
	out = appendString(out, string(tags))
	return append(out, payload...), nil
}

// MarshalBinary encodes the bundle and all nested elements.
func (b *Bundle) MarshalBinary() ([]byte, error) {
	out := append([]byte(nil), bundlePrefix...)
	out = binary.BigEndian.AppendUint64(out, uint64(b.Timetag))
	for i, elem := range b.Elements {
		data, err := marshalPacket(elem)
		if err != nil {
			return nil, fmt.Errorf("osc: bundle element %d: %w", i, err)
		}
		out = binary.BigEndian.AppendUint32(out, uint32(len(data)))
		out = append(out, data...)
	}
	return out, nil
}

func marshalPacket(p Packet) ([]byte, error) {
	switch v := p.(type) {
	case *Message:
		return v.MarshalBinary()
	case *Bundle:
		return v.MarshalBinary()
	default:
		return nil, fmt.Errorf("unsupported packet type %T", p)
	}
}

func encodeArg(arg any) (byte, []byte, error) {
	switch v := arg.(type) {
	case int32:
		return 'i', binary.BigEndian.AppendUint32(nil, uint32(v)), nil
	case int:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return 'i', binary.BigEndian.AppendUint32(nil, uint32(int32(v))), nil
		}
		return 'h', binary.BigEndian.AppendUint64(nil, uint64(v)), nil
	case int64:
		return 'h', binary.BigEndian.AppendUint64(nil, uint64(v)), nil
	case float32:
		return 'f', binary.BigEndian.AppendUint32(nil, math.Float32bits(v)), nil
	case float64:
		return 'd', binary.BigEndian.AppendUint64(nil, math.Float64bits(v)), nil
	case string:
		return 's', appendString(nil, v), nil
	case []byte:
		out := binary.BigEndian.AppendUint32(nil, uint32(len(v)))
		out = append(out, v...)
		for len(out)%4 != 0 {
			out = append(out, 0)
		}
		return 'b', out, nil
	case Timetag:
		return 't', binary.BigEndian.AppendUint64(nil, uint64(v)), nil
	case bool:
		if v {
			return 'T', nil, nil
		}
		return 'F', nil, nil
	case nil:
		return 'N', nil, nil
	default:
		return 0, nil, fmt.Errorf("unsupported argument type %T", arg)
	}
}

// appendString writes s, its NUL terminator and padding up to a multiple of four.
func appendString(out []byte, s string) []byte {
	out = append(out, s...)
	pad := 4 - len(s)%4
	for i := 0; i < pad; i++ {
		out = append(out, 0)
	}
	return out
}
