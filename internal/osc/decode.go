// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package osc

import (
	"bytes"
	"encoding/binary"
	"math"
)

// bundlePrefix is "#bundle" followed by its NUL terminator.
var bundlePrefix = []byte("#bundle\x00")

// maxBundleDepth bounds nested bundles so a hostile datagram cannot recurse without limit.
const maxBundleDepth = 8

// ParsePacket decodes one datagram into a message or a bundle.
func ParsePacket(b []byte) (Packet, error) {
	return parsePacket(b, 0, 0)
}

func parsePacket(b []byte, base, depth int) (Packet, error) {
	if len(b) == 0 {
		return nil, decodeErr(base, "empty packet")
	}
	switch {
	case bytes.HasPrefix(b, bundlePrefix):
		return parseBundle(b, base, depth)
	case b[0] == '/':
		return parseMessage(b, base)
	default:
		return nil, decodeErr(base, "packet starts with %q, want '/' or #bundle", b[0])
	}
}

func parseBundle(b []byte, base, depth int) (*Bundle, error) {
	if depth >= maxBundleDepth {
		return nil, decodeErr(base, "bundle nesting deeper than %d", maxBundleDepth)
	}
	off := len(bundlePrefix)
	tt, off, err := readUint64(b, off, base)
	if err != nil {
		return nil, err
	}
	bundle := &Bundle{Timetag: Timetag(tt)}
	for off < len(b) {
		size, next, err := readInt32(b, off, base)
		if err != nil {
			return nil, err
		}
		if size <= 0 || size%4 != 0 {
			return nil, decodeErr(base+off, "invalid bundle element size %d", size)
		}
		end := next + int(size)
		if end > len(b) {
			return nil, decodeErr(base+next, "bundle element of %d bytes truncated", size)
		}
		elem, err := parsePacket(b[next:end], base+next, depth+1)
		if err != nil {
			return nil, err
		}
		bundle.Elements = append(bundle.Elements, elem)
		off = end
	}
	return bundle, nil
}

func parseMessage(b []byte, base int) (*Message, error) {
	addr, off, err := readString(b, 0, base)
	if err != nil {
		return nil, err
	}
	msg := &Message{Address: addr}
	if off == len(b) {
		// Type tag string is optional for argument-less messages.
		return msg, nil
	}
	if b[off] != ',' {
		return nil, decodeErr(base+off, "type tag string must start with ','")
	}
	tags, off, err := readString(b, off, base)
	if err != nil {
		return nil, err
	}
	for _, tag := range tags[1:] {
		var v any
		v, off, err = readArg(b, off, base, tag)
		if err != nil {
			return nil, err
		}
		msg.Args = append(msg.Args, v)
	}
	if off != len(b) {
		return nil, decodeErr(base+off, "%d trailing bytes after arguments", len(b)-off)
	}
	return msg, nil
}

func readArg(b []byte, off, base int, tag rune) (any, int, error) {
	switch tag {
	case 'i':
		v, next, err := readInt32(b, off, base)
		return v, next, err
	case 'f':
		v, next, err := readUint32(b, off, base)
		return math.Float32frombits(v), next, err
	case 's', 'S':
		return readString(b, off, base)
	case 'b':
		return readBlob(b, off, base)
	case 'h':
		v, next, err := readUint64(b, off, base)
		return int64(v), next, err
	case 'd':
		v, next, err := readUint64(b, off, base)
		return math.Float64frombits(v), next, err
	case 't':
		v, next, err := readUint64(b, off, base)
		return Timetag(v), next, err
	case 'T':
		return true, off, nil
	case 'F':
		return false, off, nil
	case 'N', 'I':
		return nil, off, nil
	default:
		return nil, off, decodeErr(base+off, "unsupported type tag %q", tag)
	}
}

// readString reads a NUL-terminated string padded with 1 to 4 NUL bytes to a
// multiple of four and returns the string and the offset just past the padding.
func readString(b []byte, off, base int) (string, int, error) {
	if off >= len(b) {
		return "", off, decodeErr(base+off, "string truncated")
	}
	n := bytes.IndexByte(b[off:], 0)
	if n < 0 {
		return "", off, decodeErr(base+off, "unterminated string")
	}
	end := off + (n/4+1)*4
	if end > len(b) {
		return "", off, decodeErr(base+off, "string padding truncated")
	}
	for i := off + n; i < end; i++ {
		if b[i] != 0 {
			return "", off, decodeErr(base+i, "non-zero string padding")
		}
	}
	return string(b[off : off+n]), end, nil
}

func readBlob(b []byte, off, base int) ([]byte, int, error) {
	size, next, err := readInt32(b, off, base)
	if err != nil {
		return nil, off, err
	}
	if size < 0 {
		return nil, off, decodeErr(base+off, "negative blob size %d", size)
	}
	end := next + int(size)
	padded := next + (int(size)+3)&^3
	if padded > len(b) {
		return nil, off, decodeErr(base+next, "blob of %d bytes truncated", size)
	}
	for i := end; i < padded; i++ {
		if b[i] != 0 {
			return nil, off, decodeErr(base+i, "non-zero blob padding")
		}
	}
	out := make([]byte, size)
	copy(out, b[next:end])
	return out, padded, nil
}

func readUint32(b []byte, off, base int) (uint32, int, error) {
	if off+4 > len(b) {
		return 0, off, decodeErr(base+off, "need 4 bytes, have %d", len(b)-off)
	}
	return binary.BigEndian.Uint32(b[off:]), off + 4, nil
}

func readInt32(b []byte, off, base int) (int32, int, error) {
	v, next, err := readUint32(b, off, base)
	return int32(v), next, err
}

func readUint64(b []byte, off, base int) (uint64, int, error) {
	if off+8 > len(b) {
		return 0, off, decodeErr(base+off, "need 8 bytes, have %d", len(b)-off)
	}
	return binary.BigEndian.Uint64(b[off:]), off + 8, nil
}
