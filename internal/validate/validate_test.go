// SPDX-License-Identifier: MIT
package validate

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_Port(t *testing.T) {
	tests := []struct {
		name    string
		port    int
		wantErr bool
	}{
		{"valid port 80", 80, false},
		{"valid port 5250", 5250, false},
		{"valid port 65535", 65535, false},
		{"invalid port 0", 0, true},
		{"invalid port -1", -1, true},
		{"invalid port 65536", 65536, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Port("testPort", tt.port)
			assert.Equal(t, tt.wantErr, !v.IsValid(), "err: %v", v.Err())
		})
	}
}

func TestValidator_ListenAddr(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{":9090", false},
		{"127.0.0.1:9090", false},
		{"localhost:0", false},
		{"[::1]:8080", false},
		{"9090", true},
		{"host:port", true},
		{":70000", true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			v := New()
			v.ListenAddr("ops.listenAddr", tt.addr)
			assert.Equal(t, tt.wantErr, !v.IsValid(), "err: %v", v.Err())
		})
	}
}

func TestValidator_Ranges(t *testing.T) {
	v := New()
	v.Range("a", 5, 1, 10)
	v.FloatRange("b", 0.5, 0, 1)
	v.PositiveDuration("c", time.Second)
	v.Positive("d", 1)
	v.NonNegative("e", 0)
	require.True(t, v.IsValid(), "unexpected: %v", v.Err())

	v.Range("a", 11, 1, 10)
	v.FloatRange("b", 1.5, 0, 1)
	v.PositiveDuration("c", 0)
	v.Positive("d", 0)
	v.NonNegative("e", -1)
	require.Len(t, v.Errors(), 5)
	for i, field := range []string{"a", "b", "c", "d", "e"} {
		assert.Equal(t, field, v.Errors()[i].Field)
	}
}

func TestValidator_OneOfAndNotEmpty(t *testing.T) {
	v := New()
	v.OneOf("store.backend", "sqlite", []string{"sqlite", "memory"})
	v.NotEmpty("name", "ch1")
	require.True(t, v.IsValid())

	v.OneOf("store.backend", "badger", []string{"sqlite", "memory"})
	v.NotEmpty("name", "  ")
	require.Len(t, v.Errors(), 2)
	assert.Contains(t, v.Errors()[0].Message, `"badger"`)
}

func TestValidator_Directory(t *testing.T) {
	dir := t.TempDir()

	t.Run("existing", func(t *testing.T) {
		v := New()
		v.Directory("dataDir", dir, true)
		assert.True(t, v.IsValid())
	})
	t.Run("created", func(t *testing.T) {
		v := New()
		p := filepath.Join(dir, "sub")
		v.Directory("dataDir", p, false)
		require.True(t, v.IsValid(), "err: %v", v.Err())
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
	t.Run("missing", func(t *testing.T) {
		v := New()
		v.Directory("dataDir", filepath.Join(dir, "nope"), true)
		assert.False(t, v.IsValid())
	})
	t.Run("traversal", func(t *testing.T) {
		v := New()
		v.Directory("dataDir", "../etc", false)
		assert.False(t, v.IsValid())
	})
	t.Run("file", func(t *testing.T) {
		f := filepath.Join(dir, "file")
		require.NoError(t, os.WriteFile(f, nil, 0o600))
		v := New()
		v.Directory("dataDir", f, true)
		assert.False(t, v.IsValid())
	})
}

func TestValidator_ErrAggregates(t *testing.T) {
	v := New()
	require.NoError(t, v.Err())

	v.Custom("skipWhen", "bad", func(any) error { return errors.New("parse failed") })
	v.Port("port", 0)
	err := v.Err()
	require.Error(t, err)

	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Errors(), 2)
	assert.Equal(t, 2, strings.Count(err.Error(), "validation failed for"))

	// Err copies; later additions do not leak into an earlier error.
	v.NotEmpty("x", "")
	assert.Len(t, verr.Errors(), 2)
}
