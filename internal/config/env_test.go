// SPDX-License-Identifier: MIT

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseString(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		env    string
		envSet bool
		want   string
	}{
		{name: "environment variable set", key: "NEBULA_TEST_STRING", env: "from-env", envSet: true, want: "from-env"},
		{name: "environment variable not set", key: "NEBULA_TEST_STRING_UNSET", want: "default"},
		{name: "environment variable empty", key: "NEBULA_TEST_STRING_EMPTY", env: "", envSet: true, want: "default"},
		{name: "sensitive variable", key: "NEBULA_TEST_PASSWORD", env: "secret123", envSet: true, want: "secret123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envSet {
				t.Setenv(tt.key, tt.env)
			}
			assert.Equal(t, tt.want, ParseString(tt.key, "default"))
		})
	}
}

func TestParseTyped(t *testing.T) {
	t.Setenv("NEBULA_TEST_INT", "42")
	t.Setenv("NEBULA_TEST_INT_BAD", "forty-two")
	t.Setenv("NEBULA_TEST_FLOAT", "0.25")
	t.Setenv("NEBULA_TEST_DUR", "150ms")
	t.Setenv("NEBULA_TEST_DUR_BAD", "150")

	assert.Equal(t, 42, ParseInt("NEBULA_TEST_INT", 1))
	assert.Equal(t, 1, ParseInt("NEBULA_TEST_INT_BAD", 1))
	assert.Equal(t, 0.25, ParseFloat("NEBULA_TEST_FLOAT", 1))
	assert.Equal(t, 150*time.Millisecond, ParseDuration("NEBULA_TEST_DUR", time.Second))
	assert.Equal(t, time.Second, ParseDuration("NEBULA_TEST_DUR_BAD", time.Second))
}

func TestParseBool(t *testing.T) {
	for _, tt := range []struct {
		env  string
		def  bool
		want bool
	}{
		{"true", false, true},
		{"YES", false, true},
		{"1", false, true},
		{"false", true, false},
		{"No", true, false},
		{"0", true, false},
		{"maybe", true, true},
		{"", false, false},
	} {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("NEBULA_TEST_BOOL", tt.env)
			assert.Equal(t, tt.want, ParseBool("NEBULA_TEST_BOOL", tt.def))
		})
	}
}
