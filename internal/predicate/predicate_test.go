// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mode int

func (m mode) String() string { return [...]string{"AUTO", "MANUAL"}[m] }

func TestEval(t *testing.T) {
	fields := map[string]any{
		"title":      "Weather",
		"role":       "",
		"run_mode":   mode(1),
		"duration":   4.5,
		"loop":       false,
		"asset.path": "media/promo/weather.mxf",
		"asset.id":   int64(42),
		"storage":    3,
	}

	tests := []struct {
		expr string
		want bool
	}{
		{`title == "Weather"`, true},
		{`title != 'Weather'`, false},
		{`duration < 5`, true},
		{`duration >= 4.5 && duration <= 4.5`, true},
		{`asset.id == 42`, true},
		{`storage in [1, 2, 3]`, true},
		{`run_mode in ["MANUAL", "SKIP"]`, true},
		{`run_mode == "AUTO"`, false},
		{`!loop`, true},
		{`loop == false`, true},
		{`role == "live" || (duration < 10 && title > "A")`, true},
		{`!(duration < 10) || missing == 1`, false},
		{`missing == nil`, true},
		{`missing`, false},
		{`title`, true},
		{`asset.path in []`, false},
		{`duration > -1`, true},
		{`title == "We\"ather"`, false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			p, err := Compile(tt.expr)
			require.NoError(t, err)
			got, err := p.Eval(fields)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.expr, p.String())
		})
	}
}

func TestCompileErrors(t *testing.T) {
	for _, src := range []string{
		`title ==`,
		`(duration < 5`,
		`title = "x"`,
		`"unterminated`,
		`storage in 3`,
		`a in [[1]]`,
		`a b`,
		`a in [1 2]`,
		`1.2.3 == 1`,
		`duration < 5 #`,
	} {
		t.Run(src, func(t *testing.T) {
			_, err := Compile(src)
			require.Error(t, err)
			var se *SyntaxError
			assert.ErrorAs(t, err, &se)
		})
	}
}

func TestEmptyNeverMatches(t *testing.T) {
	p, err := Compile("   ")
	require.NoError(t, err)
	assert.Nil(t, p)
	ok, err := p.Eval(map[string]any{"x": 1})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOrderingMismatchIsError(t *testing.T) {
	p := MustCompile(`title < 5`)
	_, err := p.Eval(map[string]any{"title": "x"})
	assert.Error(t, err)

	ok, err := p.Eval(map[string]any{})
	require.NoError(t, err)
	assert.False(t, ok, "nil never orders")
}

func TestMustCompilePanics(t *testing.T) {
	assert.Panics(t, func() { MustCompile("(") })
}
