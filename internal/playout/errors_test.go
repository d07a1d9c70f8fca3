// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playout

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ManuGH/nebula/internal/device"
)

func TestErrorResultCodes(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrNothingCued, http.StatusBadRequest},
		{fmt.Errorf("%w: asset 3 is offline", ErrNotCueable), http.StatusBadRequest},
		{ErrNotFound, http.StatusNotFound},
		{ErrUnknownPlugin, http.StatusNotFound},
		{ErrResolutionExhausted, http.StatusNotFound},
		{ErrLiveItem, http.StatusConflict},
		{ErrAlreadyLive, http.StatusConflict},
		{ErrRecoveryInconsistent, http.StatusConflict},
		{ErrCueInFlight, http.StatusConflict},
		{ErrDeviceUnreachable, http.StatusBadGateway},
		{ErrProtocol, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			r := errorResult(tt.err)
			assert.Equal(t, tt.want, r.Code)
			assert.ErrorIs(t, r.Err, tt.err)
			assert.False(t, r.OK())
		})
	}
}

func TestDeviceResult(t *testing.T) {
	r := deviceResult(device.Response{Code: 202, Message: "PLAY OK"})
	assert.True(t, r.OK())
	assert.Equal(t, "ok", outcome(r))

	r = deviceResult(device.Response{Code: 502, Err: fmt.Errorf("%w: dial", device.ErrUnreachable)})
	assert.ErrorIs(t, r.Err, ErrDeviceUnreachable)
	assert.Equal(t, "failed", outcome(r))

	r = deviceResult(device.Response{Code: 500, Err: device.ErrProtocol})
	assert.ErrorIs(t, r.Err, ErrProtocol)

	r = deviceResult(device.Response{Code: 404, Message: "LOADBG FAILED", Err: device.ErrRejected})
	assert.ErrorIs(t, r.Err, ErrDeviceRejected)
	assert.Equal(t, http.StatusNotFound, r.Code)
	assert.Equal(t, "rejected", outcome(r))

	r = deviceResult(device.Response{Code: 100})
	assert.Equal(t, http.StatusInternalServerError, r.Code)
}
