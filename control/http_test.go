// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package control

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pn532emu "github.com/ZaparooProject/pn532emu"
	"github.com/ZaparooProject/pn532emu/internal/frame"
)

type apiRig struct {
	dev     *pn532emu.Device
	toggles *pn532emu.Toggles
	server  http.Handler
}

func newAPIRig(t *testing.T) *apiRig {
	t.Helper()
	toggles := &pn532emu.Toggles{}
	dev, err := pn532emu.NewDevice(pn532emu.WithLogger(zerolog.Nop()), pn532emu.WithControls(toggles))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })
	return &apiRig{
		dev:     dev,
		toggles: toggles,
		server:  NewRouter(NewHandler(dev, toggles, "test-instance")),
	}
}

func (r *apiRig) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHandler_SetControl(t *testing.T) {
	t.Parallel()
	rig := newAPIRig(t)

	rec := rig.do(t, http.MethodPut, "/controls/card1", `{"on": true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[controlResponse](t, rec)
	assert.Equal(t, controlResponse{Name: "card1", On: true, Changed: true}, resp)
	assert.True(t, rig.toggles.Controls().Card1)

	rec = rig.do(t, http.MethodPut, "/controls/card1", `{"on": true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[controlResponse](t, rec).Changed)
}

func TestHandler_SetControlErrors(t *testing.T) {
	t.Parallel()
	rig := newAPIRig(t)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{name: "unknown control", path: "/controls/card3", body: `{"on": true}`, want: http.StatusNotFound},
		{name: "missing field", path: "/controls/card1", body: `{}`, want: http.StatusBadRequest},
		{name: "wrong type", path: "/controls/card1", body: `{"on": "yes"}`, want: http.StatusBadRequest},
		{name: "unknown field", path: "/controls/reset", body: `{"on": true, "x": 1}`, want: http.StatusBadRequest},
		{name: "not json", path: "/controls/reset", body: `on`, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := rig.do(t, http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, decode[map[string]string](t, rec), "error")
		})
	}
	assert.Equal(t, pn532emu.Controls{}, rig.toggles.Controls())

	rec := rig.do(t, http.MethodGet, "/controls/card1", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandler_Status(t *testing.T) {
	t.Parallel()
	rig := newAPIRig(t)
	rig.do(t, http.MethodPut, "/controls/card2", `{"on": true}`)
	_, err := rig.dev.ReadByte()
	require.NoError(t, err)

	rec := rig.do(t, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status struct {
		Instance string            `json:"instance"`
		Controls pn532emu.Controls `json:"controls"`
		Session  struct {
			IngestState string  `json:"ingest_state"`
			IRQ         string  `json:"irq"`
			Present     [2]bool `json:"present"`
			ActiveCard  int     `json:"active_card"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "test-instance", status.Instance)
	assert.True(t, status.Controls.Card2)
	assert.Equal(t, [2]bool{false, true}, status.Session.Present)
	assert.Equal(t, 1, status.Session.ActiveCard)
	assert.Equal(t, "preamble", status.Session.IngestState)
	assert.Equal(t, "High", status.Session.IRQ)
}

func TestHandler_Cards(t *testing.T) {
	t.Parallel()
	rig := newAPIRig(t)

	rec := rig.do(t, http.MethodGet, "/cards/0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[pn532emu.CardInfo](t, rec)
	assert.Equal(t, "DEADBEEF", info.UID)
	assert.Equal(t, "absent", info.Presence)

	rec = rig.do(t, http.MethodGet, "/cards/1/blocks/3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	block := decode[blockResponse](t, rec)
	assert.Equal(t, blockResponse{
		Slot:   1,
		Block:  3,
		Sector: 0,
		Data:   "ffffffffffffff078069ffffffffffff",
	}, block)

	for path, want := range map[string]int{
		"/cards/2":           http.StatusNotFound,
		"/cards/x":           http.StatusBadRequest,
		"/cards/-1":          http.StatusBadRequest,
		"/cards/0/blocks/64": http.StatusNotFound,
		"/cards/5/blocks/0":  http.StatusNotFound,
		"/cards/0/blocks/b":  http.StatusBadRequest,
	} {
		assert.Equal(t, want, rig.do(t, http.MethodGet, path, "").Code, path)
	}
}

func TestHandler_TraceAndIRQ(t *testing.T) {
	t.Parallel()
	rig := newAPIRig(t)

	rec := rig.do(t, http.MethodGet, "/trace", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	_, err := rig.dev.Write(frame.BuildCommand(0x02, nil))
	require.NoError(t, err)
	rig.dev.Drain()

	rec = rig.do(t, http.MethodGet, "/trace", "")
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]map[string]any](t, rec)
	require.Len(t, entries, 2)
	assert.Equal(t, "RX", entries[0]["direction"])
	assert.Equal(t, "TX", entries[1]["direction"])

	rec = rig.do(t, http.MethodGet, "/irq", "")
	require.Equal(t, http.StatusOK, rec.Code)
	irq := decode[map[string]any](t, rec)
	assert.Contains(t, []any{"High", "Low"}, irq["level"])
}
