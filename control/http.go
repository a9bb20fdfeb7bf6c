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

// Package control drives the emulator's card and reset inputs from outside
// the bus and exposes its state for inspection, over HTTP and Redis.
package control

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	pn532emu "github.com/ZaparooProject/pn532emu"
	"github.com/ZaparooProject/pn532emu/card"
)

const requestTimeout = 5 * time.Second

// Handler serves the control API for one Device.
type Handler struct {
	dev      *pn532emu.Device
	toggles  *pn532emu.Toggles
	started  time.Time
	log      zerolog.Logger
	instance string
}

// NewHandler creates a handler. instance identifies this emulator in /status.
func NewHandler(dev *pn532emu.Device, toggles *pn532emu.Toggles, instance string) *Handler {
	return &Handler{
		dev:      dev,
		toggles:  toggles,
		instance: instance,
		started:  time.Now(),
		log:      pn532emu.Logger().With().Str("component", "http").Logger(),
	}
}

// Register mounts the routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/status", h.handleStatus)
	r.Put("/controls/{name}", h.handleSetControl)
	r.Get("/cards/{slot}", h.handleCard)
	r.Get("/cards/{slot}/blocks/{block}", h.handleBlock)
	r.Get("/trace", h.handleTrace)
	r.Get("/irq", h.handleIRQ)
}

// NewRouter wires the handler with the standard middleware stack.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(requestTimeout))
	h.Register(r)
	return r
}

type statusResponse struct {
	Controls pn532emu.Controls `json:"controls"`
	Instance string            `json:"instance"`
	Uptime   string            `json:"uptime"`
	Session  pn532emu.Snapshot `json:"session"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Instance: h.instance,
		Uptime:   time.Since(h.started).Round(time.Second).String(),
		Controls: h.toggles.Controls(),
		Session:  h.dev.Snapshot(),
	})
}

type controlRequest struct {
	On *bool `json:"on"`
}

type controlResponse struct {
	Name    string `json:"name"`
	On      bool   `json:"on"`
	Changed bool   `json:"changed"`
}

func (h *Handler) handleSetControl(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req controlRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil || req.On == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"on\": true|false}")
		return
	}

	changed, err := h.toggles.Set(name, *req.On)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if changed {
		h.log.Info().
			Str("control", name).
			Bool("on", *req.On).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("control changed")
	}
	writeJSON(w, http.StatusOK, controlResponse{Name: name, On: *req.On, Changed: changed})
}

func (h *Handler) handleCard(w http.ResponseWriter, r *http.Request) {
	slot, ok := intParam(w, r, "slot")
	if !ok {
		return
	}
	info, err := h.dev.Card(slot)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type blockResponse struct {
	Data   string `json:"data"`
	Slot   int    `json:"slot"`
	Block  int    `json:"block"`
	Sector int    `json:"sector"`
}

func (h *Handler) handleBlock(w http.ResponseWriter, r *http.Request) {
	slot, ok := intParam(w, r, "slot")
	if !ok {
		return
	}
	block, ok := intParam(w, r, "block")
	if !ok {
		return
	}
	data, err := h.dev.PeekBlock(slot, block)
	switch {
	case errors.Is(err, pn532emu.ErrUnknownSlot), errors.Is(err, card.ErrBlockRange):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, blockResponse{
		Slot:   slot,
		Block:  block,
		Sector: card.SectorOf(block),
		Data:   hex.EncodeToString(data),
	})
}

func (h *Handler) handleTrace(w http.ResponseWriter, _ *http.Request) {
	entries := h.dev.Trace()
	if entries == nil {
		entries = []pn532emu.TraceEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleIRQ(w http.ResponseWriter, _ *http.Request) {
	level := h.dev.IRQ()
	writeJSON(w, http.StatusOK, map[string]any{
		"level":   level.String(),
		"pending": bool(!level),
	})
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || v < 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
