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

// Package metrics exports emulator session events as Prometheus metrics.
package metrics

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	pn532emu "github.com/ZaparooProject/pn532emu"
	"github.com/ZaparooProject/pn532emu/card"
	"github.com/ZaparooProject/pn532emu/internal/frame"
)

// Observer implements pn532emu.Observer with Prometheus collectors.
type Observer struct {
	FramesAccepted      *prometheus.CounterVec
	FramesRejected      *prometheus.CounterVec
	FrameLength         prometheus.Histogram
	Responses           *prometheus.CounterVec
	ResponsesSuppressed *prometheus.CounterVec
	Authentications     *prometheus.CounterVec
	CardSelections      *prometheus.CounterVec
	FieldResets         prometheus.Counter
	ActiveSlot          prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Observer {
	factory := promauto.With(reg)
	m := &Observer{
		FramesAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pn532emu_frames_accepted_total",
			Help: "Command frames accepted, by command",
		}, []string{"command"}),
		FramesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pn532emu_frames_rejected_total",
			Help: "Frames discarded by the ingester, by reason",
		}, []string{"reason"}),
		FrameLength: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pn532emu_frame_length_bytes",
			Help:    "LEN of accepted command frames",
			Buckets: []float64{2, 4, 8, 16, 32, 64, 128, 255},
		}),
		Responses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pn532emu_responses_total",
			Help: "Response frames queued, by command and status",
		}, []string{"command", "status"}),
		ResponsesSuppressed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pn532emu_responses_suppressed_total",
			Help: "Commands acknowledged without a response frame",
		}, []string{"command"}),
		Authentications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pn532emu_authentications_total",
			Help: "MIFARE authentication attempts, by key and result",
		}, []string{"key", "result"}),
		CardSelections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pn532emu_card_selections_total",
			Help: "Cards placed in the field, by slot",
		}, []string{"slot"}),
		FieldResets: factory.NewCounter(prometheus.CounterOpts{
			Name: "pn532emu_field_resets_total",
			Help: "Times the reset input cleared the field",
		}),
		ActiveSlot: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pn532emu_active_slot",
			Help: "Slot of the card in the field, -1 when empty",
		}),
	}
	m.ActiveSlot.Set(card.NoCard)
	return m
}

func (m *Observer) FrameAccepted(cmd byte, length int) {
	m.FramesAccepted.WithLabelValues(pn532emu.CommandName(cmd)).Inc()
	m.FrameLength.Observe(float64(length))
}

func (m *Observer) FrameRejected(err error) {
	m.FramesRejected.WithLabelValues(rejectReason(err)).Inc()
}

func (m *Observer) ResponseQueued(cmd byte, reply pn532emu.Reply) {
	status := "none"
	if s, ok := reply.Status(); ok {
		status = fmt.Sprintf("0x%02X", s)
	}
	m.Responses.WithLabelValues(pn532emu.CommandName(cmd), status).Inc()
}

func (m *Observer) ResponseSuppressed(cmd byte) {
	m.ResponsesSuppressed.WithLabelValues(fmt.Sprintf("0x%02X", cmd)).Inc()
}

func (m *Observer) Authenticated(_, _ int, kind card.KeyKind, ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	m.Authentications.WithLabelValues(kind.String(), result).Inc()
}

func (m *Observer) CardSelected(slot int) {
	m.CardSelections.WithLabelValues(strconv.Itoa(slot)).Inc()
	m.ActiveSlot.Set(float64(slot))
}

func (m *Observer) FieldReset() {
	m.FieldResets.Inc()
	m.ActiveSlot.Set(card.NoCard)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, frame.ErrStartCode):
		return "start_code"
	case errors.Is(err, frame.ErrLengthChecksum):
		return "length_checksum"
	case errors.Is(err, frame.ErrDirection):
		return "direction"
	case errors.Is(err, frame.ErrDataChecksum):
		return "data_checksum"
	case errors.Is(err, frame.ErrPostamble):
		return "postamble"
	case errors.Is(err, frame.ErrNoCommand):
		return "no_command"
	default:
		return "other"
	}
}

var _ pn532emu.Observer = (*Observer)(nil)
