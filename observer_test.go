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

package pn532emu

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/pn532emu/card"
	"github.com/ZaparooProject/pn532emu/internal/frame"
)

type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) FrameAccepted(cmd byte, length int) {
	m.Called(cmd, length)
}

func (m *mockObserver) FrameRejected(err error) {
	m.Called(err)
}

func (m *mockObserver) ResponseQueued(cmd byte, reply Reply) {
	m.Called(cmd, reply)
}

func (m *mockObserver) ResponseSuppressed(cmd byte) {
	m.Called(cmd)
}

func (m *mockObserver) Authenticated(slot, sector int, kind card.KeyKind, ok bool) {
	m.Called(slot, sector, kind, ok)
}

func (m *mockObserver) CardSelected(slot int) {
	m.Called(slot)
}

func (m *mockObserver) FieldReset() {
	m.Called()
}

func TestObserver_SessionEvents(t *testing.T) {
	t.Parallel()
	obs := &mockObserver{}
	toggles := &Toggles{}
	dev, err := NewDevice(WithLogger(zerolog.Nop()), WithControls(toggles), WithObserver(obs))
	require.NoError(t, err)
	defer dev.Close()

	okStatus := mock.MatchedBy(func(r Reply) bool {
		s, ok := r.Status()
		return ok && s == StatusOK
	})
	failStatus := mock.MatchedBy(func(r Reply) bool {
		s, ok := r.Status()
		return ok && s == StatusError
	})

	obs.On("CardSelected", 0).Once()
	obs.On("FrameAccepted", byte(cmdInDataExchange), mock.AnythingOfType("int")).Times(2)
	obs.On("Authenticated", 0, 1, card.KeyA, true).Once()
	obs.On("Authenticated", 0, 1, card.KeyB, false).Once()
	obs.On("ResponseQueued", byte(cmdInDataExchange), okStatus).Once()
	obs.On("ResponseQueued", byte(cmdInDataExchange), failStatus).Once()
	obs.On("FrameAccepted", byte(0x60), mock.AnythingOfType("int")).Once()
	obs.On("ResponseSuppressed", byte(0x60)).Once()
	obs.On("FrameRejected", mock.MatchedBy(func(err error) bool {
		return err != nil
	})).Once()
	obs.On("FieldReset").Once()

	toggles.Store(Controls{Card1: true})
	_, err = dev.ReadByte()
	require.NoError(t, err)

	authA := append([]byte{0x01, byte(card.KeyA), 0x04}, card.DefaultKey...)
	_, err = dev.Write(frame.BuildCommand(cmdInDataExchange, authA))
	require.NoError(t, err)
	dev.Drain()

	authB := append([]byte{0x01, byte(card.KeyB), 0x05}, 0, 0, 0, 0, 0, 0)
	_, err = dev.Write(frame.BuildCommand(cmdInDataExchange, authB))
	require.NoError(t, err)
	dev.Drain()

	_, err = dev.Write(frame.BuildCommand(0x60, nil))
	require.NoError(t, err)
	dev.Drain()

	bad := frame.BuildCommand(cmdGetFirmwareVersion, nil)
	bad[4]++
	_, err = dev.Write(bad)
	require.NoError(t, err)

	toggles.Store(Controls{Reset: true})
	_, err = dev.ReadByte()
	require.NoError(t, err)

	obs.AssertExpectations(t)
}
