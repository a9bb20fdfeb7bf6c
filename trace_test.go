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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceBuffer_EvictsOldest(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer("emu", 3)
	for i := range 5 {
		tb.RecordRX([]byte{byte(i)}, "")
	}

	entries := tb.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, []byte{0x02}, entries[0].Data)
	assert.Equal(t, []byte{0x04}, entries[2].Data)

	tb.Clear()
	assert.Empty(t, tb.Entries())
}

func TestTraceBuffer_CopiesData(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer("emu", 0)
	data := []byte{0xD4, 0x02}
	tb.RecordRX(data, "GetFirmwareVersion")
	data[0] = 0x00

	assert.Equal(t, []byte{0xD4, 0x02}, tb.Entries()[0].Data)
}

func TestTraceBuffer_WrapError(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer("i2c-emu", 4)
	assert.NoError(t, tb.WrapError(nil))

	tb.RecordTX([]byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD4, 0x02, 0x2A, 0x00}, "")
	tb.RecordRX(nil, "timeout")
	err := tb.WrapError(fmt.Errorf("firmware: %w", ErrNoACK))

	require.ErrorIs(t, err, ErrNoACK)
	te := GetTrace(err)
	require.NotNil(t, te)
	assert.Len(t, te.Trace, 2)

	out := te.FormatTrace()
	assert.Contains(t, out, "[i2c-emu] Wire trace (2 entries)")
	assert.Contains(t, out, "> 00 00 FF 02 FE D4 02 2A 00")
	assert.Contains(t, out, "< (empty) (timeout)")

	assert.Nil(t, GetTrace(errors.New("plain")))
}

func TestTraceEntry_Format(t *testing.T) {
	t.Parallel()

	long := make([]byte, 40)
	assert.True(t, strings.HasSuffix(formatHexBytes(long), "... (40 bytes total)"))

	e := TraceEntry{Direction: TraceTX, Data: []byte{0x41, 0x00}, Note: "status"}
	assert.Contains(t, e.String(), "TX: 41 00 (status)")

	raw, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"data":"4100"`)
	assert.Contains(t, string(raw), `"direction":"TX"`)
}
