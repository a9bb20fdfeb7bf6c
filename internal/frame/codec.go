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

package frame

import (
	"bytes"
	"errors"
	"fmt"
)

// Decode errors returned by ParseResponse.
var (
	ErrShortFrame    = errors.New("frame: too short")
	ErrNoStartCode   = errors.New("frame: start code not found")
	ErrTruncated     = errors.New("frame: truncated")
	ErrUnexpectedTFI = errors.New("frame: unexpected TFI")
	ErrChecksum      = errors.New("frame: checksum mismatch")
)

// Build wraps TFI plus body into a normal information frame:
// PREAMBLE START(2) LEN LCS TFI BODY DCS POSTAMBLE.
func Build(tfi byte, body []byte) []byte {
	dataLen := 1 + len(body)

	frm := make([]byte, 0, dataLen+7)
	frm = append(frm, Preamble, StartCode1, StartCode2, byte(dataLen), Complement(byte(dataLen)), tfi)
	frm = append(frm, body...)
	frm = append(frm, Complement(tfi+CalculateChecksum(body)), Postamble)

	return frm
}

// BuildCommand builds a host-to-chip frame for cmd and its parameters.
func BuildCommand(cmd byte, params []byte) []byte {
	body := make([]byte, 0, 1+len(params))
	body = append(body, cmd)
	body = append(body, params...)
	return Build(HostToPn532, body)
}

// BuildResponse builds the chip-to-host frame carrying payload. payload
// already starts with the response code (command + 1).
func BuildResponse(payload []byte) []byte {
	return Build(Pn532ToHost, payload)
}

// IsAck reports whether buf begins with an ACK frame.
func IsAck(buf []byte) bool {
	return bytes.HasPrefix(buf, AckFrame)
}

// ValidateFrameChecksum validates a checksummed span (TFI .. DCS inclusive)
// Returns true if checksum is invalid, false if valid
func ValidateFrameChecksum(buf []byte, start, end int) bool {
	// Handle invalid slice bounds - negative indices or out of range
	if start < 0 || end < 0 || start > end || end > len(buf) {
		return true
	}
	return CalculateChecksum(buf[start:end]) != 0
}

// ResponseLength returns the total wire size of the response whose header
// starts at buf[0], or an error if the header is not a valid frame start.
func ResponseLength(header []byte) (int, error) {
	if len(header) < HeaderLength {
		return 0, ErrShortFrame
	}
	if header[0] != Preamble || header[1] != StartCode1 || header[2] != StartCode2 {
		return 0, ErrNoStartCode
	}
	if header[3]+header[4] != 0 {
		return 0, fmt.Errorf("%w: LEN 0x%02X LCS 0x%02X", ErrChecksum, header[3], header[4])
	}
	return HeaderLength + int(header[3]) + 2, nil
}

// ParseResponse validates a complete chip-to-host frame and returns its
// payload (response code first, TFI stripped).
func ParseResponse(buf []byte) ([]byte, error) {
	if len(buf) < MinFrameLength {
		return nil, ErrShortFrame
	}
	start := bytes.Index(buf, []byte{StartCode1, StartCode2})
	if start < 0 {
		return nil, ErrNoStartCode
	}
	off := start + 2
	if off+2 > len(buf) {
		return nil, ErrTruncated
	}
	frameLen := int(buf[off])
	if buf[off]+buf[off+1] != 0 {
		return nil, fmt.Errorf("%w: length", ErrChecksum)
	}
	if frameLen == 0 {
		return nil, ErrShortFrame
	}
	dataStart := off + 2
	dataEnd := dataStart + frameLen
	if dataEnd+2 > len(buf) {
		return nil, ErrTruncated
	}
	if ValidateFrameChecksum(buf, dataStart, dataEnd+1) {
		return nil, fmt.Errorf("%w: data", ErrChecksum)
	}
	if buf[dataStart] != Pn532ToHost {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnexpectedTFI, buf[dataStart])
	}

	payload := make([]byte, frameLen-1)
	copy(payload, buf[dataStart+1:dataEnd])
	return payload, nil
}
