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

//go:build linux

package uart

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// PTY is a pseudo terminal pair. The emulator reads and writes the master;
// host software opens Path as if it were a serial port.
type PTY struct {
	master *os.File
	// slave is held open so the master does not see a hangup when the host
	// closes and reopens Path.
	slave *os.File
	Path  string
}

// OpenPTY allocates a pseudo terminal in raw mode.
func OpenPTY() (*PTY, error) {
	mfd, err := unix.Open("/dev/ptmx", unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/ptmx: %w", err)
	}
	if err := unix.IoctlSetPointerInt(mfd, unix.TIOCSPTLCK, 0); err != nil {
		_ = unix.Close(mfd)
		return nil, fmt.Errorf("unlock pty: %w", err)
	}
	n, err := unix.IoctlGetInt(mfd, unix.TIOCGPTN)
	if err != nil {
		_ = unix.Close(mfd)
		return nil, fmt.Errorf("get pty number: %w", err)
	}
	path := fmt.Sprintf("/dev/pts/%d", n)

	sfd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		_ = unix.Close(mfd)
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := makeRaw(sfd); err != nil {
		_ = unix.Close(sfd)
		_ = unix.Close(mfd)
		return nil, err
	}

	// A non-blocking descriptor gets a pollable os.File, so Close unblocks Read.
	if err := unix.SetNonblock(mfd, true); err != nil {
		_ = unix.Close(sfd)
		_ = unix.Close(mfd)
		return nil, fmt.Errorf("set pty non-blocking: %w", err)
	}

	return &PTY{
		master: os.NewFile(uintptr(mfd), "/dev/ptmx"),
		slave:  os.NewFile(uintptr(sfd), path),
		Path:   path,
	}, nil
}

// makeRaw is cfmakeraw(3).
func makeRaw(fd int) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}
	return nil
}

func (p *PTY) Read(b []byte) (int, error) {
	n, err := p.master.Read(b)
	if err != nil {
		return n, fmt.Errorf("pty read: %w", err)
	}
	return n, nil
}

func (p *PTY) Write(b []byte) (int, error) {
	n, err := p.master.Write(b)
	if err != nil {
		return n, fmt.Errorf("pty write: %w", err)
	}
	return n, nil
}

// Close releases both ends.
func (p *PTY) Close() error {
	merr := p.master.Close()
	serr := p.slave.Close()
	if merr != nil {
		return fmt.Errorf("close pty: %w", merr)
	}
	if serr != nil {
		return fmt.Errorf("close pty: %w", serr)
	}
	return nil
}
