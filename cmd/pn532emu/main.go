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

// Command pn532emu runs an emulated PN532 reader. The chip is published as a
// periph I2C bus and can additionally be served on a serial port or a pseudo
// terminal. Cards are inserted through the HTTP API or a Redis hash.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	pn532emu "github.com/ZaparooProject/pn532emu"
	"github.com/ZaparooProject/pn532emu/control"
	"github.com/ZaparooProject/pn532emu/internal/syncutil"
	"github.com/ZaparooProject/pn532emu/metrics"
	"github.com/ZaparooProject/pn532emu/transport/i2c"
	"github.com/ZaparooProject/pn532emu/transport/uart"
)

const (
	deadlockTimeout = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

type config struct {
	busName    string
	uartPath   string
	httpAddr   string
	redisURL   string
	irqPin     string
	delay      time.Duration
	addr       uint16
	pty        bool
	strictAuth bool
	selftest   bool
	debug      bool
	sessionLog bool
}

// Package-level flag variables
var (
	flagBus        string
	flagAddr       string
	flagDelay      time.Duration
	flagUART       string
	flagPTY        bool
	flagHTTP       string
	flagRedis      string
	flagIRQPin     string
	flagStrictAuth bool
	flagSelftest   bool
	flagDebug      bool
	flagSessionLog bool
)

func init() {
	flag.StringVar(&flagBus, "bus", "pn532emu", "Name the emulated I2C bus is registered under")
	flag.StringVar(&flagAddr, "addr", "0x24", "7-bit I2C address of the chip")
	flag.DurationVar(&flagDelay, "delay", pn532emu.DefaultResponseDelay, "Processing time before IRQ drops")
	flag.StringVar(&flagUART, "uart", "", "Serve the chip on this serial port")
	flag.BoolVar(&flagPTY, "pty", false, "Serve the chip on a new pseudo terminal")
	flag.StringVar(&flagHTTP, "http", os.Getenv("PN532EMU_HTTP"), "HTTP control API listen address")
	flag.StringVar(&flagRedis, "redis", os.Getenv("PN532EMU_REDIS"), "Redis URL for remote controls")
	flag.StringVar(&flagIRQPin, "irq-pin", "", "Drive this GPIO pin as the IRQ line")
	flag.BoolVar(&flagStrictAuth, "strict-auth", false, "Only a successful authentication unlocks a sector")
	flag.BoolVar(&flagSelftest, "selftest", false, "Exercise the chip over the I2C bus and exit")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
	flag.BoolVar(&flagSessionLog, "session-log", false, "Write a debug session log file")
}

func parseConfig() (*config, error) {
	addr, err := strconv.ParseUint(flagAddr, 0, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid -addr %q: %w", flagAddr, err)
	}
	pn532emu.SetDebugEnabled(flagDebug)
	return &config{
		busName:    flagBus,
		addr:       uint16(addr),
		delay:      flagDelay,
		uartPath:   flagUART,
		pty:        flagPTY,
		httpAddr:   flagHTTP,
		redisURL:   flagRedis,
		irqPin:     flagIRQPin,
		strictAuth: flagStrictAuth,
		selftest:   flagSelftest,
		debug:      flagDebug,
		sessionLog: flagSessionLog,
	}, nil
}

func (c *config) chipConfig() (pn532emu.Config, error) {
	cc := pn532emu.DefaultConfig()
	cc.Address = c.addr
	cc.ResponseDelay = c.delay
	cc.StrictAuthentication = c.strictAuth
	if err := cc.Validate(); err != nil {
		return cc, err
	}
	return cc, nil
}

// emulator is everything run wires together.
type emulator struct {
	dev      *pn532emu.Device
	bus      *i2c.Bus
	line     pn532emu.SignalLine
	toggles  *pn532emu.Toggles
	registry *prometheus.Registry
	redis    *control.RedisSource
	log      zerolog.Logger
	instance string
}

func newEmulator(cfg *config, rdb control.RedisClient) (*emulator, error) {
	cc, err := cfg.chipConfig()
	if err != nil {
		return nil, err
	}

	e := &emulator{
		instance: uuid.NewString(),
		toggles:  &pn532emu.Toggles{},
		registry: prometheus.NewRegistry(),
	}
	e.log = pn532emu.Logger().With().Str("instance", e.instance).Logger()
	e.registry.MustRegister(collectors.NewGoCollector())

	line, err := signalLine(cfg.irqPin)
	if err != nil {
		return nil, err
	}
	e.line = line

	opts := cc.Options()
	opts = append(opts,
		pn532emu.WithSignalLine(line),
		pn532emu.WithControls(e.toggles),
		pn532emu.WithLogger(e.log),
		pn532emu.WithObserver(metrics.New(e.registry)),
	)
	if rdb != nil {
		e.redis = control.NewRedisSource(rdb, e.toggles, "", e.instance)
		opts = append(opts, pn532emu.WithObserver(e.redis))
	}

	e.dev, err = pn532emu.NewDevice(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create device: %w", err)
	}
	e.bus = i2c.NewBus(e.dev, cfg.busName, cc.Address)
	return e, nil
}

// signalLine returns the board pin named name, or a virtual line when name
// is empty.
func signalLine(name string) (pn532emu.SignalLine, error) {
	if name == "" {
		return pn532emu.NewVirtualLine("IRQ"), nil
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise host drivers: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("unknown GPIO pin %q", name)
	}
	return pin, nil
}

func (e *emulator) Close() error {
	return errors.Join(e.bus.Close(), e.dev.Close())
}

func (e *emulator) router() http.Handler {
	r := control.NewRouter(control.NewHandler(e.dev, e.toggles, e.instance))
	r.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
	return r
}

func serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func newRedisClient(url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return redis.NewClient(opt), nil
}

func run(ctx context.Context, cfg *config) error {
	syncutil.Configure(deadlockTimeout, func() {
		logger := pn532emu.Logger()
		logger.Error().Msg("potential deadlock detected")
	})

	rdb, err := newRedisClient(cfg.redisURL)
	if err != nil {
		return err
	}
	var client control.RedisClient
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		client = rdb
	}

	emu, err := newEmulator(cfg, client)
	if err != nil {
		return err
	}
	defer func() {
		if err := emu.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close emulator: %v\n", err)
		}
	}()

	if err := emu.bus.Register(); err != nil {
		return err
	}
	defer func() { _ = emu.bus.Unregister() }()

	if cfg.selftest {
		return runSelftest(ctx, emu, cfg)
	}
	return serve(ctx, emu, cfg)
}

func serve(ctx context.Context, emu *emulator, cfg *config) error {
	g, gctx := errgroup.WithContext(ctx)

	if cfg.uartPath != "" {
		port, err := uart.Open(cfg.uartPath)
		if err != nil {
			return err
		}
		bridge := uart.NewBridge(emu.dev, port, cfg.uartPath)
		g.Go(func() error { return bridge.Serve(gctx) })
	}

	if cfg.pty {
		p, err := uart.OpenPTY()
		if err != nil {
			return fmt.Errorf("failed to open pty: %w", err)
		}
		_, _ = fmt.Printf("Serial port: %s\n", p.Path)
		bridge := uart.NewBridge(emu.dev, p, p.Path)
		g.Go(func() error { return bridge.Serve(gctx) })
	}

	if cfg.httpAddr != "" {
		handler := emu.router()
		g.Go(func() error { return serveHTTP(gctx, cfg.httpAddr, handler) })
	}

	if emu.redis != nil {
		g.Go(func() error { return emu.redis.Run(gctx) })
	}

	emu.log.Info().
		Str("bus", cfg.busName).
		Str("addr", fmt.Sprintf("0x%02X", cfg.addr)).
		Msg("emulator ready")

	g.Go(func() error {
		<-gctx.Done()
		return gctx.Err()
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	if cfg.sessionLog {
		path, err := pn532emu.InitSessionLog()
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to open session log: %v\n", err)
		} else {
			_, _ = fmt.Printf("Session log: %s\n", path)
			defer func() { _ = pn532emu.CloseSessionLog() }()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
