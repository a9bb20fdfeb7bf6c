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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	pn532emu "github.com/ZaparooProject/pn532emu"
	"github.com/ZaparooProject/pn532emu/internal/syncutil"
)

const (
	// DefaultPrefix namespaces the Redis keys and channels.
	DefaultPrefix = "pn532emu"

	defaultPollInterval = time.Second
	eventQueueSize      = 64
)

// RedisClient is the subset of *redis.Client the source uses.
type RedisClient interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// subscriber is implemented by *redis.Client.
type subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Event is published on <prefix>:events whenever the field changes.
type Event struct {
	Time     time.Time `json:"time"`
	Event    string    `json:"event"`
	Instance string    `json:"instance,omitempty"`
	Slot     int       `json:"slot"`
}

// Event names
const (
	EventCardSelected = "card_selected"
	EventFieldReset   = "field_reset"
)

// RedisSource mirrors the hash <prefix>:controls into Toggles and publishes
// field changes. Any message on the channel <prefix>:controls triggers an
// immediate refresh; the hash is also polled.
//
// It is also a pn532emu.Observer: events are queued without blocking and
// published from Run.
type RedisSource struct {
	pn532emu.NopObserver
	client   RedisClient
	toggles  *pn532emu.Toggles
	events   chan Event
	log      zerolog.Logger
	prefix   string
	instance string
	interval time.Duration
	mu       syncutil.Mutex
	last     map[string]bool
}

// NewRedisSource creates a source. An empty prefix uses DefaultPrefix.
func NewRedisSource(client RedisClient, toggles *pn532emu.Toggles, prefix, instance string) *RedisSource {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisSource{
		client:   client,
		toggles:  toggles,
		prefix:   prefix,
		instance: instance,
		interval: defaultPollInterval,
		events:   make(chan Event, eventQueueSize),
		log:      pn532emu.Logger().With().Str("component", "redis").Logger(),
	}
}

// ControlsKey is the hash holding card1, card2 and reset.
func (s *RedisSource) ControlsKey() string {
	return s.prefix + ":controls"
}

// EventsChannel is where field changes are published.
func (s *RedisSource) EventsChannel() string {
	return s.prefix + ":events"
}

// Refresh reads the controls hash. Only fields whose value changed since the
// last refresh are applied, so HTTP changes are not overwritten by a stale
// hash.
func (s *RedisSource) Refresh(ctx context.Context) error {
	fields, err := s.client.HGetAll(ctx, s.ControlsKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("read %s: %w", s.ControlsKey(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]bool, len(pn532emu.ControlNames))
	for _, name := range pn532emu.ControlNames {
		on, err := parseToggle(fields[name])
		if err != nil {
			s.log.Warn().Str("control", name).Str("value", fields[name]).Msg("ignoring invalid control value")
			on = s.last[name]
		}
		next[name] = on
		if prev, seen := s.last[name]; seen && prev == on {
			continue
		}
		if changed, _ := s.toggles.Set(name, on); changed {
			s.log.Info().Str("control", name).Bool("on", on).Msg("control changed")
		}
	}
	s.last = next
	return nil
}

// parseToggle accepts what strconv.ParseBool accepts plus on/off. Missing
// fields are off.
func parseToggle(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "off":
		return false, nil
	case "on":
		return true, nil
	}
	on, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse toggle %q: %w", v, err)
	}
	return on, nil
}

// Run polls and listens until ctx is done. Refresh errors are logged, not
// returned, so a Redis restart does not stop the emulator. If the
// subscription cannot be set up, Run keeps polling without it.
func (s *RedisSource) Run(ctx context.Context) error {
	var notify <-chan *redis.Message
	if sub, ok := s.client.(subscriber); ok {
		pubsub := sub.Subscribe(ctx, s.ControlsKey())
		defer pubsub.Close()
		if _, err := pubsub.Receive(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn().Err(err).Str("channel", s.ControlsKey()).Msg("subscribe failed, polling only")
		} else {
			notify = pubsub.Channel()
		}
	}

	s.refresh(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.refresh(ctx)
		case msg, ok := <-notify:
			if !ok {
				notify = nil
				continue
			}
			s.log.Debug().Str("payload", msg.Payload).Msg("controls notification")
			s.refresh(ctx)
		case ev := <-s.events:
			s.publish(ctx, ev)
		}
	}
}

func (s *RedisSource) refresh(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
		s.log.Warn().Err(err).Msg("refresh failed")
	}
}

func (s *RedisSource) publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.log.Error().Err(err).Msg("encode event")
		return
	}
	if err := s.client.Publish(ctx, s.EventsChannel(), payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("event", ev.Event).Msg("publish failed")
	}
}

func (s *RedisSource) enqueue(ev Event) {
	ev.Time = time.Now()
	ev.Instance = s.instance
	select {
	case s.events <- ev:
	default:
		s.log.Warn().Str("event", ev.Event).Msg("event queue full, dropping")
	}
}

// CardSelected implements pn532emu.Observer.
func (s *RedisSource) CardSelected(slot int) {
	s.enqueue(Event{Event: EventCardSelected, Slot: slot})
}

// FieldReset implements pn532emu.Observer.
func (s *RedisSource) FieldReset() {
	s.enqueue(Event{Event: EventFieldReset, Slot: -1})
}

var _ pn532emu.Observer = (*RedisSource)(nil)
