// Copyright (C) 2024 rhcache authors.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package qosconfig loads RHC/WHC QoS fixtures from YAML, for cmd/cachectl
// and tests. It is never on the cache hot path.
package qosconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/rhcache/rhcache/rhc"
	"github.com/rhcache/rhcache/whc"
)

// duration is accepted in YAML as a string ("100ms", "2s") and parsed via
// time.ParseDuration, the same convention cmd-line-flag-driven Go tools use.
// sigs.k8s.io/yaml converts YAML to JSON before decoding, so the hook is
// UnmarshalJSON, not a yaml-specific interface.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("qosconfig: %w", err)
	}
	d.Duration = parsed
	return nil
}

// Document is the top-level shape of a QoS fixture file: one reader (RHC)
// config and/or one writer (WHC) config. It holds no writer-info fields.
type Document struct {
	Reader *ReaderQos `json:"reader,omitempty"`
	Writer *WriterQos `json:"writer,omitempty"`
}

// ReaderQos mirrors rhc.Config in YAML-friendly form.
type ReaderQos struct {
	HistoryDepth          uint32   `json:"historyDepth"`
	MaxInstances          int      `json:"maxInstances"`
	MaxSamples            int      `json:"maxSamples"`
	MaxSamplesPerInstance int      `json:"maxSamplesPerInstance"`
	MinimumSeparation     duration `json:"minimumSeparation"`
	BySourceOrdering      bool     `json:"bySourceOrdering"`
	ExclusiveOwnership    bool     `json:"exclusiveOwnership"`
	Reliable              bool     `json:"reliable"`
	Deadline              duration `json:"deadline"`
}

// ToConfig converts to rhc.Config, defaulting unset (-1-meaning) int
// fields to rhc.Unlimited so a YAML fixture can simply omit them.
func (q ReaderQos) ToConfig() rhc.Config {
	cfg := rhc.Config{
		HistoryDepth:          q.HistoryDepth,
		MaxInstances:          q.MaxInstances,
		MaxSamples:            q.MaxSamples,
		MaxSamplesPerInstance: q.MaxSamplesPerInstance,
		MinimumSeparation:     q.MinimumSeparation.Duration,
		BySourceOrdering:      q.BySourceOrdering,
		ExclusiveOwnership:    q.ExclusiveOwnership,
		Reliable:              q.Reliable,
		Deadline:              q.Deadline.Duration,
	}
	if cfg.MaxInstances == 0 {
		cfg.MaxInstances = rhc.Unlimited
	}
	if cfg.MaxSamples == 0 {
		cfg.MaxSamples = rhc.Unlimited
	}
	if cfg.MaxSamplesPerInstance == 0 {
		cfg.MaxSamplesPerInstance = rhc.Unlimited
	}
	return cfg
}

// WriterQos mirrors whc.Config in YAML-friendly form.
type WriterQos struct {
	HistoryDepth        uint32   `json:"historyDepth"`
	IsTransientLocal    bool     `json:"isTransientLocal"`
	TransientLocalDepth uint32   `json:"transientLocalDepth"`
	Deadline            duration `json:"deadline"`
}

// ToConfig converts to whc.Config.
func (q WriterQos) ToConfig() whc.Config {
	return whc.Config{
		HistoryDepth:        q.HistoryDepth,
		IsTransientLocal:    q.IsTransientLocal,
		TransientLocalDepth: q.TransientLocalDepth,
		Deadline:            q.Deadline.Duration,
	}
}

// LoadFile reads and parses a QoS fixture file.
func LoadFile(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("qosconfig: %w", err)
	}
	return Load(b)
}

// Load parses a QoS fixture from raw YAML bytes.
func Load(b []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("qosconfig: %w", err)
	}
	return &doc, nil
}
