// Copyright 2025-2026 The Traceprof Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package imemprof

import (
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// Collector folds a stream of instruction events into profile tables. It
// is a straight-line reducer: streaming until the source is exhausted or
// the keep-count cutoff fires, then finished.
type Collector struct {
	cfg      *Config
	res      resolver
	visits   uint64
	finished bool
}

// NewCollector builds a collector for the given run. The address-reuse
// policy is selected here, once.
func NewCollector(cfg *Config) *Collector {
	var res resolver
	if cfg.OverlayCode {
		res = newOverlayResolver()
	} else {
		res = newSimpleResolver()
	}
	return &Collector{cfg: cfg, res: res}
}

// Consume feeds one event through the filter/window pipeline. It returns
// false once the keep-count cutoff has been reached; the collector ignores
// everything after that.
func (c *Collector) Consume(ev *InstEvent) bool {
	if c.finished {
		return false
	}

	if ev.Invalid {
		// Undecodable opcodes are reported but still profiled.
		log.WithFields(log.Fields{
			"index":  ev.Index,
			"opcode": fmt.Sprintf("0x%x", ev.Opcode),
			"pc":     fmt.Sprintf("0x%x", ev.PC),
		}).Error("invalid instruction")
	}

	if c.cfg.HwTID != 0 && c.cfg.HwTID != ev.HwTID {
		return true
	}
	if c.cfg.PID != 0 && c.cfg.PID != ev.PID {
		return true
	}
	if c.cfg.TID != 0 && c.cfg.TID != ev.TID {
		return true
	}

	// Faulting instructions are replayed by the trace; counting them here
	// would double count the execution.
	if ev.Fault {
		return true
	}

	inWarmup := c.visits < c.cfg.WarmupCount
	inRun := c.visits < c.cfg.RunLengthCount
	c.res.record(ev, inWarmup, inRun)

	c.visits++
	if c.visits >= c.cfg.KeepCount {
		c.finished = true
		return false
	}
	return true
}

// Run drains src until it is exhausted or the keep-count cutoff fires.
func (c *Collector) Run(src EventSource) error {
	for {
		ev, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.finished = true
				return nil
			}
			return err
		}
		if !c.Consume(ev) {
			return nil
		}
	}
}

// VisitCount returns the number of visits that passed filtering, the
// denominator for every report percentage.
func (c *Collector) VisitCount() uint64 { return c.visits }

// Finished reports whether the collector has left the streaming state.
func (c *Collector) Finished() bool { return c.finished }

// Tables returns the profile tables, newest first. Callers must treat
// them as read-only.
func (c *Collector) Tables() []*ProfileTable { return c.res.tables() }
