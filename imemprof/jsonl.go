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

	"github.com/segmentio/encoding/json"
)

// JSONLSource streams instruction events from a JSON-lines trace, one
// event object per line. Skip-count and PC region-of-interest positioning
// happen here, before the collector ever sees an event; the binary trace
// formats proper live behind their own readers.
type JSONLSource struct {
	dec     *json.Decoder
	index   uint64
	skip    uint64
	startPC uint64
	stopPC  uint64
	started bool
	stopped bool
}

// NewJSONLSource builds a source positioned by the run configuration.
func NewJSONLSource(r io.Reader, cfg *Config) *JSONLSource {
	return &JSONLSource{
		dec:     json.NewDecoder(r),
		skip:    cfg.SkipCount,
		startPC: cfg.ROIStartPC,
		stopPC:  cfg.ROIStopPC,
		started: cfg.ROIStartPC == 0,
	}
}

// Next implements EventSource.
func (s *JSONLSource) Next() (*InstEvent, error) {
	for {
		if s.stopped {
			return nil, io.EOF
		}
		ev := &InstEvent{}
		if err := s.dec.Decode(ev); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("decoding trace event %d: %w", s.index, err)
		}
		ev.Index = s.index
		s.index++

		if !s.started {
			if ev.PC != s.startPC {
				continue
			}
			s.started = true
		}
		if s.stopPC != 0 && ev.PC == s.stopPC {
			s.stopped = true
			return nil, io.EOF
		}
		if s.skip > 0 {
			s.skip--
			continue
		}
		return ev, nil
	}
}
