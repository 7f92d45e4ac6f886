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
	"math"
)

// ErrInvalidROI is returned when a configured region of interest ends
// before it starts.
var ErrInvalidROI = errors.New("region of interest stop PC precedes start PC")

// Config holds the options driving one profiling run.
type Config struct {
	// TraceFilename is the trace being profiled, echoed in the report
	// header.
	TraceFilename string
	// OutputFilename is the primary report destination; empty or "-"
	// means stdout.
	OutputFilename string

	// HwTID, PID and TID drop events whose corresponding id does not
	// match; 0 leaves the stream unfiltered.
	HwTID uint32
	PID   uint32
	TID   uint32

	// SkipCount positions the event source past this many leading events.
	SkipCount uint64
	// KeepCount stops profiling after this many counted visits.
	KeepCount uint64
	// WarmupCount is the number of leading visits credited to the warmup
	// window.
	WarmupCount uint64
	// RunLengthCount bounds the steady-state window.
	RunLengthCount uint64

	// OverlayCode enables address-reuse disambiguation for traces of
	// overlaid or JIT-generated code.
	OverlayCode bool
	// SortOutput also emits the hotness-sorted report.
	SortOutput bool
	// LocalHistory appends stride/branch-history annotations to sorted
	// report lines.
	LocalHistory bool
	// Track adds the warmup/runlength columns and the config header.
	Track bool
	// ShowPercentage adds percentage columns to the plain listing.
	ShowPercentage bool
	// ShowPhysPC adds the physical PC to every report line.
	ShowPhysPC bool
	// SkipNonUser is realized by the event source and echoed in the
	// config header.
	SkipNonUser bool

	// IEM is the instruction encoding mode label for the MAP banners.
	IEM string

	// ROIStartPC and ROIStopPC bound the profiled region; 0 disables
	// either bound. Applied by the event source.
	ROIStartPC uint64
	ROIStopPC  uint64

	// ELFPath optionally names the binary whose symbols annotate report
	// lines.
	ELFPath string
}

// DefaultConfig returns a Config with unlimited keep and runlength windows.
func DefaultConfig() *Config {
	return &Config{
		KeepCount:      math.MaxUint64,
		RunLengthCount: math.MaxUint64,
		IEM:            "RV64",
	}
}

// Validate rejects configuration invariant violations coming from the
// argument parser.
func (c *Config) Validate() error {
	if c.ROIStartPC != 0 && c.ROIStopPC != 0 && c.ROIStopPC < c.ROIStartPC {
		return fmt.Errorf("%w: start 0x%x stop 0x%x", ErrInvalidROI, c.ROIStartPC, c.ROIStopPC)
	}
	return nil
}
