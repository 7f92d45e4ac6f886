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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFirstVisitWindows(t *testing.T) {
	for _, tc := range []struct {
		name       string
		inWarmup   bool
		inRun      bool
		wantWarmup uint64
		wantRun    uint64
	}{
		{"warmup", true, true, 1, 0},
		{"steady", false, true, 0, 1},
		{"past both windows", false, false, 0, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := newAddressProfile(plainEvent(0x100, 0x13), tc.inWarmup, tc.inRun)
			require.Equal(t, uint64(1), p.Total())
			require.Equal(t, tc.wantWarmup, p.Warmup())
			require.Equal(t, tc.wantRun, p.RunLength())
		})
	}
}

func TestStrideHistory(t *testing.T) {
	addrs := []uint64{0x1000, 0x1008, 0x1010, 0x1004}
	p := newAddressProfile(loadEvent(0x100, 0x55, addrs[0]), false, true)
	for _, a := range addrs[1:] {
		updateProfile(p, loadEvent(0x100, 0x55, a), false, true)
	}

	require.True(t, p.IsLoadStore())
	require.False(t, p.IsBranch())
	strides := p.Strides()
	require.Equal(t, int64(8), strides[0])
	require.Equal(t, int64(8), strides[1])
	require.Equal(t, int64(-12), strides[2])
	// Only k-1 deltas exist after k visits.
	require.Equal(t, int64(0), strides[3])
}

func TestStrideWraparound(t *testing.T) {
	const visits = 3 * HistoryDepth
	p := newAddressProfile(loadEvent(0x100, 0x55, 0), false, true)
	for i := 1; i < visits; i++ {
		updateProfile(p, loadEvent(0x100, 0x55, uint64(i)*4), false, true)
	}

	for i, s := range p.Strides() {
		require.Equal(t, int64(4), s, "slot %d", i)
	}
}

func TestBranchHistoryBits(t *testing.T) {
	pattern := []bool{true, false, true, true, false}
	p := newAddressProfile(branchEvent(0x100, 0x63, pattern[0]), false, true)
	for _, taken := range pattern[1:] {
		updateProfile(p, branchEvent(0x100, 0x63, taken), false, true)
	}

	require.True(t, p.IsBranch())
	for i, want := range pattern {
		require.Equal(t, want, p.BranchOutcome(i), "slot %d", i)
	}
	require.False(t, p.BranchOutcome(len(pattern)))
}

func TestBranchHistoryWraparound(t *testing.T) {
	p := newAddressProfile(branchEvent(0x100, 0x63, false), false, true)
	for i := 1; i < HistoryDepth; i++ {
		updateProfile(p, branchEvent(0x100, 0x63, false), false, true)
	}
	// Visit HistoryDepth+1 wraps to slot 0.
	updateProfile(p, branchEvent(0x100, 0x63, true), false, true)

	require.True(t, p.BranchOutcome(0))
	require.False(t, p.BranchOutcome(1))
}

// A branch that is never taken cannot be classified at decode time; the
// entry is promoted on its first taken observation.
func TestBranchPromotion(t *testing.T) {
	p := newAddressProfile(plainEvent(0x100, 0x63), false, true)
	require.False(t, p.IsBranch())

	taken := &InstEvent{PC: 0x100, Opcode: 0x63, Taken: true}
	updateProfile(p, taken, false, true)

	require.True(t, p.IsBranch())
	require.True(t, p.BranchOutcome(0))
	require.Equal(t, uint64(2), p.Total())
}

func TestOpcodeSize(t *testing.T) {
	p := newAddressProfile(plainEvent(0x100, 0x13), false, true)
	require.Equal(t, uint32(4), p.OpcodeSize())

	ev := plainEvent(0x104, 0x4501)
	ev.Compressed = true
	c := newAddressProfile(ev, false, true)
	require.Equal(t, uint32(2), c.OpcodeSize())
}
