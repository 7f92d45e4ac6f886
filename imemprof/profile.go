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

// HistoryDepth is the capacity of the per-address stride and branch
// history windows.
const HistoryDepth = 50

// AddressProfile accumulates the statistics for one (address, opcode)
// pair. Counters only ever grow; the stride and branch histories are fixed
// rings addressed by an explicit cursor.
type AddressProfile struct {
	opcode     uint32
	compressed bool
	physPC     uint64

	total     uint64
	warmup    uint64
	runLength uint64

	isLoadStore bool
	lastAddr    uint64
	strides     [HistoryDepth]int64
	strideIdx   uint32

	isBranch   bool
	branchHist uint64 // bit i is the outcome at window slot i
	branchIdx  uint32
}

// newAddressProfile creates the entry for a first visit. Exactly one of
// the warmup/runlength windows is credited, under the same test every
// later visit uses.
func newAddressProfile(ev *InstEvent, inWarmup, inRun bool) *AddressProfile {
	p := &AddressProfile{
		opcode:     ev.Opcode,
		compressed: ev.Compressed,
		physPC:     ev.PhysPC,
		total:      1,
	}
	if inWarmup {
		p.warmup = 1
	} else if inRun {
		p.runLength = 1
	}
	switch {
	case ev.isLoadStore():
		p.isLoadStore = true
		p.lastAddr = ev.memAddr()
	case ev.isBranch():
		p.RecordBranch(ev.Taken)
	}
	return p
}

// Matches reports whether the entry was created for the given opcode.
func (p *AddressProfile) Matches(opcode uint32) bool { return p.opcode == opcode }

// Opcode returns the opcode the entry was created for.
func (p *AddressProfile) Opcode() uint32 { return p.opcode }

// PhysPC returns the physical-address shadow of the entry's key.
func (p *AddressProfile) PhysPC() uint64 { return p.physPC }

// Total returns the access count.
func (p *AddressProfile) Total() uint64 { return p.total }

// Warmup returns the warmup-window count.
func (p *AddressProfile) Warmup() uint64 { return p.warmup }

// RunLength returns the steady-state count.
func (p *AddressProfile) RunLength() uint64 { return p.runLength }

// IsLoadStore reports whether the entry belongs to a load/store
// instruction.
func (p *AddressProfile) IsLoadStore() bool { return p.isLoadStore }

// IsBranch reports whether the entry belongs to a branch instruction.
func (p *AddressProfile) IsBranch() bool { return p.isBranch }

// OpcodeSize returns the instruction size in bytes.
func (p *AddressProfile) OpcodeSize() uint32 {
	if p.compressed {
		return 2
	}
	return 4
}

// IncTotal advances the access count.
func (p *AddressProfile) IncTotal() { p.total++ }

// IncWarmup advances the warmup-window count.
func (p *AddressProfile) IncWarmup() { p.warmup++ }

// IncRunLength advances the steady-state count.
func (p *AddressProfile) IncRunLength() { p.runLength++ }

// RecordStride writes the delta from the previously seen address into the
// stride ring and advances the cursor.
func (p *AddressProfile) RecordStride(addr uint64) {
	p.strides[p.strideIdx] = int64(addr - p.lastAddr)
	p.strideIdx++
	if p.strideIdx == HistoryDepth {
		p.strideIdx = 0
	}
	p.lastAddr = addr
}

// RecordBranch writes the outcome into the branch history window and
// advances the cursor. The entry may not have been classified as a branch
// when it was created, so this also promotes it.
func (p *AddressProfile) RecordBranch(taken bool) {
	p.isBranch = true
	if taken {
		p.branchHist |= 1 << p.branchIdx
	} else {
		p.branchHist &^= 1 << p.branchIdx
	}
	p.branchIdx++
	if p.branchIdx == HistoryDepth {
		p.branchIdx = 0
	}
}

// Strides returns a copy of the full stride window.
func (p *AddressProfile) Strides() []int64 {
	out := make([]int64, HistoryDepth)
	copy(out, p.strides[:])
	return out
}

// BranchOutcome returns the history bit at the given window slot.
func (p *AddressProfile) BranchOutcome(slot int) bool {
	return p.branchHist&(1<<uint(slot)) != 0
}
