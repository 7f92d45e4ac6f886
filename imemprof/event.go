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

// MemAccess is a single memory sub-access performed by an instruction.
type MemAccess struct {
	// Addr is the accessed memory address.
	Addr uint64 `json:"addr"`
	// Size is the access size in bytes.
	Size uint32 `json:"size"`
}

// InstEvent is one decoded instruction execution delivered by the trace
// reader. The profiler never interprets the opcode beyond equality checks;
// classification comes from the decoded metadata carried here.
type InstEvent struct {
	// Index is the position of the event in the trace stream.
	Index uint64 `json:"index,omitempty"`
	// PC is the program counter.
	PC uint64 `json:"pc"`
	// PhysPC is the physical program counter, 0 if the trace has none.
	PhysPC uint64 `json:"physpc,omitempty"`
	// Opcode is the raw opcode value.
	Opcode uint32 `json:"opcode"`
	// Compressed marks a 16-bit encoding; everything else is 32-bit.
	Compressed bool `json:"compressed,omitempty"`
	// Invalid marks an opcode the decoder could not decode.
	Invalid bool `json:"invalid,omitempty"`
	// Fault marks a faulting or interrupted execution.
	Fault bool `json:"fault,omitempty"`
	// HwTID is the hardware thread id.
	HwTID uint32 `json:"hwtid,omitempty"`
	// PID is the process id.
	PID uint32 `json:"pid,omitempty"`
	// TID is the thread id.
	TID uint32 `json:"tid,omitempty"`
	// Reads are the memory reads performed, in execution order.
	Reads []MemAccess `json:"reads,omitempty"`
	// Writes are the memory writes performed, in execution order.
	Writes []MemAccess `json:"writes,omitempty"`
	// Branch marks an instruction the decoder classified as a branch.
	// Traces that only observe control flow cannot classify a branch that
	// was never taken, so this may be false for a real branch.
	Branch bool `json:"branch,omitempty"`
	// Taken is the branch outcome. Taken implies the instruction is a
	// branch even when Branch is false.
	Taken bool `json:"taken,omitempty"`
}

// OpcodeSize returns the instruction size in bytes.
func (e *InstEvent) OpcodeSize() uint32 {
	if e.Compressed {
		return 2
	}
	return 4
}

func (e *InstEvent) isLoad() bool  { return len(e.Reads) > 0 }
func (e *InstEvent) isStore() bool { return len(e.Writes) > 0 }

func (e *InstEvent) isLoadStore() bool { return e.isLoad() || e.isStore() }

func (e *InstEvent) isBranch() bool { return e.Branch || e.Taken }

// memAddr returns the address recorded for a load/store event. Only the
// last sub-access is kept, and loads win over stores when an instruction
// carries both.
func (e *InstEvent) memAddr() uint64 {
	if e.isLoad() {
		return e.Reads[len(e.Reads)-1].Addr
	}
	if e.isStore() {
		return e.Writes[len(e.Writes)-1].Addr
	}
	return 0
}

// EventSource yields decoded instruction events in trace order. Next
// returns io.EOF once the stream is exhausted. Skip-count and
// region-of-interest positioning are source concerns; the collector sees
// only the events it should profile.
type EventSource interface {
	Next() (*InstEvent, error)
}
