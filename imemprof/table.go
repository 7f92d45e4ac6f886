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

import "sort"

// ProfileTable maps instruction addresses to their profiles. A table holds
// at most one opcode signature per address; report generation iterates it
// in ascending address order.
type ProfileTable struct {
	entries map[uint64]*AddressProfile
}

// NewProfileTable returns an empty table.
func NewProfileTable() *ProfileTable {
	return &ProfileTable{entries: make(map[uint64]*AddressProfile)}
}

// Lookup returns the entry at pc, or nil.
func (t *ProfileTable) Lookup(pc uint64) *AddressProfile {
	return t.entries[pc]
}

// Insert stores the entry for pc.
func (t *ProfileTable) Insert(pc uint64, p *AddressProfile) {
	t.entries[pc] = p
}

// Len returns the number of entries.
func (t *ProfileTable) Len() int { return len(t.entries) }

// Addresses returns every profiled address in ascending order. The order
// is load-bearing: contiguity detection in the reports depends on it.
func (t *ProfileTable) Addresses() []uint64 {
	pcs := make([]uint64, 0, len(t.entries))
	for pc := range t.entries {
		pcs = append(pcs, pc)
	}
	sort.Slice(pcs, func(i, j int) bool { return pcs[i] < pcs[j] })
	return pcs
}
