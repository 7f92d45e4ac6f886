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
	"fmt"

	log "github.com/sirupsen/logrus"
)

// resolver dispatches a classified event to the profile table owning its
// (address, opcode) pair. The policy is fixed once at collector
// construction.
type resolver interface {
	record(ev *InstEvent, inWarmup, inRun bool)
	tables() []*ProfileTable
}

// updateProfile applies one matching visit to an existing entry.
func updateProfile(p *AddressProfile, ev *InstEvent, inWarmup, inRun bool) {
	p.IncTotal()
	if inWarmup {
		p.IncWarmup()
	} else if inRun {
		p.IncRunLength()
	}
	if ev.isLoadStore() {
		p.RecordStride(ev.memAddr())
	} else if ev.isBranch() {
		p.RecordBranch(ev.Taken)
	}
}

// simpleResolver keeps a single table. An address revisited under a
// different opcode is a warning and the visit is dropped; the statistics
// already collected for the address are left untouched.
type simpleResolver struct {
	table *ProfileTable
}

func newSimpleResolver() *simpleResolver {
	return &simpleResolver{table: NewProfileTable()}
}

func (r *simpleResolver) record(ev *InstEvent, inWarmup, inRun bool) {
	p := r.table.Lookup(ev.PC)
	if p == nil {
		r.table.Insert(ev.PC, newAddressProfile(ev, inWarmup, inRun))
		return
	}
	if p.Matches(ev.Opcode) {
		updateProfile(p, ev, inWarmup, inRun)
		return
	}
	log.WithFields(log.Fields{
		"pc":   fmt.Sprintf("0x%x", ev.PC),
		"have": fmt.Sprintf("0x%x", p.Opcode()),
		"got":  fmt.Sprintf("0x%x", ev.Opcode),
	}).Warn("two opcodes at the same address, dropping update")
}

func (r *simpleResolver) tables() []*ProfileTable {
	return []*ProfileTable{r.table}
}

// overlayResolver keeps an ordered list of tables, newest first, plus the
// index of the active table. Every opcode variant seen at an address gets
// its own uncorrupted series; the common no-reuse case stays O(1) because
// the active table almost always already matches.
type overlayResolver struct {
	list   []*ProfileTable
	active int
}

func newOverlayResolver() *overlayResolver {
	return &overlayResolver{list: []*ProfileTable{NewProfileTable()}}
}

func (r *overlayResolver) record(ev *InstEvent, inWarmup, inRun bool) {
	// Fast path: the active table already owns the pair.
	if p := r.list[r.active].Lookup(ev.PC); p != nil && p.Matches(ev.Opcode) {
		updateProfile(p, ev, inWarmup, inRun)
		return
	}

	// Search every table for a matching entry, remembering the last table
	// with no entry at this address in case a fresh insert is needed.
	free := -1
	for i, t := range r.list {
		p := t.Lookup(ev.PC)
		if p == nil {
			free = i
			continue
		}
		if p.Matches(ev.Opcode) {
			updateProfile(p, ev, inWarmup, inRun)
			r.active = i
			return
		}
	}

	switch {
	case free < 0:
		// Every table holds some other opcode at this address.
		r.list = append([]*ProfileTable{NewProfileTable()}, r.list...)
		r.active = 0
	case r.list[r.active].Lookup(ev.PC) != nil:
		r.active = free
	}
	r.list[r.active].Insert(ev.PC, newAddressProfile(ev, inWarmup, inRun))
}

func (r *overlayResolver) tables() []*ProfileTable {
	return r.list
}
