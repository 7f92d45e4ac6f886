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

func overlayConfig() *Config {
	cfg := DefaultConfig()
	cfg.OverlayCode = true
	return cfg
}

func TestSimpleModeCollision(t *testing.T) {
	c := runCollector(t, DefaultConfig(), []*InstEvent{
		plainEvent(0x200, 0x1),
		plainEvent(0x200, 0x2),
	})

	tables := c.Tables()
	require.Len(t, tables, 1)
	p := tables[0].Lookup(0x200)
	require.NotNil(t, p)
	// The colliding visit is dropped; the original statistics stand.
	require.Equal(t, uint64(1), p.Total())
	require.Equal(t, uint32(0x1), p.Opcode())
}

func TestOverlayModeSeparateEntries(t *testing.T) {
	c := runCollector(t, overlayConfig(), []*InstEvent{
		plainEvent(0x200, 0x1),
		plainEvent(0x200, 0x2),
	})

	tables := c.Tables()
	require.Len(t, tables, 2)

	var opcodes []uint32
	for _, tbl := range tables {
		p := tbl.Lookup(0x200)
		require.NotNil(t, p)
		require.Equal(t, uint64(1), p.Total())
		opcodes = append(opcodes, p.Opcode())
	}
	require.ElementsMatch(t, []uint32{0x1, 0x2}, opcodes)
}

func TestOverlayIndependentCounters(t *testing.T) {
	c := runCollector(t, overlayConfig(), []*InstEvent{
		plainEvent(0x200, 0x1),
		plainEvent(0x200, 0x1),
		plainEvent(0x200, 0x2),
		plainEvent(0x200, 0x2),
		plainEvent(0x200, 0x2),
		plainEvent(0x200, 0x1),
	})

	byOpcode := map[uint32]uint64{}
	for _, tbl := range c.Tables() {
		p := tbl.Lookup(0x200)
		require.NotNil(t, p)
		byOpcode[p.Opcode()] = p.Total()
	}
	require.Equal(t, uint64(3), byOpcode[0x1])
	require.Equal(t, uint64(3), byOpcode[0x2])
	require.Equal(t, c.VisitCount(), sumTotals(c.Tables()))
}

func TestOverlayThirdOpcodeNewTable(t *testing.T) {
	c := runCollector(t, overlayConfig(), []*InstEvent{
		plainEvent(0x200, 0x1),
		plainEvent(0x200, 0x2),
		plainEvent(0x200, 0x3),
	})

	require.Len(t, c.Tables(), 3)
	require.Equal(t, uint64(3), sumTotals(c.Tables()))
}

func TestOverlayReusesTableWithFreeSlot(t *testing.T) {
	c := runCollector(t, overlayConfig(), []*InstEvent{
		plainEvent(0x200, 0x1),
		plainEvent(0x200, 0x2), // second table
		plainEvent(0x300, 0x7), // fits an existing table
		plainEvent(0x300, 0x8), // other table has a free slot at 0x300
	})

	tables := c.Tables()
	require.Len(t, tables, 2)

	var at300 int
	for _, tbl := range tables {
		if tbl.Lookup(0x300) != nil {
			at300++
		}
	}
	require.Equal(t, 2, at300)
	require.Equal(t, uint64(4), sumTotals(tables))
}

func TestOverlayFastPathKeepsActiveTable(t *testing.T) {
	c := runCollector(t, overlayConfig(), []*InstEvent{
		plainEvent(0x200, 0x1),
		plainEvent(0x204, 0x2),
		plainEvent(0x200, 0x1),
		plainEvent(0x204, 0x2),
	})

	tables := c.Tables()
	require.Len(t, tables, 1)
	require.Equal(t, uint64(2), tables[0].Lookup(0x200).Total())
	require.Equal(t, uint64(2), tables[0].Lookup(0x204).Total())
}

func TestOverlayStrideAndBranchUpdates(t *testing.T) {
	c := runCollector(t, overlayConfig(), []*InstEvent{
		loadEvent(0x100, 0x55, 0x1000),
		loadEvent(0x100, 0x55, 0x1008),
		branchEvent(0x104, 0x63, true),
		branchEvent(0x104, 0x63, false),
	})

	tbl := c.Tables()[0]
	require.Equal(t, int64(8), tbl.Lookup(0x100).Strides()[0])
	br := tbl.Lookup(0x104)
	require.True(t, br.IsBranch())
	require.True(t, br.BranchOutcome(0))
	require.False(t, br.BranchOutcome(1))
}
