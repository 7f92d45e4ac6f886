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
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/elastic/go-freelru"
	"golang.org/x/arch/riscv64/riscv64asm"
)

// Disassembler renders the text for an (address, opcode) pair. It must be
// a pure function of its arguments.
type Disassembler interface {
	Disassemble(pc uint64, opcode uint32) string
}

// RVDisassembler decodes RV64 opcodes into GNU syntax. Compressed and
// undecodable encodings degrade to a raw data directive.
type RVDisassembler struct{}

// Disassemble implements Disassembler.
func (RVDisassembler) Disassemble(_ uint64, opcode uint32) string {
	if opcode&0x3 != 0x3 {
		// 16-bit encoding; the decoder only handles full-width opcodes.
		return fmt.Sprintf(".2byte 0x%04x", opcode&0xffff)
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], opcode)
	inst, err := riscv64asm.Decode(buf[:])
	if err != nil {
		return fmt.Sprintf(".4byte 0x%08x", opcode)
	}
	return riscv64asm.GNUSyntax(inst)
}

// CachedDisassembler memoizes rendered text by opcode. Decoded text does
// not depend on the PC, so one entry serves every site sharing an opcode,
// and hot loops hit the same few opcodes constantly.
type CachedDisassembler struct {
	inner Disassembler
	lru   *freelru.LRU[uint32, string]
}

// NewCachedDisassembler wraps inner with an opcode-keyed LRU of the given
// capacity.
func NewCachedDisassembler(inner Disassembler, capacity uint32) (*CachedDisassembler, error) {
	lru, err := freelru.New[uint32, string](capacity, hashOpcode)
	if err != nil {
		return nil, fmt.Errorf("creating disassembly cache: %w", err)
	}
	return &CachedDisassembler{inner: inner, lru: lru}, nil
}

// Disassemble implements Disassembler.
func (c *CachedDisassembler) Disassemble(pc uint64, opcode uint32) string {
	if text, ok := c.lru.Get(opcode); ok {
		return text
	}
	text := c.inner.Disassemble(pc, opcode)
	c.lru.Add(opcode, text)
	return text
}

func hashOpcode(opcode uint32) uint32 {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], opcode)
	return uint32(xxhash.Sum64(b[:]))
}
