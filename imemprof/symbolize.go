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
	"debug/elf"
	"errors"
	"fmt"
	"sort"
)

// SymbolTable resolves the enclosing function symbol for an instruction
// address, so report lines can carry a name next to the disassembly.
type SymbolTable struct {
	ranges []symbolRange
}

type symbolRange struct {
	start uint64
	end   uint64
	name  string
}

// LoadSymbols reads the function symbols of the ELF binary the trace was
// captured from. The default reader uses debug/elf; callers with an
// optimized ELF stack can build a SymbolTable themselves.
func LoadSymbols(path string) (*SymbolTable, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening ELF %s: %w", path, err)
	}
	defer f.Close()

	syms, err := f.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, fmt.Errorf("reading symbols from %s: %w", path, err)
	}
	dyn, err := f.DynamicSymbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, fmt.Errorf("reading dynamic symbols from %s: %w", path, err)
	}

	t := &SymbolTable{}
	for _, s := range append(syms, dyn...) {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Size == 0 || s.Name == "" {
			continue
		}
		t.ranges = append(t.ranges, symbolRange{
			start: s.Value,
			end:   s.Value + s.Size,
			name:  s.Name,
		})
	}
	sort.Slice(t.ranges, func(i, j int) bool { return t.ranges[i].start < t.ranges[j].start })
	return t, nil
}

// Lookup returns the symbol covering addr.
func (t *SymbolTable) Lookup(addr uint64) (string, bool) {
	i := sort.Search(len(t.ranges), func(i int) bool { return t.ranges[i].start > addr })
	if i == 0 {
		return "", false
	}
	r := t.ranges[i-1]
	if addr >= r.end {
		return "", false
	}
	return r.name, true
}

// Len returns the number of resolvable symbols.
func (t *SymbolTable) Len() int { return len(t.ranges) }
