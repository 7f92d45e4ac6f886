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

func TestSymbolLookup(t *testing.T) {
	tbl := &SymbolTable{ranges: []symbolRange{
		{start: 0x100, end: 0x140, name: "alpha"},
		{start: 0x200, end: 0x210, name: "beta"},
	}}
	require.Equal(t, 2, tbl.Len())

	for _, tc := range []struct {
		addr uint64
		want string
		ok   bool
	}{
		{0x0ff, "", false},
		{0x100, "alpha", true},
		{0x13c, "alpha", true},
		{0x140, "", false}, // end is exclusive
		{0x1f0, "", false}, // gap between symbols
		{0x200, "beta", true},
		{0x20f, "beta", true},
		{0x210, "", false},
	} {
		name, ok := tbl.Lookup(tc.addr)
		require.Equal(t, tc.ok, ok, "addr 0x%x", tc.addr)
		require.Equal(t, tc.want, name, "addr 0x%x", tc.addr)
	}
}

func TestSymbolLookupEmpty(t *testing.T) {
	tbl := &SymbolTable{}
	require.Equal(t, 0, tbl.Len())
	_, ok := tbl.Lookup(0x100)
	require.False(t, ok)
}

func TestLoadSymbolsMissingFile(t *testing.T) {
	_, err := LoadSymbols("/nonexistent/binary")
	require.Error(t, err)
}
