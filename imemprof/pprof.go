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

	"github.com/google/pprof/profile"
)

// ToPprof converts the finished tables into a pprof profile with one
// sample per profiled (address, opcode) pair, so standard pprof tooling
// can view the execution counts. The optional disassembler provides the
// function names; without one the address is used.
func ToPprof(tables []*ProfileTable, dis Disassembler) *profile.Profile {
	prof := &profile.Profile{
		DefaultSampleType: "executions",
		SampleType: []*profile.ValueType{
			{Type: "executions", Unit: "count"},
			{Type: "warmup", Unit: "count"},
			{Type: "steady", Unit: "count"},
		},
		PeriodType: &profile.ValueType{Type: "instructions", Unit: "count"},
		Period:     1,
	}

	type siteKey struct {
		pc     uint64
		opcode uint32
	}
	locationMap := make(map[siteKey]*profile.Location)
	nextLocationID := uint64(1)
	nextFunctionID := uint64(1)

	for _, t := range tables {
		for _, pc := range t.Addresses() {
			p := t.Lookup(pc)
			key := siteKey{pc: pc, opcode: p.Opcode()}
			loc, exists := locationMap[key]
			if !exists {
				name := fmt.Sprintf("inst_%x", pc)
				if dis != nil {
					name = dis.Disassemble(pc, p.Opcode())
				}
				fn := &profile.Function{
					ID:         nextFunctionID,
					Name:       name,
					SystemName: name,
				}
				nextFunctionID++
				prof.Function = append(prof.Function, fn)

				loc = &profile.Location{
					ID:      nextLocationID,
					Address: pc,
					Line:    []profile.Line{{Function: fn, Line: 1}},
				}
				nextLocationID++
				locationMap[key] = loc
				prof.Location = append(prof.Location, loc)
			}

			prof.Sample = append(prof.Sample, &profile.Sample{
				Location: []*profile.Location{loc},
				Value:    []int64{int64(p.Total()), int64(p.Warmup()), int64(p.RunLength())},
			})
		}
	}
	return prof
}
