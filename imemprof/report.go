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
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ErrEmptyReport is returned by WriteSorted when the run produced no
// blocks; the sorted report is skipped but the plain report stands.
var ErrEmptyReport = errors.New("profile produced no sorted blocks")

const (
	tableFieldWidth = 8
	vaWidth         = 16
)

// blockEntry is one report line inside a contiguous block.
type blockEntry struct {
	pc   uint64
	prof *AddressProfile
}

// sortedBlock is a maximal run of address-contiguous entries, keyed by its
// summed access count and starting address.
type sortedBlock struct {
	count   uint64
	startPC uint64
	entries []blockEntry
}

// ReportGenerator renders the finished tables. It holds read access only:
// maxima and column widths are recomputed here from the final data instead
// of being cached during collection.
type ReportGenerator struct {
	cfg       *Config
	dis       Disassembler
	sym       *SymbolTable
	tables    []*ProfileTable
	instCount uint64

	maxCount    uint64
	countWidth  int
	warmupWidth int
	runWidth    int

	blocks     []sortedBlock
	haveBlocks bool
}

// NewReportGenerator scans the finished tables once for formatting maxima.
// The tables must be ordered newest first, as returned by
// Collector.Tables.
func NewReportGenerator(cfg *Config, dis Disassembler, tables []*ProfileTable, instCount uint64) *ReportGenerator {
	g := &ReportGenerator{
		cfg:       cfg,
		dis:       dis,
		tables:    tables,
		instCount: instCount,
	}
	var maxWarmup, maxRun uint64
	for _, t := range tables {
		for _, pc := range t.Addresses() {
			p := t.Lookup(pc)
			g.maxCount = max(g.maxCount, p.Total())
			maxWarmup = max(maxWarmup, p.Warmup())
			maxRun = max(maxRun, p.RunLength())
		}
	}
	g.countWidth = max(tableFieldWidth, decimalDigits(g.maxCount))
	g.warmupWidth = max(tableFieldWidth, decimalDigits(maxWarmup))
	g.runWidth = max(tableFieldWidth, decimalDigits(maxRun))
	return g
}

// SetSymbols attaches an optional symbol table; report lines then carry
// the enclosing symbol name.
func (g *ReportGenerator) SetSymbols(sym *SymbolTable) { g.sym = sym }

// Generate writes the plain listing and, when sorting is enabled,
// accumulates the contiguous blocks for WriteSorted. When the primary
// destination is stdout and sorting is enabled, per-entry lines are
// suppressed and only the banners print.
func (g *ReportGenerator) Generate(w io.Writer, toStdout bool) error {
	bw := bufio.NewWriter(w)
	g.blocks = g.blocks[:0]
	g.haveBlocks = false

	if g.cfg.Track {
		g.writeConfigHeader(bw)
	}

	showEntries := !toStdout || !g.cfg.SortOutput
	first := true
	var prevPC uint64
	var prevSize uint32
	var cur sortedBlock

	for i, t := range g.tables {
		fmt.Fprintf(bw, "\n============ MAP %d IEM:%s ============\n", i+1, g.cfg.IEM)
		for _, pc := range t.Addresses() {
			p := t.Lookup(pc)
			if first || prevPC+uint64(prevSize) != pc {
				if !first {
					if g.cfg.SortOutput {
						g.closeBlock(&cur)
					} else {
						fmt.Fprintln(bw, "...")
					}
				}
				first = false
				cur.startPC = pc
			}
			if g.cfg.SortOutput {
				cur.count += p.Total()
				cur.entries = append(cur.entries, blockEntry{pc: pc, prof: p})
			}
			if showEntries {
				g.writeEntry(bw, pc, p)
			}
			prevPC, prevSize = pc, p.OpcodeSize()
		}
	}
	if g.cfg.SortOutput {
		g.closeBlock(&cur)
		g.sortBlocks()
		g.haveBlocks = true
	}
	return bw.Flush()
}

// WriteSorted renders the hotness-sorted report accumulated by Generate.
// The conservation check at the end is fatal: a mismatch means entries
// were silently dropped.
func (g *ReportGenerator) WriteSorted(w io.Writer) error {
	if !g.haveBlocks {
		return errors.New("sorted report requested before Generate")
	}
	if len(g.blocks) == 0 {
		log.Warn("generated profile was empty, skipping sorted report")
		return ErrEmptyReport
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Total inst count = %s\n", commaFormat(g.instCount))
	fmt.Fprintf(bw, "Max count        = %s\n", commaFormat(g.maxCount))

	countWidth := commaWidth(g.countWidth)
	var cumulative uint64
	for _, b := range g.blocks {
		fmt.Fprint(bw, "-------------------------")
		fmt.Fprint(bw, percentString(b.count, g.instCount, 6, 1))
		fmt.Fprintf(bw, " - %s inst, %d addr\n", commaFormat(b.count), len(b.entries))
		for _, e := range b.entries {
			cumulative += e.prof.Total()
			g.writeSortedEntry(bw, e, cumulative, countWidth)
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	if cumulative != g.instCount {
		log.Fatalf("not all blocks were included in sorted output: cumulative count %d, instruction count %d",
			cumulative, g.instCount)
	}
	return nil
}

func (g *ReportGenerator) closeBlock(b *sortedBlock) {
	if len(b.entries) == 0 {
		return
	}
	g.blocks = append(g.blocks, *b)
	*b = sortedBlock{}
}

// sortBlocks orders by descending count; equal counts order by descending
// starting address.
func (g *ReportGenerator) sortBlocks() {
	sort.Slice(g.blocks, func(i, j int) bool {
		if g.blocks[i].count != g.blocks[j].count {
			return g.blocks[i].count > g.blocks[j].count
		}
		return g.blocks[i].startPC > g.blocks[j].startPC
	})
}

func (g *ReportGenerator) writeConfigHeader(bw *bufio.Writer) {
	fmt.Fprintln(bw, "============ CONFIG  ============")
	fmt.Fprintf(bw, "original trace: %s\n", g.cfg.TraceFilename)
	fmt.Fprintf(bw, "warmup: %d\n", g.cfg.WarmupCount)
	fmt.Fprintf(bw, "skip non-user: %t\n", g.cfg.SkipNonUser)

	if g.cfg.ShowPercentage {
		fmt.Fprint(bw, headerField("total%", tableFieldWidth, false))
		fmt.Fprint(bw, headerField("warm%", tableFieldWidth, false))
		fmt.Fprint(bw, headerField("run%", tableFieldWidth, false))
	}
	fmt.Fprint(bw, headerField("total", g.countWidth, false))
	fmt.Fprint(bw, headerField("warm", g.warmupWidth, false))
	fmt.Fprint(bw, headerField("runl", g.runWidth, false))
	pcWidth := vaWidth
	if g.cfg.ShowPhysPC {
		pcWidth = 2*vaWidth + 1
	}
	fmt.Fprint(bw, headerField("instpc", pcWidth, false))
	fmt.Fprint(bw, headerField("opcode", tableFieldWidth, false))
	fmt.Fprint(bw, headerField("disasm", tableFieldWidth, true))
	fmt.Fprintln(bw)
}

func (g *ReportGenerator) writeEntry(bw *bufio.Writer, pc uint64, p *AddressProfile) {
	if g.cfg.ShowPercentage {
		fmt.Fprint(bw, percentString(p.Total(), g.instCount, 7, 4), " ")
		if g.cfg.Track {
			fmt.Fprint(bw, percentString(p.Warmup(), g.cfg.WarmupCount, 7, 4), " ")
			fmt.Fprint(bw, percentString(p.RunLength(), g.cfg.RunLengthCount, 7, 4), " ")
		}
	}
	fmt.Fprintf(bw, "%*d", g.countWidth, p.Total())
	if g.cfg.Track {
		fmt.Fprintf(bw, "  %*d  %*d", g.warmupWidth, p.Warmup(), g.runWidth, p.RunLength())
	}
	g.writePC(bw, pc, p)
	fmt.Fprintf(bw, "  %s %s", opcodeString(p), g.dis.Disassemble(pc, p.Opcode()))
	g.writeSymbol(bw, pc)
	fmt.Fprintln(bw)
}

func (g *ReportGenerator) writeSortedEntry(bw *bufio.Writer, e blockEntry, cumulative uint64, countWidth int) {
	fmt.Fprintf(bw, "%*s  ", countWidth, commaFormat(e.prof.Total()))
	fmt.Fprint(bw, percentString(e.prof.Total(), g.instCount, 5, 1), "  ")
	fmt.Fprint(bw, percentString(cumulative, g.instCount, 5, 1), "  ")
	g.writePC(bw, e.pc, e.prof)
	fmt.Fprintf(bw, "  %s  %s", opcodeString(e.prof), g.dis.Disassemble(e.pc, e.prof.Opcode()))
	g.writeSymbol(bw, e.pc)

	if g.cfg.LocalHistory {
		if e.prof.IsLoadStore() {
			fmt.Fprint(bw, "    LStrides={")
			for _, s := range e.prof.Strides() {
				fmt.Fprintf(bw, "%d,", s)
			}
			fmt.Fprint(bw, "}")
		} else if e.prof.IsBranch() {
			fmt.Fprint(bw, "    LHR={")
			for i := 0; i < HistoryDepth; i++ {
				if e.prof.BranchOutcome(i) {
					fmt.Fprint(bw, "1")
				} else {
					fmt.Fprint(bw, "0")
				}
			}
			fmt.Fprint(bw, "}")
		}
	}
	fmt.Fprintln(bw)
}

func (g *ReportGenerator) writePC(bw *bufio.Writer, pc uint64, p *AddressProfile) {
	fmt.Fprintf(bw, "  %0*x", vaWidth, pc)
	if g.cfg.ShowPhysPC {
		fmt.Fprintf(bw, ":%0*x", vaWidth, p.PhysPC())
	}
}

func (g *ReportGenerator) writeSymbol(bw *bufio.Writer, pc uint64) {
	if g.sym == nil {
		return
	}
	if name, ok := g.sym.Lookup(pc); ok {
		fmt.Fprintf(bw, "  <%s>", name)
	}
}

// SortedFilename derives the sorted-report path from the primary report
// path: a trailing ".imem" becomes ".s_imem", otherwise ".s_imem" is
// appended.
func SortedFilename(name string) string {
	const ext = ".imem"
	if strings.HasSuffix(name, ext) {
		return strings.TrimSuffix(name, ext) + ".s_imem"
	}
	return name + ".s_imem"
}

func opcodeString(p *AddressProfile) string {
	if p.OpcodeSize() == 2 {
		return fmt.Sprintf("    %04x", p.Opcode()&0xffff)
	}
	return fmt.Sprintf("%08x", p.Opcode())
}

// percentString formats num/den as a percentage. A zero denominator (an
// unset window threshold) renders as 0.
func percentString(num, den uint64, width, prec int) string {
	var pct float64
	if den != 0 {
		pct = float64(num) / float64(den) * 100
	}
	return fmt.Sprintf("%*.*f%%", width, prec, pct)
}

// headerField centers name in a '-'-filled field, with "||" separating
// adjacent fields.
func headerField(name string, width int, end bool) string {
	var pad, odd int
	if n := len(name); n < width {
		d := width - n
		odd = d & 1
		pad = d >> 1
	}
	s := strings.Repeat("-", pad+odd) + name
	if end {
		return s + strings.Repeat("-", pad)
	}
	return s + strings.Repeat("-", pad) + "||"
}

// commaFormat renders n with thousands separators.
func commaFormat(n uint64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// commaWidth widens a digit-column width to account for separators.
func commaWidth(w int) int {
	if w <= 0 {
		return w
	}
	return w + (w-1)/3
}

func decimalDigits(n uint64) int {
	d := 1
	for n >= 10 {
		n /= 10
		d++
	}
	return d
}
