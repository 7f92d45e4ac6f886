package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/peterbourgon/ff/v3"
	log "github.com/sirupsen/logrus"

	"traceprof.dev/imemprof/imemprof"
)

const disasmCacheSize = 8192

func main() {
	fs := flag.NewFlagSet("imemprof", flag.ExitOnError)
	var (
		traceFile  = fs.String("trace", "", "JSONL trace to profile (\"-\" for stdin)")
		output     = fs.String("output", "-", "report destination (\"-\" for stdout)")
		hwTID      = fs.Uint("hwtid", 0, "only profile events with this hardware thread id (0 = all)")
		pid        = fs.Uint("pid", 0, "only profile events with this process id (0 = all)")
		tid        = fs.Uint("tid", 0, "only profile events with this thread id (0 = all)")
		skip       = fs.Uint64("skip", 0, "skip this many leading instructions")
		keep       = fs.Uint64("keep", 0, "stop after this many profiled instructions (0 = unlimited)")
		warmup     = fs.Uint64("warmup", 0, "number of warmup instructions")
		runLength  = fs.Uint64("runlength", 0, "steady-state window length (0 = unlimited)")
		overlay    = fs.Bool("overlay", false, "expect overlaid/JIT code, disambiguate address reuse")
		sortOutput = fs.Bool("sort", false, "also emit the hotness-sorted report")
		localHist  = fs.Bool("local-history", false, "append stride/branch-history annotations to sorted lines")
		track      = fs.Bool("track", false, "show warmup/runlength columns and the config header")
		percent    = fs.Bool("percent", false, "show percentage columns")
		physPC     = fs.Bool("physpc", false, "show physical PCs")
		elfPath    = fs.String("elf", "", "ELF binary for symbol annotation")
		pprofOut   = fs.String("pprof", "", "also write a pprof profile to this file")
		roiStart   = fs.Uint64("roi-start-pc", 0, "start profiling at this PC (0 = from the beginning)")
		roiStop    = fs.Uint64("roi-stop-pc", 0, "stop profiling at this PC (0 = to the end)")
		iem        = fs.String("iem", "RV64", "instruction encoding mode label for the MAP banners")
		verbose    = fs.Bool("verbose", false, "enable debug logging")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("IMEMPROF")); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if *traceFile == "" {
		fs.Usage()
		os.Exit(2)
	}

	cfg := imemprof.DefaultConfig()
	cfg.TraceFilename = *traceFile
	cfg.OutputFilename = *output
	cfg.HwTID = uint32(*hwTID)
	cfg.PID = uint32(*pid)
	cfg.TID = uint32(*tid)
	cfg.SkipCount = *skip
	if *keep != 0 {
		cfg.KeepCount = *keep
	}
	cfg.WarmupCount = *warmup
	if *runLength != 0 {
		cfg.RunLengthCount = *runLength
	} else {
		cfg.RunLengthCount = math.MaxUint64
	}
	cfg.OverlayCode = *overlay
	cfg.SortOutput = *sortOutput
	cfg.LocalHistory = *localHist
	cfg.Track = *track
	cfg.ShowPercentage = *percent
	cfg.ShowPhysPC = *physPC
	cfg.IEM = *iem
	cfg.ROIStartPC = *roiStart
	cfg.ROIStopPC = *roiStop
	cfg.ELFPath = *elfPath

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	in, err := openTrace(cfg.TraceFilename)
	if err != nil {
		log.Fatalf("opening trace: %v", err)
	}

	collector := imemprof.NewCollector(cfg)
	if err := collector.Run(imemprof.NewJSONLSource(in, cfg)); err != nil {
		log.Fatalf("profiling trace: %v", err)
	}
	closeQuietly(in)
	log.WithField("instructions", collector.VisitCount()).Debug("trace consumed")

	dis, err := imemprof.NewCachedDisassembler(imemprof.RVDisassembler{}, disasmCacheSize)
	if err != nil {
		log.Fatalf("setting up disassembler: %v", err)
	}

	gen := imemprof.NewReportGenerator(cfg, dis, collector.Tables(), collector.VisitCount())
	if cfg.ELFPath != "" {
		sym, err := imemprof.LoadSymbols(cfg.ELFPath)
		if err != nil {
			log.WithError(err).Warn("symbol annotation disabled")
		} else {
			gen.SetSymbols(sym)
		}
	}

	toStdout := cfg.OutputFilename == "" || cfg.OutputFilename == "-"
	out := io.Writer(os.Stdout)
	if !toStdout {
		f, err := os.Create(cfg.OutputFilename)
		if err != nil {
			log.Fatalf("creating report file: %v", err)
		}
		defer f.Close()
		out = f
	}
	if err := gen.Generate(out, toStdout); err != nil {
		log.Fatalf("writing report: %v", err)
	}

	if cfg.SortOutput {
		if err := writeSorted(gen, cfg, toStdout); err != nil {
			log.Fatalf("writing sorted report: %v", err)
		}
	}

	if *pprofOut != "" {
		if err := writePprof(collector, dis, *pprofOut); err != nil {
			log.Fatalf("writing pprof profile: %v", err)
		}
	}
}

func writeSorted(gen *imemprof.ReportGenerator, cfg *imemprof.Config, toStdout bool) error {
	var err error
	if toStdout {
		fmt.Println("-----------------------------------------")
		err = gen.WriteSorted(os.Stdout)
	} else {
		name := imemprof.SortedFilename(cfg.OutputFilename)
		var f *os.File
		f, err = os.Create(name)
		if err != nil {
			return err
		}
		defer f.Close()
		err = gen.WriteSorted(f)
	}
	if errors.Is(err, imemprof.ErrEmptyReport) {
		// Already logged; the plain report stands on its own.
		return nil
	}
	return err
}

func writePprof(collector *imemprof.Collector, dis imemprof.Disassembler, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return imemprof.ToPprof(collector.Tables(), dis).Write(f)
}

func openTrace(name string) (io.ReadCloser, error) {
	if name == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(name)
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		log.WithError(err).Debug("closing trace")
	}
}
