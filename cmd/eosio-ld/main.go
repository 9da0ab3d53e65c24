// Command eosio-ld wires the ld.Link output-synthesis pipeline to a flag
// driven CLI. Grounded on cmd/run/main.go's flag.FlagSet-based driver;
// real input-object parsing is out of scope (spec.md §1), so inputs are
// JSON object manifests (see manifest.go) rather than linked .o files.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/eosio-wasm/wasm-ld/ld"
)

func main() {
	var (
		output            = flag.String("o", "a.out.wasm", "output wasm file path")
		relocatable       = flag.Bool("relocatable", false, "emit a relocatable object instead of an executable")
		isPic             = flag.Bool("pic", false, "emit position-independent output")
		shared            = flag.Bool("shared", false, "emit a shared library")
		sharedMemory      = flag.Bool("shared-memory", false, "use shared (atomics-capable) linear memory")
		stackFirst        = flag.Bool("stack-first", false, "place the stack before global data")
		stripDebug        = flag.Bool("strip-debug", false, "strip .debug_* custom sections")
		stripAll          = flag.Bool("strip-all", false, "strip .debug_* custom sections (same effect as -strip-debug)")
		passiveSegments   = flag.Bool("passive-segments", false, "force every data segment passive")
		mergeDataSegments = flag.Bool("merge-data-segments", true, "merge .text.*/.data.*/.bss.*/.rodata.* by prefix")
		emitRelocs        = flag.Bool("emit-relocs", false, "emit reloc.* custom sections alongside a non-relocatable output")
		importMemory      = flag.Bool("import-memory", false, "import linear memory instead of defining it")
		exportTable       = flag.Bool("export-table", false, "export the indirect function table")
		exportAll         = flag.Bool("export-all", false, "export every defined symbol, not just non-hidden ones")
		checkFeatures     = flag.Bool("check-features", true, "validate declared target features across objects")
		features          = flag.String("features", "", "comma-separated explicit target-feature set (overrides inference)")
		zStackSize        = flag.Uint64("z-stack-size", 8192, "stack size in bytes")
		globalBase        = flag.Uint64("global-base", 1024, "linear-memory address where static data begins")
		initialMemory     = flag.Uint64("initial-memory", 0, "initial linear memory size in bytes (0 = computed minimum)")
		maxMemory         = flag.Uint64("max-memory", 0, "maximum linear memory size in bytes (0 = unbounded unless shared-memory)")
		stackCanary       = flag.Bool("stack-canary", false, "emit the stack-canary prologue/epilogue in dispatcher bodies")
		otherModel        = flag.Bool("other-model", false, "skip action/notification dispatcher synthesis entirely")
		verify            = flag.Bool("verify", false, "validate the output module in a wazero runtime before committing")
		progress          = flag.Bool("progress", false, "render a bubbletea checklist of pipeline phases (ignored on non-terminals)")
		verbose           = flag.Bool("v", false, "enable debug-level logging")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: eosio-ld [flags] object.json [object2.json ...]")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	tab, err := LoadObjects(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "eosio-ld: %v\n", err)
		os.Exit(1)
	}

	cfg := ld.Config{
		OutputFile:        *output,
		Relocatable:       *relocatable,
		IsPic:             *isPic,
		Shared:            *shared,
		SharedMemory:      *sharedMemory,
		StackFirst:        *stackFirst,
		StripDebug:        *stripDebug,
		StripAll:          *stripAll,
		PassiveSegments:   *passiveSegments,
		MergeDataSegments: *mergeDataSegments,
		EmitRelocs:        *emitRelocs,
		ImportMemory:      *importMemory,
		ExportTable:       *exportTable,
		ExportAll:         *exportAll,
		CheckFeatures:     *checkFeatures,
		ZStackSize:        *zStackSize,
		GlobalBase:        *globalBase,
		InitialMemory:     *initialMemory,
		MaxMemory:         *maxMemory,
		StackCanary:       *stackCanary,
		OtherModel:        *otherModel,
		Verify:            *verify,
	}
	if *features != "" {
		cfg.Features = strings.Split(*features, ",")
	}
	if *verbose {
		l, err := zap.NewDevelopment()
		if err == nil {
			cfg.Logger = l
			defer l.Sync()
		}
	}

	useTUI := *progress && term.IsTerminal(int(os.Stdout.Fd()))

	var result *ld.Result
	if useTUI {
		result, err = runWithProgress(tab, cfg)
	} else {
		cfg.Progress = func(phase string) {
			if *verbose {
				fmt.Fprintf(os.Stderr, "eosio-ld: %s\n", phase)
			}
		}
		result, err = ld.Link(tab, cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "eosio-ld: link failed: %v\n", err)
		os.Exit(1)
	}
	if result.Diagnostics.HasErrors() {
		for _, e := range result.Diagnostics.Errors() {
			fmt.Fprintf(os.Stderr, "eosio-ld: error: %v\n", e)
		}
		os.Exit(1)
	}

	if err := os.WriteFile(cfg.OutputFile, result.Module, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "eosio-ld: write output: %v\n", err)
		os.Exit(1)
	}

	if result.ABI != "" {
		if err := os.WriteFile(abiPath(cfg.OutputFile), []byte(result.ABI), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "eosio-ld: write abi: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("eosio-ld: wrote %s (%s bytes)\n", cfg.OutputFile, strconv.Itoa(len(result.Module)))
}

// abiPath replaces outputFile's extension with .abi, per §6's output
// artifact naming rule.
func abiPath(outputFile string) string {
	if i := strings.LastIndexByte(outputFile, '.'); i >= 0 && strings.LastIndexByte(outputFile, '/') < i {
		return outputFile[:i] + ".abi"
	}
	return outputFile + ".abi"
}
