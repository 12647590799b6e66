// The yk CLI compiles, runs, and disassembles YuvaKriti programs.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/yklang/yuvakriti/compiler"
	"github.com/yklang/yuvakriti/manifest"
	"github.com/yklang/yuvakriti/pkg/bytecode"
	"github.com/yklang/yuvakriti/vm"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: yk <command> [options] <file>\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  compile <input.yk>      Compile a source file to bytecode\n")
	fmt.Fprintf(os.Stderr, "  run <input.ykb>         Execute a compiled bytecode file\n")
	fmt.Fprintf(os.Stderr, "  disassemble <input.ykb> Print a bytecode listing\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  yk compile hello.yk -o hello.ykb\n")
	fmt.Fprintf(os.Stderr, "  yk compile prog.yk -d const-folding\n")
	fmt.Fprintf(os.Stderr, "  yk run hello.ykb\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "compile":
		err = doCompile(os.Args[2:])
	case "run":
		err = doRun(os.Args[2:])
	case "disassemble":
		err = doDisassemble(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// errReported marks failures whose details already went to stderr.
var errReported = errors.New("reported")

// configureLogging wires the -v/-q flags into commonlog.
func configureLogging(verbosity int, quiet bool) {
	if quiet {
		verbosity = -1
	}
	commonlog.Configure(verbosity, nil)
}

func doCompile(args []string) error {
	flags := flag.NewFlagSet("compile", flag.ExitOnError)
	output := flags.String("o", "", "Output path for the .ykb file")
	enable := flags.String("e", "", "Comma-separated features to enable")
	disable := flags.String("d", "", "Comma-separated features to disable")
	debugInfo := flags.Bool("g", false, "Write a .ykd debug info sidecar")
	verbosity := flags.Int("v", 0, "Set output verbosity")
	quiet := flags.Bool("q", false, "Silence all output")
	flags.Parse(args)
	configureLogging(*verbosity, *quiet)

	if flags.NArg() != 1 {
		return fmt.Errorf("compile expects exactly one input file")
	}
	inputPath := flags.Arg(0)
	if ext := strings.TrimPrefix(filepath.Ext(inputPath), "."); ext != compiler.ExtYK {
		return fmt.Errorf("invalid file type: %s", inputPath)
	}

	source, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}

	// Manifest settings are defaults; explicit flags win.
	m, err := manifest.FindAndLoad(filepath.Dir(inputPath))
	if err != nil {
		return err
	}

	c := compiler.NewCompiler()
	if m != nil {
		for _, name := range m.Features.Enable {
			c.Features.Set(name, true)
		}
		for _, name := range m.Features.Disable {
			c.Features.Set(name, false)
		}
	}
	applyFeatureList(&c.Features, *enable, true)
	applyFeatureList(&c.Features, *disable, false)

	program, hasErrors := c.Compile(string(source))
	for _, d := range c.Diagnostics.Diagnostics {
		fmt.Fprintln(os.Stderr, d.Format(inputPath))
	}
	if hasErrors {
		return errReported
	}

	emitter := bytecode.NewEmitter()
	if *debugInfo || (m != nil && m.Build.DebugInfo) {
		emitter.CollectDebug = true
	}
	file, err := emitter.Emit(program, filepath.Base(inputPath))
	if err != nil {
		return err
	}

	outputPath := *output
	if outputPath == "" {
		outputPath = m.OutputPath(inputPath, bytecode.ExtYKB)
		if dir := filepath.Dir(outputPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
	}
	if err := file.WriteFile(outputPath); err != nil {
		return err
	}

	if emitter.Debug != nil {
		sidecarPath := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + "." + bytecode.ExtYKD
		if err := emitter.Debug.WriteFile(sidecarPath); err != nil {
			return err
		}
	}
	return nil
}

// applyFeatureList applies a comma-separated feature list.
func applyFeatureList(features *compiler.Features, list string, enabled bool) {
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !features.Set(name, enabled) {
			fmt.Fprintf(os.Stderr, "Warning: unknown compiler feature: %s\n", name)
		}
	}
}

func doRun(args []string) error {
	flags := flag.NewFlagSet("run", flag.ExitOnError)
	verbosity := flags.Int("v", 0, "Set output verbosity")
	quiet := flags.Bool("q", false, "Silence all output")
	flags.Parse(args)
	configureLogging(*verbosity, *quiet)

	if flags.NArg() != 1 {
		return fmt.Errorf("run expects exactly one input file")
	}

	file, err := bytecode.ReadFile(flags.Arg(0))
	if err != nil {
		return err
	}
	machine, err := vm.New(file)
	if err != nil {
		return err
	}
	if err := machine.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return errReported
	}
	return nil
}

func doDisassemble(args []string) error {
	flags := flag.NewFlagSet("disassemble", flag.ExitOnError)
	verbosity := flags.Int("v", 0, "Set output verbosity")
	quiet := flags.Bool("q", false, "Silence all output")
	flags.Parse(args)
	configureLogging(*verbosity, *quiet)

	if flags.NArg() != 1 {
		return fmt.Errorf("disassemble expects exactly one input file")
	}
	inputPath := flags.Arg(0)

	file, err := bytecode.ReadFile(inputPath)
	if err != nil {
		return err
	}

	// Annotate with source lines when a .ykd sidecar sits next to the file.
	var debug *bytecode.DebugInfo
	sidecarPath := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "." + bytecode.ExtYKD
	if _, statErr := os.Stat(sidecarPath); statErr == nil {
		debug, err = bytecode.ReadDebugFile(sidecarPath)
		if err != nil {
			return err
		}
	}

	fmt.Print(file.DisassembleWithDebug(debug))
	return nil
}
