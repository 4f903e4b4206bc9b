// Pyrite CLI - the main entry point for running Pyrite programs
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/pyrite-lang/pyrite/cache"
	"github.com/pyrite-lang/pyrite/compiler"
	"github.com/pyrite-lang/pyrite/manifest"
	"github.com/pyrite-lang/pyrite/server"
	"github.com/pyrite-lang/pyrite/vm"

	_ "github.com/tliron/commonlog/simple"
)

const version = "0.1.0"

// sysexits-style status codes: 65 for bad input (compile errors), 70 for
// internal software errors (runtime errors).
const (
	exitUsage   = 64
	exitData    = 65
	exitruntime = 70
)

func main() {
	interactive := flag.Bool("i", false, "Start interactive REPL")
	disassemble := flag.Bool("d", false, "Disassemble instead of running")
	trace := flag.Bool("trace", false, "Log each executed instruction")
	serveMode := flag.Bool("serve", false, "Start the language server on stdio")
	noCache := flag.Bool("no-cache", false, "Skip the compiled-chunk cache even if the project enables it")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pyrite [options] [script.pyr]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a Pyrite script, the project entry from pyrite.toml, or a REPL.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pyrite script.pyr      # Run a script\n")
		fmt.Fprintf(os.Stderr, "  pyrite -i              # Start REPL\n")
		fmt.Fprintf(os.Stderr, "  pyrite -d script.pyr   # Show its bytecode\n")
		fmt.Fprintf(os.Stderr, "  pyrite                 # Run the pyrite.toml entry script\n")
		fmt.Fprintf(os.Stderr, "  pyrite -serve          # Language server for editors\n")
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("pyrite %s\n", version)
		return
	}

	commonlog.Configure(1, nil)
	log := commonlog.GetLogger("pyrite")

	if *serveMode {
		if err := server.NewLSP(version).Run(); err != nil {
			log.Errorf("language server: %v", err)
			os.Exit(exitruntime)
		}
		return
	}

	if *interactive {
		repl(*trace)
		return
	}

	path := flag.Arg(0)
	var proj *manifest.Manifest
	if path == "" {
		// No script given: fall back to the project manifest.
		cwd, err := os.Getwd()
		if err == nil {
			proj, _ = manifest.Find(cwd)
		}
		if proj == nil || proj.EntryPath() == "" {
			flag.Usage()
			os.Exit(exitUsage)
		}
		path = proj.EntryPath()
		log.Infof("running %s entry %s", proj.Project.Name, path)
	}

	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
		os.Exit(exitData)
	}

	chunk := compileWithCache(log, proj, string(source), path, *noCache)
	if chunk == nil {
		os.Exit(exitData)
	}

	if *disassemble {
		fmt.Print(vm.Disassemble(chunk))
		return
	}

	machine := vm.New()
	if *trace {
		machine.SetTracer(func(depth, offset int, op vm.Opcode) {
			log.Debugf("%*s%04d %s", depth*2, "", offset, op)
		})
	}
	if err := machine.Interpret(chunk); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitruntime)
	}
}

// compileWithCache compiles source, consulting the project's chunk cache
// when one is configured. Compile errors are printed and nil returned.
func compileWithCache(log commonlog.Logger, proj *manifest.Manifest, source, path string, noCache bool) *vm.Chunk {
	useCache := proj != nil && proj.Cache.Enabled && !noCache

	var store *cache.Cache
	if useCache {
		var err error
		store, err = cache.Open(proj.CachePath())
		if err != nil {
			log.Warningf("cache disabled: %v", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	hash := cache.HashSource(source)
	if store != nil {
		if chunk, ok, err := store.Get(hash); err == nil && ok {
			log.Debugf("cache hit for %s", path)
			return chunk
		}
	}

	chunk, err := compiler.CompileModule(source, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		return nil
	}

	if store != nil {
		if err := store.Put(hash, chunk); err != nil {
			log.Warningf("cache store failed: %v", err)
		}
	}
	return chunk
}

// repl reads statements line by line, printing the value of expression
// statements the way the interpreter recorded them.
func repl(trace bool) {
	fmt.Printf("Pyrite %s (type Ctrl-D to exit)\n", version)

	machine := vm.New()
	if trace {
		log := commonlog.GetLogger("pyrite.trace")
		machine.SetTracer(func(depth, offset int, op vm.Opcode) {
			log.Debugf("%*s%04d %s", depth*2, "", offset, op)
		})
	}

	scanner := bufio.NewScanner(os.Stdin)
	var pending strings.Builder
	for {
		if pending.Len() == 0 {
			fmt.Print(">>> ")
		} else {
			fmt.Print("... ")
		}
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := scanner.Text()
		pending.WriteString(line)
		pending.WriteString("\n")

		// A block header or an indented line waits for the terminating
		// blank line before compiling.
		if strings.HasSuffix(strings.TrimRight(line, " \t"), ":") ||
			(pending.Len() > len(line)+1 && line != "") {
			continue
		}

		source := pending.String()
		pending.Reset()
		if strings.TrimSpace(source) == "" {
			continue
		}

		chunk, err := compiler.CompileModule(source, "<repl>")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		if err := machine.Interpret(chunk); err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		if result := machine.LastPopped(); !result.IsNil() {
			fmt.Println(vm.Repr(result))
		}
	}
}
