// cmd/spiderscript runs SpiderScript source files: lex, parse, optimize,
// compile, and execute against the default host variant.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spiderscript/spiderscript/internal/compiler"
	"github.com/spiderscript/spiderscript/internal/ffi"
	"github.com/spiderscript/spiderscript/internal/natives"
	"github.com/spiderscript/spiderscript/internal/optimizer"
	"github.com/spiderscript/spiderscript/internal/parser"
	"github.com/spiderscript/spiderscript/internal/sstypes"
	"github.com/spiderscript/spiderscript/internal/ssvalue"
	"github.com/spiderscript/spiderscript/internal/vm"
)

const version = "0.1.0"

var commandAliases = map[string]string{
	"r": "run",
	"v": "version",
	"h": "help",
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one CLI invocation and returns the process exit code. Split
// out from main so the test binary can drive it via testscript.RunMain
// without actually exiting the test process.
func run(args []string) int {
	if len(args) == 0 {
		showUsage()
		return 0
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "help", "--help", "-h":
		showUsage()
		return 0
	case "version", "--version", "-v":
		fmt.Println("spiderscript", version)
		return 0
	case "run":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: spiderscript run <file.ss>")
			return 1
		}
		return runFile(args[1])
	default:
		showUsage()
		return 1
	}
}

func showUsage() {
	fmt.Println(`spiderscript - run SpiderScript source files

Usage:
  spiderscript run <file.ss>
  spiderscript version
  spiderscript help`)
}

// fsIncludeLoader resolves @include paths relative to the directory
// holding the file currently being parsed.
type fsIncludeLoader struct {
	baseDir string
}

func (l fsIncludeLoader) Load(path string) (string, error) {
	data, err := os.ReadFile(filepath.Join(l.baseDir, path))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func runFile(filename string) int {
	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not read file: %v\n", err)
		return 1
	}

	loader := fsIncludeLoader{baseDir: filepath.Dir(filename)}
	prog, perrs := parser.Parse(filename, string(source), loader)
	if len(perrs) > 0 {
		for _, e := range perrs {
			fmt.Fprintln(os.Stderr, e)
		}
		return 1
	}

	prog = optimizer.Optimize(prog)

	registry := sstypes.NewRegistry()
	variant := ffi.NewVariant("default", registry)
	variant.ImplicitCasts = true
	variant.OnError = func(script, message string) {
		fmt.Fprintf(os.Stderr, "%s: %s\n", script, message)
	}
	if err := natives.RegisterAll(variant); err != nil {
		fmt.Fprintf(os.Stderr, "could not register native surface: %v\n", err)
		return 1
	}

	out, cerrs := compiler.Compile(prog, variant.CompilerView())
	if len(cerrs) > 0 {
		for _, e := range cerrs {
			fmt.Fprintln(os.Stderr, e)
		}
		return 1
	}

	interp := vm.New(out, variant, filename)
	if _, err := interp.Call("main", []ssvalue.Value{}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
