package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasm-bridge/loader"
	"github.com/wippyai/wasm-bridge/redirect"
	"github.com/wippyai/wasm-bridge/rewrite"
	"github.com/wippyai/wasm-bridge/wasm"
)

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to wasm module file")
		outFile     = flag.String("out", "", "Write the rewritten module here")
		list        = flag.Bool("list", false, "List legacy references and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Verbose logging")
		exclude     = flag.String("exclude", "", "Excluded identity prefixes (comma-separated)")
	)
	flag.Parse()

	if *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: bridgectl -wasm <file.wasm> [-out file.wasm]")
		fmt.Fprintln(os.Stderr, "       bridgectl -wasm <file.wasm> -list")
		fmt.Fprintln(os.Stderr, "       bridgectl -wasm <file.wasm> -i  (interactive mode)")
		os.Exit(1)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*wasmFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*wasmFile, *outFile, *exclude, *list, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(wasmFile, outFile, excludeStr string, listOnly, verbose bool) error {
	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	if !rewrite.Scan(data) {
		fmt.Printf("Module: %s\n", wasmFile)
		fmt.Println("No legacy markers found.")
		return nil
	}

	mod, err := wasm.Decode(data)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	fmt.Printf("Module: %s\n", wasmFile)
	fmt.Printf("Imports: %d\n", len(mod.Imports))
	fmt.Printf("Functions: %d\n", len(mod.Funcs))
	fmt.Printf("Exports: %d\n", len(mod.Exports))

	refs := legacyRefs(mod)
	if len(refs) == 0 {
		fmt.Println("\nNo legacy references found.")
		return nil
	}

	fmt.Printf("\nLegacy references:\n")
	for _, r := range refs {
		fmt.Printf("  [%s] %s#%s -> %s\n", r.kind, r.module, r.name, r.target)
	}

	if listOnly {
		return nil
	}

	log := zap.NewNop()
	if verbose {
		if log, err = zap.NewDevelopment(); err != nil {
			return fmt.Errorf("logger: %w", err)
		}
	}

	var excluded []string
	if excludeStr != "" {
		excluded = strings.Split(excludeStr, ",")
	}
	coord := loader.New(loader.Config{Logger: log, ExcludedPrefixes: excluded})

	out, changed := coord.Transform(identityFor(wasmFile), data)
	if !changed {
		fmt.Println("\nModule left untouched.")
		return nil
	}

	fmt.Printf("\n%s\n", coord.Report())

	if outFile != "" {
		if err := os.WriteFile(outFile, out, 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Printf("Wrote %s (%d bytes)\n", outFile, len(out))
	}
	return nil
}

// identityFor derives a load identity from the file name, matching the
// namespace/name shape engine loads use.
func identityFor(path string) string {
	base := filepath.Base(path)
	return "file/" + strings.TrimSuffix(base, filepath.Ext(base))
}

type refInfo struct {
	module string
	name   string
	kind   string
	target string
}

// legacyRefs lists imports carrying a legacy namespace together with
// the namespace they would redirect to.
func legacyRefs(mod *wasm.Module) []refInfo {
	rw := redirect.NewRewriter()
	var refs []refInfo
	for _, imp := range mod.Imports {
		target := rw.RewriteOwner(imp.Module)
		if imp.Kind == wasm.KindTag && imp.Module == redirect.FaultOwner && imp.Name == redirect.FaultMember {
			target = redirect.FailureOwner + "#" + redirect.FailureMember
		}
		if target == imp.Module {
			continue
		}
		refs = append(refs, refInfo{
			module: imp.Module,
			name:   imp.Name,
			kind:   kindName(imp.Kind),
			target: target,
		})
	}
	return refs
}

func kindName(kind byte) string {
	switch kind {
	case wasm.KindFunc:
		return "func"
	case wasm.KindGlobal:
		return "global"
	case wasm.KindTag:
		return "tag"
	default:
		return "other"
	}
}
