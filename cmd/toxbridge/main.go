package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/tox-bridge/bridge"
	"github.com/wippyai/tox-bridge/native"
	"github.com/wippyai/tox-bridge/native/memcore"
	"github.com/wippyai/tox-bridge/native/wasmcore"
)

func main() {
	var (
		wasmFile = flag.String("wasm", "", "Path to a core guest module (in-memory core when empty)")
		script   = flag.String("script", "", "Run commands from file instead of the console")
		list     = flag.Bool("list", false, "List commands and exit")
		verbose  = flag.Bool("v", false, "Log bridge activity to stderr")
	)
	flag.Parse()

	if err := run(*wasmFile, *script, *list, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(wasmFile, scriptFile string, listOnly, verbose bool) error {
	ctx := context.Background()

	logger := zap.NewNop()
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		logger = l
		defer logger.Sync()
	}

	var (
		factory native.Factory
		backend = "memory"
	)
	if wasmFile != "" {
		rt, err := wasmcore.Load(ctx, wasmFile, &wasmcore.Config{Logger: logger.Named("wasmcore")})
		if err != nil {
			return fmt.Errorf("load core: %w", err)
		}
		defer rt.Close(ctx)
		factory = rt
		backend = wasmFile
	} else {
		factory = memcore.NewFactory(memcore.WithLogger(logger.Named("memcore")))
	}

	b := bridge.New(factory, bridge.WithLogger(logger.Named("bridge")))
	defer b.Close(ctx)

	cmds := newCommands(b, native.DefaultOptions())

	if listOnly {
		for _, c := range cmds {
			fmt.Println(formatCommand(c, func(s string) string { return s }))
		}
		return nil
	}

	if scriptFile != "" {
		f, err := os.Open(scriptFile)
		if err != nil {
			return err
		}
		defer f.Close()
		return scriptResult(runScript(ctx, f, os.Stdout, cmds))
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return scriptResult(runScript(ctx, os.Stdin, os.Stdout, cmds))
	}
	return runInteractive(b, backend, cmds)
}

func scriptResult(failed int, err error) error {
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d command(s) failed", failed)
	}
	return nil
}
