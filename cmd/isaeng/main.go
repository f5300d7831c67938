// Command isaeng loads a source file and runs it to completion - main.py's
// argparse + Engine(...).run() shape, reworked around the teacher's flag/
// os.Args launcher (main.go:main).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/blackb6a/isa-engine/engine"
)

var debugFlag = flag.Bool("debug", false, "print a step trace to stderr")

func main() {
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: isaeng <source file>")
		os.Exit(1)
	}
	source := args[0]

	program, err := os.ReadFile(source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not open/read file: %s: %v\n", source, err)
		os.Exit(1)
	}

	if *debugFlag {
		engine.SetDebugOutput(os.Stderr)
	}

	e, isaErr := engine.New(engine.Config{
		Program: program,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Vfiles: map[string][]byte{
			"flag.txt": []byte("flag{1234}\n"),
		},
	})
	if isaErr != nil {
		fmt.Fprintln(os.Stderr, isaErr)
		os.Exit(1)
	}

	if *debugFlag {
		e.Events().Register(engine.EventStep, engine.Before, func(_ context.Context, payload any) error {
			fmt.Fprintln(os.Stderr, payload)
			return nil
		})
	}

	if isaErr := e.Run(context.Background()); isaErr != nil {
		fmt.Fprintln(os.Stderr, isaErr)
		os.Exit(1)
	}

	os.Exit(int(e.ExitCode()))
}
