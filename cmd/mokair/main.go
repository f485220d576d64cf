package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "info":
		err = cmdInfo(os.Args[2:])
	case "disasm":
		err = cmdDisasm(os.Args[2:])
	case "cfg":
		err = cmdCFG(os.Args[2:])
	case "lift":
		err = cmdLift(os.Args[2:])
	case "callgraph":
		err = cmdCallgraph(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `mokair: JVM class file parser and MokaIR lifter

Usage:
  mokair info      --in <path> [--json]            Print class file structure
  mokair disasm    --in <path> [--method <name>]   Print bytecode listings
  mokair cfg       --in <path> --out <dir>         Write per-method CFG DOT files
  mokair lift      --in <path> [--method <name>]   Lift bytecode to MokaIR and print it
  mokair callgraph --in <path> --out <file>        Write a static call graph DOT

Flags:
  --in <path>       A .class file or a .jar archive
  --out <path>      Output directory or file
  --method <name>   Restrict to methods with this name
  --strict          Enforce declared max_stack/max_locals while lifting
  --json            Emit JSON instead of text
`)
}
