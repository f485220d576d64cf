package main

import (
	"flag"
	"fmt"
	"os"

	"mokair/internal/ir"
	"mokair/internal/jarx"
)

func cmdLift(args []string) error {
	fs := flag.NewFlagSet("lift", flag.ExitOnError)
	in := fs.String("in", "", "class file or jar")
	method := fs.String("method", "", "only methods with this name")
	strict := fs.Bool("strict", false, "enforce declared frame limits")
	fs.Parse(args)
	if *in == "" {
		return fmt.Errorf("--in is required")
	}

	entries, err := jarx.Load(*in)
	if err != nil {
		return err
	}
	lifted, failed := 0, 0
	for _, r := range jarx.ParseAll(entries) {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", r.Entry.Path, r.Err)
			continue
		}
		for _, mr := range ir.LiftClass(r.Class, ir.Options{Strict: *strict}) {
			if *method != "" && mr.Method.Name != *method {
				continue
			}
			if mr.Err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "%s.%s: %v\n", r.Class.ThisClass, mr.Method.Name, mr.Err)
				continue
			}
			mr.IR.Dump(os.Stdout)
			fmt.Println()
			lifted++
		}
	}
	fmt.Fprintf(os.Stderr, "lifted %d methods (%d failed)\n", lifted, failed)
	if failed > 0 {
		return fmt.Errorf("%d items failed", failed)
	}
	return nil
}
