package main

import (
	"flag"
	"fmt"
	"os"

	"mokair/internal/bytecode"
	"mokair/internal/jarx"
)

func cmdDisasm(args []string) error {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	in := fs.String("in", "", "class file or jar")
	method := fs.String("method", "", "only methods with this name")
	fs.Parse(args)
	if *in == "" {
		return fmt.Errorf("--in is required")
	}

	entries, err := jarx.Load(*in)
	if err != nil {
		return err
	}
	listed := 0
	for _, r := range jarx.ParseAll(entries) {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", r.Entry.Path, r.Err)
			continue
		}
		c := r.Class
		for i := range c.Methods {
			m := &c.Methods[i]
			if m.Code == nil || (*method != "" && m.Name != *method) {
				continue
			}
			insts, err := bytecode.Decode(m.Code.Bytecode, c.Pool)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s.%s: %v\n", c.ThisClass, m.Name, err)
				continue
			}
			fmt.Printf("%s.%s%s:\n", c.ThisClass, m.Name, m.Descriptor.Raw)
			fmt.Print(bytecode.Format(insts))
			fmt.Println()
			listed++
		}
	}
	fmt.Fprintf(os.Stderr, "disassembled %d methods\n", listed)
	return nil
}
