package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zboralski/lattice"
	"github.com/zboralski/lattice/render"

	"mokair/internal/ir"
	"mokair/internal/irgraph"
	"mokair/internal/jarx"
)

func cmdCFG(args []string) error {
	fs := flag.NewFlagSet("cfg", flag.ExitOnError)
	in := fs.String("in", "", "class file or jar")
	out := fs.String("out", "", "output directory")
	strict := fs.Bool("strict", false, "enforce declared frame limits")
	fs.Parse(args)
	if *in == "" || *out == "" {
		return fmt.Errorf("--in and --out are required")
	}
	if err := os.MkdirAll(*out, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", *out, err)
	}

	entries, err := jarx.Load(*in)
	if err != nil {
		return err
	}
	written := 0
	for _, r := range jarx.ParseAll(entries) {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", r.Entry.Path, r.Err)
			continue
		}
		for _, mr := range ir.LiftClass(r.Class, ir.Options{Strict: *strict}) {
			if mr.Err != nil {
				fmt.Fprintf(os.Stderr, "%s.%s: %v\n", r.Class.ThisClass, mr.Method.Name, mr.Err)
				continue
			}
			lcfg := irgraph.BuildFuncCFG(mr.IR)
			if len(lcfg.Blocks) < 2 {
				continue
			}
			g := &lattice.CFGGraph{Funcs: []*lattice.FuncCFG{lcfg}}
			dot := render.DOTCFG(g, lcfg.Name)
			name := dotFileName(r.Class.ThisClass, mr.Method.Name, mr.Method.Descriptor.Raw)
			p := filepath.Join(*out, name)
			if err := os.WriteFile(p, []byte(dot), 0644); err != nil {
				return fmt.Errorf("write %s: %w", p, err)
			}
			written++
		}
	}
	fmt.Fprintf(os.Stderr, "wrote %d CFG DOTs to %s\n", written, *out)
	return nil
}

// dotFileName flattens a method reference into a safe file name.
func dotFileName(class, method, desc string) string {
	s := class + "." + method + desc
	repl := strings.NewReplacer("/", "_", "(", "", ")", "_", ";", "", "<", "", ">", "", "[", "a", "$", "_")
	return repl.Replace(s) + ".dot"
}

func cmdCallgraph(args []string) error {
	fs := flag.NewFlagSet("callgraph", flag.ExitOnError)
	in := fs.String("in", "", "class file or jar")
	out := fs.String("out", "", "output DOT file")
	fs.Parse(args)
	if *in == "" || *out == "" {
		return fmt.Errorf("--in and --out are required")
	}

	entries, err := jarx.Load(*in)
	if err != nil {
		return err
	}
	var methods []*ir.Method
	for _, r := range jarx.ParseAll(entries) {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", r.Entry.Path, r.Err)
			continue
		}
		for _, mr := range ir.LiftClass(r.Class, ir.Options{}) {
			if mr.Err != nil {
				fmt.Fprintf(os.Stderr, "%s.%s: %v\n", r.Class.ThisClass, mr.Method.Name, mr.Err)
				continue
			}
			methods = append(methods, mr.IR)
		}
	}
	cg := irgraph.BuildCallGraph(methods)
	dot := render.DOT(cg, "callgraph")
	if err := os.WriteFile(*out, []byte(dot), 0644); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d nodes, %d edges)\n", *out, len(cg.Nodes), len(cg.Edges))
	return nil
}
