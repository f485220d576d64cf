package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"mokair/internal/classfile"
	"mokair/internal/jarx"
)

type classInfo struct {
	Path       string   `json:"path"`
	Name       string   `json:"name"`
	Super      string   `json:"super,omitempty"`
	Version    string   `json:"version"`
	Interfaces []string `json:"interfaces,omitempty"`
	SourceFile string   `json:"source_file,omitempty"`
	PoolSize   int      `json:"pool_size"`
	Fields     int      `json:"fields"`
	Methods    int      `json:"methods"`
}

func cmdInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	in := fs.String("in", "", "class file or jar")
	asJSON := fs.Bool("json", false, "emit JSON")
	fs.Parse(args)
	if *in == "" {
		return fmt.Errorf("--in is required")
	}

	entries, err := jarx.Load(*in)
	if err != nil {
		return err
	}
	results := jarx.ParseAll(entries)

	var enc *json.Encoder
	if *asJSON {
		enc = json.NewEncoder(os.Stdout)
	}
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", r.Entry.Path, r.Err)
			continue
		}
		c := r.Class
		info := classInfo{
			Path:       r.Entry.Path,
			Name:       c.ThisClass,
			Super:      c.SuperClass,
			Version:    fmt.Sprintf("%d.%d", c.MajorVersion, c.MinorVersion),
			Interfaces: c.Interfaces,
			SourceFile: c.SourceFile,
			PoolSize:   c.Pool.Count(),
			Fields:     len(c.Fields),
			Methods:    len(c.Methods),
		}
		if enc != nil {
			if err := enc.Encode(info); err != nil {
				return err
			}
			continue
		}
		printInfo(c, info)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d classes failed to parse", failed, len(results))
	}
	return nil
}

func printInfo(c *classfile.Class, info classInfo) {
	fmt.Printf("class %s\n", info.Name)
	if info.Super != "" {
		fmt.Printf("  extends    %s\n", info.Super)
	}
	if len(info.Interfaces) > 0 {
		fmt.Printf("  implements %s\n", strings.Join(info.Interfaces, ", "))
	}
	fmt.Printf("  version    %s\n", info.Version)
	if info.SourceFile != "" {
		fmt.Printf("  source     %s\n", info.SourceFile)
	}
	fmt.Printf("  constants  %d\n", info.PoolSize)
	fmt.Printf("  fields     %d\n", info.Fields)
	for i := range c.Fields {
		fmt.Printf("    %s %s\n", c.Fields[i].Descriptor, c.Fields[i].Name)
	}
	fmt.Printf("  methods    %d\n", info.Methods)
	for i := range c.Methods {
		m := &c.Methods[i]
		code := ""
		if m.Code != nil {
			code = fmt.Sprintf("  (%d bytes, stack %d, locals %d)",
				len(m.Code.Bytecode), m.Code.MaxStack, m.Code.MaxLocals)
		}
		fmt.Printf("    %s%s%s\n", m.Name, m.Descriptor.Raw, code)
	}
}
