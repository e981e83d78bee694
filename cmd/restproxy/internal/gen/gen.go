package gen

import (
	"fmt"
	"os"

	"github.com/broady/restproxy/internal/codegen"
	"github.com/broady/restproxy/internal/directive"
)

type Cmd struct {
	Package string `arg:"" optional:"" help:"Package to scan (default: current directory)." default:"."`
	Stdout  bool   `help:"Print the generated code instead of writing restproxy_gen.go."`
}

func (c *Cmd) Run() error {
	result, err := directive.Load(c.Package, "")
	if err != nil {
		return err
	}
	if c.Stdout {
		src, err := codegen.Generate(result)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(src)
		return err
	}
	path, err := codegen.WriteFile(result)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d clients)\n", path, len(result.Clients))
	return nil
}
