package check

import (
	"fmt"

	"github.com/broady/restproxy/internal/directive"
)

type Cmd struct {
	Package string `arg:"" optional:"" help:"Package to scan (default: current directory)." default:"."`
}

func (c *Cmd) Run() error {
	result, err := directive.Load(c.Package, "")
	if err != nil {
		return err
	}
	if len(result.Clients) == 0 {
		return fmt.Errorf("no %s%s interfaces in %s", directive.Prefix, directive.KindClient, result.PackagePath)
	}
	for _, cl := range result.Clients {
		fmt.Printf("✓ %s: %d methods\n", cl.Name, len(cl.Methods))
		for _, m := range cl.Methods {
			fmt.Printf("    %-7s %s -> %s\n", m.Verb, m.FullPath(cl.Prefix), m.Name)
		}
	}
	return nil
}
