package main

import (
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/broady/restproxy/cmd/restproxy/internal/check"
	"github.com/broady/restproxy/cmd/restproxy/internal/gen"
)

type CLI struct {
	Version VersionCmd `cmd:"" help:"Print version information."`
	Gen     gen.Cmd    `cmd:"" help:"Generate client implementations for //restproxy:client interfaces."`
	Check   check.Cmd  `cmd:"" help:"Validate client directives without generating files."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("restproxy"),
		kong.Description("Code generator for declarative HTTP clients."),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
