package main

import (
	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/oxobuilder/cmd/oxobuilder/commands"
	ferrors "git.home.luguber.info/inful/oxobuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/oxobuilder/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("oxobuilder"),
		kong.Description("Scaffold an Android project and build it on a remote service."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	global := &commands.Global{}
	err := ctx.Run(global, &cli)
	ferrors.NewCLIErrorAdapter(cli.Verbose, nil).HandleError(err)
}
