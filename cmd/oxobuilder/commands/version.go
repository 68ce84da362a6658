package commands

import (
	"fmt"

	"git.home.luguber.info/inful/oxobuilder/internal/version"
)

// VersionCmd implements the 'version' command.
type VersionCmd struct{}

func (v *VersionCmd) Run(g *Global, _ *CLI) error {
	_, err := fmt.Fprintf(g.out(), "oxobuilder %s\n", version.String())
	return err
}
