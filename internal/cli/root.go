// Package cli implements the omnigen command line.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

const rootLongDesc string = `OmniGen is a multimodal creative studio.

It chats with a text model, generates and edits images, renders short
videos and reads text aloud. Run "omnigen serve" to expose the studio
over HTTP, or use the generation subcommands directly.

Configuration is read from --config (or OMNIGEN_CONFIG, default
config.json) and overridden by environment variables such as
GEMINI_API_KEY.`

const rootShortDesc string = "Multimodal creative studio"

// globals are the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	debug      bool
}

func NewRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:           "omnigen",
		Short:         rootShortDesc,
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&g.configPath, "config", os.Getenv("OMNIGEN_CONFIG"), "Path to the JSON config file")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(
		newServeCmd(g),
		newChatCmd(g),
		newImageCmd(g),
		newVideoCmd(g),
		newSpeakCmd(g),
	)
	return cmd
}
