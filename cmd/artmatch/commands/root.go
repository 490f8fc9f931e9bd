// ABOUTME: Root command and global flags for the artmatch CLI
// ABOUTME: Registers every subcommand and the verbose/quiet/format switches
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Global flags shared by every command
var (
	verbose      bool
	quiet        bool
	outputFormat string
)

const banner = `
 █████╗ ██████╗ ████████╗███╗   ███╗ █████╗ ████████╗ ██████╗██╗  ██╗
██╔══██╗██╔══██╗╚══██╔══╝████╗ ████║██╔══██╗╚══██╔══╝██╔════╝██║  ██║
███████║██████╔╝   ██║   ██╔████╔██║███████║   ██║   ██║     ███████║
██╔══██║██╔══██╗   ██║   ██║╚██╔╝██║██╔══██║   ██║   ██║     ██╔══██║
██║  ██║██║  ██║   ██║   ██║ ╚═╝ ██║██║  ██║   ██║   ╚██████╗██║  ██║
╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚═╝     ╚═╝╚═╝  ╚═╝   ╚═╝    ╚═════╝╚═╝  ╚═╝`

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artmatch",
		Short: "Identify gallery artworks from photos",
		Long: banner + `

artmatch recognises which gallery artwork a photo or camera frame shows.
It embeds the catalog's artwork images into a reference set, then matches
new images against that set by cosine similarity.

Start with 'artmatch index' to build the reference set, then use
'artmatch identify' or 'artmatch scan'.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch outputFormat {
			case formatAuto, formatTable, formatJSON, formatYAML:
				return nil
			}
			return fmt.Errorf("unknown --format %q (want auto, table, json or yaml)", outputFormat)
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logging")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress logging and summaries")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", formatAuto, "Output format: auto, table, json or yaml")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(NewIndexCmd())
	cmd.AddCommand(NewIdentifyCmd())
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewMatchCmd())
	cmd.AddCommand(NewArtworksCmd())
	cmd.AddCommand(NewExhibitionsCmd())
	cmd.AddCommand(NewRefsCmd())
	cmd.AddCommand(NewSyncCmd())
	cmd.AddCommand(NewMCPCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
