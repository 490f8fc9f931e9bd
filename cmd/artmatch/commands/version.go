// ABOUTME: Version command reporting the artmatch build
// ABOUTME: Prints release, commit, build date and Go runtime in any output format
package commands

import (
	"fmt"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// versionInfo is stamped by main from -ldflags
var versionInfo = VersionInfo{Version: "dev", Commit: "none", Date: "unknown"}

// VersionInfo contains build information
type VersionInfo struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"date" yaml:"date"`
}

// SetVersion records the build stamp, also reported to MCP clients
func SetVersion(version, commit, date string) {
	versionInfo = VersionInfo{Version: version, Commit: commit, Date: date}
}

type versionReport struct {
	Version  string `json:"version" yaml:"version"`
	Commit   string `json:"commit" yaml:"commit"`
	Date     string `json:"date" yaml:"date"`
	Go       string `json:"go" yaml:"go"`
	Platform string `json:"platform" yaml:"platform"`
}

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Show the artmatch release, commit and build date, plus the Go runtime it was built with.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report := versionReport{
				Version:  versionInfo.Version,
				Commit:   versionInfo.Commit,
				Date:     versionInfo.Date,
				Go:       runtime.Version(),
				Platform: runtime.GOOS + "/" + runtime.GOARCH,
			}
			return writeOutput(cmd, report, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "artmatch %s\n", report.Version)
				fmt.Fprintf(w, "Commit:\t%s\n", report.Commit)
				fmt.Fprintf(w, "Built:\t%s\n", report.Date)
				fmt.Fprintf(w, "Go:\t%s (%s)\n", report.Go, report.Platform)
			})
		},
	}
}
