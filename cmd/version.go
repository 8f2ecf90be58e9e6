package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion string
	buildTime  string
)

// SetVersion sets version/build metadata and wires Cobra's --version flag.
func SetVersion(v, bt string) {
	appVersion = v
	buildTime = bt
	rootCmd.Version = v
}

// versionCmd prints detailed version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), versionText())
	},
}

func versionText() string {
	v := appVersion
	if v == "" {
		v = "dev"
	}
	s := fmt.Sprintf("Evidence Console %s\n", v)
	if buildTime != "" {
		s += fmt.Sprintf("Build Time: %s\n", buildTime)
	}
	return s
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
