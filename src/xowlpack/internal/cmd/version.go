package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func runVersion(cmd *cobra.Command, args []string) error {
	if ok, err := printData(VersionInfo.Map()); ok {
		return err
	}
	fmt.Println(VersionInfo.Full())
	return nil
}
