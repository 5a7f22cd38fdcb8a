package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/cenotelie/xowl-toolkit/src/xowlpack/internal/output"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/storage"
	"github.com/spf13/cobra"
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Inspect the storage backend",
	Long:  `Lists the packages and descriptors published to the configured storage backend.`,
}

var storageListCmd = &cobra.Command{
	Use:   "list [prefix]",
	Short: "List published objects",
	Long: `Lists the objects stored under prefix, a repository path such as
org/acme/tool/1.2.0. Without a prefix every object is listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStorageList,
}

func init() {
	storageCmd.AddCommand(storageListCmd)
}

func runStorageList(cmd *cobra.Command, args []string) error {
	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}

	backend, err := openStorage()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	objects, err := backend.List(ctx, prefix)
	if err != nil {
		return err
	}
	if objects == nil {
		objects = []storage.ObjectInfo{}
	}

	if ok, err := printData(objects); ok {
		return err
	}
	if len(objects) == 0 {
		output.PrintMessage(fmt.Sprintf("No objects in %s", backend.Location()))
		return nil
	}
	rows := make([][]string, 0, len(objects))
	for _, o := range objects {
		rows = append(rows, []string{
			o.Key,
			output.FormatSize(o.Size),
			o.LastModified.Local().Format(time.DateTime),
		})
	}
	output.PrintTable([]string{"KEY", "SIZE", "MODIFIED"}, rows)
	return nil
}
