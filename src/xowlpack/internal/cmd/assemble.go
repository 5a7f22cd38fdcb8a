package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenotelie/xowl-toolkit/src/common/paths"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/build"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/db"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/internal/output"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/project"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/publish"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var assembleDescriptions = map[build.Kind][2]string{
	build.KindAddon: {
		"Package an addon",
		`Resolves the bundles of the project and writes the addon zip with its
descriptor.json, plus the descriptor itself as artifactId-version.json.`,
	},
	build.KindMarketplace: {
		"Package a marketplace",
		`Resolves the package and descriptor of every addon of the project and
writes the marketplace zip with its marketplace.json.`,
	},
	build.KindPlatform: {
		"Assemble a platform distribution",
		`Extracts the base distribution found among the dependencies (Apache Felix
or a previous platform), deploys the other dependencies as bundles, overlays
the configured resources and writes the distribution as a tar.gz archive.`,
	},
	build.KindProduct: {
		"Package a product",
		`Writes the product descriptor and definition, then the product zip holding
the descriptor, the main artifact and the bundles.`,
	},
}

// newAssembleCmd creates the command assembling one kind of package
func newAssembleCmd(kind build.Kind) *cobra.Command {
	desc := assembleDescriptions[kind]
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: desc[0],
		Long:  desc[1],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssemble(cmd, kind)
		},
	}
	cmd.Flags().StringP("project", "p", project.DefaultFileName, "Project file")
	cmd.Flags().StringP("target", "t", "", "Directory produced files are written to (default: the project target)")
	cmd.Flags().Bool("publish", false, "Upload the produced files to the storage backend")
	return cmd
}

func runAssemble(cmd *cobra.Command, kind build.Kind) error {
	projectPath, _ := cmd.Flags().GetString("project")
	target, _ := cmd.Flags().GetString("target")
	publishOutputs, _ := cmd.Flags().GetBool("publish")

	p, err := project.Load(paths.Expand(projectPath))
	if err != nil {
		return err
	}
	if target == "" {
		target = viper.GetString("build.target")
	}
	target = paths.Expand(target)

	env, err := openEnvironment(publishOutputs)
	if err != nil {
		return err
	}
	defer env.Close()

	var attacher build.Attacher
	var publisher *publish.Publisher
	if publishOutputs {
		publisher = publish.New(env.backend, p.Coordinate())
		attacher = publisher
	}

	cfg := build.DefaultConfig()
	cfg.CompressionLevel = viper.GetInt("build.compression_level")

	assembler := build.NewAssembler(build.NewHost(env.resolver, attacher, target), cfg)
	if env.database != nil {
		assembler.SetRecorder(db.NewBuildRepository(env.database))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := assembler.Run(ctx, kind, p)
	if err != nil {
		return err
	}

	if publisher != nil {
		return printPublished(result, publisher)
	}
	return printResult(result)
}

func printResult(result *build.Result) error {
	if ok, err := printData(result); ok {
		return err
	}
	rows := make([][]string, 0, len(result.Outputs))
	for _, o := range result.Outputs {
		rows = append(rows, []string{o.Kind, o.Path})
	}
	output.PrintTable([]string{"KIND", "PATH"}, rows)
	output.PrintMessage(fmt.Sprintf("\nBuild %s completed in %s", result.BuildID, result.Duration.Round(time.Millisecond)))
	return nil
}

func printPublished(result *build.Result, publisher *publish.Publisher) error {
	attachments := publisher.Attachments()
	if ok, err := printData(map[string]interface{}{
		"build":     result,
		"published": attachments,
	}); ok {
		return err
	}
	rows := make([][]string, 0, len(attachments))
	for _, a := range attachments {
		rows = append(rows, []string{a.Kind, a.Key, output.FormatSize(a.Size), a.Checksum})
	}
	output.PrintTable([]string{"KIND", "KEY", "SIZE", "SHA256"}, rows)
	output.PrintMessage(fmt.Sprintf("\nBuild %s published in %s", result.BuildID, result.Duration.Round(time.Millisecond)))
	return nil
}
