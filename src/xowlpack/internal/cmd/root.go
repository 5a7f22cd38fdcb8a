package cmd

import (
	"os"

	"github.com/cenotelie/xowl-toolkit/src/common/cli"
	"github.com/cenotelie/xowl-toolkit/src/common/errors"
	"github.com/cenotelie/xowl-toolkit/src/common/logs"
	"github.com/cenotelie/xowl-toolkit/src/common/version"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/archive"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/artifact"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/build"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/db"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/db/migrations"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/descriptor"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/internal/output"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/publish"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// VersionInfo holds version information - set at build time via ldflags
	VersionInfo = version.New()

	// Configuration file path
	cfgFile string

	// Output format (table, json or yaml)
	outputFormat string

	// Global logger instance
	log = logs.NewDefault()
)

// Linker variables - set via ldflags at build time
var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "xowlpack",
	Short: "xOWL packaging tool",
	Long: `xowlpack assembles the deliverables of the xOWL platform.

It resolves the artifacts a project depends on and produces addon and
marketplace zip packages, platform distributions built over an Apache Felix
or previous platform base, and product packages, each with its JSON descriptor.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return initConfig()
	},
}

// Execute runs the root command and exits with the code of the failure, if any
func Execute() {
	VersionInfo.Version = Version
	VersionInfo.BuildDate = BuildDate
	VersionInfo.GitCommit = GitCommit

	if err := rootCmd.Execute(); err != nil {
		reportError(err)
		os.Exit(errors.GetExitCode(err))
	}
}

func init() {
	cli.RegisterConfigFlag(rootCmd, &cfgFile, "~/.xowlpack/xowlpack.yaml")

	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "Output format: table, json, yaml (default: table on a terminal)")

	cli.RegisterLogFlags(rootCmd)

	rootCmd.PersistentFlags().String("repository", "~/.m2/repository", "Local Maven repository to resolve artifacts from")
	rootCmd.PersistentFlags().Bool("remote", false, "Also resolve artifacts from the storage backend")
	rootCmd.PersistentFlags().String("history", "~/.xowlpack/history.db", "Build history database")

	_ = cli.BindPersistentFlag(rootCmd, "repository", "repository.local")
	_ = cli.BindPersistentFlag(rootCmd, "remote", "repository.remote")
	_ = cli.BindPersistentFlag(rootCmd, "history", "history.path")

	viper.SetDefault("repository.local", "~/.m2/repository")
	viper.SetDefault("repository.remote", false)
	viper.SetDefault("cache.dir", "~/.xowlpack/cache")
	viper.SetDefault("history.path", db.DefaultConfig().Path)
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local.path", "~/.xowlpack/repository")
	viper.SetDefault("storage.s3.region", "us-east-1")
	viper.SetDefault("storage.s3.path_style", true)
	viper.SetDefault("build.compression_level", archive.DefaultCompressionLevel)
	viper.SetDefault("build.target", "")

	for _, kind := range build.Kinds {
		rootCmd.AddCommand(newAssembleCmd(kind))
	}
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(storageCmd)
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads the config file and environment, then configures logging
func initConfig() error {
	opts := cli.DefaultConfigOptions("xowlpack", "XOWLPACK")
	opts.ConfigFile = cfgFile

	if err := cli.InitConfig(opts); err != nil {
		return errors.ErrInvalidConfig.WithCause(err)
	}

	log = cli.InitLogger("xowlpack")
	artifact.SetLogger(log)
	archive.SetLogger(log)
	build.SetLogger(log)
	db.SetLogger(log)
	migrations.SetLogger(log)
	descriptor.SetLogger(log)
	publish.SetLogger(log)

	if err := registerArtifactTypes(); err != nil {
		return err
	}
	if outputFormat != "" && !output.ValidFormat(outputFormat) {
		return errors.ErrInvalidArgument.WithMessagef("unknown output format %q", outputFormat)
	}
	return nil
}

// registerArtifactTypes declares the artifact types configured under
// repository.types, each with an extension and an optional classifier
func registerArtifactTypes() error {
	var types map[string]artifact.Handler
	if err := viper.UnmarshalKey("repository.types", &types); err != nil {
		return errors.ErrInvalidConfig.WithMessage("invalid repository.types").WithCause(err)
	}
	for name, h := range types {
		if h.Extension == "" {
			return errors.ErrInvalidConfig.WithMessagef("artifact type %s has no extension", name)
		}
		artifact.RegisterHandler(name, h)
		log.Debug("Registered artifact type", "type", name, "extension", h.Extension, "classifier", h.Classifier)
	}
	return nil
}

// getOutputFormat returns the requested output format
func getOutputFormat() string {
	if outputFormat == "" {
		return output.DefaultFormat()
	}
	return outputFormat
}

// reportError prints err as a report for json output, as plain text otherwise
func reportError(err error) {
	if outputFormat == output.FormatJSON {
		output.PrintErrorReport(errors.NewReport(err))
		return
	}
	output.PrintError(err)
}

// printData writes data as json or yaml, returning false for table output
func printData(data interface{}) (bool, error) {
	switch getOutputFormat() {
	case output.FormatJSON:
		return true, output.PrintJSON(data)
	case output.FormatYAML:
		return true, output.PrintYAML(data)
	}
	return false, nil
}
