package cmd

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/db"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/internal/output"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past builds",
	Long:  `Lists recorded builds and shows the stages, outputs and logs of one build.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent builds",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <build-id>",
	Short: "Show a build",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old finished builds",
	Long: `Deletes finished builds, with their stages, logs and outputs, beyond the
most recent ones. Builds still running are never deleted.`,
	Args: cobra.NoArgs,
	RunE: runHistoryPrune,
}

func init() {
	historyListCmd.Flags().IntP("limit", "n", 20, "Maximum number of builds")
	historyShowCmd.Flags().Bool("logs", false, "Also print the build logs")
	historyPruneCmd.Flags().Int("keep", 20, "Number of most recent builds to keep")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPruneCmd)
}

// buildDetail is the full record of a build
type buildDetail struct {
	Build   *db.Build        `json:"build"`
	Stages  []db.BuildStage  `json:"stages"`
	Outputs []db.BuildOutput `json:"outputs"`
	Logs    []db.BuildLog    `json:"logs,omitempty"`
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	builds, err := db.NewBuildRepository(database).List(limit)
	if err != nil {
		return err
	}
	if builds == nil {
		builds = []db.Build{}
	}

	if ok, err := printData(builds); ok {
		return err
	}
	if len(builds) == 0 {
		output.PrintMessage("No builds recorded")
		return nil
	}
	rows := make([][]string, 0, len(builds))
	for _, b := range builds {
		rows = append(rows, []string{
			b.ID,
			b.Kind,
			b.Coordinate,
			string(b.Status),
			b.CreatedAt.Local().Format(time.DateTime),
			formatDuration(b.Duration()),
		})
	}
	output.PrintTable([]string{"ID", "KIND", "COORDINATE", "STATUS", "CREATED", "DURATION"}, rows)
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	withLogs, _ := cmd.Flags().GetBool("logs")

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	detail, err := loadBuildDetail(db.NewBuildRepository(database), args[0], withLogs)
	if err != nil {
		return err
	}

	if ok, err := printData(detail); ok {
		return err
	}

	b := detail.Build
	fmt.Printf("Build:      %s\n", b.ID)
	fmt.Printf("Kind:       %s\n", b.Kind)
	fmt.Printf("Coordinate: %s\n", b.Coordinate)
	fmt.Printf("Status:     %s\n", b.Status)
	fmt.Printf("Target:     %s\n", b.TargetDir)
	fmt.Printf("Created:    %s\n", b.CreatedAt.Local().Format(time.DateTime))
	if d := b.Duration(); d > 0 {
		fmt.Printf("Duration:   %s\n", formatDuration(d))
	}
	if b.Status == db.BuildStatusFailed {
		fmt.Printf("Failed in:  %s\n", b.ErrorStage)
		fmt.Printf("Error:      %s\n", b.ErrorMessage)
	}

	if len(detail.Stages) > 0 {
		fmt.Println()
		rows := make([][]string, 0, len(detail.Stages))
		for _, s := range detail.Stages {
			rows = append(rows, []string{s.Name, s.Status, strconv.FormatInt(s.DurationMs, 10) + "ms", s.ErrorMessage})
		}
		output.PrintTable([]string{"STAGE", "STATUS", "DURATION", "ERROR"}, rows)
	}

	if len(detail.Outputs) > 0 {
		fmt.Println()
		rows := make([][]string, 0, len(detail.Outputs))
		for _, o := range detail.Outputs {
			rows = append(rows, []string{o.Kind, o.Path, output.FormatSize(o.SizeBytes), o.StorageKey})
		}
		output.PrintTable([]string{"KIND", "PATH", "SIZE", "KEY"}, rows)
	}

	if withLogs && len(detail.Logs) > 0 {
		fmt.Println()
		for _, l := range detail.Logs {
			fmt.Printf("%s [%s] %s: %s\n", l.CreatedAt.Local().Format(time.TimeOnly), l.Stage, l.Level, l.Message)
		}
	}
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	keep, _ := cmd.Flags().GetInt("keep")
	if keep < 0 {
		return errors.ErrInvalidArgument.WithMessagef("invalid number of builds to keep: %d", keep)
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	removed, err := pruneBuilds(db.NewBuildRepository(database), keep)
	if err != nil {
		return err
	}

	if ok, err := printData(map[string]int{"deleted": removed}); ok {
		return err
	}
	output.PrintMessage(fmt.Sprintf("Deleted %d builds", removed))
	return nil
}

// pruneBuilds deletes the finished builds older than the keep most recent builds
func pruneBuilds(repo *db.BuildRepository, keep int) (int, error) {
	builds, err := repo.List(math.MaxInt32)
	if err != nil {
		return 0, err
	}

	removed := 0
	for i, b := range builds {
		if i < keep || !b.Status.IsTerminal() {
			continue
		}
		if err := repo.Delete(b.ID); err != nil {
			return removed, err
		}
		log.Debug("Deleted build", "build_id", b.ID, "status", b.Status)
		removed++
	}
	return removed, nil
}

// loadBuildDetail collects the records of a build
func loadBuildDetail(repo *db.BuildRepository, id string, withLogs bool) (*buildDetail, error) {
	b, err := repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, errors.ErrBuildNotFound.WithMessagef("build %s not found", id)
	}

	detail := &buildDetail{Build: b}
	if detail.Stages, err = repo.GetStages(id); err != nil {
		return nil, err
	}
	if detail.Outputs, err = repo.GetOutputs(id); err != nil {
		return nil, err
	}
	if withLogs {
		if detail.Logs, err = repo.GetLogs(id); err != nil {
			return nil, err
		}
	}
	return detail, nil
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}
