package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/artifact"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/db"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/internal/output"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the remote artifact cache",
	Long:  `Lists and prunes the artifacts downloaded from the remote repository.`,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached artifacts, least recently used first",
	Args:  cobra.NoArgs,
	RunE:  runCacheList,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Evict least recently used artifacts",
	Args:  cobra.NoArgs,
	RunE:  runCachePrune,
}

func init() {
	cachePruneCmd.Flags().String("max-size", "0", "Size to shrink the cache to (e.g. 500M, 2G)")

	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cachePruneCmd)
}

func runCacheList(cmd *cobra.Command, args []string) error {
	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	cache := artifact.NewCache(db.NewArtifactCacheRepository(database))
	entries, err := cache.Entries()
	if err != nil {
		return err
	}
	stats, err := cache.Stats()
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []db.ArtifactCacheEntry{}
	}

	if ok, err := printData(map[string]interface{}{"stats": stats, "entries": entries}); ok {
		return err
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Coordinate,
			output.FormatSize(e.SizeBytes),
			strconv.Itoa(e.UseCount),
			e.LastUsedAt.Local().Format(time.DateTime),
		})
	}
	output.PrintTable([]string{"COORDINATE", "SIZE", "USES", "LAST USED"}, rows)
	output.PrintMessage(fmt.Sprintf("\n%d artifacts, %s", stats.Entries, output.FormatSize(stats.SizeBytes)))
	return nil
}

func runCachePrune(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetString("max-size")
	maxSize, err := parseSize(raw)
	if err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	evicted, err := artifact.NewCache(db.NewArtifactCacheRepository(database)).Prune(maxSize)
	if err != nil {
		return err
	}

	var freed int64
	for _, e := range evicted {
		freed += e.SizeBytes
	}
	if ok, err := printData(map[string]interface{}{"evicted": len(evicted), "freed_bytes": freed}); ok {
		return err
	}
	output.PrintMessage(fmt.Sprintf("Evicted %d artifacts, freed %s", len(evicted), output.FormatSize(freed)))
	return nil
}

// parseSize reads a byte count with an optional K, M or G binary suffix
func parseSize(raw string) (int64, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimSuffix(strings.TrimSuffix(s, "B"), "I")

	multiplier := int64(1)
	if n := len(s); n > 0 {
		switch s[n-1] {
		case 'K':
			multiplier = 1 << 10
		case 'M':
			multiplier = 1 << 20
		case 'G':
			multiplier = 1 << 30
		}
		if multiplier > 1 {
			s = s[:n-1]
		}
	}

	value, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || value < 0 {
		return 0, errors.ErrInvalidArgument.WithMessagef("invalid size %q", raw)
	}
	return value * multiplier, nil
}
