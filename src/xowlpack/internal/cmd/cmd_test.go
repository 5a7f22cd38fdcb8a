package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/artifact"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/db"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// =============================================================================
// Test Helpers
// =============================================================================

// testEnv is a workspace with a local repository, a storage backend and a history database
type testEnv struct {
	dir       string
	repo      string
	published string
	history   string
}

// setupEnv points the configuration at a fresh workspace
func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:       dir,
		repo:      filepath.Join(dir, "m2"),
		published: filepath.Join(dir, "published"),
		history:   filepath.Join(dir, "history.db"),
	}
	viper.Set("repository.local", env.repo)
	viper.Set("cache.dir", filepath.Join(dir, "cache"))
	viper.Set("history.path", env.history)
	viper.Set("storage.type", "local")
	viper.Set("storage.local.path", env.published)
	viper.Set("storage.s3.endpoint", "")
	outputFormat = "json"
	t.Cleanup(resetGlobals)
	return env
}

// resetGlobals resets global state between tests
func resetGlobals() {
	outputFormat = ""
	cfgFile = ""
	resetFlags(rootCmd)
}

// resetFlags restores the default value of every flag of cmd and its children
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// executeCommand runs a cobra command with the given args and returns its output
func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func (e *testEnv) addBundle(t *testing.T, repositoryPath, content string) {
	t.Helper()
	writeFile(t, filepath.Join(e.repo, filepath.FromSlash(repositoryPath)), content)
}

func (e *testEnv) writeProject(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name, "xowl-project.yaml")
	writeFile(t, path, content)
	return path
}

func (e *testEnv) builds(t *testing.T) []db.Build {
	t.Helper()
	database, err := db.New(db.Config{Path: e.history})
	if err != nil {
		t.Fatalf("failed to open history: %v", err)
	}
	defer database.Close()
	builds, err := db.NewBuildRepository(database).List(0)
	if err != nil {
		t.Fatalf("failed to list builds: %v", err)
	}
	return builds
}

func assertExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
}

const addonProject = `groupId: org.acme
artifactId: tool
version: 1.2.0
name: Tool
description: An addon
organization:
  name: Acme
bundles:
  - org.acme:core:1.0
build:
  buildUser: tester
`

// =============================================================================
// Command Registration Tests
// =============================================================================

func TestRootCommand_HasSubcommands(t *testing.T) {
	expected := []string{
		"addon", "marketplace", "platform", "product",
		"history", "cache", "storage", "version",
	}

	commands := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		commands[cmd.Name()] = true
	}

	for _, name := range expected {
		if !commands[name] {
			t.Errorf("expected subcommand %q not found on root", name)
		}
	}
}

func TestAssembleCommands_HaveFlags(t *testing.T) {
	for _, name := range []string{"addon", "marketplace", "platform", "product"} {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil {
			t.Fatalf("command %s not found: %v", name, err)
		}
		for _, flag := range []string{"project", "target", "publish"} {
			if cmd.Flags().Lookup(flag) == nil {
				t.Errorf("expected flag --%s on %s", flag, name)
			}
		}
	}
}

func TestSubcommands(t *testing.T) {
	tests := []struct {
		parent   *cobra.Command
		expected []string
	}{
		{historyCmd, []string{"list", "show", "prune"}},
		{cacheCmd, []string{"list", "prune"}},
		{storageCmd, []string{"list"}},
	}
	for _, tt := range tests {
		t.Run(tt.parent.Name(), func(t *testing.T) {
			commands := make(map[string]bool)
			for _, cmd := range tt.parent.Commands() {
				commands[cmd.Name()] = true
			}
			for _, name := range tt.expected {
				if !commands[name] {
					t.Errorf("expected %s subcommand %q not found", tt.parent.Name(), name)
				}
			}
		})
	}
}

// =============================================================================
// Assembly Tests
// =============================================================================

func TestAddon_BuildAndPublish(t *testing.T) {
	env := setupEnv(t)
	env.addBundle(t, "org/acme/core/1.0/core-1.0.jar", "core")
	projectFile := env.writeProject(t, "addon", addonProject)
	target := filepath.Join(env.dir, "out")

	if _, err := executeCommand(rootCmd, "addon", "--project", projectFile, "--target", target, "--publish"); err != nil {
		t.Fatalf("addon failed: %v", err)
	}

	assertExists(t, filepath.Join(target, "tool-1.2.0.zip"))
	assertExists(t, filepath.Join(target, "tool-1.2.0.json"))
	assertExists(t, filepath.Join(env.published, "org", "acme", "tool", "1.2.0", "tool-1.2.0.zip"))
	assertExists(t, filepath.Join(env.published, "org", "acme", "tool", "1.2.0", "tool-1.2.0.json.sha256"))

	builds := env.builds(t)
	if len(builds) != 1 || builds[0].Status != db.BuildStatusDone {
		t.Fatalf("expected one completed build, got %+v", builds)
	}

	if _, err := executeCommand(rootCmd, "history", "show", builds[0].ID, "--logs"); err != nil {
		t.Fatalf("history show failed: %v", err)
	}
	if _, err := executeCommand(rootCmd, "history", "list"); err != nil {
		t.Fatalf("history list failed: %v", err)
	}
	if _, err := executeCommand(rootCmd, "storage", "list", "org/acme/tool"); err != nil {
		t.Fatalf("storage list failed: %v", err)
	}
}

func TestMarketplace_ResolvesPublishedAddons(t *testing.T) {
	env := setupEnv(t)
	env.addBundle(t, "org/acme/core/1.0/core-1.0.jar", "core")
	addonFile := env.writeProject(t, "addon", addonProject)

	if _, err := executeCommand(rootCmd, "addon", "--project", addonFile, "--publish"); err != nil {
		t.Fatalf("addon failed: %v", err)
	}
	resetFlags(rootCmd)

	marketFile := env.writeProject(t, "market", `groupId: org.acme
artifactId: market
version: 1.0.0
addons:
  - org.acme:tool:1.2.0
`)
	if _, err := executeCommand(rootCmd, "marketplace", "--project", marketFile, "--remote"); err != nil {
		t.Fatalf("marketplace failed: %v", err)
	}
	assertExists(t, filepath.Join(env.dir, "market", "target", "market-1.0.0.zip"))

	if _, err := executeCommand(rootCmd, "cache", "list"); err != nil {
		t.Fatalf("cache list failed: %v", err)
	}
	if _, err := executeCommand(rootCmd, "cache", "prune", "--max-size", "0"); err != nil {
		t.Fatalf("cache prune failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.dir, "cache", "org", "acme", "tool", "1.2.0", "tool-1.2.0.zip")); !os.IsNotExist(err) {
		t.Fatalf("expected the cached addon to be evicted, got %v", err)
	}
}

func TestPlatform_MissingBase(t *testing.T) {
	env := setupEnv(t)
	projectFile := env.writeProject(t, "platform", `groupId: org.acme
artifactId: platform
version: 1.0.0
dependencies:
  - org.acme:core:1.0
`)

	_, err := executeCommand(rootCmd, "platform", "--project", projectFile)
	if !errors.Is(err, errors.ErrMissingBaseDistribution) {
		t.Fatalf("expected ErrMissingBaseDistribution, got %v", err)
	}
	if errors.GetExitCode(err) != errors.ExitPackaging {
		t.Fatalf("expected packaging exit code, got %d", errors.GetExitCode(err))
	}

	builds := env.builds(t)
	if len(builds) != 1 || builds[0].ErrorStage != string(db.BuildStatusResolving) {
		t.Fatalf("expected a build failed while resolving, got %+v", builds)
	}
}

func TestAssemble_ProjectNotFound(t *testing.T) {
	env := setupEnv(t)

	_, err := executeCommand(rootCmd, "addon", "--project", filepath.Join(env.dir, "missing.yaml"))
	if !errors.Is(err, errors.ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
	if errors.GetExitCode(err) != errors.ExitUsage {
		t.Fatalf("expected usage exit code, got %d", errors.GetExitCode(err))
	}
}

func TestHistoryShow_NotFound(t *testing.T) {
	setupEnv(t)

	_, err := executeCommand(rootCmd, "history", "show", "missing")
	if !errors.Is(err, errors.ErrBuildNotFound) {
		t.Fatalf("expected ErrBuildNotFound, got %v", err)
	}
}

func TestHistoryPrune(t *testing.T) {
	env := setupEnv(t)

	database, err := db.New(db.Config{Path: env.history})
	if err != nil {
		t.Fatalf("failed to open history: %v", err)
	}
	repo := db.NewBuildRepository(database)
	oldest := &db.Build{Kind: "addon", Coordinate: "org.acme:a:1:jar", Status: db.BuildStatusDone}
	running := &db.Build{Kind: "addon", Coordinate: "org.acme:b:1:jar", Status: db.BuildStatusPackaging}
	newest := &db.Build{Kind: "addon", Coordinate: "org.acme:c:1:jar", Status: db.BuildStatusFailed}
	for _, b := range []*db.Build{oldest, running, newest} {
		if err := repo.Create(b); err != nil {
			t.Fatalf("failed to create build: %v", err)
		}
	}
	database.Close()

	if _, err := executeCommand(rootCmd, "history", "prune", "--keep", "1"); err != nil {
		t.Fatalf("history prune failed: %v", err)
	}

	remaining := map[string]bool{}
	for _, b := range env.builds(t) {
		remaining[b.ID] = true
	}
	if len(remaining) != 2 || !remaining[newest.ID] || !remaining[running.ID] {
		t.Fatalf("expected the newest and the running build to remain, got %v", remaining)
	}

	resetFlags(rootCmd)
	if _, err := executeCommand(rootCmd, "history", "prune", "--keep=-1"); !errors.Is(err, errors.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestOpenStorage(t *testing.T) {
	env := setupEnv(t)

	backend, err := openStorage()
	if err != nil {
		t.Fatalf("openStorage failed: %v", err)
	}
	if backend.Type() != "local" {
		t.Fatalf("expected local backend, got %s", backend.Type())
	}

	blocker := filepath.Join(env.dir, "blocker")
	writeFile(t, blocker, "not a directory")
	viper.Set("storage.local.path", filepath.Join(blocker, "published"))
	if _, err := openStorage(); !errors.Is(err, errors.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestRegisterArtifactTypes(t *testing.T) {
	setupEnv(t)
	t.Cleanup(func() { viper.Set("repository.types", nil) })

	viper.Set("repository.types", map[string]interface{}{
		"osgi-fragment": map[string]interface{}{"extension": "jar", "classifier": "fragment"},
	})
	if err := registerArtifactTypes(); err != nil {
		t.Fatalf("registerArtifactTypes failed: %v", err)
	}
	c := artifact.Coordinate{GroupID: "org.acme", ArtifactID: "frag", Version: "1.0", Type: "osgi-fragment"}
	if got := c.FileName(); got != "org.acme.frag-1.0-fragment.jar" {
		t.Fatalf("expected the configured extension and classifier, got %s", got)
	}

	viper.Set("repository.types", map[string]interface{}{
		"broken": map[string]interface{}{"classifier": "x"},
	})
	if err := registerArtifactTypes(); !errors.Is(err, errors.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestInvalidOutputFormat(t *testing.T) {
	setupEnv(t)

	_, err := executeCommand(rootCmd, "history", "list", "--output", "xml")
	if !errors.Is(err, errors.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestParseSize(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
		wantErr  bool
	}{
		{"0", 0, false},
		{"1024", 1024, false},
		{"500K", 500 << 10, false},
		{"2m", 2 << 20, false},
		{"1GiB", 1 << 30, false},
		{"3MB", 3 << 20, false},
		{"", 0, true},
		{"-1", 0, true},
		{"lots", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseSize(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseSize failed: %v", err)
			}
			if got != tt.expected {
				t.Fatalf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}
