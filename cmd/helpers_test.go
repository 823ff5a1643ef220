package cmd

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/iksnae/multichat/internal"
	"github.com/iksnae/multichat/testutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// cmdEnv points every command at a fake backend and a private home directory
type cmdEnv struct {
	dir     string
	backend *testutil.FakeBackend
}

func newCmdEnv(t *testing.T) *cmdEnv {
	t.Helper()
	dir := testutil.CreateTempDir(t)
	fake := testutil.NewFakeBackend(t)

	t.Setenv("HOME", dir)
	t.Setenv("MULTICHAT_API_BASE_URL", fake.APIBaseURL())
	t.Setenv("MULTICHAT_INFERENCE_BASE_URL", fake.InferenceBaseURL())
	t.Setenv("MULTICHAT_STORAGE_PATH", filepath.Join(dir, "multichat.db"))
	t.Setenv("MULTICHAT_MODELS_FILE", filepath.Join(dir, "models.yaml"))
	t.Setenv("MULTICHAT_CHAT_SETTLE_DELAY", "0s")

	internal.SetLogOutput(io.Discard)
	t.Cleanup(func() {
		internal.SetLogOutput(nil)
		cfg = nil
	})
	return &cmdEnv{dir: dir, backend: fake}
}

func (e *cmdEnv) storagePath() string {
	return filepath.Join(e.dir, "multichat.db")
}

func (e *cmdEnv) modelsPath() string {
	return filepath.Join(e.dir, "models.yaml")
}

// app loads the config the way PersistentPreRunE does and opens an app.
func (e *cmdEnv) app(t *testing.T, withCoordinator bool) *app {
	t.Helper()
	loaded, err := internal.LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	cfg = loaded
	a, err := newApp(context.Background(), withCoordinator)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

// runCommand executes rootCmd with args and returns what it wrote to its
// output streams.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores every flag to its default; cobra keeps parsed values
// between Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func writeModels(t *testing.T, env *cmdEnv, yaml string) {
	t.Helper()
	testutil.WriteFile(t, env.dir, "models.yaml", []byte(yaml))
}
