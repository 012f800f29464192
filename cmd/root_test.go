package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aussie/pubtkt/internal/config"
)

// executeCommand runs the command tree with args and returns stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores every flag in the tree to its default, since flag
// variables are package state shared between executions.
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

// isolate points config discovery at empty directories and writes a config
// file using a fresh key directory and small keys. It returns the config path.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvKeyDir, "")
	t.Setenv(config.EnvLogLevel, "")
	t.Setenv(config.EnvLogEnv, "")
	chdir(t, t.TempDir())

	dir := t.TempDir()
	path := filepath.Join(dir, "pubtkt.toml")
	content := fmt.Sprintf("[keys]\ndir = %q\nbits = 2048\n\n[log]\nlevel = \"error\"\n", filepath.Join(dir, "keys"))
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestRootCmd_Initialized(t *testing.T) {
	if rootCmd.Use != "pubtkt" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "pubtkt")
	}
	if rootCmd.Short == "" || rootCmd.Long == "" {
		t.Error("rootCmd should have short and long help")
	}
	if !rootCmd.SilenceUsage {
		t.Error("rootCmd should silence usage on errors")
	}
	if rootCmd.PersistentPreRunE == nil {
		t.Error("rootCmd should load configuration before subcommands run")
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	flags := []struct {
		name      string
		shorthand string
	}{
		{"config", "c"},
		{"key-dir", ""},
		{"log-level", ""},
		{"env-file", ""},
	}

	for _, f := range flags {
		t.Run(f.name, func(t *testing.T) {
			flag := rootCmd.PersistentFlags().Lookup(f.name)
			if flag == nil {
				t.Fatalf("flag %s not found", f.name)
			}
			if flag.Shorthand != f.shorthand {
				t.Errorf("flag %s shorthand = %q, want %q", f.name, flag.Shorthand, f.shorthand)
			}
			if flag.Usage == "" {
				t.Errorf("flag %s has no usage description", f.name)
			}
		})
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	want := map[string]bool{"keys": false, "ticket": false, "version": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("%s command not added to root", name)
		}
	}
}

func TestRootCmd_UnknownSubcommand(t *testing.T) {
	isolate(t)

	if _, err := executeCommand(t, "rotate"); err == nil {
		t.Error("unknown subcommand should fail")
	}
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[keys]\nbits = 512\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := executeCommand(t, "keys", "create", "--config", path)
	if err == nil || !strings.Contains(err.Error(), "failed to load config") {
		t.Errorf("error = %v, want config load failure", err)
	}
}

func TestRootCmd_EnvFile(t *testing.T) {
	cfgPath := isolate(t)
	keyDir := filepath.Join(t.TempDir(), "from-env-file")
	envPath := filepath.Join(t.TempDir(), "pubtkt.env")
	if err := os.WriteFile(envPath, []byte(config.EnvKeyDir+"="+keyDir+"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	// Unset, so godotenv is free to set it; t.Setenv restores it afterwards.
	os.Unsetenv(config.EnvKeyDir)

	out, err := executeCommand(t, "keys", "create", "--config", cfgPath, "--env-file", envPath)
	if err != nil {
		t.Fatalf("keys create error = %v", err)
	}
	if !strings.Contains(out, keyDir) {
		t.Errorf("output = %q, want key directory from env file %q", out, keyDir)
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := executeCommand(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "pubtkt "+Version) {
		t.Errorf("version output = %q", out)
	}
	if !strings.Contains(out, "Git commit:") {
		t.Errorf("version output missing commit: %q", out)
	}
}

// chdir changes the working directory for the duration of the test,
// equivalent to testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
