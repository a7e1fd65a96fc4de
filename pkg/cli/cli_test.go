package cli_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/lambGirl/umi-tools/internal/engine"
	"github.com/lambGirl/umi-tools/pkg/cli"
	"github.com/lambGirl/umi-tools/pkg/completion"
	"github.com/lambGirl/umi-tools/pkg/config"
	"github.com/lambGirl/umi-tools/pkg/transform"
	"github.com/lambGirl/umi-tools/pkg/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newPackage(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"name": "demo"}`)
	writeFile(t, filepath.Join(root, "src", "index.ts"), "export const x = 1;\n")
	writeFile(t, filepath.Join(root, "src", "index.test.ts"), "test();\n")
	return root
}

type testCLI struct {
	*cli.CLI
	out      *bytes.Buffer
	signals  *atomic.Int32
	compiled *atomic.Int32
}

func newTestCLI() *testCLI {
	out := &bytes.Buffer{}
	signals := &atomic.Int32{}
	compiled := &atomic.Int32{}

	cfg := cli.NewConfig()
	cfg.Version = "1.2.3"
	c := cli.NewCLIWithOutput(cfg, out, out).WithDependencies(engine.Dependencies{
		Transformer: transform.Func(func(_ context.Context, content []byte, _ string, _ types.TransformProfile) ([]byte, error) {
			compiled.Add(1)
			return content, nil
		}),
		Signaler: completion.SignalerFunc(func(string) error {
			signals.Add(1)
			return nil
		}),
	})
	return &testCLI{CLI: c, out: out, signals: signals, compiled: compiled}
}

func TestVersionFlag(t *testing.T) {
	for _, flag := range []string{"--version", "-v"} {
		t.Run(flag, func(t *testing.T) {
			c := newTestCLI()
			if err := c.Execute([]string{flag}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := c.out.String(); got != "umi-tools v1.2.3\n" {
				t.Errorf("unexpected version output %q", got)
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	c := newTestCLI()
	if err := c.Execute([]string{"version", "--cwd", filepath.Join(t.TempDir(), "missing")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.out.String(); got != "umi-tools v1.2.3\n" {
		t.Errorf("unexpected version output %q", got)
	}
}

func TestUnknownCommand(t *testing.T) {
	c := newTestCLI()
	err := c.Execute([]string{"test"})
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("expected unknown command error, got %v", err)
	}
}

func TestBuildCommand(t *testing.T) {
	root := newPackage(t)

	c := newTestCLI()
	if err := c.Execute([]string{"build", "--cwd", root}); err != nil {
		t.Fatalf("build failed: %v\n%s", err, c.out.String())
	}

	if _, err := os.Stat(filepath.Join(root, "lib", "index.js")); err != nil {
		t.Errorf("expected lib/index.js: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "lib", "index.test.js")); !os.IsNotExist(err) {
		t.Error("test files should not be compiled")
	}
	if c.signals.Load() != 1 || c.compiled.Load() != 1 {
		t.Errorf("signals=%d compiled=%d, want 1 and 1", c.signals.Load(), c.compiled.Load())
	}
}

func TestBuildCommand_Settings(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, root string)
		args   []string
		output string
	}{
		{
			name:   "flag",
			args:   []string{"--output-dir", "es"},
			output: "es",
		},
		{
			name: "config file",
			setup: func(t *testing.T, root string) {
				writeFile(t, filepath.Join(root, "umi-tools.config.yaml"), "outputDir: dist\n")
			},
			output: "dist",
		},
		{
			name: "environment overrides config file",
			setup: func(t *testing.T, root string) {
				writeFile(t, filepath.Join(root, "umi-tools.config.json"), `{"outputDir": "dist"}`)
				t.Setenv("UMI_TOOLS_OUTPUTDIR", "cjs")
			},
			output: "cjs",
		},
		{
			name: "flag overrides environment",
			setup: func(t *testing.T, root string) {
				t.Setenv("UMI_TOOLS_OUTPUTDIR", "cjs")
			},
			args:   []string{"--output-dir", "out"},
			output: "out",
		},
		{
			name: "dotenv",
			setup: func(t *testing.T, root string) {
				t.Setenv("UMI_TOOLS_OUTPUTDIR", "")
				os.Unsetenv("UMI_TOOLS_OUTPUTDIR")
				writeFile(t, filepath.Join(root, ".env"), "UMI_TOOLS_OUTPUTDIR=from-env\n")
			},
			output: "from-env",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newPackage(t)
			if tt.setup != nil {
				tt.setup(t, root)
			}

			c := newTestCLI()
			args := append([]string{"build", "--cwd", root}, tt.args...)
			if err := c.Execute(args); err != nil {
				t.Fatalf("build failed: %v\n%s", err, c.out.String())
			}

			if _, err := os.Stat(filepath.Join(root, tt.output, "index.js")); err != nil {
				t.Errorf("expected output in %s: %v", tt.output, err)
			}
		})
	}
}

func TestBuildCommand_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T) string
		target error
	}{
		{
			name: "missing descriptor",
			setup: func(t *testing.T) string {
				root := t.TempDir()
				writeFile(t, filepath.Join(root, "src", "a.js"), "a;\n")
				return root
			},
			target: engine.ErrConfiguration,
		},
		{
			name: "workspace without packages",
			setup: func(t *testing.T) string {
				root := t.TempDir()
				writeFile(t, filepath.Join(root, "lerna.json"), "{}")
				return root
			},
			target: engine.ErrConfiguration,
		},
		{
			name: "invalid config file",
			setup: func(t *testing.T) string {
				root := newPackage(t)
				writeFile(t, filepath.Join(root, "umi-tools.config.json"), `{"outputDir": "src"}`)
				return root
			},
			target: config.ErrInvalidConfig,
		},
		{
			name: "missing cwd",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "nope")
			},
			target: config.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := tt.setup(t)

			c := newTestCLI()
			err := c.Execute([]string{"build", "--cwd", root})
			if !errors.Is(err, tt.target) {
				t.Fatalf("expected %v, got %v", tt.target, err)
			}
			if _, statErr := os.Stat(filepath.Join(root, "lib")); !os.IsNotExist(statErr) {
				t.Error("no output should be written on configuration errors")
			}
			if c.signals.Load() != 0 {
				t.Error("completion must not be signalled on configuration errors")
			}
		})
	}
}

func TestBuildCommand_WatchStopsWithContext(t *testing.T) {
	root := newPackage(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newTestCLI()
	done := make(chan error, 1)
	go func() {
		done <- c.ExecuteContext(ctx, []string{"build", "-w", "--cwd", root})
	}()

	waitFor(t, func() bool { return c.signals.Load() == 1 })
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("watch returned error: %v", err)
	}
}

func TestRollupCommand(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"),
		`{"name": "widget", "umiTools": {"rollupFiles": [["index.js", {"name": "Widget"}]]}}`)
	writeFile(t, filepath.Join(root, "index.js"), "import $ from 'jquery';\nexport default $;\n")

	c := newTestCLI()
	if err := c.Execute([]string{"rollup", "--cwd", root, "-g", "jquery:jQuery"}); err != nil {
		t.Fatalf("rollup failed: %v\n%s", err, c.out.String())
	}

	out, err := os.ReadFile(filepath.Join(root, "index.umd.js"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "module.exports = jQuery") {
		t.Errorf("expected jquery to be read from the global, got:\n%s", out)
	}
}

func TestBuildCommand_InterruptedBuildFails(t *testing.T) {
	root := newPackage(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := &atomic.Int32{}
	out := &bytes.Buffer{}
	cfg := cli.NewConfig()
	c := cli.NewCLIWithOutput(cfg, out, out).WithDependencies(engine.Dependencies{
		Transformer: transform.Func(func(_ context.Context, content []byte, _ string, _ types.TransformProfile) ([]byte, error) {
			cancel()
			return content, nil
		}),
		Signaler: completion.SignalerFunc(func(string) error {
			signals.Add(1)
			return nil
		}),
	})

	err := c.ExecuteContext(ctx, []string{"build", "--cwd", root})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected an interrupted build to fail, got %v", err)
	}
	if signals.Load() != 0 {
		t.Error("completion must not be signalled for an interrupted build")
	}
}
