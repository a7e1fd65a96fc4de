package bundler_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/require"

	"github.com/lambGirl/umi-tools/pkg/bundler"
	"github.com/lambGirl/umi-tools/pkg/logger"
	"github.com/lambGirl/umi-tools/pkg/transform"
	"github.com/lambGirl/umi-tools/pkg/types"
	"github.com/lambGirl/umi-tools/pkg/workspace"
)

func TestParseGlobals(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"single", "jquery:$", map[string]string{"jquery": "$"}},
		{"spaces and blanks", " a:A , ,b:B,", map[string]string{"a": "A", "b": "B"}},
		{"no global", "lodash", map[string]string{"lodash": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, bundler.ParseGlobals(tt.input))
		})
	}
}

func TestOutputFile(t *testing.T) {
	tests := map[string]string{
		"index.js":          "index.umd.js",
		"src/widget.js":     "src/widget.umd.js",
		"src/entry.ts":      "src/entry.umd.js",
		"lib/jquery.min.js": "lib/jquery.min.umd.js",
	}
	for in, want := range tests {
		if got := bundler.OutputFile(in); got != want {
			t.Errorf("OutputFile(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNew_InvalidTarget(t *testing.T) {
	_, err := bundler.New(logger.Discard(), bundler.Options{Target: "es3"})
	require.Error(t, err)
}

func TestBuildOptions(t *testing.T) {
	b, err := bundler.New(logger.Discard(), bundler.Options{NodeEnv: "production"})
	require.NoError(t, err)

	root := t.TempDir()
	opts := b.BuildOptions(root, types.BundleEntry{
		File:    "src/index.js",
		Options: types.BundleOptions{Name: "Widget"},
	})

	require.Equal(t, api.FormatIIFE, opts.Format)
	require.Equal(t, "Widget", opts.GlobalName)
	require.Equal(t, filepath.Join(root, "src", "index.umd.js"), opts.Outfile)
	require.Equal(t, []string{filepath.Join(root, "src", "index.js")}, opts.EntryPoints)
	require.Equal(t, `"production"`, opts.Define["process.env.NODE_ENV"])
	require.True(t, opts.Bundle)
	require.Len(t, opts.Plugins, 1)
}

func TestBuildOptions_UndefinedNodeEnv(t *testing.T) {
	b, err := bundler.New(logger.Discard(), bundler.Options{})
	require.NoError(t, err)

	opts := b.BuildOptions(t.TempDir(), types.BundleEntry{File: "index.js"})
	require.Equal(t, "undefined", opts.Define["process.env.NODE_ENV"])
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRun_BundlesWithGlobals(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{
  "name": "widget",
  "umiTools": {"rollupFiles": [["src/index.js", {"name": "Widget"}]]}
}`)
	writeFile(t, filepath.Join(root, "src", "index.js"), `import React from 'react';
import $ from 'jquery';
import { label } from './label';
import './style.css';

export default function Widget() {
  if (process.env.NODE_ENV !== 'production') $('#debug');
  return <span>{label}</span>;
}
`)
	writeFile(t, filepath.Join(root, "src", "label.js"), "export const label = 'hello';\n")
	writeFile(t, filepath.Join(root, "src", "style.css"), ".widget { color: red; }\n")

	b, err := bundler.New(logger.Discard(), bundler.Options{
		Globals: bundler.ParseGlobals("jquery:jQuery"),
		NodeEnv: "development",
	})
	require.NoError(t, err)
	require.NoError(t, b.Run(context.Background(), root, false))

	out, err := os.ReadFile(filepath.Join(root, "src", "index.umd.js"))
	require.NoError(t, err)
	code := string(out)

	require.Contains(t, code, "var Widget =")
	require.Contains(t, code, "module.exports = React")
	require.Contains(t, code, "module.exports = jQuery")
	require.Contains(t, code, "hello")
	require.NotContains(t, code, "process.env.NODE_ENV")

	css, err := os.ReadFile(filepath.Join(root, "src", "index.umd.css"))
	require.NoError(t, err)
	require.True(t, strings.Contains(string(css), "color: red"))
}

func TestRun_WorkspaceSkipsPackagesWithoutEntries(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, workspace.MarkerFile), "{}")
	writeFile(t, filepath.Join(root, "packages", "plain", "package.json"), `{"name": "plain"}`)
	writeFile(t, filepath.Join(root, "packages", "ui", "package.json"),
		`{"name": "ui", "umiTools": {"rollupFiles": [["index.js", {"name": "UI"}]]}}`)
	writeFile(t, filepath.Join(root, "packages", "ui", "index.js"), "export const ui = 1;\n")

	b, err := bundler.New(logger.Discard(), bundler.Options{})
	require.NoError(t, err)

	jobs, err := b.Discover(root)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "ui", jobs[0].Package)

	require.NoError(t, b.Run(context.Background(), root, false))
	require.FileExists(t, filepath.Join(root, "packages", "ui", "index.umd.js"))
}

func TestRun_BundleErrorReported(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"),
		`{"name": "broken", "umiTools": {"rollupFiles": [["index.js", {"name": "Broken"}]]}}`)
	writeFile(t, filepath.Join(root, "index.js"), "import missing from './missing';\n")

	b, err := bundler.New(logger.Discard(), bundler.Options{})
	require.NoError(t, err)

	err = b.Run(context.Background(), root, false)
	require.Error(t, err)
	require.ErrorIs(t, err, transform.ErrTransformFailed)
	require.NoFileExists(t, filepath.Join(root, "index.umd.js"))
}

func TestRun_NoEntries(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"name": "plain"}`)

	b, err := bundler.New(logger.Discard(), bundler.Options{})
	require.NoError(t, err)
	require.NoError(t, b.Run(context.Background(), root, false))
}
