package transform

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/lambGirl/umi-tools/pkg/types"
)

// Defaults for the runtime targets.
const (
	DefaultNodeVersion   = "8"
	DefaultBrowserTarget = "es2015"
)

var targets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

// ParseTarget maps a target name such as "es2017" to its esbuild value
func ParseTarget(name string) (api.Target, error) {
	t, ok := targets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return api.DefaultTarget, fmt.Errorf("unknown browser target %q", name)
	}
	return t, nil
}

// EsbuildOption configures an Esbuild transformer
type EsbuildOption func(*Esbuild) error

// WithNodeVersion sets the node engine version node-targeted files are compiled for
func WithNodeVersion(version string) EsbuildOption {
	return func(e *Esbuild) error {
		version = strings.TrimPrefix(strings.TrimSpace(version), "v")
		if version == "" {
			return fmt.Errorf("empty node version")
		}
		e.nodeVersion = version
		return nil
	}
}

// WithBrowserTarget sets the language level of browser-targeted files
func WithBrowserTarget(name string) EsbuildOption {
	return func(e *Esbuild) error {
		t, err := ParseTarget(name)
		if err != nil {
			return err
		}
		e.browserTarget = t
		return nil
	}
}

// Esbuild transforms files in memory with the esbuild transform API
type Esbuild struct {
	nodeVersion   string
	browserTarget api.Target
}

// NewEsbuild creates an esbuild transformer
func NewEsbuild(opts ...EsbuildOption) (*Esbuild, error) {
	e := &Esbuild{
		nodeVersion:   DefaultNodeVersion,
		browserTarget: targets[DefaultBrowserTarget],
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Options returns the esbuild options used for path under profile
func (e *Esbuild) Options(path string, profile types.TransformProfile) api.TransformOptions {
	opts := api.TransformOptions{
		Loader:     api.LoaderJS,
		Sourcefile: filepath.ToSlash(path),
		LogLevel:   api.LogLevelSilent,
		Charset:    api.CharsetUTF8,
	}

	switch {
	case filepath.Ext(path) == types.ExtTS && profile.Has(types.FeatureTypeScript):
		opts.Loader = api.LoaderTS
	case profile.Has(types.FeatureJSX):
		opts.Loader = api.LoaderJSX
		opts.JSX = api.JSXTransform
	}

	if profile.IsBrowser() {
		opts.Platform = api.PlatformBrowser
		opts.Target = e.browserTarget
	} else {
		opts.Platform = api.PlatformNode
		opts.Engines = []api.Engine{{Name: api.EngineNode, Version: e.nodeVersion}}
	}

	switch {
	case profile.Has(types.FeatureCommonJS):
		opts.Format = api.FormatCommonJS
	case profile.Has(types.FeaturePreserveModules):
		opts.Format = api.FormatESModule
	}

	return opts
}

// Transform implements Transformer
func (e *Esbuild) Transform(ctx context.Context, content []byte, path string, profile types.TransformProfile) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := api.Transform(string(content), e.Options(path, profile))
	if len(result.Errors) > 0 {
		return nil, FromMessages(path, result.Errors)
	}
	return result.Code, nil
}

// FromMessages converts esbuild error messages into a TransformError for path.
// msgs must not be empty.
func FromMessages(path string, msgs []api.Message) *TransformError {
	first := msgs[0]
	te := &TransformError{Path: path, Message: first.Text}
	if first.Location != nil {
		te.Line = first.Location.Line
		te.Column = first.Location.Column
	}
	if len(msgs) > 1 {
		te.Message = fmt.Sprintf("%s (and %d more errors)", first.Text, len(msgs)-1)
	}
	return te
}
