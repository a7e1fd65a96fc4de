// Package bundler builds browser bundles for the entries listed under
// umiTools.rollupFiles. Each entry becomes one self-executing script that
// exposes its exports under a global name and reads react, react-dom and any
// configured module from existing globals instead of bundling them.
package bundler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"golang.org/x/sync/errgroup"

	"github.com/lambGirl/umi-tools/pkg/logger"
	"github.com/lambGirl/umi-tools/pkg/manifest"
	"github.com/lambGirl/umi-tools/pkg/transform"
	"github.com/lambGirl/umi-tools/pkg/types"
	"github.com/lambGirl/umi-tools/pkg/workspace"
)

const globalsNamespace = "umi-globals"

// ErrNoEntries is returned when no package declares a bundle entry
var ErrNoEntries = errors.New("no rollupFiles entries found")

// Options configures a Bundler
type Options struct {
	// Globals are extra externals, module name to global name
	Globals map[string]string
	// NodeEnv replaces process.env.NODE_ENV. Empty leaves it undefined.
	NodeEnv string
	// Target is the language level, e.g. "es2015"
	Target string
}

// Bundler builds the bundle entries of every package under a directory
type Bundler struct {
	log     logger.Logger
	globals map[string]string
	nodeEnv string
	target  api.Target
}

// New creates a Bundler
func New(log logger.Logger, opts Options) (*Bundler, error) {
	name := opts.Target
	if name == "" {
		name = transform.DefaultBrowserTarget
	}
	target, err := transform.ParseTarget(name)
	if err != nil {
		return nil, err
	}

	return &Bundler{
		log:     log,
		globals: mergeGlobals(opts.Globals),
		nodeEnv: opts.NodeEnv,
		target:  target,
	}, nil
}

// Job is one entry of one package
type Job struct {
	Package string
	Root    string
	Entry   types.BundleEntry
}

// Discover reads the manifests of every package under cwd and returns their
// bundle entries in package order
func (b *Bundler) Discover(cwd string) ([]Job, error) {
	layout, err := workspace.Locate(cwd)
	if err != nil {
		return nil, err
	}

	var jobs []Job
	for _, root := range layout.Packages {
		desc, err := manifest.Load(root)
		if err != nil {
			return nil, err
		}
		for _, entry := range desc.Manifest.BundleEntries {
			jobs = append(jobs, Job{Package: desc.Name, Root: root, Entry: entry})
		}
	}
	return jobs, nil
}

// Run bundles every entry under cwd. Packages are bundled concurrently and
// the entries of one package in order. In watch mode every entry is rebuilt
// on change until ctx is done.
func (b *Bundler) Run(ctx context.Context, cwd string, watch bool) error {
	jobs, err := b.Discover(cwd)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		b.log.Warn(ErrNoEntries.Error())
		return nil
	}

	if watch {
		return b.watchAll(ctx, jobs)
	}

	byPackage := make(map[string][]Job)
	var order []string
	for _, j := range jobs {
		if _, ok := byPackage[j.Root]; !ok {
			order = append(order, j.Root)
		}
		byPackage[j.Root] = append(byPackage[j.Root], j)
	}

	errs := make([][]error, len(order))
	g, gctx := errgroup.WithContext(ctx)
	for i, root := range order {
		g.Go(func() error {
			for _, j := range byPackage[root] {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if _, err := b.Bundle(j); err != nil {
					errs[i] = append(errs[i], err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(slices.Concat(errs...)...)
}

// Bundle builds one entry and returns the written bundle path
func (b *Bundler) Bundle(j Job) (string, error) {
	log := b.log.WithPackage(j.Package)
	log.Info(fmt.Sprintf("build %s", j.Entry.File))

	opts := b.BuildOptions(j.Root, j.Entry)
	result := api.Build(opts)
	if len(result.Errors) > 0 {
		err := transform.FromMessages(j.Entry.File, result.Errors)
		log.Error("Bundle failed", logger.WithField("error", err.Error()))
		return "", err
	}
	for _, w := range result.Warnings {
		log.Warn(w.Text, logger.WithField("file", j.Entry.File))
	}

	log.Success(fmt.Sprintf("bundled %s", filepath.ToSlash(OutputFile(j.Entry.File))))
	return opts.Outfile, nil
}

// BuildOptions returns the esbuild options for entry of the package at root
func (b *Bundler) BuildOptions(root string, entry types.BundleEntry) api.BuildOptions {
	define := "undefined"
	if b.nodeEnv != "" {
		encoded, _ := json.Marshal(b.nodeEnv)
		define = string(encoded)
	}

	return api.BuildOptions{
		AbsWorkingDir: root,
		EntryPoints:   []string{filepath.Join(root, filepath.FromSlash(entry.File))},
		Outfile:       filepath.Join(root, filepath.FromSlash(OutputFile(entry.File))),
		Bundle:        true,
		Write:         true,
		Format:        api.FormatIIFE,
		GlobalName:    entry.Options.Name,
		Platform:      api.PlatformBrowser,
		Target:        b.target,
		MainFields:    []string{"module", "jsnext:main", "browser", "main"},
		Loader:        map[string]api.Loader{".js": api.LoaderJSX},
		JSX:           api.JSXTransform,
		Define:        map[string]string{"process.env.NODE_ENV": define},
		LogLevel:      api.LogLevelSilent,
		Plugins:       []api.Plugin{b.globalsPlugin()},
	}
}

// globalsPlugin resolves external modules to a stub that reads the global
func (b *Bundler) globalsPlugin() api.Plugin {
	modules := make([]string, 0, len(b.globals))
	for m := range b.globals {
		modules = append(modules, regexp.QuoteMeta(m))
	}
	sort.Strings(modules)
	filter := "^(" + strings.Join(modules, "|") + ")$"

	return api.Plugin{
		Name: globalsNamespace,
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: filter},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{Path: args.Path, Namespace: globalsNamespace}, nil
				})
			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: globalsNamespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					global := b.globals[args.Path]
					if global == "" {
						return api.OnLoadResult{}, fmt.Errorf("no global name for external module %q", args.Path)
					}
					contents := fmt.Sprintf("module.exports = %s;", global)
					return api.OnLoadResult{Contents: &contents, Loader: api.LoaderJS}, nil
				})
		},
	}
}

func (b *Bundler) watchAll(ctx context.Context, jobs []Job) error {
	var contexts []api.BuildContext
	defer func() {
		for _, c := range contexts {
			c.Dispose()
		}
	}()

	for _, j := range jobs {
		c, err := b.watch(j)
		if err != nil {
			return err
		}
		contexts = append(contexts, c)
	}

	<-ctx.Done()
	return nil
}

func (b *Bundler) watch(j Job) (api.BuildContext, error) {
	log := b.log.WithPackage(j.Package)
	log.Info(fmt.Sprintf("build %s", j.Entry.File))

	opts := b.BuildOptions(j.Root, j.Entry)
	opts.Plugins = append(opts.Plugins, api.Plugin{
		Name: "umi-watch-log",
		Setup: func(build api.PluginBuild) {
			build.OnStart(func() (api.OnStartResult, error) {
				log.Watch(fmt.Sprintf("[start] %s", j.Entry.File))
				return api.OnStartResult{}, nil
			})
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				if len(result.Errors) > 0 {
					err := transform.FromMessages(j.Entry.File, result.Errors)
					log.Error("Bundle failed", logger.WithField("error", err.Error()))
				} else {
					log.Watch(fmt.Sprintf("[end] %s", j.Entry.File))
				}
				return api.OnEndResult{}, nil
			})
		},
	})

	c, ctxErr := api.Context(opts)
	if ctxErr != nil {
		if len(ctxErr.Errors) == 0 {
			return nil, fmt.Errorf("failed to create build context for %s", j.Entry.File)
		}
		return nil, transform.FromMessages(j.Entry.File, ctxErr.Errors)
	}
	if err := c.Watch(api.WatchOptions{}); err != nil {
		c.Dispose()
		return nil, fmt.Errorf("failed to watch %s: %w", j.Entry.File, err)
	}
	return c, nil
}
