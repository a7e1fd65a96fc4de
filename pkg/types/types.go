// Package types defines the data model shared by the umi-tools build pipeline
package types

import (
	"io/fs"
	"path"
	"slices"
	"strings"
)

// Source and output extensions understood by the pipeline.
const (
	ExtJS       = ".js"
	ExtTS       = ".ts"
	CompiledExt = ExtJS
)

// TargetEnvironment selects the runtime a transformed file is compiled for
type TargetEnvironment string

const (
	TargetNode    TargetEnvironment = "node"
	TargetBrowser TargetEnvironment = "browser"
)

// Language features a TransformProfile can switch on.
const (
	FeatureTypeScript      = "typescript"
	FeatureJSX             = "jsx"
	FeaturePreserveModules = "preserve-modules"
	FeatureCommonJS        = "commonjs"
	FeatureClassProperties = "class-properties"
)

// TransformProfile is the resolved set of options applied when converting one
// source file. It is derived per file and never persisted.
type TransformProfile struct {
	Target   TargetEnvironment `json:"target"`
	Features []string          `json:"features"`
}

// Has reports whether the profile enables the given feature
func (p TransformProfile) Has(feature string) bool {
	return slices.Contains(p.Features, feature)
}

// IsBrowser reports whether the profile targets browsers
func (p TransformProfile) IsBrowser() bool {
	return p.Target == TargetBrowser
}

// BundleOptions are the per-entry options of a bundle entry
type BundleOptions struct {
	Name string `json:"name,omitempty"`
}

// BundleEntry is one entry point the bundler packages into a distributable file
type BundleEntry struct {
	File    string        `json:"file"`
	Options BundleOptions `json:"options"`
}

// Manifest is the part of a package descriptor consumed by the build pipeline.
// It is a read-only snapshot loaded once per invocation.
type Manifest struct {
	BrowserFiles  map[string]struct{}
	BundleEntries []BundleEntry
}

// NewManifest returns an empty manifest
func NewManifest() *Manifest {
	return &Manifest{
		BrowserFiles:  make(map[string]struct{}),
		BundleEntries: []BundleEntry{},
	}
}

// AddBrowserFile registers a path, relative to the source root, as browser-targeted
func (m *Manifest) AddBrowserFile(rel string) {
	if m.BrowserFiles == nil {
		m.BrowserFiles = make(map[string]struct{})
	}
	m.BrowserFiles[NormalizeRelPath(rel)] = struct{}{}
}

// IsBrowserFile reports whether rel (relative to the source root) is listed in browserFiles
func (m *Manifest) IsBrowserFile(rel string) bool {
	if m == nil || len(m.BrowserFiles) == 0 {
		return false
	}
	_, ok := m.BrowserFiles[NormalizeRelPath(rel)]
	return ok
}

// Package is a buildable unit: a descriptor, a source root and an output root.
// Created once at discovery and never mutated afterwards.
type Package struct {
	Name      string
	Root      string
	SourceDir string
	OutputDir string
	Manifest  *Manifest
}

// FileTask is the unit flowing through the pipeline for a single file
type FileTask struct {
	SourcePath   string
	RelativePath string
	Content      []byte
	Mode         fs.FileMode
}

// NormalizeRelPath converts a relative path to the slash-separated, cleaned
// form used for manifest lookups.
func NormalizeRelPath(rel string) string {
	rel = strings.ReplaceAll(rel, "\\", "/")
	rel = path.Clean(rel)
	return strings.TrimPrefix(rel, "./")
}
