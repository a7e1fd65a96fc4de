// Package manifest reads the umiTools block of a package descriptor
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lambGirl/umi-tools/pkg/types"
	"gopkg.in/yaml.v3"
)

// Descriptor file names, in lookup order.
const (
	DescriptorJSON = "package.json"
	DescriptorYAML = "package.yaml"
)

// Descriptor is the parsed package descriptor
type Descriptor struct {
	Name     string
	Path     string
	Manifest *types.Manifest
}

type rawDescriptor struct {
	Name     string     `json:"name"`
	UmiTools *toolBlock `json:"umiTools"`
}

type toolBlock struct {
	BrowserFiles []string          `json:"browserFiles"`
	RollupFiles  []json.RawMessage `json:"rollupFiles"`
}

// Read loads the manifest of the package rooted at root
func Read(root string) (*types.Manifest, error) {
	d, err := Load(root)
	if err != nil {
		return nil, err
	}
	return d.Manifest, nil
}

// Load locates and parses the descriptor at root. A missing descriptor is
// reported as ErrDescriptorNotFound.
func Load(root string) (*Descriptor, error) {
	path, data, err := readDescriptor(root)
	if err != nil {
		return nil, err
	}

	var raw rawDescriptor
	if err := decode(path, data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDescriptor, path, err)
	}

	m, err := raw.manifest()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDescriptor, path, err)
	}

	name := raw.Name
	if name == "" {
		name = filepath.Base(root)
	}

	return &Descriptor{Name: name, Path: path, Manifest: m}, nil
}

func readDescriptor(root string) (string, []byte, error) {
	for _, name := range []string{DescriptorJSON, DescriptorYAML} {
		path := filepath.Join(root, name)
		data, err := os.ReadFile(path)
		if err == nil {
			return path, data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}
	return "", nil, fmt.Errorf("%w in %s", ErrDescriptorNotFound, root)
}

// decode parses JSON descriptors directly. YAML goes through a generic map and
// back to JSON so both formats share the json tags.
func decode(path string, data []byte, out *rawDescriptor) error {
	if filepath.Ext(path) == ".json" {
		return json.Unmarshal(data, out)
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, out)
}

func (r *rawDescriptor) manifest() (*types.Manifest, error) {
	m := types.NewManifest()
	if r.UmiTools == nil {
		return m, nil
	}

	for _, f := range r.UmiTools.BrowserFiles {
		if f != "" {
			m.AddBrowserFile(f)
		}
	}

	for i, raw := range r.UmiTools.RollupFiles {
		entry, err := parseBundleEntry(raw)
		if err != nil {
			return nil, fmt.Errorf("rollupFiles[%d]: %w", i, err)
		}
		m.BundleEntries = append(m.BundleEntries, entry)
	}

	return m, nil
}

// parseBundleEntry accepts "file", ["file"] and ["file", {"name": "Lib"}]
func parseBundleEntry(raw json.RawMessage) (types.BundleEntry, error) {
	var file string
	if err := json.Unmarshal(raw, &file); err == nil {
		if file == "" {
			return types.BundleEntry{}, errors.New("empty entry")
		}
		return types.BundleEntry{File: file}, nil
	}

	var tuple []json.RawMessage
	if err := json.Unmarshal(raw, &tuple); err != nil {
		return types.BundleEntry{}, fmt.Errorf("expected string or [file, options]: %w", err)
	}
	if len(tuple) == 0 || len(tuple) > 2 {
		return types.BundleEntry{}, fmt.Errorf("expected 1 or 2 elements, got %d", len(tuple))
	}

	var entry types.BundleEntry
	if err := json.Unmarshal(tuple[0], &entry.File); err != nil || entry.File == "" {
		return types.BundleEntry{}, errors.New("entry file must be a non-empty string")
	}
	if len(tuple) == 2 && string(tuple[1]) != "null" {
		if err := json.Unmarshal(tuple[1], &entry.Options); err != nil {
			return types.BundleEntry{}, fmt.Errorf("invalid options: %w", err)
		}
	}
	return entry, nil
}
