// Package router decides how each source file is turned into output
package router

import (
	"path"
	"slices"
	"strings"

	"github.com/lambGirl/umi-tools/pkg/types"
)

// TemplatesSegment names a subtree that is always copied verbatim
const TemplatesSegment = "templates"

// Decision is the routing result for one file
type Decision struct {
	// Transform is false for files that are copied byte-for-byte
	Transform bool
	Profile   types.TransformProfile
}

// BrowserProfile is applied to files listed in browserFiles
func BrowserProfile() types.TransformProfile {
	return types.TransformProfile{
		Target: types.TargetBrowser,
		Features: []string{
			types.FeatureTypeScript,
			types.FeatureJSX,
			types.FeaturePreserveModules,
			types.FeatureClassProperties,
		},
	}
}

// NodeProfile is applied to every other transformable file
func NodeProfile() types.TransformProfile {
	return types.TransformProfile{
		Target: types.TargetNode,
		Features: []string{
			types.FeatureTypeScript,
			types.FeatureCommonJS,
			types.FeatureClassProperties,
		},
	}
}

// Route derives the transform profile of rel from the manifest
func Route(rel string, m *types.Manifest) types.TransformProfile {
	if m.IsBrowserFile(rel) {
		return BrowserProfile()
	}
	return NodeProfile()
}

// Eligible reports whether rel has a recognized source extension and lies
// outside any templates directory.
func Eligible(rel string) bool {
	rel = types.NormalizeRelPath(rel)
	ext := path.Ext(rel)
	if ext != types.ExtJS && ext != types.ExtTS {
		return false
	}
	return !slices.Contains(strings.Split(rel, "/"), TemplatesSegment)
}

// Decide combines Eligible and Route
func Decide(rel string, m *types.Manifest) Decision {
	if !Eligible(rel) {
		return Decision{}
	}
	return Decision{Transform: true, Profile: Route(rel, m)}
}

// OutputPath returns the output-relative path for rel. Transformed files get
// the compiled extension, copied files keep theirs.
func OutputPath(rel string, transform bool) string {
	rel = types.NormalizeRelPath(rel)
	if !transform {
		return rel
	}
	return strings.TrimSuffix(rel, path.Ext(rel)) + types.CompiledExt
}
