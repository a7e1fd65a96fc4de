package bundler

import (
	"maps"
	"path/filepath"
	"strings"
)

// DefaultGlobals maps the libraries every bundle treats as external to the
// browser globals they are read from
var DefaultGlobals = map[string]string{
	"react":     "React",
	"react-dom": "ReactDOM",
}

// ParseGlobals parses "module:Global" pairs separated by commas, e.g.
// "jquery:$, lodash:_". Blank pairs are skipped. A pair without a colon maps
// the module to an empty global name.
func ParseGlobals(s string) map[string]string {
	globals := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, ":")
		globals[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return globals
}

// mergeGlobals returns DefaultGlobals overlaid with extra
func mergeGlobals(extra map[string]string) map[string]string {
	globals := maps.Clone(DefaultGlobals)
	maps.Copy(globals, extra)
	return globals
}

// OutputFile returns the bundle path for an entry file: "index.js" becomes
// "index.umd.js". Other extensions are replaced the same way.
func OutputFile(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file)) + ".umd.js"
}
