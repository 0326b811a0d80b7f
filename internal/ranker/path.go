package ranker

import "strings"

// splitPath strips leading relative markers from a tag or import path and
// splits it into components. The extension, dot included, is removed from
// the last component and returned separately.
//
//	splitPath("./lib/net/http.js")  // ["lib" "net" "http"], ".js"
//	splitPath("../.eslintrc")       // ["eslintrc"], ""
func splitPath(p string) ([]string, string) {
	p = strings.TrimLeft(p, `./\`)
	parts := strings.FieldsFunc(p, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	if len(parts) == 0 {
		return nil, ""
	}

	last := len(parts) - 1
	stem, ext := splitExt(parts[last])
	parts[last] = stem
	return parts, ext
}

// splitExt splits a file name at its last dot. Leading dots never start an
// extension, so ".bashrc" has none.
func splitExt(name string) (string, string) {
	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 || strings.TrimLeft(name[:dot], ".") == "" {
		return name, ""
	}
	return name[:dot], name[dot:]
}

// hasExt reports whether the final path component carries an extension
func hasExt(p string) bool {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		p = p[i+1:]
	}
	_, ext := splitExt(p)
	return ext != ""
}

// sameFile reports whether a tag path names the current file: a
// case-insensitive suffix match after leading dots are removed
func sameFile(current, tagPath string) bool {
	if current == "" || tagPath == "" {
		return false
	}
	current = strings.ToLower(strings.ReplaceAll(current, `\`, "/"))
	tagPath = strings.ToLower(strings.ReplaceAll(strings.TrimLeft(tagPath, "."), `\`, "/"))
	return strings.HasSuffix(current, tagPath)
}
