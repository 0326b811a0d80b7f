package ranker

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/dekelcohen/CTags/internal/profile"
)

// ImportResolution is where the referenced symbol was imported from
type ImportResolution struct {
	// Path is the resolved file, or the best guess when nothing exists on
	// disk. Empty when no import statement was found.
	Path string

	// Exists reports whether Path was found on disk
	Exists bool
}

// FileSystem answers the existence probes of import resolution
type FileSystem interface {
	Stat(name string) (fs.FileInfo, error)
}

type osFS struct{}

func (osFS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

// importResolution locates and resolves the import of the symbol once per
// pass
func (p *pass) importResolution() ImportResolution {
	if p.importDone {
		return p.imported
	}
	p.importDone = true
	p.imported = p.resolveImport()
	return p.imported
}

func (p *pass) resolveImport() ImportResolution {
	tmpl := p.imports.SymToImportPath
	if tmpl == "" || p.view == nil {
		return ImportResolution{}
	}

	symbol := p.ref.Symbol
	if len(p.ref.Receiver) > 0 {
		symbol = p.ref.Receiver[0]
	}
	if symbol == "" {
		return ImportResolution{}
	}

	re, err := regexp.Compile(profile.Expand(tmpl, symbol))
	if err != nil {
		p.r.logger.Warn("rank.import.pattern", "source", p.lang.Source, "error", err)
		return ImportResolution{}
	}
	region, ok := p.view.Find(re, 0)
	if !ok {
		return ImportResolution{}
	}
	m := re.FindStringSubmatch(p.view.Substr(region))
	if m == nil {
		return ImportResolution{}
	}

	var raw string
	for _, g := range m[1:] {
		if g != "" {
			raw = g
			break
		}
	}
	if raw == "" {
		return ImportResolution{}
	}

	res := p.probe(p.absImportPath(raw))
	p.r.logger.Debug("rank.import.resolved",
		"symbol", symbol, "import", raw, "path", res.Path, "exists", res.Exists)
	return res
}

// absImportPath turns an import specifier into a filesystem path. Relative
// specifiers resolve against the current file's directory; bare package
// specifiers are returned unchanged.
func (p *pass) absImportPath(raw string) string {
	if filepath.IsAbs(raw) {
		return raw
	}
	if p.relPathRe == nil || !p.relPathRe.MatchString(raw) || p.currentFile == "" {
		return raw
	}
	joined := filepath.Join(filepath.Dir(p.currentFile), raw)
	if real, err := filepath.EvalSymlinks(joined); err == nil {
		return real
	}
	return joined
}

// probe finds the file an import path names. A path with an extension is
// checked as is. Otherwise a directory is tried with its default folder
// file first, then the path itself, each with every configured extension.
func (p *pass) probe(path string) ImportResolution {
	isDir := p.isDir(path)
	if hasExt(path) && !isDir {
		return ImportResolution{Path: path, Exists: p.isFile(path)}
	}

	var bases []string
	if isDir && p.imports.DefaultFolderFile != "" {
		bases = append(bases, filepath.Join(path, p.imports.DefaultFolderFile))
	}
	bases = append(bases, path)

	for _, base := range bases {
		for _, ext := range p.imports.FileExtensions {
			candidate := base + "." + ext
			if p.isFile(candidate) {
				return ImportResolution{Path: candidate, Exists: true}
			}
		}
	}
	return ImportResolution{Path: path}
}

// isFile and isDir treat every stat failure as absence
func (p *pass) isFile(path string) bool {
	info, err := p.r.fs.Stat(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			p.r.logger.Debug("rank.import.stat", "path", path, "error", err)
		}
		return false
	}
	return info.Mode().IsRegular()
}

func (p *pass) isDir(path string) bool {
	info, err := p.r.fs.Stat(path)
	return err == nil && info.IsDir()
}
