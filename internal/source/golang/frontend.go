// Package golang is the Go front end for the language-neutral source
// abstraction. It parses Go files, extracts struct declarations with their
// bson/json serialization tags, and materializes call-site receiver chains
// so downstream analyzers can walk a call back to the collection accessor
// that produced its receiver.
package golang

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/doclens-dev/doclens/internal/source"
)

// FrontEnd implements source.FrontEnd for Go.
type FrontEnd struct {
	// SkipTests excludes _test.go files from repository loads.
	SkipTests bool
	// SkipGenerated excludes generated files (.pb.go and files carrying the
	// standard "Code generated" header).
	SkipGenerated bool
}

// New returns a front end with the default skip filters enabled.
func New() *FrontEnd {
	return &FrontEnd{SkipTests: true, SkipGenerated: true}
}

// ParseFile parses a single Go file. When src is nil the file is read from
// disk. The result carries syntax-level information only; no type checking
// is performed, so cross-package references stay textual.
func (fe *FrontEnd) ParseFile(path string, src []byte) (*source.File, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return convertFile(fset, f, path, ""), nil
}

// LoadRepository parses every Go file under dir. Loading goes through
// go/packages so import paths are resolved the same way the build does, but
// only syntax is requested: extraction must succeed on repositories whose
// dependencies are not fetchable.
func (fe *FrontEnd) LoadRepository(ctx context.Context, dir string) ([]*source.File, error) {
	cfg := &packages.Config{
		Mode:    packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles | packages.NeedSyntax,
		Dir:     dir,
		Context: ctx,
		Tests:   false,
	}

	pkgs, err := packages.Load(cfg, "./...")
	if err != nil {
		// go/packages requires a resolvable module; fall back to walking the
		// tree with the plain parser so a broken go.mod does not abort a scan.
		return fe.walkRepository(ctx, dir)
	}

	var files []*source.File
	fset := token.NewFileSet()
	for _, pkg := range pkgs {
		for _, path := range pkg.CompiledGoFiles {
			if fe.shouldSkip(path) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			f, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
			if err != nil {
				continue // per-file failure, omit this file's contributions
			}
			files = append(files, convertFile(fset, f, path, pkg.PkgPath))
		}
	}
	if len(files) == 0 {
		return fe.walkRepository(ctx, dir)
	}
	return files, nil
}

// walkRepository is the degraded load path: a plain filesystem walk with the
// single-file parser, used when go/packages cannot resolve the module.
func (fe *FrontEnd) walkRepository(ctx context.Context, dir string) ([]*source.File, error) {
	var files []*source.File
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entry, keep walking
		}
		if info.IsDir() {
			base := filepath.Base(path)
			if base == "vendor" || base == "testdata" || strings.HasPrefix(base, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || fe.shouldSkip(path) {
			return nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		f, perr := fe.ParseFile(path, nil)
		if perr != nil {
			return nil // per-file failure, omit
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (fe *FrontEnd) shouldSkip(path string) bool {
	base := filepath.Base(path)
	if fe.SkipTests && strings.HasSuffix(base, "_test.go") {
		return true
	}
	if fe.SkipGenerated && strings.HasSuffix(base, ".pb.go") {
		return true
	}
	return false
}
