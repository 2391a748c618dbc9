package arch

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	gopath "path"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/mod/modfile"
)

// ImportOptions controls how source trees are loaded into a Model.
type ImportOptions struct {
	Roots    []string // roots to scan, each the top of a module tree
	Module   string   // module path override; read from go.mod when empty
	SkipDirs []string // extra directory names to skip
}

// Import parses every Go package under the given roots. Vendor trees,
// testdata and hidden or underscore directories are always skipped.
// A syntax error in any file aborts the import.
func Import(opts ImportOptions) (*Model, error) {
	roots := opts.Roots
	if len(roots) == 0 {
		roots = []string{"."}
	}

	skip := make(map[string]bool, len(opts.SkipDirs))
	for _, d := range opts.SkipDirs {
		skip[d] = true
	}

	model := &Model{Packages: make(map[string]*Package)}
	for _, root := range roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve root %s: %w", root, err)
		}
		module := opts.Module
		if module == "" {
			module, err = modulePath(absRoot)
			if err != nil {
				return nil, err
			}
		}
		if model.Module == "" {
			model.Module = module
		}
		if err := importTree(model, absRoot, module, skip); err != nil {
			return nil, err
		}
	}
	return model, nil
}

// modulePath reads the module path from go.mod at the root. Roots
// without a go.mod (fixture trees, extracted sources) fall back to the
// directory name.
func modulePath(root string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		if os.IsNotExist(err) {
			return filepath.Base(root), nil
		}
		return "", fmt.Errorf("read go.mod: %w", err)
	}
	mp := modfile.ModulePath(data)
	if mp == "" {
		return "", fmt.Errorf("no module path in %s", filepath.Join(root, "go.mod"))
	}
	return mp, nil
}

func importTree(model *Model, root, module string, skip map[string]bool) error {
	fset := token.NewFileSet()
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p == root {
				return nil
			}
			name := d.Name()
			if name == "vendor" || name == "testdata" || skip[name] ||
				strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if !strings.HasSuffix(name, ".go") ||
			strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			return nil
		}
		return importFile(model, fset, root, module, p)
	})
}

func importFile(model *Model, fset *token.FileSet, root, module, path string) error {
	src, err := parser.ParseFile(fset, path, nil, 0)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	importPath := module
	if rel, relErr := filepath.Rel(root, dir); relErr == nil && rel != "." {
		importPath = gopath.Join(module, filepath.ToSlash(rel))
	}

	pkg := model.Packages[importPath]
	if pkg == nil {
		pkg = &Package{
			ImportPath: importPath,
			Name:       strings.TrimSuffix(src.Name.Name, "_test"),
			Dir:        dir,
			Imports:    make(map[string]bool),
		}
		model.Packages[importPath] = pkg
	}

	file := analyzeFile(fset, src, path)
	file.Pkg = pkg
	pkg.Files = append(pkg.Files, file)

	if !file.Test {
		// test-only imports never participate in the cycle graph
		for _, imp := range file.Imports {
			pkg.Imports[imp.Path] = true
		}
	}
	return nil
}

// analyzeFile extracts the facts the rules need from one parsed file.
func analyzeFile(fset *token.FileSet, src *ast.File, path string) *File {
	file := &File{
		Path: path,
		Test: strings.HasSuffix(path, "_test.go"),
	}

	// map the identifier each import is referenced by to its path
	aliases := make(map[string]string)
	for _, imp := range src.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		name := guessIdentifier(p)
		if imp.Name != nil {
			name = imp.Name.Name
		}
		file.Imports = append(file.Imports, ImportRef{
			Path: p,
			Name: name,
			Pos:  fset.Position(imp.Pos()),
		})
		if name != "_" && name != "." {
			aliases[name] = p
		}
	}

	for _, decl := range src.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			switch d.Tok {
			case token.VAR:
				for _, spec := range d.Specs {
					vs, ok := spec.(*ast.ValueSpec)
					if !ok {
						continue
					}
					names := make([]string, 0, len(vs.Names))
					for _, n := range vs.Names {
						names = append(names, n.Name)
					}
					ctx := walkContext{inVarInit: true, varName: strings.Join(names, ", ")}
					for _, val := range vs.Values {
						collect(fset, val, aliases, file, ctx)
					}
				}
			case token.TYPE:
				for _, spec := range d.Specs {
					ts, ok := spec.(*ast.TypeSpec)
					if !ok {
						continue
					}
					if st, ok := ts.Type.(*ast.StructType); ok {
						file.Structs = append(file.Structs, analyzeStruct(fset, ts.Name.Name, st))
					}
				}
			}
		case *ast.FuncDecl:
			if d.Body == nil {
				continue
			}
			ctx := walkContext{inInit: d.Recv == nil && d.Name.Name == "init"}
			collect(fset, d.Body, aliases, file, ctx)
		}
	}
	return file
}

type walkContext struct {
	inInit    bool
	inVarInit bool
	varName   string
}

// collect walks an expression or statement tree, recording qualified
// calls, goroutines launched from init and empty selects. Function
// literal bodies do not run during initialization, so descending into
// them clears the init flags.
func collect(fset *token.FileSet, n ast.Node, aliases map[string]string, file *File, ctx walkContext) {
	ast.Inspect(n, func(node ast.Node) bool {
		switch x := node.(type) {
		case *ast.FuncLit:
			if ctx.inInit || ctx.inVarInit {
				collect(fset, x.Body, aliases, file, walkContext{})
				return false
			}
			return true
		case *ast.CallExpr:
			if cs, ok := resolveCall(fset, x, aliases); ok {
				cs.InInit = ctx.inInit
				cs.InVarInit = ctx.inVarInit
				cs.VarName = ctx.varName
				file.Calls = append(file.Calls, cs)
			}
		case *ast.GoStmt:
			if ctx.inInit {
				file.GoInInit = append(file.GoInInit, fset.Position(x.Pos()))
			}
		case *ast.SelectStmt:
			if len(x.Body.List) == 0 {
				file.EmptySelects = append(file.EmptySelects, fset.Position(x.Pos()))
			}
		}
		return true
	})
}

// resolveCall matches calls of the form pkg.Func(...) where pkg is an
// imported package identifier. Identifiers the parser resolved to a
// declaration in this file are locals shadowing the import, not
// package qualifiers.
func resolveCall(fset *token.FileSet, call *ast.CallExpr, aliases map[string]string) (CallSite, bool) {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return CallSite{}, false
	}
	ident, ok := sel.X.(*ast.Ident)
	if !ok || ident.Obj != nil {
		return CallSite{}, false
	}
	pkgPath, ok := aliases[ident.Name]
	if !ok {
		return CallSite{}, false
	}
	return CallSite{
		PkgPath: pkgPath,
		Name:    sel.Sel.Name,
		Pos:     fset.Position(call.Pos()),
	}, true
}

func analyzeStruct(fset *token.FileSet, name string, st *ast.StructType) StructType {
	s := StructType{Name: name}
	for _, field := range st.Fields.List {
		var tag string
		if field.Tag != nil {
			if unquoted, err := strconv.Unquote(field.Tag.Value); err == nil {
				tag = unquoted
			}
		}
		for _, fieldName := range field.Names {
			s.Fields = append(s.Fields, StructField{
				Name: fieldName.Name,
				Tag:  tag,
				Pos:  fset.Position(fieldName.Pos()),
			})
		}
	}
	return s
}

// guessIdentifier derives the identifier a default import binds to.
// Without type information this is the last path element, minus any
// major-version suffix and anything after a dot (yaml.v3 binds yaml).
func guessIdentifier(importPath string) string {
	base := gopath.Base(importPath)
	if len(base) > 1 && base[0] == 'v' && allDigits(base[1:]) {
		base = gopath.Base(gopath.Dir(importPath))
	}
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
