// Package arch parses Go source trees and evaluates architectural
// rules against them: import hygiene, initialization safety and a few
// API bans that keep the codebase portable.
package arch

import (
	"fmt"
	"go/token"
	"maps"
	"slices"
	"strings"
)

// Model is the parsed view of one or more Go source trees.
type Model struct {
	Module   string
	Packages map[string]*Package
}

// Package groups the parsed files sharing an import path. External
// test packages (package foo_test) are folded into the package they
// exercise.
type Package struct {
	ImportPath string
	Name       string
	Dir        string
	Files      []*File
	Imports    map[string]bool // non-test import edges, feeds cycle detection
}

// File carries the per-file facts the rules evaluate.
type File struct {
	Path         string
	Pkg          *Package
	Test         bool
	Imports      []ImportRef
	Calls        []CallSite
	GoInInit     []token.Position
	EmptySelects []token.Position
	Structs      []StructType
}

// ImportRef is a single import declaration.
type ImportRef struct {
	Path string
	Name string // identifier the file uses for the package
	Pos  token.Position
}

// CallSite is a package-qualified call such as strings.Title(...).
// Method calls on values are not call sites; only selector calls whose
// receiver resolves to an imported package are recorded.
type CallSite struct {
	PkgPath   string
	Name      string
	Pos       token.Position
	InInit    bool   // lexically inside func init()
	InVarInit bool   // inside a package-level var initializer
	VarName   string // variable being initialized when InVarInit
}

// StructType is a top-level struct declaration with its tagged fields.
type StructType struct {
	Name   string
	Fields []StructField
}

// StructField is a named struct field and its raw tag.
type StructField struct {
	Name string
	Tag  string
	Pos  token.Position
}

// SortedPackages returns the packages ordered by import path so rule
// output stays deterministic.
func (m *Model) SortedPackages() []*Package {
	keys := slices.Sorted(maps.Keys(m.Packages))
	pkgs := make([]*Package, 0, len(keys))
	for _, k := range keys {
		pkgs = append(pkgs, m.Packages[k])
	}
	return pkgs
}

// Internal reports whether the import path belongs to the scanned
// module, either because the package was parsed or by path prefix.
func (m *Model) Internal(importPath string) bool {
	if _, ok := m.Packages[importPath]; ok {
		return true
	}
	return m.Module != "" &&
		(importPath == m.Module || strings.HasPrefix(importPath, m.Module+"/"))
}

func position(pos token.Position) string {
	return fmt.Sprintf("%s:%d", pos.Filename, pos.Line)
}
