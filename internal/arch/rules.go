package arch

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"unicode"
)

// Violation is a single finding, positioned at file:line. Findings
// that concern a whole package carry its import path instead.
type Violation struct {
	Pos     string
	Message string
}

// Rule checks one architectural constraint against a Model.
type Rule interface {
	Name() string
	Description() string
	Check(m *Model) []Violation
}

// RuleOptions toggles the optional rules.
type RuleOptions struct {
	ProhibitDirectExit bool
}

// RuleDoc describes a rule for the listing output.
type RuleDoc struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Optional    bool   `yaml:"optional,omitempty"`
}

type rule struct {
	name string
	desc string
	fn   func(*Model) []Violation
}

func (r rule) Name() string               { return r.name }
func (r rule) Description() string        { return r.desc }
func (r rule) Check(m *Model) []Violation { return r.fn(m) }

// DefaultRules returns the active rule set.
func DefaultRules(opts RuleOptions) []Rule {
	rules := []Rule{
		packageCycles(),
		eagerCrossPackageVars(),
		goroutinesInInit(),
		bannedCalls("no-ioutil",
			"io/ioutil should not be called because os and io have provided its replacements since Go 1.16",
			"io/ioutil", nil),
		bannedCalls("no-strings-title",
			"strings.Title should not be called because it mishandles Unicode word boundaries; use golang.org/x/text/cases",
			"strings", []string{"Title"}),
		bannedCalls("prefer-slices-sort",
			"sort.Slice and sort.SliceStable should not be called because slices.SortFunc expresses the same thing without reflection",
			"sort", []string{"Slice", "SliceStable"}),
		envAccessOutsideConfig(),
		emptySelectOutsideMain(),
		redundantJSONTags(),
		redundantGormColumnTags(),
	}
	if opts.ProhibitDirectExit {
		rules = append(rules, directExit())
	}
	return rules
}

// Docs lists the active rules in a form suitable for serialization.
func Docs(opts RuleOptions) []RuleDoc {
	docs := make([]RuleDoc, 0, 11)
	for _, r := range DefaultRules(opts) {
		docs = append(docs, RuleDoc{
			Name:        r.Name(),
			Description: r.Description(),
			Optional:    r.Name() == "no-direct-exit",
		})
	}
	return docs
}

// packageCycles rejects import cycles between packages of the scanned
// module. Only non-test import edges count; an external test package
// importing its own subject is legal Go.
func packageCycles() Rule {
	return rule{
		name: "package-cycles",
		desc: "packages should be free of import cycles",
		fn: func(m *Model) []Violation {
			graph := make(map[string][]string, len(m.Packages))
			for _, pkg := range m.SortedPackages() {
				var edges []string
				for imp := range pkg.Imports {
					if imp == pkg.ImportPath {
						continue
					}
					if _, ok := m.Packages[imp]; ok {
						edges = append(edges, imp)
					}
				}
				slices.Sort(edges)
				graph[pkg.ImportPath] = edges
			}

			var out []Violation
			for _, cycle := range findCycles(graph) {
				out = append(out, Violation{
					Pos:     cycle[0],
					Message: "import cycle: " + strings.Join(append(cycle, cycle[0]), " -> "),
				})
			}
			return out
		},
	}
}

// eagerCrossPackageVars rejects package-level variables whose
// initializer calls into sibling packages of the module. Such calls
// run before main and pin the package initialization order.
func eagerCrossPackageVars() Rule {
	return rule{
		name: "eager-cross-package-init",
		desc: "package-level variables should not eagerly call other packages of the module",
		fn: func(m *Model) []Violation {
			var out []Violation
			for _, pkg := range m.SortedPackages() {
				for _, file := range pkg.Files {
					if file.Test {
						continue
					}
					for _, call := range file.Calls {
						if !call.InVarInit {
							continue
						}
						if !m.Internal(call.PkgPath) || call.PkgPath == pkg.ImportPath {
							continue
						}
						out = append(out, Violation{
							Pos: position(call.Pos),
							Message: fmt.Sprintf("var %s eagerly calls %s.%s during package initialization",
								call.VarName, call.PkgPath, call.Name),
						})
					}
				}
			}
			return out
		},
	}
}

func goroutinesInInit() Rule {
	return rule{
		name: "no-init-goroutines",
		desc: "init functions should not start goroutines",
		fn: func(m *Model) []Violation {
			var out []Violation
			for _, pkg := range m.SortedPackages() {
				for _, file := range pkg.Files {
					for _, pos := range file.GoInInit {
						out = append(out, Violation{
							Pos:     position(pos),
							Message: "goroutine started from init",
						})
					}
				}
			}
			return out
		},
	}
}

// bannedCalls builds a rule rejecting calls to the named functions of
// one package. An empty function list bans the whole package.
func bannedCalls(name, desc, pkgPath string, funcs []string) Rule {
	return rule{
		name: name,
		desc: desc,
		fn: func(m *Model) []Violation {
			var out []Violation
			for _, pkg := range m.SortedPackages() {
				for _, file := range pkg.Files {
					for _, call := range file.Calls {
						if call.PkgPath != pkgPath {
							continue
						}
						if len(funcs) > 0 && !slices.Contains(funcs, call.Name) {
							continue
						}
						out = append(out, Violation{
							Pos:     position(call.Pos),
							Message: fmt.Sprintf("call to %s.%s", pkgPath, call.Name),
						})
					}
				}
			}
			return out
		},
	}
}

// envAccessOutsideConfig keeps environment lookups inside config
// packages so every knob stays discoverable in one place. Test files
// are exempt.
func envAccessOutsideConfig() Rule {
	envFuncs := []string{"Getenv", "LookupEnv", "Environ"}
	return rule{
		name: "env-access-in-config-only",
		desc: "environment variables should only be read by config packages",
		fn: func(m *Model) []Violation {
			var out []Violation
			for _, pkg := range m.SortedPackages() {
				if pkg.Name == "config" {
					continue
				}
				for _, file := range pkg.Files {
					if file.Test {
						continue
					}
					for _, call := range file.Calls {
						if call.PkgPath != "os" || !slices.Contains(envFuncs, call.Name) {
							continue
						}
						out = append(out, Violation{
							Pos:     position(call.Pos),
							Message: fmt.Sprintf("call to os.%s outside a config package", call.Name),
						})
					}
				}
			}
			return out
		},
	}
}

// emptySelectOutsideMain rejects select{} blocks outside package main.
// Libraries that park a goroutine forever leak it; only an entrypoint
// may intentionally block for the lifetime of the process.
func emptySelectOutsideMain() Rule {
	return rule{
		name: "no-empty-select-outside-main",
		desc: "empty select statements should only appear in package main",
		fn: func(m *Model) []Violation {
			var out []Violation
			for _, pkg := range m.SortedPackages() {
				if pkg.Name == "main" {
					continue
				}
				for _, file := range pkg.Files {
					for _, pos := range file.EmptySelects {
						out = append(out, Violation{
							Pos:     position(pos),
							Message: "empty select outside package main",
						})
					}
				}
			}
			return out
		},
	}
}

// redundantJSONTags rejects json tags that restate the field name
// verbatim; encoding/json already uses the field name.
func redundantJSONTags() Rule {
	return rule{
		name: "no-redundant-json-tags",
		desc: "json struct tags should not repeat the field name",
		fn: func(m *Model) []Violation {
			var out []Violation
			for _, pkg := range m.SortedPackages() {
				for _, file := range pkg.Files {
					for _, st := range file.Structs {
						for _, field := range st.Fields {
							name, ok := reflect.StructTag(field.Tag).Lookup("json")
							if !ok {
								continue
							}
							if i := strings.IndexByte(name, ','); i >= 0 {
								name = name[:i]
							}
							if name == field.Name {
								out = append(out, Violation{
									Pos: position(field.Pos),
									Message: fmt.Sprintf("json tag %q on %s.%s repeats the field name",
										name, st.Name, field.Name),
								})
							}
						}
					}
				}
			}
			return out
		},
	}
}

// redundantGormColumnTags rejects column tags spelling out the name
// gorm derives anyway from its snake_case naming strategy.
func redundantGormColumnTags() Rule {
	return rule{
		name: "no-redundant-gorm-column-tags",
		desc: "gorm column tags should not repeat the default column name",
		fn: func(m *Model) []Violation {
			var out []Violation
			for _, pkg := range m.SortedPackages() {
				for _, file := range pkg.Files {
					for _, st := range file.Structs {
						for _, field := range st.Fields {
							tag, ok := reflect.StructTag(field.Tag).Lookup("gorm")
							if !ok {
								continue
							}
							for _, part := range strings.Split(tag, ";") {
								col, found := strings.CutPrefix(part, "column:")
								if !found {
									continue
								}
								if col == snakeCase(field.Name) {
									out = append(out, Violation{
										Pos: position(field.Pos),
										Message: fmt.Sprintf("gorm column %q on %s.%s repeats the default name",
											col, st.Name, field.Name),
									})
								}
							}
						}
					}
				}
			}
			return out
		},
	}
}

// directExit rejects os.Exit and stdlib log.Fatal outside package
// main. A library that kills the process skips every deferred cleanup
// above it.
func directExit() Rule {
	fatals := []string{"Fatal", "Fatalf", "Fatalln"}
	return rule{
		name: "no-direct-exit",
		desc: "os.Exit and log.Fatal should only be called from package main",
		fn: func(m *Model) []Violation {
			var out []Violation
			for _, pkg := range m.SortedPackages() {
				if pkg.Name == "main" {
					continue
				}
				for _, file := range pkg.Files {
					if file.Test {
						continue
					}
					for _, call := range file.Calls {
						exit := (call.PkgPath == "os" && call.Name == "Exit") ||
							(call.PkgPath == "log" && slices.Contains(fatals, call.Name))
						if !exit {
							continue
						}
						out = append(out, Violation{
							Pos:     position(call.Pos),
							Message: fmt.Sprintf("call to %s.%s outside package main", call.PkgPath, call.Name),
						})
					}
				}
			}
			return out
		},
	}
}

// findCycles runs a depth-first search over the package graph and
// returns each distinct cycle once, rotated so the lexicographically
// smallest member leads.
func findCycles(graph map[string][]string) [][]string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(graph))
	seen := make(map[string]bool)
	var stack []string
	var cycles [][]string

	var visit func(string)
	visit = func(node string) {
		color[node] = gray
		stack = append(stack, node)
		for _, next := range graph[node] {
			switch color[next] {
			case white:
				visit(next)
			case gray:
				i := len(stack) - 1
				for i >= 0 && stack[i] != next {
					i--
				}
				cycle := rotateToMin(slices.Clone(stack[i:]))
				key := strings.Join(cycle, "->")
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[node] = black
	}

	nodes := make([]string, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)
	for _, n := range nodes {
		if color[n] == white {
			visit(n)
		}
	}
	return cycles
}

func rotateToMin(cycle []string) []string {
	lead := 0
	for i, s := range cycle {
		if s < cycle[lead] {
			lead = i
		}
	}
	out := make([]string, 0, len(cycle))
	out = append(out, cycle[lead:]...)
	out = append(out, cycle[:lead]...)
	return out
}

// snakeCase mirrors the snake_case naming gorm applies to field names,
// treating runs of capitals as one word (ParentPID -> parent_pid).
func snakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (!unicode.IsUpper(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
