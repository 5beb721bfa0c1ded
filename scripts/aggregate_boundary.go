// Command aggregate_boundary reports service methods that write catalog
// workflow tables directly instead of going through an aggregate.
//
//	go run ./scripts [-strict] [root]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// guardedRepos are owned by the duplicate resolution and submission aggregates.
var guardedRepos = map[string]bool{
	"LessonRepo":        true,
	"ArchiveRepo":       true,
	"ResolutionRepo":    true,
	"CanonicalRepo":     true,
	"ReviewRepo":        true,
	"VersionRepo":       true,
	"SimilarityRepo":    true,
}

var writeMethod = map[string]bool{
	"Create":             true,
	"Save":               true,
	"Upsert":             true,
	"UpdateFields":       true,
	"UpdateFingerprint":  true,
	"DeleteByID":         true,
	"DeleteBySubmission": true,
	"FullDeleteByIDs":    true,
	"LockByID":           true,
	"LockByIDs":          true,
}

type callsite struct {
	Struct string `json:"struct"`
	Method string `json:"method"`
	Field  string `json:"field"`
	Call   string `json:"call"`
	File   string `json:"file"`
	Line   int    `json:"line"`
}

type report struct {
	GuardedFields  []string   `json:"guarded_fields"`
	AggregateCalls int        `json:"aggregate_calls"`
	Violations     []callsite `json:"violations"`
}

func main() {
	strict := flag.Bool("strict", false, "exit 1 when a violation is found")
	flag.Parse()
	root := "."
	if flag.NArg() > 0 {
		root = flag.Arg(0)
	}
	rep, err := audit(root)
	if err != nil {
		exitf("audit: %v", err)
	}
	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		exitf("marshal report: %v", err)
	}
	fmt.Println(string(out))
	if *strict && len(rep.Violations) > 0 {
		os.Exit(1)
	}
}

func audit(root string) (report, error) {
	dir := filepath.Join(root, "internal", "services")
	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, dir, func(fi os.FileInfo) bool {
		return strings.HasSuffix(fi.Name(), ".go") && !strings.HasSuffix(fi.Name(), "_test.go")
	}, 0)
	if err != nil {
		return report{}, err
	}
	pkg, ok := pkgs["services"]
	if !ok {
		return report{}, fmt.Errorf("services package not found in %s", dir)
	}

	guarded := map[string]map[string]bool{}
	aggFields := map[string]map[string]bool{}
	for _, f := range pkg.Files {
		collectFields(f, guarded, aggFields)
	}

	var rep report
	for name, fields := range guarded {
		for field := range fields {
			rep.GuardedFields = append(rep.GuardedFields, name+"."+field)
		}
	}
	sort.Strings(rep.GuardedFields)

	for path, f := range pkg.Files {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		for _, decl := range f.Decls {
			fd, ok := decl.(*ast.FuncDecl)
			if !ok || fd.Recv == nil || fd.Body == nil {
				continue
			}
			recv, typ := receiver(fd.Recv.List[0])
			if recv == "" {
				continue
			}
			ast.Inspect(fd.Body, func(n ast.Node) bool {
				field, method, ok := fieldCall(n, recv)
				if !ok {
					return true
				}
				if guarded[typ][field] && writeMethod[method] {
					rep.Violations = append(rep.Violations, callsite{
						Struct: typ,
						Method: fd.Name.Name,
						Field:  field,
						Call:   method,
						File:   filepath.ToSlash(rel),
						Line:   fset.Position(n.Pos()).Line,
					})
				}
				if aggFields[typ][field] {
					rep.AggregateCalls++
				}
				return true
			})
		}
	}
	sort.Slice(rep.Violations, func(i, j int) bool {
		if rep.Violations[i].File == rep.Violations[j].File {
			return rep.Violations[i].Line < rep.Violations[j].Line
		}
		return rep.Violations[i].File < rep.Violations[j].File
	})
	return rep, nil
}

// collectFields records struct fields typed repos.<Guarded> or domainagg.<X>Aggregate.
func collectFields(file *ast.File, guarded, aggs map[string]map[string]bool) {
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			st, ok := ts.Type.(*ast.StructType)
			if !ok || st.Fields == nil {
				continue
			}
			for _, field := range st.Fields.List {
				sel, ok := field.Type.(*ast.SelectorExpr)
				if !ok || len(field.Names) == 0 {
					continue
				}
				pkgIdent, ok := sel.X.(*ast.Ident)
				if !ok {
					continue
				}
				var into map[string]map[string]bool
				switch {
				case pkgIdent.Name == "repos" && guardedRepos[sel.Sel.Name]:
					into = guarded
				case pkgIdent.Name == "domainagg" && strings.HasSuffix(sel.Sel.Name, "Aggregate"):
					into = aggs
				default:
					continue
				}
				if into[ts.Name.Name] == nil {
					into[ts.Name.Name] = map[string]bool{}
				}
				for _, n := range field.Names {
					into[ts.Name.Name][n.Name] = true
				}
			}
		}
	}
}

// fieldCall matches recv.field.Method(...).
func fieldCall(n ast.Node, recv string) (string, string, bool) {
	call, ok := n.(*ast.CallExpr)
	if !ok {
		return "", "", false
	}
	fn, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return "", "", false
	}
	inner, ok := fn.X.(*ast.SelectorExpr)
	if !ok {
		return "", "", false
	}
	base, ok := inner.X.(*ast.Ident)
	if !ok || base.Name != recv {
		return "", "", false
	}
	return inner.Sel.Name, fn.Sel.Name, true
}

func receiver(field *ast.Field) (string, string) {
	if field == nil || len(field.Names) == 0 {
		return "", ""
	}
	switch t := field.Type.(type) {
	case *ast.StarExpr:
		if id, ok := t.X.(*ast.Ident); ok {
			return field.Names[0].Name, id.Name
		}
	case *ast.Ident:
		return field.Names[0].Name, t.Name
	}
	return "", ""
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
