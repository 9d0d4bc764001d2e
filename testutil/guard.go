// Package testutil provides reusable testing helpers for enforcing architectural
// and API boundary invariants across the repository.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// AssertNoTransitiveDependency shells out to `go list -deps` with the provided pattern
// (e.g. ./... or .) and fails the test if any dependency path satisfies the forbidden predicate.
// The reason string is appended to the failure for clarity.
func AssertNoTransitiveDependency(t testing.TB, pattern string, forbidden func(path string) bool, reason string) {
	t.Helper()
	viols, out, err := transitiveDependencyViolations(pattern, forbidden)
	if err != nil {
		t.Fatalf("go list failed: %v\n%s", err, string(out))
	}
	failIfTransitiveViolations(t, reason, viols)
}

// AssertNoDirectImports scans all non-test .go files in dir (typically "." from within the package)
// and fails if any import path satisfies the forbidden predicate. It does not follow build tags.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	failIfDirectViolations(t, reason, viols)
}

// DomainImportForbidden returns a predicate matching any import path that points to the domain package.
func DomainImportForbidden(path string) bool {
	return strings.HasSuffix(path, "/pkg/domain") || strings.Contains(path, "/pkg/domain@")
}

// InternalImportForbidden returns a predicate matching any import path containing /internal/.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/")
}

// sideEffectPackages are standard library packages that reach the file
// system, the network or the process environment.
var sideEffectPackages = map[string]struct{}{
	"database/sql": {},
	"net":          {},
	"net/http":     {},
	"os":           {},
	"os/exec":      {},
	"os/signal":    {},
	"io/ioutil":    {},
	"log":          {},
	"syscall":      {},
}

// SideEffectImportForbidden matches imports that give a package I/O or
// storage capabilities: side-effecting standard library packages, any
// internal package, and third-party database, cloud, transport and telemetry
// modules. Pure numeric libraries stay allowed.
func SideEffectImportForbidden(path string) bool {
	if _, ok := sideEffectPackages[path]; ok {
		return true
	}
	if InternalImportForbidden(path) {
		return true
	}
	for _, prefix := range []string{
		"github.com/aws/",
		"github.com/jackc/",
		"modernc.org/sqlite",
		"github.com/prometheus/",
		"go.opentelemetry.io/",
	} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// AssertImportConfined lists every package matched by pattern, test imports
// included, and fails if a package outside the allowed prefixes imports target
// or one of its subpackages.
func AssertImportConfined(t testing.TB, pattern, target string, allowed ...string) {
	t.Helper()
	out, err := goListImports(pattern)
	if err != nil {
		t.Fatalf("go list failed: %v\n%s", err, string(out))
	}
	viols := confinedImportViolations(string(out), target, allowed)
	if len(viols) > 0 {
		t.Fatalf("imports of %s outside %s:\n%s", target, strings.Join(allowed, ", "), strings.Join(viols, "\n"))
	}
}

var goListDeps = func(pattern string) ([]byte, error) {
	cmd := exec.Command("go", "list", "-deps", pattern)
	return cmd.CombinedOutput()
}

const importListFormat = `{{.ImportPath}}|{{join .Imports ","}},{{join .TestImports ","}},{{join .XTestImports ","}}`

var goListImports = func(pattern string) ([]byte, error) {
	cmd := exec.Command("go", "list", "-f", importListFormat, pattern)
	return cmd.CombinedOutput()
}

func underPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// confinedImportViolations parses importListFormat lines.
func confinedImportViolations(listing, target string, allowed []string) []string {
	var viols []string
	for _, line := range strings.Split(listing, "\n") {
		pkg, imports, ok := strings.Cut(strings.TrimSpace(line), "|")
		if !ok {
			continue
		}
		permitted := false
		for _, prefix := range allowed {
			if underPrefix(pkg, prefix) {
				permitted = true
				break
			}
		}
		if permitted {
			continue
		}
		for _, imp := range strings.Split(imports, ",") {
			if imp != "" && underPrefix(imp, target) {
				viols = append(viols, pkg+": "+imp)
			}
		}
	}
	sort.Strings(viols)
	return viols
}

func transitiveDependencyViolations(pattern string, forbidden func(path string) bool) ([]string, []byte, error) {
	out, err := goListDeps(pattern)
	if err != nil {
		return nil, out, err
	}
	var viols []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if forbidden(line) {
			viols = append(viols, line)
		}
	}
	return viols, out, nil
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		path := filepath.Join(dir, name)
		fileAst, err := parser.ParseFile(fset, path, nil, 0)
		if err != nil {
			return nil, err
		}
		for _, imp := range fileAst.Imports {
			ip := strings.Trim(imp.Path.Value, "\"")
			if forbidden(ip) {
				viols = append(viols, ip+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfTransitiveViolations(t fatalLogger, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("forbidden transitive dependency detected (%s):\n%s", reason, strings.Join(viols, "\n"))
	}
}

func failIfDirectViolations(t fatalLogger, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("forbidden direct imports detected (%s):\n%s", reason, strings.Join(viols, "\n"))
	}
}
