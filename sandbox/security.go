package sandbox

import (
	"fmt"
	"sort"
	"strings"

	"go.starlark.net/syntax"
)

// blockedNames are builtins code may never reference.
var blockedNames = map[string]bool{
	"open":       true,
	"exec":       true,
	"eval":       true,
	"compile":    true,
	"__import__": true,
	"globals":    true,
	"locals":     true,
	"input":      true,
	"breakpoint": true,
	"getattr":    true,
	"setattr":    true,
	"vars":       true,
	"dir":        true,
}

// violation is a capability check failure found before execution.
type violation struct {
	msg string
}

func importDenied(module string, allowed map[string]bool) string {
	names := make([]string, 0, len(allowed))
	for k := range allowed {
		names = append(names, k)
	}
	sort.Strings(names)
	return fmt.Sprintf("Import of %s is not allowed. Authorized imports are: %s", module, strings.Join(names, ", "))
}

// checkSyntax walks the parsed program for blocked names, dunder access and
// load statements of modules outside the allow-list. Attribute names and
// keyword argument names are only checked for dunders.
func checkSyntax(f *syntax.File, allowed map[string]bool) *violation {
	var v *violation
	var visit func(n syntax.Node) bool
	visit = func(n syntax.Node) bool {
		if v != nil {
			return false
		}
		switch n := n.(type) {
		case *syntax.Ident:
			if blockedNames[n.Name] {
				v = &violation{msg: fmt.Sprintf("Forbidden function evaluation: %s is not allowed", n.Name)}
			} else if strings.HasPrefix(n.Name, "__") {
				v = &violation{msg: fmt.Sprintf("Forbidden access to dunder name: %s", n.Name)}
			}
		case *syntax.DotExpr:
			if strings.HasPrefix(n.Name.Name, "__") {
				v = &violation{msg: fmt.Sprintf("Forbidden access to dunder attribute: %s", n.Name.Name)}
				return false
			}
			syntax.Walk(n.X, visit)
			return false
		case *syntax.CallExpr:
			syntax.Walk(n.Fn, visit)
			for _, arg := range n.Args {
				if kw, ok := arg.(*syntax.BinaryExpr); ok && kw.Op == syntax.EQ {
					if id, ok := kw.X.(*syntax.Ident); ok && strings.HasPrefix(id.Name, "__") {
						v = &violation{msg: fmt.Sprintf("Forbidden access to dunder name: %s", id.Name)}
						return false
					}
					syntax.Walk(kw.Y, visit)
					continue
				}
				syntax.Walk(arg, visit)
			}
			return false
		case *syntax.LoadStmt:
			module, _ := n.Module.Value.(string)
			if !allowed[module] {
				v = &violation{msg: importDenied(module, allowed)}
			}
			return false
		}
		return v == nil
	}
	syntax.Walk(f, visit)
	return v
}
