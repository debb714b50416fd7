// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package httpx

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/ManuGH/vodagg/internal/testutil"
	"github.com/stretchr/testify/require"
)

// Package-level helpers that route through http.DefaultClient.
var disallowedHTTPSelectors = map[string]bool{
	"DefaultClient": true,
	"Get":           true,
	"Head":          true,
	"Post":          true,
	"PostForm":      true,
}

func TestNoDefaultClientUsage(t *testing.T) {
	files := testutil.ProductionSources(t)
	require.NotEmpty(t, files)

	var violations []string
	fset := token.NewFileSet()
	for _, path := range files {
		file, err := parser.ParseFile(fset, path, nil, 0)
		require.NoError(t, err)
		ast.Inspect(file, func(n ast.Node) bool {
			sel, ok := n.(*ast.SelectorExpr)
			if !ok {
				return true
			}
			if ident, ok := sel.X.(*ast.Ident); ok && ident.Name == "http" && disallowedHTTPSelectors[sel.Sel.Name] {
				violations = append(violations, fset.Position(sel.Pos()).String())
			}
			return true
		})
	}

	if len(violations) > 0 {
		t.Fatalf("outbound requests must use httpx.NewClient; found:\n%s", strings.Join(violations, "\n"))
	}
}
