// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package plugin

import (
	"context"
	"errors"
	"testing"

	"go.astrophena.name/base/testutil"
)

func appender(name string, enforce Enforce, apply Mode) Plugin {
	return Plugin{
		Name:    name,
		Enforce: enforce,
		Apply:   apply,
		TransformIndexHTML: func(_ context.Context, html string) (string, error) {
			return html + name, nil
		},
	}
}

func TestTransformIndexHTML(t *testing.T) {
	plugins := []Plugin{
		appender("post", Post, Build),
		appender("a", Normal, ""),
		appender("pre", Pre, ""),
		appender("b", Normal, Serve),
		appender("c", Normal, ""),
	}

	cases := map[string]struct {
		mode Mode
		want string
	}{
		"build": {mode: Build, want: "<p>preacpost"},
		"serve": {mode: Serve, want: "<p>preabc"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := TransformIndexHTML(context.Background(), plugins, tc.mode, "<p>")
			if err != nil {
				t.Fatal(err)
			}
			testutil.AssertEqual(t, got, tc.want)
		})
	}
}

var errBroken = errors.New("broken")

func TestTransformIndexHTMLError(t *testing.T) {
	var called bool
	plugins := []Plugin{
		{
			Name: "broken",
			TransformIndexHTML: func(context.Context, string) (string, error) {
				return "", errBroken
			},
		},
		{
			Name:    "after",
			Enforce: Post,
			TransformIndexHTML: func(_ context.Context, html string) (string, error) {
				called = true
				return html, nil
			},
		},
	}

	_, err := TransformIndexHTML(context.Background(), plugins, Build, "<p>")
	if !errors.Is(err, errBroken) {
		t.Fatalf("want %v, got %v", errBroken, err)
	}
	if called {
		t.Fatal("plugin after failed one must not run")
	}
}
