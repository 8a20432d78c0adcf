// © 2022 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"flag"

	"go.astrophena.name/articles/internal/config"
	"go.astrophena.name/articles/internal/devtools"
	"go.astrophena.name/articles/internal/site"

	"go.astrophena.name/base/cli"
)

func main() { cli.Main(new(app)) }

type app struct {
	config string
	listen string
}

func (a *app) Flags(fs *flag.FlagSet) {
	fs.StringVar(&a.config, "config", devtools.ConfigFile, "Read build configuration from `file`, if it exists.")
	fs.StringVar(&a.listen, "listen", "localhost:3000", "Listen on `host:port`.")
}

func (a *app) Run(ctx context.Context) error {
	devtools.EnsureRoot()

	c, err := config.Load(".", a.config)
	if err != nil {
		return err
	}
	if args := cli.GetEnv(ctx).Args; len(args) > 0 {
		c.Build.OutDir = args[0]
	}
	return site.Serve(ctx, c, a.listen)
}
