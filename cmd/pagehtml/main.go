// cmd/pagehtml/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"pagehtml/internal/builder"
	"pagehtml/internal/config"
	"pagehtml/internal/logging"
	"pagehtml/internal/plugin"
	"pagehtml/internal/scaffold"
	"pagehtml/internal/server"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Globals are shared by every command.
type Globals struct {
	Config string `short:"c" help:"Configuration file path." default:"pagehtml.yaml" type:"path"`
	Debug  bool   `help:"Enable debug logging."`
	Unsafe bool   `help:"Disable HTML sanitization of the markdown template function."`

	fs  afero.Fs
	log *logrus.Logger
}

type CLI struct {
	Globals

	Build BuildCmd `cmd:"" help:"Bundle entries and emit one HTML file per page."`
	Serve ServeCmd `cmd:"" help:"Run the dev server with history fallback and live reload."`
	Pages PagesCmd `cmd:"" help:"List resolved pages, their inputs and the dev rewrite rules."`
	New   NewCmd   `cmd:"" help:"Scaffold a project or a page."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("pagehtml"),
		kong.Description("Multi-page HTML builds and dev server on top of esbuild."),
		kong.UsageOnError(),
	)
	cli.fs = afero.NewOsFs()
	cli.log = logging.New(cli.Debug)
	if err := ctx.Run(&cli.Globals); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Operation failed: %v\n", err)
		os.Exit(1)
	}
}

// load reads the config, applies CLI overrides and creates the plugin
// context for command.
func (g *Globals) load(command, mode string) (*plugin.Context, error) {
	opts, err := config.Load(g.fs, g.Config)
	if err != nil {
		return nil, err
	}
	if g.Unsafe {
		opts.Unsafe = true
	}
	env, err := config.LoadEnv(g.fs, filepath.Dir(g.Config), mode, opts.EnvPrefix, opts.Base)
	if err != nil {
		return nil, err
	}
	return plugin.New(opts, command, env, g.fs, g.log)
}

type BuildCmd struct {
	Mode string `short:"m" help:"Mode used to pick .env files." default:"production"`
}

func (c *BuildCmd) Run(g *Globals) error {
	fmt.Println("--- Building pages ---")
	pc, err := g.load(plugin.CommandBuild, c.Mode)
	if err != nil {
		return err
	}
	res, err := builder.Build(context.Background(), pc, g.fs, builder.BuildOptions{
		CleanDestination: true,
		Production:       c.Mode == "production",
		Write:            true,
	}, g.log)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	fmt.Printf("📄 Pages: %d generated from %d entries, %d public files copied.\n", res.Pages, res.Entries, res.Assets)
	fmt.Println("✅ Build successful.")
	return nil
}

type ServeCmd struct {
	Port int    `short:"p" help:"Port for the dev server (overrides server.port)."`
	Mode string `short:"m" help:"Mode used to pick .env files." default:"development"`
}

func (c *ServeCmd) Run(g *Globals) error {
	pc, err := g.load(plugin.CommandServe, c.Mode)
	if err != nil {
		return err
	}
	port := pc.Options().Server.Port
	if c.Port != 0 {
		port = c.Port
	}
	srv, err := server.New(pc, g.fs, g.log)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	fmt.Println("Press Ctrl+C to stop")
	return srv.Run(ctx, port)
}

type PagesCmd struct {
	Build bool `help:"Show build inputs (virtual HTML) instead of dev inputs."`
}

func (c *PagesCmd) Run(g *Globals) error {
	command := plugin.CommandServe
	if c.Build {
		command = plugin.CommandBuild
	}
	pc, err := g.load(command, "development")
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PAGE\tENTRY\tTITLE\tINPUT")
	items := pc.Pages().Items()
	for i, in := range pc.Input() {
		item := items[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", in.Key, item.Entry, item.Title, in.Path)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "RULE\tKIND")
	for _, r := range pc.Rewrites() {
		fmt.Fprintf(w, "%s\t%s\n", r.From, r.Kind)
	}
	return w.Flush()
}

type NewCmd struct {
	Project NewProjectCmd `cmd:"" help:"Create a new project scaffold."`
	Page    NewPageCmd    `cmd:"" help:"Add a page to the config and create its entry."`
}

type NewProjectCmd struct {
	Dir string `arg:"" help:"Directory to create the project in."`
}

func (c *NewProjectCmd) Run(g *Globals) error {
	return scaffold.CreateProject(g.fs, c.Dir, os.Stdout)
}

type NewPageCmd struct {
	Name string `arg:"" help:"Page key, e.g. about or docs/intro."`
}

func (c *NewPageCmd) Run(g *Globals) error {
	return scaffold.CreateNewPage(g.fs, c.Name, g.Config, os.Stdout)
}
