package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/folish/folish/pkg/canvas"
	"github.com/folish/folish/pkg/commands"
	"github.com/folish/folish/pkg/export"
	"github.com/folish/folish/pkg/projectstore"
	"github.com/folish/folish/pkg/server"
	"github.com/folish/folish/pkg/tui"
)

type subcommand struct {
	usage string
	help  string
	run   func(ctx context.Context, a *app, args []string) error
}

var subcommandOrder = []string{"list", "show", "save", "new", "export", "browse", "serve", "config"}

// subcommands is filled in init because the handlers refer back to it for
// their usage lines.
var subcommands map[string]subcommand

func init() {
	subcommands = map[string]subcommand{
		"list":   {usage: "list [-match glob] [-l]", help: "List saved projects", run: runList},
		"show":   {usage: "show [-color mode] NAME", help: "Print a project as JSON", run: runShow},
		"save":   {usage: "save NAME FILE.json", help: "Import a JSON document ('-' reads stdin)", run: runSave},
		"new":    {usage: "new [-force] NAME", help: "Create an empty project", run: runNew},
		"export": {usage: "export [-fit] [-page A4] NAME OUT.pdf", help: "Render a project to PDF", run: runExport},
		"browse": {usage: "browse", help: "Browse projects interactively", run: runBrowse},
		"serve":  {usage: "serve [-addr host:port] [-mdns]", help: "Serve commands over a websocket", run: runServe},
		"config": {usage: "config [-write]", help: "Print the effective settings", run: runConfig},
	}
}

func newFlagSet(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet("folish "+name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintf(a.stderr, "Usage: folish %s\n", subcommands[name].usage)
		fs.PrintDefaults()
	}
	return fs
}

func needArgs(fs *flag.FlagSet, n int) error {
	if fs.NArg() != n {
		fs.Usage()
		return fmt.Errorf("expected %d argument(s), got %d", n, fs.NArg())
	}
	return nil
}

func runList(_ context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "list")
	match := fs.String("match", "", "Only list names matching this glob, e.g. 'draft-*'")
	long := fs.Bool("l", false, "Show size and modification time")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := needArgs(fs, 0); err != nil {
		return err
	}

	var (
		names []string
		err   error
	)
	if *match != "" {
		names, err = a.svc.Store().ListMatching(*match)
	} else {
		names, err = a.svc.ListCanvases()
	}
	if err != nil {
		return err
	}

	if !*long {
		for _, name := range names {
			fmt.Fprintln(a.stdout, name)
		}
		return nil
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	for _, name := range names {
		info, err := a.svc.Store().Stat(name)
		if err != nil {
			a.logger.Debugf("stat %q: %v", name, err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Name, info.Size, info.ModTime.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func runShow(_ context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "show")
	color := fs.String("color", "auto", "Syntax highlighting: auto, always or never")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := needArgs(fs, 1); err != nil {
		return err
	}

	doc, err := a.svc.LoadCanvas(fs.Arg(0))
	if err != nil {
		return err
	}
	compact, err := canvas.Encode(doc)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, compact, "", "  "); err != nil {
		return err
	}
	pretty.WriteByte('\n')

	if useColor(*color, a.stdout) {
		return quick.Highlight(a.stdout, pretty.String(), "json", "terminal256", "monokai")
	}
	_, err = a.stdout.Write(pretty.Bytes())
	return err
}

func useColor(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func runSave(_ context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "save")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := needArgs(fs, 2); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if src := fs.Arg(1); src == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(src)
	}
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	doc, err := canvas.Decode(data)
	if err != nil {
		return err
	}
	path, err := a.svc.SaveCanvas(doc, fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, path)
	return nil
}

func runNew(_ context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "new")
	force := fs.Bool("force", false, "Replace an existing project")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := needArgs(fs, 1); err != nil {
		return err
	}

	name := fs.Arg(0)
	if !*force {
		_, err := a.svc.Store().Stat(name)
		switch {
		case err == nil:
			return fmt.Errorf("project %q already exists (use -force to replace it)", name)
		case !errors.Is(err, projectstore.ErrNotFound):
			return err
		}
	}

	path, err := a.svc.SaveCanvas(canvas.New(), name)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, path)
	return nil
}

func runExport(_ context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "export")
	fit := fs.Bool("fit", false, "Scale the drawing to fill the page instead of using the saved camera")
	page := fs.String("page", "A4", "Page size (A3, A4, A5, Letter, Legal)")
	landscape := fs.Bool("landscape", false, "Landscape orientation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := needArgs(fs, 2); err != nil {
		return err
	}

	doc, err := a.svc.LoadCanvas(fs.Arg(0))
	if err != nil {
		return err
	}

	opts := export.DefaultOptions()
	opts.Title = fs.Arg(0)
	opts.PageSize = *page
	if *fit {
		opts.Mode = export.Fit
	}
	if *landscape {
		opts.Orientation = "L"
	}

	out := fs.Arg(1)
	if !strings.HasSuffix(strings.ToLower(out), ".pdf") {
		out += ".pdf"
	}
	if err := export.PDFFile(out, doc, opts); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, out)
	return nil
}

func runBrowse(_ context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "browse")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	return tui.Run(a.svc, cwd)
}

func runServe(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "serve")
	addr := fs.String("addr", a.cfg.Server.Addr, "Listen address")
	advertise := fs.Bool("mdns", a.cfg.Server.MDNS, "Advertise the server on the local network")
	autosave := fs.Bool("autosave", a.cfg.Autosave.Enabled, "Periodically save the document pushed with update_canvas")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := needArgs(fs, 0); err != nil {
		return err
	}

	srv := server.New(a.svc, a.logger.With("server"))
	if *advertise {
		srv.Advertise = server.AdvertiseMDNS
	}

	if *autosave {
		saver, err := commands.NewAutosaver(a.svc, a.svc.Live().Snapshot, a.cfg.Autosave, a.logger.With("autosave"))
		if err != nil {
			return err
		}
		saveCtx, stop := context.WithCancel(ctx)
		defer stop()
		go func() { _ = saver.Run(saveCtx) }()
	}

	fmt.Fprintf(a.stdout, "serving %s on ws://%s/ws\n", a.svc.Store().Dir(), *addr)
	return srv.ListenAndServe(ctx, *addr)
}

func runConfig(_ context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "config")
	write := fs.Bool("write", false, "Save the effective settings to the config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := needArgs(fs, 0); err != nil {
		return err
	}

	if *write {
		if err := a.cfg.Write(a.configPath); err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, a.configPath)
		return nil
	}

	data, err := yaml.Marshal(a.cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	_, err = a.stdout.Write(data)
	return err
}
