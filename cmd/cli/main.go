// Command cs is a CLI client for the contest platform.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/and161185/contest-shell/internal/app"
	"github.com/and161185/contest-shell/internal/config"
	"github.com/and161185/contest-shell/internal/contests"
	"github.com/and161185/contest-shell/internal/convert"
	"github.com/and161185/contest-shell/internal/errs"
	"github.com/and161185/contest-shell/internal/guard"
	"github.com/and161185/contest-shell/internal/logging"
	"github.com/and161185/contest-shell/internal/model"
	"github.com/and161185/contest-shell/internal/session"
	"github.com/and161185/contest-shell/internal/storage"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailed   = 1
	exitUsage    = 2
	exitNeedAuth = 3
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// ---- utils ----

func readAll(p string, stdin io.Reader) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(p)
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// notePrinter writes each notification once, as it appears.
type notePrinter struct {
	mu   sync.Mutex
	w    io.Writer
	seen map[uuid.UUID]struct{}
}

func newNotePrinter(w io.Writer) *notePrinter {
	return &notePrinter{w: w, seen: map[uuid.UUID]struct{}{}}
}

func (p *notePrinter) update(list []model.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range list {
		if _, ok := p.seen[n.ID]; ok {
			continue
		}
		p.seen[n.ID] = struct{}{}
		fmt.Fprintf(p.w, "[%s] %s\n", n.Kind, n.Message)
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, `cs CLI
Usage:
  cs [-api URL] [-config-dir DIR] [-timeout D] [-v] <cmd> [args]

Commands:
  version
  register   -first <name> -last <name> -email <email> -p <password>
  login      -email <email> -p <password>          (saves session)
  logout
  whoami
  list       [-page N] [-limit N]
  get        -id <contest id>
  create     -title <t> -start <time> -end <time> [-public] [-image file|-]
`)
}

// ---- main ----

// main loads .env and dispatches subcommands.
func main() {
	_ = godotenv.Load()
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return exitUsage
	}

	// global flags override env
	gfs := flag.NewFlagSet("cs", flag.ContinueOnError)
	gfs.SetOutput(stderr)
	gfs.Usage = func() { usage(stderr) }
	gfs.StringVar(&cfg.APIURL, "api", cfg.APIURL, "collaborator base URL")
	gfs.StringVar(&cfg.ConfigDir, "config-dir", cfg.ConfigDir, "session storage directory")
	gfs.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "request timeout")
	verbose := gfs.Bool("v", false, "log to stderr")
	if err := gfs.Parse(args); err != nil {
		return exitUsage
	}
	if gfs.NArg() < 1 {
		usage(stderr)
		return exitUsage
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return exitUsage
	}
	cmd, rest := gfs.Arg(0), gfs.Args()[1:]

	if cmd == "version" {
		fmt.Fprintf(stdout, "cs %s (%s)\n", version, buildDate)
		return exitOK
	}

	logger := zap.NewNop()
	if *verbose {
		if logger, err = logging.New(cfg.LogLevel, true); err != nil {
			fmt.Fprintln(stderr, "logger:", err)
			return exitUsage
		}
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(cfg, storage.NewFile(cfg.ConfigDir), logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	defer a.Close()

	unsub := a.Notes.Subscribe(newNotePrinter(stderr).update)
	defer unsub()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()
	a.Load(ctx)

	c := &cli{app: a, stdin: stdin, stdout: stdout, stderr: stderr}
	switch cmd {
	case "register":
		return c.guarded(guard.PublicOnly, func() int { return c.register(ctx, rest) })
	case "login":
		return c.guarded(guard.PublicOnly, func() int { return c.login(ctx, rest) })
	case "logout":
		return c.logout(ctx)
	case "whoami":
		return c.guarded(guard.Protected, c.whoami)
	case "list":
		return c.guarded(guard.Protected, func() int { return c.list(ctx, rest, cfg.PageSize) })
	case "get":
		return c.guarded(guard.Protected, func() int { return c.get(ctx, rest) })
	case "create":
		return c.guarded(guard.Protected, func() int { return c.create(ctx, rest) })
	}
	fmt.Fprintf(stderr, "unknown command %q\n", cmd)
	usage(stderr)
	return exitUsage
}

type cli struct {
	app    *app.App
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// guarded runs fn only if the route guard lets a command of kind through.
func (c *cli) guarded(kind guard.RouteKind, fn func() int) int {
	d := c.app.Guard.Check(kind)
	switch d.Action {
	case guard.Placeholder:
		fmt.Fprintln(c.stderr, "session is still loading")
		return exitFailed
	case guard.Redirect:
		if d.Location == guard.LoginPath {
			fmt.Fprintln(c.stderr, "login required (cs login)")
			return exitNeedAuth
		}
		fmt.Fprintf(c.stderr, "already logged in as %s (cs logout first)\n", c.app.Session.CurrentUser().Email)
		return exitFailed
	}
	return fn()
}

// fail prints err as one line and returns the failure exit code.
func (c *cli) fail(err error, fallback string) int {
	fmt.Fprintln(c.stderr, "error:", errs.Message(err, fallback))
	return exitFailed
}

func (c *cli) register(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	email := fs.String("email", "", "email")
	p := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	err := c.app.Session.Register(ctx, model.Profile{FirstName: *first, LastName: *last, Email: *email, Password: *p})
	if err != nil {
		return c.fail(err, session.MsgRegisterFailed)
	}
	c.app.Notes.Success(session.MsgRegistered)
	return exitOK
}

func (c *cli) login(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	email := fs.String("email", "", "email")
	p := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	sess, err := c.app.Session.Login(ctx, *email, *p)
	if err != nil {
		return c.fail(err, session.MsgLoginFailed)
	}
	fmt.Fprintln(c.stdout, "logged in as", sess.User.Email)
	if exp, ok := session.TokenExpiry(sess.Token); ok {
		fmt.Fprintln(c.stdout, "token expires", exp.Local().Format(time.RFC1123))
	}
	return exitOK
}

func (c *cli) logout(ctx context.Context) int {
	if err := c.app.Session.Logout(ctx); err != nil {
		return c.fail(err, "")
	}
	fmt.Fprintln(c.stdout, "logged out")
	return exitOK
}

func (c *cli) whoami() int {
	u := c.app.Session.CurrentUser()
	fmt.Fprintf(c.stdout, "%s (since %s)\n", u.Email, u.LoginTime.Local().Format(time.RFC1123))
	return exitOK
}

func (c *cli) list(ctx context.Context, args []string, defSize int) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	page := fs.Int("page", 1, "page number")
	limit := fs.Int("limit", defSize, "page size")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	res, err := c.app.Contests.ListPage(ctx, *page, *limit)
	if err != nil {
		return c.fail(err, contests.MsgLoadFailed)
	}
	if res.Empty() {
		fmt.Fprintln(c.stdout, "No contests available")
		return exitOK
	}

	now := time.Now()
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSTARTS\tENDS\tSTATUS")
	for _, ct := range res.Items {
		st := ""
		if ct.IsActive(now) {
			st = "active"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", ct.ID, ct.Title,
			ct.StartsAt.Format(time.DateTime), ct.EndsAt.Format(time.DateTime), st)
	}
	_ = tw.Flush()
	fmt.Fprintf(c.stdout, "page %d/%d (%d contests)\n", res.Page, res.TotalPages, res.Total)
	return exitOK
}

func (c *cli) get(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	id := fs.Int64("id", 0, "contest id")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	ct, err := c.app.Contests.Get(ctx, *id)
	if err != nil {
		return c.fail(err, contests.MsgLoadOneFailed)
	}
	printJSON(c.stdout, ct)
	return exitOK
}

func (c *cli) create(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	title := fs.String("title", "", "contest title")
	start := fs.String("start", "", "start time (RFC 3339 or 2006-01-02T15:04)")
	end := fs.String("end", "", "end time (RFC 3339 or 2006-01-02T15:04)")
	public := fs.Bool("public", false, "list the contest publicly")
	image := fs.String("image", "", "profile image file, - for stdin")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	d, err := draftFromFlags(*title, *start, *end, *public, *image, c.stdin)
	if err != nil {
		fmt.Fprintln(c.stderr, err)
		return exitUsage
	}

	ct, err := c.app.Contests.Create(ctx, d)
	if err != nil {
		c.app.Notes.Error(errs.Message(err, contests.MsgCreateFailed))
		return exitFailed
	}
	c.app.Notes.Success(contests.MsgCreated)
	printJSON(c.stdout, ct)
	return exitOK
}

// draftFromFlags builds a draft. Empty times stay zero so the contests
// client reports them as missing.
func draftFromFlags(title, start, end string, public bool, image string, stdin io.Reader) (model.ContestDraft, error) {
	d := model.ContestDraft{Title: title, IsPublic: public}
	var err error
	if d.StartsAt, err = parseFlagTime("start", start); err != nil {
		return d, err
	}
	if d.EndsAt, err = parseFlagTime("end", end); err != nil {
		return d, err
	}
	if image == "" {
		return d, nil
	}
	data, err := readAll(image, stdin)
	if err != nil {
		return d, fmt.Errorf("read image: %w", err)
	}
	name := filepath.Base(image)
	if image == "-" {
		name = ""
	}
	d.Image = &model.Image{Name: name, ContentType: mime.TypeByExtension(filepath.Ext(name)), Data: data}
	return d, nil
}

func parseFlagTime(name, v string) (time.Time, error) {
	t, err := convert.ParseTime(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("-%s: %w", name, err)
	}
	return t, nil
}
