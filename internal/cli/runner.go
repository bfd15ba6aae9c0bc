package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Makepad-fr/tada-cloud/internal/config"
	"github.com/Makepad-fr/tada-cloud/internal/model"
	"github.com/Makepad-fr/tada-cloud/internal/todo"
	"github.com/Makepad-fr/tada-cloud/internal/tui"
	"github.com/Makepad-fr/tada-cloud/internal/ui"
)

// Options carry everything a subcommand needs. Zero-valued streams fall
// back to the process's stdio.
type Options struct {
	Config *config.Config
	Logger *zap.Logger
	Store  todo.Store // nil builds an rtdb client from Config

	In  io.Reader
	Out io.Writer
	Err io.Writer
}

type runner struct {
	opt Options
	in  *bufio.Reader
	ctx context.Context
}

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func Run(ctx context.Context, args []string, opt Options) int {
	if opt.In == nil {
		opt.In = os.Stdin
	}
	if opt.Out == nil {
		opt.Out = os.Stdout
	}
	if opt.Err == nil {
		opt.Err = os.Stderr
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	r := &runner{opt: opt, in: bufio.NewReader(opt.In), ctx: ctx}

	if len(args) == 0 {
		PrintHelp(opt.Out)
		return 2
	}
	cmd, a := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		PrintHelp(opt.Out)
		return 0

	case "ls":
		return r.doList()

	case "tui":
		return r.doTUI()

	case "add":
		if len(a) == 0 {
			r.fail("usage: todo add <title...>")
			return 2
		}
		return r.doAdd(strings.Join(a, " "))

	case "edit":
		if len(a) < 2 {
			r.fail("usage: todo edit <index|id> <title...>")
			return 2
		}
		return r.doEdit(a[0], strings.Join(a[1:], " "))

	case "rm":
		yes := false
		var refs []string
		for _, x := range a {
			if x == "-y" || x == "--yes" {
				yes = true
				continue
			}
			refs = append(refs, x)
		}
		if len(refs) != 1 {
			r.fail("usage: todo rm [-y] <index|id>")
			return 2
		}
		return r.doRemove(refs[0], yes)

	case "auth":
		if len(a) == 0 {
			r.fail("usage: todo auth <login|logout|status|whoami>")
			return 2
		}
		switch a[0] {
		case "login":
			return r.doAuthLogin()
		case "logout":
			return r.doAuthLogout()
		case "status":
			return r.doAuthStatus()
		case "whoami":
			return r.doAuthWhoAmI()
		default:
			r.fail("usage: todo auth <login|logout|status|whoami>")
			return 2
		}
	}

	r.fail("unknown subcommand: " + cmd)
	fmt.Fprintln(opt.Err)
	PrintHelp(opt.Err)
	return 2
}

// PrintHelp writes the usage text to w.
func PrintHelp(w io.Writer) {
	fmt.Fprintf(w, `todo - a tiny client for a remote todo list

Usage:
  todo [flags] <subcommand> [args]

Subcommands:
  ls                       List items
  tui                      Interactive list (add, edit, delete, refresh)
  add <title...>           Add a new item (title can be multiple words)
  edit <index|id> <title>  Change an item's title
  rm [-y] <index|id>       Delete an item after confirmation
  auth <login|logout|status|whoami>   Database token

Flags:
  -url <base>        Database base URL (TADA_URL)
  -config <file>     Extra TOML config file
  -log-level <lvl>   debug|info|warn|error (TADA_LOG_LEVEL)
  -log-file <path>   Log destination (TADA_LOG_FILE)
  -theme <name>      classic|neon|mono (TADA_THEME)

Examples:
  todo add "Buy milk"
  todo ls
  todo edit 2 "Buy oat milk"
  todo rm 3
`)
}

// -------------- subcommand impls ----------------

func (r *runner) fail(msg string) { ui.Fail(r.opt.Err, msg) }
func (r *runner) ok(msg string)   { ui.OK(r.opt.Out, msg) }

// loaded builds a container and fetches the collection. A non-zero code
// means the caller should stop.
func (r *runner) loaded() (*todo.Container, int) {
	c, code := r.container(nil)
	if code != 0 {
		return nil, code
	}
	c.FetchAll(r.ctx)
	if r.reportState(c) {
		return nil, 1
	}
	return c, 0
}

func (r *runner) container(nav todo.Navigator) (*todo.Container, int) {
	store := r.opt.Store
	if store == nil {
		s, err := newRemoteStore(r.opt.Config, r.opt.Logger)
		if err != nil {
			r.fail(err.Error())
			return nil, 1
		}
		store = s
	}
	return todo.NewContainer(store, nav, r.opt.Logger), 0
}

// reportState prints the container's error, if any, and reports whether
// there was one.
func (r *runner) reportState(c *todo.Container) bool {
	if msg := c.State().Error; msg != "" {
		r.fail(msg)
		fmt.Fprintln(r.opt.Err, ui.Dim("Hint: rerun with -log-level debug for details"))
		return true
	}
	return false
}

func (r *runner) doList() int {
	c, code := r.loaded()
	if code != 0 {
		return code
	}
	items := c.State().Items
	t := ui.Current()

	header := fmt.Sprintf("%s  %s %d",
		ui.C(t.Title, "Todos"),
		ui.C(t.Accent, "Total"), len(items),
	)
	lines := []string{header, ""}
	if len(items) == 0 {
		lines = append(lines, ui.C(t.Muted, "no items"))
	}
	for i, it := range items {
		lines = append(lines, fmt.Sprintf("%s %s %s  %s",
			ui.Dim(fmt.Sprintf("%2d.", i+1)),
			ui.C(t.Muted, t.Bullet),
			ui.Truncate(it.Title, 80),
			ui.C(t.Muted, it.ID)))
	}
	lines = append(lines, "")
	lines = append(lines, ui.C(t.Muted, "Tip: add with `todo add \"Buy milk\"`"))
	ui.Panel(r.opt.Out, lines)
	return 0
}

func (r *runner) doTUI() int {
	c, code := r.container(nil)
	if code != 0 {
		return code
	}
	if err := tui.Run(r.ctx, c, tui.Options{Input: r.opt.In, Output: r.opt.Out}); err != nil {
		r.fail("tui: " + err.Error())
		return 1
	}
	return 0
}

func (r *runner) doAdd(title string) int {
	title = model.NormalizeTitle(title)
	if err := model.ValidateTitle(title); err != nil {
		r.fail("add: " + model.Reason(err))
		return 2
	}
	c, code := r.container(nil)
	if code != 0 {
		return code
	}
	c.AddItem(r.ctx, title)
	if r.reportState(c) {
		return 1
	}
	items := c.State().Items
	r.ok("added " + items[len(items)-1].ID)
	return 0
}

func (r *runner) doEdit(ref, title string) int {
	title = model.NormalizeTitle(title)
	if err := model.ValidateTitle(title); err != nil {
		r.fail("edit: " + model.Reason(err))
		return 2
	}
	c, code := r.loaded()
	if code != 0 {
		return code
	}
	it, code := r.resolve(c, ref)
	if code != 0 {
		return code
	}
	if err := c.UpdateItem(r.ctx, it.ID, title); err != nil {
		r.fail("edit: " + err.Error())
		return 2
	}
	if r.reportState(c) {
		return 1
	}
	r.ok("updated")
	return 0
}

func (r *runner) doRemove(ref string, yes bool) int {
	c, code := r.loaded()
	if code != 0 {
		return code
	}
	it, code := r.resolve(c, ref)
	if code != 0 {
		return code
	}
	conf, err := c.RequestDelete(it.ID)
	if err != nil {
		r.fail("rm: " + err.Error())
		return 2
	}

	if !yes {
		t := ui.Current()
		fmt.Fprintln(r.opt.Out, ui.C(t.Title, conf.Heading))
		fmt.Fprint(r.opt.Out, conf.Message+" [y/N] ")
		answer, _ := r.in.ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			_ = c.Cancel(conf.Token)
			fmt.Fprintln(r.opt.Out, ui.C(t.Muted, "cancelled"))
			return 0
		}
	}

	if err := c.Confirm(r.ctx, conf.Token); err != nil {
		r.fail("rm: " + err.Error())
		return 1
	}
	if r.reportState(c) {
		return 1
	}
	r.ok("removed")
	return 0
}

// resolve accepts an id or a 1-based index (as shown by ls). An exact id
// match wins, so numeric keys stay reachable.
func (r *runner) resolve(c *todo.Container, ref string) (model.Todo, int) {
	s := c.State()
	if it, ok := s.Find(ref); ok {
		return it, 0
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(s.Items) {
			r.fail(fmt.Sprintf("index out of range: have %d, got %d", len(s.Items), n))
			fmt.Fprintln(r.opt.Err, ui.Dim("Hint: run `todo ls` to see valid indexes"))
			return model.Todo{}, 2
		}
		return s.Items[n-1], 0
	}
	r.fail(fmt.Sprintf("no item with id %q", ref))
	fmt.Fprintln(r.opt.Err, ui.Dim("Hint: run `todo ls` to see ids"))
	return model.Todo{}, 2
}
