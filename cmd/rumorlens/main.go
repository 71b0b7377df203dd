package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Ryan-Har/rumorlens"
	"github.com/Ryan-Har/rumorlens/internal/config"
	"github.com/Ryan-Har/rumorlens/internal/logutil"
	"github.com/Ryan-Har/rumorlens/pkg/guard"
	"github.com/spf13/pflag"
)

// errAuthRequired is reported when the guard sends a command to the login page.
var errAuthRequired = errors.New("authentication required")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	stop()
	os.Exit(1)
}

// run parses the global flags, builds the client and dispatches one command.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := config.Flags()
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	fs.Usage = func() { usage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		usage(stderr, fs)
		return errors.New("no command given")
	}

	name, cmdArgs := fs.Arg(0), fs.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}

	logger, err := logutil.New(stderr, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}

	opts := []rumorlens.Option{
		rumorlens.WithLogger(logger),
		rumorlens.WithBaseURL(cfg.Server.BaseURL()),
		rumorlens.WithTimeout(cfg.Server.Timeout),
	}
	if cfg.Storage.InMemory {
		opts = append(opts, rumorlens.WithInMemoryTokens())
	} else {
		opts = append(opts, rumorlens.WithSqlitePath(cfg.Storage.Path))
	}

	rl, err := rumorlens.New(ctx, opts...)
	if err != nil {
		return err
	}
	defer rl.Close()

	// one-shot process: wait for the restored session before routing
	<-rl.Start(ctx)

	a := &app{rl: rl, out: stdout}
	if cmd.route != "" {
		if err := a.navigate(ctx, cmd.route); err != nil {
			return err
		}
	}
	return cmd.run(ctx, a, cmdArgs)
}

// navigate moves to route through the guard. Being sent to the login page
// from anywhere outside the auth section means the session is missing.
func (a *app) navigate(ctx context.Context, route string) error {
	loc, err := a.rl.Navigator.Navigate(ctx, route)
	if err != nil {
		return err
	}
	if strings.HasPrefix(loc, guard.LoginPath) && !strings.HasPrefix(route, "/auth") {
		return errAuthRequired
	}
	a.location = loc
	return nil
}

func usage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintln(w, "usage: rumorlens [global flags] <command> [command flags] [args]")
	fmt.Fprintln(w, "\ncommands:")
	for _, name := range commandNames() {
		fmt.Fprintf(w, "  %-12s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w, "\nglobal flags:")
	fmt.Fprint(w, fs.FlagUsages())
}
