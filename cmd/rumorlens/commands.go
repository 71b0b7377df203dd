package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/Ryan-Har/rumorlens"
	"github.com/Ryan-Har/rumorlens/internal/detection"
	"github.com/Ryan-Har/rumorlens/internal/logutil"
	"github.com/Ryan-Har/rumorlens/pkg/guard"
	"github.com/Ryan-Har/rumorlens/pkg/models"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

type app struct {
	rl       *rumorlens.RumorLens
	out      io.Writer
	location string
}

type command struct {
	summary string
	route   string // guarded route entered before run; empty skips the guard
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"login":       {"log in with email and password", "/auth/login", runLogin},
	"register":    {"create an account and log in", "/auth/register", runRegister},
	"logout":      {"end the session", "", runLogout},
	"whoami":      {"print the current user", "/", runWhoami},
	"status":      {"print the session state", "", runStatus},
	"profile":     {"update email or username", "/", runProfile},
	"password":    {"change the password", "/", runPassword},
	"detect":      {"classify one text", "/detection", runDetect},
	"batch":       {"classify every line of a file (- for stdin)", "/detection/batch", runBatch},
	"show":        {"print a stored detection", "/detection", runShow},
	"analysis":    {"print the analysis of a detection", "/detection", runAnalysis},
	"propagation": {"print the spread network of a detection", "/detection", runPropagation},
	"history":     {"list stored detections", "/history", runHistory},
	"stats":       {"print history totals", "/history", runStats},
	"delete":      {"delete stored detections", "/history", runDelete},
	"dashboard":   {"print every dashboard statistic", "/dashboard", runDashboard},
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.location == guard.HomePath {
		a.printf("already logged in as %s\n", a.rl.Tokens.User().Username)
		return nil
	}
	if *email == "" || *password == "" {
		return errors.New("login: --email and --password are required")
	}

	if err := a.rl.Session.Login(ctx, *email, *password); err != nil {
		return err
	}
	a.printf("logged in as %s\n", a.rl.Tokens.User().Username)
	return nil
}

func runRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("register")
	email := fs.String("email", "", "account email")
	username := fs.String("username", "", "display name")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.location == guard.HomePath {
		return errors.New("register: log out first")
	}
	if *email == "" || *username == "" || *password == "" {
		return errors.New("register: --email, --username and --password are required")
	}

	if err := a.rl.Session.Register(ctx, *email, *username, *password); err != nil {
		return err
	}
	a.printf("registered and logged in as %s\n", a.rl.Tokens.User().Username)
	return nil
}

func runLogout(ctx context.Context, a *app, _ []string) error {
	a.rl.Session.Logout(ctx)
	a.printf("logged out\n")
	return nil
}

func runWhoami(_ context.Context, a *app, _ []string) error {
	return a.printJSON(a.rl.Tokens.User())
}

func runStatus(_ context.Context, a *app, _ []string) error {
	snap := a.rl.Session.Snapshot()
	status := struct {
		Server        string       `json:"server"`
		Authenticated bool         `json:"authenticated"`
		Superuser     bool         `json:"superuser"`
		AccessToken   string       `json:"access_token,omitempty"`
		ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
		HasRefresh    bool         `json:"has_refresh_token"`
		State         string       `json:"client_state"`
		User          *models.User `json:"user,omitempty"`
	}{
		Server:        a.rl.Client.BaseURL(),
		Authenticated: snap.IsAuthenticated(),
		Superuser:     snap.IsSuperuser(),
		HasRefresh:    snap.RefreshToken != "",
		State:         a.rl.Client.State().String(),
		User:          snap.User,
	}
	if snap.AccessToken != "" {
		status.AccessToken = logutil.Redact(snap.AccessToken)
		if exp, err := a.rl.Tokens.AccessTokenExpiry(); err == nil && !exp.IsZero() {
			status.ExpiresAt = &exp
		}
	}
	return a.printJSON(status)
}

func runProfile(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("profile")
	email := fs.String("email", "", "new email")
	username := fs.String("username", "", "new username")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var patch models.UserUpdate
	if fs.Changed("email") {
		patch.Email = email
	}
	if fs.Changed("username") {
		patch.Username = username
	}

	u, err := a.rl.Session.UpdateProfile(ctx, patch)
	if err != nil {
		return err
	}
	return a.printJSON(u)
}

func runPassword(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("password")
	current := fs.String("current", "", "current password")
	next := fs.String("new", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *current == "" || *next == "" {
		return errors.New("password: --current and --new are required")
	}

	if err := a.rl.Session.UpdatePassword(ctx, *current, *next); err != nil {
		return err
	}
	a.printf("password updated\n")
	return nil
}

func runDetect(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("detect")
	noAnalysis := fs.Bool("no-analysis", false, "skip the detailed analysis")
	if err := fs.Parse(args); err != nil {
		return err
	}

	d, err := a.rl.Detection.DetectSingle(ctx, strings.Join(fs.Args(), " "), !*noAnalysis)
	if err != nil {
		return err
	}
	return a.printJSON(d)
}

func runBatch(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("batch")
	noAnalysis := fs.Bool("no-analysis", false, "skip the detailed analysis")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("batch: exactly one file argument is required")
	}

	contents, err := readLines(fs.Arg(0))
	if err != nil {
		return err
	}
	res, err := a.rl.Detection.DetectBatch(ctx, contents, !*noAnalysis)
	if err != nil {
		return err
	}
	return a.printJSON(res)
}

// readLines returns the non-blank lines of path, or of stdin for "-".
func readLines(path string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}

func parseIDs(args []string) ([]uuid.UUID, error) {
	if len(args) == 0 {
		return nil, errors.New("at least one detection id is required")
	}
	ids := make([]uuid.UUID, 0, len(args))
	for _, arg := range args {
		id, err := uuid.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid detection id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseOneID(args []string) (uuid.UUID, error) {
	if len(args) != 1 {
		return uuid.Nil, errors.New("exactly one detection id is required")
	}
	ids, err := parseIDs(args)
	if err != nil {
		return uuid.Nil, err
	}
	return ids[0], nil
}

func runShow(ctx context.Context, a *app, args []string) error {
	id, err := parseOneID(args)
	if err != nil {
		return err
	}
	d, err := a.rl.Detection.Get(ctx, id)
	if err != nil {
		return err
	}
	return a.printJSON(d)
}

func runAnalysis(ctx context.Context, a *app, args []string) error {
	id, err := parseOneID(args)
	if err != nil {
		return err
	}
	res, err := a.rl.Detection.Analysis(ctx, id)
	if err != nil {
		return err
	}
	return a.printJSON(res)
}

func runPropagation(ctx context.Context, a *app, args []string) error {
	id, err := parseOneID(args)
	if err != nil {
		return err
	}
	p, err := a.rl.Detection.Propagation(ctx, id)
	if err != nil {
		return err
	}
	return a.printJSON(p)
}

func runHistory(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("history")
	page := fs.Int("page", 1, "page number")
	pageSize := fs.Int("page-size", detection.DefaultPageSize, "items per page")
	rumor := fs.Bool("rumor", false, "only rumors (--rumor=false for verified only)")
	risk := fs.String("risk", "", "risk level: low, medium, high or critical")
	from := fs.String("from", "", "earliest date (YYYY-MM-DD or RFC 3339)")
	to := fs.String("to", "", "latest date (YYYY-MM-DD or RFC 3339)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	f := detection.HistoryFilter{
		Page:      *page,
		PageSize:  *pageSize,
		RiskLevel: models.RiskLevel(*risk),
	}
	if fs.Changed("rumor") {
		f.IsRumor = rumor
	}
	var err error
	if f.StartDate, err = parseDate("from", *from); err != nil {
		return err
	}
	if f.EndDate, err = parseDate("to", *to); err != nil {
		return err
	}

	p, err := a.rl.Detection.History(ctx, f)
	if err != nil {
		return err
	}
	return a.printJSON(p)
}

func parseDate(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	ts, err := models.ParseTimestamp(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", flag, err)
	}
	return ts.Time, nil
}

func runStats(ctx context.Context, a *app, _ []string) error {
	st, err := a.rl.Detection.Stats(ctx)
	if err != nil {
		return err
	}
	return a.printJSON(st)
}

func runDelete(ctx context.Context, a *app, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	if len(ids) == 1 {
		if err := a.rl.Detection.Delete(ctx, ids[0]); err != nil {
			return err
		}
		a.printf("deleted %s\n", ids[0])
		return nil
	}

	msg, err := a.rl.Detection.DeleteBatch(ctx, ids)
	if err != nil {
		return err
	}
	a.printf("%s\n", msg)
	return nil
}

func runDashboard(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("dashboard")
	days := fs.Int("days", 0, "trend window in days (default 30)")
	keywords := fs.Int("keywords", 0, "number of keywords (default 50)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dash, err := a.rl.Analysis.FetchAll(ctx, *days, *keywords)
	if err != nil {
		return err
	}
	return a.printJSON(dash)
}
