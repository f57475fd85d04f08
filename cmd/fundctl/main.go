// Package main provides the command-line front end for project managers and
// reviewing authorities.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/AnTengye/civicfund/client"
	"github.com/AnTengye/civicfund/config"
	"github.com/AnTengye/civicfund/pkg/logger"
	"github.com/AnTengye/civicfund/workflow"
)

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"login":          {"login -u USER -p PASS", runLogin},
	"connect-wallet": {"connect-wallet -address 0x...", runConnectWallet},
	"logout":         {"logout", runLogout},
	"whoami":         {"whoami", runWhoami},
	"dashboard":      {"dashboard", runDashboard},
	"create":         {"create -name N -budget B -contractor C -proposal FILE -gps FILE [-gps FILE] ...", runCreate},
	"review":         {"review", runReview},
	"decide":         {"decide -id APPROVAL -decision Approved|Rejected [-comments TEXT]", runDecide},
	"show":           {"show -project ID", runShow},
	"docs":           {"docs -project ID", runDocs},
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	verbose := flag.Bool("v", false, "log API calls")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger.Init(&logger.Config{Level: level, Format: cfg.Log.Format, Output: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg, os.Stdout)
	if err := cmd.run(ctx, a, flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", userMessage(err))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: fundctl [-config FILE] [-v] COMMAND [flags]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.Default()
	}
	return cfg, err
}

// userMessage prefers the text a user should see over the wrapped cause
func userMessage(err error) string {
	var op *workflow.OpError
	if errors.As(err, &op) {
		return op.Message
	}
	return err.Error()
}

type app struct {
	cfg      *config.Config
	api      *client.Client
	sessions *workflow.SessionStore
	allow    *workflow.AllowList
	notify   workflow.Notifier
	out      io.Writer
}

func newApp(cfg *config.Config, out io.Writer) *app {
	return &app{
		cfg:      cfg,
		api:      client.New(&cfg.API),
		sessions: workflow.NewSessionStore(cfg.Session.Path),
		allow:    workflow.NewAllowList(cfg.Wallet.AuthorizedAddresses),
		notify:   &terminalNotifier{w: out},
		out:      out,
	}
}

// session restores the saved session and returns a client carrying its token
func (a *app) session(ctx context.Context) (*workflow.Session, *client.Client, error) {
	sess, err := workflow.Restore(ctx, a.sessions, func(token string) workflow.MeAPI {
		return a.api.WithToken(token)
	})
	if errors.Is(err, workflow.ErrNoSession) {
		return nil, nil, errors.New("not signed in: run 'fundctl login' or 'fundctl connect-wallet'")
	}
	if err != nil {
		return nil, nil, err
	}
	return sess, a.api.WithToken(sess.Token), nil
}

// terminalNotifier prints notifications as single status lines
type terminalNotifier struct {
	w io.Writer
}

func (n *terminalNotifier) Info(ctx context.Context, msg string) {
	fmt.Fprintf(n.w, "... %s\n", msg)
}

func (n *terminalNotifier) Success(ctx context.Context, msg string) {
	fmt.Fprintf(n.w, "ok  %s\n", msg)
}

func (n *terminalNotifier) Error(ctx context.Context, msg string) {
	fmt.Fprintf(n.w, "err %s\n", msg)
}
