// Command portfolioctl manages the portfolio site from a terminal: sign in,
// triage contact messages and upload images.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/diagnosis/portfolio/pkg/client"
	"github.com/diagnosis/portfolio/pkg/client/tokenstore"
	"github.com/diagnosis/portfolio/pkg/logger"
)

const usage = `usage: portfolioctl [flags] <command> [args]

commands:
  login [-email EMAIL]          sign in; the password is read without echo
  logout                        forget the stored session
  whoami                        show the signed-in user
  contacts list [filters]       list contact messages
  contacts show ID              show one message with its replies
  contacts status ID [-status S] [-priority P] [-notes N]
  contacts reply ID MESSAGE     email a reply
  contacts spam ID              flag as spam
  contacts delete ID            delete a message
  upload [-folder F] [-quality Q] [-format jpg|png] FILE...
  delete-upload PUBLIC_ID

flags:
`

func main() {
	fs := flag.NewFlagSet("portfolioctl", flag.ExitOnError)
	apiURL := fs.String("api", envOr("PORTFOLIO_API_URL", "http://localhost:5000/api"), "API base URL")
	sessionPath := fs.String("session", defaultSessionPath(), "session file")
	verbose := fs.Bool("v", false, "log requests")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[1:])
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}

	store, err := tokenstore.OpenFile(*sessionPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	opts := []client.Option{}
	if *verbose {
		opts = append(opts, client.WithLogger(logger.New(os.Stderr, "debug", "text")))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(client.New(*apiURL, store, opts...), store, os.Stdin, os.Stdout, os.Stderr)
	if err := a.run(ctx, fs.Args()); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintln(os.Stderr, ue)
			fs.Usage()
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "portfolio", "session.json")
}
