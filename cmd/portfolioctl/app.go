package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/diagnosis/portfolio/pkg/client"
	"github.com/diagnosis/portfolio/pkg/client/contacts"
	"github.com/diagnosis/portfolio/pkg/client/session"
	"github.com/diagnosis/portfolio/pkg/client/tokenstore"
	"github.com/diagnosis/portfolio/pkg/client/uploads"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

type usageError string

func (e usageError) Error() string { return string(e) }

type app struct {
	session  *session.Service
	contacts *contacts.Service
	uploads  *uploads.Service
	in       *bufio.Reader
	out      io.Writer
	errOut   io.Writer
}

func newApp(c *client.Client, store tokenstore.Store, in io.Reader, out, errOut io.Writer) *app {
	c.SetNotifier(func(class client.Class, err error) {
		var ae *client.AuthError
		if errors.As(err, &ae) && ae.Expired {
			fmt.Fprintln(errOut, "Session expired. Run `portfolioctl login` again.")
		}
	})
	return &app{
		session:  session.NewService(c, store),
		contacts: contacts.New(c),
		uploads:  uploads.New(c),
		in:       bufio.NewReader(in),
		out:      out,
		errOut:   errOut,
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return a.login(ctx, rest)
	case "logout":
		a.session.Logout()
		fmt.Fprintln(a.out, "Logged out.")
		return nil
	case "whoami":
		return a.whoami(ctx)
	case "contacts":
		if len(rest) == 0 {
			return usageError("contacts: missing subcommand")
		}
		return a.contactsCmd(ctx, rest[0], rest[1:])
	case "upload":
		return a.upload(ctx, rest)
	case "delete-upload":
		if len(rest) != 1 {
			return usageError("delete-upload: expected PUBLIC_ID")
		}
		if err := a.uploads.Delete(ctx, rest[0]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Deleted", rest[0])
		return nil
	}
	return usageError("unknown command " + cmd)
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}

	if *email == "" {
		fmt.Fprint(a.out, "Email: ")
		line, err := a.in.ReadString('\n')
		if err != nil && line == "" {
			return err
		}
		*email = strings.TrimSpace(line)
	}
	fmt.Fprint(a.out, "Password: ")
	pw, err := readPassword()
	fmt.Fprintln(a.out)
	if err != nil {
		return err
	}

	sess, err := a.session.Login(ctx, *email, string(pw))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s (%s)\n", sess.User.Name, sess.User.Role)
	if !sess.User.IsAdmin() {
		fmt.Fprintln(a.errOut, "warning: this account is not an admin; contact and upload commands will be refused")
	}
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	st := a.session.CheckAuth(ctx)
	if !st.IsAuthenticated() {
		return errors.New("not logged in")
	}
	u := st.User
	fmt.Fprintf(a.out, "%s <%s>\nrole: %s\n", u.Name, u.Email, u.Role)
	if u.LastLogin != nil {
		fmt.Fprintf(a.out, "last login: %s\n", u.LastLogin.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func (a *app) contactsCmd(ctx context.Context, sub string, args []string) error {
	switch sub {
	case "list":
		return a.listContacts(ctx, args)
	case "show":
		if len(args) != 1 {
			return usageError("contacts show: expected ID")
		}
		c, err := a.contacts.Get(ctx, args[0])
		if err != nil {
			return err
		}
		a.printContact(c)
		return nil
	case "status":
		return a.updateStatus(ctx, args)
	case "reply":
		if len(args) < 2 {
			return usageError("contacts reply: expected ID and MESSAGE")
		}
		if err := a.contacts.Reply(ctx, args[0], strings.Join(args[1:], " ")); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Reply sent.")
		return nil
	case "spam":
		if len(args) != 1 {
			return usageError("contacts spam: expected ID")
		}
		if err := a.contacts.MarkAsSpam(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Marked as spam.")
		return nil
	case "delete":
		if len(args) != 1 {
			return usageError("contacts delete: expected ID")
		}
		if err := a.contacts.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Deleted.")
		return nil
	}
	return usageError("unknown contacts subcommand " + sub)
}

func (a *app) listContacts(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("contacts list", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	var opts contacts.ListOptions
	status := fs.String("status", "", "status filter")
	priority := fs.String("priority", "", "priority filter")
	fs.StringVar(&opts.ProjectType, "type", "", "project type filter")
	fs.StringVar(&opts.Search, "search", "", "search name, email, subject and message")
	fs.BoolVar(&opts.IncludeSpam, "spam", false, "include spam")
	fs.IntVar(&opts.Page, "page", 1, "page")
	fs.IntVar(&opts.Limit, "limit", 20, "page size")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	opts.Status = contacts.Status(*status)
	opts.Priority = contacts.Priority(*priority)

	list, err := a.contacts.List(ctx, opts)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRECEIVED\tSTATUS\tPRIORITY\tFROM\tSUBJECT")
	for _, c := range list.Contacts {
		status := string(c.Status)
		if c.IsSpam {
			status += " (spam)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", c.ID, c.CreatedAt.Local().Format("2006-01-02"),
			status, c.Priority, c.Email, truncate(c.Subject, 50))
	}
	tw.Flush()

	p := list.Pagination
	fmt.Fprintf(a.out, "\npage %d of %d, %d total", p.Page, p.Pages, p.Total)
	for _, st := range contacts.Statuses {
		if n := list.Stats.ByStatus[st]; n > 0 {
			fmt.Fprintf(a.out, ", %s %d", st, n)
		}
	}
	if list.Stats.Spam > 0 {
		fmt.Fprintf(a.out, ", spam %d", list.Stats.Spam)
	}
	fmt.Fprintln(a.out)
	return nil
}

func (a *app) updateStatus(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("contacts status: expected ID")
	}
	id := args[0]
	fs := flag.NewFlagSet("contacts status", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	status := fs.String("status", "", "new status")
	priority := fs.String("priority", "", "new priority")
	notes := fs.String("notes", "", "admin notes")
	if err := fs.Parse(args[1:]); err != nil {
		return usageError(err.Error())
	}

	var upd contacts.StatusUpdate
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "status":
			s := contacts.Status(*status)
			upd.Status = &s
		case "priority":
			p := contacts.Priority(*priority)
			upd.Priority = &p
		case "notes":
			upd.Notes = notes
		}
	})

	c, err := a.contacts.UpdateStatus(ctx, id, upd)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s is now %s, priority %s\n", c.ID, c.Status, c.Priority)
	return nil
}

func (a *app) upload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	var opts uploads.Options
	fs.StringVar(&opts.Folder, "folder", "", "destination folder")
	fs.IntVar(&opts.Quality, "quality", 0, "re-encode quality 1-100")
	fs.StringVar(&opts.Format, "format", "", "re-encode format, jpg or png")
	fs.Float64Var(&opts.Limits.MaxSizeMB, "max-mb", uploads.DefaultMaxSizeMB, "largest file to send")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if fs.NArg() == 0 {
		return usageError("upload: expected at least one FILE")
	}

	files := make([]uploads.File, 0, fs.NArg())
	for _, path := range fs.Args() {
		f, err := uploads.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, f)
	}

	imgs, err := a.uploads.UploadImages(ctx, files, opts)
	if err != nil {
		return err
	}
	for _, img := range imgs {
		fmt.Fprintf(a.out, "%s\t%dx%d\t%s\n", img.PublicID, img.Width, img.Height, img.URL)
	}
	return nil
}

func (a *app) printContact(c *contacts.Contact) {
	fmt.Fprintf(a.out, "%s\nFrom:     %s <%s>\n", c.Subject, c.Name, c.Email)
	if c.Company != "" {
		fmt.Fprintf(a.out, "Company:  %s\n", c.Company)
	}
	if c.Phone != "" {
		fmt.Fprintf(a.out, "Phone:    %s\n", c.Phone)
	}
	fmt.Fprintf(a.out, "Project:  %s, budget %s, timeline %s\n", c.ProjectType, c.Budget, c.Timeline)
	fmt.Fprintf(a.out, "Status:   %s, priority %s\n", c.Status, c.Priority)
	fmt.Fprintf(a.out, "Received: %s\n\n%s\n", c.CreatedAt.Local().Format("2006-01-02 15:04"), c.Message)
	if c.Notes != "" {
		fmt.Fprintf(a.out, "\nNotes: %s\n", c.Notes)
	}
	for _, r := range c.Replies {
		fmt.Fprintf(a.out, "\n--- reply %s ---\n%s\n", r.SentAt.Local().Format("2006-01-02 15:04"), r.Message)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
