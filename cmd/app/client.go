package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/starford/studynotes/internal/client"
	"github.com/starford/studynotes/internal/models"
	"github.com/starford/studynotes/internal/notequery"
	"github.com/starford/studynotes/internal/noteservice"
	"github.com/starford/studynotes/internal/session"
)

const defaultServer = "http://localhost:8080"

// clientFlags are shared by every client subcommand.
func clientFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Usage:   "API base URL (defaults to the signed-in server)",
			Sources: cli.EnvVars("STUDYNOTES_SERVER"),
		},
		&cli.StringFlag{
			Name:    "session",
			Usage:   "Path to the session file",
			Sources: cli.EnvVars("STUDYNOTES_SESSION"),
		},
	}
}

func sessionStore(cmd *cli.Command) (*session.FileStore, error) {
	path := cmd.String("session")
	if path == "" {
		var err error
		if path, err = session.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return session.NewFileStore(path), nil
}

// authedClient hydrates the saved session and returns a client using it.
func authedClient(cmd *cli.Command) (*client.Client, *session.FileStore, error) {
	store, err := sessionStore(cmd)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Load()
	if errors.Is(err, session.ErrNoSession) {
		return nil, nil, errors.New("not signed in; run 'studynotes login' first")
	}
	if err != nil {
		return nil, nil, err
	}
	server := cmd.String("server")
	if server == "" {
		server = st.Server
	}
	c := client.New(server)
	c.SetToken(st.AccessToken)
	return c, store, nil
}

// checkAuth turns a rejected token into a cleared session.
func checkAuth(store *session.FileStore, err error) error {
	if client.IsUnauthorized(err) {
		_ = store.Clear()
		return errors.New("session expired or revoked; run 'studynotes login' again")
	}
	return err
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in and remember the session",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "email", Usage: "Account email", Required: true},
			&cli.StringFlag{Name: "password", Usage: "Account password (prompted when empty)", Sources: cli.EnvVars("STUDYNOTES_PASSWORD")},
		}, clientFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			store, err := sessionStore(cmd)
			if err != nil {
				return err
			}
			password := cmd.String("password")
			if password == "" {
				if password, err = prompt("Password: "); err != nil {
					return err
				}
			}
			server := cmd.String("server")
			if server == "" {
				server = defaultServer
			}

			c := client.New(server)
			resp, err := c.SignIn(ctx, cmd.String("email"), password)
			if err != nil {
				return err
			}
			st := &session.State{
				Server:      c.BaseURL(),
				AccessToken: resp.Session.AccessToken,
				ExpiresAt:   resp.Session.ExpiresAt,
			}
			if resp.User != nil {
				st.UserID, st.Email = resp.User.ID, resp.User.Email
			}
			if err := store.Save(st); err != nil {
				return err
			}
			fmt.Fprintf(cmd.Root().Writer, "Signed in as %s\n", st.Email)
			return nil
		},
	}
}

func prompt(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Revoke the token and forget the session",
		Flags: clientFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			store, err := sessionStore(cmd)
			if err != nil {
				return err
			}
			c, _, err := authedClient(cmd)
			if err == nil {
				if err := c.SignOut(ctx); err != nil && !client.IsUnauthorized(err) {
					return err
				}
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.Root().Writer, "Logged out")
			return nil
		},
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the signed-in identity",
		Flags: clientFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, store, err := authedClient(cmd)
			if err != nil {
				return err
			}
			me, err := c.Me(ctx)
			if err != nil {
				return checkAuth(store, err)
			}
			fmt.Fprintf(cmd.Root().Writer, "%s (%s) on %s\n", me.Email, me.UserID, c.BaseURL())
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search your notes",
		ArgsUsage: "[title]",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "tag", Usage: "Only notes carrying this tag"},
			&cli.StringFlag{Name: "from", Usage: "Created at or after (YYYY-MM-DD or RFC 3339)"},
			&cli.StringFlag{Name: "to", Usage: "Created at or before"},
			&cli.StringSliceFlag{Name: "type", Usage: "File types, e.g. PDF (repeatable)"},
			&cli.StringFlag{Name: "sort", Usage: "created_at, file_name, file_type or relevance"},
			&cli.StringFlag{Name: "order", Usage: "asc or desc"},
		}, clientFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, store, err := authedClient(cmd)
			if err != nil {
				return err
			}
			notes, err := c.Search(ctx, notequery.Params{
				Title:     strings.Join(cmd.Args().Slice(), " "),
				Tag:       cmd.String("tag"),
				From:      cmd.String("from"),
				To:        cmd.String("to"),
				FileTypes: cmd.StringSlice("type"),
				SortField: cmd.String("sort"),
				SortOrder: cmd.String("order"),
			})
			if err != nil {
				return checkAuth(store, err)
			}
			printNotes(cmd.Root().Writer, notes)
			return nil
		},
	}
}

func printNotes(w io.Writer, notes []models.Note) {
	if len(notes) == 0 {
		fmt.Fprintln(w, "No notes found")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tTYPE\tTAGS\tCREATED")
	for _, n := range notes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			n.ID, n.FileName, n.FileType, strings.Join(n.Tags, ","), n.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}

func uploadCommand() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "Upload a note file",
		ArgsUsage: "<file>",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "title", Usage: "Note title (defaults to the file name)"},
			&cli.StringFlag{Name: "description", Usage: "Note description"},
			&cli.StringFlag{Name: "tags", Usage: "Comma separated tags"},
		}, clientFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return errors.New("upload: file argument is required")
			}
			c, store, err := authedClient(cmd)
			if err != nil {
				return err
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			title := cmd.String("title")
			if title == "" {
				title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}
			note, err := c.Upload(ctx, client.Upload{
				Title:       title,
				Description: cmd.String("description"),
				Tags:        noteservice.ParseTags(cmd.String("tags")),
				FileName:    filepath.Base(path),
				Body:        f,
			})
			if err != nil {
				return checkAuth(store, err)
			}
			fmt.Fprintf(cmd.Root().Writer, "Uploaded %s\n%s\n", note.ID, note.FileURL)
			return nil
		},
	}
}

func rmCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Delete one of your notes",
		ArgsUsage: "<note-id>",
		Flags:     clientFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return errors.New("rm: note id is required")
			}
			c, store, err := authedClient(cmd)
			if err != nil {
				return err
			}
			if err := c.Delete(ctx, id); err != nil {
				return checkAuth(store, err)
			}
			fmt.Fprintln(cmd.Root().Writer, "Note deleted")
			return nil
		},
	}
}
