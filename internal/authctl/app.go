// Package authctl implements the operator command line: schema migration,
// the expiry sweep and account bootstrap.
package authctl

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/services"
)

var (
	ErrUnknownCommand   = errors.New("unknown command")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

const usage = `usage: authctl <command> [args] [flags]

commands:
  migrate                          apply database migrations
  sweep                            delete expired remember tokens, reset tokens and rate-limit rows
  create-user [username] [email]   create an account, prompting for anything missing
  help                             show this message`

// Executor performs the storage-backed work behind each command.
type Executor interface {
	Migrate(ctx context.Context) error
	Sweep(ctx context.Context) (*services.SweepResult, error)
	CreateUser(ctx context.Context, username, email, password string) (*models.User, error)
}

type App struct {
	exec Executor
	in   *bufio.Reader
	out  io.Writer
}

func NewApp(exec Executor, in io.Reader, out io.Writer) *App {
	return &App{exec: exec, in: bufio.NewReader(in), out: out}
}

// Run executes the command named by args[0]. Positional arguments must come
// before any flag.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, usage)
		return ErrUnknownCommand
	}

	switch cmd, rest := args[0], positional(args[1:]); cmd {
	case "migrate":
		if err := a.exec.Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "migrations applied")
		return nil

	case "sweep":
		res, err := a.exec.Sweep(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "removed %d remember tokens, %d password resets, %d rate-limit rows\n",
			res.RememberTokens, res.PasswordResets, res.RateLimits)
		return nil

	case "create-user":
		return a.createUser(ctx, rest)

	case "help", "-h", "--help":
		fmt.Fprintln(a.out, usage)
		return nil

	default:
		fmt.Fprintln(a.out, usage)
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
}

func (a *App) createUser(ctx context.Context, args []string) error {
	var username, email string
	if len(args) > 0 {
		username = args[0]
	}
	if len(args) > 1 {
		email = args[1]
	}

	var err error
	if username == "" {
		if username, err = GetSimpleText(a.in, "Username", a.out); err != nil {
			return err
		}
	}
	if email == "" {
		if email, err = GetSimpleText(a.in, "Email", a.out); err != nil {
			return err
		}
	}

	pw, err := GetPassword(a.out, "Password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	confirm, err := GetPassword(a.out, "Repeat password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if !bytes.Equal(pw, confirm) {
		return ErrPasswordMismatch
	}

	u, err := a.exec.CreateUser(ctx, username, email, string(pw))
	if err != nil {
		var verr *common.ValidationError
		if errors.As(err, &verr) {
			for field, msg := range verr.Fields {
				fmt.Fprintf(a.out, "  %s: %s\n", field, msg)
			}
		}
		return err
	}

	fmt.Fprintf(a.out, "created user %s (%s)\n", u.UserName, u.PublicID)
	return nil
}

// positional returns the leading arguments up to the first flag.
func positional(args []string) []string {
	for i, arg := range args {
		if strings.HasPrefix(arg, "-") {
			return args[:i]
		}
	}
	return args
}
