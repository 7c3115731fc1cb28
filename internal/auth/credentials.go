package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Environment variables read by EnvProvider.
const (
	DefaultUsernameEnv = "SITEWALK_USERNAME"
	DefaultPasswordEnv = "SITEWALK_PASSWORD"
)

// Credentials is a username and password pair.
// It implements slog.LogValuer so the password never reaches a log.
type Credentials struct {
	Username string
	Password string
}

// Valid reports whether both fields are set.
func (c Credentials) Valid() bool {
	return c.Username != "" && c.Password != ""
}

// LogValue implements slog.LogValuer.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", c.Username),
		slog.String("password", "[REDACTED]"),
	)
}

// String masks the password so fmt verbs cannot leak it.
func (c Credentials) String() string {
	return fmt.Sprintf("{%s ********}", c.Username)
}

// CredentialsProvider supplies credentials for the login flow.
type CredentialsProvider interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// StaticProvider returns fixed credentials.
type StaticProvider struct {
	creds Credentials
}

// Static creates a provider returning username and password.
func Static(username, password string) *StaticProvider {
	return &StaticProvider{creds: Credentials{Username: username, Password: password}}
}

// Credentials implements CredentialsProvider.
func (p *StaticProvider) Credentials(_ context.Context) (Credentials, error) {
	if !p.creds.Valid() {
		return Credentials{}, ErrMissingCredentials
	}
	return p.creds, nil
}

// EnvProvider reads credentials from environment variables.
type EnvProvider struct {
	// Username overrides the username variable when set.
	Username    string
	UsernameVar string
	PasswordVar string

	lookup func(string) (string, bool)
}

// Env creates a provider reading SITEWALK_USERNAME and SITEWALK_PASSWORD.
func Env() *EnvProvider {
	return &EnvProvider{
		UsernameVar: DefaultUsernameEnv,
		PasswordVar: DefaultPasswordEnv,
		lookup:      os.LookupEnv,
	}
}

// Credentials implements CredentialsProvider.
func (p *EnvProvider) Credentials(_ context.Context) (Credentials, error) {
	lookup := p.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	creds := Credentials{Username: p.Username}
	if creds.Username == "" {
		creds.Username, _ = lookup(p.UsernameVar)
	}
	creds.Password, _ = lookup(p.PasswordVar)

	if !creds.Valid() {
		return Credentials{}, fmt.Errorf("%w: set %s and %s", ErrMissingCredentials, p.UsernameVar, p.PasswordVar)
	}
	return creds, nil
}

// terminalMu serializes prompts: only one may own the terminal at a time.
var terminalMu sync.Mutex

// PromptProvider asks for credentials on a terminal.
// The password is read without echo. Concurrent prompts wait for each other.
type PromptProvider struct {
	// Username skips the username prompt when set.
	Username string

	in  io.Reader
	out io.Writer
	fd  int

	isTerminal   func(fd int) bool
	readPassword func(fd int) ([]byte, error)
}

// Prompt creates a provider reading from stdin and writing prompts to stderr.
func Prompt(username string) *PromptProvider {
	return NewPromptProvider(username, os.Stdin, os.Stderr, int(os.Stdin.Fd()))
}

// NewPromptProvider creates a provider reading the username from in and the
// password from the terminal fd.
func NewPromptProvider(username string, in io.Reader, out io.Writer, fd int) *PromptProvider {
	return &PromptProvider{
		Username:     username,
		in:           in,
		out:          out,
		fd:           fd,
		isTerminal:   term.IsTerminal,
		readPassword: term.ReadPassword,
	}
}

// Credentials implements CredentialsProvider.
func (p *PromptProvider) Credentials(_ context.Context) (Credentials, error) {
	if !p.isTerminal(p.fd) {
		return Credentials{}, fmt.Errorf("%w: %w", ErrMissingCredentials, ErrNoTerminal)
	}

	terminalMu.Lock()
	defer terminalMu.Unlock()

	creds := Credentials{Username: p.Username}
	if creds.Username == "" {
		fmt.Fprint(p.out, "Username or email: ")
		line, err := bufio.NewReader(p.in).ReadString('\n')
		if err != nil && line == "" {
			return Credentials{}, fmt.Errorf("%w: %w", ErrMissingCredentials, err)
		}
		creds.Username = strings.TrimSpace(line)
	}

	fmt.Fprint(p.out, "Password: ")
	pw, err := p.readPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read password: %w", err)
	}
	creds.Password = string(pw)

	if !creds.Valid() {
		return Credentials{}, ErrMissingCredentials
	}
	return creds, nil
}

// FirstOf returns a provider that asks each provider in turn and returns the
// first valid credentials.
func FirstOf(providers ...CredentialsProvider) CredentialsProvider {
	return chain(providers)
}

type chain []CredentialsProvider

func (c chain) Credentials(ctx context.Context) (Credentials, error) {
	err := ErrMissingCredentials
	for _, p := range c {
		creds, perr := p.Credentials(ctx)
		if perr == nil {
			return creds, nil
		}
		err = perr
	}
	return Credentials{}, err
}

// OnceProvider asks the wrapped provider on the first call only. Every
// caller, including ones that arrive while the first call is running,
// gets the same credentials or the same error.
type OnceProvider struct {
	provider CredentialsProvider

	once  sync.Once
	creds Credentials
	err   error
}

// Once wraps provider so that several logins share one answer.
func Once(provider CredentialsProvider) *OnceProvider {
	return &OnceProvider{provider: provider}
}

// Credentials implements CredentialsProvider.
func (p *OnceProvider) Credentials(ctx context.Context) (Credentials, error) {
	p.once.Do(func() {
		p.creds, p.err = p.provider.Credentials(ctx)
	})
	return p.creds, p.err
}
