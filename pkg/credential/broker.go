package credential

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/oneconcern/monorel/pkg/errors"
	gitstatus "github.com/oneconcern/monorel/pkg/git/status"
	"github.com/oneconcern/monorel/pkg/model"
	"github.com/oneconcern/monorel/pkg/secret"
	"github.com/oneconcern/monorel/pkg/status"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DefaultLifetime bounds a credential acquired without a run deadline
const DefaultLifetime = time.Hour

const redacted = "*****"

// Remote is the part of a git repository the broker needs to install a credential
type Remote interface {
	RemoteURL(ctx context.Context, remote string) (string, error)
	SetRemoteURL(ctx context.Context, remote, url string) error
	LsRemote(ctx context.Context, remote string) error
}

// Broker hands out per-run push credentials
type Broker struct {
	repo       Remote
	remote     string
	tokenEnv   string
	username   string
	idTokenEnv string
	verifier   Verifier
	source     func(string) (*secret.Buffer, error)
	now        func() time.Time
	l          *zap.Logger
}

// NewBroker builds a credential broker for the remote of a repository
func NewBroker(repo Remote, opts ...Option) *Broker {
	b := &Broker{
		repo:     repo,
		remote:   "origin",
		tokenEnv: DefaultTokenEnv,
		username: DefaultUsername,
		source:   secret.FromEnv,
		now:      time.Now,
		l:        zap.NewNop(),
	}
	for _, apply := range opts {
		apply(b)
	}
	return b
}

// Acquire reads the run's secret, binds it to the run deadline and installs it on the remote.
//
// The credential is verified against the remote before being handed out. Every failure
// is an authentication error, and leaves the remote URL as it was.
func (b *Broker) Acquire(ctx context.Context, run *model.Run) (*Credential, error) {
	token, err := b.source(b.tokenEnv)
	if err != nil {
		return nil, status.ErrAuth.Wrap(err)
	}

	principal, err := b.principal(ctx, run)
	if err != nil {
		_ = token.Close()
		return nil, err
	}

	expiry, ok := ctx.Deadline()
	if !ok {
		expiry = b.now().Add(DefaultLifetime)
	}

	cred := &Credential{
		Principal: principal,
		RunID:     run.ID,
		username:  b.username,
		secret:    token,
		token: &oauth2.Token{
			AccessToken: token.String(),
			TokenType:   "Bearer",
			Expiry:      expiry,
		},
	}

	if err = b.install(ctx, cred); err != nil {
		_ = token.Close()
		return nil, err
	}

	b.l.Info("credential acquired",
		zap.String("run_id", run.ID),
		zap.String("principal", principal),
		zap.String("remote", b.remote),
		zap.Time("expiry", expiry),
	)
	return cred, nil
}

func (b *Broker) principal(ctx context.Context, run *model.Run) (string, error) {
	if b.verifier == nil {
		if run.Event.Author.Name != "" || run.Event.Author.Email != "" {
			return run.Event.Author.String(), nil
		}
		return b.username, nil
	}

	raw, err := b.source(b.idTokenEnv)
	if err != nil {
		return "", status.ErrAuth.Wrap(err)
	}
	defer func() { _ = raw.Close() }()

	subject, err := b.verifier.Principal(ctx, raw.String())
	if err != nil {
		if errors.Is(err, status.ErrAuth) {
			return "", err
		}
		return "", status.ErrAuth.Wrap(err)
	}
	return subject, nil
}

func (b *Broker) install(ctx context.Context, cred *Credential) error {
	original, err := b.repo.RemoteURL(ctx, b.remote)
	if err != nil {
		return status.ErrAuth.Wrap(err)
	}

	u, err := url.Parse(original)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return status.ErrAuth.Wrap(gitstatus.ErrNotHTTPS.Wrapf("remote %s", b.remote))
	}
	u.User = url.UserPassword(cred.username, cred.token.AccessToken)

	if err = b.repo.SetRemoteURL(ctx, b.remote, u.String()); err != nil {
		return status.ErrAuth.Wrap(cred.scrub(err))
	}

	cred.restore = func(ctx context.Context) error {
		return b.repo.SetRemoteURL(ctx, b.remote, original)
	}

	if err = b.repo.LsRemote(ctx, b.remote); err != nil {
		verr := status.ErrAuth.Wrap(cred.scrub(err))
		if rerr := cred.restore(context.Background()); rerr != nil {
			return multierr.Append(verr, fmt.Errorf("restoring remote url: %w", cred.scrub(rerr)))
		}
		return verr
	}
	return nil
}

// Credential is a short-lived push credential, valid for a single run.
type Credential struct {
	Principal string
	RunID     string

	mu       sync.Mutex
	username string
	secret   *secret.Buffer
	token    *oauth2.Token
	restore  func(context.Context) error
	released bool
}

var _ oauth2.TokenSource = &Credential{}

// Expiry of the credential
func (c *Credential) Expiry() time.Time {
	return c.token.Expiry
}

// Valid tells if the credential is neither released nor expired
func (c *Credential) Valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.valid()
}

func (c *Credential) valid() bool {
	return !c.released && c.token.Valid()
}

// Token exposes the credential as an oauth2 token, so it may serve as an oauth2.TokenSource.
func (c *Credential) Token() (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid() {
		return nil, status.ErrAuth.Wrapf("credential for run %s is no longer valid", c.RunID)
	}
	token := *c.token
	return &token, nil
}

// Release restores the remote URL and wipes the secret. Release is idempotent.
//
// The context should not be the run context, which may be done by the time the
// credential is released.
func (c *Credential) Release(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return nil
	}
	c.released = true

	var err error
	if c.restore != nil {
		if rerr := c.restore(ctx); rerr != nil {
			err = multierr.Append(err, fmt.Errorf("restoring remote url: %w", c.scrub(rerr)))
		}
	}
	c.token.AccessToken = ""
	return multierr.Append(err, c.secret.Close())
}

// scrub removes the secret from an error message, e.g. a git error echoing the remote URL.
func (c *Credential) scrub(err error) error {
	if err == nil {
		return nil
	}
	token := c.secret.String()
	msg := err.Error()
	if !strings.Contains(msg, token) && !strings.Contains(msg, url.PathEscape(token)) {
		return err
	}
	msg = strings.ReplaceAll(msg, token, redacted)
	msg = strings.ReplaceAll(msg, url.PathEscape(token), redacted)
	return errors.New(msg)
}
