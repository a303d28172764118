package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/ledgermail/internal/client/client"
	"github.com/dmitrijs2005/ledgermail/internal/client/config"
	"github.com/dmitrijs2005/ledgermail/internal/client/controller"
	"github.com/dmitrijs2005/ledgermail/internal/client/credential"
	"github.com/dmitrijs2005/ledgermail/internal/client/host"
	"github.com/dmitrijs2005/ledgermail/internal/client/mail"
	"github.com/dmitrijs2005/ledgermail/internal/client/models"
	"github.com/dmitrijs2005/ledgermail/internal/client/repositories/settings"
	"github.com/dmitrijs2005/ledgermail/internal/client/services"
	"github.com/dmitrijs2005/ledgermail/internal/client/session"
	"github.com/dmitrijs2005/ledgermail/internal/logging"
)

// App is the panel: the open message, the session and the controller.
type App struct {
	cfg      *config.Config
	logger   logging.Logger
	mailbox  *host.Mailbox
	creds    credential.Store
	sessions *session.Manager
	orgs     services.OrgService
	ctrl     *controller.Controller
	reader   *bufio.Reader
	out      io.Writer

	// numbered lists last printed, for "pick <n>" and "folder <n>"
	shown   []models.SearchResult
	folders []models.TreeNode

	closers []func() error
}

// NewApp connects to the local settings store, the keyring and the document
// service and builds the controller on top of them.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewTextLogger(os.Stderr, cfg.LogLevel)
	var closers []func() error
	fail := func(err error) (*App, error) {
		for _, c := range closers {
			_ = c()
		}
		return nil, err
	}

	localDB, err := settings.Open(ctx, cfg.LocalDBPath)
	if err != nil {
		return fail(fmt.Errorf("error initializing settings database: %w", err))
	}
	closers = append(closers, localDB.Close)

	creds, err := credential.Open(filepath.Join(filepath.Dir(cfg.LocalDBPath), ".keyring"))
	if err != nil {
		return fail(err)
	}
	sessions := session.NewManager(creds)
	if _, err := sessions.Load(cfg.AccessToken); err != nil {
		return fail(err)
	}

	remoteDB, err := client.OpenPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, remoteDB.Close)
	if cfg.MigrateRemote {
		if err := client.MigrateRemote(ctx, remoteDB); err != nil {
			return fail(fmt.Errorf("error migrating document service schema: %w", err))
		}
	}

	storage, err := client.NewS3Storage(ctx, client.S3Config{
		Region:    cfg.S3.Region,
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
	}, logger)
	if err != nil {
		return fail(err)
	}

	remote := client.NewPostgres(remoteDB, sessions.Claims, logger)
	a, err := assemble(cfg, logger, remote, storage, settings.NewSQLiteRepository(localDB), creds, sessions)
	if err != nil {
		return fail(err)
	}
	a.closers = closers
	return a, nil
}

// assemble wires the services and the controller over the infrastructure
// built by NewApp.
func assemble(
	cfg *config.Config,
	logger logging.Logger,
	remote client.Remote,
	storage client.Storage,
	store settings.Repository,
	creds credential.Store,
	sessions *session.Manager,
) (*App, error) {
	downloads, err := controller.NewDownloads(cfg.DownloadDir)
	if err != nil {
		return nil, err
	}

	mailbox := host.NewMailbox(nil)
	orgs := services.NewOrgService(remote, store, logger)
	ctrl := controller.New(
		mail.NewExtractor(mailbox, logger),
		services.NewDestinationService(remote, cfg.TreeLimit, logger),
		services.NewUploadService(remote, storage, logger),
		orgs,
		sessions,
		downloads,
		logger,
		controller.Options{ListLimit: cfg.ListLimit, ClearDelay: cfg.StatusClearDelay},
	)

	return &App{
		cfg:      cfg,
		logger:   logger,
		mailbox:  mailbox,
		creds:    creds,
		sessions: sessions,
		orgs:     orgs,
		ctrl:     ctrl,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	}, nil
}

// Boot restores the persisted org, feeds the session to org memory and opens
// the configured message.
func (a *App) Boot(ctx context.Context) error {
	if _, err := a.orgs.Boot(ctx); err != nil {
		return err
	}

	var errs []error
	if err := a.ctrl.SyncSession(ctx); err != nil {
		errs = append(errs, err)
	}
	switch {
	case a.cfg.Source == config.SourceEML && a.cfg.EMLPath != "":
		errs = append(errs, a.Open(ctx, nil))
	case a.cfg.Source == config.SourceIMAP && a.cfg.IMAP.UID != 0:
		errs = append(errs, a.Open(ctx, nil))
	}
	return errors.Join(errs...)
}

// Run boots the panel and blocks in the REPL until the user exits.
func (a *App) Run(ctx context.Context) {
	defer a.Close(ctx)

	printlnFn("Welcome to ledgermail (type 'help' for commands)")
	if err := a.Boot(ctx); err != nil {
		printlnFn(errorText(err))
	}
	runREPL(ctx, a, a.prompt, bufio.NewScanner(a.reader))
}

// Close revokes download files and closes databases.
func (a *App) Close(ctx context.Context) {
	a.ctrl.Close(ctx)
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn(ctx, "close failed", "error", err)
		}
	}
}

func (a *App) prompt() string {
	v := a.ctrl.Snapshot()
	s := "signed out"
	if st := a.sessions.State(); st.Authenticated {
		s = st.Email
		if s == "" {
			s = "signed in"
		}
	}
	if v.Org.Name != "" {
		s += " @ " + v.Org.Name
	}
	if v.Selected != nil {
		s += " / " + string(v.Kind) + ": " + v.Selected.Label
	}
	return "(" + s + ")"
}
