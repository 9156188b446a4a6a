package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/foretell-app/foretell"
	"github.com/foretell-app/foretell/authenticator/soft"
	"github.com/foretell-app/foretell/capability"
	"github.com/foretell-app/foretell/client"
	"github.com/foretell-app/foretell/console"
	"github.com/foretell-app/foretell/crypt/secure"
	"github.com/foretell-app/foretell/ledger"
	"github.com/foretell-app/foretell/log"
	"github.com/foretell-app/foretell/provider/kv"
	"github.com/foretell-app/foretell/provider/redis"
	"github.com/foretell-app/foretell/provider/sqlite"
	"github.com/foretell-app/foretell/utils"
	"github.com/foretell-app/foretell/utils/fs"
)

// Application is the assembled CLI
type Application struct {
	container *foretell.Container
	cfg       *Config
	printer   *console.Printer
	logger    *log.Logger
	db        kv.KV
	auth      *soft.Authenticator
	client    *client.Client
}

func NewApplication(args *CliArgs, printer *console.Printer) (*Application, error) {
	p, err := NewConfigProvider(*args.ConfigFile)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(p)
	if err != nil {
		return nil, err
	}
	if *args.Store != "" {
		cfg.Store.Backend = *args.Store
		if err = cfg.Store.Validate(); err != nil {
			return nil, err
		}
	}
	if *args.Debug {
		cfg.Log.Level = "debug"
	}
	return &Application{
		container: foretell.NewContainer(p),
		cfg:       cfg,
		printer:   printer,
	}, nil
}

// Build assembles the store, the authenticator and the client
func (a *Application) Build(ctx context.Context) error {
	if err := log.Configure(a.cfg.Log); err != nil {
		return err
	}
	foretell.RegisterDestructor(func() error {
		log.CloseLogFiles()
		return nil
	})
	a.logger = log.New("cli")

	var err error
	if a.db, err = a.openStore(); err != nil {
		return err
	}
	if err = ensureKeyFile(a.cfg.Authenticator.KeyConfig); err != nil {
		return err
	}
	a.auth, err = soft.New(a.cfg.Authenticator, a.db,
		soft.WithPresence(a.presence),
		soft.WithChooser(a.choose),
	)
	if err != nil {
		return err
	}

	caps := capability.Probe(ctx, a.auth)
	mock, err := ledger.NewMock(a.cfg.Client.Ledger)
	if err != nil {
		return err
	}
	wallet := ledger.StaticWallet{Address: a.cfg.Wallet.Address}
	if a.client, err = client.New(a.cfg.Client, caps, a.auth, a.db, mock, wallet); err != nil {
		return err
	}

	if path := a.cfg.Client.Metrics.TextfilePath; path != "" {
		metrics := a.client.Metrics()
		foretell.RegisterDestructor(func() error {
			return metrics.WriteTextfile(path)
		})
	}
	return nil
}

func (a *Application) openStore() (kv.KV, error) {
	switch a.cfg.Store.Backend {
	case BackendRedis:
		c, err := redis.NewClient(a.cfg.Redis)
		if err != nil {
			return nil, err
		}
		if err = c.Connect(); err != nil {
			return nil, err
		}
		foretell.RegisterDestructor(c.Close)
		return c, nil
	case BackendMemory:
		return kv.NewMemoryKV(), nil
	}

	if dir := filepath.Dir(a.cfg.SQLite.Path); a.cfg.SQLite.Path != sqlite.MemoryPath && !fs.DirExists(dir) {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}
	c, err := sqlite.NewClient(a.cfg.SQLite)
	if err != nil {
		return nil, err
	}
	foretell.RegisterDestructor(c.Close)
	// expired rows are only removed on read otherwise
	if err = c.Prune(); err != nil {
		return nil, err
	}
	return c, nil
}

// ensureKeyFile creates a random master key when the configured key file does not exist yet
func ensureKeyFile(cfg secure.KeyConfig) error {
	if cfg.Key != "" || cfg.KeyEnvVar != "" || cfg.KeyFile == "" || fs.FileExists(cfg.KeyFile) {
		return nil
	}
	key, err := utils.GenerateRandomBytes(secure.KeyLength)
	if err != nil {
		return err
	}
	return fs.WriteSecret(cfg.KeyFile, []byte(base64.StdEncoding.EncodeToString(key)+"\n"))
}

// presence asks the user to approve a ceremony on the terminal
func (a *Application) presence(ctx context.Context, prompt soft.Prompt) error {
	question := fmt.Sprintf("Use passkey for %s", prompt.RPID)
	if prompt.UserName != "" {
		question += fmt.Sprintf(" as %s", prompt.UserName)
	}
	if prompt.Ceremony == soft.CeremonyCreate {
		question = fmt.Sprintf("Create a passkey for %s", prompt.RPID)
	}
	ok, err := a.printer.Confirm(ctx, question+"?", true)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDeclined
	}
	return nil
}

// choose is the account picker of a discoverable login
func (a *Application) choose(ctx context.Context, candidates []soft.Candidate) (int, error) {
	if len(candidates) == 1 {
		return 0, nil
	}
	a.printer.Info("Choose a passkey:")
	for i, c := range candidates {
		a.printer.Plain("  %d) %s  created %s", i+1, c.DisplayName, c.Created.Format("2006-01-02 15:04"))
	}
	answer, err := a.printer.ReadLine(ctx, "> ")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 || n > len(candidates) {
		return 0, fmt.Errorf("invalid choice %q", answer)
	}
	return n - 1, nil
}

// Run executes command in the container; Ctrl-C cancels a pending ceremony
func (a *Application) Run(command string, args []string) error {
	return a.container.Run(
		func(c *foretell.Container) error {
			return a.Build(c.GetContext())
		},
		func(c *foretell.Container) error {
			return a.dispatch(c.GetContext(), command, args)
		},
	)
}
