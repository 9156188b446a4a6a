package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/foretell-app/foretell/authenticator"
	"github.com/foretell-app/foretell/capability"
	"github.com/foretell-app/foretell/client"
	"github.com/foretell-app/foretell/commitment"
	"github.com/foretell-app/foretell/ledger"
	"github.com/foretell-app/foretell/prediction"
)

const timeLayout = "2006-01-02 15:04:05"

type command struct {
	usage string
	help  string
	run   func(a *Application, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"probe":    {"probe", "show passkey and large blob support", (*Application).probe},
	"register": {"register", "create a passkey bound to secure storage", (*Application).register},
	"login":    {"login", "sign in with an existing passkey", (*Application).login},
	"logout":   {"logout", "forget the local session", (*Application).logout},
	"status":   {"status", "show the session and cache state", (*Application).status},
	"predict":  {"predict <text>", "commit a prediction and store it", (*Application).predict},
	"list":     {"list", "list stored predictions", (*Application).list},
	"verify":   {"verify <salted content> <hash>", "check a revealed prediction against its hash", (*Application).verify},
	"share":    {"share <hash>", "print the reveal message and share link of a prediction", (*Application).share},
}

var commandOrder = []string{"probe", "register", "login", "logout", "status", "predict", "list", "verify", "share"}

func (a *Application) dispatch(ctx context.Context, name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", ErrUsage, name)
	}
	return cmd.run(a, ctx, args)
}

func (a *Application) probe(_ context.Context, _ []string) error {
	caps := a.client.Capabilities()
	a.printer.Plain("user agent:     %s", a.auth.UserAgent())
	a.printer.Plain("passkeys:       %s", caps.WebAuthn)
	a.printer.Plain("large blob:     %s", caps.LargeBlob)
	if caps.SecureStorage() {
		a.printer.Success("secure storage available")
	} else {
		a.printer.Warn("secure storage unavailable, predictions are stored in plaintext")
	}
	return nil
}

func (a *Application) register(ctx context.Context, _ []string) error {
	credentialID, err := a.client.Register(ctx)
	if err != nil {
		return explain(err)
	}
	a.printer.Success("passkey created")
	a.printer.Plain("credential: %s", credentialID)
	return nil
}

func (a *Application) login(ctx context.Context, _ []string) error {
	result, err := a.client.Login(ctx)
	if err != nil {
		return explain(err)
	}
	a.printer.Success("signed in")
	a.printer.Plain("credential: %s", result.CredentialID)
	if !result.HasData {
		a.printer.Warn("the passkey holds no predictions")
		return nil
	}
	a.printer.Plain("predictions: %d", len(result.Predictions))
	return nil
}

func (a *Application) logout(_ context.Context, _ []string) error {
	if err := a.client.Logout(); err != nil {
		return err
	}
	a.printer.Success("signed out")
	return nil
}

func (a *Application) status(_ context.Context, _ []string) error {
	a.printer.Plain("state: %s", a.client.State())
	state := a.client.GetAuthState()
	if state == nil {
		return nil
	}
	a.printer.Plain("credential: %s", state.CredentialID)
	a.printer.Plain("user:       %s", state.UserID)
	a.printer.Plain("last used:  %s", time.UnixMilli(state.LastUsed).Format(timeLayout))
	switch {
	case state.CachedPredictions == nil:
		a.printer.Plain("cache:      empty")
	case state.CacheValid(time.Now()):
		a.printer.Plain("cache:      %d predictions, valid until %s", len(state.CachedPredictions),
			time.UnixMilli(state.CacheExpiry).Format(timeLayout))
	default:
		a.printer.Plain("cache:      expired")
	}
	return nil
}

func (a *Application) predict(ctx context.Context, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return fmt.Errorf("%w: predict <text>", ErrUsage)
	}
	a.printer.Dim("submitting commitment...")
	stored, err := a.client.CreatePrediction(ctx, text)
	if err != nil {
		return explain(err)
	}
	if stored.Location == client.Secure {
		a.printer.Success("prediction committed and secured with your passkey")
	} else {
		a.printer.Warn("prediction committed and stored in plaintext")
	}
	a.printer.Plain("hash: %s", stored.Prediction.Hash)
	a.printer.Plain("tx:   %s", stored.Prediction.TxHash)
	return nil
}

func (a *Application) list(ctx context.Context, _ []string) error {
	listing, err := a.client.ListPredictions(ctx)
	if err != nil {
		return explain(err)
	}
	if listing.Authenticated {
		a.printer.Info("secure storage (%d)", len(listing.Secure))
		a.printList(listing.Secure)
	}
	if len(listing.Plaintext) > 0 || !listing.Authenticated {
		a.printer.Info("plaintext storage (%d)", len(listing.Plaintext))
		a.printList(listing.Plaintext)
	}
	return nil
}

func (a *Application) printList(list []prediction.Prediction) {
	for _, p := range list {
		a.printer.Plain("  %s  %s", time.UnixMilli(p.Timestamp).Format(timeLayout), p.Content)
		a.printer.Dim("      hash %s  tx %s", p.Hash, p.TxHash)
	}
}

func (a *Application) verify(_ context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: verify <salted content> <hash>", ErrUsage)
	}
	text, salt, ok := commitment.SplitSalt(args[0])
	if !ok {
		return fmt.Errorf("%w: content has no salt suffix", ErrUsage)
	}
	if !commitment.Verify(args[0], args[1]) {
		a.printer.Error("hash does not match")
		return commitment.ErrMismatch
	}
	a.printer.Success("hash matches")
	a.printer.Plain("prediction: %s", text)
	a.printer.Plain("salt:       %s", salt)
	return nil
}

func (a *Application) share(ctx context.Context, args []string) error {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return fmt.Errorf("%w: share <hash>", ErrUsage)
	}
	p, err := a.findPrediction(ctx, args[0])
	if err != nil {
		return err
	}
	shared := a.client.Share(*p)
	a.printer.Plain("%s", shared.Message)
	a.printer.Dim("share: %s", shared.Link)
	return nil
}

// findPrediction looks up a prediction by hash or unique hash prefix in both stores
func (a *Application) findPrediction(ctx context.Context, hash string) (*prediction.Prediction, error) {
	listing, err := a.client.ListPredictions(ctx)
	if err != nil {
		return nil, explain(err)
	}
	hash = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(hash), "0x"))
	var found []prediction.Prediction
	for _, p := range append(listing.Secure, listing.Plaintext...) {
		if strings.HasPrefix(p.Hash, hash) {
			found = append(found, p)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrPredictionNotFound, hash)
	case 1:
		return &found[0], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrAmbiguousHash, hash)
}

// explain maps subsystem errors to a recoverable message
func explain(err error) error {
	switch {
	case errors.Is(err, capability.ErrUnsupportedPlatform):
		return fmt.Errorf("passkeys are not supported here: %w", err)
	case errors.Is(err, authenticator.ErrCancelled), errors.Is(err, authenticator.ErrTimeout):
		return fmt.Errorf("cancelled: %w", err)
	case errors.Is(err, authenticator.ErrNoCredential):
		return fmt.Errorf("no passkey found, run register first: %w", err)
	case errors.Is(err, ledger.ErrRejected):
		return fmt.Errorf("transaction rejected in wallet: %w", err)
	case errors.Is(err, client.ErrWalletNotConnected):
		return fmt.Errorf("set wallet.address or %s_WALLET_ADDRESS: %w", EnvPrefix, err)
	}
	return err
}
