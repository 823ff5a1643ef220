package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/iksnae/multichat/internal"
)

// app bundles what a command needs to talk to the backend
type app struct {
	cfg         *internal.Config
	db          *sql.DB
	storage     *internal.Storage
	client      *internal.Client
	store       *internal.Store
	models      *internal.ModelFileManager
	coordinator *internal.Coordinator
	cookieHost  string

	// forgetCookies skips the cookie save on Close, e.g. after logout
	forgetCookies bool
}

// newApp opens the transcript database, restores saved session cookies and
// loads the model set. The coordinator is built only when withCoordinator is
// set.
func newApp(ctx context.Context, withCoordinator bool) (*app, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}

	db, err := internal.OpenDatabase(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:     cfg,
		db:      db,
		storage: internal.NewStorage(db, cfg.Storage.Path),
		store:   internal.NewStore(),
		models:  internal.NewModelFileManager(cfg.Models.File),
	}

	a.client, err = internal.NewClient(cfg.ClientOptions())
	if err != nil {
		a.Close()
		return nil, err
	}
	if u, err := url.Parse(a.client.APIBaseURL()); err == nil {
		a.cookieHost = u.Host
	}

	cookies, err := a.storage.LoadCookies(ctx, a.cookieHost)
	if err != nil {
		internal.LogWarn("Failed to restore session cookies: %v", err)
	} else if len(cookies) > 0 {
		a.client.SetCookies(cookies)
		internal.LogDebug("Restored %d session cookies for %s", len(cookies), a.cookieHost)
	}

	if err := a.models.LoadInto(a.store); err != nil {
		a.Close()
		return nil, err
	}

	if withCoordinator {
		a.coordinator = internal.NewCoordinator(a.client, a.store, internal.CoordinatorOptions{
			SettleDelay: settleDelay(cfg),
			Mirror:      a.storage,
		})
	}
	return a, nil
}

// settleDelay maps a configured zero onto "no pause"; the coordinator reads
// zero as its default.
func settleDelay(c *internal.Config) time.Duration {
	if c.Chat.SettleDelay == 0 {
		return -1
	}
	return c.Chat.SettleDelay
}

// saveCookies persists whatever session cookies the client currently holds.
func (a *app) saveCookies(ctx context.Context) error {
	return a.storage.SaveCookies(ctx, a.cookieHost, a.client.Cookies())
}

// Close waits for background work and releases the database.
func (a *app) Close() {
	if a.coordinator != nil {
		a.coordinator.Close()
	}
	if a.client != nil && !a.forgetCookies {
		if err := a.saveCookies(context.Background()); err != nil {
			internal.LogDebug("Failed to save session cookies: %v", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			internal.LogWarn("Failed to close database: %v", err)
		}
	}
}
