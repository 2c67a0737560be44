package cli

import (
	"bufio"
	"context"
	"os"
	"sync"
	"time"

	"github.com/voyago/tripsync/internal/api"
	"github.com/voyago/tripsync/internal/bootstrap"
	"github.com/voyago/tripsync/internal/config"
	"github.com/voyago/tripsync/internal/conflicts"
	"github.com/voyago/tripsync/internal/logging"
	"github.com/voyago/tripsync/internal/services"
	"github.com/voyago/tripsync/internal/store"
	"github.com/voyago/tripsync/internal/syncer"

	_ "modernc.org/sqlite"
)

// App wires the local store, the API client and the offline engine behind an
// interactive command loop.
type App struct {
	config    *config.Config
	store     *store.Store
	api       api.Client
	set       *services.Set
	mode      *services.Mode
	engine    *syncer.Engine
	conflicts *conflicts.Service
	loader    *bootstrap.Loader
	log       logging.Logger
	reader    *bufio.Reader

	mu    sync.RWMutex
	token string
}

func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	st, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	a := &App{
		config: cfg,
		store:  st,
		log:    log,
		reader: bufio.NewReader(os.Stdin),
		token:  cfg.Token,
	}

	client, err := api.NewHTTPClient(cfg.ServerBaseURL, a.tokenSource, log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	a.api = client
	a.mode = services.NewMode()
	a.set = services.New(st, client, a.mode, log)
	a.engine = syncer.New(st, client, services.NewRegistry(), log)
	a.conflicts = conflicts.New(st, log)
	a.loader = bootstrap.New(st, client, log, cfg.BootstrapFanout)

	return a, nil
}

func (a *App) Close() error {
	return a.store.Close()
}

func (a *App) tokenSource(ctx context.Context) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token, nil
}

func (a *App) setToken(tok string) {
	a.mu.Lock()
	a.token = tok
	a.mu.Unlock()
}

func (a *App) isLoggedIn() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token != ""
}

// StartOnlineStatusWatcher probes the server on a fixed interval and flips
// the shared reachability flag. Transitions are logged once, not every tick.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := a.api.Ping(pingCtx)
			cancel()

			online := err == nil
			if online != a.mode.Online() {
				a.mode.SetOnline(online)
				if online {
					a.log.Info(ctx, "server reachable again")
				} else {
					a.log.Warn(ctx, "server unreachable", "error", err)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

// StartKeepWarm refreshes plan and schedule snapshots in the background so a
// later switch to offline mode starts from recent data.
func (a *App) StartKeepWarm(ctx context.Context) {
	a.loader.KeepWarm(ctx, a.config.KeepWarmInterval)
}

func (a *App) Run(ctx context.Context) {
	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)
	go a.StartKeepWarm(ctx)

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.statusLine, scanner)
}
