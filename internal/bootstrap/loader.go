// Package bootstrap seeds the local store when offline mode is enabled: it
// pulls the user's full accessible dataset from the server, plan by plan with
// bounded concurrency, and records per-plan completeness so the UI can tell
// which plans are safe to open offline.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/voyago/tripsync/internal/api"
	"github.com/voyago/tripsync/internal/logging"
	"github.com/voyago/tripsync/internal/models"
	"github.com/voyago/tripsync/internal/repositories/syncmeta"
	"github.com/voyago/tripsync/internal/services"
	"github.com/voyago/tripsync/internal/store"
)

// ErrRunning means another bootstrap holds the single-flight flag.
var ErrRunning = errors.New("bootstrap already running")

const (
	statusRunning = "running"
	statusDone    = "done"
	statusFailed  = "failed"

	defaultFanout = 4

	// runTTL bounds how long a crashed bootstrap can hold the single-flight
	// flag. A "running" marker whose expiry has passed is reclaimed, same as
	// the sync lock.
	runTTL = 15 * time.Minute
)

type Loader struct {
	store  *store.Store
	api    api.Client
	log    logging.Logger
	fanout int
}

func New(st *store.Store, client api.Client, log logging.Logger, fanout int) *Loader {
	if fanout <= 0 {
		fanout = defaultFanout
	}
	return &Loader{store: st, api: client, log: log, fanout: fanout}
}

// Run performs a full bootstrap. Individual sub-fetch failures mark that
// plan's snapshot incomplete and the run carries on; only a failure to fetch
// the plan list itself fails the whole bootstrap. Cancellation is honored
// between plans, not mid-plan.
func (l *Loader) Run(ctx context.Context) error {
	if err := l.acquire(ctx); err != nil {
		return err
	}

	status := statusDone
	defer func() {
		ctx := context.WithoutCancel(ctx)
		if err := l.store.Meta.Set(ctx, syncmeta.KeyBootstrapStatus, status); err != nil {
			l.log.Error(ctx, "failed to record bootstrap status", "error", err)
		}
	}()

	plans, err := l.api.ListPlans(ctx)
	if err != nil {
		status = statusFailed
		return fmt.Errorf("failed to fetch plan list: %w", err)
	}
	for _, p := range plans {
		rec, rerr := services.PlanRecord(p)
		if rerr != nil {
			status = statusFailed
			return rerr
		}
		if perr := l.store.Cache.PutServer(ctx, rec); perr != nil {
			status = statusFailed
			return perr
		}
	}

	g := &errgroup.Group{}
	g.SetLimit(l.fanout)
	for _, p := range plans {
		p := p
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			l.loadPlan(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		status = statusFailed
		return ctx.Err()
	}
	l.log.Info(ctx, "bootstrap finished", "plans", len(plans))
	return nil
}

// RefreshLight re-fetches plan lists and schedules only, skipping the
// expensive per-schedule moment fan-out. Used to keep an enabled snapshot
// loosely fresh while online.
func (l *Loader) RefreshLight(ctx context.Context) error {
	plans, err := l.api.ListPlans(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh plan list: %w", err)
	}
	for _, p := range plans {
		rec, rerr := services.PlanRecord(p)
		if rerr != nil {
			return rerr
		}
		if perr := l.store.Cache.PutServer(ctx, rec); perr != nil {
			return perr
		}
		schedules, serr := l.api.ListSchedules(ctx, p.ID)
		if serr != nil {
			l.log.Warn(ctx, "keep-warm schedule fetch failed", "plan", p.ID, "error", serr)
			continue
		}
		for _, sc := range schedules {
			srec, rerr := services.ScheduleRecord(sc)
			if rerr != nil {
				return rerr
			}
			if perr := l.store.Cache.PutServer(ctx, srec); perr != nil {
				return perr
			}
		}
	}
	return nil
}

// KeepWarm runs RefreshLight on a ticker until ctx is done, retrying each
// pass briefly before giving up until the next tick.
func (l *Loader) KeepWarm(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			backoff := retry.WithMaxRetries(2, retry.NewConstant(2*time.Second))
			err := retry.Do(ctx, backoff, func(ctx context.Context) error {
				if rerr := l.RefreshLight(ctx); rerr != nil {
					return retry.RetryableError(rerr)
				}
				return nil
			})
			if err != nil {
				l.log.Warn(ctx, "keep-warm pass failed", "error", err)
			}
		}
	}
}

// acquire takes the single-flight flag in one transaction. The flag carries
// an expiry so a run killed before its deferred reset cannot block every
// later bootstrap.
func (l *Loader) acquire(ctx context.Context) error {
	return l.store.WithTx(ctx, func(ctx context.Context, r store.Repos) error {
		status, err := r.Meta.Get(ctx, syncmeta.KeyBootstrapStatus)
		if err != nil {
			return err
		}
		if status == statusRunning {
			expires, eerr := r.Meta.GetInt64(ctx, syncmeta.KeyBootstrapExpires)
			if eerr != nil {
				return eerr
			}
			if expires > time.Now().Unix() {
				return ErrRunning
			}
			// the holder died without resetting the flag; reclaim it
		}
		if err := r.Meta.SetInt64(ctx, syncmeta.KeyBootstrapExpires, time.Now().Add(runTTL).Unix()); err != nil {
			return err
		}
		return r.Meta.Set(ctx, syncmeta.KeyBootstrapStatus, statusRunning)
	})
}

// loadPlan hydrates one plan's subtree. Failures degrade the snapshot to
// incomplete rather than failing the run.
func (l *Loader) loadPlan(ctx context.Context, plan models.Plan) {
	complete := true
	var mu sync.Mutex
	var recs []*models.CachedRecord

	add := func(rec *models.CachedRecord, err error) {
		if err != nil {
			return
		}
		mu.Lock()
		recs = append(recs, rec)
		mu.Unlock()
	}

	schedules, err := l.api.ListSchedules(ctx, plan.ID)
	if err != nil {
		complete = false
		l.log.Warn(ctx, "schedule fetch failed", "plan", plan.ID, "error", err)
	}
	for _, sc := range schedules {
		add(services.ScheduleRecord(sc))
	}

	if memos, merr := l.api.ListMemos(ctx, plan.ID); merr != nil {
		complete = false
		l.log.Warn(ctx, "memo fetch failed", "plan", plan.ID, "error", merr)
	} else {
		for _, m := range memos {
			add(services.MemoRecord(m))
		}
	}

	if members, merr := l.api.ListMembers(ctx, plan.ID); merr != nil {
		complete = false
		l.log.Warn(ctx, "member fetch failed", "plan", plan.ID, "error", merr)
	} else {
		for _, m := range members {
			add(services.MemberRecord(m))
		}
	}

	// per-schedule moments, bounded sub-fan-out
	var incomplete atomic.Bool
	sub := &errgroup.Group{}
	sub.SetLimit(l.fanout)
	for _, sc := range schedules {
		sc := sc
		sub.Go(func() error {
			moments, merr := l.api.ListMoments(ctx, sc.ID)
			if merr != nil {
				incomplete.Store(true)
				l.log.Warn(ctx, "moment fetch failed", "schedule", sc.ID, "error", merr)
				return nil
			}
			for _, m := range moments {
				add(services.MomentRecord(m))
			}
			return nil
		})
	}
	_ = sub.Wait()
	complete = complete && !incomplete.Load()

	err = l.store.WithTx(ctx, func(ctx context.Context, r store.Repos) error {
		for _, rec := range recs {
			if perr := r.Cache.PutServer(ctx, rec); perr != nil {
				return perr
			}
		}
		prev, gerr := r.Snapshots.Get(ctx, plan.ID)
		if gerr != nil {
			return gerr
		}
		var version int64 = 1
		if prev != nil {
			version = prev.SnapshotVersion + 1
		}
		return r.Snapshots.Put(ctx, &models.PlanSnapshot{
			PlanID:          plan.ID,
			LastFetchedAt:   time.Now().UTC(),
			SnapshotVersion: version,
			IsComplete:      complete,
		})
	})
	if err != nil {
		l.log.Error(ctx, "failed to store plan snapshot", "plan", plan.ID, "error", err)
	}
}
