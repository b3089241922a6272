package session

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	internalsettings "github.com/agenthub-dev/agenthub/internal/settings"
)

// Sweeper periodically removes expired sessions and CSRF tokens.
type Sweeper struct {
	store *Store
}

// NewSweeper constructs a sweeper over a session store.
func NewSweeper(store *Store) *Sweeper {
	if store == nil {
		return nil
	}
	return &Sweeper{store: store}
}

// Start launches the sweep loop in a background goroutine.
func (w *Sweeper) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go w.run(ctx)
	log.Infof("session sweeper started (interval=%s)", sweepInterval())
}

func (w *Sweeper) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		removed, errSweep := w.store.SweepExpired(ctx)
		if errSweep != nil {
			log.WithError(errSweep).Warn("session sweeper: sweep failed")
		} else if removed > 0 {
			log.Infof("session sweeper: removed %d expired sessions", removed)
		}

		timer := time.NewTimer(sweepInterval())
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

// sweepInterval resolves the configured sweep interval per cycle, so settings
// changes apply without a restart.
func sweepInterval() time.Duration {
	seconds := internalsettings.DBConfigInt(
		internalsettings.SessionSweepIntervalSecondsKey,
		internalsettings.DefaultSessionSweepIntervalSeconds,
	)
	if seconds <= 0 {
		seconds = internalsettings.DefaultSessionSweepIntervalSeconds
	}
	return time.Duration(seconds) * time.Second
}
