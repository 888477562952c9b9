package auth

import (
	"context"
	"time"
)

// Resync re-reads the persisted session and adopts it when another process
// sharing the same store has signed in, signed out or switched users.
// Accounts registered elsewhere become known. Listeners are notified of
// the resulting transition, if any.
func (e *Emulator) Resync(ctx context.Context) error {
	defer e.events.drain()
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mergeAccounts(ctx)

	persisted, err := e.loadPersisted(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	current := e.session
	switch {
	case persisted == nil && current == nil:
		e.mu.Unlock()
		return nil
	case persisted != nil && current != nil && persisted.AccessToken == current.AccessToken:
		e.session = persisted
		e.mu.Unlock()
		return nil
	}
	e.session = persisted
	e.mu.Unlock()

	if persisted == nil {
		e.logger.Info("session ended elsewhere", "user_id", current.User.ID)
		e.publish(SignedOut, nil)
		return nil
	}
	e.logger.Info("session adopted from store", "user_id", persisted.User.ID)
	e.adoptSessionIdentity(persisted)
	e.publish(SignedIn, persisted)
	return nil
}

// StartSyncRoutine calls Resync every interval until Close is called.
func (e *Emulator) StartSyncRoutine(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})

	go func() {
		defer close(e.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := e.Resync(ctx); err != nil {
					e.logger.Warn("session resync failed", "error", err)
				}
			}
		}
	}()
}

// Close stops the sync routine and waits for it to exit.
// It is safe to call Close even if StartSyncRoutine was never called.
func (e *Emulator) Close() error {
	if e.cancel != nil {
		e.cancel()
		<-e.done
		e.cancel = nil
	}
	return nil
}
