package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/xenking/artesjac-cart/internal/domain/cart"
)

type syncOp struct {
	name      string
	productID string
	seq       uint64
	call      func(ctx context.Context) ([]cart.RawItem, error)
}

// enqueueLocked records a mutation and starts its remote sync. The sync
// waits for the previous one, so calls reach the server in issue order even
// though callers never wait for them. Must be called with s.mu held.
func (s *Session) enqueueLocked(
	ctx context.Context,
	name, productID string,
	call func(ctx context.Context) ([]cart.RawItem, error),
) uint64 {
	s.seq++
	op := syncOp{name: name, productID: productID, seq: s.seq, call: call}

	prev := s.lastSync
	done := make(chan struct{})
	s.lastSync = done

	// Syncs outlive the request that caused them.
	parent := context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		s.runSync(parent, op)
	}()
	return op.seq
}

func (s *Session) runSync(parent context.Context, op syncOp) {
	lg := s.logger(parent).With(
		zap.String("op", op.name),
		zap.Uint64("seq", op.seq),
	)

	ctx, cancel := context.WithTimeout(parent, s.syncTimeout)
	raw, err := op.call(ctx)
	cancel()

	var echo []cart.LineItem
	if err == nil && raw != nil {
		echo = s.normalize(parent, raw)
	}

	s.mu.Lock()
	if op.seq < s.seq {
		s.mu.Unlock()
		lg.Debug("Sync superseded by newer mutation", zap.Error(err))
		s.metrics.syncStale(parent, op.name)
		return
	}
	var notice *Notice
	if err != nil {
		s.source = cart.SourceLocalFallback
		notice = &Notice{
			Kind:      NoticeRemoteSyncFailure,
			Op:        op.name,
			ProductID: op.productID,
			Err:       err,
			At:        s.now(),
		}
		s.appendNoticeLocked(*notice)
	} else {
		if raw != nil {
			s.cart.Replace(echo)
		}
		s.source = cart.SourceServer
	}
	snapshot := cart.LocalItems(s.cart.Items())
	s.mu.Unlock()

	if notice != nil {
		lg.Warn("Remote cart sync failed, keeping local state", zap.Error(err))
		s.metrics.syncFailed(parent, op.name)
		if s.notify != nil {
			s.notify(*notice)
		}
	}
	s.persist(parent, op.seq, snapshot)
}

// persist writes the local fallback unless a newer mutation superseded seq.
func (s *Session) persist(ctx context.Context, seq uint64, items []cart.RawItem) {
	if err := s.writeLocal(ctx, seq, items); err != nil {
		s.logger(ctx).Warn("Write local cart", zap.Error(err), zap.Uint64("seq", seq))
	}
}

func (s *Session) writeLocal(ctx context.Context, seq uint64, items []cart.RawItem) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if s.closed {
		return nil
	}

	s.mu.Lock()
	stale := seq < s.seq
	s.mu.Unlock()
	if stale {
		return nil
	}
	return s.store.WriteCart(ctx, items)
}

// Wait blocks until every sync issued so far has completed or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		last := s.lastSync
		s.mu.Unlock()
		if last == nil {
			return nil
		}

		select {
		case <-last:
		case <-ctx.Done():
			return ctx.Err()
		}

		s.mu.Lock()
		settled := s.lastSync == last
		s.mu.Unlock()
		if settled {
			return nil
		}
	}
}
