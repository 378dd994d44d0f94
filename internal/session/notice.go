package session

import "time"

// NoticeKind classifies a non-fatal condition surfaced to the shopper.
type NoticeKind string

const (
	// NoticeRemoteSyncFailure means a mutation could not be synced; the
	// cart keeps the local change and is marked degraded.
	NoticeRemoteSyncFailure NoticeKind = "remote_sync_failure"
	// NoticeRemoteFetchFailure means the initial load fell back to the
	// local copy.
	NoticeRemoteFetchFailure NoticeKind = "remote_fetch_failure"
)

// maxNotices caps the pending queue; the oldest notices are dropped first.
const maxNotices = 32

// Notice is a non-blocking message about cart state.
type Notice struct {
	Kind      NoticeKind
	Op        string
	ProductID string
	Err       error
	At        time.Time
}

// Notices drains and returns the pending notices, oldest first.
func (s *Session) Notices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.notices
	s.notices = nil
	return out
}

func (s *Session) queue(n Notice) {
	s.mu.Lock()
	s.appendNoticeLocked(n)
	s.mu.Unlock()

	if s.notify != nil {
		s.notify(n)
	}
}

func (s *Session) appendNoticeLocked(n Notice) {
	if len(s.notices) >= maxNotices {
		s.notices = append(s.notices[:0], s.notices[1:]...)
	}
	s.notices = append(s.notices, n)
}
