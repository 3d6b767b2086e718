package upload

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"image-ingest/internal/apperror"
	"image-ingest/internal/domain"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
)

const maxSessionChunks = 4096

// SessionStore holds in-flight progressive uploads. Injected so tests
// can substitute a deterministic implementation.
type SessionStore interface {
	Get(id string) (*domain.UploadSession, bool)
	Put(session *domain.UploadSession)
	Delete(id string)
	Sweep(olderThan time.Time) int
}

type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.UploadSession
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*domain.UploadSession),
	}
}

func (s *MemorySessionStore) Get(id string) (*domain.UploadSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	return session, ok
}

func (s *MemorySessionStore) Put(session *domain.UploadSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
}

func (s *MemorySessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *MemorySessionStore) Sweep(olderThan time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for id, session := range s.sessions {
		if session.LastActivity.Before(olderThan) {
			delete(s.sessions, id)
			purged++
		}
	}
	return purged
}

// SessionManager reassembles files delivered as ordered chunks across
// multiple requests. Chunks may arrive in any order; assembly is strictly
// by ascending index so the output is deterministic.
type SessionManager struct {
	mu         sync.Mutex
	store      SessionStore
	idleWindow time.Duration
	maxBytes   int64
	logger     *zlog.Zerolog
	now        func() time.Time
}

func NewSessionManager(store SessionStore, idleWindow time.Duration, logger *zlog.Zerolog) *SessionManager {
	return &SessionManager{
		store:      store,
		idleWindow: idleWindow,
		maxBytes:   domain.MaxUploadSize,
		logger:     logger,
		now:        time.Now,
	}
}

// SubmitChunk records one chunk. The assembled payload is returned with
// the ack exactly once, on the call that completes the session; the
// session is deleted in the same step, so a later resubmission starts a
// fresh session instead of reopening the old one.
func (m *SessionManager) SubmitChunk(sessionID string, index, total int, data []byte, filename, fileType string) (*domain.ChunkAck, []byte, error) {
	if total <= 0 || total > maxSessionChunks {
		return nil, nil, apperror.Validation("total chunk count out of range")
	}
	if index < 0 || index >= total {
		return nil, nil, apperror.Validation("chunk index out of range")
	}
	if len(data) == 0 {
		return nil, nil, apperror.Validation("empty chunk payload")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	var session *domain.UploadSession
	if sessionID != "" {
		session, _ = m.store.Get(sessionID)
	}
	if session == nil {
		session = &domain.UploadSession{
			ID:          sessionID,
			Filename:    filename,
			FileType:    fileType,
			TotalChunks: total,
			Chunks:      make(map[int][]byte),
			CreatedAt:   now,
		}
		if session.ID == "" {
			session.ID = uuid.New().String()
		}
	}

	if total != session.TotalChunks {
		return nil, nil, apperror.Validation("total chunk count does not match session")
	}

	// The size ceiling holds while chunks accumulate, not just after
	// assembly. A resubmitted index replaces its earlier bytes.
	replaced := int64(len(session.Chunks[index]))
	if session.TotalBytes-replaced+int64(len(data)) > m.maxBytes {
		return nil, nil, apperror.Validation(fmt.Sprintf("session exceeds the %d MB upload limit", m.maxBytes>>20))
	}

	session.Chunks[index] = data
	session.TotalBytes += int64(len(data)) - replaced
	session.LastActivity = now

	if len(session.Chunks) < session.TotalChunks {
		m.store.Put(session)
		return &domain.ChunkAck{
			SessionID: session.ID,
			Received:  len(session.Chunks),
			Total:     session.TotalChunks,
		}, nil, nil
	}

	var assembled bytes.Buffer
	for i := 0; i < session.TotalChunks; i++ {
		assembled.Write(session.Chunks[i])
	}
	m.store.Delete(session.ID)

	m.logger.Info().
		Str("session_id", session.ID).
		Str("filename", session.Filename).
		Int("chunks", session.TotalChunks).
		Int("size", assembled.Len()).
		Msg("Progressive upload assembled")

	return &domain.ChunkAck{
		SessionID: session.ID,
		Complete:  true,
		Received:  session.TotalChunks,
		Total:     session.TotalChunks,
	}, assembled.Bytes(), nil
}

// SweepNow purges sessions idle for longer than the window, regardless
// of partial progress.
func (m *SessionManager) SweepNow() int {
	purged := m.store.Sweep(m.now().Add(-m.idleWindow))
	if purged > 0 {
		m.logger.Info().Int("purged", purged).Msg("Expired upload sessions purged")
	}
	return purged
}

func (m *SessionManager) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.SweepNow()
			}
		}
	}()
}
