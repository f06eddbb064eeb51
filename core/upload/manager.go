package upload

import (
	"context"
	"sync"
	"time"

	"flacshare/logger"
	"flacshare/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultIdleTimeout is how long a session may go untouched before the reaper discards it.
const DefaultIdleTimeout = 30 * time.Minute

// Manager 按 id 管理进行中的上传 session，并校验调用者是 session 的所有者。
// 长时间无人访问的 session 由 Reap 回收，连同其持有的文件内容一起释放。
type Manager struct {
	coordinator *Coordinator
	idleTimeout time.Duration
	now         func() time.Time
	log         *zap.Logger

	mu       sync.Mutex
	sessions map[string]*managedSession
}

type managedSession struct {
	session *Session
	touched time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithIdleTimeout sets how long an untouched session survives. Non-positive keeps the default.
func WithIdleTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.idleTimeout = d
		}
	}
}

// WithManagerClock overrides the time source used for idle tracking.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates an empty registry on top of the coordinator.
func NewManager(coordinator *Coordinator, opts ...ManagerOption) *Manager {
	m := &Manager{
		coordinator: coordinator,
		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
		log:         logger.Named("upload"),
		sessions:    make(map[string]*managedSession),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start analyzes file into a new session and registers it. Sessions whose
// analysis fails are never registered.
func (m *Manager) Start(ctx context.Context, uploaderID int64, file *model.FileHandle) (string, Snapshot, error) {
	s, err := m.coordinator.StartSession(ctx, uploaderID, file)
	if err != nil {
		return "", Snapshot{}, err
	}

	id := uuid.New().String()
	m.mu.Lock()
	m.sessions[id] = &managedSession{session: s, touched: m.now()}
	m.mu.Unlock()
	return id, s.Snapshot(), nil
}

// Get returns the snapshot of a session owned by uploaderID.
func (m *Manager) Get(uploaderID int64, id string) (Snapshot, error) {
	s, err := m.lookup(uploaderID, id)
	if err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// UpdateField edits one field of the session.
func (m *Manager) UpdateField(uploaderID int64, id, name, value string) (Snapshot, error) {
	s, err := m.lookup(uploaderID, id)
	if err != nil {
		return Snapshot{}, err
	}
	if err := s.UpdateField(name, value); err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// SetCover attaches or clears the session's cover art.
func (m *Manager) SetCover(uploaderID int64, id string, cover *model.FileHandle) (Snapshot, error) {
	s, err := m.lookup(uploaderID, id)
	if err != nil {
		return Snapshot{}, err
	}
	if err := s.SetCover(cover); err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// Submit commits the session. A completed session is dropped from the registry;
// a failed one stays so the caller can retry from Editing.
func (m *Manager) Submit(ctx context.Context, uploaderID int64, id string) (*model.CatalogRecord, error) {
	s, err := m.lookup(uploaderID, id)
	if err != nil {
		return nil, err
	}

	record, err := m.coordinator.Commit(ctx, s)
	// 提交可能耗时较长，结束时再刷新一次访问时间
	m.touch(id)
	if err != nil {
		return nil, err
	}
	m.forget(id)
	return record, nil
}

// Reset discards the session unconditionally and forgets it.
func (m *Manager) Reset(uploaderID int64, id string) error {
	s, err := m.lookup(uploaderID, id)
	if err != nil {
		return err
	}
	s.Reset()
	m.forget(id)
	return nil
}

// Len reports how many sessions are registered.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Reap resets and forgets every session untouched for longer than the idle
// timeout. Sessions in the middle of a commit are left alone. It returns the
// number of sessions discarded.
func (m *Manager) Reap() int {
	cutoff := m.now().Add(-m.idleTimeout)

	var expired []*Session
	m.mu.Lock()
	for id, entry := range m.sessions {
		if !entry.touched.Before(cutoff) || entry.session.State() == StateCommitting {
			continue
		}
		expired = append(expired, entry.session)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Reset()
	}
	if len(expired) > 0 {
		m.log.Info("回收空闲上传 session", zap.Int("count", len(expired)), zap.Duration("idleTimeout", m.idleTimeout))
	}
	return len(expired)
}

// Run calls Reap every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Reap()
		}
	}
}

func (m *Manager) lookup(uploaderID int64, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[id]
	if !ok || entry.session.UploaderID() != uploaderID {
		return nil, ErrSessionNotFound
	}
	entry.touched = m.now()
	return entry.session, nil
}

func (m *Manager) touch(id string) {
	m.mu.Lock()
	if entry, ok := m.sessions[id]; ok {
		entry.touched = m.now()
	}
	m.mu.Unlock()
}

func (m *Manager) forget(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
