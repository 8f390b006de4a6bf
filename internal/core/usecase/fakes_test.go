package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
)

type memoryParticipants struct {
	mu        sync.Mutex
	snapshots map[string]domain.ParticipantSnapshot
	upsertErr error
}

func newMemoryParticipants() *memoryParticipants {
	return &memoryParticipants{snapshots: map[string]domain.ParticipantSnapshot{}}
}

func (m *memoryParticipants) Upsert(_ context.Context, s domain.ParticipantSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	s.AssigneeIDs = append([]string(nil), s.AssigneeIDs...)
	m.snapshots[s.TaskID] = s
	return nil
}

func (m *memoryParticipants) FindByTaskID(_ context.Context, taskID string) (*domain.ParticipantSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[taskID]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return &s, nil
}

type memoryNotifications struct {
	mu        sync.Mutex
	rows      []domain.Notification
	insertErr error
}

func (m *memoryNotifications) InsertMany(_ context.Context, ns []domain.Notification) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	var saved []domain.Notification
	for _, n := range ns {
		dup := false
		for _, row := range m.rows {
			if row.DedupKey == n.DedupKey {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		m.rows = append(m.rows, n)
		saved = append(saved, n)
	}
	return saved, nil
}

func (m *memoryNotifications) ListUnread(_ context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.rows {
		if n.RecipientID == recipientID && n.ReadAt == nil {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryNotifications) MarkRead(_ context.Context, id, recipientID string, readAt time.Time) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id && m.rows[i].RecipientID == recipientID {
			if m.rows[i].ReadAt == nil {
				at := readAt
				m.rows[i].ReadAt = &at
			}
			n := m.rows[i]
			return &n, nil
		}
	}
	return nil, domain.ErrNotificationNotFound
}

func (m *memoryNotifications) all() []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Notification(nil), m.rows...)
}

type pushCall struct {
	event   string
	payload any
	userIDs []string
}

type recordingPusher struct {
	mu    sync.Mutex
	calls []pushCall
}

func (p *recordingPusher) EmitToUsers(_ context.Context, event string, payload any, userIDs []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, pushCall{event: event, payload: payload, userIDs: userIDs})
}
