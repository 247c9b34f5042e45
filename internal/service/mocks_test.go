package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/persistorai/screener/internal/models"
	"github.com/persistorai/screener/internal/persist"
)

// mockReports records saved reports in memory.
type mockReports struct {
	mu      sync.Mutex
	reports map[uuid.UUID]*models.RiskReport
	saves   int

	err error
}

func (m *mockReports) SaveReport(_ context.Context, r *models.RiskReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.err != nil {
		return m.err
	}
	if m.reports == nil {
		m.reports = make(map[uuid.UUID]*models.RiskReport)
	}
	m.reports[r.SearchID] = r
	return nil
}

func (m *mockReports) GetReport(_ context.Context, id uuid.UUID) (*models.RiskReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, persist.ErrNotFound
	}
	return r, nil
}

func (m *mockReports) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// mockEnqueuer records enqueued reports.
type mockEnqueuer struct {
	mu      sync.Mutex
	reports []*models.RiskReport
}

func (m *mockEnqueuer) Enqueue(r *models.RiskReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
}
