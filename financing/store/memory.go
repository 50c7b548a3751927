/*
Package store provides the in-memory Store implementation.

PURPOSE:
  Backs tests and local development with a map-based store that honors the
  same copy semantics as the SQLite store: callers always get their own
  copy, never a pointer into the store's state.
*/
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/financing-engine/financing"
)

// Memory is a thread-safe in-memory financing.Store.
type Memory struct {
	mu           sync.RWMutex
	applications map[financing.ApplicationID]*financing.Application
	schedules    map[financing.ScheduleID]*financing.Schedule
}

var _ financing.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		applications: make(map[financing.ApplicationID]*financing.Application),
		schedules:    make(map[financing.ScheduleID]*financing.Schedule),
	}
}

func (m *Memory) SaveApplication(_ context.Context, app *financing.Application) error {
	if app == nil || app.ID == "" {
		return fmt.Errorf("application must have an ID")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applications[app.ID] = copyApplication(app)
	return nil
}

func (m *Memory) GetApplication(_ context.Context, id financing.ApplicationID) (*financing.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	app, ok := m.applications[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", financing.ErrApplicationNotFound, id)
	}
	return copyApplication(app), nil
}

func (m *Memory) ListApplications(_ context.Context) ([]*financing.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*financing.Application, 0, len(m.applications))
	for _, app := range m.applications {
		out = append(out, copyApplication(app))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveSchedule(_ context.Context, schedule *financing.Schedule) error {
	if schedule == nil || schedule.ID == "" {
		return fmt.Errorf("schedule must have an ID")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[schedule.ID] = copySchedule(schedule)
	return nil
}

func (m *Memory) GetSchedule(_ context.Context, id financing.ScheduleID) (*financing.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	schedule, ok := m.schedules[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", financing.ErrScheduleNotFound, id)
	}
	return copySchedule(schedule), nil
}

func (m *Memory) ListSchedules(_ context.Context) ([]*financing.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*financing.Schedule, 0, len(m.schedules))
	for _, schedule := range m.schedules {
		out = append(out, copySchedule(schedule))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Close() error { return nil }

// =============================================================================
// COPY HELPERS
// =============================================================================

func copyApplication(app *financing.Application) *financing.Application {
	dup := *app
	dup.Installments = append([]financing.PlannedInstallment(nil), app.Installments...)
	return &dup
}

func copySchedule(schedule *financing.Schedule) *financing.Schedule {
	dup := *schedule
	dup.DownPaymentRef = schedule.DownPaymentRef.Clone()
	dup.Installments = make([]financing.Installment, len(schedule.Installments))
	for i, inst := range schedule.Installments {
		dup.Installments[i] = inst
		dup.Installments[i].Ref = inst.Ref.Clone()
	}
	dup.Payments = append([]financing.PaymentRecord(nil), schedule.Payments...)
	return &dup
}
