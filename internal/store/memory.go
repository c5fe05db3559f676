package store

import (
	"context"
	"slices"
	"sync"
)

type memoryStore struct {
	mutex   sync.RWMutex
	reports map[string]Report
	// ids ordered by finish time, oldest first
	order  []string
	latest string
}

func NewMemoryStore() Store {
	return &memoryStore{
		reports: make(map[string]Report),
	}
}

func (store *memoryStore) Save(_ context.Context, report Report) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	report.Lines = slices.Clone(report.Lines)
	if _, ok := store.reports[report.ID]; ok {
		store.order = slices.DeleteFunc(store.order, func(id string) bool { return id == report.ID })
	}
	store.reports[report.ID] = report

	// Reports finishing at the same time keep their save order
	position, _ := slices.BinarySearchFunc(store.order, report, func(id string, report Report) int {
		if order := store.reports[id].FinishedAt.Compare(report.FinishedAt); order != 0 {
			return order
		}
		return -1
	})
	store.order = slices.Insert(store.order, position, report.ID)

	if report.Succeeded() {
		store.latest = report.ID
	}
	return nil
}

func (store *memoryStore) Get(_ context.Context, id string) (Report, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()

	report, ok := store.reports[id]
	if !ok {
		return Report{}, ErrNotFound
	}
	return report, nil
}

func (store *memoryStore) Latest(ctx context.Context) (Report, error) {
	store.mutex.RLock()
	latest := store.latest
	store.mutex.RUnlock()

	if latest == "" {
		return Report{}, ErrNotFound
	}
	return store.Get(ctx, latest)
}

func (store *memoryStore) Recent(_ context.Context, count int64) ([]string, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()

	ids := make([]string, 0, min(int(max(count, 0)), len(store.order)))
	for i := len(store.order) - 1; i >= 0 && int64(len(ids)) < count; i-- {
		ids = append(ids, store.order[i])
	}
	return ids, nil
}
