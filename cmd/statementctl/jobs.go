package main

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pennywise/internal/domain/import/repository"
)

// memoryJobs keeps ingestion jobs for the lifetime of one command.
type memoryJobs struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]repository.Job
}

func newMemoryJobs() *memoryJobs {
	return &memoryJobs{jobs: make(map[uuid.UUID]repository.Job)}
}

func (m *memoryJobs) Create(_ context.Context, job *repository.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.CreatedAt = time.Now()
	m.jobs[job.ID] = *job
	return nil
}

func (m *memoryJobs) MarkRunning(_ context.Context, id uuid.UUID) error {
	return m.update(id, func(j *repository.Job) { j.Status = repository.StatusRunning })
}

func (m *memoryJobs) Progress(_ context.Context, id uuid.UUID, c repository.Counters) error {
	return m.update(id, func(j *repository.Job) { j.Counters = c })
}

func (m *memoryJobs) Finish(_ context.Context, job *repository.Job) error {
	finished := time.Now()
	job.FinishedAt = &finished
	return m.update(job.ID, func(j *repository.Job) { *j = *job })
}

func (m *memoryJobs) update(id uuid.UUID, fn func(*repository.Job)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return repository.ErrJobNotFound
	}
	fn(&j)
	m.jobs[id] = j
	return nil
}
