package jobs

import (
	"errors"
	"fmt"
	"sync"

	"gigasrt/internal/domain"
)

// ErrJobAlreadyRunning is returned when starting a second active job.
var ErrJobAlreadyRunning = errors.New("job already running")

// ErrNoRunningJob is returned when finishing a job while idle.
var ErrNoRunningJob = errors.New("no running job")

// Manager tracks the single active job and its transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.Job
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Job{
			Status: domain.JobStatusIdle,
		},
	}
}

// Start makes job the current one and moves it to the converting stage.
func (m *Manager) Start(job domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isRunning(m.current.Status) {
		return ErrJobAlreadyRunning
	}

	job.Status = domain.JobStatusConverting
	job.Error = ""
	m.current = job
	return nil
}

// Transition validates and applies state transitions for current job.
func (m *Manager) Transition(status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" && status != domain.JobStatusIdle {
		return fmt.Errorf("cannot transition without an active job")
	}
	if status == m.current.Status {
		return nil
	}
	if !isValidTransition(m.current.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, status)
	}

	m.current.Status = status
	return nil
}

// Fail marks the active job failed with the given diagnostic.
func (m *Manager) Fail(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !isRunning(m.current.Status) {
		return ErrNoRunningJob
	}
	m.current.Status = domain.JobStatusFailed
	if err != nil {
		m.current.Error = err.Error()
	}
	return nil
}

// Current returns a snapshot of the current job.
func (m *Manager) Current() domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reset clears job metadata and returns manager to idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.Job{Status: domain.JobStatusIdle}
}

// IsRunning reports whether the current state is an active stage.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isRunning(m.current.Status)
}

// isRunning checks if a status represents active pipeline execution.
func isRunning(status domain.JobStatus) bool {
	switch status {
	case domain.JobStatusConverting, domain.JobStatusTranscribing, domain.JobStatusWriting:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the allowed job state machine edges.
func isValidTransition(from, to domain.JobStatus) bool {
	switch from {
	case domain.JobStatusIdle:
		return to == domain.JobStatusConverting
	case domain.JobStatusConverting:
		return to == domain.JobStatusTranscribing || to == domain.JobStatusFailed
	case domain.JobStatusTranscribing:
		return to == domain.JobStatusWriting || to == domain.JobStatusFailed
	case domain.JobStatusWriting:
		return to == domain.JobStatusDone || to == domain.JobStatusFailed
	case domain.JobStatusDone, domain.JobStatusFailed:
		return to == domain.JobStatusConverting || to == domain.JobStatusIdle
	default:
		return false
	}
}
