package cron

import "context"

// Job represents a scheduled task that runs inside the cron worker. Run
// reports how many rows it changed.
type Job interface {
	Name() string
	Run(ctx context.Context) (int, error)
}

// Entry binds a job to its cron schedule ("@every 5m", "0 3 * * *", ...).
type Entry struct {
	Schedule string
	Job      Job
}

// Registry tracks registered cron jobs.
type Registry struct {
	entries []Entry
}

// NewRegistry builds a registry preloaded with the provided entries.
func NewRegistry(entries ...Entry) *Registry {
	registry := &Registry{}
	for _, entry := range entries {
		registry.Register(entry.Schedule, entry.Job)
	}
	return registry
}

// Register adds a job to the registry. Nil jobs are ignored.
func (r *Registry) Register(schedule string, job Job) {
	if job == nil {
		return
	}
	r.entries = append(r.entries, Entry{Schedule: schedule, Job: job})
}

// Entries returns the registered entries in the order they were added.
func (r *Registry) Entries() []Entry {
	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	return entries
}
