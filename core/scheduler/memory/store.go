// Package memory provides an in-memory scheduler.Store for tests and
// single-process embeddings.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/andoma/nora-core/core/scheduler"
)

type Store struct {
	mu   sync.Mutex
	jobs []scheduler.Job
}

func NewStore(jobs ...scheduler.Job) *Store {
	s := &Store{}
	for _, job := range jobs {
		s.Add(job)
	}
	return s
}

// Add stores a job, assigning an id when absent.
func (s *Store) Add(job scheduler.Job) scheduler.Job {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return job
}

// Find evaluates the query's disjunctive predicate set over the stored
// jobs, scoped to the query's owner.
func (s *Store) Find(_ context.Context, query scheduler.Query) ([]scheduler.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []scheduler.Job
	for _, job := range s.jobs {
		if job.ManagerUID != query.ManagerUID {
			continue
		}
		if job.Matches(query.Any) {
			matched = append(matched, job)
		}
	}
	return matched, nil
}
