package jobqueue

import "github.com/cryguy/fontworker/internal/core"

// Result is what a job callback receives once the worker has answered.
type Result struct {
	Type  core.JobType
	Value any
	Err   error
}

// Job is a request waiting to be sent to the worker. Jobs have no identity
// besides their type: a queue holds at most one job of each type.
type Job struct {
	Type     core.JobType
	Data     any
	Callback func(Result)
}

// Queue holds one pending job per priority rank. Putting a job replaces
// the unsent job of the same type, it never appends.
type Queue struct {
	slots [core.NumJobTypes]*Job
}

// Put stores job in its priority slot, discarding any job of the same type
// that was still waiting.
func (q *Queue) Put(job *Job) error {
	rank, ok := job.Type.Rank()
	if !ok {
		return core.ErrUnknownJobType
	}
	q.slots[rank] = job
	return nil
}

// Pop removes and returns the pending job with the highest priority, or
// nil if the queue is empty.
func (q *Queue) Pop() *Job {
	for i := len(q.slots) - 1; i >= 0; i-- {
		if job := q.slots[i]; job != nil {
			q.slots[i] = nil
			return job
		}
	}
	return nil
}

// Pending returns the waiting job of type t, if any.
func (q *Queue) Pending(t core.JobType) *Job {
	rank, ok := t.Rank()
	if !ok {
		return nil
	}
	return q.slots[rank]
}

// Len returns the number of occupied slots.
func (q *Queue) Len() int {
	n := 0
	for _, job := range q.slots {
		if job != nil {
			n++
		}
	}
	return n
}

// Clear empties every slot.
func (q *Queue) Clear() {
	q.slots = [core.NumJobTypes]*Job{}
}
