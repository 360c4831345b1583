package rating

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrNoTask         = errors.New("no active task")
	ErrNotReady       = errors.New("task is not ready to submit")
	ErrReadOnlyColumn = errors.New("column is read-only")
	ErrUnknownRow     = errors.New("row does not exist")
)

// Session holds one rater's state: the active task, the rater name and the
// cached validation result. Handlers must run one at a time (see Registry.With).
type Session struct {
	Task  *Task
	Name  string
	Ready bool

	mu sync.Mutex

	// guarded by Registry.mu
	pins     int
	lastSeen time.Time
}

// EnsureTask samples a new task when none is active and returns the current one.
func (s *Session) EnsureTask(ctx context.Context, sampler *Sampler) (*Task, error) {
	if s.Task != nil {
		return s.Task, nil
	}
	t, err := sampler.Sample(ctx, s.Name)
	if err != nil {
		return nil, err
	}
	s.Task = t
	s.revalidate()
	return t, nil
}

// NameChanged stores the rater name.
func (s *Session) NameChanged(name string) {
	s.Name = name
	s.revalidate()
}

// DataChanged applies cell edits (row index -> column -> value) to the active task.
// Only the quality column is editable; a batch touching anything else is rejected
// without applying any of it.
func (s *Session) DataChanged(edits map[int]map[string]string) error {
	if s.Task == nil {
		return ErrNoTask
	}
	for idx, cols := range edits {
		if idx < 0 || idx >= len(s.Task.Rows) {
			return fmt.Errorf("%w: %d", ErrUnknownRow, idx)
		}
		for col := range cols {
			if col != ColQuality {
				return fmt.Errorf("%w: %s", ErrReadOnlyColumn, col)
			}
		}
	}
	for idx, cols := range edits {
		if v, ok := cols[ColQuality]; ok {
			s.Task.Rows[idx].Quality = v
		}
	}
	s.revalidate()
	return nil
}

// Submit appends every row of the task, signed with the rater name, to sink and
// clears the task. On sink failure the task stays active.
func (s *Session) Submit(ctx context.Context, sink Sink) (int, error) {
	if s.Task == nil {
		return 0, ErrNoTask
	}
	// the surface may have shown a stale submit button
	s.revalidate()
	if !s.Ready {
		return 0, ErrNotReady
	}

	rows := make([]RatedRow, 0, len(s.Task.Rows))
	for _, r := range s.Task.Rows {
		rows = append(rows, RatedRow{
			DescriptionRow: r.DescriptionRow,
			Quality:        r.Quality,
			RaterName:      s.Name,
		})
	}
	if err := sink.AppendRows(ctx, rows); err != nil {
		return 0, fmt.Errorf("append ratings: %w", err)
	}
	s.clear()
	return len(rows), nil
}

// Skip drops the active task and its edits.
func (s *Session) Skip() {
	s.clear()
}

func (s *Session) clear() {
	s.Task = nil
	s.revalidate()
}

func (s *Session) revalidate() {
	if s.Task == nil {
		s.Ready = false
		return
	}
	s.Ready = ReadyToSubmit(s.Name, s.Task.Rows)
}
