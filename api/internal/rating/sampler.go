package rating

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
)

// ErrNoVideos is returned when the source has no video left to sample.
var ErrNoVideos = errors.New("no videos to rate")

// Sampler draws one video uniformly at random from the source table.
type Sampler struct {
	src      Source
	reviewed Reviewed
	pick     func(n int) int
	serial   atomic.Uint64
}

type SamplerOption func(*Sampler)

// WithReviewed makes the sampler skip videos the rater has already rated.
func WithReviewed(r Reviewed) SamplerOption {
	return func(s *Sampler) { s.reviewed = r }
}

// WithPicker replaces the random index source (pick must return a value in [0, n)).
func WithPicker(pick func(n int) int) SamplerOption {
	return func(s *Sampler) { s.pick = pick }
}

func NewSampler(src Source, opts ...SamplerOption) *Sampler {
	s := &Sampler{src: src, pick: rand.IntN}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Sample reads the whole source and returns every row of one randomly chosen video.
func (s *Sampler) Sample(ctx context.Context, rater string) (*Task, error) {
	records, err := s.src.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("read descriptions: %w", err)
	}

	var skip map[string]bool
	if s.reviewed != nil && rater != "" {
		skip, err = s.reviewed.RatedPaths(ctx, rater)
		if err != nil {
			return nil, fmt.Errorf("read rated videos: %w", err)
		}
	}

	seen := make(map[string]bool)
	var paths []string
	for _, r := range records {
		if r.VideoPath == "" || seen[r.VideoPath] || skip[r.VideoPath] {
			continue
		}
		seen[r.VideoPath] = true
		paths = append(paths, r.VideoPath)
	}
	if len(paths) == 0 {
		return nil, ErrNoVideos
	}

	path := paths[s.pick(len(paths))]
	task := &Task{Serial: s.serial.Add(1), VideoID: VideoID(path), VideoPath: path}
	for _, r := range records {
		if r.VideoPath != path {
			continue
		}
		task.Rows = append(task.Rows, TaskRow{DescriptionRow: DescriptionRow{
			Model:       r.Model,
			Description: r.Description,
			VideoPath:   r.VideoPath,
		}})
	}
	return task, nil
}
