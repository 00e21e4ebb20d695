// Package source defines where analysis runs read people, evaluations and
// attendance from.
package source

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/flightrisk/internal/domain/model"
)

// Source materializes the dataset of one analysis run. Implementations are
// read only and safe for concurrent use.
type Source interface {
	Load(ctx context.Context) (model.Dataset, error)
}

// Accepted timestamp layouts, most specific first.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// ParseTime parses a stored timestamp. Values without a zone are UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
}

// ParseOptionalTime is ParseTime for nullable columns. Blank yields nil.
func ParseOptionalTime(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := ParseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Memory serves a dataset held in process.
type Memory struct {
	mu   sync.RWMutex
	data model.Dataset
}

// NewMemory creates a memory source holding data.
func NewMemory(data model.Dataset) *Memory {
	return &Memory{data: Clone(data)}
}

// Set replaces the held dataset. Runs started afterwards see the new data.
func (m *Memory) Set(data model.Dataset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = Clone(data)
}

// Load returns a copy of the held dataset.
func (m *Memory) Load(ctx context.Context) (model.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return model.Dataset{}, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Clone(m.data), nil
}

// Clone copies the record slices of d so callers cannot alias each other.
func Clone(d model.Dataset) model.Dataset {
	return model.Dataset{
		People:      slices.Clone(d.People),
		Evaluations: slices.Clone(d.Evaluations),
		Attendance:  slices.Clone(d.Attendance),
	}
}
