package memory

import (
	"context"
	"sort"
	"time"

	"github.com/fastygo/taskledger/domain"
	"github.com/fastygo/taskledger/repository"
)

type taskRepo struct{ tx *tx }

func (r taskRepo) Insert(_ context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}
	task.ID = r.tx.taskCount()
	r.tx.inserted = append(r.tx.inserted, task.Clone())
	return nil
}

func (r taskRepo) GetByID(_ context.Context, id uint64) (*domain.Task, error) {
	task := r.tx.task(id)
	if task == nil {
		return nil, domain.ErrTaskNotFound
	}
	return task.Clone(), nil
}

func (r taskRepo) Update(_ context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}
	if r.tx.task(task.ID) == nil {
		return domain.ErrTaskNotFound
	}
	r.tx.updated[task.ID] = task.Clone()
	return nil
}

func (r taskRepo) Count(context.Context) (uint64, error) {
	return r.tx.taskCount(), nil
}

func (r taskRepo) List(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	limit := repository.ClampLimit(filter.Limit)
	var (
		out     []domain.Task
		skipped int
	)
	for id := uint64(0); id < r.tx.taskCount() && len(out) < limit; id++ {
		task := r.tx.task(id)
		if !filter.Matches(task) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, *task.Clone())
	}
	return out, nil
}

type progressRepo struct{ tx *tx }

func (r progressRepo) lookup(id string) *domain.UserProgress {
	if p, ok := r.tx.progress[id]; ok {
		return p
	}
	return r.tx.store.progress[id]
}

func (r progressRepo) Create(_ context.Context, p *domain.UserProgress) error {
	if p == nil || p.ID == "" {
		return domain.ErrInvalidPayload
	}
	if r.lookup(p.ID) != nil {
		return domain.WrapError(domain.ErrCodeConflict, "profile already exists", nil)
	}
	r.tx.progress[p.ID] = p.Clone()
	return nil
}

func (r progressRepo) GetByID(_ context.Context, id string) (*domain.UserProgress, error) {
	p := r.lookup(id)
	if p == nil {
		return nil, domain.ErrProfileNotFound
	}
	return p.Clone(), nil
}

func (r progressRepo) Update(_ context.Context, p *domain.UserProgress) error {
	if p == nil {
		return domain.ErrInvalidPayload
	}
	if r.lookup(p.ID) == nil {
		return domain.ErrProfileNotFound
	}
	r.tx.progress[p.ID] = p.Clone()
	return nil
}

func (r progressRepo) ListByOwner(_ context.Context, owner domain.Identity) ([]domain.UserProgress, error) {
	seen := make(map[string]bool)
	var out []domain.UserProgress
	collect := func(src map[string]*domain.UserProgress) {
		for id := range src {
			if seen[id] {
				continue
			}
			seen[id] = true
			if p := r.lookup(id); p.OwnedBy(owner) {
				out = append(out, *p.Clone())
			}
		}
	}
	collect(r.tx.progress)
	collect(r.tx.store.progress)
	sortProgress(out)
	return out, nil
}

type eventRepo struct{ tx *tx }

func (r eventRepo) Append(_ context.Context, events ...*domain.Event) error {
	for _, e := range events {
		e.Seq = r.tx.eventCount() + 1
		c := *e
		r.tx.events = append(r.tx.events, &c)
	}
	return nil
}

func (r eventRepo) Pending(_ context.Context, limit int) ([]domain.Event, error) {
	limit = repository.ClampLimit(limit)
	var out []domain.Event
	for seq := uint64(1); seq <= r.tx.eventCount() && len(out) < limit; seq++ {
		if e := r.tx.event(seq); !r.tx.isPublished(e) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r eventRepo) MarkPublished(_ context.Context, seqs ...uint64) error {
	now := time.Now().UTC()
	for _, seq := range seqs {
		if e := r.tx.event(seq); e != nil && !r.tx.isPublished(e) {
			r.tx.published[seq] = now
		}
	}
	return nil
}

func (r eventRepo) List(_ context.Context, filter repository.EventFilter) ([]domain.Event, error) {
	if filter.AfterSeq >= r.tx.eventCount() {
		return nil, nil
	}
	limit := repository.ClampLimit(filter.Limit)
	var out []domain.Event
	for seq := filter.AfterSeq + 1; seq <= r.tx.eventCount() && len(out) < limit; seq++ {
		e := r.tx.event(seq)
		if !filter.Matches(e) {
			continue
		}
		c := *e
		if at, ok := r.tx.published[seq]; ok && c.PublishedAt == nil {
			c.PublishedAt = &at
		}
		out = append(out, c)
	}
	return out, nil
}

type capabilityRepo struct{ tx *tx }

func (r capabilityRepo) Get(context.Context) (*repository.CapabilityGrant, error) {
	g := r.tx.grant
	if g == nil {
		g = r.tx.store.grant
	}
	if g == nil {
		return nil, nil
	}
	c := *g
	return &c, nil
}

func (r capabilityRepo) Save(_ context.Context, grant *repository.CapabilityGrant) error {
	if grant == nil {
		return domain.ErrInvalidPayload
	}
	if r.tx.grant != nil || r.tx.store.grant != nil {
		return domain.ErrCapabilityMinted
	}
	c := *grant
	r.tx.grant = &c
	return nil
}

func sortProgress(records []domain.UserProgress) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}
