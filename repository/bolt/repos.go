package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fastygo/taskledger/domain"
	boltInfra "github.com/fastygo/taskledger/internal/infrastructure/bolt"
	"github.com/fastygo/taskledger/repository"
)

type taskRepo struct{ tx *bolt.Tx }

func (r taskRepo) count() uint64 {
	return btoi(r.tx.Bucket(boltInfra.BucketMeta).Get(keyTaskCount))
}

func (r taskRepo) Insert(_ context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}
	id := r.count()
	task.ID = id
	if err := put(r.tx.Bucket(boltInfra.BucketTasks), itob(id), task); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return r.tx.Bucket(boltInfra.BucketMeta).Put(keyTaskCount, itob(id+1))
}

func (r taskRepo) GetByID(_ context.Context, id uint64) (*domain.Task, error) {
	raw := r.tx.Bucket(boltInfra.BucketTasks).Get(itob(id))
	if raw == nil {
		return nil, domain.ErrTaskNotFound
	}
	var task domain.Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("decode task %d: %w", id, err)
	}
	return &task, nil
}

func (r taskRepo) Update(_ context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}
	b := r.tx.Bucket(boltInfra.BucketTasks)
	if b.Get(itob(task.ID)) == nil {
		return domain.ErrTaskNotFound
	}
	return put(b, itob(task.ID), task)
}

func (r taskRepo) Count(context.Context) (uint64, error) {
	return r.count(), nil
}

func (r taskRepo) List(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	limit := repository.ClampLimit(filter.Limit)
	var (
		out     []domain.Task
		skipped int
	)
	c := r.tx.Bucket(boltInfra.BucketTasks).Cursor()
	for k, v := c.First(); k != nil && len(out) < limit; k, v = c.Next() {
		var task domain.Task
		if err := json.Unmarshal(v, &task); err != nil {
			return nil, fmt.Errorf("decode task %d: %w", btoi(k), err)
		}
		if !filter.Matches(&task) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, task)
	}
	return out, nil
}

type progressRepo struct{ tx *bolt.Tx }

func (r progressRepo) Create(_ context.Context, p *domain.UserProgress) error {
	if p == nil || p.ID == "" {
		return domain.ErrInvalidPayload
	}
	b := r.tx.Bucket(boltInfra.BucketProgress)
	if b.Get([]byte(p.ID)) != nil {
		return domain.WrapError(domain.ErrCodeConflict, "profile already exists", nil)
	}
	return put(b, []byte(p.ID), p)
}

func (r progressRepo) GetByID(_ context.Context, id string) (*domain.UserProgress, error) {
	raw := r.tx.Bucket(boltInfra.BucketProgress).Get([]byte(id))
	if raw == nil {
		return nil, domain.ErrProfileNotFound
	}
	var p domain.UserProgress
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode progress %s: %w", id, err)
	}
	return &p, nil
}

func (r progressRepo) Update(_ context.Context, p *domain.UserProgress) error {
	if p == nil {
		return domain.ErrInvalidPayload
	}
	b := r.tx.Bucket(boltInfra.BucketProgress)
	if b.Get([]byte(p.ID)) == nil {
		return domain.ErrProfileNotFound
	}
	return put(b, []byte(p.ID), p)
}

func (r progressRepo) ListByOwner(_ context.Context, owner domain.Identity) ([]domain.UserProgress, error) {
	var out []domain.UserProgress
	err := r.tx.Bucket(boltInfra.BucketProgress).ForEach(func(k, v []byte) error {
		var p domain.UserProgress
		if err := json.Unmarshal(v, &p); err != nil {
			return fmt.Errorf("decode progress %s: %w", k, err)
		}
		if p.OwnedBy(owner) {
			out = append(out, p)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}

type eventRepo struct{ tx *bolt.Tx }

func (r eventRepo) Append(_ context.Context, events ...*domain.Event) error {
	b := r.tx.Bucket(boltInfra.BucketEvents)
	pending := r.tx.Bucket(boltInfra.BucketPending)
	for _, event := range events {
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		event.Seq = seq
		if err := put(b, itob(seq), event); err != nil {
			return fmt.Errorf("append event %s: %w", event.Name, err)
		}
		if err := pending.Put(itob(seq), []byte{1}); err != nil {
			return err
		}
	}
	return nil
}

func (r eventRepo) get(seq uint64) (*domain.Event, error) {
	raw := r.tx.Bucket(boltInfra.BucketEvents).Get(itob(seq))
	if raw == nil {
		return nil, nil
	}
	var event domain.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("decode event %d: %w", seq, err)
	}
	return &event, nil
}

func (r eventRepo) Pending(_ context.Context, limit int) ([]domain.Event, error) {
	limit = repository.ClampLimit(limit)
	var out []domain.Event
	c := r.tx.Bucket(boltInfra.BucketPending).Cursor()
	for k, _ := c.First(); k != nil && len(out) < limit; k, _ = c.Next() {
		event, err := r.get(btoi(k))
		if err != nil {
			return nil, err
		}
		if event != nil {
			out = append(out, *event)
		}
	}
	return out, nil
}

func (r eventRepo) MarkPublished(_ context.Context, seqs ...uint64) error {
	now := time.Now().UTC()
	b := r.tx.Bucket(boltInfra.BucketEvents)
	pending := r.tx.Bucket(boltInfra.BucketPending)
	for _, seq := range seqs {
		event, err := r.get(seq)
		if err != nil {
			return err
		}
		if event == nil || event.PublishedAt != nil {
			continue
		}
		event.PublishedAt = &now
		if err := put(b, itob(seq), event); err != nil {
			return err
		}
		if err := pending.Delete(itob(seq)); err != nil {
			return err
		}
	}
	return nil
}

func (r eventRepo) List(_ context.Context, filter repository.EventFilter) ([]domain.Event, error) {
	if filter.AfterSeq == math.MaxUint64 {
		return nil, nil
	}
	limit := repository.ClampLimit(filter.Limit)
	var out []domain.Event
	c := r.tx.Bucket(boltInfra.BucketEvents).Cursor()
	start := itob(filter.AfterSeq + 1)
	for k, v := c.Seek(start); k != nil && len(out) < limit; k, v = c.Next() {
		if bytes.Compare(k, start) < 0 {
			continue
		}
		var event domain.Event
		if err := json.Unmarshal(v, &event); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", btoi(k), err)
		}
		if filter.Matches(&event) {
			out = append(out, event)
		}
	}
	return out, nil
}

type capabilityRepo struct{ tx *bolt.Tx }

func (r capabilityRepo) Get(context.Context) (*repository.CapabilityGrant, error) {
	raw := r.tx.Bucket(boltInfra.BucketMeta).Get(keyCapability)
	if raw == nil {
		return nil, nil
	}
	var grant repository.CapabilityGrant
	if err := json.Unmarshal(raw, &grant); err != nil {
		return nil, fmt.Errorf("decode capability: %w", err)
	}
	return &grant, nil
}

func (r capabilityRepo) Save(_ context.Context, grant *repository.CapabilityGrant) error {
	if grant == nil {
		return domain.ErrInvalidPayload
	}
	b := r.tx.Bucket(boltInfra.BucketMeta)
	if b.Get(keyCapability) != nil {
		return domain.ErrCapabilityMinted
	}
	return put(b, keyCapability, grant)
}
