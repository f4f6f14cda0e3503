package failover_test

import (
	"context"
	"errors"
	"sync"

	"github.com/iliyamo/club-payments/internal/model"
	"github.com/iliyamo/club-payments/internal/repository"
)

var errDown = errors.New("backend unreachable")

// fakeStore is an in-memory PaymentStore whose availability can be toggled.
// With assignIDs it behaves like the relational backend (generated ids),
// otherwise like the flat file (position ids, no Update).
type fakeStore struct {
	mu        sync.Mutex
	name      string
	assignIDs bool
	down      bool
	saveDown  bool
	nextID    int64
	records   []*model.Payment
}

func newPrimary() *fakeStore   { return &fakeStore{name: "mysql", assignIDs: true} }
func newSecondary() *fakeStore { return &fakeStore{name: "file"} }

func (f *fakeStore) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeStore) setSaveDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveDown = down
}

func (f *fakeStore) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func (f *fakeStore) fail(op string) error {
	return &repository.StorageError{Backend: f.name, Op: op, Err: errDown}
}

// unavailable reports the error a call would see before touching records.
func (f *fakeStore) unavailable(ctx context.Context, op string, down bool) error {
	if err := ctx.Err(); err != nil {
		return &repository.StorageError{Backend: f.name, Op: op, Err: err}
	}
	if down {
		return f.fail(op)
	}
	return nil
}

func (f *fakeStore) Save(ctx context.Context, p *model.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.unavailable(ctx, "save", f.down || f.saveDown); err != nil {
		return err
	}
	if f.assignIDs {
		f.nextID++
		if _, ok := p.ID(); !ok {
			_ = p.AssignID(f.nextID)
		}
		if p.Summary() {
			f.records = append(f.records, model.NewSummary(f.nextID, p.TotalPrice()))
		} else {
			f.records = append(f.records, model.NewPaymentWithID(f.nextID, p.Tickets(), p.Consumables(), p.CoatCheck()))
		}
		return nil
	}
	f.records = append(f.records, p)
	return nil
}

func (f *fakeStore) indexOf(id int64) int {
	if !f.assignIDs {
		if id >= 0 && id < int64(len(f.records)) {
			return int(id)
		}
		return -1
	}
	for i, r := range f.records {
		if rid, _ := r.ID(); rid == id {
			return i
		}
	}
	return -1
}

func (f *fakeStore) FindByID(ctx context.Context, id int64) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.unavailable(ctx, "find", f.down); err != nil {
		return nil, err
	}
	i := f.indexOf(id)
	if i < 0 {
		return nil, repository.ErrNotFound
	}
	if !f.assignIDs {
		return model.NewSummary(id, f.records[i].TotalPrice()), nil
	}
	return f.records[i], nil
}

func (f *fakeStore) FindAll(ctx context.Context) ([]*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.unavailable(ctx, "find_all", f.down); err != nil {
		return nil, err
	}
	out := make([]*model.Payment, 0, len(f.records))
	for i, r := range f.records {
		if f.assignIDs {
			out = append(out, r)
		} else {
			out = append(out, model.NewSummary(int64(i), r.TotalPrice()))
		}
	}
	return out, nil
}

func (f *fakeStore) Update(_ context.Context, p *model.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.assignIDs {
		return repository.ErrUnsupported
	}
	if f.down {
		return f.fail("update")
	}
	id, ok := p.ID()
	if !ok {
		return repository.ErrNotFound
	}
	i := f.indexOf(id)
	if i < 0 {
		return repository.ErrNotFound
	}
	f.records[i] = p
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return f.fail("delete")
	}
	if i := f.indexOf(id); i >= 0 {
		f.records = append(f.records[:i], f.records[i+1:]...)
	}
	return nil
}
