package quotations

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/quotedesk/quotedesk/internal/catalog"
	"github.com/quotedesk/quotedesk/internal/clients"
	"github.com/quotedesk/quotedesk/internal/shared"
)

// fakeCatalog resolves services from a fixed table. A categoryless lookup
// returns the service's default entry.
type fakeCatalog struct {
	services   map[int64]catalog.Entry
	categories map[int64]catalog.Entry
	failOn     map[int64]error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		services:   map[int64]catalog.Entry{},
		categories: map[int64]catalog.Entry{},
		failOn:     map[int64]error{},
	}
}

func (f *fakeCatalog) addService(id int64, minimum, recommended int64, unit catalog.UnitType) {
	f.services[id] = catalog.Entry{
		ServiceID:        id,
		ServiceName:      fmt.Sprintf("service-%d", id),
		CategoryID:       id * 10,
		UnitID:           id * 100,
		UnitType:         unit,
		MinimumPrice:     decimal.NewFromInt(minimum),
		RecommendedPrice: decimal.NewFromInt(recommended),
	}
}

func (f *fakeCatalog) addCategory(id int64, unit catalog.UnitType) {
	f.categories[id] = catalog.Entry{CategoryID: id, UnitID: id + 1000, UnitType: unit}
}

func (f *fakeCatalog) Resolve(_ context.Context, serviceID int64, categoryID *int64) (catalog.Entry, error) {
	if err, ok := f.failOn[serviceID]; ok {
		return catalog.Entry{}, err
	}
	svc, ok := f.services[serviceID]
	if !ok {
		return catalog.Entry{}, fmt.Errorf("%w: service %d", shared.ErrNotFound, serviceID)
	}
	if categoryID == nil {
		return svc, nil
	}
	cat, ok := f.categories[*categoryID]
	if !ok {
		return catalog.Entry{}, fmt.Errorf("%w: category %d", shared.ErrNotFound, *categoryID)
	}
	svc.CategoryID, svc.UnitID, svc.UnitType = cat.CategoryID, cat.UnitID, cat.UnitType
	return svc, nil
}

type fakeRenderer struct {
	mu    sync.Mutex
	err   error
	calls int
	// during runs while the document is being rendered.
	during func()
}

func (f *fakeRenderer) Render(_ context.Context, q *Quotation, _ *clients.Client) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return nil, f.err
	}
	return []byte(fmt.Sprintf("%%PDF-1.7 quotation %d", q.ID)), nil
}

type fakeRetries struct {
	enqueued []int64
}

func (f *fakeRetries) EnqueuePDFRegeneration(_ context.Context, quotationID, _ int64) error {
	f.enqueued = append(f.enqueued, quotationID)
	return nil
}

type fakeArchive struct {
	err  error
	docs []Document
}

func (f *fakeArchive) Archive(_ context.Context, doc Document) error {
	f.docs = append(f.docs, doc)
	return f.err
}

type fakeLocker struct {
	held     map[string]bool
	acquired int
}

func (f *fakeLocker) Acquire(_ context.Context, key string) (func(context.Context), error) {
	if f.held == nil {
		f.held = map[string]bool{}
	}
	if f.held[key] {
		return nil, fmt.Errorf("%w: %s is locked", shared.ErrConflict, key)
	}
	f.held[key] = true
	f.acquired++
	return func(context.Context) { delete(f.held, key) }, nil
}

var (
	admin       = shared.Actor{ID: 1, Name: "Ada Admin", Role: shared.RoleAdmin}
	supervisor  = shared.Actor{ID: 2, Name: "Sam Supervisor", Role: shared.RoleSupervisor}
	salesperson = shared.Actor{ID: 3, Name: "Sol Seller", Role: shared.RoleSalesperson}
	otherSeller = shared.Actor{ID: 4, Name: "Oli Other", Role: shared.RoleSalesperson}
)

type fixture struct {
	repo     *mockRepository
	catalog  *fakeCatalog
	renderer *fakeRenderer
	retries  *fakeRetries
	archive  *fakeArchive
	locker   *fakeLocker
	service  *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newMockRepository(),
		catalog:  newFakeCatalog(),
		renderer: &fakeRenderer{},
		retries:  &fakeRetries{},
		archive:  &fakeArchive{},
		locker:   &fakeLocker{},
	}
	f.catalog.addService(1, 80, 100, catalog.UnitCount)
	f.catalog.addService(2, 50, 60, catalog.UnitCapacity)
	f.catalog.addCategory(7, catalog.UnitUsers)
	f.catalog.addCategory(8, catalog.UnitSessions)
	f.service = NewService(Deps{
		Repo:     f.repo,
		Builder:  NewLineBuilder(f.catalog),
		Locker:   f.locker,
		Renderer: f.renderer,
		Archive:  f.archive,
		Retries:  f.retries,
	})
	return f
}

// seedQuotation commits a pending quotation with the given total.
func (f *fixture) seedQuotation(owner shared.Actor, total int64, duration int) *Quotation {
	clientID := f.repo.seedClient("Acme")
	id, _ := f.repo.CreateQuotation(context.Background(), Quotation{
		SalespersonID:  owner.ID,
		ClientID:       clientID,
		DurationMonths: duration,
		Total:          decimal.NewFromInt(total),
		State:          StatePending,
	})
	q, _ := f.repo.Get(context.Background(), id)
	return q
}
