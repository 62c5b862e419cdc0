package quotations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/quotedesk/quotedesk/internal/clients"
	"github.com/quotedesk/quotedesk/internal/shared"
)

var errInjected = errors.New("injected failure")

// memState is the committed contents of the in-memory store.
type memState struct {
	nextQuotationID int64
	nextLineID      int64
	nextClientID    int64
	quotations      map[int64]Quotation
	lines           map[int64][]Line
	clients         map[int64]clients.Client
	documents       []Document
	audits          []shared.AuditLog
}

func (s *memState) clone() *memState {
	c := &memState{
		nextQuotationID: s.nextQuotationID,
		nextLineID:      s.nextLineID,
		nextClientID:    s.nextClientID,
		quotations:      make(map[int64]Quotation, len(s.quotations)),
		lines:           make(map[int64][]Line, len(s.lines)),
		clients:         make(map[int64]clients.Client, len(s.clients)),
		documents:       append([]Document(nil), s.documents...),
		audits:          append([]shared.AuditLog(nil), s.audits...),
	}
	for k, v := range s.quotations {
		c.quotations[k] = v
	}
	for k, v := range s.lines {
		c.lines[k] = append([]Line(nil), v...)
	}
	for k, v := range s.clients {
		c.clients[k] = v
	}
	return c
}

// mockRepository stages writes made inside WithTx and only commits them when
// the callback succeeds.
type mockRepository struct {
	mu    *sync.Mutex
	state *memState
	root  *mockRepository
	inTx  bool

	// failLineInsert makes the Nth InsertLine call of a transaction fail.
	failLineInsert int
	lineInserts    int
	failDocument   bool
	forUpdateCalls int
}

func newMockRepository() *mockRepository {
	r := &mockRepository{
		mu: &sync.Mutex{},
		state: &memState{
			quotations: map[int64]Quotation{},
			lines:      map[int64][]Line{},
			clients:    map[int64]clients.Client{},
		},
	}
	r.root = r
	return r
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if m.inTx {
		return fn(ctx, m)
	}
	m.mu.Lock()
	staged := m.state.clone()
	m.mu.Unlock()

	m.lineInserts = 0
	tx := &mockRepository{mu: m.mu, state: staged, root: m, inTx: true}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.mu.Lock()
	m.state = staged
	m.mu.Unlock()
	return nil
}

func (m *mockRepository) Get(_ context.Context, id int64) (*Quotation, error) {
	q, ok := m.state.quotations[id]
	if !ok {
		return nil, fmt.Errorf("%w: quotation %d", shared.ErrNotFound, id)
	}
	q.Lines = append([]Line(nil), m.state.lines[id]...)
	return &q, nil
}

func (m *mockRepository) GetForUpdate(ctx context.Context, id int64) (*Quotation, error) {
	if !m.inTx {
		return nil, errors.New("GetForUpdate outside transaction")
	}
	m.root.forUpdateCalls++
	return m.Get(ctx, id)
}

func (m *mockRepository) List(_ context.Context, filter ListFilter) ([]Quotation, int, error) {
	var items []Quotation
	for _, q := range m.state.quotations {
		if filter.State != nil && q.State != *filter.State {
			continue
		}
		if filter.ClientID != nil && q.ClientID != *filter.ClientID {
			continue
		}
		if filter.SalespersonID != nil && q.SalespersonID != *filter.SalespersonID {
			continue
		}
		items = append(items, q)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	total := len(items)
	if filter.Offset >= len(items) {
		return nil, total, nil
	}
	items = items[filter.Offset:]
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, total, nil
}

func (m *mockRepository) CreateQuotation(_ context.Context, q Quotation) (int64, error) {
	m.state.nextQuotationID++
	q.ID = m.state.nextQuotationID
	q.CreatedAt = time.Now().UTC()
	q.UpdatedAt = q.CreatedAt
	q.Total = q.Total.Round(2)
	q.Lines = nil
	m.state.quotations[q.ID] = q
	return q.ID, nil
}

func (m *mockRepository) InsertLine(_ context.Context, line Line) (int64, error) {
	m.root.lineInserts++
	if m.root.failLineInsert > 0 && m.root.lineInserts == m.root.failLineInsert {
		return 0, errInjected
	}
	if _, ok := m.state.quotations[line.QuotationID]; !ok {
		return 0, fmt.Errorf("insert line: quotation %d missing", line.QuotationID)
	}
	m.state.nextLineID++
	line.ID = m.state.nextLineID
	m.state.lines[line.QuotationID] = append(m.state.lines[line.QuotationID], line)
	return line.ID, nil
}

func (m *mockRepository) UpdateState(_ context.Context, q *Quotation) error {
	stored, ok := m.state.quotations[q.ID]
	if !ok {
		return fmt.Errorf("%w: quotation %d", shared.ErrNotFound, q.ID)
	}
	stored.State = q.State
	stored.ApprovedBy, stored.ApprovedByName, stored.ApprovedAt = q.ApprovedBy, q.ApprovedByName, q.ApprovedAt
	stored.RejectedBy, stored.RejectedByName, stored.RejectedAt = q.RejectedBy, q.RejectedByName, q.RejectedAt
	stored.Comment = q.Comment
	stored.UpdatedAt = q.UpdatedAt
	m.state.quotations[q.ID] = stored
	return nil
}

func (m *mockRepository) UpdateAdjustment(_ context.Context, q *Quotation) error {
	stored, ok := m.state.quotations[q.ID]
	if !ok {
		return fmt.Errorf("%w: quotation %d", shared.ErrNotFound, q.ID)
	}
	stored.Total = q.Total.Round(2)
	if q.OriginalTotal != nil {
		original := q.OriginalTotal.Round(2)
		stored.OriginalTotal = &original
	}
	stored.DiscountPct, stored.FreeMonths = q.DiscountPct, q.FreeMonths
	stored.HasDiscount, stored.HasFreeMonths = q.HasDiscount, q.HasFreeMonths
	stored.DiscountBy, stored.DiscountByName, stored.DiscountAt, stored.DiscountComment = q.DiscountBy, q.DiscountByName, q.DiscountAt, q.DiscountComment
	stored.FreeMonthsBy, stored.FreeMonthsByName, stored.FreeMonthsAt, stored.FreeMonthsComment = q.FreeMonthsBy, q.FreeMonthsByName, q.FreeMonthsAt, q.FreeMonthsComment
	stored.PDFGenerated = q.PDFGenerated
	stored.UpdatedAt = q.UpdatedAt
	m.state.quotations[q.ID] = stored
	return nil
}

func (m *mockRepository) SetPDFGenerated(_ context.Context, id int64, generated bool) error {
	stored, ok := m.state.quotations[id]
	if !ok {
		return fmt.Errorf("%w: quotation %d", shared.ErrNotFound, id)
	}
	stored.PDFGenerated = generated
	m.state.quotations[id] = stored
	return nil
}

func (m *mockRepository) SaveDocument(_ context.Context, doc Document) error {
	if m.root.failDocument {
		return errInjected
	}
	doc.CreatedAt = time.Now().UTC()
	m.state.documents = append(m.state.documents, doc)
	return nil
}

func (m *mockRepository) LatestDocument(_ context.Context, quotationID int64) (*Document, error) {
	for i := len(m.state.documents) - 1; i >= 0; i-- {
		if m.state.documents[i].QuotationID == quotationID {
			doc := m.state.documents[i]
			return &doc, nil
		}
	}
	return nil, fmt.Errorf("%w: no document for quotation %d", shared.ErrNotFound, quotationID)
}

func (m *mockRepository) GetClient(_ context.Context, id int64) (*clients.Client, error) {
	c, ok := m.state.clients[id]
	if !ok {
		return nil, fmt.Errorf("%w: client %d", shared.ErrNotFound, id)
	}
	return &c, nil
}

func (m *mockRepository) CreateClient(_ context.Context, in clients.Input, createdBy int64) (int64, error) {
	m.state.nextClientID++
	id := m.state.nextClientID
	m.state.clients[id] = clients.Client{ID: id, Name: in.Name, Email: in.Email, TaxID: in.TaxID, Phone: in.Phone, CreatedBy: createdBy}
	return id, nil
}

func (m *mockRepository) RecordAudit(_ context.Context, log shared.AuditLog) error {
	m.state.audits = append(m.state.audits, log)
	return nil
}

func (m *mockRepository) History(_ context.Context, quotationID int64) ([]shared.AuditLog, error) {
	entityID := strconv.FormatInt(quotationID, 10)
	var out []shared.AuditLog
	for _, log := range m.state.audits {
		if log.Entity == auditEntity && log.EntityID == entityID {
			out = append(out, log)
		}
	}
	return out, nil
}

// seedClient commits a client outside any transaction.
func (m *mockRepository) seedClient(name string) int64 {
	m.state.nextClientID++
	id := m.state.nextClientID
	m.state.clients[id] = clients.Client{ID: id, Name: name}
	return id
}
