package integration

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/erp/storefront-sync/internal/domain/integration"
	"github.com/erp/storefront-sync/internal/domain/shared"
	"github.com/erp/storefront-sync/internal/domain/trade"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

var fixedNow = time.Date(2024, 5, 17, 15, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testSettings() integration.SyncSettings {
	return integration.SyncSettings{
		Warehouse:        "Stores - TC",
		Company:          "Test Company",
		PriceList:        "Standard Selling",
		CostCenter:       "Main - TC",
		CashBankAccount:  "Bank - TC",
		SyncSalesInvoice: true,
		SyncDeliveryNote: true,
		TaxAccounts: map[string]string{
			"VAT":      "VAT - TC",
			"Standard": "Freight - TC",
		},
	}
}

// newTestOrder builds a paid order with two lines, one tax, one shipping
// line, one discount and a fulfillment shipping the first line only
func newTestOrder(id int64) integration.StorefrontOrder {
	return integration.StorefrontOrder{
		ID:       id,
		Name:     fmt.Sprintf("#%d", id),
		Customer: &integration.StorefrontCustomer{ID: 501, FirstName: "Jane", LastName: "Doe"},
		LineItems: []integration.LineItem{
			{ID: 1, ProductID: 10, VariantID: 100, SKU: "TS-RED", Name: "T-Shirt", Quantity: 2, Price: dec("10.00")},
			{ID: 2, ProductID: 20, VariantID: 200, SKU: "MUG", Name: "Mug", Quantity: 1, Price: dec("5.00")},
		},
		TaxLines:        []integration.TaxLine{{Title: "VAT", Rate: dec("0.2"), Price: dec("5.00")}},
		ShippingLines:   []integration.ShippingLine{{Title: "Standard", Price: dec("4.00")}},
		DiscountCodes:   []integration.DiscountCode{{Code: "SAVE", Amount: dec("2.50")}},
		FinancialStatus: integration.FinancialStatusPaid,
		Fulfillments: []integration.Fulfillment{{
			ID:        9000 + id,
			OrderID:   id,
			LineItems: []integration.LineItem{{ID: 1, ProductID: 10, VariantID: 100, Quantity: 2}},
		}},
	}
}

// ---------------------------------------------------------------------------
// Master data
// ---------------------------------------------------------------------------

// fakeMasterData is an in-memory MasterDataLookup + MasterDataResolver
type fakeMasterData struct {
	mu          sync.Mutex
	customers   map[int64]string
	byVariant   map[int64]string
	byProduct   map[int64]string
	lookupCalls int
}

func newFakeMasterData() *fakeMasterData {
	return &fakeMasterData{
		customers: map[int64]string{501: "Jane Doe"},
		byVariant: map[int64]string{100: "TSHIRT-RED", 200: "MUG"},
		byProduct: map[int64]string{10: "TSHIRT", 20: "MUG"},
	}
}

func (f *fakeMasterData) FindCustomerByStorefrontID(_ context.Context, id int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name, ok := f.customers[id]; ok {
		return name, nil
	}
	return "", shared.ErrNotFound
}

func (f *fakeMasterData) FindItemCodeByVariantID(_ context.Context, id int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookupCalls++
	if code, ok := f.byVariant[id]; ok {
		return code, nil
	}
	return "", shared.ErrNotFound
}

func (f *fakeMasterData) FindItemCodeByProductID(_ context.Context, id int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookupCalls++
	if code, ok := f.byProduct[id]; ok {
		return code, nil
	}
	return "", shared.ErrNotFound
}

func (f *fakeMasterData) EnsureCustomer(_ context.Context, c integration.StorefrontCustomer) (integration.Resolution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customers[c.ID] = c.DisplayName()
	return integration.Resolution{
		Kind:       integration.ResolutionKindCustomer,
		ExternalID: fmt.Sprint(c.ID),
		LocalName:  c.DisplayName(),
		Outcome:    integration.ResolutionCreated,
	}, nil
}

func (f *fakeMasterData) EnsureItem(_ context.Context, _ string, p integration.StorefrontProduct) (integration.Resolution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	code := fmt.Sprintf("ITEM-%d", p.ID)
	f.byProduct[p.ID] = code
	for _, v := range p.Variants {
		f.byVariant[v.ID] = code
	}
	return integration.Resolution{
		Kind:       integration.ResolutionKindItem,
		ExternalID: fmt.Sprint(p.ID),
		LocalName:  code,
		Outcome:    integration.ResolutionCreated,
	}, nil
}

// MockMasterDataLookup is a mock implementation of MasterDataLookup
type MockMasterDataLookup struct {
	mock.Mock
}

func (m *MockMasterDataLookup) FindCustomerByStorefrontID(ctx context.Context, id int64) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockMasterDataLookup) FindItemCodeByVariantID(ctx context.Context, id int64) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockMasterDataLookup) FindItemCodeByProductID(ctx context.Context, id int64) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

// MockMasterDataResolver is a mock implementation of MasterDataResolver
type MockMasterDataResolver struct {
	mock.Mock
}

func (m *MockMasterDataResolver) EnsureCustomer(ctx context.Context, c integration.StorefrontCustomer) (integration.Resolution, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(integration.Resolution), args.Error(1)
}

func (m *MockMasterDataResolver) EnsureItem(ctx context.Context, warehouse string, p integration.StorefrontProduct) (integration.Resolution, error) {
	args := m.Called(ctx, warehouse, p)
	return args.Get(0).(integration.Resolution), args.Error(1)
}

// MockProductSource is a mock implementation of ProductSource
type MockProductSource struct {
	mock.Mock
}

func (m *MockProductSource) GetProduct(ctx context.Context, productID int64) (*integration.StorefrontProduct, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.StorefrontProduct), args.Error(1)
}

// MockSyncLogRepository is a mock implementation of SyncLogRepository
type MockSyncLogRepository struct {
	mock.Mock
}

func (m *MockSyncLogRepository) Save(ctx context.Context, log *integration.SyncLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockSyncLogRepository) FindRecent(ctx context.Context, limit int) ([]integration.SyncLog, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.SyncLog), args.Error(1)
}

// MockOrderLock is a mock implementation of OrderLock
type MockOrderLock struct {
	mock.Mock
}

func (m *MockOrderLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderLock) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// ---------------------------------------------------------------------------
// Document store
// ---------------------------------------------------------------------------

// fakeDocumentStore keeps copies of every document, names them from their
// series and enforces the storefront uniqueness keys
type fakeDocumentStore struct {
	mu       sync.Mutex
	orders   map[string]*trade.SalesOrder
	invoices map[string]*trade.SalesInvoice
	payments []*trade.PaymentEntry
	notes    map[string]*trade.DeliveryNote
	counters map[string]int
	// failures injects an error into the named Create method
	failures map[string]error
	// lostRace makes the next Create return ErrAlreadyExists after storing
	// the document, as if a concurrent runner had won
	lostRace map[string]bool
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{
		orders:   map[string]*trade.SalesOrder{},
		invoices: map[string]*trade.SalesInvoice{},
		notes:    map[string]*trade.DeliveryNote{},
		counters: map[string]int{},
		failures: map[string]error{},
		lostRace: map[string]bool{},
	}
}

func (s *fakeDocumentStore) nextName(series string) string {
	s.counters[series]++
	return fmt.Sprintf("%s%05d", series, s.counters[series])
}

func (s *fakeDocumentStore) FindSalesOrderByStorefrontID(_ context.Context, id string) (*trade.SalesOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	so, ok := s.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return cloneSalesOrder(so), nil
}

func (s *fakeDocumentStore) FindSalesInvoiceByStorefrontID(_ context.Context, id string) (*trade.SalesInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	si, ok := s.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *si
	return &cp, nil
}

func (s *fakeDocumentStore) FindDeliveryNoteByFulfillmentID(_ context.Context, id string) (*trade.DeliveryNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dn, ok := s.notes[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *dn
	return &cp, nil
}

func (s *fakeDocumentStore) CreateSalesOrder(_ context.Context, so *trade.SalesOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["CreateSalesOrder"]; err != nil {
		return err
	}
	if _, ok := s.orders[so.StorefrontOrderID]; ok {
		return shared.ErrAlreadyExists
	}
	stored := cloneSalesOrder(so)
	stored.Name = s.nextName(so.NamingSeries)
	s.orders[so.StorefrontOrderID] = stored
	if s.lostRace["CreateSalesOrder"] {
		delete(s.lostRace, "CreateSalesOrder")
		return shared.ErrAlreadyExists
	}
	so.Name = stored.Name
	return nil
}

func (s *fakeDocumentStore) CreateSalesInvoice(_ context.Context, si *trade.SalesInvoice, pe *trade.PaymentEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["CreateSalesInvoice"]; err != nil {
		return err
	}
	if _, ok := s.invoices[si.StorefrontOrderID]; ok {
		return shared.ErrAlreadyExists
	}
	si.Name = s.nextName(si.NamingSeries)
	pe.BindInvoice(si)
	pe.Name = s.nextName(pe.NamingSeries)

	so := s.orders[si.StorefrontOrderID]
	if so == nil {
		return shared.ErrNotFound
	}
	if err := so.MarkBilled(si); err != nil {
		return err
	}
	cp := *si
	s.invoices[si.StorefrontOrderID] = &cp
	pcp := *pe
	s.payments = append(s.payments, &pcp)
	return nil
}

func (s *fakeDocumentStore) CreateDeliveryNote(_ context.Context, dn *trade.DeliveryNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["CreateDeliveryNote"]; err != nil {
		return err
	}
	if _, ok := s.notes[dn.StorefrontFulfillmentID]; ok {
		return shared.ErrAlreadyExists
	}
	dn.Name = s.nextName(dn.NamingSeries)
	for _, so := range s.orders {
		if so.Name == dn.SalesOrderName {
			if err := so.MarkDelivered(dn); err != nil {
				return err
			}
		}
	}
	cp := *dn
	s.notes[dn.StorefrontFulfillmentID] = &cp
	return nil
}

func (s *fakeDocumentStore) counts() (orders, invoices, payments, notes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders), len(s.invoices), len(s.payments), len(s.notes)
}

func cloneSalesOrder(so *trade.SalesOrder) *trade.SalesOrder {
	cp := *so
	cp.Items = append([]trade.SalesOrderItem(nil), so.Items...)
	cp.Taxes = append([]trade.TaxRow(nil), so.Taxes...)
	return &cp
}

// ---------------------------------------------------------------------------
// Order source
// ---------------------------------------------------------------------------

type sourceEntry struct {
	order integration.StorefrontOrder
	err   error
}

// sliceSource yields its entries in order and stops early when the
// consumer stops, like a paginated client. A cancelled context ends the
// sequence with ctx.Err(), as a failed page request would.
type sliceSource struct {
	mu      sync.Mutex
	entries []sourceEntry
	yielded int
}

func newSliceSource(orders ...integration.StorefrontOrder) *sliceSource {
	s := &sliceSource{}
	for _, o := range orders {
		s.entries = append(s.entries, sourceEntry{order: o})
	}
	return s
}

func (s *sliceSource) withError(err error) *sliceSource {
	s.entries = append(s.entries, sourceEntry{err: err})
	return s
}

func (s *sliceSource) Orders(ctx context.Context) iter.Seq2[integration.StorefrontOrder, error] {
	return func(yield func(integration.StorefrontOrder, error) bool) {
		for _, e := range s.entries {
			if err := ctx.Err(); err != nil {
				yield(integration.StorefrontOrder{}, err)
				return
			}
			s.mu.Lock()
			s.yielded++
			s.mu.Unlock()
			if !yield(e.order, e.err) {
				return
			}
		}
	}
}

func (s *sliceSource) yieldedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.yielded
}
