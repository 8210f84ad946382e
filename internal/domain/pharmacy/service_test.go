package pharmacy

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/opdcare/opd/internal/platform/auth"
	"github.com/opdcare/opd/internal/platform/metrics"
	"github.com/opdcare/opd/pkg/pagination"
)

// -- Mock Repository --

type mockRepo struct {
	items map[uuid.UUID]*Item
	seq   int
	stats int
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Item)}
}

func (m *mockRepo) Create(_ context.Context, item *Item) error {
	for _, other := range m.items {
		if other.IsActive && other.HospitalID == item.HospitalID && other.ItemName == item.ItemName && other.BatchNumber == item.BatchNumber {
			return ErrDuplicateBatch
		}
	}
	m.seq++
	item.ID = uuid.New()
	item.CreatedAt = time.Unix(int64(m.seq), 0)
	item.UpdatedAt = item.CreatedAt
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Item, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, item *Item) error {
	stored, ok := m.items[item.ID]
	if !ok {
		return ErrNotFound
	}
	cp := *item
	cp.Quantity = stored.Quantity
	item.Quantity = stored.Quantity
	m.items[item.ID] = &cp
	return nil
}

func (m *mockRepo) Deactivate(_ context.Context, id uuid.UUID, by string) error {
	item, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	item.IsActive = false
	item.LastUpdatedBy = &by
	return nil
}

func (m *mockRepo) AdjustQuantity(_ context.Context, id uuid.UUID, delta int, by string) (*Item, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if item.Quantity+delta < 0 {
		return nil, ErrInsufficientStock
	}
	item.Quantity += delta
	item.LastUpdatedBy = &by
	cp := *item
	return &cp, nil
}

func (m *mockRepo) FindActiveByName(_ context.Context, hospitalID uuid.UUID, name string) (*Item, error) {
	pick := func(match func(string) bool) *Item {
		var found []*Item
		for _, item := range m.items {
			if item.HospitalID == hospitalID && item.IsActive && match(item.ItemName) {
				found = append(found, item)
			}
		}
		if len(found) == 0 {
			return nil
		}
		sort.Slice(found, func(i, j int) bool {
			a, b := found[i], found[j]
			switch {
			case a.ExpiryDate != nil && b.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
				return a.ExpiryDate.Before(*b.ExpiryDate)
			case a.ExpiryDate != nil && b.ExpiryDate == nil:
				return true
			case a.ExpiryDate == nil && b.ExpiryDate != nil:
				return false
			}
			return a.CreatedAt.Before(b.CreatedAt)
		})
		cp := *found[0]
		return &cp
	}
	if item := pick(func(n string) bool { return n == name }); item != nil {
		return item, nil
	}
	return pick(func(n string) bool { return strings.EqualFold(n, name) }), nil
}

func (m *mockRepo) Deduct(_ context.Context, id uuid.UUID, qty int, by string) (int, error) {
	item, ok := m.items[id]
	if !ok || !item.IsActive || item.Quantity < qty {
		return 0, ErrStockChanged
	}
	item.Quantity -= qty
	return item.Quantity, nil
}

func (m *mockRepo) filter(hospitalID uuid.UUID, keep func(*Item) bool) ([]*Item, int, error) {
	var result []*Item
	for _, item := range m.items {
		if item.HospitalID == hospitalID && keep(item) {
			result = append(result, item)
		}
	}
	return result, len(result), nil
}

func (m *mockRepo) List(_ context.Context, hospitalID uuid.UUID, f Filter, now time.Time, limit, offset int) ([]*Item, int, error) {
	return m.filter(hospitalID, func(item *Item) bool {
		if f.Category != "" && item.Category != f.Category {
			return false
		}
		if f.IsActive != nil && item.IsActive != *f.IsActive {
			return false
		}
		if f.LowStock && !item.IsLowStock() {
			return false
		}
		if f.Expired && !item.IsExpired(now) {
			return false
		}
		return f.Search == "" || strings.Contains(strings.ToLower(item.ItemName), strings.ToLower(f.Search))
	})
}

func (m *mockRepo) LowStock(_ context.Context, hospitalID uuid.UUID, limit, offset int) ([]*Item, int, error) {
	return m.filter(hospitalID, func(item *Item) bool { return item.IsActive && item.IsLowStock() })
}

func (m *mockRepo) Expiring(_ context.Context, hospitalID uuid.UUID, before time.Time, limit, offset int) ([]*Item, int, error) {
	return m.filter(hospitalID, func(item *Item) bool { return item.IsActive && item.IsExpired(before) })
}

func (m *mockRepo) Stats(_ context.Context, hospitalID uuid.UUID, now time.Time) (*Stats, error) {
	m.stats++
	st := &Stats{CategoryCounts: make(map[string]int)}
	for _, item := range m.items {
		if item.HospitalID != hospitalID {
			continue
		}
		st.TotalItems++
		if !item.IsActive {
			continue
		}
		st.ActiveItems++
		if item.IsLowStock() {
			st.LowStockCount++
		}
		if item.IsExpired(now) {
			st.ExpiredCount++
		}
		st.TotalValue = st.TotalValue.Add(item.SellingPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		st.CategoryCounts[item.Category]++
	}
	return st, nil
}

// -- Fake cache --

type memCache struct {
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := c.data[key]
	return v, ok
}

func (c *memCache) Set(_ context.Context, key string, data []byte, _ time.Duration) {
	c.data[key] = data
}

func (c *memCache) Delete(_ context.Context, keys ...string) {
	for _, k := range keys {
		delete(c.data, k)
	}
}

type fixture struct {
	svc      *Service
	repo     *mockRepo
	cache    *memCache
	metrics  *metrics.Metrics
	hospital uuid.UUID
}

func newFixture() *fixture {
	repo := newMockRepo()
	cache := newMemCache()
	m := metrics.NewNop()
	return &fixture{
		svc:      NewService(repo, cache, time.Minute, m, zerolog.Nop()),
		repo:     repo,
		cache:    cache,
		metrics:  m,
		hospital: uuid.New(),
	}
}

func (f *fixture) pharmacist() auth.Principal {
	return auth.Principal{UserID: "ph-1", Roles: []string{auth.RolePharmacist}, HospitalID: f.hospital}
}

func (f *fixture) add(t *testing.T, req CreateRequest) *Item {
	t.Helper()
	if err := req.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	item, err := f.svc.AddItem(context.Background(), f.pharmacist(), &req)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	return item
}

func TestService_AddItem_Defaults(t *testing.T) {
	f := newFixture()
	item := f.add(t, CreateRequest{ItemName: "Paracetamol 500mg", Category: "Tablet", Quantity: 100, SellingPrice: decimal.RequireFromString("2.50")})

	if item.HospitalID != f.hospital {
		t.Errorf("expected hospital from principal")
	}
	if item.MinStockLevel != DefaultMinStockLevel || item.Unit != DefaultUnit {
		t.Errorf("expected defaults, got min=%d unit=%s", item.MinStockLevel, item.Unit)
	}
	if item.Category != "tablet" {
		t.Errorf("expected category normalized, got %s", item.Category)
	}
	if !item.IsActive || item.AddedBy == nil || *item.AddedBy != "ph-1" {
		t.Errorf("unexpected item: %+v", item)
	}
}

func TestService_AddItem_DuplicateBatch(t *testing.T) {
	f := newFixture()
	f.add(t, CreateRequest{ItemName: "Amoxicillin", Category: "capsule", BatchNumber: "B1"})

	req := CreateRequest{ItemName: "Amoxicillin", Category: "capsule", BatchNumber: "B1"}
	if _, err := f.svc.AddItem(context.Background(), f.pharmacist(), &req); !errors.Is(err, ErrDuplicateBatch) {
		t.Errorf("expected ErrDuplicateBatch, got %v", err)
	}

	req.BatchNumber = "B2"
	if _, err := f.svc.AddItem(context.Background(), f.pharmacist(), &req); err != nil {
		t.Errorf("expected second batch to be accepted, got %v", err)
	}
}

func TestService_Update_KeepsQuantity(t *testing.T) {
	f := newFixture()
	item := f.add(t, CreateRequest{ItemName: "Cetirizine", Category: "tablet", Quantity: 40})

	name := "Cetirizine 10mg"
	updated, err := f.svc.Update(context.Background(), f.pharmacist(), item.ID, &UpdateRequest{ItemName: &name})
	if err != nil {
		t.Fatal(err)
	}
	if updated.ItemName != name || updated.Quantity != 40 {
		t.Errorf("unexpected update result: %+v", updated)
	}
}

func TestUpdateRequest_RejectsQuantity(t *testing.T) {
	q := 5
	if err := (&UpdateRequest{Quantity: &q}).Validate(); !errors.Is(err, errQuantityReadOnly) {
		t.Errorf("expected errQuantityReadOnly, got %v", err)
	}
}

func TestService_AdjustQuantity(t *testing.T) {
	f := newFixture()
	item := f.add(t, CreateRequest{ItemName: "ORS", Category: "powder", Quantity: 5})
	ctx := context.Background()

	updated, err := f.svc.AdjustQuantity(ctx, f.pharmacist(), item.ID, 20)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Quantity != 25 {
		t.Errorf("expected 25, got %d", updated.Quantity)
	}

	if _, err := f.svc.AdjustQuantity(ctx, f.pharmacist(), item.ID, -26); !errors.Is(err, ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock, got %v", err)
	}
	if got := f.repo.items[item.ID].Quantity; got != 25 {
		t.Errorf("rejected adjustment must not change quantity, got %d", got)
	}

	if _, err := f.svc.AdjustQuantity(ctx, f.pharmacist(), item.ID, -25); err != nil {
		t.Errorf("expected adjustment to zero to succeed, got %v", err)
	}
}

func TestService_Get_OtherHospital(t *testing.T) {
	f := newFixture()
	item := f.add(t, CreateRequest{ItemName: "ORS", Category: "powder"})
	other := auth.Principal{UserID: "x", Roles: []string{auth.RolePharmacist}, HospitalID: uuid.New()}
	if _, err := f.svc.Get(context.Background(), other, item.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.AdjustQuantity(context.Background(), other, item.ID, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_Deactivate(t *testing.T) {
	f := newFixture()
	item := f.add(t, CreateRequest{ItemName: "ORS", Category: "powder", Quantity: 3})
	if err := f.svc.Deactivate(context.Background(), f.pharmacist(), item.ID); err != nil {
		t.Fatal(err)
	}
	if f.repo.items[item.ID].IsActive {
		t.Error("expected item to be inactive")
	}
	found, _ := f.repo.FindActiveByName(context.Background(), f.hospital, "ORS")
	if found != nil {
		t.Error("inactive items must not be found by name")
	}
}

func TestService_Stats_Cached(t *testing.T) {
	f := newFixture()
	f.add(t, CreateRequest{ItemName: "A", Category: "tablet", Quantity: 10, SellingPrice: decimal.RequireFromString("1.50")})
	f.add(t, CreateRequest{ItemName: "B", Category: "syrup", Quantity: 50, SellingPrice: decimal.RequireFromString("2")})
	ctx := context.Background()

	st, err := f.svc.Stats(ctx, f.pharmacist(), uuid.Nil)
	if err != nil {
		t.Fatal(err)
	}
	if st.ActiveItems != 2 || st.LowStockCount != 1 || !st.TotalValue.Equal(decimal.RequireFromString("115")) {
		t.Errorf("unexpected stats: %+v", st)
	}
	if st.CategoryCounts["tablet"] != 1 || st.CategoryCounts["syrup"] != 1 {
		t.Errorf("unexpected category counts: %v", st.CategoryCounts)
	}

	if _, err := f.svc.Stats(ctx, f.pharmacist(), uuid.Nil); err != nil {
		t.Fatal(err)
	}
	if f.repo.stats != 1 {
		t.Errorf("expected second call to hit the cache, repo called %d times", f.repo.stats)
	}

	f.svc.StockChanged(ctx, f.hospital)
	if _, err := f.svc.Stats(ctx, f.pharmacist(), uuid.Nil); err != nil {
		t.Fatal(err)
	}
	if f.repo.stats != 2 {
		t.Errorf("expected invalidation to force a reload, repo called %d times", f.repo.stats)
	}
}

func TestService_AdjustQuantity_InvalidatesStats(t *testing.T) {
	f := newFixture()
	item := f.add(t, CreateRequest{ItemName: "A", Category: "tablet", Quantity: 10})
	ctx := context.Background()

	if _, err := f.svc.Stats(ctx, f.pharmacist(), uuid.Nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.cache.data[statsKey(f.hospital)]; !ok {
		t.Fatal("expected stats to be cached")
	}
	if _, err := f.svc.AdjustQuantity(ctx, f.pharmacist(), item.ID, 5); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.cache.data[statsKey(f.hospital)]; ok {
		t.Error("expected adjustment to invalidate cached stats")
	}
}

type recordingFeed struct {
	events []string
}

func (r *recordingFeed) Notify(_ context.Context, hospitalID uuid.UUID, eventType string) {
	r.events = append(r.events, hospitalID.String()+" "+eventType)
}

func TestService_StockMovementsNotifyFeed(t *testing.T) {
	f := newFixture()
	feed := &recordingFeed{}
	f.svc.WithFeed(feed)
	ctx := context.Background()

	item := f.add(t, CreateRequest{ItemName: "A", Category: "tablet", Quantity: 10})
	if _, err := f.svc.AdjustQuantity(ctx, f.pharmacist(), item.ID, -2); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.AdjustQuantity(ctx, f.pharmacist(), item.ID, -50); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if err := f.svc.Deactivate(ctx, f.pharmacist(), item.ID); err != nil {
		t.Fatal(err)
	}

	want := f.hospital.String() + " " + EventInventoryChanged
	if len(feed.events) != 3 {
		t.Fatalf("expected 3 notifications (add, adjust, deactivate), got %v", feed.events)
	}
	for _, e := range feed.events {
		if e != want {
			t.Errorf("unexpected event %q", e)
		}
	}
}

func TestService_List_Filters(t *testing.T) {
	f := newFixture()
	f.add(t, CreateRequest{ItemName: "Paracetamol", Category: "tablet", Quantity: 100})
	f.add(t, CreateRequest{ItemName: "Cough Syrup", Category: "syrup", Quantity: 2})
	pg := pagination.Params{Page: 1, Limit: 10}
	ctx := context.Background()

	_, total, _ := f.svc.List(ctx, f.pharmacist(), uuid.Nil, Filter{Category: "syrup"}, pg)
	if total != 1 {
		t.Errorf("category filter: expected 1, got %d", total)
	}
	_, total, _ = f.svc.List(ctx, f.pharmacist(), uuid.Nil, Filter{LowStock: true}, pg)
	if total != 1 {
		t.Errorf("low stock filter: expected 1, got %d", total)
	}
	_, total, _ = f.svc.List(ctx, f.pharmacist(), uuid.Nil, Filter{Search: "para"}, pg)
	if total != 1 {
		t.Errorf("search filter: expected 1, got %d", total)
	}
	if _, _, err := f.svc.List(ctx, f.pharmacist(), uuid.New(), Filter{}, pg); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("expected ErrForbidden for another hospital, got %v", err)
	}
}

func TestService_Expiring(t *testing.T) {
	f := newFixture()
	soon := time.Now().AddDate(0, 0, 10).Format(time.DateOnly)
	later := time.Now().AddDate(1, 0, 0).Format(time.DateOnly)
	f.add(t, CreateRequest{ItemName: "A", Category: "tablet", ExpiryDate: soon})
	f.add(t, CreateRequest{ItemName: "B", Category: "tablet", ExpiryDate: later})

	items, total, err := f.svc.Expiring(context.Background(), f.pharmacist(), uuid.Nil, 30, pagination.Params{Page: 1, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || items[0].ItemName != "A" {
		t.Errorf("expected only A to be expiring, got %d", total)
	}
}

func TestMockRepo_FindActiveByName(t *testing.T) {
	f := newFixture()
	early := time.Now().AddDate(0, 1, 0).Format(time.DateOnly)
	late := time.Now().AddDate(0, 6, 0).Format(time.DateOnly)
	f.add(t, CreateRequest{ItemName: "Paracetamol", Category: "tablet", BatchNumber: "LATE", ExpiryDate: late})
	f.add(t, CreateRequest{ItemName: "Paracetamol", Category: "tablet", BatchNumber: "EARLY", ExpiryDate: early})
	f.add(t, CreateRequest{ItemName: "paracetamol", Category: "tablet", BatchNumber: "LOWER"})
	ctx := context.Background()

	item, _ := f.repo.FindActiveByName(ctx, f.hospital, "Paracetamol")
	if item == nil || item.BatchNumber != "EARLY" {
		t.Errorf("expected earliest-expiring exact match, got %+v", item)
	}
	item, _ = f.repo.FindActiveByName(ctx, f.hospital, "PARACETAMOL")
	if item == nil {
		t.Error("expected case-insensitive fallback match")
	}
	item, _ = f.repo.FindActiveByName(ctx, f.hospital, "Ibuprofen")
	if item != nil {
		t.Error("expected nil for unknown medicine")
	}
}
