package billing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/opdcare/opd/internal/domain/pharmacy"
	"github.com/opdcare/opd/internal/domain/prescription"
	"github.com/opdcare/opd/internal/domain/sales"
	"github.com/opdcare/opd/internal/platform/auth"
	"github.com/opdcare/opd/internal/platform/metrics"
)

// journal holds the undo steps of one fake transaction.
type journal struct {
	undo []func()
}

type journalKey struct{}

func onRollback(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

// fakeTx rolls back every write made through its context when fn fails.
// Writes made outside that context, as by a concurrent request, survive.
type fakeTx struct {
	commitErr func() error // returned instead of committing
	wrapErr   func(error) error
	calls     int
}

func (f *fakeTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	j := &journal{}
	err := fn(context.WithValue(ctx, journalKey{}, j))
	if err == nil && f.commitErr != nil {
		err = f.commitErr()
	}
	if err != nil {
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		if f.wrapErr != nil {
			err = f.wrapErr(err)
		}
	}
	return err
}

// -- Stores --

type memStock struct {
	items map[uuid.UUID]*pharmacy.Item
	order []uuid.UUID
	// beforeDeduct runs once, ahead of the next deduction.
	beforeDeduct func()
}

func (m *memStock) FindActiveByName(_ context.Context, hospitalID uuid.UUID, name string) (*pharmacy.Item, error) {
	for _, match := range []func(string) bool{
		func(n string) bool { return n == name },
		func(n string) bool { return strings.EqualFold(n, name) },
	} {
		for _, id := range m.order {
			item := m.items[id]
			if item.HospitalID == hospitalID && item.IsActive && match(item.ItemName) {
				cp := *item
				return &cp, nil
			}
		}
	}
	return nil, nil
}

func (m *memStock) Deduct(ctx context.Context, id uuid.UUID, qty int, by string) (int, error) {
	if hook := m.beforeDeduct; hook != nil {
		m.beforeDeduct = nil
		hook()
	}
	item, ok := m.items[id]
	if !ok || !item.IsActive || item.Quantity < qty {
		return 0, pharmacy.ErrStockChanged
	}
	item.Quantity -= qty
	onRollback(ctx, func() { item.Quantity += qty })
	return item.Quantity, nil
}

func (m *memStock) quantity(id uuid.UUID) int {
	return m.items[id].Quantity
}

type memPrescriptions struct {
	rows []*prescription.Prescription
}

func (m *memPrescriptions) Create(ctx context.Context, rx *prescription.Prescription) error {
	rx.ID = uuid.New()
	m.rows = append(m.rows, rx)
	n := len(m.rows)
	onRollback(ctx, func() { m.rows = append(m.rows[:n-1], m.rows[n:]...) })
	return nil
}

type memSales struct {
	rows []*sales.Record
	err  error
}

func (m *memSales) Create(ctx context.Context, rec *sales.Record) error {
	if m.err != nil {
		return m.err
	}
	rec.ID = uuid.New()
	m.rows = append(m.rows, rec)
	n := len(m.rows)
	onRollback(ctx, func() { m.rows = append(m.rows[:n-1], m.rows[n:]...) })
	return nil
}

type checker map[uuid.UUID]uuid.UUID

func (c checker) Exists(_ context.Context, hospitalID, id uuid.UUID) (bool, error) {
	h, ok := c[id]
	return ok && h == hospitalID, nil
}

type observer struct {
	calls []uuid.UUID
}

func (o *observer) StockChanged(_ context.Context, hospitalID uuid.UUID) {
	o.calls = append(o.calls, hospitalID)
}

// -- Fixture --

type fixture struct {
	svc           *Service
	tx            *fakeTx
	stock         *memStock
	prescriptions *memPrescriptions
	sales         *memSales
	observer      *observer
	metrics       *metrics.Metrics
	hospitalID    uuid.UUID
	patientID     uuid.UUID
	visitID       uuid.UUID
	seq           int
}

func newFixture() *fixture {
	f := &fixture{
		tx:            &fakeTx{},
		stock:         &memStock{items: make(map[uuid.UUID]*pharmacy.Item)},
		prescriptions: &memPrescriptions{},
		sales:         &memSales{},
		observer:      &observer{},
		metrics:       metrics.New(prometheus.NewRegistry()),
		hospitalID:    uuid.New(),
		patientID:     uuid.New(),
		visitID:       uuid.New(),
	}
	f.svc = NewService(f.tx,
		checker{f.patientID: f.hospitalID},
		checker{f.visitID: f.hospitalID},
		f.stock, f.prescriptions, f.sales, f.observer, f.metrics, zerolog.Nop())
	return f
}

func (f *fixture) doctor() auth.Principal {
	return auth.Principal{UserID: "doc-1", Roles: []string{auth.RoleDoctor}, HospitalID: f.hospitalID}
}

// stockItem adds an active batch and returns its id.
func (f *fixture) stockItem(name string, qty int, price string) uuid.UUID {
	f.seq++
	item := &pharmacy.Item{
		ID:           uuid.New(),
		HospitalID:   f.hospitalID,
		ItemName:     name,
		BatchNumber:  name[:3] + "-B1",
		Quantity:     qty,
		SellingPrice: decimal.RequireFromString(price),
		IsActive:     true,
		CreatedAt:    time.Unix(int64(f.seq), 0),
	}
	f.stock.items[item.ID] = item
	f.stock.order = append(f.stock.order, item.ID)
	return item.ID
}

func line(name string, days int, timing prescription.Timing) prescription.MedicationLine {
	return prescription.MedicationLine{MedicineName: name, Dosage: "1 tab", Days: days, Timing: timing}
}

var twiceDaily = prescription.Timing{Morning: true, Night: true}

func (f *fixture) request(lines ...prescription.MedicationLine) *Request {
	return &Request{CreateRequest: prescription.CreateRequest{
		PatientID:   f.patientID,
		VisitID:     f.visitID,
		Medications: lines,
	}}
}

// assertNothingWritten checks the rollback left no prescription or sale and
// every quantity as given.
func (f *fixture) assertNothingWritten(t *testing.T, want map[uuid.UUID]int) {
	t.Helper()
	if n := len(f.prescriptions.rows); n != 0 {
		t.Errorf("expected no prescriptions, got %d", n)
	}
	if n := len(f.sales.rows); n != 0 {
		t.Errorf("expected no sales records, got %d", n)
	}
	for id, qty := range want {
		if got := f.stock.quantity(id); got != qty {
			t.Errorf("item %s: expected quantity %d, got %d", f.stock.items[id].ItemName, qty, got)
		}
	}
	if len(f.observer.calls) != 0 {
		t.Errorf("expected no stock change notifications, got %d", len(f.observer.calls))
	}
}

func (f *fixture) outcome(t *testing.T, label string) float64 {
	t.Helper()
	var m dto.Metric
	if err := f.metrics.BillingOutcomes.WithLabelValues(label).Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetCounter().GetValue()
}
