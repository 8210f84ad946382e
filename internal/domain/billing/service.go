package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opdcare/opd/internal/domain/pharmacy"
	"github.com/opdcare/opd/internal/domain/prescription"
	"github.com/opdcare/opd/internal/domain/sales"
	"github.com/opdcare/opd/internal/platform/auth"
	"github.com/opdcare/opd/internal/platform/db"
	"github.com/opdcare/opd/internal/platform/metrics"
)

// Checker reports whether a patient or visit exists in a hospital. It must
// read through the transaction in ctx.
type Checker interface {
	Exists(ctx context.Context, hospitalID, id uuid.UUID) (bool, error)
}

type StockStore interface {
	StockReader
	Deduct(ctx context.Context, id uuid.UUID, qty int, by string) (int, error)
}

type PrescriptionWriter interface {
	Create(ctx context.Context, rx *prescription.Prescription) error
}

type SalesWriter interface {
	Create(ctx context.Context, rec *sales.Record) error
}

// StockObserver is told after a commit that a hospital's stock moved.
type StockObserver interface {
	StockChanged(ctx context.Context, hospitalID uuid.UUID)
}

// Request is a prescription payload plus the operator recording the sale.
type Request struct {
	prescription.CreateRequest
	SoldBy *string `json:"soldBy"`
}

type DeductedItem struct {
	MedicineName     string `json:"medicineName"`
	QuantityDeducted int    `json:"quantityDeducted"`
}

type Result struct {
	MedicationHistory *prescription.Prescription `json:"medicationHistory"`
	SalesRecord       *sales.Record              `json:"salesRecord"`
	DeductedItems     []DeductedItem             `json:"deductedItems"`
}

type Service struct {
	tx            db.TxRunner
	patients      Checker
	visits        Checker
	stock         StockStore
	prescriptions PrescriptionWriter
	sales         SalesWriter
	observer      StockObserver
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	now           func() time.Time
}

func NewService(
	tx db.TxRunner,
	patients, visits Checker,
	stock StockStore,
	prescriptions PrescriptionWriter,
	salesWriter SalesWriter,
	observer StockObserver,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Service {
	return &Service{
		tx:            tx,
		patients:      patients,
		visits:        visits,
		stock:         stock,
		prescriptions: prescriptions,
		sales:         salesWriter,
		observer:      observer,
		metrics:       m,
		logger:        logger.With().Str("component", "billing").Logger(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CreatePrescriptionWithBilling records the prescription, deducts stock for
// every line and writes the sale in one transaction. On any error nothing is
// written.
func (s *Service) CreatePrescriptionWithBilling(ctx context.Context, p auth.Principal, req *Request) (*Result, error) {
	hospitalID, err := auth.HospitalFor(ctx, p, req.HospitalID)
	if err != nil {
		s.metrics.BillingOutcomes.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, err
	}

	var res *Result
	var pending string
	start := time.Now()
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.bill(ctx, p, hospitalID, req, &pending)
		return err
	})
	s.metrics.BillingTxDuration.Observe(time.Since(start).Seconds())

	err = classify(err, pending)
	s.record(hospitalID, req, res, err)
	if err != nil {
		return nil, err
	}
	s.observer.StockChanged(ctx, hospitalID)
	return res, nil
}

// bill runs inside the transaction. pending names the medicines deducted so
// far, so a conflict reported at commit can still name them.
func (s *Service) bill(ctx context.Context, p auth.Principal, hospitalID uuid.UUID, req *Request, pending *string) (*Result, error) {
	if ok, err := s.patients.Exists(ctx, hospitalID, req.PatientID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrPatientNotFound
	}
	if ok, err := s.visits.Exists(ctx, hospitalID, req.VisitID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrVisitNotFound
	}
	if len(req.Medications) == 0 {
		return nil, ErrNoMedications
	}

	allocs, shortages, err := CheckAvailability(ctx, s.stock, hospitalID, req.Medications)
	if err != nil {
		return nil, err
	}
	if len(shortages) > 0 {
		return nil, &ShortageError{Items: shortages}
	}

	actor := p.Actor()
	now := s.now()
	rx := req.NewPrescription(hospitalID, actor, now)
	if err := s.prescriptions.Create(ctx, rx); err != nil {
		return nil, err
	}

	items := make([]sales.Item, 0, len(allocs))
	deducted := make([]DeductedItem, 0, len(allocs))
	var names []string
	for _, a := range allocs {
		name := a.Line.MedicineName
		remaining, err := s.stock.Deduct(ctx, a.Item.ID, a.Quantity, actor)
		if err != nil {
			if errors.Is(err, pharmacy.ErrStockChanged) || db.IsSerializationFailure(err) || db.IsCheckViolation(err) {
				return nil, &ConcurrentStockChangeError{Medicine: name, Err: err}
			}
			return nil, err
		}
		names = append(names, name)
		*pending = strings.Join(names, ", ")

		item := sales.NewItem(a.Item.ID, a.Item.ItemName, a.Item.BatchNumber, a.Quantity, a.Item.UnitPrice())
		items = append(items, item)
		deducted = append(deducted, DeductedItem{MedicineName: name, QuantityDeducted: a.Quantity})
		s.logger.Info().
			Str("medicine", name).
			Str("item_id", a.Item.ID.String()).
			Int("quantity", a.Quantity).
			Int("remaining", remaining).
			Str("amount", item.TotalPrice.StringFixed(2)).
			Msg("inventory deducted")
	}

	soldBy := actor
	if req.SoldBy != nil && strings.TrimSpace(*req.SoldBy) != "" {
		soldBy = *req.SoldBy
	}
	rec := &sales.Record{
		HospitalID:     hospitalID,
		PatientID:      req.PatientID,
		VisitID:        req.VisitID,
		PrescriptionID: rx.ID,
		Items:          items,
		TotalAmount:    sales.ComputeTotal(items),
		SaleDate:       now,
		SoldBy:         &soldBy,
	}
	if !rec.Consistent() {
		return nil, ErrInvalidTotalAmount
	}
	if err := s.sales.Create(ctx, rec); err != nil {
		return nil, err
	}

	return &Result{MedicationHistory: rx, SalesRecord: rec, DeductedItems: deducted}, nil
}

// classify turns storage conflicts surfacing outside a deduction, usually at
// commit, into ConcurrentStockChangeError. Business errors win over a
// deadline that expired while they were being returned.
func classify(err error, pending string) error {
	if err == nil || isBusiness(err) {
		return err
	}
	if db.IsSerializationFailure(err) {
		if pending == "" {
			pending = "Unknown"
		}
		return &ConcurrentStockChangeError{Medicine: pending, Err: err}
	}
	return err
}

func isBusiness(err error) bool {
	var medErr *MedicationError
	var shortErr *ShortageError
	var raceErr *ConcurrentStockChangeError
	return errors.Is(err, ErrPatientNotFound) ||
		errors.Is(err, ErrVisitNotFound) ||
		errors.Is(err, ErrNoMedications) ||
		errors.Is(err, ErrInvalidTotalAmount) ||
		errors.As(err, &medErr) ||
		errors.As(err, &shortErr) ||
		errors.As(err, &raceErr)
}

func (s *Service) record(hospitalID uuid.UUID, req *Request, res *Result, err error) {
	var (
		shortErr *ShortageError
		raceErr  *ConcurrentStockChangeError
	)
	switch {
	case err == nil:
		units := 0
		for _, d := range res.DeductedItems {
			units += d.QuantityDeducted
		}
		s.metrics.BillingOutcomes.WithLabelValues(metrics.OutcomeCommitted).Inc()
		s.metrics.UnitsDeducted.Add(float64(units))
		s.logger.Info().
			Str("prescription_id", res.MedicationHistory.ID.String()).
			Str("sale_id", res.SalesRecord.ID.String()).
			Str("hospital_id", hospitalID.String()).
			Str("total", res.SalesRecord.TotalAmount.StringFixed(2)).
			Int("units", units).
			Msg("billing committed")
	case errors.As(err, &shortErr):
		s.metrics.BillingOutcomes.WithLabelValues(metrics.OutcomeInsufficientStock).Inc()
		s.logger.Warn().
			Str("visit_id", req.VisitID.String()).
			Strs("shortages", shortErr.Items).
			Msg("billing rejected: insufficient stock")
	case errors.As(err, &raceErr):
		s.metrics.BillingOutcomes.WithLabelValues(metrics.OutcomeConcurrentChange).Inc()
		s.logger.Warn().
			Str("visit_id", req.VisitID.String()).
			Str("medicine", raceErr.Medicine).
			Msg("billing rejected: stock changed during processing")
	case errors.Is(err, ErrInvalidTotalAmount):
		s.metrics.BillingOutcomes.WithLabelValues(metrics.OutcomeInvalidTotal).Inc()
		s.logger.Error().
			Str("visit_id", req.VisitID.String()).
			Msg("billing aborted: computed sale total is inconsistent")
	case isBusiness(err):
		s.metrics.BillingOutcomes.WithLabelValues(metrics.OutcomeRejected).Inc()
		s.logger.Warn().Err(err).Str("visit_id", req.VisitID.String()).Msg("billing rejected")
	case errors.Is(err, ErrCommitTimeout):
		s.metrics.BillingOutcomes.WithLabelValues(metrics.OutcomeTimeout).Inc()
		s.logger.Error().Err(err).Str("visit_id", req.VisitID.String()).Msg("billing transaction timed out")
	default:
		s.metrics.BillingOutcomes.WithLabelValues(metrics.OutcomeError).Inc()
		s.logger.Error().Err(err).Str("visit_id", req.VisitID.String()).Msg("billing failed")
	}
}
