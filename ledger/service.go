package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nsplit-app/nsplit/audit"
	"github.com/nsplit-app/nsplit/currency"
	"github.com/nsplit-app/nsplit/metrics"
	"github.com/nsplit-app/nsplit/settlement"
)

// Repository is the persistence surface the service needs. GetEvent returns
// a consistent snapshot of the event with participants and expenses loaded,
// or (nil, nil) when the event does not exist.
type Repository interface {
	CreateEvent(ctx context.Context, event Event) error
	AddParticipant(ctx context.Context, participant Participant) error
	SaveExpense(ctx context.Context, expense Expense) error
	GetEvent(ctx context.Context, eventID uuid.UUID) (*Event, error)
}

// RateSource hands out the current exchange-rate table. Rates are injected
// data; the service never fetches them.
type RateSource interface {
	Table() *currency.Table
}

// Recorder receives audit entries. Satisfied by *audit.Worker.
type Recorder interface {
	Record(entry audit.Entry)
}

// Service is the caller-facing API over the ledger: it normalizes incoming
// amounts, validates and appends expenses, and derives balances and
// settlement plans on demand.
//
// Appends to the same event are serialized through a per-event mutex so the
// validate-then-write step can't interleave; different events don't contend.
// Reads work on repository snapshots and take no event lock.
type Service struct {
	repo     Repository
	rates    RateSource
	recorder Recorder

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewService(repo Repository, rates RateSource, recorder Recorder) *Service {
	return &Service{
		repo:     repo,
		rates:    rates,
		recorder: recorder,
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *Service) eventLock(eventID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[eventID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[eventID] = lock
	}
	return lock
}

// CreateEvent creates an event with its initial participants, in the order
// the names were supplied. The creator is recorded on the event but is only
// a participant if the caller lists a name for them.
func (s *Service) CreateEvent(ctx context.Context, name string, createdBy uuid.UUID, participantNames []string) (*Event, error) {
	event, err := NewEvent(name, createdBy)
	if err != nil {
		return nil, err
	}

	for _, participantName := range participantNames {
		participant, err := NewParticipant(event.ID, participantName)
		if err != nil {
			return nil, err
		}
		event.Participants = append(event.Participants, participant)
	}

	if err := s.repo.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("creating event: %w", err)
	}

	s.record("event.created", map[string]string{
		"event_id": event.ID.String(),
		"name":     event.Name,
	})

	return &event, nil
}

// AddParticipant adds a member to an event. Existing expenses are untouched:
// a new participant simply starts with a zero balance.
func (s *Service) AddParticipant(ctx context.Context, eventID uuid.UUID, name string) (*Participant, error) {
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	participant, err := NewParticipant(event.ID, name)
	if err != nil {
		return nil, err
	}
	if err := s.repo.AddParticipant(ctx, participant); err != nil {
		return nil, fmt.Errorf("adding participant: %w", err)
	}

	s.record("participant.joined", map[string]string{
		"event_id":       eventID.String(),
		"participant_id": participant.ID.String(),
	})

	return &participant, nil
}

// AddExpense normalizes the amount to canonical micro-units, validates the
// expense against the event's membership, and appends it to the ledger.
func (s *Service) AddExpense(ctx context.Context, eventID, payerID uuid.UUID, description string, amount decimal.Decimal, currencyCode string, mode SplitMode) (*Expense, error) {
	lock := s.eventLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	canonical, err := currency.Normalize(amount, currencyCode, s.rates.Table())
	if err != nil {
		metrics.ExpensesRejected.WithLabelValues("currency").Inc()
		return nil, err
	}

	expense, err := NewExpense(event, description, canonical, payerID, currencyCode, amount, mode)
	if err != nil {
		metrics.ExpensesRejected.WithLabelValues("validation").Inc()
		return nil, err
	}

	if err := s.repo.SaveExpense(ctx, *expense); err != nil {
		return nil, fmt.Errorf("saving expense: %w", err)
	}

	metrics.ExpensesRecorded.Inc()
	s.record("expense.added", map[string]string{
		"event_id":   eventID.String(),
		"expense_id": expense.ID.String(),
		"paid_by":    payerID.String(),
		"amount":     fmt.Sprintf("%d", expense.Amount),
		"currency":   currencyCode,
	})

	return expense, nil
}

// Event returns the full event snapshot with participants and expenses.
func (s *Service) Event(ctx context.Context, eventID uuid.UUID) (*Event, error) {
	return s.loadEvent(ctx, eventID)
}

// Expenses returns the event's expense log in recorded order.
func (s *Service) Expenses(ctx context.Context, eventID uuid.UUID) ([]Expense, error) {
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return event.Expenses, nil
}

// Balances derives the net balance per participant from a snapshot of the
// event's ledger.
func (s *Service) Balances(ctx context.Context, eventID uuid.UUID) (map[uuid.UUID]int64, error) {
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	balances, err := Balances(event)
	if err != nil {
		if errors.Is(err, ErrUnbalancedLedger) {
			metrics.LedgerCorruptions.Inc()
			slog.Error("ledger corruption detected", "event_id", eventID, "error", err)
		}
		return nil, err
	}

	metrics.BalanceReads.Inc()
	return balances, nil
}

// SettlementPlan derives the transfer list that settles the event. The plan
// is a recommendation recomputed on every call, never stored.
func (s *Service) SettlementPlan(ctx context.Context, eventID uuid.UUID) ([]settlement.Transfer, error) {
	balances, err := s.Balances(ctx, eventID)
	if err != nil {
		return nil, err
	}

	transfers, err := settlement.Plan(balances)
	if err != nil {
		// Unreachable while Balances enforces the zero-sum invariant.
		slog.Error("settlement planning failed", "event_id", eventID, "error", err)
		return nil, err
	}

	metrics.PlansComputed.Inc()
	metrics.TransfersPerPlan.Observe(float64(len(transfers)))
	s.record("settlement.planned", map[string]string{
		"event_id":  eventID.String(),
		"transfers": fmt.Sprintf("%d", len(transfers)),
	})

	return transfers, nil
}

func (s *Service) loadEvent(ctx context.Context, eventID uuid.UUID) (*Event, error) {
	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("loading event: %w", err)
	}
	if event == nil {
		return nil, ErrEventNotFound
	}
	return event, nil
}

func (s *Service) record(action string, metadata map[string]string) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(audit.NewEntry(
		audit.WithAction(action),
		audit.WithMetadata(metadata),
	))
}
