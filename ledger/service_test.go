package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nsplit-app/nsplit/currency"
)

// fakeRepo keeps events in memory. It deliberately copies on read so the
// service always works on snapshots, like the SQL repository does.
type fakeRepo struct {
	mu     sync.Mutex
	events map[uuid.UUID]*Event
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{events: make(map[uuid.UUID]*Event)}
}

func (r *fakeRepo) CreateEvent(ctx context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := event
	r.events[event.ID] = &stored
	return nil
}

func (r *fakeRepo) AddParticipant(ctx context.Context, participant Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[participant.EventID]
	if !ok {
		return errors.New("no such event")
	}
	event.Participants = append(event.Participants, participant)
	return nil
}

func (r *fakeRepo) SaveExpense(ctx context.Context, expense Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[expense.EventID]
	if !ok {
		return errors.New("no such event")
	}
	event.Expenses = append(event.Expenses, expense)
	return nil
}

func (r *fakeRepo) GetEvent(ctx context.Context, eventID uuid.UUID) (*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[eventID]
	if !ok {
		return nil, nil
	}
	snapshot := *event
	snapshot.Participants = append([]Participant(nil), event.Participants...)
	snapshot.Expenses = append([]Expense(nil), event.Expenses...)
	return &snapshot, nil
}

type staticRates struct {
	table *currency.Table
}

func (s staticRates) Table() *currency.Table { return s.table }

func newTestService(t *testing.T) (*Service, *fakeRepo) {
	t.Helper()
	table, err := currency.NewTable("USD", map[string]decimal.Decimal{
		"MYR": decimal.RequireFromString("0.23"),
	})
	if err != nil {
		t.Fatalf("building rate table: %v", err)
	}
	repo := newFakeRepo()
	return NewService(repo, staticRates{table: table}, nil), repo
}

func TestServiceAddExpenseNormalizesCurrency(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	event, err := svc.CreateEvent(ctx, "Weekend Trip", uuid.New(), []string{"Alex", "Jamie"})
	if err != nil {
		t.Fatalf("creating event: %v", err)
	}
	ids := participantIDs(event)

	expense, err := svc.AddExpense(ctx, event.ID, ids[0], "Street food", decimal.NewFromInt(100), "MYR", SplitEqually(ids))
	if err != nil {
		t.Fatalf("adding expense: %v", err)
	}
	if want := int64(23 * currency.CanonicalScale); expense.Amount != want {
		t.Fatalf("expected canonical amount %d, got %d", want, expense.Amount)
	}
	if expense.OriginalCurrency != "MYR" {
		t.Fatalf("expected original currency MYR, got %s", expense.OriginalCurrency)
	}
}

func TestServiceCreateEventParticipantsMatchSuppliedNames(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	names := []string{"Alex", "Jamie", "Taylor"}
	event, err := svc.CreateEvent(ctx, "Hiking trip", uuid.New(), names)
	if err != nil {
		t.Fatalf("creating event: %v", err)
	}

	if len(event.Participants) != len(names) {
		t.Fatalf("expected %d participants, got %d", len(names), len(event.Participants))
	}
	for i, p := range event.Participants {
		if p.Name != names[i] {
			t.Fatalf("participant %d: expected name %q, got %q", i, names[i], p.Name)
		}
	}
}

func TestServiceAddExpenseUnknownEvent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.AddExpense(ctx, uuid.New(), uuid.New(), "Dinner", decimal.NewFromInt(10), "USD", SplitEqually([]uuid.UUID{uuid.New()}))
	if !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestServiceAddExpenseRejectsUnknownCurrency(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	event, err := svc.CreateEvent(ctx, "Trip", uuid.New(), []string{"Alex", "Jamie"})
	if err != nil {
		t.Fatalf("creating event: %v", err)
	}
	ids := participantIDs(event)

	_, err = svc.AddExpense(ctx, event.ID, ids[0], "Dinner", decimal.NewFromInt(10), "SGD", SplitEqually(ids))
	if !errors.Is(err, currency.ErrUnknownCurrency) {
		t.Fatalf("expected ErrUnknownCurrency, got %v", err)
	}
}

func TestServiceSettlementPlan(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	event, err := svc.CreateEvent(ctx, "Dinner club", uuid.New(), []string{"Alex", "Jamie", "Taylor"})
	if err != nil {
		t.Fatalf("creating event: %v", err)
	}
	ids := participantIDs(event)

	// Alex pays 30 USD split equally: Jamie and Taylor each owe 10.
	if _, err := svc.AddExpense(ctx, event.ID, ids[0], "Dinner", decimal.NewFromInt(30), "USD", SplitEqually(ids)); err != nil {
		t.Fatalf("adding expense: %v", err)
	}

	transfers, err := svc.SettlementPlan(ctx, event.ID)
	if err != nil {
		t.Fatalf("planning settlement: %v", err)
	}
	if len(transfers) != 2 {
		t.Fatalf("expected 2 transfers, got %d", len(transfers))
	}

	balances, err := svc.Balances(ctx, event.ID)
	if err != nil {
		t.Fatalf("reading balances: %v", err)
	}
	for _, tr := range transfers {
		if tr.To != ids[0] {
			t.Fatalf("expected all transfers to flow to the payer")
		}
		balances[tr.From] += tr.Amount
		balances[tr.To] -= tr.Amount
	}
	for id, b := range balances {
		if b != 0 {
			t.Fatalf("participant %s left with balance %d after applying plan", id, b)
		}
	}
}

func TestServiceSerializesAppendsPerEvent(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)

	event, err := svc.CreateEvent(ctx, "Road trip", uuid.New(), []string{"Alex", "Jamie", "Taylor", "Jordan"})
	if err != nil {
		t.Fatalf("creating event: %v", err)
	}
	ids := participantIDs(event)

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			payer := ids[i%len(ids)]
			if _, err := svc.AddExpense(ctx, event.ID, payer, "Fuel", decimal.NewFromInt(10), "USD", SplitEqually(ids)); err != nil {
				t.Errorf("adding expense: %v", err)
			}
		}()
	}
	wg.Wait()

	stored, err := repo.GetEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("loading event: %v", err)
	}
	if len(stored.Expenses) != writers {
		t.Fatalf("expected %d expenses, got %d", writers, len(stored.Expenses))
	}

	balances, err := svc.Balances(ctx, event.ID)
	if err != nil {
		t.Fatalf("reading balances: %v", err)
	}
	var sum int64
	for _, b := range balances {
		sum += b
	}
	if sum != 0 {
		t.Fatalf("balances sum to %d after concurrent appends", sum)
	}
}
