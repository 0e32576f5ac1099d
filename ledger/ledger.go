package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SplitKind string

const (
	SplitKindEqual  SplitKind = "equal"
	SplitKindCustom SplitKind = "custom"
)

// Event is a group occasion (a trip, a dinner, a shared household) whose
// participants log expenses against it. The expense list is an append-only
// ledger: recorded expenses are never edited or deleted, corrections are new
// compensating expenses recorded on top.
type Event struct {
	ID           uuid.UUID     `json:"id"`
	Name         string        `json:"name"`
	CreatedBy    uuid.UUID     `json:"created_by"`
	CreatedAt    time.Time     `json:"created_at"`
	Participants []Participant `json:"participants,omitempty"`
	Expenses     []Expense     `json:"expenses,omitempty"`
}

// Participant is a member of an event. Immutable once referenced by an
// expense.
type Participant struct {
	ID       uuid.UUID `json:"id"`
	EventID  uuid.UUID `json:"event_id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}

// Expense is one recorded cost. Amount is in canonical micro-units; the
// original currency and amount are kept only so the UI can display what was
// actually typed in.
type Expense struct {
	ID               uuid.UUID       `json:"id"`
	EventID          uuid.UUID       `json:"event_id"`
	Description      string          `json:"description"`
	Amount           int64           `json:"amount"`
	OriginalCurrency string          `json:"original_currency"`
	OriginalAmount   decimal.Decimal `json:"original_amount"`
	PaidBy           uuid.UUID       `json:"paid_by"`
	SplitKind        SplitKind       `json:"split_kind"`
	CreatedAt        time.Time       `json:"created_at"`
	Splits           []Split         `json:"splits"`
}

// Split assigns a portion of an expense's cost to a participant. Split
// amounts always sum to the expense amount exactly; that is enforced before
// an expense is accepted, never patched up afterwards.
type Split struct {
	ExpenseID     uuid.UUID `json:"expense_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	Amount        int64     `json:"amount"`
}

// Share is a caller-supplied custom split amount in canonical micro-units.
type Share struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	Amount        int64     `json:"amount"`
}

// SplitMode says how an expense divides among participants: equally, with
// the system distributing any smallest-unit remainder, or with exact
// caller-supplied amounts.
type SplitMode struct {
	kind   SplitKind
	among  []uuid.UUID
	shares []Share
}

// SplitEqually divides the total among the given participants in order; when
// the total is not divisible, the first (total mod n) participants carry one
// extra micro-unit each so the sum matches exactly.
func SplitEqually(among []uuid.UUID) SplitMode {
	return SplitMode{kind: SplitKindEqual, among: among}
}

// SplitExactly uses the caller's per-participant amounts as-is. The amounts
// must sum to the expense total; a mismatch rejects the expense.
func SplitExactly(shares []Share) SplitMode {
	return SplitMode{kind: SplitKindCustom, shares: shares}
}

func (m SplitMode) Kind() SplitKind { return m.kind }

func (m SplitMode) participantIDs() []uuid.UUID {
	if m.kind == SplitKindEqual {
		return m.among
	}
	ids := make([]uuid.UUID, 0, len(m.shares))
	for _, share := range m.shares {
		ids = append(ids, share.ParticipantID)
	}
	return ids
}

var (
	ErrEmptyName                 = errors.New("name can't be empty")
	ErrEmptyDescription          = errors.New("description can't be empty")
	ErrInvalidAmount             = errors.New("amount must be positive")
	ErrNoSplitParticipants       = errors.New("no participants to split expense")
	ErrEventNotFound             = errors.New("event not found")
	ErrUnknownParticipant        = errors.New("participant does not belong to event")
	ErrDuplicateSplitParticipant = errors.New("participant appears more than once in splits")
	ErrNegativeSplitAmount       = errors.New("split amount can't be negative")
)

// SplitSumMismatchError reports a custom split whose amounts don't add up to
// the expense total. Both values are carried so the caller can correct the
// request; the ledger never rescales silently.
type SplitSumMismatchError struct {
	Expected int64
	Actual   int64
}

func (e *SplitSumMismatchError) Error() string {
	return fmt.Sprintf("split amounts sum to %d, expense total is %d", e.Actual, e.Expected)
}

func NewEvent(name string, createdBy uuid.UUID) (Event, error) {
	if name == "" {
		return Event{}, ErrEmptyName
	}

	return Event{
		ID:        uuid.New(),
		Name:      name,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func NewParticipant(eventID uuid.UUID, name string) (Participant, error) {
	if name == "" {
		return Participant{}, ErrEmptyName
	}

	return Participant{
		ID:       uuid.New(),
		EventID:  eventID,
		Name:     name,
		JoinedAt: time.Now().UTC(),
	}, nil
}

// HasParticipant reports whether the given id belongs to the event.
func (e *Event) HasParticipant(id uuid.UUID) bool {
	for _, p := range e.Participants {
		if p.ID == id {
			return true
		}
	}
	return false
}

// NewExpense validates and builds an expense against the event's membership.
// amount is the already-normalized total in canonical micro-units;
// originalCurrency and originalAmount record what the caller entered.
func NewExpense(event *Event, description string, amount int64, paidBy uuid.UUID, originalCurrency string, originalAmount decimal.Decimal, mode SplitMode) (*Expense, error) {
	if description == "" {
		return nil, ErrEmptyDescription
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	members := mode.participantIDs()
	if len(members) == 0 {
		return nil, ErrNoSplitParticipants
	}

	if !event.HasParticipant(paidBy) {
		return nil, ErrUnknownParticipant
	}
	for _, id := range members {
		if !event.HasParticipant(id) {
			return nil, ErrUnknownParticipant
		}
	}

	seen := make(map[uuid.UUID]struct{}, len(members))
	for _, id := range members {
		if _, dup := seen[id]; dup {
			return nil, ErrDuplicateSplitParticipant
		}
		seen[id] = struct{}{}
	}

	if mode.kind == SplitKindCustom {
		var sum int64
		for _, share := range mode.shares {
			sum += share.Amount
		}
		if sum != amount {
			return nil, &SplitSumMismatchError{Expected: amount, Actual: sum}
		}
		for _, share := range mode.shares {
			if share.Amount < 0 {
				return nil, ErrNegativeSplitAmount
			}
		}
	}

	expense := &Expense{
		ID:               uuid.New(),
		EventID:          event.ID,
		Description:      description,
		Amount:           amount,
		OriginalCurrency: originalCurrency,
		OriginalAmount:   originalAmount,
		PaidBy:           paidBy,
		SplitKind:        mode.kind,
		CreatedAt:        time.Now().UTC(),
	}
	expense.Splits = calculateSplits(expense.ID, amount, mode)

	return expense, nil
}

func calculateSplits(expenseID uuid.UUID, amount int64, mode SplitMode) []Split {
	if mode.kind == SplitKindCustom {
		splits := make([]Split, 0, len(mode.shares))
		for _, share := range mode.shares {
			splits = append(splits, Split{
				ExpenseID:     expenseID,
				ParticipantID: share.ParticipantID,
				Amount:        share.Amount,
			})
		}
		return splits
	}

	numMembers := int64(len(mode.among))
	baseAmount := amount / numMembers
	remainder := amount % numMembers

	splits := make([]Split, 0, numMembers)
	for i, participantID := range mode.among {
		share := baseAmount
		// Distribute the leftover micro-units to the first few members
		if int64(i) < remainder {
			share++
		}
		splits = append(splits, Split{
			ExpenseID:     expenseID,
			ParticipantID: participantID,
			Amount:        share,
		})
	}
	return splits
}
