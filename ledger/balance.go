package ledger

import (
	"errors"

	"github.com/google/uuid"
)

// ErrUnbalancedLedger means the event's expenses no longer sum to zero.
// Every accepted expense is zero-sum (credit equals the sum of debits), so
// this can only happen if stored data was corrupted. It is fatal and must
// never be silently corrected.
var ErrUnbalancedLedger = errors.New("ledger balances do not sum to zero")

// Balances folds the event's expense log into a net balance per participant:
// each expense credits the payer with its total and debits every split
// participant with their owed share. Positive means the participant is owed
// money, negative means they owe.
//
// The fold is pure: recomputing over an unchanged ledger yields identical
// results.
func Balances(event *Event) (map[uuid.UUID]int64, error) {
	balances := make(map[uuid.UUID]int64, len(event.Participants))

	for _, p := range event.Participants {
		balances[p.ID] = 0
	}

	for _, expense := range event.Expenses {
		balances[expense.PaidBy] += expense.Amount
		for _, split := range expense.Splits {
			balances[split.ParticipantID] -= split.Amount
		}
	}

	var sum int64
	for _, balance := range balances {
		sum += balance
	}
	if sum != 0 {
		return nil, ErrUnbalancedLedger
	}

	return balances, nil
}
