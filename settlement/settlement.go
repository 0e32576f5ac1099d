package settlement

import (
	"container/heap"
	"errors"

	"github.com/google/uuid"
)

// Transfer is a recommended payment that moves Amount canonical micro-units
// from one participant to another. Transfers are derived from balances and
// recomputed whenever the ledger changes; they are never persisted as ledger
// truth.
type Transfer struct {
	From   uuid.UUID `json:"from"`
	To     uuid.UUID `json:"to"`
	Amount int64     `json:"amount"`
}

// ErrUnbalancedInput reports balances that do not sum to zero. The balance
// calculator guarantees a zero sum, so hitting this means ledger corruption
// upstream; it is fatal and never retried.
var ErrUnbalancedInput = errors.New("balances do not sum to zero")

// party is one side of a debt: amount is the absolute value of the
// participant's balance.
type party struct {
	id     uuid.UUID
	amount int64
}

// partyHeap is a max-heap on amount. Equal amounts order by ascending
// participant id so plans are deterministic and testable.
type partyHeap []party

func (h partyHeap) Len() int { return len(h) }

func (h partyHeap) Less(i, j int) bool {
	if h[i].amount != h[j].amount {
		return h[i].amount > h[j].amount
	}
	return h[i].id.String() < h[j].id.String()
}

func (h partyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *partyHeap) Push(x any) { *h = append(*h, x.(party)) }

func (h *partyHeap) Pop() any {
	old := *h
	n := len(old)
	p := old[n-1]
	*h = old[:n-1]
	return p
}

// Plan reduces a set of zero-sum balances to a list of transfers that, once
// all applied, bring every balance to exactly zero.
//
// It greedily matches the largest creditor with the largest debtor; every
// transfer zeroes at least one of the pair, so a plan never has more than
// N-1 transfers for N participants with a non-zero balance. An exact minimum
// would require solving a subset-matching problem; the greedy plan is the
// standard practical answer and optimal when no exact subset cancellation
// exists.
func Plan(balances map[uuid.UUID]int64) ([]Transfer, error) {
	var (
		sum       int64
		creditors partyHeap
		debtors   partyHeap
	)
	for id, balance := range balances {
		sum += balance
		switch {
		case balance > 0:
			creditors = append(creditors, party{id: id, amount: balance})
		case balance < 0:
			debtors = append(debtors, party{id: id, amount: -balance})
		}
	}
	if sum != 0 {
		return nil, ErrUnbalancedInput
	}

	heap.Init(&creditors)
	heap.Init(&debtors)

	transfers := make([]Transfer, 0, len(creditors)+len(debtors))
	for creditors.Len() > 0 && debtors.Len() > 0 {
		c := heap.Pop(&creditors).(party)
		d := heap.Pop(&debtors).(party)

		amount := min(c.amount, d.amount)
		transfers = append(transfers, Transfer{From: d.id, To: c.id, Amount: amount})

		if c.amount -= amount; c.amount > 0 {
			heap.Push(&creditors, c)
		}
		if d.amount -= amount; d.amount > 0 {
			heap.Push(&debtors, d)
		}
	}

	// Creditors and debtors exhaust together because the sum is zero.
	return transfers, nil
}
