package ledger

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *repository {
	return &repository{db: db}
}

func (r *repository) CreateEvent(ctx context.Context, event Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insertEvent := `INSERT INTO events (id, name, created_by, created_at) VALUES ($1, $2, $3, $4)`
	_, err = tx.ExecContext(ctx, insertEvent, event.ID, event.Name, event.CreatedBy, event.CreatedAt)
	if err != nil {
		return err
	}

	insertParticipant := `INSERT INTO event_participants (id, event_id, name, joined_at) VALUES ($1, $2, $3, $4)`
	for _, p := range event.Participants {
		_, err = tx.ExecContext(ctx, insertParticipant, p.ID, p.EventID, p.Name, p.JoinedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *repository) AddParticipant(ctx context.Context, participant Participant) error {
	query := `INSERT INTO event_participants (id, event_id, name, joined_at) VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, participant.ID, participant.EventID, participant.Name, participant.JoinedAt)
	return err
}

func (r *repository) SaveExpense(ctx context.Context, expense Expense) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO expenses (id, event_id, description, amount, original_currency, original_amount, paid_by, split_kind, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = tx.ExecContext(
		ctx,
		query,
		expense.ID,
		expense.EventID,
		expense.Description,
		expense.Amount,
		expense.OriginalCurrency,
		expense.OriginalAmount,
		expense.PaidBy,
		expense.SplitKind,
		expense.CreatedAt,
	)
	if err != nil {
		return err
	}

	for i, split := range expense.Splits {
		query = `INSERT INTO expense_splits (expense_id, participant_id, ordinal, amount) VALUES ($1, $2, $3, $4)`
		_, err = tx.ExecContext(ctx, query, split.ExpenseID, split.ParticipantID, i, split.Amount)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetEvent loads the event with participants and expenses (splits included)
// in their recorded order. Returns (nil, nil) when the event doesn't exist.
func (r *repository) GetEvent(ctx context.Context, eventID uuid.UUID) (*Event, error) {
	query := `SELECT id, name, created_by, created_at FROM events WHERE id = $1`

	var event Event
	err := r.db.QueryRowContext(ctx, query, eventID).Scan(
		&event.ID,
		&event.Name,
		&event.CreatedBy,
		&event.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	event.Participants, err = r.getParticipants(ctx, eventID)
	if err != nil {
		return nil, err
	}
	event.Expenses, err = r.getExpenses(ctx, eventID)
	if err != nil {
		return nil, err
	}

	return &event, nil
}

func (r *repository) getParticipants(ctx context.Context, eventID uuid.UUID) ([]Participant, error) {
	query := `SELECT id, event_id, name, joined_at FROM event_participants WHERE event_id = $1 ORDER BY joined_at, id`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []Participant
	for rows.Next() {
		var p Participant
		err := rows.Scan(&p.ID, &p.EventID, &p.Name, &p.JoinedAt)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}

	return participants, rows.Err()
}

func (r *repository) getExpenses(ctx context.Context, eventID uuid.UUID) ([]Expense, error) {
	query := `SELECT id, event_id, description, amount, original_currency, original_amount, paid_by, split_kind, created_at
              FROM expenses
              WHERE event_id = $1
              ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []Expense
	for rows.Next() {
		var expense Expense
		err := rows.Scan(
			&expense.ID,
			&expense.EventID,
			&expense.Description,
			&expense.Amount,
			&expense.OriginalCurrency,
			&expense.OriginalAmount,
			&expense.PaidBy,
			&expense.SplitKind,
			&expense.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	splits, err := r.getSplits(ctx, eventID)
	if err != nil {
		return nil, err
	}
	for i := range expenses {
		expenses[i].Splits = splits[expenses[i].ID]
	}

	return expenses, nil
}

func (r *repository) getSplits(ctx context.Context, eventID uuid.UUID) (map[uuid.UUID][]Split, error) {
	query := `SELECT es.expense_id, es.participant_id, es.amount
              FROM expense_splits es
              INNER JOIN expenses e ON es.expense_id = e.id
              WHERE e.event_id = $1
              ORDER BY es.expense_id, es.ordinal`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	splits := make(map[uuid.UUID][]Split)
	for rows.Next() {
		var split Split
		err := rows.Scan(&split.ExpenseID, &split.ParticipantID, &split.Amount)
		if err != nil {
			return nil, err
		}
		splits[split.ExpenseID] = append(splits[split.ExpenseID], split)
	}

	return splits, rows.Err()
}
