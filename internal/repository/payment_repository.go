package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/club-payments/internal/model"
)

// BackendMySQL names the relational backend in errors and logs.
const BackendMySQL = "mysql"

const (
	tableTickets     = "payment_ticket"
	tableConsumables = "payment_consumable"
	tableCoatCheck   = "payment_coat_check"
)

// Connector supplies a live database handle.  *database.Manager satisfies
// it.
type Connector interface {
	Conn(ctx context.Context) (*sql.DB, error)
}

// PaymentRepo stores payments in four tables: the parent payment row
// (id, total_price) and one child table per line-item kind, each keyed by
// payment_id.  Every write runs in a single transaction and only one
// transaction is in flight at a time.
type PaymentRepo struct {
	conns Connector
	txMu  sync.Mutex
}

// NewPaymentRepo returns a new PaymentRepo using the given connector.
func NewPaymentRepo(conns Connector) *PaymentRepo { return &PaymentRepo{conns: conns} }

// Save inserts the parent row and its children.  The generated id is
// assigned to p after commit when p has none yet.  A payment that already
// carries an id (a resync replay) still gets a fresh row; its own id is left
// untouched.
func (r *PaymentRepo) Save(ctx context.Context, p *model.Payment) error {
	var newID int64
	err := r.inTx(ctx, "save", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO payment (total_price) VALUES (?)`, p.TotalPrice())
		if err != nil {
			return err
		}
		newID, err = res.LastInsertId()
		if err != nil {
			return err
		}
		return insertItemsTx(ctx, tx, newID, p)
	})
	if err != nil {
		return err
	}
	if _, ok := p.ID(); !ok {
		_ = p.AssignID(newID)
	}
	return nil
}

// FindByID loads the parent row then each child table and assembles the
// aggregate in Go.  A parent without children but with a non-zero total was
// replayed from a total-only backend and comes back as a summary.
func (r *PaymentRepo) FindByID(ctx context.Context, id int64) (*model.Payment, error) {
	db, err := r.conns.Conn(ctx)
	if err != nil {
		return nil, storageErr(BackendMySQL, "find", err)
	}
	p, err := findByID(ctx, db, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, storageErr(BackendMySQL, "find", err)
	}
	return p, nil
}

func findByID(ctx context.Context, db *sql.DB, id int64) (*model.Payment, error) {
	var total decimal.Decimal
	err := db.QueryRowContext(ctx, `SELECT total_price FROM payment WHERE id = ?`, id).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	tickets, err := listItems(ctx, db, tableTickets, id, model.KindTicket)
	if err != nil {
		return nil, err
	}
	consumables, err := listItems(ctx, db, tableConsumables, id, model.KindConsumable)
	if err != nil {
		return nil, err
	}
	coats, err := listItems(ctx, db, tableCoatCheck, id, model.KindCoatCheck)
	if err != nil {
		return nil, err
	}
	var coat *model.LineItem
	if len(coats) > 0 {
		coat = &coats[0]
	}
	if len(tickets) == 0 && len(consumables) == 0 && coat == nil && !total.IsZero() {
		return model.NewSummary(id, total), nil
	}
	return model.NewPaymentWithID(id, tickets, consumables, coat), nil
}

func listItems(ctx context.Context, db *sql.DB, table string, paymentID int64, kind model.ItemKind) ([]model.LineItem, error) {
	rows, err := db.QueryContext(ctx, `SELECT description, unit_price FROM `+table+` WHERE payment_id = ? ORDER BY id`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.LineItem
	for rows.Next() {
		var desc string
		var price decimal.Decimal
		if err := rows.Scan(&desc, &price); err != nil {
			return nil, err
		}
		items = append(items, model.LineItem{Kind: kind, Description: desc, UnitPrice: price})
	}
	return items, rows.Err()
}

// FindAll lists parent ids in ascending order and loads each payment.
func (r *PaymentRepo) FindAll(ctx context.Context) ([]*model.Payment, error) {
	db, err := r.conns.Conn(ctx)
	if err != nil {
		return nil, storageErr(BackendMySQL, "find_all", err)
	}
	ids, err := listIDs(ctx, db)
	if err != nil {
		return nil, storageErr(BackendMySQL, "find_all", err)
	}
	out := make([]*model.Payment, 0, len(ids))
	for _, id := range ids {
		p, err := findByID(ctx, db, id)
		if errors.Is(err, ErrNotFound) {
			continue // deleted between the two queries
		}
		if err != nil {
			return nil, storageErr(BackendMySQL, "find_all", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// listIDs drains the id cursor before any per-row query so a single pooled
// connection is enough.
func listIDs(ctx context.Context, db *sql.DB) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT id FROM payment ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Update replaces the total and every child row of an existing payment.
func (r *PaymentRepo) Update(ctx context.Context, p *model.Payment) error {
	id, ok := p.ID()
	if !ok {
		return ErrNotFound
	}
	return r.inTx(ctx, "update", func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM payment WHERE id = ?`, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE payment SET total_price = ? WHERE id = ?`, p.TotalPrice(), id); err != nil {
			return err
		}
		if err := deleteItemsTx(ctx, tx, id); err != nil {
			return err
		}
		return insertItemsTx(ctx, tx, id, p)
	})
}

// Delete removes the children then the parent row.  Absent ids affect no
// rows and are not an error.
func (r *PaymentRepo) Delete(ctx context.Context, id int64) error {
	return r.inTx(ctx, "delete", func(tx *sql.Tx) error {
		if err := deleteItemsTx(ctx, tx, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM payment WHERE id = ?`, id)
		return err
	})
}

// inTx runs fn inside one transaction and rolls back unless it commits.
// ErrNotFound from fn passes through unwrapped; anything else becomes a
// StorageError.
func (r *PaymentRepo) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	db, err := r.conns.Conn(ctx)
	if err != nil {
		return storageErr(BackendMySQL, op, err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(BackendMySQL, op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return storageErr(BackendMySQL, op, err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr(BackendMySQL, op, err)
	}
	return nil
}

func insertItemsTx(ctx context.Context, tx *sql.Tx, paymentID int64, p *model.Payment) error {
	if err := insertBulkTx(ctx, tx, tableTickets, paymentID, p.Tickets()); err != nil {
		return err
	}
	if err := insertBulkTx(ctx, tx, tableConsumables, paymentID, p.Consumables()); err != nil {
		return err
	}
	if cc := p.CoatCheck(); cc != nil {
		_, err := tx.ExecContext(ctx, `INSERT INTO `+tableCoatCheck+` (payment_id, description, unit_price) VALUES (?, ?, ?)`,
			paymentID, cc.Description, cc.UnitPrice)
		return err
	}
	return nil
}

// insertBulkTx writes all items of one kind in a single multi-row INSERT.
// An empty slice is a no-op.
func insertBulkTx(ctx context.Context, tx *sql.Tx, table string, paymentID int64, items []model.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	var q strings.Builder
	q.WriteString(`INSERT INTO ` + table + ` (payment_id, description, unit_price) VALUES `)
	args := make([]interface{}, 0, len(items)*3)
	for i, it := range items {
		if i > 0 {
			q.WriteString(",")
		}
		q.WriteString("(?, ?, ?)")
		args = append(args, paymentID, it.Description, it.UnitPrice)
	}
	_, err := tx.ExecContext(ctx, q.String(), args...)
	return err
}

func deleteItemsTx(ctx context.Context, tx *sql.Tx, paymentID int64) error {
	for _, table := range []string{tableTickets, tableConsumables, tableCoatCheck} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE payment_id = ?`, paymentID); err != nil {
			return err
		}
	}
	return nil
}
