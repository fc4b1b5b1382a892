package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"bloodbank/m/domain"
)

// SQLStore implements Store on top of sqlx. Queries are written with '?'
// placeholders and rebound for the active driver.
type SQLStore struct {
	sqlConn
	db *sqlx.DB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{sqlConn: sqlConn{ext: db}, db: db}
}

func (s *SQLStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlConn{ext: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// sqlConn runs statements against either the pool or an open transaction.
type sqlConn struct {
	ext sqlx.ExtContext
}

func (c *sqlConn) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.ext.ExecContext(ctx, c.ext.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *sqlConn) get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, c.ext, dest, c.ext.Rebind(query), args...)
}

func (c *sqlConn) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, c.ext, dest, c.ext.Rebind(query), args...)
}

// Inventory

func (c *sqlConn) UpsertBatch(ctx context.Context, bt domain.BloodType, date string, delta int64) error {
	_, err := c.exec(ctx, `INSERT INTO inventory (blood_type, donation_date, units) VALUES (?, ?, ?)
                ON CONFLICT (blood_type, donation_date) DO UPDATE SET units = inventory.units + excluded.units`,
		bt, date, delta)
	if err != nil {
		return fmt.Errorf("upsert batch %s/%s: %w", bt, date, err)
	}
	return nil
}

func (c *sqlConn) RemoveBatch(ctx context.Context, bt domain.BloodType, date string) error {
	n, err := c.exec(ctx, `DELETE FROM inventory WHERE blood_type = ? AND donation_date = ?`, bt, date)
	if err != nil {
		return fmt.Errorf("remove batch %s/%s: %w", bt, date, err)
	}
	if n == 0 {
		return fmt.Errorf("batch %s/%s: %w", bt, date, domain.ErrNotFound)
	}
	return nil
}

func (c *sqlConn) SetBatchUnits(ctx context.Context, bt domain.BloodType, date string, units int64) error {
	n, err := c.exec(ctx, `UPDATE inventory SET units = ? WHERE blood_type = ? AND donation_date = ?`, units, bt, date)
	if err != nil {
		return fmt.Errorf("update batch %s/%s: %w", bt, date, err)
	}
	if n == 0 {
		return fmt.Errorf("batch %s/%s: %w", bt, date, domain.ErrNotFound)
	}
	return nil
}

func (c *sqlConn) DeductBatch(ctx context.Context, bt domain.BloodType, date string, units int64) error {
	n, err := c.exec(ctx, `UPDATE inventory SET units = units - ?
                WHERE blood_type = ? AND donation_date = ? AND units >= ?`, units, bt, date, units)
	if err != nil {
		return fmt.Errorf("deduct batch %s/%s: %w", bt, date, err)
	}
	if n == 0 {
		return fmt.Errorf("batch %s/%s: %w", bt, date, domain.ErrInsufficientStock)
	}
	if _, err := c.exec(ctx, `DELETE FROM inventory WHERE blood_type = ? AND donation_date = ? AND units = 0`, bt, date); err != nil {
		return fmt.Errorf("drop empty batch %s/%s: %w", bt, date, err)
	}
	return nil
}

func (c *sqlConn) ListBatches(ctx context.Context, bt domain.BloodType) ([]domain.InventoryBatch, error) {
	var batches []domain.InventoryBatch
	if err := c.selectAll(ctx, &batches, `SELECT blood_type, donation_date, units FROM inventory WHERE blood_type = ?`, bt); err != nil {
		return nil, fmt.Errorf("list batches %s: %w", bt, err)
	}
	return batches, nil
}

func (c *sqlConn) ListAllBatches(ctx context.Context) ([]domain.InventoryBatch, error) {
	var batches []domain.InventoryBatch
	if err := c.selectAll(ctx, &batches, `SELECT blood_type, donation_date, units FROM inventory ORDER BY blood_type, donation_date`); err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return batches, nil
}

// Donors

func (c *sqlConn) CreateDonor(ctx context.Context, donor domain.Donor) error {
	n, err := c.exec(ctx, `INSERT INTO donors (donor_id, name, blood_type, last_donation) VALUES (?, ?, ?, ?)
                ON CONFLICT (donor_id) DO NOTHING`,
		donor.ID, donor.Name, donor.BloodType, donor.LastDonation)
	if err != nil {
		return fmt.Errorf("insert donor %s: %w", donor.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("donor %s: %w", donor.ID, domain.ErrConflict)
	}
	return nil
}

func (c *sqlConn) GetDonor(ctx context.Context, id string) (domain.Donor, error) {
	var donor domain.Donor
	err := c.get(ctx, &donor, `SELECT donor_id, name, blood_type, last_donation FROM donors WHERE donor_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return donor, fmt.Errorf("donor %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return donor, fmt.Errorf("get donor %s: %w", id, err)
	}
	return donor, nil
}

func (c *sqlConn) SetLastDonation(ctx context.Context, donorID, date string) error {
	n, err := c.exec(ctx, `UPDATE donors SET last_donation = ? WHERE donor_id = ?`, date, donorID)
	if err != nil {
		return fmt.Errorf("update donor %s: %w", donorID, err)
	}
	if n == 0 {
		return fmt.Errorf("donor %s: %w", donorID, domain.ErrNotFound)
	}
	return nil
}

// Recipients

func (c *sqlConn) CreateRecipient(ctx context.Context, r domain.Recipient) error {
	if r.Status == "" {
		r.Status = domain.RecipientPending
	}
	n, err := c.exec(ctx, `INSERT INTO recipients (recipient_id, name, blood_type, required_units, request_date, status) VALUES (?, ?, ?, ?, ?, ?)
                ON CONFLICT (recipient_id) DO NOTHING`,
		r.ID, r.Name, r.BloodType, r.RequiredUnits, r.RequestDate, r.Status)
	if err != nil {
		return fmt.Errorf("insert recipient %s: %w", r.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("recipient %s: %w", r.ID, domain.ErrConflict)
	}
	return nil
}

const recipientColumns = `recipient_id, name, blood_type, required_units, request_date, status, fulfilled_at`

func (c *sqlConn) GetRecipient(ctx context.Context, id string) (domain.Recipient, error) {
	var r domain.Recipient
	err := c.get(ctx, &r, `SELECT `+recipientColumns+` FROM recipients WHERE recipient_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("recipient %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return r, fmt.Errorf("get recipient %s: %w", id, err)
	}
	return r, nil
}

func (c *sqlConn) ListRecipients(ctx context.Context) ([]domain.Recipient, error) {
	recipients := []domain.Recipient{}
	if err := c.selectAll(ctx, &recipients, `SELECT `+recipientColumns+` FROM recipients ORDER BY request_date, recipient_id`); err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	return recipients, nil
}

func (c *sqlConn) MarkFulfilled(ctx context.Context, recipientID, at string) error {
	n, err := c.exec(ctx, `UPDATE recipients SET status = ?, fulfilled_at = ? WHERE recipient_id = ? AND status = ?`,
		domain.RecipientFulfilled, at, recipientID, domain.RecipientPending)
	if err != nil {
		return fmt.Errorf("fulfil recipient %s: %w", recipientID, err)
	}
	if n == 0 {
		return fmt.Errorf("recipient %s: %w", recipientID, domain.ErrAlreadyFulfilled)
	}
	return nil
}

// Transfusions

func (c *sqlConn) CreateTransfusion(ctx context.Context, t domain.Transfusion) error {
	if _, err := c.exec(ctx, `INSERT INTO transfusions (transfusion_id, recipient_id, donor_blood_type, units, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.RecipientID, t.DonorBloodType, t.Units, t.CreatedAt); err != nil {
		return fmt.Errorf("insert transfusion %s: %w", t.ID, err)
	}
	for _, item := range t.Items {
		if _, err := c.exec(ctx, `INSERT INTO transfusion_items (transfusion_id, donation_date, units) VALUES (?, ?, ?)`,
			t.ID, item.DonationDate, item.Units); err != nil {
			return fmt.Errorf("insert transfusion item %s/%s: %w", t.ID, item.DonationDate, err)
		}
	}
	return nil
}

type transfusionItemRow struct {
	TransfusionID string `db:"transfusion_id"`
	DonationDate  string `db:"donation_date"`
	Units         int64  `db:"units"`
}

func (c *sqlConn) ListTransfusions(ctx context.Context, recipientID string) ([]domain.Transfusion, error) {
	transfusions := []domain.Transfusion{}
	if err := c.selectAll(ctx, &transfusions, `SELECT transfusion_id, recipient_id, donor_blood_type, units, created_at
                FROM transfusions WHERE recipient_id = ? ORDER BY created_at`, recipientID); err != nil {
		return nil, fmt.Errorf("list transfusions for %s: %w", recipientID, err)
	}
	if len(transfusions) == 0 {
		return transfusions, nil
	}

	ids := make([]string, len(transfusions))
	for i, t := range transfusions {
		ids[i] = t.ID
	}
	query, args, err := sqlx.In(`SELECT transfusion_id, donation_date, units FROM transfusion_items
                WHERE transfusion_id IN (?) ORDER BY donation_date`, ids)
	if err != nil {
		return nil, fmt.Errorf("prepare transfusion items query: %w", err)
	}
	var rows []transfusionItemRow
	if err := c.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("load transfusion items: %w", err)
	}
	itemsByID := make(map[string][]domain.Allocation)
	for _, row := range rows {
		itemsByID[row.TransfusionID] = append(itemsByID[row.TransfusionID], domain.Allocation{DonationDate: row.DonationDate, Units: row.Units})
	}
	for i := range transfusions {
		transfusions[i].Items = itemsByID[transfusions[i].ID]
	}
	return transfusions, nil
}
