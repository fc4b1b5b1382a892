package migrations

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Run creates the blood bank schema. Statements are valid for both SQLite
// and PostgreSQL; dates are stored as YYYY-MM-DD text.
func Run(db *sqlx.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS donors (
            donor_id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            blood_type TEXT NOT NULL,
            last_donation TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS recipients (
            recipient_id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            blood_type TEXT NOT NULL,
            required_units INTEGER NOT NULL,
            request_date TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            fulfilled_at TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS inventory (
            blood_type TEXT NOT NULL,
            donation_date TEXT NOT NULL,
            units INTEGER NOT NULL CHECK (units >= 0),
            PRIMARY KEY (blood_type, donation_date)
        );`,
		`CREATE TABLE IF NOT EXISTS transfusions (
            transfusion_id TEXT PRIMARY KEY,
            recipient_id TEXT NOT NULL,
            donor_blood_type TEXT NOT NULL,
            units INTEGER NOT NULL,
            created_at TEXT NOT NULL,
            FOREIGN KEY(recipient_id) REFERENCES recipients(recipient_id)
        );`,
		`CREATE TABLE IF NOT EXISTS transfusion_items (
            transfusion_id TEXT NOT NULL,
            donation_date TEXT NOT NULL,
            units INTEGER NOT NULL,
            PRIMARY KEY (transfusion_id, donation_date),
            FOREIGN KEY(transfusion_id) REFERENCES transfusions(transfusion_id)
        );`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
