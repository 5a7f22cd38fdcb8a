package migrations

import (
	"database/sql"
)

func migration002BuildOutputs() Migration {
	return Migration{
		Version:     2,
		Description: "Add build_outputs table for attached artifacts",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE build_outputs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					build_id TEXT NOT NULL,
					kind TEXT NOT NULL,
					classifier TEXT DEFAULT '',
					path TEXT NOT NULL,
					storage_key TEXT DEFAULT '',
					checksum TEXT DEFAULT '',
					size_bytes INTEGER DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (build_id) REFERENCES builds(id) ON DELETE CASCADE
				)
			`)
			if err != nil {
				return err
			}

			_, err = tx.Exec(`CREATE INDEX idx_build_outputs_build ON build_outputs(build_id)`)
			return err
		},
	}
}
