package database

import "database/sql"

// InsertReport records per-run counters.
func (db *DB) InsertReport(periodID string, discovered, acquired, analyzed, failed int) error {
	_, err := db.conn.Exec(
		`INSERT INTO run_reports (period_id, discovered, acquired, analyzed, failed)
		VALUES (?, ?, ?, ?, ?)`,
		periodID, discovered, acquired, analyzed, failed,
	)
	return err
}

// GetLastRunDate returns the period of the most recent run, or "" if none.
func (db *DB) GetLastRunDate() (string, error) {
	var period string
	err := db.conn.QueryRow(
		"SELECT period_id FROM run_reports ORDER BY id DESC LIMIT 1",
	).Scan(&period)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return period, nil
}

// InsertDelivery registers an outgoing message before any bundling or
// sending is attempted, so every later failure mode leaves a retriable
// row behind.
func (db *DB) InsertDelivery(d *Delivery) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO deliveries (period_id, part, parts, bundle_path, artifact_paths, report_text, report_html)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.PeriodID, d.Part, d.Parts, d.BundlePath, d.ArtifactPaths, d.ReportText, d.ReportHTML,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// MarkDeliverySent flags a bundle as successfully handed to the transport.
func (db *DB) MarkDeliverySent(id int64) error {
	_, err := db.conn.Exec(
		"UPDATE deliveries SET sent = 1, last_error = NULL, updated_at = datetime('now') WHERE id = ?", id,
	)
	return err
}

// MarkDeliveryFailed records a transport failure so the bundle can be
// retried on a later run. Record state is never touched here.
func (db *DB) MarkDeliveryFailed(id int64, errMsg string) error {
	_, err := db.conn.Exec(
		"UPDATE deliveries SET last_error = ?, updated_at = datetime('now') WHERE id = ?",
		errMsg, id,
	)
	return err
}

// MarkDeliveryAbandoned retires a delivery that can never succeed, such
// as a lost bundle with no surviving artifacts. Abandoned rows stay as
// an audit trail but are no longer offered for retry.
func (db *DB) MarkDeliveryAbandoned(id int64, reason string) error {
	_, err := db.conn.Exec(
		"UPDATE deliveries SET sent = -1, last_error = ?, updated_at = datetime('now') WHERE id = ?",
		reason, id,
	)
	return err
}

// PendingDeliveries returns messages whose transport send has not
// succeeded and that have not been abandoned.
func (db *DB) PendingDeliveries() ([]Delivery, error) {
	rows, err := db.conn.Query(
		`SELECT id, period_id, part, parts, bundle_path, artifact_paths, report_text, report_html, sent, last_error
		FROM deliveries WHERE sent = 0 ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []Delivery
	for rows.Next() {
		var d Delivery
		var sent int
		if err := rows.Scan(&d.ID, &d.PeriodID, &d.Part, &d.Parts, &d.BundlePath,
			&d.ArtifactPaths, &d.ReportText, &d.ReportHTML, &sent, &d.LastError); err != nil {
			return nil, err
		}
		d.Sent = sent != 0
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}
