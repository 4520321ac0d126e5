package database

import (
	"database/sql"
	"fmt"
)

const recordColumns = `fingerprint, status, retry_count, external_id, url, display_title,
	translated_title, content, content_kind, artifact_path, analysis, failure_reason,
	created_at, updated_at`

// UpsertNew inserts a record for a fingerprint if none exists. Returns true
// if a record was created, false if the fingerprint was already known.
// This is the only duplicate-suppression point in the system.
func (db *DB) UpsertNew(fingerprint string, externalID, url, displayTitle *string) (bool, error) {
	result, err := db.conn.Exec(
		`INSERT OR IGNORE INTO records (fingerprint, status, external_id, url, display_title)
		VALUES (?, ?, ?, ?, ?)`,
		fingerprint, StatusNew, externalID, url, displayTitle,
	)
	if err != nil {
		return false, fmt.Errorf("inserting record: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetRecord returns a single record, or nil if the fingerprint is unknown.
func (db *DB) GetRecord(fingerprint string) (*Record, error) {
	row := db.conn.QueryRow(
		`SELECT `+recordColumns+` FROM records WHERE fingerprint = ?`, fingerprint,
	)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// SelectForAcquisition returns up to limit records eligible for an
// acquisition attempt, in insertion order. The retry cap gates both fresh
// and previously failed records so a permanently broken source cannot
// consume unbounded work.
func (db *DB) SelectForAcquisition(limit, maxRetries int) ([]Record, error) {
	rows, err := db.conn.Query(
		`SELECT `+recordColumns+` FROM records
		WHERE status IN (?, ?) AND retry_count < ?
		ORDER BY rowid ASC LIMIT ?`,
		StatusNew, StatusDownloadFailed, maxRetries, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// SelectForAnalysis returns up to limit acquired-but-unanalyzed records, in
// insertion order. Abstract-only records are eligible: degraded success is
// still success.
func (db *DB) SelectForAnalysis(limit, maxRetries int) ([]Record, error) {
	rows, err := db.conn.Query(
		`SELECT `+recordColumns+` FROM records
		WHERE status IN (?, ?) OR (status = ? AND retry_count < ?)
		ORDER BY rowid ASC LIMIT ?`,
		StatusDownloaded, StatusAbstractOnly, StatusAnalysisFailed, maxRetries, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// FailedRecords returns records that exhausted their retry budget, the
// permanent "could not process" audit list.
func (db *DB) FailedRecords(maxRetries int) ([]Record, error) {
	rows, err := db.conn.Query(
		`SELECT `+recordColumns+` FROM records
		WHERE status IN (?, ?) AND retry_count >= ?
		ORDER BY rowid ASC`,
		StatusDownloadFailed, StatusAnalysisFailed, maxRetries,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// SetAcquired records a successful acquisition. status must be DOWNLOADED
// or ABSTRACT_ONLY; the extracted text and any materialized artifact are
// stored alongside.
func (db *DB) SetAcquired(fingerprint string, status Status, kind, content string, artifactPath *string) error {
	if status != StatusDownloaded && status != StatusAbstractOnly {
		return fmt.Errorf("SetAcquired called with status %s", status)
	}
	return db.transition(fingerprint, status, func() error {
		_, err := db.conn.Exec(
			`UPDATE records SET status = ?, content_kind = ?, content = ?, artifact_path = ?,
			failure_reason = NULL, updated_at = datetime('now') WHERE fingerprint = ?`,
			status, kind, content, artifactPath, fingerprint,
		)
		return err
	})
}

// MarkDownloadFailed records an exhausted acquisition attempt: every
// strategy failed, the retry counter advances.
func (db *DB) MarkDownloadFailed(fingerprint, reason string) error {
	return db.transition(fingerprint, StatusDownloadFailed, func() error {
		_, err := db.conn.Exec(
			`UPDATE records SET status = ?, retry_count = retry_count + 1,
			failure_reason = ?, updated_at = datetime('now') WHERE fingerprint = ?`,
			StatusDownloadFailed, reason, fingerprint,
		)
		return err
	})
}

// BumpRetry advances the retry counter without changing status. Used for
// transient signals (rate limiting) that end an attempt early: the record
// stays where it is and is re-offered on a later run.
func (db *DB) BumpRetry(fingerprint, reason string) error {
	_, err := db.conn.Exec(
		`UPDATE records SET retry_count = retry_count + 1, failure_reason = ?,
		updated_at = datetime('now') WHERE fingerprint = ?`,
		reason, fingerprint,
	)
	return err
}

// SetAnalyzed stores the analysis text and moves the record to its terminal
// success state.
func (db *DB) SetAnalyzed(fingerprint, analysis string) error {
	return db.transition(fingerprint, StatusAnalyzed, func() error {
		_, err := db.conn.Exec(
			`UPDATE records SET status = ?, analysis = ?, failure_reason = NULL,
			updated_at = datetime('now') WHERE fingerprint = ?`,
			StatusAnalyzed, analysis, fingerprint,
		)
		return err
	})
}

// MarkAnalysisFailed records a failed analysis attempt.
func (db *DB) MarkAnalysisFailed(fingerprint, reason string) error {
	return db.transition(fingerprint, StatusAnalysisFailed, func() error {
		_, err := db.conn.Exec(
			`UPDATE records SET status = ?, retry_count = retry_count + 1,
			failure_reason = ?, updated_at = datetime('now') WHERE fingerprint = ?`,
			StatusAnalysisFailed, reason, fingerprint,
		)
		return err
	})
}

// SetURL fills in a lazily resolved document URL (open-access resolution).
func (db *DB) SetURL(fingerprint, url string) error {
	_, err := db.conn.Exec(
		`UPDATE records SET url = ?, updated_at = datetime('now') WHERE fingerprint = ?`,
		url, fingerprint,
	)
	return err
}

// SetTranslatedTitle stores a best-effort title translation. Never gates
// progression; callers ignore failures.
func (db *DB) SetTranslatedTitle(fingerprint, title string) error {
	_, err := db.conn.Exec(
		`UPDATE records SET translated_title = ?, updated_at = datetime('now') WHERE fingerprint = ?`,
		title, fingerprint,
	)
	return err
}

// transition validates the status move against the transition table before
// applying the mutation. Illegal moves are refused, not silently applied.
func (db *DB) transition(fingerprint string, to Status, apply func() error) error {
	var current Status
	err := db.conn.QueryRow(
		"SELECT status FROM records WHERE fingerprint = ?", fingerprint,
	).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("no record for fingerprint %s", fingerprint)
	}
	if err != nil {
		return err
	}
	if err := checkTransition(current, to); err != nil {
		return fmt.Errorf("record %s: %w", fingerprint, err)
	}
	return apply()
}

// GetStats returns aggregate counts for the status command.
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}

	rows, err := db.conn.Query("SELECT status, COUNT(*) FROM records GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.TotalRecords += count
		switch status {
		case StatusNew:
			stats.Pending += count
		case StatusDownloaded:
			stats.Downloaded += count
		case StatusAbstractOnly:
			stats.AbstractOnly += count
		case StatusAnalyzed:
			stats.Analyzed += count
		case StatusDownloadFailed:
			stats.DownloadFailed += count
		case StatusAnalysisFailed:
			stats.AnalysisFailed += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM deliveries WHERE sent = 0",
	).Scan(&stats.PendingDelivery); err != nil {
		return nil, err
	}

	return stats, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Fingerprint, &r.Status, &r.RetryCount, &r.ExternalID,
			&r.URL, &r.DisplayTitle, &r.TranslatedTitle, &r.Content, &r.ContentKind,
			&r.ArtifactPath, &r.Analysis, &r.FailureReason, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func scanRecord(row *sql.Row) (*Record, error) {
	var r Record
	if err := row.Scan(&r.Fingerprint, &r.Status, &r.RetryCount, &r.ExternalID,
		&r.URL, &r.DisplayTitle, &r.TranslatedTitle, &r.Content, &r.ContentKind,
		&r.ArtifactPath, &r.Analysis, &r.FailureReason, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}
