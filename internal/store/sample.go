package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Sample is a labeled feature vector recorded for training.
type Sample struct {
	ID        int64     `json:"id"`
	Label     string    `json:"label"`
	Features  []float64 `json:"features"`
	CreatedAt time.Time `json:"created_at"`
}

// SampleRepository stores training samples.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Create inserts feature vectors for a label in a single transaction.
func (r *SampleRepository) Create(label string, features [][]float64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO samples (label, features, created_at) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for i, f := range features {
		data, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("encode sample %d: %w", i, err)
		}
		if _, err := stmt.Exec(label, string(data), now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// List returns every sample ordered by insertion.
func (r *SampleRepository) List() ([]Sample, error) {
	return r.query(`SELECT id, label, features, created_at FROM samples ORDER BY id`)
}

// ListByLabel returns the samples recorded for a label.
func (r *SampleRepository) ListByLabel(label string) ([]Sample, error) {
	return r.query(`SELECT id, label, features, created_at FROM samples WHERE label = ? ORDER BY id`, label)
}

func (r *SampleRepository) query(q string, args ...any) ([]Sample, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var data string
		if err := rows.Scan(&s.ID, &s.Label, &data, &s.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &s.Features); err != nil {
			return nil, fmt.Errorf("decode sample %d: %w", s.ID, err)
		}
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return samples, nil
}

// Labels returns the number of samples per label.
func (r *SampleRepository) Labels() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT label, COUNT(*) FROM samples GROUP BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[label] = n
	}

	return counts, rows.Err()
}

// DeleteByLabel removes all samples for a label and returns how many were removed.
func (r *SampleRepository) DeleteByLabel(label string) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM samples WHERE label = ?`, label)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
