package storage

import (
	"context"
	"database/sql"
	"fmt"
)

type enrollmentRepository struct {
	db *sql.DB
}

func (r *enrollmentRepository) Upsert(ctx context.Context, enrollment *Enrollment) error {
	if enrollment == nil {
		return fmt.Errorf("upsert enrollment: enrollment is nil")
	}
	if enrollment.Modality == "" {
		return fmt.Errorf("upsert enrollment: modality is required")
	}

	enrollment.ID = ensureID(enrollment.ID)
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = nowUTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO enrollments(id, user_id, sensor_id, modality, enrolled_at)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(user_id, sensor_id) DO UPDATE SET
			modality = excluded.modality,
			enrolled_at = excluded.enrolled_at
	`, enrollment.ID, enrollment.UserID, enrollment.SensorID, enrollment.Modality, fmtTime(enrollment.EnrolledAt))
	if err != nil {
		return fmt.Errorf("upsert enrollment: %w", err)
	}
	return nil
}

func (r *enrollmentRepository) Exists(ctx context.Context, userID, sensorID int32) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM enrollments WHERE user_id = ? AND sensor_id = ?
	`, userID, sensorID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("enrollment exists: %w", err)
	}
	return true, nil
}

func (r *enrollmentRepository) ListForUser(ctx context.Context, userID int32) ([]Enrollment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, sensor_id, modality, enrolled_at
		FROM enrollments
		WHERE user_id = ?
		ORDER BY sensor_id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	enrollments := []Enrollment{}
	for rows.Next() {
		var (
			enrollment Enrollment
			enrolledAt string
		)
		if err := rows.Scan(&enrollment.ID, &enrollment.UserID, &enrollment.SensorID, &enrollment.Modality, &enrolledAt); err != nil {
			return nil, fmt.Errorf("list enrollments: scan row: %w", err)
		}
		enrollment.EnrolledAt, err = parseTime(enrolledAt)
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, enrollment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list enrollments: iterate: %w", err)
	}
	return enrollments, nil
}

func (r *enrollmentRepository) Delete(ctx context.Context, userID, sensorID int32) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM enrollments WHERE user_id = ? AND sensor_id = ?
	`, userID, sensorID)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete enrollment: rows affected: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}
