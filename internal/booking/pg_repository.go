package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// pgDate formats a date for DATE-typed parameters so time-of-day and zone
// never leak into comparisons.
func pgDate(t time.Time) string {
	return DateOnly(t).Format("2006-01-02")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Scan helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.UserID, &d.Name, &d.Specialization, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic
	err := row.Scan(&c.ID, &c.Name, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClinicNotFound
		}
		return nil, err
	}
	return &c, nil
}

func scanSession(row pgx.Row) (*Session, error) {
	var (
		s        Session
		day      int
		startRaw string
		endRaw   string
	)
	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.ClinicID,
		&day,
		&startRaw,
		&endRaw,
		&s.ServiceMode,
		&s.MaxQueueSize,
		&s.ConsultationMinutes,
		&s.EffectiveFrom,
		&s.EffectiveUntil,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	s.DayOfWeek = time.Weekday(day)
	if s.StartTime, err = ParseTimeOfDay(startRaw); err != nil {
		return nil, err
	}
	if s.EndTime, err = ParseTimeOfDay(endRaw); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanOverride(row pgx.Row) (*SessionOverride, error) {
	var (
		ov       SessionOverride
		startRaw *string
		endRaw   *string
	)
	err := row.Scan(
		&ov.ID,
		&ov.SessionID,
		&ov.Date,
		&ov.Cancelled,
		&startRaw,
		&endRaw,
		&ov.MaxQueueSize,
		&ov.Reason,
		&ov.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOverrideNotFound
		}
		return nil, err
	}

	if startRaw != nil {
		t, err := ParseTimeOfDay(*startRaw)
		if err != nil {
			return nil, err
		}
		ov.StartTime = &t
	}
	if endRaw != nil {
		t, err := ParseTimeOfDay(*endRaw)
		if err != nil {
			return nil, err
		}
		ov.EndTime = &t
	}
	return &ov, nil
}

const appointmentColumns = `
	id, patient_id, doctor_id, session_id, clinic_id, appointment_date,
	queue_number, appointment_type, status, chief_complaint,
	estimated_start, actual_start, actual_end,
	payment_status, payment_ref, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.SessionID,
		&a.ClinicID,
		&a.Date,
		&a.QueueNumber,
		&a.Type,
		&a.Status,
		&a.ChiefComplaint,
		&a.EstimatedStart,
		&a.ActualStart,
		&a.ActualEnd,
		&a.PaymentStatus,
		&a.PaymentRef,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanHistory(row pgx.Row) (*HistoryEntry, error) {
	var h HistoryEntry
	err := row.Scan(
		&h.ID,
		&h.AppointmentID,
		&h.PreviousStatus,
		&h.NewStatus,
		&h.Reason,
		&h.ActorID,
		&h.ActorType,
		&h.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

const waitingColumns = `
	id, appointment_id, checked_in_at, called_at, called_by,
	consultation_started_at, created_at, updated_at`

func scanWaiting(row pgx.Row) (*WaitingRoomEntry, error) {
	var w WaitingRoomEntry
	err := row.Scan(
		&w.ID,
		&w.AppointmentID,
		&w.CheckedInAt,
		&w.CalledAt,
		&w.CalledBy,
		&w.ConsultationStartedAt,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWaitingRoomNotFound
		}
		return nil, err
	}
	return &w, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// Directory

func (r *PgRepository) GetDoctor(ctx context.Context, userID string) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT user_id, name, specialization, active, created_at, updated_at
		FROM doctors
		WHERE user_id = $1
	`, userID)
	return scanDoctor(row)
}

func (r *PgRepository) GetClinic(ctx context.Context, id int64) (*Clinic, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, address, created_at, updated_at
		FROM clinics
		WHERE id = $1
	`, id)
	return scanClinic(row)
}

func (r *PgRepository) UpsertDoctor(ctx context.Context, d *Doctor) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO doctors (user_id, name, specialization, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (user_id) DO UPDATE
		SET name = EXCLUDED.name,
		    specialization = EXCLUDED.specialization,
		    active = EXCLUDED.active,
		    updated_at = now()
	`, d.UserID, d.Name, d.Specialization, d.Active)
	if err != nil {
		return fmt.Errorf("upsert doctor: %w", err)
	}
	return nil
}

func (r *PgRepository) UpsertClinic(ctx context.Context, c *Clinic) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO clinics (id, name, address, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    address = EXCLUDED.address,
		    updated_at = now()
	`, c.ID, c.Name, c.Address)
	if err != nil {
		return fmt.Errorf("upsert clinic: %w", err)
	}
	return nil
}

// Sessions and overrides

const sessionColumns = `
	id, doctor_id, clinic_id, day_of_week, start_time, end_time,
	service_mode, max_queue_size, consultation_minutes,
	effective_from, effective_until, active, created_at, updated_at`

func (r *PgRepository) GetSession(ctx context.Context, id int64) (*Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE id = $1
	`, id)
	return scanSession(row)
}

func (r *PgRepository) CreateSession(ctx context.Context, s *Session) (*Session, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO sessions (
			doctor_id, clinic_id, day_of_week, start_time, end_time,
			service_mode, max_queue_size, consultation_minutes,
			effective_from, effective_until, active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING `+sessionColumns,
		s.DoctorID, s.ClinicID, int(s.DayOfWeek), s.StartTime.String(), s.EndTime.String(),
		s.ServiceMode, s.MaxQueueSize, s.ConsultationMinutes,
		pgDate(s.EffectiveFrom), nullableDate(s.EffectiveUntil), s.Active)
	return scanSession(row)
}

func (r *PgRepository) UpdateSession(ctx context.Context, s *Session) (*Session, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE sessions
		SET clinic_id = $2,
		    day_of_week = $3,
		    start_time = $4,
		    end_time = $5,
		    service_mode = $6,
		    max_queue_size = $7,
		    consultation_minutes = $8,
		    effective_from = $9,
		    effective_until = $10,
		    active = $11,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+sessionColumns,
		s.ID, s.ClinicID, int(s.DayOfWeek), s.StartTime.String(), s.EndTime.String(),
		s.ServiceMode, s.MaxQueueSize, s.ConsultationMinutes,
		pgDate(s.EffectiveFrom), nullableDate(s.EffectiveUntil), s.Active)
	return scanSession(row)
}

func (r *PgRepository) ListSessionsByDoctor(ctx context.Context, doctorID string, activeOnly bool) ([]Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE doctor_id = $1
		  AND ($2 = false OR active)
		ORDER BY day_of_week, start_time
	`, doctorID, activeOnly)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (r *PgRepository) ListSessionsByDoctorAndDay(ctx context.Context, doctorID string, day time.Weekday) ([]Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE doctor_id = $1
		  AND day_of_week = $2
		  AND active
		ORDER BY start_time
	`, doctorID, int(day))
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (r *PgRepository) FindOverlappingSessions(ctx context.Context, doctorID string, day time.Weekday, start, end TimeOfDay) ([]Session, error) {
	// Times are zero-padded HH:MM so lexicographic comparison is correct.
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE doctor_id = $1
		  AND day_of_week = $2
		  AND active
		  AND start_time < $4
		  AND end_time > $3
	`, doctorID, int(day), start.String(), end.String())
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func collectSessions(rows pgx.Rows) ([]Session, error) {
	defer rows.Close()

	var result []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

const overrideColumns = `
	id, session_id, override_date, cancelled, start_time, end_time,
	max_queue_size, reason, created_at`

func (r *PgRepository) GetOverride(ctx context.Context, sessionID int64, date time.Time) (*SessionOverride, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+overrideColumns+`
		FROM session_overrides
		WHERE session_id = $1 AND override_date = $2
	`, sessionID, pgDate(date))
	return scanOverride(row)
}

func (r *PgRepository) CreateOverride(ctx context.Context, ov *SessionOverride) (*SessionOverride, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO session_overrides (
			session_id, override_date, cancelled, start_time, end_time,
			max_queue_size, reason, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING `+overrideColumns,
		ov.SessionID, pgDate(ov.Date), ov.Cancelled,
		nullableTimeOfDay(ov.StartTime), nullableTimeOfDay(ov.EndTime),
		ov.MaxQueueSize, ov.Reason)

	created, err := scanOverride(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrOverrideExists
		}
		return nil, err
	}
	return created, nil
}

// Appointments

func (r *PgRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) CreateBookedAppointment(ctx context.Context, appt *Appointment, entry HistoryEntry) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (
			id, patient_id, doctor_id, session_id, clinic_id, appointment_date,
			queue_number, appointment_type, status, chief_complaint,
			estimated_start, payment_status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		RETURNING `+appointmentColumns,
		appt.ID, appt.PatientID, appt.DoctorID, appt.SessionID, appt.ClinicID,
		pgDate(appt.Date), appt.QueueNumber, appt.Type, appt.Status,
		appt.ChiefComplaint, appt.EstimatedStart, appt.PaymentStatus)

	created, err := scanAppointment(row)
	if err != nil {
		// The partial unique index on (session, date, queue_number) is the
		// backstop for a lost booking lock.
		if isUniqueViolation(err) {
			return nil, ErrBookingContended
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := insertHistory(ctx, tx, created.ID, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) MaxQueueNumber(ctx context.Context, sessionID int64, date time.Time) (int, error) {
	var max int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(queue_number), 0)
		FROM appointments
		WHERE session_id = $1
		  AND appointment_date = $2
		  AND status <> 'CANCELLED'
	`, sessionID, pgDate(date)).Scan(&max)
	return max, err
}

func (r *PgRepository) CountActiveAppointments(ctx context.Context, sessionID int64, date time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments
		WHERE session_id = $1
		  AND appointment_date = $2
		  AND status <> 'CANCELLED'
	`, sessionID, pgDate(date)).Scan(&count)
	return count, err
}

func (r *PgRepository) FindActiveByPatientDoctorDate(ctx context.Context, patientID, doctorID string, date time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		  AND doctor_id = $2
		  AND appointment_date = $3
		  AND status <> 'CANCELLED'
		LIMIT 1
	`, patientID, doctorID, pgDate(date))
	return scanAppointment(row)
}

func (r *PgRepository) ListByDoctorAndDate(ctx context.Context, doctorID string, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND appointment_date = $2
		ORDER BY queue_number
	`, doctorID, pgDate(date))
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY appointment_date DESC, created_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) FindOverdue(ctx context.Context, before time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE appointment_date < $1
		  AND status IN ('BOOKED', 'CHECKED_IN')
	`, pgDate(before))
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) SetPayment(ctx context.Context, id uuid.UUID, status PaymentStatus, ref string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET payment_status = $2,
		    payment_ref = $3,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns,
		id, status, ref)
	return scanAppointment(row)
}

func (r *PgRepository) TransitionAppointment(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, entry HistoryEntry, opts TransitionOpts) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    actual_end = CASE WHEN $4 THEN $5::timestamptz ELSE actual_end END,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, to, from, opts.SetActualEnd, entry.CreatedAt)

	updated, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Zero rows: either the appointment is gone or a concurrent
			// transition won. Distinguish so racers fail deterministically.
			var current AppointmentStatus
			checkErr := r.pool.QueryRow(ctx, `SELECT status FROM appointments WHERE id = $1`, id).Scan(&current)
			if checkErr == nil {
				return nil, ErrIllegalTransition
			}
			if errors.Is(checkErr, pgx.ErrNoRows) {
				return nil, ErrAppointmentNotFound
			}
			return nil, checkErr
		}
		return nil, err
	}

	if err := insertHistory(ctx, tx, id, entry); err != nil {
		return nil, err
	}

	if opts.CreateWaiting {
		_, err := tx.Exec(ctx, `
			INSERT INTO waiting_room (id, appointment_id, checked_in_at, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, uuid.New(), id, entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("create waiting room entry: %w", err)
		}
	}

	if opts.MarkCalled != nil {
		tag, err := tx.Exec(ctx, `
			UPDATE waiting_room
			SET called_at = $2,
			    called_by = $3,
			    updated_at = now()
			WHERE appointment_id = $1
			  AND called_at IS NULL
		`, id, entry.CreatedAt, *opts.MarkCalled)
		if err != nil {
			return nil, fmt.Errorf("mark called: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, ErrQueueContended
		}
	}

	if opts.RemoveWaiting {
		if _, err := tx.Exec(ctx, `DELETE FROM waiting_room WHERE appointment_id = $1`, id); err != nil {
			return nil, fmt.Errorf("remove waiting room entry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

func insertHistory(ctx context.Context, tx pgx.Tx, appointmentID uuid.UUID, entry HistoryEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO appointment_history (
			appointment_id, previous_status, new_status, reason,
			actor_id, actor_type, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, appointmentID, entry.PreviousStatus, entry.NewStatus, entry.Reason,
		entry.ActorID, entry.ActorType, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

func (r *PgRepository) ListHistory(ctx context.Context, appointmentID uuid.UUID) ([]HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, previous_status, new_status, reason,
		       actor_id, actor_type, created_at
		FROM appointment_history
		WHERE appointment_id = $1
		ORDER BY id
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []HistoryEntry
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *h)
	}
	return result, rows.Err()
}

// Waiting room

func (r *PgRepository) GetWaitingRoomEntry(ctx context.Context, appointmentID uuid.UUID) (*WaitingRoomEntry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+waitingColumns+`
		FROM waiting_room
		WHERE appointment_id = $1
	`, appointmentID)
	return scanWaiting(row)
}

func (r *PgRepository) NextWaiting(ctx context.Context, doctorID string, date time.Time) (*WaitingRoomEntry, *Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT w.id, w.appointment_id, w.checked_in_at, w.called_at, w.called_by,
		       w.consultation_started_at, w.created_at, w.updated_at,
		       `+prefixedAppointmentColumns("a")+`
		FROM waiting_room w
		JOIN appointments a ON a.id = w.appointment_id
		WHERE a.doctor_id = $1
		  AND a.appointment_date = $2
		  AND a.status = 'CHECKED_IN'
		  AND w.called_at IS NULL
		ORDER BY a.queue_number
		LIMIT 1
	`, doctorID, pgDate(date))

	var (
		w WaitingRoomEntry
		a Appointment
	)
	err := row.Scan(
		&w.ID, &w.AppointmentID, &w.CheckedInAt, &w.CalledAt, &w.CalledBy,
		&w.ConsultationStartedAt, &w.CreatedAt, &w.UpdatedAt,
		&a.ID, &a.PatientID, &a.DoctorID, &a.SessionID, &a.ClinicID, &a.Date,
		&a.QueueNumber, &a.Type, &a.Status, &a.ChiefComplaint,
		&a.EstimatedStart, &a.ActualStart, &a.ActualEnd,
		&a.PaymentStatus, &a.PaymentRef, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrWaitingRoomNotFound
		}
		return nil, nil, err
	}
	return &w, &a, nil
}

func prefixedAppointmentColumns(alias string) string {
	return alias + `.id, ` + alias + `.patient_id, ` + alias + `.doctor_id, ` +
		alias + `.session_id, ` + alias + `.clinic_id, ` + alias + `.appointment_date, ` +
		alias + `.queue_number, ` + alias + `.appointment_type, ` + alias + `.status, ` +
		alias + `.chief_complaint, ` + alias + `.estimated_start, ` + alias + `.actual_start, ` +
		alias + `.actual_end, ` + alias + `.payment_status, ` + alias + `.payment_ref, ` +
		alias + `.created_at, ` + alias + `.updated_at`
}

func (r *PgRepository) MarkConsultationStarted(ctx context.Context, appointmentID uuid.UUID, at time.Time) (*WaitingRoomEntry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT `+waitingColumns+`
		FROM waiting_room
		WHERE appointment_id = $1
		FOR UPDATE
	`, appointmentID)
	entry, err := scanWaiting(row)
	if err != nil {
		return nil, err
	}
	if entry.CalledAt == nil {
		return nil, ErrNotYetCalled
	}

	row = tx.QueryRow(ctx, `
		UPDATE waiting_room
		SET consultation_started_at = $2,
		    updated_at = now()
		WHERE appointment_id = $1
		RETURNING `+waitingColumns,
		appointmentID, at)
	updated, err := scanWaiting(row)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE appointments
		SET actual_start = $2,
		    updated_at = now()
		WHERE id = $1
	`, appointmentID, at); err != nil {
		return nil, fmt.Errorf("set actual start: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) CurrentInProgressQueueNumber(ctx context.Context, doctorID string, date time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(queue_number), 0)
		FROM appointments
		WHERE doctor_id = $1
		  AND appointment_date = $2
		  AND status = 'IN_PROGRESS'
	`, doctorID, pgDate(date)).Scan(&n)
	return n, err
}

func (r *PgRepository) CountPatientsAhead(ctx context.Context, doctorID string, date time.Time, queueNumber int) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments
		WHERE doctor_id = $1
		  AND appointment_date = $2
		  AND queue_number < $3
		  AND status IN ('CHECKED_IN', 'IN_PROGRESS')
	`, doctorID, pgDate(date), queueNumber).Scan(&count)
	return count, err
}

func nullableDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := pgDate(*t)
	return &s
}

func nullableTimeOfDay(t *TimeOfDay) *string {
	if t == nil {
		return nil
	}
	s := t.String()
	return &s
}
