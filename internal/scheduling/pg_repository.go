package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgRepository struct {
	pool *pgxpool.Pool
	q    queryable
	inTx bool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, q: pool}
}

func (r *PgRepository) WithinTx(ctx context.Context, fn func(tx Repository) error) error {
	if r.inTx {
		return fn(r)
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&PgRepository{pool: r.pool, q: tx, inTx: true})
	})
}

// Helpers

const ruleCols = `id, doctor_id, day_of_week, start_minute, end_minute,
	slot_duration_minutes, buffer_minutes, created_at, updated_at`

func scanRule(row pgx.Row) (*WorkingHoursRule, error) {
	var w WorkingHoursRule
	var start, end int

	err := row.Scan(
		&w.ID,
		&w.DoctorID,
		&w.DayOfWeek,
		&start,
		&end,
		&w.SlotDurationMinutes,
		&w.BufferMinutes,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	w.StartTime = ClockTime(start)
	w.EndTime = ClockTime(end)
	return &w, nil
}

const slotCols = `id, doctor_id, slot_date, start_minute, end_minute, status,
	patient_id, block_reason, version, created_at, updated_at`

func scanSlot(row pgx.Row) (*CalendarSlot, error) {
	var s CalendarSlot
	var start, end int

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Date,
		&start,
		&end,
		&s.Status,
		&s.PatientID,
		&s.BlockReason,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.StartTime = ClockTime(start)
	s.EndTime = ClockTime(end)
	return &s, nil
}

const requestCols = `id, slot_id, doctor_id, patient_id, status, chief_complaint,
	symptoms, reason, created_at, resolved_at, appointment_id`

func scanRequest(row pgx.Row) (*BookingRequest, error) {
	var b BookingRequest

	err := row.Scan(
		&b.ID,
		&b.SlotID,
		&b.DoctorID,
		&b.PatientID,
		&b.Status,
		&b.ChiefComplaint,
		&b.Symptoms,
		&b.Reason,
		&b.CreatedAt,
		&b.ResolvedAt,
		&b.AppointmentID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	return &b, nil
}

const appointmentCols = `id, booking_request_id, doctor_id, patient_id, slot_id,
	scheduled_time, status, created_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.BookingRequestID,
		&a.DoctorID,
		&a.PatientID,
		&a.SlotID,
		&a.ScheduledTime,
		&a.Status,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

const runCols = `id, doctor_id, range_start, range_end, slots_generated, slots_skipped,
	status, error, generated_at`

func scanRun(row pgx.Row) (*SlotGenerationRun, error) {
	var g SlotGenerationRun

	err := row.Scan(
		&g.ID,
		&g.DoctorID,
		&g.RangeStart,
		&g.RangeEnd,
		&g.SlotsGenerated,
		&g.SlotsSkipped,
		&g.Status,
		&g.Error,
		&g.GeneratedAt,
	)
	if err != nil {
		return nil, err
	}

	return &g, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()

	var result []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Working hours

func (r *PgRepository) UpsertWorkingHours(ctx context.Context, rule WorkingHoursRule) (*WorkingHoursRule, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO working_hours (id, doctor_id, day_of_week, start_minute, end_minute,
			slot_duration_minutes, buffer_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (doctor_id, day_of_week) DO UPDATE
		SET start_minute = EXCLUDED.start_minute,
		    end_minute = EXCLUDED.end_minute,
		    slot_duration_minutes = EXCLUDED.slot_duration_minutes,
		    buffer_minutes = EXCLUDED.buffer_minutes,
		    updated_at = now()
		RETURNING `+ruleCols,
		uuid.New(), rule.DoctorID, rule.DayOfWeek, int(rule.StartTime), int(rule.EndTime),
		rule.SlotDurationMinutes, rule.BufferMinutes)

	return scanRule(row)
}

func (r *PgRepository) ListWorkingHours(ctx context.Context, doctorID uuid.UUID) ([]WorkingHoursRule, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+ruleCols+`
		FROM working_hours
		WHERE doctor_id = $1
		ORDER BY day_of_week, start_minute
	`, doctorID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRule)
}

func (r *PgRepository) ListDoctorsWithWorkingHours(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.q.Query(ctx, `SELECT DISTINCT doctor_id FROM working_hours ORDER BY doctor_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Slots

func (r *PgRepository) InsertSlotIfAbsent(ctx context.Context, slot CalendarSlot) (bool, error) {
	id := slot.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	tag, err := r.q.Exec(ctx, `
		INSERT INTO calendar_slots (id, doctor_id, slot_date, start_minute, end_minute, status,
			version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'available', 1, now(), now())
		ON CONFLICT (doctor_id, slot_date, start_minute) DO NOTHING
	`, id, slot.DoctorID, slot.Date, int(slot.StartTime), int(slot.EndTime))
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*CalendarSlot, error) {
	row := r.q.QueryRow(ctx, `SELECT `+slotCols+` FROM calendar_slots WHERE id = $1`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListSlots(ctx context.Context, q SlotQuery) ([]CalendarSlot, error) {
	statuses := make([]string, 0, len(q.Statuses))
	for _, s := range q.Statuses {
		statuses = append(statuses, string(s))
	}

	rows, err := r.q.Query(ctx, `
		SELECT `+slotCols+`
		FROM calendar_slots
		WHERE doctor_id = $1
		  AND slot_date BETWEEN $2 AND $3
		  AND (cardinality($4::text[]) = 0 OR status = ANY($4::text[]))
		ORDER BY slot_date, start_minute
	`, q.DoctorID, q.StartDate, q.EndDate, statuses)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSlot)
}

func (r *PgRepository) NextAvailableSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, from ClockTime) (*CalendarSlot, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+slotCols+`
		FROM calendar_slots
		WHERE doctor_id = $1
		  AND status = 'available'
		  AND (slot_date > $2 OR (slot_date = $2 AND start_minute >= $3))
		ORDER BY slot_date, start_minute
		LIMIT 1
	`, doctorID, date, int(from))
	return scanSlot(row)
}

// TransitionSlot is the single guarded write on a slot. The WHERE clause
// carries the expected status so two concurrent claims cannot both match.
func (r *PgRepository) TransitionSlot(ctx context.Context, t SlotTransition) (*CalendarSlot, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE calendar_slots
		SET status = $3,
		    patient_id = $4,
		    block_reason = $5,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND status = $2
		  AND ($6 = 0 OR version = $6)
		RETURNING `+slotCols,
		t.SlotID, t.From, t.To, t.PatientID, t.BlockReason, t.Version)

	slot, err := scanSlot(row)
	if errors.Is(err, ErrSlotNotFound) {
		return nil, ErrStaleState
	}
	return slot, err
}

// Booking requests

func (r *PgRepository) InsertBookingRequest(ctx context.Context, req BookingRequest) (*BookingRequest, error) {
	id := req.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.q.QueryRow(ctx, `
		INSERT INTO booking_requests (id, slot_id, doctor_id, patient_id, status, chief_complaint,
			symptoms, created_at)
		VALUES ($1, $2, $3, $4, 'pending', $5, $6, now())
		RETURNING `+requestCols,
		id, req.SlotID, req.DoctorID, req.PatientID, req.ChiefComplaint, req.Symptoms)

	return scanRequest(row)
}

func (r *PgRepository) GetBookingRequestByID(ctx context.Context, id uuid.UUID) (*BookingRequest, error) {
	row := r.q.QueryRow(ctx, `SELECT `+requestCols+` FROM booking_requests WHERE id = $1`, id)
	return scanRequest(row)
}

func (r *PgRepository) ListBookingRequestsByDoctor(ctx context.Context, doctorID uuid.UUID, status RequestStatus) ([]BookingRequest, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+requestCols+`
		FROM booking_requests
		WHERE doctor_id = $1 AND status = $2
		ORDER BY created_at
	`, doctorID, status)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRequest)
}

func (r *PgRepository) ListBookingRequestsByPatient(ctx context.Context, patientID uuid.UUID) ([]BookingRequest, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+requestCols+`
		FROM booking_requests
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRequest)
}

func (r *PgRepository) ResolveBookingRequest(ctx context.Context, res RequestResolution) (*BookingRequest, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE booking_requests
		SET status = $2,
		    resolved_at = $3,
		    reason = $4,
		    appointment_id = $5
		WHERE id = $1
		  AND status = 'pending'
		RETURNING `+requestCols,
		res.RequestID, res.To, res.ResolvedAt, res.Reason, res.AppointmentID)

	req, err := scanRequest(row)
	if errors.Is(err, ErrRequestNotFound) {
		return nil, ErrStaleState
	}
	return req, err
}

// Appointments

func (r *PgRepository) InsertAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	id := a.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.q.QueryRow(ctx, `
		INSERT INTO appointments (id, booking_request_id, doctor_id, patient_id, slot_id,
			scheduled_time, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING `+appointmentCols,
		id, a.BookingRequestID, a.DoctorID, a.PatientID, a.SlotID, a.ScheduledTime, a.Status)

	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `SELECT `+appointmentCols+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

// Generation audit log

func (r *PgRepository) InsertGenerationRun(ctx context.Context, run SlotGenerationRun) error {
	id := run.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	_, err := r.q.Exec(ctx, `
		INSERT INTO slot_generation_runs (id, doctor_id, range_start, range_end, slots_generated,
			slots_skipped, status, error, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()))
	`, id, run.DoctorID, run.RangeStart, run.RangeEnd, run.SlotsGenerated, run.SlotsSkipped,
		run.Status, run.Error, nullableTime(run.GeneratedAt))
	return err
}

func (r *PgRepository) ListGenerationRuns(ctx context.Context, doctorID uuid.UUID, limit int) ([]SlotGenerationRun, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+runCols+`
		FROM slot_generation_runs
		WHERE doctor_id = $1
		ORDER BY generated_at DESC
		LIMIT $2
	`, doctorID, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRun)
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
