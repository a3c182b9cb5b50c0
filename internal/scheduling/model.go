package scheduling

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
	SlotConfirmed SlotStatus = "confirmed"
	SlotBlocked   SlotStatus = "blocked"
)

func (s SlotStatus) Valid() bool {
	switch s {
	case SlotAvailable, SlotBooked, SlotConfirmed, SlotBlocked:
		return true
	}
	return false
}

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestConfirmed RequestStatus = "confirmed"
	RequestRejected  RequestStatus = "rejected"
	RequestCancelled RequestStatus = "cancelled"
)

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
)

type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// ClockTime is a wall-clock time of day in minutes after midnight.
// 24:00 (1440) is accepted as an end-of-day boundary.
type ClockTime int

const endOfDay ClockTime = 24 * 60

func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ParseClockTime accepts "HH:MM".
func ParseClockTime(s string) (ClockTime, error) {
	if len(s) != 5 || s[2] != ':' || !isDigits(s[:2]) || !isDigits(s[3:]) {
		return 0, fmt.Errorf("%w: time %q must be HH:MM", ErrInvalidRange, s)
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("%w: time %q out of range", ErrInvalidRange, s)
	}
	return NewClockTime(h, m), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (c ClockTime) Valid() bool {
	return c >= 0 && c <= endOfDay
}

func (c ClockTime) Add(minutes int) ClockTime {
	return c + ClockTime(minutes)
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// WorkingHoursRule is one contiguous availability window on one weekday.
// DayOfWeek follows time.Weekday: 0 is Sunday.
type WorkingHoursRule struct {
	ID                  uuid.UUID `json:"id"`
	DoctorID            uuid.UUID `json:"doctor_id"`
	DayOfWeek           int       `json:"day_of_week"`
	StartTime           ClockTime `json:"start_time"`
	EndTime             ClockTime `json:"end_time"`
	SlotDurationMinutes int       `json:"slot_duration_minutes"`
	BufferMinutes       int       `json:"buffer_minutes"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (r WorkingHoursRule) Validate() error {
	if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
		return fmt.Errorf("%w: day_of_week must be 0..6", ErrInvalidRange)
	}
	if !r.StartTime.Valid() || !r.EndTime.Valid() {
		return fmt.Errorf("%w: times must fall within the day", ErrInvalidRange)
	}
	if r.StartTime >= r.EndTime {
		return fmt.Errorf("%w: start_time must be before end_time", ErrInvalidRange)
	}
	if r.SlotDurationMinutes <= 0 {
		return fmt.Errorf("%w: slot_duration_minutes must be > 0", ErrInvalidRange)
	}
	if r.SlotDurationMinutes > int(r.EndTime-r.StartTime) {
		return fmt.Errorf("%w: slot_duration_minutes must fit within the working window", ErrInvalidRange)
	}
	if r.BufferMinutes < 0 || r.BufferMinutes > int(endOfDay) {
		return fmt.Errorf("%w: buffer_minutes must be 0..%d", ErrInvalidRange, int(endOfDay))
	}
	return nil
}

// Candidates walks the rule window and returns the [start, end) boundaries of
// every slot that fits before EndTime.
func (r WorkingHoursRule) Candidates() [][2]ClockTime {
	var out [][2]ClockTime
	step := r.SlotDurationMinutes + r.BufferMinutes
	for cursor := r.StartTime; cursor.Add(r.SlotDurationMinutes) <= r.EndTime; cursor = cursor.Add(step) {
		out = append(out, [2]ClockTime{cursor, cursor.Add(r.SlotDurationMinutes)})
	}
	return out
}

// CalendarSlot is a dated, bookable interval materialized from a rule.
// Date is the calendar day at midnight UTC; clock times are read in the
// configured schedule location.
type CalendarSlot struct {
	ID          uuid.UUID  `json:"id"`
	DoctorID    uuid.UUID  `json:"doctor_id"`
	Date        time.Time  `json:"date"`
	StartTime   ClockTime  `json:"start_time"`
	EndTime     ClockTime  `json:"end_time"`
	Status      SlotStatus `json:"status"`
	PatientID   *uuid.UUID `json:"patient_id,omitempty"`
	BlockReason *string    `json:"block_reason,omitempty"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// StartsAt resolves the slot start to an instant in loc.
func (s CalendarSlot) StartsAt(loc *time.Location) time.Time {
	y, m, d := s.Date.Date()
	return time.Date(y, m, d, int(s.StartTime)/60, int(s.StartTime)%60, 0, 0, loc)
}

// Public strips the fields only the owning clinician may see.
func (s CalendarSlot) Public() CalendarSlot {
	s.PatientID = nil
	s.BlockReason = nil
	return s
}

type BookingRequest struct {
	ID             uuid.UUID     `json:"id"`
	SlotID         uuid.UUID     `json:"slot_id"`
	DoctorID       uuid.UUID     `json:"doctor_id"`
	PatientID      uuid.UUID     `json:"patient_id"`
	Status         RequestStatus `json:"status"`
	ChiefComplaint string        `json:"chief_complaint"`
	Symptoms       *string       `json:"symptoms,omitempty"`
	Reason         *string       `json:"reason,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty"`
	AppointmentID  *uuid.UUID    `json:"appointment_id,omitempty"`
}

type Appointment struct {
	ID               uuid.UUID         `json:"id"`
	BookingRequestID uuid.UUID         `json:"booking_request_id"`
	DoctorID         uuid.UUID         `json:"doctor_id"`
	PatientID        uuid.UUID         `json:"patient_id"`
	SlotID           uuid.UUID         `json:"slot_id"`
	ScheduledTime    time.Time         `json:"scheduled_time"`
	Status           AppointmentStatus `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
}

type SlotGenerationRun struct {
	ID             uuid.UUID `json:"id"`
	DoctorID       uuid.UUID `json:"doctor_id"`
	RangeStart     time.Time `json:"range_start"`
	RangeEnd       time.Time `json:"range_end"`
	SlotsGenerated int       `json:"slots_generated"`
	SlotsSkipped   int       `json:"slots_skipped"`
	Status         RunStatus `json:"status"`
	Error          *string   `json:"error,omitempty"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// civilDate truncates t to its calendar day in loc and returns that day at
// midnight UTC, the representation used for slot dates.
func civilDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ceilMinute rounds t up to the next whole minute so that a slot which
// started a few seconds ago is not offered.
func ceilMinute(t time.Time) time.Time {
	if m := t.Truncate(time.Minute); !m.Equal(t) {
		return m.Add(time.Minute)
	}
	return t
}

// clockOf returns the wall-clock time of t in loc.
func clockOf(t time.Time, loc *time.Location) ClockTime {
	lt := t.In(loc)
	return NewClockTime(lt.Hour(), lt.Minute())
}
