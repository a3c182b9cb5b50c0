package scheduling

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		in      string
		want    ClockTime
		wantErr bool
	}{
		{"09:00", NewClockTime(9, 0), false},
		{"00:00", 0, false},
		{"17:45", NewClockTime(17, 45), false},
		{"24:00", endOfDay, false},
		{"24:01", 0, true},
		{"9:00", 0, true},
		{"09:60", 0, true},
		{"25:00", 0, true},
		{"0900", 0, true},
		{"ab:cd", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseClockTime(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseClockTime(%q): expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClockTime(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClockTime(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestClockTimeJSON(t *testing.T) {
	rule := WorkingHoursRule{StartTime: NewClockTime(8, 30), EndTime: NewClockTime(12, 0)}
	data, err := json.Marshal(rule)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if raw["start_time"] != "08:30" {
		t.Errorf("start_time = %v, want 08:30", raw["start_time"])
	}

	var c ClockTime
	if err := json.Unmarshal([]byte(`"7:5"`), &c); err == nil {
		t.Error("expected error for malformed clock time")
	}
}

func TestWorkingHoursRuleValidate(t *testing.T) {
	base := WorkingHoursRule{
		DoctorID:            uuid.New(),
		DayOfWeek:           1,
		StartTime:           NewClockTime(9, 0),
		EndTime:             NewClockTime(17, 0),
		SlotDurationMinutes: 30,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(r *WorkingHoursRule)
	}{
		{"start equals end", func(r *WorkingHoursRule) { r.EndTime = r.StartTime }},
		{"start after end", func(r *WorkingHoursRule) { r.StartTime = NewClockTime(18, 0) }},
		{"zero duration", func(r *WorkingHoursRule) { r.SlotDurationMinutes = 0 }},
		{"negative buffer", func(r *WorkingHoursRule) { r.BufferMinutes = -5 }},
		{"weekday too large", func(r *WorkingHoursRule) { r.DayOfWeek = 7 }},
		{"end past midnight", func(r *WorkingHoursRule) { r.EndTime = endOfDay + 1 }},
		{"duration longer than window", func(r *WorkingHoursRule) { r.SlotDurationMinutes = 8*60 + 1 }},
		{"duration overflows", func(r *WorkingHoursRule) { r.SlotDurationMinutes = math.MaxInt }},
		{"buffer longer than a day", func(r *WorkingHoursRule) { r.BufferMinutes = int(endOfDay) + 1 }},
		{"buffer overflows", func(r *WorkingHoursRule) { r.BufferMinutes = math.MaxInt - 59 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mutate(&r)
			if err := r.Validate(); !errors.Is(err, ErrInvalidRange) {
				t.Errorf("Validate() = %v, want ErrInvalidRange", err)
			}
		})
	}
}

func TestCandidates(t *testing.T) {
	tests := []struct {
		name       string
		start, end ClockTime
		duration   int
		buffer     int
		wantStarts []string
	}{
		{
			name:  "full day hourly",
			start: NewClockTime(9, 0), end: NewClockTime(17, 0), duration: 60,
			wantStarts: []string{"09:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00"},
		},
		{
			name:  "buffer between slots",
			start: NewClockTime(9, 0), end: NewClockTime(12, 0), duration: 45, buffer: 15,
			wantStarts: []string{"09:00", "10:00", "11:00"},
		},
		{
			name:  "trailing remainder dropped",
			start: NewClockTime(9, 0), end: NewClockTime(10, 50), duration: 30,
			wantStarts: []string{"09:00", "09:30", "10:00"},
		},
		{
			name:  "window shorter than a slot",
			start: NewClockTime(9, 0), end: NewClockTime(9, 20), duration: 30,
			wantStarts: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := WorkingHoursRule{StartTime: tt.start, EndTime: tt.end, SlotDurationMinutes: tt.duration, BufferMinutes: tt.buffer}
			got := r.Candidates()
			if len(got) != len(tt.wantStarts) {
				t.Fatalf("got %d candidates, want %d", len(got), len(tt.wantStarts))
			}
			for i, c := range got {
				if c[0].String() != tt.wantStarts[i] {
					t.Errorf("candidate %d starts %s, want %s", i, c[0], tt.wantStarts[i])
				}
				if c[1]-c[0] != ClockTime(tt.duration) {
					t.Errorf("candidate %d lasts %d minutes, want %d", i, c[1]-c[0], tt.duration)
				}
				if c[1] > tt.end {
					t.Errorf("candidate %d ends %s after window end %s", i, c[1], tt.end)
				}
			}
		})
	}
}

func TestSlotStartsAt(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	tests := []struct {
		name  string
		date  time.Time
		start ClockTime
		want  time.Time
	}{
		{"ordinary day", time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), NewClockTime(9, 30), time.Date(2026, 10, 19, 9, 30, 0, 0, loc)},
		{"spring forward", time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), NewClockTime(9, 0), time.Date(2026, 3, 8, 9, 0, 0, 0, loc)},
		{"fall back", time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), NewClockTime(9, 0), time.Date(2026, 11, 1, 9, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot := CalendarSlot{Date: tt.date, StartTime: tt.start}
			got := slot.StartsAt(loc)
			if !got.Equal(tt.want) {
				t.Errorf("StartsAt = %v, want %v", got, tt.want)
			}
			if h, m, _ := got.Clock(); h != int(tt.start)/60 || m != int(tt.start)%60 {
				t.Errorf("wall clock %02d:%02d, want %s", h, m, tt.start)
			}
		})
	}
}

func TestCivilDate(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	// 20:00 UTC on Sunday is already Monday in UTC+10
	instant := time.Date(2026, 10, 18, 20, 0, 0, 0, time.UTC)

	got := civilDate(instant, loc)
	if got.Weekday() != time.Monday || got.Day() != 19 {
		t.Errorf("civilDate = %v, want Monday 2026-10-19", got)
	}
	if got.Location() != time.UTC || got.Hour() != 0 {
		t.Errorf("civilDate should be midnight UTC, got %v", got)
	}
	if c := clockOf(instant, loc); c != NewClockTime(6, 0) {
		t.Errorf("clockOf = %s, want 06:00", c)
	}
}
