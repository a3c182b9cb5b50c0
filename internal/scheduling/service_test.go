package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinician-scheduling/internal/config"
	"github.com/hackgods/clinician-scheduling/internal/events"
	redisclient "github.com/hackgods/clinician-scheduling/internal/redis"
)

// -- Test doubles --

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// failingSlotRepo fails slot inserts once failAfter inserts have succeeded.
type failingSlotRepo struct {
	*MemoryRepository
	failAfter int
	calls     int
}

func (r *failingSlotRepo) InsertSlotIfAbsent(ctx context.Context, slot CalendarSlot) (bool, error) {
	r.calls++
	if r.calls > r.failAfter {
		return false, errors.New("connection reset by peer")
	}
	return r.MemoryRepository.InsertSlotIfAbsent(ctx, slot)
}

// monday0800 is Monday 2026-10-19 08:00 UTC.
var monday0800 = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	repo   *MemoryRepository
	pub    *recordingPublisher
	doctor Caller
	ctx    context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := NewMemoryRepository()
	return newFixtureWithRepo(t, repo, repo)
}

func newFixtureWithRepo(t *testing.T, repo Repository, mem *MemoryRepository) *fixture {
	t.Helper()
	pub := &recordingPublisher{}
	svc := NewService(repo, redisclient.NewLocalDoctorLocker(), pub, zerolog.Nop(), config.Config{
		Location:          time.UTC,
		MaxGenerationDays: 90,
	})
	svc.now = func() time.Time { return monday0800 }

	return &fixture{
		svc:    svc,
		repo:   mem,
		pub:    pub,
		doctor: Caller{ID: uuid.New(), Role: RoleClinician},
		ctx:    context.Background(),
	}
}

func newPatient() Caller {
	return Caller{ID: uuid.New(), Role: RolePatient}
}

// mondayHours sets Monday 09:00-17:00 in hourly slots and generates one day.
func (f *fixture) mondayHours(t *testing.T) []CalendarSlot {
	t.Helper()
	_, err := f.svc.SetWorkingHours(f.ctx, f.doctor, WorkingHoursRule{
		DoctorID:            f.doctor.ID,
		DayOfWeek:           int(time.Monday),
		StartTime:           NewClockTime(9, 0),
		EndTime:             NewClockTime(17, 0),
		SlotDurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("SetWorkingHours: %v", err)
	}
	if _, err := f.svc.GenerateSlots(f.ctx, f.doctor, f.doctor.ID, 1); err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	slots, err := f.svc.GetDoctorSlots(f.ctx, f.doctor, f.doctor.ID, monday0800, monday0800, nil)
	if err != nil {
		t.Fatalf("GetDoctorSlots: %v", err)
	}
	return slots
}

func (f *fixture) slot(t *testing.T, id uuid.UUID) CalendarSlot {
	t.Helper()
	s, err := f.repo.GetSlotByID(f.ctx, id)
	if err != nil {
		t.Fatalf("GetSlotByID: %v", err)
	}
	return *s
}

// -- Working hours --

func TestSetWorkingHours_ReplacesByWeekday(t *testing.T) {
	f := newFixture(t)
	rule := WorkingHoursRule{
		DoctorID:            f.doctor.ID,
		DayOfWeek:           int(time.Tuesday),
		StartTime:           NewClockTime(9, 0),
		EndTime:             NewClockTime(12, 0),
		SlotDurationMinutes: 30,
	}
	if _, err := f.svc.SetWorkingHours(f.ctx, f.doctor, rule); err != nil {
		t.Fatalf("first set: %v", err)
	}
	rule.EndTime = NewClockTime(15, 0)
	rule.BufferMinutes = 10
	if _, err := f.svc.SetWorkingHours(f.ctx, f.doctor, rule); err != nil {
		t.Fatalf("second set: %v", err)
	}

	rules, err := f.svc.GetWorkingHours(f.ctx, newPatient(), f.doctor.ID)
	if err != nil {
		t.Fatalf("GetWorkingHours: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule after replace, got %d", len(rules))
	}
	if rules[0].EndTime != NewClockTime(15, 0) || rules[0].BufferMinutes != 10 {
		t.Errorf("rule not replaced: %+v", rules[0])
	}
}

func TestSetWorkingHours_InvalidRange(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SetWorkingHours(f.ctx, f.doctor, WorkingHoursRule{
		DoctorID:            f.doctor.ID,
		DayOfWeek:           1,
		StartTime:           NewClockTime(17, 0),
		EndTime:             NewClockTime(9, 0),
		SlotDurationMinutes: 30,
	})
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}

	rules, _ := f.repo.ListWorkingHours(f.ctx, f.doctor.ID)
	if len(rules) != 0 {
		t.Errorf("invalid rule was stored")
	}
}

// -- Generation --

func TestGenerateSlots_Coverage(t *testing.T) {
	f := newFixture(t)
	slots := f.mondayHours(t)

	if len(slots) != 8 {
		t.Fatalf("expected 8 slots, got %d", len(slots))
	}
	for i, s := range slots {
		want := NewClockTime(9+i, 0)
		if s.StartTime != want || s.EndTime != want.Add(60) {
			t.Errorf("slot %d = %s-%s, want %s-%s", i, s.StartTime, s.EndTime, want, want.Add(60))
		}
		if s.Status != SlotAvailable {
			t.Errorf("slot %d status = %s, want available", i, s.Status)
		}
		if s.Date.Weekday() != time.Monday {
			t.Errorf("slot %d on %s, want Monday", i, s.Date.Weekday())
		}
	}
}

func TestGenerateSlots_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.mondayHours(t)

	run, err := f.svc.GenerateSlots(f.ctx, f.doctor, f.doctor.ID, 1)
	if err != nil {
		t.Fatalf("second GenerateSlots: %v", err)
	}
	if run.SlotsGenerated != 0 || run.SlotsSkipped != 8 {
		t.Errorf("second run generated=%d skipped=%d, want 0/8", run.SlotsGenerated, run.SlotsSkipped)
	}

	slots, _ := f.svc.GetDoctorSlots(f.ctx, f.doctor, f.doctor.ID, monday0800, monday0800, nil)
	if len(slots) != 8 {
		t.Errorf("expected 8 slots after regeneration, got %d", len(slots))
	}

	history, err := f.svc.GetGenerationHistory(f.ctx, f.doctor, f.doctor.ID, 0)
	if err != nil {
		t.Fatalf("GetGenerationHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(history))
	}
	if history[0].ID != run.ID {
		t.Errorf("history not newest first")
	}
}

func TestGenerateSlots_KeepsBookedSlotUntouched(t *testing.T) {
	f := newFixture(t)
	slots := f.mondayHours(t)
	patient := newPatient()

	if _, err := f.svc.CreateBookingRequest(f.ctx, patient, BookingInput{SlotID: slots[0].ID, ChiefComplaint: "cough"}); err != nil {
		t.Fatalf("CreateBookingRequest: %v", err)
	}
	if _, err := f.svc.GenerateSlots(f.ctx, f.doctor, f.doctor.ID, 1); err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}

	got := f.slot(t, slots[0].ID)
	if got.Status != SlotBooked || got.PatientID == nil || *got.PatientID != patient.ID {
		t.Errorf("regeneration changed a booked slot: %+v", got)
	}
}

func TestGenerateSlots_WeekdaysAcrossHorizon(t *testing.T) {
	f := newFixture(t)
	for _, day := range []time.Weekday{time.Monday, time.Wednesday} {
		_, err := f.svc.SetWorkingHours(f.ctx, f.doctor, WorkingHoursRule{
			DoctorID:            f.doctor.ID,
			DayOfWeek:           int(day),
			StartTime:           NewClockTime(9, 0),
			EndTime:             NewClockTime(11, 0),
			SlotDurationMinutes: 30,
		})
		if err != nil {
			t.Fatalf("SetWorkingHours: %v", err)
		}
	}

	run, err := f.svc.GenerateSlots(f.ctx, f.doctor, f.doctor.ID, 14)
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	// two Mondays and two Wednesdays, four slots each
	if run.SlotsGenerated != 16 {
		t.Errorf("generated %d slots, want 16", run.SlotsGenerated)
	}
	if !run.RangeEnd.Equal(run.RangeStart.AddDate(0, 0, 14)) {
		t.Errorf("range end = %v, want start + 14 days", run.RangeEnd)
	}
}

func TestGenerateSlots_DaysOutOfRange(t *testing.T) {
	f := newFixture(t)
	for _, days := range []int{0, -1, 91} {
		if _, err := f.svc.GenerateSlots(f.ctx, f.doctor, f.doctor.ID, days); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("days=%d: expected ErrInvalidRange, got %v", days, err)
		}
	}
}

func TestGenerateSlots_InProgress(t *testing.T) {
	f := newFixture(t)
	f.mondayHours(t)

	err := f.svc.locker.WithDoctorLock(f.ctx, f.doctor.ID, func(ctx context.Context) error {
		_, err := f.svc.GenerateSlots(ctx, f.doctor, f.doctor.ID, 1)
		return err
	})
	if !errors.Is(err, ErrGenerationInProgress) {
		t.Fatalf("expected ErrGenerationInProgress, got %v", err)
	}
}

func TestGenerateSlots_FailedRunIsAudited(t *testing.T) {
	mem := NewMemoryRepository()
	repo := &failingSlotRepo{MemoryRepository: mem, failAfter: 3}
	f := newFixtureWithRepo(t, repo, mem)

	_, err := f.svc.SetWorkingHours(f.ctx, f.doctor, WorkingHoursRule{
		DoctorID:            f.doctor.ID,
		DayOfWeek:           int(time.Monday),
		StartTime:           NewClockTime(9, 0),
		EndTime:             NewClockTime(17, 0),
		SlotDurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("SetWorkingHours: %v", err)
	}

	run, err := f.svc.GenerateSlots(f.ctx, f.doctor, f.doctor.ID, 1)
	if !errors.Is(err, ErrInfrastructure) {
		t.Fatalf("expected ErrInfrastructure, got %v", err)
	}
	if run == nil || run.Status != RunFailed || run.SlotsGenerated != 3 {
		t.Fatalf("unexpected run: %+v", run)
	}

	history, err := f.svc.GetGenerationHistory(f.ctx, f.doctor, f.doctor.ID, 10)
	if err != nil {
		t.Fatalf("GetGenerationHistory: %v", err)
	}
	if len(history) != 1 || history[0].Status != RunFailed || history[0].Error == nil {
		t.Errorf("failed run not recorded: %+v", history)
	}
	for _, typ := range f.pub.types() {
		if typ == events.GenerationCompleted {
			t.Error("generation.completed published for a failed run")
		}
	}
}

func TestRunScheduledGeneration(t *testing.T) {
	f := newFixture(t)
	f.mondayHours(t)

	other := Caller{ID: uuid.New(), Role: RoleClinician}
	_, err := f.svc.SetWorkingHours(f.ctx, other, WorkingHoursRule{
		DoctorID:            other.ID,
		DayOfWeek:           int(time.Tuesday),
		StartTime:           NewClockTime(13, 0),
		EndTime:             NewClockTime(15, 0),
		SlotDurationMinutes: 30,
	})
	if err != nil {
		t.Fatalf("SetWorkingHours: %v", err)
	}

	summary, err := f.svc.RunScheduledGeneration(f.ctx, 7)
	if err != nil {
		t.Fatalf("RunScheduledGeneration: %v", err)
	}
	if summary.Doctors != 2 || summary.Succeeded != 2 || summary.Failed != 0 || summary.Skipped != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	// Monday's 8 already exist; Tuesday adds 4
	if summary.Generated != 4 {
		t.Errorf("generated %d, want 4", summary.Generated)
	}
}

// -- Slot registry --

func TestGetDoctorSlots_RedactsForOthers(t *testing.T) {
	f := newFixture(t)
	slots := f.mondayHours(t)
	patient := newPatient()

	if _, err := f.svc.CreateBookingRequest(f.ctx, patient, BookingInput{SlotID: slots[2].ID, ChiefComplaint: "rash"}); err != nil {
		t.Fatalf("CreateBookingRequest: %v", err)
	}

	own, _ := f.svc.GetDoctorSlots(f.ctx, f.doctor, f.doctor.ID, monday0800, monday0800, []SlotStatus{SlotBooked})
	if len(own) != 1 || own[0].PatientID == nil {
		t.Fatalf("owner should see the booked slot with patient: %+v", own)
	}

	public, _ := f.svc.GetDoctorSlots(f.ctx, newPatient(), f.doctor.ID, monday0800, monday0800, []SlotStatus{SlotBooked})
	if len(public) != 1 || public[0].PatientID != nil {
		t.Errorf("non-owner should get a redacted slot: %+v", public)
	}
}

func TestGetDoctorSlots_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetDoctorSlots(f.ctx, f.doctor, f.doctor.ID, monday0800, monday0800.AddDate(0, 0, -1), nil)
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("end before start: expected ErrInvalidRange, got %v", err)
	}

	_, err = f.svc.GetDoctorSlots(f.ctx, f.doctor, f.doctor.ID, monday0800, monday0800, []SlotStatus{"free"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad status: expected ErrInvalidInput, got %v", err)
	}

	_, err = f.svc.GetDoctorSlots(f.ctx, Caller{}, f.doctor.ID, monday0800, monday0800, nil)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("anonymous: expected ErrUnauthenticated, got %v", err)
	}
}

func TestGetNextAvailableSlot(t *testing.T) {
	f := newFixture(t)
	slots := f.mondayHours(t)
	patient := newPatient()

	f.svc.now = func() time.Time { return monday0800.Add(2*time.Hour + 30*time.Minute) }

	next, err := f.svc.GetNextAvailableSlot(f.ctx, patient, f.doctor.ID)
	if err != nil {
		t.Fatalf("GetNextAvailableSlot: %v", err)
	}
	if next == nil || next.StartTime != NewClockTime(11, 0) {
		t.Fatalf("next = %+v, want 11:00", next)
	}

	if _, err := f.svc.CreateBookingRequest(f.ctx, patient, BookingInput{SlotID: slots[2].ID, ChiefComplaint: "fever"}); err != nil {
		t.Fatalf("CreateBookingRequest: %v", err)
	}
	next, _ = f.svc.GetNextAvailableSlot(f.ctx, patient, f.doctor.ID)
	if next == nil || next.StartTime != NewClockTime(12, 0) {
		t.Fatalf("next after booking = %+v, want 12:00", next)
	}

	f.svc.now = func() time.Time { return monday0800.Add(10 * time.Hour) }
	next, err = f.svc.GetNextAvailableSlot(f.ctx, patient, f.doctor.ID)
	if err != nil || next != nil {
		t.Errorf("expected no slot after hours, got %+v, %v", next, err)
	}
}

func TestGetNextAvailableSlot_SkipsSlotAlreadyStarted(t *testing.T) {
	f := newFixture(t)
	f.mondayHours(t)

	f.svc.now = func() time.Time { return monday0800.Add(time.Hour + 30*time.Second) }

	next, err := f.svc.GetNextAvailableSlot(f.ctx, newPatient(), f.doctor.ID)
	if err != nil {
		t.Fatalf("GetNextAvailableSlot: %v", err)
	}
	if next == nil || next.StartTime != NewClockTime(10, 0) {
		t.Fatalf("next = %+v, want 10:00", next)
	}
}

func TestGetDoctorSlots_DefaultRangeStartsTodayInScheduleLocation(t *testing.T) {
	f := newFixture(t)
	f.mondayHours(t)

	// 05:00 UTC on Tuesday is still Monday evening at UTC-10
	f.svc.loc = time.FixedZone("UTC-10", -10*60*60)
	f.svc.now = func() time.Time { return time.Date(2026, 10, 20, 5, 0, 0, 0, time.UTC) }

	slots, err := f.svc.GetDoctorSlots(f.ctx, f.doctor, f.doctor.ID, time.Time{}, time.Time{}, nil)
	if err != nil {
		t.Fatalf("GetDoctorSlots: %v", err)
	}
	if len(slots) != 8 {
		t.Fatalf("expected Monday's 8 slots in the default range, got %d", len(slots))
	}

	_, err = f.svc.GetAvailableSlots(f.ctx, newPatient(), f.doctor.ID, time.Time{}, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("end before default start: expected ErrInvalidRange, got %v", err)
	}
}

func TestBlockSlot_Visibility(t *testing.T) {
	f := newFixture(t)
	slots := f.mondayHours(t)
	patient := newPatient()

	blocked, err := f.svc.BlockSlot(f.ctx, f.doctor, slots[0].ID, "staff meeting")
	if err != nil {
		t.Fatalf("BlockSlot: %v", err)
	}
	if blocked.Status != SlotBlocked || blocked.BlockReason == nil || *blocked.BlockReason != "staff meeting" {
		t.Errorf("unexpected blocked slot: %+v", blocked)
	}

	avail, _ := f.svc.GetAvailableSlots(f.ctx, patient, f.doctor.ID, monday0800, monday0800)
	if len(avail) != 7 {
		t.Errorf("expected 7 available slots, got %d", len(avail))
	}
	for _, s := range avail {
		if s.ID == slots[0].ID {
			t.Error("blocked slot listed as available")
		}
	}

	_, err = f.svc.CreateBookingRequest(f.ctx, patient, BookingInput{SlotID: slots[0].ID, ChiefComplaint: "headache"})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("booking a blocked slot: expected ErrSlotUnavailable, got %v", err)
	}

	unblocked, err := f.svc.UnblockSlot(f.ctx, f.doctor, slots[0].ID)
	if err != nil {
		t.Fatalf("UnblockSlot: %v", err)
	}
	if unblocked.Status != SlotAvailable || unblocked.BlockReason != nil {
		t.Errorf("unexpected unblocked slot: %+v", unblocked)
	}

	if got := f.pub.types(); len(got) < 2 || got[len(got)-2] != events.SlotBlocked || got[len(got)-1] != events.SlotUnblocked {
		t.Errorf("unexpected events: %v", got)
	}
}

func TestBlockSlot_StateGuards(t *testing.T) {
	f := newFixture(t)
	slots := f.mondayHours(t)

	if _, err := f.svc.CreateBookingRequest(f.ctx, newPatient(), BookingInput{SlotID: slots[1].ID, ChiefComplaint: "checkup"}); err != nil {
		t.Fatalf("CreateBookingRequest: %v", err)
	}
	if _, err := f.svc.BlockSlot(f.ctx, f.doctor, slots[1].ID, "leave"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("blocking a booked slot: expected ErrInvalidState, got %v", err)
	}
	if _, err := f.svc.UnblockSlot(f.ctx, f.doctor, slots[2].ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("unblocking an available slot: expected ErrInvalidState, got %v", err)
	}
	if _, err := f.svc.BlockSlot(f.ctx, f.doctor, slots[2].ID, "   "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty reason: expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.svc.BlockSlot(f.ctx, f.doctor, uuid.New(), "leave"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown slot: expected ErrNotFound, got %v", err)
	}
}

// -- Authorization --

func TestAuthorization(t *testing.T) {
	f := newFixture(t)
	slots := f.mondayHours(t)
	patient := newPatient()
	otherDoctor := Caller{ID: uuid.New(), Role: RoleClinician}

	req, err := f.svc.CreateBookingRequest(f.ctx, patient, BookingInput{SlotID: slots[0].ID, ChiefComplaint: "back pain"})
	if err != nil {
		t.Fatalf("CreateBookingRequest: %v", err)
	}

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"patient sets working hours", func() error {
			_, err := f.svc.SetWorkingHours(f.ctx, patient, WorkingHoursRule{DoctorID: f.doctor.ID, StartTime: 0, EndTime: 60, SlotDurationMinutes: 30})
			return err
		}, ErrForbidden},
		{"other clinician sets working hours", func() error {
			_, err := f.svc.SetWorkingHours(f.ctx, otherDoctor, WorkingHoursRule{DoctorID: f.doctor.ID, StartTime: 0, EndTime: 60, SlotDurationMinutes: 30})
			return err
		}, ErrForbidden},
		{"other clinician generates", func() error {
			_, err := f.svc.GenerateSlots(f.ctx, otherDoctor, f.doctor.ID, 1)
			return err
		}, ErrForbidden},
		{"other clinician blocks", func() error {
			_, err := f.svc.BlockSlot(f.ctx, otherDoctor, slots[3].ID, "mine now")
			return err
		}, ErrForbidden},
		{"patient blocks unknown slot", func() error {
			_, err := f.svc.BlockSlot(f.ctx, patient, uuid.New(), "x")
			return err
		}, ErrForbidden},
		{"other clinician confirms", func() error {
			_, err := f.svc.ConfirmBookingRequest(f.ctx, otherDoctor, req.ID)
			return err
		}, ErrForbidden},
		{"other clinician rejects", func() error {
			_, err := f.svc.RejectBookingRequest(f.ctx, otherDoctor, req.ID, "no")
			return err
		}, ErrForbidden},
		{"patient confirms unknown request", func() error {
			_, err := f.svc.ConfirmBookingRequest(f.ctx, patient, uuid.New())
			return err
		}, ErrForbidden},
		{"clinician confirms unknown request", func() error {
			_, err := f.svc.ConfirmBookingRequest(f.ctx, f.doctor, uuid.New())
			return err
		}, ErrNotFound},
		{"clinician books", func() error {
			_, err := f.svc.CreateBookingRequest(f.ctx, f.doctor, BookingInput{SlotID: slots[4].ID, ChiefComplaint: "x"})
			return err
		}, ErrForbidden},
		{"other patient cancels", func() error {
			_, err := f.svc.CancelBookingRequest(f.ctx, newPatient(), req.ID)
			return err
		}, ErrForbidden},
		{"other clinician reads pending", func() error {
			_, err := f.svc.GetPendingRequests(f.ctx, otherDoctor, f.doctor.ID)
			return err
		}, ErrForbidden},
		{"patient reads history", func() error {
			_, err := f.svc.GetGenerationHistory(f.ctx, patient, f.doctor.ID, 5)
			return err
		}, ErrForbidden},
		{"anonymous books", func() error {
			_, err := f.svc.CreateBookingRequest(f.ctx, Caller{}, BookingInput{SlotID: slots[4].ID, ChiefComplaint: "x"})
			return err
		}, ErrUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	// nothing above may have changed the booked slot or the request
	if got := f.slot(t, slots[0].ID); got.Status != SlotBooked {
		t.Errorf("slot status = %s, want booked", got.Status)
	}
	pending, _ := f.svc.GetPendingRequests(f.ctx, f.doctor, f.doctor.ID)
	if len(pending) != 1 {
		t.Errorf("expected 1 pending request, got %d", len(pending))
	}
}

// A clinician acting on another clinician's ids gets NotFound for ids that
// do not exist and Forbidden for ids that do. Patients are refused before
// any lookup.
func TestAuthorization_LookupOrder(t *testing.T) {
	f := newFixture(t)
	slots := f.mondayHours(t)
	other := Caller{ID: uuid.New(), Role: RoleClinician}

	req, err := f.svc.CreateBookingRequest(f.ctx, newPatient(), BookingInput{SlotID: slots[0].ID, ChiefComplaint: "cough"})
	if err != nil {
		t.Fatalf("CreateBookingRequest: %v", err)
	}

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"block missing slot", func() error { _, err := f.svc.BlockSlot(f.ctx, other, uuid.New(), "x"); return err }, ErrNotFound},
		{"block existing slot", func() error { _, err := f.svc.BlockSlot(f.ctx, other, slots[1].ID, "x"); return err }, ErrForbidden},
		{"patient blocks missing slot", func() error { _, err := f.svc.BlockSlot(f.ctx, newPatient(), uuid.New(), "x"); return err }, ErrForbidden},
		{"confirm missing request", func() error { _, err := f.svc.ConfirmBookingRequest(f.ctx, other, uuid.New()); return err }, ErrNotFound},
		{"confirm existing request", func() error { _, err := f.svc.ConfirmBookingRequest(f.ctx, other, req.ID); return err }, ErrForbidden},
		{"patient confirms missing request", func() error { _, err := f.svc.ConfirmBookingRequest(f.ctx, newPatient(), uuid.New()); return err }, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}
