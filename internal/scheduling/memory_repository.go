package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type slotKey struct {
	doctorID uuid.UUID
	date     time.Time
	start    ClockTime
}

type ruleKey struct {
	doctorID  uuid.UUID
	dayOfWeek int
}

type memState struct {
	mu           sync.Mutex
	txMu         sync.Mutex
	rules        map[ruleKey]WorkingHoursRule
	slots        map[uuid.UUID]CalendarSlot
	slotIndex    map[slotKey]uuid.UUID
	requests     map[uuid.UUID]BookingRequest
	appointments map[uuid.UUID]Appointment
	runs         []SlotGenerationRun
	now          func() time.Time
}

// MemoryRepository keeps everything in process. Transactions are serialized
// and roll back by restoring a snapshot. Used for local runs and tests.
type MemoryRepository struct {
	st   *memState
	inTx bool
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{st: &memState{
		rules:        make(map[ruleKey]WorkingHoursRule),
		slots:        make(map[uuid.UUID]CalendarSlot),
		slotIndex:    make(map[slotKey]uuid.UUID),
		requests:     make(map[uuid.UUID]BookingRequest),
		appointments: make(map[uuid.UUID]Appointment),
		now:          time.Now,
	}}
}

type memSnapshot struct {
	rules        map[ruleKey]WorkingHoursRule
	slots        map[uuid.UUID]CalendarSlot
	slotIndex    map[slotKey]uuid.UUID
	requests     map[uuid.UUID]BookingRequest
	appointments map[uuid.UUID]Appointment
	runs         []SlotGenerationRun
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (st *memState) snapshot() memSnapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return memSnapshot{
		rules:        cloneMap(st.rules),
		slots:        cloneMap(st.slots),
		slotIndex:    cloneMap(st.slotIndex),
		requests:     cloneMap(st.requests),
		appointments: cloneMap(st.appointments),
		runs:         append([]SlotGenerationRun(nil), st.runs...),
	}
}

func (st *memState) restore(s memSnapshot) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.rules = s.rules
	st.slots = s.slots
	st.slotIndex = s.slotIndex
	st.requests = s.requests
	st.appointments = s.appointments
	st.runs = s.runs
}

func (r *MemoryRepository) WithinTx(ctx context.Context, fn func(tx Repository) error) error {
	if r.inTx {
		return fn(r)
	}

	r.st.txMu.Lock()
	defer r.st.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snap := r.st.snapshot()
	if err := fn(&MemoryRepository{st: r.st, inTx: true}); err != nil {
		r.st.restore(snap)
		return err
	}
	return nil
}

// writeLock keeps writes made outside a transaction from interleaving with
// one that may still roll back.
func (r *MemoryRepository) writeLock() func() {
	if r.inTx {
		return func() {}
	}
	r.st.txMu.Lock()
	return r.st.txMu.Unlock
}

// Working hours

func (r *MemoryRepository) UpsertWorkingHours(_ context.Context, rule WorkingHoursRule) (*WorkingHoursRule, error) {
	defer r.writeLock()()

	st := r.st
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	key := ruleKey{rule.DoctorID, rule.DayOfWeek}
	if existing, ok := st.rules[key]; ok {
		rule.ID = existing.ID
		rule.CreatedAt = existing.CreatedAt
	} else {
		rule.ID = uuid.New()
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	st.rules[key] = rule
	return &rule, nil
}

func (r *MemoryRepository) ListWorkingHours(_ context.Context, doctorID uuid.UUID) ([]WorkingHoursRule, error) {
	st := r.st
	st.mu.Lock()
	defer st.mu.Unlock()

	var result []WorkingHoursRule
	for _, rule := range st.rules {
		if rule.DoctorID == doctorID {
			result = append(result, rule)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DayOfWeek != result[j].DayOfWeek {
			return result[i].DayOfWeek < result[j].DayOfWeek
		}
		return result[i].StartTime < result[j].StartTime
	})
	return result, nil
}

func (r *MemoryRepository) ListDoctorsWithWorkingHours(_ context.Context) ([]uuid.UUID, error) {
	st := r.st
	st.mu.Lock()
	defer st.mu.Unlock()

	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for key := range st.rules {
		if !seen[key.doctorID] {
			seen[key.doctorID] = true
			ids = append(ids, key.doctorID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// Slots

func (r *MemoryRepository) InsertSlotIfAbsent(_ context.Context, slot CalendarSlot) (bool, error) {
	defer r.writeLock()()

	st := r.st
	st.mu.Lock()
	defer st.mu.Unlock()

	key := slotKey{slot.DoctorID, slot.Date, slot.StartTime}
	if _, exists := st.slotIndex[key]; exists {
		return false, nil
	}

	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}
	now := st.now()
	slot.Status = SlotAvailable
	slot.PatientID = nil
	slot.BlockReason = nil
	slot.Version = 1
	slot.CreatedAt = now
	slot.UpdatedAt = now

	st.slots[slot.ID] = slot
	st.slotIndex[key] = slot.ID
	return true, nil
}

func (r *MemoryRepository) GetSlotByID(_ context.Context, id uuid.UUID) (*CalendarSlot, error) {
	st := r.st
	st.mu.Lock()
	defer st.mu.Unlock()

	slot, ok := st.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &slot, nil
}

func slotBefore(a, b CalendarSlot) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.StartTime < b.StartTime
}

func (r *MemoryRepository) ListSlots(_ context.Context, q SlotQuery) ([]CalendarSlot, error) {
	st := r.st
	st.mu.Lock()
	defer st.mu.Unlock()

	wanted := make(map[SlotStatus]bool, len(q.Statuses))
	for _, s := range q.Statuses {
		wanted[s] = true
	}

	var result []CalendarSlot
	for _, slot := range st.slots {
		if slot.DoctorID != q.DoctorID {
			continue
		}
		if slot.Date.Before(q.StartDate) || slot.Date.After(q.EndDate) {
			continue
		}
		if len(wanted) > 0 && !wanted[slot.Status] {
			continue
		}
		result = append(result, slot)
	}
	sort.Slice(result, func(i, j int) bool { return slotBefore(result[i], result[j]) })
	return result, nil
}

func (r *MemoryRepository) NextAvailableSlot(_ context.Context, doctorID uuid.UUID, date time.Time, from ClockTime) (*CalendarSlot, error) {
	st := r.st
	st.mu.Lock()
	defer st.mu.Unlock()

	var best *CalendarSlot
	for _, slot := range st.slots {
		if slot.DoctorID != doctorID || slot.Status != SlotAvailable {
			continue
		}
		if slot.Date.Before(date) || (slot.Date.Equal(date) && slot.StartTime < from) {
			continue
		}
		if best == nil || slotBefore(slot, *best) {
			s := slot
			best = &s
		}
	}
	if best == nil {
		return nil, ErrSlotNotFound
	}
	return best, nil
}

func (r *MemoryRepository) TransitionSlot(_ context.Context, t SlotTransition) (*CalendarSlot, error) {
	defer r.writeLock()()

	st := r.st
	st.mu.Lock()
	defer st.mu.Unlock()

	slot, ok := st.slots[t.SlotID]
	if !ok || slot.Status != t.From || (t.Version != 0 && slot.Version != t.Version) {
		return nil, ErrStaleState
	}

	slot.Status = t.To
	slot.PatientID = t.PatientID
	slot.BlockReason = t.BlockReason
	slot.Version++
	slot.UpdatedAt = st.now()
	st.slots[slot.ID] = slot
	return &slot, nil
}

// Booking requests

func (r *MemoryRepository) InsertBookingRequest(_ context.Context, req BookingRequest) (*BookingRequest, error) {
	defer r.writeLock()()

	st := r.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.Status = RequestPending
	req.CreatedAt = st.now()
	st.requests[req.ID] = req
	return &req, nil
}

func (r *MemoryRepository) GetBookingRequestByID(_ context.Context, id uuid.UUID) (*BookingRequest, error) {
	st := r.st
	st.mu.Lock()
	defer st.mu.Unlock()

	req, ok := st.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return &req, nil
}

func (r *MemoryRepository) listRequests(match func(BookingRequest) bool) []BookingRequest {
	st := r.st
	st.mu.Lock()
	defer st.mu.Unlock()

	var result []BookingRequest
	for _, req := range st.requests {
		if match(req) {
			result = append(result, req)
		}
	}
	return result
}

func (r *MemoryRepository) ListBookingRequestsByDoctor(_ context.Context, doctorID uuid.UUID, status RequestStatus) ([]BookingRequest, error) {
	result := r.listRequests(func(b BookingRequest) bool {
		return b.DoctorID == doctorID && b.Status == status
	})
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *MemoryRepository) ListBookingRequestsByPatient(_ context.Context, patientID uuid.UUID) ([]BookingRequest, error) {
	result := r.listRequests(func(b BookingRequest) bool { return b.PatientID == patientID })
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (r *MemoryRepository) ResolveBookingRequest(_ context.Context, res RequestResolution) (*BookingRequest, error) {
	defer r.writeLock()()

	st := r.st
	st.mu.Lock()
	defer st.mu.Unlock()

	req, ok := st.requests[res.RequestID]
	if !ok || req.Status != RequestPending {
		return nil, ErrStaleState
	}

	resolvedAt := res.ResolvedAt
	req.Status = res.To
	req.ResolvedAt = &resolvedAt
	req.Reason = res.Reason
	req.AppointmentID = res.AppointmentID
	st.requests[req.ID] = req
	return &req, nil
}

// Appointments

func (r *MemoryRepository) InsertAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	defer r.writeLock()()

	st := r.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = st.now()
	st.appointments[a.ID] = a
	return &a, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	st := r.st
	st.mu.Lock()
	defer st.mu.Unlock()

	a, ok := st.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

// Generation audit log

func (r *MemoryRepository) InsertGenerationRun(_ context.Context, run SlotGenerationRun) error {
	defer r.writeLock()()

	st := r.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.GeneratedAt.IsZero() {
		run.GeneratedAt = st.now()
	}
	st.runs = append(st.runs, run)
	return nil
}

func (r *MemoryRepository) ListGenerationRuns(_ context.Context, doctorID uuid.UUID, limit int) ([]SlotGenerationRun, error) {
	st := r.st
	st.mu.Lock()
	defer st.mu.Unlock()

	var result []SlotGenerationRun
	for i := len(st.runs) - 1; i >= 0 && len(result) < limit; i-- {
		if st.runs[i].DoctorID == doctorID {
			result = append(result, st.runs[i])
		}
	}
	return result, nil
}
