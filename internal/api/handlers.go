package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/hackgods/clinician-scheduling/internal/scheduling"
)

// Working hours

func setWorkingHoursHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		doctorID, ok := uuidParam(w, r, "doctor_id")
		if !ok {
			return
		}
		// ownership is checked before the body is parsed
		if err := caller.RequireClinician(doctorID); err != nil {
			writeServiceError(w, r, err)
			return
		}

		var req WorkingHoursRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		start, err := scheduling.ParseClockTime(req.StartTime)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		end, err := scheduling.ParseClockTime(req.EndTime)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		rule, err := svc.SetWorkingHours(r.Context(), caller, scheduling.WorkingHoursRule{
			DoctorID:            doctorID,
			DayOfWeek:           req.DayOfWeek,
			StartTime:           start,
			EndTime:             end,
			SlotDurationMinutes: req.SlotDurationMinutes,
			BufferMinutes:       req.BufferMinutes,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rule)
	}
}

func getWorkingHoursHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		doctorID, ok := uuidParam(w, r, "doctor_id")
		if !ok {
			return
		}

		rules, err := svc.GetWorkingHours(r.Context(), caller, doctorID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newList(rules))
	}
}

// Slot generation

func generateSlotsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		doctorID, ok := uuidParam(w, r, "doctor_id")
		if !ok {
			return
		}

		var req GenerateSlotsRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		run, err := svc.GenerateSlots(r.Context(), caller, doctorID, req.Days)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, run)
	}
}

func getDoctorSlotsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		doctorID, ok := uuidParam(w, r, "doctor_id")
		if !ok {
			return
		}
		start, end, err := dateRange(r)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		slots, err := svc.GetDoctorSlots(r.Context(), caller, doctorID, start, end, statusFilter(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newList(slots))
	}
}

func getGenerationHistoryHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		doctorID, ok := uuidParam(w, r, "doctor_id")
		if !ok {
			return
		}

		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
				return
			}
			limit = n
		}

		runs, err := svc.GetGenerationHistory(r.Context(), caller, doctorID, limit)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newList(runs))
	}
}

// Slot registry

func getAvailableSlotsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		doctorID, ok := uuidParam(w, r, "doctor_id")
		if !ok {
			return
		}
		start, end, err := dateRange(r)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		slots, err := svc.GetAvailableSlots(r.Context(), caller, doctorID, start, end)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newList(slots))
	}
}

func getNextAvailableSlotHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		doctorID, ok := uuidParam(w, r, "doctor_id")
		if !ok {
			return
		}

		slot, err := svc.GetNextAvailableSlot(r.Context(), caller, doctorID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if slot == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, slot)
	}
}

func blockSlotHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		slotID, ok := uuidParam(w, r, "slot_id")
		if !ok {
			return
		}

		var req BlockSlotRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		slot, err := svc.BlockSlot(r.Context(), caller, slotID, req.Reason)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, slot)
	}
}

func unblockSlotHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		slotID, ok := uuidParam(w, r, "slot_id")
		if !ok {
			return
		}

		slot, err := svc.UnblockSlot(r.Context(), caller, slotID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, slot)
	}
}

// Booking workflow

func createBookingRequestHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}

		var req CreateBookingRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
			return
		}

		created, err := svc.CreateBookingRequest(r.Context(), caller, scheduling.BookingInput{
			SlotID:         slotID,
			ChiefComplaint: req.ChiefComplaint,
			Symptoms:       req.Symptoms,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func getPendingRequestsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		doctorID, ok := uuidParam(w, r, "doctor_id")
		if !ok {
			return
		}

		reqs, err := svc.GetPendingRequests(r.Context(), caller, doctorID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newList(reqs))
	}
}

func getMyBookingRequestsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}

		reqs, err := svc.GetMyBookingRequests(r.Context(), caller)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newList(reqs))
	}
}

func confirmBookingRequestHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		requestID, ok := uuidParam(w, r, "request_id")
		if !ok {
			return
		}

		decision, err := svc.ConfirmBookingRequest(r.Context(), caller, requestID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, decision)
	}
}

func rejectBookingRequestHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		requestID, ok := uuidParam(w, r, "request_id")
		if !ok {
			return
		}

		var req RejectBookingRequest
		if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
			return
		}

		decision, err := svc.RejectBookingRequest(r.Context(), caller, requestID, req.Reason)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, decision)
	}
}

func cancelBookingRequestHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		requestID, ok := uuidParam(w, r, "request_id")
		if !ok {
			return
		}

		decision, err := svc.CancelBookingRequest(r.Context(), caller, requestID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, decision)
	}
}

func getAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "appointment_id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), caller, id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}
