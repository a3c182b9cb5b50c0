package api

type WorkingHoursRequest struct {
	DayOfWeek           int    `json:"day_of_week"`
	StartTime           string `json:"start_time"`
	EndTime             string `json:"end_time"`
	SlotDurationMinutes int    `json:"slot_duration_minutes"`
	BufferMinutes       int    `json:"buffer_minutes"`
}

type GenerateSlotsRequest struct {
	Days int `json:"days"`
}

type BlockSlotRequest struct {
	Reason string `json:"reason"`
}

type CreateBookingRequest struct {
	SlotID         string  `json:"slot_id"`
	ChiefComplaint string  `json:"chief_complaint"`
	Symptoms       *string `json:"symptoms,omitempty"`
}

type RejectBookingRequest struct {
	Reason string `json:"reason"`
}

type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newList[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
