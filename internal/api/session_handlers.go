package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pulseone/appointments-service/internal/booking"
)

func sessionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_session_id", "id must be an integer")
		return 0, false
	}
	return id, true
}

func createSessionHandler(sessions *booking.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.DayOfWeek < 0 || req.DayOfWeek > 6 {
			writeError(w, http.StatusBadRequest, "invalid_day_of_week", "day_of_week must be 0 (Sunday) through 6 (Saturday)")
			return
		}
		start, err := booking.ParseTimeOfDay(req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be HH:MM")
			return
		}
		end, err := booking.ParseTimeOfDay(req.EndTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end_time", "end_time must be HH:MM")
			return
		}
		effectiveFrom, ok := parseDate(req.EffectiveFrom)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_date", "effective_from must be YYYY-MM-DD")
			return
		}

		create := booking.CreateSessionRequest{
			DoctorID:            req.DoctorID,
			ClinicID:            req.ClinicID,
			DayOfWeek:           time.Weekday(req.DayOfWeek),
			StartTime:           start,
			EndTime:             end,
			ServiceMode:         booking.ServiceMode(req.ServiceMode),
			MaxQueueSize:        req.MaxQueueSize,
			ConsultationMinutes: req.ConsultationMinutes,
			EffectiveFrom:       effectiveFrom,
		}
		if req.EffectiveUntil != "" {
			until, ok := parseDate(req.EffectiveUntil)
			if !ok {
				writeError(w, http.StatusBadRequest, "invalid_date", "effective_until must be YYYY-MM-DD")
				return
			}
			create.EffectiveUntil = &until
		}

		created, err := sessions.Create(r.Context(), create)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toSessionResponse(created))
	}
}

func getSessionHandler(sessions *booking.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(w, r)
		if !ok {
			return
		}
		session, err := sessions.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionResponse(session))
	}
}

func updateSessionHandler(sessions *booking.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(w, r)
		if !ok {
			return
		}
		var req UpdateSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		update := booking.UpdateSessionRequest{
			ClinicID:            req.ClinicID,
			MaxQueueSize:        req.MaxQueueSize,
			ConsultationMinutes: req.ConsultationMinutes,
		}
		if req.DayOfWeek != nil {
			if *req.DayOfWeek < 0 || *req.DayOfWeek > 6 {
				writeError(w, http.StatusBadRequest, "invalid_day_of_week", "day_of_week must be 0 (Sunday) through 6 (Saturday)")
				return
			}
			day := time.Weekday(*req.DayOfWeek)
			update.DayOfWeek = &day
		}
		if req.StartTime != nil {
			start, err := booking.ParseTimeOfDay(*req.StartTime)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be HH:MM")
				return
			}
			update.StartTime = &start
		}
		if req.EndTime != nil {
			end, err := booking.ParseTimeOfDay(*req.EndTime)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_end_time", "end_time must be HH:MM")
				return
			}
			update.EndTime = &end
		}
		if req.EffectiveUntil != nil {
			until, ok := parseDate(*req.EffectiveUntil)
			if !ok {
				writeError(w, http.StatusBadRequest, "invalid_date", "effective_until must be YYYY-MM-DD")
				return
			}
			update.EffectiveUntil = &until
		}

		updated, err := sessions.Update(r.Context(), id, update)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionResponse(updated))
	}
}

func deactivateSessionHandler(sessions *booking.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(w, r)
		if !ok {
			return
		}
		deactivated, err := sessions.Deactivate(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionResponse(deactivated))
	}
}

func listDoctorSessionsHandler(sessions *booking.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID := chi.URLParam(r, "id")
		list, err := sessions.ListByDoctor(r.Context(), doctorID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		out := make([]SessionResponse, 0, len(list))
		for i := range list {
			out = append(out, toSessionResponse(&list[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func createOverrideHandler(sessions *booking.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(w, r)
		if !ok {
			return
		}
		var req CreateOverrideRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		date, ok := parseDate(req.Date)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		create := booking.CreateOverrideRequest{
			SessionID:    id,
			Date:         date,
			Cancelled:    req.Cancelled,
			MaxQueueSize: req.MaxQueueSize,
			Reason:       req.Reason,
		}
		if req.StartTime != nil {
			start, err := booking.ParseTimeOfDay(*req.StartTime)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be HH:MM")
				return
			}
			create.StartTime = &start
		}
		if req.EndTime != nil {
			end, err := booking.ParseTimeOfDay(*req.EndTime)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_end_time", "end_time must be HH:MM")
				return
			}
			create.EndTime = &end
		}

		created, err := sessions.CreateOverride(r.Context(), create)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toOverrideResponse(created))
	}
}

func sessionAvailabilityHandler(sessions *booking.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(w, r)
		if !ok {
			return
		}
		date, ok := parseDate(r.URL.Query().Get("date"))
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_date", "date query parameter must be YYYY-MM-DD")
			return
		}

		avail, err := sessions.Availability(r.Context(), id, date)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			SessionID:           avail.SessionID,
			Date:                avail.Resolved.Date.Format(dateLayout),
			StartTime:           avail.Resolved.StartTime.String(),
			EndTime:             avail.Resolved.EndTime.String(),
			MaxQueueSize:        avail.Resolved.MaxQueueSize,
			ConsultationMinutes: avail.Resolved.ConsultationMinutes,
			Booked:              avail.Booked,
			Remaining:           avail.Remaining,
		})
	}
}

func doctorCalendarHandler(sessions *booking.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID := chi.URLParam(r, "id")
		days, _ := strconv.Atoi(r.URL.Query().Get("days"))

		calendar, err := sessions.Calendar(r.Context(), doctorID, days)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		out := make([]CalendarDayResponse, 0, len(calendar))
		for _, day := range calendar {
			resp := CalendarDayResponse{
				Date:      day.Date.Format(dateLayout),
				DayOfWeek: day.DayOfWeek.String(),
				Available: day.Available,
				Slots:     make([]CalendarSlotResponse, 0, len(day.Slots)),
			}
			for _, slot := range day.Slots {
				resp.Slots = append(resp.Slots, CalendarSlotResponse{
					SessionID:   slot.SessionID,
					StartTime:   slot.StartTime.String(),
					EndTime:     slot.EndTime.String(),
					ServiceMode: string(slot.ServiceMode),
					Available:   slot.Available,
					Total:       slot.Total,
				})
			}
			out = append(out, resp)
		}
		writeJSON(w, http.StatusOK, out)
	}
}
