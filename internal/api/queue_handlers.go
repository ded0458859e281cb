package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pulseone/appointments-service/internal/booking"
)

type checkInRequest struct {
	StaffID string `json:"staff_id"`
}

func checkInHandler(queue *booking.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}
		var req checkInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		status, err := queue.CheckIn(r.Context(), id, req.StaffID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toQueueStatusResponse(status))
	}
}

type callNextRequest struct {
	CalledBy string `json:"called_by"`
}

func callNextHandler(queue *booking.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID := chi.URLParam(r, "doctorId")
		var req callNextRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		status, err := queue.CallNext(r.Context(), doctorID, req.CalledBy)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if status == nil {
			writeJSON(w, http.StatusOK, map[string]any{"called": false})
			return
		}
		writeJSON(w, http.StatusOK, toQueueStatusResponse(status))
	}
}

func startConsultationHandler(queue *booking.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}
		status, err := queue.StartConsultation(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toQueueStatusResponse(status))
	}
}

type completeConsultationRequest struct {
	DoctorID string `json:"doctor_id"`
}

func completeConsultationHandler(queue *booking.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}
		var req completeConsultationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		status, err := queue.CompleteConsultation(r.Context(), id, req.DoctorID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toQueueStatusResponse(status))
	}
}

type noShowRequest struct {
	ActorID string `json:"actor_id"`
}

func noShowHandler(queue *booking.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}
		var req noShowRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		status, err := queue.MarkNoShow(r.Context(), id, req.ActorID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toQueueStatusResponse(status))
	}
}

func positionHandler(queue *booking.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}
		status, err := queue.Position(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toQueueStatusResponse(status))
	}
}

func doctorQueueHandler(queue *booking.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID := chi.URLParam(r, "doctorId")

		date := time.Now()
		if raw := r.URL.Query().Get("date"); raw != "" {
			parsed, ok := parseDate(raw)
			if !ok {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}
			date = parsed
		}

		dq, err := queue.DoctorQueue(r.Context(), doctorID, date)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := DoctorQueueResponse{
			DoctorID:           dq.DoctorID,
			Date:               dq.Date.Format(dateLayout),
			Total:              dq.Total,
			PendingCheckIn:     dq.PendingCheckIn,
			Waiting:            dq.Waiting,
			InConsultation:     dq.InConsultation,
			Completed:          dq.Completed,
			NoShows:            dq.NoShows,
			Cancelled:          dq.Cancelled,
			CurrentQueueNumber: dq.CurrentQueueNumber,
			NextQueueNumber:    dq.NextQueueNumber,
			Appointments:       make([]AppointmentResponse, 0, len(dq.Appointments)),
		}
		for i := range dq.Appointments {
			resp.Appointments = append(resp.Appointments, toAppointmentResponse(&dq.Appointments[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
