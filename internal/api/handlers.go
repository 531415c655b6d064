package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mindwell/session-scheduling/internal/config"
	redisclient "github.com/mindwell/session-scheduling/internal/redis"
	"github.com/mindwell/session-scheduling/internal/schedule"
	"github.com/mindwell/session-scheduling/internal/session"
)

func getSlotsHandler(engine *schedule.Engine, cfg config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		therapistID, ok := parseUUIDParam(w, r, "therapistID")
		if !ok {
			return
		}

		date, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("date"), cfg.Location)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted YYYY-MM-DD")
			return
		}

		duration := queryInt(r, "duration", 60)
		step := queryInt(r, "step", cfg.DefaultStepMinutes)

		slots, err := engine.ComputeSlots(r.Context(), therapistID, date, duration, step)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponses(slots))
	}
}

func getScheduleHandler(projector *schedule.Projector, cfg config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		therapistID, ok := parseUUIDParam(w, r, "therapistID")
		if !ok {
			return
		}

		start, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("start"), cfg.Location)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_date", "start must be formatted YYYY-MM-DD")
			return
		}
		end, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("end"), cfg.Location)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end_date", "end must be formatted YYYY-MM-DD")
			return
		}

		duration := queryInt(r, "duration", 60)

		summaries, err := projector.Project(r.Context(), therapistID, start, end, duration)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toSummaryResponses(summaries))
	}
}

func listSessionsHandler(coord *session.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		therapistID, ok := parseUUIDParam(w, r, "therapistID")
		if !ok {
			return
		}

		limit := queryInt(r, "limit", 20)
		offset := queryInt(r, "offset", 0)

		appointments, err := coord.ListSessionsByTherapist(r.Context(), therapistID, limit, offset)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		out := make([]AppointmentResponse, 0, len(appointments))
		for i := range appointments {
			out = append(out, toAppointmentResponse(&appointments[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func createSessionHandler(coord *session.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		therapistID, err := uuid.Parse(req.TherapistID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_therapist_id", "therapist_id must be a valid UUID")
			return
		}

		roster := make([]session.RosterEntry, 0, len(req.Roster))
		for _, entry := range req.Roster {
			userID, err := uuid.Parse(entry.UserID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_roster_user_id", "roster user_id must be a valid UUID")
				return
			}
			roster = append(roster, session.RosterEntry{
				UserID: userID,
				Role:   session.ParticipantRole(entry.Role),
			})
		}

		appt, err := coord.CreateSession(r.Context(), session.CreateSessionParams{
			SessionType:     session.SessionType(req.SessionType),
			TherapistID:     therapistID,
			ScheduledAt:     req.ScheduledAt,
			DurationMinutes: req.DurationMinutes,
			Roster:          roster,
			Metadata: session.Metadata{
				Title:       req.Title,
				Description: req.Description,
				Notes:       req.Notes,
			},
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getSessionHandler(coord *session.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		detail, err := coord.GetSession(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := SessionDetailResponse{
			AppointmentResponse: toAppointmentResponse(&detail.Appointment),
			Participants:        toParticipantResponses(detail.Participants),
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func confirmSessionHandler(coord *session.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := coord.ConfirmSession(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelSessionHandler(coord *session.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		var req CancelSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		cancelledBy, err := uuid.Parse(req.CancelledBy)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_cancelled_by", "cancelled_by must be a valid UUID")
			return
		}

		appt, err := coord.CancelSession(r.Context(), id, req.Reason, cancelledBy)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func addParticipantHandler(coord *session.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		var req AddParticipantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "user_id must be a valid UUID")
			return
		}

		p, err := coord.AddParticipant(r.Context(), id, userID, session.ParticipantRole(req.Role))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toParticipantResponse(p))
	}
}

func removeParticipantHandler(coord *session.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}
		userID, ok := parseUUIDParam(w, r, "userID")
		if !ok {
			return
		}

		removed, err := coord.RemoveParticipant(r.Context(), id, userID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, RemovedResponse{Removed: removed})
	}
}

func confirmParticipantHandler(coord *session.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}
		userID, ok := parseUUIDParam(w, r, "userID")
		if !ok {
			return
		}

		p, err := coord.ConfirmParticipant(r.Context(), id, userID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toParticipantResponse(p))
	}
}

func declineParticipantHandler(coord *session.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}
		userID, ok := parseUUIDParam(w, r, "userID")
		if !ok {
			return
		}

		p, err := coord.DeclineParticipant(r.Context(), id, userID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toParticipantResponse(p))
	}
}

func markAttendanceHandler(coord *session.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}
		userID, ok := parseUUIDParam(w, r, "userID")
		if !ok {
			return
		}

		var req AttendanceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		p, err := coord.MarkAttendance(r.Context(), id, userID, req.Attended)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toParticipantResponse(p))
	}
}

func getParticipantsHandler(coord *session.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		participants, err := coord.GetParticipants(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toParticipantResponses(participants))
	}
}

func getStatsHandler(coord *session.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		stats, err := coord.GetStats(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, StatsResponse{
			Invited:   stats.Invited,
			Confirmed: stats.Confirmed,
			Declined:  stats.Declined,
			Attended:  stats.Attended,
			NoShow:    stats.NoShow,
			Total:     stats.Total,
		})
	}
}

// handleServiceError maps the core error taxonomy onto HTTP statuses.
func handleServiceError(w http.ResponseWriter, err error) {
	var ruleErr *session.RuleError

	switch {
	case errors.Is(err, schedule.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, schedule.ErrRangeTooLarge):
		writeError(w, http.StatusBadRequest, "range_too_large", err.Error())
	case errors.As(err, &ruleErr):
		writeError(w, http.StatusUnprocessableEntity, "validation_error", ruleErr.Rule)
	case errors.Is(err, session.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, session.ErrParticipantNotFound):
		writeError(w, http.StatusNotFound, "participant_not_found", err.Error())
	case errors.Is(err, session.ErrParticipantExists):
		writeError(w, http.StatusConflict, "participant_exists", err.Error())
	case errors.Is(err, session.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, session.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", "slot was booked by a concurrent request, please refresh and retry")
	case errors.Is(err, session.ErrInvalidOperation):
		writeError(w, http.StatusConflict, "invalid_operation", err.Error())
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "session_busy", "session is being modified by another request, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
