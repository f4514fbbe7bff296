package timeline

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medintel/medintel/internal/domain/prescription"
	"github.com/medintel/medintel/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/timeline", h.GetTimeline)
	api.POST("/timeline/generate-schedules", h.GenerateSchedules)
	api.GET("/timeline/schedules", h.GetSchedules)
	api.GET("/timeline/status", h.GetStatuses)
	api.PUT("/timeline/status/:scheduleId", h.UpdateStatus)
	api.GET("/timeline/conflicts", h.GetConflicts)
	api.PUT("/timeline/schedule/:scheduleId/meal-timing", h.UpdateMealTiming)
	api.GET("/timeline/next-dose/:medicineId", h.GetNextDose)
	api.GET("/frequency/parse", h.ParseFrequency)
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrScheduleNotFound),
		errors.Is(err, prescription.ErrPrescriptionNotFound),
		errors.Is(err, prescription.ErrMedicineNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, prescription.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

func userID(c echo.Context) (string, error) {
	uid := auth.UserIDFromContext(c.Request().Context())
	if uid == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "no user in request")
	}
	return uid, nil
}

func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// parseDate accepts YYYY-MM-DD in loc or an RFC 3339 timestamp; callers use
// the timestamp's calendar day in loc.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func (h *Handler) dateQuery(c echo.Context, required bool) (time.Time, error) {
	raw := c.QueryParam("date")
	if raw == "" {
		if required {
			return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "date parameter is required")
		}
		return time.Now().In(h.svc.Location()), nil
	}
	t, err := parseDate(raw, h.svc.Location())
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
	}
	return t, nil
}

type generateRequest struct {
	PrescriptionID string `json:"prescription_id"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
}

// GenerateSchedules rebuilds the schedules of one prescription. An RFC 3339
// start_date or end_date with an offset is taken as its calendar day in the
// server timezone, which can differ from the day written.
func (h *Handler) GenerateSchedules(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rxID, err := uuid.Parse(req.PrescriptionID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid prescription_id")
	}

	// Unreadable dates fall back like absent ones; generation never fails.
	var notes []string
	optional := func(field, raw string) *time.Time {
		if raw == "" {
			return nil
		}
		t, err := parseDate(raw, h.svc.Location())
		if err != nil {
			notes = append(notes, "ignoring unreadable "+field+" "+raw)
			return nil
		}
		return &t
	}
	start := optional("start_date", req.StartDate)
	end := optional("end_date", req.EndDate)

	out, err := h.svc.GenerateSchedules(c.Request().Context(), uid, rxID, start, end)
	if err != nil {
		return toHTTPError(err)
	}
	if len(notes) > 0 {
		out.Warnings = append(notes, out.Warnings...)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetSchedules(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	date, err := h.dateQuery(c, true)
	if err != nil {
		return err
	}
	events, err := h.svc.SchedulesForDate(c.Request().Context(), uid, date)
	if err != nil {
		return toHTTPError(err)
	}
	if events == nil {
		events = []*DosingEvent{}
	}
	return c.JSON(http.StatusOK, events)
}

func (h *Handler) GetStatuses(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	date, err := h.dateQuery(c, true)
	if err != nil {
		return err
	}
	statuses, err := h.svc.StatusesForDate(c.Request().Context(), uid, date)
	if err != nil {
		return toHTTPError(err)
	}
	if statuses == nil {
		statuses = []*DosingStatus{}
	}
	return c.JSON(http.StatusOK, statuses)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "scheduleId")
	if err != nil {
		return err
	}
	var req StatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	st, err := h.svc.RecordStatus(c.Request().Context(), uid, id, req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) GetConflicts(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	conflicts, err := h.svc.Conflicts(c.Request().Context(), uid)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, conflicts)
}

func (h *Handler) UpdateMealTiming(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "scheduleId")
	if err != nil {
		return err
	}
	var req struct {
		MealTiming string `json:"meal_timing"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.UpdateMealTiming(c.Request().Context(), uid, id, req.MealTiming); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Meal timing updated successfully",
	})
}

// GetTimeline defaults to today when no date is given.
func (h *Handler) GetTimeline(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	date, err := h.dateQuery(c, false)
	if err != nil {
		return err
	}
	day, err := h.svc.Timeline(c.Request().Context(), uid, date)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, day)
}

func (h *Handler) GetNextDose(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "medicineId")
	if err != nil {
		return err
	}
	lastTaken, err := time.Parse(time.RFC3339, c.QueryParam("last_taken"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "last_taken must be an RFC 3339 timestamp")
	}
	out, err := h.svc.NextDose(c.Request().Context(), uid, id, lastTaken)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) ParseFrequency(c echo.Context) error {
	text := c.QueryParam("text")
	if strings.TrimSpace(text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text parameter is required")
	}
	return c.JSON(http.StatusOK, Parse(text))
}
