package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/standort-workflow/internal/application/service"
	"github.com/garyjia/standort-workflow/internal/application/workflow"
	"github.com/garyjia/standort-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/standort-workflow/internal/domain/workflow"
)

// ActorHeader carries the acting user when the body does not name one
const ActorHeader = "X-Actor"

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps        Deps
	defaultDays int
	logger      Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Deps, defaultDays int, logger Logger) *Handlers {
	return &Handlers{
		deps:        deps,
		defaultDays: defaultDays,
		logger:      logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool                  `json:"success"`
	Data    interface{}           `json:"data,omitempty"`
	Error   string                `json:"error,omitempty"`
	Fields  []domainwf.FieldError `json:"fields,omitempty"`
}

// Date accepts "2006-01-02" or RFC 3339 in JSON bodies
type Date struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
}

func (d *Date) ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

// CaptureRequest is the body of POST /api/locations
type CaptureRequest struct {
	Erfasser         string   `json:"erfasser"`
	Datum            Date     `json:"datum"`
	Standort         string   `json:"standort"`
	Stadt            string   `json:"stadt"`
	Lat              float64  `json:"lat"`
	Lng              float64  `json:"lng"`
	Leistungswert    *float64 `json:"leistungswert"`
	Eigentuemer      string   `json:"eigentuemer"`
	Umruestung       bool     `json:"umruestung"`
	AlteNummer       string   `json:"alte_nummer"`
	Seiten           string   `json:"seiten"`
	Vermarktungsform string   `json:"vermarktungsform"`
	Actor            string   `json:"actor"`
	Comment          string   `json:"comment"`
}

// FieldsRequest carries supplementary fields of a decision
type FieldsRequest struct {
	BauantragDatum  *Date   `json:"bauantrag_datum"`
	PlanDate        *Date   `json:"plan_date"`
	IstDate         *Date   `json:"ist_date"`
	BuildStatus     *string `json:"build_status"`
	Contractor      *string `json:"contractor"`
	PowerConnection *string `json:"power_connection"`
	CompletionDate  *Date   `json:"completion_date"`
	FinalInspection *Date   `json:"final_inspection"`
	NetworkID       *string `json:"network_id"`
	DMSID           *string `json:"dms_id"`
}

func (f FieldsRequest) toEntity() entity.SupplementaryFields {
	return entity.SupplementaryFields{
		BauantragDatum:  f.BauantragDatum.ptr(),
		PlanDate:        f.PlanDate.ptr(),
		IstDate:         f.IstDate.ptr(),
		BuildStatus:     f.BuildStatus,
		Contractor:      f.Contractor,
		PowerConnection: f.PowerConnection,
		CompletionDate:  f.CompletionDate.ptr(),
		FinalInspection: f.FinalInspection.ptr(),
		NetworkID:       f.NetworkID,
		DMSID:           f.DMSID,
	}
}

// DecisionRequest is the body of POST /api/locations/:id/decisions
type DecisionRequest struct {
	Step      string          `json:"step"`
	Decision  string          `json:"decision"`
	SubBranch string          `json:"sub_branch"`
	Actor     string          `json:"actor"`
	Comment   string          `json:"comment"`
	Fields    FieldsRequest   `json:"fields"`
	Checklist map[string]bool `json:"checklist"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	if h.deps.Health == nil {
		c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"status": "healthy"}})
		return
	}

	health := h.deps.Health.Health(c.Request.Context())
	status := http.StatusOK
	if !health.Overall {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, Response{Success: health.Overall, Data: health})
}

// ListSteps handles GET /api/steps
func (h *Handlers) ListSteps(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Success: true, Data: h.deps.Engine.Definition()})
}

// CaptureLocation handles POST /api/locations
func (h *Handlers) CaptureLocation(c *gin.Context) {
	var req CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	loc, err := h.deps.Engine.Capture(c.Request.Context(), workflow.CaptureRequest{
		Erfasser:         req.Erfasser,
		Datum:            req.Datum.Time,
		Standort:         req.Standort,
		Stadt:            req.Stadt,
		Lat:              req.Lat,
		Lng:              req.Lng,
		Leistungswert:    req.Leistungswert,
		Eigentuemer:      req.Eigentuemer,
		Umruestung:       req.Umruestung,
		AlteNummer:       req.AlteNummer,
		Seiten:           req.Seiten,
		Vermarktungsform: req.Vermarktungsform,
		Actor:            actorFrom(c, req.Actor),
		Comment:          req.Comment,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: loc})
}

// ListLocations handles GET /api/locations
func (h *Handlers) ListLocations(c *gin.Context) {
	filter := entity.LocationFilter{
		Status:   domainwf.Status(c.Query("status")),
		Step:     domainwf.Step(c.Query("step")),
		Variants: c.QueryArray("variant"),
	}

	var err error
	if filter.Limit, err = intQuery(c, "limit", 0); err != nil {
		h.badRequest(c, err)
		return
	}
	if filter.Offset, err = intQuery(c, "offset", 0); err != nil {
		h.badRequest(c, err)
		return
	}
	days, err := intQuery(c, "days", 0)
	if err != nil {
		h.badRequest(c, err)
		return
	}
	if days > 0 {
		since := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
		filter.CreatedSince = &since
	}

	locations, err := h.deps.Locations.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: locations})
}

// GetLocation handles GET /api/locations/:id
func (h *Handlers) GetLocation(c *gin.Context) {
	loc, err := h.deps.Locations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: loc})
}

// GetHistory handles GET /api/locations/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	entries, err := h.deps.Locations.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// PurgeLocation handles DELETE /api/locations/:id
func (h *Handlers) PurgeLocation(c *gin.Context) {
	id := c.Param("id")
	if err := h.deps.Locations.Purge(c.Request.Context(), id, actorFrom(c, "")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"id": id, "deleted": true}})
}

// Decide handles POST /api/locations/:id/decisions
func (h *Handlers) Decide(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	loc, err := h.deps.Engine.Decide(c.Request.Context(), workflow.DecideRequest{
		LocationID: c.Param("id"),
		Step:       domainwf.Step(req.Step),
		Decision:   domainwf.Decision(req.Decision),
		SubBranch:  domainwf.SubBranch(req.SubBranch),
		Actor:      actorFrom(c, req.Actor),
		Comment:    req.Comment,
		Fields:     req.Fields.toEntity(),
		Checklist:  req.Checklist,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: loc})
}

// ReportSummary handles GET /api/reports/summary
func (h *Handlers) ReportSummary(c *gin.Context) {
	filter, ok := h.reportFilter(c)
	if !ok {
		return
	}
	h.respond(c)(h.deps.Reports.Summary(c.Request.Context(), filter))
}

// ReportCounts handles GET /api/reports/counts
func (h *Handlers) ReportCounts(c *gin.Context) {
	filter, ok := h.reportFilter(c)
	if !ok {
		return
	}
	h.respond(c)(h.deps.Reports.Counts(c.Request.Context(), filter))
}

// ReportFunnel handles GET /api/reports/funnel
func (h *Handlers) ReportFunnel(c *gin.Context) {
	filter, ok := h.reportFilter(c)
	if !ok {
		return
	}
	h.respond(c)(h.deps.Reports.Funnel(c.Request.Context(), filter))
}

// ReportDurations handles GET /api/reports/durations?pair=from:to
func (h *Handlers) ReportDurations(c *gin.Context) {
	filter, ok := h.reportFilter(c)
	if !ok {
		return
	}

	var pairs []service.StepPair
	for _, raw := range c.QueryArray("pair") {
		from, to, found := strings.Cut(raw, ":")
		pair := service.StepPair{From: domainwf.Step(from), To: domainwf.Step(to)}
		if !found || !pair.From.IsValid() || !pair.To.IsValid() {
			h.badRequest(c, fmt.Errorf("invalid pair %q, want <step>:<step>", raw))
			return
		}
		pairs = append(pairs, pair)
	}

	h.respond(c)(h.deps.Reports.Durations(c.Request.Context(), filter, pairs))
}

// ReportIntake handles GET /api/reports/intake
func (h *Handlers) ReportIntake(c *gin.Context) {
	filter, ok := h.reportFilter(c)
	if !ok {
		return
	}
	h.respond(c)(h.deps.Reports.Intake(c.Request.Context(), filter))
}

func (h *Handlers) reportFilter(c *gin.Context) (service.ReportFilter, bool) {
	days, err := intQuery(c, "days", h.defaultDays)
	if err != nil {
		h.badRequest(c, err)
		return service.ReportFilter{}, false
	}
	if days < 0 {
		h.badRequest(c, fmt.Errorf("days must not be negative"))
		return service.ReportFilter{}, false
	}
	return service.ReportFilter{Days: days, Variants: c.QueryArray("variant")}, true
}

// respond returns a writer for (data, err) pairs
func (h *Handlers) respond(c *gin.Context) func(interface{}, error) {
	return func(data interface{}, err error) {
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, Response{Success: true, Data: data})
	}
}

func (h *Handlers) badRequest(c *gin.Context, err error) {
	h.logger.Error("Invalid request", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
}

// writeError maps domain errors to status codes
func (h *Handlers) writeError(c *gin.Context, err error) {
	resp := Response{Success: false, Error: err.Error()}
	status := http.StatusInternalServerError

	var validation *domainwf.ValidationError
	switch {
	case errors.As(err, &validation):
		status = http.StatusUnprocessableEntity
		resp.Fields = validation.Fields
	case errors.Is(err, domainwf.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domainwf.ErrStaleState):
		status = http.StatusConflict
		resp.Error = "state changed, please reload: " + err.Error()
	case errors.Is(err, domainwf.ErrTerminalState):
		status = http.StatusConflict
	case errors.Is(err, domainwf.ErrInvalidTransition), errors.Is(err, domainwf.ErrInvalidStep):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
		resp.Error = "internal error"
	}
	c.JSON(status, resp)
}

func actorFrom(c *gin.Context, bodyActor string) string {
	if a := strings.TrimSpace(bodyActor); a != "" {
		return a
	}
	return strings.TrimSpace(c.GetHeader(ActorHeader))
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}
