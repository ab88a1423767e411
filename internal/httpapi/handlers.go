// Package httpapi holds the HTTP handlers for the console API.
// Keep these thin: parse/validate input, call internal services, return JSON.
package httpapi

import (
	"encoding/csv"
	"errors"
	"net/http"
	"strings"

	"lead-console/internal/auth"
	"lead-console/internal/history"
	"lead-console/internal/leads"
	"lead-console/internal/outcome"
	"lead-console/internal/queue"
	"lead-console/internal/session"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
type Handlers struct {
	Auth     *auth.Authenticator
	Leads    *leads.Service
	Sessions *session.Manager
	History  *history.Service
}

/* ===================== AUTH ===================== */

type loginRequest struct {
	Role string `json:"role"`
	PIN  string `json:"pin"`
}

func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Role == "" || req.PIN == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "role and pin required"})
		return
	}

	pair, err := h.Auth.Login(c.Request.Context(), req.Role, req.PIN)
	if errors.Is(err, auth.ErrBadPIN) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "wrong PIN"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h Handlers) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}
	pair, err := h.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

/* ===================== LEADS ===================== */

// ListLeads returns the cached lead book plus its revision so clients can
// detect staleness across writes.
func (h Handlers) ListLeads(c *gin.Context) {
	rows, rev := h.Leads.Snapshot()
	c.JSON(http.StatusOK, gin.H{"leads": rows, "revision": rev})
}

func (h Handlers) CreateLead(c *gin.Context) {
	var req leads.Candidate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	row, err := h.Leads.Add(c.Request.Context(), req)
	if err != nil {
		abortLeadErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"lead": row, "revision": h.Leads.Revision()})
}

type bulkCreateRequest struct {
	Leads []leads.Candidate `json:"leads"`
	// Text is an alternative pasted-CSV form: one "name,phone" (or bare
	// phone) row per line.
	Text string `json:"text"`
}

func (h Handlers) CreateLeadsBulk(c *gin.Context) {
	var req bulkCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	candidates := req.Leads
	if req.Text != "" {
		parsed, err := parseCandidateCSV(req.Text)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid csv"})
			return
		}
		candidates = append(candidates, parsed...)
	}
	rows, err := h.Leads.AddBatch(c.Request.Context(), candidates)
	if err != nil {
		abortLeadErr(c, err)
		return
	}

	quarantined := 0
	for _, r := range rows {
		if r.Status == leads.StatusInvalid {
			quarantined++
		}
	}
	c.JSON(http.StatusCreated, gin.H{
		"inserted":    len(rows),
		"quarantined": quarantined,
		"leads":       rows,
		"revision":    h.Leads.Revision(),
	})
}

type updateLeadRequest struct {
	Name   *string       `json:"name"`
	Notes  *string       `json:"notes"`
	Status *leads.Status `json:"status"`
}

// UpdateLead is the owner's manual edit path. Outcome submissions go through
// the session endpoints, which enforce the note quality gates.
func (h Handlers) UpdateLead(c *gin.Context) {
	var req updateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Status != nil && !req.Status.IsValid() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}
	f := leads.UpdateFields{Name: req.Name, Notes: req.Notes, Status: req.Status}
	if err := h.Leads.ApplyUpdate(c.Request.Context(), c.Param("id"), f); err != nil {
		abortLeadErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revision": h.Leads.Revision()})
}

// ResetLead wipes a lead's interaction trail and requeues it as pending.
func (h Handlers) ResetLead(c *gin.Context) {
	id := c.Param("id")
	if err := h.Leads.ResetToPending(c.Request.Context(), id); err != nil {
		abortLeadErr(c, err)
		return
	}
	role, _ := auth.Role(c.Request.Context())
	_ = h.History.RecordReset(c.Request.Context(), id, role)
	c.JSON(http.StatusOK, gin.H{"revision": h.Leads.Revision()})
}

func (h Handlers) DeleteLead(c *gin.Context) {
	if err := h.Leads.Delete(c.Request.Context(), c.Param("id")); err != nil {
		abortLeadErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revision": h.Leads.Revision()})
}

// DeleteLeads clears rows in bulk: ?status=invalid trims one bucket, no
// status wipes the whole book.
func (h Handlers) DeleteLeads(c *gin.Context) {
	var (
		n   int64
		err error
	)
	if raw := c.Query("status"); raw != "" {
		st := leads.Status(raw)
		if !st.IsValid() {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
			return
		}
		n, err = h.Leads.DeleteByStatus(c.Request.Context(), st)
	} else {
		n, err = h.Leads.ClearAll(c.Request.Context())
	}
	if err != nil {
		abortLeadErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n, "revision": h.Leads.Revision()})
}

// ExportLeadsCSV streams the current lead book as a CSV download.
func (h Handlers) ExportLeadsCSV(c *gin.Context) {
	rows, _ := h.Leads.Snapshot()

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="leads.csv"`)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"id", "name", "phone", "status", "notes", "duration", "timestamp"})
	for _, l := range rows {
		ts := ""
		if !l.Timestamp.IsZero() {
			ts = l.Timestamp.UTC().Format("2006-01-02 15:04:05")
		}
		_ = w.Write([]string{l.ID, l.Name, l.Phone, string(l.Status), l.Notes, l.Duration, ts})
	}
	w.Flush()
}

/* ===================== PINS ===================== */

func (h Handlers) GetPINs(c *gin.Context) {
	p, err := h.Leads.GetPINs(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "pin lookup failed"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h Handlers) SetPINs(c *gin.Context) {
	var p leads.PINs
	if err := c.ShouldBindJSON(&p); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Leads.SetPINs(c.Request.Context(), p); err != nil {
		abortLeadErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

/* ===================== QUEUE ===================== */

// GetQueues returns the three agent work queues derived from the current
// snapshot.
func (h Handlers) GetQueues(c *gin.Context) {
	v := queue.Compute(h.Leads.Snapshot())
	pool, interested, callBack := v.Counts()
	c.JSON(http.StatusOK, gin.H{
		"fresh_pool": v.FreshPool,
		"interested": v.Interested,
		"call_back":  v.CallBack,
		"counts":     gin.H{"fresh_pool": pool, "interested": interested, "call_back": callBack},
		"revision":   v.Revision,
	})
}

/* ===================== HISTORY ===================== */

func (h Handlers) GetLeadHistory(c *gin.Context) {
	events, err := h.History.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

/* ===================== SESSION ===================== */

func (h Handlers) machine(c *gin.Context) (*session.Machine, bool) {
	agentID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return nil, false
	}
	return h.Sessions.ForAgent(c.Request.Context(), agentID, h.Leads), true
}

func (h Handlers) GetSession(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, m.Current())
}

type dialRequest struct {
	LeadID string `json:"lead_id"`
}

// Dial starts a call. With a lead_id the named lead is dialed; without one
// the head of the fresh pool is taken.
func (h Handlers) Dial(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}

	var req dialRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var lead leads.Lead
	if req.LeadID != "" {
		found, exists := h.Leads.FindByID(req.LeadID)
		if !exists {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "lead not found"})
			return
		}
		lead = found
	} else {
		next, exists := queue.Compute(h.Leads.Snapshot()).Next()
		if !exists {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "fresh pool is empty"})
			return
		}
		lead = next
	}

	handoff, err := m.Dial(c.Request.Context(), lead)
	if errors.Is(err, session.ErrBusy) {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "a call is already in progress"})
		return
	}
	if err != nil {
		abortLeadErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"handoff": handoff, "session": m.Current()})
}

// EndCall is the idempotent end-of-call signal. Resume after recovery,
// returning to the app and an explicit hang-up all land here; duplicates are
// harmless.
func (h Handlers) EndCall(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	res, err := m.End(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "end-call failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transitioned":  res.Transitioned,
		"auto_resolved": res.AutoResolved,
		"duration":      res.DurationLabel,
		"session":       m.Current(),
	})
}

type submitRequest struct {
	Status leads.Status `json:"status"`
	Notes  string       `json:"notes"`
	Name   string       `json:"name"`
}

func (h Handlers) SubmitOutcome(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	role, _ := auth.Role(c.Request.Context())
	err := m.Submit(c.Request.Context(), req.Status, req.Notes, req.Name, role)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"session": m.Current(), "revision": h.Leads.Revision()})
	case errors.Is(err, session.ErrNoPendingOutcome):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "no call awaiting an outcome"})
	case errors.Is(err, outcome.ErrInvalidStatus):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "status not allowed"})
	case errors.Is(err, outcome.ErrNoteTooShort):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "note too short for call duration", "min_length": outcome.MinNoteLength(m.Current().DurationSecs)})
	default:
		var rej *outcome.RejectedError
		if errors.As(err, &rej) {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "note rejected by quality audit", "reason": rej.Reason})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "outcome write failed"})
	}
}

func (h Handlers) AbandonOutcome(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	if err := m.Abandon(c.Request.Context()); err != nil {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "no call awaiting an outcome"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": m.Current()})
}

func (h Handlers) ResetSession(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	m.Reset(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"session": m.Current()})
}

/* ===================== HELPERS ===================== */

// parseCandidateCSV turns pasted "name,phone" lines into intake candidates.
// A row with a single field is treated as a bare phone number.
func parseCandidateCSV(text string) ([]leads.Candidate, error) {
	rd := csv.NewReader(strings.NewReader(text))
	rd.FieldsPerRecord = -1
	rd.TrimLeadingSpace = true

	records, err := rd.ReadAll()
	if err != nil {
		return nil, err
	}
	out := make([]leads.Candidate, 0, len(records))
	for _, rec := range records {
		switch len(rec) {
		case 0:
			continue
		case 1:
			out = append(out, leads.Candidate{Phone: rec[0]})
		default:
			out = append(out, leads.Candidate{Name: rec[0], Phone: rec[1]})
		}
	}
	return out, nil
}

func abortLeadErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, leads.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "lead not found"})
	case errors.Is(err, leads.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
