package httpapi

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/roach88/slotswap/internal/domain"
	"github.com/roach88/slotswap/internal/engine"
	"github.com/roach88/slotswap/internal/ics"
)

type signupRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type eventRequest struct {
	Title     string             `json:"title" binding:"required"`
	StartTime clientTime         `json:"start_time"`
	EndTime   clientTime         `json:"end_time"`
	Status    domain.EventStatus `json:"status"`
}

type swapCreateRequest struct {
	MySlotID    int64 `json:"my_slot_id" binding:"required"`
	TheirSlotID int64 `json:"their_slot_id" binding:"required"`
}

type swapResponseRequest struct {
	Accept *bool `json:"accept" binding:"required"`
}

// bind decodes the JSON body into dst, writing a 400 on failure.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, domain.Errorf(domain.ErrCodeValidation, "invalid request body: %v", err))
		return false
	}
	return true
}

// pathID parses the :id parameter.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, domain.NewValidation("id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (h *handler) signup(c *gin.Context) {
	var in signupRequest
	if !bind(c, &in) {
		return
	}
	u, err := h.auth.Signup(c.Request.Context(), in.Name, in.Email, in.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserView(u))
}

// login takes OAuth2 password-form fields; username is the email.
func (h *handler) login(c *gin.Context) {
	email, password := c.PostForm("username"), c.PostForm("password")
	if email == "" || password == "" {
		writeError(c, domain.Errorf(domain.ErrCodeValidation, "username and password are required"))
		return
	}
	tok, err := h.auth.Login(c.Request.Context(), email, password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tok)
}

func (h *handler) me(c *gin.Context) {
	u, err := h.query.Me(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserView(u))
}

func (h *handler) dashboard(c *gin.Context) {
	u := currentUser(c)
	d, err := h.query.Dashboard(c.Request.Context(), u.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboardView{
		User:      newUserView(u),
		MyEvents:  newEventViews(d.MyEvents),
		Swappable: newEventViews(d.Swappable),
		Incoming:  newSwapViews(d.Incoming),
		Outgoing:  newSwapViews(d.Outgoing),
	})
}

func (h *handler) createEvent(c *gin.Context) {
	var in eventRequest
	if !bind(c, &in) {
		return
	}
	ev, err := h.engine.CreateEvent(c.Request.Context(), currentUser(c).ID, engine.EventInput{
		Title:  in.Title,
		Start:  in.StartTime.Time,
		End:    in.EndTime.Time,
		Status: in.Status,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newEventView(ev))
}

func (h *handler) listEvents(c *gin.Context) {
	events, err := h.query.MyEvents(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newEventViews(events))
}

func (h *handler) swappable(c *gin.Context) {
	events, err := h.query.SwappableEvents(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newEventViews(events))
}

func (h *handler) exportICS(c *gin.Context) {
	events, err := h.query.MyEvents(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := ics.Encode(&buf, events, h.now()); err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="slots.ics"`)
	c.Data(http.StatusOK, ics.ContentType, buf.Bytes())
}

// setEventStatus reads the target status from ?status=.
func (h *handler) setEventStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	status := domain.EventStatus(c.Query("status"))
	if status == "" {
		writeError(c, domain.NewValidation("status", "query parameter is required"))
		return
	}
	ev, err := h.engine.SetEventStatus(c.Request.Context(), currentUser(c).ID, id, status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newEventView(ev))
}

func (h *handler) updateEvent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in eventRequest
	if !bind(c, &in) {
		return
	}
	ev, err := h.engine.UpdateEvent(c.Request.Context(), currentUser(c).ID, id, engine.EventInput{
		Title: in.Title,
		Start: in.StartTime.Time,
		End:   in.EndTime.Time,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newEventView(ev))
}

func (h *handler) deleteEvent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.engine.DeleteEvent(c.Request.Context(), currentUser(c).ID, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) requestSwap(c *gin.Context) {
	var in swapCreateRequest
	if !bind(c, &in) {
		return
	}
	out, err := h.engine.RequestSwap(c.Request.Context(), currentUser(c).ID, in.MySlotID, in.TheirSlotID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOutcomeView(out))
}

func (h *handler) incoming(c *gin.Context) {
	reqs, err := h.query.IncomingRequests(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSwapViews(reqs))
}

func (h *handler) outgoing(c *gin.Context) {
	reqs, err := h.query.OutgoingRequests(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSwapViews(reqs))
}

func (h *handler) respondSwap(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in swapResponseRequest
	if !bind(c, &in) {
		return
	}
	out, err := h.engine.RespondSwap(c.Request.Context(), currentUser(c).ID, id, *in.Accept)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOutcomeView(out))
}

func (h *handler) cancelSwap(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	out, err := h.engine.CancelSwap(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOutcomeView(out))
}
