package http

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceHub/internal/app/orch"
	"github.com/dkeye/VoiceHub/internal/domain"
)

const (
	sessionIdentityID   = "identity_id"
	sessionIdentityName = "identity_name"
)

// maxDurationMs is the largest durationMs that fits a time.Duration.
const maxDurationMs = math.MaxInt64 / int64(time.Millisecond)

type RoomDefaults struct {
	MaxUsers      int
	GuestDuration time.Duration
}

type Handlers struct {
	Orch       *orch.Orchestrator
	Defaults   RoomDefaults
	ICEServers []webrtc.ICEServer
}

type CreateRoomRequest struct {
	ID         domain.RoomID   `json:"id"`
	Name       domain.RoomName `json:"name"`
	Password   string          `json:"password"`
	MaxUsers   int             `json:"maxUsers"`
	DurationMs *int64          `json:"durationMs"`
	IsDefault  bool            `json:"isDefault"`
	IsDemo     bool            `json:"isDemo"`
}

type CreateRoomResponse struct {
	RoomID domain.RoomID       `json:"roomId"`
	Room   domain.RoomSnapshot `json:"room"`
}

type SessionRequest struct {
	ID   domain.IdentityID `json:"id"`
	Name string            `json:"name"`
}

func (h *Handlers) Register(api *gin.RouterGroup) {
	api.POST("/rooms", h.createRoom)
	api.GET("/rooms", h.listRooms)
	api.GET("/rooms/:id", h.getRoom)
	api.DELETE("/rooms/:id", h.deleteRoom)
	api.GET("/ice", h.iceServers)
	api.GET("/session", h.getSession)
	api.POST("/session", h.setSession)
	api.DELETE("/session", h.clearSession)
}

func (h *Handlers) createRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	spec := domain.RoomSpec{
		ID:        req.ID,
		Name:      req.Name,
		Password:  req.Password,
		MaxUsers:  req.MaxUsers,
		IsDefault: req.IsDefault,
		IsDemo:    req.IsDemo,
	}
	if spec.MaxUsers == 0 {
		spec.MaxUsers = h.Defaults.MaxUsers
	}
	switch {
	case req.DurationMs != nil:
		if *req.DurationMs <= 0 || *req.DurationMs > maxDurationMs {
			c.JSON(http.StatusBadRequest, gin.H{"error": "durationMs out of range"})
			return
		}
		d := time.Duration(*req.DurationMs) * time.Millisecond
		spec.Duration = &d
	case IdentityFromSession(c) == nil && h.Defaults.GuestDuration > 0:
		d := h.Defaults.GuestDuration
		spec.Duration = &d
	}

	room, err := h.Orch.CreateRoom(spec)
	switch {
	case errors.Is(err, domain.ErrInvalidSpec):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, domain.ErrRoomExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		log.Error().Err(err).Str("module", "transport.http").Msg("create room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, CreateRoomResponse{RoomID: room.ID, Room: room})
}

func (h *Handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.Orch.Rooms.List()})
}

func (h *Handlers) getRoom(c *gin.Context) {
	room, ok := h.Orch.Rooms.Get(domain.RoomID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrRoomNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handlers) deleteRoom(c *gin.Context) {
	if !h.Orch.DeleteRoom(domain.RoomID(c.Param("id"))) {
		c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrRoomNotFound.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) iceServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.ICEServers})
}

// setSession stands in for the external login callback: it stores the
// identity in the cookie session so later WebSocket connections inherit it.
func (h *Handlers) setSession(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(string(req.ID)) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid identity"})
		return
	}
	s := sessions.Default(c)
	s.Set(sessionIdentityID, strings.TrimSpace(string(req.ID)))
	s.Set(sessionIdentityName, req.Name)
	if err := s.Save(); err != nil {
		log.Error().Err(err).Str("module", "transport.http").Msg("save session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, IdentityFromSession(c))
}

func (h *Handlers) getSession(c *gin.Context) {
	id := IdentityFromSession(c)
	if id == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrIdentityUnavailable.Error()})
		return
	}
	c.JSON(http.StatusOK, id)
}

func (h *Handlers) clearSession(c *gin.Context) {
	s := sessions.Default(c)
	s.Clear()
	_ = s.Save()
	c.Status(http.StatusNoContent)
}

// IdentityFromSession returns the identity stored by setSession, if any.
func IdentityFromSession(c *gin.Context) *domain.Identity {
	s := sessions.Default(c)
	id, _ := s.Get(sessionIdentityID).(string)
	if id == "" {
		return nil
	}
	name, _ := s.Get(sessionIdentityName).(string)
	return &domain.Identity{ID: domain.IdentityID(id), Name: name}
}
