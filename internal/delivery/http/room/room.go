package http_room

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/berkist/linkroyale/core/internal/delivery/dto"
	http_common "github.com/berkist/linkroyale/core/internal/delivery/http/common"
	"github.com/berkist/linkroyale/core/internal/model"
	"github.com/berkist/linkroyale/core/internal/store"
	usecase_room "github.com/berkist/linkroyale/core/internal/usecase/room"
)

type Controller struct {
	usecase *usecase_room.Usecase
	logger  *slog.Logger
}

func New(usecase *usecase_room.Usecase) *Controller {
	return &Controller{
		usecase: usecase,
		logger:  slog.Default(),
	}
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	rooms := router.Group("/rooms")
	{
		rooms.POST("", c.create)
		rooms.GET("/:room_id", c.state)
		rooms.POST("/:room_id/participants", c.join)
		rooms.POST("/:room_id/submissions", c.submit)
	}
}

type CreateResponseDTO struct {
	RoomCode string `json:"room_code"`
}

// Create books a new contest room.
// @Summary Create a room
// @Description Creates a room in Open state. The moderator token is returned in the X-user-token header.
// @Tags Rooms
// @Produce json
// @Success 201 {object} CreateResponseDTO "Room created"
// @Header 201 {string} X-user-token "Moderator token"
// @Failure 500 {object} http_common.ErrorResponse "Internal error"
// @Failure 503 {object} http_common.ErrorResponse "No room code available"
// @Router /rooms [post]
func (c *Controller) create(ctx *gin.Context) {
	room, err := c.usecase.Create(ctx)
	if err != nil {
		c.logger.Error("failed to create room", slog.String("error", err.Error()))
		if errors.Is(err, usecase_room.ErrRoomsUnavailable) {
			ctx.JSON(http.StatusServiceUnavailable, http_common.ErrorResponse{
				Message: "unavailable",
			})
			return
		}
		ctx.JSON(http.StatusInternalServerError, http_common.ErrorResponse{
			Message: "internal error",
		})
		return
	}

	ctx.Header(http_common.HeaderUserToken, room.ModeratorID)
	ctx.JSON(http.StatusCreated, CreateResponseDTO{
		RoomCode: string(room.ID),
	})
}

// State returns the room's current snapshot.
// @Summary Room state
// @Tags Rooms
// @Param room_id path string true "Room code"
// @Produce json
// @Success 200 {object} dto.Room "Current state"
// @Failure 404 {object} http_common.ErrorResponse "Room not found"
// @Failure 500 {object} http_common.ErrorResponse "Internal error"
// @Router /rooms/{room_id} [get]
func (c *Controller) state(ctx *gin.Context) {
	roomID := model.RoomID(ctx.Param("room_id"))

	room, err := c.usecase.State(ctx, roomID)
	if err != nil {
		c.fail(ctx, "failed to get state", roomID, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.FromRoom(room))
}

type JoinRequestDTO struct {
	DisplayName string `json:"display_name" binding:"required"`
	Secret      string `json:"secret" binding:"required,min=4"`
}

type JoinResponseDTO struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// Join adds a participant or reconnects an existing one.
// @Summary Join a room
// @Description Adds a participant. Rejoining with the same name and secret returns the same user.
// @Tags Rooms
// @Accept json
// @Produce json
// @Param room_id path string true "Room code"
// @Param request body JoinRequestDTO true "Identity"
// @Success 200 {object} JoinResponseDTO "Joined"
// @Header 200 {string} X-user-token "User token"
// @Failure 400 {object} http_common.ErrorResponse "Bad request"
// @Failure 404 {object} http_common.ErrorResponse "Room not found"
// @Failure 409 {object} http_common.ErrorResponse "Name taken with a different secret, or round not open"
// @Failure 503 {object} http_common.ErrorResponse "Try again"
// @Router /rooms/{room_id}/participants [post]
func (c *Controller) join(ctx *gin.Context) {
	roomID := model.RoomID(ctx.Param("room_id"))

	var req JoinRequestDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
			Message: "invalid request body",
		})
		return
	}

	user, err := c.usecase.Join(ctx, roomID, req.DisplayName, req.Secret)
	if err != nil {
		c.fail(ctx, "failed to join", roomID, err)
		return
	}

	ctx.Header(http_common.HeaderUserToken, user.ID)
	ctx.JSON(http.StatusOK, JoinResponseDTO{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
	})
}

type SubmitRequestDTO struct {
	URL         string `json:"url" binding:"required"`
	Description string `json:"description"`
}

type SubmitResponseDTO struct {
	SubmissionID string `json:"submission_id"`
	URL          string `json:"url"`
}

// Submit records the caller's link for the round.
// @Summary Submit a link
// @Tags Rooms
// @Accept json
// @Produce json
// @Param room_id path string true "Room code"
// @Param request body SubmitRequestDTO true "Link"
// @Success 201 {object} SubmitResponseDTO "Submitted"
// @Failure 400 {object} http_common.ErrorResponse "Bad request"
// @Failure 401 {object} http_common.ErrorResponse "Missing user token"
// @Failure 403 {object} http_common.ErrorResponse "Not a participant"
// @Failure 404 {object} http_common.ErrorResponse "Room not found"
// @Failure 409 {object} http_common.ErrorResponse "Already submitted or round not open"
// @Failure 503 {object} http_common.ErrorResponse "Try again"
// @Router /rooms/{room_id}/submissions [post]
func (c *Controller) submit(ctx *gin.Context) {
	roomID := model.RoomID(ctx.Param("room_id"))

	userToken := ctx.GetHeader(http_common.HeaderUserToken)
	if userToken == "" {
		ctx.JSON(http.StatusUnauthorized, http_common.ErrorResponse{
			Message: "X-user-token not found",
		})
		return
	}

	var req SubmitRequestDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
			Message: "invalid request body",
		})
		return
	}

	sub, err := c.usecase.SubmitLink(ctx, roomID, userToken, req.URL, req.Description)
	if err != nil {
		c.fail(ctx, "failed to submit", roomID, err)
		return
	}

	ctx.JSON(http.StatusCreated, SubmitResponseDTO{
		SubmissionID: sub.ID,
		URL:          sub.URL,
	})
}

func (c *Controller) fail(ctx *gin.Context, msg string, roomID model.RoomID, err error) {
	c.logger.Error(msg,
		slog.String("room_id", string(roomID)),
		slog.String("error", err.Error()))

	switch {
	case errors.Is(err, store.ErrNotFound):
		ctx.JSON(http.StatusNotFound, http_common.ErrorResponse{
			Message: "not found",
		})
	case errors.Is(err, usecase_room.ErrIdentityConflict):
		ctx.JSON(http.StatusConflict, http_common.ErrorResponse{
			Message: "name already taken",
		})
	case errors.Is(err, usecase_room.ErrAlreadySubmitted):
		ctx.JSON(http.StatusConflict, http_common.ErrorResponse{
			Message: "already submitted",
		})
	case errors.Is(err, usecase_room.ErrRoundNotOpen):
		ctx.JSON(http.StatusConflict, http_common.ErrorResponse{
			Message: "round is not open",
		})
	case errors.Is(err, usecase_room.ErrNotParticipant):
		ctx.JSON(http.StatusForbidden, http_common.ErrorResponse{
			Message: "not a participant",
		})
	case errors.Is(err, store.ErrConflictExhausted), errors.Is(err, store.ErrUnavailable):
		ctx.JSON(http.StatusServiceUnavailable, http_common.ErrorResponse{
			Message: "temporarily unavailable, retry",
		})
	default:
		ctx.JSON(http.StatusInternalServerError, http_common.ErrorResponse{
			Message: "internal error",
		})
	}
}
