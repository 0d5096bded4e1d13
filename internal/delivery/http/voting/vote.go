package http_vote

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/berkist/linkroyale/core/internal/delivery/dto"
	http_common "github.com/berkist/linkroyale/core/internal/delivery/http/common"
	"github.com/berkist/linkroyale/core/internal/model"
	"github.com/berkist/linkroyale/core/internal/store"
	usecase_vote "github.com/berkist/linkroyale/core/internal/usecase/vote"
)

type Controller struct {
	uc *usecase_vote.Usecase

	logger *slog.Logger
}

type ControllerOption func(*Controller)

func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

func New(uc *usecase_vote.Usecase, opts ...ControllerOption) *Controller {
	c := &Controller{
		uc:     uc,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	router.PUT("/rooms/:room_id/submissions/:submission_id/votes", c.cast)
}

type CastRequestDTO struct {
	// Score of 0 is the explicit pass; clients also send it when the
	// round deadline expires locally.
	Score *int `json:"score" binding:"required"`
}

type CastResponseDTO struct {
	AllVotesIn bool     `json:"all_votes_in"`
	Room       dto.Room `json:"room"`
}

// Cast commits the caller's score for one submission.
// @Summary Cast a vote
// @Tags Voting
// @Accept json
// @Produce json
// @Param room_id path string true "Room code"
// @Param submission_id path string true "Submission ID"
// @Param request body CastRequestDTO true "Score 0..10"
// @Success 200 {object} CastResponseDTO "Vote committed"
// @Failure 400 {object} http_common.ErrorResponse "Bad score"
// @Failure 401 {object} http_common.ErrorResponse "Missing user token"
// @Failure 403 {object} http_common.ErrorResponse "Voter not assigned to this submission"
// @Failure 404 {object} http_common.ErrorResponse "Room or submission not found"
// @Failure 409 {object} http_common.ErrorResponse "Voting not active"
// @Failure 503 {object} http_common.ErrorResponse "Try again"
// @Router /rooms/{room_id}/submissions/{submission_id}/votes [put]
func (c *Controller) cast(ctx *gin.Context) {
	roomID := model.RoomID(ctx.Param("room_id"))
	submissionID := ctx.Param("submission_id")

	voterID := ctx.GetHeader(http_common.HeaderUserToken)
	if voterID == "" {
		ctx.JSON(http.StatusUnauthorized, http_common.ErrorResponse{
			Message: "X-user-token not found",
		})
		return
	}

	var req CastRequestDTO
	if err := ctx.ShouldBindJSON(&req); err != nil || req.Score == nil {
		ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
			Message: "invalid request body",
		})
		return
	}

	room, err := c.uc.Cast(ctx, roomID, submissionID, voterID, *req.Score)
	if err != nil {
		c.logger.Error("failed to cast vote",
			slog.String("room_id", string(roomID)),
			slog.String("submission_id", submissionID),
			slog.String("error", err.Error()))

		switch {
		case errors.Is(err, usecase_vote.ErrInvalidScore):
			ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
				Message: "score out of range",
			})
		case errors.Is(err, usecase_vote.ErrOutOfAssignment):
			ctx.JSON(http.StatusForbidden, http_common.ErrorResponse{
				Message: "not assigned to this submission",
			})
		case errors.Is(err, usecase_vote.ErrVotingNotActive):
			ctx.JSON(http.StatusConflict, http_common.ErrorResponse{
				Message: "voting is not active",
			})
		case errors.Is(err, store.ErrNotFound):
			ctx.JSON(http.StatusNotFound, http_common.ErrorResponse{
				Message: "not found",
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
		return
	}

	ctx.JSON(http.StatusOK, CastResponseDTO{
		AllVotesIn: usecase_vote.AllVotesIn(room),
		Room:       dto.FromRoom(room),
	})
}
