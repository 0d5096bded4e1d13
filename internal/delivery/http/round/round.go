package http_round

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/berkist/linkroyale/core/internal/delivery/dto"
	http_common "github.com/berkist/linkroyale/core/internal/delivery/http/common"
	"github.com/berkist/linkroyale/core/internal/model"
	"github.com/berkist/linkroyale/core/internal/store"
	usecase_round "github.com/berkist/linkroyale/core/internal/usecase/round"
)

type Controller struct {
	uc *usecase_round.Usecase

	logger *slog.Logger
}

func New(uc *usecase_round.Usecase) *Controller {
	return &Controller{
		uc:     uc,
		logger: slog.Default(),
	}
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	round := router.Group("/rooms/:room_id/round")
	{
		round.POST("/start", c.start)
		round.POST("/finish", c.finish)
		round.POST("/reset", c.reset)
	}
	router.GET("/rooms/:room_id/results", c.results)
	router.GET("/rooms/:room_id/archive", c.archived)
	router.POST("/rooms/:room_id/submissions/:submission_id/commentary", c.comment)
}

// moderator pulls the caller token; every route here is moderator-only
// except the result reads.
func (c *Controller) moderator(ctx *gin.Context) (string, bool) {
	token := ctx.GetHeader(http_common.HeaderUserToken)
	if token == "" {
		ctx.JSON(http.StatusUnauthorized, http_common.ErrorResponse{
			Message: "X-user-token not found",
		})
		return "", false
	}
	return token, true
}

// Start opens voting: reviewers get assigned and the deadline starts.
// @Summary Start voting
// @Tags Round
// @Param room_id path string true "Room code"
// @Produce json
// @Success 200 {object} dto.Room "Voting state"
// @Failure 401 {object} http_common.ErrorResponse "Missing or wrong moderator token"
// @Failure 404 {object} http_common.ErrorResponse "Room not found"
// @Failure 409 {object} http_common.ErrorResponse "Wrong state or fewer than two submissions"
// @Failure 503 {object} http_common.ErrorResponse "Try again"
// @Router /rooms/{room_id}/round/start [post]
func (c *Controller) start(ctx *gin.Context) {
	roomID := model.RoomID(ctx.Param("room_id"))
	actorID, ok := c.moderator(ctx)
	if !ok {
		return
	}

	room, err := c.uc.StartVoting(ctx, roomID, actorID)
	if err != nil {
		c.fail(ctx, "failed to start voting", roomID, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.FromRoom(room))
}

// Finish closes the round.
// @Summary Finish round
// @Tags Round
// @Param room_id path string true "Room code"
// @Produce json
// @Success 200 {object} dto.Room "Closed state"
// @Failure 401 {object} http_common.ErrorResponse "Missing or wrong moderator token"
// @Failure 404 {object} http_common.ErrorResponse "Room not found"
// @Failure 409 {object} http_common.ErrorResponse "Round never started"
// @Failure 503 {object} http_common.ErrorResponse "Try again"
// @Router /rooms/{room_id}/round/finish [post]
func (c *Controller) finish(ctx *gin.Context) {
	roomID := model.RoomID(ctx.Param("room_id"))
	actorID, ok := c.moderator(ctx)
	if !ok {
		return
	}

	room, err := c.uc.Finish(ctx, roomID, actorID)
	if err != nil {
		c.fail(ctx, "failed to finish round", roomID, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.FromRoom(room))
}

type ResetRequestDTO struct {
	// Hard wipes the room entirely; otherwise participants survive and
	// the round goes back to Open.
	Hard bool `json:"hard"`
}

// Reset reopens or wipes a closed room.
// @Summary Reset round
// @Tags Round
// @Accept json
// @Produce json
// @Param room_id path string true "Room code"
// @Param request body ResetRequestDTO false "Reset mode"
// @Success 200 {object} dto.Room "Reopened state (soft reset)"
// @Success 204 "Room wiped (hard reset)"
// @Failure 401 {object} http_common.ErrorResponse "Missing or wrong moderator token"
// @Failure 404 {object} http_common.ErrorResponse "Room not found"
// @Failure 409 {object} http_common.ErrorResponse "Round not closed"
// @Failure 503 {object} http_common.ErrorResponse "Try again"
// @Router /rooms/{room_id}/round/reset [post]
func (c *Controller) reset(ctx *gin.Context) {
	roomID := model.RoomID(ctx.Param("room_id"))
	actorID, ok := c.moderator(ctx)
	if !ok {
		return
	}

	var req ResetRequestDTO
	_ = ctx.ShouldBindJSON(&req)

	room, err := c.uc.Reset(ctx, roomID, actorID, req.Hard)
	if err != nil {
		c.fail(ctx, "failed to reset round", roomID, err)
		return
	}

	if req.Hard {
		ctx.Status(http.StatusNoContent)
		return
	}
	ctx.JSON(http.StatusOK, dto.FromRoom(room))
}

type StandingDTO struct {
	Place        int     `json:"place"`
	SubmissionID string  `json:"submission_id"`
	OwnerID      string  `json:"owner_id"`
	OwnerName    string  `json:"owner_name"`
	URL          string  `json:"url"`
	Average      float64 `json:"average"`
	VoteCount    int     `json:"vote_count"`
}

// Results returns the live ranking.
// @Summary Round results
// @Tags Round
// @Param room_id path string true "Room code"
// @Produce json
// @Success 200 {array} StandingDTO "Ranking"
// @Failure 404 {object} http_common.ErrorResponse "Room not found"
// @Router /rooms/{room_id}/results [get]
func (c *Controller) results(ctx *gin.Context) {
	roomID := model.RoomID(ctx.Param("room_id"))

	standings, err := c.uc.Results(ctx, roomID)
	if err != nil {
		c.fail(ctx, "failed to get results", roomID, err)
		return
	}
	ctx.JSON(http.StatusOK, toStandingDTOs(standings))
}

// Archived returns the persisted standings of past rounds.
// @Summary Archived results
// @Tags Round
// @Param room_id path string true "Room code"
// @Produce json
// @Success 200 {array} StandingDTO "Archived ranking"
// @Failure 500 {object} http_common.ErrorResponse "Internal error"
// @Router /rooms/{room_id}/archive [get]
func (c *Controller) archived(ctx *gin.Context) {
	roomID := model.RoomID(ctx.Param("room_id"))

	standings, err := c.uc.Archived(ctx, roomID)
	if err != nil {
		c.fail(ctx, "failed to get archive", roomID, err)
		return
	}
	ctx.JSON(http.StatusOK, toStandingDTOs(standings))
}

type CommentResponseDTO struct {
	Text string `json:"text"`
}

// Comment fetches commentary for a submission from the external service.
// @Summary Request commentary
// @Tags Round
// @Param room_id path string true "Room code"
// @Param submission_id path string true "Submission ID"
// @Produce json
// @Success 200 {object} CommentResponseDTO "Commentary text"
// @Failure 401 {object} http_common.ErrorResponse "Missing or wrong moderator token"
// @Failure 404 {object} http_common.ErrorResponse "Room or submission not found"
// @Failure 502 {object} http_common.ErrorResponse "Commentary service unavailable"
// @Router /rooms/{room_id}/submissions/{submission_id}/commentary [post]
func (c *Controller) comment(ctx *gin.Context) {
	roomID := model.RoomID(ctx.Param("room_id"))
	submissionID := ctx.Param("submission_id")
	actorID, ok := c.moderator(ctx)
	if !ok {
		return
	}

	text, err := c.uc.Comment(ctx, roomID, submissionID, actorID)
	if err != nil {
		if errors.Is(err, usecase_round.ErrCommentaryUnavailable) {
			ctx.JSON(http.StatusBadGateway, http_common.ErrorResponse{
				Message: "commentary unavailable",
			})
			return
		}
		c.fail(ctx, "failed to get commentary", roomID, err)
		return
	}
	ctx.JSON(http.StatusOK, CommentResponseDTO{Text: text})
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
	case errors.Is(err, usecase_round.ErrNotModerator):
		ctx.JSON(http.StatusUnauthorized, http_common.ErrorResponse{
			Message: "unauthorized",
		})
	case errors.Is(err, usecase_round.ErrInsufficientSubmissions):
		ctx.JSON(http.StatusConflict, http_common.ErrorResponse{
			Message: "at least two submissions required",
		})
	case errors.Is(err, usecase_round.ErrInvalidTransition):
		ctx.JSON(http.StatusConflict, http_common.ErrorResponse{
			Message: "invalid transition",
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

func toStandingDTOs(standings []usecase_round.Standing) []StandingDTO {
	out := make([]StandingDTO, 0, len(standings))
	for _, s := range standings {
		out = append(out, StandingDTO{
			Place:        s.Place,
			SubmissionID: s.SubmissionID,
			OwnerID:      s.OwnerID,
			OwnerName:    s.OwnerName,
			URL:          s.URL,
			Average:      s.Average,
			VoteCount:    s.VoteCount,
		})
	}
	return out
}
