package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/immxrtalbeast/counsel_portal/internal/domain"
	"github.com/immxrtalbeast/counsel_portal/internal/repository"
	"github.com/immxrtalbeast/counsel_portal/internal/service"
)

type ConversationController struct {
	conversations service.ConversationInteractor
	log           *slog.Logger
}

func NewConversationController(conversations service.ConversationInteractor, log *slog.Logger) *ConversationController {
	if log == nil {
		log = slog.Default()
	}
	return &ConversationController{conversations: conversations, log: log}
}

func (c *ConversationController) StartConversation(ctx *gin.Context) {
	type request struct {
		CounselorID uuid.UUID `json:"counselor_id" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "invalid request body", err)
		return
	}

	conv, err := c.conversations.StartConversation(ctx.Request.Context(), callerFrom(ctx), req.CounselorID)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"conversation": conv})
}

func (c *ConversationController) GetConversation(ctx *gin.Context) {
	id, ok := conversationParam(ctx)
	if !ok {
		return
	}

	conv, err := c.conversations.GetConversation(ctx.Request.Context(), callerFrom(ctx), id)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"conversation": conv})
}

func (c *ConversationController) ListConversations(ctx *gin.Context) {
	convs, err := c.conversations.ListConversations(ctx.Request.Context(), callerFrom(ctx))
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"conversations": convs})
}

func (c *ConversationController) UpdateStatus(ctx *gin.Context) {
	id, ok := conversationParam(ctx)
	if !ok {
		return
	}

	type request struct {
		Status domain.ConversationStatus `json:"status" binding:"required"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "invalid request body", err)
		return
	}

	conv, err := c.conversations.UpdateConversationStatus(ctx.Request.Context(), callerFrom(ctx), id, req.Status)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"conversation": conv})
}

func (c *ConversationController) SendMessage(ctx *gin.Context) {
	id, ok := conversationParam(ctx)
	if !ok {
		return
	}

	var req service.SendMessageInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "invalid request body", err)
		return
	}
	req.ConversationID = id

	msg, err := c.conversations.SendMessage(ctx.Request.Context(), callerFrom(ctx), req)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"message": msg})
}

// ListMessages pages forward through the history with ?after_seq= and ?limit=.
func (c *ConversationController) ListMessages(ctx *gin.Context) {
	id, ok := conversationParam(ctx)
	if !ok {
		return
	}

	var page repository.MessagePage
	if v := ctx.Query("after_seq"); v != "" {
		after, err := strconv.ParseInt(v, 10, 64)
		if err != nil || after < 0 {
			badRequest(ctx, "invalid after_seq", nil)
			return
		}
		page.AfterSeq = after
	}
	if v := ctx.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			badRequest(ctx, "invalid limit", nil)
			return
		}
		page.Limit = limit
	}

	msgs, err := c.conversations.ListMessages(ctx.Request.Context(), callerFrom(ctx), id, page)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	if msgs == nil {
		msgs = []*domain.MessageWithSender{}
	}

	ctx.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (c *ConversationController) GetMessage(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("messageID"))
	if err != nil {
		badRequest(ctx, "invalid message id", nil)
		return
	}

	msg, err := c.conversations.GetMessage(ctx.Request.Context(), callerFrom(ctx), id)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": msg})
}

func (c *ConversationController) MarkMessage(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("messageID"))
	if err != nil {
		badRequest(ctx, "invalid message id", nil)
		return
	}

	type request struct {
		Status domain.MessageStatus `json:"status" binding:"required"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "invalid request body", err)
		return
	}

	msg, err := c.conversations.MarkMessage(ctx.Request.Context(), callerFrom(ctx), id, req.Status)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": msg})
}

func conversationParam(ctx *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param("conversationID"))
	if err != nil {
		badRequest(ctx, "invalid conversation id", nil)
		return uuid.Nil, false
	}
	return id, true
}
