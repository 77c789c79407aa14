package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/counsel_portal/internal/api/http/converter"
	"github.com/immxrtalbeast/counsel_portal/internal/service"
)

type RoomController struct {
	rooms service.VideoInteractor
	log   *slog.Logger
}

func NewRoomController(rooms service.VideoInteractor, log *slog.Logger) *RoomController {
	if log == nil {
		log = slog.Default()
	}
	return &RoomController{rooms: rooms, log: log}
}

func (c *RoomController) CreateRoom(ctx *gin.Context) {
	var req service.CreateRoomInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "invalid request body", err)
		return
	}

	room, err := c.rooms.CreateRoom(ctx.Request.Context(), callerFrom(ctx), req)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"room": converter.RoomToApi(room)})
}

// RegisterRoom records a room id that was allocated by the video provider itself.
func (c *RoomController) RegisterRoom(ctx *gin.Context) {
	var req service.RegisterRoomInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "invalid request body", err)
		return
	}

	room, err := c.rooms.RegisterRoom(ctx.Request.Context(), callerFrom(ctx), req)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"room": converter.RoomToApi(room)})
}

func (c *RoomController) GetRoom(ctx *gin.Context) {
	room, err := c.rooms.GetRoom(ctx.Request.Context(), callerFrom(ctx), ctx.Param("roomID"))
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"room": converter.RoomToApi(room)})
}

func (c *RoomController) StartCall(ctx *gin.Context) {
	room, err := c.rooms.StartCall(ctx.Request.Context(), callerFrom(ctx), ctx.Param("roomID"))
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"room": converter.RoomToApi(room)})
}

func (c *RoomController) EndCall(ctx *gin.Context) {
	room, err := c.rooms.EndCall(ctx.Request.Context(), callerFrom(ctx), ctx.Param("roomID"))
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"room": converter.RoomToApi(room)})
}
