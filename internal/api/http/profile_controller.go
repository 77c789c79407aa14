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

type ProfileController struct {
	profiles service.ProfileInteractor
	log      *slog.Logger
}

func NewProfileController(profiles service.ProfileInteractor, log *slog.Logger) *ProfileController {
	if log == nil {
		log = slog.Default()
	}
	return &ProfileController{profiles: profiles, log: log}
}

// CreateProfile registers the profile row of the authenticated caller.
func (c *ProfileController) CreateProfile(ctx *gin.Context) {
	var req service.CreateProfileInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "invalid request body", err)
		return
	}

	profile, err := c.profiles.CreateProfile(ctx.Request.Context(), callerFrom(ctx), req)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"profile": profile})
}

func (c *ProfileController) Me(ctx *gin.Context) {
	caller := callerFrom(ctx)
	profile, err := c.profiles.GetProfile(ctx.Request.Context(), caller, caller.ID)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"profile": profile})
}

func (c *ProfileController) GetProfile(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("profileID"))
	if err != nil {
		badRequest(ctx, "invalid profile id", nil)
		return
	}

	profile, err := c.profiles.GetProfile(ctx.Request.Context(), callerFrom(ctx), id)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"profile": profile})
}

func (c *ProfileController) ListProfiles(ctx *gin.Context) {
	filter := repository.ProfileFilter{Role: domain.Role(ctx.Query("role"))}
	if v := ctx.Query("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(ctx, "invalid active flag", nil)
			return
		}
		filter.ActiveOnly = active
	}

	profiles, err := c.profiles.ListProfiles(ctx.Request.Context(), callerFrom(ctx), filter)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

func (c *ProfileController) UpdateProfile(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("profileID"))
	if err != nil {
		badRequest(ctx, "invalid profile id", nil)
		return
	}

	var req service.UpdateProfileInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "invalid request body", err)
		return
	}

	profile, err := c.profiles.UpdateProfile(ctx.Request.Context(), callerFrom(ctx), id, req)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"profile": profile})
}
