package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/counsel_portal/internal/access"
	"github.com/immxrtalbeast/counsel_portal/internal/service"
)

const callerKey = "caller"

var errMissingToken = errors.New("missing token")

// Authenticator turns a bearer JWT into the access.Caller of the request. The token
// subject is the profile id; tokens are issued elsewhere.
type Authenticator struct {
	secret   []byte
	issuer   string
	profiles service.ProfileInteractor
	log      *slog.Logger
}

func NewAuthenticator(secret, issuer string, profiles service.ProfileInteractor, log *slog.Logger) *Authenticator {
	if log == nil {
		log = slog.Default()
	}
	return &Authenticator{
		secret:   []byte(secret),
		issuer:   issuer,
		profiles: profiles,
		log:      log,
	}
}

func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		raw, err := bearerToken(ctx.Request)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		id, err := a.parse(raw)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		caller, err := a.profiles.ResolveCaller(ctx.Request.Context(), id)
		if err != nil {
			respondError(ctx, a.log, err)
			ctx.Abort()
			return
		}

		ctx.Set(callerKey, caller)
		ctx.Next()
	}
}

func (a *Authenticator) parse(raw string) (uuid.UUID, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return uuid.Nil, err
	}
	if !token.Valid {
		return uuid.Nil, jwt.ErrTokenUnverifiable
	}
	return uuid.Parse(claims.Subject)
}

// bearerToken reads the Authorization header. Browsers cannot set headers on a
// websocket handshake, so upgrades may pass ?token= instead.
func bearerToken(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer "), nil
	}
	if websocket.IsWebSocketUpgrade(r) {
		if t := r.URL.Query().Get("token"); t != "" {
			return t, nil
		}
	}
	return "", errMissingToken
}

func callerFrom(ctx *gin.Context) access.Caller {
	v, ok := ctx.Get(callerKey)
	if !ok {
		return access.Caller{}
	}
	caller, _ := v.(access.Caller)
	return caller
}
