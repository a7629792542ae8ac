package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/dkeye/seshd/internal/adapters/signal"
	"github.com/dkeye/seshd/internal/app/orch"
	"github.com/dkeye/seshd/internal/config"
	"github.com/dkeye/seshd/internal/domain"
	"github.com/dkeye/seshd/internal/identity"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	sessionCookie  = "seshd"
	sessionUserKey = "uid"
)

// IdentityMiddleware resolves the caller's user from a bearer token or a
// token query parameter (browsers cannot set headers on websocket
// upgrades) and remembers it in the cookie session. Callers without a token
// stay anonymous; an unknown token is rejected.
func IdentityMiddleware(p identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}

		var uid domain.UserID
		if token != "" {
			resolved, err := p.Resolve(c.Request.Context(), token)
			if err != nil {
				log.Warn().Str("module", "adapters.http").Str("event", "security").Str("ip", c.ClientIP()).Msg("token rejected")
				writeError(c, err)
				c.Abort()
				return
			}
			uid = resolved
			sess.Set(sessionUserKey, string(uid))
			if err := sess.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		} else if v, ok := sess.Get(sessionUserKey).(string); ok {
			uid = domain.UserID(v)
		}
		c.Set(signal.UserIDKey, string(uid))
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	o *orch.Orchestrator,
	ids identity.Provider,
	ws *signal.SignalWSController,
) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionCookie, store))

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	h := &handlers{orch: o}
	r.GET("/healthz", h.health)

	api := r.Group("/api")
	api.Use(IdentityMiddleware(ids))

	api.GET("/ws/session", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("user_id", c.GetString(signal.UserIDKey)).Msg("ws session endpoint hit")
		ws.HandleSignal(ctx, c)
	})
	api.GET("/sessions/nearby", h.nearby)
	api.GET("/sessions/:id", h.session)
	api.POST("/sessions", h.createSession)
	api.GET("/whoami", h.whoami)

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")
	return r
}
