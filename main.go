package main

import (
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"auxparty/config"
	"auxparty/crypto"
	"auxparty/game"
	"auxparty/logger"
	"auxparty/music"
)

func CreateServer(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.SetTrustedProxies([]string{"127.0.0.1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"})
	r.Use(gin.Recovery())
	r.GET("/health", func(ctx *gin.Context) { ctx.String(200, "healthy") })

	r.Use(func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")
		if origin == "" || slices.Contains(allowedOrigins, origin) {
			ctx.Next()
			return
		}
		ctx.String(http.StatusForbidden, "forbidden origin")
		ctx.Abort()
	})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Authorization",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
	}))

	return r
}

func main() {
	log := logger.New(config.Envs.LOG_PRETTY == "true")

	if config.Envs.GIN_MODE != "" {
		gin.SetMode(config.Envs.GIN_MODE)
	}
	allowedOrigins := strings.Split(config.Envs.ALLOWED_ORIGINS, ",")
	if len(config.Envs.JWT_KEY) == 0 {
		log.Fatal().Msg("missing jwt signing key")
	}
	port := config.Envs.PORT
	if port == "" {
		port = "5000"
	}

	tokenManager := crypto.NewJWTManager(config.Envs.JWT_KEY)

	// The listening-history pipeline lives in its own service; the
	// static provider keeps local runs self-contained.
	provider := music.StaticProvider{}

	registry := game.NewRegistry(log)
	hub := game.NewHub(log)
	broadcast := func(room *game.Room) {
		hub.Broadcast(room.Code, "gameStateUpdated", game.GameStatePayload(room))
	}
	deps := game.NewDeps(registry, broadcast, provider, provider, log)
	minigames := game.RegisterMinigames(deps, log, []func(game.Deps) game.Minigame{
		game.NewWhoListenedMost,
		game.NewHeardle,
		game.NewGuessTheSummary,
	})
	registry.SetRoundFactories(minigames.RoundFactories())

	gateway := game.NewServer(registry, hub, minigames, tokenManager, log)

	r := CreateServer(allowedOrigins)
	r.GET("/ws", gateway.WebsocketHandler)

	go func() {
		if err := r.Run(":" + port); err != nil {
			log.Fatal().Err(err).Msg("server exited")
		}
	}()
	log.Info().Str("port", port).Msg("server started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, os.Interrupt)
	<-sigCh
	log.Info().Msg("SIGTERM or SIGINT received, shutting down")
}
