// Package web is the HTTP face of the music remote: the JSON command API,
// the websocket upgrade and the static web client.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Pooh303/sec3music-bot/internal/config"
	"github.com/Pooh303/sec3music-bot/internal/music"
	"github.com/Pooh303/sec3music-bot/internal/session"
	"github.com/Pooh303/sec3music-bot/internal/ws"
	"github.com/Pooh303/sec3music-bot/internal/youtube"
)

// UserDirectory looks up attribution details for a play request.
type UserDirectory interface {
	FetchUser(userID string) music.UserRef
}

// Searcher runs a song search for the web client.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]youtube.SearchResult, error)
}

type Server struct {
	cfg      *config.Config
	manager  *music.Manager
	sessions *session.Registry
	users    UserDirectory
	search   Searcher
	hub      *ws.Hub
	router   *gin.Engine
}

func NewServer(cfg *config.Config, manager *music.Manager, sessions *session.Registry, users UserDirectory, search Searcher, hub *ws.Hub) *Server {
	s := &Server{
		cfg:      cfg,
		manager:  manager,
		sessions: sessions,
		users:    users,
		search:   search,
		hub:      hub,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	api := router.Group("/api")
	api.Use(rateLimitMiddleware(10, 20))
	{
		api.GET("/user-info", s.handleUserInfo)
		api.POST("/play", s.handlePlay)
		api.GET("/queue", s.handleQueue)
		api.POST("/seek", s.handleSeek)
		api.POST("/reorder-queue", s.handleReorder)
		api.POST("/remove", s.handleRemove)
		api.POST("/stop", s.handleStop)
		api.POST("/skip", s.handleSkip)
		api.POST("/pause", s.handlePause)
		api.POST("/resume", s.handleResume)
		api.POST("/volume", s.handleVolume)
		api.GET("/search", s.handleSearch)
	}

	router.GET("/ws", func(c *gin.Context) {
		s.hub.HandleConnection(c.Writer, c.Request)
	})

	// Everything else is the static web client.
	router.NoRoute(gin.WrapH(http.FileServer(http.Dir(s.cfg.ClientDir))))

	return router
}

// Router exposes the handler tree for tests.
func (s *Server) Router() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	srv := &http.Server{Addr: addr, Handler: s.router}

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	log.Info().Str("addr", addr).Str("base_url", s.cfg.BaseURL).Msg("web server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
