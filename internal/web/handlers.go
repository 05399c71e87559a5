package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Pooh303/sec3music-bot/internal/music"
)

// respondError maps the command layer's error taxonomy onto HTTP statuses.
// Engine failures surface as 500 with a truncated plain message; nothing
// resembling a stack trace crosses this boundary.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, music.ErrInvalidInput),
		errors.Is(err, music.ErrOutOfBounds),
		errors.Is(err, music.ErrNotSeekable),
		errors.Is(err, music.ErrNoCurrentTrack),
		errors.Is(err, music.ErrNoNextTrack),
		music.IsAlreadyInState(err):
		status = http.StatusBadRequest
	case errors.Is(err, music.ErrChannelNotFound),
		errors.Is(err, music.ErrNoActiveQueue):
		status = http.StatusNotFound
	case errors.Is(err, music.ErrChannelNotJoinable):
		status = http.StatusForbidden
	}

	msg := err.Error()
	if len(msg) > 300 {
		msg = msg[:300]
	}
	c.JSON(status, gin.H{"error": msg})
}

func (s *Server) handleUserInfo(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session token is required"})
		return
	}
	user, ok := s.sessions.Resolve(token)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userId":     user.ID,
		"userName":   user.Name,
		"userAvatar": user.Avatar,
	})
}

func (s *Server) handlePlay(c *gin.Context) {
	var req struct {
		URL    string `json:"url"`
		UserID string `json:"userId"`
	}
	if err := c.BindJSON(&req); err != nil || req.URL == "" || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL and User ID are required"})
		return
	}

	user := s.users.FetchUser(req.UserID)
	if err := s.manager.Play(c.Request.Context(), req.URL, user); err != nil {
		log.Error().Err(err).Str("url", req.URL).Msg("play request failed")
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Request received, playing or adding to queue..."})
}

func (s *Server) handleQueue(c *gin.Context) {
	// Never errors for "no queue": an idle deployment is an empty snapshot.
	c.JSON(http.StatusOK, s.manager.Snapshot())
}

func (s *Server) handleSeek(c *gin.Context) {
	var req struct {
		Time *float64 `json:"time"`
	}
	if err := c.BindJSON(&req); err != nil || req.Time == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Time (in seconds) is required and must be a number"})
		return
	}

	clamped, err := s.manager.Seek(*req.Time)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":           fmt.Sprintf("Seek command sent, jumping to %s", music.FormatDuration(float64(clamped))),
		"requestedSeekTime": clamped,
	})
}

func (s *Server) handleReorder(c *gin.Context) {
	var req struct {
		OldIndex *int `json:"oldIndex"`
		NewIndex *int `json:"newIndex"`
	}
	if err := c.BindJSON(&req); err != nil || req.OldIndex == nil || req.NewIndex == nil || *req.OldIndex < 0 || *req.NewIndex < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Valid oldIndex and newIndex are required"})
		return
	}

	if err := s.manager.Reorder(*req.OldIndex, *req.NewIndex); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Queue reordered successfully"})
}

func (s *Server) handleRemove(c *gin.Context) {
	var req struct {
		Index *int `json:"index"`
	}
	if err := c.BindJSON(&req); err != nil || req.Index == nil || *req.Index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A valid song index is required"})
		return
	}

	title, err := s.manager.Remove(*req.Index)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": fmt.Sprintf("Removed %q from the queue", title)})
}

func (s *Server) handleStop(c *gin.Context) {
	if err := s.manager.Stop(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Playback stopped and queue cleared"})
}

func (s *Server) handleSkip(c *gin.Context) {
	stopped, err := s.manager.Skip(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if stopped {
		c.JSON(http.StatusOK, gin.H{"message": "Skipped the last track, playback stopped"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Skipped to the next track"})
}

func (s *Server) handlePause(c *gin.Context) {
	if err := s.manager.Pause(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Playback paused"})
}

func (s *Server) handleResume(c *gin.Context) {
	if err := s.manager.Resume(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Playback resumed"})
}

func (s *Server) handleVolume(c *gin.Context) {
	var req struct {
		Volume *int `json:"volume"`
	}
	if err := c.BindJSON(&req); err != nil || req.Volume == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Volume must be a number between 0 and 200"})
		return
	}

	if err := s.manager.SetVolume(*req.Volume); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Volume set to %d%%", *req.Volume)})
}

func (s *Server) handleSearch(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A search query (q) is required"})
		return
	}

	results, err := s.search.Search(c.Request.Context(), query, 10)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("search failed")
		respondError(c, err)
		return
	}

	// The web client consumes the YouTube Data API shape, so keep it.
	items := make([]gin.H, 0, len(results))
	for _, r := range results {
		items = append(items, gin.H{
			"id": gin.H{"videoId": r.VideoID},
			"snippet": gin.H{
				"title":        r.Title,
				"channelTitle": r.Channel,
				"thumbnails":   gin.H{"medium": gin.H{"url": r.Thumbnail}},
			},
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
