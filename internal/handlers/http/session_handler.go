package http

import (
	"context"
	"net/http"

	"splitstream/internal/core/domain"
	"splitstream/internal/core/ports"
	"splitstream/internal/infrastructure/middleware"
	"splitstream/internal/infrastructure/share"
	apperrors "splitstream/pkg/errors"
	"splitstream/pkg/validation"

	"github.com/gin-gonic/gin"
)

// LiveFeed streams a session's analytics records over a websocket.
type LiveFeed interface {
	ServeSession(w http.ResponseWriter, r *http.Request, sessionID domain.SessionID)
}

type SessionHandler struct {
	sessionService ports.SessionService
	identity       ports.IdentityProvider
	feed           LiveFeed
}

// NewSessionHandler wires the session routes. feed may be nil, in which case
// the events route answers 503.
func NewSessionHandler(sessionService ports.SessionService, identity ports.IdentityProvider, feed LiveFeed) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		identity:       identity,
		feed:           feed,
	}
}

func (h *SessionHandler) SetupRoutes(api *gin.RouterGroup, feedMiddleware ...gin.HandlerFunc) {
	sessions := api.Group("/sessions", validatePathIDs)
	{
		sessions.POST("", h.CreateSession)
		sessions.GET("/:id", h.GetSession)
		sessions.DELETE("/:id", h.EndSession)
		sessions.POST("/:id/share", h.ShareSession)

		sessions.POST("/:id/streams", h.AddStream)
		sessions.DELETE("/:id/streams/:streamId", h.RemoveStream)
		sessions.POST("/:id/streams/:streamId/play", h.TogglePlay)
		sessions.POST("/:id/streams/:streamId/mute", h.ToggleMute)
		sessions.POST("/:id/streams/:streamId/favorite", middleware.RequireActor(), h.FavoriteStream)

		events := append(append([]gin.HandlerFunc{}, feedMiddleware...), h.SessionEvents)
		sessions.GET("/:id/events", events...)
	}

	api.GET("/favorites", middleware.RequireActor(), h.ListFavorites)
}

// validatePathIDs rejects malformed :id and :streamId parameters.
func validatePathIDs(c *gin.Context) {
	for param, field := range map[string]string{"id": "session id", "streamId": "stream id"} {
		value := c.Param(param)
		if value == "" {
			continue
		}
		if err := validation.ValidateID(value, field); err != nil {
			_ = c.Error(apperrors.NewInvalidInputError(err.Error()))
			c.Abort()
			return
		}
	}
	c.Next()
}

type streamResponse struct {
	domain.Stream
	EmbedURL string `json:"embed_url"`
}

func newStreamResponse(s *domain.Stream) streamResponse {
	return streamResponse{Stream: *s, EmbedURL: s.EmbedURL()}
}

type sessionResponse struct {
	Session domain.Session          `json:"session"`
	Streams []streamResponse        `json:"streams"`
	Layout  domain.LayoutDescriptor `json:"layout"`
}

func (h *SessionHandler) actor(c *gin.Context) domain.ActorID {
	actor, _ := h.identity.CurrentActor(c.Request.Context())
	return actor
}

func (h *SessionHandler) CreateSession(c *gin.Context) {
	tier := middleware.CurrentTier(c.Request.Context())

	session, err := h.sessionService.CreateSession(c.Request.Context(), h.actor(c), tier)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session": session,
	})
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	view, err := h.sessionService.GetSession(c.Request.Context(), domain.SessionID(c.Param("id")))
	if err != nil {
		_ = c.Error(err)
		return
	}

	streams := make([]streamResponse, 0, len(view.Streams))
	for i := range view.Streams {
		streams = append(streams, newStreamResponse(&view.Streams[i]))
	}

	c.JSON(http.StatusOK, sessionResponse{
		Session: view.Session,
		Streams: streams,
		Layout:  view.Layout,
	})
}

func (h *SessionHandler) AddStream(c *gin.Context) {
	// A missing or blank url is left to the service, which reports it as an
	// invalid source after the capacity check.
	var req struct {
		URL string `json:"url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidInputError("request body must be a JSON object"))
		return
	}

	stream, err := h.sessionService.AddStream(c.Request.Context(), domain.SessionID(c.Param("id")), h.actor(c), req.URL)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"stream": newStreamResponse(stream),
	})
}

func (h *SessionHandler) RemoveStream(c *gin.Context) {
	stream, err := h.sessionService.RemoveStream(c.Request.Context(),
		domain.SessionID(c.Param("id")), h.actor(c), domain.StreamID(c.Param("streamId")))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stream": newStreamResponse(stream),
	})
}

func (h *SessionHandler) TogglePlay(c *gin.Context) {
	h.toggle(c, h.sessionService.TogglePlay)
}

func (h *SessionHandler) ToggleMute(c *gin.Context) {
	h.toggle(c, h.sessionService.ToggleMute)
}

func (h *SessionHandler) toggle(c *gin.Context, fn func(ctx context.Context, id domain.SessionID, caller domain.ActorID, streamID domain.StreamID) (*domain.Stream, error)) {
	stream, err := fn(c.Request.Context(), domain.SessionID(c.Param("id")), h.actor(c), domain.StreamID(c.Param("streamId")))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stream": newStreamResponse(stream),
	})
}

func (h *SessionHandler) FavoriteStream(c *gin.Context) {
	favorite, err := h.sessionService.FavoriteStream(c.Request.Context(),
		domain.SessionID(c.Param("id")), h.actor(c), domain.StreamID(c.Param("streamId")))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"favorite": favorite,
	})
}

func (h *SessionHandler) ListFavorites(c *gin.Context) {
	favorites, err := h.sessionService.ListFavorites(c.Request.Context(), h.actor(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if favorites == nil {
		favorites = []domain.Favorite{}
	}

	c.JSON(http.StatusOK, gin.H{
		"favorites": favorites,
	})
}

func (h *SessionHandler) ShareSession(c *gin.Context) {
	clipboard := share.NewServerShare()

	result, err := h.sessionService.ShareSession(c.Request.Context(), domain.SessionID(c.Param("id")), h.actor(c), clipboard)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"method":  result.Method,
		"payload": result.Payload,
		"copied":  clipboard.Copied(),
	})
}

func (h *SessionHandler) EndSession(c *gin.Context) {
	summary, err := h.sessionService.EndSession(c.Request.Context(), domain.SessionID(c.Param("id")), h.actor(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"recorded": summary != nil,
		"summary":  summary,
	})
}

func (h *SessionHandler) SessionEvents(c *gin.Context) {
	if h.feed == nil {
		_ = c.Error(apperrors.NewServiceUnavailableError("live feed disabled"))
		return
	}

	id := domain.SessionID(c.Param("id"))
	if err := h.sessionService.Authorize(c.Request.Context(), id, h.actor(c)); err != nil {
		_ = c.Error(err)
		return
	}

	h.feed.ServeSession(c.Writer, c.Request, id)
}
