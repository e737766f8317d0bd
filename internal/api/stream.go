package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/genotype-insight-server/internal/domain"
	"github.com/genotype-insight-server/internal/history"
	"github.com/genotype-insight-server/internal/logging"
)

const (
	streamWriteWait = 10 * time.Second
	streamIdle      = 2 * time.Minute
)

// StreamResponse answers one websocket frame.
type StreamResponse struct {
	Results    []domain.InterpretationReport `json:"results"`
	Stats      domain.BatchStats             `json:"stats"`
	AnalysisID string                        `json:"analysis_id,omitempty"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	origins := s.configManager.GetConfig().Server.AllowedOrigins
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed["*"] || allowed[origin]
		},
	}
}

// handleStream interprets each text frame as an independent batch and answers it with
// the batch result.
func (s *Server) handleStream(c *gin.Context) {
	ctx := c.Request.Context()
	log := logging.FromContext(ctx, s.logger)

	conn, err := s.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(s.maxUploadBytes())
	frames := 0
	for {
		_ = conn.SetReadDeadline(time.Now().Add(streamIdle))
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("Genotype stream closed unexpectedly")
			}
			if errors.Is(err, websocket.ErrReadLimit) {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseMessageTooBig, "frame too large"),
					time.Now().Add(streamWriteWait))
			}
			break
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		frames++

		result := s.interpreter.InterpretBatchContext(ctx, string(data))
		analysisID := s.recordAnalysis(ctx, history.SourceStream, "", result)

		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(StreamResponse{
			Results:    result.Reports,
			Stats:      result.Stats,
			AnalysisID: analysisID,
		}); err != nil {
			log.WithError(err).Warn("Failed to write stream response")
			break
		}
	}

	log.WithField("frames", frames).Debug("Genotype stream finished")
}
