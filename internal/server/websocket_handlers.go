package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fidlab/quadmatch/internal/match"
	"github.com/fidlab/quadmatch/internal/pipeline"
)

// StreamFrame is the JSON envelope for WebSocket stream messages. The
// server answers each match request with progress frames followed by one
// result or error frame.
type StreamFrame struct {
	Type      string        `json:"type"` // "progress", "result" or "error"
	RequestID string        `json:"request_id,omitempty"`
	Stage     string        `json:"stage,omitempty"`
	Progress  float64       `json:"progress,omitempty"`
	Result    *match.Result `json:"result,omitempty"`
	Grade     string        `json:"grade,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// wsWriter is the subset of *websocket.Conn the senders need, split out
// so tests can capture frames.
type wsWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// checkOrigin admits browser connections matching the CORS origin.
// Requests without an Origin header (non-browser clients) pass.
func (s *Server) checkOrigin(r *http.Request) bool {
	if s.corsOrigin == "*" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || origin == s.corsOrigin
}

// matchStreamHandler upgrades the connection and registers frame pairs
// sent over it.
func (s *Server) matchStreamHandler(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	s.handleStreamConnection(conn)
}

// handleStreamConnection processes messages from a WebSocket connection.
func (s *Server) handleStreamConnection(conn *websocket.Conn) {
	// Set read deadline to prevent hanging connections
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Send ping messages to keep connection alive
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}

		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleStreamMessage(conn, data)
		}
	}
}

// handleStreamMessage registers one frame pair and streams the outcome.
func (s *Server) handleStreamMessage(conn wsWriter, data []byte) {
	var req MatchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendStreamError(conn, "", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	// Request ID ties the response frames back to this message
	requestID := strconv.FormatInt(time.Now().UnixNano(), 10)

	s.sendStreamFrame(conn, StreamFrame{
		Type:      "progress",
		RequestID: requestID,
		Stage:     "received",
		Progress:  0.0,
	})

	ref, err := req.Ref.toSet("ref")
	if err != nil {
		s.sendStreamError(conn, requestID, err.Error())
		return
	}
	other, err := req.Other.toSet("other")
	if err != nil {
		s.sendStreamError(conn, requestID, err.Error())
		return
	}

	s.sendStreamFrame(conn, StreamFrame{
		Type:      "progress",
		RequestID: requestID,
		Stage:     "matching",
		Progress:  0.5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.pipeline.MatchSets(ctx, ref, other, req.Tolerance)
	duration := time.Since(start)

	if err != nil {
		matchRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendStreamError(conn, requestID, err.Error())
		return
	}

	matchRequestsTotal.WithLabelValues("websocket", "success").Inc()
	matchDuration.WithLabelValues("websocket").Observe(duration.Seconds())
	matchRatio.Observe(res.Ratio)

	s.sendStreamFrame(conn, StreamFrame{
		Type:      "result",
		RequestID: requestID,
		Progress:  1.0,
		Result:    res,
		Grade:     pipeline.RatioLabel(res.Ratio),
	})
}

// sendStreamFrame sends one envelope over the connection.
func (s *Server) sendStreamFrame(conn wsWriter, frame StreamFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Error("Failed to marshal stream frame", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send stream frame", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendStreamError sends an error envelope over the connection.
func (s *Server) sendStreamError(conn wsWriter, requestID, message string) {
	s.sendStreamFrame(conn, StreamFrame{
		Type:      "error",
		RequestID: requestID,
		Error:     message,
	})
}
