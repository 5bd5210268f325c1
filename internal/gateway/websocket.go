package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/carewire/consultscribe/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	readDeadline = 60 * time.Second
	pingInterval = 54 * time.Second
)

// safeConn serializes writes: chunk pipelines complete on their own
// goroutines and push frames concurrently with the read loop's replies.
type safeConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *safeConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *safeConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "transcriptionSessionID")
	if !s.manager.SessionActive(sessionID) {
		http.Error(w, "transcription session not found or not active", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}
	defer conn.Close()
	slog.Info("stream connected", "session_id", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sc := &safeConn{conn: conn}
	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})
	go s.pingLoop(ctx, sc)

	if err := sc.writeJSON(connectionConfirmedFrame{
		Type:                         frameTypeConnectionConfirmed,
		TranscriptionSessionID:       sessionID,
		MaxChunkSizeBytes:            session.MaxChunkSizeBytes,
		ExpectedChunkDurationSeconds: session.ExpectedChunkDurationSeconds,
	}); err != nil {
		slog.Error("handshake write failed", "session_id", sessionID, "error", err)
		return
	}

	s.streamLoop(ctx, sc, sessionID)
	// Disconnect does not end the session; end is an explicit call (or the
	// idle reaper's).
	slog.Info("stream disconnected", "session_id", sessionID)
}

func (s *Server) streamLoop(ctx context.Context, sc *safeConn, sessionID string) {
	var pending *chunkMetadataFrame

	deliver := func(res session.ChunkResult) {
		seq := res.SequenceNumber
		if res.Err != nil {
			s.sendError(sc, res.Err.Code, res.Err.Message, &seq)
			return
		}
		if err := sc.writeJSON(transcriptUpdateFrame{
			Type:              frameTypeTranscriptUpdate,
			SequenceNumber:    res.Update.SequenceNumber,
			PartialTranscript: res.Update.Partial,
			FullTranscript:    res.Update.Full,
			ProcessingTimeMs:  float64(res.Update.ProcessingTime.Milliseconds()),
		}); err != nil {
			slog.Warn("transcript update write failed", "session_id", sessionID, "sequence", res.Update.SequenceNumber, "error", err)
		}
	}

	for {
		msgType, data, err := sc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read error", "session_id", sessionID, "error", err)
			}
			return
		}
		_ = sc.conn.SetReadDeadline(time.Now().Add(readDeadline))

		switch msgType {
		case websocket.TextMessage:
			if pending != nil {
				seq := pending.SequenceNumber
				s.sendError(sc, codeMissingBinary, "metadata was not followed by a binary payload", &seq)
			}
			frame, err := decodeMetadataFrame(data)
			if err != nil {
				s.sendError(sc, codeInvalidJSON, err.Error(), nil)
				pending = nil
				continue
			}
			pending = frame

		case websocket.BinaryMessage:
			if pending == nil {
				s.sendError(sc, codeMissingMetadata, "binary payload without preceding metadata", nil)
				continue
			}
			meta := session.ChunkMetadata{
				SequenceNumber:  pending.SequenceNumber,
				SizeBytes:       pending.ChunkSizeBytes,
				DurationSeconds: pending.DurationSeconds,
			}
			pending = nil
			if closed := s.acceptChunk(ctx, sc, sessionID, meta, data, deliver); closed {
				return
			}

		default:
			s.sendError(sc, codeUnknownMessageType, "message must be text or binary", nil)
		}
	}
}

// acceptChunk hands one pair to the pipeline and reports whether the
// connection must close (the session no longer exists or stopped accepting).
func (s *Server) acceptChunk(ctx context.Context, sc *safeConn, sessionID string, meta session.ChunkMetadata, payload []byte, deliver session.ResultFunc) bool {
	err := s.manager.AcceptChunk(ctx, sessionID, meta, payload, deliver)
	if err == nil {
		return false
	}

	seq := meta.SequenceNumber
	var chunkErr *session.ChunkError
	if errors.As(err, &chunkErr) {
		s.sendError(sc, chunkErr.Code, chunkErr.Message, &seq)
		return chunkErr.Code == session.CodeSessionNotActive
	}
	// Session vanished from the registry entirely.
	s.sendError(sc, session.CodeSessionNotActive, err.Error(), &seq)
	return true
}

func (s *Server) sendError(sc *safeConn, code, message string, sequence *int) {
	if err := sc.writeJSON(errorFrame{
		Type:           frameTypeError,
		ErrorCode:      code,
		ErrorMessage:   message,
		SequenceNumber: sequence,
	}); err != nil {
		slog.Warn("error frame write failed", "error_code", code, "error", err)
	}
}

func (s *Server) pingLoop(ctx context.Context, sc *safeConn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sc.ping(); err != nil {
				return
			}
		}
	}
}
