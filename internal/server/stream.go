package server

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/vitalens/internal/message"
	"github.com/sanspareilsmyn/vitalens/internal/pipeline"
	"github.com/sanspareilsmyn/vitalens/internal/session"
)

const writeWait = 5 * time.Second

// streamConn serves one WebSocket client. The read loop is the only writer of
// both the stream and the connection.
type streamConn struct {
	conn     *websocket.Conn
	stream   *session.Stream
	reporter *pipeline.Reporter
	logger   *zap.Logger
}

func (s *Server) stream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	st := s.manager.Create()
	sc := &streamConn{
		conn:     conn,
		stream:   st,
		reporter: s.reporter,
		logger:   s.logger.Named("stream").With(zap.String("session_id", st.ID)),
	}
	defer func() {
		s.manager.Remove(st.ID)
		_ = conn.Close()
		sc.logger.Info("Stream closed", zap.Int("frames", st.Session.Frames()))
	}()

	ctx := c.Request.Context()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if s.cfg.MaxBodyBytes > 0 {
		conn.SetReadLimit(s.cfg.MaxBodyBytes)
	}
	sc.logger.Info("Stream opened", zap.String("remote", c.Request.RemoteAddr))
	sc.serve(ctx)
}

func (sc *streamConn) serve(ctx context.Context) {
	for {
		_, data, err := sc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				sc.logger.Warn("Unexpected stream close", zap.Error(err))
			}
			return
		}

		req, err := message.ParseStreamRequest(data)
		if err != nil {
			if !sc.send(message.StreamResponse{Type: message.TypeError, Error: err.Error()}) {
				return
			}
			continue
		}

		if !sc.handle(ctx, req) {
			return
		}
	}
}

// handle applies one request and reports false once the connection is unusable.
func (sc *streamConn) handle(ctx context.Context, req message.StreamRequest) bool {
	switch req.Type {
	case message.TypeInfo:
		if err := sc.stream.Session.SetAttributes(req.UserAttributes); err != nil {
			return sc.send(message.StreamResponse{Type: message.TypeError, Error: err.Error()})
		}
		return true

	case message.TypeReset:
		sc.stream.Reset()
		snap := sc.stream.Session.Snapshot()
		return sc.send(message.StreamResponse{Type: message.TypeMetrics, SessionID: sc.stream.ID, Metrics: &snap})

	default:
		return sc.frame(ctx, req.FramePayload)
	}
}

func (sc *streamConn) frame(ctx context.Context, p message.FramePayload) bool {
	start := time.Now()
	f, err := p.Frame(0, 0)
	if err != nil {
		pipeline.ObserveFrame(message.SourceStream, session.Outcome{}, err, time.Since(start))
		return sc.send(message.StreamResponse{Type: message.TypeError, Error: err.Error()})
	}

	out, err := sc.stream.Process(f)
	pipeline.ObserveFrame(message.SourceStream, out, err, time.Since(start))
	if err != nil {
		msg := err.Error()
		if errors.Is(err, session.ErrFrameProcessing) {
			msg = session.ErrFrameProcessing.Error()
		}
		return sc.send(message.StreamResponse{Type: message.TypeError, Error: msg})
	}

	res := out.Result
	ok := sc.send(message.StreamResponse{
		Type:      message.TypeMetrics,
		SessionID: sc.stream.ID,
		Status:    out.Status,
		Frames:    res.Frames,
		Metrics:   &res.Snapshot,
		Scores:    &res.Scores,
	})
	if !ok || !res.Completed {
		return ok
	}

	if sc.reporter != nil {
		sc.reporter.Deliver(ctx, pipeline.NewReport(sc.stream.ID, message.SourceStream, res, sc.stream.Session.Attributes()))
	}
	return sc.send(message.StreamResponse{Type: message.TypeScores, SessionID: sc.stream.ID, Scores: &res.Scores}) &&
		sc.send(message.StreamResponse{
			Type:      message.TypeComplete,
			SessionID: sc.stream.ID,
			Frames:    res.Frames,
			Metrics:   &res.Snapshot,
			Scores:    &res.Scores,
		})
}

func (sc *streamConn) send(resp message.StreamResponse) bool {
	_ = sc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := sc.conn.WriteJSON(resp); err != nil {
		sc.logger.Debug("Write failed, closing stream", zap.Error(err))
		return false
	}
	return true
}
