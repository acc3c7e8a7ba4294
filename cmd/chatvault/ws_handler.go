package main

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// handleEventStream bridges the in-process event bus to a websocket client.
// Each bus event is sent as one JSON frame. Slow clients fall behind on their
// bus buffer and miss events rather than slowing publishers down.
func (s *Server) handleEventStream() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			s.logger.WithError(err).Debug("Websocket accept failed")
			return
		}
		defer conn.Close(websocket.StatusInternalError, "stream closed")

		ch, cancel := s.bus.Subscribe()
		defer cancel()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				conn.Close(websocket.StatusNormalClosure, "")
				return
			case ev, ok := <-ch:
				if !ok {
					conn.Close(websocket.StatusNormalClosure, "bus closed")
					return
				}
				writeCtx, cancelWrite := context.WithTimeout(ctx, 5*time.Second)
				err := wsjson.Write(writeCtx, conn, ev)
				cancelWrite()
				if err != nil {
					s.logger.WithError(err).Debug("Websocket write failed, dropping client")
					return
				}
			}
		}
	}
}
