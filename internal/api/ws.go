package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"ecopredict/internal/ecosystem"
)

// handleSnapshotStream accepts a WebSocket connection over which a
// simulator streams Snapshot JSON frames. Each frame is persisted to
// the history store; the connection stays open until the peer closes
// it or a frame fails to parse.
func (s *Server) handleSnapshotStream(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("snapshot store not configured"))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log.Info().Str("remote", conn.RemoteAddr().String()).Msg("snapshot stream connected")

	for {
		var snap ecosystem.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("snapshot stream closed unexpectedly")
			}
			return
		}

		if err := s.store.AppendSnapshot(snap); err != nil {
			log.Error().Err(err).Int("step", snap.Step).Msg("failed to persist snapshot")
			if s.metrics != nil {
				s.metrics.ErrorsTotal.Inc()
			}
			continue
		}

		if s.metrics != nil {
			s.metrics.SnapshotsIngested.Inc()
		}
	}
}
