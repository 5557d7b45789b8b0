package control

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// HandleWS runs one command per text message and answers each with a text
// message holding the reply, or "ERR: ..." on failure.
func (s *Session) HandleWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	log.Info().Str("remote", r.RemoteAddr).Msg("control client connected")
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			log.Info().Str("remote", r.RemoteAddr).Msg("control client gone")
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(s.reply(string(data)))); err != nil {
			return
		}
	}
}

// HandleHealth reports the strip state as JSON.
func (s *Session) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp := map[string]any{
		"driver":     s.Driver,
		"pixels":     s.buf.Len(),
		"bpp":        s.buf.BPP(),
		"order":      s.buf.Order().String(),
		"brightness": s.buf.Brightness(),
		"auto_write": s.buf.AutoWrite(),
		"commands":   s.commands,
		"uptime_s":   time.Since(s.startTime).Seconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Mux routes /control and /health to s.
func (s *Session) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/control", s.HandleWS)
	mux.HandleFunc("/health", s.HandleHealth)
	return mux
}
