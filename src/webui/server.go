// Package webui serves the notification channel: a websocket that pushes
// action failures, profile loads and statistics, plus a small JSON API.
package webui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/0h41/midikontrol/src/actions"
	"github.com/0h41/midikontrol/src/engine"
	"github.com/0h41/midikontrol/src/mapping"
	"github.com/0h41/midikontrol/src/pulseaudio"
	"github.com/0h41/midikontrol/src/state"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	ActionFailedType      = "actionFailed"
	ProfileLoadedType     = "profileLoaded"
	ProfileLoadFailedType = "profileLoadFailed"
	StatisticsType        = "statistics"
	StatesType            = "states"
	AudioSourcesType      = "audioSources"
)

// StatsSource provides the counters published on the channel.
type StatsSource interface {
	GetRegistryStatistics() mapping.Statistics
	ExecutionStats() actions.Stats
}

// AudioSources lists mixer targets. Optional.
type AudioSources interface {
	GetAudioSources() ([]pulseaudio.AudioSource, error)
}

type Notification struct {
	Type string      `json:"type"`
	Time time.Time   `json:"time"`
	Data interface{} `json:"data,omitempty"`
}

type Statistics struct {
	Registry  mapping.Statistics `json:"registry"`
	Execution actions.Stats      `json:"execution"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(message []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

type WebUIServer struct {
	Addr     string
	log      zerolog.Logger
	upgrader websocket.Upgrader
	stats    StatsSource
	store    *state.Store
	sources  AudioSources

	mu        sync.Mutex
	clients   map[*client]bool
	broadcast chan []byte
	stopChan  chan struct{}
	stopOnce  sync.Once
	server    *http.Server

	// Interval of the statistics poll
	PollInterval time.Duration
}

// checkOrigin accepts clients without an Origin header, pages served from the
// same host and pages on a loopback host. Any other site the user browses to
// is refused.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	switch strings.ToLower(u.Hostname()) {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

func NewWebUIServer(addr string, stats StatsSource, store *state.Store, sources AudioSources) *WebUIServer {
	return &WebUIServer{
		Addr: addr,
		log:  log.With().Str("module", "WebUI").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		stats:        stats,
		store:        store,
		sources:      sources,
		clients:      make(map[*client]bool),
		broadcast:    make(chan []byte, 64),
		stopChan:     make(chan struct{}),
		PollInterval: 2 * time.Second,
	}
}

// Handler returns the HTTP routes of the server.
func (s *WebUIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/states", s.handleStates)
	return mux
}

// Start serves until Stop is called.
func (s *WebUIServer) Start() error {
	go s.handleBroadcasts()
	go s.monitorStatistics()

	s.log.Info().Msgf("Starting web server on %s", s.Addr)
	s.mu.Lock()
	s.server = &http.Server{
		Addr:        s.Addr,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
	}
	server := s.server
	s.mu.Unlock()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *WebUIServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.mu.Lock()
		server := s.server
		for c := range s.clients {
			c.conn.Close()
			delete(s.clients, c)
		}
		s.mu.Unlock()
		if server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			server.Shutdown(ctx)
		}
	})
}

func (s *WebUIServer) statistics() Statistics {
	return Statistics{
		Registry:  s.stats.GetRegistryStatistics(),
		Execution: s.stats.ExecutionStats(),
	}
}

func encode(kind string, data interface{}) ([]byte, error) {
	return json.Marshal(Notification{Type: kind, Time: time.Now(), Data: data})
}

func (s *WebUIServer) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("Failed to write response")
	}
}

func (s *WebUIServer) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.statistics())
}

func (s *WebUIServer) handleStates(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.store.Snapshot(true))
}

func (s *WebUIServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to upgrade to websocket")
		return
	}
	defer conn.Close()

	c := &client{conn: conn}
	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()
	defer s.removeClient(c)

	s.log.Info().Msgf("New WebSocket client connected: %s", conn.RemoteAddr())

	// Send initial message to confirm connection
	welcome, _ := encode("welcome", map[string]string{"message": "Connected to midikontrol"})
	if err := c.write(welcome); err != nil {
		s.log.Error().Err(err).Msg("Failed to send welcome message")
		return
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			s.log.Info().Msgf("WebSocket client disconnected: %s", conn.RemoteAddr())
			return
		}
		s.log.Debug().Msgf("Received message: %s", string(message))

		reply, err := s.handleClientMessage(message)
		if err != nil {
			s.log.Error().Err(err).Msg("Invalid client message")
			reply, _ = encode("error", map[string]string{"message": err.Error()})
		}
		if reply == nil {
			continue
		}
		if err := c.write(reply); err != nil {
			s.log.Error().Err(err).Msg("Failed to reply to client")
			return
		}
	}
}

type clientMessage struct {
	Type  string `json:"type"`
	Key   string `json:"key"`
	Value *int   `json:"value"`
}

func (s *WebUIServer) handleClientMessage(message []byte) ([]byte, error) {
	var msg clientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse client message: %w", err)
	}

	switch msg.Type {
	case "getStatistics":
		return encode(StatisticsType, s.statistics())
	case "getStates":
		return encode(StatesType, s.store.Snapshot(true))
	case "setState":
		if msg.Key == "" || msg.Value == nil {
			return nil, errors.New("setState needs a key and a value")
		}
		if state.IsInternal(msg.Key) {
			return nil, fmt.Errorf("state key %q is reserved", msg.Key)
		}
		s.store.Set(msg.Key, *msg.Value)
		return encode(StatesType, s.store.Snapshot(true))
	case "getAudioSources":
		if s.sources == nil {
			return nil, errors.New("audio sources are not available")
		}
		sources, err := s.sources.GetAudioSources()
		if err != nil {
			return nil, err
		}
		return encode(AudioSourcesType, sources)
	case "":
		return nil, errors.New("message missing 'type' field")
	}
	return nil, fmt.Errorf("unknown message type %q", msg.Type)
}

func (s *WebUIServer) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
}

func (s *WebUIServer) handleBroadcasts() {
	for {
		select {
		case message := <-s.broadcast:
			s.mu.Lock()
			clients := make([]*client, 0, len(s.clients))
			for c := range s.clients {
				clients = append(clients, c)
			}
			s.mu.Unlock()

			s.log.Trace().Int("clientCount", len(clients)).Str("message", string(message)).Msg("Broadcasting message to WebSocket clients")
			for _, c := range clients {
				if err := c.write(message); err != nil {
					s.log.Error().Err(err).Msg("Failed to send message to client")
					c.conn.Close()
					s.removeClient(c)
				}
			}
		case <-s.stopChan:
			return
		}
	}
}

// monitorStatistics publishes the statistics whenever they change
func (s *WebUIServer) monitorStatistics() {
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	var prevStateHash uint64
	for {
		select {
		case <-ticker.C:
			data, err := json.Marshal(s.statistics())
			if err != nil {
				s.log.Error().Err(err).Msg("Failed to marshal statistics")
				continue
			}
			h := fnv.New64a()
			h.Write(data)
			if current := h.Sum64(); current != prevStateHash {
				prevStateHash = current
				s.publish(StatisticsType, s.statistics())
			}
		case <-s.stopChan:
			return
		}
	}
}

// publish queues a notification without blocking; it is dropped when the
// queue is full.
func (s *WebUIServer) publish(kind string, data interface{}) {
	message, err := encode(kind, data)
	if err != nil {
		s.log.Error().Err(err).Str("type", kind).Msg("Failed to marshal notification")
		return
	}
	select {
	case s.broadcast <- message:
	default:
		s.log.Debug().Str("type", kind).Msg("Notification queue full, dropping")
	}
}

// ActionFailed implements actions.Reporter.
func (s *WebUIServer) ActionFailed(a actions.Action, err error) {
	s.publish(ActionFailedType, map[string]interface{}{
		"actionId":    a.ID().String(),
		"kind":        a.Kind(),
		"description": a.Description(),
		"error":       err.Error(),
	})
}

// ProfileLoaded implements engine.Observer.
func (s *WebUIServer) ProfileLoaded(report engine.LoadReport) {
	s.publish(ProfileLoadedType, map[string]interface{}{
		"report":   report,
		"failures": report.FailureMessages(),
	})
}

// ProfileLoadFailed implements engine.Observer.
func (s *WebUIServer) ProfileLoadFailed(path string, err error) {
	s.publish(ProfileLoadFailedType, map[string]interface{}{
		"path":  path,
		"error": err.Error(),
	})
}

var (
	_ actions.Reporter = (*WebUIServer)(nil)
	_ engine.Observer  = (*WebUIServer)(nil)
)
