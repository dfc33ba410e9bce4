package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"i4.energy/across/loragw/at"
	"i4.energy/across/loragw/modem"
	"i4.energy/across/loragw/payload"
)

// Device is the part of the modem the HTTP and MQTT front ends drive.
type Device interface {
	SendUplink(ctx context.Context, port int, hexPayload string) (at.Status, error)
	Join(ctx context.Context, timeout time.Duration) (at.Status, error)
}

// UplinkRequest is the body of POST /uplink and of MQTT uplink messages.
type UplinkRequest struct {
	Port    int    `json:"port"`
	Payload string `json:"payload"`
}

// eventMessage wraps an event for websocket and MQTT consumers.
type eventMessage struct {
	Kind  string   `json:"kind"`
	Event at.Event `json:"event"`
	Time  int64    `json:"time"`
}

func newEventMessage(ev at.Event) eventMessage {
	return eventMessage{Kind: ev.Kind(), Event: ev, Time: time.Now().Unix()}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

const (
	// eventBuffer is the number of events a websocket client may lag behind
	eventBuffer  = 32
	writeTimeout = 5 * time.Second
)

// Server handles incoming HTTP requests for interacting with the
// configured radio module
type Server struct {
	Logger *slog.Logger
	Device Device
	Hub    *Hub
	// JoinTimeout bounds POST /join, zero uses the modem default
	JoinTimeout time.Duration
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /uplink", s.handleUplink)
	mux.HandleFunc("POST /join", s.handleJoin)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	resp := ErrorResponse{Message: message}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

// sendResult maps a module outcome onto an HTTP response.
func (s *Server) sendResult(w http.ResponseWriter, status at.Status, err error) {
	type StatusResponse struct {
		Status string `json:"status"`
	}

	switch {
	case isValidationError(err):
		s.sendError(w, err.Error(), http.StatusBadRequest)
	case err != nil:
		s.sendError(w, err.Error(), http.StatusServiceUnavailable)
	case status == at.StatusTimeout:
		s.sendError(w, status.String(), http.StatusGatewayTimeout)
	case !status.OK():
		s.sendError(w, status.String(), http.StatusBadGateway)
	default:
		s.sendJSON(w, StatusResponse{Status: status.String()})
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		modem.ErrInvalidPort,
		modem.ErrInvalidPayload,
		modem.ErrPayloadTooLong,
		modem.ErrEmptyCommand,
		modem.ErrInvalidCommand,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// handleUplink transmits {port, payload} where payload is hex encoded
func (s *Server) handleUplink(w http.ResponseWriter, r *http.Request) {
	var req UplinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Payload == "" {
		s.sendError(w, "both 'port' and 'payload' fields are required", http.StatusBadRequest)
		return
	}
	if !payload.Valid(req.Payload) {
		s.sendError(w, "'payload' must be hex encoded, two digits per byte", http.StatusBadRequest)
		return
	}

	status, err := s.Device.SendUplink(r.Context(), req.Port, req.Payload)
	if err != nil || !status.OK() {
		s.Logger.Error("Failed to send uplink", "error", err, "status", status.String(), "port", req.Port)
	} else {
		s.Logger.Info("Uplink sent", "port", req.Port, "payload_length", len(req.Payload)/2)
	}
	s.sendResult(w, status, err)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	status, err := s.Device.Join(r.Context(), s.JoinTimeout)
	if err != nil || !status.OK() {
		s.Logger.Warn("Join failed", "error", err, "status", status.String())
	} else {
		s.Logger.Info("Joined network")
	}
	s.sendResult(w, status, err)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type HealthResponse struct {
		Joined      bool `json:"joined"`
		Subscribers int  `json:"subscribers"`
	}
	s.sendJSON(w, HealthResponse{Joined: s.Hub.Joined(), Subscribers: s.Hub.Subscribers()})
}

// handleEvents upgrades to a websocket and streams events as JSON text
// messages until the client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := s.Hub.Subscribe(eventBuffer)
	defer sub.Close()

	// The read side only detects the client closing the connection
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.Logger.Debug("Event stream opened", "remote", r.RemoteAddr)
	for {
		select {
		case <-gone:
			s.Logger.Debug("Event stream closed", "remote", r.RemoteAddr, "dropped", sub.Dropped())
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(newEventMessage(ev)); err != nil {
				s.Logger.Warn("Websocket write failed", "error", err)
				return
			}
		}
	}
}
