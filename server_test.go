package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"i4.energy/across/loragw/at"
	"i4.energy/across/loragw/modem"
)

// fakeDevice records requests and answers with a fixed outcome.
type fakeDevice struct {
	mu      sync.Mutex
	uplinks []UplinkRequest
	joins   int
	status  at.Status
	err     error
}

func (d *fakeDevice) SendUplink(ctx context.Context, port int, hexPayload string) (at.Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if port < modem.MinPort || port > modem.MaxPort {
		return at.StatusResponseInvalid, fmt.Errorf("%w: %d", modem.ErrInvalidPort, port)
	}
	d.uplinks = append(d.uplinks, UplinkRequest{Port: port, Payload: hexPayload})
	return d.status, d.err
}

func (d *fakeDevice) Join(ctx context.Context, timeout time.Duration) (at.Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.joins++
	return d.status, d.err
}

func (d *fakeDevice) Uplinks() []UplinkRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]UplinkRequest(nil), d.uplinks...)
}

func newTestServer(dev *fakeDevice) *Server {
	return &Server{
		Logger: slog.New(slog.DiscardHandler),
		Device: dev,
		Hub:    NewHub(nil),
	}
}

func TestServerUplink(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		status     at.Status
		err        error
		wantCode   int
		wantSent   bool
		wantInBody string
	}{
		{
			name:       "Success",
			body:       `{"port": 2, "payload": "CAFE"}`,
			status:     at.StatusSuccess,
			wantCode:   http.StatusOK,
			wantSent:   true,
			wantInBody: `"status":"success"`,
		},
		{
			name:     "Malformed JSON",
			body:     `{"port": 2,`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "Missing payload",
			body:     `{"port": 2}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:       "Payload not hex",
			body:       `{"port": 2, "payload": "CAF"}`,
			wantCode:   http.StatusBadRequest,
			wantInBody: "hex encoded",
		},
		{
			name:     "Invalid port",
			body:     `{"port": 0, "payload": "CAFE"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:       "Not joined",
			body:       `{"port": 1, "payload": "00"}`,
			status:     at.StatusLoRaNotJoined,
			wantCode:   http.StatusBadGateway,
			wantSent:   true,
			wantInBody: "LoRa not joined",
		},
		{
			name:     "Module timeout",
			body:     `{"port": 1, "payload": "00"}`,
			status:   at.StatusTimeout,
			wantCode: http.StatusGatewayTimeout,
			wantSent: true,
		},
		{
			name:     "Session failure",
			body:     `{"port": 1, "payload": "00"}`,
			status:   at.StatusTimeout,
			err:      modem.ErrLoopNotRunning,
			wantCode: http.StatusServiceUnavailable,
			wantSent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &fakeDevice{status: tt.status, err: tt.err}
			srv := newTestServer(dev)

			req := httptest.NewRequest(http.MethodPost, "/uplink", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("expected HTTP %d, got %d (%s)", tt.wantCode, rec.Code, rec.Body.String())
			}
			if sent := len(dev.Uplinks()) == 1; sent != tt.wantSent {
				t.Errorf("expected sent=%v, got uplinks %+v", tt.wantSent, dev.Uplinks())
			}
			if tt.wantInBody != "" && !strings.Contains(rec.Body.String(), tt.wantInBody) {
				t.Errorf("expected body to contain %q, got %q", tt.wantInBody, rec.Body.String())
			}
		})
	}
}

func TestServerJoin(t *testing.T) {
	dev := &fakeDevice{status: at.StatusLoRaJoinFailed}
	srv := newTestServer(dev)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/join", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected HTTP 502 for a failed join, got %d", rec.Code)
	}

	dev.status = at.StatusSuccess
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/join", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected HTTP 200, got %d", rec.Code)
	}
	if dev.joins != 2 {
		t.Errorf("expected 2 join calls, got %d", dev.joins)
	}
}

func TestServerMethodNotAllowed(t *testing.T) {
	srv := newTestServer(&fakeDevice{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uplink", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected HTTP 405, got %d", rec.Code)
	}
}

func TestServerHealth(t *testing.T) {
	srv := newTestServer(&fakeDevice{})
	srv.Hub.HandleEvent(at.JoinCompletion{Success: true})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected HTTP 200, got %d", rec.Code)
	}

	var health struct {
		Joined bool `json:"joined"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if !health.Joined {
		t.Error("expected joined after a successful join event")
	}
}

func TestServerEvents(t *testing.T) {
	srv := newTestServer(&fakeDevice{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()
	if resp.Body != nil {
		io.Copy(io.Discard, resp.Body)
	}

	deadline := time.Now().Add(time.Second)
	for srv.Hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket client never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	srv.Hub.HandleEvent(at.DownlinkReceived{Port: 3, RSSI: -90, SNR: 7, Payload: "0102"})

	var msg struct {
		Kind  string              `json:"kind"`
		Event at.DownlinkReceived `json:"event"`
	}
	conn.SetReadDeadline(time.Now().Add(time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if msg.Kind != "downlink" {
		t.Errorf("expected downlink kind, got %q", msg.Kind)
	}
	if want := (at.DownlinkReceived{Port: 3, RSSI: -90, SNR: 7, Payload: "0102"}); msg.Event != want {
		t.Errorf("expected %+v, got %+v", want, msg.Event)
	}

	conn.Close()
	deadline = time.Now().Add(time.Second)
	for srv.Hub.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription not released after the client left")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
