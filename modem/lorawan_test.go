package modem_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
	"i4.energy/across/loragw/at"
	"i4.energy/across/loragw/modem"
)

const (
	testAppEUI  = "70B3D57ED0000001"
	testAppKey  = "2B7E151628AED2A6ABF7158809CF4F3C"
	testDevAddr = "26011BDA"
	testNwkSKey = "000102030405060708090A0B0C0D0E0F"
	testAppSKey = "F0E0D0C0B0A090807060504030201000"
)

// reply waits for want on the wire and answers it with resp.
func reply(t *testing.T, tt *modem.TestTransport, want, resp string) {
	t.Helper()
	expectWrite(t, tt, want)
	tt.SendData(resp)
}

type statusCall func(ctx context.Context) (at.Status, error)

func callAsync(ctx context.Context, op statusCall) <-chan sendResult {
	done := make(chan sendResult, 1)
	go func() {
		status, err := op(ctx)
		done <- sendResult{status, err}
	}()
	return done
}

func TestDeviceSettings(t *testing.T) {
	tests := []struct {
		name string
		op   func(m *modem.Modem) statusCall
		want string
		resp string
	}{
		{
			name: "Class A",
			op: func(m *modem.Modem) statusCall {
				return func(ctx context.Context) (at.Status, error) { return m.SetClass(ctx, modem.ClassA) }
			},
			want: "at+set_config=lora:class:0",
			resp: "OK\r\n",
		},
		{
			name: "Class C",
			op: func(m *modem.Modem) statusCall {
				return func(ctx context.Context) (at.Status, error) { return m.SetClass(ctx, modem.ClassC) }
			},
			want: "at+set_config=lora:class:2",
			resp: "OK\r\n",
		},
		{
			name: "Region is upper cased",
			op: func(m *modem.Modem) statusCall {
				return func(ctx context.Context) (at.Status, error) { return m.SetRegion(ctx, "eu868") }
			},
			want: "at+set_config=lora:region:EU868",
			resp: "OK\r\n",
		},
		{
			name: "Confirmed uplinks",
			op: func(m *modem.Modem) statusCall {
				return func(ctx context.Context) (at.Status, error) { return m.SetConfirmed(ctx, true) }
			},
			want: "at+set_config=lora:confirm:1",
			resp: "OK\r\n",
		},
		{
			name: "ADR off",
			op: func(m *modem.Modem) statusCall {
				return func(ctx context.Context) (at.Status, error) { return m.SetADR(ctx, false) }
			},
			want: "at+set_config=lora:adr:0",
			resp: "OK\r\n",
		},
		{
			name: "Sleep",
			op: func(m *modem.Modem) statusCall {
				return m.Sleep
			},
			want: "at+set_config=device:sleep:1",
			resp: "OK Sleep\r\n",
		},
		{
			name: "Wake",
			op: func(m *modem.Modem) statusCall {
				return m.Wake
			},
			want: "at+set_config=device:sleep:0",
			resp: "\x00\x00OK Wake Up\r\n",
		},
		{
			name: "Restart waits for initialization",
			op: func(m *modem.Modem) statusCall {
				return m.Restart
			},
			want: "at+set_config=device:restart",
			resp: "UART1 RX: 115200\r\nRAK811 Version:3.0.0.14\r\nInitialization OK\r\n",
		},
		{
			name: "Dev EUI",
			op: func(m *modem.Modem) statusCall {
				return func(ctx context.Context) (at.Status, error) { return m.SetDevEUI(ctx, "0011223344aabbcc") }
			},
			want: "at+set_config=lora:dev_eui:0011223344AABBCC",
			resp: "OK\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, transport, _ := startTestModem(t, nil)

			done := callAsync(context.Background(), tt.op(m))
			reply(t, transport, tt.want, tt.resp)

			r := awaitResult(t, done)
			if r.err != nil || r.status != at.StatusSuccess {
				t.Errorf("expected success, got status %v err %v", r.status, r.err)
			}
		})
	}
}

func TestArgumentValidation(t *testing.T) {
	tests := []struct {
		name    string
		op      func(ctx context.Context, m *modem.Modem) (at.Status, error)
		wantErr error
	}{
		{
			name:    "Class B",
			op:      func(ctx context.Context, m *modem.Modem) (at.Status, error) { return m.SetClass(ctx, modem.ClassB) },
			wantErr: modem.ErrClassUnsupported,
		},
		{
			name:    "Unknown region",
			op:      func(ctx context.Context, m *modem.Modem) (at.Status, error) { return m.SetRegion(ctx, "XX868") },
			wantErr: modem.ErrInvalidRegion,
		},
		{
			name:    "Region with wrong length",
			op:      func(ctx context.Context, m *modem.Modem) (at.Status, error) { return m.SetRegion(ctx, "EU8680") },
			wantErr: modem.ErrInvalidRegion,
		},
		{
			name:    "Port zero",
			op:      func(ctx context.Context, m *modem.Modem) (at.Status, error) { return m.SendUplink(ctx, 0, "CAFE") },
			wantErr: modem.ErrInvalidPort,
		},
		{
			name:    "Port above 223",
			op:      func(ctx context.Context, m *modem.Modem) (at.Status, error) { return m.SendUplink(ctx, 224, "CAFE") },
			wantErr: modem.ErrInvalidPort,
		},
		{
			name:    "Odd length payload",
			op:      func(ctx context.Context, m *modem.Modem) (at.Status, error) { return m.SendUplink(ctx, 1, "CAF") },
			wantErr: modem.ErrInvalidPayload,
		},
		{
			name:    "Non hex payload",
			op:      func(ctx context.Context, m *modem.Modem) (at.Status, error) { return m.SendUplink(ctx, 1, "ZZ") },
			wantErr: modem.ErrInvalidPayload,
		},
		{
			name:    "Empty payload",
			op:      func(ctx context.Context, m *modem.Modem) (at.Status, error) { return m.SendUplinkBytes(ctx, 1, nil) },
			wantErr: modem.ErrInvalidPayload,
		},
		{
			name: "Payload above 242 bytes",
			op: func(ctx context.Context, m *modem.Modem) (at.Status, error) {
				return m.SendUplinkBytes(ctx, 1, make([]byte, modem.MaxPayloadBytes+1))
			},
			wantErr: modem.ErrPayloadTooLong,
		},
		{
			name:    "Short app key",
			op:      func(ctx context.Context, m *modem.Modem) (at.Status, error) { return m.InitOTAA(ctx, testAppEUI, "2B7E") },
			wantErr: modem.ErrInvalidKey,
		},
		{
			name:    "Bad app EUI",
			op:      func(ctx context.Context, m *modem.Modem) (at.Status, error) { return m.InitOTAA(ctx, "nothex", testAppKey) },
			wantErr: modem.ErrInvalidKey,
		},
		{
			name: "Bad device address",
			op: func(ctx context.Context, m *modem.Modem) (at.Status, error) {
				return m.InitABP(ctx, "26011B", testNwkSKey, testAppSKey)
			},
			wantErr: modem.ErrInvalidKey,
		},
		{
			name:    "Bad dev EUI",
			op:      func(ctx context.Context, m *modem.Modem) (at.Status, error) { return m.SetDevEUI(ctx, "0011") },
			wantErr: modem.ErrInvalidKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, transport, _ := startTestModem(t, nil)

			status, err := tt.op(context.Background(), m)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if status != at.StatusResponseInvalid {
				t.Errorf("expected StatusResponseInvalid, got %v", status)
			}
			expectNoWrite(t, transport)
		})
	}
}

func TestSendUplink(t *testing.T) {
	t.Run("Hex payload is sent upper cased", func(t *testing.T) {
		m, tt, _ := startTestModem(t, nil)

		done := callAsync(context.Background(), func(ctx context.Context) (at.Status, error) {
			return m.SendUplink(ctx, 10, "cafe01")
		})
		reply(t, tt, "at+send=lora:10:CAFE01", "OK\r\n")

		if r := awaitResult(t, done); r.status != at.StatusSuccess {
			t.Errorf("expected success, got %v", r.status)
		}
	})

	t.Run("Bytes are hex encoded", func(t *testing.T) {
		m, tt, _ := startTestModem(t, nil)

		done := callAsync(context.Background(), func(ctx context.Context) (at.Status, error) {
			return m.SendUplinkBytes(ctx, modem.MaxPort, []byte("Hi"))
		})
		reply(t, tt, "at+send=lora:223:4869", "OK\r\n")

		if r := awaitResult(t, done); r.status != at.StatusSuccess {
			t.Errorf("expected success, got %v", r.status)
		}
	})

	t.Run("Largest payload", func(t *testing.T) {
		m, tt, _ := startTestModem(t, nil)

		data := make([]byte, modem.MaxPayloadBytes)
		done := callAsync(context.Background(), func(ctx context.Context) (at.Status, error) {
			return m.SendUplinkBytes(ctx, 1, data)
		})
		reply(t, tt, "at+send=lora:1:"+strings.Repeat("00", modem.MaxPayloadBytes), "OK\r\n")

		if r := awaitResult(t, done); r.status != at.StatusSuccess {
			t.Errorf("expected success, got %v", r.status)
		}
	})

	t.Run("Not joined", func(t *testing.T) {
		m, tt, _ := startTestModem(t, nil)

		done := callAsync(context.Background(), func(ctx context.Context) (at.Status, error) {
			return m.SendUplink(ctx, 1, "00")
		})
		reply(t, tt, "at+send=lora:1:00", "ERROR: 86\r\n")

		r := awaitResult(t, done)
		if r.status != at.StatusLoRaNotJoined {
			t.Errorf("expected StatusLoRaNotJoined, got %v", r.status)
		}
		if !errors.Is(r.status.Err(), at.StatusLoRaNotJoined.Err()) {
			t.Errorf("expected status error to match, got %v", r.status.Err())
		}
	})
}

func TestActivation(t *testing.T) {
	t.Run("OTAA sequence", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := modem.NewMockTransport(ctrl)
		mockDialer := modem.NewMockDialer(ctrl)
		mockDialer.EXPECT().Dial(gomock.Any()).Return(mockTransport, nil)

		hold := make(chan struct{})
		gomock.InOrder(
			NewMockSequence(mockTransport).
				OK("at+set_config=lora:join_mode:0").
				OK("at+set_config=lora:app_eui:" + testAppEUI).
				OK("at+set_config=lora:app_key:" + testAppKey).
				Hold(hold).
				Build()...,
		)
		mockTransport.EXPECT().Close().Return(nil)

		config, err := modem.NewConfigBuilder().
			WithDialer(mockDialer).
			WithATTimeout(time.Second).
			Build()
		if err != nil {
			t.Fatalf("unexpected error from Build(): %v", err)
		}
		m, err := modem.New(context.Background(), config)
		if err != nil {
			t.Fatalf("failed to create modem: %v", err)
		}
		defer m.Close()

		loopDone := make(chan error, 1)
		go func() {
			loopDone <- m.Loop(context.Background())
		}()

		status, err := m.InitOTAA(context.Background(), strings.ToLower(testAppEUI), testAppKey)
		if err != nil || status != at.StatusSuccess {
			t.Errorf("expected success, got status %v err %v", status, err)
		}

		close(hold)
		<-loopDone
	})

	t.Run("ABP sequence", func(t *testing.T) {
		m, tt, _ := startTestModem(t, nil)

		done := callAsync(context.Background(), func(ctx context.Context) (at.Status, error) {
			return m.InitABP(ctx, testDevAddr, testNwkSKey, testAppSKey)
		})
		reply(t, tt, "at+set_config=lora:join_mode:1", "OK\r\n")
		reply(t, tt, "at+set_config=lora:dev_addr:"+testDevAddr, "OK\r\n")
		reply(t, tt, "at+set_config=lora:nwks_key:"+testNwkSKey, "OK\r\n")
		reply(t, tt, "at+set_config=lora:apps_key:"+testAppSKey, "OK\r\n")

		if r := awaitResult(t, done); r.err != nil || r.status != at.StatusSuccess {
			t.Errorf("expected success, got status %v err %v", r.status, r.err)
		}
	})

	t.Run("Sequence stops at the first error", func(t *testing.T) {
		m, tt, _ := startTestModem(t, nil)

		done := callAsync(context.Background(), func(ctx context.Context) (at.Status, error) {
			return m.InitOTAA(ctx, testAppEUI, testAppKey)
		})
		reply(t, tt, "at+set_config=lora:join_mode:0", "OK\r\n")
		reply(t, tt, "at+set_config=lora:app_eui:"+testAppEUI, "ERROR: 2\r\n")

		if r := awaitResult(t, done); r.status != at.StatusInvalidParameter {
			t.Errorf("expected StatusInvalidParameter, got %v", r.status)
		}
		expectNoWrite(t, tt)
	})
}

func TestParseClass(t *testing.T) {
	tests := []struct {
		input   string
		want    modem.Class
		wantErr bool
	}{
		{"A", modem.ClassA, false},
		{"c", modem.ClassC, false},
		{" B ", modem.ClassB, false},
		{"D", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := modem.ParseClass(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClass(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseClass(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
