package influxdb_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gatekeeper/internal/infrastructure/config"
	"github.com/nerrad567/gatekeeper/internal/infrastructure/influxdb"
)

// fakeInflux answers /ping and records line protocol posted to /api/v2/write.
type fakeInflux struct {
	*httptest.Server

	mu     sync.Mutex
	writes []string
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()
	f := &fakeInflux{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			f.writes = append(f.writes, string(body))
			f.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeInflux) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.writes, "")
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "gatekeeper-test-token",
		Org:           "gatekeeper",
		Bucket:        "auth",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func TestConnect(t *testing.T) {
	srv := newFakeInflux(t)

	client, err := influxdb.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:8086")
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := influxdb.Connect(testConfig(url))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_NonPositiveBatchSettings(t *testing.T) {
	srv := newFakeInflux(t)
	cfg := testConfig(srv.URL)
	cfg.BatchSize = -5
	cfg.FlushInterval = 0

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false with defaulted batch settings")
	}
}

func TestHealthCheck(t *testing.T) {
	srv := newFakeInflux(t)
	client, err := influxdb.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.HealthCheck(t.Context()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	client.Close()
	if err := client.HealthCheck(t.Context()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}
}

func TestWriteAuthAttempt(t *testing.T) {
	srv := newFakeInflux(t)
	client, err := influxdb.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	var writeErr error
	var errMu sync.Mutex
	client.SetOnError(func(err error) {
		errMu.Lock()
		writeErr = err
		errMu.Unlock()
	})

	client.WriteAuthAttempt(influxdb.AuthAttempt{
		Outcome:    "success",
		Username:   "alice",
		RemoteAddr: "10.0.0.7:51000",
	})
	client.WriteAuthAttempt(influxdb.AuthAttempt{
		Outcome:  "invalid_credentials",
		Username: "mallory",
	})
	client.Flush()

	body := srv.body()
	for _, want := range []string{
		"auth_attempts,outcome=success",
		`username="alice"`,
		`remote_addr="10.0.0.7:51000"`,
		"auth_attempts,outcome=invalid_credentials",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("written line protocol missing %q:\n%s", want, body)
		}
	}

	errMu.Lock()
	defer errMu.Unlock()
	if writeErr != nil {
		t.Errorf("async write error = %v", writeErr)
	}
}

func TestWriteAuthAttempt_AfterClose(t *testing.T) {
	srv := newFakeInflux(t)
	client, err := influxdb.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}

	// Must not panic or write.
	client.WriteAuthAttempt(influxdb.AuthAttempt{Outcome: "success", Username: "alice"})
	client.Flush()

	if body := srv.body(); body != "" {
		t.Errorf("write after Close reached the server: %q", body)
	}
}

func TestClose_Nil(t *testing.T) {
	var client *influxdb.Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() on nil client = true")
	}
}

func TestNewAuthAttemptPoint(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		attempt influxdb.AuthAttempt
		want    []string
		absent  []string
	}{
		{
			name:    "with remote address",
			attempt: influxdb.AuthAttempt{Outcome: "success", Username: "alice", RemoteAddr: "10.0.0.1:1", At: at},
			want:    []string{"auth_attempts,outcome=success ", "count=1i", `remote_addr="10.0.0.1:1"`, `username="alice"`},
		},
		{
			name:    "without remote address",
			attempt: influxdb.AuthAttempt{Outcome: "banned", Username: "bob", At: at},
			want:    []string{"auth_attempts,outcome=banned ", `username="bob"`},
			absent:  []string{"remote_addr"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := write.PointToLineProtocol(influxdb.NewAuthAttemptPoint(tt.attempt), time.Second)
			for _, w := range tt.want {
				if !strings.Contains(line, w) {
					t.Errorf("line %q missing %q", line, w)
				}
			}
			for _, a := range tt.absent {
				if strings.Contains(line, a) {
					t.Errorf("line %q should not contain %q", line, a)
				}
			}
			if !strings.Contains(line, "1772355600") {
				t.Errorf("line %q missing timestamp", line)
			}
		})
	}
}

func TestNewAuthAttemptPoint_DefaultsTime(t *testing.T) {
	before := time.Now()
	p := influxdb.NewAuthAttemptPoint(influxdb.AuthAttempt{Outcome: "success"})
	if p.Time().Before(before) {
		t.Errorf("point time %v is before %v", p.Time(), before)
	}
}
