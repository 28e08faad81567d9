package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/aleka07/twinsync/pkg/config"
)

func TestRunServesAndShutsDown(t *testing.T) {
	// A twin service that already holds the thing.
	ditto := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/api/2/things/demo:sensor-1":
			w.Write([]byte(`{"thingId":"demo:sensor-1","policyId":"demo:sensor-policy"}`))
		case "/api/2/things/demo:sensor-1/features/temp/properties":
			w.Write([]byte(`{"value":24.2,"unit":"celsius","status":"active"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ditto.Close()

	cfg := config.Default()
	cfg.Ditto.URL = ditto.URL
	logger, _ := test.NewNullLogger()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, logger, ln) }()

	resp, err := http.Get(base + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Handler returned wrong status code: got %v, want %v", resp.StatusCode, http.StatusOK)
	}

	var reading map[string]any
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(base + "/api/temperature")
		if err != nil {
			t.Fatalf("temperature: %v", err)
		}
		reading = nil
		json.NewDecoder(resp.Body).Decode(&reading)
		resp.Body.Close()
		if reading["value"] != nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if reading["value"] != 24.2 {
		t.Errorf("temperature = %v, want value 24.2", reading)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRunPublishesPromptlyWhenServiceDown(t *testing.T) {
	ditto := httptest.NewServer(http.NotFoundHandler())
	ditto.Close()

	cfg := config.Default() // retry stays at 5 attempts, 5s apart
	cfg.Ditto.URL = ditto.URL
	logger, _ := test.NewNullLogger()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, logger, ln) }()
	defer func() {
		cancel()
		<-done
	}()

	var hs map[string]any
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(base + "/api/health")
		if err == nil {
			hs = nil
			json.NewDecoder(resp.Body).Decode(&hs)
			resp.Body.Close()
			if _, ok := hs["serviceUp"]; ok {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	if hs["serviceUp"] != false {
		t.Errorf("health = %v, want serviceUp false within one tick", hs)
	}
}
