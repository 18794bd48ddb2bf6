package server

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"io"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/relay"
	"mercator-hq/relay/pkg/telemetry/health"
	"mercator-hq/relay/pkg/telemetry/logging"
	"mercator-hq/relay/pkg/telemetry/metrics"
)

var stubRelay = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"relayed":true}`)
})

func newTestServer(t *testing.T, mutate func(*Options)) *Server {
	t.Helper()
	opts := Options{
		Config:  config.Default(),
		Relay:   stubRelay,
		Metrics: metrics.NewCollector(&config.MetricsConfig{Namespace: "relay"}, nil),
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv, err := New(opts)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return srv
}

func serve(srv *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Options{Relay: stubRelay}); err == nil {
		t.Error("expected error without config")
	}
	if _, err := New(Options{Config: config.Default()}); err == nil {
		t.Error("expected error without relay handler")
	}

	cfg := config.Default()
	cfg.Proxy.RelayPath = LivenessPath
	if _, err := New(Options{Config: cfg, Relay: stubRelay}); err == nil {
		t.Error("expected error when the relay path collides with a probe")
	}

	cfg = config.Default()
	cfg.Telemetry.Metrics.Path = ReadinessPath
	if _, err := New(Options{Config: cfg, Relay: stubRelay, Metrics: metrics.NewCollector(&cfg.Telemetry.Metrics, nil)}); err == nil {
		t.Error("expected error when the metrics path collides with a probe")
	}
}

func TestServer_Routes(t *testing.T) {
	checker := health.New(time.Second)
	checker.RegisterCheck("credential", func(ctx context.Context) error { return nil })
	srv := newTestServer(t, func(o *Options) { o.Health = checker })

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"liveness", http.MethodGet, "/health", http.StatusOK, `"status":"ok"`},
		{"readiness", http.MethodGet, "/ready", http.StatusOK, `"status":"ready"`},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK, "# HELP"},
		{"relay root", http.MethodPost, "/", http.StatusOK, `{"relayed":true}`},
		{"relay any path", http.MethodPost, "/v1/chat/completions", http.StatusOK, `{"relayed":true}`},
		{"probe preflight", http.MethodOptions, "/health", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(srv, tt.method, tt.path)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody == "" && rec.Body.Len() != 0 {
				t.Errorf("expected empty body, got %q", rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body %q does not contain %q", rec.Body.String(), tt.wantBody)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
				t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("X-Request-ID should be set on every response")
			}
		})
	}
}

func TestServer_ReadinessFailure(t *testing.T) {
	checker := health.New(time.Second)
	checker.RegisterCheck("audit", func(ctx context.Context) error { return errors.New("database is locked") })
	srv := newTestServer(t, func(o *Options) { o.Health = checker })

	rec := serve(srv, http.MethodGet, "/ready")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "database is locked") {
		t.Errorf("readiness body should name the failing check: %s", rec.Body.String())
	}
}

func TestServer_MetricsDisabled(t *testing.T) {
	srv := newTestServer(t, func(o *Options) { o.Config.Telemetry.Metrics.Enabled = false })

	rec := serve(srv, http.MethodGet, "/metrics")
	if rec.Body.String() != `{"relayed":true}` {
		t.Errorf("/metrics should fall through to the relay when disabled, got %q", rec.Body.String())
	}
}

func TestServer_CustomRelayPath(t *testing.T) {
	srv := newTestServer(t, func(o *Options) { o.Config.Proxy.RelayPath = "/relay" })

	if rec := serve(srv, http.MethodPost, "/relay"); rec.Code != http.StatusOK {
		t.Errorf("relay path status = %d, want 200", rec.Code)
	}
	if rec := serve(srv, http.MethodPost, "/elsewhere"); rec.Code != http.StatusNotFound {
		t.Errorf("unrouted path status = %d, want 404", rec.Code)
	}
}

func TestServer_RecoversPanics(t *testing.T) {
	srv := newTestServer(t, func(o *Options) {
		o.Relay = http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	})

	rec := serve(srv, http.MethodPost, "/")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if rec.Body.String() != relay.ErrorBody {
		t.Errorf("body = %q, want %q", rec.Body.String(), relay.ErrorBody)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	srv := newTestServer(t, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	waitRunning(t, srv)
	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	if srv.IsRunning() {
		t.Error("server should not be running after shutdown")
	}
}

func TestServer_TLS(t *testing.T) {
	certFile, keyFile := writeCertificate(t, time.Now().Add(-time.Hour), time.Now().Add(90*24*time.Hour))

	srv := newTestServer(t, func(o *Options) {
		o.Config.Proxy.TLS = config.TLSConfig{
			Enabled:    true,
			CertFile:   certFile,
			KeyFile:    keyFile,
			MinVersion: "1.2",
		}
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Serve(ctx, ln) }()
	waitRunning(t, srv)

	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 - self-signed test certificate
	}}
	resp, err := client.Post("https://"+ln.Addr().String()+"/", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST over TLS failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"relayed":true}` {
		t.Errorf("body = %q", body)
	}
	if resp.TLS == nil {
		t.Error("response should have been served over TLS")
	}
}

func TestServer_TLSRejectsExpiredCertificate(t *testing.T) {
	certFile, keyFile := writeCertificate(t, time.Now().Add(-48*time.Hour), time.Now().Add(-24*time.Hour))

	cfg := config.Default()
	cfg.Proxy.TLS = config.TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile}
	if _, err := New(Options{Config: cfg, Relay: stubRelay}); err == nil {
		t.Error("expected error for an expired certificate")
	}
}

func TestCertReloader_PicksUpNewFiles(t *testing.T) {
	certFile, keyFile := writeCertificate(t, time.Now().Add(-time.Hour), time.Now().Add(48*time.Hour))

	r, err := newCertReloader(config.TLSConfig{CertFile: certFile, KeyFile: keyFile}, discardLogger())
	if err != nil {
		t.Fatalf("newCertReloader() failed: %v", err)
	}
	first := r.certificate()

	// Rewrite both files in place with a later modification time.
	newCert, newKey := writeCertificate(t, time.Now().Add(-time.Hour), time.Now().Add(96*time.Hour))
	copyFile(t, newCert, certFile)
	copyFile(t, newKey, keyFile)
	later := time.Now().Add(time.Minute)
	for _, f := range []string{certFile, keyFile} {
		if err := os.Chtimes(f, later, later); err != nil {
			t.Fatalf("Chtimes() failed: %v", err)
		}
	}

	if !r.changed() {
		t.Fatal("reloader should notice the rewritten files")
	}
	if err := r.reload(); err != nil {
		t.Fatalf("reload() failed: %v", err)
	}
	if r.certificate() == first {
		t.Error("certificate should have been replaced")
	}
	if r.changed() {
		t.Error("reloader should be up to date after reload")
	}
}

func waitRunning(t *testing.T, srv *Server) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !srv.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !srv.IsRunning() {
		t.Fatal("server did not start")
	}
}

// writeCertificate creates a self-signed ECDSA certificate valid between
// notBefore and notAfter.
func writeCertificate(t *testing.T, notBefore, notAfter time.Time) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() failed: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: "relay.test"},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate() failed: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey() failed: %v", err)
	}

	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatal(err)
	}
	return certFile, keyFile
}

func copyFile(t *testing.T, src, dst string) {
	t.Helper()
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestAccessLogCarriesRequestID(t *testing.T) {
	out := &bytes.Buffer{}
	logger, _, err := logging.New(logging.Config{Level: "info", Format: "json", Writer: out})
	if err != nil {
		t.Fatalf("logging.New() failed: %v", err)
	}
	srv := newTestServer(t, func(o *Options) { o.Logger = logger })

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set("X-Request-ID", "trace-me-42")
	srv.Handler().ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(out.String(), `"request_id":"trace-me-42"`) {
		t.Errorf("access log missing request_id:\n%s", out.String())
	}
}
