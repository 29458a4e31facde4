package main_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// buildBinary compiles the moviego binary into t.TempDir and returns the path.
func buildBinary(t *testing.T) string {
	t.Helper()

	bin := filepath.Join(t.TempDir(), "moviego")
	cmd := exec.Command("go", "build",
		"-ldflags", `-X main.version=v0.0.0-test -X main.commit=abc1234 -X main.date=2026-01-01T00:00:00Z`,
		"-o", bin,
		"./",
	)
	cmd.Dir = filepath.Join(".") // run from cmd/moviego
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build failed: %v\n%s", err, out)
	}
	return bin
}

// startServer runs bin on a free port and waits for /healthz.
func startServer(t *testing.T, ctx context.Context, bin string, args ...string) (*exec.Cmd, string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	cmd := exec.CommandContext(ctx, bin, append([]string{"--listen", addr}, args...)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// Keep the test hermetic: no credential, no real upstream.
	cmd.Env = append(os.Environ(), "MOVIEGO_API_TOKEN=", "MOVIEGO_API_BASE_URL=http://127.0.0.1:1/3")

	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}

	base := "http://" + addr
	for i := 0; i < 50; i++ {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return cmd, base
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	cmd.Process.Kill()
	cmd.Wait()
	t.Fatal("server did not become ready within 5s")
	return nil, ""
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestVersion(t *testing.T) {
	bin := buildBinary(t)

	out, err := exec.Command(bin, "--version").CombinedOutput()
	if err != nil {
		t.Fatalf("--version failed: %v\n%s", err, out)
	}

	got := strings.TrimSpace(string(out))
	want := "moviego v0.0.0-test (abc1234) built 2026-01-01T00:00:00Z"
	if got != want {
		t.Errorf("--version output = %q, want %q", got, want)
	}
}

func TestInvalidFlag(t *testing.T) {
	bin := buildBinary(t)

	out, err := exec.Command(bin, "--offline-strategy", "cache-only").CombinedOutput()
	if err == nil {
		t.Fatalf("expected failure, got output %s", out)
	}
	if !strings.Contains(string(out), "offline-strategy") {
		t.Errorf("output = %q", out)
	}
}

func TestGracefulShutdown(t *testing.T) {
	bin := buildBinary(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	cmd, base := startServer(t, ctx, bin)

	// The embedded shell answers the document root and navigations.
	if code, body := get(t, base+"/"); code != http.StatusOK || !strings.Contains(body, "<html") {
		t.Errorf("GET / = %d %q", code, body)
	}
	if code, body := get(t, base+"/browse"); code != http.StatusOK || !strings.Contains(body, "/browse/trending") {
		t.Errorf("GET /browse = %d", code)
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		cmd.Process.Kill()
		t.Fatalf("send signal: %v", err)
	}

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	select {
	case err := <-waitDone:
		if err != nil {
			t.Fatalf("process exited with error: %v", err)
		}
	case <-time.After(10 * time.Second):
		cmd.Process.Kill()
		t.Fatal("server did not shut down within 10s after SIGINT")
	}

	if _, err := http.Get(base + "/healthz"); err == nil {
		t.Error("server still responding after shutdown")
	}
}

func TestOfflineStoreSurvivesRestart(t *testing.T) {
	bin := buildBinary(t)
	store := filepath.Join(t.TempDir(), "offline.db")

	for run := 0; run < 2; run++ {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		cmd, base := startServer(t, ctx, bin, "--offline-store", store)
		if code, _ := get(t, base+"/favicon.svg"); code != http.StatusOK {
			t.Errorf("run %d: GET /favicon.svg = %d", run, code)
		}
		cmd.Process.Signal(os.Interrupt)
		if err := cmd.Wait(); err != nil {
			t.Errorf("run %d: exit: %v", run, err)
		}
		cancel()
	}
	if _, err := os.Stat(store); err != nil {
		t.Errorf("offline store not created: %v", err)
	}
}
