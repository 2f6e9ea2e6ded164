// Package e2e contains end-to-end tests that compile and run the real mcstatus
// binary as a subprocess. Each test starts in-process fake game servers
// (probetest.Server), writes a temporary config file, starts the binary and
// queries the status API over HTTP.
package e2e

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// mcstatusBin is the path to the compiled binary, set by TestMain.
var mcstatusBin string

// TestMain builds the binary once before all E2E tests run.
// Set E2E_MCSTATUS_BIN to skip the build step (useful in CI with a pre-built binary).
func TestMain(m *testing.M) {
	if bin := os.Getenv("E2E_MCSTATUS_BIN"); bin != "" {
		mcstatusBin = bin
		os.Exit(m.Run())
	}

	tmp, err := os.MkdirTemp("", "mcstatus-e2e-*")
	if err != nil {
		log.Fatalf("e2e: create temp dir: %v", err)
	}
	mcstatusBin = filepath.Join(tmp, "mcstatus")

	// Build from the module root (two directories above this file).
	root, err := filepath.Abs("../..")
	if err != nil {
		log.Fatalf("e2e: resolve module root: %v", err)
	}

	cmd := exec.Command("go", "build", "-o", mcstatusBin, "./cmd/mcstatus")
	cmd.Dir = root
	cmd.Stdout = os.Stderr // surface build errors in test output
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		_ = os.RemoveAll(tmp)
		log.Fatalf("e2e: build mcstatus binary: %v", err)
	}

	code := m.Run()
	_ = os.RemoveAll(tmp)
	os.Exit(code)
}

// process holds a running mcstatus subprocess and its API base URL.
type process struct {
	base string
	cmd  *exec.Cmd
}

// startProcess writes cfg to a temp file and starts the binary. The process
// is stopped when the test ends.
func startProcess(t *testing.T, cfg testConfig) *process {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg.YAML()), 0o644))

	p := &process{
		base: "http://127.0.0.1:" + strconv.Itoa(cfg.port),
		cmd:  exec.Command(mcstatusBin, path),
	}
	// Discard logs unless TEST_VERBOSE is set (reduces noise).
	if os.Getenv("TEST_VERBOSE") != "" {
		p.cmd.Stdout = os.Stdout
		p.cmd.Stderr = os.Stderr
	}

	require.NoError(t, p.cmd.Start())
	t.Cleanup(func() {
		_ = p.cmd.Process.Signal(syscall.SIGTERM)
		_ = p.cmd.Wait()
	})

	waitReady(t, p.base)
	return p
}

// waitReady polls GET /healthz until it returns 200 or times out.
func waitReady(t *testing.T, base string) {
	t.Helper()
	client := &http.Client{Timeout: 200 * time.Millisecond}
	deadline := time.Now().Add(8 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := client.Get(base + "/healthz")
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("mcstatus at %s did not become ready within 8 seconds", base)
}

// freePort returns an unused TCP port by briefly binding to port 0.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

// makeJWT creates a signed HS256 JWT token with a 1-hour expiry.
func makeJWT(t *testing.T, secret string) string {
	t.Helper()
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub": "e2e-test",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

// doGet performs a GET request and returns the status code and body.
func doGet(t *testing.T, url string, headers ...string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

// pngDataURI returns a tiny PNG as a data URI and as raw bytes.
func pngDataURI(t *testing.T) (string, []byte) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(3, 3, color.RGBA{R: 0xff, A: 0xff})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), buf.Bytes()
}

// testConfig builds the YAML config for a test.
type testConfig struct {
	port      int
	servers   []serverEntry
	favicons  string
	rateLimit *rateLimitCfg
	auth      *authCfg
}

type serverEntry struct {
	id      string
	host    string
	port    int
	edition string
}

type rateLimitCfg struct {
	rps   float64
	burst int
}

type authCfg struct {
	secret  string
	exclude []string
}

func (c testConfig) YAML() string {
	out := fmt.Sprintf(`port: %d
polling_interval_seconds: 1
query_timeout_milliseconds: 500
max_parallel_queries: 4
log_level: "debug"
`, c.port)

	if c.favicons != "" {
		out += fmt.Sprintf("favicon_save_path: %q\n", c.favicons)
	}

	out += "servers:\n"
	for _, s := range c.servers {
		out += fmt.Sprintf("  - name: %q\n    id: %q\n    host: %q\n    port: %d\n", "Server "+s.id, s.id, s.host, s.port)
		if s.edition != "" {
			out += fmt.Sprintf("    edition: %q\n", s.edition)
		}
	}

	if c.rateLimit != nil {
		out += fmt.Sprintf(`rate_limit:
  enabled: true
  rps: %g
  burst: %d
`, c.rateLimit.rps, c.rateLimit.burst)
	}

	if c.auth != nil {
		out += fmt.Sprintf("auth:\n  enabled: true\n  secret: %q\n", c.auth.secret)
		if len(c.auth.exclude) > 0 {
			out += "  exclude:\n"
			for _, p := range c.auth.exclude {
				out += fmt.Sprintf("    - %q\n", p)
			}
		}
	}

	return out
}
