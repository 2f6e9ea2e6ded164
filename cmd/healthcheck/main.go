// Command healthcheck is a minimal probe used as Docker's HEALTHCHECK CMD.
// Without a server id it checks that the API process answers /healthz. With
// one it checks that the server is currently online, which lets a container
// running a game server report itself unhealthy while it is unreachable.
//
// Usage:
//
//	healthcheck <api-base-url> [server-id]
//
// Example (in Dockerfile):
//
//	HEALTHCHECK CMD ["/bin/healthcheck", "http://localhost:9235", "survival"]
//
// When the API requires a token, set MCSTATUS_HEALTHCHECK_TOKEN.
package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func main() {
	if len(os.Args) < 2 || len(os.Args) > 3 {
		fmt.Fprintln(os.Stderr, "usage: healthcheck <api-base-url> [server-id]")
		os.Exit(1)
	}

	var id string
	if len(os.Args) == 3 {
		id = os.Args[2]
	}
	client := &http.Client{Timeout: 3 * time.Second}

	if err := check(client, os.Args[1], id, os.Getenv("MCSTATUS_HEALTHCHECK_TOKEN")); err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck: %v\n", err)
		os.Exit(1)
	}
	os.Exit(0)
}

// check returns nil when the target is healthy: /healthz answers 2xx, or the
// server's status code endpoint answers 200.
func check(client *http.Client, base, id, token string) error {
	target := strings.TrimRight(base, "/") + "/healthz"
	if id != "" {
		target = strings.TrimRight(base, "/") + "/api/servers/" + url.PathEscape(id) + "/code"
	}

	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	if token != "" && id != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if id != "" && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server %s: HTTP %d from %s", id, resp.StatusCode, target)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, target)
	}
	return nil
}
