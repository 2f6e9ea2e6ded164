package probe

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"mcstatus/internal/status"
)

type statusDoc struct {
	Version struct {
		Name     string `json:"name"`
		Protocol int    `json:"protocol"`
	} `json:"version"`
	Players *struct {
		Online int64 `json:"online"`
		Max    int64 `json:"max"`
	} `json:"players"`
	Description json.RawMessage `json:"description"`
	Favicon     string          `json:"favicon"`
}

// chatComponent is the subset of the text component format found in server
// descriptions.
type chatComponent struct {
	Text  string          `json:"text"`
	Extra []chatComponent `json:"extra"`
}

func (c chatComponent) plain(b *strings.Builder) {
	b.WriteString(c.Text)
	for _, e := range c.Extra {
		e.plain(b)
	}
}

func parseStatus(doc string) (*Result, error) {
	var d statusDoc
	if err := json.Unmarshal([]byte(doc), &d); err != nil {
		return nil, fmt.Errorf("decode status json: %w", err)
	}
	res := &Result{
		Version:     d.Version.Name,
		Description: descriptionText(d.Description),
		Favicon:     d.Favicon,
	}
	if d.Players != nil {
		res.Online = true
		res.Players = &status.PlayersInfo{
			Online: clampUint32(d.Players.Online),
			Max:    clampUint32(d.Players.Max),
		}
	}
	return res, nil
}

func descriptionText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var c chatComponent
	if err := json.Unmarshal(raw, &c); err != nil {
		return ""
	}
	var b strings.Builder
	c.plain(&b)
	return b.String()
}

func clampUint32(v int64) uint32 {
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(v)
	}
}
