package stream

import (
	"fmt"
	"net/url"
	"time"
)

// continuityURLLocked appends session-continuity parameters to rawURL.
//
// connection_id is generated once per Manager and survives every automatic
// reconnect, so the server can associate the new transport with the prior
// session. since carries the latest heartbeat timestamp (RFC 3339, UTC) and
// asks the server to replay events missed after it; the first-ever connect
// has no heartbeat yet and carries no since parameter.
func (m *Manager) continuityURLLocked(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}

	q := u.Query()
	q.Set("connection_id", m.connID)
	if !m.lastHeartbeat.IsZero() {
		q.Set("since", m.lastHeartbeat.UTC().Format(time.RFC3339))
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// StreamURL builds the strategist stream endpoint for a ward.
func StreamURL(base, wardID, depth, analysisContext string) string {
	u := fmt.Sprintf("%s/strategist/stream/%s", base, url.PathEscape(wardID))

	q := url.Values{}
	if depth != "" {
		q.Set("depth", depth)
	}
	if analysisContext != "" {
		q.Set("context", analysisContext)
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}
