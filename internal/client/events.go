package client

import (
	"bufio"
	"context"
	"net/http"
	"strconv"
	"strings"

	"openbar-go/internal/api"
)

// Event is one named frame from the server push channel.
type Event struct {
	Name string
	Data string
}

// StreamEvents subscribes to the push channel, additionally scoped to one
// session when sessionID is set, and calls fn for every named event until
// ctx ends or the stream drops. Comment pings are skipped. A dropped stream
// comes back as ConnectivityError so callers treat it like any other outage.
func (c *Client) StreamEvents(ctx context.Context, sessionID int64, fn func(Event)) error {
	path := "/events"
	if sessionID > 0 {
		path += "?sessionId=" + strconv.FormatInt(sessionID, 10)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("X-Staff-Id", strconv.FormatInt(c.creds.StaffID, 10))
	req.Header.Set("X-Staff-Pin", c.creds.PIN)

	// the shared client carries a request timeout that would cut a
	// long-lived stream short
	stream := &http.Client{Transport: c.http.Transport}
	resp, err := stream.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &api.ConnectivityError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	var name, data string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if name != "" {
				fn(Event{Name: name, Data: data})
			}
			name, data = "", ""
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
	if err := sc.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &api.ConnectivityError{Err: err}
	}
	return nil
}
