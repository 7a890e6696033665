package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/galleylabs/galley/pkg/protocol"
)

const (
	watchInitialBackoff = time.Second
	watchMaxBackoff     = 30 * time.Second
)

// Watch subscribes to the project's change feed. It returns a channel
// of events that stays open until ctx is cancelled, reconnecting with
// exponential backoff whenever the stream drops. Events arriving while
// the connection is down are lost; callers refresh after a reconnect.
func (c *Client) Watch(ctx context.Context) <-chan protocol.ChangeEvent {
	ch := make(chan protocol.ChangeEvent, 64)
	go c.watchLoop(ctx, ch)
	return ch
}

func (c *Client) watchLoop(ctx context.Context, ch chan<- protocol.ChangeEvent) {
	defer close(ch)
	backoff := watchInitialBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		connected, err := c.streamEvents(ctx, ch)
		if ctx.Err() != nil {
			return
		}
		if connected {
			backoff = watchInitialBackoff
		}
		if err != nil {
			c.log.Warn("event stream dropped",
				zap.String("project", c.project),
				zap.Duration("retry_in", backoff),
				zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > watchMaxBackoff {
			backoff = watchMaxBackoff
		}
	}
}

// streamEvents holds one SSE connection open and forwards its events.
// connected reports whether the stream was established at all; a nil
// error means the server closed it cleanly.
func (c *Client) streamEvents(ctx context.Context, ch chan<- protocol.ChangeEvent) (connected bool, _ error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opURL("events"), nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	c.applyAuth(req)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		c.setOnline(false)
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("event stream returned %d", resp.StatusCode)
	}
	c.setOnline(true)
	c.log.Debug("event stream connected", zap.String("project", c.project))

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		var ev protocol.ChangeEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			c.log.Debug("skipping malformed event", zap.Error(err))
			continue
		}
		select {
		case ch <- ev:
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}
	return true, scanner.Err()
}
