package urlparam

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/urlstate/pkg/history"
	"github.com/vango-dev/urlstate/pkg/params"
	"github.com/vango-dev/urlstate/pkg/querystring"
)

// Sync writes the whole store to the history now, with listener
// notification suppressed.
func (c *Context) Sync(mode history.Mode) {
	c.write(mode)
}

// write serializes the entire store, never a per-field patch, so the last
// write of a tick leaves the URL correct regardless of order.
func (c *Context) write(mode history.Mode) {
	raw := c.store.Raw()
	query := querystring.Encode(raw)

	_, span := c.tracer.Start(context.Background(), "urlparam.write",
		trace.WithAttributes(
			attribute.String("urlparam.mode", mode.String()),
			attribute.Int("urlparam.query_length", len(query)),
		))
	defer span.End()

	if mode == history.ModePush {
		c.stampCurrent()
	}

	state := c.bridge.State().Clone()
	state[history.QueryKey] = roundTrip(raw)

	path := ""
	if loc := c.bridge.Location(); loc != nil {
		path = loc.Path
	}
	target := history.URLFor(path, query)

	c.bridge.Untrack(func() {
		c.bridge.Navigate(mode, state, target)
	})
	c.synced = raw
	c.logger.Debug("url written", "mode", mode.String(), "url", target)
}

// stampCurrent gives the current entry a query payload before a push
// leaves it, so going back to it restores the store it displayed. Entries
// the engine never wrote, such as the page's first one, lack the payload.
func (c *Context) stampCurrent() {
	state := c.bridge.State()
	if _, ok := state.Query(); ok {
		return
	}
	stamped := state.Clone()
	stamped[history.QueryKey] = roundTrip(c.synced)

	target := "/"
	if loc := c.bridge.Location(); loc != nil {
		target = history.URLFor(loc.Path, loc.RawQuery)
	}
	c.bridge.Untrack(func() {
		c.bridge.ReplaceState(stamped, "", target)
	})
	c.logger.Debug("history entry stamped", "url", target)
}

// roundTrip returns the plain JSON form of the store, the shape a browser
// history keeps after structured cloning.
func roundTrip(m *params.Map) map[string]any {
	data, err := json.Marshal(m)
	if err == nil {
		var out map[string]any
		if err := json.Unmarshal(data, &out); err == nil {
			return out
		}
	}
	out, _ := params.ToAny(m).(map[string]any)
	return out
}
