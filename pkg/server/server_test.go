package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vango-dev/urlstate/internal/config"
	"github.com/vango-dev/urlstate/internal/errors"
	"github.com/vango-dev/urlstate/pkg/history"
	"github.com/vango-dev/urlstate/pkg/wshistory"
)

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(cfg)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) wshistory.Message {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wshistory.Message
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func send(t *testing.T, ws *websocket.Conn, msg wshistory.Message) {
	t.Helper()
	if err := ws.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func snapshotValues(t *testing.T, msg wshistory.Message) map[string]any {
	t.Helper()
	if msg.Type != wshistory.TypeSnapshot {
		t.Fatalf("message type = %q, want snapshot", msg.Type)
	}
	var values map[string]any
	if err := json.Unmarshal(msg.Value, &values); err != nil {
		t.Fatalf("snapshot value: %v", err)
	}
	return values
}

func post(t *testing.T, ts *httptest.Server, path, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("POST %s: decode: %v", path, err)
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body healthBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Sessions != 0 {
		t.Errorf("body = %+v", body)
	}
}

func TestEncodeAPI(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	status, body := post(t, ts, "/api/encode", `{"b":"2","a":{"c":"3"},"s":"x y"}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	if body["query"] != "b=2&a[c]=3&s=x+y" {
		t.Errorf("query = %v", body["query"])
	}

	tests := []struct {
		body string
		code string
	}{
		{`{"a":`, "E100"},
		{`not json`, "E100"},
		{`[1,2]`, "E101"},
		{`"text"`, "E101"},
		{`null`, "E101"},
	}
	for _, tt := range tests {
		status, body := post(t, ts, "/api/encode", tt.body)
		if status != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tt.body, status)
		}
		if got := errorCode(body); got != tt.code {
			t.Errorf("%s: code = %q, want %q", tt.body, got, tt.code)
		}
	}
}

func TestDecodeAPI(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Post(ts.URL+"/api/decode", "application/json",
		strings.NewReader(`{"query":"?z=1&a[b]=2&a[c][0]=x"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	want := `{"z":"1","a":{"b":"2","c":["x"]}}` + "\n"
	if string(data) != want {
		t.Errorf("body = %s, want %s", data, want)
	}

	status, body := post(t, ts, "/api/decode", `{"query":`)
	if status != http.StatusBadRequest || errorCode(body) != "E100" {
		t.Errorf("malformed body: status = %d, body = %v", status, body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, Config{Metrics: true})

	if _, err := http.Get(ts.URL + "/healthz"); err != nil {
		t.Fatal(err)
	}
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	text := string(data)
	for _, want := range []string{
		`urlstate_http_requests_total{route="/healthz",status="200"} 1`,
		"urlstate_http_request_duration_seconds",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMetricsDisabled(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSessionSnapshot(t *testing.T) {
	s, ts := newTestServer(t, Config{})
	ws := dial(t, ts, "q=go&t[0]=a")

	msg := readMessage(t, ws)
	values := snapshotValues(t, msg)
	if msg.Session == "" {
		t.Error("snapshot has no session id")
	}
	if msg.Query != "q=go&t[0]=a" {
		t.Errorf("query = %q", msg.Query)
	}
	if values["q"] != "go" || values["page"] != "1" {
		t.Errorf("values = %v", values)
	}
	if tags, _ := values["tags"].([]any); len(tags) != 1 || tags[0] != "a" {
		t.Errorf("tags = %v", values["tags"])
	}

	sess, ok := s.Sessions().Get(msg.Session)
	if !ok {
		t.Fatalf("session %s not registered", msg.Session)
	}
	want := []string{"filter", "page", "q", "tags"}
	if got := sess.Fields(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Fields() = %v, want %v", got, want)
	}
	if got := testutil.ToFloat64(s.metrics.sessionsTotal); got != 1 {
		t.Errorf("sessions_total = %v, want 1", got)
	}
}

func TestSessionNormalizesInitialQuery(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	ws := dial(t, ts, "page=1&q=go")

	msg := readMessage(t, ws)
	if msg.Type != wshistory.TypeReplaceState || msg.URL != "?q=go" {
		t.Errorf("first frame = %+v, want replaceState ?q=go", msg)
	}
	snap := readMessage(t, ws)
	if snap.Type != wshistory.TypeSnapshot || snap.Query != "q=go" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestSessionSetAndPop(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	ws := dial(t, ts, "")
	readMessage(t, ws)

	send(t, ws, wshistory.Message{Type: wshistory.TypeSet, Field: "q", Value: json.RawMessage(`"gophers"`)})
	msg := readMessage(t, ws)
	if msg.Type != wshistory.TypeReplaceState || msg.URL != "?q=gophers" {
		t.Fatalf("frame = %+v, want replaceState ?q=gophers", msg)
	}
	if q, ok := msg.State.Query(); !ok || q["q"] != "gophers" {
		t.Errorf("state = %v", msg.State)
	}

	send(t, ws, wshistory.Message{Type: wshistory.TypeSet, Field: "filter", Value: json.RawMessage(`"all"`)})
	msg = readMessage(t, ws)
	if msg.Type != wshistory.TypePushState || msg.URL != "?q=gophers&filter=YWxs" {
		t.Fatalf("frame = %+v, want pushState ?q=gophers&filter=YWxs", msg)
	}

	send(t, ws, wshistory.Message{
		Type:  wshistory.TypePopState,
		URL:   "/?q=back",
		State: history.State{history.QueryKey: map[string]any{"q": "back"}},
	})
	send(t, ws, wshistory.Message{Type: wshistory.TypeSync})
	snap := readMessage(t, ws)
	values := snapshotValues(t, snap)
	if snap.Query != "q=back" || values["q"] != "back" || values["filter"] != "" {
		t.Errorf("after pop: query = %q, values = %v", snap.Query, values)
	}
}

func TestSessionPushMode(t *testing.T) {
	_, ts := newTestServer(t, Config{DefaultMode: history.ModePush})
	ws := dial(t, ts, "")
	readMessage(t, ws)

	send(t, ws, wshistory.Message{Type: wshistory.TypeSet, Field: "tags", Value: json.RawMessage(`["a","b"]`)})
	stamp := readMessage(t, ws)
	if stamp.Type != wshistory.TypeReplaceState {
		t.Fatalf("first frame = %+v, want replaceState stamping the left entry", stamp)
	}
	if q, ok := stamp.State.Query(); !ok || len(q) != 0 {
		t.Errorf("stamped state = %v, want an empty query payload", stamp.State)
	}
	msg := readMessage(t, ws)
	if msg.Type != wshistory.TypePushState || msg.URL != "?t[0]=a&t[1]=b" {
		t.Errorf("frame = %+v, want pushState ?t[0]=a&t[1]=b", msg)
	}
}

func TestSessionErrors(t *testing.T) {
	s, ts := newTestServer(t, Config{})
	ws := dial(t, ts, "")
	readMessage(t, ws)

	bad := []struct {
		msg    wshistory.Message
		detail string
	}{
		{wshistory.Message{Type: wshistory.TypeSet, Field: "nope", Value: json.RawMessage(`"x"`)}, `field "nope" is not declared`},
		{wshistory.Message{Type: wshistory.TypeSet, Field: "page", Value: json.RawMessage(`5`)}, `value for field "page" does not match its type`},
		{wshistory.Message{Type: "bogus"}, `message type "bogus" is not supported`},
	}
	for _, tt := range bad {
		send(t, ws, tt.msg)
		reply := readMessage(t, ws)
		if reply.Type != wshistory.TypeError || reply.Code != "E120" {
			t.Errorf("%+v: reply = %+v, want E120 error", tt.msg, reply)
		}
		if !strings.Contains(reply.Error, tt.detail) {
			t.Errorf("%+v: error = %q, want it to mention %q", tt.msg, reply.Error, tt.detail)
		}
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	reply := readMessage(t, ws)
	if reply.Type != wshistory.TypeError || reply.Code != "E120" {
		t.Errorf("malformed frame: reply = %+v", reply)
	}

	send(t, ws, wshistory.Message{Type: wshistory.TypeSync})
	if got := readMessage(t, ws); got.Type != wshistory.TypeSnapshot {
		t.Errorf("connection unusable after a malformed frame: %+v", got)
	}
	if got := testutil.ToFloat64(s.metrics.wsErrors.WithLabelValues("invalid_message")); got != 4 {
		t.Errorf("invalid_message errors = %v, want 4", got)
	}
}

func TestSessionClosedOnDisconnect(t *testing.T) {
	s, ts := newTestServer(t, Config{})
	ws := dial(t, ts, "")
	readMessage(t, ws)
	if s.Sessions().Count() != 1 {
		t.Fatalf("Count() = %d, want 1", s.Sessions().Count())
	}

	ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	ws.Close()

	deadline := time.Now().Add(5 * time.Second)
	for s.Sessions().Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session still registered after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := testutil.ToFloat64(s.metrics.activeSessions); got != 0 {
		t.Errorf("active_sessions = %v, want 0", got)
	}
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin", nil, "", true},
		{"same host", nil, "http://example.com", true},
		{"other host", nil, "http://evil.example", false},
		{"listed", []string{"https://app.example"}, "https://app.example", true},
		{"not listed", []string{"https://app.example"}, "http://example.com", false},
		{"wildcard", []string{"*"}, "http://anything.example", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Config{AllowedOrigins: tt.allowed, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
			r := httptest.NewRequest(http.MethodGet, "http://example.com/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := s.checkOrigin(r); got != tt.want {
				t.Errorf("checkOrigin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRejectedOrigin(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": []string{"http://evil.example"}})
	if err == nil {
		t.Fatal("dial succeeded from a foreign origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
}

func TestParseObject(t *testing.T) {
	m, err := ParseObject([]byte(`{"b":"1","a":"2"}`))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(m.Keys(), ","); got != "b,a" {
		t.Errorf("keys = %s, want b,a", got)
	}
	if _, err := ParseObject([]byte(`[]`)); errors.CodeOf(err) != "E101" {
		t.Errorf("array: code = %q, want E101", errors.CodeOf(err))
	}
	if _, err := ParseObject([]byte(`{`)); errors.CodeOf(err) != "E100" {
		t.Errorf("truncated: code = %q, want E100", errors.CodeOf(err))
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Port = 9090
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.History.DefaultMode = "push"

	got := ConfigFrom(cfg)
	if got.Addr != "localhost:9090" {
		t.Errorf("Addr = %q", got.Addr)
	}
	if !got.Metrics || got.DefaultMode != history.ModePush || len(got.AllowedOrigins) != 1 {
		t.Errorf("ConfigFrom() = %+v", got)
	}
}
