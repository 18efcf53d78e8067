// Package server is the urlstate playground: an HTTP API over the
// query-string codec and a WebSocket endpoint that runs a urlparam.Context
// per connection.
//
// Routes:
//
//	GET  /healthz      liveness and session count
//	POST /api/encode   JSON object -> {"query": "..."}
//	POST /api/decode   {"query": "..."} -> JSON object
//	GET  /ws?<query>   one binding session per connection
//	GET  /metrics      Prometheus metrics, when enabled
//
// A session declares four fields over the query of the /ws request:
//
//	q       string                  ?q=gophers
//	page    string, default "1"     ?page=2
//	tags    []string, alias "t"     ?t[0]=go&t[1]=web
//	filter  base64url string, push ?filter=YWxs
//
// The client drives them with "set" messages and reports back/forward
// navigation with "popstate"; the server answers with pushState and
// replaceState frames the client applies to window.history.
//
// Each session's Context is only touched from its connection's read loop.
package server
