package server

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/vango-dev/urlstate/internal/errors"
	"github.com/vango-dev/urlstate/pkg/params"
	"github.com/vango-dev/urlstate/pkg/querystring"
)

// maxBodyBytes bounds API request bodies.
const maxBodyBytes = 1 << 20

// ParseObject decodes a JSON object, keeping key order. Malformed JSON is
// E100; valid JSON that is not an object is E101.
func ParseObject(data []byte) (*params.Map, error) {
	m, err := params.ParseJSON(data)
	if err == nil {
		return m, nil
	}
	if stderrors.Is(err, params.ErrNotObject) {
		return nil, errors.New("E101").
			Wrap(err).
			WithSuggestion(`Pass an object, e.g. {"q":"go"}`)
	}
	return nil, errors.New("E100").Wrap(err)
}

type queryBody struct {
	Query string `json:"query"`
}

type healthBody struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthBody{Status: "ok", Sessions: s.sessions.Count()})
}

func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, errors.New("E100").Wrap(err))
		return
	}
	m, err := ParseObject(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.FromError(err, "E100"))
		return
	}
	writeJSON(w, http.StatusOK, queryBody{Query: querystring.Encode(m)})
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	var body queryBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("E100").
			Wrap(err).
			WithSuggestion(`Send {"query":"a=1&b[c]=2"}`))
		return
	}
	writeJSON(w, http.StatusOK, querystring.Decode(body.Query))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, e *errors.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, `{"error":`+e.FormatJSON()+"}\n")
}
