// Package server exposes the query engine as a one-question web form, a small
// JSON API and a streaming websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xhad/docqa/internal/types"
	"go.uber.org/zap"
)

const (
	// maxBodyBytes caps form and JSON request bodies.
	maxBodyBytes = 64 << 10
	// maxMessageBytes caps one websocket frame; larger frames close the connection.
	maxMessageBytes = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the websocket frame in both directions.
type Message struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

type Config struct {
	Addr        string
	Title       string
	Description string
	Placeholder string
}

type Server struct {
	config   Config
	answerer types.Answerer
	log      *zap.SugaredLogger
	page     *template.Template
}

func New(answerer types.Answerer, config Config, logger *zap.Logger) *Server {
	if config.Addr == "" {
		config.Addr = "127.0.0.1:7860"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		config:   config,
		answerer: answerer,
		log:      logger.Sugar(),
		page:     template.Must(template.New("page").Parse(pageHTML)),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleForm)
	mux.HandleFunc("/api/predict", s.handlePredict)
	mux.HandleFunc("/api/query", s.handleQuery)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return s.logRequests(mux)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("Starting server", "addr", s.config.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Infow("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type pageData struct {
	Config
	Query  string
	Output string
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := pageData{Config: s.config}
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), bodyErrorStatus(err))
			return
		}
		data.Query = r.PostForm.Get("query")
		resp, err := s.answerer.Query(r.Context(), data.Query)
		if err != nil {
			s.log.Errorw("Query failed", "error", err)
			data.Output = err.Error()
		} else {
			data.Output = resp.String()
		}
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		s.log.Errorw("Failed to render page", "error", err)
	}
}

type predictRequest struct {
	Data []string `json:"data"`
}

// handlePredict keeps the request and response shape of a one-input,
// one-output form endpoint.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req predictRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, "expected {\"data\": [question]}", bodyErrorStatus(err))
		return
	}
	if len(req.Data) != 1 {
		http.Error(w, "expected {\"data\": [question]}", http.StatusBadRequest)
		return
	}

	resp, err := s.answerer.Query(r.Context(), req.Data[0])
	if err != nil {
		s.log.Errorw("Query failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string][]string{"data": {resp.String()}})
}

type queryRequest struct {
	Query string `json:"query"`
}

type source struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type queryResponse struct {
	Answer  string   `json:"answer"`
	Sources []source `json:"sources"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req queryRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), bodyErrorStatus(err))
		return
	}

	resp, err := s.answerer.Query(r.Context(), req.Query)
	if err != nil {
		s.log.Errorw("Query failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := queryResponse{Answer: resp.String(), Sources: []source{}}
	for _, n := range resp.SourceNodes {
		out.Sources = append(out.Sources, source{ID: n.ID, Score: n.Score, Text: n.Text, Metadata: n.Metadata})
	}
	writeJSON(w, out)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func bodyErrorStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageBytes)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debugw("WebSocket read ended", "error", err)
			}
			return
		}

		if msg.Type != "query" {
			s.send(conn, "error", fmt.Sprintf("unknown message type %q", msg.Type))
			continue
		}
		s.handleMessage(r.Context(), conn, msg)
	}
}

// handleMessage answers one query. Frames are written from this goroutine
// only, so no write lock is needed.
func (s *Server) handleMessage(ctx context.Context, conn *websocket.Conn, msg Message) {
	_, err := s.answerer.Stream(ctx, msg.Content, func(chunk string) error {
		return conn.WriteJSON(Message{Type: "stream", Content: chunk})
	})
	if err != nil {
		s.log.Errorw("Streaming query failed", "error", err)
		s.send(conn, "error", err.Error())
		return
	}
	s.send(conn, "done", "")
}

func (s *Server) send(conn *websocket.Conn, msgType, content string) {
	if err := conn.WriteJSON(Message{Type: msgType, Content: content}); err != nil {
		s.log.Warnw("Error sending message", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
