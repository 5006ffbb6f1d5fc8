// Package server exposes the engine over HTTP: a Kakao skill webhook that
// answers through a callback URL and a synchronous JSON API.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/hupe1980/firegraph/core"
	"github.com/hupe1980/firegraph/engine"
	"github.com/hupe1980/firegraph/logging"
)

// User facing texts.
const (
	WaitingMessage         = "The response team has started its analysis. Please wait a moment."
	ErrorMessage           = "Sorry, something went wrong while processing your request."
	MissingCallbackMessage = "The chatbot is misconfigured (callback URL missing)."
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

// Runner runs a turn. *engine.Engine implements it.
type Runner interface {
	Run(ctx context.Context, threadID, input string, optFns ...func(o *engine.RunOptions)) (*engine.Result, error)
}

// Options configures a Server.
type Options struct {
	// TurnDeadline bounds every turn started by the server.
	TurnDeadline time.Duration
	// CallbackClient posts final answers to callback URLs.
	CallbackClient *http.Client
	MaxBodySize    int64
	Logger         logging.Logger
}

// Server serves the HTTP surface. Turns started by the webhook run in the
// background until they finish or Close is called.
type Server struct {
	runner Runner
	opts   Options
	logger logging.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Server around runner.
func New(runner Runner, optFns ...func(o *Options)) *Server {
	opts := Options{
		TurnDeadline:   55 * time.Second,
		CallbackClient: &http.Client{Timeout: 10 * time.Second},
		MaxBodySize:    defaultMaxRequestBodySize,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		runner:  runner,
		opts:    opts,
		logger:  logging.ForComponent(opts.Logger, "server"),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Handler returns the router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	s.RegisterRoutes(r)

	return r
}

// RegisterRoutes registers the server routes on r.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/health", s.HandleHealth)
	r.Post("/skill/chat", s.HandleSkill)
	r.Route("/v1/threads/{threadID}", func(r chi.Router) {
		r.Post("/turns", s.HandleTurn)
	})
}

// Close cancels background turns and waits for them to finish.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

// HandleHealth reports liveness.
func (s *Server) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// HandleSkill accepts a skill request, answers immediately with
// useCallback and posts the final answer to the callback URL.
func (s *Server) HandleSkill(w http.ResponseWriter, r *http.Request) {
	var req SkillRequest
	if err := s.decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	threadID := req.UserRequest.User.ID
	callbackURL := req.UserRequest.CallbackURL
	requestID := SkillRequestKey(callbackURL)

	logger := logging.ForThread(s.logger, threadID, requestID)

	if callbackURL == "" {
		logger.Error("server.skill.callback_missing")
		writeJSON(w, http.StatusOK, TextResponse(MissingCallbackMessage))
		return
	}

	if threadID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "userRequest.user.id is required"})
		return
	}

	logger.Info("server.skill.accepted", "http_request_id", chiMiddleware.GetReqID(r.Context()), "utterance_len", len(req.UserRequest.Utterance))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		text := s.runTurn(s.baseCtx, threadID, req.UserRequest.Utterance, requestID, logger)
		s.postCallback(s.baseCtx, callbackURL, TextResponse(text), logger)
	}()

	writeJSON(w, http.StatusOK, CallbackResponse(WaitingMessage))
}

// SkillRequestKey derives the turn's idempotency key from the callback URL.
// The callback URL is unique per user request, so deliveries sharing it are
// one turn: the engine replays or resumes it instead of starting another.
func SkillRequestKey(callbackURL string) string {
	if callbackURL == "" {
		return ""
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(callbackURL)).String()
}

// TurnRequest is the body of the synchronous turn API.
type TurnRequest struct {
	Input     string `json:"input"`
	RequestID string `json:"request_id,omitempty"`
}

// TurnResponse is the reply of the synchronous turn API.
type TurnResponse struct {
	ThreadID  string `json:"thread_id"`
	RequestID string `json:"request_id"`
	Reply     string `json:"reply"`
	Route     string `json:"route,omitempty"`
	Turn      int    `json:"turn,omitempty"`
	Persisted bool   `json:"persisted"`
	Error     string `json:"error,omitempty"`
}

// HandleTurn runs a turn synchronously.
func (s *Server) HandleTurn(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")

	var req TurnRequest
	if err := s.decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, TurnResponse{ThreadID: threadID, Error: err.Error()})
		return
	}

	if req.RequestID == "" {
		req.RequestID = r.Header.Get("Idempotency-Key")
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	res, err := s.runner.Run(r.Context(), threadID, req.Input,
		engine.WithRequestID(req.RequestID),
		engine.WithDeadline(s.opts.TurnDeadline),
	)

	out := TurnResponse{ThreadID: threadID, RequestID: req.RequestID}
	if res != nil {
		out.Reply = res.Text
		out.Route = string(res.Route)
		out.Persisted = res.Persisted
		if res.State != nil {
			out.Turn = res.State.Turn
		}
	}

	status := http.StatusOK

	switch {
	case err == nil:
	case core.IsKind(err, core.FailurePersistence):
		out.Error = err.Error()
	case core.IsKind(err, core.FailureTimeout):
		status = http.StatusGatewayTimeout
		out.Reply = engine.TimeoutMessage
		out.Error = err.Error()
	case core.IsKind(err, core.FailureConfiguration):
		status = http.StatusBadRequest
		out.Error = err.Error()
	default:
		status = http.StatusInternalServerError
		out.Reply = ErrorMessage
		out.Error = err.Error()
	}

	writeJSON(w, status, out)
}

func (s *Server) runTurn(ctx context.Context, threadID, input, requestID string, logger logging.Logger) string {
	res, err := s.runner.Run(ctx, threadID, input,
		engine.WithRequestID(requestID),
		engine.WithDeadline(s.opts.TurnDeadline),
	)

	switch {
	case err == nil:
		return res.Text
	case core.IsKind(err, core.FailureTimeout):
		logger.Warn("server.turn.timeout", "deadline", s.opts.TurnDeadline)
		return engine.TimeoutMessage
	case res != nil && core.IsKind(err, core.FailurePersistence):
		logger.Warn("server.turn.unpersisted", "error", err.Error())
		return res.Text
	default:
		logger.Error("server.turn.failed", "error", err.Error())
		return ErrorMessage
	}
}

func (s *Server) postCallback(ctx context.Context, url string, payload SkillResponse, logger logging.Logger) {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("server.callback.encode_failed", "error", err.Error())
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		logger.Error("server.callback.request_failed", "error", err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.opts.CallbackClient.Do(req)
	if err != nil {
		logger.Error("server.callback.post_failed", "error", err.Error())
		return
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Error("server.callback.rejected", "status", resp.StatusCode, "body", string(respBody))
		return
	}

	logger.Info("server.callback.delivered", "status", resp.StatusCode)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.New("request body too large")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
