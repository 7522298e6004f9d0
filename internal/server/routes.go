package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/consecrates/pkg/buildinfo"
	apperrors "github.com/matzehuels/consecrates/pkg/errors"
	"github.com/matzehuels/consecrates/pkg/integrations"
)

const apiPrefix = "/api/v1/"

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Upstream string `json:"upstream"`
}

// VersionResponse is returned by GET /version.
type VersionResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	UserAgent string `json:"user_agent"`
}

func (s *Server) registerRoutes() {
	s.router.Get("/health", s.health)
	s.router.Get("/version", s.version)
	s.router.Get("/info/{name}", s.info)
	s.router.Get(apiPrefix+"*", s.proxy)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Version:  buildinfo.Version,
		Upstream: s.client.Gate().BaseURL(),
	})
}

func (s *Server) version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{
		Name:      "consecrates",
		Version:   buildinfo.Version,
		Commit:    buildinfo.Commit,
		BuildDate: buildinfo.Date,
		GoVersion: runtime.Version(),
		UserAgent: s.client.Gate().UserAgent(),
	})
}

// info serves the condensed crate view. It needs two upstream requests,
// so it always takes the blocking path.
func (s *Server) info(w http.ResponseWriter, r *http.Request) {
	info, err := s.client.FetchCrate(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// proxy forwards GET /api/v1/<path>?<query> to the same path below the
// upstream base URL, through the gate.
func (s *Server) proxy(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	nonBlocking, err := nonBlockingParam(query)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	query.Del("nonblocking")

	segments, err := splitPath(strings.TrimPrefix(r.URL.EscapedPath(), apiPrefix))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	gate := s.client.Gate()
	target := gate.URL(query, segments...)

	var body []byte
	if nonBlocking {
		body, err = gate.TryFetch(r.Context(), target)
	} else {
		body, err = gate.Fetch(r.Context(), target)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	status, contentType := classify(body)
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// classify picks the status and content type for an upstream body. Error
// envelopes keep their body but get a matching status.
func classify(body []byte) (int, string) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		if _, err := integrations.DecodeJSON[json.RawMessage](body); err != nil {
			if integrations.IsNotFound(err) {
				return http.StatusNotFound, "application/json"
			}
			return http.StatusBadGateway, "application/json"
		}
		return http.StatusOK, "application/json"
	}
	if _, err := integrations.DecodeText(body); err != nil {
		return http.StatusBadGateway, "application/octet-stream"
	}
	return http.StatusOK, "text/plain; charset=utf-8"
}

// splitPath unescapes each path segment. Dot segments are rejected so a
// request cannot climb out of the API root.
func splitPath(escaped string) ([]string, error) {
	if escaped == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "empty API path")
	}
	parts := strings.Split(escaped, "/")
	for i, p := range parts {
		seg, err := url.PathUnescape(p)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeInvalidInput, err, "invalid path segment %q", p)
		}
		if seg == "." || seg == ".." {
			return nil, apperrors.New(apperrors.ErrCodeInvalidPath, "dot segment in API path")
		}
		parts[i] = seg
	}
	return parts, nil
}

func nonBlockingParam(q url.Values) (bool, error) {
	v := q.Get("nonblocking")
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, apperrors.New(apperrors.ErrCodeInvalidInput, "nonblocking must be a boolean, got %q", v)
	}
	return b, nil
}

// fail maps err to a status and writes the error response. A client that
// went away gets nothing.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if r.Context().Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return
	}

	status := StatusFor(err)
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", strconv.Itoa(s.retryAfter()))
	}
	if status >= http.StatusInternalServerError {
		s.logger.Warn("upstream request failed", "err", err, "request_id", GetRequestID(r.Context()))
	}

	code := string(apperrors.GetCode(err))
	if integrations.IsNotFound(err) {
		code = string(apperrors.ErrCodeNotFound)
	} else if code == "" {
		code = string(apperrors.ErrCodeInternal)
	}
	writeError(w, r, status, code, apperrors.UserMessage(err))
}

// retryAfter is the number of whole seconds until the window reopens, at
// least 1.
func (s *Server) retryAfter() int {
	next, ok := s.client.Gate().Next()
	if !ok {
		return 1
	}
	secs := int((time.Until(next) + time.Second - 1) / time.Second)
	return max(secs, 1)
}

// StatusFor maps an error from the gate or the crates client to an HTTP status.
func StatusFor(err error) int {
	if integrations.IsNotFound(err) {
		return http.StatusNotFound
	}
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case apperrors.ErrCodeInvalidInput, apperrors.ErrCodeInvalidPackage, apperrors.ErrCodeInvalidPath:
		return http.StatusBadRequest
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeNetwork, apperrors.ErrCodeDecode:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is the body of every error the proxy generates itself.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a proxy error.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{
		Code:      code,
		Message:   msg,
		RequestID: GetRequestID(r.Context()),
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
