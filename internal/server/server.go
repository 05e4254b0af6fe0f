// Package server exposes extraction over JSON-RPC 2.0 on stdio, so editors
// and other tools can query package APIs from a long-lived process.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/adelyne/pydex/internal/cache"
	"github.com/adelyne/pydex/internal/docstring"
	"github.com/adelyne/pydex/internal/loader"
	"github.com/adelyne/pydex/internal/logger"
	"github.com/adelyne/pydex/internal/model"
)

var log = logger.ForComponent("server")

// Options wires the server's collaborators. Store and Worker are optional;
// without them pydex/search and pydex/stats report an error.
type Options struct {
	SearchPaths []string
	Style       docstring.Style
	Excludes    []string
	Workers     int

	Store  *cache.Store
	Worker *cache.Worker
}

type Server struct {
	opts Options

	mu     sync.Mutex
	loaded map[string]*model.Object
}

func New(opts Options) *Server {
	return &Server{
		opts:   opts,
		loaded: make(map[string]*model.Object),
	}
}

// LoadParams are the arguments of the pydex/load method.
type LoadParams struct {
	Package string `json:"package"`
	// Style overrides the server-wide docstring style for this load.
	Style string `json:"style,omitempty"`
}

type SearchParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type PingResult struct {
	Status string `json:"status"`
}

// Serve runs the JSON-RPC loop over the given transport until it closes or
// the context is canceled. Pass a combined stdin/stdout pipe for stdio mode.
func (s *Server) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.PlainObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(s.handle))

	log.Info("server started")
	select {
	case <-ctx.Done():
		conn.Close()
		return ctx.Err()
	case <-conn.DisconnectNotify():
		log.Info("server stopped")
		return nil
	}
}

func (s *Server) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	log.Debug("handling request", "method", req.Method)

	switch req.Method {
	case "pydex/ping":
		return PingResult{Status: "ok"}, nil

	case "pydex/load":
		var params LoadParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		return s.load(ctx, params)

	case "pydex/search":
		var params SearchParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		return s.search(params)

	case "pydex/stats":
		return s.stats()

	default:
		return nil, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeMethodNotFound,
			Message: fmt.Sprintf("method not found: %s", req.Method),
		}
	}
}

func unmarshalParams(req *jsonrpc2.Request, v interface{}) error {
	if req.Params == nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

func (s *Server) load(ctx context.Context, params LoadParams) (interface{}, error) {
	if params.Package == "" {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "package is required"}
	}

	style := s.opts.Style
	if params.Style != "" {
		parsed, err := docstring.ParseStyle(params.Style)
		if err != nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
		}
		style = parsed
	}

	l := loader.New(loader.Options{
		SearchPaths: s.opts.SearchPaths,
		Style:       style,
		Excludes:    s.opts.Excludes,
		Workers:     s.opts.Workers,
	})

	obj, err := l.Load(ctx, params.Package)
	if err != nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidRequest, Message: err.Error()}
	}

	s.mu.Lock()
	s.loaded[params.Package] = obj
	s.mu.Unlock()

	log.Info("package loaded", "package", params.Package)
	return obj, nil
}

func (s *Server) search(params SearchParams) (interface{}, error) {
	if s.opts.Store == nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidRequest, Message: "cache is disabled"}
	}
	if params.Query == "" {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "query is required"}
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	results, err := s.opts.Store.Search(params.Query, limit)
	if err != nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
	}
	if results == nil {
		results = []*cache.CachedObject{}
	}
	return results, nil
}

func (s *Server) stats() (interface{}, error) {
	if s.opts.Store == nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidRequest, Message: "cache is disabled"}
	}

	stats, err := s.opts.Store.GetStats()
	if err != nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
	}

	result := map[string]interface{}{
		"total_files":     stats.TotalFiles,
		"extracted_files": stats.ExtractedFiles,
		"failed_files":    stats.FailedFiles,
		"skipped_files":   stats.SkippedFiles,
		"total_objects":   stats.TotalObjects,
	}
	if stats.LastExtracted != nil {
		result["last_extracted_at"] = stats.LastExtracted
	}
	if s.opts.Worker != nil {
		ws := s.opts.Worker.GetStats()
		result["queue"] = map[string]interface{}{
			"in_queue":  ws.InQueue,
			"extracted": ws.Extracted,
			"failed":    ws.Failed,
			"skipped":   ws.Skipped,
			"running":   ws.IsRunning,
		}
	}
	return result, nil
}

// Stdio is the stdin/stdout transport used by serve mode.
type Stdio struct{}

func (Stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (Stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func (Stdio) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}
