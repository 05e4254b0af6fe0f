package server

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adelyne/pydex/internal/cache"
	"github.com/adelyne/pydex/internal/docstring"
)

func startServer(t *testing.T, opts Options) *jsonrpc2.Conn {
	t.Helper()

	serverSide, clientSide := net.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv := New(opts)
	go srv.Serve(ctx, serverSide)

	stream := jsonrpc2.NewBufferedStream(clientSide, jsonrpc2.PlainObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(
		func(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
			return nil, nil
		}))
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServerPing(t *testing.T) {
	conn := startServer(t, Options{})

	var result PingResult
	err := conn.Call(context.Background(), "pydex/ping", nil, &result)
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Status)
}

func TestServerUnknownMethod(t *testing.T) {
	conn := startServer(t, Options{})

	var result interface{}
	err := conn.Call(context.Background(), "pydex/nope", nil, &result)
	require.Error(t, err)

	rpcErr, ok := err.(*jsonrpc2.Error)
	require.True(t, ok)
	assert.Equal(t, int64(jsonrpc2.CodeMethodNotFound), rpcErr.Code)
}

func TestServerLoad(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "single.py"), []byte(`"""A module."""

def f(x: int) -> int:
    """Double it.

    Args:
        x: The value.
    """
    return x * 2
`), 0644))

	conn := startServer(t, Options{
		SearchPaths: []string{root},
		Style:       docstring.StyleGoogle,
	})

	var result map[string]interface{}
	err := conn.Call(context.Background(), "pydex/load", LoadParams{Package: "single"}, &result)
	require.NoError(t, err)

	assert.Equal(t, "single", result["name"])
	assert.Equal(t, "module", result["kind"])
	members, ok := result["members"].([]interface{})
	require.True(t, ok)
	require.Len(t, members, 1)
	fn := members[0].(map[string]interface{})
	assert.Equal(t, "f", fn["name"])
	assert.Equal(t, "int", fn["returns"])
}

func TestServerLoadMissingPackage(t *testing.T) {
	conn := startServer(t, Options{SearchPaths: []string{t.TempDir()}})

	var result interface{}
	err := conn.Call(context.Background(), "pydex/load", LoadParams{Package: "ghost"}, &result)
	require.Error(t, err)
}

func TestServerLoadRequiresPackage(t *testing.T) {
	conn := startServer(t, Options{})

	var result interface{}
	err := conn.Call(context.Background(), "pydex/load", LoadParams{}, &result)
	require.Error(t, err)

	rpcErr, ok := err.(*jsonrpc2.Error)
	require.True(t, ok)
	assert.Equal(t, int64(jsonrpc2.CodeInvalidParams), rpcErr.Code)
}

func TestServerSearchWithoutCache(t *testing.T) {
	conn := startServer(t, Options{})

	var result interface{}
	err := conn.Call(context.Background(), "pydex/search", SearchParams{Query: "greet"}, &result)
	require.Error(t, err)
}

func TestServerSearchAndStats(t *testing.T) {
	store, err := cache.NewStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	fileID, err := store.UpsertFile(&cache.CachedFile{Path: "/src/mod.py", Status: cache.StatusExtracted})
	require.NoError(t, err)
	require.NoError(t, store.ReplaceObjects(fileID, []*cache.CachedObject{
		{Path: "mod.greet", Name: "greet", Kind: "function", Docstring: "Say hello.", LineStart: 1},
	}))

	conn := startServer(t, Options{Store: store})

	var results []*cache.CachedObject
	err = conn.Call(context.Background(), "pydex/search", SearchParams{Query: "greet"}, &results)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "mod.greet", results[0].Path)

	var stats map[string]interface{}
	err = conn.Call(context.Background(), "pydex/stats", nil, &stats)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats["total_files"])
	assert.EqualValues(t, 1, stats["total_objects"])
}
