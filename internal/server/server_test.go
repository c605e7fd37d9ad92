package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/jsxsite/internal/types"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server, string) {
	t.Helper()
	dir := t.TempDir()
	s := New(Options{Dir: dir, Host: "localhost", Port: 8080}, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
		ts.Close()
	})
	return s, ts, dir
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func get(t *testing.T, url string) (int, string, http.Header) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body), resp.Header
}

func TestStaticServing(t *testing.T) {
	_, ts, dir := newTestServer(t)
	writeFile(t, dir, "index.html", "<html><body><h1>home</h1></body></html>")
	writeFile(t, dir, "about.html", "<p>about</p>")
	writeFile(t, dir, "blog/index.html", "<html><body>blog</body></html>")
	writeFile(t, dir, "assets/css/main.css", "body{}")

	tests := []struct {
		name     string
		path     string
		status   int
		contains string
		injected bool
	}{
		{"root index", "/", http.StatusOK, "<h1>home</h1>", true},
		{"html file", "/about.html", http.StatusOK, "<p>about</p>", true},
		{"extensionless", "/about", http.StatusOK, "<p>about</p>", true},
		{"directory index", "/blog/", http.StatusOK, "blog", true},
		{"directory without slash", "/blog", http.StatusOK, "blog", true},
		{"css asset", "/assets/css/main.css", http.StatusOK, "body{}", false},
		{"missing", "/nope.html", http.StatusNotFound, "", false},
		{"traversal", "/../../etc/passwd", http.StatusNotFound, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body, _ := get(t, ts.URL+tt.path)
			assert.Equal(t, tt.status, status)
			if tt.contains != "" {
				assert.Contains(t, body, tt.contains)
			}
			assert.Equal(t, tt.injected, strings.Contains(body, LiveReloadPath))
		})
	}
}

func TestInjectedBeforeBodyClose(t *testing.T) {
	_, ts, dir := newTestServer(t)
	writeFile(t, dir, "index.html", "<html><body><p>x</p></body></html>")

	_, body, header := get(t, ts.URL+"/")
	assert.Equal(t, "<html><body><p>x</p>"+liveReloadScript+"</body></html>", body)
	assert.Equal(t, "text/html; charset=utf-8", header.Get("Content-Type"))
}

func TestInjectLiveReload(t *testing.T) {
	const s = "<script>r()</script>"
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"body", "<body>a</body>", "<body>a" + s + "</body>"},
		{"uppercase", "<BODY>a</BODY>", "<BODY>a" + s + "</BODY>"},
		{"no body", "<p>a</p>", "<p>a</p>" + s},
		{"empty", "", s},
		{"last body wins", "<body>a</body><!-- x --></body>", "<body>a</body><!-- x -->" + s + "</body>"},
		{"in comment", "<body><!-- </body> --></body>", "<body><!-- </body> -->" + s + "</body>"},
		{"in script", "<body><script>var t='</body>';</script>x</body>",
			"<body><script>var t='</body>';</script>x" + s + "</body>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(InjectLiveReload([]byte(tt.in), s)))
		})
	}
}

func TestErrorOverlay(t *testing.T) {
	s, ts, dir := newTestServer(t)
	writeFile(t, dir, "index.html", "<html><body>ok</body></html>")
	writeFile(t, dir, "main.css", "a{}")

	s.Notify(types.BuildEvent{Err: stderrors.New("compile <failed> in index.jsx")})

	status, body, _ := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body, "Build failed")
	assert.Contains(t, body, "compile &lt;failed&gt; in index.jsx")
	assert.Contains(t, body, LiveReloadPath)

	status, body, _ = get(t, ts.URL+"/main.css")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "a{}", body)

	s.Notify(types.BuildEvent{Pages: 1})
	status, body, _ = get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "ok")
}

func TestHealth(t *testing.T) {
	s, ts, _ := newTestServer(t)

	_, body, _ := get(t, ts.URL+"/__health")
	var status map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &status))
	assert.Equal(t, "healthy", status["status"])

	s.Notify(types.BuildEvent{Err: stderrors.New("boom")})
	_, body, _ = get(t, ts.URL+"/__health")
	require.NoError(t, json.Unmarshal([]byte(body), &status))
	assert.Equal(t, "build_failed", status["status"])
	assert.Equal(t, "boom", status["error"])
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts, _ := newTestServer(t)
	resp, err := http.Post(ts.URL+"/", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func dial(t *testing.T, ts *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+LiveReloadPath,
		&websocket.DialOptions{HTTPHeader: header})
}

func TestLiveReloadBroadcast(t *testing.T) {
	s, ts, _ := newTestServer(t)

	conn, _, err := dial(t, ts, ts.URL)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	read := func() UpdateMessage {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg UpdateMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	s.Notify(types.BuildEvent{Changed: []string{"src/pages/index.jsx"}, Pages: 1})
	msg := read()
	assert.Equal(t, "reload", msg.Type)
	assert.Equal(t, []string{"src/pages/index.jsx"}, msg.Changed)

	s.Notify(types.BuildEvent{Err: stderrors.New("syntax error")})
	msg = read()
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "syntax error", msg.Message)

	conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return s.ClientCount() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestLiveReloadOrigin(t *testing.T) {
	_, ts, _ := newTestServer(t)

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"same origin", ts.URL, true},
		{"configured host", "http://localhost:8080", true},
		{"loopback", "http://127.0.0.1:8080", true},
		{"missing", "", false},
		{"foreign", "http://evil.example", false},
		{"bad scheme", "file://localhost:8080", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := dial(t, ts, tt.origin)
			if tt.ok {
				require.NoError(t, err)
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
}

func TestShutdownClosesClients(t *testing.T) {
	s, ts, _ := newTestServer(t)

	conn, _, err := dial(t, ts, ts.URL)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, 0, s.ClientCount())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err = conn.Read(ctx)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))

	// broadcasting after shutdown is a no-op
	s.Notify(types.BuildEvent{})
}

func TestOptionsAddr(t *testing.T) {
	assert.Equal(t, "localhost:8080", Options{Host: "localhost", Port: 8080}.Addr())
	assert.Equal(t, "[::1]:3000", Options{Host: "::1", Port: 3000}.Addr())
}
