package server

import (
	"bytes"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	file, ok := s.resolve(r.URL.Path)
	isHTML := strings.EqualFold(filepath.Ext(file), ".html")

	if err := s.LastError(); err != nil && (isHTML || !ok) {
		s.serveOverlay(w, r, err)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	if !isHTML {
		http.ServeFile(w, r, file)
		return
	}

	content, err := os.ReadFile(file)
	if err != nil {
		http.Error(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	info, statErr := os.Stat(file)
	body := InjectLiveReload(content, liveReloadScript)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if statErr == nil {
		http.ServeContent(w, r, filepath.Base(file), info.ModTime(), bytes.NewReader(body))
		return
	}
	_, _ = w.Write(body)
}

// resolve maps a URL path to a file under the served directory. Directories
// resolve to their index.html; extensionless paths also try <path>.html.
func (s *Server) resolve(urlPath string) (string, bool) {
	clean := path.Clean("/" + urlPath)
	file := filepath.Join(s.opts.Dir, filepath.FromSlash(clean))

	candidates := []string{file}
	if strings.HasSuffix(urlPath, "/") || clean == "/" {
		candidates = []string{filepath.Join(file, "index.html")}
	} else if path.Ext(clean) == "" {
		candidates = append(candidates, file+".html", filepath.Join(file, "index.html"))
	}

	for _, c := range candidates {
		info, err := os.Stat(c)
		if err == nil && info.Mode().IsRegular() {
			return c, true
		}
	}
	return file, false
}

func (s *Server) serveOverlay(w http.ResponseWriter, r *http.Request, buildErr error) {
	var buf bytes.Buffer
	if err := ErrorOverlay(buildErr.Error()).Render(r.Context(), &buf); err != nil {
		http.Error(w, buildErr.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write(InjectLiveReload(buf.Bytes(), liveReloadScript))
}

func portString(port int) string { return strconv.Itoa(port) }
