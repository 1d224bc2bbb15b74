package devserver

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
)

// injectScript inserts the client script tag before the last </body> (or appends it)
func injectScript(body []byte) []byte {
	idx := bytes.LastIndex(bytes.ToLower(body), []byte("</body>"))
	if idx < 0 {
		return append(body, []byte(scriptTag)...)
	}

	result := make([]byte, 0, len(body)+len(scriptTag))
	result = append(result, body[:idx]...)
	result = append(result, scriptTag...)
	return append(result, body[idx:]...)
}

func isPageRequest(path string) bool {
	return path == "" || strings.HasSuffix(path, "/") || strings.HasSuffix(path, ".html")
}

// injector buffers the response so that the script can be added once the handler is done
type injector struct {
	http.ResponseWriter
	status int
	buffer bytes.Buffer
}

func (i *injector) WriteHeader(code int) {
	i.status = code
}

func (i *injector) Write(data []byte) (int, error) {
	return i.buffer.Write(data)
}

func (i *injector) finalize() {
	body := i.buffer.Bytes()
	if i.status == http.StatusOK && strings.Contains(i.Header().Get("Content-Type"), "text/html") {
		body = injectScript(body)
		i.Header().Set("Content-Length", strconv.Itoa(len(body)))
	}

	i.ResponseWriter.WriteHeader(i.status)
	_, _ = i.ResponseWriter.Write(body)
}

// InjectLiveReload adds the live reload client to every HTML page served by next
func InjectLiveReload(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isPageRequest(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		// always send the full page since the cached copy doesn't know about the script
		r.Header.Del("If-Modified-Since")
		r.Header.Del("If-None-Match")
		w.Header().Set("Cache-Control", "no-cache")

		i := &injector{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(i, r)
		i.finalize()
	})
}
