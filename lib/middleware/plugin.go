package middleware

import "net/http"

// PluginContentType is the media type of every Docker plugin protocol response.
const PluginContentType = "application/vnd.docker.plugins.v1+json"

// maxRequestBody bounds protocol request bodies. Requests carry a name and a few options.
const maxRequestBody = 1 << 20

// PluginResponse sets the protocol content type and bounds the request body.
func PluginResponse(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", PluginContentType)
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		}
		next.ServeHTTP(w, r)
	})
}
