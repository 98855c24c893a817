package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/dmitrijs2005/memorelay/internal/logging"
)

var loginPaths = map[string]struct{}{
	"/login":  {},
	"/signin": {},
	"/auth":   {},
}

func isLoginPath(r *http.Request, _ *mux.RouteMatch) bool {
	p := strings.TrimRight(r.URL.Path, "/")
	_, ok := loginPaths[p]
	return ok
}

func isPreflight(r *http.Request, _ *mux.RouteMatch) bool {
	return r.Method == http.MethodOptions
}

// NewRouter wires the API, redirects and static assets. Routes are matched in
// registration order.
func NewRouter(h *Handler, staticDir string, logger logging.Logger) *mux.Router {
	r := mux.NewRouter()
	r.SkipClean(true)
	r.Use(requestLogger(logger), noStore)

	r.MatcherFunc(isPreflight).Handler(withCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	api := r.PathPrefix("/api").Subrouter()
	api.Use(withCORS)
	api.HandleFunc("/health", h.Health)
	api.HandleFunc("/memo/{id}", h.Memo)

	r.MatcherFunc(isLoginPath).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusFound)
	})

	r.PathPrefix("/").Handler(spaHandler{dir: staticDir})

	return r
}
