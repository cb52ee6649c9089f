/**
 * @description
 * HTTP router setup for the worker payment tracking API using go-chi/chi.
 */
package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	wptsmiddleware "github.com/Poorujeet01/BCCL-PROJECT/pkg/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures the middleware stack and optional static files.
type RouterOptions struct {
	// StaticDir, when set, is served for every GET outside /api.
	StaticDir      string
	RequestTimeout time.Duration
	// APIRateLimiter guards every /api route when non-nil. The caller stops it.
	APIRateLimiter *wptsmiddleware.RateLimiter
}

// NewRouter creates a new Chi router and registers the payment routes.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(JSONRecoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, msgNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	})

	r.Route("/api", func(r chi.Router) {
		if opts.APIRateLimiter != nil {
			r.Use(opts.APIRateLimiter.Middleware())
		}

		r.Get("/health", h.handleHealth)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/payments", h.handleCreatePayment)
			r.Get("/payments", h.handleListPayments)
			r.Post("/payments/{id}/record-payments", h.handleRecordPayments)
			r.Get("/worker-payments", h.handleListWorkerPayments)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/{id}/allocate", h.handleAllocatePayment)
			r.Post("/{id}/mark-complete", h.handleMarkComplete)
			r.Get("/contractor/{name}", h.handleListContractorPayments)
		})

		r.Route("/worker", func(r chi.Router) {
			r.Post("/login", h.handleWorkerLogin)
			r.Get("/{phone}/payments", h.handleWorkerPayments)
			r.Post("/verify-payment", h.handleVerifyPayment)
			r.Post("/verify-payment-with-amount", h.handleVerifyPaymentWithAmount)
			r.Post("/report-discrepancy", h.handleReportDiscrepancy)
		})
	})

	if dir := strings.TrimSpace(opts.StaticDir); dir != "" {
		r.Get("/*", staticFiles(dir))
	}

	return r
}

// staticFiles serves the browser client from dir. "/" maps to index.html and
// missing files get the JSON not-found body.
func staticFiles(dir string) http.HandlerFunc {
	fileServer := http.FileServer(http.Dir(dir))
	return func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + r.URL.Path)
		if name == "/" {
			name = "/index.html"
		}
		info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name)))
		if err != nil || info.IsDir() {
			writeError(w, http.StatusNotFound, msgNotFound)
			return
		}
		fileServer.ServeHTTP(w, r)
	}
}
