package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/rental-checkout/internal/checkout"
	"github.com/example/rental-checkout/internal/events"
	"github.com/example/rental-checkout/internal/handoff"
	"github.com/example/rental-checkout/internal/inflight"
	"github.com/example/rental-checkout/internal/itinerary"
	"github.com/example/rental-checkout/internal/models"
	"github.com/example/rental-checkout/internal/notify"
)

// Estimator prices an itinerary.
type Estimator interface {
	Estimate(ctx context.Context, mode itinerary.Mode, it models.Itinerary) (models.Quote, error)
}

// IdentityResolver tells whether the caller is a known rider.
type IdentityResolver interface {
	Resolve(r *http.Request) (models.Identity, string, error)
}

// Deps is everything the API needs. Ready may be nil. TrustedProxies lists
// the CIDRs or addresses whose X-Forwarded-For is believed.
type Deps struct {
	Drafts        *itinerary.DraftStore
	Pricing       Estimator
	Checkout      *checkout.Orchestrator
	Recall        *handoff.Recall
	Auth          IdentityResolver
	WSReg         *notify.WSRegistry
	Events        events.Publisher
	Guard         *inflight.Guard
	Ready         func(ctx context.Context) error
	QuotePagePath string

	RateLimitRPS   float64
	RateLimitBurst int
	TrustedProxies []string
}

type Server struct {
	Deps
	logger  *slog.Logger
	limiter *ipLimiter
	proxies []netip.Prefix
	mux     *mux.Router
}

func NewServer(d Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Guard == nil {
		d.Guard = inflight.NewGuard()
	}
	if d.QuotePagePath == "" {
		d.QuotePagePath = "/booking/quote"
	}
	s := &Server{Deps: d, logger: logger, mux: mux.NewRouter()}
	proxies, err := parseProxies(d.TrustedProxies)
	if err != nil {
		logger.Warn("ignoring trusted proxies", "error", err)
	}
	s.proxies = proxies
	if d.RateLimitRPS > 0 {
		s.limiter = newIPLimiter(d.RateLimitRPS, d.RateLimitBurst)
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.Use(s.rateLimitMiddleware)
	api.Use(s.sessionMiddleware)

	api.HandleFunc("/itinerary", s.handleCreateItinerary).Methods(http.MethodPost)
	api.HandleFunc("/itinerary", s.handleGetItinerary).Methods(http.MethodGet)
	api.HandleFunc("/itinerary/segments", s.handleAddSegment).Methods(http.MethodPost)
	api.HandleFunc("/itinerary/segments/{id}", s.handleUpdateSegment).Methods(http.MethodPatch)
	api.HandleFunc("/itinerary/segments/{id}", s.handleRemoveSegment).Methods(http.MethodDelete)
	api.HandleFunc("/itinerary/segments/{id}/toggle", s.handleToggleSegment).Methods(http.MethodPost)
	api.HandleFunc("/itinerary/coupon", s.handleSetCoupon).Methods(http.MethodPut)
	api.HandleFunc("/itinerary/estimate", s.handleEstimate).Methods(http.MethodPost)
	api.HandleFunc("/itinerary/proceed", s.handleProceed).Methods(http.MethodPost)

	api.HandleFunc("/checkout", s.handleEnterCheckout).Methods(http.MethodGet)
	api.HandleFunc("/checkout/contact", s.handleUpdateContact).Methods(http.MethodPut)
	api.HandleFunc("/checkout/book", s.handleBook).Methods(http.MethodPost)
	api.HandleFunc("/checkout/pay", s.handleRetryPayment).Methods(http.MethodPost)
	api.HandleFunc("/checkout/restart", s.handleRestart).Methods(http.MethodPost)

	api.HandleFunc("/contact/recall", s.handleOfferRecall).Methods(http.MethodGet)
	api.HandleFunc("/contact/recall/apply", s.handleApplyRecall).Methods(http.MethodPost)
	api.HandleFunc("/contact/recall", s.handleForgetRecall).Methods(http.MethodDelete)

	ws := s.mux.PathPrefix("/ws").Subrouter()
	ws.Use(s.sessionMiddleware)
	ws.HandleFunc("/checkout", s.handleWS)

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.mux.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.Ready != nil {
		if err := s.Ready(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

var upgrader = websocket.Upgrader{}

// handleWS streams the tab's checkout state changes until it disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "session", session, "error", err)
		return
	}
	s.WSReg.Serve(session, conn)
}
