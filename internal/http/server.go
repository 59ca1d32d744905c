package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/adarsh745/etaxmentor-sub000/internal/auth"
	"github.com/adarsh745/etaxmentor-sub000/internal/config"
	"github.com/adarsh745/etaxmentor-sub000/internal/crypto"
	"github.com/adarsh745/etaxmentor-sub000/internal/events"
	"github.com/adarsh745/etaxmentor-sub000/internal/repository"
	"github.com/adarsh745/etaxmentor-sub000/internal/storage"
)

const authCookieName = "auth-token"

var filingTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "etaxmentor_filing_transitions_total",
	Help: "Filing status transitions applied, by kind and target status.",
}, []string{"kind", "to"})

var documentUploads = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "etaxmentor_document_uploads_total",
	Help: "Document uploads, by outcome.",
}, []string{"outcome"})

type Server struct {
	cfg      config.Config
	store    *repository.Store
	blobs    storage.BlobStore
	producer *events.Producer
	redis    *redis.Client
}

func NewServer(cfg config.Config, store *repository.Store, blobs storage.BlobStore, producer *events.Producer, redisClient *redis.Client) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		blobs:    blobs,
		producer: producer,
		redis:    redisClient,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(s.protectedPrefixRedirect)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/logout", s.handleLogout)
	r.With(s.authMiddleware).Get("/auth/me", s.handleGetMe)
	r.With(s.authMiddleware).Post("/auth/change-password", s.handleChangePassword)

	r.Route("/filings/itr", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListITRFilings)
		r.Post("/", s.handleCreateITRFiling)
		r.Get("/summary", s.handleITRSummary)
		r.Get("/{filingId}", s.handleGetITRFiling)
		r.Patch("/{filingId}", s.handlePatchITRFiling)
		r.Delete("/{filingId}", s.handleDeleteITRFiling)
		r.Post("/{filingId}/submit", s.handleSubmitITRFiling)
		r.With(s.requireStaff).Post("/{filingId}/transition", s.handleTransitionITRFiling)
		r.Get("/{filingId}/computation", s.handleITRComputation)
	})

	r.Route("/filings/gst", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListGSTFilings)
		r.Post("/", s.handleCreateGSTFiling)
		r.Get("/summary", s.handleGSTSummary)
		r.Get("/{filingId}", s.handleGetGSTFiling)
		r.Patch("/{filingId}", s.handlePatchGSTFiling)
		r.Delete("/{filingId}", s.handleDeleteGSTFiling)
		r.Post("/{filingId}/submit", s.handleSubmitGSTFiling)
		r.With(s.requireStaff).Post("/{filingId}/transition", s.handleTransitionGSTFiling)
		r.Get("/{filingId}/computation", s.handleGSTComputation)
	})

	r.Route("/documents", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListDocuments)
		r.Post("/", s.handleUploadDocument)
		r.Get("/{documentId}/download", s.handleDownloadDocument)
		r.With(s.requireStaff).Post("/{documentId}/verify", s.handleVerifyDocument)
		r.Delete("/{documentId}", s.handleDeleteDocument)
	})

	r.Route("/tickets", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListTickets)
		r.Post("/", s.handleCreateTicket)
		r.Get("/{ticketId}", s.handleGetTicket)
		r.Post("/{ticketId}/messages", s.handleAddTicketMessage)
		r.With(s.requireStaff).Patch("/{ticketId}", s.handlePatchTicket)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListPayments)
		r.Post("/", s.handleCreatePayment)
		r.With(s.requireStaff).Post("/{paymentId}/settle", s.handleSettlePayment)
	})

	return r
}

// Auth

type claimsKey struct{}

// requestToken pulls the bearer token from the Authorization header or the
// auth cookie.
func (s *Server) requestToken(r *http.Request) string {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		if cookie, err := r.Cookie(authCookieName); err == nil {
			token = cookie.Value
		}
	}
	return token
}

// verifyToken resolves a presented token to validated claims. Any signature
// failure, expiry, or missing session row yields nil: the caller treats the
// request as unauthenticated, never as an error.
func (s *Server) verifyToken(r *http.Request, token string) *auth.Claims {
	claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
	if err != nil || claims.SID == "" {
		return nil
	}
	if !s.sessionAlive(r.Context(), claims.SID, claims.UserID) {
		return nil
	}
	return claims
}

func (s *Server) verifyRequest(r *http.Request) *auth.Claims {
	token := s.requestToken(r)
	if token == "" {
		return nil
	}
	return s.verifyToken(r, token)
}

// sessionAlive checks the server-side session row behind a token. Expired
// rows are evicted on this read path; there is no requirement of a
// background sweep.
func (s *Server) sessionAlive(ctx context.Context, sessionToken, userID string) bool {
	tokenHash := crypto.HashToken(sessionToken)

	if s.redis != nil {
		cached, err := s.redis.Get(ctx, "session:"+tokenHash).Result()
		if err == nil && cached == userID {
			return true
		}
	}

	session, err := s.store.GetSession(ctx, tokenHash)
	if err != nil {
		return false
	}
	if session.UserID != userID {
		return false
	}
	if !session.ExpiresAt.After(time.Now().UTC()) {
		if err := s.store.DeleteSession(ctx, tokenHash); err != nil {
			log.Printf("expired session eviction error: %v", err)
		}
		return false
	}

	if s.redis != nil {
		ttl := s.cfg.SessionCacheTTL
		if until := time.Until(session.ExpiresAt); until < ttl {
			ttl = until
		}
		if err := s.redis.Set(ctx, "session:"+tokenHash, userID, ttl).Err(); err != nil {
			log.Printf("session cache set error: %v", err)
		}
	}
	return true
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.requestToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims := s.verifyToken(r, token)
		if claims == nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		if claims.Role != "staff" {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

var protectedPrefixes = []string{"/dashboard", "/profile", "/settings"}

// protectedPrefixRedirect guards the browser-facing page prefixes before any
// route-level check runs. API routes do their own verification; this is the
// outer layer for page loads.
func (s *Server) protectedPrefixRedirect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, prefix := range protectedPrefixes {
			if r.URL.Path == prefix || strings.HasPrefix(r.URL.Path, prefix+"/") {
				if s.verifyRequest(r) == nil {
					http.Redirect(w, r, "/login", http.StatusFound)
					return
				}
				break
			}
		}
		next.ServeHTTP(w, r)
	})
}

// evictSessionCache drops cached verdicts for revoked sessions so revocation
// takes effect immediately instead of after the cache TTL runs out.
func (s *Server) evictSessionCache(ctx context.Context, tokenHashes []string) {
	if s.redis == nil || len(tokenHashes) == 0 {
		return
	}
	keys := make([]string, 0, len(tokenHashes))
	for _, hash := range tokenHashes {
		keys = append(keys, "session:"+hash)
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		log.Printf("session cache eviction error: %v", err)
	}
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

// Helpers

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeStoreError logs the storage failure and hides it behind a generic
// code, except for the row-not-found case which is the caller's 404.
func writeStoreError(w http.ResponseWriter, err error, context string) {
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	log.Printf("%s: %v", context, err)
	writeError(w, http.StatusInternalServerError, "server_error")
}

func atoiOrZero(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return ""
}
