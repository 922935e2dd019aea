package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diagnosis/portfolio/pkg/auth"
	"github.com/diagnosis/portfolio/pkg/config"
	"github.com/diagnosis/portfolio/pkg/logger"
	"github.com/diagnosis/portfolio/pkg/media"
	mw "github.com/diagnosis/portfolio/pkg/middleware"
	"github.com/diagnosis/portfolio/pkg/response"
	"github.com/diagnosis/portfolio/services/api/internal/domain"
	"github.com/diagnosis/portfolio/services/api/internal/service"
	"github.com/go-chi/chi/v5"
)

// RateLimiter counts hits per key in a fixed window. Implementations fail
// open: a store error allows the request.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// idempotencyTTL is how long a contact submission can be replayed.
const idempotencyTTL = 24 * time.Hour

type Handlers struct {
	authService    service.AuthService
	contactService service.ContactService
	uploadService  service.UploadService
	limiter        RateLimiter
	idempotency    mw.IdempotencyStore
	config         *config.Config
}

func New(
	authService service.AuthService,
	contactService service.ContactService,
	uploadService service.UploadService,
	limiter RateLimiter,
	idempotency mw.IdempotencyStore,
	config *config.Config,
) *Handlers {
	return &Handlers{
		authService:    authService,
		contactService: contactService,
		uploadService:  uploadService,
		limiter:        limiter,
		idempotency:    idempotency,
		config:         config,
	}
}

// Routes registers the API on r. The caller mounts it at "/" and "/api".
func (h *Handlers) Routes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.With(h.RateLimit("login", h.config.RateLimit.LoginRequests, h.config.RateLimit.LoginWindow)).
			Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireJWT(""))
			r.Get("/me", h.Me)
			r.Put("/profile", h.UpdateProfile)
		})
	})

	r.Route("/contact", func(r chi.Router) {
		r.With(
			h.RateLimit("contact", h.config.RateLimit.ContactRequests, h.config.RateLimit.ContactWindow),
			mw.Idempotency(h.idempotency, idempotencyTTL),
		).Post("/", h.SubmitContact)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireJWT(domain.RoleAdmin))
			r.Get("/", h.ListContacts)
			r.Get("/{id}", h.GetContact)
			r.Put("/{id}/status", h.UpdateContactStatus)
			r.Post("/{id}/reply", h.ReplyToContact)
			r.Put("/{id}/spam", h.MarkContactSpam)
			r.Delete("/{id}", h.DeleteContact)
		})
	})

	r.Route("/upload", func(r chi.Router) {
		r.Use(h.RequireJWT(domain.RoleAdmin))
		r.Post("/image", h.UploadImage)
		r.Post("/multiple", h.UploadMultiple)
		r.Delete("/*", h.DeleteUpload)
	})
}

type contextKey struct{}

var claimsKey = contextKey{}

// RequireJWT authenticates the bearer token. An empty requiredRole admits any
// signed-in user.
func (h *Handlers) RequireJWT(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				response.Unauthorized(w, "No token, authorization denied", response.CodeUnauthorized)
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := auth.Parse(token, h.config.Auth.JWTSecret)
			if errors.Is(err, auth.ErrExpiredToken) {
				response.Unauthorized(w, "Token has expired", response.CodeExpiredToken)
				return
			}
			if err != nil {
				response.Unauthorized(w, "Token is not valid", response.CodeInvalidToken)
				return
			}

			if requiredRole != "" && claims.Role != requiredRole && claims.Role != domain.RoleAdmin {
				response.Forbidden(w, "Access denied. Admin privileges required.")
				return
			}

			ctx := context.WithValue(r.Context(), logger.UserIDKey, claims.Sub)
			ctx = context.WithValue(ctx, claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimit limits requests per client IP under the given bucket name.
func (h *Handlers) RateLimit(bucket string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if h.limiter == nil || limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := bucket + ":" + getClientIP(r)

			allowed, err := h.limiter.Allow(r.Context(), key, limit, window)
			if err != nil {
				logger.ErrorContext(r.Context(), "Rate limit check failed", "error", err)
			} else if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				response.RateLimit(w, "Too many requests. Please try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func getClaims(r *http.Request) *auth.Claims {
	if claims, ok := r.Context().Value(claimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}

func currentUserID(r *http.Request) string {
	if c := getClaims(r); c != nil {
		return c.Sub
	}
	return ""
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// parsePagination reads page (1-based) and limit into a limit and offset.
func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	page := 1

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}

	return limit, (page - 1) * limit
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return false
	}
	return true
}

// writeServiceError maps service errors onto HTTP responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs domain.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		response.Validation(w, "Validation failed", verrs)
	case errors.Is(err, domain.ErrEmailTaken):
		response.Conflict(w, "User already exists with this email", response.CodeEmailExists,
			map[string]string{"email": "Email is already registered"})
	case errors.Is(err, domain.ErrInvalidCredentials):
		response.Unauthorized(w, "Invalid credentials", response.CodeInvalidLogin)
	case errors.Is(err, domain.ErrWrongPassword):
		response.Validation(w, "Current password is incorrect",
			map[string]string{"currentPassword": "Current password is incorrect"})
	case errors.Is(err, domain.ErrForbidden):
		response.Forbidden(w, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, "Resource not found")
	case errors.Is(err, domain.ErrTooManyFiles):
		response.BadRequest(w, err.Error())
	case errors.Is(err, media.ErrTooLarge):
		response.Error(w, http.StatusRequestEntityTooLarge, err.Error(), response.CodeTooLarge)
	case errors.Is(err, media.ErrUnsupportedType):
		response.Error(w, http.StatusUnsupportedMediaType, err.Error(), response.CodeUnsupported)
	case errors.Is(err, domain.ErrMailFailed):
		response.Error(w, http.StatusBadGateway, "Failed to send email", response.CodeMailFailed)
	default:
		logger.ErrorContext(r.Context(), "Request failed", "error", err, "path", r.URL.Path)
		response.InternalError(w, "Server error")
	}
}
