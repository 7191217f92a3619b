package v1

import (
	"net/http"
	"time"

	"github.com/fitstudio/staff-console/internal/apperr"
	"github.com/fitstudio/staff-console/internal/auth"
	"github.com/fitstudio/staff-console/internal/requestctx"
	"github.com/fitstudio/staff-console/internal/service"
	"github.com/fitstudio/staff-console/internal/utils"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// requestMetadata copies request id, client ip and user agent into the
// context so audit entries can record them.
func requestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestctx.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ctx = requestctx.WithClientIP(ctx, r.RemoteAddr)
		ctx = requestctx.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// writeError logs errors that hide their cause from the client before
// rendering them.
func writeError(logger *zap.Logger, w http.ResponseWriter, r *http.Request, err error) {
	if e, ok := apperr.From(err); !ok || e.Code == apperr.CodeInternal {
		logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	utils.WriteError(w, err)
}

// actorFrom builds the service actor from the authenticated user.
func actorFrom(r *http.Request) (service.Actor, bool) {
	u := auth.GetUserFromCtx(r.Context())
	if u == nil {
		return service.Actor{}, false
	}
	return service.Actor{ID: u.ID, Role: u.Role}, true
}

func badBody(err error) error {
	return apperr.Validation("invalid request body", err.Error())
}
