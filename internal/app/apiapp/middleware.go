package apiapp

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	httperrors "github.com/infopay/backend/internal/transport/http/errors"
)

const (
	signatureHeader = "X-Callback-Signature"

	maxSignedBody = 1 << 20
)

func ApplyMiddlewares(r chiRouter, log *zap.Logger) {
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(requestLogger(log))
}

// CallbackSignatureMiddleware authenticates gateway callbacks with an
// HMAC-SHA256 hex digest of the raw body in X-Callback-Signature. An empty
// secret disables verification, matching gateway environments where signing
// has not been provisioned yet; the caller is expected to log that at
// startup. The body is restored for the downstream handler.
func CallbackSignatureMiddleware(secret string, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			raw, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBody))
			if err != nil {
				httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{
					Code:    "INVALID_BODY",
					Message: "failed to read request body",
				})
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(raw))

			if !validSignature(secret, raw, r.Header.Get(signatureHeader)) {
				if log != nil {
					log.Warn("callback signature mismatch", zap.String("path", r.URL.Path))
				}
				httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{
					Code:    "INVALID_SIGNATURE",
					Message: "callback signature is missing or invalid",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func validSignature(secret string, body []byte, header string) bool {
	if header == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(header))
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			if log != nil {
				log.Info("http_request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Duration("duration", time.Since(start)),
				)
			}
		})
	}
}

type chiRouter interface {
	Use(middlewares ...func(http.Handler) http.Handler)
}
