package server

import (
	"net/http"
	"strings"

	"moneymarket/services/lendingd/config"
)

// authenticator accepts either a configured API token or an mTLS client
// certificate with an allowed common name.
type authenticator struct {
	tokens       map[string]struct{}
	commonNames  map[string]struct{}
	allowByToken bool
	allowByMTLS  bool
}

func newAuthenticator(cfg config.AuthConfig) *authenticator {
	tokens := make(map[string]struct{})
	for _, token := range cfg.APITokens {
		trimmed := strings.TrimSpace(token)
		if trimmed == "" {
			continue
		}
		tokens[trimmed] = struct{}{}
	}
	commonNames := make(map[string]struct{})
	for _, name := range cfg.MTLS.AllowedCommonNames {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		commonNames[trimmed] = struct{}{}
	}
	return &authenticator{
		tokens:       tokens,
		commonNames:  commonNames,
		allowByToken: len(tokens) > 0,
		allowByMTLS:  len(commonNames) > 0,
	}
}

// middleware rejects unauthenticated requests before they reach a mutating
// handler.
func (a *authenticator) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, msg := a.authenticate(r)
		if status != http.StatusOK {
			writeJSONError(w, status, msg)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *authenticator) authenticate(r *http.Request) (int, string) {
	if a == nil {
		return http.StatusInternalServerError, "authenticator unavailable"
	}
	if !a.allowByToken && !a.allowByMTLS {
		return http.StatusForbidden, "authentication is not configured"
	}
	if a.allowByToken && a.authenticateByToken(r) {
		return http.StatusOK, ""
	}
	if a.allowByMTLS && a.authenticateByMTLS(r) {
		return http.StatusOK, ""
	}
	return http.StatusUnauthorized, "authentication required"
}

func (a *authenticator) authenticateByToken(r *http.Request) bool {
	if len(a.tokens) == 0 {
		return false
	}
	for _, header := range r.Header.Values("Authorization") {
		if token := parseBearerToken(header); token != "" {
			if _, exists := a.tokens[token]; exists {
				return true
			}
		}
	}
	for _, token := range r.Header.Values("X-Api-Token") {
		trimmed := strings.TrimSpace(token)
		if trimmed == "" {
			continue
		}
		if _, exists := a.tokens[trimmed]; exists {
			return true
		}
	}
	return false
}

func (a *authenticator) authenticateByMTLS(r *http.Request) bool {
	if len(a.commonNames) == 0 || r.TLS == nil {
		return false
	}
	for _, chain := range r.TLS.VerifiedChains {
		if len(chain) == 0 {
			continue
		}
		if a.commonNameAllowed(chain[0].Subject.CommonName) {
			return true
		}
	}
	return false
}

func (a *authenticator) commonNameAllowed(name string) bool {
	_, ok := a.commonNames[strings.TrimSpace(name)]
	return ok
}

func parseBearerToken(header string) string {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return ""
	}
	parts := strings.SplitN(trimmed, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(strings.TrimSpace(parts[0]), "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
