package server

import (
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"net/http"
	"net/http/httptest"
	"testing"

	"moneymarket/services/lendingd/config"
)

func withClientCert(req *http.Request, commonName string) *http.Request {
	cert := &x509.Certificate{Subject: pkix.Name{CommonName: commonName}}
	req.TLS = &tls.ConnectionState{VerifiedChains: [][]*x509.Certificate{{cert}}}
	return req
}

func TestAuthenticatorRejectsWhenUnconfigured(t *testing.T) {
	t.Parallel()

	auth := newAuthenticator(config.AuthConfig{APITokens: []string{"  "}})
	req := httptest.NewRequest(http.MethodPost, "/markets/x/mint", nil)
	req.Header.Set("Authorization", "Bearer anything")
	if status, _ := auth.authenticate(req); status != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", status)
	}
}

func TestAuthenticatorAcceptsAllowedCommonName(t *testing.T) {
	t.Parallel()

	auth := newAuthenticator(config.AuthConfig{MTLS: config.MTLSAuthConfig{AllowedCommonNames: []string{"ops-client"}}})

	req := withClientCert(httptest.NewRequest(http.MethodPost, "/markets/x/mint", nil), "ops-client")
	if status, _ := auth.authenticate(req); status != http.StatusOK {
		t.Fatalf("expected allowed common name to pass, got %d", status)
	}

	req = withClientCert(httptest.NewRequest(http.MethodPost, "/markets/x/mint", nil), "intruder")
	if status, _ := auth.authenticate(req); status != http.StatusUnauthorized {
		t.Fatalf("expected unknown common name to fail, got %d", status)
	}

	req = httptest.NewRequest(http.MethodPost, "/markets/x/mint", nil)
	if status, _ := auth.authenticate(req); status != http.StatusUnauthorized {
		t.Fatalf("expected plaintext request to fail, got %d", status)
	}
}

func TestParseBearerToken(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Bearer abc":    "abc",
		"bearer   abc ": "abc",
		"Basic abc":     "",
		"abc":           "",
		"":              "",
	}
	for header, want := range cases {
		if got := parseBearerToken(header); got != want {
			t.Fatalf("parseBearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}
