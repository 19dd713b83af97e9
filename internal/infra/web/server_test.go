//go:build !integration

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"qarzdaftari/internal/domain"
	"qarzdaftari/internal/domain/model"
	"qarzdaftari/internal/domain/ports/adapter"
	"qarzdaftari/internal/infra/logging"
	"qarzdaftari/internal/usecase"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(nil)
	return &l
}

// mockCheckout scripts Initiate/History responses.
type mockCheckout struct {
	intent     *usecase.PaymentIntent
	initErr    error
	lastUserID string
}

var _ usecase.CheckoutUseCase = (*mockCheckout)(nil)

func (m *mockCheckout) Initiate(ctx context.Context, userID, plan, provider, cycle string) (*usecase.PaymentIntent, error) {
	m.lastUserID = userID
	if m.initErr != nil {
		return nil, m.initErr
	}
	return m.intent, nil
}

func (m *mockCheckout) History(ctx context.Context, userID string) ([]*model.PaymentTransaction, []*model.Subscription, error) {
	m.lastUserID = userID
	return []*model.PaymentTransaction{{ID: "p1", UserID: userID}}, []*model.Subscription{{ID: "s1", UserID: userID}}, nil
}

// echoProvider answers its webhook with a fixed body.
type echoProvider struct{ name model.ProviderName }

var _ adapter.PaymentProvider = (*echoProvider)(nil)

func (e *echoProvider) Name() model.ProviderName { return e.name }
func (e *echoProvider) PaymentURL(txid model.TransactionID, amount int64) string {
	return "https://pay.example/" + string(e.name)
}
func (e *echoProvider) Webhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(string(e.name) + "-webhook"))
	}
}

// contextLoggingProvider logs one line per delivery through the
// request-scoped context.
type contextLoggingProvider struct {
	name model.ProviderName
	log  *zerolog.Logger
}

var _ adapter.PaymentProvider = (*contextLoggingProvider)(nil)

func (p *contextLoggingProvider) Name() model.ProviderName { return p.name }
func (p *contextLoggingProvider) PaymentURL(txid model.TransactionID, amount int64) string {
	return ""
}
func (p *contextLoggingProvider) Webhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logging.With(r.Context(), p.log).Info().Msg("delivery")
		w.WriteHeader(http.StatusOK)
	}
}

func newServerFixture(co usecase.CheckoutUseCase) (*Server, *AuthManager) {
	auth := NewAuthManager("test-secret", time.Hour)
	providers := []adapter.PaymentProvider{
		&echoProvider{name: model.ProviderClick},
		&echoProvider{name: model.ProviderPayme},
		&echoProvider{name: model.ProviderUzum},
	}
	return NewServer(co, providers, auth, testLogger()), auth
}

func TestRouterWebhooks(t *testing.T) {
	t.Run("webhooks are reachable without a session", func(t *testing.T) {
		s, _ := newServerFixture(&mockCheckout{})
		router := s.Router()
		for _, name := range []string{"click", "payme", "uzum"} {
			req := httptest.NewRequest("POST", "/payments/"+name, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				t.Errorf("%s: expected 200, but got %d", name, w.Code)
			}
			if got := w.Body.String(); got != name+"-webhook" {
				t.Errorf("%s: routed to the wrong handler: %s", name, got)
			}
		}
	})

	t.Run("webhook requests carry provider and request id in the log context", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)
		p := &contextLoggingProvider{name: model.ProviderClick, log: &logger}
		auth := NewAuthManager("test-secret", time.Hour)
		s := NewServer(&mockCheckout{}, []adapter.PaymentProvider{p}, auth, &logger)

		w := httptest.NewRecorder()
		s.Router().ServeHTTP(w, httptest.NewRequest("POST", "/payments/click", nil))

		out := buf.String()
		if !strings.Contains(out, `"provider":"click"`) {
			t.Errorf("expected provider in the log context, got %s", out)
		}
		if !strings.Contains(out, `"request_id":"`) {
			t.Errorf("expected request_id in the log context, got %s", out)
		}
	})

	t.Run("health endpoint answers OK", func(t *testing.T) {
		s, _ := newServerFixture(&mockCheckout{})
		w := httptest.NewRecorder()
		s.Router().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
		if w.Code != http.StatusOK || w.Body.String() != "OK" {
			t.Errorf("unexpected health response: %d %s", w.Code, w.Body.String())
		}
	})
}

func TestInitiateEndpoint(t *testing.T) {
	body := `{"planType":"PRO","provider":"click","billingCycle":"monthly"}`

	t.Run("should require a session", func(t *testing.T) {
		s, _ := newServerFixture(&mockCheckout{})
		req := httptest.NewRequest("POST", "/api/v1/payments/initiate", strings.NewReader(body))
		w := httptest.NewRecorder()
		s.Router().ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, but got %d", w.Code)
		}
	})

	t.Run("should pass the authenticated user to checkout", func(t *testing.T) {
		co := &mockCheckout{intent: &usecase.PaymentIntent{PaymentURL: "https://pay.example/click", Amount: 49000}}
		s, auth := newServerFixture(co)
		tok, err := auth.Mint("u1")
		if err != nil {
			t.Fatalf("mint: %v", err)
		}

		req := httptest.NewRequest("POST", "/api/v1/payments/initiate", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		s.Router().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, but got %d: %s", w.Code, w.Body.String())
		}
		if co.lastUserID != "u1" {
			t.Errorf("expected checkout to see user u1, but got %q", co.lastUserID)
		}
		var intent usecase.PaymentIntent
		if err := json.Unmarshal(w.Body.Bytes(), &intent); err != nil {
			t.Fatalf("bad response body: %v", err)
		}
		if intent.PaymentURL != "https://pay.example/click" || intent.Amount != 49000 {
			t.Errorf("unexpected intent: %+v", intent)
		}
	})

	t.Run("session cookie is accepted as well", func(t *testing.T) {
		co := &mockCheckout{intent: &usecase.PaymentIntent{}}
		s, auth := newServerFixture(co)
		tok, _ := auth.Mint("u2")

		req := httptest.NewRequest("POST", "/api/v1/payments/initiate", strings.NewReader(body))
		req.AddCookie(&http.Cookie{Name: "qd_session", Value: tok})
		w := httptest.NewRecorder()
		s.Router().ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("expected 200, but got %d", w.Code)
		}
		if co.lastUserID != "u2" {
			t.Errorf("expected user u2, but got %q", co.lastUserID)
		}
	})

	t.Run("failure logs carry the request and user ids", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)
		auth := NewAuthManager("test-secret", time.Hour)
		s := NewServer(&mockCheckout{initErr: domain.ErrOperationFailed}, nil, auth, &logger)
		tok, _ := auth.Mint("u1")

		req := httptest.NewRequest("POST", "/api/v1/payments/initiate", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		s.Router().ServeHTTP(w, req)

		out := buf.String()
		if !strings.Contains(out, `"user_id":"u1"`) {
			t.Errorf("expected user_id in the failure log, got %s", out)
		}
		if !strings.Contains(out, `"request_id":"`) {
			t.Errorf("expected request_id in the failure log, got %s", out)
		}
	})

	t.Run("domain rejections map to statuses without leaking detail", func(t *testing.T) {
		testCases := []struct {
			name string
			err  error
			code int
		}{
			{"unknown plan", domain.ErrUnknownPlan, http.StatusBadRequest},
			{"unknown cycle", domain.ErrUnknownBillingCycle, http.StatusBadRequest},
			{"unknown provider", domain.ErrInvalidArgument, http.StatusBadRequest},
			{"downgrade", domain.ErrDowngradeNotAllowed, http.StatusConflict},
			{"unknown user", domain.ErrUserNotFound, http.StatusUnauthorized},
			{"backend failure", domain.ErrOperationFailed, http.StatusInternalServerError},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				s, auth := newServerFixture(&mockCheckout{initErr: tc.err})
				tok, _ := auth.Mint("u1")
				req := httptest.NewRequest("POST", "/api/v1/payments/initiate", strings.NewReader(body))
				req.Header.Set("Authorization", "Bearer "+tok)
				w := httptest.NewRecorder()
				s.Router().ServeHTTP(w, req)
				if w.Code != tc.code {
					t.Errorf("expected %d, but got %d", tc.code, w.Code)
				}
				var er errorResponse
				if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
					t.Fatalf("bad error body: %v", err)
				}
				if er.Error != "payment error" {
					t.Errorf("expected the generic message, but got %q", er.Error)
				}
			})
		}
	})
}

func TestHistoryEndpoint(t *testing.T) {
	co := &mockCheckout{}
	s, auth := newServerFixture(co)
	tok, _ := auth.Mint("u1")

	req := httptest.NewRequest("GET", "/api/v1/payments/history", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, but got %d", w.Code)
	}
	var resp struct {
		Payments      []map[string]interface{} `json:"payments"`
		Subscriptions []map[string]interface{} `json:"subscriptions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(resp.Payments) != 1 || len(resp.Subscriptions) != 1 {
		t.Errorf("unexpected history payload: %s", w.Body.String())
	}
}

func TestAuthManager(t *testing.T) {
	t.Run("minted tokens parse back to the subject", func(t *testing.T) {
		auth := NewAuthManager("test-secret", time.Hour)
		tok, err := auth.Mint("u42")
		if err != nil {
			t.Fatalf("mint: %v", err)
		}
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		claims, err := auth.ParseFromRequest(req)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if claims.Subject != "u42" {
			t.Errorf("expected subject u42, but got %s", claims.Subject)
		}
	})

	t.Run("tokens signed with another secret are rejected", func(t *testing.T) {
		other := NewAuthManager("other-secret", time.Hour)
		tok, _ := other.Mint("u1")
		auth := NewAuthManager("test-secret", time.Hour)
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		if _, err := auth.ParseFromRequest(req); err == nil {
			t.Error("expected an error for a foreign token")
		}
	})

	t.Run("expired tokens are rejected", func(t *testing.T) {
		auth := NewAuthManager("test-secret", -time.Minute)
		tok, _ := auth.Mint("u1")
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		if _, err := auth.ParseFromRequest(req); err == nil {
			t.Error("expected an error for an expired token")
		}
	})
}
