package daraja

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yourorg/rentledger/internal/domain"
	"github.com/yourorg/rentledger/internal/observability/metrics"
	"github.com/yourorg/rentledger/internal/reliability/circuitbreaker"
	"github.com/yourorg/rentledger/internal/reliability/retry"
)

const (
	oauthPath = "/oauth/v1/generate?grant_type=client_credentials"
	stkPath   = "/mpesa/stkpush/v1/processrequest"

	// Tokens are refreshed this long before Daraja expires them.
	tokenSafetyMargin = 60 * time.Second

	maxAccountReference = 12
	maxDescription      = 60
)

// Daraja timestamps and passwords are computed in East Africa Time.
var nairobi = time.FixedZone("EAT", 3*60*60)

// Config holds the Daraja credentials and endpoints.
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	PassKey        string
	CallbackURL    string
	OAuthTimeout   time.Duration
	STKTimeout     time.Duration
}

// Validate reports the first missing setting.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return errors.New("DARAJA_BASE_URL not set")
	case c.ConsumerKey == "" || c.ConsumerSecret == "":
		return errors.New("daraja consumer key/secret not set")
	case c.ShortCode == "" || c.PassKey == "":
		return errors.New("daraja shortcode/passkey not set")
	case c.CallbackURL == "":
		return errors.New("DARAJA_CALLBACK_URL not set")
	}
	if _, err := strconv.ParseInt(c.ShortCode, 10, 64); err != nil {
		return fmt.Errorf("daraja shortcode %q is not numeric", c.ShortCode)
	}
	return nil
}

// StatusError is a non-200 response from Daraja.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("daraja %s returned %d: %s", e.Op, e.Status, e.Body)
}

// Client talks to the Safaricom Daraja API. It implements
// domain.PaymentGateway.
type Client struct {
	cfg     Config
	http    *http.Client
	tokens  TokenCache
	logger  *slog.Logger
	retry   *retry.Config
	breaker *circuitbreaker.CircuitBreaker
	now     func() time.Time
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetry replaces the OAuth retry policy.
func WithRetry(cfg *retry.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithClock overrides the clock used for STK timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a Daraja client. A nil cache keeps tokens in process.
func NewClient(cfg Config, tokens TokenCache, logger *slog.Logger, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.OAuthTimeout <= 0 {
		cfg.OAuthTimeout = 20 * time.Second
	}
	if cfg.STKTimeout <= 0 {
		cfg.STKTimeout = 30 * time.Second
	}
	if tokens == nil {
		tokens = NewMemoryTokenCache()
	}
	if logger == nil {
		logger = slog.Default()
	}

	breaker := circuitbreaker.NewCircuitBreaker(5, 2, 30*time.Second)
	breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		metrics.SetGatewayCircuitState(int(to))
		logger.Warn("daraja circuit breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		tokens:  tokens,
		logger:  logger,
		retry:   retry.DefaultConfig(),
		breaker: breaker,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) tokenKey() string {
	return "daraja:token:" + c.cfg.ConsumerKey
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// AccessToken returns a cached OAuth token or fetches a new one. The fetch is
// retried; a rejected credential is not.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if token, ok, err := c.tokens.Lookup(ctx, c.tokenKey()); err != nil {
		c.logger.Warn("token cache lookup failed", slog.String("error", err.Error()))
	} else if ok {
		metrics.ObserveTokenFetch("cache")
		return token, nil
	}

	tr, err := retry.Do(ctx, c.retry, c.logger, "daraja.oauth", c.fetchToken)
	if err != nil {
		return "", err
	}
	metrics.ObserveTokenFetch("oauth")

	ttl := time.Hour
	if secs, err := strconv.Atoi(tr.ExpiresIn); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	if ttl > tokenSafetyMargin {
		ttl -= tokenSafetyMargin
	}
	if err := c.tokens.Store(ctx, c.tokenKey(), tr.AccessToken, ttl); err != nil {
		c.logger.Warn("token cache store failed", slog.String("error", err.Error()))
	}
	return tr.AccessToken, nil
}

func (c *Client) fetchToken(ctx context.Context) (tokenResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OAuthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+oauthPath, nil)
	if err != nil {
		return tokenResponse{}, retry.Permanent(err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return tokenResponse{}, fmt.Errorf("daraja oauth request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		serr := &StatusError{Op: "oauth", Status: resp.StatusCode, Body: string(body)}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return tokenResponse{}, retry.Permanent(serr)
		}
		return tokenResponse{}, serr
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return tokenResponse{}, fmt.Errorf("daraja oauth decode: %w", err)
	}
	if tr.AccessToken == "" {
		return tokenResponse{}, retry.Permanent(errors.New("daraja oauth: missing access_token"))
	}
	return tr, nil
}

type stkRequest struct {
	BusinessShortCode int64  `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            int64  `json:"PartyA"`
	PartyB            int64  `json:"PartyB"`
	PhoneNumber       int64  `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// InitiateCharge sends an STK push. It is not retried: a second push would
// prompt the customer twice.
func (c *Client) InitiateCharge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResponse, error) {
	ctx, span := otel.Tracer("rentledger/daraja").Start(ctx, "daraja.stk_push")
	defer span.End()
	span.SetAttributes(attribute.String("daraja.account_reference", req.AccountReference))

	var out *domain.ChargeResponse
	err := c.breaker.Execute(func() error {
		var err error
		out, err = c.stkPush(ctx, req)
		return err
	}, isServerFailure)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return nil, fmt.Errorf("daraja temporarily unavailable: %w", err)
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("daraja.checkout_request_id", out.CheckoutRequestID))
	return out, nil
}

func (c *Client) stkPush(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResponse, error) {
	msisdn, err := strconv.ParseInt(req.MSISDN, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("msisdn %q is not numeric", req.MSISDN)
	}
	shortCode, _ := strconv.ParseInt(c.cfg.ShortCode, 10, 64)

	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.now().In(nairobi).Format("20060102150405")
	payload := stkRequest{
		BusinessShortCode: shortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.PassKey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            req.Amount.IntPart(),
		PartyA:            msisdn,
		PartyB:            shortCode,
		PhoneNumber:       msisdn,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  truncate(req.AccountReference, maxAccountReference),
		TransactionDesc:   truncate(req.Description, maxDescription),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.STKTimeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+stkPath, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("daraja stk push request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode == http.StatusUnauthorized {
		if err := c.tokens.Forget(ctx, c.tokenKey()); err != nil {
			c.logger.Warn("token cache forget failed", slog.String("error", err.Error()))
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Op: "stk push", Status: resp.StatusCode, Body: string(body)}
	}

	var out domain.ChargeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("daraja stk push decode: %w", err)
	}
	c.logger.Info("daraja stk push sent",
		slog.String("checkout_request_id", out.CheckoutRequestID),
		slog.String("response_code", out.ResponseCode),
	)
	return &out, nil
}

// Password is base64(shortcode + passkey + timestamp).
func Password(shortCode, passKey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
}

// isServerFailure decides which errors trip the breaker. Daraja rejecting a
// request (4xx) says nothing about its availability.
func isServerFailure(err error) bool {
	var serr *StatusError
	if errors.As(err, &serr) {
		return serr.Status >= 500
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Unconfigured stands in for the client when no Daraja credentials are set.
// Every charge fails with a gateway error.
type Unconfigured struct{}

func (Unconfigured) InitiateCharge(context.Context, domain.ChargeRequest) (*domain.ChargeResponse, error) {
	return nil, domain.GatewayError("mobile-money payments are not configured", nil)
}
