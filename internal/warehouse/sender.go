package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/models"
)

const (
	DefaultTimeout = 20 * time.Second

	maxResponseBody = 1 << 20
)

// errTransientStatus hace que el breaker cuente 5xx / status 0 como fallo.
var errTransientStatus = errors.New("warehouse transient status")

type ClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// HTTPClient reemplaza el cliente por defecto (tests).
	HTTPClient *http.Client

	// BreakerFailures consecutive transient failures open the breaker; 0 disables it.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Client envía órdenes a CDClick. Nunca devuelve error por status != 2xx:
// el resultado siempre pasa por Classify.
type Client struct {
	http     *http.Client
	endpoint string
	token    string
	breaker  *gobreaker.CircuitBreaker
}

type response struct {
	status int
	body   []byte
}

func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("warehouse base URL is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid warehouse base URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid warehouse base URL %q: must be an absolute http(s) URL", base)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	c := &Client{
		http:     httpClient,
		endpoint: base + "/orders",
		token:    cfg.Token,
	}

	if cfg.BreakerFailures > 0 {
		c.breaker = newBreaker(cfg.BreakerFailures, cfg.BreakerCooldown)
	}

	return c, nil
}

func newBreaker(failures uint32, cooldown time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cdclick-orders",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.L().Warn("warehouse circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// Deliver hace un único POST de la orden y clasifica la respuesta.
func (c *Client) Deliver(ctx context.Context, order models.WarehouseOrder) Result {
	payload, err := json.Marshal(order)
	if err != nil {
		// WarehouseOrder solo tiene strings/ints/bools: no debería pasar.
		return Result{Outcome: OutcomeRejected, Reason: fmt.Sprintf("error marshaling order: %v", err)}
	}

	resp, err := c.send(ctx, payload)
	if err != nil {
		return Classify(0, err, nil)
	}
	return Classify(resp.status, nil, resp.body)
}

func (c *Client) send(ctx context.Context, payload []byte) (response, error) {
	if c.breaker == nil {
		return c.post(ctx, payload)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.post(ctx, payload)
		if err != nil {
			return nil, err
		}
		if resp.status <= 0 || resp.status >= http.StatusInternalServerError {
			return resp, errTransientStatus
		}
		return resp, nil
	})

	if errors.Is(err, errTransientStatus) {
		return out.(response), nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return response{}, fmt.Errorf("warehouse circuit open: %w", err)
	}
	if err != nil {
		return response{}, err
	}
	return out.(response), nil
}

func (c *Client) post(ctx context.Context, payload []byte) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return response{}, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("error sending order: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		// Sin body no se puede confirmar el éxito: se trata como transitorio
		// y el custom_id evita el duplicado en el reintento.
		return response{}, fmt.Errorf("error reading response (status %d): %w", resp.StatusCode, err)
	}

	return response{status: resp.StatusCode, body: body}, nil
}
