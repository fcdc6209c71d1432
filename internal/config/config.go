// Package config carga la configuración del proceso una sola vez al arrancar.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/translate"
)

const (
	DefaultPort             = "8080"
	DefaultWarehouseBaseURL = "https://wall.cdclick-europe.com/api"
	DefaultWarehouseTimeout = 20 * time.Second
	DefaultBreakerFailures  = 5
	DefaultBreakerCooldown  = 30 * time.Second
	DefaultServiceName      = "shopify-cdclick-relay"
	DefaultEnvironment      = "local"
)

// Config es inmutable después de Load; se pasa por inyección al pipeline.
type Config struct {
	Port        string
	LogLevel    string
	ServiceName string

	ShopifyWebhookSecret string
	WarehouseToken       string
	WarehouseBaseURL     string
	WarehouseTimeout     time.Duration

	SKUPolicy translate.SKUPolicy
	SKUTable  map[string]int64
	// Idle encola las órdenes en CDClick en lugar de producirlas.
	Idle bool

	BreakerFailures uint32
	BreakerCooldown time.Duration

	Environment string
	// GCPProject arma el campo de trace de Cloud Logging; vacío fuera de GCP.
	GCPProject   string
	OTLPEndpoint string
	// TelemetryStdout manda spans y métricas a stderr si no hay OTLPEndpoint.
	TelemetryStdout bool

	// Warnings no bloquean el arranque pero se loguean.
	Warnings []string
}

// Load lee la configuración de las variables de entorno.
func Load() (Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom permite inyectar el lookup (tests).
func LoadFrom(lookup func(string) (string, bool)) (Config, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}
	getDefault := func(key, fallback string) string {
		if v := get(key); v != "" {
			return v
		}
		return fallback
	}

	cfg := Config{
		Port:                 getDefault("PORT", DefaultPort),
		LogLevel:             getDefault("LOG_LEVEL", "info"),
		ServiceName:          getDefault("SERVICE_NAME", DefaultServiceName),
		ShopifyWebhookSecret: get("SHOPIFY_WEBHOOK_SECRET"),
		WarehouseToken:       get("WAREHOUSE_TOKEN"),
		WarehouseBaseURL:     strings.TrimRight(getDefault("WAREHOUSE_BASE_URL", DefaultWarehouseBaseURL), "/"),
		Idle:                 isTruthy(get("IDLE")),
		Environment:          getDefault("ENVIRONMENT", DefaultEnvironment),
		GCPProject:           getDefault("GCP_PROJECT", get("GOOGLE_CLOUD_PROJECT")),
		OTLPEndpoint:         strings.TrimRight(get("OTEL_EXPORTER_OTLP_ENDPOINT"), "/"),
		TelemetryStdout:      isTruthy(get("OTEL_STDOUT")),
	}

	var errs []error

	if err := validateHTTPURL("WAREHOUSE_BASE_URL", cfg.WarehouseBaseURL); err != nil {
		errs = append(errs, err)
	}
	if cfg.OTLPEndpoint != "" {
		if err := validateHTTPURL("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint); err != nil {
			errs = append(errs, err)
		}
	}

	var err error
	if cfg.WarehouseTimeout, err = parseDuration(get("WAREHOUSE_TIMEOUT"), DefaultWarehouseTimeout); err != nil {
		errs = append(errs, fmt.Errorf("WAREHOUSE_TIMEOUT: %w", err))
	}
	if cfg.BreakerCooldown, err = parseDuration(get("BREAKER_COOLDOWN"), DefaultBreakerCooldown); err != nil {
		errs = append(errs, fmt.Errorf("BREAKER_COOLDOWN: %w", err))
	}

	cfg.BreakerFailures = DefaultBreakerFailures
	if raw := get("BREAKER_FAILURES"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("BREAKER_FAILURES must be a non-negative integer"))
		} else {
			cfg.BreakerFailures = uint32(n)
		}
	}

	table, err := loadSKUTable(get("SKU_MAP"), get("SKU_MAP_FILE"))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.SKUTable = table

	switch policy := translate.SKUPolicy(strings.ToLower(get("SKU_POLICY"))); policy {
	case "":
		cfg.SKUPolicy = translate.SKUPolicyNumeric
		if len(table) > 0 {
			cfg.SKUPolicy = translate.SKUPolicyTable
		}
	case translate.SKUPolicyNumeric, translate.SKUPolicyTable:
		cfg.SKUPolicy = policy
	default:
		errs = append(errs, fmt.Errorf("SKU_POLICY must be %q or %q, got %q",
			translate.SKUPolicyNumeric, translate.SKUPolicyTable, policy))
	}
	if cfg.SKUPolicy == translate.SKUPolicyTable && len(table) == 0 && err == nil {
		errs = append(errs, errors.New("SKU_POLICY=table requires SKU_MAP or SKU_MAP_FILE"))
	}

	if cfg.ShopifyWebhookSecret == "" {
		cfg.Warnings = append(cfg.Warnings, "SHOPIFY_WEBHOOK_SECRET is not set: every order webhook will be rejected with 401")
	}
	if cfg.WarehouseToken == "" {
		cfg.Warnings = append(cfg.Warnings, "WAREHOUSE_TOKEN is not set: warehouse calls and notification webhooks will fail authentication")
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

func loadSKUTable(inline, path string) (map[string]int64, error) {
	raw := inline
	source := "SKU_MAP"
	if raw == "" && path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("SKU_MAP_FILE: %w", err)
		}
		raw = string(data)
		source = "SKU_MAP_FILE"
	}
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var table map[string]int64
	if err := json.Unmarshal([]byte(raw), &table); err != nil {
		return nil, fmt.Errorf("%s must be a JSON object of SKU to item id: %w", source, err)
	}
	for sku, id := range table {
		if strings.TrimSpace(sku) == "" {
			return nil, fmt.Errorf("%s contains an empty SKU", source)
		}
		if id <= 0 {
			return nil, fmt.Errorf("%s: item id for SKU %q must be positive", source, sku)
		}
	}
	return table, nil
}

func validateHTTPURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", key, raw)
	}
	return nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", raw)
	}
	return d, nil
}

func isTruthy(value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	return value == "1" || value == "true" || value == "yes"
}
