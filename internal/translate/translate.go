// Package translate maps Shopify orders into CDClick warehouse orders.
//
// Translation is a pure function of the inbound order and the options the
// Translator was built with: no I/O, no shared mutable state. Any line
// that cannot be mapped fails the whole order.
package translate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/models"
	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/validator"
)

// SKUPolicy selects how a Shopify SKU becomes a warehouse item id.
type SKUPolicy string

const (
	// SKUPolicyNumeric uses the SKU itself as the item id.
	SKUPolicyNumeric SKUPolicy = "numeric"
	// SKUPolicyTable looks the SKU up in a static table.
	SKUPolicyTable SKUPolicy = "table"
)

var (
	ErrNoLineItems     = errors.New("order has no line items")
	ErrInvalidSKU      = errors.New("invalid numeric SKU")
	ErrUnknownSKU      = errors.New("SKU not present in SKU table")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrUnknownPolicy   = errors.New("unknown SKU policy")
)

// MappingError reports why an order could not be translated.
type MappingError struct {
	OrderID    string
	SKU        string
	LineItemID string
	Reason     error
}

func (e *MappingError) Error() string {
	if e.LineItemID == "" && e.SKU == "" {
		return fmt.Sprintf("order %s: %v", e.OrderID, e.Reason)
	}
	return fmt.Sprintf("order %s: %v: %q (line item id %s)", e.OrderID, e.Reason, e.SKU, e.LineItemID)
}

func (e *MappingError) Unwrap() error {
	return e.Reason
}

type Options struct {
	Policy   SKUPolicy
	SKUTable map[string]int64
	// Idle encola la orden en CDClick en vez de producirla inmediatamente.
	Idle bool
}

type Translator struct {
	policy    SKUPolicy
	skuTable  map[string]int64
	idle      bool
	validator *validator.OrderValidator
}

// New builds a Translator. The SKU table is copied so later changes to
// the caller's map are not observed.
func New(opts Options) (*Translator, error) {
	policy := opts.Policy
	if policy == "" {
		policy = SKUPolicyNumeric
	}

	t := &Translator{
		policy:    policy,
		idle:      opts.Idle,
		validator: validator.NewOrderValidator(),
	}

	switch policy {
	case SKUPolicyNumeric:
	case SKUPolicyTable:
		if len(opts.SKUTable) == 0 {
			return nil, errors.New("translate: table policy requires a non-empty SKU table")
		}
		t.skuTable = make(map[string]int64, len(opts.SKUTable))
		for sku, id := range opts.SKUTable {
			if err := t.validator.ValidateItemID(id); err != nil {
				return nil, fmt.Errorf("translate: SKU %q: %w", sku, err)
			}
			t.skuTable[strings.TrimSpace(sku)] = id
		}
	default:
		return nil, fmt.Errorf("translate: %w: %q", ErrUnknownPolicy, policy)
	}

	return t, nil
}

func (t *Translator) Policy() SKUPolicy {
	return t.policy
}

// Translate converts order into a WarehouseOrder, or returns a *MappingError.
func (t *Translator) Translate(order models.InboundOrder) (models.WarehouseOrder, error) {
	orderID := CustomID(order)

	if len(order.LineItems) == 0 {
		return models.WarehouseOrder{}, &MappingError{OrderID: orderID, Reason: ErrNoLineItems}
	}

	cart := make([]models.CartItem, 0, len(order.LineItems))
	for _, li := range order.LineItems {
		item, err := t.cartItem(li)
		if err != nil {
			return models.WarehouseOrder{}, &MappingError{
				OrderID:    orderID,
				SKU:        lineSKU(li),
				LineItemID: li.ID.String(),
				Reason:     err,
			}
		}
		cart = append(cart, item)
	}

	return models.WarehouseOrder{
		CustomID:              orderID,
		CheckMultipleCustomID: true,
		Idle:                  t.idle,
		Shipping:              shippingFor(order),
		Cart:                  cart,
	}, nil
}

func (t *Translator) cartItem(li models.LineItem) (models.CartItem, error) {
	itemID, err := t.resolve(lineSKU(li))
	if err != nil {
		return models.CartItem{}, err
	}
	quantity, err := t.validator.ParseQuantity(li.Quantity.String())
	if err != nil {
		return models.CartItem{}, fmt.Errorf("%w: %q", ErrInvalidQuantity, li.Quantity.String())
	}
	return models.CartItem{ItemID: itemID, Quantity: quantity}, nil
}

func (t *Translator) resolve(sku string) (int64, error) {
	if t.policy == SKUPolicyTable {
		id, ok := t.skuTable[sku]
		if !ok {
			return 0, ErrUnknownSKU
		}
		return id, nil
	}

	id, err := t.validator.ParseNumericSKU(sku)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSKU, err)
	}
	return id, nil
}

func lineSKU(li models.LineItem) string {
	if sku := li.SKU.String(); sku != "" {
		return sku
	}
	return li.VariantSKU.String()
}
