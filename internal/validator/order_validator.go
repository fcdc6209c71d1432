package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrEmptySKU        = errors.New("sku is empty")
	ErrNonNumericSKU   = errors.New("sku is not numeric")
	ErrInvalidItemID   = errors.New("item id must be a positive integer")
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
)

// OrderValidator validates the values that end up in a warehouse cart.
type OrderValidator struct {
	numericSKURegex *regexp.Regexp
}

// NewOrderValidator creates a new OrderValidator instance
func NewOrderValidator() *OrderValidator {
	return &OrderValidator{
		// Accepts plain decimal digits only: "1042", "007". Rejects "12.5", "-3", "SKU-1".
		numericSKURegex: regexp.MustCompile(`^[0-9]+$`),
	}
}

// ParseNumericSKU interprets a SKU that is itself the warehouse item id.
func (v *OrderValidator) ParseNumericSKU(sku string) (int64, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return 0, ErrEmptySKU
	}
	if !v.numericSKURegex.MatchString(sku) {
		return 0, ErrNonNumericSKU
	}
	id, err := strconv.ParseInt(sku, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNonNumericSKU, err)
	}
	if err := v.ValidateItemID(id); err != nil {
		return 0, err
	}
	return id, nil
}

// ValidateItemID rejects ids the warehouse can never accept.
func (v *OrderValidator) ValidateItemID(id int64) error {
	if id <= 0 {
		return ErrInvalidItemID
	}
	return nil
}

// ParseQuantity interpreta la cantidad tal como llegó en el JSON.
// Solo enteros positivos: "2" y 2 valen, 1.5, "2.0", "" o true no.
func (v *OrderValidator) ParseQuantity(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if !v.numericSKURegex.MatchString(strings.TrimPrefix(raw, "-")) {
		return 0, ErrInvalidQuantity
	}
	quantity, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidQuantity, err)
	}
	if err := v.ValidateQuantity(quantity); err != nil {
		return 0, err
	}
	return quantity, nil
}

// ValidateQuantity validates a line item quantity
func (v *OrderValidator) ValidateQuantity(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}
