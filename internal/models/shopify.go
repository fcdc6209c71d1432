package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrOrderShape marca un JSON sintácticamente válido que no tiene la forma
// de una orden (p. ej. un objeto donde se espera texto).
var ErrOrderShape = errors.New("json does not match the order schema")

// InboundOrder es el payload del webhook orders/create de Shopify.
// Solo se decodifican los campos que necesita la traducción; cualquier
// campo ausente queda en su valor cero ("" / nil). Los campos de texto son
// FlexString: un escalar con el tipo equivocado no invalida el documento.
type InboundOrder struct {
	ID              FlexString `json:"id"`
	Name            FlexString `json:"name"`
	Email           FlexString `json:"email"`
	ContactEmail    FlexString `json:"contact_email"`
	Phone           FlexString `json:"phone"`
	ShippingAddress *Address   `json:"shipping_address"`
	BillingAddress  *Address   `json:"billing_address"`
	Customer        *Customer  `json:"customer"`
	LineItems       []LineItem `json:"line_items"`
}

type Address struct {
	FirstName    FlexString `json:"first_name"`
	LastName     FlexString `json:"last_name"`
	Company      FlexString `json:"company"`
	Address1     FlexString `json:"address1"`
	Address2     FlexString `json:"address2"`
	City         FlexString `json:"city"`
	Zip          FlexString `json:"zip"`
	Province     FlexString `json:"province"`
	ProvinceCode FlexString `json:"province_code"`
	Country      FlexString `json:"country"`
	CountryCode  FlexString `json:"country_code"`
	Phone        FlexString `json:"phone"`
}

type Customer struct {
	FirstName FlexString `json:"first_name"`
	LastName  FlexString `json:"last_name"`
	Email     FlexString `json:"email"`
}

// LineItem representa un item de la orden. El ID puede venir vacío.
// Quantity se guarda como texto: una cantidad mal tipada ("2", 1.5) es un
// error de mapeo de la línea, no un JSON inválido.
type LineItem struct {
	ID         FlexString `json:"id"`
	SKU        FlexString `json:"sku"`
	VariantSKU FlexString `json:"variant_sku"`
	Quantity   FlexString `json:"quantity"`
}

// FlexString acepta string, número, booleano o null en JSON y conserva el
// texto tal cual llegó (los IDs de Shopify superan la precisión de float64).
// Objetos y arrays devuelven ErrOrderShape.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}

	if bytes.Equal(data, []byte("true")) || bytes.Equal(data, []byte("false")) {
		*f = FlexString(data)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: expected string or number, got %s", ErrOrderShape, string(data))
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string {
	return strings.TrimSpace(string(f))
}

// DecodeInboundOrder decodifica el body crudo una sola vez en el borde.
// Un error de sintaxis se devuelve tal cual; un documento válido con otra
// forma se devuelve envuelto en ErrOrderShape.
func DecodeInboundOrder(raw []byte) (InboundOrder, error) {
	var order InboundOrder
	err := json.Unmarshal(raw, &order)
	if err == nil {
		return order, nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return InboundOrder{}, fmt.Errorf("%w: %v", ErrOrderShape, err)
	}
	return InboundOrder{}, err
}
