package translate

import (
	"strings"
	"unicode/utf8"

	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/models"
)

// CustomID derives the warehouse idempotency key: the order name without
// its leading "#", or the raw order id when there is no usable name.
// Whitespace around the name is dropped before the "#" is stripped.
func CustomID(order models.InboundOrder) string {
	name := strings.TrimPrefix(order.Name.String(), "#")
	if name != "" {
		return name
	}
	return order.ID.String()
}

// Street joins the non-empty address lines with ", ".
func Street(lines ...string) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, ", ")
}

// TwoLetterCode keeps the first two characters of s, upper-cased.
// "california" -> "CA", "us" -> "US", "" -> "".
func TwoLetterCode(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > 2 {
		s = string([]rune(s)[:2])
	}
	return strings.ToUpper(s)
}

func shippingFor(order models.InboundOrder) models.Shipping {
	a := addressFor(order)

	var customer models.Customer
	if order.Customer != nil {
		customer = *order.Customer
	}

	return models.Shipping{
		FirstName:         firstNonEmpty(a.FirstName, customer.FirstName),
		LastName:          firstNonEmpty(a.LastName, customer.LastName),
		CompanyName:       string(a.Company),
		AddressStreet:     Street(string(a.Address1), string(a.Address2)),
		ZipCode:           string(a.Zip),
		City:              string(a.City),
		StateProvinceCode: TwoLetterCode(firstNonEmpty(a.ProvinceCode, a.Province)),
		CountryCode:       TwoLetterCode(firstNonEmpty(a.CountryCode, a.Country)),
		PhoneNumber:       firstNonEmpty(a.Phone, order.Phone),
		Email:             firstNonEmpty(order.Email, order.ContactEmail, customer.Email),
	}
}

// addressFor prefiere shipping, luego billing (algunas tiendas), luego vacío.
func addressFor(order models.InboundOrder) models.Address {
	switch {
	case order.ShippingAddress != nil:
		return *order.ShippingAddress
	case order.BillingAddress != nil:
		return *order.BillingAddress
	default:
		return models.Address{}
	}
}

// Devuelve el texto tal cual llegó, sin trim.
func firstNonEmpty(values ...models.FlexString) string {
	for _, v := range values {
		if v != "" {
			return string(v)
		}
	}
	return ""
}
