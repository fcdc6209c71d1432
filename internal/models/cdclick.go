package models

import (
	"bytes"
	"encoding/json"
)

// WarehouseOrder es el body de POST /orders en la API de CDClick.
type WarehouseOrder struct {
	CustomID              string     `json:"custom_id"`
	CheckMultipleCustomID bool       `json:"check_multiple_custom_id"`
	Idle                  bool       `json:"idle"`
	Shipping              Shipping   `json:"shipping"`
	Cart                  []CartItem `json:"cart"`
}

type Shipping struct {
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	CompanyName       string `json:"company_name"`
	AddressStreet     string `json:"address_street"`
	ZipCode           string `json:"zip_code"`
	City              string `json:"city"`
	StateProvinceCode string `json:"state_province_code"`
	CountryCode       string `json:"country_code"`
	PhoneNumber       string `json:"phone_number"`
	Email             string `json:"email"`
}

type CartItem struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

// WarehouseResponse cubre las formas de respuesta conocidas:
// {"success": true, ...} y {"error": ...} / {"message": ...}.
// Los campos se dejan crudos porque CDClick no es consistente con los tipos.
type WarehouseResponse struct {
	Success json.RawMessage `json:"success"`
	Error   json.RawMessage `json:"error"`
	Message json.RawMessage `json:"message"`
}

// Succeeded reports whether the body carries an explicit "success": true.
func (r WarehouseResponse) Succeeded() bool {
	return bytes.Equal(bytes.TrimSpace(r.Success), []byte("true"))
}

// Reason returns the warehouse error text, if any.
func (r WarehouseResponse) Reason() string {
	for _, raw := range []json.RawMessage{r.Error, r.Message} {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s != "" {
				return s
			}
			continue
		}
		return string(raw)
	}
	return ""
}
