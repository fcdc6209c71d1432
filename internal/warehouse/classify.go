package warehouse

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/juancollazo-ch/shopify-cdclick-relay/internal/models"
)

// Outcome is the disposition of one delivery attempt.
type Outcome int

const (
	// OutcomeDelivered: 201 with an explicit success flag.
	OutcomeDelivered Outcome = iota
	// OutcomeRejected: the warehouse answered and retrying the same payload won't change it.
	OutcomeRejected
	// OutcomeUnavailable: transport failure, 5xx or no status. Shopify should retry.
	OutcomeUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeRejected:
		return "rejected"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result describes a delivery attempt.
type Result struct {
	Outcome    Outcome
	StatusCode int
	Body       []byte
	Reason     string
	// Err is set when the request never produced an HTTP response.
	Err error
}

// Classify maps (status, transport error, body) to an Outcome. It performs
// no I/O and is independent of the HTTP client.
func Classify(status int, transportErr error, body []byte) Result {
	res := Result{StatusCode: status, Body: body, Err: transportErr}

	if transportErr != nil {
		res.Outcome = OutcomeUnavailable
		res.Reason = fmt.Sprintf("network error: %v", transportErr)
		return res
	}

	if status <= 0 || status >= http.StatusInternalServerError {
		res.Outcome = OutcomeUnavailable
		res.Reason = statusReason(status, body)
		return res
	}

	if status == http.StatusCreated {
		var parsed models.WarehouseResponse
		if err := json.Unmarshal(body, &parsed); err == nil && parsed.Succeeded() {
			res.Outcome = OutcomeDelivered
			return res
		}
	}

	res.Outcome = OutcomeRejected
	res.Reason = statusReason(status, body)
	return res
}

func statusReason(status int, body []byte) string {
	var parsed models.WarehouseResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		if reason := parsed.Reason(); reason != "" {
			return fmt.Sprintf("status %d: %s", status, reason)
		}
	}
	return fmt.Sprintf("status %d", status)
}
