package smsc

import (
	"strconv"
	"sync"
	"time"
)

// dateLayout is the gateway's date format, always in Moscow local time.
const dateLayout = "02.01.2006 15:04:05"

var (
	moscowOnce sync.Once
	moscowLoc  *time.Location
)

// moscow resolves the gateway's fixed timezone. Falls back to a fixed
// UTC+3 zone when the host has no tzdata; Moscow has had no DST and a
// +03:00 offset since 2014, which covers every date the gateway emits.
func moscow() *time.Location {
	moscowOnce.Do(func() {
		loc, err := time.LoadLocation("Europe/Moscow")
		if err != nil {
			loc = time.FixedZone("MSK", 3*60*60)
		}
		moscowLoc = loc
	})
	return moscowLoc
}

// SendResponse is the parsed reply of a send call.
type SendResponse struct {
	// MessageID is the gateway-assigned id of the accepted message, 0 when absent.
	MessageID int64
	// Count is the number of billed message parts.
	Count int
	// Cost is the price charged for the message.
	Cost float64
	// Err carries the gateway-reported business error, if any.
	Err *Error
}

// CostResponse is the parsed reply of a cost estimation call.
type CostResponse struct {
	Count int
	Cost  float64
	Err   *Error
}

// Status identifies a delivery state: numeric id plus the gateway's
// human-readable name in its source locale.
type Status struct {
	ID   int
	Name string
}

// StatusResponse is one element of the parsed reply of a status call.
type StatusResponse struct {
	Status Status
	// Data holds the remaining raw fields of the status object, excluding
	// status, status_name, send_timestamp and last_timestamp. The
	// send_date and last_date values, when present, are replaced with
	// time.Time instants in the gateway's Moscow timezone.
	Data map[string]any
	Err  *Error
}

// BalanceResponse is the parsed reply of a balance call.
type BalanceResponse struct {
	Balance  float64
	Credit   float64
	Currency string
	Err      *Error
}

// extractError reads the shared error fields of a gateway reply.
// A zero error_code together with an empty error text means "no error",
// not an error with an empty message.
func extractError(obj map[string]any) *Error {
	msg := stringField(obj, "error", "")
	code := intField(obj, "error_code", 0)
	if msg == "" && code == 0 {
		return nil
	}
	return &Error{Code: code, Message: msg}
}

func newSendResponse(obj map[string]any) *SendResponse {
	return &SendResponse{
		MessageID: int64Field(obj, "id", 0),
		Count:     intField(obj, "cnt", 0),
		Cost:      floatField(obj, "cost", 0),
		Err:       extractError(obj),
	}
}

func newCostResponse(obj map[string]any) *CostResponse {
	return &CostResponse{
		Count: intField(obj, "cnt", 0),
		Cost:  floatField(obj, "cost", 0),
		Err:   extractError(obj),
	}
}

func newBalanceResponse(obj map[string]any) *BalanceResponse {
	return &BalanceResponse{
		Balance:  floatField(obj, "balance", 0),
		Credit:   floatField(obj, "credit", 0),
		Currency: stringField(obj, "currency", ""),
		Err:      extractError(obj),
	}
}

// newStatusResponse projects a raw status object into a StatusResponse.
// The source map is copied, never modified, so a caller-held body cannot
// be mutated through the returned value.
func newStatusResponse(obj map[string]any) *StatusResponse {
	data := make(map[string]any, len(obj))
	for name, value := range obj {
		switch name {
		case "status", "status_name", "send_timestamp", "last_timestamp":
			continue
		case "send_date", "last_date":
			if s, ok := value.(string); ok {
				if t, err := time.ParseInLocation(dateLayout, s, moscow()); err == nil {
					data[name] = t
					continue
				}
			}
			data[name] = value
		default:
			data[name] = value
		}
	}
	return &StatusResponse{
		Status: Status{
			ID:   intField(obj, "status", 0),
			Name: stringField(obj, "status_name", ""),
		},
		Data: data,
		Err:  extractError(obj),
	}
}

// The gateway is loose with scalar types: numbers arrive as JSON numbers
// or as numeric strings depending on the endpoint. The field helpers
// below coerce either shape and fall back to a default.

func stringField(obj map[string]any, key, def string) string {
	if s, ok := obj[key].(string); ok {
		return s
	}
	return def
}

func intField(obj map[string]any, key string, def int) int {
	return int(int64Field(obj, key, int64(def)))
}

func int64Field(obj map[string]any, key string, def int64) int64 {
	switch v := obj[key].(type) {
	case float64:
		return int64(v)
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func floatField(obj map[string]any, key string, def float64) float64 {
	switch v := obj[key].(type) {
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
