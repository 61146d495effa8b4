package ingest

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"donationhub/internal/domain"
)

// Payload is a decoded webhook body. Bodies that are not JSON objects are
// kept verbatim under the "raw" key.
type Payload map[string]any

// DecodePayload never fails: malformed input becomes {raw: text} so the
// donation is still recorded with defaults.
func DecodePayload(body []byte) Payload {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return Payload{"raw": string(body)}
	}
	return Payload(obj)
}

// String returns the value at key when it is a string (or JSON number).
func (p Payload) String(key string) (string, bool) {
	switch v := p[key].(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	}
	return "", false
}

// Adapter maps one platform's field names onto a DonationEvent.
type Adapter struct {
	Platform       domain.Platform
	DonorFields    []string
	AmountFields   []string
	MessageFields  []string
	IdentityFields []string
	EventIDFields  []string
}

var (
	commonDonor    = []string{"donor", "donator", "name", "username"}
	commonAmount   = []string{"amount", "nominal", "total", "value"}
	commonMessage  = []string{"message", "note", "memo"}
	commonIdentity = []string{"roblox_username", "robloxUsername", "identity"}
	commonEventID  = []string{"id", "donation_id", "transaction_id"}
)

var adapters = map[domain.Platform]Adapter{
	domain.PlatformBagiBagi: {
		Platform:       domain.PlatformBagiBagi,
		DonorFields:    commonDonor,
		AmountFields:   commonAmount,
		MessageFields:  commonMessage,
		IdentityFields: commonIdentity,
		EventIDFields:  commonEventID,
	},
	domain.PlatformSaweria: {
		Platform:       domain.PlatformSaweria,
		DonorFields:    append(append([]string{}, commonDonor...), "donator_name"),
		AmountFields:   append(append([]string{}, commonAmount...), "amount_raw"),
		MessageFields:  commonMessage,
		IdentityFields: commonIdentity,
		EventIDFields:  commonEventID,
	},
}

// AdapterFor returns the field mapping for platform.
func AdapterFor(p domain.Platform) (Adapter, bool) {
	a, ok := adapters[p]
	return a, ok
}

// Event builds the normalized event. Donor takes the first non-empty field,
// amount the first non-negative number, message the first present field.
func (a Adapter) Event(p Payload, receivedAt time.Time) domain.DonationEvent {
	return domain.DonationEvent{
		Donor:            a.donor(p),
		Amount:           a.amount(p),
		Message:          a.message(p),
		Platform:         a.Platform,
		ExplicitIdentity: strings.TrimSpace(firstNonEmpty(p, a.IdentityFields)),
		ExternalID:       strings.TrimSpace(firstNonEmpty(p, a.EventIDFields)),
		ReceivedAt:       receivedAt,
	}
}

func (a Adapter) donor(p Payload) string {
	if v := firstNonEmpty(p, a.DonorFields); v != "" {
		return v
	}
	return domain.DefaultDonor
}

func (a Adapter) amount(p Payload) decimal.Decimal {
	for _, key := range a.AmountFields {
		if d, ok := parseAmount(p[key]); ok {
			return d
		}
	}
	return decimal.Zero
}

func (a Adapter) message(p Payload) string {
	for _, key := range a.MessageFields {
		if v, ok := p.String(key); ok {
			return v
		}
	}
	return ""
}

// firstNonEmpty returns the first value that is not blank, unmodified.
func firstNonEmpty(p Payload, keys []string) string {
	for _, key := range keys {
		if v, ok := p.String(key); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseAmount(v any) (decimal.Decimal, bool) {
	var (
		d   decimal.Decimal
		err error
	)
	switch t := v.(type) {
	case json.Number:
		d, err = decimal.NewFromString(t.String())
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return decimal.Zero, false
		}
		d, err = decimal.NewFromString(s)
	case float64:
		d = decimal.NewFromFloat(t)
	default:
		return decimal.Zero, false
	}
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}
