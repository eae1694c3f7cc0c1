package helius

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

var (
	// ErrMalformedPayload means the body could not be read as a non-empty
	// JSON array of notifications.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrIncompletePayload means the body parsed but a notification lacks
	// the substructure or fields its handler requires.
	ErrIncompletePayload = errors.New("incomplete payload")
)

// maxAddressLength bounds account and mint strings. Base58 public keys are
// at most 44 characters.
const maxAddressLength = 100

// ParseEnvelope decodes a webhook body into its notifications. The upstream
// always sends an array; anything else, including an empty array, is
// rejected with ErrMalformedPayload.
func ParseEnvelope(body []byte) ([]Notification, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: request body is empty", ErrMalformedPayload)
	}
	if trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: body must be a JSON array of notifications", ErrMalformedPayload)
	}

	var notifications []Notification
	if err := json.Unmarshal(trimmed, &notifications); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(notifications) == 0 {
		return nil, fmt.Errorf("%w: notification array is empty", ErrMalformedPayload)
	}

	return notifications, nil
}

// Incompletef builds an ErrIncompletePayload with a field-level reason.
func Incompletef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrIncompletePayload, fmt.Sprintf(format, args...))
}

// RequireSignature checks the one field every handler needs.
func (n *Notification) RequireSignature() error {
	if strings.TrimSpace(n.Signature) == "" {
		return Incompletef("signature is required")
	}
	return nil
}

// ValidateAddress checks an account or mint field. In strict mode the value
// must also decode as a base58 public key.
func ValidateAddress(field, value string, strict bool) error {
	if value == "" {
		return Incompletef("%s is required", field)
	}
	if len(value) > maxAddressLength {
		return Incompletef("%s too long: maximum length is %d characters", field, maxAddressLength)
	}
	for _, r := range value {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return Incompletef("%s contains invalid characters", field)
		}
	}
	if strict {
		if _, err := solana.PublicKeyFromBase58(value); err != nil {
			return Incompletef("%s is not a valid public key: %v", field, err)
		}
	}
	return nil
}

// ValidateRawAmount checks an amount expressed in a currency's smallest
// unit: it must be a non-negative integer.
func ValidateRawAmount(field string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return Incompletef("%s must not be negative", field)
	}
	if !amount.IsInteger() {
		return Incompletef("%s must be an integer amount of the smallest unit", field)
	}
	return nil
}
