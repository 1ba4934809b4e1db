// Package feed consumes the real-time alert feed: it owns the WebSocket
// transport lifecycle and the decode boundary that turns raw frames into
// typed messages.
//
// Inbound frames are JSON objects discriminated by a "type" field. Two tags
// are meaningful, "transaction" and "error"; anything else is a defined
// no-op rather than an exception, so feed-side additions never crash a
// running monitor.
package feed

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"fraudmonitor/internal/model"
)

// Frame type tags recognized on the wire.
const (
	frameTypeTransaction = "transaction"
	frameTypeError       = "error"
)

var (
	// ErrMalformedFrame indicates a frame body that failed to parse or
	// violated the schema. Policy: log, count, drop the frame; never tear
	// down the session.
	ErrMalformedFrame = errors.New("malformed frame")
)

// timestampLayouts lists the formats the upstream service is known to emit.
// The simulator sends RFC 3339; the original inference backend stringifies
// timestamps without a zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Kind discriminates decoded messages.
type Kind int

const (
	// KindUnknown marks a frame with an unrecognized type tag.
	KindUnknown Kind = iota

	// KindTransaction carries a scored transaction event.
	KindTransaction

	// KindError carries an upstream-reported error message.
	KindError
)

// Message is the decoded form of one inbound frame.
type Message struct {
	Kind        Kind
	Transaction model.TransactionEvent // set when Kind == KindTransaction
	ErrMessage  string                 // set when Kind == KindError
}

// transactionFrame maps the upstream transaction schema. Validation tags
// enforce the data-model invariants at the boundary: risk scores in [0, 1]
// and a binary ground-truth label. Amount non-negativity is checked
// separately since decimal values are opaque to struct tags.
type transactionFrame struct {
	TransactionID     int64           `json:"transaction_id" validate:"gte=0"`
	Timestamp         string          `json:"timestamp" validate:"required"`
	SenderID          int64           `json:"sender_id" validate:"gte=0"`
	ReceiverID        int64           `json:"receiver_id" validate:"gte=0"`
	Amount            decimal.Decimal `json:"amount"`
	IsAlert           bool            `json:"is_alert"`
	SenderRiskScore   float64         `json:"sender_risk_score" validate:"gte=0,lte=1"`
	ReceiverRiskScore float64         `json:"receiver_risk_score" validate:"gte=0,lte=1"`
	FraudActual       int             `json:"fraud_actual" validate:"oneof=0 1"`
	TransactionType   string          `json:"transaction_type"`
}

// errorFrame maps the upstream error schema.
type errorFrame struct {
	Message string `json:"message" validate:"required"`
}

// Decoder parses and validates inbound feed frames.
type Decoder struct {
	validate *validator.Validate
}

// NewDecoder returns a ready decoder.
func NewDecoder() *Decoder {
	return &Decoder{validate: validator.New()}
}

// Decode parses one raw frame into a Message. Unrecognized type tags yield
// KindUnknown with a nil error; schema violations yield an error wrapping
// ErrMalformedFrame.
func (d *Decoder) Decode(raw []byte) (Message, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, fmt.Errorf("%w: invalid JSON: %v", ErrMalformedFrame, err)
	}

	switch env.Type {
	case frameTypeTransaction:
		return d.decodeTransaction(raw)
	case frameTypeError:
		return d.decodeError(raw)
	default:
		return Message{Kind: KindUnknown}, nil
	}
}

func (d *Decoder) decodeTransaction(raw []byte) (Message, error) {
	var f transactionFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Message{}, fmt.Errorf("%w: invalid transaction payload: %v", ErrMalformedFrame, err)
	}

	if err := d.validate.Struct(&f); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	if f.Amount.IsNegative() {
		return Message{}, fmt.Errorf("%w: negative amount %s", ErrMalformedFrame, f.Amount)
	}

	ts, err := parseTimestamp(f.Timestamp)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	return Message{
		Kind: KindTransaction,
		Transaction: model.TransactionEvent{
			ID:                f.TransactionID,
			Timestamp:         ts,
			SenderID:          f.SenderID,
			ReceiverID:        f.ReceiverID,
			Amount:            f.Amount,
			Type:              f.TransactionType,
			IsAlert:           f.IsAlert,
			SenderRiskScore:   f.SenderRiskScore,
			ReceiverRiskScore: f.ReceiverRiskScore,
			FraudActual:       f.FraudActual,
		},
	}, nil
}

func (d *Decoder) decodeError(raw []byte) (Message, error) {
	var f errorFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Message{}, fmt.Errorf("%w: invalid error payload: %v", ErrMalformedFrame, err)
	}

	if err := d.validate.Struct(&f); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	return Message{Kind: KindError, ErrMessage: f.Message}, nil
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", value)
}
