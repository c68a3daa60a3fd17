// Package events is the durable, queryable record of the token's history.
//
// The accumulator root cannot be enumerated, so Transfer and Approval events
// are the only way to observe balance moves and allowance changes after the
// fact. The client-side allowance index (package index) is rebuilt entirely
// from the Approval stream.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/amwLEE/Mina-ERC20/field"
)

// Type discriminates event payloads.
type Type string

const (
	// TypeTransfer is emitted on every balance move.
	TypeTransfer Type = "Transfer"
	// TypeApproval is emitted on every allowance change.
	TypeApproval Type = "Approval"
)

// Event is one append-only log entry.
type Event struct {
	ID        string          `json:"id"`
	Stream    string          `json:"stream"`
	Version   int             `json:"version"`
	Type      Type            `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// TransferData is the payload of a Transfer event.
type TransferData struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

// ApprovalData is the payload of an Approval event.
type ApprovalData struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Value   string `json:"value"`
}

// New creates an event with a fresh ID. Version is assigned by the store
// on append.
func New(stream string, typ Type, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("events: marshal payload: %w", err)
	}
	return &Event{
		ID:        uuid.New().String(),
		Stream:    stream,
		Type:      typ,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewTransfer builds a Transfer event.
func NewTransfer(stream string, from, to field.Element, value *uint256.Int) (*Event, error) {
	return New(stream, TypeTransfer, TransferData{
		From:  field.Hex(from),
		To:    field.Hex(to),
		Value: value.Hex(),
	})
}

// NewApproval builds an Approval event.
func NewApproval(stream string, owner, spender field.Element, value *uint256.Int) (*Event, error) {
	return New(stream, TypeApproval, ApprovalData{
		Owner:   field.Hex(owner),
		Spender: field.Hex(spender),
		Value:   value.Hex(),
	})
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// Transfer decodes a Transfer payload back into field/amount form.
func (e *Event) Transfer() (from, to field.Element, value *uint256.Int, err error) {
	if e.Type != TypeTransfer {
		err = fmt.Errorf("events: %s is not a Transfer event", e.ID)
		return
	}
	var d TransferData
	if err = e.Decode(&d); err != nil {
		return
	}
	if from, err = field.FromHex(d.From); err != nil {
		return
	}
	if to, err = field.FromHex(d.To); err != nil {
		return
	}
	value, err = uint256.FromHex(d.Value)
	return
}

// Approval decodes an Approval payload back into field/amount form.
func (e *Event) Approval() (owner, spender field.Element, value *uint256.Int, err error) {
	if e.Type != TypeApproval {
		err = fmt.Errorf("events: %s is not an Approval event", e.ID)
		return
	}
	var d ApprovalData
	if err = e.Decode(&d); err != nil {
		return
	}
	if owner, err = field.FromHex(d.Owner); err != nil {
		return
	}
	if spender, err = field.FromHex(d.Spender); err != nil {
		return
	}
	value, err = uint256.FromHex(d.Value)
	return
}
