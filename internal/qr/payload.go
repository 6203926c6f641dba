// Package qr encodes and decodes the JSON payloads dashboards exchange
// as QR codes. A payload only identifies an account, resolving it to a
// real balance and calling the ledger both stay server side.
package qr

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/wkamthorn/campuswallet/internal/apperrors"
	"github.com/wkamthorn/campuswallet/internal/models"
)

type Payload struct {
	ID   uuid.UUID `json:"id"`
	Type string    `json:"type"`
	Name string    `json:"name"`
}

func Encode(account models.Account) (string, error) {
	raw, err := json.Marshal(Payload{
		ID:   account.ID,
		Type: account.Role,
		Name: account.FullName,
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func Decode(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return p, apperrors.ErrInvalidQRPayload
	}
	if p.ID == uuid.Nil || !models.ValidRole(p.Type) {
		return p, apperrors.ErrInvalidQRPayload
	}
	return p, nil
}
