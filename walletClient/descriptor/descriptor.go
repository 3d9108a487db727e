// Package descriptor builds and parses the party-set descriptor sent to the
// signing engine, and performs envelope checks on signer handles.
//
// The descriptor wire form is fixed by the engine:
//
//	{"ServerUrl": string, "WalletId": string, "Id": string, "Ids": [string,...], "Threshold": integer}
//
// Field names, field order and value types must not change.
package descriptor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	uerrors "github.com/pushchain/push-wallet-signer/walletClient/errors"
)

const opBuild = "descriptor.Build"
const opParse = "descriptor.Parse"

// Descriptor is the party-set configuration for one wallet. It is a value
// type; use Build to get a validated one and never mutate it afterwards.
type Descriptor struct {
	ServerURL string   `json:"ServerUrl"`
	WalletID  string   `json:"WalletId"`
	SelfID    string   `json:"Id"`
	PartyIDs  []string `json:"Ids"`
	Threshold int      `json:"Threshold"`
}

// Build validates the caller-supplied fields and returns a descriptor.
// It performs no I/O. The party slice is copied so later changes by the
// caller cannot leak into the descriptor.
func Build(serverURL, walletID, selfID string, partyIDs []string, threshold int) (Descriptor, error) {
	d := Descriptor{
		ServerURL: serverURL,
		WalletID:  walletID,
		SelfID:    selfID,
		PartyIDs:  append([]string(nil), partyIDs...),
		Threshold: threshold,
	}
	if err := d.validate(opBuild); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// Parse decodes a descriptor produced by Marshal and re-checks its invariants.
// Unknown fields are rejected so a drifting wire format is noticed.
func Parse(data []byte) (Descriptor, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var d Descriptor
	if err := dec.Decode(&d); err != nil {
		return Descriptor{}, uerrors.NewInvalidDescriptorError(opParse, fmt.Sprintf("malformed descriptor: %v", err))
	}
	if dec.More() {
		return Descriptor{}, uerrors.NewInvalidDescriptorError(opParse, "trailing data after descriptor")
	}
	if err := d.validate(opParse); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// Marshal returns the wire form. Output is deterministic: the same
// descriptor always yields the same bytes, with parties in roster order.
func (d Descriptor) Marshal() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, uerrors.NewInternalError("descriptor.Marshal", "failed to encode descriptor", err)
	}
	return data, nil
}

// JSON is Marshal as a string, the form the engine boundary takes.
func (d Descriptor) JSON() (string, error) {
	data, err := d.Marshal()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SameRoster reports whether two descriptors agree on parties and threshold.
// A wallet's roster is fixed at account creation; later rounds must match it.
func (d Descriptor) SameRoster(other Descriptor) bool {
	if d.Threshold != other.Threshold || len(d.PartyIDs) != len(other.PartyIDs) {
		return false
	}
	for i := range d.PartyIDs {
		if d.PartyIDs[i] != other.PartyIDs[i] {
			return false
		}
	}
	return true
}

func (d Descriptor) validate(op string) error {
	if strings.TrimSpace(d.ServerURL) == "" {
		return uerrors.NewInvalidDescriptorError(op, "server url is required")
	}
	if strings.TrimSpace(d.WalletID) == "" {
		return uerrors.NewInvalidDescriptorError(op, "wallet id is required")
	}
	if len(d.PartyIDs) == 0 {
		return uerrors.NewInvalidDescriptorError(op, "party set is empty")
	}

	seen := make(map[string]struct{}, len(d.PartyIDs))
	for _, id := range d.PartyIDs {
		if id == "" {
			return uerrors.NewInvalidDescriptorError(op, "party set contains an empty identity")
		}
		if _, dup := seen[id]; dup {
			return uerrors.NewInvalidDescriptorError(op, fmt.Sprintf("party %q appears more than once", id))
		}
		seen[id] = struct{}{}
	}

	if _, ok := seen[d.SelfID]; !ok {
		return uerrors.NewInvalidDescriptorError(op, fmt.Sprintf("self id %q is not in the party set", d.SelfID)).
			WithContext("self_id", d.SelfID)
	}
	if d.Threshold < 1 || d.Threshold > len(d.PartyIDs) {
		return uerrors.NewInvalidDescriptorError(op,
			fmt.Sprintf("threshold %d outside [1, %d]", d.Threshold, len(d.PartyIDs)))
	}
	return nil
}
