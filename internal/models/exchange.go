package models

import (
	"encoding/json"
	"fmt"
)

// ExchangeState is the persisted name of a photo's exchange state
type ExchangeState string

const (
	// ExchangeOpen photos wait to be picked as a candidate
	ExchangeOpen ExchangeState = "open"
	// ExchangeClaiming photos were just uploaded and are looking for a partner
	ExchangeClaiming ExchangeState = "claiming"
	// ExchangePaired photos are linked to exactly one peer
	ExchangePaired ExchangeState = "paired"
)

// Exchange is the exchange status of a photo: Open, Claiming, or Paired
// with a peer. The peer id only exists in the Paired state.
type Exchange struct {
	state  ExchangeState
	peerID int64
}

// OpenExchange returns the Open state
func OpenExchange() Exchange {
	return Exchange{state: ExchangeOpen}
}

// ClaimingExchange returns the Claiming state
func ClaimingExchange() Exchange {
	return Exchange{state: ExchangeClaiming}
}

// PairedExchange returns the Paired state pointing at peerID
func PairedExchange(peerID int64) Exchange {
	return Exchange{state: ExchangePaired, peerID: peerID}
}

// State returns the state name; the zero Exchange reports Claiming
func (e Exchange) State() ExchangeState {
	if e.state == "" {
		return ExchangeClaiming
	}
	return e.state
}

// Peer returns the peer photo id when paired
func (e Exchange) Peer() (int64, bool) {
	if e.state != ExchangePaired {
		return 0, false
	}
	return e.peerID, true
}

// IsOpen returns true in the Open state
func (e Exchange) IsOpen() bool {
	return e.State() == ExchangeOpen
}

// IsPaired returns true in the Paired state
func (e Exchange) IsPaired() bool {
	return e.State() == ExchangePaired
}

func (e Exchange) String() string {
	if peer, ok := e.Peer(); ok {
		return fmt.Sprintf("paired(%d)", peer)
	}
	return string(e.State())
}

// Columns returns the persisted state and peer id; the peer is nil unless paired
func (e Exchange) Columns() (ExchangeState, *int64) {
	if peer, ok := e.Peer(); ok {
		return ExchangePaired, &peer
	}
	return e.State(), nil
}

// ExchangeFromColumns rebuilds an Exchange from its persisted columns
func ExchangeFromColumns(state string, peerID *int64) (Exchange, error) {
	switch ExchangeState(state) {
	case ExchangeOpen:
		return OpenExchange(), nil
	case ExchangeClaiming:
		return ClaimingExchange(), nil
	case ExchangePaired:
		if peerID == nil || *peerID <= 0 {
			return Exchange{}, fmt.Errorf("paired exchange without peer")
		}
		return PairedExchange(*peerID), nil
	default:
		return Exchange{}, fmt.Errorf("unknown exchange state %q", state)
	}
}

type exchangeJSON struct {
	State  ExchangeState `json:"state"`
	PeerID *int64        `json:"peerId,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (e Exchange) MarshalJSON() ([]byte, error) {
	state, peer := e.Columns()
	return json.Marshal(exchangeJSON{State: state, PeerID: peer})
}

// UnmarshalJSON implements json.Unmarshaler
func (e *Exchange) UnmarshalJSON(data []byte) error {
	var raw exchangeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ExchangeFromColumns(string(raw.State), raw.PeerID)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
