package wire

import "fmt"

// CreateEvent is a decoded token creation.
type CreateEvent struct {
	Name                   string
	Symbol                 string
	URI                    string
	Mint                   PublicKey
	BondingCurve           PublicKey
	AssociatedBondingCurve PublicKey
	User                   PublicKey
}

// DecodeCreateEvent decodes an event payload from program logs. The base
// curve is not part of the event and is derived from curve and mint.
func DecodeCreateEvent(layout *Layout, data []byte) (*CreateEvent, error) {
	v, err := layout.Decode(data)
	if err != nil {
		return nil, err
	}
	ev := &CreateEvent{
		Name:   v.String("name"),
		Symbol: v.String("symbol"),
		URI:    v.String("uri"),
	}
	var ok bool
	if ev.Mint, ok = v.PublicKey("mint"); !ok {
		return nil, fmt.Errorf("%s: missing mint", layout.Name)
	}
	if ev.BondingCurve, ok = v.PublicKey("bondingCurve"); !ok {
		return nil, fmt.Errorf("%s: missing bondingCurve", layout.Name)
	}
	ev.User, _ = v.PublicKey("user")
	ev.AssociatedBondingCurve, err = BaseCurveAddress(ev.BondingCurve, ev.Mint)
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// Account positions of the create instruction.
const (
	createAccountMint         = 0
	createAccountBondingCurve = 2
	createAccountBaseCurve    = 3
	createAccountUser         = 7
)

// DecodeCreateInstruction decodes create arguments from data and reads the
// addresses positionally from the instruction's resolved account list.
func DecodeCreateInstruction(layout *Layout, data []byte, accounts []PublicKey) (*CreateEvent, error) {
	if len(accounts) <= createAccountUser {
		return nil, fmt.Errorf("%w: create has %d accounts", ErrShortBuffer, len(accounts))
	}
	v, err := layout.Decode(data)
	if err != nil {
		return nil, err
	}
	return &CreateEvent{
		Name:                   v.String("name"),
		Symbol:                 v.String("symbol"),
		URI:                    v.String("uri"),
		Mint:                   accounts[createAccountMint],
		BondingCurve:           accounts[createAccountBondingCurve],
		AssociatedBondingCurve: accounts[createAccountBaseCurve],
		User:                   accounts[createAccountUser],
	}, nil
}
