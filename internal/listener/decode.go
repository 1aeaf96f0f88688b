package listener

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"pump-agent/internal/solana"
	"pump-agent/internal/wire"
)

// Log markers of a pump.fun create.
const (
	createMarker       = "Program log: Instruction: Create"
	tokenAccountMarker = "CreateTokenAccount"
	programDataPrefix  = "Program data: "
)

// ErrNotCreate marks a notification that carries no token creation.
var ErrNotCreate = errors.New("not a create notification")

// DecodeLogs extracts the create event from a logs notification. Failed
// transactions and CreateTokenAccount messages are rejected with ErrNotCreate.
func DecodeLogs(layout *wire.Layout, v *solana.LogsValue) (*wire.CreateEvent, error) {
	if v.Err != nil {
		return nil, ErrNotCreate
	}
	joined := strings.Join(v.Logs, "\n")
	if !strings.Contains(joined, createMarker) || strings.Contains(joined, tokenAccountMarker) {
		return nil, ErrNotCreate
	}

	var lastErr error = ErrNotCreate
	for _, line := range v.Logs {
		payload, ok := strings.CutPrefix(line, programDataPrefix)
		if !ok {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
		if err != nil {
			lastErr = fmt.Errorf("program data: %w", err)
			continue
		}
		ev, err := wire.DecodeCreateEvent(layout, data)
		if errors.Is(err, wire.ErrDiscriminator) {
			// trade and other events share the prefix
			continue
		}
		if err != nil {
			lastErr = err
			continue
		}
		return ev, nil
	}
	return nil, lastErr
}

// DecodeBlock returns every create instruction of program in a block.
// Transactions that fail to decode are reported in errs and skipped.
func DecodeBlock(layout *wire.Layout, program wire.PublicKey, v *solana.BlockValue) (events []*wire.CreateEvent, errs []error) {
	if v.Block == nil {
		return nil, nil
	}
	for i := range v.Block.Transactions {
		btx := &v.Block.Transactions[i]
		if btx.Meta != nil && btx.Meta.Err != nil {
			continue
		}
		found, err := decodeBlockTransaction(layout, program, btx)
		if err != nil {
			errs = append(errs, fmt.Errorf("transaction %d: %w", i, err))
			continue
		}
		events = append(events, found...)
	}
	return events, errs
}

func decodeBlockTransaction(layout *wire.Layout, program wire.PublicKey, btx *solana.BlockTransaction) ([]*wire.CreateEvent, error) {
	raw, err := btx.RawTransaction()
	if err != nil {
		return nil, err
	}
	tx, err := wire.ParseTransaction(raw)
	if err != nil {
		return nil, err
	}

	keys := tx.AccountKeys
	if btx.Meta != nil && btx.Meta.LoadedAddresses != nil {
		loaded := append(append([]string{}, btx.Meta.LoadedAddresses.Writable...), btx.Meta.LoadedAddresses.Readonly...)
		for _, s := range loaded {
			pk, err := wire.ParsePublicKey(s)
			if err != nil {
				return nil, fmt.Errorf("loaded address: %w", err)
			}
			keys = append(keys, pk)
		}
	}

	var out []*wire.CreateEvent
	for _, ix := range tx.Instructions {
		if int(ix.ProgramIDIndex) >= len(keys) || keys[ix.ProgramIDIndex] != program {
			continue
		}
		if len(ix.Data) < 8 || binary.LittleEndian.Uint64(ix.Data) != layout.Discriminator {
			continue
		}
		accounts := make([]wire.PublicKey, 0, len(ix.Accounts))
		for _, idx := range ix.Accounts {
			if int(idx) >= len(keys) {
				return nil, fmt.Errorf("account index %d out of range", idx)
			}
			accounts = append(accounts, keys[idx])
		}
		ev, err := wire.DecodeCreateInstruction(layout, ix.Data, accounts)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}
