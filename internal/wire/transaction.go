package wire

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// SignatureLength is the size of an ed25519 signature.
const SignatureLength = 64

// AccountMeta describes one account referenced by an instruction.
type AccountMeta struct {
	PublicKey  PublicKey
	IsSigner   bool
	IsWritable bool
}

// Instruction is a single program invocation.
type Instruction struct {
	ProgramID PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

// Message is a compiled legacy transaction message.
type Message struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
	AccountKeys                 []PublicKey
	RecentBlockhash             [32]byte
	Instructions                []CompiledInstruction
}

// CompiledInstruction references accounts by index into Message.AccountKeys.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	Accounts       []uint8
	Data           []byte
}

// Transaction is a message plus one signature per required signer.
type Transaction struct {
	Signatures [][SignatureLength]byte
	Message    Message
}

// NewMessage compiles instructions into a legacy message. The fee payer is
// always the first account key. Keys are deduplicated, merging signer and
// writable flags, and ordered writable signers, readonly signers, writable
// non-signers, readonly non-signers, stable within each group.
func NewMessage(feePayer PublicKey, instructions []Instruction, recentBlockhash string) (*Message, error) {
	if len(instructions) == 0 {
		return nil, errors.New("no instructions")
	}
	bh, err := base58.Decode(recentBlockhash)
	if err != nil || len(bh) != 32 {
		return nil, fmt.Errorf("invalid blockhash %q", recentBlockhash)
	}

	type entry struct {
		key      PublicKey
		signer   bool
		writable bool
	}
	var entries []*entry
	index := make(map[PublicKey]*entry)
	add := func(key PublicKey, signer, writable bool) {
		if e, ok := index[key]; ok {
			e.signer = e.signer || signer
			e.writable = e.writable || writable
			return
		}
		e := &entry{key: key, signer: signer, writable: writable}
		index[key] = e
		entries = append(entries, e)
	}

	add(feePayer, true, true)
	for _, ix := range instructions {
		for _, acc := range ix.Accounts {
			add(acc.PublicKey, acc.IsSigner, acc.IsWritable)
		}
		add(ix.ProgramID, false, false)
	}

	msg := &Message{}
	copy(msg.RecentBlockhash[:], bh)

	groups := [4][]*entry{}
	for i, e := range entries {
		switch {
		case i == 0:
			groups[0] = append(groups[0], e)
		case e.signer && e.writable:
			groups[0] = append(groups[0], e)
		case e.signer:
			groups[1] = append(groups[1], e)
		case e.writable:
			groups[2] = append(groups[2], e)
		default:
			groups[3] = append(groups[3], e)
		}
	}
	positions := make(map[PublicKey]uint8, len(entries))
	for _, g := range groups {
		for _, e := range g {
			positions[e.key] = uint8(len(msg.AccountKeys))
			msg.AccountKeys = append(msg.AccountKeys, e.key)
		}
	}
	if len(msg.AccountKeys) > 256 {
		return nil, fmt.Errorf("too many accounts: %d", len(msg.AccountKeys))
	}

	msg.NumRequiredSignatures = uint8(len(groups[0]) + len(groups[1]))
	msg.NumReadonlySignedAccounts = uint8(len(groups[1]))
	msg.NumReadonlyUnsignedAccounts = uint8(len(groups[3]))

	for _, ix := range instructions {
		ci := CompiledInstruction{
			ProgramIDIndex: positions[ix.ProgramID],
			Data:           ix.Data,
		}
		for _, acc := range ix.Accounts {
			ci.Accounts = append(ci.Accounts, positions[acc.PublicKey])
		}
		msg.Instructions = append(msg.Instructions, ci)
	}
	return msg, nil
}

// Serialize encodes the message in wire format.
func (m *Message) Serialize() []byte {
	buf := []byte{m.NumRequiredSignatures, m.NumReadonlySignedAccounts, m.NumReadonlyUnsignedAccounts}
	buf = AppendCompactU16(buf, len(m.AccountKeys))
	for _, k := range m.AccountKeys {
		buf = append(buf, k[:]...)
	}
	buf = append(buf, m.RecentBlockhash[:]...)
	buf = AppendCompactU16(buf, len(m.Instructions))
	for _, ix := range m.Instructions {
		buf = append(buf, ix.ProgramIDIndex)
		buf = AppendCompactU16(buf, len(ix.Accounts))
		buf = append(buf, ix.Accounts...)
		buf = AppendCompactU16(buf, len(ix.Data))
		buf = append(buf, ix.Data...)
	}
	return buf
}

// Signers returns the keys that must sign, in signature order.
func (m *Message) Signers() []PublicKey {
	return m.AccountKeys[:m.NumRequiredSignatures]
}

// SignTransaction compiles and signs a transaction. Every required signer
// must be present in keys.
func SignTransaction(msg *Message, keys ...ed25519.PrivateKey) (*Transaction, error) {
	byPub := make(map[PublicKey]ed25519.PrivateKey, len(keys))
	for _, k := range keys {
		var pk PublicKey
		copy(pk[:], k.Public().(ed25519.PublicKey))
		byPub[pk] = k
	}

	payload := msg.Serialize()
	tx := &Transaction{Message: *msg}
	for _, signer := range msg.Signers() {
		key, ok := byPub[signer]
		if !ok {
			return nil, fmt.Errorf("missing signer %s", signer)
		}
		var sig [SignatureLength]byte
		copy(sig[:], ed25519.Sign(key, payload))
		tx.Signatures = append(tx.Signatures, sig)
	}
	return tx, nil
}

// Serialize encodes signatures followed by the message.
func (t *Transaction) Serialize() []byte {
	buf := AppendCompactU16(nil, len(t.Signatures))
	for _, sig := range t.Signatures {
		buf = append(buf, sig[:]...)
	}
	return append(buf, t.Message.Serialize()...)
}

// Signature returns the base58 first signature, which identifies the
// transaction on chain.
func (t *Transaction) Signature() string {
	if len(t.Signatures) == 0 {
		return ""
	}
	return base58.Encode(t.Signatures[0][:])
}
