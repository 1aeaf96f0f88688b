package wire

import (
	"errors"
	"fmt"
)

// ErrUnsupportedVersion is returned for message versions other than legacy and v0.
var ErrUnsupportedVersion = errors.New("unsupported message version")

// ParsedTransaction is a decoded wire transaction. Account keys are the
// static keys only; v0 lookup-table addresses must be appended by the
// caller from transaction metadata (writable first, then readonly).
type ParsedTransaction struct {
	Signatures   [][SignatureLength]byte
	Version      int // -1 for legacy
	AccountKeys  []PublicKey
	Instructions []CompiledInstruction
}

// ParseTransaction decodes a legacy or v0 transaction.
func ParseTransaction(raw []byte) (*ParsedTransaction, error) {
	r := reader{b: raw}

	nsig, err := r.compact()
	if err != nil {
		return nil, fmt.Errorf("signatures: %w", err)
	}
	tx := &ParsedTransaction{Version: -1}
	for i := 0; i < nsig; i++ {
		b, err := r.take(SignatureLength)
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}
		var sig [SignatureLength]byte
		copy(sig[:], b)
		tx.Signatures = append(tx.Signatures, sig)
	}

	prefix, err := r.peek()
	if err != nil {
		return nil, fmt.Errorf("message: %w", err)
	}
	if prefix&0x80 != 0 {
		tx.Version = int(prefix & 0x7f)
		if tx.Version != 0 {
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, tx.Version)
		}
		r.off++
	}

	// header
	if _, err := r.take(3); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	nkeys, err := r.compact()
	if err != nil {
		return nil, fmt.Errorf("account keys: %w", err)
	}
	for i := 0; i < nkeys; i++ {
		b, err := r.take(32)
		if err != nil {
			return nil, fmt.Errorf("account key %d: %w", i, err)
		}
		var pk PublicKey
		copy(pk[:], b)
		tx.AccountKeys = append(tx.AccountKeys, pk)
	}

	if _, err := r.take(32); err != nil {
		return nil, fmt.Errorf("blockhash: %w", err)
	}

	nix, err := r.compact()
	if err != nil {
		return nil, fmt.Errorf("instructions: %w", err)
	}
	for i := 0; i < nix; i++ {
		var ci CompiledInstruction
		b, err := r.take(1)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		ci.ProgramIDIndex = b[0]
		if ci.Accounts, err = r.bytes(); err != nil {
			return nil, fmt.Errorf("instruction %d accounts: %w", i, err)
		}
		if ci.Data, err = r.bytes(); err != nil {
			return nil, fmt.Errorf("instruction %d data: %w", i, err)
		}
		tx.Instructions = append(tx.Instructions, ci)
	}

	// v0 lookup tables follow; their resolved addresses come from metadata.
	return tx, nil
}

type reader struct {
	b   []byte
	off int
}

func (r *reader) peek() (byte, error) {
	if r.off >= len(r.b) {
		return 0, ErrShortBuffer
	}
	return r.b[r.off], nil
}

func (r *reader) take(n int) ([]byte, error) {
	if r.off+n > len(r.b) {
		return nil, ErrShortBuffer
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *reader) compact() (int, error) {
	n, size, err := ReadCompactU16(r.b[r.off:])
	if err != nil {
		return 0, err
	}
	r.off += size
	return n, nil
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.compact()
	if err != nil {
		return nil, err
	}
	return r.take(n)
}
