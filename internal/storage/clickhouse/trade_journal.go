package clickhouse

import (
	"context"
	"fmt"
	"time"

	"pump-agent/internal/domain"
	"pump-agent/internal/storage"
)

// TradeJournal implements storage.TradeJournal on the trade_journal table.
type TradeJournal struct {
	conn *Conn
}

// NewTradeJournal creates a new TradeJournal.
func NewTradeJournal(conn *Conn) *TradeJournal {
	return &TradeJournal{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeJournal = (*TradeJournal)(nil)

// Record appends e.
func (j *TradeJournal) Record(ctx context.Context, e *storage.JournalEntry) (err error) {
	defer observe("journal_record", time.Now(), &err)
	if e == nil || e.TradeUUID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trade_journal (
			trade_uuid, mint, bot, side, success, signature, error,
			price, amount, total, sandbox, timestamp_ms
		) VALUES (
			?, ?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?
		)
	`

	err = j.conn.Exec(ctx, query,
		e.TradeUUID, e.Mint, e.BotName, string(e.Side), boolToUint8(e.Success), e.Signature, e.Error,
		e.Price, e.Amount, e.Total, boolToUint8(e.Sandbox), e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// GetByTrade returns the entries of one trade, oldest first.
func (j *TradeJournal) GetByTrade(ctx context.Context, tradeUUID string) ([]storage.JournalEntry, error) {
	query := `
		SELECT trade_uuid, mint, bot, side, success, signature, error,
			price, amount, total, sandbox, timestamp_ms
		FROM trade_journal
		WHERE trade_uuid = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := j.conn.Query(ctx, query, tradeUUID)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []storage.JournalEntry
	for rows.Next() {
		var (
			e                storage.JournalEntry
			side             string
			success, sandbox uint8
		)
		if err := rows.Scan(
			&e.TradeUUID, &e.Mint, &e.BotName, &side, &success, &e.Signature, &e.Error,
			&e.Price, &e.Amount, &e.Total, &sandbox, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Side = domain.TradeSide(side)
		e.Success = success == 1
		e.Sandbox = sandbox == 1
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
