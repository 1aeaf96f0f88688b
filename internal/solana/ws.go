package solana

import "context"

// WSClient defines Solana WebSocket subscription interface.
type WSClient interface {
	// Subscribe opens a subscription. The returned channel survives
	// reconnects and is closed only by Close.
	Subscribe(ctx context.Context, sub Subscription) (<-chan Notification, error)

	// Unsubscribe stops delivery on a channel returned by Subscribe.
	Unsubscribe(ch <-chan Notification) error

	// Close closes the WebSocket connection.
	Close() error
}

// Subscription describes a pubsub request and the notification method it produces.
type Subscription struct {
	Method       string
	Params       []interface{}
	Notification string
	Unsubscribe  string
}

// LogsSubscription subscribes to logs of transactions mentioning any of the programs.
func LogsSubscription(mentions []string, commitment Commitment) Subscription {
	filter := map[string]interface{}{"mentions": mentions}
	if len(mentions) == 0 {
		filter = map[string]interface{}{"all": nil}
	}
	return Subscription{
		Method:       "logsSubscribe",
		Params:       []interface{}{filter, map[string]interface{}{"commitment": commitment}},
		Notification: "logsNotification",
		Unsubscribe:  "logsUnsubscribe",
	}
}

// BlockSubscription subscribes to full blocks containing transactions that
// mention program.
func BlockSubscription(program string, commitment Commitment) Subscription {
	return Subscription{
		Method: "blockSubscribe",
		Params: []interface{}{
			map[string]interface{}{"mentionsAccountOrProgram": program},
			map[string]interface{}{
				"commitment":                     commitment,
				"encoding":                       "base64",
				"showRewards":                    false,
				"transactionDetails":             "full",
				"maxSupportedTransactionVersion": 0,
			},
		},
		Notification: "blockNotification",
		Unsubscribe:  "blockUnsubscribe",
	}
}
