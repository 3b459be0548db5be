package events

// TopicTransactionCompleted carries one event per committed ledger mutation.
const TopicTransactionCompleted = "transaction_completed"

// Publisher delivers completed-transaction events to interested consumers.
type Publisher interface {
	Publish(topic string, event any) error
}

// Noop discards every event. Used in tests and when no broker is configured.
type Noop struct{}

func (Noop) Publish(string, any) error { return nil }
