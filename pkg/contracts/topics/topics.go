package topics

const (
	// Ledger
	LedgerEvents = "ledger_events"

	// DLQ do projetor de pools
	LedgerEventsDLQ = "ledger_events_dlq"

	// Redis Pub/Sub
	PoolUpdatesBroadcast = "pool_updates_broadcast"
)
