package channel

// Persisted key layout, reproduced verbatim from spec §6 as exported
// key-builder functions so that any kvstore implementation —
// in-memory or on-disk — sees the exact same byte strings.
const (
	prefixKey                = "payments-key-"
	prefixTx                 = "payments-tx-"
	prefixRestoreTx          = "payments-restoreTx-"
	prefixStashedRestoreTx   = "payments-stashedRestoreTx-"
	prefixIndex              = "payments-index-"
	prefixCurrentValue       = "payments-currentValue-"
	prefixOnChainBalance     = "payments-onChainBalance-"
	prefixInitialBalance     = "payments-initialBalance-"
	prefixTotalBalance       = "payments-totalBalance-"
	prefixClosureState       = "payments-closureState-"

	// prefixNonce is not enumerated in spec §6's key layout, which
	// names the channel record and transaction keys but is silent on
	// where testAndSetNonce's per-signature nonce set lives. Extending
	// the same "payments-" ‖ label ‖ channelId convention to it is a
	// design decision, not a literal spec requirement — see DESIGN.md.
	prefixNonce = "payments-nonce-"
)

func keyFor(prefix string, channelId [32]byte) []byte {
	key := make([]byte, 0, len(prefix)+32)
	key = append(key, prefix...)
	key = append(key, channelId[:]...)
	return key
}

// KeyRecordKey returns the key under which the channel record itself —
// counterparty, status, balances, closure bookkeeping — is persisted.
func KeyRecordKey(channelId [32]byte) []byte { return keyFor(prefixKey, channelId) }

// TransactionKey returns the key under which the latest accepted
// transaction for channelId is persisted.
func TransactionKey(channelId [32]byte) []byte { return keyFor(prefixTx, channelId) }

// RestoreTransactionKey returns the key under which the first-tier
// fallback transaction for channelId is persisted.
func RestoreTransactionKey(channelId [32]byte) []byte { return keyFor(prefixRestoreTx, channelId) }

// StashedRestoreTransactionKey returns the key under which the
// second-tier fallback transaction for channelId is persisted.
func StashedRestoreTransactionKey(channelId [32]byte) []byte {
	return keyFor(prefixStashedRestoreTx, channelId)
}

// IndexKey returns the "payments-index-" key for channelId. Manager keeps
// the index in the channel record and writes nothing under this key;
// pruneChannel deletes it.
func IndexKey(channelId [32]byte) []byte { return keyFor(prefixIndex, channelId) }

// CurrentValueKey returns the "payments-currentValue-" key for
// channelId. Manager keeps the current value in the channel record and
// writes nothing under this key; pruneChannel deletes it.
func CurrentValueKey(channelId [32]byte) []byte { return keyFor(prefixCurrentValue, channelId) }

// OnChainBalanceKey returns the "payments-onChainBalance-" key for
// channelId. Nothing in this module writes under it.
func OnChainBalanceKey(channelId [32]byte) []byte { return keyFor(prefixOnChainBalance, channelId) }

// InitialBalanceKey returns the "payments-initialBalance-" key for
// channelId. Nothing in this module writes under it.
func InitialBalanceKey(channelId [32]byte) []byte { return keyFor(prefixInitialBalance, channelId) }

// TotalBalanceKey returns the "payments-totalBalance-" key for
// channelId. Nothing in this module writes under it.
func TotalBalanceKey(channelId [32]byte) []byte { return keyFor(prefixTotalBalance, channelId) }

// ClosureStateKey returns the "payments-closureState-" key for
// channelId. Manager keeps the closure state in the channel record and
// writes nothing under this key; pruneChannel deletes it.
func ClosureStateKey(channelId [32]byte) []byte { return keyFor(prefixClosureState, channelId) }

// NonceKey returns the key under which the per-signature nonce set entry
// for sig within channelId is persisted, per testAndSetNonce (spec
// §4.5).
func NonceKey(channelId [32]byte, sig [32]byte) []byte {
	key := make([]byte, 0, len(prefixNonce)+64)
	key = append(key, prefixNonce...)
	key = append(key, channelId[:]...)
	key = append(key, sig[:]...)
	return key
}
