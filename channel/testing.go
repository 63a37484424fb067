package channel

// TestSeedRecord writes rec directly to the store, bypassing OpenOrFund's
// on-chain reconciliation. It exists only for test setup that needs a
// channel already in a particular Status without driving a fake chain
// backend through the full funding handshake, the same role
// chain.TestHarness plays for block time.
func (m *Manager) TestSeedRecord(rec Record) error {
	return m.putRecord(rec)
}
