package ticket

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ilodi/hoprnet/kvstore/memstore"
	"github.com/ilodi/hoprnet/primitives"
	"github.com/stretchr/testify/require"
)

func TestChallengeRoundTripsToSignerPubKey(t *testing.T) {
	signer, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	var keyHalf [primitives.KeySize]byte
	copy(keyHalf[:], []byte("a-hops-own-transaction-key-abcde"))

	c, err := CreateChallenge(keyHalf, signer)
	require.NoError(t, err)

	recovered, err := GetCounterparty(c, keyHalf)
	require.NoError(t, err)
	require.Equal(t, signer.PubKey().SerializeCompressed(), recovered.SerializeCompressed())
}

func TestGetCounterpartyRejectsWrongKeyHalf(t *testing.T) {
	signer, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	var keyHalf, wrongKeyHalf [primitives.KeySize]byte
	copy(keyHalf[:], []byte("the-correct-transaction-key-0123"))
	copy(wrongKeyHalf[:], []byte("a-completely-different-key-4567"))

	c, err := CreateChallenge(keyHalf, signer)
	require.NoError(t, err)

	_, err = GetCounterparty(c, wrongKeyHalf)
	require.Error(t, err)
}

func TestAggregateKeyHalvesIsOrderIndependent(t *testing.T) {
	var a, b [primitives.KeySize]byte
	copy(a[:], []byte("own-key-half-for-this-test-abcde"))
	copy(b[:], []byte("next-key-half-for-this-test-fghi"))

	sum1 := AggregateKeyHalves(a, b)
	sum2 := AggregateKeyHalves(b, a)
	require.Equal(t, sum1.SerializeCompressed(), sum2.SerializeCompressed())
}

// TestIsWinningBoundaries exercises the two endpoints of the winning
// condition H(preImage) < winProb*2^N that hold regardless of the
// actual hash output: winProb = 1 always wins, winProb = 0 never wins.
func TestIsWinningBoundaries(t *testing.T) {
	var preImage [32]byte
	copy(preImage[:], []byte("an arbitrary ticket pre-image!!"))

	alwaysWins := Ticket{WinProbNumerator: 1, WinProbDenominator: 1}
	require.True(t, alwaysWins.IsWinning(preImage))

	neverWins := Ticket{WinProbNumerator: 0, WinProbDenominator: 1}
	require.False(t, neverWins.IsWinning(preImage))
}

// TestIsWinningSplitsAllZeroAndAllOnePreimages pins down spec §8
// scenario 6's concrete claim: with winProb = 1/2, 0x00...00 wins and
// 0xff...ff loses. SHA-256 is deterministic, so this is a fixed,
// computable fact rather than a probabilistic one — verified
// independently: sha256(0x00*32) has its top bit clear (< 2^255),
// sha256(0xff*32) has its top bit set.
func TestIsWinningSplitsAllZeroAndAllOnePreimages(t *testing.T) {
	var zero, ones [32]byte
	for i := range ones {
		ones[i] = 0xff
	}

	tk := Ticket{WinProbNumerator: 1, WinProbDenominator: 2}
	require.True(t, tk.IsWinning(zero))
	require.False(t, tk.IsWinning(ones))
}

func TestPendingTicketStorePutGetDelete(t *testing.T) {
	store := NewPendingTicketStore(memstore.New())

	tk := Ticket{
		ChannelId:          [32]byte{1, 2, 3},
		HashedKeyHalf:      [32]byte{4, 5, 6},
		Amount:             42,
		WinProbNumerator:   1,
		WinProbDenominator: 2,
	}

	require.NoError(t, store.Put(tk))

	got, err := store.Get(tk.ChannelId, tk.HashedKeyHalf)
	require.NoError(t, err)
	require.Equal(t, tk, got)

	require.NoError(t, store.Delete(tk.ChannelId, tk.HashedKeyHalf))

	_, err = store.Get(tk.ChannelId, tk.HashedKeyHalf)
	require.Error(t, err)
}

func TestPendingTicketStoreIterate(t *testing.T) {
	store := NewPendingTicketStore(memstore.New())

	channelId := [32]byte{9, 9, 9}
	for i := 0; i < 3; i++ {
		tk := Ticket{ChannelId: channelId, WinProbDenominator: 2}
		tk.HashedKeyHalf[0] = byte(i)
		require.NoError(t, store.Put(tk))
	}

	count := 0
	require.NoError(t, store.Iterate(channelId, func(Ticket) error {
		count++
		return nil
	}))
	require.Equal(t, 3, count)
}
