package commitment

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shieldswap-client/internal/zkhash"
)

func TestComputeCommitmentIsDeterministic(t *testing.T) {
	h := zkhash.NewMiMC()
	nullifier := big.NewInt(123456789)
	secret := big.NewInt(987654321)
	amount := big.NewInt(1000)

	a := ComputeCommitment(h, nullifier, secret, amount)
	b := ComputeCommitment(h, nullifier, secret, amount)
	assert.Equal(t, 0, a.Cmp(b), "identical inputs must give identical commitments")

	c := ComputeCommitment(h, nullifier, secret, big.NewInt(1001))
	assert.NotEqual(t, 0, a.Cmp(c), "a different amount must change the commitment")
}

func TestComputeNullifierHashIsDeterministic(t *testing.T) {
	h := zkhash.NewMiMC()
	a := ComputeNullifierHash(h, big.NewInt(42))
	b := ComputeNullifierHash(h, big.NewInt(42))
	assert.Equal(t, 0, a.Cmp(b))
}

func TestNewNoteDerivesPublicValues(t *testing.T) {
	h := zkhash.NewMiMC()
	note, err := NewNote(h, big.NewInt(1000))
	require.NoError(t, err)

	require.NotNil(t, note.Nullifier)
	require.NotNil(t, note.Secret)
	assert.True(t, zkhash.WithinField(note.Nullifier))
	assert.True(t, zkhash.WithinField(note.Secret))
	assert.Equal(t, "1000", note.Amount.String())
	assert.Nil(t, note.LeafIndex, "a fresh note has no on-chain position")

	expectedCommitment := ComputeCommitment(h, note.Nullifier, note.Secret, note.Amount)
	assert.Equal(t, 0, expectedCommitment.Cmp(note.Commitment))

	expectedNH := ComputeNullifierHash(h, note.Nullifier)
	assert.Equal(t, 0, expectedNH.Cmp(note.NullifierHash))

	assert.True(t, note.Recompute(h), "derived values must verify against the secrets")
}

func TestNewNoteSecretsAreUnique(t *testing.T) {
	h := zkhash.NewMiMC()
	a, err := NewNote(h, big.NewInt(1))
	require.NoError(t, err)
	b, err := NewNote(h, big.NewInt(1))
	require.NoError(t, err)

	assert.NotEqual(t, 0, a.Nullifier.Cmp(b.Nullifier), "nullifiers must never repeat")
	assert.NotEqual(t, 0, a.Secret.Cmp(b.Secret), "secrets must never repeat")
	assert.NotEqual(t, 0, a.Commitment.Cmp(b.Commitment))
}

func TestNewNoteRejectsBadAmount(t *testing.T) {
	h := zkhash.NewMiMC()
	_, err := NewNote(h, nil)
	assert.Error(t, err)
	_, err = NewNote(h, big.NewInt(-1))
	assert.Error(t, err)

	note, err := NewNote(h, big.NewInt(0))
	require.NoError(t, err, "a zero amount is unusual but valid")
	assert.Equal(t, "0", note.Amount.String())
}

func TestSpendableTracksLeafIndex(t *testing.T) {
	h := zkhash.NewMiMC()
	note, err := NewNote(h, big.NewInt(500))
	require.NoError(t, err)

	assert.False(t, note.Spendable())
	note.SetLeafIndex(7)
	require.NotNil(t, note.LeafIndex)
	assert.Equal(t, uint64(7), *note.LeafIndex)
	assert.True(t, note.Spendable())
}

func TestSerializeRoundTrip(t *testing.T) {
	h := zkhash.NewMiMC()
	note, err := NewNote(h, big.NewInt(123456))
	require.NoError(t, err)
	note.SetLeafIndex(42)

	blob, err := note.Serialize()
	require.NoError(t, err)

	restored, err := Deserialize(blob)
	require.NoError(t, err)

	assert.Equal(t, 0, note.Nullifier.Cmp(restored.Nullifier))
	assert.Equal(t, 0, note.Secret.Cmp(restored.Secret))
	assert.Equal(t, 0, note.Amount.Cmp(restored.Amount))
	assert.Equal(t, 0, note.Commitment.Cmp(restored.Commitment))
	assert.Equal(t, 0, note.NullifierHash.Cmp(restored.NullifierHash))
	require.NotNil(t, restored.LeafIndex)
	assert.Equal(t, uint64(42), *restored.LeafIndex)
	assert.True(t, restored.Recompute(h), "a round-tripped note must still verify")
}

func TestSerializeRoundTripWithoutLeafIndex(t *testing.T) {
	h := zkhash.NewMiMC()
	note, err := NewNote(h, big.NewInt(10))
	require.NoError(t, err)

	blob, err := note.Serialize()
	require.NoError(t, err)
	assert.NotContains(t, blob, "leafIndex", "unset leaf index should be omitted")

	restored, err := Deserialize(blob)
	require.NoError(t, err)
	assert.Nil(t, restored.LeafIndex)
}

func TestDeserializeRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"not json":          "{{{",
		"empty object":      "{}",
		"bad nullifier":     `{"nullifier":"xyz","secret":"1","amount":"1","commitment":"1","nullifierHash":"1"}`,
		"negative amount":   `{"nullifier":"1","secret":"1","amount":"-5","commitment":"1","nullifierHash":"1"}`,
		"missing secret":    `{"nullifier":"1","amount":"1","commitment":"1","nullifierHash":"1"}`,
		"hex field element": `{"nullifier":"0xff","secret":"1","amount":"1","commitment":"1","nullifierHash":"1"}`,
	}
	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Deserialize(blob)
			assert.Error(t, err)
		})
	}
}

func TestRecomputeDetectsTampering(t *testing.T) {
	h := zkhash.NewMiMC()
	note, err := NewNote(h, big.NewInt(777))
	require.NoError(t, err)
	require.True(t, note.Recompute(h))

	note.Commitment = new(big.Int).Add(note.Commitment, big.NewInt(1))
	assert.False(t, note.Recompute(h), "a tampered commitment must fail verification")
}
