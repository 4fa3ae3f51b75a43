package services

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/scrypt"

	"shieldswap-client/internal/commitment"
	"shieldswap-client/internal/models"
	"shieldswap-client/internal/repository"
	"shieldswap-client/internal/zkhash"
)

func newTestNotes(t *testing.T) *NoteService {
	t.Helper()
	return NewNoteService(repository.NewMemoryNoteRepository(), zkhash.NewMiMC(), nil, nil)
}

func mintRecord(t *testing.T, amount int64) *models.Note {
	t.Helper()
	note, err := commitment.NewNote(zkhash.NewMiMC(), big.NewInt(amount))
	require.NoError(t, err)
	return models.NewNoteRecord(note, "", "", "")
}

func TestCreateNotePersistsSpendableSecrets(t *testing.T) {
	ctx := context.Background()
	svc := newTestNotes(t)

	record, blob, err := svc.CreateNote(ctx, "1000000", "0x0000000000000000000000000000000000000001", "USDC")
	require.NoError(t, err)

	assert.NotZero(t, record.ID)
	assert.Equal(t, "1000000", record.Amount)
	assert.Equal(t, "USDC", record.TokenSymbol)
	assert.NotEmpty(t, record.Commitment)
	assert.NotEmpty(t, record.NullifierHash)
	assert.Nil(t, record.LeafIndex)
	assert.False(t, record.Spent)
	assert.False(t, record.Spendable(), "unconfirmed note must not be spendable")

	// The returned blob carries the secrets and verifies against them.
	note, err := commitment.Deserialize(blob)
	require.NoError(t, err)
	assert.True(t, note.Recompute(zkhash.NewMiMC()))
	assert.Equal(t, record.Commitment, note.Commitment.Text(10))

	// A second note for the same amount draws fresh secrets.
	other, _, err := svc.CreateNote(ctx, "1000000", "", "USDC")
	require.NoError(t, err)
	assert.NotEqual(t, record.Commitment, other.Commitment)
}

func TestCreateNoteRejectsBadAmount(t *testing.T) {
	ctx := context.Background()
	svc := newTestNotes(t)

	for _, amount := range []string{"", "abc", "-5", "0x10", "1.5"} {
		_, _, err := svc.CreateNote(ctx, amount, "", "")
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %q", amount)
	}

	counts, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Total)
}

func TestConfirmAndSpendLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestNotes(t)

	record, _, err := svc.CreateNote(ctx, "500", "", "WETH")
	require.NoError(t, err)

	confirmed, err := svc.ConfirmNote(ctx, record.ID, 4, "0xdeadbeef")
	require.NoError(t, err)
	require.NotNil(t, confirmed.LeafIndex)
	assert.Equal(t, uint64(4), *confirmed.LeafIndex)
	assert.Equal(t, "0xdeadbeef", confirmed.DepositTxHash)
	assert.True(t, confirmed.Spendable())

	spent, err := svc.MarkSpent(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, spent.Spent)
	require.NotNil(t, spent.SpentAt)
	assert.False(t, spent.Spendable())

	unspent, err := svc.ListNotes(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, unspent)

	all, err := svc.ListNotes(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	counts, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Total)
	assert.Zero(t, counts.Unspent)
}

func TestImportNoteAcceptsCounterpartyBlob(t *testing.T) {
	ctx := context.Background()
	svc := newTestNotes(t)

	note, err := commitment.NewNote(zkhash.NewMiMC(), big.NewInt(777))
	require.NoError(t, err)
	blob, err := note.Serialize()
	require.NoError(t, err)

	record, err := svc.ImportNote(ctx, blob, "0x0000000000000000000000000000000000000002", "DAI")
	require.NoError(t, err)
	assert.Equal(t, note.Commitment.Text(10), record.Commitment)
	assert.Equal(t, "DAI", record.TokenSymbol)

	// Importing the same blob twice is a duplicate, not a second note.
	_, err = svc.ImportNote(ctx, blob, "", "")
	assert.ErrorIs(t, err, ErrDuplicateNote)

	counts, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Total)
}

func TestImportNoteRejectsTamperedBlob(t *testing.T) {
	ctx := context.Background()
	svc := newTestNotes(t)

	note, err := commitment.NewNote(zkhash.NewMiMC(), big.NewInt(777))
	require.NoError(t, err)
	note.Commitment = new(big.Int).Add(note.Commitment, big.NewInt(1))
	blob, err := note.Serialize()
	require.NoError(t, err)

	_, err = svc.ImportNote(ctx, blob, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")

	_, err = svc.ImportNote(ctx, "not base64 json", "", "")
	assert.Error(t, err)
}

func TestExportImportPlainRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestNotes(t)

	first, _, err := svc.CreateNote(ctx, "100", "", "USDC")
	require.NoError(t, err)
	_, _, err = svc.CreateNote(ctx, "200", "", "WETH")
	require.NoError(t, err)

	// Confirm and spend the first so the backup has to carry state, not
	// just secrets.
	_, err = svc.ConfirmNote(ctx, first.ID, 9, "0xabc")
	require.NoError(t, err)
	_, err = svc.MarkSpent(ctx, first.ID)
	require.NoError(t, err)

	blob, err := svc.Export(ctx, "")
	require.NoError(t, err)

	var envelope exportEnvelope
	require.NoError(t, json.Unmarshal([]byte(blob), &envelope))
	assert.Equal(t, noteExportVersion, envelope.Version)
	assert.False(t, envelope.Encrypted)
	assert.Len(t, envelope.Notes, 2)

	removed, err := svc.ClearNotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	result, err := svc.Import(ctx, blob, "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Zero(t, result.Skipped)

	restored, err := svc.ListNotes(ctx, false)
	require.NoError(t, err)
	require.Len(t, restored, 2)
	byCommitment := make(map[string]*models.Note, len(restored))
	for _, record := range restored {
		byCommitment[record.Commitment] = record
	}
	spent := byCommitment[first.Commitment]
	require.NotNil(t, spent)
	require.NotNil(t, spent.LeafIndex)
	assert.Equal(t, uint64(9), *spent.LeafIndex)
	assert.True(t, spent.Spent)

	// Importing the same backup again finds every commitment in place.
	again, err := svc.Import(ctx, blob, "")
	require.NoError(t, err)
	assert.Zero(t, again.Imported)
	assert.Equal(t, 2, again.Skipped)
}

func TestExportEncryptedRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("keystore-grade scrypt is expensive")
	}
	ctx := context.Background()
	svc := newTestNotes(t)

	created, _, err := svc.CreateNote(ctx, "42", "", "USDC")
	require.NoError(t, err)

	blob, err := svc.Export(ctx, "hunter2")
	require.NoError(t, err)

	// The envelope must not leak secrets in the clear.
	var envelope exportEnvelope
	require.NoError(t, json.Unmarshal([]byte(blob), &envelope))
	assert.True(t, envelope.Encrypted)
	assert.Equal(t, "scrypt", envelope.KDF)
	assert.Empty(t, envelope.Notes)
	assert.NotEmpty(t, envelope.Ciphertext)
	assert.NotContains(t, blob, created.Nullifier)
	assert.NotContains(t, blob, created.Secret)

	_, err = svc.ClearNotes(ctx)
	require.NoError(t, err)

	result, err := svc.Import(ctx, blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)

	restored, err := svc.ListNotes(ctx, false)
	require.NoError(t, err)
	require.Len(t, restored, 1)
	assert.Equal(t, created.Commitment, restored[0].Commitment)
}

// sealEnvelope encrypts a backup the way Export does, with caller-chosen
// scrypt cost so tests stay fast. Import trusts the envelope's parameters, so
// this also proves backups from other cost settings restore.
func sealEnvelope(t *testing.T, passphrase string, notes []*models.Note, n int) string {
	t.Helper()
	plain, err := json.Marshal(notes)
	require.NoError(t, err)

	salt := make([]byte, 32)
	_, err = rand.Read(salt)
	require.NoError(t, err)
	key, err := scrypt.Key([]byte(passphrase), salt, n, exportScryptR, exportScryptP, exportScryptDKLen)
	require.NoError(t, err)
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)
	nonce := make([]byte, gcm.NonceSize())
	_, err = rand.Read(nonce)
	require.NoError(t, err)

	raw, err := json.Marshal(exportEnvelope{
		Version:    noteExportVersion,
		Encrypted:  true,
		ExportedAt: time.Now().UTC(),
		KDF:        "scrypt",
		ScryptN:    n,
		ScryptR:    exportScryptR,
		ScryptP:    exportScryptP,
		Salt:       hex.EncodeToString(salt),
		Nonce:      hex.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, plain, nil)),
	})
	require.NoError(t, err)
	return string(raw)
}

func TestImportEncryptedPassphraseHandling(t *testing.T) {
	ctx := context.Background()
	svc := newTestNotes(t)
	blob := sealEnvelope(t, "correct horse", []*models.Note{mintRecord(t, 5)}, 16)

	_, err := svc.Import(ctx, blob, "")
	assert.ErrorIs(t, err, ErrPassphraseRequired)

	_, err = svc.Import(ctx, blob, "battery staple")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong passphrase")

	result, err := svc.Import(ctx, blob, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
}

func TestImportSkipsBadEntriesWithoutAborting(t *testing.T) {
	ctx := context.Background()
	svc := newTestNotes(t)

	valid := mintRecord(t, 10)
	tampered := mintRecord(t, 11)
	tampered.Amount = "12" // commitment no longer matches
	garbled := mintRecord(t, 13)
	garbled.Nullifier = "not-a-number"

	envelope := exportEnvelope{
		Version:    noteExportVersion,
		ExportedAt: time.Now().UTC(),
		Notes:      []*models.Note{valid, tampered, garbled, nil},
	}
	blob, err := json.Marshal(envelope)
	require.NoError(t, err)

	result, err := svc.Import(ctx, string(blob), "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 3, result.Skipped)

	restored, err := svc.ListNotes(ctx, false)
	require.NoError(t, err)
	require.Len(t, restored, 1)
	assert.Equal(t, valid.Commitment, restored[0].Commitment)
}
