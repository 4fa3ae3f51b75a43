package services

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/scrypt"

	"shieldswap-client/internal/clients"
	"shieldswap-client/internal/commitment"
	"shieldswap-client/internal/events"
	"shieldswap-client/internal/metrics"
	"shieldswap-client/internal/models"
	"shieldswap-client/internal/repository"
	"shieldswap-client/internal/zkhash"
)

const noteExportVersion = 1

// Scrypt parameters for encrypted exports, matching the cost geth uses for
// standard keystores.
const (
	exportScryptN     = 1 << 18
	exportScryptR     = 8
	exportScryptP     = 1
	exportScryptDKLen = 32
)

var (
	// ErrInvalidAmount is returned for amounts that are not non-negative
	// base-10 integers.
	ErrInvalidAmount = errors.New("services: invalid amount")
	// ErrPassphraseRequired is returned when importing an encrypted backup
	// without a passphrase.
	ErrPassphraseRequired = errors.New("services: passphrase required for encrypted backup")
	// ErrDuplicateNote is returned when importing a note whose commitment is
	// already stored.
	ErrDuplicateNote = errors.New("services: note already stored")
)

// NoteService owns the deposit-note lifecycle: creation, confirmation,
// spend-marking, and encrypted backup of the note set.
type NoteService struct {
	repo   repository.NoteRepository
	hasher zkhash.Hasher
	nats   *clients.NATSClient
	hub    *clients.StatusHub
	log    *logrus.Entry
}

// NewNoteService creates a new NoteService instance
func NewNoteService(repo repository.NoteRepository, hasher zkhash.Hasher, nats *clients.NATSClient, hub *clients.StatusHub) *NoteService {
	return &NoteService{
		repo:   repo,
		hasher: hasher,
		nats:   nats,
		hub:    hub,
		log:    logrus.WithField("component", "note_service"),
	}
}

// CreateNote draws a fresh note for the given amount and persists it
// unspent. The returned blob is the canonical serialized note; it is the
// user's only chance to back up the secrets outside the local store.
func (s *NoteService) CreateNote(ctx context.Context, amount, tokenAddress, tokenSymbol string) (*models.Note, string, error) {
	value, ok := new(big.Int).SetString(amount, 10)
	if !ok || value.Sign() < 0 {
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}

	note, err := commitment.NewNote(s.hasher, value)
	if err != nil {
		return nil, "", fmt.Errorf("create note: %w", err)
	}
	blob, err := note.Serialize()
	if err != nil {
		return nil, "", fmt.Errorf("serialize note: %w", err)
	}

	record := models.NewNoteRecord(note, tokenAddress, tokenSymbol, "")
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, "", fmt.Errorf("persist note: %w", err)
	}

	metrics.NotesCreatedTotal.Inc()
	s.log.WithFields(logrus.Fields{
		"note_id":    record.ID,
		"commitment": record.Commitment,
		"token":      tokenSymbol,
	}).Info("Created deposit note")
	s.announceNote(events.SubjectNoteCreated, record)
	return record, blob, nil
}

// ImportNote restores a single note from its serialized blob, for example
// one received from a counterparty. The commitment is recomputed from the
// secrets before anything is stored; a blob that fails the check is
// rejected, a commitment already in the store is reported as a duplicate.
func (s *NoteService) ImportNote(ctx context.Context, blob, tokenAddress, tokenSymbol string) (*models.Note, error) {
	note, err := commitment.Deserialize(blob)
	if err != nil {
		return nil, fmt.Errorf("decode note: %w", err)
	}
	if !note.Recompute(s.hasher) {
		return nil, fmt.Errorf("note commitment does not match its secrets")
	}
	if existing, err := s.repo.GetByCommitment(ctx, note.Commitment.Text(10)); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: note %d", ErrDuplicateNote, existing.ID)
	}

	record := models.NewNoteRecord(note, tokenAddress, tokenSymbol, "")
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("persist note: %w", err)
	}

	metrics.NotesImportedTotal.WithLabelValues("imported").Inc()
	s.log.WithFields(logrus.Fields{
		"note_id":    record.ID,
		"commitment": record.Commitment,
	}).Info("Imported serialized note")
	s.announceNote(events.SubjectNoteCreated, record)
	return record, nil
}

// ConfirmNote records the on-chain position assigned by the deposit event.
func (s *NoteService) ConfirmNote(ctx context.Context, id, leafIndex uint64, depositTxHash string) (*models.Note, error) {
	if err := s.repo.SetLeafIndex(ctx, id, leafIndex, depositTxHash); err != nil {
		return nil, err
	}
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"note_id":    id,
		"leaf_index": leafIndex,
	}).Info("Confirmed deposit note")
	return record, nil
}

// GetNote returns one stored note by id.
func (s *NoteService) GetNote(ctx context.Context, id uint64) (*models.Note, error) {
	return s.repo.GetByID(ctx, id)
}

// ListNotes returns all notes, or only spendable ones.
func (s *NoteService) ListNotes(ctx context.Context, unspentOnly bool) ([]*models.Note, error) {
	if unspentOnly {
		return s.repo.GetUnspent(ctx)
	}
	return s.repo.GetAll(ctx)
}

// Count returns total and unspent note counts.
func (s *NoteService) Count(ctx context.Context) (*models.NoteCounts, error) {
	return s.repo.Count(ctx)
}

// MarkSpent flags a note as consumed by a relayed swap. Calling it again on
// an already-spent note overwrites the timestamp; the store never corrupts.
func (s *NoteService) MarkSpent(ctx context.Context, id uint64) (*models.Note, error) {
	if err := s.repo.MarkSpent(ctx, id); err != nil {
		return nil, err
	}
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics.NotesSpentTotal.Inc()
	s.log.WithField("note_id", id).Info("Marked note spent")
	s.announceNote(events.SubjectNoteSpent, record)
	return record, nil
}

// DeleteNote removes one note permanently.
func (s *NoteService) DeleteNote(ctx context.Context, id uint64) error {
	return s.repo.Delete(ctx, id)
}

// ClearNotes removes every note. Exposed for explicit user action only.
func (s *NoteService) ClearNotes(ctx context.Context) (int64, error) {
	return s.repo.Clear(ctx)
}

// exportEnvelope is the backup wire format. Encrypted backups carry scrypt
// parameters and an AES-GCM ciphertext of the plain envelope's notes array.
type exportEnvelope struct {
	Version    int            `json:"version"`
	Encrypted  bool           `json:"encrypted"`
	ExportedAt time.Time      `json:"exported_at"`
	Notes      []*models.Note `json:"notes,omitempty"`
	KDF        string         `json:"kdf,omitempty"`
	ScryptN    int            `json:"scrypt_n,omitempty"`
	ScryptR    int            `json:"scrypt_r,omitempty"`
	ScryptP    int            `json:"scrypt_p,omitempty"`
	Salt       string         `json:"salt,omitempty"`
	Nonce      string         `json:"nonce,omitempty"`
	Ciphertext string         `json:"ciphertext,omitempty"`
}

// ImportResult reports a best-effort import.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Export serializes every stored note into a backup blob. A non-empty
// passphrase produces an scrypt/AES-GCM encrypted envelope; an empty one
// produces plaintext JSON.
func (s *NoteService) Export(ctx context.Context, passphrase string) (string, error) {
	notes, err := s.repo.GetAll(ctx)
	if err != nil {
		return "", fmt.Errorf("load notes: %w", err)
	}

	envelope := exportEnvelope{
		Version:    noteExportVersion,
		ExportedAt: time.Now().UTC(),
	}

	if passphrase == "" {
		envelope.Notes = notes
		raw, err := json.Marshal(envelope)
		if err != nil {
			return "", fmt.Errorf("encode backup: %w", err)
		}
		return string(raw), nil
	}

	plain, err := json.Marshal(notes)
	if err != nil {
		return "", fmt.Errorf("encode notes: %w", err)
	}
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("draw salt: %w", err)
	}
	key, err := scrypt.Key([]byte(passphrase), salt, exportScryptN, exportScryptR, exportScryptP, exportScryptDKLen)
	if err != nil {
		return "", fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("init gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("draw nonce: %w", err)
	}

	envelope.Encrypted = true
	envelope.KDF = "scrypt"
	envelope.ScryptN = exportScryptN
	envelope.ScryptR = exportScryptR
	envelope.ScryptP = exportScryptP
	envelope.Salt = hex.EncodeToString(salt)
	envelope.Nonce = hex.EncodeToString(nonce)
	envelope.Ciphertext = base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, plain, nil))

	raw, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("encode backup: %w", err)
	}
	return string(raw), nil
}

// Import restores notes from a backup blob, best effort: malformed entries,
// entries whose derived values fail verification, and commitments already in
// the store are skipped and counted, never aborting the batch.
func (s *NoteService) Import(ctx context.Context, blob, passphrase string) (*ImportResult, error) {
	var envelope exportEnvelope
	if err := json.Unmarshal([]byte(blob), &envelope); err != nil {
		return nil, fmt.Errorf("decode backup: %w", err)
	}

	notes := envelope.Notes
	if envelope.Encrypted {
		if passphrase == "" {
			return nil, ErrPassphraseRequired
		}
		plain, err := s.decryptExport(&envelope, passphrase)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(plain, &notes); err != nil {
			return nil, fmt.Errorf("decode decrypted notes: %w", err)
		}
	}

	result := &ImportResult{}
	for i, record := range notes {
		if record == nil || !s.importable(ctx, record, i) {
			result.Skipped++
			metrics.NotesImportedTotal.WithLabelValues("skipped").Inc()
			continue
		}
		fresh := *record
		fresh.ID = 0
		if err := s.repo.Create(ctx, &fresh); err != nil {
			s.log.WithError(err).WithField("entry", i).Warn("Failed to persist imported note")
			result.Skipped++
			metrics.NotesImportedTotal.WithLabelValues("skipped").Inc()
			continue
		}
		result.Imported++
		metrics.NotesImportedTotal.WithLabelValues("imported").Inc()
	}

	s.log.WithFields(logrus.Fields{
		"imported": result.Imported,
		"skipped":  result.Skipped,
	}).Info("Note import completed")
	return result, nil
}

// importable verifies one backup entry: decodable fields, derived values
// that match the secrets, and a commitment not already stored.
func (s *NoteService) importable(ctx context.Context, record *models.Note, entry int) bool {
	note, err := record.ToNote()
	if err != nil {
		s.log.WithError(err).WithField("entry", entry).Warn("Skipping malformed backup entry")
		return false
	}
	if !note.Recompute(s.hasher) {
		s.log.WithField("entry", entry).Warn("Skipping backup entry with mismatched derived values")
		return false
	}
	if _, err := s.repo.GetByCommitment(ctx, record.Commitment); err == nil {
		s.log.WithField("entry", entry).Debug("Skipping already-stored commitment")
		return false
	}
	return true
}

func (s *NoteService) decryptExport(envelope *exportEnvelope, passphrase string) ([]byte, error) {
	if envelope.KDF != "scrypt" {
		return nil, fmt.Errorf("unsupported kdf %q", envelope.KDF)
	}
	salt, err := hex.DecodeString(envelope.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	nonce, err := hex.DecodeString(envelope.Nonce)
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(envelope.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	key, err := scrypt.Key([]byte(passphrase), salt, envelope.ScryptN, envelope.ScryptR, envelope.ScryptP, exportScryptDKLen)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt backup (wrong passphrase?): %w", err)
	}
	return plain, nil
}

func (s *NoteService) announceNote(subject string, record *models.Note) {
	payload := events.NotePayload{
		NoteID:      record.ID,
		Commitment:  record.Commitment,
		TokenSymbol: record.TokenSymbol,
		Amount:      record.Amount,
		LeafIndex:   record.LeafIndex,
		Spent:       record.Spent,
		SpentAt:     record.SpentAt,
		OccurredAt:  time.Now().UTC(),
	}
	if s.nats != nil {
		if err := s.nats.Publish(subject, payload); err != nil {
			s.log.WithError(err).WithField("subject", subject).Warn("Failed to publish note event")
		}
	}
	if s.hub != nil {
		s.hub.Broadcast(subject, payload)
	}
}
