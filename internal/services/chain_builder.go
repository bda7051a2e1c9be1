package services

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"creator-ledger/internal/models"

	"github.com/google/uuid"
)

// blockHashInput fixes the field order of the hashed bytes
type blockHashInput struct {
	Data         models.BlockData `json:"data"`
	PreviousHash string           `json:"previousHash"`
	Nonce        int64            `json:"nonce"`
	Timestamp    int64            `json:"timestamp"`
}

// BuildBlock builds a block for data chained to previousHash. The block has no
// sequence yet; the chain appender assigns it.
func BuildBlock(data models.BlockData, previousHash string, at time.Time) (*models.ChainBlock, error) {
	nonce, err := newNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal block data: %w", err)
	}

	block := &models.ChainBlock{
		ID:            uuid.NewString(),
		PreviousHash:  previousHash,
		TransactionID: data.TransactionID,
		Event:         data.Event,
		Data:          payload,
		Nonce:         nonce,
		Timestamp:     at.UnixMilli(),
	}
	hash, err := hashBlock(data, previousHash, block.Nonce, block.Timestamp)
	if err != nil {
		return nil, err
	}
	block.BlockHash = hash
	return block, nil
}

// ComputeBlockHash recomputes the hash of a stored block from its content.
// Stored data is decoded and re-encoded so storage-side JSON normalisation
// (jsonb key order, whitespace) does not change the result. Data that does
// not decode back to exactly the keys the builder writes is rejected with
// ErrIntegrity.
func ComputeBlockHash(block *models.ChainBlock) (string, error) {
	data, err := DecodeBlockData(block)
	if err != nil {
		return "", err
	}
	if err := checkCanonicalData(block, data); err != nil {
		return "", err
	}
	return hashBlock(data, block.PreviousHash, block.Nonce, block.Timestamp)
}

// checkCanonicalData compares the stored data generically against the
// encoding of its decoded form. Unknown keys and case variants of known keys
// are dropped or folded by the struct decoder, so they only show up here.
func checkCanonicalData(block *models.ChainBlock, data models.BlockData) error {
	if err := rejectDuplicateKeys(json.NewDecoder(bytes.NewReader(block.Data))); err != nil {
		return integrityError("data of block %s: %v", block.ID, err)
	}
	canonical, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal block data: %w", err)
	}
	var stored, expected interface{}
	if err := json.Unmarshal(block.Data, &stored); err != nil {
		return fmt.Errorf("failed to decode data of block %s: %w", block.ID, err)
	}
	if err := json.Unmarshal(canonical, &expected); err != nil {
		return fmt.Errorf("failed to decode canonical data: %w", err)
	}
	if !reflect.DeepEqual(stored, expected) {
		return integrityError("data of block %s carries keys outside the block schema", block.ID)
	}
	return nil
}

// rejectDuplicateKeys walks one JSON value and fails on an object that repeats a key
func rejectDuplicateKeys(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil
	}
	switch delim {
	case '{':
		seen := make(map[string]struct{})
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return err
			}
			key, _ := keyTok.(string)
			if _, dup := seen[key]; dup {
				return fmt.Errorf("duplicate key %q", key)
			}
			seen[key] = struct{}{}
			if err := rejectDuplicateKeys(dec); err != nil {
				return err
			}
		}
	case '[':
		for dec.More() {
			if err := rejectDuplicateKeys(dec); err != nil {
				return err
			}
		}
	}
	// closing delimiter
	_, err = dec.Token()
	return err
}

// DecodeBlockData unmarshals the data column of a block
func DecodeBlockData(block *models.ChainBlock) (models.BlockData, error) {
	var data models.BlockData
	if err := json.Unmarshal(block.Data, &data); err != nil {
		return models.BlockData{}, fmt.Errorf("failed to decode data of block %s: %w", block.ID, err)
	}
	return data, nil
}

func hashBlock(data models.BlockData, previousHash string, nonce, timestamp int64) (string, error) {
	raw, err := json.Marshal(blockHashInput{
		Data:         data,
		PreviousHash: previousHash,
		Nonce:        nonce,
		Timestamp:    timestamp,
	})
	if err != nil {
		return "", fmt.Errorf("failed to serialize block: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// newNonce returns a random non-negative int64
func newNonce() (int64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[:]) >> 1), nil
}
