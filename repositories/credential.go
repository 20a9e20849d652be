//go:generate go run go.uber.org/mock/mockgen -source=credential.go -destination=../mocks/mock_credential_repository.go -package=mocks
package repositories

import (
	"fmt"
	"kuro/contract"
	"kuro/errors"
	"kuro/store"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// credentialPrefix keeps credentials out of every live store path.
const credentialPrefix = "auth:"

type ICredentialRepository interface {
	CreateUser(email, hashedPassword string) (string, error)
	GetUserByEmail(email string) (Credential, error)
}

type CredentialRepository struct {
	db *badger.DB
}

func NewCredentialRepository(db *badger.DB) ICredentialRepository {
	return &CredentialRepository{db: db}
}

// Credential is private to the authentication side. The participant id it
// holds is the one written to users/{id}.
type Credential struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// CreateUser stores a new credential and returns the generated participant id.
func (r CredentialRepository) CreateUser(email, hashedPassword string) (string, error) {
	newID := uuid.NewString()
	data, err := store.Encode(contract.Document{
		"id":           newID,
		"email":        email,
		"passwordHash": hashedPassword,
		"createdAt":    time.Now().UnixMilli(),
	})
	if err != nil {
		return "", err
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		key := []byte(credentialPrefix + email)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return "", err
	}
	return newID, nil
}

// GetUserByEmail returns badger.ErrKeyNotFound for an unknown email.
func (r CredentialRepository) GetUserByEmail(email string) (Credential, error) {
	var doc contract.Document
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(credentialPrefix + email))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			doc, err = store.Decode(val)
			return err
		})
	})
	if err != nil {
		return Credential{}, err
	}
	return toCredential(doc)
}

func toCredential(doc contract.Document) (Credential, error) {
	id, _ := doc["id"].(string)
	email, _ := doc["email"].(string)
	hash, _ := doc["passwordHash"].(string)
	if id == "" || hash == "" {
		return Credential{}, fmt.Errorf("corrupted credential for %q", email)
	}
	createdAt, _ := doc["createdAt"].(float64)
	return Credential{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.UnixMilli(int64(createdAt)).UTC(),
	}, nil
}
