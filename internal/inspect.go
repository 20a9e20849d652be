package internal

import (
	"fmt"
	"kuro/contract"
	"kuro/domain"
	"kuro/store"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// InspectRow is one badger entry as shown by the inspector.
type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	EntityID  string
	Detail    string
}

type RowMapper func(key string, val []byte) InspectRow

// Scan maps every entry under prefix, in key order. An empty prefix scans everything.
func Scan(db *badger.DB, prefix string, mapper RowMapper) ([]InspectRow, error) {
	if mapper == nil {
		mapper = DocumentMapper
	}
	rows := make([]InspectRow, 0)
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(val []byte) error {
				rows = append(rows, mapper(key, val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return rows, err
}

// DocumentMapper decodes participant and message documents. Credentials are
// never decoded, only their size is shown.
func DocumentMapper(key string, val []byte) InspectRow {
	row := InspectRow{
		Key:       key,
		Type:      "RAW",
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}
	if strings.HasPrefix(key, "auth:") {
		row.Type = "AUTH"
		return row
	}

	doc, err := store.Decode(val)
	if err != nil {
		row.Detail = fmt.Sprintf("undecodable: %v", err)
		return row
	}
	parts := strings.Split(key, "/")
	switch {
	case len(parts) == 2 && parts[0] == domain.UsersCollection:
		p := store.DecodeParticipant(contract.Child{ID: parts[1], Doc: doc})
		row.Type = "USER"
		row.EntityID = shorten(p.ID)
		row.Detail = p.Name()
		if p.LastOnline != nil {
			row.Timestamp = p.LastOnline.Format("15:04:05")
		}
	case len(parts) == 3 && parts[0] == domain.MessagesCollection:
		m := store.DecodeMessage(contract.Child{ID: parts[2], Doc: doc})
		row.Type = "MESSAGE"
		row.EntityID = shorten(m.SenderID)
		row.Detail = m.Text
		if m.SentAt != nil {
			row.Timestamp = m.SentAt.Format("15:04:05")
		}
	}
	return row
}

// shorten keeps the first 8 characters of an id for readability
func shorten(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
