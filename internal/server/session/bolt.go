package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var bucketSessions = []byte("sessions")

// BoltStore хранит сессии в файле BoltDB, переживая рестарт процесса
type BoltStore struct {
	db  *bbolt.DB
	now func() time.Time
}

// NewBoltStore открывает (или создает) файл BoltDB по пути dbPath
func NewBoltStore(dbPath string) (*BoltStore, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSessions); err != nil {
			return fmt.Errorf("failed to create sessions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

// Close закрывает файл БД
func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SetChallenge реализует Store
func (s *BoltStore) SetChallenge(_ context.Context, id, answer string, ttl time.Duration) error {
	return s.update(id, func(rec *record, now time.Time) {
		rec.Challenge = answer
		rec.extendTo(now.Add(ttl))
	})
}

// TakeChallenge реализует Store
func (s *BoltStore) TakeChallenge(_ context.Context, id string) (string, error) {
	var answer string

	// Ошибка из Update откатывает транзакцию, поэтому отсутствие
	// challenge возвращается через answer, а не через ErrNoChallenge
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSessions)
		if bucket == nil {
			return fmt.Errorf("sessions bucket not found")
		}

		rec, err := decodeRecord(bucket.Get([]byte(id)))
		if err != nil {
			return err
		}
		if rec == nil {
			return nil
		}
		if rec.expired(s.now()) {
			if err := bucket.Delete([]byte(id)); err != nil {
				return fmt.Errorf("failed to delete session: %w", err)
			}
			return nil
		}
		if rec.Challenge == "" {
			return nil
		}

		answer = rec.Challenge
		rec.Challenge = ""
		return putRecord(bucket, id, rec)
	})
	if err != nil {
		return "", err
	}
	if answer == "" {
		return "", ErrNoChallenge
	}

	return answer, nil
}

// Extend реализует Store
func (s *BoltStore) Extend(_ context.Context, id string, ttl time.Duration) error {
	return s.update(id, func(rec *record, now time.Time) {
		rec.ExpiresAt = now.Add(ttl)
	})
}

// Sweep реализует Store
func (s *BoltStore) Sweep(_ context.Context) (int, error) {
	removed := 0

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSessions)
		if bucket == nil {
			return fmt.Errorf("sessions bucket not found")
		}

		now := s.now()
		var expired [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			rec, err := decodeRecord(v)
			// Битые записи тоже удаляем
			if err != nil || rec.expired(now) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		// Удаление внутри ForEach не поддерживается bbolt
		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return fmt.Errorf("failed to delete session: %w", err)
			}
		}
		removed = len(expired)
		return nil
	})
	if err != nil {
		return 0, err
	}

	return removed, nil
}

// update выполняет read-modify-write одной сессии в транзакции.
// Истекшая сессия заменяется новой
func (s *BoltStore) update(id string, fn func(rec *record, now time.Time)) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSessions)
		if bucket == nil {
			return fmt.Errorf("sessions bucket not found")
		}

		now := s.now()
		rec, err := decodeRecord(bucket.Get([]byte(id)))
		if err != nil || rec == nil || rec.expired(now) {
			rec = &record{}
		}

		fn(rec, now)
		return putRecord(bucket, id, rec)
	})
}

func decodeRecord(data []byte) (*record, error) {
	if data == nil {
		return nil, nil
	}

	rec := &record{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return rec, nil
}

func putRecord(bucket *bbolt.Bucket, id string, rec *record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := bucket.Put([]byte(id), data); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}
