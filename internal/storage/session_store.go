// Package storage persists session state between runs: calibration
// corners, the detected-move journal and a PGN snapshot of the game.
// Persistence is optional for the pipeline itself; the store exists so
// a session can resume without reclicking the board corners.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// calibrationBucket holds the saved corner set and baseline gain.
	calibrationBucket = "calibration"

	// movesBucket is the append-only journal of detected moves.
	movesBucket = "moves"

	// metaBucket holds the PGN snapshot and bookkeeping.
	metaBucket = "meta"

	calibrationKey = "current"
	pgnKey         = "pgn"
)

// Calibration is the persisted corner set with the contrast baseline
// that was in effect when it was saved.
type Calibration struct {
	Corners  [4]image.Point `json:"corners"`
	Baseline float64        `json:"baseline"`
	SavedAt  int64          `json:"saved_at"`
}

// MoveRecord is one detected move in the journal.
type MoveRecord struct {
	UCI        string  `json:"uci"`
	Gain       float64 `json:"gain"`
	Attempts   int     `json:"attempts"`
	DetectedAt int64   `json:"detected_at"`
}

// SessionStore manages session persistence on a bbolt database.
type SessionStore struct {
	db *bbolt.DB
}

// Open opens (or creates) the session database at path.
func Open(path string) (*SessionStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{calibrationBucket, movesBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SessionStore{db: db}, nil
}

// SaveCalibration stores the corner set and baseline gain.
func (s *SessionStore) SaveCalibration(corners [4]image.Point, baseline float64) error {
	cal := Calibration{
		Corners:  corners,
		Baseline: baseline,
		SavedAt:  time.Now().Unix(),
	}

	data, err := json.Marshal(cal)
	if err != nil {
		return fmt.Errorf("failed to marshal calibration: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(calibrationBucket)).Put([]byte(calibrationKey), data)
	})
}

// LoadCalibration returns the saved calibration, or false when none
// has been saved.
func (s *SessionStore) LoadCalibration() (Calibration, bool, error) {
	var cal Calibration
	found := false

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(calibrationBucket)).Get([]byte(calibrationKey))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &cal); err != nil {
			return fmt.Errorf("failed to unmarshal calibration: %w", err)
		}
		found = true
		return nil
	})

	return cal, found, err
}

// AppendMove adds a detected move to the journal.
func (s *SessionStore) AppendMove(rec MoveRecord) error {
	if rec.DetectedAt == 0 {
		rec.DetectedAt = time.Now().Unix()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal move record: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(movesBucket))

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get sequence: %w", err)
		}

		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, data)
	})
}

// Moves returns the journal in detection order.
func (s *SessionStore) Moves() ([]MoveRecord, error) {
	var moves []MoveRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(movesBucket)).ForEach(func(_, v []byte) error {
			var rec MoveRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal move record: %w", err)
			}
			moves = append(moves, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return moves, nil
}

// SavePGN stores a PGN snapshot of the game so far.
func (s *SessionStore) SavePGN(pgn string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(metaBucket)).Put([]byte(pgnKey), []byte(pgn))
	})
}

// LoadPGN returns the stored PGN snapshot, or empty when none exists.
func (s *SessionStore) LoadPGN() (string, error) {
	var pgn string
	err := s.db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket([]byte(metaBucket)).Get([]byte(pgnKey)); data != nil {
			pgn = string(data)
		}
		return nil
	})
	return pgn, err
}

// ClearSession removes the saved calibration and move journal.
func (s *SessionStore) ClearSession() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(calibrationBucket)).Delete([]byte(calibrationKey)); err != nil {
			return err
		}
		if err := tx.DeleteBucket([]byte(movesBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(movesBucket))
		return err
	})
}

// Close closes the database.
func (s *SessionStore) Close() error {
	return s.db.Close()
}
