package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/alpha216/dwroadmap/internal/utils"
	"github.com/alpha216/dwroadmap/pkg/storage"
)

// openDB opens the configured database, creating it on first use.
func openDB(dbPath string) (*storage.DB, error) {
	absPath, err := utils.GetAbsDBPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute db path: %w", err)
	}
	utils.Log.Debugf("Using database %s", absPath)
	return storage.Open(absPath)
}

// loadRecord returns the snapshot with the given id, or the latest one when
// id is empty.
func loadRecord(ctx context.Context, db *storage.DB, id string) (*storage.Record, error) {
	var (
		rec *storage.Record
		err error
	)
	if id == "" {
		rec, err = db.LatestSnapshot(ctx)
	} else {
		rec, err = db.GetSnapshot(ctx, id)
	}
	if errors.Is(err, storage.ErrNoSnapshot) && id == "" {
		return nil, fmt.Errorf("no snapshot in the database yet, run 'dwroadmap ingest' first")
	}
	return rec, err
}

// withRecord opens the database, loads one snapshot and hands it to fn.
func withRecord(ctx context.Context, id string, fn func(rec *storage.Record) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	rec, err := loadRecord(ctx, db, id)
	if err != nil {
		return err
	}
	utils.Log.Debugf("Loaded snapshot %s from %s", rec.ID, rec.CreatedAt.Format("2006-01-02 15:04:05"))
	return fn(rec)
}
