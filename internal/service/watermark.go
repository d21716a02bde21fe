package service

import (
	"context"
	"time"
)

// WatermarkCalculator derives the "last server update" of a user.
type WatermarkCalculator struct {
	store TaskStore
}

func NewWatermarkCalculator(store TaskStore) *WatermarkCalculator {
	return &WatermarkCalculator{store: store}
}

// LastUpdate returns the latest timestamp of the most recently touched task,
// or nil when the user has no tasks at all (the client must do a full sync).
// Tombstoned tasks count.
func (w *WatermarkCalculator) LastUpdate(ctx context.Context, userID int64) (*time.Time, error) {
	top, err := w.store.LatestTouched(ctx, userID)
	if err != nil {
		return nil, wrapStoreErr("last update", err, unavailableErr)
	}
	if top == nil {
		return nil, nil
	}
	last := top.LastTouched()
	return &last, nil
}
