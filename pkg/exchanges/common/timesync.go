package common

import (
	"context"
	"log"
	"sync"
	"time"
)

// TimeSync tracks the offset between local and exchange clocks so signed
// timestamps stay inside the venue's recvWindow.
type TimeSync struct {
	getServerTime func() (int64, error)
	offset        int64 // ms, server minus local
	lastSync      time.Time
	interval      time.Duration
	mu            sync.RWMutex
}

func NewTimeSync(getServerTime func() (int64, error)) *TimeSync {
	return &TimeSync{
		getServerTime: getServerTime,
		interval:      30 * time.Minute,
	}
}

// Start performs an initial sync and keeps resyncing until ctx is done.
func (ts *TimeSync) Start(ctx context.Context) {
	if err := ts.Sync(); err != nil {
		log.Printf("timesync: initial sync failed: %v", err)
	}

	go func() {
		ticker := time.NewTicker(ts.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ts.Sync(); err != nil {
					log.Printf("timesync: sync failed: %v", err)
				}
			}
		}
	}()
}

// Sync measures the clock offset against the exchange, assuming symmetric
// network latency.
func (ts *TimeSync) Sync() error {
	before := time.Now().UnixMilli()
	serverTime, err := ts.getServerTime()
	if err != nil {
		return err
	}
	after := time.Now().UnixMilli()
	local := before + (after-before)/2

	ts.mu.Lock()
	ts.offset = serverTime - local
	ts.lastSync = time.Now()
	ts.mu.Unlock()
	return nil
}

// Now returns the current epoch milliseconds adjusted for server offset.
func (ts *TimeSync) Now() int64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return time.Now().UnixMilli() + ts.offset
}

// Offset returns the current offset in milliseconds.
func (ts *TimeSync) Offset() int64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.offset
}
