// Package mediagroup collapses Telegram albums, which arrive as one update per
// photo, into a single group once no new photo has arrived for Debounce.
package mediagroup

import (
	"sync"
	"time"
)

type Item struct {
	ChatID       int64
	UserID       int64
	MediaGroupID string
	Caption      string
	FileID       string
}

type Group struct {
	ChatID  int64
	UserID  int64
	Caption string
	FileIDs []string
}

type Options struct {
	Debounce time.Duration
	OnFlush  func(Group)
}

type Aggregator struct {
	mu       sync.Mutex
	debounce time.Duration
	onFlush  func(Group)
	groups   map[groupKey]*pendingGroup
	stopped  bool
}

type groupKey struct {
	chatID       int64
	mediaGroupID string
}

type pendingGroup struct {
	group Group
	timer *time.Timer
}

func New(opts Options) *Aggregator {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 1200 * time.Millisecond
	}

	return &Aggregator{
		debounce: debounce,
		onFlush:  opts.OnFlush,
		groups:   make(map[groupKey]*pendingGroup),
	}
}

// Add reports whether the item was queued.
func (a *Aggregator) Add(item Item) bool {
	if item.MediaGroupID == "" || item.FileID == "" {
		return false
	}

	key := groupKey{chatID: item.ChatID, mediaGroupID: item.MediaGroupID}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return false
	}

	pg, ok := a.groups[key]
	if !ok {
		pg = &pendingGroup{
			group: Group{
				ChatID:  item.ChatID,
				UserID:  item.UserID,
				Caption: item.Caption,
			},
		}
		a.groups[key] = pg
	}
	pg.group.FileIDs = append(pg.group.FileIDs, item.FileID)
	if item.Caption != "" {
		pg.group.Caption = item.Caption
	}

	if pg.timer != nil {
		pg.timer.Stop()
	}
	pg.timer = time.AfterFunc(a.debounce, func() {
		a.flush(key)
	})
	return true
}

// Stop cancels pending timers and flushes whatever is queued.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	a.stopped = true
	keys := make([]groupKey, 0, len(a.groups))
	for key, pg := range a.groups {
		if pg.timer != nil {
			pg.timer.Stop()
		}
		keys = append(keys, key)
	}
	a.mu.Unlock()

	for _, key := range keys {
		a.flush(key)
	}
}

func (a *Aggregator) flush(key groupKey) {
	a.mu.Lock()
	pg, ok := a.groups[key]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.groups, key)
	group := pg.group
	onFlush := a.onFlush
	a.mu.Unlock()

	if onFlush != nil {
		onFlush(group)
	}
}
