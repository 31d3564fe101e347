package studio

import (
	"errors"
	"time"
)

var (
	ErrNoSource      = errors.New("no product image uploaded")
	ErrInvalidSource = errors.New("invalid product image")
	ErrUnknownNode   = errors.New("unknown node")
	ErrNodeBusy      = errors.New("node is already processing")
	ErrHistoryIndex  = errors.New("history index out of range")
	ErrNoImage       = errors.New("node has no image yet")
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

type HistoryEntry struct {
	ImageURL     string
	CustomPrompt string
	Timestamp    time.Time
}

// NodeSnapshot is a read-only copy of one node; History is oldest first.
type NodeSnapshot struct {
	ID           string
	Title        string
	Description  string
	AspectRatio  AspectRatio
	Status       Status
	ImageURL     string
	CustomPrompt string
	History      []HistoryEntry
}

// node is not safe for concurrent use; Session serializes access.
type node struct {
	tmpl Template

	status Status
	// customPrompt is the instruction of the latest trigger, imagePrompt the
	// one that produced imageURL. They differ while a generation is in flight.
	customPrompt string
	imageURL     string
	imagePrompt  string
	history      []HistoryEntry
}

func newNode(t Template) *node {
	return &node{tmpl: t, status: StatusIdle}
}

func (n *node) reset() {
	n.status = StatusIdle
	n.customPrompt = ""
	n.imageURL = ""
	n.imagePrompt = ""
	n.history = nil
}

func (n *node) begin(instruction string) error {
	if n.status == StatusProcessing {
		return ErrNodeBusy
	}
	n.status = StatusProcessing
	n.customPrompt = instruction
	return nil
}

func (n *node) succeed(imageURL string, now time.Time, limit int) {
	if n.imageURL != "" {
		n.push(HistoryEntry{ImageURL: n.imageURL, CustomPrompt: n.imagePrompt, Timestamp: now}, limit)
	}
	n.imageURL = imageURL
	n.imagePrompt = n.customPrompt
	n.status = StatusCompleted
}

func (n *node) fail() {
	n.status = StatusError
}

// revert moves history[i] back to the display; the image being replaced is
// kept as the newest history entry.
func (n *node) revert(i int, now time.Time, limit int) error {
	if n.status == StatusProcessing {
		return ErrNodeBusy
	}
	if i < 0 || i >= len(n.history) {
		return ErrHistoryIndex
	}

	entry := n.history[i]
	n.history = append(n.history[:i:i], n.history[i+1:]...)
	if n.imageURL != "" {
		n.push(HistoryEntry{ImageURL: n.imageURL, CustomPrompt: n.imagePrompt, Timestamp: now}, limit)
	}

	n.imageURL = entry.ImageURL
	n.imagePrompt = entry.CustomPrompt
	n.customPrompt = entry.CustomPrompt
	n.status = StatusCompleted
	return nil
}

func (n *node) push(entry HistoryEntry, limit int) {
	n.history = append(n.history, entry)
	if limit > 0 && len(n.history) > limit {
		n.history = n.history[len(n.history)-limit:]
	}
}

func (n *node) snapshot() NodeSnapshot {
	history := make([]HistoryEntry, len(n.history))
	copy(history, n.history)

	return NodeSnapshot{
		ID:           n.tmpl.ID,
		Title:        n.tmpl.Title,
		Description:  n.tmpl.Description,
		AspectRatio:  n.tmpl.AspectRatio,
		Status:       n.status,
		ImageURL:     n.imageURL,
		CustomPrompt: n.customPrompt,
		History:      history,
	}
}
