package studio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"product-studio-ai/internal/gemini"
)

type Generator interface {
	GenerateImage(ctx context.Context, req gemini.ImageRequest) (string, error)
}

// Source is the uploaded product photo.
type Source struct {
	DataBase64 string
	MimeType   string
	Filename   string
}

type Options struct {
	Generator Generator
	Logger    *slog.Logger

	// HistoryLimit caps entries per node; 0 keeps everything.
	HistoryLimit int

	// OnChange receives every node transition. It runs outside the session
	// lock and may be called from several goroutines.
	OnChange func(NodeSnapshot)

	Now func() time.Time
}

type Session struct {
	mu sync.Mutex

	gen          Generator
	logger       *slog.Logger
	historyLimit int
	onChange     func(NodeSnapshot)
	now          func() time.Time

	source *Source
	// epoch changes with every source; results from older epochs are dropped.
	epoch uint64
	nodes []*node
}

func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	nodes := make([]*node, 0, len(templates))
	for _, t := range templates {
		nodes = append(nodes, newNode(t))
	}

	return &Session{
		gen:          opts.Generator,
		logger:       logger,
		historyLimit: opts.HistoryLimit,
		onChange:     opts.OnChange,
		now:          now,
		nodes:        nodes,
	}
}

// SetSource replaces the product photo and resets every node.
func (s *Session) SetSource(src Source) error {
	src.DataBase64 = strings.TrimSpace(src.DataBase64)
	src.MimeType = strings.TrimSpace(src.MimeType)
	if src.DataBase64 == "" {
		return fmt.Errorf("%w: empty payload", ErrInvalidSource)
	}
	if src.MimeType == "" {
		return fmt.Errorf("%w: missing mime type", ErrInvalidSource)
	}

	s.mu.Lock()
	s.source = &src
	s.epoch++
	snaps := make([]NodeSnapshot, 0, len(s.nodes))
	for _, n := range s.nodes {
		n.reset()
		snaps = append(snaps, n.snapshot())
	}
	s.mu.Unlock()

	s.logger.Info("source replaced", "mime", src.MimeType, "filename", src.Filename)
	s.notify(snaps...)
	return nil
}

func (s *Session) Source() (Source, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.source == nil {
		return Source{}, false
	}
	return *s.source, true
}

func (s *Session) Nodes() []NodeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]NodeSnapshot, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n.snapshot())
	}
	return out
}

func (s *Session) Node(id string) (NodeSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.lookupLocked(id)
	if n == nil {
		return NodeSnapshot{}, false
	}
	return n.snapshot(), true
}

// Run tracks generations that have already moved their nodes to processing.
type Run struct {
	g     errgroup.Group
	nodes []string
}

// NodeIDs lists the nodes this run started.
func (r *Run) NodeIDs() []string {
	return append([]string(nil), r.nodes...)
}

// Wait blocks until every started generation has settled, successful or not.
func (r *Run) Wait() {
	_ = r.g.Wait()
}

// StartAll triggers a default generation on every node that is not already
// processing. Busy nodes are skipped.
func (s *Session) StartAll(ctx context.Context) (*Run, error) {
	s.mu.Lock()
	if s.source == nil {
		s.mu.Unlock()
		return nil, ErrNoSource
	}

	src := *s.source
	epoch := s.epoch
	started := make([]*node, 0, len(s.nodes))
	snaps := make([]NodeSnapshot, 0, len(s.nodes))
	for _, n := range s.nodes {
		if err := n.begin(""); err != nil {
			s.logger.Warn("node skipped", "node", n.tmpl.ID, "err", err)
			continue
		}
		started = append(started, n)
		snaps = append(snaps, n.snapshot())
	}
	s.mu.Unlock()

	s.notify(snaps...)

	run := &Run{}
	for _, n := range started {
		n := n
		run.nodes = append(run.nodes, n.tmpl.ID)
		prompt := BuildPrompt(n.tmpl.ID, "", false)
		run.g.Go(func() error {
			s.generate(ctx, epoch, src, n, prompt)
			return nil
		})
	}
	return run, nil
}

// StartOne triggers a single node, optionally with an edit instruction.
func (s *Session) StartOne(ctx context.Context, nodeID, instruction string, areaSelected bool) (*Run, error) {
	instruction = strings.TrimSpace(instruction)

	s.mu.Lock()
	if s.source == nil {
		s.mu.Unlock()
		return nil, ErrNoSource
	}
	n := s.lookupLocked(nodeID)
	if n == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, nodeID)
	}
	if err := n.begin(instruction); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", nodeID, err)
	}
	src := *s.source
	epoch := s.epoch
	snap := n.snapshot()
	s.mu.Unlock()

	s.notify(snap)

	prompt := BuildPrompt(n.tmpl.ID, instruction, areaSelected)
	run := &Run{nodes: []string{n.tmpl.ID}}
	run.g.Go(func() error {
		s.generate(ctx, epoch, src, n, prompt)
		return nil
	})
	return run, nil
}

// RunAll generates every node and returns once all of them have settled.
func (s *Session) RunAll(ctx context.Context) error {
	run, err := s.StartAll(ctx)
	if err != nil {
		return err
	}
	run.Wait()
	return nil
}

// RunOne generates a single node and returns its settled snapshot. A failed
// generation is reported through the snapshot status, not the error.
func (s *Session) RunOne(ctx context.Context, nodeID, instruction string, areaSelected bool) (NodeSnapshot, error) {
	run, err := s.StartOne(ctx, nodeID, instruction, areaSelected)
	if err != nil {
		return NodeSnapshot{}, err
	}
	run.Wait()

	snap, _ := s.Node(nodeID)
	return snap, nil
}

// Revert puts history entry index back on display.
func (s *Session) Revert(nodeID string, index int) (NodeSnapshot, error) {
	s.mu.Lock()
	n := s.lookupLocked(nodeID)
	if n == nil {
		s.mu.Unlock()
		return NodeSnapshot{}, fmt.Errorf("%w: %s", ErrUnknownNode, nodeID)
	}
	if err := n.revert(index, s.now(), s.historyLimit); err != nil {
		s.mu.Unlock()
		return NodeSnapshot{}, fmt.Errorf("%s: %w", nodeID, err)
	}
	snap := n.snapshot()
	s.mu.Unlock()

	s.notify(snap)
	return snap, nil
}

func (s *Session) generate(ctx context.Context, epoch uint64, src Source, n *node, prompt string) {
	start := time.Now()
	var (
		imageURL string
		err      error
	)
	if s.gen == nil {
		err = errors.New("no image generator configured")
	} else {
		imageURL, err = s.gen.GenerateImage(ctx, gemini.ImageRequest{
			Image:       gemini.ImageInput{DataBase64: src.DataBase64, MimeType: src.MimeType},
			Prompt:      prompt,
			AspectRatio: string(n.tmpl.AspectRatio),
		})
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.logger.Info("stale generation dropped", "node", n.tmpl.ID)
		return
	}
	if err != nil {
		n.fail()
	} else {
		n.succeed(imageURL, s.now(), s.historyLimit)
	}
	snap := n.snapshot()
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("generation failed", "node", n.tmpl.ID, "title", n.tmpl.Title, "err", err)
	} else {
		s.logger.Info("generation completed", "node", n.tmpl.ID, "dur_ms", time.Since(start).Milliseconds())
	}
	s.notify(snap)
}

func (s *Session) lookupLocked(id string) *node {
	for _, n := range s.nodes {
		if n.tmpl.ID == id {
			return n
		}
	}
	return nil
}

func (s *Session) notify(snaps ...NodeSnapshot) {
	if s.onChange == nil {
		return
	}
	for _, snap := range snaps {
		s.onChange(snap)
	}
}
