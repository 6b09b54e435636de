package notifications

import (
	"context"
	"fmt"
	"sync"
)

// CommentFeed fans out comment-created events to preloaded-query handles.
// Local subscribers receive events published in-process immediately; events
// from peer instances arrive through the Redis pattern subscriber wiring.
type CommentFeed struct {
	mu       sync.RWMutex
	subs     map[uint]map[chan []byte]struct{}
	notifier *Notifier
	closed   bool
}

// NewCommentFeed creates a feed. The notifier may be nil (tests, no Redis);
// fanout is then purely in-process.
func NewCommentFeed(notifier *Notifier) *CommentFeed {
	return &CommentFeed{
		subs:     make(map[uint]map[chan []byte]struct{}),
		notifier: notifier,
	}
}

// Name returns a human-readable identifier for this feed.
func (f *CommentFeed) Name() string { return "comment feed" }

// Publish delivers a comment payload to local subscribers for postID and
// forwards it to peer instances via Redis.
func (f *CommentFeed) Publish(ctx context.Context, postID uint, payload []byte) {
	f.dispatch(postID, payload)
	if f.notifier != nil {
		_ = f.notifier.PublishComment(ctx, postID, string(payload))
	}
}

// Subscribe returns a channel of comment payloads for postID plus a cancel
// function. The channel is buffered; slow consumers drop events rather than
// blocking the publisher.
func (f *CommentFeed) Subscribe(postID uint) (<-chan []byte, func()) {
	ch := make(chan []byte, 16)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	m, ok := f.subs[postID]
	if !ok {
		m = make(map[chan []byte]struct{})
		f.subs[postID] = m
	}
	m[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if m, ok := f.subs[postID]; ok {
			if _, exists := m[ch]; exists {
				delete(m, ch)
				close(ch)
			}
			if len(m) == 0 {
				delete(f.subs, postID)
			}
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

func (f *CommentFeed) dispatch(postID uint, payload []byte) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for ch := range f.subs[postID] {
		select {
		case ch <- payload:
		default:
		}
	}
}

// StartWiring forwards comment events published by peer instances into the
// local subscriber channels.
func (f *CommentFeed) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, func(channel, payload string) {
		var postID uint
		if _, err := fmt.Sscanf(channel, "comments:post:%d", &postID); err != nil {
			return
		}
		f.dispatch(postID, []byte(payload))
	})
}

// Shutdown closes all subscriber channels.
func (f *CommentFeed) Shutdown(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for postID, m := range f.subs {
		for ch := range m {
			close(ch)
		}
		delete(f.subs, postID)
	}
	return nil
}
