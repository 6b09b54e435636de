// Package notifications provides real-time presence and comment fanout.
package notifications

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"

	"github.com/redis/go-redis/v9"
)

// Notifier provides helpers to publish real-time events into Redis channels.
// All publish methods are no-ops when Redis is unavailable; in-process
// delivery still happens through the hubs and feeds directly.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishPresence sends a presence roster payload to a post room channel.
func (n *Notifier) PublishPresence(ctx context.Context, roomID uint, payload string) error {
	if n.rdb == nil {
		return nil
	}
	channel := fmt.Sprintf("presence:room:%d", roomID)
	return n.rdb.Publish(ctx, channel, payload).Err()
}

// PublishComment sends a comment-created payload to a post channel.
func (n *Notifier) PublishComment(ctx context.Context, postID uint, payload string) error {
	if n.rdb == nil {
		return nil
	}
	channel := fmt.Sprintf("comments:post:%d", postID)
	return n.rdb.Publish(ctx, channel, payload).Err()
}

// StartPatternSubscriber subscribes to the presence and comment patterns and
// calls onMessage for each incoming message across instances.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "presence:room:*", "comments:post:*")
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in PatternSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
