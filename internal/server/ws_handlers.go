package server

import (
	"context"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// wsViewer authenticates a websocket connection from the session cookie or,
// for non-browser clients, a token query parameter.
func (s *Server) wsViewer(conn *websocket.Conn) (uint, bool) {
	token := conn.Cookies(sessionCookie)
	if token == "" {
		token = conn.Query("token")
	}
	return s.tokens.Resolve(token)
}

// wsPostID parses the :postId param of a websocket route.
func wsPostID(conn *websocket.Conn) (uint, bool) {
	id, err := strconv.ParseUint(conn.Params("postId"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// PresenceHandler joins the viewer to a post's presence room. The hub pushes
// a roster event to every member whenever the room's membership changes, so
// the page can show who else is reading the post right now.
func (s *Server) PresenceHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		viewerID, ok := s.wsViewer(conn)
		if !ok {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		postID, ok := wsPostID(conn)
		if !ok {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid post ID"}`))
			_ = conn.Close()
			return
		}

		client, err := s.presenceHub.Register(postID, viewerID, conn)
		if err != nil {
			log.Printf("presence register failed for viewer %d: %v", viewerID, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		// Start write pump in a goroutine; read pump blocks until the peer
		// disconnects and unregisters the client on exit.
		go client.WritePump()
		client.ReadPump()
	})
}

// CommentStreamHandler streams new comments on a post to the page as they
// are created, on this instance or (via Redis) on any other.
func (s *Server) CommentStreamHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		if _, ok := s.wsViewer(conn); !ok {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		postID, ok := wsPostID(conn)
		if !ok {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid post ID"}`))
			_ = conn.Close()
			return
		}

		updates, cancel := s.commentFeed.Subscribe(postID)
		defer cancel()

		ctx, stop := context.WithCancel(context.Background())
		defer stop()

		// Drain the peer so pings and close frames are processed; any read
		// error ends the stream.
		go func() {
			defer stop()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case payload, open := <-updates:
				if !open {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					return
				}
			}
		}
	})
}
