package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/golang/glog"
	"github.com/microcosm-cc/bluemonday"

	"muro/domain"
	"muro/store"
)

// snapshotLimit bounds the initial history pushed to a new connection.
const snapshotLimit = 50

const repostMarker = "\U0001f501 Repost: "

type errorPayload struct {
	Message string `json:"message"`
}

// Feed routes inbound feed events to their mutation handlers and
// broadcasts the outcomes through the hub.
//
// Every handler re-reads the connection's session before touching the
// store. Failures never terminate the connection: creation errors go
// back to the sender as a postError, everything else is logged and
// dropped, since the client offers no control that could have caused it.
type Feed struct {
	Hub   *Hub
	Store store.PostStore

	// Clean strips anything markup-significant from free text before it
	// is persisted. Applied to post content and comment text alike.
	Clean func(string) string
}

func NewFeed(hub *Hub, st store.PostStore) *Feed {
	strict := bluemonday.StrictPolicy()
	return &Feed{
		Hub:   hub,
		Store: st,
		Clean: func(s string) string {
			return strings.TrimSpace(strict.Sanitize(s))
		},
	}
}

// SendSnapshot pushes the most recent posts, newest first, to one
// connection. A point-in-time read; updates that land afterwards reach
// the connection through broadcasts like everyone else.
func (f *Feed) SendSnapshot(ctx context.Context, c *Conn) {
	posts, err := f.Store.FindRecent(ctx, snapshotLimit)
	if err != nil {
		glog.Errorf("load posts: %v", err)
		return
	}
	c.emit("loadAllPosts", posts)
}

func (f *Feed) Dispatch(ctx context.Context, c *Conn, env envelope) {
	switch env.Event {
	case "newPost":
		f.newPost(ctx, c, env.Data)
	case "likePost":
		f.likePost(ctx, c, env.Data)
	case "repostPost":
		f.repostPost(ctx, c, env.Data)
	case "commentPost":
		f.commentPost(ctx, c, env.Data)
	default:
		glog.Warningf("unknown event %q", env.Event)
	}
}

func (f *Feed) newPost(ctx context.Context, c *Conn, data json.RawMessage) {
	session := c.Session()
	if session == nil {
		c.emit("postError", errorPayload{Message: "Not authorized."})
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		c.emit("postError", errorPayload{Message: "Bad request."})
		return
	}

	content := f.Clean(req.Content)
	if content == "" {
		c.emit("postError", errorPayload{Message: "Empty content."})
		return
	}
	if utf8.RuneCountInString(content) > domain.MaxContentLen {
		c.emit("postError", errorPayload{Message: "Content too long."})
		return
	}

	post, err := f.Store.Insert(ctx, domain.Post{
		Author:  session.Username,
		Content: content,
	})
	if err != nil {
		glog.Errorf("newPost: %v", err)
		c.emit("postError", errorPayload{Message: "Could not create post."})
		return
	}

	f.Hub.Broadcast("postCreated", post)
}

func (f *Feed) likePost(ctx context.Context, c *Conn, data json.RawMessage) {
	if c.Session() == nil {
		return
	}

	var postID string
	if err := json.Unmarshal(data, &postID); err != nil || postID == "" {
		return
	}

	post, err := f.Store.FindByID(ctx, postID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			glog.Errorf("likePost %s: %v", postID, err)
		}
		return
	}

	// Read-modify-write, not an atomic increment: two likes for the same
	// post on different connections can both read the old count and
	// collapse into one.
	post.Likes++
	post, err = f.Store.Save(ctx, post)
	if err != nil {
		glog.Errorf("likePost %s: %v", postID, err)
		return
	}

	f.Hub.Broadcast("postUpdated", post)
}

func (f *Feed) repostPost(ctx context.Context, c *Conn, data json.RawMessage) {
	session := c.Session()
	if session == nil {
		return
	}

	var postID string
	if err := json.Unmarshal(data, &postID); err != nil || postID == "" {
		return
	}

	original, err := f.Store.FindByID(ctx, postID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			glog.Errorf("repostPost %s: %v", postID, err)
		}
		return
	}

	original.Reposts++
	original, err = f.Store.Save(ctx, original)
	if err != nil {
		glog.Errorf("repostPost %s: %v", postID, err)
		return
	}

	repost, err := f.Store.Insert(ctx, domain.Post{
		Author:  session.Username,
		Content: repostMarker + original.Content,
	})
	if err != nil {
		glog.Errorf("repostPost %s: %v", postID, err)
		return
	}

	f.Hub.Broadcast("postUpdated", original)
	f.Hub.Broadcast("postCreated", repost)
}

func (f *Feed) commentPost(ctx context.Context, c *Conn, data json.RawMessage) {
	session := c.Session()
	if session == nil {
		return
	}

	var req struct {
		PostID string `json:"postId"`
		Text   string `json:"text"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.PostID == "" {
		return
	}

	post, err := f.Store.FindByID(ctx, req.PostID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			glog.Errorf("commentPost %s: %v", req.PostID, err)
		}
		return
	}

	post.Comments = append(post.Comments, domain.Comment{
		Author: session.Username,
		Text:   f.Clean(req.Text),
	})
	post, err = f.Store.Save(ctx, post)
	if err != nil {
		glog.Errorf("commentPost %s: %v", req.PostID, err)
		return
	}

	f.Hub.Broadcast("postUpdated", post)
}
