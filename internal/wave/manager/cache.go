package manager

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/cta-wave/wave/internal/wave/session"
)

// sessionCache holds the sessions the manager has loaded. Unfinished sessions stay until
// they are deleted; finished ones only change by deletion, so they are kept in a bounded
// LRU and reloaded from the store if evicted.
// It is not safe for concurrent use on its own; the manager's mutex guards it.
type sessionCache struct {
	active  *cache.Cache
	archive *lru.Cache
}

func newSessionCache(archiveSize int) (*sessionCache, error) {
	archive, err := lru.New(archiveSize)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &sessionCache{
		active:  cache.New(cache.NoExpiration, 0),
		archive: archive,
	}, nil
}

func (c *sessionCache) get(token string) (*session.Session, bool) {
	if sess, ok := c.active.Get(token); ok {
		return sess.(*session.Session), true
	}
	if sess, ok := c.archive.Get(token); ok {
		return sess.(*session.Session), true
	}
	return nil, false
}

func (c *sessionCache) put(sess *session.Session) {
	if sess.IsTerminal() {
		c.active.Delete(sess.Token)
		c.archive.Add(sess.Token, sess)
		return
	}
	c.archive.Remove(sess.Token)
	c.active.Set(sess.Token, sess, cache.NoExpiration)
}

func (c *sessionCache) remove(token string) {
	c.active.Delete(token)
	c.archive.Remove(token)
}

func (c *sessionCache) countByStatus() map[session.Status]int {
	counts := map[session.Status]int{}
	for _, item := range c.active.Items() {
		counts[item.Object.(*session.Session).Status]++
	}
	for _, key := range c.archive.Keys() {
		if sess, ok := c.archive.Peek(key); ok {
			counts[sess.(*session.Session).Status]++
		}
	}
	return counts
}
