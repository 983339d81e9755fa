package store

import (
	"crypto/rand"
	"sync"
	"time"
)

// Push ids are 20 characters: 8 encoding the millisecond timestamp, 12 of
// randomness. The alphabet is in ascending ASCII order so lexicographic id
// order extends timestamp order, which is what gives the message log its
// stable tie-break. Pushes within the same millisecond increment the previous
// random suffix instead of drawing fresh bytes, keeping same-ms ids ordered
// by insertion.
const pushAlphabet = "-0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz~"

type pushIDGenerator struct {
	mu       sync.Mutex
	lastTime int64
	lastRand [12]byte
}

var pushIDs pushIDGenerator

// NewPushID returns a fresh time-ordered child id for t.
func NewPushID(t time.Time) string {
	return pushIDs.next(t.UnixMilli())
}

func (g *pushIDGenerator) next(now int64) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if now != g.lastTime {
		g.lastTime = now
		var buf [12]byte
		if _, err := rand.Read(buf[:]); err != nil {
			// crypto/rand never fails on supported platforms; fall back to
			// a counter bump so ids stay unique regardless.
			buf = g.lastRand
		}
		for i := range buf {
			buf[i] %= 64
		}
		g.lastRand = buf
	} else {
		for i := len(g.lastRand) - 1; i >= 0; i-- {
			g.lastRand[i]++
			if g.lastRand[i] < 64 {
				break
			}
			g.lastRand[i] = 0
		}
	}

	var id [20]byte
	ts := now
	for i := 7; i >= 0; i-- {
		id[i] = pushAlphabet[ts%64]
		ts /= 64
	}
	for i, b := range g.lastRand {
		id[8+i] = pushAlphabet[b]
	}
	return string(id[:])
}
