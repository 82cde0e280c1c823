package reactions

import "github.com/Sajid-al-islam/plannig-poker/internal/domain"

// Deduper remembers which reaction ids a client has already processed
// so a reaction reappearing in a later newest-window snapshot is not
// replayed. One instance per client per game; not safe for concurrent
// use without external locking.
type Deduper struct {
	seen map[string]struct{}
}

// NewDeduper creates an empty deduper
func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]struct{})}
}

// Fresh returns the not-yet-processed reactions of a snapshot and
// marks them processed
func (d *Deduper) Fresh(snapshot []domain.EmojiThrow) []domain.EmojiThrow {
	fresh := make([]domain.EmojiThrow, 0, len(snapshot))
	for _, throw := range snapshot {
		if _, ok := d.seen[throw.ID]; ok {
			continue
		}
		d.seen[throw.ID] = struct{}{}
		fresh = append(fresh, throw)
	}
	return fresh
}
