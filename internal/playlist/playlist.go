// SPDX-License-Identifier: MIT

// Package playlist holds the final ordered media list and its circular cursor.
package playlist

import (
	"errors"
	"sync"

	"github.com/theothernt/AerialViews-sub000/internal/media"
)

// ErrEmpty is returned by cursor operations on a playlist with no items.
// Callers are expected to check Size first.
var ErrEmpty = errors.New("playlist is empty")

// Playlist is a fixed sequence of items with a circular cursor.
type Playlist struct {
	mu       sync.Mutex
	items    []media.Item
	position int
}

// New copies items into a new playlist with the cursor at the first item.
func New(items []media.Item) *Playlist {
	cp := make([]media.Item, len(items))
	copy(cp, items)
	return &Playlist{items: cp}
}

// Size returns the number of items.
func (p *Playlist) Size() int {
	return len(p.items)
}

// Next returns the item at the cursor, then advances it.
func (p *Playlist) Next() (media.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.items) == 0 {
		return media.Item{}, ErrEmpty
	}
	it := p.items[p.position]
	p.position = (p.position + 1) % len(p.items)
	return it, nil
}

// Previous moves the cursor back one item, then returns the item there.
func (p *Playlist) Previous() (media.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.items) == 0 {
		return media.Item{}, ErrEmpty
	}
	p.position--
	if p.position < 0 {
		p.position = len(p.items) - 1
	}
	return p.items[p.position], nil
}

// Peek returns the item Next would return without moving the cursor.
func (p *Playlist) Peek() (media.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.items) == 0 {
		return media.Item{}, ErrEmpty
	}
	return p.items[p.position], nil
}

// Position returns the current cursor index.
func (p *Playlist) Position() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// Items returns a copy of the ordered items.
func (p *Playlist) Items() []media.Item {
	cp := make([]media.Item, len(p.items))
	copy(cp, p.items)
	return cp
}
