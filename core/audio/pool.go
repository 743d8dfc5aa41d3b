package audio

import "sort"

// Channel is one live handle plus the parameters it was last commanded to.
type Channel struct {
	Handle  Handle
	TrackID string
	// Key is the layer instance id for ambience, empty otherwise.
	Key string
	// Target is the last commanded gain; -1 until the first command.
	Target float64
	// Trigger is the SFX trigger id that spawned the channel.
	Trigger uint64
}

// Pool holds the live channels per category. It is owned by one engine and
// never shared.
type Pool struct {
	music    *Channel
	ambience map[string]*Channel
	sfx      map[string]*Channel // by track id
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{
		ambience: make(map[string]*Channel),
		sfx:      make(map[string]*Channel),
	}
}

// Music returns the live music channel, if any.
func (p *Pool) Music() *Channel { return p.music }

// SetMusic installs the music channel.
func (p *Pool) SetMusic(ch *Channel) { p.music = ch }

// TakeMusic removes and returns the music channel.
func (p *Pool) TakeMusic() *Channel {
	ch := p.music
	p.music = nil
	return ch
}

// Layer looks up an ambience channel by instance id.
func (p *Pool) Layer(instanceID string) (*Channel, bool) {
	ch, ok := p.ambience[instanceID]
	return ch, ok
}

// PutLayer registers an ambience channel under its Key.
func (p *Pool) PutLayer(ch *Channel) { p.ambience[ch.Key] = ch }

// TakeLayer removes and returns an ambience channel.
func (p *Pool) TakeLayer(instanceID string) *Channel {
	ch := p.ambience[instanceID]
	delete(p.ambience, instanceID)
	return ch
}

// LayerIDs lists live ambience instance ids in a stable order.
func (p *Pool) LayerIDs() []string {
	ids := make([]string, 0, len(p.ambience))
	for id := range p.ambience {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Effect returns the live transient channel for a track.
func (p *Pool) Effect(trackID string) (*Channel, bool) {
	ch, ok := p.sfx[trackID]
	return ch, ok
}

// PutEffect registers a transient channel under its track id.
func (p *Pool) PutEffect(ch *Channel) { p.sfx[ch.TrackID] = ch }

// TakeEffect removes the transient channel for a track only if it was
// spawned by the given trigger, so a stale completion cannot evict its replacement.
func (p *Pool) TakeEffect(trackID string, trigger uint64) (*Channel, bool) {
	ch, ok := p.sfx[trackID]
	if !ok || ch.Trigger != trigger {
		return nil, false
	}
	delete(p.sfx, trackID)
	return ch, true
}

// Effects returns all live transient channels.
func (p *Pool) Effects() []*Channel {
	out := make([]*Channel, 0, len(p.sfx))
	for _, ch := range p.sfx {
		out = append(out, ch)
	}
	return out
}

// Len counts live channels across categories.
func (p *Pool) Len() int {
	n := len(p.ambience) + len(p.sfx)
	if p.music != nil {
		n++
	}
	return n
}

// Drain empties the pool and returns everything it held.
func (p *Pool) Drain() []*Channel {
	var out []*Channel
	if p.music != nil {
		out = append(out, p.music)
		p.music = nil
	}
	for id, ch := range p.ambience {
		out = append(out, ch)
		delete(p.ambience, id)
	}
	for id, ch := range p.sfx {
		out = append(out, ch)
		delete(p.sfx, id)
	}
	return out
}
