// Package roster keeps the live list of participants who may use the relay
// and where they currently are.
package roster

import (
	"gopkg.in/yaml.v3"
	"io"
	"math"
	"os"
	"proxichat/core/lib/packet"
	"sort"
	"sync"
)

// Vec3 is a position in the game world.
type Vec3 [3]float64

// Distance returns the euclidean distance between v and w.
func (v Vec3) Distance(w Vec3) float64 {
	dx, dy, dz := v[0]-w[0], v[1]-w[1], v[2]-w[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Member is one participant on the roster.
type Member struct {
	Identity packet.Identity `yaml:"identity" json:"identity"`
	Position *Vec3           `yaml:"position,omitempty" json:"position,omitempty"`
}

// Roster is safe for concurrent use. It is written by the host integration
// and read by the relay tick.
type Roster struct {
	mutex   sync.RWMutex
	members map[packet.Identity]*Vec3
}

func New() *Roster {
	return &Roster{
		members: make(map[packet.Identity]*Vec3, 32),
	}
}

// Join adds a participant. A nil position means the position is unknown.
// Joining again replaces the position.
func (r *Roster) Join(identity packet.Identity, position *Vec3) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.members[identity] = copyVec(position)
}

// Leave removes a participant.
func (r *Roster) Leave(identity packet.Identity) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.members, identity)
}

// Move updates the position of a participant.
// It reports false if the identity is not on the roster.
func (r *Roster) Move(identity packet.Identity, position Vec3) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.members[identity]; !ok {
		return false
	}
	r.members[identity] = &position
	return true
}

// Reset removes every participant.
func (r *Roster) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.members = make(map[packet.Identity]*Vec3, 32)
}

// IdentityIsValid reports whether identity is on the roster.
func (r *Roster) IdentityIsValid(identity packet.Identity) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	_, ok := r.members[identity]
	return ok
}

// Position returns the last known position of a participant.
func (r *Roster) Position(identity packet.Identity) (Vec3, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	position := r.members[identity]
	if position == nil {
		return Vec3{}, false
	}
	return *position, true
}

// Len returns the number of participants.
func (r *Roster) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.members)
}

// Members returns a snapshot of all participants ordered by identity.
func (r *Roster) Members() []Member {
	r.mutex.RLock()
	members := make([]Member, 0, len(r.members))
	for identity, position := range r.members {
		members = append(members, Member{Identity: identity, Position: copyVec(position)})
	}
	r.mutex.RUnlock()
	sort.Slice(members, func(i, j int) bool { return members[i].Identity < members[j].Identity })
	return members
}

type file struct {
	Members []Member `yaml:"members"`
}

// Decode adds every member listed in a YAML roster document.
func (r *Roster) Decode(reader io.Reader) error {
	var f file
	if err := yaml.NewDecoder(reader).Decode(&f); err != nil && err != io.EOF {
		return err
	}
	for _, m := range f.Members {
		r.Join(m.Identity, m.Position)
	}
	return nil
}

// Load reads a YAML roster file:
//
//	members:
//	  - identity: 42
//	    position: [0, 0, 0]
//	  - identity: 43
func Load(path string) (*Roster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := New()
	if err = r.Decode(f); err != nil {
		return nil, err
	}
	return r, nil
}

func copyVec(v *Vec3) *Vec3 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
