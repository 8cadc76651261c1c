package broadphase

import (
	"github.com/akmonengine/keel/kinematics"
)

// AllPairs tests every proxy against every other. It is the reference the
// grid is checked against and is fine for scenes of a few dozen bodies.
type AllPairs struct {
	pairs  []Pair
	cursor int
}

func (ap *AllPairs) Update(proxies []Proxy) {
	ap.pairs = ap.pairs[:0]
	ap.cursor = 0

	for i := range proxies {
		for j := i + 1; j < len(proxies); j++ {
			if Accept(proxies[i], proxies[j]) {
				ap.pairs = append(ap.pairs, makePair(proxies[i].Frame, proxies[j].Frame))
			}
		}
	}
}

func (ap *AllPairs) Next() (kinematics.FrameID, kinematics.FrameID, bool) {
	if ap.cursor >= len(ap.pairs) {
		return kinematics.NoFrame, kinematics.NoFrame, false
	}
	p := ap.pairs[ap.cursor]
	ap.cursor++

	return p.A, p.B, true
}
