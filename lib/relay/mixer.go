package relay

import (
	"proxichat/core/lib/audio"
	"proxichat/core/lib/packet"
	"proxichat/core/lib/roster"
)

// Voice is the audio one confirmed peer sent during the current tick.
type Voice struct {
	Identity packet.Identity
	Samples  audio.Chunk
}

// Mixer decides what each confirmed peer hears.
// Mix appends exactly audio.ChunkSize samples for listener to dst and returns it.
// voices contains every confirmed peer that sent audio this tick, including listener.
type Mixer interface {
	Mix(dst []audio.Sample, listener packet.Identity, voices []Voice) []audio.Sample
}

// SumMixer lets every peer hear all other peers at full volume.
type SumMixer struct{}

func (SumMixer) Mix(dst []audio.Sample, listener packet.Identity, voices []Voice) []audio.Sample {
	return mix(dst, listener, voices, func(Voice) float32 { return 1 })
}

// Locator knows where participants are.
type Locator interface {
	Position(identity packet.Identity) (roster.Vec3, bool)
}

// ProximityMixer attenuates every voice linearly with the distance
// between speaker and listener. Voices at Range or farther are silent,
// as are voices of peers without a known position.
type ProximityMixer struct {
	Locator Locator
	Range   float64
}

func (p *ProximityMixer) Mix(dst []audio.Sample, listener packet.Identity, voices []Voice) []audio.Sample {
	here, ok := p.Locator.Position(listener)
	if !ok || p.Range <= 0 {
		return mix(dst, listener, nil, nil)
	}
	return mix(dst, listener, voices, func(v Voice) float32 {
		there, ok := p.Locator.Position(v.Identity)
		if !ok {
			return 0
		}
		gain := 1 - here.Distance(there)/p.Range
		if gain <= 0 {
			return 0
		}
		return float32(gain)
	})
}

func mix(dst []audio.Sample, listener packet.Identity, voices []Voice, gain func(Voice) float32) []audio.Sample {
	start := len(dst)
	for i := 0; i < audio.ChunkSize; i++ {
		dst = append(dst, 0)
	}
	out := dst[start:]
	for _, v := range voices {
		if v.Identity == listener {
			continue
		}
		g := gain(v)
		if g == 0 {
			continue
		}
		for i, sample := range v.Samples {
			out[i] += g * sample
		}
	}
	for i, sample := range out {
		if sample > 1 {
			out[i] = 1
		} else if sample < -1 {
			out[i] = -1
		}
	}
	return dst
}
