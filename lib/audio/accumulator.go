package audio

// Accumulator collects samples in order and hands them out one Chunk at a time.
type Accumulator struct {
	samples    []Sample
	maxBacklog int
}

// NewAccumulator creates an Accumulator.
// If maxBacklog is positive, the oldest samples are discarded
// whenever more than maxBacklog samples are waiting.
func NewAccumulator(maxBacklog int) *Accumulator {
	return &Accumulator{
		samples:    make([]Sample, 0, ChunkSize*4),
		maxBacklog: maxBacklog,
	}
}

// Push appends samples to the end of the accumulator.
func (a *Accumulator) Push(samples []Sample) {
	a.samples = append(a.samples, samples...)
	if a.maxBacklog > 0 && len(a.samples) > a.maxBacklog {
		drop := len(a.samples) - a.maxBacklog
		n := copy(a.samples, a.samples[drop:])
		a.samples = a.samples[:n]
	}
}

// Drain removes up to ChunkSize samples from the front of the accumulator.
// Missing samples are filled with FillSample,
// anything beyond one chunk stays for the next call.
func (a *Accumulator) Drain() (chunk Chunk) {
	n := copy(chunk[:], a.samples)
	for i := n; i < ChunkSize; i++ {
		chunk[i] = FillSample
	}
	rest := copy(a.samples, a.samples[n:])
	a.samples = a.samples[:rest]
	return
}

// Len returns the number of samples waiting.
func (a *Accumulator) Len() int {
	return len(a.samples)
}

// Reset discards all waiting samples.
func (a *Accumulator) Reset() {
	a.samples = a.samples[:0]
}
