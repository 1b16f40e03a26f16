package md

// RingBuffer keeps the most recent bars of a single symbol.
type RingBuffer struct {
	values []Bar
	size   int
	index  int
	filled bool
}

func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 1
	}
	return &RingBuffer{
		values: make([]Bar, size),
		size:   size,
	}
}

func (r *RingBuffer) Add(bar Bar) {
	r.values[r.index] = bar
	r.index = (r.index + 1) % r.size
	if r.index == 0 {
		r.filled = true
	}
}

// Seed replaces the buffer contents with the tail of bars.
func (r *RingBuffer) Seed(bars []Bar) {
	r.index = 0
	r.filled = false
	if len(bars) > r.size {
		bars = bars[len(bars)-r.size:]
	}
	for _, b := range bars {
		r.Add(b)
	}
}

func (r *RingBuffer) Len() int {
	if r.filled {
		return r.size
	}
	return r.index
}

// Bars returns a copy of the buffered bars ordered oldest first.
func (r *RingBuffer) Bars() []Bar {
	length := r.Len()
	result := make([]Bar, 0, length)
	if length == 0 {
		return result
	}
	if r.filled {
		result = append(result, r.values[r.index:]...)
	}
	result = append(result, r.values[:r.index]...)
	return result
}

func (r *RingBuffer) Last() (Bar, bool) {
	if r.Len() == 0 {
		return Bar{}, false
	}
	i := r.index - 1
	if i < 0 {
		i = r.size - 1
	}
	return r.values[i], true
}
