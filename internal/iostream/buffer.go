package iostream

// deque is a byte deque with cheap append/peek/advance. It grows by
// appending and shrinks from the front by advancing an offset,
// compacting only when the wasted prefix gets large, so repeated
// small reads don't re-copy the whole buffer.
type deque struct {
	data  []byte
	start int
}

func (d *deque) Len() int { return len(d.data) - d.start }

// Bytes returns the unread portion without copying.
func (d *deque) Bytes() []byte { return d.data[d.start:] }

// Append copies p onto the end of the buffer.
func (d *deque) Append(p []byte) {
	d.compactIfWasteful()
	d.data = append(d.data, p...)
}

// Advance discards the first n bytes of buffered data.
func (d *deque) Advance(n int) {
	if n <= 0 {
		return
	}
	if n > d.Len() {
		n = d.Len()
	}
	d.start += n
	if d.start == len(d.data) {
		d.data = d.data[:0]
		d.start = 0
	}
}

// compactIfWasteful slides remaining bytes down to index 0 once the
// discarded prefix dominates the backing array, bounding amortized cost.
func (d *deque) compactIfWasteful() {
	if d.start == 0 {
		return
	}
	if d.start < len(d.data)/2 {
		return
	}
	n := copy(d.data, d.data[d.start:])
	d.data = d.data[:n]
	d.start = 0
}

// IndexEnd returns the index (relative to Bytes()) just past the first
// occurrence of delim, or -1 if not found.
func (d *deque) IndexEnd(delim []byte) int {
	buf := d.Bytes()
	for i := 0; i+len(delim) <= len(buf); i++ {
		if string(buf[i:i+len(delim)]) == string(delim) {
			return i + len(delim)
		}
	}
	return -1
}
