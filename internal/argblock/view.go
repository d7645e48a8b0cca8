package argblock

// View is a zero-copy, read-only window over an encoded block held in a
// caller-owned buffer. The declared opCount is trusted; entries past the
// end of the buffer are reported by OpAt instead of being read.
type View struct {
	layout Layout
	buf    []byte
}

// NewView wraps buf. Only the two header words must be present.
func (l Layout) NewView(buf []byte) (View, error) {
	if err := l.Validate(); err != nil {
		return View{}, err
	}
	if len(buf) < l.HeaderSize() {
		return View{}, &ShortBufferError{Need: l.HeaderSize(), Have: len(buf)}
	}
	return View{layout: l, buf: buf}, nil
}

// Layout returns the layout the view decodes with.
func (v View) Layout() Layout {
	return v.layout
}

// CallbackAddress implements Reader.
func (v View) CallbackAddress() Word {
	return v.layout.word(v.buf)
}

// OpCount implements Reader. It is the declared count, not the number of
// entries present.
func (v View) OpCount() Word {
	return v.layout.word(v.buf[v.layout.WordSize:])
}

// Present returns how many complete entries the buffer holds after the
// header, regardless of the declared count.
func (v View) Present() Word {
	return Word((len(v.buf) - v.layout.HeaderSize()) / v.layout.EntrySize())
}

// OpAt implements Reader.
func (v View) OpAt(i Word) (Op, error) {
	if i >= v.Present() {
		return Op{}, &TruncatedError{Declared: v.OpCount(), Present: v.Present(), Index: i}
	}
	off := v.layout.HeaderSize() + int(i)*v.layout.EntrySize()
	return Op{
		Address: v.layout.word(v.buf[off:]),
		Value:   v.layout.word(v.buf[off+v.layout.WordSize:]),
	}, nil
}

// Validate reports whether every declared entry is present.
func (v View) Validate() error {
	if v.OpCount() > v.Present() {
		return &TruncatedError{Declared: v.OpCount(), Present: v.Present(), Index: v.Present()}
	}
	return nil
}

// Bytes returns the bytes covered by the declared block, clipped to the
// buffer.
func (v View) Bytes() []byte {
	n := v.OpCount()
	if n > v.Present() {
		n = v.Present()
	}
	return v.buf[:v.layout.Size(int(n))]
}
