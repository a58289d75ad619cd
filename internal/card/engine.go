package card

// Engine runs a Parser over consecutive frames and reports a stabilised record
// once enough valid frames have been seen.
//
// An Engine is not safe for concurrent use; callers must hand it one frame at
// a time.
type Engine struct {
	parser Parser
	acc    Accumulator
}

// NewEngine creates an Engine that stabilises over tryCount valid frames
func NewEngine(parser Parser, tryCount int) *Engine {
	return &Engine{
		parser: parser,
		acc:    NewAccumulator(tryCount),
	}
}

// ProcessFrame parses one frame. It returns the stabilised record and true on
// the frame that completes the sample buffer, and false otherwise.
func (e *Engine) ProcessFrame(fragments []string) (Record, bool) {
	r, ok := e.parser.Parse(fragments)
	if !ok {
		return Record{}, false
	}
	var out Record
	var done bool
	e.acc, out, done = e.acc.Observe(r)
	return out, done
}

// Pending returns how many valid samples are buffered
func (e *Engine) Pending() int {
	return e.acc.Len()
}

// TryCount returns the number of valid samples needed per record
func (e *Engine) TryCount() int {
	return e.acc.TryCount
}

// Reset drops any buffered samples
func (e *Engine) Reset() {
	e.acc = NewAccumulator(e.acc.TryCount)
}
