package card

// Accumulator buffers valid per-frame records until TryCount of them have
// been seen. It is a plain value; Observe never mutates its receiver.
type Accumulator struct {
	TryCount int      `json:"try_count"`
	Samples  []Record `json:"samples"`
}

// NewAccumulator creates an empty Accumulator. A tryCount below one is
// treated as one.
func NewAccumulator(tryCount int) Accumulator {
	if tryCount < 1 {
		tryCount = 1
	}
	return Accumulator{TryCount: tryCount}
}

// Len returns the number of buffered samples
func (a Accumulator) Len() int {
	return len(a.Samples)
}

// Observe feeds one candidate into the accumulator. Invalid candidates are
// ignored and do not count towards TryCount. When the buffer fills up the
// stabilised record is returned together with an emptied accumulator.
func (a Accumulator) Observe(r Record) (Accumulator, Record, bool) {
	if !r.Valid() {
		return a, Record{}, false
	}

	samples := make([]Record, len(a.Samples), len(a.Samples)+1)
	copy(samples, a.Samples)
	samples = append(samples, r)

	tryCount := a.TryCount
	if tryCount < 1 {
		tryCount = 1
	}
	if len(samples) < tryCount {
		return Accumulator{TryCount: a.TryCount, Samples: samples}, Record{}, false
	}
	return Accumulator{TryCount: a.TryCount}, stabilize(samples), true
}

// stabilize picks the most frequent number and expiry across samples.
func stabilize(samples []Record) Record {
	numbers := make([]string, len(samples))
	expiries := make([]string, len(samples))
	for i, s := range samples {
		numbers[i] = s.Number
		expiries[i] = s.Expiry
	}
	number := mostFrequent(numbers)
	return Record{
		Number:  number,
		Network: Classify(number),
		Expiry:  mostFrequent(expiries),
	}
}

// mostFrequent returns the most common non-empty value. Ties go to the value
// seen first.
func mostFrequent(values []string) string {
	counts := make(map[string]int, len(values))
	var order []string
	for _, v := range values {
		if v == "" {
			continue
		}
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}

	best, bestCount := "", 0
	for _, v := range order {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}
