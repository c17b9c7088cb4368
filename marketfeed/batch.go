package marketfeed

// Per-message instrument caps by feed variant.
const (
	MaxPerMessage         = 100 // ticker/quote/full feeds
	MaxPerMessageDepth20  = 50
	MaxPerMessageDepth200 = 1
)

// SplitBatches splits instruments into contiguous chunks of at most
// maxPerMessage, preserving input order. The last chunk may be smaller.
func SplitBatches(instruments []Instrument, maxPerMessage int) [][]Instrument {
	if maxPerMessage < 1 || len(instruments) == 0 {
		return nil
	}

	batches := make([][]Instrument, 0, (len(instruments)+maxPerMessage-1)/maxPerMessage)
	for i := 0; i < len(instruments); i += maxPerMessage {
		end := i + maxPerMessage
		if end > len(instruments) {
			end = len(instruments)
		}
		batches = append(batches, instruments[i:end])
	}

	return batches
}
