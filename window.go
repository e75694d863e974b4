package nnsplit

// Window is one fixed-length slice of a padded text presented to the model.
type Window struct {
	// Text is the index of the source text in the call.
	Text int
	// Offset is the position of the window's first byte in the padded text.
	Offset int
	// Length is the number of padded-text bytes in the window. Input positions
	// past Length are zero.
	Length int
}

// Batch is the model input for one call together with the bookkeeping needed
// to scatter predictions back to their texts.
type Batch struct {
	// Inputs holds one zero-filled byte row of WindowLength per window.
	Inputs [][]byte
	// Windows maps each input row back to its text.
	Windows []Window
	// PaddedLengths is len(text) + 2*padding for every text.
	PaddedLengths []int
	// WindowLength is the length of every input row.
	WindowLength int
	// Padding is the zero padding applied to both sides of every text.
	Padding int
}

// EncodeWindows converts texts into overlapping byte windows. Every text yields
// at least one window, even when empty. The result depends only on texts and o.
func EncodeWindows(texts []string, o Options) Batch {
	longest := 0
	padded := make([]int, len(texts))
	for i, text := range texts {
		padded[i] = len(text) + 2*o.Padding
		longest = max(longest, padded[i])
	}

	width := roundUp(min(longest, o.MaxLength), o.LengthDivisor)
	width = max(width, o.LengthDivisor)

	b := Batch{
		PaddedLengths: padded,
		WindowLength:  width,
		Padding:       o.Padding,
	}

	for i, text := range texts {
		length := padded[i]
		seq := make([]byte, length)
		copy(seq[o.Padding:], text)

		start, end := 0, 0
		for {
			end = min(start+o.MaxLength, length)
			start = max(end-o.MaxLength, 0)

			row := make([]byte, width)
			copy(row, seq[start:end])
			b.Inputs = append(b.Inputs, row)
			b.Windows = append(b.Windows, Window{Text: i, Offset: start, Length: end - start})

			if end == length {
				break
			}
			start += o.Stride
		}
	}

	return b
}

func roundUp(n, divisor int) int {
	return (n + divisor - 1) / divisor * divisor
}
