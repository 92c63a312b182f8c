package onnx

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/kbukum/scribe/transcription"
)

// Vocab maps CTC output indices to tokens.
type Vocab struct {
	tokens    []string
	blank     int
	delimiter int
}

// NewVocab builds a vocabulary from a token→id map as found in a
// wav2vec2 vocab.json. "<pad>" is the CTC blank and "|" separates words.
func NewVocab(ids map[string]int) (*Vocab, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("empty vocabulary")
	}
	size := 0
	for _, id := range ids {
		if id < 0 {
			return nil, fmt.Errorf("negative token id %d", id)
		}
		size = max(size, id+1)
	}
	v := &Vocab{tokens: make([]string, size), blank: -1, delimiter: -1}
	for tok, id := range ids {
		v.tokens[id] = tok
		switch tok {
		case "<pad>":
			v.blank = id
		case "|":
			v.delimiter = id
		}
	}
	if v.blank < 0 {
		v.blank = 0
	}
	return v, nil
}

// LoadVocab reads a vocab.json file.
func LoadVocab(path string) (*Vocab, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ids map[string]int
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return NewVocab(ids)
}

// Size is the number of output classes.
func (v *Vocab) Size() int { return len(v.tokens) }

func (v *Vocab) special(id int) bool {
	tok := v.tokens[id]
	return tok == "" || (strings.HasPrefix(tok, "<") && strings.HasSuffix(tok, ">"))
}

// segmentGap is the silence, in seconds, that starts a new segment.
const segmentGap = 0.8

type word struct {
	text       string
	start, end float64
}

// Decode greedily decodes CTC logits laid out as [frames][Size()] and
// groups words into segments separated by pauses of at least segmentGap.
// frameSeconds is the audio duration covered by one frame.
func (v *Vocab) Decode(logits []float32, frames int, frameSeconds float64) []transcription.Segment {
	n := v.Size()
	if frames <= 0 || len(logits) < frames*n {
		return nil
	}

	var words []word
	var cur strings.Builder
	var curStart, curEnd float64
	prev := -1
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, word{text: cur.String(), start: curStart, end: curEnd})
			cur.Reset()
		}
	}

	for f := range frames {
		row := logits[f*n : (f+1)*n]
		best := 0
		for i := 1; i < n; i++ {
			if row[i] > row[best] {
				best = i
			}
		}
		if best == prev {
			if best != v.blank && best != v.delimiter && !v.special(best) {
				curEnd = float64(f+1) * frameSeconds
			}
			continue
		}
		prev = best
		switch {
		case best == v.blank:
		case best == v.delimiter:
			flush()
		case v.special(best):
		default:
			if cur.Len() == 0 {
				curStart = float64(f) * frameSeconds
			}
			cur.WriteString(v.tokens[best])
			curEnd = float64(f+1) * frameSeconds
		}
	}
	flush()
	return group(words)
}

func group(words []word) []transcription.Segment {
	var out []transcription.Segment
	for i, w := range words {
		text := strings.ToLower(w.text)
		if i > 0 && w.start-words[i-1].end < segmentGap {
			last := &out[len(out)-1]
			last.Text += " " + text
			last.End = w.end
			continue
		}
		out = append(out, transcription.Segment{Start: w.start, End: w.end, Text: text})
	}
	return out
}
