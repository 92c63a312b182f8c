// Package hallucination detects the repeated-phrase loops greedy speech
// decoders fall into. Clean collapses consecutive duplicate sentences and
// rejects texts that are almost entirely repetition; CleanTranscript applies
// the same rules per segment and to the transcript as a whole.
package hallucination
