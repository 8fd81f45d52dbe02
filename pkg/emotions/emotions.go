// Package emotions classifies reply text into the avatar's emotion codes.
//
// Classification is delegated to an Analyzer. Classifier calls an external
// sentiment service that scores text against the eight WRIME emotions;
// Lexicon is an in-process keyword matcher used when the service is not
// configured or fails. Fallback chains the two.
package emotions

import (
	"context"
	"regexp"
)

// Code is an emotion understood by the avatar front end.
type Code int

const (
	Normal    Code = 0
	Relax     Code = 1
	Happy     Code = 2
	Sad       Code = 3
	Angry     Code = 4
	Surprised Code = 5
	Jitome    Code = 6 // half-closed eyes, used for disgust
	Tere      Code = 8 // bashful, used for trust
	Shock     Code = 9
)

// String returns the front-end label.
func (c Code) String() string {
	switch c {
	case Normal:
		return "normal"
	case Relax:
		return "relax"
	case Happy:
		return "happy"
	case Sad:
		return "sad"
	case Angry:
		return "angry"
	case Surprised:
		return "surprised"
	case Jitome:
		return "jitome"
	case Tere:
		return "tere"
	case Shock:
		return "shock"
	default:
		return "unknown"
	}
}

// Label is a WRIME emotion index as produced by the sentiment model.
type Label int

const (
	Joy Label = iota
	Sadness
	Anticipation
	Surprise
	Anger
	Fear
	Disgust
	Trust

	numLabels = 8
)

var labelCodes = [numLabels]Code{
	Joy:          Happy,
	Sadness:      Sad,
	Anticipation: Relax,
	Surprise:     Surprised,
	Anger:        Angry,
	Fear:         Shock,
	Disgust:      Jitome,
	Trust:        Tere,
}

// Code maps the label to its front-end emotion. Out-of-range labels map
// to Normal.
func (l Label) Code() Code {
	if l < 0 || l >= numLabels {
		return Normal
	}
	return labelCodes[l]
}

// Analyzer assigns an emotion code to text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (Code, error)
}

// emojiPattern covers emoticons, pictographs, transport symbols and flags.
var emojiPattern = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{1F1E0}-\x{1F1FF}]+`)

// StripEmoji removes emoji before analysis.
func StripEmoji(text string) string {
	return emojiPattern.ReplaceAllString(text, "")
}
