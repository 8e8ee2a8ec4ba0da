package speech

import "github.com/teslashibe/go-mindclick/pkg/audioio"

// Default VAD levels for 20 ms frames, as RMS fraction of full scale.
const (
	DefaultSpeechLevel  = 0.015
	DefaultSilenceLevel = 0.008
	// noiseRatio scales the measured ambient floor into the speech level.
	noiseRatio = 3.0
)

// VAD is an energy-based voice activity detector with hysteresis: it needs
// several loud frames to enter speech and several quiet frames to leave it.
type VAD struct {
	speechLevel   float64
	silenceLevel  float64
	speechFrames  int
	silenceFrames int

	inSpeech     bool
	speechCount  int
	silenceCount int
}

// NewVAD returns a detector with the default levels. silenceFrames sets the
// pause that ends a phrase.
func NewVAD(speechFrames, silenceFrames int) *VAD {
	if speechFrames <= 0 {
		speechFrames = 3
	}
	if silenceFrames <= 0 {
		silenceFrames = 40
	}
	return &VAD{
		speechLevel:   DefaultSpeechLevel,
		silenceLevel:  DefaultSilenceLevel,
		speechFrames:  speechFrames,
		silenceFrames: silenceFrames,
	}
}

// AdjustForNoise raises the levels above a measured ambient floor.
func (v *VAD) AdjustForNoise(floor float64) {
	speech := floor * noiseRatio
	if speech < DefaultSpeechLevel {
		speech = DefaultSpeechLevel
	}
	v.speechLevel = speech
	v.silenceLevel = speech * DefaultSilenceLevel / DefaultSpeechLevel
}

// Levels returns the current speech and silence levels.
func (v *VAD) Levels() (speech, silence float64) {
	return v.speechLevel, v.silenceLevel
}

// IsSpeech feeds one frame and reports whether the detector is in speech.
func (v *VAD) IsSpeech(pcm []int16) bool {
	level := audioio.RMS(pcm)

	if v.inSpeech {
		if level < v.silenceLevel {
			v.silenceCount++
			if v.silenceCount >= v.silenceFrames {
				v.inSpeech = false
				v.silenceCount = 0
			}
		} else {
			v.silenceCount = 0
		}
		return v.inSpeech
	}

	if level >= v.speechLevel {
		v.speechCount++
		if v.speechCount >= v.speechFrames {
			v.inSpeech = true
			v.speechCount = 0
		}
	} else {
		v.speechCount = 0
	}
	return v.inSpeech
}

// Reset clears the speech state, keeping the levels.
func (v *VAD) Reset() {
	v.inSpeech = false
	v.speechCount = 0
	v.silenceCount = 0
}
