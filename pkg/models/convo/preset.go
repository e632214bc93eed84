package convo

// Notices are the user-visible texts the engine emits
type Notices struct {
	NoCapture      string `json:"noCapture" yaml:"noCapture"`
	MicDenied      string `json:"micDenied" yaml:"micDenied"`
	NoSpeech       string `json:"noSpeech" yaml:"noSpeech"`
	SpeechFailed   string `json:"speechFailed" yaml:"speechFailed"`
	SpeechError    string `json:"speechError" yaml:"speechError"`
	DeleteFailed   string `json:"deleteFailed" yaml:"deleteFailed"`
	RatingRequired string `json:"ratingRequired" yaml:"ratingRequired"`
	FeedbackFailed string `json:"feedbackFailed" yaml:"feedbackFailed"`
}

// Preset is loaded from yaml, fields left empty keep the embedded defaults
type Preset struct {
	Title   string  `json:"title,omitempty" yaml:"title,omitempty"`
	Notices Notices `json:"notices" yaml:"notices"`
}

// Merge fills empty fields of z from dft
func (z Preset) Merge(dft Preset) Preset {
	pick := func(v, d string) string {
		if len(v) > 0 {
			return v
		}
		return d
	}
	z.Title = pick(z.Title, dft.Title)
	n, d := &z.Notices, dft.Notices
	n.NoCapture = pick(n.NoCapture, d.NoCapture)
	n.MicDenied = pick(n.MicDenied, d.MicDenied)
	n.NoSpeech = pick(n.NoSpeech, d.NoSpeech)
	n.SpeechFailed = pick(n.SpeechFailed, d.SpeechFailed)
	n.SpeechError = pick(n.SpeechError, d.SpeechError)
	n.DeleteFailed = pick(n.DeleteFailed, d.DeleteFailed)
	n.RatingRequired = pick(n.RatingRequired, d.RatingRequired)
	n.FeedbackFailed = pick(n.FeedbackFailed, d.FeedbackFailed)
	return z
}
