package enums

type SuggestionKind string

const (
	SuggestionBio        SuggestionKind = "bio"
	SuggestionIcebreaker SuggestionKind = "icebreaker"
	SuggestionReply      SuggestionKind = "reply"
	SuggestionDecline    SuggestionKind = "decline"
)

func (k SuggestionKind) Valid() bool {
	switch k {
	case SuggestionBio, SuggestionIcebreaker, SuggestionReply, SuggestionDecline:
		return true
	default:
		return false
	}
}

type Tone string

const (
	ToneWarm       Tone = "warm"
	TonePlayful    Tone = "playful"
	ToneSincere    Tone = "sincere"
	ToneDirect     Tone = "direct"
	ToneRespectful Tone = "respectful"
)

func (t Tone) Valid() bool {
	switch t {
	case ToneWarm, TonePlayful, ToneSincere, ToneDirect, ToneRespectful:
		return true
	default:
		return false
	}
}
