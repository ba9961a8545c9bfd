package dto

type SuggestRequest struct {
	Kind    string `json:"kind"`
	Context string `json:"context"`
	Tone    string `json:"tone"`
}
