package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/errs"
)

const maxContextLen = 1500

const systemPrompt = "You help members of a dating community write short, kind, honest messages. " +
	"Answer with the suggested text only, no quotes and no preamble."

type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

type Limiter interface {
	Allow(ctx context.Context, accountID uuid.UUID) (int64, bool, error)
}

// BusyError is returned when no suggestion could be produced. Fallback is
// safe to show to the user as is.
type BusyError struct {
	Fallback   string
	RetryAfter int64
}

func (e *BusyError) Error() string {
	return "assistant is busy"
}

func (e *BusyError) Unwrap() error {
	return errs.ErrUnavailable
}

func IsBusy(err error) (*BusyError, bool) {
	var busy *BusyError
	if errors.As(err, &busy) {
		return busy, true
	}
	return nil, false
}

type Service struct {
	client   Completer
	limiter  Limiter
	fallback string
	logger   *zap.Logger
}

type SuggestInput struct {
	Kind    string
	Context string
	Tone    string
}

type Suggestion struct {
	Kind enums.SuggestionKind `json:"kind"`
	Tone enums.Tone           `json:"tone"`
	Text string               `json:"text"`
}

func NewService(client Completer, limiter Limiter, fallback string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback = strings.TrimSpace(fallback)
	if fallback == "" {
		fallback = "The assistant is busy right now. Try again in a moment."
	}
	return &Service{
		client:   client,
		limiter:  limiter,
		fallback: fallback,
		logger:   logger,
	}
}

func (s *Service) Suggest(ctx context.Context, accountID uuid.UUID, in SuggestInput) (Suggestion, error) {
	if accountID == uuid.Nil {
		return Suggestion{}, errs.ErrNotAuthenticated
	}

	kind := enums.SuggestionKind(strings.ToLower(strings.TrimSpace(in.Kind)))
	if !kind.Valid() {
		return Suggestion{}, fmt.Errorf("invalid kind: %w", errs.ErrValidation)
	}
	tone := enums.Tone(strings.ToLower(strings.TrimSpace(in.Tone)))
	if tone == "" {
		tone = enums.ToneWarm
	}
	if !tone.Valid() {
		return Suggestion{}, fmt.Errorf("invalid tone: %w", errs.ErrValidation)
	}
	text := strings.TrimSpace(in.Context)
	if utf8.RuneCountInString(text) > maxContextLen {
		return Suggestion{}, fmt.Errorf("context is too long: %w", errs.ErrValidation)
	}
	if text == "" && kind != enums.SuggestionBio && kind != enums.SuggestionIcebreaker {
		return Suggestion{}, fmt.Errorf("context is required for %s: %w", kind, errs.ErrValidation)
	}

	if s.limiter != nil {
		retryAfter, allowed, err := s.limiter.Allow(ctx, accountID)
		if err != nil {
			s.logger.Warn("assistant rate limiter failed", zap.Error(err))
		} else if !allowed {
			return Suggestion{}, &BusyError{Fallback: s.fallback, RetryAfter: retryAfter}
		}
	}

	if s.client == nil {
		return Suggestion{}, &BusyError{Fallback: s.fallback}
	}
	out, err := s.client.Complete(ctx, systemPrompt, buildPrompt(kind, tone, text))
	if err != nil || out == "" {
		s.logger.Warn("assistant suggestion failed",
			zap.String("account_id", accountID.String()),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return Suggestion{}, &BusyError{Fallback: s.fallback}
	}

	return Suggestion{Kind: kind, Tone: tone, Text: out}, nil
}

func buildPrompt(kind enums.SuggestionKind, tone enums.Tone, text string) string {
	var b strings.Builder
	switch kind {
	case enums.SuggestionBio:
		b.WriteString("Write a profile bio of at most 3 sentences")
	case enums.SuggestionIcebreaker:
		b.WriteString("Write one opening message for a new connection")
	case enums.SuggestionReply:
		b.WriteString("Write a reply to the message below")
	case enums.SuggestionDecline:
		b.WriteString("Write a gentle message ending the conversation below")
	}
	b.WriteString(" in a ")
	b.WriteString(string(tone))
	b.WriteString(" tone.")
	if text != "" {
		b.WriteString("\n\n")
		b.WriteString(text)
	}
	return b.String()
}
