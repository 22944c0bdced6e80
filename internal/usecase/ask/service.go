package ask

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"discord-archive-bot/internal/domain"
)

const maxReplyLines = 5

const concisenessPrompt = "Answer as concisely as possible, in at most five lines."

// Service отвечает на произвольные вопросы через внешний AI-сервис.
// Ошибки провайдера превращаются в видимую пользователю строку-предупреждение:
// наружу Ask никогда не возвращает ошибку.
type Service struct {
	completer domain.Completer
	log       zerolog.Logger
}

// NewService создаёт сервис вопросов.
func NewService(completer domain.Completer, logger zerolog.Logger) *Service {
	return &Service{completer: completer, log: logger}
}

// Ask дополняет вопрос инструкцией о краткости и обрезает ответ
// до пяти строк.
func (s *Service) Ask(ctx context.Context, prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "⚠️ Пустой вопрос."
	}

	reply, err := s.completer.Complete(ctx, concisenessPrompt+"\n\n"+prompt)
	if err != nil {
		s.log.Warn().Err(err).Msg("ask: провайдер вернул ошибку")
		return fmt.Sprintf("⚠️ Не удалось получить ответ: %v", err)
	}

	return clipLines(strings.TrimSpace(reply), maxReplyLines)
}

func clipLines(text string, limit int) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= limit {
		return text
	}
	return strings.Join(lines[:limit], "\n")
}
