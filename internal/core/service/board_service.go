package service

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const (
	useCaseListQuestions = "board.list"
	useCaseAsk           = "board.ask"
	useCaseAnswer        = "board.answer"
)

type BoardService struct {
	repo port.BoardRepository
	opts options
}

func NewBoardService(repo port.BoardRepository, opts ...Option) *BoardService {
	return &BoardService{repo: repo, opts: newOptions(opts)}
}

func (s *BoardService) ListQuestions(ctx context.Context) (qs []domain.Question, err error) {
	ctx, run := s.opts.begin(ctx, useCaseListQuestions)
	defer func() { run.end(err, zap.Int("questions", len(qs))) }()

	return s.repo.ListQuestions(ctx)
}

func (s *BoardService) Ask(ctx context.Context, q domain.Question) (qNo int64, err error) {
	ctx, run := s.opts.begin(ctx, useCaseAsk)
	defer func() { run.end(err, zap.Int64("q_no", qNo), zap.String("writer", q.Writer)) }()

	q.Title = strings.TrimSpace(q.Title)
	q.Writer = strings.TrimSpace(q.Writer)
	if q.Title == "" || q.Writer == "" {
		return 0, fmt.Errorf("qTitle and qWriter are required: %w", domain.ErrInvalidInput)
	}
	return s.repo.CreateQuestion(ctx, q)
}

func (s *BoardService) Answer(ctx context.Context, a domain.Answer) (aNo int64, err error) {
	ctx, run := s.opts.begin(ctx, useCaseAnswer, attribute.Int64("question.no", a.QNo))
	defer func() { run.end(err, zap.Int64("q_no", a.QNo), zap.Int64("a_no", aNo)) }()

	a.Content = strings.TrimSpace(a.Content)
	a.Writer = strings.TrimSpace(a.Writer)
	if a.QNo <= 0 || a.Content == "" || a.Writer == "" {
		return 0, fmt.Errorf("qNo, aContent and aWriter are required: %w", domain.ErrInvalidInput)
	}
	return s.repo.CreateAnswer(ctx, a)
}
