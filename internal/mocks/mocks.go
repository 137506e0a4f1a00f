// Package mocks provides testify doubles for the remote collaborators the
// conversation core depends on.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"plannerbot/internal/event"
	"plannerbot/internal/nlp"
	"plannerbot/internal/textanalysis"
)

// MockAnalyzer is a mock text-analysis service.
type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Sentiment(ctx context.Context, text string) (textanalysis.Sentiment, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(textanalysis.Sentiment), args.Error(1)
}

func (m *MockAnalyzer) Relations(ctx context.Context, text string) ([]textanalysis.Relation, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]textanalysis.Relation), args.Error(1)
}

// MockExtractor is a mock date/time extractor.
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Parse(text string, now time.Time) []nlp.Mention {
	args := m.Called(text, now)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]nlp.Mention)
}

// MockCalendar is a mock calendar backend.
type MockCalendar struct {
	mock.Mock
}

func (m *MockCalendar) AddEvent(ctx context.Context, rec *event.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// MockReplier records every direct message sent.
type MockReplier struct {
	mock.Mock
}

func (m *MockReplier) SendDirectMessage(ctx context.Context, userID, text string) error {
	args := m.Called(ctx, userID, text)
	return args.Error(0)
}
