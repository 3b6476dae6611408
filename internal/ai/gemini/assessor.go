package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"jobpilot/internal/ai"
	"jobpilot/internal/domain"
	"jobpilot/internal/profile"
)

type contentGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Assessor implements posting scoring and reply classification on top of a
// content generator.
type Assessor struct {
	generator contentGenerator
	logger    *zap.Logger
}

const maxLogPreview = 200

func NewAssessor(generator contentGenerator, logger *zap.Logger) *Assessor {
	return &Assessor{generator: generator, logger: logger}
}

const scorePromptTemplate = `You are screening job postings for a single candidate.
Rate how well the posting below fits the candidate profile on a 0-100 scale.
Respond with JSON only: {"score": <0-100>, "rationale": "<one sentence>"}

Candidate profile:
%s

Job posting:
%s

JSON response:`

// ScorePosting asks the model for a 0-100 fit score.
func (a *Assessor) ScorePosting(ctx context.Context, p domain.JobPosting, prof profile.Profile) (*ai.Assessment, error) {
	profJSON, err := json.MarshalIndent(map[string]any{
		"summary":  prof.Summary,
		"location": prof.Location,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal profile payload: %w", err)
	}

	postingJSON, err := json.MarshalIndent(map[string]any{
		"company":     p.Company,
		"title":       p.Title,
		"location":    p.Location,
		"work_mode":   p.WorkMode,
		"description": p.Description,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal posting payload: %w", err)
	}

	prompt := fmt.Sprintf(scorePromptTemplate, profJSON, postingJSON)

	a.logger.Debug("gemini score request",
		zap.String("fingerprint", p.Fingerprint),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
	)

	raw, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("gemini score response",
		zap.String("fingerprint", p.Fingerprint),
		zap.String("response_preview", truncate(raw, maxLogPreview)),
	)

	data, err := parseJSONObject(raw)
	if err != nil {
		return nil, err
	}

	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		return nil, fmt.Errorf("gemini score missing from response")
	}

	return &ai.Assessment{
		Score:     int(math.Round(score)),
		Rationale: coerceString(data["rationale"]),
		Raw:       raw,
	}, nil
}

const classifyPromptTemplate = `Classify the email reply below, received by a job seeker
who has sent applications and outreach messages. Pick exactly one class:
POSITIVE (interview invite, interest, next steps), REJECTION, QUESTION
(recruiter asks for information), or SPAM (unrelated or automated noise).
Respond with JSON only: {"class": "<CLASS>", "confidence": <0.0-1.0>}

From: %s
Subject: %s

%s

JSON response:`

// ClassifyReply sorts one inbox message into a reply class.
func (a *Assessor) ClassifyReply(ctx context.Context, from, subject, body string) (*ai.Verdict, error) {
	prompt := fmt.Sprintf(classifyPromptTemplate, from, subject, truncate(body, 4000))

	raw, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	data, err := parseJSONObject(raw)
	if err != nil {
		return nil, err
	}

	class := domain.ReplyClass(strings.ToUpper(strings.TrimSpace(coerceString(data["class"]))))
	switch class {
	case domain.ReplyPositive, domain.ReplyRejection, domain.ReplyQuestion, domain.ReplySpam:
	default:
		return nil, fmt.Errorf("gemini returned unknown class %q", class)
	}

	conf := coerceFloat(data["confidence"])
	if math.IsNaN(conf) || conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}

	return &ai.Verdict{Class: class, Confidence: conf, Raw: raw}, nil
}

func parseJSONObject(raw string) (map[string]any, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}
	return data, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return ""
	}
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
