package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoJSON is returned when a reply carries no JSON object.
var ErrNoJSON = errors.New("no JSON object in reply")

var eventDateLayouts = []string{"2006-01-02", "2006.01.02", "2006/01/02", "2006-01", "2006.1.2", "2006-1-2"}

type rawStructured struct {
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	FullText    string     `json:"fullText"`
	Summary     string     `json:"summary"`
	ArticleType string     `json:"articleType"`
	Category    string     `json:"category"`
	Author      string     `json:"author"`
	Events      []rawEvent `json:"events"`
}

type rawEvent struct {
	Type         string       `json:"type"`
	Date         string       `json:"date"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Location     string       `json:"location"`
	Participants stringOrList `json:"participants"`
}

// stringOrList accepts either ["a","b"] or "a, b".
type stringOrList []string

func (s *stringOrList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*s = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*s = compact(list)
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*s = compact(strings.Split(single, ","))
	return nil
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// extractJSONObject returns the span from the first "{" to the last "}".
func extractJSONObject(content string) (string, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end <= start {
		return "", ErrNoJSON
	}
	return content[start : end+1], nil
}

// parseStructured decodes a model reply into a Structured value.
func parseStructured(content string) (*Structured, error) {
	payload, err := extractJSONObject(content)
	if err != nil {
		return nil, err
	}
	var raw rawStructured
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("decode structured reply: %w", err)
	}

	out := &Structured{
		Title:    strings.TrimSpace(raw.Title),
		Summary:  strings.TrimSpace(raw.Summary),
		FullText: strings.TrimSpace(firstNonEmpty(raw.Content, raw.FullText)),
		Category: strings.TrimSpace(firstNonEmpty(raw.ArticleType, raw.Category)),
		Author:   strings.TrimSpace(raw.Author),
	}
	for _, ev := range raw.Events {
		if strings.TrimSpace(ev.Title) == "" && strings.TrimSpace(ev.Type) == "" && strings.TrimSpace(ev.Description) == "" {
			continue
		}
		out.Events = append(out.Events, StructuredEvent{
			Type:         strings.TrimSpace(ev.Type),
			Date:         parseEventDate(ev.Date),
			Title:        strings.TrimSpace(ev.Title),
			Description:  strings.TrimSpace(ev.Description),
			Location:     strings.TrimSpace(ev.Location),
			Participants: []string(ev.Participants),
		})
	}
	return out, nil
}

// parseEventDate accepts the handful of layouts models produce; anything else is dropped.
func parseEventDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if len(raw) > 10 {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
		raw = raw[:10]
	}
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
