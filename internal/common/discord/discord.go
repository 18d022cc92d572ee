package discord

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/signaltiming-optimizer/internal/report"
)

type WebhookMessage struct {
	Content string  `json:"content"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

type Embed struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Color       int       `json:"color"`
	Timestamp   time.Time `json:"timestamp"`
	Fields      []Field   `json:"fields,omitempty"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type Client struct {
	webhookURL string
	httpClient *http.Client
}

func NewClient(webhookURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Enabled reports whether a webhook URL is configured
func (c *Client) Enabled() bool {
	return c.webhookURL != ""
}

func (c *Client) SendMessage(msg WebhookMessage) error {
	if c.webhookURL == "" {
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook message: %w", err)
	}

	req, err := http.NewRequest("POST", c.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook request failed with status: %d", resp.StatusCode)
	}

	return nil
}

func (c *Client) SendLogMessage(level, message string, fields map[string]interface{}) error {
	embed := Embed{
		Title:       fmt.Sprintf("🚨 %s Log Alert", level),
		Description: message,
		Color:       getColorForLevel(level),
		Timestamp:   time.Now(),
	}

	for _, key := range slices.Sorted(maps.Keys(fields)) {
		embed.Fields = append(embed.Fields, Field{
			Name:   key,
			Value:  fmt.Sprintf("%v", fields[key]),
			Inline: true,
		})
	}

	return c.SendMessage(WebhookMessage{Embeds: []Embed{embed}})
}

// SendRunSummary posts the before/after comparison of an optimization run
func (c *Client) SendRunSummary(r *report.Report) error {
	cmp := r.Comparison
	embed := Embed{
		Title: fmt.Sprintf("🚦 Signal plan optimized: %s", r.IntersectionID),
		Description: fmt.Sprintf("Cycle %ds → %ds, level of service %s → %s",
			r.BaselineTiming.CycleLength, r.OptimizedTiming.CycleLength,
			r.BaselineResults.LevelOfService, r.OptimizedResults.LevelOfService),
		Color:     colorForImprovement(cmp.OverallFitness.ImprovementPercent),
		Timestamp: r.FinishedAt,
		Fields: []Field{
			{Name: "Throughput", Value: fmt.Sprintf("%.1f → %.1f veh/hr (%+.1f%%)", cmp.Throughput.Baseline, cmp.Throughput.Optimized, cmp.Throughput.ImprovementPercent), Inline: true},
			{Name: "Avg delay", Value: fmt.Sprintf("%.2f → %.2f s (%+.1f%%)", cmp.AvgDelay.Baseline, cmp.AvgDelay.Optimized, cmp.AvgDelay.ImprovementPercent), Inline: true},
			{Name: "Max queue", Value: fmt.Sprintf("%.0f → %.0f veh", cmp.MaxQueueLength.Baseline, cmp.MaxQueueLength.Optimized), Inline: true},
			{Name: "Best fitness", Value: fmt.Sprintf("%.4f", r.Summary.BestFitness), Inline: true},
			{Name: "Generations", Value: fmt.Sprintf("%d", r.Summary.Generations), Inline: true},
			{Name: "Run", Value: r.RunID.String(), Inline: false},
		},
	}

	return c.SendMessage(WebhookMessage{Embeds: []Embed{embed}})
}

func colorForImprovement(percent float64) int {
	if percent > 0 {
		return 0x2ECC71 // Green
	}
	return 0xFFA500 // Orange
}

func getColorForLevel(level string) int {
	switch level {
	case "ERROR":
		return 0xFF0000 // Red
	case "FATAL":
		return 0x8B0000 // Dark Red
	case "WARN":
		return 0xFFA500 // Orange
	default:
		return 0x808080 // Gray
	}
}
