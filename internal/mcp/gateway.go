package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pulsefit/pulse/internal/app/engagement"
	"github.com/pulsefit/pulse/internal/domain"
	"github.com/pulsefit/pulse/internal/logger"
)

// ─── MCP Gateway ────────────────────────────────────────────────────────────
// Methods: initialize, ping, tools/list, tools/call, resources/list,
// resources/read.

const (
	ProtocolVersion = "2025-03-26"
	ServerName      = "pulse-mcp"
	ServerVersion   = "0.1.0"
)

// Engagement is the subset of the tracker the gateway drives.
type Engagement interface {
	RecordCompletion(ctx context.Context, category string, ts time.Time) (engagement.CompletionResult, error)
	UpdateProgress(ctx context.Context, metric string, value float64) []domain.AchievementDefinition
	GenerateNudge(ctx context.Context, category string, nctx domain.NudgeContext) domain.NudgeMessage
	HabitInsights(category string) domain.HabitInsights
	AchievementProgress(id string, metrics map[string]float64) (domain.AchievementProgress, bool)
	AchievementsByCategory() map[domain.AchievementCategory][]domain.AchievementStatus
	Streaks() map[string]domain.StreakState
	Habits() []domain.HabitRecord
	UserLevel() domain.LevelInfo
}

// Gateway handles MCP JSON-RPC requests against an Engagement.
type Gateway struct {
	eng       Engagement
	log       *logger.Logger
	tools     []Tool
	resources []Resource
}

// NewGateway creates a gateway over eng.
func NewGateway(eng Engagement, log *logger.Logger) *Gateway {
	if log == nil {
		log = logger.NewNop()
	}
	return &Gateway{
		eng:       eng,
		log:       log.With("component", "mcp"),
		tools:     defineTools(),
		resources: defineResources(),
	}
}

// HandleRequest dispatches one JSON-RPC message. It returns nil for
// notifications.
func (g *Gateway) HandleRequest(ctx context.Context, raw []byte) *Response {
	req, errResp := ParseRequest(raw)
	if errResp != nil {
		return errResp
	}
	if req.ID == nil {
		g.log.Debug("notification", "method", req.Method)
		return nil
	}
	resp := g.dispatch(ctx, req)
	return &resp
}

func (g *Gateway) dispatch(ctx context.Context, req Request) Response {
	switch req.Method {
	case "initialize":
		return g.handleInitialize(req)
	case "ping":
		return newResult(req.ID, struct{}{})
	case "tools/list":
		return newResult(req.ID, map[string]any{"tools": g.tools})
	case "tools/call":
		return g.handleToolsCall(ctx, req)
	case "resources/list":
		return newResult(req.ID, map[string]any{"resources": g.resources})
	case "resources/read":
		return g.handleResourcesRead(req)
	default:
		return newError(req.ID, CodeMethodNotFound, "Method not found: %s", req.Method)
	}
}

// ─── initialize ─────────────────────────────────────────────────────────────

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version,omitempty"`
	} `json:"clientInfo"`
}

func (g *Gateway) handleInitialize(req Request) Response {
	var params initializeParams
	if req.Params != nil {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return newError(req.ID, CodeInvalidParams, "Invalid params: initialize")
		}
	}
	g.log.Info("initialize",
		"client", params.ClientInfo.Name,
		"client_version", params.ClientInfo.Version,
		"protocol", params.ProtocolVersion)

	return newResult(req.ID, map[string]any{
		"protocolVersion": ProtocolVersion,
		"serverInfo":      map[string]string{"name": ServerName, "version": ServerVersion},
		"capabilities": map[string]any{
			"tools":     map[string]bool{"listChanged": false},
			"resources": map[string]bool{"subscribe": false, "listChanged": false},
		},
	})
}

// ─── tools/call ─────────────────────────────────────────────────────────────

type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolArgs struct {
	Category           string   `json:"category"`
	Date               string   `json:"date"`
	Metric             string   `json:"metric"`
	Value              *float64 `json:"value"`
	AchievementID      string   `json:"achievement_id"`
	RecentAchievement  string   `json:"recent_achievement"`
	FriendsActiveToday int      `json:"friends_active_today"`
}

func (g *Gateway) handleToolsCall(ctx context.Context, req Request) Response {
	var params toolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return newError(req.ID, CodeInvalidParams, "Invalid params: tools/call")
	}
	var args toolArgs
	if len(params.Arguments) > 0 {
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return newError(req.ID, CodeInvalidParams, "Invalid params: arguments for %s", params.Name)
		}
	}

	var (
		result any
		err    error
	)
	switch params.Name {
	case "pulse_record_completion":
		if args.Category == "" {
			return newError(req.ID, CodeInvalidParams, "Invalid params: category is required")
		}
		result, err = g.callRecordCompletion(ctx, args)
	case "pulse_update_progress":
		if args.Metric == "" || args.Value == nil {
			return newError(req.ID, CodeInvalidParams, "Invalid params: metric and value are required")
		}
		result = map[string]any{"unlocked": nonNil(g.eng.UpdateProgress(ctx, args.Metric, *args.Value))}
	case "pulse_generate_nudge":
		if args.Category == "" {
			return newError(req.ID, CodeInvalidParams, "Invalid params: category is required")
		}
		result = g.eng.GenerateNudge(ctx, args.Category, domain.NudgeContext{
			RecentAchievement:  args.RecentAchievement,
			FriendsActiveToday: args.FriendsActiveToday,
		})
	case "pulse_habit_insights":
		if args.Category == "" {
			return newError(req.ID, CodeInvalidParams, "Invalid params: category is required")
		}
		result = g.eng.HabitInsights(args.Category)
	case "pulse_achievement_progress":
		if args.AchievementID == "" {
			return newError(req.ID, CodeInvalidParams, "Invalid params: achievement_id is required")
		}
		p, ok := g.eng.AchievementProgress(args.AchievementID, nil)
		if !ok {
			err = fmt.Errorf("%w: %q", domain.ErrUnknownAchievement, args.AchievementID)
		}
		result = p
	default:
		return newError(req.ID, CodeInvalidParams, "Invalid params: unknown tool %s", params.Name)
	}

	if err != nil {
		return newResult(req.ID, map[string]any{
			"content": []contentBlock{{Type: "text", Text: err.Error()}},
			"isError": true,
		})
	}
	text, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return newError(req.ID, CodeInternalError, "Internal error: %v", err)
	}
	return newResult(req.ID, map[string]any{
		"content": []contentBlock{{Type: "text", Text: string(text)}},
	})
}

func (g *Gateway) callRecordCompletion(ctx context.Context, args toolArgs) (any, error) {
	var ts time.Time
	if args.Date != "" {
		t, err := domain.ParseDateKey(args.Date)
		if err != nil {
			return nil, err
		}
		ts = t
	}
	res, err := g.eng.RecordCompletion(ctx, args.Category, ts)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ─── resources/read ─────────────────────────────────────────────────────────

func (g *Gateway) handleResourcesRead(req Request) Response {
	var params struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return newError(req.ID, CodeInvalidParams, "Invalid params: resources/read")
	}

	var v any
	switch params.URI {
	case "pulse://streaks":
		v = g.eng.Streaks()
	case "pulse://habits":
		v = nonNil(g.eng.Habits())
	case "pulse://achievements":
		v = g.eng.AchievementsByCategory()
	case "pulse://level":
		v = g.eng.UserLevel()
	default:
		return newError(req.ID, CodeInvalidParams, "Invalid params: unknown resource %s", params.URI)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return newError(req.ID, CodeInternalError, "Internal error: %v", err)
	}
	return newResult(req.ID, map[string]any{
		"contents": []ResourceContent{{URI: params.URI, MimeType: "application/json", Text: string(data)}},
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// ─── Tool & Resource Definitions ────────────────────────────────────────────

func defineTools() []Tool {
	category := Property{Type: "string", Description: "Activity category, e.g. workout, nutrition, hydration, meditation, sleep"}
	return []Tool{
		{
			Name:        "pulse_record_completion",
			Description: "Log a completed activity. Extends the streak and awards any unlocked achievements.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"category": category,
					"date":     {Type: "string", Description: "Day of the completion (YYYY-MM-DD), default today"},
				},
				Required: []string{"category"},
			},
		},
		{
			Name:        "pulse_update_progress",
			Description: "Set a progress metric to an absolute value and report new unlocks.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"metric": {Type: "string", Description: "Metric name, e.g. totalWorkouts or friendsInvited"},
					"value":  {Type: "number", Description: "New value"},
				},
				Required: []string{"metric", "value"},
			},
		},
		{
			Name:        "pulse_generate_nudge",
			Description: "Generate a motivational message for a habit category.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"category":             category,
					"recent_achievement":   {Type: "string", Description: "Achievement title to celebrate"},
					"friends_active_today": {Type: "integer", Description: "Number of friends active today"},
				},
				Required: []string{"category"},
			},
		},
		{
			Name:        "pulse_habit_insights",
			Description: "Completion rate, consistency, trend, and advice for a habit.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"category": category},
				Required:   []string{"category"},
			},
		},
		{
			Name:        "pulse_achievement_progress",
			Description: "Progress toward one achievement.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"achievement_id": {Type: "string", Description: "Catalog id, e.g. WEEK_WARRIOR"},
				},
				Required: []string{"achievement_id"},
			},
		},
	}
}

func defineResources() []Resource {
	return []Resource{
		{URI: "pulse://streaks", Name: "Streaks", Description: "Current and longest streak per category", MimeType: "application/json"},
		{URI: "pulse://habits", Name: "Habits", Description: "Habit completion records", MimeType: "application/json"},
		{URI: "pulse://achievements", Name: "Achievements", Description: "Catalog grouped by category with unlock state and progress", MimeType: "application/json"},
		{URI: "pulse://level", Name: "Level", Description: "Current level, points, and progress to the next level", MimeType: "application/json"},
	}
}
