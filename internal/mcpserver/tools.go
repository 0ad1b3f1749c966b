package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

type userIDArgs struct {
	UserID string `json:"user_id"`
}

func userIDTool(name, description string) mcp.Tool {
	return mcp.NewToolWithRawSchema(
		name,
		description,
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"user_id": {
					"type": "string",
					"description": "The user id to operate on"
				}
			},
			"required": ["user_id"]
		}`),
	)
}

func startUserTool() mcp.Tool {
	return userIDTool("start_user", "Start a user's polling loop. Requires the user id to be on the allow-list.")
}

func stopUserTool() mcp.Tool {
	return userIDTool("stop_user", "Stop a user's polling loop, waiting up to the configured shutdown grace period.")
}

func pauseUserTool() mcp.Tool {
	return userIDTool("pause_user", "Pause a user's polling loop without destroying its session state.")
}

func resumeUserTool() mcp.Tool {
	return userIDTool("resume_user", "Resume a previously paused user's polling loop.")
}

func userStatusTool() mcp.Tool {
	return userIDTool("user_status", "Get a user's current lifecycle state and cycle counters.")
}

func globalStatsTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"global_stats",
		"Get lifecycle state and cycle counters for every user started this process.",
		json.RawMessage(`{"type": "object", "properties": {}}`),
	)
}

func bindUserID(req mcp.CallToolRequest) (string, error) {
	var args userIDArgs
	if err := req.BindArguments(&args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.UserID == "" {
		return "", fmt.Errorf("user_id is required")
	}
	return args.UserID, nil
}

func (s *Server) handleStartUser(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := bindUserID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.sup.Start(ctx, userID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("started user %s", userID)), nil
}

func (s *Server) handleStopUser(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := bindUserID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.sup.Stop(userID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("stopped user %s", userID)), nil
}

func (s *Server) handlePauseUser(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := bindUserID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.sup.Pause(userID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("paused user %s", userID)), nil
}

func (s *Server) handleResumeUser(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := bindUserID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.sup.Resume(userID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("resumed user %s", userID)), nil
}

func (s *Server) handleUserStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := bindUserID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status, err := s.sup.Status(userID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return resultJSON(status)
}

func (s *Server) handleGlobalStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return resultJSON(s.sup.GlobalStats())
}

func resultJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
