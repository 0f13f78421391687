package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cast"

	"github.com/wricardo/mcp-training/rpslobby/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Rock Paper Scissors Lobby",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Rock Paper Scissors Lobby - MCP Interface

This is a read-only client that proxies all requests to the REST API server.
Players connect over TCP or WebSocket; these tools observe the server.

AVAILABLE TOOLS:
- list_lobbies: List live lobbies, optionally filtered by status or joinability
- get_lobby: Get the players, round count and score of one lobby
- server_stats: Get registry counters and uptime
- game_rules: Get the protocol a player follows and which choice beats which
- how_to_play: Get step by step connection instructions`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_lobbies",
		Description: "List live lobbies in creation order",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"status": map[string]interface{}{
					"type":        "string",
					"description": "Only lobbies in this status",
					"enum":        []string{"waiting", "active"},
				},
				"joinable": map[string]interface{}{
					"type":        "boolean",
					"description": "Only lobbies a new player would be matched into",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of lobbies to return",
				},
			},
		},
	}, c.handleListLobbies)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_lobby",
		Description: "Get details of a specific lobby",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"lobby_id": map[string]interface{}{
					"type":        "integer",
					"description": "Lobby ID to retrieve",
				},
			},
			Required: []string{"lobby_id"},
		},
	}, c.handleGetLobby)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "server_stats",
		Description: "Get lobby counts, rounds played and uptime",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleServerStats)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_rules",
		Description: "Get the commands and choices a player can send",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameRules)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "how_to_play",
		Description: "Get instructions for connecting and playing a match",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleHowToPlay)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

// Tool handlers

func (c *Client) handleListLobbies(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	query := url.Values{}
	if v, ok := args["status"]; ok && v != nil {
		status, err := cast.ToStringE(v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid status: %v", err)), nil
		}
		if status != "" {
			query.Set("status", status)
		}
	}
	if v, ok := args["joinable"]; ok && v != nil {
		joinable, err := cast.ToBoolE(v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid joinable: %v", err)), nil
		}
		query.Set("joinable", strconv.FormatBool(joinable))
	}
	if v, ok := args["limit"]; ok && v != nil {
		limit, err := cast.ToIntE(v)
		if err != nil || limit < 0 {
			return mcp.NewToolResultError(fmt.Sprintf("invalid limit: %v", v)), nil
		}
		if limit > 0 {
			query.Set("limit", strconv.Itoa(limit))
		}
	}

	path := "/api/lobbies"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var response struct {
		Count   int                 `json:"count"`
		Total   int                 `json:"total"`
		Lobbies []service.LobbyInfo `json:"lobbies"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatLobbyList(response.Lobbies, response.Total)), nil
}

func (c *Client) handleGetLobby(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	raw, ok := args["lobby_id"]
	if !ok || raw == nil {
		return mcp.NewToolResultError("lobby_id is required"), nil
	}
	id, err := cast.ToUint64E(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid lobby_id: %v", raw)), nil
	}

	var info service.LobbyInfo
	if err := c.apiCall(ctx, "GET", fmt.Sprintf("/api/lobbies/%d", id), nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatLobbyInfo(&info)), nil
}

func (c *Client) handleServerStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var stats service.ServerStats
	if err := c.apiCall(ctx, "GET", "/api/stats", nil, &stats); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatServerStats(&stats)), nil
}

func (c *Client) handleGameRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var rules service.RulesInfo
	if err := c.apiCall(ctx, "GET", "/api/rules", nil, &rules); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRules(&rules)), nil
}

func (c *Client) handleHowToPlay(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := `Rock Paper Scissors Lobby - How to Play

CONNECTING:
- TCP: connect to the game port and send one line per message
- WebSocket: connect to /ws/play and send one text frame per message
- Spectators connect to /ws/watch (add ?lobby=ID for a single lobby)

FIRST MESSAGE:
- create: open a new lobby and wait for an opponent
- join: enter the oldest lobby that is still waiting
- anything else is rejected and the connection is closed

PLAYING:
- Once both players are present each sends rock, paper or scissors
- Rock beats scissors, scissors beats paper, paper beats rock
- When both have chosen, both players receive the same result line
- A new round starts immediately; play as many rounds as you like

LEAVING:
- Send done to exit; your opponent is told and may stay or leave
- Closing the connection has the same effect
- A lobby is retired once both players are gone

Good luck!`

	return mcp.NewToolResultText(instructions), nil
}

// Formatting helpers

func formatLobbyList(lobbies []service.LobbyInfo, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Lobbies (%d of %d):\n\n", len(lobbies), total)
	if len(lobbies) == 0 {
		b.WriteString("No lobbies. Connect and send create to open one.\n")
		return b.String()
	}
	for _, l := range lobbies {
		joinable := ""
		if l.Joinable {
			joinable = " [joinable]"
		}
		fmt.Fprintf(&b, "- Lobby %d: %s, %d/2 players, %d rounds, age %s%s\n",
			l.ID, l.Status, l.Participants, l.Rounds, l.Age, joinable)
	}
	return b.String()
}

func formatLobbyInfo(info *service.LobbyInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Lobby %d\n", info.ID)
	fmt.Fprintf(&b, "Status: %s\n", info.Status)
	fmt.Fprintf(&b, "Created: %s (age %s)\n", info.CreatedAt.Format(time.RFC3339), info.Age)
	fmt.Fprintf(&b, "Rounds: %d\n", info.Rounds)
	fmt.Fprintf(&b, "Score: Player 1 %d, Player 2 %d, Draws %d\n",
		info.Score.SlotOne, info.Score.SlotTwo, info.Score.Draws)

	b.WriteString("\nPlayers:\n")
	for _, p := range info.Players {
		state := "empty"
		switch {
		case p.Present && p.HasMoved:
			state = "connected, choice made"
		case p.Present:
			state = "connected"
		case p.Vacated:
			state = "left"
		}
		fmt.Fprintf(&b, "- Player %d: %s\n", p.Slot, state)
	}
	return b.String()
}

func formatServerStats(stats *service.ServerStats) string {
	var b strings.Builder
	b.WriteString("Server Stats\n\n")
	fmt.Fprintf(&b, "Uptime: %s\n", stats.Uptime)
	fmt.Fprintf(&b, "Live lobbies: %d (%d waiting, %d active)\n", stats.Lobbies, stats.Waiting, stats.Active)
	fmt.Fprintf(&b, "Connected players: %d\n", stats.Participants)
	fmt.Fprintf(&b, "Lobbies created: %d, retired: %d\n", stats.Created, stats.Retired)
	fmt.Fprintf(&b, "Rounds played: %d\n", stats.RoundsPlayed)
	if stats.ShuttingDown {
		b.WriteString("\n⚠️ Server is shutting down\n")
	}
	return b.String()
}

func formatRules(rules *service.RulesInfo) string {
	var b strings.Builder
	b.WriteString("Game Rules\n\n")
	fmt.Fprintf(&b, "Players per lobby: %d\n", rules.Players)
	fmt.Fprintf(&b, "First message: %s\n", strings.Join(rules.Intents, " | "))
	fmt.Fprintf(&b, "Choices: %s\n", strings.Join(rules.Choices, " | "))
	fmt.Fprintf(&b, "Leave command: %s\n", rules.LeaveCommand)

	winners := make([]string, 0, len(rules.Beats))
	for w := range rules.Beats {
		winners = append(winners, w)
	}
	sort.Strings(winners)
	b.WriteString("\nOutcomes:\n")
	for _, w := range winners {
		fmt.Fprintf(&b, "- %s beats %s\n", w, rules.Beats[w])
	}

	if len(rules.Results) > 0 {
		b.WriteString("\nResult lines:\n")
		for _, r := range rules.Results {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	return b.String()
}
