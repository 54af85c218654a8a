package mcpserver

import (
	"context"

	"cipher-rooms/internal/app/rooms"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerGameplayTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"create_room",
			mcp.WithDescription("Create a room. The token's principal becomes the creator."),
			mcp.WithString("token", mcp.Required(), mcp.Description("Bearer token")),
			mcp.WithString("name", mcp.Required(), mcp.Description("Room name")),
			mcp.WithString("category", mcp.Description("Free-form category")),
			mcp.WithString("difficulty", mcp.Description("Free-form difficulty")),
			mcp.WithNumber("capacity", mcp.Required(), mcp.Description("Participants, 2 to 10")),
			mcp.WithNumber("stake", mcp.Required(), mcp.Description("Entry stake per participant")),
		),
		s.handleCreateRoom,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"join_room",
			mcp.WithDescription("Join a room by paying exactly its stake"),
			mcp.WithString("token", mcp.Required(), mcp.Description("Bearer token")),
			mcp.WithNumber("room_id", mcp.Required(), mcp.Description("Room id")),
			mcp.WithNumber("payment", mcp.Required(), mcp.Description("Must equal the room stake")),
			mcp.WithBoolean("is_anonymous", mcp.Description("Encrypted anonymity flag")),
			mcp.WithBoolean("max_privacy", mcp.Description("Encrypted max-privacy flag")),
		),
		s.handleJoinRoom,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"submit_move",
			mcp.WithDescription("Submit an encrypted move to a room you joined"),
			mcp.WithString("token", mcp.Required(), mcp.Description("Bearer token")),
			mcp.WithNumber("room_id", mcp.Required(), mcp.Description("Room id")),
			mcp.WithNumber("move", mcp.Required(), mcp.Description("Move value 0 to 255")),
			mcp.WithBoolean("is_valid", mcp.Description("Encrypted validity flag")),
		),
		s.handleSubmitMove,
	)
}

func (s *Server) handleCreateRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	principal, authErr := s.authPrincipal(request)
	if authErr != nil {
		return authErr, nil
	}
	name, err := request.RequireString("name")
	if err != nil {
		return toolError("invalid_parameters", err.Error()), nil
	}
	capacity, err := wholeArg(request, "capacity")
	if err != nil {
		return toolError("invalid_parameters", err.Error()), nil
	}
	stake, err := wholeArg(request, "stake")
	if err != nil {
		return toolError("invalid_parameters", err.Error()), nil
	}
	resp, err := s.svc.CreateRoom(ctx, principal, rooms.CreateRoomRequest{
		Name:       name,
		Category:   request.GetString("category", ""),
		Difficulty: request.GetString("difficulty", ""),
		Capacity:   int(capacity),
		Stake:      stake,
	})
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleJoinRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	principal, authErr := s.authPrincipal(request)
	if authErr != nil {
		return authErr, nil
	}
	id, err := roomIDArg(request)
	if err != nil {
		return toolError("invalid_parameters", err.Error()), nil
	}
	payment, err := wholeArg(request, "payment")
	if err != nil {
		return toolError("invalid_parameters", err.Error()), nil
	}
	err = s.svc.JoinRoom(ctx, principal, id, rooms.JoinRoomRequest{
		Anonymous:  request.GetBool("is_anonymous", false),
		MaxPrivacy: request.GetBool("max_privacy", false),
		Payment:    payment,
	})
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{"ok": true, "room_id": id}), nil
}

func (s *Server) handleSubmitMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	principal, authErr := s.authPrincipal(request)
	if authErr != nil {
		return authErr, nil
	}
	id, err := roomIDArg(request)
	if err != nil {
		return toolError("invalid_parameters", err.Error()), nil
	}
	move, err := wholeArg(request, "move")
	if err != nil {
		return toolError("invalid_parameters", err.Error()), nil
	}
	err = s.svc.SubmitMove(ctx, principal, id, rooms.SubmitMoveRequest{
		Move:  int(move),
		Valid: request.GetBool("is_valid", false),
	})
	if err != nil {
		return mapDomainError(err), nil
	}
	room, err := s.svc.Room(id)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{"ok": true, "room_id": id, "settlement": room.Settlement}), nil
}
