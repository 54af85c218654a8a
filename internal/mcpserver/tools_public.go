package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPublicTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_rooms",
			mcp.WithDescription("List active rooms in ascending id order"),
		),
		s.handleListRooms,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_room",
			mcp.WithDescription("Get a room record with its settlement"),
			mcp.WithNumber("room_id", mcp.Required(), mcp.Description("Room id")),
		),
		s.handleGetRoom,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_participant_stats",
			mcp.WithDescription("Get cross-room statistics for a principal"),
			mcp.WithString("principal", mcp.Required(), mcp.Description("Participant principal")),
		),
		s.handleParticipantStats,
	)
}

func (s *Server) handleListRooms(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return toolResult(s.svc.Rooms()), nil
}

func (s *Server) handleGetRoom(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := roomIDArg(request)
	if err != nil {
		return toolError("invalid_parameters", err.Error()), nil
	}
	resp, err := s.svc.Room(id)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleParticipantStats(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	principal, err := request.RequireString("principal")
	if err != nil {
		return toolError("invalid_parameters", err.Error()), nil
	}
	resp, err := s.svc.Stats(principal)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}
