// Package mcpserver exposes the room ledger as MCP tools over streamable HTTP.
package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"cipher-rooms/internal/app/rooms"
	"cipher-rooms/internal/auth"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type Server struct {
	svc    *rooms.Service
	issuer *auth.Issuer

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(svc *rooms.Service, issuer *auth.Issuer) *Server {
	mcpSrv := server.NewMCPServer(
		"cipher-rooms",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithResourceRecovery(),
	)
	s := &Server{
		svc:        svc,
		issuer:     issuer,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerPublicTools()
	s.registerGameplayTools()
	s.registerResources()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"room://{room_id}/state",
			"room_state",
			mcp.WithTemplateDescription("Room record with settlement by room id"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			raw := string(request.Params.URI)
			if !strings.HasPrefix(raw, "room://") || !strings.HasSuffix(raw, "/state") {
				return nil, nil
			}
			id, err := strconv.ParseUint(strings.TrimSuffix(strings.TrimPrefix(raw, "room://"), "/state"), 10, 64)
			if err != nil {
				return nil, err
			}
			room, err := s.svc.Room(id)
			if err != nil {
				return nil, err
			}
			payload, err := json.Marshal(room)
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      raw,
					MIMEType: "application/json",
					Text:     string(payload),
				},
			}, nil
		},
	)
}

// authPrincipal resolves the token argument of a mutating tool.
func (s *Server) authPrincipal(request mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	token := strings.TrimSpace(request.GetString("token", ""))
	if token == "" {
		return "", toolError("unauthorized", "token is required")
	}
	principal, err := s.issuer.Verify(token)
	if err != nil {
		return "", toolError("unauthorized", "invalid token")
	}
	return principal, nil
}
