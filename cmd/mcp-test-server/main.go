// Command mcp-test-server runs a stdio MCP server for exercising the
// dialog session layer. It provides "echo", "get_time", and a
// "load_image" tool that returns a small inline data URL, matching the
// image-deferral path of the orchestrator.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// onePixelPNG is a 1x1 transparent PNG, base64-encoded.
const onePixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJ" +
	"AAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func main() {
	server := mcp.NewServer(
		&mcp.Implementation{Name: "dialog-test-mcp", Version: "v1.0.0"},
		nil,
	)

	type EchoInput struct {
		Message string `json:"message" jsonschema_description:"The message to echo back"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "echo",
		Description: "Echoes the provided message back",
	}, func(_ context.Context, _ *mcp.CallToolRequest, input EchoInput) (*mcp.CallToolResult, struct{}, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Echo: %s", input.Message)},
			},
		}, struct{}{}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_time",
		Description: "Returns the current UTC time",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, struct{}, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Current time: %s", time.Now().UTC().Format(time.RFC3339))},
			},
		}, struct{}{}, nil
	})

	type LoadImageInput struct {
		Path string `json:"path" jsonschema_description:"Path of the image to load"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "load_image",
		Description: "Loads an image and returns it as a data URL",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ LoadImageInput) (*mcp.CallToolResult, struct{}, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: "data:image/png;base64," + onePixelPNG},
			},
		}, struct{}{}, nil
	})

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}
