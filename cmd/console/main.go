package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// ConsoleConfig holds configuration for the console client.
type ConsoleConfig struct {
	APIBaseURL string
	WorldID    string
	Timeout    time.Duration
}

// ErrorResponse mirrors the API's error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

func main() {
	config := &ConsoleConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		WorldID:    os.Getenv("WORLD_ID"),
		Timeout:    30 * time.Second,
	}

	client := &http.Client{
		Timeout: config.Timeout,
	}

	if err := testConnection(client, config.APIBaseURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Cannot connect to world engine API at %s\n", config.APIBaseURL)
		fmt.Fprintf(os.Stderr, "Details: %v\n", err)
		fmt.Fprintf(os.Stderr, "\nPlease ensure the API server is running.\n")
		os.Exit(1)
	}

	ui := NewConsoleUI(client, config)
	p := tea.NewProgram(ui, tea.WithAltScreen(), tea.WithMouseCellMotion())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running console: %v\n", err)
		os.Exit(1)
	}
}

// testConnection verifies the API is reachable before starting the UI.
func testConnection(client *http.Client, baseURL string) error {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return fmt.Errorf("failed to reach API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API health check returned status %d", resp.StatusCode)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
