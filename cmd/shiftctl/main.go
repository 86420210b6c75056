// Package main implements the shiftctl CLI for manual operations
// against the shiftd HTTP server.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/shiftd/internal/engine"
	"github.com/fyrsmithlabs/shiftd/internal/httpapi"
)

var (
	// serverURL is the base URL for the shiftd HTTP server
	serverURL  string
	outputJSON bool
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "shiftctl",
	Short: "CLI for shiftd HTTP server operations",
	Long: `shiftctl is a command-line interface for interacting with the shiftd
daemon. It shows engine status and intelligence reports and controls
autonomous operation.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8484", "shiftd server URL")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output results as JSON")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(emergencyStopCmd)
	rootCmd.AddCommand(healthCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine status",
	Long: `Show the current state of the autonomous scheduling engine.

Examples:
  # Show status
  shiftctl status

  # Raw JSON for scripting
  shiftctl status --json

  # Use a different server
  shiftctl status --server http://localhost:9090`,
	RunE: runStatus,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the full intelligence report",
	Long: `Build and show the engine's intelligence report: health breakdown,
performance aggregates, self-healing history, and cache statistics.

The report runs a fresh health check on the server. Fails with a
conflict while the engine has not been initialized.

Examples:
  # Show the report
  shiftctl report

  # Raw JSON for dashboards
  shiftctl report --json`,
	RunE: runReport,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop autonomous operation",
	Long: `Gracefully stop the periodic loops. In-flight work finishes; the
prediction cache and metrics are kept and the engine can be restarted
by restarting the daemon.`,
	RunE: runStop,
}

var emergencyStopCmd = &cobra.Command{
	Use:   "emergency-stop",
	Short: "Stop the engine and clear the prediction cache",
	Long: `Stop the periodic loops and discard all cached predictions. The
engine requires reinitialization afterwards.`,
	RunE: runEmergencyStop,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check shiftd server health",
	RunE:  runHealth,
}

// getJSON performs a GET and decodes the response into out.
func getJSON(path string, out any) error {
	url := serverURL + path

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// postJSON performs a POST with no body and decodes the response.
func postJSON(path string, out any) error {
	url := serverURL + path

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(url, "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runStatus(cmd *cobra.Command, args []string) error {
	var st engine.Status
	if err := getJSON("/api/v1/status", &st); err != nil {
		return err
	}

	if outputJSON {
		return printJSON(st)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "State:\t%s\n", st.State)
	fmt.Fprintf(w, "Autonomous:\t%v\n", st.Autonomous)
	fmt.Fprintf(w, "Monitoring:\t%s\n", st.Monitored)
	fmt.Fprintf(w, "Self-healing:\t%v\n", st.SelfHealingEnabled)
	fmt.Fprintf(w, "Health:\t%s\n", orDash(string(st.HealthStatus)))
	fmt.Fprintf(w, "Cache size:\t%d\n", st.CacheSize)
	fmt.Fprintf(w, "Generations:\t%d\n", st.Metrics.GenerationCount)
	fmt.Fprintf(w, "Auto-corrections:\t%d\n", st.Metrics.AutoCorrections)
	fmt.Fprintf(w, "Ticks skipped:\t%d\n", st.Metrics.TicksSkipped)
	fmt.Fprintf(w, "Operation days:\t%d\n", st.Metrics.OperationDays)
	fmt.Fprintf(w, "Uptime:\t%s\n", st.Metrics.Uptime)
	fmt.Fprintf(w, "Failures recorded:\t%d\n", len(st.Metrics.Failures))
	return w.Flush()
}

func runReport(cmd *cobra.Command, args []string) error {
	var rep engine.IntelligenceReport
	if err := getJSON("/api/v1/report", &rep); err != nil {
		return err
	}

	if outputJSON {
		return printJSON(rep)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Generated:\t%s\n", rep.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "State:\t%s\n", rep.State)
	fmt.Fprintf(w, "\nHealth\t\n")
	fmt.Fprintf(w, "  Status:\t%s\n", rep.Health.Status)
	fmt.Fprintf(w, "  Overall:\t%.2f\n", rep.Health.Overall)
	fmt.Fprintf(w, "  AI engine:\t%.2f\n", rep.Health.AIEngine)
	fmt.Fprintf(w, "  Data integrity:\t%.2f\n", rep.Health.DataIntegrity)
	fmt.Fprintf(w, "  Performance:\t%.2f\n", rep.Health.Performance)
	fmt.Fprintf(w, "  Memory:\t%.2f\n", rep.Health.Memory)
	fmt.Fprintf(w, "\nPerformance\t\n")
	fmt.Fprintf(w, "  Mean score:\t%.1f\n", rep.Performance.MeanIntelligenceScore)
	fmt.Fprintf(w, "  Generations:\t%d\n", rep.Performance.GenerationCount)
	fmt.Fprintf(w, "  Last generation:\t%s\n", rep.Performance.LastGenerationTime)
	fmt.Fprintf(w, "  Memory estimate:\t%.0f MB\n", rep.Performance.MemoryEstimateMB)
	fmt.Fprintf(w, "\nSelf-healing\t\n")
	fmt.Fprintf(w, "  Attempts:\t%d\n", rep.Healing.Attempts)
	fmt.Fprintf(w, "  Improved:\t%d\n", rep.Healing.Improved)
	fmt.Fprintf(w, "  Success rate:\t%.0f%%\n", rep.Healing.SuccessRate*100)
	fmt.Fprintf(w, "  Threshold:\t%.0f\n", rep.Healing.Threshold)
	fmt.Fprintf(w, "\nCache\t\n")
	fmt.Fprintf(w, "  Size:\t%d\n", rep.Cache.Size)
	fmt.Fprintf(w, "  Hits:\t%d\n", rep.Cache.Hits)
	fmt.Fprintf(w, "  Misses:\t%d\n", rep.Cache.Misses)
	fmt.Fprintf(w, "  Evicted:\t%d\n", rep.Cache.Evicted)
	fmt.Fprintf(w, "  Hit ratio:\t%.0f%%\n", rep.Cache.HitRatio*100)
	return w.Flush()
}

func runStop(cmd *cobra.Command, args []string) error {
	var resp httpapi.StopResponse
	if err := postJSON("/api/v1/stop", &resp); err != nil {
		return err
	}
	if outputJSON {
		return printJSON(resp)
	}
	fmt.Printf("Engine state: %s\n", resp.State)
	return nil
}

func runEmergencyStop(cmd *cobra.Command, args []string) error {
	var resp httpapi.StopResponse
	if err := postJSON("/api/v1/emergency-stop", &resp); err != nil {
		return err
	}
	if outputJSON {
		return printJSON(resp)
	}
	fmt.Printf("Engine state: %s (cache cleared)\n", resp.State)
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	var resp httpapi.HealthzResponse
	if err := getJSON("/healthz", &resp); err != nil {
		return err
	}
	if outputJSON {
		return printJSON(resp)
	}
	fmt.Printf("Server status: %s\n", resp.Status)
	fmt.Printf("Engine state: %s\n", resp.Engine)
	fmt.Printf("Server URL: %s\n", serverURL)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
