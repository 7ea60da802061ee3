package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chestnotes/internal/config"
	"chestnotes/internal/deps"
	"chestnotes/internal/httpapi"
	"chestnotes/internal/preflight"
)

const statusRequestTimeout = 3 * time.Second

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			report, fetchErr := fetchStatus(cmd.Context(), cfg)
			lines := renderSectionHeader("Server", colorize)
			lines = append(lines, serverLines(cfg, report, fetchErr, colorize)...)

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Storage", colorize)...)
			lines = append(lines,
				directoryStatusLine("Data directory", cfg.Paths.DataDir, colorize),
				directoryStatusLine("Staging directory", cfg.Paths.StagingDir, colorize),
				directoryStatusLine("Blob directory", cfg.Paths.BlobDir, colorize),
			)
			// An embedded store may be locked by the running server.
			if report == nil {
				lines = append(lines, resultLine(preflight.CheckDatabase(cmd.Context(), cfg.DatabaseURL()), statusError, colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			lines = append(lines, dependencyLines(preflight.CheckSystemDeps(cmd.Context(), cfg), colorize)...)
			lines = append(lines, ntfyStatusLine(cmd.Context(), cfg, colorize))

			for _, line := range lines {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

// statusURL turns the bind address into a URL reachable from this host.
func statusURL(cfg *config.Config) string {
	host, port, err := net.SplitHostPort(cfg.Server.Bind)
	if err != nil {
		return ""
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + strings.TrimRight(cfg.Server.RoutePrefix, "/") + "/status"
}

func fetchStatus(ctx context.Context, cfg *config.Config) (*httpapi.StatusReport, error) {
	url := statusURL(cfg)
	if url == "" {
		return nil, fmt.Errorf("invalid bind address %q", cfg.Server.Bind)
	}
	reqCtx, cancel := context.WithTimeout(ctx, statusRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if token := strings.TrimSpace(cfg.Server.APIToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}
	var report httpapi.StatusReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &report, nil
}

func serverLines(cfg *config.Config, report *httpapi.StatusReport, fetchErr error, colorize bool) []string {
	if report == nil {
		detail := fmt.Sprintf("Not running (no answer at %s: %v)", cfg.Server.Bind, fetchErr)
		return []string{renderStatusLine("Chest", statusError, detail, colorize)}
	}
	lines := []string{
		renderStatusLine("Chest", statusOK, fmt.Sprintf("Running at %s (up %s)", cfg.Server.Bind, report.Uptime), colorize),
		renderStatusLine("Notes", statusInfo, fmt.Sprintf("%d total, %d text, %d media", report.Notes.Total, report.Notes.Text, report.Notes.Media), colorize),
	}
	pendingKind := statusInfo
	if report.Notes.Incomplete > 0 {
		pendingKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Processing", pendingKind, fmt.Sprintf("%d pending jobs, %d incomplete notes", report.Pending, report.Notes.Incomplete), colorize))
	if t := report.Transcode; t != nil {
		lines = append(lines, renderStatusLine("Transcoders", statusInfo, fmt.Sprintf("%d/%d busy, %d waiting", t.Active, t.Size, t.Waiting), colorize))
	}
	dropKind := statusInfo
	if report.Events.Dropped > 0 {
		dropKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Subscribers", dropKind,
		fmt.Sprintf("%d connected, %d events published, %d dropped", report.Events.Subscribers, report.Events.Published, report.Events.Dropped), colorize))
	lines = append(lines, renderStatusLine("Auth", statusInfo, "API token required: "+yesNo(cfg.Server.APIToken != ""), colorize))
	return lines
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses)+1)
	missing := make([]string, 0)
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s", dep.Command)
				if dep.Version != "" {
					message += ", version " + dep.Version
				}
				message += ")"
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}

		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", ")+" (media uploads will fail)", colorize))
	}
	return lines
}
