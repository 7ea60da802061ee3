package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// RequiredEncoders are the ffmpeg encoders the canonical MP4 format needs.
var RequiredEncoders = []string{"libx264", "aac"}

const probeTimeout = 5 * time.Second

// CheckFFmpeg resolves binary, records its version and verifies that the
// encoders used for canonical output are compiled in.
func CheckFFmpeg(ctx context.Context, binary string) Status {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	status := Status{
		Name:        "FFmpeg",
		Command:     binary,
		Description: "Required for transcoding audio and video notes",
	}

	resolved, err := exec.LookPath(binary)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", binary)
		return status
	}
	status.Command = resolved

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := commandContext(probeCtx, resolved, "-hide_banner", "-version").Output()
	if err != nil {
		status.Detail = fmt.Sprintf("version probe failed: %v", err)
		return status
	}
	status.Version = parseVersion(out)

	encoders, err := commandContext(probeCtx, resolved, "-hide_banner", "-encoders").Output()
	if err != nil {
		status.Detail = fmt.Sprintf("encoder probe failed: %v", err)
		return status
	}
	if missing := missingEncoders(encoders, RequiredEncoders); len(missing) > 0 {
		status.Detail = fmt.Sprintf("missing encoders: %s", strings.Join(missing, ", "))
		return status
	}

	status.Available = true
	return status
}

// parseVersion extracts "7.0.1" from "ffmpeg version 7.0.1 Copyright ...".
func parseVersion(out []byte) string {
	line, _, _ := bytes.Cut(out, []byte("\n"))
	fields := strings.Fields(string(line))
	for i, field := range fields {
		if field == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}

// missingEncoders scans `ffmpeg -encoders` output, whose rows look like
// " V....D libx264   libx264 H.264 / AVC ...".
func missingEncoders(out []byte, want []string) []string {
	found := make(map[string]bool, len(want))
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && len(fields[0]) == 6 {
			found[fields[1]] = true
		}
	}
	var missing []string
	for _, name := range want {
		if !found[name] {
			missing = append(missing, name)
		}
	}
	return missing
}
