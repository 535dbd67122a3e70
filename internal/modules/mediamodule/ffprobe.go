package mediamodule

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// ffprobe availability cache; probing every indexed file with a failing
// binary lookup would dominate scan time.
var (
	ffprobeAvailable     *bool
	ffprobeCheckTime     time.Time
	ffprobeCheckMutex    sync.Mutex
	ffprobeCheckInterval = 5 * time.Minute
)

// VideoProbe holds the subset of stream metadata the wall needs
type VideoProbe struct {
	Duration float64
	Width    int
	Height   int
	Codec    string
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeStream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Duration  string `json:"duration"`
}

// IsFFProbeAvailable reports whether ffprobe can be executed, caching the
// answer for a few minutes.
func IsFFProbeAvailable() bool {
	ffprobeCheckMutex.Lock()
	defer ffprobeCheckMutex.Unlock()

	if ffprobeAvailable != nil && time.Since(ffprobeCheckTime) < ffprobeCheckInterval {
		return *ffprobeAvailable
	}

	err := exec.Command("ffprobe", "-version").Run()
	available := err == nil
	ffprobeAvailable = &available
	ffprobeCheckTime = time.Now()
	return available
}

// ProbeVideo extracts duration and dimensions from the first video stream
func ProbeVideo(ctx context.Context, path string) (*VideoProbe, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path)

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("ffprobe failed for %s: %s", path, string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	probe, err := parseVideoProbe(output)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return probe, nil
}

func parseVideoProbe(output []byte) (*VideoProbe, error) {
	var parsed ffprobeOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	var stream *ffprobeStream
	for i := range parsed.Streams {
		if parsed.Streams[i].CodecType == "video" {
			stream = &parsed.Streams[i]
			break
		}
	}
	if stream == nil {
		return nil, fmt.Errorf("no video stream")
	}

	probe := &VideoProbe{
		Width:  stream.Width,
		Height: stream.Height,
		Codec:  stream.CodecName,
	}

	// Container duration is usually present; fall back to the stream's own
	if d, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
		probe.Duration = d
	} else if d, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
		probe.Duration = d
	}

	return probe, nil
}
