package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"time"

	"github.com/therealutkarshpriyadarshi/streamflow/internal/logging"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// Unknown is rendered when a duration could not be probed
const Unknown = "--:--"

// DefaultFailureTTL is how long a failed probe is remembered
const DefaultFailureTTL = time.Minute

// failedProbe is the cached marker of a failed probe. Real durations are
// never negative.
const failedProbe = -1

// ErrRecentlyFailed is returned while a failed probe is remembered
var ErrRecentlyFailed = errors.New("duration probe failed recently")

// ProbeData is the part of ffprobe's JSON output we read
type ProbeData struct {
	Format struct {
		Filename string `json:"filename"`
		Duration string `json:"duration"`
		Size     string `json:"size"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
}

// StreamURLer resolves a video id to its byte-stream URL
type StreamURLer interface {
	StreamURL(videoID string) string
}

// DurationCache memoizes probe results
type DurationCache interface {
	GetDuration(ctx context.Context, videoID string) (float64, bool, error)
	SetDuration(ctx context.Context, videoID string, seconds float64, ttl time.Duration) error
}

// Runner executes ffprobe and returns its stdout
type Runner func(ctx context.Context, path string, args ...string) ([]byte, error)

// ExecRunner runs the binary with os/exec
func ExecRunner(ctx context.Context, path string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// Prober reads video durations with ffprobe
type Prober struct {
	ffprobePath string
	timeout     time.Duration
	streams     StreamURLer
	cache       DurationCache
	cacheTTL    time.Duration
	failureTTL  time.Duration
	run         Runner
	group       singleflight.Group
	logger      *logging.Logger
}

// NewProber creates a prober. A nil cache disables memoization.
func NewProber(ffprobePath string, timeout time.Duration, streams StreamURLer, cache DurationCache, cacheTTL time.Duration, logger *logging.Logger) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{
		ffprobePath: ffprobePath,
		timeout:     timeout,
		streams:     streams,
		cache:       cache,
		cacheTTL:    cacheTTL,
		failureTTL:  DefaultFailureTTL,
		run:         ExecRunner,
		logger:      logger,
	}
}

// WithFailureTTL sets how long failed probes are remembered
func (p *Prober) WithFailureTTL(ttl time.Duration) *Prober {
	p.failureTTL = ttl
	return p
}

// WithRunner replaces the ffprobe runner
func (p *Prober) WithRunner(run Runner) *Prober {
	p.run = run
	return p
}

// Duration returns the video's length in seconds. Concurrent calls for one
// video share a single ffprobe run, and a failure is remembered for the
// failure TTL so repeated requests do not spawn new processes.
func (p *Prober) Duration(ctx context.Context, videoID string) (float64, error) {
	if p.cache != nil {
		seconds, ok, err := p.cache.GetDuration(ctx, videoID)
		if err != nil {
			p.logger.WithError(err).Warn("duration cache read failed")
		}
		metrics.RecordCacheAccess("duration", ok)
		if ok {
			if seconds < 0 {
				return 0, ErrRecentlyFailed
			}
			return seconds, nil
		}
	}

	v, err, _ := p.group.Do(videoID, func() (interface{}, error) {
		seconds, err := p.Probe(ctx, p.streams.StreamURL(videoID))
		if err != nil {
			p.remember(ctx, videoID, failedProbe, p.failureTTL)
			return 0.0, err
		}
		p.remember(ctx, videoID, seconds, p.cacheTTL)
		return seconds, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (p *Prober) remember(ctx context.Context, videoID string, seconds float64, ttl time.Duration) {
	if p.cache == nil || ttl <= 0 {
		return
	}
	if err := p.cache.SetDuration(ctx, videoID, seconds, ttl); err != nil {
		p.logger.WithError(err).Warn("duration cache write failed")
	}
}

// Probe runs ffprobe on input and parses the container duration
func (p *Prober) Probe(ctx context.Context, input string) (float64, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	out, err := p.run(ctx, p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		input,
	)
	if err != nil {
		return 0, err
	}

	var data ProbeData
	if err := json.Unmarshal(out, &data); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	seconds, err := strconv.ParseFloat(data.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", data.Format.Duration, err)
	}
	return seconds, nil
}

// Label is the formatted duration of a video, or Unknown when probing fails
func (p *Prober) Label(ctx context.Context, videoID string) string {
	seconds, err := p.Duration(ctx, videoID)
	if err != nil {
		p.logger.WithError(err).WithVideoID(videoID).Debug("duration probe failed")
		return Unknown
	}
	return FormatDuration(seconds)
}

// FormatDuration renders seconds as M:SS, or H:MM:SS from one hour up.
// Zero and NaN render as 0:00.
func FormatDuration(seconds float64) string {
	if seconds == 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "0:00"
	}

	minutes := int64(math.Floor(seconds / 60))
	hours := minutes / 60
	remainingMinutes := minutes % 60
	remainingSeconds := int64(math.Floor(math.Mod(seconds, 60)))

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, remainingMinutes, remainingSeconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, remainingSeconds)
}
