// ABOUTME: Scan command replays a directory of frames through the scan loop
// ABOUTME: Reports newly identified artworks and no-match windows as they happen
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harper/artmatch/internal/logging"
	"github.com/harper/artmatch/internal/scan"
	"github.com/harper/artmatch/internal/storage"
)

var frameExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// NewScanCmd creates the scan command
func NewScanCmd() *cobra.Command {
	var (
		interval time.Duration
		window   time.Duration
		loop     bool
	)

	cmd := &cobra.Command{
		Use:   "scan <dir>",
		Short: "Run the scan loop over a directory of frames",
		Long: `Run the scan loop over a directory of frames.

Image files in the directory are fed to the scanner in name order, one per
poll interval, the way a camera would deliver them. An artwork is reported
when it is first recognised; showing the same artwork again is silent. If
nothing is recognised for the no-match window, that is reported too.`,
		Example: `  artmatch scan ./frames
  artmatch scan --interval 500ms --window 5s --loop ./frames`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args[0], interval, window, loop)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "Delay between frames (default SCAN_POLL_INTERVAL)")
	cmd.Flags().DurationVar(&window, "window", 0, "No-match window (default SCAN_NO_MATCH_WINDOW)")
	cmd.Flags().BoolVar(&loop, "loop", false, "Replay the frames until interrupted")

	return cmd
}

func runScan(cmd *cobra.Command, dir string, interval, window time.Duration, loop bool) error {
	files, err := listFrames(dir)
	if err != nil {
		return err
	}

	a, err := newApp(cmd, setupOptions{embedder: true, store: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if interval <= 0 {
		interval = a.cfg.PollInterval
	}
	if window <= 0 {
		window = a.cfg.NoMatchWindow
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	refs, err := a.store.Snapshot(ctx, a.embedder.Model())
	if errors.Is(err, storage.ErrNoReferences) {
		return fmt.Errorf("no reference set for %s, run 'artmatch index' first", a.embedder.Model())
	}
	if err != nil {
		return fmt.Errorf("failed to load references: %w", err)
	}

	scanLog := logging.Component(a.log, "scan")
	session := scan.NewSession(refs, a.embedder, scan.Policy{Threshold: a.cfg.MatchThreshold},
		scan.WithResolver(a.catalog),
		scan.WithNoMatchWindow(window),
		scan.WithLogger(scanLog))

	frames := make(chan []byte)
	go feedFrames(ctx, files, interval, loop, frames, scanLog)

	printer := newEventPrinter(cmd.OutOrStdout(), resolveFormat(cmd.OutOrStdout()))
	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "Scanning %d frame(s) every %s against %d reference(s)\n", len(files), interval, len(refs))
	}

	err = session.Run(ctx, frames, printer.print)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// listFrames returns the image files of dir sorted by name
func listFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frames: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !frameExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("no JPEG, PNG or GIF frames in %s", dir)
	}
	return files, nil
}

// feedFrames sends one frame per interval and closes out when done
func feedFrames(ctx context.Context, files []string, interval time.Duration, loop bool, out chan<- []byte, log zerolog.Logger) {
	defer close(out)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for _, file := range files {
			frame, err := os.ReadFile(file)
			if err != nil {
				log.Warn().Err(err).Str("file", file).Msg("skipping unreadable frame")
				continue
			}
			log.Debug().Str("file", file).Msg("frame")

			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
		if !loop {
			return
		}
	}
}

// eventPrinter writes scan events as text lines or JSON lines
type eventPrinter struct {
	w      io.Writer
	format string
}

func newEventPrinter(w io.Writer, format string) *eventPrinter {
	return &eventPrinter{w: w, format: format}
}

type eventLine struct {
	Type           scan.EventType       `json:"type"`
	Time           time.Time            `json:"time"`
	Identification *scan.Identification `json:"identification,omitempty"`
	Error          string               `json:"error,omitempty"`
}

func (p *eventPrinter) print(ev scan.Event) {
	if p.format == formatJSON || p.format == formatYAML {
		line := eventLine{Type: ev.Type, Time: ev.Time, Identification: ev.Identification}
		if ev.Err != nil {
			line.Error = ev.Err.Error()
		}
		data, err := json.Marshal(line)
		if err != nil {
			fmt.Fprintf(p.w, "{\"type\":\"error\",\"error\":%q}\n", err.Error())
			return
		}
		fmt.Fprintf(p.w, "%s\n", data)
		return
	}

	stamp := ev.Time.Format("15:04:05")
	switch ev.Type {
	case scan.EventMatched:
		id := ev.Identification
		fmt.Fprintf(p.w, "%s  matched  %s (%.3f)", stamp, id.Match.Label, id.Match.Score)
		if id.Artwork != nil {
			fmt.Fprintf(p.w, "  %s", artworkSummary(id.Artwork))
		} else if id.Resolution != "" {
			fmt.Fprintf(p.w, "  (lookup failed: %s)", id.Resolution)
		}
		fmt.Fprintln(p.w)
	case scan.EventNoMatch:
		fmt.Fprintf(p.w, "%s  no artwork in view\n", stamp)
	case scan.EventError:
		fmt.Fprintf(p.w, "%s  error    %v\n", stamp, ev.Err)
	}
}
