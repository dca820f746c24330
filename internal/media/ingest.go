package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dverbeek/panocast/internal/proto"
)

// Descriptor is a finished ingest result handed to the engine. The engine
// assigns the ID and timestamps; ingest only fills in what the file says.
type Descriptor struct {
	Title           string
	Locator         string
	Kind            proto.MediaKind
	DurationSeconds float64
	SizeBytes       int64
}

var videoExts = map[string]bool{
	".mp4": true, ".webm": true, ".mkv": true, ".mov": true, ".m4v": true,
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
}

// KindForPath maps a file extension to a media kind; ok is false for
// unrecognized files so the watcher can skip partial downloads and sidecars.
func KindForPath(path string) (proto.MediaKind, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case videoExts[ext]:
		return proto.MediaVideo, true
	case imageExts[ext]:
		return proto.MediaImage, true
	default:
		return "", false
	}
}

// FromFile builds a descriptor for a local media file. locator is the URL
// under which this participant serves the file (empty means the raw file
// path, which is local-only by definition). Duration probing shells out to
// ffprobe when available; without it videos get duration 0, which downstream
// only costs seek clamping.
func FromFile(ctx context.Context, path, locator string) (Descriptor, error) {
	kind, ok := KindForPath(path)
	if !ok {
		return Descriptor{}, fmt.Errorf("unsupported media file: %s", filepath.Base(path))
	}

	fi, err := os.Stat(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("stat media file: %w", err)
	}

	if locator == "" {
		locator = path
	}

	d := Descriptor{
		Title:     titleFromFilename(path),
		Locator:   locator,
		Kind:      kind,
		SizeBytes: fi.Size(),
	}
	if kind == proto.MediaVideo {
		d.DurationSeconds = probeDuration(ctx, path)
	}
	return d, nil
}

// titleFromFilename turns "big_buck-bunny.mp4" into "big buck bunny".
func titleFromFilename(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.Join(strings.Fields(base), " ")
}

const probeTimeout = 10 * time.Second

// probeDuration asks ffprobe for the container duration in seconds.
// Returns 0 when ffprobe is missing or the file cannot be parsed.
func probeDuration(ctx context.Context, path string) float64 {
	ffprobe, err := exec.LookPath("ffprobe")
	if err != nil {
		return 0
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || secs < 0 {
		return 0
	}
	return secs
}
