// Package media acquires and prepares audio for the pipeline.
//
// Both operations shell out: ffmpeg converts arbitrary uploads into the
// 16 kHz mono WAV the transcriber expects, and yt-dlp fetches remote URLs.
// Keeping the codecs out of process means any container or stream format the
// tools understand is accepted without new dependencies here.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Option is a functional option for Processor.
type Option func(*Processor)

// WithFFmpegPath overrides the ffmpeg binary. Defaults to "ffmpeg" via PATH.
func WithFFmpegPath(path string) Option {
	return func(p *Processor) {
		if path != "" {
			p.ffmpegPath = path
		}
	}
}

// WithYtDlpPath overrides the yt-dlp binary. Defaults to "yt-dlp" via PATH.
func WithYtDlpPath(path string) Option {
	return func(p *Processor) {
		if path != "" {
			p.ytdlpPath = path
		}
	}
}

// WithCookieFile points yt-dlp at a Netscape cookies.txt for gated content.
func WithCookieFile(path string) Option {
	return func(p *Processor) { p.cookieFile = path }
}

// Processor runs the external acquisition tools. Safe for concurrent use.
type Processor struct {
	workDir    string
	ffmpegPath string
	ytdlpPath  string
	cookieFile string
}

// New creates a Processor that writes its outputs under workDir, creating it
// if needed.
func New(workDir string, opts ...Option) (*Processor, error) {
	if workDir == "" {
		workDir = os.TempDir()
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("media: create work dir: %w", err)
	}
	p := &Processor{
		workDir:    workDir,
		ffmpegPath: "ffmpeg",
		ytdlpPath:  "yt-dlp",
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ExtractAudio converts the media file at inputPath into a 16 kHz mono WAV
// next to the processor's work dir and returns its path. The output name is
// derived from the input base name.
func (p *Processor) ExtractAudio(ctx context.Context, inputPath string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	out := filepath.Join(p.workDir, base+"_audio_16k.wav")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.ffmpegPath,
		"-y", "-nostdin",
		"-i", inputPath,
		"-ac", "1", "-ar", "16000",
		"-f", "wav",
		out,
	)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("media: ffmpeg extract %q: %w (stderr: %s)",
			inputPath, err, lastLine(stderr.String()))
	}
	return out, nil
}

// Download fetches the best audio stream for url through yt-dlp, transcoding
// to mp3, and returns the downloaded file path and the media title. The title
// falls back to "Unknown Title" when yt-dlp does not report one.
func (p *Processor) Download(ctx context.Context, url string) (path, title string, err error) {
	outTemplate := filepath.Join(p.workDir, "%(id)s.%(ext)s")

	args := []string{
		"--no-warnings",
		"--quiet",
		"--format", "bestaudio/best",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "192K",
		"--output", outTemplate,
		// One line each, both after the move so the order is stable.
		"--print", "after_move:filepath",
		"--print", "after_move:title",
		"--no-simulate",
	}
	if p.cookieFile != "" {
		args = append(args, "--cookies", p.cookieFile)
	}
	args = append(args, url)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.ytdlpPath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", "", fmt.Errorf("media: yt-dlp download %q: %w (stderr: %s)",
			url, err, lastLine(stderr.String()))
	}

	lines := nonEmptyLines(stdout.String())
	if len(lines) < 1 {
		return "", "", fmt.Errorf("media: yt-dlp produced no output for %q", url)
	}
	path = lines[0]
	title = "Unknown Title"
	if len(lines) > 1 && strings.TrimSpace(lines[1]) != "" {
		title = strings.TrimSpace(lines[1])
	}

	if _, statErr := os.Stat(path); statErr != nil {
		return "", "", fmt.Errorf("media: expected output file not found: %w", statErr)
	}
	return path, title, nil
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, strings.TrimSpace(line))
		}
	}
	return out
}

// lastLine returns the final non-empty line of s; tool stderr is noisy and
// the last line usually carries the actual error.
func lastLine(s string) string {
	lines := nonEmptyLines(s)
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
