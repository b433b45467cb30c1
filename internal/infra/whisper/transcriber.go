// Package whisper runs speech-to-text via a whisper.cpp subprocess.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"github.com/scribe-audio/scribed/internal/domain"
	"github.com/scribe-audio/scribed/internal/infra/proc"
	"github.com/scribe-audio/scribed/internal/orchestrator"
)

// Transcriber invokes whisper.cpp with txt transcript export.
type Transcriber struct {
	runner   proc.Runner
	binary   string
	modelDir string
}

// New builds a Transcriber. binaryPath comes from FindBinary or config;
// modelDir is where model files are resolved when a request names a
// model instead of an absolute path.
func New(runner proc.Runner, binaryPath, modelDir string) *Transcriber {
	return &Transcriber{runner: runner, binary: binaryPath, modelDir: modelDir}
}

// FindBinary searches for a whisper.cpp executable. Order: home/bin,
// PATH, then older binary names.
func FindBinary(home string) (string, error) {
	names := []string{"whisper-cli", "whisper-cpp", "whisper"}

	for _, name := range names {
		exe := name
		if runtime.GOOS == "windows" {
			exe = name + ".exe"
		}
		binPath := filepath.Join(home, "bin", exe)
		if _, err := os.Stat(binPath); err == nil {
			return binPath, nil
		}
		if path, err := proc.LookPath(exe); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("whisper.cpp binary not found in %s or PATH (tried %s)",
		filepath.Join(home, "bin"), strings.Join(names, ", "))
}

// ResolveModel maps a model name or path to a model file. A path to an
// existing file wins; a name is looked up in the model directory,
// matching <name>, <name>.bin, <name>.gguf, ggml-<name>.bin.
func (t *Transcriber) ResolveModel(model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return t.anyModel()
	}
	if info, err := os.Stat(model); err == nil && !info.IsDir() {
		return model, nil
	}

	candidates := []string{
		model,
		model + ".bin",
		model + ".gguf",
		"ggml-" + model + ".bin",
	}
	for _, c := range candidates {
		p := filepath.Join(t.modelDir, c)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q in %s", domain.ErrModelNotFound, model, t.modelDir)
}

// anyModel picks the alphabetically first model file in the model dir.
func (t *Transcriber) anyModel() (string, error) {
	entries, err := os.ReadDir(t.modelDir)
	if err != nil {
		return "", fmt.Errorf("%w: cannot read model dir %s", domain.ErrModelNotFound, t.modelDir)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".bin" || ext == ".gguf" {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: no .bin or .gguf files in %s", domain.ErrModelNotFound, t.modelDir)
	}
	sort.Strings(names)
	return filepath.Join(t.modelDir, names[0]), nil
}

// whisper.cpp reports the detected language on stderr, e.g.
// "auto-detected language: en (p = 0.97)".
var detectedLangRe = regexp.MustCompile(`auto-detected language:\s*([a-z]{2,3})`)

// Transcribe runs whisper.cpp on the prepared WAV file and returns the
// transcript text. Inference failures are fatal: the same input fails
// the same way every time.
func (t *Transcriber) Transcribe(ctx context.Context, req orchestrator.TranscribeRequest) (*orchestrator.Transcription, error) {
	modelPath, err := t.ResolveModel(req.Model)
	if err != nil {
		return nil, domain.Fatal(err)
	}

	outBase := filepath.Join(req.WorkDir, "transcript")
	args := []string{
		"-m", modelPath,
		"-f", req.AudioPath,
		"-of", outBase,
		"-otxt",
	}
	if lang := normalizeLanguage(req.Language); lang != "" {
		args = append(args, "-l", lang)
	}

	res, err := t.runner.Run(ctx, nil, t.binary, args...)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, &domain.Failure{Kind: domain.FailureCancelled, Err: ctx.Err()}
		}
		return nil, domain.Fatalf("whisper.cpp: %s", lastLine(res.Stderr, err))
	}

	textPath := outBase + ".txt"
	content, err := os.ReadFile(textPath)
	if err != nil {
		return nil, domain.Fatalf("whisper.cpp produced no transcript file: %v", err)
	}

	language := req.Language
	if m := detectedLangRe.FindStringSubmatch(res.Stderr); m != nil {
		language = m[1]
	}

	return &orchestrator.Transcription{
		Text:     strings.TrimSpace(string(content)),
		Language: language,
	}, nil
}

// normalizeLanguage maps "auto" and empty to no CLI override.
func normalizeLanguage(lang string) string {
	lang = strings.TrimSpace(strings.ToLower(lang))
	if lang == "" || lang == "auto" {
		return ""
	}
	return lang
}

func lastLine(stderr string, err error) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return err.Error()
}
