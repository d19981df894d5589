package detect

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// CLIInfo describes one detected AI command-line tool.
type CLIInfo struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Command     string `json:"command"`
	Path        string `json:"path"`
	Version     string `json:"version"`
	Description string `json:"description"`
	InstallURL  string `json:"install_url"`
}

type cliSpec struct {
	key         string
	commands    []string
	name        string
	description string
	installURL  string
}

// knownCLIs catalogs the assistant CLIs we can drive, with candidate binary
// names in probe order.
var knownCLIs = []cliSpec{
	{
		key:         "claude",
		commands:    []string{"claude", "claude-code", "claude-cli"},
		name:        "Claude CLI",
		description: "Anthropic's Claude AI CLI",
		installURL:  "https://github.com/anthropics/claude-cli",
	},
	{
		key:         "gemini",
		commands:    []string{"gemini", "gemini-cli"},
		name:        "Google Gemini CLI",
		description: "Google's Gemini AI CLI",
		installURL:  "https://cloud.google.com/sdk",
	},
	{
		key:         "openai",
		commands:    []string{"openai", "gpt", "chatgpt-cli"},
		name:        "OpenAI CLI",
		description: "OpenAI's ChatGPT CLI",
		installURL:  "https://github.com/openai/openai-cli",
	},
	{
		key:         "copilot",
		commands:    []string{"github-copilot-cli", "copilot"},
		name:        "GitHub Copilot CLI",
		description: "GitHub Copilot in the CLI",
		installURL:  "https://github.com/github/copilot-cli",
	},
	{
		key:         "llama",
		commands:    []string{"ollama", "llama", "llama-cli"},
		name:        "Llama/Ollama CLI",
		description: "Meta's Llama or Ollama CLI",
		installURL:  "https://ollama.ai",
	},
	{
		key:         "mistral",
		commands:    []string{"mistral", "mistral-cli"},
		name:        "Mistral CLI",
		description: "Mistral AI CLI",
		installURL:  "https://mistral.ai",
	},
	{
		key:         "perplexity",
		commands:    []string{"perplexity", "pplx"},
		name:        "Perplexity CLI",
		description: "Perplexity AI CLI",
		installURL:  "https://www.perplexity.ai",
	},
}

const versionProbeTimeout = 5 * time.Second

// Detector finds installed assistant CLIs by path lookup and caches the
// result until the next DetectAll.
type Detector struct {
	mu       sync.RWMutex
	detected map[string]CLIInfo

	lookPath   func(string) (string, error)
	runVersion func(ctx context.Context, command string) string
}

func NewDetector() *Detector {
	return &Detector{
		detected:   make(map[string]CLIInfo),
		lookPath:   exec.LookPath,
		runVersion: probeVersion,
	}
}

// DetectAll probes every known CLI and returns those present, keyed by CLI
// name. An empty result is not an error.
func (d *Detector) DetectAll(ctx context.Context) map[string]CLIInfo {
	found := make(map[string]CLIInfo)
	for _, spec := range knownCLIs {
		if info, ok := d.probe(ctx, spec); ok {
			found[spec.key] = info
		}
	}

	d.mu.Lock()
	d.detected = found
	d.mu.Unlock()
	return d.copyDetected()
}

// Check probes a single CLI, preferring the cache from a prior DetectAll.
func (d *Detector) Check(ctx context.Context, key string) (CLIInfo, bool) {
	d.mu.RLock()
	info, ok := d.detected[key]
	d.mu.RUnlock()
	if ok {
		return info, true
	}

	for _, spec := range knownCLIs {
		if spec.key != key {
			continue
		}
		return d.probe(ctx, spec)
	}
	return CLIInfo{}, false
}

// Detected returns the cached result of the last DetectAll.
func (d *Detector) Detected() map[string]CLIInfo {
	return d.copyDetected()
}

// InstallURL reports where to get a known CLI that is not installed.
func InstallURL(key string) (string, bool) {
	for _, spec := range knownCLIs {
		if spec.key == key {
			return spec.installURL, true
		}
	}
	return "", false
}

func (d *Detector) probe(ctx context.Context, spec cliSpec) (CLIInfo, bool) {
	for _, command := range spec.commands {
		path, err := d.lookPath(command)
		if err != nil {
			continue
		}
		return CLIInfo{
			Key:         spec.key,
			Name:        spec.name,
			Command:     command,
			Path:        path,
			Version:     d.runVersion(ctx, command),
			Description: spec.description,
			InstallURL:  spec.installURL,
		}, true
	}
	return CLIInfo{}, false
}

func (d *Detector) copyDetected() map[string]CLIInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]CLIInfo, len(d.detected))
	for k, v := range d.detected {
		out[k] = v
	}
	return out
}

// probeVersion runs "<command> --version" under a bounded timeout and keeps
// the first output line. Failures degrade to "unknown", never an error.
func probeVersion(ctx context.Context, command string) string {
	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, command, "--version").Output()
	if err != nil {
		return "unknown"
	}
	line := strings.TrimSpace(string(out))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if line == "" {
		return "unknown"
	}
	return line
}
