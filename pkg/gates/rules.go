package gates

import (
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// RuleFile is the on-disk YAML format for scanner rules.
type RuleFile struct {
	SAST    []PatternRule       `yaml:"sast"`
	Secrets []PatternRule       `yaml:"secrets"`
	CVEs    []VulnerableDepRule `yaml:"cves"`
}

// PatternRule matches file content against a regular expression.
type PatternRule struct {
	ID          string   `yaml:"id"`
	Pattern     string   `yaml:"pattern"`
	Severity    Severity `yaml:"severity"`
	Description string   `yaml:"description"`
}

// VulnerableDepRule marks a known-vulnerable dependency version.
type VulnerableDepRule struct {
	Name     string   `yaml:"name"`
	Version  string   `yaml:"version"`
	CVE      string   `yaml:"cve"`
	Severity Severity `yaml:"severity"`
}

type compiledRule struct {
	PatternRule
	re *regexp.Regexp
}

// Rules is the compiled, hot-reloadable rule set shared by the builtin
// scanners. Safe for concurrent use.
type Rules struct {
	mu      sync.RWMutex
	sast    []compiledRule
	secrets []compiledRule
	cves    []VulnerableDepRule

	logger *logrus.Logger
}

// DefaultRules returns the built-in rule set used when no rules file is
// configured.
func DefaultRules() *Rules {
	r := &Rules{logger: logrus.StandardLogger()}
	// Compile errors impossible here; patterns are constants.
	_ = r.load(&RuleFile{
		SAST: []PatternRule{
			{ID: "exec-shell", Pattern: `\b(os\.system|subprocess\.Popen|eval|exec)\s*\(`, Severity: SeverityHigh, Description: "dynamic code or shell execution"},
			{ID: "curl-pipe-sh", Pattern: `curl[^\n]*\|\s*(ba)?sh`, Severity: SeverityCritical, Description: "remote script piped to shell"},
			{ID: "insecure-tls", Pattern: `InsecureSkipVerify\s*:\s*true|verify\s*=\s*False`, Severity: SeverityHigh, Description: "TLS verification disabled"},
			{ID: "world-writable", Pattern: `chmod\s+0?777`, Severity: SeverityMedium, Description: "world-writable permissions"},
		},
		Secrets: []PatternRule{
			{ID: "aws-access-key", Pattern: `AKIA[0-9A-Z]{16}`, Severity: SeverityCritical, Description: "AWS access key ID"},
			{ID: "private-key", Pattern: `-----BEGIN (RSA |EC |OPENSSH )?PRIVATE KEY-----`, Severity: SeverityCritical, Description: "private key material"},
			{ID: "generic-token", Pattern: `(?i)(api[_-]?key|secret|token|password)\s*[:=]\s*['"][A-Za-z0-9+/_\-]{16,}['"]`, Severity: SeverityHigh, Description: "hardcoded credential"},
			{ID: "github-token", Pattern: `gh[pousr]_[A-Za-z0-9]{36,}`, Severity: SeverityCritical, Description: "GitHub token"},
		},
	})
	return r
}

// LoadRules reads and compiles a rules file.
func LoadRules(path string, logger *logrus.Logger) (*Rules, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	r := &Rules{logger: logger}
	if err := r.loadFile(path); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Rules) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rules file: %w", err)
	}
	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return fmt.Errorf("failed to parse rules file: %w", err)
	}
	return r.load(&rf)
}

func (r *Rules) load(rf *RuleFile) error {
	compile := func(rules []PatternRule) ([]compiledRule, error) {
		out := make([]compiledRule, 0, len(rules))
		for _, pr := range rules {
			re, err := regexp.Compile(pr.Pattern)
			if err != nil {
				return nil, fmt.Errorf("rule %s: invalid pattern: %w", pr.ID, err)
			}
			out = append(out, compiledRule{PatternRule: pr, re: re})
		}
		return out, nil
	}

	sast, err := compile(rf.SAST)
	if err != nil {
		return err
	}
	secrets, err := compile(rf.Secrets)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sast = sast
	r.secrets = secrets
	r.cves = rf.CVEs
	return nil
}

// Watch reloads the rules file whenever it changes on disk. It blocks until
// stop is closed; run it in its own goroutine. A reload failure keeps the
// previous rule set.
func (r *Rules) Watch(path string, stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create rules watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch rules file: %w", err)
	}

	for {
		select {
		case <-stop:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := r.loadFile(path); err != nil {
				r.logger.Warnf("Rules reload failed, keeping previous set: %v", err)
				continue
			}
			r.logger.Infof("Reloaded scanner rules from %s", path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warnf("Rules watcher error: %v", err)
		}
	}
}

func (r *Rules) sastRules() []compiledRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sast
}

func (r *Rules) secretRules() []compiledRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.secrets
}

func (r *Rules) cveRules() []VulnerableDepRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cves
}
