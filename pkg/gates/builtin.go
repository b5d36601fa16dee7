package gates

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// maxScanFileSize bounds how much of a single file the builtin scanners read.
const maxScanFileSize = 1 << 20 // 1MiB

// scanFiles walks the snapshot directory and applies fn to each regular file's
// content. Hidden directories and oversized files are skipped.
func scanFiles(ctx context.Context, dir string, fn func(relPath string, content []byte)) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxScanFileSize {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		rel, _ := filepath.Rel(dir, path)
		fn(filepath.ToSlash(rel), content)
		return nil
	})
}

// sastScanner applies static-analysis pattern rules to every file. Any
// critical or high finding fails the gate.
type sastScanner struct {
	rules *Rules
}

func (s *sastScanner) Gate() Gate { return GateSAST }

func (s *sastScanner) Scan(ctx context.Context, snap *Snapshot) (Verdict, []Finding, error) {
	var findings []Finding
	err := scanFiles(ctx, snap.Dir, func(rel string, content []byte) {
		for _, rule := range s.rules.sastRules() {
			for _, loc := range matchLocations(rule.re, content) {
				findings = append(findings, Finding{
					Severity:    rule.Severity,
					Description: fmt.Sprintf("%s (%s)", rule.Description, rule.ID),
					Location:    fmt.Sprintf("%s:%d", rel, loc),
				})
			}
		}
	})
	if err != nil {
		return VerdictError, nil, err
	}
	for _, f := range findings {
		if f.Severity == SeverityCritical || f.Severity == SeverityHigh {
			return VerdictFail, findings, nil
		}
	}
	return VerdictPass, findings, nil
}

// secretScanner fails on any detected secret regardless of severity.
type secretScanner struct {
	rules *Rules
}

func (s *secretScanner) Gate() Gate { return GateSecretDetection }

func (s *secretScanner) Scan(ctx context.Context, snap *Snapshot) (Verdict, []Finding, error) {
	var findings []Finding
	err := scanFiles(ctx, snap.Dir, func(rel string, content []byte) {
		for _, rule := range s.rules.secretRules() {
			for _, loc := range matchLocations(rule.re, content) {
				findings = append(findings, Finding{
					Severity:    rule.Severity,
					Description: fmt.Sprintf("possible %s (%s)", rule.Description, rule.ID),
					Location:    fmt.Sprintf("%s:%d", rel, loc),
				})
			}
		}
	})
	if err != nil {
		return VerdictError, nil, err
	}
	if len(findings) > 0 {
		return VerdictFail, findings, nil
	}
	return VerdictPass, nil, nil
}

// dependencyScanner audits declared dependencies against the known-CVE rules.
// Critical or high CVEs fail the gate.
type dependencyScanner struct {
	rules *Rules
}

func (s *dependencyScanner) Gate() Gate { return GateDependencyAudit }

func (s *dependencyScanner) Scan(ctx context.Context, snap *Snapshot) (Verdict, []Finding, error) {
	var findings []Finding
	for _, dep := range snap.Manifest.Dependencies {
		for _, cve := range s.rules.cveRules() {
			if cve.Name == dep.Name && (cve.Version == dep.Version || cve.Version == "*") {
				findings = append(findings, Finding{
					Severity:    cve.Severity,
					Description: fmt.Sprintf("%s %s affected by %s", dep.Name, dep.Version, cve.CVE),
					Location:    "asset.yaml",
				})
			}
		}
	}
	for _, f := range findings {
		if f.Severity == SeverityCritical || f.Severity == SeverityHigh {
			return VerdictFail, findings, nil
		}
	}
	return VerdictPass, findings, nil
}

// cuiMarkingRe matches an acceptable CUI designation banner.
var cuiMarkingRe = regexp.MustCompile(`(?m)^\s*(CUI(//[A-Z-]+)?|CONTROLLED UNCLASSIFIED INFORMATION)\s*$`)

// documentExts are the file types that require a CUI marking banner.
var documentExts = map[string]bool{".md": true, ".txt": true, ".rst": true}

// cuiScanner validates that every document file carries a CUI marking banner.
// A missing marking fails the gate.
type cuiScanner struct{}

func (s *cuiScanner) Gate() Gate { return GateCUIMarking }

func (s *cuiScanner) Scan(ctx context.Context, snap *Snapshot) (Verdict, []Finding, error) {
	var findings []Finding
	err := scanFiles(ctx, snap.Dir, func(rel string, content []byte) {
		if !documentExts[strings.ToLower(filepath.Ext(rel))] {
			return
		}
		if !cuiMarkingRe.Match(content) {
			findings = append(findings, Finding{
				Severity:    SeverityHigh,
				Description: "document is missing a CUI designation banner",
				Location:    rel,
			})
		}
	})
	if err != nil {
		return VerdictError, nil, err
	}
	if len(findings) > 0 {
		return VerdictFail, findings, nil
	}
	return VerdictPass, nil, nil
}

// sbomScanner inventories the components of an executable asset. The
// inventory itself is reported as informational findings.
type sbomScanner struct{}

func (s *sbomScanner) Gate() Gate { return GateSBOM }

func (s *sbomScanner) Scan(ctx context.Context, snap *Snapshot) (Verdict, []Finding, error) {
	fileCount := 0
	err := scanFiles(ctx, snap.Dir, func(rel string, content []byte) {
		fileCount++
	})
	if err != nil {
		return VerdictError, nil, err
	}

	findings := []Finding{{
		Severity:    SeverityInfo,
		Description: fmt.Sprintf("SBOM: %d files, %d declared dependencies", fileCount, len(snap.Manifest.Dependencies)),
	}}
	for _, dep := range snap.Manifest.Dependencies {
		findings = append(findings, Finding{
			Severity:    SeverityInfo,
			Description: fmt.Sprintf("component %s@%s", dep.Name, dep.Version),
			Location:    "asset.yaml",
		})
	}
	return VerdictPass, findings, nil
}

// unpinnedRe matches version specifiers that are not exact pins.
var unpinnedRe = regexp.MustCompile(`[\^~*><]|latest|^$`)

// supplyChainScanner enforces exact version pinning on every declared
// dependency of an executable asset.
type supplyChainScanner struct{}

func (s *supplyChainScanner) Gate() Gate { return GateSupplyChain }

func (s *supplyChainScanner) Scan(ctx context.Context, snap *Snapshot) (Verdict, []Finding, error) {
	var findings []Finding
	for _, dep := range snap.Manifest.Dependencies {
		if unpinnedRe.MatchString(dep.Version) {
			findings = append(findings, Finding{
				Severity:    SeverityHigh,
				Description: fmt.Sprintf("dependency %s is not pinned to an exact version (%q)", dep.Name, dep.Version),
				Location:    "asset.yaml",
			})
		}
	}
	if len(findings) > 0 {
		return VerdictFail, findings, nil
	}
	return VerdictPass, nil, nil
}

// signatureScanner delegates to the publish pipeline's signature verifier.
type signatureScanner struct {
	verify SignatureVerifier
}

func (s *signatureScanner) Gate() Gate { return GateSignature }

func (s *signatureScanner) Scan(ctx context.Context, snap *Snapshot) (Verdict, []Finding, error) {
	ok, err := s.verify(ctx, snap)
	if err != nil {
		return VerdictError, nil, err
	}
	if !ok {
		return VerdictFail, []Finding{{
			Severity:    SeverityCritical,
			Description: "content signature verification failed",
		}}, nil
	}
	return VerdictPass, nil, nil
}

// matchLocations returns the 1-based line number of each match of re in content.
func matchLocations(re *regexp.Regexp, content []byte) []int {
	idxs := re.FindAllIndex(content, -1)
	if len(idxs) == 0 {
		return nil
	}
	lines := make([]int, 0, len(idxs))
	for _, idx := range idxs {
		line := 1 + strings.Count(string(content[:idx[0]]), "\n")
		lines = append(lines, line)
	}
	return lines
}
