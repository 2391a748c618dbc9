package arch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// ReportFileName is written to the output directory after every run.
// It stays empty when all rules pass so build steps can treat it as an
// up-to-date marker.
const ReportFileName = "failure-report.txt"

// ErrViolations marks a run that found violations; the details are in
// the report file. Any other error from Run is an engine failure.
var ErrViolations = errors.New("architecture check failed")

// Options configures a check run.
type Options struct {
	Roots              []string
	Module             string
	SkipDirs           []string
	ResourcesDir       string // optional, must exist when set
	OutputDir          string
	ProhibitDirectExit bool
	Logger             *zap.Logger
}

// RuleResult pairs a violated rule with its findings.
type RuleResult struct {
	Rule       Rule
	Violations []Violation
}

// Result summarizes a check run.
type Result struct {
	Evaluated  int
	Violated   []RuleResult
	ReportPath string
}

// Run imports the source trees, evaluates every active rule and writes
// the failure report. Violations are reported through ErrViolations;
// failing to write the report is an error in its own right.
func Run(opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if opts.ResourcesDir != "" {
		fi, err := os.Stat(opts.ResourcesDir)
		if err != nil {
			return nil, fmt.Errorf("resources directory: %w", err)
		}
		if !fi.IsDir() {
			return nil, fmt.Errorf("resources directory %s is not a directory", opts.ResourcesDir)
		}
		logger.Info("resources directory present", zap.String("dir", opts.ResourcesDir))
	}

	model, err := Import(ImportOptions{
		Roots:    opts.Roots,
		Module:   opts.Module,
		SkipDirs: opts.SkipDirs,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("source tree imported",
		zap.String("module", model.Module),
		zap.Int("packages", len(model.Packages)),
	)

	rules := DefaultRules(RuleOptions{ProhibitDirectExit: opts.ProhibitDirectExit})
	result := &Result{Evaluated: len(rules)}
	for _, r := range rules {
		violations := r.Check(model)
		if len(violations) == 0 {
			continue
		}
		slices.SortFunc(violations, func(a, b Violation) int {
			if c := strings.Compare(a.Pos, b.Pos); c != 0 {
				return c
			}
			return strings.Compare(a.Message, b.Message)
		})
		logger.Warn("rule violated",
			zap.String("rule", r.Name()),
			zap.Int("violations", len(violations)),
		)
		result.Violated = append(result.Violated, RuleResult{Rule: r, Violations: violations})
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join("build", "archcheck")
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	result.ReportPath = filepath.Join(outputDir, ReportFileName)

	if err := os.WriteFile(result.ReportPath, []byte(FormatReport(result.Violated)), 0644); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	if len(result.Violated) > 0 {
		return result, fmt.Errorf("%w. See '%s' for details", ErrViolations, result.ReportPath)
	}

	logger.Info("all rules passed", zap.Int("rules", result.Evaluated))
	return result, nil
}

// FormatReport renders the violated rules in report order. An empty
// slice renders to an empty report.
func FormatReport(violated []RuleResult) string {
	if len(violated) == 0 {
		return ""
	}

	var b strings.Builder
	for i, rr := range violated {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Rule '%s' was violated (%d times):\n", rr.Rule.Description(), len(rr.Violations))
		for _, v := range rr.Violations {
			fmt.Fprintf(&b, "  %s: %s\n", v.Pos, v.Message)
		}
	}
	return b.String()
}
