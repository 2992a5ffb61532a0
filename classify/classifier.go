// Package classify assigns a status to normalized lineage events using a
// priority-ordered rule chain. Classification is a narrowing filter, not
// an accumulation: rules are evaluated in order and the first match
// determines the outcome; later rules are never consulted.
package classify

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/c360/provreport/provenance"
)

// Designated component and event types inspected by the protocol and
// script heuristics. These match the engine's processor type names.
const (
	httpProcessorType      = "InvokeHTTP"
	scriptProcessorType    = "ExecuteStreamCommand"
	attributesModifiedType = "ATTRIBUTES_MODIFIED"
	httpStatusAttribute    = "invokehttp.status.code"
	scriptErrorAttribute   = "execution.error"
)

// DefaultDetailsAsError lists the detail strings treated as errors when no
// explicit list is configured. They cover the engine's auto-termination
// relationship labels.
var DefaultDetailsAsError = []string{
	"Auto-Terminated by Failure Relationship",
	"Auto-Terminated by No Retry Relationship",
	"Auto-Terminated by Retry Relationship",
	"Auto-Terminated by invalid Relationship",
	"Auto-Terminated by timeout Relationship",
}

// Config holds configuration for the classifier.
type Config struct {
	// DetailsAsError lists detail strings classified as errors.
	// Comparison is case-insensitive.
	DetailsAsError []string `json:"details_as_error" yaml:"details_as_error"`
	// CheckHTTPErrors enables the HTTP status code heuristic for
	// InvokeHTTP processors.
	CheckHTTPErrors bool `json:"check_http_errors" yaml:"check_http_errors"`
	// CheckScriptErrors enables the execution error heuristic for
	// ExecuteStreamCommand processors.
	CheckScriptErrors bool `json:"check_script_errors" yaml:"check_script_errors"`
}

// DefaultConfig returns the default classifier configuration.
func DefaultConfig() Config {
	return Config{
		DetailsAsError:    append([]string(nil), DefaultDetailsAsError...),
		CheckHTTPErrors:   true,
		CheckScriptErrors: true,
	}
}

// outcome is the result of a matched rule.
type outcome struct {
	status  provenance.Status
	details string // empty means leave details unchanged
}

// rule is one predicate→outcome entry in the chain. evaluate returns
// false when the rule does not determine the event, letting evaluation
// fall through to the next rule.
type rule struct {
	name     string
	evaluate func(raw *provenance.Raw, n *provenance.Normalized) (outcome, bool)
}

// Classifier assigns Status (and, for inferred errors, Details) to
// normalized events.
type Classifier struct {
	rules  []rule
	logger *slog.Logger
}

// NewClassifier builds the rule chain for the given configuration. Rule
// order encodes precedence: explicit detail markers outrank inferred
// protocol and script heuristics.
func NewClassifier(cfg Config, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}

	detailsAsError := make(map[string]struct{}, len(cfg.DetailsAsError))
	for _, d := range cfg.DetailsAsError {
		trimmed := strings.TrimSpace(d)
		if trimmed == "" {
			continue
		}
		detailsAsError[strings.ToLower(trimmed)] = struct{}{}
	}

	c := &Classifier{logger: logger}

	c.rules = append(c.rules, rule{
		name: "details-as-error",
		evaluate: func(_ *provenance.Raw, n *provenance.Normalized) (outcome, bool) {
			if n.Details == "" {
				return outcome{}, false
			}
			if _, ok := detailsAsError[strings.ToLower(n.Details)]; !ok {
				return outcome{}, false
			}
			return outcome{status: provenance.StatusError}, true
		},
	})

	if cfg.CheckHTTPErrors {
		c.rules = append(c.rules, rule{
			name:     "http-status",
			evaluate: c.evaluateHTTPStatus,
		})
	}

	if cfg.CheckScriptErrors {
		c.rules = append(c.rules, rule{
			name:     "script-error",
			evaluate: c.evaluateScriptError,
		})
	}

	return c
}

// Classify evaluates the rule chain and annotates the event exactly once.
// Events matched by no rule are Info.
func (c *Classifier) Classify(raw *provenance.Raw, n *provenance.Normalized) {
	for _, r := range c.rules {
		if out, ok := r.evaluate(raw, n); ok {
			n.Status = out.status
			if out.details != "" {
				n.Details = out.details
			}
			return
		}
	}
	n.Status = provenance.StatusInfo
}

// evaluateHTTPStatus inspects the HTTP status attribute on attribute
// modification events from InvokeHTTP processors. A missing attribute is
// logged and falls through to the default rather than being treated as an
// error signal; changing that would silently alter alerting volume.
func (c *Classifier) evaluateHTTPStatus(raw *provenance.Raw, n *provenance.Normalized) (outcome, bool) {
	if raw.ComponentType != httpProcessorType || raw.EventType != attributesModifiedType {
		return outcome{}, false
	}

	statusCode, ok := raw.Attribute(httpStatusAttribute)
	if !ok {
		c.logger.Warn("No status code found in event from InvokeHTTP processor",
			"component_name", n.ComponentName,
			"process_group_name", n.ProcessGroupName,
			"event_id", n.EventID)
		return outcome{}, false
	}

	if statusCode == "" || (statusCode[0] != '4' && statusCode[0] != '5') {
		return outcome{}, false
	}

	return outcome{
		status:  provenance.StatusError,
		details: fmt.Sprintf("HTTP status code received identified as an error: %s", statusCode),
	}, true
}

// evaluateScriptError inspects the execution error attribute on events
// from script-execution processors.
func (c *Classifier) evaluateScriptError(raw *provenance.Raw, _ *provenance.Normalized) (outcome, bool) {
	if raw.ComponentType != scriptProcessorType {
		return outcome{}, false
	}

	execError, ok := raw.Attribute(scriptErrorAttribute)
	if !ok || execError == "" {
		return outcome{}, false
	}

	return outcome{
		status:  provenance.StatusError,
		details: fmt.Sprintf("Script returned an error: %s", execError),
	}, true
}
