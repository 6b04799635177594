package options

import (
	"fmt"
	"strings"
)

// TargetKind identifies which call shape a [Target] holds.
type TargetKind int

const (
	// TargetNone is a call without arguments.
	TargetNone TargetKind = iota
	// TargetURL is a call with a single URL string.
	TargetURL
	// TargetOptions is a call with a single partial options record.
	TargetOptions
)

// String returns the name of the call shape.
func (k TargetKind) String() string {
	switch k {
	case TargetNone:
		return "none"
	case TargetURL:
		return "url"
	case TargetOptions:
		return "options"
	default:
		return fmt.Sprintf("TargetKind(%d)", int(k))
	}
}

// Target is the decoded argument of a connect call.
// The zero value is a call without arguments.
type Target struct {
	kind TargetKind
	url  string
	opts Options
}

// NoTarget returns the target of a call without arguments.
func NoTarget() Target {
	return Target{}
}

// URL returns the target of a call with a URL string.
// An empty string is the same as [NoTarget].
func URL(s string) Target {
	if s == "" {
		return Target{}
	}
	return Target{kind: TargetURL, url: s}
}

// With returns the target of a call with a partial options record.
func With(o Options) Target {
	return Target{kind: TargetOptions, opts: o.Clone()}
}

// Kind returns the call shape held by t.
func (t Target) Kind() TargetKind {
	return t.kind
}

// Normalize converts t into the per-call options layer.
func (t Target) Normalize() (Options, error) {
	switch t.kind {
	case TargetURL:
		return ParseURL(t.url)
	case TargetOptions:
		return t.opts.Clone(), nil
	default:
		return Options{}, nil
	}
}

// DecodeTarget decodes the arguments of a dynamic connect call.
//
// Accepted shapes are: no argument, a single string, a single [Options]
// (or non-nil *Options), or a single [Target]. Any other shape returns an
// [InvalidArgumentsError].
func DecodeTarget(args ...any) (Target, error) {
	switch len(args) {
	case 0:
		return NoTarget(), nil
	case 1:
	default:
		return Target{}, invalidShape(callShape(args),
			"expected at most one argument, got %d", len(args))
	}

	switch v := args[0].(type) {
	case string:
		return URL(v), nil
	case Options:
		return With(v), nil
	case *Options:
		if v == nil {
			return Target{}, invalidShape(callShape(args), "options must not be nil")
		}
		return With(*v), nil
	case Target:
		return v, nil
	default:
		return Target{}, invalidShape(callShape(args),
			"expected a URL string or options, got %T", v)
	}
}

func callShape(args []any) string {
	types := make([]string, len(args))
	for i, a := range args {
		types[i] = fmt.Sprintf("%T", a)
	}
	return "connect(" + strings.Join(types, ", ") + ")"
}
