// Package report turns an optimization result into the per-variable facts a
// code generator consumes: for every variable version its shape, its trace
// kind, and whether reading or computing it needs an exception check.
package report

import (
	"fmt"
	"io"

	"github.com/speakeasy-api/shapeflow/resolve"
	"github.com/speakeasy-api/shapeflow/trace"
	"gopkg.in/yaml.v3"
)

// Version describes one variable version.
type Version struct {
	Variable       string `yaml:"variable"`
	Version        int    `yaml:"version"`
	Kind           string `yaml:"kind"`
	Shape          string `yaml:"shape"`
	ExceptionCheck bool   `yaml:"exceptionCheck"`
	MustHaveValue  bool   `yaml:"mustHaveValue"`
	Trust          string `yaml:"trust,omitempty"`
	Usage          int    `yaml:"usage"`

	t *trace.ValueTrace
}

// Key names the version the way traces print it, without the owner.
func (v Version) Key() string { return fmt.Sprintf("%s#%d", v.Variable, v.Version) }

// Change is a replacement made by the driver.
type Change struct {
	Tag     string `yaml:"tag"`
	Message string `yaml:"message"`
}

// Report is the code generator's view of one optimized function.
type Report struct {
	Function  string    `yaml:"function"`
	Passes    int       `yaml:"passes"`
	Converged bool      `yaml:"converged"`
	Versions  []Version `yaml:"versions"`
	Exits     []string  `yaml:"exceptionExits,omitempty"`
	Changes   []Change  `yaml:"changes,omitempty"`
	Warnings  []string  `yaml:"warnings,omitempty"`
}

// Build collects the report of res. Versions are listed per variable in
// declaration order, then by version.
func Build(res *resolve.Result) (*Report, error) {
	if res == nil || res.Function == nil || res.Graph == nil {
		return nil, fmt.Errorf("result has no function or graph")
	}
	r := &Report{
		Function:  res.Function.Name,
		Passes:    res.Passes,
		Converged: res.Converged,
		Warnings:  res.Warnings,
	}
	for _, v := range res.Function.Variables() {
		for _, t := range res.Graph.Versions(v) {
			r.Versions = append(r.Versions, newVersion(t))
		}
	}
	seen := make(map[string]bool)
	for _, exit := range res.Exits {
		if k := exit.Kind.String(); !seen[k] {
			seen[k] = true
			r.Exits = append(r.Exits, k)
		}
	}
	for _, c := range res.Changes {
		r.Changes = append(r.Changes, Change{Tag: c.Tag.String(), Message: c.Message})
	}
	return r, nil
}

func newVersion(t *trace.ValueTrace) Version {
	v := Version{
		Variable:      t.Variable().Name,
		Version:       t.Version(),
		Kind:          t.Kind().String(),
		Shape:         t.TypeShape().Name(),
		MustHaveValue: t.MustHaveValue(),
		Usage:         t.Usage(),
		t:             t,
	}
	// Reading may fail when the variable can be unbound; an assigned value
	// needs a check when computing it may raise.
	v.ExceptionCheck = !v.MustHaveValue
	if n := t.AssignNode(); n != nil {
		v.ExceptionCheck = v.ExceptionCheck || n.MayRaise()
		v.Trust = t.Trust().String()
	}
	return v
}

// Lookup returns the version with the given key.
func (r *Report) Lookup(key string) (Version, bool) {
	for _, v := range r.Versions {
		if v.Key() == key {
			return v, true
		}
	}
	return Version{}, false
}

// WriteYAML encodes the report.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}
