package playground

import (
	"context"
	"fmt"
	"strings"

	"github.com/speakeasy-api/openapi/extensions"
	"github.com/speakeasy-api/openapi/jsonschema/oas3"
	"github.com/speakeasy-api/openapi/openapi"
	"github.com/speakeasy-api/shapeflow"
	"github.com/speakeasy-api/shapeflow/expr"
	"github.com/speakeasy-api/shapeflow/pkg/pyfmt"
	"github.com/speakeasy-api/shapeflow/report"
	"github.com/speakeasy-api/shapeflow/resolve"
)

// Format selects how Optimize renders its result.
type Format string

const (
	FormatYAML    Format = "yaml"
	FormatOpenAPI Format = "openapi"
	FormatSource  Format = "source"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatYAML, FormatOpenAPI, FormatSource:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q; valid formats: yaml, openapi, source", s)
}

// Optimize parses a YAML function description, optimizes it and renders the
// result in the requested format. In strict mode precision-loss warnings fail
// the run.
func Optimize(ctx context.Context, src string, format Format, opts shapeflow.Options, strict bool) (string, error) {
	fn, err := ParseSource(src)
	if err != nil {
		return "", err
	}
	r, err := optimizeFunction(ctx, fn, opts)
	if err != nil {
		return "", err
	}
	if strict && len(r.Warnings) > 0 {
		return "", fmt.Errorf("%s", FormatOptimizeErrors(r.Warnings))
	}

	var buf strings.Builder
	switch format {
	case FormatYAML:
		err = r.WriteYAML(&buf)
	case FormatOpenAPI:
		err = report.WriteOpenAPI(ctx, &buf, r)
	case FormatSource:
		cfg := pyfmt.DefaultConfig()
		cfg.Annotate = true
		var out string
		out, err = pyfmt.Format(fn, cfg)
		buf.WriteString(out)
	default:
		err = fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func optimizeFunction(ctx context.Context, fn *expr.Function, opts shapeflow.Options) (*report.Report, error) {
	res, err := resolve.Optimize(ctx, fn, opts)
	if err != nil {
		return nil, fmt.Errorf("optimization of %s failed: %w", fn.Name, err)
	}
	return report.Build(res)
}

// PipelineResult contains the three panels
type PipelineResult struct {
	Source    string   `json:"source"`
	Optimized string   `json:"optimized"`
	Report    string   `json:"report"`
	Converged bool     `json:"converged"`
	Warnings  []string `json:"warnings"`
}

// OptimizePipeline renders a function before and after optimization next to
// its report. In strict mode precision-loss warnings fail the run.
func OptimizePipeline(ctx context.Context, src string, opts shapeflow.Options, strict bool) (*PipelineResult, error) {
	fn, err := ParseSource(src)
	if err != nil {
		return nil, err
	}
	result := &PipelineResult{
		Warnings: []string{},
	}

	cfg := pyfmt.DefaultConfig()
	if result.Source, err = pyfmt.Format(fn, cfg); err != nil {
		return nil, err
	}

	r, err := optimizeFunction(ctx, fn, opts)
	if err != nil {
		return nil, err
	}
	if strict && len(r.Warnings) > 0 {
		return nil, fmt.Errorf("%s", FormatOptimizeErrors(r.Warnings))
	}
	result.Converged = r.Converged
	result.Warnings = append(result.Warnings, r.Warnings...)

	cfg.Annotate = true
	if result.Optimized, err = pyfmt.Format(fn, cfg); err != nil {
		return nil, err
	}
	var buf strings.Builder
	if err := r.WriteYAML(&buf); err != nil {
		return nil, err
	}
	result.Report = buf.String()
	return result, nil
}

// OptimizeDocument optimizes every function an OpenAPI document attaches to
// a schema through FunctionExtension and replaces that schema with the
// function's report schema.
func OptimizeDocument(ctx context.Context, oasYAML string, opts shapeflow.Options) (string, error) {
	doc, validationErrs, err := openapi.Unmarshal(ctx, strings.NewReader(oasYAML))
	if err != nil {
		return "", fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}
	if len(validationErrs) > 0 {
		return "", fmt.Errorf("OpenAPI validation failed: %v", validationErrs[0])
	}

	type schemaToOptimize struct {
		schema   *oas3.JSONSchema[oas3.Referenceable]
		location string
	}
	var pending []schemaToOptimize
	var optimizeErrors []string

	for item := range openapi.Walk(ctx, doc) {
		err := item.Match(openapi.Matcher{
			Schema: func(schema *oas3.JSONSchema[oas3.Referenceable]) error {
				if ext := schema.GetExtensions(); ext != nil {
					if _, ok := ext.Get(FunctionExtension); ok {
						pending = append(pending, schemaToOptimize{
							schema:   schema,
							location: fmt.Sprintf("%v", item.Location),
						})
					}
				}
				return nil
			},
		})
		if err != nil {
			optimizeErrors = append(optimizeErrors, fmt.Sprintf("walk error: %v", err))
		}
	}

	for _, p := range pending {
		if err := optimizeSchema(ctx, p.schema, opts); err != nil {
			optimizeErrors = append(optimizeErrors, fmt.Sprintf("%s: %v", p.location, err))
		}
	}
	if len(optimizeErrors) > 0 {
		return "", fmt.Errorf("%s", FormatOptimizeErrors(optimizeErrors))
	}

	var buf strings.Builder
	if err := openapi.Marshal(ctx, doc, &buf); err != nil {
		return "", fmt.Errorf("failed to marshal optimized document: %w", err)
	}
	return buf.String(), nil
}

func optimizeSchema(ctx context.Context, schema *oas3.JSONSchema[oas3.Referenceable], opts shapeflow.Options) error {
	original := schema.GetExtensions()
	node, ok := original.Get(FunctionExtension)
	if !ok {
		return nil
	}
	fn, err := ParseFunction(node)
	if err != nil {
		return err
	}
	r, err := optimizeFunction(ctx, fn, opts)
	if err != nil {
		return err
	}

	// The function description stays visible on the replaced schema.
	result := r.Schema()
	if result.Extensions == nil {
		result.Extensions = extensions.New()
	}
	for k, v := range original.All() {
		result.Extensions.Set(k, v)
	}
	*schema = *oas3.NewJSONSchemaFromSchema[oas3.Referenceable](result)
	return nil
}
