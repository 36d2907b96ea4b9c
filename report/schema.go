package report

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/speakeasy-api/openapi/extensions"
	"github.com/speakeasy-api/openapi/jsonschema/oas3"
	"github.com/speakeasy-api/openapi/openapi"
	"github.com/speakeasy-api/openapi/sequencedmap"
	"github.com/speakeasy-api/shapeflow/shapes"
	"gopkg.in/yaml.v3"
)

// Extension keys attached to exported version schemas.
const (
	ExtExceptionCheck = "x-shapeflow-exception-check"
	ExtTraceKind      = "x-shapeflow-trace-kind"
	ExtShape          = "x-shapeflow-shape"
)

// ShapeSchema returns the JSON Schema of values of shape s. Alternatives
// become anyOf over their members; shapes with no data model, and unknown,
// give the permissive empty schema.
func ShapeSchema(s shapes.Shape) *oas3.Schema {
	alt, ok := s.(*shapes.Alternative)
	if !ok {
		t, _ := s.(*shapes.TypeShape)
		return typeSchema(t)
	}
	members := alt.Members()
	anyOf := make([]*oas3.JSONSchema[oas3.Referenceable], len(members))
	for i, m := range members {
		anyOf[i] = oas3.NewJSONSchemaFromSchema[oas3.Referenceable](typeSchema(m))
	}
	return &oas3.Schema{AnyOf: anyOf}
}

func typeSchema(t *shapes.TypeShape) *oas3.Schema {
	switch t {
	case shapes.None:
		return typed(oas3.SchemaTypeNull, "")
	case shapes.Bool:
		return typed(oas3.SchemaTypeBoolean, "")
	case shapes.Int:
		return typed(oas3.SchemaTypeInteger, "int64")
	case shapes.Long:
		return typed(oas3.SchemaTypeInteger, "bigint")
	case shapes.IntOrLong:
		return typed(oas3.SchemaTypeInteger, "")
	case shapes.Float:
		return typed(oas3.SchemaTypeNumber, "double")
	case shapes.Complex:
		return typed(oas3.SchemaTypeString, "complex")
	case shapes.Str:
		return typed(oas3.SchemaTypeString, "")
	case shapes.Bytes, shapes.ByteArray:
		return typed(oas3.SchemaTypeString, "binary")
	case shapes.Tuple, shapes.List, shapes.Set, shapes.FrozenSet:
		return typed(oas3.SchemaTypeArray, "")
	case shapes.Dict:
		return typed(oas3.SchemaTypeObject, "")
	}
	return &oas3.Schema{}
}

func typed(typ oas3.SchemaType, format string) *oas3.Schema {
	s := &oas3.Schema{Type: oas3.NewTypeFromString(typ)}
	if format != "" {
		s.Format = &format
	}
	return s
}

// Schema exports the report as an object schema with one property per
// variable version, in report order. Versions that always hold a value are
// required.
func (r *Report) Schema() *oas3.Schema {
	props := sequencedmap.New[string, *oas3.JSONSchema[oas3.Referenceable]]()
	var required []string
	for _, v := range r.Versions {
		s := ShapeSchema(v.t.TypeShape())
		s.Extensions = extensions.New()
		s.Extensions.Set(ExtShape, scalar("!!str", v.Shape))
		s.Extensions.Set(ExtTraceKind, scalar("!!str", v.Kind))
		s.Extensions.Set(ExtExceptionCheck, scalar("!!bool", strconv.FormatBool(v.ExceptionCheck)))
		props.Set(v.Key(), oas3.NewJSONSchemaFromSchema[oas3.Referenceable](s))
		if v.MustHaveValue {
			required = append(required, v.Key())
		}
	}
	return &oas3.Schema{
		Type:       oas3.NewTypeFromString(oas3.SchemaTypeObject),
		Properties: props,
		Required:   required,
	}
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

// Document collects the schemas of several reports as components of one
// OpenAPI document, keyed by function name.
func Document(reports ...*Report) (*openapi.OpenAPI, error) {
	schemas := sequencedmap.New[string, *oas3.JSONSchema[oas3.Referenceable]]()
	for _, r := range reports {
		if _, ok := schemas.Get(r.Function); ok {
			return nil, fmt.Errorf("duplicate function %q", r.Function)
		}
		schemas.Set(r.Function, oas3.NewJSONSchemaFromSchema[oas3.Referenceable](r.Schema()))
	}
	return &openapi.OpenAPI{
		OpenAPI: openapi.Version,
		Info: openapi.Info{
			Title:   "shapeflow",
			Version: "1.0.0",
		},
		Paths:      openapi.NewPaths(),
		Components: &openapi.Components{Schemas: schemas},
	}, nil
}

// WriteOpenAPI writes the document of reports.
func WriteOpenAPI(ctx context.Context, w io.Writer, reports ...*Report) error {
	doc, err := Document(reports...)
	if err != nil {
		return err
	}
	if err := openapi.Marshal(ctx, doc, w); err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	return nil
}
