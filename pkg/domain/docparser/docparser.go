// Package docparser implements the API document parser agent: it ingests a
// raw document (OpenAPI/Swagger JSON or YAML, a Postman collection, or a
// PDF), normalizes it into a models.ParseOutput, and forwards the result to
// the analyzer and persistence topics.
//
// Grounded on original_source's ApiDocParserAgent (format auto-detection,
// OpenAPI/Postman/PDF branches, confidence scoring, and a resilient
// fallback path for malformed input) and nevindra-oasis's PDF extractor for
// the concrete PDF-to-text library call.
package docparser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/ledongthuc/pdf"

	"github.com/pipelinecore/orchestrator/pkg/agent"
	"github.com/pipelinecore/orchestrator/pkg/bus"
	"github.com/pipelinecore/orchestrator/pkg/models"
)

// New constructs the doc parser's BaseAgent wired to the bus.
func New(b *bus.Bus) *agent.BaseAgent {
	return agent.NewBaseAgent(models.AgentDocParser, models.TopicParseRequest, b, &Controller{})
}

// Controller implements agent.Controller for the doc parser.
type Controller struct{}

// Handle detects the document's format (unless specified), parses it into a
// normalized ParseOutput, and on success fans the result out to the
// analyzer and persistence topics. It never returns an error for malformed
// input: a best-effort ParseOutput with populated Errors/Warnings and a low
// ConfidenceScore is produced and reported only in the final stream
// response.
func (c *Controller) Handle(ctx context.Context, in models.TypedMessage) ([]agent.Outbound, error) {
	if in.ParseInput == nil {
		return nil, fmt.Errorf("docparser: message missing ParseInput payload")
	}

	output := c.parse(*in.ParseInput)

	if len(output.Errors) > 0 {
		// A malformed document gets a low-confidence result reported on the
		// stream, but per seed scenario 2 no downstream agent is invoked —
		// there is nothing trustworthy to analyze, generate tests for, or
		// persist.
		return []agent.Outbound{{Topic: models.TopicStreamOutput, Message: models.TypedMessage{
			Kind:    models.KindStreamResponse,
			Context: in.Context,
			StreamResponse: &models.StreamResponse{
				Source:  models.AgentDocParser,
				Content: fmt.Sprintf("parse failed: %s", strings.Join(output.Errors, "; ")),
				IsFinal: true,
				Result: map[string]any{
					"confidence_score": output.ConfidenceScore,
					"errors":           output.Errors,
					"warnings":         output.Warnings,
					"detected_format":  string(output.DetectedFormat),
				},
			},
		}}}, nil
	}

	outbound := []agent.Outbound{
		{Topic: models.TopicStreamOutput, Message: models.TypedMessage{
			Kind:    models.KindStreamResponse,
			Context: in.Context,
			StreamResponse: &models.StreamResponse{
				Source:  models.AgentDocParser,
				Content: fmt.Sprintf("parsed %d endpoints as %s (confidence %.2f)", len(output.Endpoints), output.DetectedFormat, output.ConfidenceScore),
			},
		}},
		{Topic: models.TopicAnalysisRequest, Message: models.TypedMessage{
			Kind:         models.KindAnalysisInput,
			Context:      in.Context,
			AnalysisInput: &models.AnalysisInput{Parsed: output},
		}},
		{Topic: models.TopicPersistRequest, Message: models.TypedMessage{
			Kind:        models.KindParseOutput,
			Context:     in.Context,
			ParseOutput: &output,
		}},
	}
	return outbound, nil
}

func (c *Controller) parse(input models.ParseInput) models.ParseOutput {
	format := input.Format
	if format == "" || format == models.FormatAuto {
		format = detectFormat(input)
	}

	var out models.ParseOutput
	var err error
	switch format {
	case models.FormatOpenAPI, models.FormatSwagger:
		out, err = parseOpenAPI(input.Content)
	case models.FormatPostman:
		out, err = parsePostman(input.Content)
	case models.FormatPDF:
		out, err = parsePDF(input.Content)
	default:
		err = fmt.Errorf("unrecognized document format")
	}

	if err != nil {
		return models.ParseOutput{
			DetectedFormat:  format,
			ConfidenceScore: 0,
			Errors:          []string{err.Error()},
			Warnings:        []string{"falling back to empty result; manual review required"},
		}
	}

	out.DetectedFormat = format
	return out
}

// detectFormat applies a cheap content sniff when the caller didn't specify
// a format, mirroring ApiDocParserAgent._detect_document_format's
// extension/content heuristics.
func detectFormat(input models.ParseInput) models.DocumentFormat {
	lower := strings.ToLower(input.Path)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return models.FormatPDF
	case bytes.HasPrefix(bytes.TrimSpace(input.Content), []byte("%PDF")):
		return models.FormatPDF
	}

	trimmed := bytes.TrimSpace(input.Content)
	if bytes.Contains(trimmed, []byte(`"openapi"`)) || bytes.Contains(trimmed, []byte("openapi:")) {
		return models.FormatOpenAPI
	}
	if bytes.Contains(trimmed, []byte(`"swagger"`)) || bytes.Contains(trimmed, []byte("swagger:")) {
		return models.FormatSwagger
	}
	if bytes.Contains(trimmed, []byte(`"info"`)) && bytes.Contains(trimmed, []byte(`"item"`)) {
		return models.FormatPostman
	}
	return models.FormatUnknown
}

func parseOpenAPI(content []byte) (models.ParseOutput, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(content)
	if err != nil {
		return models.ParseOutput{}, fmt.Errorf("openapi: %w", err)
	}

	var warnings []string
	if err := doc.Validate(loader.Context); err != nil {
		warnings = append(warnings, fmt.Sprintf("openapi validation warning: %s", err.Error()))
	}

	info := models.APIInfo{}
	if doc.Info != nil {
		info.Title = doc.Info.Title
		info.Version = doc.Info.Version
		info.Description = doc.Info.Description
	}
	if len(doc.Servers) > 0 {
		info.BaseURL = doc.Servers[0].URL
	}

	var endpoints []models.Endpoint
	for path, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			ep := models.Endpoint{
				Path:        path,
				Method:      method,
				OperationID: op.OperationID,
				Tags:        op.Tags,
				Deprecated:  op.Deprecated,
				Responses:   map[int]string{},
			}
			for _, p := range op.Parameters {
				if p.Value == nil {
					continue
				}
				ep.Parameters = append(ep.Parameters, models.Parameter{
					Name:     p.Value.Name,
					In:       p.Value.In,
					Required: p.Value.Required,
					Type:     paramType(p.Value),
				})
			}
			if op.Responses != nil {
				for code, r := range op.Responses.Map() {
					desc := ""
					if r.Value != nil && r.Value.Description != nil {
						desc = *r.Value.Description
					}
					if n, ok := parseStatusCode(code); ok {
						ep.Responses[n] = desc
					}
				}
			}
			if op.Security != nil && len(*op.Security) > 0 {
				ep.Auth = models.EndpointAuth{Required: true}
			}
			endpoints = append(endpoints, ep)
		}
	}

	confidence := 1.0
	if len(warnings) > 0 {
		confidence = 0.85
	}

	return models.ParseOutput{
		Info:            info,
		Endpoints:       endpoints,
		ConfidenceScore: confidence,
		Warnings:        warnings,
	}, nil
}

func paramType(p *openapi3.Parameter) string {
	if p.Schema == nil || p.Schema.Value == nil || len(p.Schema.Value.Type.Slice()) == 0 {
		return "string"
	}
	return p.Schema.Value.Type.Slice()[0]
}

func parseStatusCode(code string) (int, bool) {
	if code == "default" {
		return 0, false
	}
	n := 0
	for _, r := range code {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// postmanCollection is the minimal subset of the Postman v2 schema this
// parser understands (name, requests, and their method/URL).
type postmanCollection struct {
	Info struct {
		Name string `json:"name"`
	} `json:"info"`
	Item []postmanItem `json:"item"`
}

type postmanItem struct {
	Name    string `json:"name"`
	Request struct {
		Method string `json:"method"`
		URL    struct {
			Raw string `json:"raw"`
		} `json:"url"`
	} `json:"request"`
	Item []postmanItem `json:"item"` // nested folders
}

func parsePostman(content []byte) (models.ParseOutput, error) {
	var coll postmanCollection
	if err := json.Unmarshal(content, &coll); err != nil {
		return models.ParseOutput{}, fmt.Errorf("postman: %w", err)
	}

	var endpoints []models.Endpoint
	var walk func(items []postmanItem)
	walk = func(items []postmanItem) {
		for _, item := range items {
			if len(item.Item) > 0 {
				walk(item.Item)
				continue
			}
			if item.Request.Method == "" {
				continue
			}
			endpoints = append(endpoints, models.Endpoint{
				Path:   item.Request.URL.Raw,
				Method: strings.ToUpper(item.Request.Method),
			})
		}
	}
	walk(coll.Item)

	return models.ParseOutput{
		Info:            models.APIInfo{Title: coll.Info.Name},
		Endpoints:       endpoints,
		ConfidenceScore: 0.9,
	}, nil
}

func parsePDF(content []byte) (models.ParseOutput, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return models.ParseOutput{}, fmt.Errorf("pdf: open: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return models.ParseOutput{}, fmt.Errorf("pdf: extract text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return models.ParseOutput{}, fmt.Errorf("pdf: read text: %w", err)
	}

	text := strings.TrimSpace(buf.String())
	endpoints := extractEndpointsFromText(text)

	return models.ParseOutput{
		Endpoints:       endpoints,
		ConfidenceScore: 0.5, // PDFs are free-form prose; lower confidence than structured formats
		Warnings:        []string{"endpoints extracted heuristically from PDF prose"},
	}, nil
}

// extractEndpointsFromText does a line-by-line scan for "METHOD /path"
// patterns, the same lightweight heuristic original_source's PDF branch
// falls back to when no structured table is present.
func extractEndpointsFromText(text string) []models.Endpoint {
	methods := []string{"GET", "POST", "PUT", "PATCH", "DELETE"}
	var endpoints []models.Endpoint
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		for _, m := range methods {
			prefix := m + " "
			if strings.HasPrefix(line, prefix) {
				path := strings.TrimSpace(strings.TrimPrefix(line, prefix))
				if path != "" {
					endpoints = append(endpoints, models.Endpoint{Method: m, Path: path})
				}
			}
		}
	}
	return endpoints
}
