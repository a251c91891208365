package models

// DocumentFormat is the declared or detected format of an ingested API
// specification document.
type DocumentFormat string

const (
	FormatAuto     DocumentFormat = "auto"
	FormatOpenAPI  DocumentFormat = "openapi"
	FormatSwagger  DocumentFormat = "swagger"
	FormatPostman  DocumentFormat = "postman"
	FormatPDF      DocumentFormat = "pdf"
	FormatUnknown  DocumentFormat = "unknown"
)

// ParseInput carries a document (by path, inline content, or raw bytes)
// plus a format hint into the Doc Parser.
type ParseInput struct {
	Path    string
	Content []byte
	Format  DocumentFormat
}

// EndpointAuth flags the auth requirements of an endpoint.
type EndpointAuth struct {
	Required bool
	Scheme   string
}

// Endpoint is one normalized API operation discovered by the Doc Parser.
type Endpoint struct {
	Path         string
	Method       string
	Parameters   []Parameter
	Responses    map[int]string // status code -> description
	Auth         EndpointAuth
	Tags         []string
	Deprecated   bool
	OperationID  string
	ExtendedInfo map[string]string
}

// Parameter describes one request parameter (path/query/header/body).
type Parameter struct {
	Name     string
	In       string // path, query, header, body
	Required bool
	Type     string
}

// APIInfo is the top-level metadata of a parsed API document.
type APIInfo struct {
	Title       string
	Version     string
	Description string
	BaseURL     string
}

// ParseOutput is the Doc Parser's normalized result. It must always be
// produced, even for malformed input (low confidence, populated Errors),
// per spec.md's "must not crash on malformed input" contract.
type ParseOutput struct {
	Info             APIInfo
	Endpoints        []Endpoint
	ConfidenceScore  float64
	DetectedFormat   DocumentFormat
	Errors           []string
	Warnings         []string
}

// DependencyType classifies an edge in the Analyzer's dependency graph.
type DependencyType string

const (
	DependencySequence   DependencyType = "sequence"
	DependencyAuth       DependencyType = "auth"
	DependencyData       DependencyType = "data"
	DependencyBusiness   DependencyType = "business"
	DependencyFunctional DependencyType = "functional"
)

// DependencyEdge is one typed edge in the endpoint dependency graph.
type DependencyEdge struct {
	FromEndpoint string
	ToEndpoint   string
	Type         DependencyType
	Reason       string
}

// ExecutionPhase is an ordered phase of the execution plan; endpoints within
// a phase's ParallelGroups may run concurrently.
type ExecutionPhase struct {
	Name           string
	ParallelGroups [][]string // groups of endpoint keys runnable concurrently
}

// AnalysisInput is the Analyzer's input: a parsed API document.
type AnalysisInput struct {
	Parsed ParseOutput
}

// AnalysisOutput is the Analyzer's result: a dependency graph, phased
// execution plan, risk assessment, and test strategy narrative.
type AnalysisOutput struct {
	Dependencies   []DependencyEdge
	ExecutionPlan  []ExecutionPhase
	RiskAssessment string
	TestStrategy   string
	RAGContextUsed bool
}

// TestCaseType classifies the intent of a generated test case.
type TestCaseType string

const (
	TestCasePositive    TestCaseType = "positive"
	TestCaseNegative    TestCaseType = "negative"
	TestCaseBoundary    TestCaseType = "boundary"
	TestCaseSecurity    TestCaseType = "security"
	TestCasePerformance TestCaseType = "performance"
)

// AssertionType classifies a generated test case's assertion.
type AssertionType string

const (
	AssertionStatusCode AssertionType = "status_code"
	AssertionBodyField  AssertionType = "body_field"
	AssertionTiming     AssertionType = "timing"
)

// Assertion is one expectation attached to a test case.
type Assertion struct {
	Type     AssertionType
	Field    string
	Expected string
}

// TestCase is one generated test for an endpoint.
type TestCase struct {
	ID          string
	Endpoint    string
	Type        TestCaseType
	TestData    map[string]any
	Assertions  []Assertion
	Setup       []string
	Cleanup     []string
	Priority    int
	Tags        []string
}

// CoverageReport summarizes how thoroughly generated test cases cover the
// endpoint set. Per spec.md boundary behaviour B1, an empty endpoint list
// yields {0, 0} without error.
type CoverageReport struct {
	TotalEndpoints     int
	CoveragePercentage float64
}

// TestCaseGenerationInput is the Test Case Generator's input.
type TestCaseGenerationInput struct {
	Endpoints     []Endpoint
	Dependencies  []DependencyEdge
	ExecutionPlan []ExecutionPhase
}

// TestCaseGenerationOutput is the Test Case Generator's result.
type TestCaseGenerationOutput struct {
	TestCases []TestCase
	Coverage  CoverageReport
}

// ExecutionFramework identifies the generated script's runtime.
type ExecutionFramework string

const (
	FrameworkPytest     ExecutionFramework = "pytest"
	FrameworkPlaywright ExecutionFramework = "playwright"
)

// ScriptArtifact is one opaque generated script file.
type ScriptArtifact struct {
	Name         string
	RelativePath string
	Content      []byte
	Dependencies []string
	TestCaseIDs  []string
	Framework    ExecutionFramework
}

// RequirementsDescriptor declares the generated script's runtime
// dependencies (e.g. a requirements.txt-equivalent payload).
type RequirementsDescriptor struct {
	RelativePath string
	Content      []byte
}

// ScriptGenerationInput is the Script/Yaml Generator's input.
type ScriptGenerationInput struct {
	Endpoints     []Endpoint
	TestCases     []TestCase
	ExecutionPlan []ExecutionPhase
	Dependencies  []DependencyEdge
}

// ScriptGenerationOutput is the Script/Yaml Generator's result.
type ScriptGenerationOutput struct {
	Scripts      []ScriptArtifact
	Requirements RequirementsDescriptor
}

// ExecutionInput requests that the Executor run one or more generated
// scripts under the given configuration.
type ExecutionInput struct {
	Scripts []ScriptArtifact
	Config  ExecutionConfig
}

// ExecutionConfig carries per-execution overrides consumed by the Script
// Executor (spec.md §6, "Script runner protocol").
type ExecutionConfig struct {
	Timeout      int // seconds, 0 = use default
	RunnerArgs   []string
	Env          map[string]string
	UIMode       bool
	BatchID      string
}

// ExecutionOutput carries the terminal outcome of an execution.
type ExecutionOutput struct {
	Record ExecutionRecord
	Report TestReport
}

// LogLevel is the severity of a LogRecord.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogRecord is one structured log event reported by any agent; the Log
// Recorder accumulates these per session.
type LogRecord struct {
	SessionID string
	Source    AgentType
	Level     LogLevel
	Message   string
	Metadata  map[string]string
	Operation string
	Timestamp int64 // unix nanos
}
