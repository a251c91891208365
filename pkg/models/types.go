// Package models defines the canonical entities shared across the
// orchestration core: agent/topic enumerations, correlation metadata, the
// sealed message variant dispatched by the bus, and the execution/report
// records the pipelines emit.
package models

import "time"

// AgentType is an enumerated tag identifying an agent's role. Each agent
// instance has exactly one type.
type AgentType string

// Supported agent types. One agent type subscribes to exactly one topic.
const (
	AgentDocParser          AgentType = "doc_parser"
	AgentAnalyzer           AgentType = "analyzer"
	AgentTestCaseGenerator  AgentType = "test_case_generator"
	AgentScriptGenerator    AgentType = "script_generator"
	AgentPersistence        AgentType = "persistence"
	AgentExecutor           AgentType = "executor"
	AgentLogRecorder        AgentType = "log_recorder"
	AgentYamlGenerator      AgentType = "yaml_generator"
	AgentPlaywrightExecutor AgentType = "playwright_executor"
	AgentStreamCollector    AgentType = "stream_collector"
)

// TopicType is an enumerated routing key on the message bus. Every agent
// subscribes to exactly one topic. The executor and the playwright executor
// both subscribe to TopicExecutionRequest and split it on
// ExecutionConfig.UIMode; no other topic is shared.
type TopicType string

// Canonical topics wiring the two pipeline control flows described in
// spec.md §2.
const (
	TopicParseRequest       TopicType = "parse.request"
	TopicParseOutput        TopicType = "parse.output"
	TopicAnalysisRequest    TopicType = "analysis.request"
	TopicAnalysisOutput     TopicType = "analysis.output"
	TopicTestCaseGeneration TopicType = "testcase.generation"
	TopicScriptGeneration   TopicType = "script.generation"
	TopicPersistRequest     TopicType = "persist.request"
	TopicExecutionRequest   TopicType = "execution.request"
	TopicLogRecord          TopicType = "log.record"
	TopicYamlGeneration     TopicType = "yaml.generation"
	TopicStreamOutput       TopicType = "stream.output"
)

// MessageContext carries correlation metadata attached to every published
// message. It is created once at the pipeline's entry point and propagated
// unchanged by every agent so emitted messages stay correlated.
type MessageContext struct {
	SessionID   string
	DocumentID  string
	ExecutionID string
	Sender      AgentType
}

// MessageKind identifies which payload variant a TypedMessage carries. The
// bus dispatches on this tag rather than relying on duck-typed payloads, per
// the "sealed variant over message kinds" remedy in spec.md §9.
type MessageKind string

const (
	KindParseInput               MessageKind = "parse_input"
	KindParseOutput              MessageKind = "parse_output"
	KindAnalysisInput            MessageKind = "analysis_input"
	KindAnalysisOutput           MessageKind = "analysis_output"
	KindTestCaseGenerationInput  MessageKind = "test_case_generation_input"
	KindTestCaseGenerationOutput MessageKind = "test_case_generation_output"
	KindScriptGenerationInput    MessageKind = "script_generation_input"
	KindScriptGenerationOutput   MessageKind = "script_generation_output"
	KindExecutionInput           MessageKind = "execution_input"
	KindExecutionOutput          MessageKind = "execution_output"
	KindLogRecord                MessageKind = "log_record"
	KindStreamResponse           MessageKind = "stream_response"
)

// TypedMessage is the single envelope type published on the bus. Exactly one
// of its payload fields is populated, selected by Kind. Using one struct
// with a tag (instead of an interface implemented by many concrete structs)
// keeps the bus's dispatch logic a plain switch rather than a type-switch
// over an open set of duck-typed classes.
type TypedMessage struct {
	Kind    MessageKind
	Context MessageContext

	ParseInput               *ParseInput
	ParseOutput              *ParseOutput
	AnalysisInput            *AnalysisInput
	AnalysisOutput           *AnalysisOutput
	TestCaseGenerationInput  *TestCaseGenerationInput
	TestCaseGenerationOutput *TestCaseGenerationOutput
	ScriptGenerationInput    *ScriptGenerationInput
	ScriptGenerationOutput   *ScriptGenerationOutput
	ExecutionInput           *ExecutionInput
	ExecutionOutput          *ExecutionOutput
	LogRecord                *LogRecord
	StreamResponse           *StreamResponse
}

// StreamResponse is a partial or final chunk of an agent's output, fanned
// out by the stream collector to an external consumer.
type StreamResponse struct {
	Source  AgentType
	Content string
	IsFinal bool
	Result  map[string]any
}

// ExecutionStatus is the lifecycle state of an ExecutionRecord.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// ExecutionRecord tracks one script execution end to end. It is owned
// exclusively by the executing Executor until it reaches a terminal status;
// after that it is write-once (spec.md invariant I5).
type ExecutionRecord struct {
	ExecutionID string
	ScriptID    string
	Status      ExecutionStatus
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	ReturnCode  int
	Config      map[string]string
	Environment map[string]string
	Logs        []string
	Artifacts   []string
	ReportPath  string
	Error       string

	terminal bool // set once Status first reaches a terminal value
}

// MarkTerminal transitions the record to a terminal status exactly once.
// Subsequent calls are no-ops, enforcing write-once-after-terminal (I5).
func (r *ExecutionRecord) MarkTerminal(status ExecutionStatus, endTime time.Time) {
	if r.terminal {
		return
	}
	r.Status = status
	r.EndTime = endTime
	r.Duration = endTime.Sub(r.StartTime)
	r.terminal = true
}

// IsTerminal reports whether the record has reached a terminal status.
func (r *ExecutionRecord) IsTerminal() bool { return r.terminal }

// TestTotals summarizes pass/fail/skip counts for a TestReport.
type TestTotals struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// SuccessRate returns Passed/Total, defined as 0.0 (never NaN) when Total is
// zero, per spec.md boundary behaviour B2.
func (t TestTotals) SuccessRate() float64 {
	if t.Total == 0 {
		return 0.0
	}
	return float64(t.Passed) / float64(t.Total)
}

// TestReport is derived from an ExecutionRecord and is always emitted, even
// for failed or cancelled runs, with totals possibly all zero.
type TestReport struct {
	ReportID    string
	ExecutionID string
	ScriptID    string
	Status      ExecutionStatus
	Totals      TestTotals
	SuccessRate float64
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	ReportPath  string
	ReportURL   string
	Logs        []string
	Screenshots []string
	Videos      []string
}

// WindowBounds places a browser window on a fixed grid tile, in screen
// pixels (device-independent, after DPI scaling has been applied).
type WindowBounds struct {
	Left   int
	Top    int
	Width  int
	Height int
}

// BrowserProfile is a per-execution fingerprinted browser profile owned by
// one Executor invocation; it is never shared.
type BrowserProfile struct {
	ProfileID       string
	GroupID         string
	ProxyConfig     map[string]string
	FingerprintJSON string
	WSEndpoint      string
	WindowBounds    WindowBounds
}

// SessionStatus is the lifecycle state of a PipelineSession.
type SessionStatus string

const (
	SessionCreated    SessionStatus = "created"
	SessionProcessing SessionStatus = "processing"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
)

// PipelineSession tracks one end-to-end pipeline invocation.
type PipelineSession struct {
	SessionID    string
	WorkflowType string
	Status       SessionStatus
	CurrentStep  string
	StartTime    time.Time
	EndTime      time.Time
	Error        string
}
