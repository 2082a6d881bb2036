package observability

const (
	AttrQueryStrategy   = "query.strategy"
	AttrPipelineStatus  = "pipeline.status"
	AttrStageName       = "pipeline.stage"
	AttrToolName        = "tool.name"
	AttrLLMModel        = "llm.model"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrErrorType       = "error.type"
	AttrStatusCode      = "http.status_code"

	SpanPipelineRun = "pipeline.run"
	SpanPlanning    = "pipeline.planning"
	SpanExecution   = "pipeline.execution"
	SpanSynthesis   = "pipeline.synthesis"
	SpanLLMRequest  = "llm.request"
	SpanToolCall    = "graph.tool_call"

	DefaultServiceName = "grapevine"
)
