// Package tool implements the function / tool calling subsystem: the Tool
// interface agents expose to models, the FunctionTool adapter wrapping plain
// Go functions with schema validated arguments, and the confirmation
// requirement contract the orchestrator uses to gate side-effecting tools
// behind explicit host approval.
package tool
