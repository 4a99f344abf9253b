// Package codec converts between substrate frames and core.Message values.
//
// Streaming frames are JSON objects tagged with a "type" field:
//
//	{"type":"register","agentId":"..."}
//	{"type":"message","payload":{"toAgentId":"...","content":"...","conversationId":"..."}}
//
// Polling batches are {"messages":[{"fromAgentId","content","conversationId","timestamp"}]}.
// Frame kinds are peeked with gjson so unknown frame types can be skipped
// without a full decode.
package codec
