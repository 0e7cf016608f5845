package domain

import "context"

// VectorStore is a persisted embedding collection addressed by name.
type VectorStore interface {
	// Add embeds texts and stores them together with their metadata.
	Add(ctx context.Context, texts []string, metas []ChunkMetadata) error
	// SimilaritySearch returns up to k hits ordered best-first.
	SimilaritySearch(ctx context.Context, query string, k int) ([]SearchHit, error)
	// Replace embeds texts and atomically swaps them in for the current contents.
	Replace(ctx context.Context, texts []string, metas []ChunkMetadata) error
	// DeleteCollection drops every vector stored under the collection.
	DeleteCollection(ctx context.Context) error
	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
	Close() error
}

// Searcher is the read side of a vector store used at query time.
type Searcher interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]SearchHit, error)
}

// CompletionRequest is a single chat completion call.
type CompletionRequest struct {
	System   string
	Messages []ConversationTurn
	// JSONOnly asks the model to emit a single JSON object and nothing else.
	JSONOnly bool
}

// ChatCompleter produces assistant text for a conversation.
type ChatCompleter interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ToolServerDialer opens sessions against tool servers.
type ToolServerDialer interface {
	Connect(ctx context.Context, endpoint string) (ToolSession, error)
}

// ToolSession is a connected tool server. Close must be called on every path.
type ToolSession interface {
	ListTools(ctx context.Context) ([]ToolDescriptor, error)
	CallTool(ctx context.Context, name string, args map[string]any) (ToolResult, error)
	Close() error
}
