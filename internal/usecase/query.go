package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ragengine/internal/adapter/cache"
	"ragengine/internal/domain"
	"ragengine/internal/log"
	"ragengine/internal/port"
)

// QueryUseCase runs the retrieval pipeline: validate, fetch session
// context, embed the question, search the index, assemble a prompt and
// generate an answer. Session-less queries may be served from the
// answer cache.
type QueryUseCase struct {
	embedder port.Embedder
	index    port.VectorIndex
	llm      port.LLM
	sessions port.SessionStore
	cache    *cache.AnswerCache

	defaultTopK     int
	maxTopK         int
	maxContextTurns int
	minScore        float64

	logger log.Logger
}

// QueryOptions carries the retrieval knobs from configuration.
type QueryOptions struct {
	DefaultTopK     int
	MaxTopK         int
	MaxContextTurns int
	MinScore        float64
}

// NewQueryUseCase wires the pipeline. The cache may be nil to disable
// answer caching.
func NewQueryUseCase(
	embedder port.Embedder,
	index port.VectorIndex,
	llm port.LLM,
	sessions port.SessionStore,
	answerCache *cache.AnswerCache,
	opts QueryOptions,
	logger log.Logger,
) *QueryUseCase {
	return &QueryUseCase{
		embedder:        embedder,
		index:           index,
		llm:             llm,
		sessions:        sessions,
		cache:           answerCache,
		defaultTopK:     opts.DefaultTopK,
		maxTopK:         opts.MaxTopK,
		maxContextTurns: opts.MaxContextTurns,
		minScore:        opts.MinScore,
		logger:          logger,
	}
}

// QueryRequest is a single question against the index. SessionID is
// optional; when set, the session's recent turns are folded into the
// prompt and the exchange is recorded afterwards.
type QueryRequest struct {
	Question  string
	TopK      int
	Filter    port.SearchFilter
	SessionID string
}

// Query answers a question from the indexed corpus.
func (u *QueryUseCase) Query(ctx context.Context, req QueryRequest) (domain.QueryResult, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return domain.QueryResult{}, fmt.Errorf("%w: question is empty", domain.ErrValidation)
	}

	topK := req.TopK
	if topK == 0 {
		topK = u.defaultTopK
	}
	if topK < 1 || topK > u.maxTopK {
		return domain.QueryResult{}, fmt.Errorf("%w: top_k must be between 1 and %d", domain.ErrValidation, u.maxTopK)
	}

	var history []domain.Turn
	if req.SessionID != "" {
		turns, err := u.sessions.ContextWindow(req.SessionID, u.maxContextTurns)
		if err != nil {
			return domain.QueryResult{}, err
		}
		history = turns
	}

	// Cached answers are only safe without conversational state.
	generation := u.index.Stats().Generation
	if u.cache != nil && req.SessionID == "" {
		if result, ok := u.cache.Get(question, topK, req.Filter, generation); ok {
			u.logger.Debug("answer served from cache", "top_k", topK)
			return result, nil
		}
	}

	vectors, err := u.embedder.Embed(ctx, []string{question})
	if err != nil {
		return domain.QueryResult{}, classify(err, domain.ErrEmbedding)
	}
	if len(vectors) != 1 {
		return domain.QueryResult{}, fmt.Errorf("%w: got %d vectors for one question", domain.ErrEmbedding, len(vectors))
	}

	scored, err := u.index.Search(vectors[0], topK, req.Filter)
	if err != nil {
		return domain.QueryResult{}, err
	}
	if u.minScore > 0 {
		kept := scored[:0]
		for _, s := range scored {
			if s.Score >= u.minScore {
				kept = append(kept, s)
			}
		}
		scored = kept
	}

	u.logger.Debug("retrieval complete",
		"top_k", topK,
		"results", len(scored),
		"session", req.SessionID != "",
	)

	prompt := buildPrompt(scored, history, question)

	answer, err := u.llm.Generate(ctx, prompt)
	if err != nil {
		return domain.QueryResult{}, classify(err, domain.ErrGeneration)
	}

	result := domain.QueryResult{
		Answer:    answer,
		Sources:   toSources(scored),
		SessionID: req.SessionID,
	}

	if req.SessionID != "" {
		now := time.Now()
		if err := u.sessions.AppendTurn(req.SessionID, domain.Turn{Role: domain.RoleUser, Content: question, Timestamp: now}); err != nil {
			return domain.QueryResult{}, err
		}
		if err := u.sessions.AppendTurn(req.SessionID, domain.Turn{Role: domain.RoleAssistant, Content: answer, Timestamp: now}); err != nil {
			return domain.QueryResult{}, err
		}
	}

	if u.cache != nil && req.SessionID == "" {
		u.cache.Put(question, topK, req.Filter, generation, result)
	}

	return result, nil
}

func toSources(scored []domain.ScoredEntry) []domain.Source {
	sources := make([]domain.Source, len(scored))
	for i, s := range scored {
		sources[i] = domain.Source{
			Text:     s.Entry.Text,
			Metadata: s.Entry.Metadata,
			Score:    s.Score,
		}
	}
	return sources
}

// buildPrompt lays out retrieved context, recent conversation and the
// question. Chunks appear in rank order so the model sees the most
// relevant material first.
func buildPrompt(scored []domain.ScoredEntry, history []domain.Turn, question string) string {
	var b strings.Builder

	b.WriteString("Answer the question using the context below. If the context does not contain the answer, say so.\n\n")

	if len(scored) == 0 {
		b.WriteString("Context: (no relevant documents found)\n")
	} else {
		b.WriteString("Context:\n")
		for i, s := range scored {
			source, _ := s.Entry.Metadata[domain.MetaSource].(string)
			fmt.Fprintf(&b, "[%d] (source: %s)\n%s\n\n", i+1, source, s.Entry.Text)
		}
	}

	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, t := range history {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Question: %s", question)

	return b.String()
}
