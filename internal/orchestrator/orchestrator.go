// Package orchestrator runs one chat turn end to end: signal extraction,
// routing, grounding, dispatch and escalation post-processing.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bgdnvk/resonance/internal/audit"
	"github.com/bgdnvk/resonance/internal/dispatch"
	apperrors "github.com/bgdnvk/resonance/internal/errors"
	"github.com/bgdnvk/resonance/internal/knowledge"
	"github.com/bgdnvk/resonance/internal/model"
	"github.com/bgdnvk/resonance/internal/routing"
	"github.com/bgdnvk/resonance/internal/semantic"
	"github.com/bgdnvk/resonance/internal/synth"
)

// ErrEmptyMessage is returned for a request without message text.
var ErrEmptyMessage = errors.New("message is required")

// ChatRequest is the inbound chat contract.
type ChatRequest struct {
	Message          string   `json:"message"`
	History          []string `json:"history,omitempty"`
	CompanionContext string   `json:"companionContext,omitempty"`
	PreferredBackend string   `json:"preferredBackend,omitempty"`
}

// ChatResponse is the outbound chat contract.
type ChatResponse struct {
	Response        string  `json:"response"`
	Model           string  `json:"model"`
	EscalationLevel int     `json:"escalationLevel"`
	Emotion         string  `json:"emotion"`
	Confidence      float64 `json:"confidence"`
}

type Options struct {
	// TopK is the number of grounding snippets added to the prompt.
	TopK     int
	Recorder audit.Recorder
	Logger   *zap.Logger
}

type Orchestrator struct {
	extractor  *semantic.Extractor
	policy     *routing.Policy
	retriever  *knowledge.Retriever
	dispatcher *dispatch.Dispatcher
	recorder   audit.Recorder
	topK       int
	logger     *zap.Logger
}

// New wires the pipeline stages. retriever may be nil when no knowledge
// index is available.
func New(extractor *semantic.Extractor, policy *routing.Policy, retriever *knowledge.Retriever, dispatcher *dispatch.Dispatcher, opts Options) *Orchestrator {
	if opts.TopK <= 0 {
		opts.TopK = knowledge.DefaultTopK
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Orchestrator{
		extractor:  extractor,
		policy:     policy,
		retriever:  retriever,
		dispatcher: dispatcher,
		recorder:   opts.Recorder,
		topK:       opts.TopK,
		logger:     opts.Logger,
	}
}

// Handle runs one turn. The only error is request validation; backend
// failures surface as a fallback response.
func (o *Orchestrator) Handle(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return ChatResponse{}, ErrEmptyMessage
	}
	start := time.Now()
	id := uuid.NewString()
	logger := o.logger.With(zap.String("request_id", id))

	in := model.NewInboundRequest(req.Message, req.History, req.CompanionContext, req.PreferredBackend)

	signal := o.extractor.Extract(ctx, in.Text, in.History())
	decision := o.policy.Decide(in.Text, signal, in.PreferredBackend)
	logger.Debug("Routed turn",
		zap.String("emotion", string(signal.Emotion)),
		zap.Float64("confidence", signal.Confidence),
		zap.String("tone", signal.SuggestedTone),
		zap.String("rule", decision.Rule),
		zap.String("backend", string(decision.Primary)),
		zap.String("intensity", string(decision.Intensity)))

	snippets := o.retriever.Grounding(ctx, in.Text, o.topK)
	prompt := BuildPrompt(in, snippets)

	resp, invs := o.dispatcher.Dispatch(ctx, decision, prompt)
	resp = synth.Apply(resp, signal.EscalationLevel)

	for _, inv := range invs {
		logger.Debug("Backend invocation",
			zap.String("backend", inv.BackendID),
			zap.String("outcome", string(inv.Outcome)),
			zap.Int("attempts", inv.Attempts))
	}
	latency := time.Since(start)
	logger.Info("Chat turn complete",
		zap.String("model", resp.ModelAttribution),
		zap.Bool("fallback", resp.IsFallback()),
		zap.Int("escalation", signal.EscalationLevel),
		zap.Int("grounding", len(snippets)),
		zap.Duration("latency", latency))

	o.record(ctx, logger, audit.Entry{
		ID:         id,
		Emotion:    string(signal.Emotion),
		Escalation: signal.EscalationLevel,
		Route:      string(decision.Primary),
		Rule:       decision.Rule,
		Intensity:  string(decision.Intensity),
		Model:      resp.ModelAttribution,
		Fallback:   resp.IsFallback(),
		Latency:    latency,
		CreatedAt:  start,
	})

	return ChatResponse{
		Response:        resp.Content,
		Model:           resp.ModelAttribution,
		EscalationLevel: signal.EscalationLevel,
		Emotion:         string(signal.Emotion),
		Confidence:      signal.Confidence,
	}, nil
}

func (o *Orchestrator) record(ctx context.Context, logger *zap.Logger, e audit.Entry) {
	if o.recorder == nil {
		return
	}
	// detached: a client disconnect after the answer still gets audited
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := o.recorder.Record(ctx, e); err != nil {
		logger.Warn("Failed to record audit entry", zap.Error(err))
	}
}

// Retrieve runs a knowledge query outside a chat turn.
func (o *Orchestrator) Retrieve(query string, k int) ([]knowledge.Snippet, error) {
	if o.retriever == nil {
		return nil, apperrors.New(apperrors.QueryError, "no knowledge index loaded", nil)
	}
	if k <= 0 {
		k = o.topK
	}
	return o.retriever.Search(query, k)
}
