// Package pipeline wires entity/intent detection, clarity rewriting,
// single- and multi-entity retrieval, synthesis, and not-found handling
// into the single top-level operation of spec.md §4.16: Controller.Ask.
package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/circularqa/coreqa/internal/cache"
	"github.com/circularqa/coreqa/internal/decompose"
	"github.com/circularqa/coreqa/internal/entityintent"
	"github.com/circularqa/coreqa/internal/expand"
	"github.com/circularqa/coreqa/internal/graph"
	"github.com/circularqa/coreqa/internal/llmgateway"
	"github.com/circularqa/coreqa/internal/models"
	"github.com/circularqa/coreqa/internal/notfound"
	"github.com/circularqa/coreqa/internal/orchestrator"
	"github.com/circularqa/coreqa/internal/queryrewrite"
	"github.com/circularqa/coreqa/internal/retrieval"
	"github.com/circularqa/coreqa/internal/synthesize"
)

var tracer = otel.Tracer("github.com/circularqa/coreqa/internal/pipeline")

var requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Name: "coreqa_ask_duration_seconds",
	Help: "Time to answer a single Ask call, labeled by path (single/multi/coaching).",
}, []string{"path"})

func init() {
	prometheus.MustRegister(requestDuration)
}

// Config bundles the tunables of spec.md §4.16's control flow that don't
// belong to any one sub-package.
type Config struct {
	RetrievalTopK     int
	LinkingTopK       int
	MinDocsStrict     int
	ReferenceMinScore float64
	MultiRefMinScore  float64
	DampingFactor     float64
	PassageNodeWeight float64
}

// Controller is the single entry point the rest of the system depends on.
type Controller struct {
	cfg Config

	graph       *graph.Graph
	passages    map[string]models.Passage
	filterRules map[string]models.EntityFilterRule

	dense       *retrieval.DenseRetriever
	lexical     *retrieval.LexicalRetriever
	factMatcher *retrieval.FactMatcher

	rewriteGW   *llmgateway.Gateway
	reasoningGW *llmgateway.Gateway
	answerGW    *llmgateway.Gateway
	rerankGW    *llmgateway.Gateway

	responses *cache.ResponseCache
	logger    *logrus.Logger
}

// New builds a Controller over the given graph, passage corpus, and
// retrieval/gateway dependencies.
func New(
	cfg Config,
	g *graph.Graph,
	passages map[string]models.Passage,
	filterRules map[string]models.EntityFilterRule,
	dense *retrieval.DenseRetriever,
	lexical *retrieval.LexicalRetriever,
	factMatcher *retrieval.FactMatcher,
	rewriteGW, reasoningGW, answerGW, rerankGW *llmgateway.Gateway,
	responses *cache.ResponseCache,
	logger *logrus.Logger,
) *Controller {
	if logger == nil {
		logger = logrus.New()
	}
	return &Controller{
		cfg: cfg, graph: g, passages: passages, filterRules: filterRules,
		dense: dense, lexical: lexical, factMatcher: factMatcher,
		rewriteGW: rewriteGW, reasoningGW: reasoningGW, answerGW: answerGW, rerankGW: rerankGW,
		responses: responses,
		logger:    logger,
	}
}

// Ask runs the full control flow of spec.md §4.16 and returns the final
// response envelope keyed on the original (pre-rewrite) question.
// languageInstruction, when non-empty, is appended to the synthesizer's
// system prompt (e.g. "always answer in English") — it never affects
// retrieval, only the language the final answer is written in.
func (c *Controller) Ask(ctx context.Context, question, languageInstruction string) (models.Response, error) {
	start := time.Now()
	requestID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "pipeline.Ask", trace.WithAttributes(
		attribute.String("question", question),
		attribute.String("request_id", requestID),
	))
	defer span.End()

	logger := c.logger.WithFields(logrus.Fields{"question": question, "request_id": requestID})

	if c.responses != nil {
		if cached, ok := c.responses.Get(ctx, question); ok {
			requestDuration.WithLabelValues("cached").Observe(time.Since(start).Seconds())
			return cached, nil
		}
	}

	if entityintent.IsCoachingQuery(question) {
		requestDuration.WithLabelValues("coaching").Observe(time.Since(start).Seconds())
		return models.Response{
			Question: question,
			Answer:   notfound.Template(question),
			NotFound: true,
		}, nil
	}

	workingQuery := question
	if queryrewrite.IsUnclear(question) {
		workingQuery = queryrewrite.Rewrite(ctx, c.rewriteGW, question)
		logger = logger.WithField("rewritten", workingQuery)
	}

	entities := entityintent.DetectEntities(workingQuery)
	intent := entityintent.DetectIntent(workingQuery)
	logger = logger.WithFields(logrus.Fields{"entities": len(entities), "intent": string(intent)})

	var response models.Response
	var err error
	if len(entities) > 1 {
		response, err = c.askMulti(ctx, question, workingQuery, entities, intent, languageInstruction)
		requestDuration.WithLabelValues("multi").Observe(time.Since(start).Seconds())
	} else {
		response, err = c.askSingle(ctx, question, workingQuery, entities, intent, languageInstruction)
		requestDuration.WithLabelValues("single").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		logger.WithError(err).Error("pipeline: ask failed")
		return models.Response{}, err
	}

	if c.responses != nil {
		if setErr := c.responses.Set(ctx, question, response); setErr != nil {
			logger.WithError(setErr).Warn("pipeline: response cache write failed")
		}
	}

	logger.WithField("elapsed_ms", time.Since(start).Milliseconds()).Info("pipeline: request complete")
	return response, nil
}

func (c *Controller) askMulti(ctx context.Context, original, workingQuery string, entities []models.EntityMatch, intent models.Intent, languageInstruction string) (models.Response, error) {
	subQueries, err := decompose.Decompose(ctx, c.reasoningGW, workingQuery, entities)
	if err != nil {
		return models.Response{}, err
	}

	content := make(map[string]string, len(c.passages))
	for id, p := range c.passages {
		content[id] = p.Content
	}
	deps := orchestrator.Dependencies{Dense: c.dense, Lexical: c.lexical, FilterRules: c.filterRules, Content: content}

	results, err := orchestrator.Run(ctx, deps, subQueries, intent)
	if err != nil {
		return models.Response{}, err
	}

	answer, err := synthesize.Multi(ctx, c.answerGW, original, results, intent, languageInstruction)
	if err != nil {
		return models.Response{}, err
	}

	notFound := notfound.IsNotFoundAnswer(answer)
	var refs []models.Reference
	if !notFound {
		for _, r := range results {
			for _, d := range r.Documents {
				if d.Score >= c.cfg.MultiRefMinScore {
					refs = append(refs, models.Reference{Content: d.Content, Score: d.Score})
				}
			}
		}
	}
	refs = finalizeReferences(refs)

	return models.Response{Question: original, Answer: answer, References: refs, NotFound: notFound}, nil
}

func (c *Controller) askSingle(ctx context.Context, original, workingQuery string, entities []models.EntityMatch, intent models.Intent, languageInstruction string) (models.Response, error) {
	expanded := expand.Expand(workingQuery, intent)

	dense, err := c.dense.Search(ctx, expanded)
	if err != nil {
		return models.Response{}, err
	}

	facts, err := c.factMatcher.Match(ctx, expanded)
	if err != nil {
		return models.Response{}, err
	}

	seed := graph.BuildSeed(c.graph, graph.SeedInputs{
		MatchedFacts:      facts,
		DPRScores:         dense,
		PassageNodeWeight: c.cfg.PassageNodeWeight,
	})

	var fused models.ScoredList
	if graph.SeedIsZero(seed) {
		fused = dense
	} else {
		rank := graph.PersonalizedPageRank(c.graph, seed, c.cfg.DampingFactor)
		ppr := graph.PassageScores(c.graph, rank)
		factConfidence := maxFactScore(facts)
		fused = retrieval.AdaptiveFusion(ppr, dense, factConfidence)
	}

	docs := toDocs(fused, c.passages)
	if len(entities) == 1 {
		if rule, ok := c.filterRules[entities[0].Abbrev]; ok {
			docs = retrieval.StrictUniversityFilter(docs, rule, c.cfg.MinDocsStrict)
		}
	}

	reranked := retrieval.CrossEncoderRerank(ctx, c.rerankGW, workingQuery, docs, c.cfg.RetrievalTopK)

	answer, err := synthesize.Single(ctx, c.answerGW, original, reranked, intent, languageInstruction)
	if err != nil {
		return models.Response{}, err
	}

	notFound := len(reranked) == 0 || notfound.IsNotFoundAnswer(answer)
	if notFound {
		return models.Response{Question: original, Answer: notfound.Template(original), NotFound: true}, nil
	}

	var refs []models.Reference
	for _, d := range reranked {
		if d.Score >= c.cfg.ReferenceMinScore {
			refs = append(refs, models.Reference{Content: d.Content, Score: d.Score})
		}
	}
	refs = finalizeReferences(refs)

	return models.Response{Question: original, Answer: answer, References: refs, NotFound: false}, nil
}

// referenceContentLimit and referenceCap are the §8 response-envelope
// bounds: at most 10 references, each content clamped to 1,500 runes.
const (
	referenceContentLimit = 1500
	referenceCap          = 10
	referenceDisplayFloor = 0.5
)

// finalizeReferences sorts refs descending by score (so the global
// ordering invariant holds across entity groups in the multi-entity path,
// not just within one), caps the list at referenceCap, truncates content
// to referenceContentLimit runes, and floors each displayed score at
// referenceDisplayFloor so a technically-surfaced low-confidence
// reference never reads as near-zero to a caller.
func finalizeReferences(refs []models.Reference) []models.Reference {
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Score > refs[j].Score })
	if len(refs) > referenceCap {
		refs = refs[:referenceCap]
	}
	out := make([]models.Reference, len(refs))
	for i, r := range refs {
		score := r.Score
		if score < referenceDisplayFloor {
			score = referenceDisplayFloor
		}
		out[i] = models.Reference{Content: synthesize.TruncateRunes(r.Content, referenceContentLimit), Score: score}
	}
	return out
}

func maxFactScore(facts []models.ScoredFact) float64 {
	max := 0.0
	for _, f := range facts {
		if f.Score > max {
			max = f.Score
		}
	}
	return max
}

func toDocs(list models.ScoredList, passages map[string]models.Passage) []retrieval.Document {
	out := make([]retrieval.Document, len(list))
	for i, item := range list {
		out[i] = retrieval.Document{ID: item.ID, Score: item.Score, Content: passages[item.ID].Content}
	}
	return out
}
