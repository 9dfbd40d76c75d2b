package learning

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/faultline/internal/pattern"
)

const instrumentationName = "github.com/fyrsmithlabs/faultline/internal/learning"

// Config tunes the learning loop.
type Config struct {
	// EMAAlpha is the smoothing factor for success-rate updates.
	EMAAlpha float64 `koanf:"ema_alpha"`

	// AdjustmentFactor scales how far one feedback event can move a
	// pattern's confidence base.
	AdjustmentFactor float64 `koanf:"adjustment_factor"`

	// SuccessDelta is the fixed outcome term added to (success) or
	// subtracted from (failure) the rating signal.
	SuccessDelta float64 `koanf:"success_delta"`

	// MinOccurrences is how often a signature must recur before it
	// becomes a promotion candidate.
	MinOccurrences int `koanf:"min_occurrences"`

	// MaxTracked caps how many distinct signatures are held in memory.
	MaxTracked int `koanf:"max_tracked"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		EMAAlpha:         0.2,
		AdjustmentFactor: 0.1,
		SuccessDelta:     0.1,
		MinOccurrences:   3,
		MaxTracked:       1000,
	}
}

func (c *Config) normalize() {
	d := DefaultConfig()
	if c.EMAAlpha <= 0 || c.EMAAlpha > 1 {
		c.EMAAlpha = d.EMAAlpha
	}
	if c.AdjustmentFactor <= 0 {
		c.AdjustmentFactor = d.AdjustmentFactor
	}
	if c.SuccessDelta <= 0 {
		c.SuccessDelta = d.SuccessDelta
	}
	if c.MinOccurrences <= 0 {
		c.MinOccurrences = d.MinOccurrences
	}
	if c.MaxTracked <= 0 {
		c.MaxTracked = d.MaxTracked
	}
}

// unknownRecord accumulates observations of one normalized signature.
type unknownRecord struct {
	signature string
	example   string
	count     int
	firstSeen time.Time
	lastSeen  time.Time
}

// Engine closes the feedback loop: it adjusts pattern confidence from
// user feedback, aggregates unrecognized failures, and promotes
// recurring ones into the catalog.
type Engine struct {
	cfg    Config
	store  *pattern.Store
	logger *zap.Logger

	mu       sync.Mutex
	unknowns map[string]*unknownRecord
	history  []*UserFeedback

	feedbacks atomic.Uint64
	recorded  atomic.Uint64
	promoted  atomic.Uint64

	meter           metric.Meter
	feedbackCounter metric.Int64Counter
	unknownCounter  metric.Int64Counter
}

// New creates a learning engine over the given pattern store.
func New(cfg Config, store *pattern.Store, logger *zap.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("pattern store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.normalize()

	e := &Engine{
		cfg:      cfg,
		store:    store,
		logger:   logger,
		unknowns: make(map[string]*unknownRecord),
		meter:    otel.Meter(instrumentationName),
	}
	e.initMetrics()
	return e, nil
}

func (e *Engine) initMetrics() {
	var err error

	e.feedbackCounter, err = e.meter.Int64Counter(
		"faultline.learning.feedback_total",
		metric.WithDescription("Total feedback events processed"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		e.logger.Warn("failed to create feedback counter", zap.Error(err))
	}

	e.unknownCounter, err = e.meter.Int64Counter(
		"faultline.learning.unknowns_total",
		metric.WithDescription("Total unrecognized failures recorded"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		e.logger.Warn("failed to create unknown counter", zap.Error(err))
	}
}

// LearnFromFeedback folds one feedback event into the referenced
// pattern: the success rate moves by exponential moving average, and the
// confidence base shifts by a small rating-and-outcome delta. Both land
// in [0.1, 1.0] so sustained negative feedback demotes a pattern
// without silencing it.
func (e *Engine) LearnFromFeedback(ctx context.Context, fb *UserFeedback) error {
	if fb == nil {
		return fmt.Errorf("feedback is required")
	}
	if fb.Rating < 1 || fb.Rating > 5 {
		return fmt.Errorf("rating must be in [1, 5], got %d", fb.Rating)
	}

	p, err := e.store.Get(fb.PatternID)
	if err != nil {
		return fmt.Errorf("look up pattern %q: %w", fb.PatternID, err)
	}

	outcome := 0.0
	if fb.Success {
		outcome = 1.0
	}
	p.SuccessRate = clampConfidence((1-e.cfg.EMAAlpha)*p.SuccessRate + e.cfg.EMAAlpha*outcome)

	ratingSignal := (float64(fb.Rating) - 3) / 2
	outcomeSignal := -e.cfg.SuccessDelta
	if fb.Success {
		outcomeSignal = e.cfg.SuccessDelta
	}
	delta := (ratingSignal + outcomeSignal) / 2 * e.cfg.AdjustmentFactor
	p.ConfidenceBase = clampConfidence(p.ConfidenceBase + delta)

	if err := e.store.Update(p); err != nil {
		return fmt.Errorf("update pattern %q: %w", fb.PatternID, err)
	}

	e.mu.Lock()
	e.history = append(e.history, fb)
	e.mu.Unlock()

	e.feedbacks.Add(1)
	if e.feedbackCounter != nil {
		e.feedbackCounter.Add(ctx, 1)
	}
	e.logger.Debug("applied feedback",
		zap.String("pattern_id", p.ID),
		zap.Int("rating", fb.Rating),
		zap.Bool("success", fb.Success),
		zap.Float64("success_rate", p.SuccessRate),
		zap.Float64("confidence_base", p.ConfidenceBase))
	return nil
}

// RecordUnknown aggregates one unrecognized failure under its
// normalized signature. Signatures that keep recurring become discovery
// candidates.
func (e *Engine) RecordUnknown(ctx context.Context, signature, logExcerpt string) error {
	sig := extractSignature(signature, logExcerpt)
	if sig == "" {
		return nil
	}
	norm := normalizeSignature(sig)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	rec, ok := e.unknowns[norm]
	if !ok {
		if len(e.unknowns) >= e.cfg.MaxTracked {
			e.evictOldestLocked()
		}
		rec = &unknownRecord{signature: norm, example: sig, firstSeen: now}
		e.unknowns[norm] = rec
	}
	rec.count++
	rec.lastSeen = now

	e.recorded.Add(1)
	if e.unknownCounter != nil {
		e.unknownCounter.Add(ctx, 1)
	}
	return nil
}

// evictOldestLocked drops the least-recently-seen signature. Caller
// holds e.mu.
func (e *Engine) evictOldestLocked() {
	var oldest string
	var oldestAt time.Time
	for k, r := range e.unknowns {
		if oldest == "" || r.lastSeen.Before(oldestAt) {
			oldest = k
			oldestAt = r.lastSeen
		}
	}
	if oldest != "" {
		delete(e.unknowns, oldest)
	}
}

// Discover returns candidates for every tracked signature that has
// recurred at least MinOccurrences times and is not already covered by
// an existing pattern. Results are ordered by descending frequency,
// then signature.
func (e *Engine) Discover(ctx context.Context) []*Candidate {
	existing := e.store.All()

	e.mu.Lock()
	records := make([]*unknownRecord, 0, len(e.unknowns))
	for _, r := range e.unknowns {
		if r.count >= e.cfg.MinOccurrences {
			records = append(records, r)
		}
	}
	e.mu.Unlock()

	var out []*Candidate
	for _, r := range records {
		keywords := extractKeywords(r.signature)
		if len(keywords) == 0 {
			continue
		}
		if coveredByExisting(r.example, keywords, existing) {
			e.logger.Debug("skipping candidate covered by existing pattern",
				zap.String("signature", r.signature))
			continue
		}

		base := 0.5 + 0.1*float64(r.count-e.cfg.MinOccurrences)
		if base > 0.9 {
			base = 0.9
		}
		out = append(out, &Candidate{
			ErrorSignature: r.signature,
			Frequency:      r.count,
			Category:       inferCategory(keywords),
			Keywords:       keywords,
			Regex:          signatureRegex(r.signature),
			ConfidenceBase: base,
			FirstSeen:      r.firstSeen,
			LastSeen:       r.lastSeen,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].ErrorSignature < out[j].ErrorSignature
	})
	return out
}

// Promote adds a discovered candidate to the catalog as an
// auto-generated pattern and stops tracking its signature.
func (e *Engine) Promote(ctx context.Context, c *Candidate) (*pattern.Pattern, error) {
	if c == nil {
		return nil, fmt.Errorf("candidate is required")
	}
	if c.Regex == "" && len(c.Keywords) == 0 {
		return nil, fmt.Errorf("candidate has neither regex nor keywords")
	}

	now := time.Now()
	p := &pattern.Pattern{
		ID:             "learned_" + shortHash(c.ErrorSignature),
		Name:           candidateName(c.ErrorSignature),
		Category:       c.Category,
		RegexPatterns:  []string{c.Regex},
		Keywords:       c.Keywords,
		ConfidenceBase: c.ConfidenceBase,
		SuccessRate:    0.5,
		CreatedAt:      now,
		UpdatedAt:      now,
		AutoGenerated:  true,
		Source:         pattern.SourceLearning,
	}
	if err := e.store.Add(p); err != nil {
		return nil, fmt.Errorf("promote candidate: %w", err)
	}

	e.mu.Lock()
	delete(e.unknowns, c.ErrorSignature)
	e.mu.Unlock()

	e.promoted.Add(1)
	e.logger.Info("promoted learned pattern",
		zap.String("pattern_id", p.ID),
		zap.String("category", p.Category),
		zap.Int("frequency", c.Frequency))
	return p, nil
}

// History returns the feedback events applied so far, oldest first.
func (e *Engine) History() []*UserFeedback {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*UserFeedback, len(e.history))
	copy(out, e.history)
	return out
}

// Stats returns a snapshot of learning activity.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	tracked := len(e.unknowns)
	e.mu.Unlock()
	return Stats{
		FeedbackProcessed: e.feedbacks.Load(),
		TrackedUnknowns:   tracked,
		Promoted:          e.promoted.Load(),
	}
}

// StatsCounters implements monitor.StatsSource.
func (e *Engine) StatsCounters() map[string]uint64 {
	e.mu.Lock()
	tracked := uint64(len(e.unknowns))
	e.mu.Unlock()
	return map[string]uint64{
		"feedback_total":   e.feedbacks.Load(),
		"unknowns_total":   e.recorded.Load(),
		"tracked_unknowns": tracked,
		"promoted_total":   e.promoted.Load(),
	}
}

func clampConfidence(v float64) float64 {
	if v < 0.1 {
		return 0.1
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}

// errorLineRes pull the most informative line out of a log excerpt.
// First match wins.
var errorLineRes = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^.*(?:ERROR|Error|error):\s*(.+)$`),
	regexp.MustCompile(`(?m)^.*(?:Exception|exception):\s*(.+)$`),
	regexp.MustCompile(`(?m)^.*FAILED:?\s*(.+)$`),
	regexp.MustCompile(`(?m)^panic:\s*(.+)$`),
	regexp.MustCompile(`(?m)^fatal(?: error)?:\s*(.+)$`),
	regexp.MustCompile(`(?m)^npm ERR!\s*(.+)$`),
}

// extractSignature prefers a recognizable error line from the excerpt,
// falling back to the caller-provided signature.
func extractSignature(signature, excerpt string) string {
	for _, re := range errorLineRes {
		if m := re.FindStringSubmatch(excerpt); m != nil {
			return strings.TrimSpace(m[0])
		}
	}
	return strings.TrimSpace(signature)
}

// Normalization folds run-specific details so repeated occurrences of
// the same failure share one signature. Order matters: uuids and paths
// before bare hashes and numbers.
var (
	uuidRe = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	pathRe = regexp.MustCompile(`(?:/[\w.@-]+){2,}`)
	hashRe = regexp.MustCompile(`\b[0-9a-f]{7,64}\b`)
	numRe  = regexp.MustCompile(`\b\d+\b`)
)

func normalizeSignature(sig string) string {
	s := uuidRe.ReplaceAllString(sig, "<uuid>")
	s = pathRe.ReplaceAllString(s, "<path>")
	s = hashRe.ReplaceAllString(s, "<hash>")
	s = numRe.ReplaceAllString(s, "<num>")
	return strings.Join(strings.Fields(s), " ")
}

// signatureRegex turns a normalized signature into a matching
// expression: literal text with placeholders widened back out.
func signatureRegex(normalized string) string {
	quoted := regexp.QuoteMeta(normalized)
	quoted = strings.ReplaceAll(quoted, "<uuid>", `[0-9a-fA-F-]{36}`)
	quoted = strings.ReplaceAll(quoted, "<path>", `\S+`)
	quoted = strings.ReplaceAll(quoted, "<hash>", `[0-9a-f]{7,64}`)
	quoted = strings.ReplaceAll(quoted, "<num>", `\d+`)
	quoted = strings.ReplaceAll(quoted, " ", `\s+`)
	return quoted
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "to": true, "of": true,
	"in": true, "on": true, "at": true, "for": true, "and": true,
	"or": true, "is": true, "was": true, "with": true, "while": true,
	"error": true, "err": true, "failed": true, "failure": true,
	"fatal": true, "panic": true, "exception": true,
}

// extractKeywords pulls the salient lowercase terms from a normalized
// signature, capped at eight.
func extractKeywords(signature string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(signature)) {
		tok = strings.Trim(tok, `.,:;!?"'()[]{}`)
		if len(tok) < 3 || strings.HasPrefix(tok, "<") {
			continue
		}
		if stopwords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
		if len(out) == 8 {
			break
		}
	}
	return out
}

var categoryHints = []struct {
	category string
	terms    []string
}{
	{"permission", []string{"permission", "denied", "unauthorized", "forbidden", "credentials"}},
	{"network", []string{"connection", "connect", "timeout", "refused", "unreachable", "dns"}},
	{"resource", []string{"memory", "oom", "space", "disk", "quota"}},
	{"dependency", []string{"npm", "dependency", "module", "package", "import"}},
	{"build", []string{"compile", "compilation", "syntax", "undefined", "build"}},
	{"test", []string{"test", "assert", "expected"}},
}

func inferCategory(keywords []string) string {
	kw := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		kw[k] = true
	}
	for _, h := range categoryHints {
		for _, t := range h.terms {
			if kw[t] {
				return h.category
			}
		}
	}
	return "general"
}

// coveredByExisting suppresses candidates an existing pattern already
// detects: either one of its regexes matches the raw example, or its
// keyword set overlaps the candidate's by more than 70%.
func coveredByExisting(example string, keywords []string, existing []*pattern.Pattern) bool {
	kw := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		kw[k] = true
	}

	for _, p := range existing {
		for _, src := range p.RegexPatterns {
			re, err := regexp.Compile(src)
			if err != nil {
				continue
			}
			if re.MatchString(example) {
				return true
			}
		}
		if len(keywords) > 0 {
			overlap := 0
			for _, k := range p.Keywords {
				if kw[strings.ToLower(k)] {
					overlap++
				}
			}
			if float64(overlap)/float64(len(keywords)) > 0.7 {
				return true
			}
		}
	}
	return false
}

func shortHash(s string) string {
	h := fnv.New64a()
	h.Write([]byte(s))
	return fmt.Sprintf("%012x", h.Sum64()&0xffffffffffff)
}

// candidateName derives a short readable name from the signature.
func candidateName(signature string) string {
	name := signature
	if len(name) > 80 {
		name = name[:80]
	}
	return "Learned: " + name
}
