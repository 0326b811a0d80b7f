package ranker

import (
	"errors"
	"log/slog"
	"regexp"
	"sort"

	"github.com/dekelcohen/CTags/internal/profile"
	"github.com/dekelcohen/CTags/pkg/types"
)

// Ranker scores and orders definition candidates
type Ranker struct {
	settings *profile.Settings
	logger   *slog.Logger
	fs       FileSystem
}

// Option configures a Ranker
type Option func(*Ranker)

// WithLogger sets the logger used for configuration gaps and debug events
func WithLogger(logger *slog.Logger) Option {
	return func(r *Ranker) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithFileSystem replaces the filesystem used to probe import paths
func WithFileSystem(fsys FileSystem) Option {
	return func(r *Ranker) {
		if fsys != nil {
			r.fs = fsys
		}
	}
}

// New creates a ranker over compiled settings
func New(settings *profile.Settings, opts ...Option) *Ranker {
	r := &Ranker{
		settings: settings,
		logger:   slog.Default(),
		fs:       osFS{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Settings returns the settings the ranker was built with
func (r *Ranker) Settings() *profile.Settings {
	return r.settings
}

// pass holds everything derived from one reference. It is built at the
// start of Rank and never outlives it.
type pass struct {
	r           *Ranker
	ref         Reference
	view        View
	lang        *profile.Language
	imports     profile.ImportConfig
	currentFile string

	preferredKinds map[string]struct{}
	thisRe         *regexp.Regexp
	relPathRe      *regexp.Regexp
	receiverGrams  gramSet

	importDone bool
	imported   ImportResolution
}

func (r *Ranker) newPass(ref Reference, view View) *pass {
	p := &pass{r: r, ref: ref, view: view}
	if view != nil {
		p.currentFile = view.FileName()
	}

	source := ref.Source
	if source == "" {
		source = r.settings.SourceForFile(p.currentFile)
	}
	p.lang = r.settings.Language(source)
	p.imports = p.lang.ImportSettings()

	p.preferredKinds = p.referenceKinds()
	p.thisRe = p.compileThis()
	if p.imports.IsRelPath != "" {
		p.relPathRe = regexp.MustCompile(p.imports.IsRelPath)
	}

	p.receiverGrams = make(gramSet)
	for _, part := range ref.Receiver {
		p.receiverGrams.union(grams(part))
	}
	return p
}

// referenceKinds collects the tag kinds implied by the reference line
func (p *pass) referenceKinds() map[string]struct{} {
	kinds := make(map[string]struct{})
	if p.ref.Symbol == "" {
		return kinds
	}
	for tmpl, list := range p.lang.ReferenceTypes {
		re, err := regexp.Compile(profile.Expand(tmpl, p.ref.Symbol))
		if err != nil {
			continue
		}
		if re.MatchString(p.ref.Line) {
			for _, k := range list {
				kinds[k] = struct{}{}
			}
		}
	}
	return kinds
}

// compileThis builds the case-insensitive this/self matcher, anchored at the
// start of the receiver
func (p *pass) compileThis() *regexp.Regexp {
	alts, err := p.lang.ThisPatterns()
	if err != nil {
		var gap *profile.ConfigurationGap
		if errors.As(err, &gap) {
			p.r.logger.Warn("rank.config_gap",
				"source", gap.Source, "section", gap.Section, "detail", gap.Detail)
		}
		return nil
	}
	if len(alts) == 0 {
		return nil
	}
	return regexp.MustCompile("(?i)^(?:" + profile.Alternation(alts) + ")")
}

// Result is the outcome of one ranking pass
type Result struct {
	Tags []types.RankedTag

	// Import is the resolution the import score was computed against
	Import ImportResolution
}

// Rank filters tags for ref and returns the survivors sorted by descending
// score. Ties keep their input order. The input slice is not modified.
// A nil view ranks without a current file or buffer text.
func (r *Ranker) Rank(ref Reference, view View, tags []types.Tag) []types.RankedTag {
	return r.RankWithImport(ref, view, tags).Tags
}

// RankWithImport ranks like Rank and also returns the import resolution the
// pass used, so callers can report it without resolving a second time
func (r *Ranker) RankWithImport(ref Reference, view View, tags []types.Tag) Result {
	p := r.newPass(ref, view)

	scoped := p.filterScope(tags)
	candidates := p.choosePartition(scoped)
	candidates = filterDefinitions(candidates, r.settings.DefinitionFilters(p.lang.Source))

	ranked := make([]types.RankedTag, len(candidates))
	for i := range candidates {
		tag := &candidates[i]
		b := types.ScoreBreakdown{
			Type:     p.typeScore(tag),
			SameFile: p.sameFileScore(tag),
			Member:   p.memberScore(tag),
			Import:   p.importScore(tag),
		}
		ranked[i] = types.RankedTag{
			Tag:       tag.Clone(),
			RankScore: b.Total(),
			Breakdown: b,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RankScore > ranked[j].RankScore
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	r.logger.Debug("rank.done",
		"symbol", ref.Symbol,
		"source", p.lang.Source,
		"candidates", len(tags),
		"in_scope", len(scoped.inScope),
		"no_scope", len(scoped.noScope),
		"discarded", scoped.discarded,
		"ranked", len(ranked))
	return Result{Tags: ranked, Import: p.importResolution()}
}

// ResolveImport reports where the symbol of ref was imported from, using the
// same resolution a ranking pass would. Each call resolves afresh.
func (r *Ranker) ResolveImport(ref Reference, view View) ImportResolution {
	return r.newPass(ref, view).importResolution()
}
