// Package ranker orders ctags "go to definition" candidates for one reference.
//
// A ranking pass takes the tags that share the referenced name and
//
//  1. partitions them by lexical scope against the cursor region,
//  2. drops tags matched by the language's definition filters,
//  3. scores each survivor with four independent heuristics,
//  4. sorts the survivors by descending score, keeping input order on ties.
//
// The heuristics are:
//
//   - type match: the reference line implies tag kinds (new Foo() implies a class)
//   - same file: tags from the current file, doubled for this.method()
//   - member expression: receiver names fuzzily matched against tag paths
//   - import resolution: tags from the file the symbol was imported from
//
// # Basic Usage
//
//	settings, _ := profile.Default()
//	r := ranker.New(settings)
//
//	ranked := r.Rank(ranker.Reference{
//	    Symbol:   "fetch",
//	    Receiver: []string{"youtube"},
//	    Line:     "youtube.fetch(url)",
//	}, view, tags)
//
// A Ranker holds only compiled, read-only settings and may be shared by
// concurrent goroutines. Everything memoized during a pass lives in that
// pass alone.
package ranker
