// Package searchindex implements the disk-backed, per-user inverted index
// the indexer service writes to and the HTTP surface reads from.
package searchindex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/hbollon/go-edlib"
	"github.com/surgebase/porter2"

	"github.com/devzbysiu/dox-sub000/internal/entity"
)

// MaxResults bounds both Search and AllDocs, matching the source's
// undocumented-but-fixed 100-result cap (spec §4.11, open question in §9).
const MaxResults = 100

// maxEditDistance is the fuzzy-match tolerance: a query token matches an
// indexed token when their Damerau-Levenshtein distance (with
// transpositions) is at most this.
const maxEditDistance = 2

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9]+`)

// doc is one indexed document, kept in memory and mirrored to the user's
// segment file on every commit.
type doc struct {
	Filename      string   `json:"filename"`
	Body          string   `json:"body"`
	Thumbnail     string   `json:"thumbnail"`
	RawTokens     []string `json:"raw_tokens"`
	StemmedTokens []string `json:"stemmed_tokens"`
}

// Index is a disk-backed, per-user inverted index. One JSON segment file per
// user directory lives under root; it is loaded fully into memory on first
// touch and rewritten on every commit, which is adequate for a personal
// document store and avoids pulling in an embedded-database dependency that
// appears nowhere in this stack.
type Index struct {
	mu    sync.Mutex
	root  string
	users map[string][]doc // keyed by base64 user dir
}

// Open roots an Index at dir, creating it if necessary.
func Open(dir string) (*Index, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("searchindex: create index dir %q: %w", dir, err)
	}
	return &Index{root: dir, users: make(map[string][]doc)}, nil
}

func (idx *Index) segmentPath(userDir string) string {
	return filepath.Join(idx.root, userDir+".idx")
}

// load reads a user's segment file into memory if it is not already loaded.
// Caller must hold idx.mu.
func (idx *Index) load(userDir string) error {
	if _, ok := idx.users[userDir]; ok {
		return nil
	}
	data, err := os.ReadFile(idx.segmentPath(userDir))
	if os.IsNotExist(err) {
		idx.users[userDir] = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("searchindex: read segment %q: %w", userDir, err)
	}
	var docs []doc
	if err := json.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("searchindex: decode segment %q: %w", userDir, err)
	}
	idx.users[userDir] = docs
	return nil
}

// commit persists a user's in-memory docs to its segment file. Caller must
// hold idx.mu.
func (idx *Index) commit(userDir string) error {
	data, err := json.Marshal(idx.users[userDir])
	if err != nil {
		return fmt.Errorf("searchindex: encode segment %q: %w", userDir, err)
	}
	if err := os.WriteFile(idx.segmentPath(userDir), data, 0o644); err != nil {
		return fmt.Errorf("searchindex: write segment %q: %w", userDir, err)
	}
	return nil
}

// Index appends details to user's segment and commits immediately, matching
// the spec's "commit after each batch" requirement.
func (idx *Index) Index(user entity.User, details []entity.DocDetails) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	userDir := user.Dir()
	if err := idx.load(userDir); err != nil {
		return err
	}
	for _, d := range details {
		idx.users[userDir] = append(idx.users[userDir], tokenize(d))
	}
	return idx.commit(userDir)
}

func tokenize(d entity.DocDetails) doc {
	words := tokenPattern.FindAllString(d.Body, -1)
	raw := make([]string, 0, len(words))
	stemmed := make([]string, 0, len(words))
	for _, w := range words {
		lower := strings.ToLower(w)
		raw = append(raw, lower)
		stemmed = append(stemmed, porter2.Stem(lower))
	}
	return doc{
		Filename:      d.Filename,
		Body:          d.Body,
		Thumbnail:     d.Thumbnail,
		RawTokens:     raw,
		StemmedTokens: stemmed,
	}
}

// Delete removes every document in user's segment whose filename matches
// any path in loc.
func (idx *Index) Delete(user entity.User, loc entity.Location) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	userDir := user.Dir()
	if err := idx.load(userDir); err != nil {
		return err
	}

	toRemove := make(map[string]struct{}, loc.Len())
	for _, p := range loc.Paths() {
		toRemove[p.Filename()] = struct{}{}
	}

	docs := idx.users[userDir]
	kept := docs[:0]
	for _, d := range docs {
		if _, match := toRemove[d.Filename]; match {
			continue
		}
		kept = append(kept, d)
	}
	idx.users[userDir] = kept
	return idx.commit(userDir)
}

// match pairs a candidate doc with how well it scored against a query, for
// relevance-descending ordering.
type match struct {
	entry    entity.SearchEntry
	distance int
	overlap  int
}

// Search performs a fuzzy term match on the body field: a document matches
// if at least one of its stemmed body tokens is within maxEditDistance of at
// least one stemmed query token, so singular/plural and verb-form variants
// of the same word (e.g. "invoice"/"invoices") match without needing an
// edit-distance tolerance wide enough to blur unrelated words together.
// Results are ordered by best (lowest) edit distance, then by token-overlap
// count, both descending relevance.
func (idx *Index) Search(user entity.User, query string) (*entity.SearchResult, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	userDir := user.Dir()
	if err := idx.load(userDir); err != nil {
		return nil, err
	}

	rawQueryTokens := tokenPattern.FindAllString(strings.ToLower(query), -1)
	if len(rawQueryTokens) == 0 {
		return entity.NewSearchResult(), nil
	}
	queryTokens := make([]string, len(rawQueryTokens))
	for i, qt := range rawQueryTokens {
		queryTokens[i] = porter2.Stem(qt)
	}

	var matches []match
	for _, d := range idx.users[userDir] {
		bestDistance := -1
		overlap := 0
		for _, qt := range queryTokens {
			for _, token := range d.StemmedTokens {
				dist := editDistance(qt, token)
				if dist <= maxEditDistance {
					overlap++
					if bestDistance == -1 || dist < bestDistance {
						bestDistance = dist
					}
				}
			}
		}
		if bestDistance == -1 {
			continue
		}
		matches = append(matches, match{
			entry:    entity.SearchEntry{Filename: d.Filename, Thumbnail: d.Thumbnail},
			distance: bestDistance,
			overlap:  overlap,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].distance != matches[j].distance {
			return matches[i].distance < matches[j].distance
		}
		return matches[i].overlap > matches[j].overlap
	})

	result := entity.NewSearchResult()
	for _, m := range matches {
		if result.Len() >= MaxResults {
			break
		}
		result.Add(m.entry)
	}
	return result, nil
}

// editDistance computes the Optimal-String-Alignment Damerau-Levenshtein
// distance (edit distance with adjacent transpositions) between a and b,
// via go-edlib.
func editDistance(a, b string) int {
	return edlib.OSADamerauLevenshteinDistance(a, b)
}

// AllDocs returns up to MaxResults entries for user, in segment order.
func (idx *Index) AllDocs(user entity.User) (*entity.SearchResult, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	userDir := user.Dir()
	if err := idx.load(userDir); err != nil {
		return nil, err
	}

	result := entity.NewSearchResult()
	for _, d := range idx.users[userDir] {
		if result.Len() >= MaxResults {
			break
		}
		result.Add(entity.SearchEntry{Filename: d.Filename, Thumbnail: d.Thumbnail})
	}
	return result, nil
}
