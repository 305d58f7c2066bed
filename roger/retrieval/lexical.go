package retrieval

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring"
	radix "github.com/armon/go-radix"
	"github.com/sourcegraph/conc/pool"
)

// LexicalIndex is the non-embedding retrieval path: an inverted index over
// corpus passages with roaring-bitmap posting lists and a radix term
// dictionary for prefix-tolerant lookup ("jobs" still finds "job").
type LexicalIndex struct {
	passages []Passage
	terms    *radix.Tree               // term -> termID (uint32)
	postings map[uint32]*roaring.Bitmap // termID -> passage row ids
	docFreq  map[uint32]int
	docLen   []int
}

type scoredPassage struct {
	row   uint32
	score float64
}

// BuildLexicalIndex indexes a corpus snapshot.
func BuildLexicalIndex(corpus *Corpus) *LexicalIndex {
	idx := &LexicalIndex{
		passages: corpus.Passages,
		terms:    radix.New(),
		postings: make(map[uint32]*roaring.Bitmap),
		docFreq:  make(map[uint32]int),
		docLen:   make([]int, len(corpus.Passages)),
	}

	nextTerm := uint32(0)
	for row, passage := range corpus.Passages {
		tokens := indexTokens(passage.Text)
		for _, topic := range passage.Topics {
			tokens = append(tokens, strings.ToLower(topic))
		}
		idx.docLen[row] = len(tokens)

		seen := map[uint32]bool{}
		for _, token := range tokens {
			var termID uint32
			if v, ok := idx.terms.Get(token); ok {
				termID = v.(uint32)
			} else {
				termID = nextTerm
				nextTerm++
				idx.terms.Insert(token, termID)
				idx.postings[termID] = roaring.New()
			}
			idx.postings[termID].Add(uint32(row))
			if !seen[termID] {
				seen[termID] = true
				idx.docFreq[termID]++
			}
		}
	}
	return idx
}

// Search returns the top-k passages by idf-weighted term overlap.
func (idx *LexicalIndex) Search(query string, k int) []Result {
	if k <= 0 || len(idx.passages) == 0 {
		return nil
	}

	termIDs := idx.matchTerms(query)
	if len(termIDs) == 0 {
		return nil
	}

	// Candidate set is the union of all matched posting lists.
	candidates := roaring.New()
	for termID := range termIDs {
		candidates.Or(idx.postings[termID])
	}

	scored := idx.scoreCandidates(candidates, termIDs)
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].row < scored[j].row
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	results := make([]Result, len(scored))
	for i, sp := range scored {
		p := idx.passages[sp.row]
		results[i] = Result{Content: p.Text, Confidence: sp.score, SourceID: p.ID}
	}
	return results
}

// matchTerms maps query tokens to term IDs, using the radix dictionary to
// also pick up morphological variants sharing a prefix.
func (idx *LexicalIndex) matchTerms(query string) map[uint32]bool {
	termIDs := map[uint32]bool{}
	for _, token := range indexTokens(query) {
		if v, ok := idx.terms.Get(token); ok {
			termIDs[v.(uint32)] = true
			continue
		}
		// Prefix walk: "jobs" matches indexed "job", "working" matches "work".
		if len(token) >= 4 {
			prefix := token[:4]
			idx.terms.WalkPrefix(prefix, func(term string, v interface{}) bool {
				termIDs[v.(uint32)] = true
				return false
			})
		}
	}
	return termIDs
}

// scoreCandidates scores candidate rows in parallel. Score is the sum of
// idf for each matched term, normalized by sqrt of passage length.
func (idx *LexicalIndex) scoreCandidates(candidates *roaring.Bitmap, termIDs map[uint32]bool) []scoredPassage {
	rows := candidates.ToArray()
	total := float64(len(idx.passages))

	var mu sync.Mutex
	scored := make([]scoredPassage, 0, len(rows))

	p := pool.New().WithMaxGoroutines(4)
	for _, chunk := range chunkRows(rows, 64) {
		p.Go(func() {
			local := make([]scoredPassage, 0, len(chunk))
			for _, row := range chunk {
				score := 0.0
				for termID := range termIDs {
					if idx.postings[termID].Contains(row) {
						score += math.Log(1 + total/float64(idx.docFreq[termID]))
					}
				}
				if idx.docLen[row] > 0 {
					score /= math.Sqrt(float64(idx.docLen[row]))
				}
				if score > 0 {
					local = append(local, scoredPassage{row: row, score: score})
				}
			}
			mu.Lock()
			scored = append(scored, local...)
			mu.Unlock()
		})
	}
	p.Wait()
	return scored
}

func chunkRows(rows []uint32, size int) [][]uint32 {
	if len(rows) == 0 {
		return nil
	}
	var chunks [][]uint32
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}

var indexTokenSplit = regexp.MustCompile(`[^a-z0-9']+`)

// indexTokens lowercases and splits text into index tokens.
func indexTokens(text string) []string {
	raw := indexTokenSplit.Split(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.Trim(t, "'")
		if len(t) <= 1 {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}
