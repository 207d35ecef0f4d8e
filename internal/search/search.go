// Package search implements the inverted post index and the user prefix
// index (C9), both stored directly in the KV tier.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"thewire/internal/kvstore"
)

const (
	maxTokensPerPost  = 50
	minTokenLen       = 2
	maxPostingsPerTerm = 500
	maxQueryTerms     = 10
	minPrefixLen      = 3
	maxPrefixLen      = 15
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"is": true, "are": true, "was": true, "were": true, "of": true, "to": true,
	"in": true, "on": true, "at": true, "for": true, "with": true, "it": true,
	"this": true, "that": true, "be": true, "as": true, "by": true,
}

var nonTokenRunes = regexp.MustCompile(`[^\w@#]+`)

// Tokenize lowercases content, replaces runs of non-word/@/# characters with
// spaces, and keeps words of length ≥2 that aren't stopwords, or @/# tokens
// of length ≥2, deduped and capped at maxTokensPerPost.
func Tokenize(content string) []string {
	lower := strings.ToLower(content)
	normalized := nonTokenRunes.ReplaceAllString(lower, " ")
	fields := strings.Fields(normalized)

	seen := make(map[string]bool)
	var tokens []string
	for _, f := range fields {
		if len(f) < minTokenLen {
			continue
		}
		isTagOrMention := strings.HasPrefix(f, "@") || strings.HasPrefix(f, "#")
		if !isTagOrMention && stopwords[f] {
			continue
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		tokens = append(tokens, f)
		if len(tokens) >= maxTokensPerPost {
			break
		}
	}
	return tokens
}

// Index wraps a kvstore.Store with post and user indexing operations.
type Index struct {
	store kvstore.Store
}

// NewIndex builds a search Index over store.
func NewIndex(store kvstore.Store) *Index {
	return &Index{store: store}
}

func wordKey(token string, postID int64) string { return fmt.Sprintf("word:%s:%d", token, postID) }
func idxKey(postID int64) string                { return fmt.Sprintf("idx:%d", postID) }
func handlePrefixKey(prefix string) string      { return fmt.Sprintf("handle:%s", prefix) }
func namePrefixKey(prefix string) string        { return fmt.Sprintf("name:%s", prefix) }

type postingValue struct {
	CreatedAt time.Time `json:"createdAt"`
}

// IndexPost tokenizes content and writes word:{token}:{postId} → {createdAt}
// postings plus the reverse idx:{postId} → token list used for deletion.
func (idx *Index) IndexPost(ctx context.Context, postID int64, content string, createdAt time.Time) error {
	tokens := Tokenize(content)
	val, err := json.Marshal(postingValue{CreatedAt: createdAt})
	if err != nil {
		return fmt.Errorf("marshal posting: %w", err)
	}
	for _, token := range tokens {
		if err := idx.store.Set(ctx, wordKey(token, postID), string(val)); err != nil {
			return fmt.Errorf("index token %q for post %d: %w", token, postID, err)
		}
	}
	tokenList, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("marshal token list: %w", err)
	}
	return idx.store.Set(ctx, idxKey(postID), string(tokenList))
}

// RemovePost deletes every word:{token}:{postId} posting plus the reverse
// idx:{postId} entry.
func (idx *Index) RemovePost(ctx context.Context, postID int64) error {
	raw, err := idx.store.Get(ctx, idxKey(postID))
	if err != nil {
		if err == kvstore.ErrNotFound {
			return nil
		}
		return fmt.Errorf("load token list for post %d: %w", postID, err)
	}
	var tokens []string
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		return fmt.Errorf("unmarshal token list for post %d: %w", postID, err)
	}
	for _, token := range tokens {
		if err := idx.store.Delete(ctx, wordKey(token, postID)); err != nil {
			return fmt.Errorf("remove token %q for post %d: %w", token, postID, err)
		}
	}
	return idx.store.Delete(ctx, idxKey(postID))
}

// SearchPosts tokenizes query (≤10 terms) and returns the AND-intersection of
// post ids across each term's postings (bounded per term). Empty if any term
// yields no postings.
func (idx *Index) SearchPosts(ctx context.Context, query string) ([]int64, error) {
	terms := Tokenize(query)
	if len(terms) > maxQueryTerms {
		terms = terms[:maxQueryTerms]
	}
	if len(terms) == 0 {
		return nil, nil
	}

	var sets []map[int64]bool
	for _, term := range terms {
		keys, err := idx.store.ScanPrefix(ctx, fmt.Sprintf("word:%s:", term), maxPostingsPerTerm)
		if err != nil {
			return nil, fmt.Errorf("scan postings for term %q: %w", term, err)
		}
		if len(keys) == 0 {
			return nil, nil
		}
		set := make(map[int64]bool, len(keys))
		for _, k := range keys {
			parts := strings.Split(k, ":")
			postID, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
			if err != nil {
				continue
			}
			set[postID] = true
		}
		sets = append(sets, set)
	}

	result := sets[0]
	for _, s := range sets[1:] {
		next := make(map[int64]bool)
		for id := range result {
			if s[id] {
				next[id] = true
			}
		}
		result = next
	}

	out := make([]int64, 0, len(result))
	for id := range result {
		out = append(out, id)
	}
	return out, nil
}

// IndexUser appends userID to handle:{prefix} for each prefix of the
// lowercased handle of length minPrefixLen..min(maxPrefixLen,|handle|), and
// to name:{prefix} for each whitespace-split display-name part ≥3 chars.
func (idx *Index) IndexUser(ctx context.Context, userID int64, handle, displayName string) error {
	member := strconv.FormatInt(userID, 10)
	handle = strings.ToLower(handle)
	for _, p := range prefixes(handle) {
		if err := idx.store.SAdd(ctx, handlePrefixKey(p), member); err != nil {
			return fmt.Errorf("index handle prefix %q: %w", p, err)
		}
	}
	for _, part := range strings.Fields(strings.ToLower(displayName)) {
		for _, p := range prefixes(part) {
			if err := idx.store.SAdd(ctx, namePrefixKey(p), member); err != nil {
				return fmt.Errorf("index name prefix %q: %w", p, err)
			}
		}
	}
	return nil
}

// RemoveUser inverts IndexUser.
func (idx *Index) RemoveUser(ctx context.Context, userID int64, handle, displayName string) error {
	member := strconv.FormatInt(userID, 10)
	handle = strings.ToLower(handle)
	for _, p := range prefixes(handle) {
		if err := idx.store.SRem(ctx, handlePrefixKey(p), member); err != nil {
			return err
		}
	}
	for _, part := range strings.Fields(strings.ToLower(displayName)) {
		for _, p := range prefixes(part) {
			if err := idx.store.SRem(ctx, namePrefixKey(p), member); err != nil {
				return err
			}
		}
	}
	return nil
}

func prefixes(s string) []string {
	max := len(s)
	if max > maxPrefixLen {
		max = maxPrefixLen
	}
	if max < minPrefixLen {
		return nil
	}
	out := make([]string, 0, max-minPrefixLen+1)
	for l := minPrefixLen; l <= max; l++ {
		out = append(out, s[:l])
	}
	return out
}

// SearchUsers trims & lowercases query, takes a prefix of ≤15 chars, and
// unions handle:{prefix} ∪ name:{prefix}, deduped.
func (idx *Index) SearchUsers(ctx context.Context, query string) ([]int64, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if len(q) > maxPrefixLen {
		q = q[:maxPrefixLen]
	}
	if q == "" {
		return nil, nil
	}

	handleMembers, err := idx.store.SMembers(ctx, handlePrefixKey(q))
	if err != nil {
		return nil, fmt.Errorf("search handle prefix: %w", err)
	}
	nameMembers, err := idx.store.SMembers(ctx, namePrefixKey(q))
	if err != nil {
		return nil, fmt.Errorf("search name prefix: %w", err)
	}

	seen := make(map[int64]bool)
	var out []int64
	for _, m := range append(handleMembers, nameMembers...) {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

// TermFrequency counts total literal occurrences (case-insensitive) of each
// query word in content, used by the search handler's relevance-boosted sort.
func TermFrequency(content, query string) int {
	lowerContent := strings.ToLower(content)
	count := 0
	for _, term := range Tokenize(query) {
		count += strings.Count(lowerContent, term)
	}
	return count
}
