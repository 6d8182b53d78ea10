package query

import (
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Builder memoizes ConstructQuery. Long inputs expand quadratically in
// relevance mode, and front-ends re-issue the same query while paging.
type Builder struct {
	cache *lru.Cache[string, string]
}

// NewBuilder returns a Builder holding up to size queries.
// A size <= 0 disables caching.
func NewBuilder(size int) *Builder {
	b := &Builder{}
	if size > 0 {
		// only fails for size <= 0
		b.cache, _ = lru.New[string, string](size)
	}
	return b
}

// Construct is ConstructQuery with memoization.
func (b *Builder) Construct(text string, senderIDs, threadIDs []string, fileType string, sortByDate bool) string {
	if b == nil || b.cache == nil {
		return ConstructQuery(text, senderIDs, threadIDs, fileType, sortByDate)
	}

	key := cacheKey(text, senderIDs, threadIDs, fileType, sortByDate)
	if q, ok := b.cache.Get(key); ok {
		return q
	}

	q := ConstructQuery(text, senderIDs, threadIDs, fileType, sortByDate)
	b.cache.Add(key, q)
	return q
}

// Len reports the number of cached queries.
func (b *Builder) Len() int {
	if b == nil || b.cache == nil {
		return 0
	}
	return b.cache.Len()
}

func cacheKey(text string, senderIDs, threadIDs []string, fileType string, sortByDate bool) string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatBool(sortByDate))
	sb.WriteByte(0)
	sb.WriteString(fileType)
	sb.WriteByte(0)
	sb.WriteString(strings.Join(senderIDs, "\x01"))
	sb.WriteByte(0)
	sb.WriteString(strings.Join(threadIDs, "\x01"))
	sb.WriteByte(0)
	sb.WriteString(text)
	return sb.String()
}
