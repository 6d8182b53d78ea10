package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/swiftsearch/internal/config"
	"github.com/Aman-CERP/swiftsearch/internal/logging"
)

// MessageAnalyzerName analyzes message text and file names: unicode word
// segmentation, lower-cased, no stop words.
const MessageAnalyzerName = "message_text"

const (
	fieldTimestamp = "timestamp"
	fieldRaw       = "raw"
	pageSize       = 1000
)

// BleveEngine keeps both indexes in memory with Bleve and searches them
// through an alias.
type BleveEngine struct {
	mu       sync.RWMutex
	main     bleve.Index
	realtime bleve.Index
	logger   *slog.Logger
	seq      atomic.Uint64
}

// NewBleveEngine returns an uninitialized Bleve engine.
func NewBleveEngine(logger *slog.Logger) *BleveEngine {
	return &BleveEngine{logger: logging.OrDefault(logger)}
}

func newMessageMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(MessageAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("add message analyzer: %w", err)
	}

	textField := func() *mapping.FieldMapping {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = MessageAnalyzerName
		f.Store = false
		f.IncludeInAll = false
		return f
	}
	keywordField := func() *mapping.FieldMapping {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		f.Store = false
		f.IncludeTermVectors = false
		f.IncludeInAll = false
		return f
	}

	doc := bleve.NewDocumentStaticMapping()
	doc.AddFieldMappingsAt(FieldText, textField())
	doc.AddFieldMappingsAt(FieldFilename, textField())
	for _, f := range []string{FieldTags, FieldSenderID, FieldThreadID, FieldMessageID, FieldFileType, FieldChatType} {
		doc.AddFieldMappingsAt(f, keywordField())
	}
	ts := bleve.NewNumericFieldMapping()
	ts.Store = true
	ts.IncludeInAll = false
	doc.AddFieldMappingsAt(fieldTimestamp, ts)
	hasFiles := bleve.NewBooleanFieldMapping()
	hasFiles.IncludeInAll = false
	doc.AddFieldMappingsAt(FieldHasFiles, hasFiles)
	raw := bleve.NewTextFieldMapping()
	raw.Index = false
	raw.Store = true
	raw.IncludeInAll = false
	raw.IncludeTermVectors = false
	doc.AddFieldMappingsAt(fieldRaw, raw)

	im.DefaultMapping = doc
	im.DefaultAnalyzer = MessageAnalyzerName
	return im, nil
}

func newMemIndex() (bleve.Index, error) {
	m, err := newMessageMapping()
	if err != nil {
		return nil, err
	}
	return bleve.NewMemOnly(m)
}

// Init creates empty main and realtime indexes.
func (b *BleveEngine) Init(ctx context.Context, dictPath string) error {
	if dictPath != "" {
		if _, err := os.Stat(dictPath); err != nil {
			return fmt.Errorf("dictionary %s: %w", dictPath, err)
		}
	}
	main, err := newMemIndex()
	if err != nil {
		return fmt.Errorf("create main index: %w", err)
	}
	rt, err := newMemIndex()
	if err != nil {
		_ = main.Close()
		return fmt.Errorf("create realtime index: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
	b.main, b.realtime = main, rt
	b.logger.Debug("engine_init", slog.String("backend", "bleve"))
	return nil
}

// Destroy closes both indexes.
func (b *BleveEngine) Destroy() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
	return nil
}

func (b *BleveEngine) closeLocked() {
	if b.main != nil {
		_ = b.main.Close()
		b.main = nil
	}
	if b.realtime != nil {
		_ = b.realtime.Close()
		b.realtime = nil
	}
}

func (b *BleveEngine) ClearMainIndex(ctx context.Context) error {
	return b.reset(&b.main)
}

func (b *BleveEngine) ClearRealtimeIndex(ctx context.Context) error {
	return b.reset(&b.realtime)
}

func (b *BleveEngine) reset(slot *bleve.Index) error {
	idx, err := newMemIndex()
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.main == nil {
		_ = idx.Close()
		return errNotInitialized
	}
	_ = (*slot).Close()
	*slot = idx
	return nil
}

func (b *BleveEngine) IndexMain(ctx context.Context, messagesJSON string) (int, error) {
	return b.index(messagesJSON, func() bleve.Index { return b.main })
}

func (b *BleveEngine) IndexRealtime(ctx context.Context, messagesJSON string) (int, error) {
	return b.index(messagesJSON, func() bleve.Index { return b.realtime })
}

func (b *BleveEngine) index(messagesJSON string, target func() bleve.Index) (int, error) {
	msgs, err := ParseMessages(messagesJSON)
	if err != nil {
		return 0, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	idx := target()
	if idx == nil {
		return 0, errNotInitialized
	}
	return b.indexMessages(idx, msgs)
}

func (b *BleveEngine) indexMessages(idx bleve.Index, msgs []Message) (int, error) {
	batch := idx.NewBatch()
	for i := range msgs {
		m := &msgs[i]
		if err := batch.Index(b.docID(m), bleveDocument(m)); err != nil {
			return 0, fmt.Errorf("index message %s: %w", m.MessageID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return 0, fmt.Errorf("execute batch: %w", err)
	}
	return len(msgs), nil
}

func (b *BleveEngine) docID(m *Message) string {
	if m.MessageID != "" {
		return string(m.MessageID)
	}
	return "anon-" + strconv.FormatUint(b.seq.Add(1), 10)
}

func bleveDocument(m *Message) map[string]interface{} {
	return map[string]interface{}{
		FieldText:      m.Text,
		FieldFilename:  m.FileNames(),
		FieldTags:      m.LowerTags(),
		FieldSenderID:  string(m.SenderID),
		FieldThreadID:  string(m.ThreadID),
		FieldMessageID: string(m.MessageID),
		FieldFileType:  m.FileTypes(),
		FieldChatType:  m.ChatType,
		FieldHasFiles:  m.HasFiles(),
		fieldTimestamp: float64(m.Timestamp()),
		fieldRaw:       string(m.Raw),
	}
}

// Search runs req across both indexes.
func (b *BleveEngine) Search(ctx context.Context, req SearchRequest) (*Result, error) {
	node := ParseQuery(req.Query)
	if node == nil {
		return marshalResult(EmptyResult())
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.main == nil {
		return nil, errNotInitialized
	}

	q := bleve.NewConjunctionQuery(compileBleve(node), timestampRange(req.StartTs, req.EndTs))
	sr := bleve.NewSearchRequestOptions(q, req.Limit, req.Offset, false)
	sr.Fields = []string{fieldRaw}
	if req.SortOrder == SortByScore {
		sr.SortBy([]string{"-_score", "-" + fieldTimestamp})
	} else {
		sr.SortBy([]string{"-" + fieldTimestamp})
	}

	alias := bleve.NewIndexAlias(b.main, b.realtime)
	res, err := alias.SearchInContext(ctx, sr)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]json.RawMessage, 0, len(res.Hits))
	for _, h := range res.Hits {
		if raw, ok := h.Fields[fieldRaw].(string); ok {
			hits = append(hits, json.RawMessage(raw))
		}
	}
	return marshalResult(NewSearchResult(hits, int(res.Total), req.Offset))
}

// GetLastTimestamp returns the newest main-index timestamp.
func (b *BleveEngine) GetLastTimestamp(ctx context.Context) (*Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.main == nil {
		return nil, errNotInitialized
	}
	sr := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), 1, 0, false)
	sr.Fields = []string{fieldTimestamp}
	sr.SortBy([]string{"-" + fieldTimestamp})
	res, err := b.main.SearchInContext(ctx, sr)
	if err != nil {
		return nil, fmt.Errorf("latest timestamp: %w", err)
	}
	if len(res.Hits) == 0 {
		return NewResult([]byte(config.MinimumDate)), nil
	}
	ts, _ := res.Hits[0].Fields[fieldTimestamp].(float64)
	return NewResult([]byte(FormatTimestamp(int64(ts)))), nil
}

// DeleteMessages removes matching messages from both indexes.
func (b *BleveEngine) DeleteMessages(ctx context.Context, filter string, fromTs, toTs int64) (int, error) {
	var q query.Query = timestampRange(fromTs, toTs)
	if node := ParseQuery(filter); node != nil {
		q = bleve.NewConjunctionQuery(compileBleve(node), q)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.main == nil {
		return 0, errNotInitialized
	}
	total := 0
	for _, idx := range []bleve.Index{b.main, b.realtime} {
		n, err := deleteMatching(ctx, idx, q)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func deleteMatching(ctx context.Context, idx bleve.Index, q query.Query) (int, error) {
	deleted := 0
	for {
		sr := bleve.NewSearchRequestOptions(q, pageSize, 0, false)
		res, err := idx.SearchInContext(ctx, sr)
		if err != nil {
			return deleted, fmt.Errorf("select for delete: %w", err)
		}
		if len(res.Hits) == 0 {
			return deleted, nil
		}
		batch := idx.NewBatch()
		for _, h := range res.Hits {
			batch.Delete(h.ID)
		}
		if err := idx.Batch(batch); err != nil {
			return deleted, fmt.Errorf("delete batch: %w", err)
		}
		deleted += len(res.Hits)
	}
}

// SerializeMainIndex writes the main index as an encrypted snapshot.
func (b *BleveEngine) SerializeMainIndex(ctx context.Context, dir string, key []byte) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.main == nil {
		return 0, errNotInitialized
	}

	var raws []json.RawMessage
	for from := 0; ; from += pageSize {
		sr := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), pageSize, from, false)
		sr.Fields = []string{fieldRaw}
		sr.SortBy([]string{"_id"})
		res, err := b.main.SearchInContext(ctx, sr)
		if err != nil {
			return 0, fmt.Errorf("read main index: %w", err)
		}
		for _, h := range res.Hits {
			if raw, ok := h.Fields[fieldRaw].(string); ok {
				raws = append(raws, json.RawMessage(raw))
			}
		}
		if len(res.Hits) < pageSize {
			break
		}
	}

	m, err := WriteSnapshot(dir, key, raws)
	if err != nil {
		return 0, err
	}
	return m.Count, nil
}

// DeserializeMainIndex replaces the main index with the snapshot under dir.
func (b *BleveEngine) DeserializeMainIndex(ctx context.Context, dir string, key []byte) (int, error) {
	raws, _, err := OpenSnapshot(dir, key)
	if err != nil {
		return 0, err
	}
	msgs := make([]Message, 0, len(raws))
	for _, raw := range raws {
		var m Message
		if err := json.Unmarshal(raw, &m); err != nil {
			return 0, fmt.Errorf("decode snapshot message: %w", err)
		}
		m.Raw = raw
		msgs = append(msgs, m)
	}

	idx, err := newMemIndex()
	if err != nil {
		return 0, err
	}
	if _, err := b.indexMessages(idx, msgs); err != nil {
		_ = idx.Close()
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.main == nil {
		_ = idx.Close()
		return 0, errNotInitialized
	}
	_ = b.main.Close()
	b.main = idx
	return len(msgs), nil
}

func timestampRange(from, to int64) query.Query {
	lo, hi := float64(from), float64(to)
	incl := true
	q := bleve.NewNumericRangeInclusiveQuery(&lo, &hi, &incl, &incl)
	q.SetField(fieldTimestamp)
	return q
}

func compileBleve(n Node) query.Query {
	switch n := n.(type) {
	case And:
		qs := make([]query.Query, 0, len(n.Children))
		for _, c := range n.Children {
			qs = append(qs, compileBleve(c))
		}
		return bleve.NewConjunctionQuery(qs...)
	case Or:
		qs := make([]query.Query, 0, len(n.Children))
		for _, c := range n.Children {
			qs = append(qs, compileBleve(c))
		}
		return bleve.NewDisjunctionQuery(qs...)
	case Term:
		switch {
		case IsFullText(n.Field):
			q := bleve.NewMatchPhraseQuery(n.Value)
			q.SetField(n.Field)
			return q
		case n.Field == FieldHasFiles:
			q := bleve.NewBoolFieldQuery(strings.EqualFold(n.Value, "true"))
			q.SetField(n.Field)
			return q
		default:
			q := bleve.NewTermQuery(keywordValue(n.Field, n.Value))
			q.SetField(n.Field)
			return q
		}
	}
	return bleve.NewMatchNoneQuery()
}

// keywordValue normalizes a value for an exact-match field the way it was
// indexed.
func keywordValue(field, v string) string {
	switch field {
	case FieldTags, FieldFileType:
		return strings.ToLower(v)
	}
	return v
}

func marshalResult(r SearchResult) (*Result, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return NewResult(data), nil
}

var _ Engine = (*BleveEngine)(nil)
